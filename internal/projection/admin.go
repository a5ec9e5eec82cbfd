package projection

import (
	"math"
	"strings"
	"time"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
)

// LogLevel classifies a system log entry.
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogSuccess LogLevel = "success"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

// Valid reports whether l is a known level.
func (l LogLevel) Valid() bool {
	switch l {
	case LogInfo, LogSuccess, LogWarning, LogError:
		return true
	}
	return false
}

// LogEntry is one line of the admin activity log.
type LogEntry struct {
	ID        feed.ID   `json:"id"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

const maxLogEntries = 20

// SystemLogs turns the first 20 incidents into activity log entries.
func SystemLogs(incidents []feed.Incident) []LogEntry {
	n := min(len(incidents), maxLogEntries)
	out := make([]LogEntry, 0, n)
	for _, inc := range incidents[:n] {
		title := Title(inc.Description)
		if inc.Description == "" {
			title = "Traffic incident"
		}
		e := LogEntry{ID: inc.ID, Timestamp: inc.CreatedAt.Time, Source: "Accidents"}
		switch {
		case inc.Status == feed.StatusConfirmed:
			e.Level, e.Message = LogSuccess, "Incident confirmed: "+title
		case inc.Status == feed.StatusFalseReport:
			e.Level, e.Message = LogError, "False report flagged: "+title
		case inc.Severity >= 4:
			e.Level, e.Message = LogWarning, "High severity incident reported: "+title
		default:
			e.Level, e.Message = LogInfo, "New incident report: "+title
		}
		out = append(out, e)
	}
	return out
}

// FilterLogs keeps entries at level. An empty level keeps everything.
func FilterLogs(entries []LogEntry, level LogLevel) []LogEntry {
	if level == "" {
		return entries
	}
	out := make([]LogEntry, 0, len(entries))
	for _, e := range entries {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// DayCount is the weekly chart bucket for one weekday.
type DayCount struct {
	Day      string `json:"day"`
	Severe   int    `json:"severe"`
	Moderate int    `json:"moderate"`
}

// HourCount is one peak-hours bucket.
type HourCount struct {
	Hour      string `json:"hour"`
	Incidents int    `json:"incidents"`
}

// Stats is the admin analytics summary.
type Stats struct {
	TotalIncidents int         `json:"total_incidents"`
	ConfirmedToday int         `json:"confirmed_today"`
	TotalUsers     int         `json:"total_users"`
	ActiveOfficers int         `json:"active_officers"`
	Weekly         []DayCount  `json:"weekly"`
	Hourly         []HourCount `json:"hourly"`
}

var hourBuckets = []string{"6am", "9am", "12pm", "3pm", "6pm", "9pm"}

// hourBucket maps an hour of day to its bucket. 9pm to 6am is one bucket.
func hourBucket(h int) int {
	switch {
	case h >= 6 && h < 9:
		return 0
	case h >= 9 && h < 12:
		return 1
	case h >= 12 && h < 15:
		return 2
	case h >= 15 && h < 18:
		return 3
	case h >= 18 && h < 21:
		return 4
	}
	return 5
}

// Analytics computes the admin summary. Calendar fields use now's location.
// Incidents without a known creation time count toward the totals only.
func Analytics(incidents []feed.Incident, users []feed.User, now time.Time) Stats {
	loc := now.Location()
	weekly := make([]DayCount, 7)
	for i, d := range []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"} {
		weekly[i].Day = d
	}
	hourly := make([]HourCount, len(hourBuckets))
	for i, h := range hourBuckets {
		hourly[i].Hour = h
	}

	s := Stats{TotalIncidents: len(incidents), TotalUsers: len(users), Weekly: weekly, Hourly: hourly}
	ny, nm, nd := now.Date()
	for _, inc := range incidents {
		if inc.CreatedAt.IsZero() {
			continue
		}
		t := inc.CreatedAt.In(loc)
		if y, m, d := t.Date(); inc.Status == feed.StatusConfirmed && y == ny && m == nm && d == nd {
			s.ConfirmedToday++
		}
		day := (int(t.Weekday()) + 6) % 7
		if inc.Severity >= 4 {
			weekly[day].Severe++
		} else {
			weekly[day].Moderate++
		}
		hourly[hourBucket(t.Hour())].Incidents++
	}
	for _, u := range users {
		if u.Role == feed.RoleOfficer && u.Status == feed.AccountApproved {
			s.ActiveOfficers++
		}
	}
	return s
}

// FilterUsers keeps users whose username or email contains q, ignoring case.
func FilterUsers(users []feed.User, q string) []feed.User {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return users
	}
	out := make([]feed.User, 0, len(users))
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.Email), q) {
			out = append(out, u)
		}
	}
	return out
}

// DailyCounts counts incidents per calendar day for the last days days,
// oldest first, ending today in now's location.
func DailyCounts(incidents []feed.Incident, days int, now time.Time) []float64 {
	if days <= 0 {
		return nil
	}
	counts := make([]float64, days)
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	for _, inc := range incidents {
		if inc.CreatedAt.IsZero() {
			continue
		}
		t := inc.CreatedAt.In(now.Location())
		ty, tm, td := t.Date()
		day := time.Date(ty, tm, td, 0, 0, 0, 0, now.Location())
		ago := int(math.Round(today.Sub(day).Hours() / 24))
		if ago >= 0 && ago < days {
			counts[days-1-ago]++
		}
	}
	return counts
}
