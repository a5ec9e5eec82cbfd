// Package projection derives presentation models from reconciled state.
// Everything here is pure: same input, same output, no I/O.
package projection

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
)

// Category is the visual class of an incident marker.
type Category string

const (
	CategorySevere   Category = "severe"
	CategoryModerate Category = "moderate"
	CategoryCleared  Category = "cleared"
	CategoryPending  Category = "pending"
)

// Categories lists categories in display order.
var Categories = []Category{CategorySevere, CategoryModerate, CategoryPending, CategoryCleared}

// CategoryOf classifies an incident. Pending verification wins over
// severity; out-of-range severities from legacy data render as moderate.
func CategoryOf(status feed.IncidentStatus, severity int) Category {
	switch status {
	case feed.StatusPendingVerification:
		return CategoryPending
	case feed.StatusFalseReport:
		return CategoryCleared
	}
	switch severity {
	case 5, 4:
		return CategorySevere
	case 3, 2:
		return CategoryModerate
	case 1:
		return CategoryCleared
	}
	return CategoryModerate
}

// Marker is one incident as shown on the map and in lists.
type Marker struct {
	ID                feed.ID             `json:"id"`
	Category          Category            `json:"category"`
	Title             string              `json:"title"`
	Location          string              `json:"location"`
	Time              string              `json:"time"`
	Lat               float64             `json:"lat"`
	Lng               float64             `json:"lng"`
	Status            feed.IncidentStatus `json:"status"`
	Severity          int                 `json:"severity"`
	PhotoURL          string              `json:"photo_url,omitempty"`
	ReporterUsername  string              `json:"reporter_username,omitempty"`
	CasualtiesInjured int                 `json:"casualties_injured"`
	CasualtiesDead    int                 `json:"casualties_dead"`
	CreatedAt         time.Time           `json:"created_at"`
}

const titleLength = 50

// Title is the first 50 characters of the description.
func Title(description string) string {
	if description == "" {
		return "Traffic Incident"
	}
	r := []rune(description)
	if len(r) > titleLength {
		r = r[:titleLength]
	}
	return string(r)
}

// Location formats coordinates to four decimals.
func Location(lat, lng float64) string {
	return fmt.Sprintf("%.4f, %.4f", lat, lng)
}

// MarkerFor projects one incident.
func MarkerFor(inc feed.Incident, now time.Time) Marker {
	return Marker{
		ID:                inc.ID,
		Category:          CategoryOf(inc.Status, inc.Severity),
		Title:             Title(inc.Description),
		Location:          Location(inc.Latitude, inc.Longitude),
		Time:              TimeAgo(inc.CreatedAt.Time, now),
		Lat:               inc.Latitude,
		Lng:               inc.Longitude,
		Status:            inc.Status,
		Severity:          inc.Severity,
		PhotoURL:          inc.PhotoURL,
		ReporterUsername:  inc.ReporterUsername,
		CasualtiesInjured: inc.CasualtiesInjured,
		CasualtiesDead:    inc.CasualtiesDead,
		CreatedAt:         inc.CreatedAt.Time,
	}
}

// Markers projects incidents in their given order, keeping those whose title
// or location contains search, ignoring case. The query is matched as typed,
// surrounding spaces included.
func Markers(incidents []feed.Incident, search string, now time.Time) []Marker {
	q := strings.ToLower(search)
	out := make([]Marker, 0, len(incidents))
	for _, inc := range incidents {
		m := MarkerFor(inc, now)
		if q != "" && !strings.Contains(strings.ToLower(m.Title), q) && !strings.Contains(strings.ToLower(m.Location), q) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// FilterCategory keeps markers of category c. An empty c keeps everything.
func FilterCategory(markers []Marker, c Category) []Marker {
	if c == "" {
		return markers
	}
	out := make([]Marker, 0, len(markers))
	for _, m := range markers {
		if m.Category == c {
			out = append(out, m)
		}
	}
	return out
}

// GroupByCategory buckets markers, preserving order within each bucket.
func GroupByCategory(markers []Marker) map[Category][]Marker {
	groups := make(map[Category][]Marker, len(Categories))
	for _, m := range markers {
		groups[m.Category] = append(groups[m.Category], m)
	}
	return groups
}

// HeatPoint is one weighted point of the heatmap layer.
type HeatPoint struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Weight float64 `json:"weight"`
}

// HeatPoints weights markers by category for the heatmap layer.
func HeatPoints(markers []Marker) []HeatPoint {
	out := make([]HeatPoint, 0, len(markers))
	for _, m := range markers {
		w := 0.2
		switch m.Category {
		case CategorySevere:
			w = 1.0
		case CategoryModerate:
			w = 0.7
		}
		out = append(out, HeatPoint{Lat: m.Lat, Lng: m.Lng, Weight: w})
	}
	return out
}
