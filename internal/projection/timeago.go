package projection

import (
	"fmt"
	"time"
)

// TimeAgo renders the age of t at now with minute, hour and day
// granularity. Unknown (zero) times render empty; times in the future render
// as "just now".
func TimeAgo(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	mins := int(now.Sub(t) / time.Minute)
	hours := mins / 60
	days := hours / 24
	switch {
	case mins < 1:
		return "just now"
	case mins < 60:
		return fmt.Sprintf("%d mins ago", mins)
	case hours < 24:
		return fmt.Sprintf("%d hours ago", hours)
	}
	return fmt.Sprintf("%d days ago", days)
}

// ShortTimeAgo is the compact form used in comment threads.
func ShortTimeAgo(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	mins := int(now.Sub(t) / time.Minute)
	hours := mins / 60
	switch {
	case mins < 1:
		return "just now"
	case mins < 60:
		return fmt.Sprintf("%dm ago", mins)
	case hours < 24:
		return fmt.Sprintf("%dh ago", hours)
	}
	return fmt.Sprintf("%dd ago", hours/24)
}
