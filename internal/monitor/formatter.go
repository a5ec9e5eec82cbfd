package monitor

import (
	"fmt"
	"strings"
	"time"
)

// FormatSeverity renders a 1-5 severity as filled and empty dots.
func FormatSeverity(severity int) string {
	n := min(max(severity, 0), 5)
	return strings.Repeat("●", n) + strings.Repeat("○", 5-n)
}

// FormatPoints formats a point total as "X pts" or "X.Xk pts"
func FormatPoints(points int) string {
	if points >= 10000 {
		return fmt.Sprintf("%.1fk pts", float64(points)/1000)
	}
	return fmt.Sprintf("%d pts", points)
}

// FormatInterval formats a polling interval, or "manual" when polling is off.
func FormatInterval(d time.Duration) string {
	if d <= 0 {
		return "manual"
	}
	return d.String()
}

// Truncate shortens s to width runes, ending in an ellipsis.
func Truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
