package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatSeverity(t *testing.T) {
	tests := []struct {
		severity int
		expected string
	}{
		{5, "●●●●●"},
		{3, "●●●○○"},
		{0, "○○○○○"},
		{9, "●●●●●"},
		{-1, "○○○○○"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatSeverity(tt.severity))
	}
}

func TestFormatPoints(t *testing.T) {
	assert.Equal(t, "0 pts", FormatPoints(0))
	assert.Equal(t, "9999 pts", FormatPoints(9999))
	assert.Equal(t, "10.0k pts", FormatPoints(10000))
}

func TestFormatInterval(t *testing.T) {
	assert.Equal(t, "manual", FormatInterval(0))
	assert.Equal(t, "30s", FormatInterval(30*time.Second))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		width    int
		expected string
	}{
		{"fits", "short", 10, "short"},
		{"exact", "exact", 5, "exact"},
		{"cut", "Tanker fire on Ring Road", 10, "Tanker fi…"},
		{"runes", "héllo wörld", 4, "hél…"},
		{"width one", "abc", 1, "…"},
		{"no width", "abc", 0, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Truncate(tt.in, tt.width))
		})
	}
}
