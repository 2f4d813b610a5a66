package validate

import (
	"fmt"

	"github.com/sendrec/devicelab/internal/device"
)

// Probe field limits, shared with the diagnostic page and the /api/limits endpoint.
const (
	MaxViewportDimension = 16384
	MaxUserAgentLength   = 1024
	MaxTouchPoints       = 32
	MaxOrientationLength = 32
)

func checkLen(value string, max int, field string) string {
	if len(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func checkRange(value, max int, field string) string {
	if value < 0 || value > max {
		return fmt.Sprintf("%s must be between 0 and %d", field, max)
	}
	return ""
}

func Width(v int) string          { return checkRange(v, MaxViewportDimension, "width") }
func Height(v int) string         { return checkRange(v, MaxViewportDimension, "height") }
func TouchPoints(v int) string    { return checkRange(v, MaxTouchPoints, "maxTouchPoints") }
func UserAgent(s string) string   { return checkLen(s, MaxUserAgentLength, "user agent") }
func Orientation(s string) string { return checkLen(s, MaxOrientationLength, "orientation") }

func EventKind(k device.EventKind) string {
	if !device.ValidEventKind(k) {
		return "kind must be one of mount, resize, orientation"
	}
	return ""
}

// Probe returns the first problem found in p, or "" when it is acceptable.
func Probe(p device.Probe) string {
	for _, msg := range []string{
		Width(p.Width),
		Height(p.Height),
		TouchPoints(p.MaxTouchPoints),
		UserAgent(p.UserAgent),
		Orientation(p.Orientation),
	} {
		if msg != "" {
			return msg
		}
	}
	return ""
}

func FieldLimits() map[string]int {
	return map[string]int{
		"viewportDimension": MaxViewportDimension,
		"userAgent":         MaxUserAgentLength,
		"maxTouchPoints":    MaxTouchPoints,
		"orientation":       MaxOrientationLength,
	}
}
