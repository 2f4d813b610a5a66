package device

// Probe carries the raw signals the diagnostic page reads from the browser.
// Every field may be missing; Snapshot fills in conservative defaults.
type Probe struct {
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Hover          *bool  `json:"hover"`
	MaxTouchPoints int    `json:"maxTouchPoints"`
	TouchEvents    bool   `json:"touchEvents"`
	UserAgent      string `json:"userAgent"`
	Orientation    string `json:"orientation,omitempty"`
}

func (p Probe) Snapshot() Snapshot {
	width, height := p.Width, p.Height
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return Snapshot{
		Width:         width,
		Height:        height,
		SupportsHover: DetectHoverSupport(p.Hover),
		HasTouch:      DetectTouchSupport(p.MaxTouchPoints, p.TouchEvents),
		UserAgent:     p.UserAgent,
	}
}

func DetectTouchSupport(maxTouchPoints int, touchEvents bool) bool {
	return maxTouchPoints > 0 || touchEvents
}

// DetectHoverSupport takes the result of the "(hover: hover)" media query.
// nil means the query could not be evaluated and is treated as no hover.
func DetectHoverSupport(hover *bool) bool {
	return hover != nil && *hover
}
