// Package device classifies a browser environment into a layout tier and
// the capabilities that presentation code gates behavior on.
//
// Viewport width is authoritative for the tier. The user agent only feeds the
// secondary real-vs-simulated mobile distinction and never overrides the tier.
package device

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Tier string

const (
	TierMobile  Tier = "mobile"
	TierTablet  Tier = "tablet"
	TierDesktop Tier = "desktop"
)

// Width breakpoints in CSS pixels. A width below MobileBreakpoint is mobile,
// below DesktopBreakpoint is tablet, anything else is desktop.
const (
	MobileBreakpoint  = 768
	DesktopBreakpoint = 1024
)

func (t Tier) Label() string {
	return cases.Title(language.English).String(string(t))
}

type Snapshot struct {
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	SupportsHover bool   `json:"supportsHover"`
	HasTouch      bool   `json:"hasTouch"`
	UserAgent     string `json:"userAgent"`
}

type Hybrid struct {
	IsRealMobile      bool `json:"isRealMobile"`
	IsSimulatedMobile bool `json:"isSimulatedMobile"`
}

type Classification struct {
	DeviceType        Tier `json:"deviceType"`
	IsMobile          bool `json:"isMobile"`
	IsTablet          bool `json:"isTablet"`
	IsDesktop         bool `json:"isDesktop"`
	HasTouch          bool `json:"hasTouch"`
	SupportsHover     bool `json:"supportsHover"`
	IsRealMobile      bool `json:"isRealMobile"`
	IsSimulatedMobile bool `json:"isSimulatedMobile"`
	HoverAutoplay     bool `json:"hoverAutoplay"`
}

func ClassifyByViewport(width int) Tier {
	switch {
	case width < MobileBreakpoint:
		return TierMobile
	case width < DesktopBreakpoint:
		return TierTablet
	default:
		return TierDesktop
	}
}

// ClassifyHybrid separates genuine mobile devices from desktop browsers whose
// window has been narrowed to a mobile width, e.g. dev-tools responsive mode.
func ClassifyHybrid(s Snapshot) Hybrid {
	isReal := DetectRealMobileUA(s.UserAgent)
	return Hybrid{
		IsRealMobile:      isReal,
		IsSimulatedMobile: ClassifyByViewport(s.Width) == TierMobile && !isReal,
	}
}

func Classify(s Snapshot) Classification {
	tier := ClassifyByViewport(s.Width)
	hybrid := ClassifyHybrid(s)

	c := Classification{
		DeviceType:        tier,
		IsMobile:          tier == TierMobile,
		IsTablet:          tier == TierTablet,
		IsDesktop:         tier == TierDesktop,
		HasTouch:          s.HasTouch,
		SupportsHover:     s.SupportsHover,
		IsRealMobile:      hybrid.IsRealMobile,
		IsSimulatedMobile: hybrid.IsSimulatedMobile,
	}
	c.HoverAutoplay = AllowHoverAutoplay(c)
	return c
}

// AllowHoverAutoplay reports whether hover-triggered autoplay may be enabled.
// Only hover capability matters; a desktop tier on a touch-primary device
// still gets false.
func AllowHoverAutoplay(c Classification) bool {
	return c.SupportsHover
}
