package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// mobileSignatures is checked in order against the lower-cased user agent.
// This is a best-effort heuristic: user agents are spoofable and a desktop
// browser in responsive mode may send a mobile UA. It never decides the tier.
var mobileSignatures = []string{
	"iphone",
	"ipod",
	"ipad",
	"android",
	"windows phone",
	"iemobile",
	"blackberry",
	"bb10",
	"opera mini",
	"mobile safari",
	"webos",
	"kindle",
	"silk/",
	"mobile",
}

func DetectRealMobileUA(userAgent string) bool {
	if userAgent == "" {
		return false
	}
	lower := strings.ToLower(userAgent)
	for _, sig := range mobileSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// Client is what the user agent claims about the browser. It is recorded for
// analytics only.
type Client struct {
	Browser        string `json:"browser"`
	BrowserVersion string `json:"browserVersion"`
	OS             string `json:"os"`
	DeviceHint     string `json:"deviceHint"`
	Bot            bool   `json:"bot"`
}

func DescribeClient(userAgent string) Client {
	if userAgent == "" {
		return Client{Browser: "Other", OS: "Other", DeviceHint: "Desktop"}
	}

	ua := useragent.New(userAgent)
	name, version := ua.Browser()
	if name == "" {
		name = "Other"
	}
	osName := ua.OSInfo().Name
	if osName == "" {
		osName = "Other"
	}

	return Client{
		Browser:        name,
		BrowserVersion: version,
		OS:             osName,
		DeviceHint:     deviceHint(userAgent, ua.Mobile()),
		Bot:            ua.Bot(),
	}
}

// Android tablets omit "Mobile" from the UA, phones include it.
func deviceHint(userAgent string, mobile bool) string {
	lower := strings.ToLower(userAgent)
	switch {
	case strings.Contains(lower, "ipad"), strings.Contains(lower, "tablet"):
		return "Tablet"
	case strings.Contains(lower, "android") && !strings.Contains(lower, "mobile"):
		return "Tablet"
	case mobile:
		return "Mobile"
	default:
		return "Desktop"
	}
}
