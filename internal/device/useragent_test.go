package device

import "testing"

func TestDetectRealMobileUA(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want bool
	}{
		{"iphone", iPhoneUA, true},
		{"ipad", iPadUA, true},
		{"android phone", pixelUA, true},
		{"android tablet", galaxyTabUA, true},
		{"windows phone", "Mozilla/5.0 (Windows Phone 10.0; Android 6.0.1; Microsoft; Lumia 950) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/52.0.2743.116 Mobile Safari/537.36 Edge/15.15063", true},
		{"blackberry", "Mozilla/5.0 (BB10; Touch) AppleWebKit/537.35+ (KHTML, like Gecko) Version/10.3.3.2205 Mobile Safari/537.35+", true},
		{"opera mini", "Opera/9.80 (J2ME/MIDP; Opera Mini/9.80 (S60; SymbOS; Opera Mobi/23.348; U; en) Presto/2.5.25 Version/10.54", true},
		{"kindle silk", "Mozilla/5.0 (Linux; U; en-us; KFTT Build/IML74K) AppleWebKit/537.36 (KHTML, like Gecko) Silk/3.68 like Chrome/39.0.2171.93 Safari/537.36", true},
		{"uppercase", "MOZILLA/5.0 (IPHONE; CPU IPHONE OS 17_0 LIKE MAC OS X)", true},
		{"windows chrome", chromeWinUA, false},
		{"mac safari", safariMacUA, false},
		{"linux firefox", firefoxLinUA, false},
		{"empty", "", false},
		{"garbage", "%%%???", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectRealMobileUA(tt.ua); got != tt.want {
				t.Errorf("DetectRealMobileUA(%q) = %v, want %v", tt.ua, got, tt.want)
			}
		})
	}
}

func TestDescribeClient_Browser(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{chromeWinUA, "Chrome"},
		{safariMacUA, "Safari"},
		{firefoxLinUA, "Firefox"},
		{"", "Other"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := DescribeClient(tt.ua)
			if got.Browser != tt.want {
				t.Errorf("DescribeClient(%q).Browser = %q, want %q", tt.ua, got.Browser, tt.want)
			}
		})
	}
}

func TestDescribeClient_DeviceHint(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want string
	}{
		{"windows desktop", chromeWinUA, "Desktop"},
		{"iphone mobile", iPhoneUA, "Mobile"},
		{"android phone", pixelUA, "Mobile"},
		{"ipad tablet", iPadUA, "Tablet"},
		{"android tablet", galaxyTabUA, "Tablet"},
		{"empty ua", "", "Desktop"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DescribeClient(tt.ua)
			if got.DeviceHint != tt.want {
				t.Errorf("DescribeClient(%q).DeviceHint = %q, want %q", tt.ua, got.DeviceHint, tt.want)
			}
		})
	}
}

func TestDescribeClient_Bot(t *testing.T) {
	got := DescribeClient("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")
	if !got.Bot {
		t.Error("expected Googlebot to be flagged as a bot")
	}
	if DescribeClient(chromeWinUA).Bot {
		t.Error("desktop Chrome must not be a bot")
	}
}
