package geoip

import "testing"

func TestNew_EmptyPathDisablesLookup(t *testing.T) {
	r := New("")
	if r.Enabled() {
		t.Fatal("expected resolver without database to be disabled")
	}
	if loc := r.Lookup("8.8.8.8"); loc != (Location{}) {
		t.Errorf("expected empty location, got %+v", loc)
	}
}

func TestNew_MissingFileFallsBack(t *testing.T) {
	r := New("/nonexistent/GeoLite2-City.mmdb")
	if r.Enabled() {
		t.Fatal("expected missing database to disable lookups")
	}
	if loc := r.Lookup("8.8.8.8"); loc != (Location{}) {
		t.Errorf("expected empty location, got %+v", loc)
	}
}

func TestLookup_InvalidInputs(t *testing.T) {
	r := New("")
	for _, ip := range []string{"", "not-an-ip", "127.0.0.1", "10.1.2.3"} {
		if loc := r.Lookup(ip); loc != (Location{}) {
			t.Errorf("Lookup(%q) = %+v, want empty", ip, loc)
		}
	}
}

func TestNilResolver(t *testing.T) {
	var r *Resolver
	if loc := r.Lookup("8.8.8.8"); loc != (Location{}) {
		t.Errorf("expected empty location from nil resolver, got %+v", loc)
	}
	if err := r.Close(); err != nil {
		t.Errorf("expected no error closing nil resolver, got %v", err)
	}
}
