package host

import "testing"

func TestFriendlyNameIsDeterministic(t *testing.T) {
	a := friendlyName("NHOSTKEY123")
	b := friendlyName("NHOSTKEY123")
	if a != b {
		t.Errorf("friendlyName is not deterministic: %q != %q", a, b)
	}
}

func TestFriendlyNameVariesAcrossKeys(t *testing.T) {
	a := friendlyName("NHOSTKEYAAA")
	b := friendlyName("NHOSTKEYBBB")
	if a == b {
		t.Errorf("expected different friendly names for different keys, both got %q", a)
	}
}
