package similarity

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRatioIdentity(t *testing.T) {
	for _, s := range []string{"a", "wifi", "why is my laptop so slow?", "日本語テキスト"} {
		if got := Ratio(s, s); !almostEqual(got, 1.0) {
			t.Errorf("Ratio(%q, %q) = %v, want 1.0", s, s, got)
		}
	}
}

// Both-empty is pinned to 1.0: two empty strings are identical.
func TestRatioEmpty(t *testing.T) {
	if got := Ratio("", ""); !almostEqual(got, 1.0) {
		t.Errorf("Ratio(\"\", \"\") = %v, want 1.0", got)
	}
	if got := Ratio("", "vpn"); !almostEqual(got, 0.0) {
		t.Errorf("Ratio(\"\", \"vpn\") = %v, want 0.0", got)
	}
	if got := Ratio("vpn", ""); !almostEqual(got, 0.0) {
		t.Errorf("Ratio(\"vpn\", \"\") = %v, want 0.0", got)
	}
}

func TestRatioKnownValues(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"abcd", "bcde", 0.75},           // block "bcd": 2*3/8
		{"kitten", "sitting", 8.0 / 13},  // blocks "itt" + "n": 2*4/13
		{"abc", "def", 0.0},              // nothing shared
		{"wifi disconnecting", "wifi", 8.0 / 22},
		{"wifi disconnecting", "disconnect", 20.0 / 28},
	}
	for _, tt := range tests {
		if got := Ratio(tt.a, tt.b); !almostEqual(got, tt.want) {
			t.Errorf("Ratio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

// The ratio rewards one large shared substring over the same number of
// matching characters scattered through the string.
func TestRatioFavorsContiguousBlocks(t *testing.T) {
	contiguous := Ratio("vpn tunnel", "tunnel")
	if contiguous <= 0.5 {
		t.Errorf("Ratio(\"vpn tunnel\", \"tunnel\") = %v, want > 0.5", contiguous)
	}
}

func TestRatioSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"wifi disconnecting", "wireless"},
		{"outlook not syncing", "email sync issues"},
		{"smart card", "badge reader"},
	}
	for _, p := range pairs {
		// Tie-breaking between equal-length blocks depends on argument
		// order, so symmetry holds only up to a small tolerance.
		ab, ba := Ratio(p[0], p[1]), Ratio(p[1], p[0])
		if math.Abs(ab-ba) > 0.05 {
			t.Errorf("Ratio not symmetric for %q/%q: %v vs %v", p[0], p[1], ab, ba)
		}
	}
}

func TestRatioBounds(t *testing.T) {
	pairs := [][2]string{
		{"", "x"}, {"x", "x"}, {"short", "a much longer string entirely"},
		{"aaaa", "aa"}, {"vpn issue", "why is my vpn not connecting?"},
	}
	for _, p := range pairs {
		got := Ratio(p[0], p[1])
		if got < 0 || got > 1 {
			t.Errorf("Ratio(%q, %q) = %v, out of [0,1]", p[0], p[1], got)
		}
	}
}
