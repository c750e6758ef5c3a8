package chunker

import (
	"strings"
	"testing"
)

func TestSplitEmpty(t *testing.T) {
	for _, tt := range []struct {
		text     string
		max, ovl int
	}{
		{"", 100, 10},
		{"   \n\t  ", 100, 10},
		{"", 1, 0},
	} {
		if got := Split(tt.text, tt.max, tt.ovl); got != nil {
			t.Errorf("Split(%q, %d, %d) = %v, want nil", tt.text, tt.max, tt.ovl, got)
		}
	}
}

func TestSplitSingleChunk(t *testing.T) {
	got := Split("hello world", 100, 10)
	if len(got) != 1 || got[0] != "hello world" {
		t.Fatalf("Split = %v, want [\"hello world\"]", got)
	}
}

func TestSplitOverlap(t *testing.T) {
	text := "abcdefghij" // 10 chars
	got := Split(text, 4, 2)
	// step = 2: windows at 0,2,4,6,8 -> abcd cdef efgh ghij ij
	want := []string{"abcd", "cdef", "efgh", "ghij", "ij"}
	if len(got) != len(want) {
		t.Fatalf("Split = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, got[i], want[i])
		}
	}
}

// Every character of the input must land in at least one chunk when
// overlap < maxChars, and chunk start offsets strictly increase.
func TestSplitCoverage(t *testing.T) {
	text := strings.Repeat("abcdefghijklmnopqrstuvwxyz", 40)
	chunks := Split(text, 100, 20)

	var rebuilt strings.Builder
	prevStart := -1
	offset := 0
	for _, ch := range chunks {
		start := strings.Index(text[offset:], ch) + offset
		if start <= prevStart {
			t.Fatalf("chunk start %d does not increase past %d", start, prevStart)
		}
		prevStart = start
		offset = start
		rebuilt.WriteString(ch)
	}

	// With step = 80 and window 100, consecutive chunks overlap by 20 chars,
	// so total chunk length must be at least the input length.
	if rebuilt.Len() < len(text) {
		t.Errorf("chunks cover %d chars, input has %d", rebuilt.Len(), len(text))
	}
	last := chunks[len(chunks)-1]
	if !strings.HasSuffix(text, last) {
		t.Errorf("final chunk %q is not a suffix of the input", last)
	}
}

// Split is a pure function: identical input yields identical output.
func TestSplitIdempotent(t *testing.T) {
	text := strings.Repeat("endpoint support knowledge base ", 100)
	a := Split(text, 256, 32)
	b := Split(text, 256, 32)
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestSplitDegenerateStep(t *testing.T) {
	// overlap >= maxChars clamps step to 1 instead of looping forever.
	got := Split("abc", 2, 5)
	want := []string{"ab", "bc", "c"}
	if len(got) != len(want) {
		t.Fatalf("Split = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, got[i], want[i])
		}
	}
}
