package metrics

import "testing"

func TestParseBitrate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"204.5kbits/s", 204.5, true},
		{"  1024kbits/s ", 1024, true},
		{"N/A", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseBitrate(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseBitrate(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
