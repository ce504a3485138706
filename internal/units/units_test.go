package units

import "testing"

func TestDensityPerKm2(t *testing.T) {
	// A full cell is 1/16 km², so 10 people per cell is 160 per km².
	if got := DensityPerKm2(10); got != 160 {
		t.Errorf("DensityPerKm2(10) = %v, want 160", got)
	}
	if got := DensityPerKm2(0); got != 0 {
		t.Errorf("DensityPerKm2(0) = %v, want 0", got)
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1k"},
		{12500, "13k"},
		{1_200_000, "1.2M"},
	}
	for _, tt := range tests {
		if got := FormatCount(tt.in); got != tt.want {
			t.Errorf("FormatCount(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDensity(t *testing.T) {
	if got := FormatDensity(160); got != "160.0 /km²" {
		t.Errorf("FormatDensity = %q", got)
	}
}
