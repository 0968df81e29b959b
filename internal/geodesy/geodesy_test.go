package geodesy

import (
	"math"
	"testing"
)

func TestLLHECEFRoundTrip(t *testing.T) {
	cases := []LLH{
		{Lat: 51.5, Lon: -0.12, Alt: 100},
		{Lat: -33.87, Lon: 151.21, Alt: 5000},
		{Lat: 0, Lon: 0, Alt: 0},
		{Lat: 89.9, Lon: 179.9, Alt: 12000},
		{Lat: -89.9, Lon: -179.9, Alt: -50},
	}
	for _, c := range cases {
		got := ECEFToLLH(LLHToECEF(c))
		if math.Abs(got.Lat-c.Lat) > 1e-8 || math.Abs(got.Lon-c.Lon) > 1e-8 || math.Abs(got.Alt-c.Alt) > 1e-3 {
			t.Errorf("round trip %+v -> %+v, want within tolerance", c, got)
		}
	}
}

func TestCPRNLBoundaries(t *testing.T) {
	cases := []struct {
		lat  float64
		want int
	}{
		{89.9999, 2},
		{90.0, 1},
		{10.47047130, 59},
		{0, 59},
	}
	for _, c := range cases {
		if got := CPRNL(c.lat); got != c.want {
			t.Errorf("CPRNL(%v) = %d, want %d", c.lat, got, c.want)
		}
	}
}

func TestCPREncodeStable(t *testing.T) {
	lat0, lon0 := CPREncode(51.5, -0.12, false)
	lat1, lon1 := CPREncode(51.5, -0.12, false)
	if lat0 != lat1 || lon0 != lon1 {
		t.Fatalf("CPREncode not deterministic: (%d,%d) vs (%d,%d)", lat0, lon0, lat1, lon1)
	}
	if lat0 >= 1<<17 || lon0 >= 1<<17 {
		t.Fatalf("CPR values exceed 17 bits: lat=%d lon=%d", lat0, lon0)
	}
}
