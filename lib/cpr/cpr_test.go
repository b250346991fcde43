package cpr

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestNLSymmetryAndMonotonic(t *testing.T) {
	for lat := 0.0; lat <= 90; lat += 0.5 {
		if NL(lat) != NL(-lat) {
			t.Fatalf("NL(%v)=%d != NL(%v)=%d", lat, NL(lat), -lat, NL(-lat))
		}
	}
	prev := NL(0.0)
	for lat := 0.5; lat <= 90; lat += 0.5 {
		cur := NL(lat)
		if cur > prev {
			t.Fatalf("NL not monotonically non-increasing at lat=%v: prev=%d cur=%d", lat, prev, cur)
		}
		prev = cur
	}
}

func TestGlobalAirborneEven(t *testing.T) {
	even := Pair{Lat: 80536, Lon: 9432}
	odd := Pair{Lat: 61720, Lon: 9192}

	p, res, err := GlobalAirborne(even, odd, 0)
	if err != nil || res != Decoded {
		t.Fatalf("unexpected result: %v %v", res, err)
	}
	if !almostEqual(p.Lat(), 51.686646) || !almostEqual(p.Lon(), 0.700156) {
		t.Errorf("got (%.6f, %.6f), want (51.686646, 0.700156)", p.Lat(), p.Lon())
	}
}

func TestGlobalAirborneOdd(t *testing.T) {
	even := Pair{Lat: 80536, Lon: 9432}
	odd := Pair{Lat: 61720, Lon: 9192}

	p, res, err := GlobalAirborne(even, odd, 1)
	if err != nil || res != Decoded {
		t.Fatalf("unexpected result: %v %v", res, err)
	}
	if !almostEqual(p.Lat(), 51.686763) || !almostEqual(p.Lon(), 0.701294) {
		t.Errorf("got (%.6f, %.6f), want (51.686763, 0.701294)", p.Lat(), p.Lon())
	}
}

func TestGlobalSurface(t *testing.T) {
	even := Pair{Lat: 105730, Lon: 9259}
	odd := Pair{Lat: 29693, Lon: 8997}

	cases := []struct {
		name           string
		refLat, refLon float64
		wantLat        float64
		wantLon        float64
	}{
		{"near ref", 52.00, 0.00, 52.209984, 0.176601},
		{"far lon ref", 52.00, 130.00, 52.209984, 90.176601},
		{"wrong hemisphere", 7.00, 0.00, -37.790016, 0.135269},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p, res, err := GlobalSurface(even, odd, 0, c.refLat, c.refLon)
			if err != nil || res != Decoded {
				t.Fatalf("unexpected result: %v %v", res, err)
			}
			if !almostEqual(p.Lat(), c.wantLat) || !almostEqual(p.Lon(), c.wantLon) {
				t.Errorf("got (%.6f, %.6f), want (%.6f, %.6f)", p.Lat(), p.Lon(), c.wantLat, c.wantLon)
			}
		})
	}
}

func TestRelativeAirborneEven(t *testing.T) {
	p, res, err := Relative(Pair{Lat: 80536, Lon: 9432}, 0, false, 52.00, 0.00)
	if err != nil || res != Decoded {
		t.Fatalf("unexpected result: %v %v", res, err)
	}
	if !almostEqual(p.Lat(), 51.686646) || !almostEqual(p.Lon(), 0.700156) {
		t.Errorf("got (%.6f, %.6f), want (51.686646, 0.700156)", p.Lat(), p.Lon())
	}
}

func TestGlobalAirborneZoneMismatch(t *testing.T) {
	// Artificial pair whose even/odd rlat land in different NL zones:
	// rlat0 ~= 51.870 (NL 37) and rlat1 ~= 51.920 (NL 36).
	even := Pair{Lat: 84541, Lon: 0}
	odd := Pair{Lat: 66730, Lon: 0}
	_, res, err := GlobalAirborne(even, odd, 0)
	if err == nil {
		t.Fatalf("expected a failure result, got success")
	}
	if res != ZoneMismatch && res != OutOfRange {
		t.Errorf("expected ZoneMismatch or OutOfRange, got %v", res)
	}
}
