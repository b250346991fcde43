// Package cpr decodes Compact Position Reporting lat/lon pairs (ADS-B's
// 17-bit-per-axis position encoding) into geographic coordinates, either
// globally (a matched even/odd pair) or relative to a known reference.
package cpr

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// cprMax is 2^17, the modulus of a raw CPR lat/lon value.
const cprMax = 131072.0

// Result codes mirror spec.md §7's failure taxonomy as a tagged result
// instead of dump1090's signed sentinel (-1 / -2).
type Result int

const (
	// Decoded means Point holds a valid position.
	Decoded Result = iota
	// OutOfRange means a decoded latitude fell outside [-90, 90], or a
	// Relative decode landed more than half a zone from its reference.
	OutOfRange
	// ZoneMismatch means the even/odd pair straddled an NL boundary.
	ZoneMismatch
)

var (
	// ErrOutOfRange is returned when a decoded latitude left [-90, 90], or
	// when a Relative decode is more than half a zone from its reference.
	ErrOutOfRange = errors.New("cpr: decoded latitude out of range")
	// ErrZoneMismatch is returned when the even/odd rlat pair disagree on
	// their number of longitude zones.
	ErrZoneMismatch = errors.New("cpr: even/odd latitude zone mismatch")
)

// NL returns the number of longitude zones at the given latitude (1..59),
// via the standard continuous approximation to Mode S's piecewise-constant
// table. NL is symmetric about the equator and monotonically
// non-increasing on [0, 90].
func NL(lat float64) int {
	if lat == 0 {
		return 59
	}
	a := math.Abs(lat)
	if a >= 87 {
		return 1
	}
	const nz = 15.0
	denom := math.Pow(math.Cos(math.Pi/180.0*a), 2)
	val := 1 - (1-math.Cos(math.Pi/(2*nz)))/denom
	if val < -1 {
		val = -1
	}
	if val > 1 {
		val = 1
	}
	return int(math.Floor(2 * math.Pi / math.Acos(val)))
}

// N is the number of longitude zones to actually use for a report with
// even/odd flag f at the given (already zone-resolved) latitude.
func N(lat float64, f int) int {
	n := NL(lat) - f
	if n < 1 {
		return 1
	}
	return n
}

// Dlon is the longitude zone width in degrees.
func Dlon(lat float64, f int, surface bool) float64 {
	span := 360.0
	if surface {
		span = 90.0
	}
	return span / float64(N(lat, f))
}

// mod is the always-positive remainder, as used throughout the CPR math.
func mod(a, b float64) float64 {
	r := math.Mod(a, b)
	if r < 0 {
		r += b
	}
	return r
}

func modInt(a, b int) int {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}

func normalizeLon(lon float64) float64 {
	return lon - math.Floor((lon+180)/360)*360
}

// Pair is one raw CPR-encoded report.
type Pair struct {
	Lat, Lon uint32
}

// GlobalAirborne decodes an even/odd pair of airborne CPR reports into a
// geographic position. f selects which of the two is more recent (0 =
// even, 1 = odd) and determines which rlat/ni is used for the longitude.
func GlobalAirborne(even, odd Pair, f int) (orb.Point, Result, error) {
	return globalDecode(even, odd, f, false, 0, 0)
}

// GlobalSurface decodes an even/odd pair of surface CPR reports. refLat
// resolves the surface quadrant's latitude hemisphere and refLon resolves
// its longitude quadrant (surface CPR only encodes 90 degrees of span per
// axis).
func GlobalSurface(even, odd Pair, f int, refLat, refLon float64) (orb.Point, Result, error) {
	return globalDecode(even, odd, f, true, refLat, refLon)
}

func globalDecode(even, odd Pair, f int, surface bool, refLat, refLon float64) (orb.Point, Result, error) {
	airDlat0, airDlat1 := 360.0/60.0, 360.0/59.0
	if surface {
		airDlat0, airDlat1 = 90.0/60.0, 90.0/59.0
	}

	lat0, lat1 := float64(even.Lat), float64(odd.Lat)
	lon0, lon1 := float64(even.Lon), float64(odd.Lon)

	j := math.Floor((59*lat0-60*lat1)/cprMax + 0.5)
	rlat0 := airDlat0 * (modInt2(j, 60) + lat0/cprMax)
	rlat1 := airDlat1 * (modInt2(j, 59) + lat1/cprMax)

	if rlat0 >= 270 {
		rlat0 -= 360
	}
	if rlat1 >= 270 {
		rlat1 -= 360
	}

	if surface {
		// Quadrant step: a latitude more than 45 degrees north of refLat
		// moves 90 degrees south. A reference at +90 therefore keeps the
		// northern solution and one at -90 selects the southern one (see
		// DESIGN.md).
		if rlat0-refLat > 45 {
			rlat0 -= 90
		}
		if rlat1-refLat > 45 {
			rlat1 -= 90
		}
	}

	if rlat0 < -90 || rlat0 > 90 || rlat1 < -90 || rlat1 > 90 {
		return orb.Point{}, OutOfRange, ErrOutOfRange
	}
	if NL(rlat0) != NL(rlat1) {
		return orb.Point{}, ZoneMismatch, ErrZoneMismatch
	}

	var rlat float64
	var ni int
	var m float64
	var nl int
	if f == 0 {
		rlat = rlat0
		nl = NL(rlat0)
		ni = N(rlat0, 0)
	} else {
		rlat = rlat1
		nl = NL(rlat1)
		ni = N(rlat1, 1)
	}

	m = math.Floor((lon0*float64(nl-1)-lon1*float64(nl))/cprMax + 0.5)

	var lonF float64
	if f == 0 {
		lonF = lon0
	} else {
		lonF = lon1
	}
	dlon := Dlon(rlat, f, surface)
	rlon := dlon * (modInt2(m, float64(ni)) + lonF/cprMax)

	if surface {
		rlon += math.Floor((refLon-rlon+45)/90) * 90
	}
	rlon = normalizeLon(rlon)

	return orb.Point{rlon, rlat}, Decoded, nil
}

func modInt2(a, b float64) float64 {
	r := math.Mod(a, b)
	if r < 0 {
		r += b
	}
	return r
}

// Relative decodes a single raw CPR report against a known reference
// position (the last decoded position for this aircraft, or the receiver's
// configured location). It fails if the result would be more than half a
// zone-width away from the reference, per spec.md §4.7.
func Relative(p Pair, f int, surface bool, refLat, refLon float64) (orb.Point, Result, error) {
	span := 360.0
	if surface {
		span = 90.0
	}
	zones := 60.0
	if f == 1 {
		zones = 59.0
	}
	airDlat := span / zones

	j := math.Floor(refLat/airDlat) + math.Floor(0.5+mod(refLat, airDlat)/airDlat-float64(p.Lat)/cprMax)
	rlat := airDlat * (j + float64(p.Lat)/cprMax)

	if rlat < -90 || rlat > 90 || math.Abs(rlat-refLat) > airDlat/2 {
		return orb.Point{}, OutOfRange, ErrOutOfRange
	}

	dlon := Dlon(rlat, f, surface)
	j2 := math.Floor(refLon/dlon) + math.Floor(0.5+mod(refLon, dlon)/dlon-float64(p.Lon)/cprMax)
	rlon := dlon * (j2 + float64(p.Lon)/cprMax)

	if math.Abs(rlon-refLon) > dlon/2 {
		return orb.Point{}, OutOfRange, ErrOutOfRange
	}
	rlon = normalizeLon(rlon)

	return orb.Point{rlon, rlat}, Decoded, nil
}
