package tracker

import (
	"sync"
	"time"

	"github.com/paulmach/orb"

	"mode1090/lib/cpr"
)

// cprSlot holds one side (even or odd) of an aircraft's last raw CPR
// report, with its arrival time so the engine can tell a fresh pair from a
// stale one (spec.md §4.8's 10-second global-decode window).
type cprSlot struct {
	pair cpr.Pair
	at   time.Time
	ok   bool
}

// Aircraft is one tracked ICAO address's current state. It is owned by the
// Engine that created it; callers reading it from EachAircraft should treat
// it as a snapshot and not mutate it.
type Aircraft struct {
	mu sync.Mutex

	Icao uint32

	evenReport, oddReport cprSlot
	surfaceReport         bool // which kind of position the two sides hold

	Position     orb.Point
	HasPosition  bool
	PositionTime time.Time
	// RelativeOK is false when Position is a carried-forward stale value
	// (every decode attempt for the latest report failed) rather than a
	// fresh global or relative decode; a successful relative decode from a
	// single side sets it true. See SPEC_FULL's CPR supplement.
	RelativeOK bool

	Callsign string
	HasCallsign bool

	Altitude    int32
	HasAltitude bool

	Squawk    uint32
	HasSquawk bool

	Speed, Heading float64
	HasVelocity    bool
	VertRate       int32
	HasVertRate    bool

	OnGround      bool
	HasOnGround   bool

	signalRing [8]float64
	signalIdx  int
	signalN    int

	MessageCount uint64
	LastSeen     time.Time
}

// recordSignal folds one RSSI sample (dB) into the rolling ring used for
// the averaged signal-level gauge.
func (a *Aircraft) recordSignal(db float64) {
	a.signalRing[a.signalIdx%len(a.signalRing)] = db
	a.signalIdx++
	if a.signalN < len(a.signalRing) {
		a.signalN++
	}
}

// SignalDb returns the mean of the most recent (up to 8) RSSI samples, or
// 0 if none have been recorded yet.
func (a *Aircraft) SignalDb() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.signalN == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < a.signalN; i++ {
		sum += a.signalRing[i]
	}
	return sum / float64(a.signalN)
}

// updatePosition stores a raw CPR report on the correct even/odd side and
// attempts to decode it per spec.md §4.8: global decode when both sides
// are fresh (arrived within 10s of each other), otherwise a relative decode
// against the last good position (if within ttl) or the engine's
// configured receiver location. A stale position is kept (RelativeOK set
// false) rather than blanked when every decode attempt fails.
func (a *Aircraft) updatePosition(lat, lon uint32, oddFlag byte, surface bool, now time.Time, refLat, refLon float64, hasRef bool, ttl time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.surfaceReport = surface
	slot := cprSlot{pair: cpr.Pair{Lat: lat, Lon: lon}, at: now, ok: true}
	if oddFlag == 1 {
		a.oddReport = slot
	} else {
		a.evenReport = slot
	}

	f := int(oddFlag)

	if a.evenReport.ok && a.oddReport.ok && absDuration(a.evenReport.at.Sub(a.oddReport.at)) <= 10*time.Second {
		var pos orb.Point
		var result cpr.Result
		var err error
		if surface {
			rl, rn := refLat, refLon
			if !hasRef && a.HasPosition {
				rl, rn = a.Position.Lat(), a.Position.Lon()
			}
			pos, result, err = cpr.GlobalSurface(a.evenReport.pair, a.oddReport.pair, f, rl, rn)
		} else {
			pos, result, err = cpr.GlobalAirborne(a.evenReport.pair, a.oddReport.pair, f)
		}
		_ = result
		if err == nil {
			a.Position = pos
			a.HasPosition = true
			a.PositionTime = now
			a.RelativeOK = true
			return
		}
	}

	// Global decode unavailable or failed: fall back to relative decode
	// against the last good position (if still within ttl) or the
	// receiver's configured reference.
	rl, rn, have := refLat, refLon, hasRef
	if a.HasPosition && now.Sub(a.PositionTime) <= ttl {
		rl, rn, have = a.Position.Lat(), a.Position.Lon(), true
	}
	if have {
		pair := a.evenReport.pair
		if oddFlag == 1 {
			pair = a.oddReport.pair
		}
		pos, _, err := cpr.Relative(pair, f, surface, rl, rn)
		if err == nil {
			a.Position = pos
			a.HasPosition = true
			a.PositionTime = now
			a.RelativeOK = true
			return
		}
	}

	// Every attempt failed (or there was nothing to try against): keep any
	// previously-decoded position visible but mark it stale.
	if a.HasPosition {
		a.RelativeOK = false
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
