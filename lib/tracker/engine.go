package tracker

import (
	"sync"
	"time"

	"mode1090/lib/tracker/beast"
	"mode1090/lib/tracker/mode_s"
	"mode1090/lib/tracker/sbs1"
)

// DefaultTTL is how long an aircraft record survives with no updates
// before CleanStale removes it, per spec.md §3.
const DefaultTTL = 300 * time.Second

// Engine is the aggregate named in spec.md §9: one value owning the whole
// aircraft table, passed by reference to whatever reads or feeds it.
type Engine struct {
	mu       sync.RWMutex
	aircraft map[uint32]*Aircraft

	RefLat, RefLon float64
	HasRef         bool
}

// NewEngine builds an empty Engine. hasRef should be false if no receiver
// location is configured; relative CPR decode then only falls back to an
// aircraft's own last-known position.
func NewEngine(refLat, refLon float64, hasRef bool) *Engine {
	return &Engine{
		aircraft: make(map[uint32]*Aircraft),
		RefLat:   refLat,
		RefLon:   refLon,
		HasRef:   hasRef,
	}
}

func (e *Engine) getOrCreate(icao uint32) *Aircraft {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.aircraft[icao]
	if !ok {
		a = &Aircraft{Icao: icao}
		e.aircraft[icao] = a
	}
	return a
}

// HandleEvent merges one decoded FrameEvent into the aircraft table. It
// type-switches on the concrete Frame (mode_s, beast or sbs1) to pull out
// whichever fields that wire format carries.
func (e *Engine) HandleEvent(fe *FrameEvent) {
	if fe == nil {
		return
	}
	frame := fe.Frame()
	if frame == nil {
		return
	}

	switch f := frame.(type) {
	case *mode_s.Frame:
		e.updateFromModeS(f, 0)
	case *beast.Frame:
		if avr := f.AvrFrame(); avr != nil {
			e.updateFromModeS(avr, f.SignalRssi())
		}
	case *sbs1.Frame:
		e.updateFromSbs1(f)
	}
}

func (e *Engine) updateFromModeS(f *mode_s.Frame, signalDb float64) {
	icao := f.Icao()
	if icao == 0 {
		return
	}
	a := e.getOrCreate(icao)

	a.mu.Lock()
	now := f.TimeStamp()
	if now.IsZero() {
		now = time.Now()
	}
	a.LastSeen = now
	a.MessageCount++
	if signalDb != 0 {
		a.recordSignal(signalDb)
	}

	if onGround, ok := f.OnGround(); ok {
		a.OnGround = onGround
		a.HasOnGround = true
	}
	if alt, ok := f.Altitude(); ok {
		a.Altitude = alt
		a.HasAltitude = true
	}
	if squawk := f.Identity(); squawk != 0 {
		a.Squawk = squawk
		a.HasSquawk = true
	}
	if cs := f.Callsign(); cs != nil {
		a.Callsign = trimCallsign(cs)
		a.HasCallsign = true
	}
	speed, heading, headingOK, vertRate, vertRateOK, speedOK := f.Velocity()
	if speedOK {
		a.Speed = speed
		a.HasVelocity = true
	}
	if headingOK {
		a.Heading = heading
	}
	if vertRateOK {
		a.VertRate = vertRate
		a.HasVertRate = true
	}
	a.mu.Unlock()

	lat, lon, oddFlag, surface, hasPos := f.Position()
	if hasPos {
		a.updatePosition(lat, lon, oddFlag, surface, now, e.RefLat, e.RefLon, e.HasRef, DefaultTTL)
	}
}

func (e *Engine) updateFromSbs1(f *sbs1.Frame) {
	icao := f.Icao()
	if icao == 0 {
		return
	}
	a := e.getOrCreate(icao)

	a.mu.Lock()
	now := f.Generated
	if now.IsZero() {
		now = time.Now()
	}
	a.LastSeen = now
	a.MessageCount++
	if f.HasCallsign {
		a.Callsign = f.Callsign
		a.HasCallsign = true
	}
	if f.HasAltitude {
		a.Altitude = f.Altitude
		a.HasAltitude = true
	}
	if f.HasSquawk {
		a.Squawk = f.Squawk
		a.HasSquawk = true
	}
	if f.HasVelocity {
		a.Speed = f.GroundSpeed
		a.Heading = f.Track
		a.HasVelocity = true
	}
	if f.HasVertRate {
		a.VertRate = f.VerticalRate
		a.HasVertRate = true
	}
	if f.HasOnGround {
		a.OnGround = f.OnGround
		a.HasOnGround = true
	}
	a.mu.Unlock()

	if f.HasPosition {
		a.mu.Lock()
		a.Position = f.Position
		a.HasPosition = true
		a.PositionTime = now
		a.RelativeOK = true
		a.mu.Unlock()
	}
}

func trimCallsign(b []byte) string {
	i := len(b)
	for i > 0 && (b[i-1] == ' ' || b[i-1] == 0) {
		i--
	}
	return string(b[:i])
}

// EachAircraft calls fn once per tracked aircraft. fn must not call back
// into the Engine.
func (e *Engine) EachAircraft(fn func(*Aircraft)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, a := range e.aircraft {
		fn(a)
	}
}

// Len returns the number of currently tracked aircraft.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.aircraft)
}

// CleanStale removes any aircraft whose LastSeen is older than ttl.
func (e *Engine) CleanStale(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)
	e.mu.Lock()
	defer e.mu.Unlock()
	removed := 0
	for icao, a := range e.aircraft {
		a.mu.Lock()
		last := a.LastSeen
		a.mu.Unlock()
		if last.Before(cutoff) {
			delete(e.aircraft, icao)
			removed++
		}
	}
	return removed
}
