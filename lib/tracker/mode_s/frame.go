package mode_s

import (
	"fmt"
	"sync"
	"time"

	"mode1090/lib/crc"
	"mode1090/lib/icao"
)

// Frame is a single demodulated and parsed Mode S message. It is built
// either from an AVR/MLAT text line (NewFrame) or directly from demodulated
// bytes (NewFrameFromBytes), and is safe to Decode() exactly once; repeat
// calls are a no-op.
type Frame struct {
	decodeLock *sync.Mutex

	full string
	mode string

	beastTimeStamp string
	beastTicks     uint64
	beastTicksNs   uint64
	timeStamp      time.Time

	message   []byte
	fromBytes bool

	hasDecoded bool

	eng  *crc.Engine
	seen *icao.Filter

	raw string

	downLinkFormat byte
	ca             byte
	cc             byte
	fs             byte
	vs             byte
	ri             byte
	sl             byte
	dr             byte
	um             byte

	icao     uint32
	identity uint32

	ac            uint32
	acM           bool
	acQ           bool
	unit          int
	altitude      int32
	validAltitude bool

	validVerticalStatus bool
	onGround            bool
	alert               bool
	special             string

	flight []byte

	meType    byte
	meSubType byte

	rawLat, rawLon uint32
	cprFlag        byte
	validPosition  bool
	surface        bool

	velocityEW, velocityNS int32
	validVelocity          bool
	speed, heading         float64
	validHeading           bool
	vertRate               int32
	validVertRate          bool

	bdsCode byte

	syndrome      uint32
	correctedBits int
	score         int
}

// NewFrame builds a Frame from one AVR/MLAT text line. eng and seen may be
// nil, in which case CRC repair and address-seen-set scoring are skipped.
func NewFrame(rawFrame string, t time.Time, eng *crc.Engine, seen *icao.Filter) *Frame {
	return &Frame{
		decodeLock: &sync.Mutex{},
		full:       rawFrame,
		timeStamp:  t,
		eng:        eng,
		seen:       seen,
	}
}

// NewFrameFromBytes builds a Frame directly from a demodulated message, as
// produced by lib/demod and framed by lib/tracker/beast.
func NewFrameFromBytes(beastTicks uint64, message []byte, t time.Time, eng *crc.Engine, seen *icao.Filter) Frame {
	return Frame{
		decodeLock: &sync.Mutex{},
		mode:       "MLAT",
		beastTicks: beastTicks,
		timeStamp:  t,
		message:    message,
		fromBytes:  true,
		eng:        eng,
		seen:       seen,
	}
}

// Icao returns the frame's 24-bit ICAO address, or 0 if it could not be
// determined (DF types that carry no address field).
func (f *Frame) Icao() uint32 { return f.icao }

// IcaoStr renders the ICAO address as six uppercase hex digits.
func (f *Frame) IcaoStr() string { return fmt.Sprintf("%06X", f.icao) }

// DownLinkType returns the 5-bit Downlink Format.
func (f *Frame) DownLinkType() byte { return f.downLinkFormat }

// MessageType returns the DF17/18 ME type (top 5 bits of the ME field), or
// 0 for any other DF.
func (f *Frame) MessageType() byte { return f.meType }

// MessageSubType returns the ME subtype, meaningful only for a handful of
// ME types (19, 23, 28).
func (f *Frame) MessageSubType() byte { return f.meSubType }

// RawString renders the frame's raw bytes as uppercase hex.
func (f *Frame) RawString() string { return fmt.Sprintf("%X", f.message) }

// Score returns the plausibility score computed during parse; see Score().
func (f *Frame) Score() int { return f.score }

// CorrectedBits returns how many bits the CRC engine repaired, 0 if none.
func (f *Frame) CorrectedBits() int { return f.correctedBits }

// OnGround reports the frame's ground/airborne indicator and whether it is
// valid for this DF.
func (f *Frame) OnGround() (bool, bool) { return f.onGround, f.validVerticalStatus }

// Altitude returns the decoded altitude (in f.unit) and its validity.
func (f *Frame) Altitude() (int32, bool) { return f.altitude, f.validAltitude }

// Identity returns the decoded 4-digit octal squawk.
func (f *Frame) Identity() uint32 { return f.identity }

// Callsign returns the decoded 8-character callsign, including any trailing
// space padding, or nil if this frame doesn't carry one.
func (f *Frame) Callsign() []byte { return f.flight }

// Position returns the raw 17-bit CPR lat/lon pair, the even/odd flag, the
// surface/airborne indicator, and whether a position was present at all.
func (f *Frame) Position() (lat, lon uint32, oddFlag byte, surface, ok bool) {
	return f.rawLat, f.rawLon, f.cprFlag, f.surface, f.validPosition
}

// Velocity returns decoded ground speed (kt), heading (degrees 0..360) and
// vertical rate (ft/min), each with its own validity flag.
func (f *Frame) Velocity() (speed, heading float64, headingValid bool, vertRate int32, vertRateValid, speedValid bool) {
	return f.speed, f.heading, f.validHeading, f.vertRate, f.validVertRate, f.validVelocity
}
