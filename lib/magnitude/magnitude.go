// Package magnitude converts interleaved 8-bit I/Q sample pairs into the
// 16-bit magnitude samples the demodulators in lib/demod operate on.
package magnitude

import "math"

// MaxFrameSamples is the longest run of samples a demodulator may read past
// the nominal end of a block while looking for the tail of a 112-bit frame.
// It must cover a full long Mode S message at the slower of the two
// supported sample rates (8+112 symbols at 2 samples/symbol, with margin).
const MaxFrameSamples = 258

// lut maps a packed (I,Q) byte pair (I in the high byte, Q in the low byte)
// to a magnitude scaled to use the full uint16 range. Built once at init.
var lut [65536]uint16

// Log10 maps a 16-bit magnitude to round(100*log10(x)), used by demodulator
// SNR computation so it never needs a floating point log at decode time.
var Log10 [65536]uint16

func init() {
	// The device format is unsigned, offset-binary: 127.5 is "zero". The
	// maximum distance from that center is 127.5*sqrt(2); K rescales so
	// that distance maps to 65535.
	const center = 127.5
	maxDist := math.Hypot(center, center)
	k := 65535.0 / maxDist

	for i := 0; i < 256; i++ {
		di := float64(i) - center
		for q := 0; q < 256; q++ {
			dq := float64(q) - center
			mag := math.Hypot(di, dq) * k
			if mag > 65535 {
				mag = 65535
			}
			lut[uint16(i)<<8|uint16(q)] = uint16(math.Round(mag))
		}
	}

	Log10[0] = 0
	for i := 1; i < 65536; i++ {
		v := 100 * math.Log10(float64(i))
		if v < 0 {
			v = 0
		}
		Log10[i] = uint16(math.Round(v))
	}
}

// Buffer is a reusable magnitude block. Each call to ComputeInto prefixes
// the freshly computed samples with the last MaxFrameSamples samples of the
// previous call, so a preamble that starts in the trailing margin of one
// block is re-examined with enough trailing context to complete in the
// next, instead of being truncated at the block boundary.
type Buffer struct {
	samples []uint16
	// NominalOffset is the index within Samples() where this call's fresh
	// data begins; everything before it is carried-over trailing context
	// from the previous call (MaxFrameSamples zero samples on the very
	// first call), so it is MaxFrameSamples after every call.
	NominalOffset int
}

// NewBuffer allocates a Buffer sized to hold n nominal samples plus the
// leading carry-over region.
func NewBuffer(n int) *Buffer {
	b := &Buffer{samples: make([]uint16, 0, n+MaxFrameSamples)}
	return b
}

// ComputeInto converts iq (interleaved I,Q bytes, len(iq)/2 samples) into
// b's sample slice, prefixed with the trailing samples of the previous
// block. The returned slice is the full scan buffer. Reading
// MaxFrameSamples past an index stays inside it for every index except the
// last MaxFrameSamples; those samples become the carry at the head of the
// next call's buffer, where a full frame's worth of samples follows them.
func (b *Buffer) ComputeInto(iq []byte) []uint16 {
	n := len(iq) / 2

	var carry []uint16
	if len(b.samples) >= MaxFrameSamples {
		carry = append([]uint16(nil), b.samples[len(b.samples)-MaxFrameSamples:]...)
	} else {
		carry = make([]uint16, MaxFrameSamples)
	}

	if cap(b.samples) < len(carry)+n {
		b.samples = make([]uint16, len(carry)+n)
	} else {
		b.samples = b.samples[:len(carry)+n]
	}
	copy(b.samples, carry)

	fresh := b.samples[len(carry):]
	for i := 0; i < n; i++ {
		iVal := iq[2*i]
		qVal := iq[2*i+1]
		fresh[i] = lut[uint16(iVal)<<8|uint16(qVal)]
	}

	b.NominalOffset = len(carry)
	return b.samples
}

// Lookup returns the precomputed magnitude for a single (I,Q) byte pair,
// mostly useful for tests that want to sanity check the LUT directly.
func Lookup(i, q byte) uint16 {
	return lut[uint16(i)<<8|uint16(q)]
}
