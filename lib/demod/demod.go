// Package demod implements the two Mode S / ADS-B preamble detectors and
// PPM demodulators: a 2 MS/s variant where each magnitude sample is exactly
// one half-symbol, and a 2.4 MS/s variant that runs a 5-phase correlator
// over 6 samples per 5 symbols. Both scan a magnitude buffer (as produced by
// lib/magnitude) and emit Candidate frames for the CRC engine and frame
// parser to validate.
package demod

import "mode1090/lib/magnitude"

// allowedDFs is the fixed set of ICAO-defined Downlink Formats a guessed DF
// bit is checked against, per spec.md §4.2 step 5.
var allowedDFs = map[byte]bool{
	0: true, 4: true, 5: true, 11: true, 16: true, 17: true,
	18: true, 19: true, 20: true, 21: true, 22: true, 24: true,
}

// Candidate is one demodulated frame awaiting CRC validation.
type Candidate struct {
	// Bytes holds exactly Bits/8 bytes of demodulated payload.
	Bytes []byte
	// Bits is 56 or 112, the declared frame length.
	Bits int
	// SNRdB is the estimated signal-to-noise ratio, in the log-lut's
	// native 100*log10(signal/noise) units.
	SNRdB int
	// StartSample is the index into the scanned buffer where the preamble
	// began.
	StartSample int
	// Phase is the winning 2.4 MS/s correlator phase (4..8), or -1 for a
	// candidate produced by the 2 MS/s demodulator.
	Phase int
	// EncodingErrors counts symbol pairs that sliced exactly equal (an
	// ambiguous bit), not counting DF bits that were resolved by guessing.
	EncodingErrors int
}

func bitsForDF(df byte) int {
	if df >= 16 {
		return 112
	}
	return 56
}

// snrOf converts accumulated signal and noise energy into the log-lut's
// 100*log10(ratio) units, right-shifting both operands until they fit a
// 16-bit magnitude lookup, per spec.md §4.2 step 6 / §4.3 step 6.
func snrOf(sig, noise uint32) int {
	for sig > 0xFFFF || noise > 0xFFFF {
		sig >>= 1
		noise >>= 1
	}
	if noise == 0 {
		noise = 1
	}
	return int(magnitude.Log10[sig]) - int(magnitude.Log10[noise])
}

// passesSquelch reports whether an estimated SNR (in the snrOf units above)
// clears the configured squelch floor, per the literal "2*snr > 10*squelch"
// comparison in spec.md §4.2 step 6.
func passesSquelch(snr int, squelchDB float64) bool {
	return 2*snr > int(10*squelchDB)
}
