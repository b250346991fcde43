package mode_s

import (
	"mode1090/lib/crc"
	"mode1090/lib/icao"
)

// Score computes a candidate message's plausibility (spec.md §4.6) without
// mutating any state or attempting an in-place repair. It's the
// analysis-time counterpart to checkCrc/Decode, useful for diagnostics and
// statistics independent of a live Frame (e.g. scoring a buffered
// candidate from lib/demod before deciding whether to build a Frame at
// all).
func Score(message []byte, downLinkFormat byte, bits int, eng *crc.Engine, seen *icao.Filter) int {
	syn, err := crc.Checksum(message, bits)
	if err != nil {
		return -1
	}

	switch downLinkFormat {
	case 0, 4, 5, 16, 20, 21, 24:
		return scoreAddressParity(syn, seen)
	case 11:
		return scoreDF11(message, syn, bits, eng, seen)
	case 17, 18:
		return scoreDF1718(message, syn, bits, eng, seen)
	default:
		return -1
	}
}

func scoreDF11(message []byte, syn uint32, bits int, eng *crc.Engine, seen *icao.Filter) int {
	if syn == 0 {
		return 2000
	}

	const iidMask = 0x7F
	residual := syn &^ iidMask
	if residual == 0 {
		if seen == nil || seen.Test(icaoOf(message)) {
			return 1500
		}
		return -1
	}

	if eng == nil {
		return -1
	}
	entry, ok := eng.Diagnose(residual, bits)
	if !ok {
		return -1
	}
	fixed := append([]byte(nil), message...)
	crc.Fix(fixed, entry)
	if seen != nil && !seen.Test(icaoOf(fixed)) {
		return -1
	}

	errs := len(entry.BitPositions)
	if errs >= 2 {
		return 1000 / errs
	}
	return 750
}

func scoreDF1718(message []byte, syn uint32, bits int, eng *crc.Engine, seen *icao.Filter) int {
	if syn == 0 {
		return 3000
	}

	if eng == nil {
		return -1
	}
	entry, ok := eng.Diagnose(syn, bits)
	if !ok {
		return -1
	}

	original := icaoOf(message)
	fixed := append([]byte(nil), message...)
	crc.Fix(fixed, entry)
	repaired := icaoOf(fixed)
	if repaired != original && seen != nil && !seen.Test(repaired) {
		return -1
	}

	return 2000 / len(entry.BitPositions)
}
