package mode_s

import (
	"fmt"

	"mode1090/lib/crc"
	"mode1090/lib/icao"
)

// decodeModeSChecksumAddr recovers the transmitter's ICAO address from the
// AP field of a DF whose parity is overlaid with the address rather than
// sent as a plain checksum (DF 0, 4, 5, 16, 20, 21, 24). For these DFs the
// transmitted parity equals CRC(payload) XOR ICAO, so the syndrome computed
// by a plain checksum (which XORs the transmitted parity against the
// recomputed CRC) *is* the ICAO address directly.
func (f *Frame) decodeModeSChecksumAddr() uint32 {
	syn, err := crc.Checksum(f.message, int(f.getMessageLengthBits()))
	if err != nil {
		return 0
	}
	return syn
}

// checkCrc is the frame parser's CRC/address admission gate, run once per
// frame before any DF-specific decode. It mirrors Score's taxonomy
// (spec.md §4.6) but mutates the frame: it fills in f.syndrome,
// f.correctedBits and f.score, and seeds the ICAO seen-set from the DFs
// that are allowed to (DF11 with IID=0, DF17/18 with no corrected bits).
func (f *Frame) checkCrc() error {
	bits := int(f.getMessageLengthBits())
	syn, err := crc.Checksum(f.message, bits)
	if err != nil {
		return err
	}
	f.syndrome = syn

	switch f.downLinkFormat {
	case 0, 4, 5, 16, 20, 21, 24:
		f.score = scoreAddressParity(syn, f.seen)
		if f.score < 0 {
			return fmt.Errorf("DF%d: candidate address %06X not in seen set", f.downLinkFormat, syn)
		}
		return nil

	case 11:
		score, corrected, err := f.checkCrcDF11(syn, bits)
		f.score = score
		f.correctedBits = corrected
		return err

	case 17, 18:
		score, corrected, err := f.checkCrcDF1718(syn, bits)
		f.score = score
		f.correctedBits = corrected
		return err
	}

	return nil
}

// scoreAddressParity is the shared DF0/4/5/16/20/21/24 rule: the syndrome
// is itself the candidate ICAO address, and its only test is presence in
// the seen-set.
func scoreAddressParity(candidate uint32, seen *icao.Filter) int {
	if seen == nil {
		// no seen-set configured (e.g. in isolated tests): can't validate,
		// so don't reject solely for that reason.
		return 1000
	}
	if seen.Test(candidate) {
		return 1000
	}
	return -1
}

func (f *Frame) checkCrcDF11(syn uint32, bits int) (score int, corrected int, err error) {
	if syn == 0 {
		if f.seen != nil {
			f.seen.Add(icaoOf(f.message))
		}
		return 2000, 0, nil
	}

	const iidMask = 0x7F
	residual := syn &^ iidMask

	addr := icaoOf(f.message)
	if residual == 0 {
		if f.seen == nil || f.seen.Test(addr) {
			return 1500, 0, nil
		}
		return 0, 0, fmt.Errorf("DF11: address %06X with IID!=0 not in seen set", addr)
	}

	if f.eng == nil {
		return 0, 0, fmt.Errorf("DF11: residual syndrome %06X and no repair engine configured", residual)
	}
	entry, ok := f.eng.Diagnose(residual, bits)
	if !ok {
		return 0, 0, fmt.Errorf("DF11: residual syndrome %06X has no diagnosis", residual)
	}

	fixed := append([]byte(nil), f.message...)
	crc.Fix(fixed, entry)
	addr = icaoOf(fixed)
	if f.seen != nil && !f.seen.Test(addr) {
		return 0, 0, fmt.Errorf("DF11: repaired address %06X not in seen set", addr)
	}
	f.message = fixed

	errs := len(entry.BitPositions)
	if errs >= 2 {
		return 1000 / errs, errs, nil
	}
	return 750, errs, nil
}

func (f *Frame) checkCrcDF1718(syn uint32, bits int) (score int, corrected int, err error) {
	if syn == 0 {
		if f.seen != nil {
			f.seen.Add(icaoOf(f.message))
		}
		return 3000, 0, nil
	}

	if f.eng == nil {
		return 0, 0, fmt.Errorf("DF%d: syndrome %06X and no repair engine configured", f.downLinkFormat, syn)
	}
	entry, ok := f.eng.Diagnose(syn, bits)
	if !ok {
		return 0, 0, fmt.Errorf("DF%d: syndrome %06X has no diagnosis", f.downLinkFormat, syn)
	}

	original := icaoOf(f.message)
	fixed := append([]byte(nil), f.message...)
	crc.Fix(fixed, entry)
	repaired := icaoOf(fixed)

	if repaired != original && f.seen != nil && !f.seen.Test(repaired) {
		return 0, 0, fmt.Errorf("DF%d: repaired address %06X not in seen set", f.downLinkFormat, repaired)
	}
	f.message = fixed

	errs := len(entry.BitPositions)
	return 2000 / errs, errs, nil
}

// icaoOf reads the 24-bit address out of bytes 1..3 of a DF11/17/18 frame.
func icaoOf(message []byte) uint32 {
	return uint32(message[1])<<16 | uint32(message[2])<<8 | uint32(message[3])
}
