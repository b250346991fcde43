package demod

import "mode1090/lib/crc"

// The five phase correlators below each form a zero-sum linear combination
// of 3-4 adjacent magnitude samples, so a constant DC offset added to every
// sample cancels out of the result (spec.md §8 property 8). Grounded on
// dump1090's slicePhase0..4, by way of saviobatista/go1090's direct port.
func slicePhase0(m []uint16) int {
	return 5*int(m[0]) - 3*int(m[1]) - 2*int(m[2])
}

func slicePhase1(m []uint16) int {
	return 4*int(m[0]) - int(m[1]) - 3*int(m[2])
}

func slicePhase2(m []uint16) int {
	return 3*int(m[0]) + int(m[1]) - 4*int(m[2])
}

func slicePhase3(m []uint16) int {
	return 2*int(m[0]) + 3*int(m[1]) - 5*int(m[2])
}

func slicePhase4(m []uint16) int {
	return int(m[0]) + 5*int(m[1]) - 5*int(m[2]) - int(m[3])
}

func bitValue(correlation int) byte {
	if correlation > 0 {
		return 1
	}
	return 0
}

// Demodulate2400 scans samples (6 samples : 5 symbols, 1090ES at 2.4 MS/s)
// for preambles, demodulating each candidate with every plausible phase and
// keeping the highest-scoring result. Each phase's score is scoreMessage plus
// the preamble SNR/5; scoreMessage gives -1 to a nonzero syndrome that eng
// cannot diagnose (any nonzero syndrome when eng is nil), and a candidate is
// kept only when its best total is above zero.
func Demodulate2400(samples []uint16, squelchDB float64, phaseEnhance bool, eng *crc.Engine) []Candidate {
	var out []Candidate
	n := len(samples)

	for j := 0; j+240 < n; j++ {
		preamble := samples[j : j+19]
		if !(preamble[0] < preamble[1] && preamble[12] > preamble[13]) {
			continue
		}

		high, baseSignal, baseNoise, ok := matchPreamble(preamble)
		if !ok {
			continue
		}
		if baseSignal*2 < 3*baseNoise {
			continue
		}
		if !quietBitsOK(preamble, high) {
			continue
		}

		snr := snrOf(baseSignal, baseNoise)
		if !passesSquelch(snr, squelchDB) {
			continue
		}

		best, bestOK := tryAllPhases(samples[j:], j, snr, phaseEnhance, eng)
		if !bestOK {
			continue
		}
		out = append(out, best)
		j += (8+best.Bits/8)*12/5 - 1
	}

	return out
}

// matchPreamble checks the five candidate preamble shapes (dump1090's
// phases 3..7) against samples [0..18] of a window and returns the
// threshold and signal/noise sums of whichever one matches.
func matchPreamble(p []uint16) (high, baseSignal, baseNoise uint32, ok bool) {
	switch {
	case p[1] > p[2] && p[2] < p[3] && p[3] > p[4] &&
		p[8] < p[9] && p[9] > p[10] && p[10] < p[11]:
		high = (uint32(p[1]) + uint32(p[3]) + uint32(p[9]) + uint32(p[11]) + uint32(p[12])) / 4
		baseSignal = uint32(p[1]) + uint32(p[3]) + uint32(p[9])
		baseNoise = uint32(p[5]) + uint32(p[6]) + uint32(p[7])
		return high, baseSignal, baseNoise, true
	case p[1] > p[2] && p[2] < p[3] && p[3] > p[4] &&
		p[8] < p[9] && p[9] > p[10] && p[11] < p[12]:
		high = (uint32(p[1]) + uint32(p[3]) + uint32(p[9]) + uint32(p[12])) / 4
		baseSignal = uint32(p[1]) + uint32(p[3]) + uint32(p[9]) + uint32(p[12])
		baseNoise = uint32(p[5]) + uint32(p[6]) + uint32(p[7]) + uint32(p[8])
		return high, baseSignal, baseNoise, true
	case p[2] > p[3] && p[3] < p[4] && p[4] > p[5] &&
		p[9] < p[10] && p[10] > p[11] && p[11] < p[12]:
		high = (uint32(p[2]) + uint32(p[4]) + uint32(p[10]) + uint32(p[12])) / 4
		baseSignal = uint32(p[2]) + uint32(p[4]) + uint32(p[10])
		baseNoise = uint32(p[6]) + uint32(p[7]) + uint32(p[8])
		return high, baseSignal, baseNoise, true
	case p[2] > p[3] && p[3] < p[4] && p[4] > p[5] &&
		p[9] < p[10] && p[10] > p[11] && p[12] < p[13]:
		high = (uint32(p[2]) + uint32(p[4]) + uint32(p[10]) + uint32(p[13])) / 4
		baseSignal = uint32(p[2]) + uint32(p[4]) + uint32(p[10]) + uint32(p[13])
		baseNoise = uint32(p[6]) + uint32(p[7]) + uint32(p[8]) + uint32(p[9])
		return high, baseSignal, baseNoise, true
	case p[0] > p[1] && p[1] < p[2] && p[2] > p[3] &&
		p[7] < p[8] && p[8] > p[9] && p[9] < p[10]:
		high = (uint32(p[0]) + uint32(p[2]) + uint32(p[8]) + uint32(p[10])) / 4
		baseSignal = uint32(p[0]) + uint32(p[2]) + uint32(p[8]) + uint32(p[10])
		baseNoise = uint32(p[4]) + uint32(p[5]) + uint32(p[6]) + uint32(p[7])
		return high, baseSignal, baseNoise, true
	}
	return 0, 0, 0, false
}

func quietBitsOK(p []uint16, high uint32) bool {
	for _, idx := range []int{5, 6, 7, 8, 14, 15, 16, 17, 18} {
		if uint32(p[idx]) >= high {
			return false
		}
	}
	return true
}

// tryAllPhases decodes a candidate at every phase dump1090 would try (or
// just the best-correlating one when phaseEnhance is off) and keeps the
// highest-scoring result, per spec.md §4.3 steps 4-6.
func tryAllPhases(m []uint16, position int, preambleSNR int, phaseEnhance bool, eng *crc.Engine) (Candidate, bool) {
	phases := []int{4, 5, 6, 7, 8}
	if !phaseEnhance {
		phases = []int{bestPhase(m)}
	}

	var best Candidate
	bestScore := -1 << 31
	found := false

	for _, phase := range phases {
		bytes, bits, encErrs, ok := decodeBitsWithPhase(m, phase)
		if !ok {
			continue
		}
		score := scoreMessage(bytes, bits, eng) + preambleSNR/5
		if score > bestScore {
			bestScore = score
			best = Candidate{
				Bytes:          bytes,
				Bits:           bits,
				SNRdB:          preambleSNR,
				StartSample:    position,
				Phase:          phase,
				EncodingErrors: encErrs,
			}
			found = true
		}
	}

	return best, found && bestScore > 0
}

// bestPhase picks the single phase tried when phaseEnhance is off. Each of
// phases 4..8 scores the sum of the first six samples plus |slicePhase0| over
// the one 3-sample window at 19+phase/5; phases 5..8 share that window, so
// the result is always 4 or 5. No per-phase correlation over the first five
// symbols is computed. Per spec.md §9's open question, the exact seed (sum
// of the first six samples) is empirical and not load bearing.
func bestPhase(m []uint16) int {
	best := 4
	bestSum := -1
	for _, phase := range []int{4, 5, 6, 7, 8} {
		sum := int(m[0]) + int(m[1]) + int(m[2]) + int(m[3]) + int(m[4]) + int(m[5])
		pPtr := 19 + phase/5
		if pPtr+3 < len(m) {
			sum += abs(slicePhase0(m[pPtr : pPtr+3]))
		}
		if sum > bestSum {
			bestSum = sum
			best = phase
		}
	}
	return best
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// decodeBitsWithPhase runs the 5-phase correlator state machine described
// in spec.md §4.3 step 5, grounded directly on saviobatista/go1090's
// decodeBitsWithPhase. It decodes up to 14 bytes, stopping after 7 for the
// short DF set.
func decodeBitsWithPhase(m []uint16, tryPhase int) ([]byte, int, int, bool) {
	const longBytes = 14
	if len(m) < 19+longBytes*19 {
		return nil, 0, 0, false
	}

	var msg [longBytes]byte
	pPtr := 19 + tryPhase/5
	phase := tryPhase % 5
	encodingErrors := 0

	count := func(corr int) byte {
		if corr == 0 {
			encodingErrors++
		}
		return bitValue(corr)
	}

	totalBytes := longBytes
	for i := 0; i < longBytes; i++ {
		if pPtr+20 >= len(m) {
			return nil, 0, 0, false
		}

		var b byte
		switch phase {
		case 0:
			b = count(slicePhase0(m[pPtr:pPtr+3]))<<7 |
				count(slicePhase2(m[pPtr+2:pPtr+5]))<<6 |
				count(slicePhase4(m[pPtr+4:pPtr+8]))<<5 |
				count(slicePhase1(m[pPtr+7:pPtr+10]))<<4 |
				count(slicePhase3(m[pPtr+9:pPtr+12]))<<3 |
				count(slicePhase0(m[pPtr+12:pPtr+15]))<<2 |
				count(slicePhase2(m[pPtr+14:pPtr+17]))<<1 |
				count(slicePhase4(m[pPtr+16:pPtr+20]))
			phase = 1
			pPtr += 19
		case 1:
			b = count(slicePhase1(m[pPtr:pPtr+3]))<<7 |
				count(slicePhase3(m[pPtr+2:pPtr+5]))<<6 |
				count(slicePhase0(m[pPtr+5:pPtr+8]))<<5 |
				count(slicePhase2(m[pPtr+7:pPtr+10]))<<4 |
				count(slicePhase4(m[pPtr+9:pPtr+13]))<<3 |
				count(slicePhase1(m[pPtr+12:pPtr+15]))<<2 |
				count(slicePhase3(m[pPtr+14:pPtr+17]))<<1 |
				count(slicePhase0(m[pPtr+17:pPtr+20]))
			phase = 2
			pPtr += 19
		case 2:
			b = count(slicePhase2(m[pPtr:pPtr+3]))<<7 |
				count(slicePhase4(m[pPtr+2:pPtr+6]))<<6 |
				count(slicePhase1(m[pPtr+5:pPtr+8]))<<5 |
				count(slicePhase3(m[pPtr+7:pPtr+10]))<<4 |
				count(slicePhase0(m[pPtr+10:pPtr+13]))<<3 |
				count(slicePhase2(m[pPtr+12:pPtr+15]))<<2 |
				count(slicePhase4(m[pPtr+14:pPtr+18]))<<1 |
				count(slicePhase1(m[pPtr+17:pPtr+20]))
			phase = 3
			pPtr += 19
		case 3:
			b = count(slicePhase3(m[pPtr:pPtr+3]))<<7 |
				count(slicePhase0(m[pPtr+3:pPtr+6]))<<6 |
				count(slicePhase2(m[pPtr+5:pPtr+8]))<<5 |
				count(slicePhase4(m[pPtr+7:pPtr+11]))<<4 |
				count(slicePhase1(m[pPtr+10:pPtr+13]))<<3 |
				count(slicePhase3(m[pPtr+12:pPtr+15]))<<2 |
				count(slicePhase0(m[pPtr+15:pPtr+18]))<<1 |
				count(slicePhase2(m[pPtr+17:pPtr+20]))
			phase = 4
			pPtr += 19
		case 4:
			b = count(slicePhase4(m[pPtr:pPtr+4]))<<7 |
				count(slicePhase1(m[pPtr+3:pPtr+6]))<<6 |
				count(slicePhase3(m[pPtr+5:pPtr+8]))<<5 |
				count(slicePhase0(m[pPtr+8:pPtr+11]))<<4 |
				count(slicePhase2(m[pPtr+10:pPtr+13]))<<3 |
				count(slicePhase4(m[pPtr+12:pPtr+16]))<<2 |
				count(slicePhase1(m[pPtr+15:pPtr+18]))<<1 |
				count(slicePhase3(m[pPtr+17:pPtr+20]))
			phase = 0
			pPtr += 20
		}

		msg[i] = b

		if i == 0 {
			df := b >> 3
			if df == 0 || df == 4 || df == 5 || df == 11 {
				totalBytes = 7
			}
		}
		if i+1 >= totalBytes {
			break
		}
	}

	return append([]byte(nil), msg[:totalBytes]...), totalBytes * 8, encodingErrors, true
}

// scoreMessage assigns a plausibility score to a demodulated byte sequence,
// or -1 when the checksum fails or the syndrome is nonzero and eng cannot
// diagnose it (always, when eng is nil). It is used only to disambiguate between phases tried for the
// same preamble hit. It mirrors saviobatista/go1090's scoreMessage but
// drops the ICAO-seen-set check: that part of spec.md §4.6's scorer needs
// the tracker's seen-set and runs again, authoritatively, in the frame
// parser once a single best candidate has been chosen here.
func scoreMessage(msg []byte, bits int, eng *crc.Engine) int {
	syn, err := crc.Checksum(msg, bits)
	if err != nil {
		return -1
	}

	score := 0
	switch {
	case syn == 0:
		score = 1000
	case eng != nil:
		if entry, ok := eng.Diagnose(syn, bits); ok {
			switch len(entry.BitPositions) {
			case 1:
				score = 750
			default:
				score = 500
			}
		} else {
			return -1
		}
	default:
		return -1
	}

	df := msg[0] >> 3
	switch df {
	case 0, 4, 5, 11, 16, 17, 18, 20, 21, 24:
		score += 500
	default:
		score -= 200
	}

	if df == 17 || df == 18 {
		if len(msg) >= 5 {
			typeCode := (msg[4] >> 3) & 0x1F
			if typeCode >= 1 {
				score += 100
			} else {
				score -= 50
			}
		}
	}

	return score
}
