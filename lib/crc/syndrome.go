package crc

import "sort"

// Entry is one row of a syndrome table: the CRC residual produced by a
// specific combination of 1..MaxErrors flipped bits, and which bit
// positions (relative to the start of the frame, 0 = top of the DF field)
// were flipped to produce it.
type Entry struct {
	Syndrome     uint32
	BitPositions []int
}

// Table is a syndrome-to-error-pattern table for one frame length. It is
// sorted by Syndrome for binary search and contains no ambiguous entries:
// if two distinct error patterns (of size <= MaxErrors) produce the same
// syndrome, neither is retained.
type Table struct {
	Bits      int
	MaxErrors int
	entries   []Entry
}

// BuildTable enumerates every combination of 1..maxErrors bit flips among
// bits [5, bits) (DF bits 0..4 are never corrected — the spec requires an
// independently trustworthy DF before any repair is attempted), computes
// each combination's syndrome via the linearity of the CRC
// (CRC(m^e) = CRC(m) ^ CRC(e)), and removes syndromes reachable by more
// than one distinct pattern.
func BuildTable(bits, maxErrors int) *Table {
	offset := LongBits - bits
	counts := map[uint32]int{}
	var all []Entry

	var combo []int
	var recurse func(start, remaining int)
	recurse = func(start, remaining int) {
		if remaining == 0 {
			syn := syndromeOf(combo, offset)
			e := Entry{Syndrome: syn, BitPositions: append([]int(nil), combo...)}
			all = append(all, e)
			counts[syn]++
			return
		}
		for pos := start; pos < bits; pos++ {
			combo = append(combo, pos)
			recurse(pos+1, remaining-1)
			combo = combo[:len(combo)-1]
		}
	}

	for n := 1; n <= maxErrors; n++ {
		combo = combo[:0]
		recurse(5, n)
	}

	// ambiguity elimination: keep only syndromes produced by exactly one
	// distinct error pattern. Two identical-bit-position combos never
	// recur (recurse only ever emits each combination once), so counts>1
	// genuinely means two different patterns collided.
	seen := map[uint32]bool{}
	entries := make([]Entry, 0, len(all))
	for _, e := range all {
		if counts[e.Syndrome] == 1 && !seen[e.Syndrome] {
			seen[e.Syndrome] = true
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Syndrome < entries[j].Syndrome })

	return &Table{Bits: bits, MaxErrors: maxErrors, entries: entries}
}

// syndromeOf XORs together the per-length parity table entries (or, for
// positions inside the trailing 24-bit parity field, the identity power of
// two) for every bit position in combo.
func syndromeOf(combo []int, offset int) uint32 {
	var syn uint32
	for _, pos := range combo {
		idx := pos + offset
		if idx >= LongBits-24 {
			syn ^= 1 << uint(LongBits-1-idx)
		} else {
			syn ^= parityTable[idx]
		}
	}
	return syn
}

// Diagnose binary-searches the table for a nonzero syndrome and returns the
// matching entry, or ok=false if the syndrome cannot be explained by any
// <=MaxErrors-bit pattern in the table.
func (t *Table) Diagnose(syndrome uint32) (Entry, bool) {
	if syndrome == 0 {
		return Entry{}, false
	}
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].Syndrome >= syndrome })
	if i < len(t.entries) && t.entries[i].Syndrome == syndrome {
		return t.entries[i], true
	}
	return Entry{}, false
}

// Fix XORs the bit positions named by entry into message, in place.
// Invariant: Checksum(message, t.Bits) == 0 after Fix, provided entry came
// from Diagnose(Checksum(message, t.Bits)).
func Fix(message []byte, entry Entry) {
	for _, pos := range entry.BitPositions {
		byteIdx := pos / 8
		bitIdx := pos % 8
		message[byteIdx] ^= 1 << uint(7-bitIdx)
	}
}

// Engine bundles the short and long syndrome tables plus the configured
// error-correction depth (spec's fix_crc_bits, 0 disables repair).
type Engine struct {
	MaxErrors int
	shortTbl  *Table
	longTbl   *Table
}

// NewEngine builds both length tables for the given maximum correctable
// bit-error count. maxErrors of 0 yields an Engine that can checksum but
// never repairs.
func NewEngine(maxErrors int) *Engine {
	e := &Engine{MaxErrors: maxErrors}
	if maxErrors > 0 {
		e.shortTbl = BuildTable(ShortBits, maxErrors)
		e.longTbl = BuildTable(LongBits, maxErrors)
	}
	return e
}

func (e *Engine) tableFor(bits int) *Table {
	if bits == ShortBits {
		return e.shortTbl
	}
	return e.longTbl
}

// Diagnose finds a repair for a nonzero syndrome at the given frame length,
// or ok=false if repair is disabled or the syndrome isn't in the table.
func (e *Engine) Diagnose(syndrome uint32, bits int) (Entry, bool) {
	tbl := e.tableFor(bits)
	if tbl == nil {
		return Entry{}, false
	}
	return tbl.Diagnose(syndrome)
}
