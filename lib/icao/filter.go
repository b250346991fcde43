// Package icao implements the recently-seen-ICAO-address plausibility
// oracle: a pair of fixed-size, open-addressed hash tables that age out
// on a rolling TTL so DFs whose CRC is masked by the transmitter's address
// (DF 11/17/18's corrected-bit path, DF 20/21's Comm-B) can be validated
// without a ground truth aircraft database.
package icao

import (
	"sync"
	"time"
)

// TableSize is the number of 24-bit address slots per table. Power of two,
// per the spec, so the hash can be masked instead of reduced with modulo.
const TableSize = 4096

// TTL is how long an address (and its twin low-16-bit projection) stays
// plausible before the table holding it is recycled.
const TTL = 60 * time.Second

const tableMask = TableSize - 1

// hash runs the Mode S seen-set's three-round avalanche mix.
func hash(v uint32) uint32 {
	h := v
	for i := 0; i < 3; i++ {
		h = ((h >> 16) ^ h) * 0x45D9F3B
	}
	return h & tableMask
}

type table struct {
	full    [TableSize]uint32
	used    [TableSize]bool
	low     [TableSize]uint32
	lowUsed [TableSize]bool
}

func (t *table) reset() {
	for i := range t.used {
		t.used[i] = false
		t.lowUsed[i] = false
	}
}

func (t *table) insertFull(addr uint32) {
	idx := hash(addr)
	for i := 0; i < TableSize; i++ {
		slot := (idx + uint32(i)) & tableMask
		if !t.used[slot] || t.full[slot] == addr {
			t.full[slot] = addr
			t.used[slot] = true
			return
		}
	}
	// table is saturated; degrade gracefully by dropping the insert.
}

func (t *table) insertLow(low16 uint32) {
	idx := hash(low16)
	for i := 0; i < TableSize; i++ {
		slot := (idx + uint32(i)) & tableMask
		if !t.lowUsed[slot] || t.low[slot] == low16 {
			t.low[slot] = low16
			t.lowUsed[slot] = true
			return
		}
	}
}

func (t *table) testFull(addr uint32) bool {
	idx := hash(addr)
	for i := 0; i < TableSize; i++ {
		slot := (idx + uint32(i)) & tableMask
		if !t.used[slot] {
			return false
		}
		if t.full[slot] == addr {
			return true
		}
	}
	return false
}

func (t *table) testLow(low16 uint32) bool {
	idx := hash(low16)
	for i := 0; i < TableSize; i++ {
		slot := (idx + uint32(i)) & tableMask
		if !t.lowUsed[slot] {
			return false
		}
		if t.low[slot] == low16 {
			return true
		}
	}
	return false
}

// Filter is the twin-table seen-address oracle. One table is active
// (receives writes); both are consulted on read. Every TTL, the inactive
// table is cleared and the roles swap, giving any address up to 2*TTL of
// visibility before it can be fully evicted.
type Filter struct {
	mu        sync.Mutex
	tables    [2]table
	activeIdx int
	lastFlip  time.Time
}

// New returns a ready-to-use Filter. now should be the decoder's current
// notion of time (spec: driven by wall clock sampled on the decoder thread
// only, never a shared clock).
func New(now time.Time) *Filter {
	return &Filter{lastFlip: now}
}

// Add inserts addr into the active table under both its full 24-bit key
// and its low 16-bit projection (for Test/TestFuzzy on Comm-B data-parity
// frames where only a fragment of the address survives decode).
func (f *Filter) Add(addr uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	active := &f.tables[f.activeIdx]
	active.insertFull(addr)
	active.insertLow(addr & 0xFFFF)
}

// Test reports whether addr has been seen in either table.
func (f *Filter) Test(addr uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tables[0].testFull(addr) || f.tables[1].testFull(addr)
}

// TestFuzzy reports whether the low 16 bits of some previously seen
// address match partial16, in either table.
func (f *Filter) TestFuzzy(partial16 uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	low := partial16 & 0xFFFF
	return f.tables[0].testLow(low) || f.tables[1].testLow(low)
}

// Expire should be called periodically (at least once per TTL) from the
// decoder thread. Once a full TTL has elapsed since the last flip, it
// clears the currently-inactive table and swaps roles.
func (f *Filter) Expire(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if now.Sub(f.lastFlip) < TTL {
		return
	}
	inactive := 1 - f.activeIdx
	f.tables[inactive].reset()
	f.activeIdx = inactive
	f.lastFlip = now
}
