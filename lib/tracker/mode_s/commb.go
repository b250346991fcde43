package mode_s

// decodeCommB inspects the Comm-B reply (MB field, message bytes 4..10) of
// a DF20/21 frame. Only BDS register 2,0 (aircraft identification) is
// decoded; its register number conveniently sits in the raw first MB byte,
// the same heuristic dump1090-family decoders use since DF20/21 carries no
// separate BDS selector.
func (f *Frame) decodeCommB() error {
	f.bdsCode = f.message[4]
	if f.bdsCode == 0x20 {
		f.flight = decodeFlightNumber(f.message[5:11])
	}
	return nil
}
