package mode_s

const (
	modesUnitFeet = iota
	modesUnitMetres
)

// aisCharset is the 6-bit packed character set used by callsigns and BDS 2,0
// identification registers.
const aisCharset = "?ABCDEFGHIJKLMNOPQRSTUVWXYZ????? ???????????????0123456789??????"

var flightStatusTable = map[byte]string{
	4: "Alert, SPI",
	5: "SPI",
}
