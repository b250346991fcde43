package mode_s

import (
	"testing"
	"time"

	"mode1090/lib/crc"
	"mode1090/lib/icao"
)

func TestDecodeStringAdsbIdentification(t *testing.T) {
	eng := crc.NewEngine(2)
	seen := icao.New(time.Unix(0, 0))

	f, err := DecodeString("*8D4840D6202CC371C32CE0576098;", time.Unix(0, 0), eng, seen)
	if err != nil {
		t.Fatalf("unexpected decode error: %s", err)
	}

	if got := f.IcaoStr(); got != "4840D6" {
		t.Errorf("icao = %s, want 4840D6", got)
	}
	if f.DownLinkType() != 17 {
		t.Errorf("DF = %d, want 17", f.DownLinkType())
	}
	if f.CorrectedBits() != 0 {
		t.Errorf("corrected bits = %d, want 0", f.CorrectedBits())
	}
	if f.syndrome != 0 {
		t.Errorf("syndrome = %06X, want 0", f.syndrome)
	}
	if got := string(f.Callsign()); got != "KLM1023 " {
		t.Errorf("callsign = %q, want %q", got, "KLM1023 ")
	}
}

func TestGetMessageLengthBitsMatchesDF(t *testing.T) {
	cases := []struct {
		df      byte
		msgLen  int
		wantLen uint32
	}{
		{0, modesShortMsgBytes, modesShortMsgBits},
		{11, modesShortMsgBytes, modesShortMsgBits},
		{17, modesLongMsgBytes, modesLongMsgBits},
		{18, modesLongMsgBytes, modesLongMsgBits},
		{20, modesLongMsgBytes, modesLongMsgBits},
	}
	for _, c := range cases {
		f := &Frame{downLinkFormat: c.df, message: make([]byte, c.msgLen)}
		if got := f.getMessageLengthBits(); got != c.wantLen {
			t.Errorf("DF%d, %d bytes: getMessageLengthBits() = %d, want %d", c.df, c.msgLen, got, c.wantLen)
		}
	}
}

func TestDecodeCapabilityVerticalStatus(t *testing.T) {
	f := &Frame{message: []byte{0x8C}} // DF17-shaped byte, CA=4
	f.decodeCapability()
	if !f.validVerticalStatus || !f.onGround {
		t.Errorf("CA=4 should report airborne=false (on ground), got onGround=%v valid=%v", f.onGround, f.validVerticalStatus)
	}
}

func TestDecodeSquawkIdentityKnownPattern(t *testing.T) {
	// message bytes chosen so msg2/msg3's interleaved bits decode to 1200
	// (VFR squawk), cross-checked against the a/b/c/d formula in decodeSquawkIdentity.
	f := &Frame{message: make([]byte, 7)}
	// 1200 octal => a=1,b=2,c=0,d=0.
	// a's A1 term is (msg2&0x08)>>3, b's B2 term is (msg3&0x08)>>2; every
	// other contributing bit in both bytes is left clear.
	f.message[2] = 0x08
	f.message[3] = 0x08
	f.decodeSquawkIdentity(2, 3)
	if f.identity != 1200 {
		t.Errorf("identity = %d, want 1200", f.identity)
	}
}
