package modes

import "testing"

func TestCRC24RoundTrip(t *testing.T) {
	frame := []byte{0x8D, 0x48, 0x40, 0xD6, 0x20, 0x2C, 0xC3, 0x71, 0xC3, 0x2C, 0xE0, 0x57, 0x60, 0x98}
	AppendCRC(frame)
	if CRC24(frame) != 0 {
		t.Fatalf("CRC24 after AppendCRC should reduce to zero, got %06x", CRC24(frame))
	}
}

func TestEncodeDecodeAltitudeRoundTrip(t *testing.T) {
	for feet := -1000; feet <= 50175; feet += 25 {
		code := EncodeAltitude(feet)
		got := DecodeAltitude(code)
		if got != feet {
			t.Fatalf("altitude round trip failed for %d ft: got %d (code=%04x)", feet, got, code)
		}
	}
}

func TestMakeAltitudeOnlyFrameLength(t *testing.T) {
	frame := MakeAltitudeOnlyFrame(0xABCDEF, 35000, true)
	if len(frame) != 14 {
		t.Fatalf("expected 14 byte frame, got %d", len(frame))
	}
	if CRC24(frame) != 0 {
		t.Fatalf("frame CRC does not check out")
	}
}

func TestMakePositionFramePair(t *testing.T) {
	even, odd := MakePositionFramePair(0xABCDEF, 51.5, -0.12, 35000, false, false)
	for _, f := range [][]byte{even, odd} {
		if len(f) != 14 {
			t.Fatalf("expected 14 byte frame, got %d", len(f))
		}
		if CRC24(f) != 0 {
			t.Fatalf("frame CRC does not check out")
		}
	}
	if even[6]&0x04 != 0 {
		t.Errorf("even frame should have F bit clear")
	}
	if odd[6]&0x04 != 0x04 {
		t.Errorf("odd frame should have F bit set")
	}
}

func TestMakeVelocityFrame(t *testing.T) {
	frame := MakeVelocityFrame(0xABCDEF, 100, -50, 640)
	if len(frame) != 14 {
		t.Fatalf("expected 14 byte frame, got %d", len(frame))
	}
	if CRC24(frame) != 0 {
		t.Fatalf("frame CRC does not check out")
	}
}

func TestEncodeVelocityBoundaries(t *testing.T) {
	sign, mag := EncodeVelocity(0, false)
	if sign || mag != 0 {
		t.Errorf("EncodeVelocity(0, false) = (%v,%d), want (false,0)", sign, mag)
	}
	sign, mag = EncodeVelocity(-1, false)
	if !sign || mag != 1 {
		t.Errorf("EncodeVelocity(-1, false) = (%v,%d), want (true,1)", sign, mag)
	}
	sign, mag = EncodeVelocity(2000, true)
	if sign || mag != 502 {
		t.Errorf("EncodeVelocity(2000, true) = (%v,%d), want (false,502)", sign, mag)
	}
}
