package decoder

import (
	"testing"

	"github.com/mlatclient/edgeclient/internal/modes"
)

func stuffBeastFrame(typ byte, timestamp uint64, signal byte, payload []byte) []byte {
	body := []byte{
		byte(timestamp >> 40), byte(timestamp >> 32), byte(timestamp >> 24),
		byte(timestamp >> 16), byte(timestamp >> 8), byte(timestamp),
		signal,
	}
	body = append(body, payload...)

	out := []byte{0x1A, typ}
	for _, b := range body {
		out = append(out, b)
		if b == 0x1A {
			out = append(out, 0x1A)
		}
	}
	return out
}

func TestBeastDecoderParsesDF17Frame(t *testing.T) {
	var clock float64
	d := newBeastDecoder(Beast, func() float64 { return clock })

	addr, _ := modes.MakePositionFramePair(0x4ca87c, 51.5, -0.1, 35000, false, false)
	frame := stuffBeastFrame('3', 0x123456789A, 200, addr)

	consumed, msgs, err := d.Feed(frame)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if consumed != len(frame) {
		t.Fatalf("expected to consume entire frame, consumed %d of %d", consumed, len(frame))
	}
	// first message is the synthetic mode-change event
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages (mode change + DF17), got %d", len(msgs))
	}
	m := msgs[1]
	if m.DF != 17 {
		t.Fatalf("expected DF17, got %d", m.DF)
	}
	if !m.HasAddress || m.Address != 0x4ca87c {
		t.Fatalf("expected address 0x4ca87c, got %06X (has=%v)", m.Address, m.HasAddress)
	}
	if !m.Valid {
		t.Fatal("expected CRC-valid DF17 frame")
	}
	if m.Timestamp != 0x123456789A {
		t.Fatalf("timestamp mismatch: got %x", m.Timestamp)
	}
}

func TestBeastDecoderHandlesEscapedTimestampByte(t *testing.T) {
	var clock float64
	d := newBeastDecoder(Beast, func() float64 { return clock })

	addr, _ := modes.MakePositionFramePair(0x4ca87c, 51.5, -0.1, 35000, false, false)
	// force an 0x1A into the timestamp field
	frame := stuffBeastFrame('3', 0x1A1A1A1A1A1A, 0x1A, addr)

	consumed, msgs, err := d.Feed(frame)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if consumed != len(frame) {
		t.Fatalf("consumed %d want %d", consumed, len(frame))
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
}

func TestBeastDecoderIncompleteFrameWaitsForMoreBytes(t *testing.T) {
	var clock float64
	d := newBeastDecoder(Beast, func() float64 { return clock })

	frame := stuffBeastFrame('2', 42, 10, make([]byte, 7))
	partial := frame[:len(frame)-2]

	consumed, _, err := d.Feed(partial)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if consumed != 0 {
		t.Fatalf("expected 0 bytes consumed for an incomplete frame, got %d", consumed)
	}
}

func TestBeastDecoderFiltersNonReferenceFramesByAddress(t *testing.T) {
	var clock float64
	d := newBeastDecoder(Beast, func() float64 { return clock })
	d.UpdateFilter(map[uint32]struct{}{0x111111: {}})

	// DF11 frame for an address not in the filter: crc-valid direct address,
	// should be suppressed.
	frame := make([]byte, 7)
	frame[0] = byte(11 << 3)
	frame[1], frame[2], frame[3] = 0x22, 0x22, 0x22
	modesAppendCRCForTest(frame)

	beast := stuffBeastFrame('2', 1, 0, frame)
	_, msgs, _ := d.Feed(beast)
	for _, m := range msgs {
		if m.DF == 11 {
			t.Fatalf("expected DF11 for unfiltered address to be suppressed, got it in output")
		}
	}
	if d.SuppressedMessages() != 1 {
		t.Fatalf("expected 1 suppressed message, got %d", d.SuppressedMessages())
	}
}

func modesAppendCRCForTest(frame []byte) {
	modes.AppendCRC(frame)
}

func TestDecodeModeACMasksTo13Bits(t *testing.T) {
	m := decodeModeAC([]byte{0xFF, 0xFF}, 7)
	if m.DF != modes.DFModeAC {
		t.Fatalf("expected DFModeAC, got %d", m.DF)
	}
	if m.ModeACode != 0x1FFF {
		t.Fatalf("expected code masked to 13 bits, got %04X", m.ModeACode)
	}
}
