package decoder

import (
	"encoding/hex"
	"testing"

	"github.com/mlatclient/edgeclient/internal/modes"
)

func buildAVRMLATLine(timestamp uint64, payload []byte) []byte {
	ts := []byte{
		byte(timestamp >> 40), byte(timestamp >> 32), byte(timestamp >> 24),
		byte(timestamp >> 16), byte(timestamp >> 8), byte(timestamp),
	}
	line := "@" + hex.EncodeToString(ts) + hex.EncodeToString(payload) + ";\n"
	return []byte(line)
}

func TestAVRMLATDecoderParsesFrame(t *testing.T) {
	var clock float64
	d := newAVRMLATDecoder(func() float64 { return clock })

	addr, _ := modes.MakePositionFramePair(0x4ca87c, 51.5, -0.1, 35000, false, false)
	line := buildAVRMLATLine(0xAABBCCDDEEFF, addr)

	consumed, msgs, err := d.Feed(line)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if consumed != len(line)-1 {
		t.Fatalf("consumed %d want %d (trailing newline left for the next call)", consumed, len(line)-1)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected mode-change + DF17, got %d", len(msgs))
	}
	m := msgs[1]
	if m.DF != 17 || m.Address != 0x4ca87c {
		t.Fatalf("unexpected message: %+v", m)
	}
	if m.Timestamp != 0xAABBCCDDEEFF {
		t.Fatalf("timestamp mismatch: got %x", m.Timestamp)
	}
}

func TestAVRMLATDecoderWaitsForTerminator(t *testing.T) {
	var clock float64
	d := newAVRMLATDecoder(func() float64 { return clock })

	line := buildAVRMLATLine(1, make([]byte, 7))
	partial := line[:len(line)-2]

	consumed, _, err := d.Feed(partial)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if consumed != 0 {
		t.Fatalf("expected 0 bytes consumed while waiting for ';', got %d", consumed)
	}
}

func TestAVRMLATDecoderSkipsUnsupportedMarker(t *testing.T) {
	var clock float64
	d := newAVRMLATDecoder(func() float64 { return clock })

	line := []byte("*ABCDEF;\n")
	consumed, msgs, err := d.Feed(line)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if consumed != len(line)-1 {
		t.Fatalf("consumed %d want %d (trailing newline left for the next call)", consumed, len(line)-1)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected only the mode-change event, got %d", len(msgs))
	}
}
