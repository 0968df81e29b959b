package decoder

import (
	"testing"

	"github.com/mlatclient/edgeclient/internal/modes"
)

func stuffDLE(b []byte) []byte {
	var out []byte
	for _, c := range b {
		out = append(out, c)
		if c == dle {
			out = append(out, dle)
		}
	}
	return out
}

func buildSBSPacket(typ byte, timestamp uint64, signal byte, payload []byte) []byte {
	body := []byte{typ,
		byte(timestamp >> 40), byte(timestamp >> 32), byte(timestamp >> 24),
		byte(timestamp >> 16), byte(timestamp >> 8), byte(timestamp),
		signal,
	}
	body = append(body, payload...)

	out := []byte{dle, stx}
	out = append(out, stuffDLE(body)...)
	out = append(out, dle, etx)
	return out
}

func TestSBSDecoderParsesFrame(t *testing.T) {
	var clock float64
	d := newSBSDecoder(func() float64 { return clock })

	addr, _ := modes.MakePositionFramePair(0x4ca87c, 51.5, -0.1, 35000, false, false)
	pkt := buildSBSPacket(3, 0x010203040506, 9, addr)

	consumed, msgs, err := d.Feed(pkt)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if consumed != len(pkt) {
		t.Fatalf("consumed %d want %d", consumed, len(pkt))
	}
	if len(msgs) != 2 {
		t.Fatalf("expected mode-change + DF17, got %d", len(msgs))
	}
	m := msgs[1]
	if m.DF != 17 || m.Address != 0x4ca87c {
		t.Fatalf("unexpected message: %+v", m)
	}
	if m.Timestamp != 0x010203040506 {
		t.Fatalf("timestamp mismatch: got %x", m.Timestamp)
	}
}

func TestSBSDecoderHandlesEscapedDLEInBody(t *testing.T) {
	var clock float64
	d := newSBSDecoder(func() float64 { return clock })

	addr, _ := modes.MakePositionFramePair(0x4ca87c, 51.5, -0.1, 35000, false, false)
	pkt := buildSBSPacket(3, 0x101010101010, dle, addr)

	consumed, msgs, err := d.Feed(pkt)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if consumed != len(pkt) {
		t.Fatalf("consumed %d want %d", consumed, len(pkt))
	}
	if len(msgs) != 2 {
		t.Fatalf("expected mode-change + DF17, got %d", len(msgs))
	}
}

func TestSBSDecoderWaitsForETX(t *testing.T) {
	var clock float64
	d := newSBSDecoder(func() float64 { return clock })

	pkt := buildSBSPacket(2, 1, 0, make([]byte, 7))
	partial := pkt[:len(pkt)-2]

	consumed, _, err := d.Feed(partial)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if consumed != 0 {
		t.Fatalf("expected 0 bytes consumed for an incomplete packet, got %d", consumed)
	}
}
