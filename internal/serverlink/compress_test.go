package serverlink

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestOutboundCompressorNonePassthrough(t *testing.T) {
	c := newOutboundCompressor(CompressNone)
	out := c.Wrap([]byte(`{"a":1}`))
	if !bytes.Equal(out, []byte("{\"a\":1}\n")) {
		t.Fatalf("expected newline-terminated passthrough, got %q", out)
	}
}

func TestZlibRoundTripViaStandardFlateReader(t *testing.T) {
	c := newOutboundCompressor(CompressZlib)
	line := []byte(`{"heartbeat":{"client_time":1}}`)
	block := c.Wrap(line)
	if len(block) == 0 {
		t.Fatal("expected non-empty compressed block")
	}

	d := newInboundDecompressor()
	defer d.Close()
	out, err := d.Feed(block)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if !bytes.Equal(bytes.TrimRight(out, "\n"), line) {
		t.Fatalf("round trip mismatch: want %q got %q", line, out)
	}
}

func TestZlib2FramingStripsAndReattachesTrailer(t *testing.T) {
	c := newOutboundCompressor(CompressZlib2)
	line := []byte(`{"seen":["4ca87c"]}`)
	framed := c.Wrap(line)

	if len(framed) < 2 {
		t.Fatalf("expected length-prefixed frame, got %d bytes", len(framed))
	}
	n := binary.BigEndian.Uint16(framed[:2])
	block := framed[2:]
	if int(n) != len(block) {
		t.Fatalf("length prefix %d does not match block length %d", n, len(block))
	}
	if bytes.HasSuffix(block, syncFlushTrailer) {
		t.Fatal("expected sync-flush trailer to be stripped from the framed block")
	}

	d := newInboundDecompressor()
	defer d.Close()
	out, err := d.Feed(block)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if !bytes.Equal(bytes.TrimRight(out, "\n"), line) {
		t.Fatalf("round trip mismatch: want %q got %q", line, out)
	}
}

func TestZlib2MultipleBlocksShareDictionary(t *testing.T) {
	c := newOutboundCompressor(CompressZlib2)
	d := newInboundDecompressor()
	defer d.Close()

	lines := [][]byte{
		[]byte(`{"seen":["4ca87c"]}`),
		[]byte(`{"seen":["4ca87d"]}`),
		[]byte(`{"lost":["4ca87c"]}`),
	}
	for _, line := range lines {
		framed := c.Wrap(line)
		block := framed[2:]
		out, err := d.Feed(block)
		if err != nil {
			t.Fatalf("Feed: %v", err)
		}
		if !bytes.Equal(bytes.TrimRight(out, "\n"), line) {
			t.Fatalf("round trip mismatch: want %q got %q", line, out)
		}
	}
}
