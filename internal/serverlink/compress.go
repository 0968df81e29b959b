package serverlink

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"io"
)

// CompressMethod is one of the compression methods offered in the
// handshake and possibly accepted by the server.
type CompressMethod string

const (
	CompressNone  CompressMethod = "none"
	CompressZlib  CompressMethod = "zlib"
	CompressZlib2 CompressMethod = "zlib2"
)

// syncFlushTrailer is the 4-byte empty-stored-block marker a DEFLATE
// Z_SYNC_FLUSH produces; zlib2 strips it from each outbound block and
// reattaches it before feeding a received block to the decompressor.
var syncFlushTrailer = []byte{0x00, 0x00, 0xff, 0xff}

// outboundCompressor wraps outbound line bytes per the negotiated method.
type outboundCompressor struct {
	method CompressMethod
	buf    bytes.Buffer
	writer *flate.Writer
}

func newOutboundCompressor(method CompressMethod) *outboundCompressor {
	c := &outboundCompressor{method: method}
	if method != CompressNone {
		w, _ := flate.NewWriter(&c.buf, flate.DefaultCompression)
		c.writer = w
	}
	return c
}

// Wrap compresses (if negotiated) one outbound line and returns the exact
// bytes that should be written to the socket.
func (c *outboundCompressor) Wrap(line []byte) []byte {
	switch c.method {
	case CompressNone:
		out := make([]byte, len(line)+1)
		copy(out, line)
		out[len(line)] = '\n'
		return out
	case CompressZlib:
		c.buf.Reset()
		_, _ = c.writer.Write(line)
		_ = c.writer.Flush()
		return append([]byte(nil), c.buf.Bytes()...)
	case CompressZlib2:
		c.buf.Reset()
		_, _ = c.writer.Write(line)
		_ = c.writer.Flush()
		block := c.buf.Bytes()
		block = bytes.TrimSuffix(block, syncFlushTrailer)
		framed := make([]byte, 2+len(block))
		binary.BigEndian.PutUint16(framed[:2], uint16(len(block)))
		copy(framed[2:], block)
		return framed
	}
	return line
}

// inboundDecompressor reassembles the newline-delimited JSON lines a
// zlib2-negotiated connection sends as length-prefixed, trailer-stripped
// deflate blocks, via a single persistent flate.Reader fed through a pipe
// so the sliding window carries over between blocks.
type inboundDecompressor struct {
	pw     *io.PipeWriter
	reader io.ReadCloser
	outCh  chan []byte
	errCh  chan error
}

func newInboundDecompressor() *inboundDecompressor {
	pr, pw := io.Pipe()
	d := &inboundDecompressor{
		pw:     pw,
		reader: flate.NewReader(pr),
		outCh:  make(chan []byte, 64),
		errCh:  make(chan error, 1),
	}
	go d.pump()
	return d
}

func (d *inboundDecompressor) pump() {
	buf := make([]byte, 4096)
	for {
		n, err := d.reader.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			d.outCh <- chunk
		}
		if err != nil {
			d.errCh <- err
			close(d.outCh)
			return
		}
	}
}

// Feed supplies one received length-prefixed block's payload (without the
// length prefix and without the sync-flush trailer, which Feed reattaches
// itself) and returns whatever plaintext bytes the decompressor has
// produced so far.
func (d *inboundDecompressor) Feed(block []byte) ([]byte, error) {
	writeDone := make(chan struct{})
	go func() {
		_, _ = d.pw.Write(append(block, syncFlushTrailer...))
		close(writeDone)
	}()
	<-writeDone

	var out []byte
	// The write above only returns once the pump's Read has consumed this
	// block, but the decoded bytes it produces land on outCh slightly later;
	// block for that first chunk before switching to a non-blocking drain of
	// whatever else is already queued.
	select {
	case chunk, ok := <-d.outCh:
		if !ok {
			return out, nil
		}
		out = append(out, chunk...)
	case err := <-d.errCh:
		return out, err
	}
	for {
		select {
		case chunk, ok := <-d.outCh:
			if !ok {
				return out, nil
			}
			out = append(out, chunk...)
		default:
			return out, nil
		}
	}
}

func (d *inboundDecompressor) Close() error {
	_ = d.pw.Close()
	return d.reader.Close()
}
