// Package udpcodec builds the binary UDP datagrams sent to the mlat server:
// a fixed header followed by a sequence of self-describing submessages,
// base-timestamp delta encoding, and MTU-aware flushing.
package udpcodec

import (
	"encoding/binary"
)

// Submessage type tags.
const (
	typeSync      = 1
	typeMlatShort = 2
	typeMlatLong  = 3
	typeSSync     = 4
	typeRebase    = 5
	typeAbsSync   = 6
)

const (
	// maxDelta is the largest magnitude a 32-bit signed delta may carry
	// before a REBASE submessage is required.
	maxDelta = 0x7FFFFFF0
	// absSyncThreshold is the largest |et-ot| gap a SYNC submessage's
	// i32 deltas can represent before falling back to ABS_SYNC.
	absSyncThreshold = 0xFFFFFFF0
	// mtu is the conservative datagram size budget; a flush happens
	// before a submessage would push usage past it.
	mtu = 1400

	headerSize = 4 + 2 + 8
)

// Flusher sends one completed datagram. Implementations own the actual
// socket write.
type Flusher func(datagram []byte)

// Buffer accumulates submessages into ≤1500-byte UDP datagrams, issuing a
// flush whenever the next submessage would overflow the MTU budget, and
// emitting REBASE/ABS_SYNC submessages as needed to keep deltas within
// their 32-bit range.
type Buffer struct {
	key           uint32
	sequence      uint16
	baseTimestamp uint64

	buf    []byte
	flush  Flusher
}

// New creates a Buffer keyed to the server-assigned UDP session key, that
// calls flush whenever a datagram is ready to send.
func New(key uint32, initialBaseTimestamp uint64, flush Flusher) *Buffer {
	b := &Buffer{key: key, baseTimestamp: initialBaseTimestamp, flush: flush}
	b.resetHeader()
	return b
}

func (b *Buffer) resetHeader() {
	b.buf = make([]byte, headerSize)
	binary.BigEndian.PutUint32(b.buf[0:4], b.key)
	binary.BigEndian.PutUint16(b.buf[4:6], b.sequence)
	binary.BigEndian.PutUint64(b.buf[6:14], b.baseTimestamp)
}

// ensureRoom flushes the current datagram if adding extra bytes would push
// it past the MTU budget.
func (b *Buffer) ensureRoom(extra int) {
	if len(b.buf)+extra <= mtu {
		return
	}
	b.Flush()
}

// Flush sends the accumulated datagram (if it carries any submessages
// beyond the header) and starts a new one with the next sequence number.
func (b *Buffer) Flush() {
	if len(b.buf) > headerSize {
		b.flush(b.buf)
	}
	b.sequence++
	b.resetHeader()
}

// rebase emits a REBASE submessage and resets the base timestamp to ts.
func (b *Buffer) rebase(ts uint64) {
	b.ensureRoom(1 + 8)
	b.buf = append(b.buf, typeRebase)
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], ts)
	b.buf = append(b.buf, tmp[:]...)
	b.baseTimestamp = ts
}

func (b *Buffer) delta(ts uint64) int64 {
	return int64(ts) - int64(b.baseTimestamp)
}

// ensureDelta rebases if ts would not fit in a 32-bit signed delta from the
// current base timestamp, and returns the (now safe) delta.
func (b *Buffer) ensureDelta(ts uint64) int32 {
	d := b.delta(ts)
	if d > maxDelta || d < -maxDelta {
		b.rebase(ts)
		d = 0
	}
	return int32(d)
}

func putInt32(dst []byte, v int32) {
	binary.BigEndian.PutUint32(dst, uint32(v))
}

// MlatShort appends a MLAT_SHORT submessage (7-byte frame) at timestamp ts.
func (b *Buffer) MlatShort(ts uint64, frame []byte) {
	d := b.ensureDelta(ts)
	b.ensureRoom(1 + 4 + 7)
	b.buf = append(b.buf, typeMlatShort)
	var tmp [4]byte
	putInt32(tmp[:], d)
	b.buf = append(b.buf, tmp[:]...)
	b.buf = append(b.buf, frame...)
}

// MlatLong appends a MLAT_LONG submessage (14-byte frame) at timestamp ts.
func (b *Buffer) MlatLong(ts uint64, frame []byte) {
	d := b.ensureDelta(ts)
	b.ensureRoom(1 + 4 + 14)
	b.buf = append(b.buf, typeMlatLong)
	var tmp [4]byte
	putInt32(tmp[:], d)
	b.buf = append(b.buf, tmp[:]...)
	b.buf = append(b.buf, frame...)
}

// SSync appends a single-sync submessage.
func (b *Buffer) SSync(ts uint64, frame []byte) {
	d := b.ensureDelta(ts)
	b.ensureRoom(1 + 4 + 14)
	b.buf = append(b.buf, typeSSync)
	var tmp [4]byte
	putInt32(tmp[:], d)
	b.buf = append(b.buf, tmp[:]...)
	b.buf = append(b.buf, frame...)
}

// Sync appends a SYNC (or, if the even/odd timestamps are too far apart to
// fit 32-bit deltas from each other, an ABS_SYNC) submessage for a
// reference pair.
func (b *Buffer) Sync(evenTS, oddTS uint64, evenFrame, oddFrame []byte) {
	gap := int64(evenTS) - int64(oddTS)
	if gap < 0 {
		gap = -gap
	}
	if uint64(gap) > absSyncThreshold {
		b.absSync(evenTS, oddTS, evenFrame, oddFrame)
		return
	}

	de := b.ensureDelta(evenTS)
	do := b.ensureDelta(oddTS)
	b.ensureRoom(1 + 4 + 4 + 14 + 14)
	b.buf = append(b.buf, typeSync)
	var tmp [4]byte
	putInt32(tmp[:], de)
	b.buf = append(b.buf, tmp[:]...)
	putInt32(tmp[:], do)
	b.buf = append(b.buf, tmp[:]...)
	b.buf = append(b.buf, evenFrame...)
	b.buf = append(b.buf, oddFrame...)
}

func (b *Buffer) absSync(evenTS, oddTS uint64, evenFrame, oddFrame []byte) {
	b.ensureRoom(1 + 8 + 8 + 14 + 14)
	b.buf = append(b.buf, typeAbsSync)
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], evenTS)
	b.buf = append(b.buf, tmp[:]...)
	binary.BigEndian.PutUint64(tmp[:], oddTS)
	b.buf = append(b.buf, tmp[:]...)
	b.buf = append(b.buf, evenFrame...)
	b.buf = append(b.buf, oddFrame...)
}

// Len reports the current datagram's size in bytes, including the header.
func (b *Buffer) Len() int { return len(b.buf) }
