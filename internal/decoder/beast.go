package decoder

import (
	"sync"

	"github.com/mlatclient/edgeclient/internal/modes"
)

// Beast/Radarcape clock frequencies in ticks/second. A plain Beast box free
// runs its own 12MHz counter; a Radarcape in GPS timestamping mode reports
// nanoseconds since midnight UTC.
const (
	beastFrequency     = 12000000
	radarcapeFrequency = 1000000000
)

// beastDecoder parses the dump1090/Beast binary framing: each frame starts
// with an unescaped 0x1A, a one-byte type ('1' Mode A/C, '2' Mode S short,
// '3' Mode S long, '4' Radarcape extended status), a 6-byte big-endian
// timestamp, a 1-byte signal level, and the frame payload; any 0x1A byte
// occurring inside timestamp/signal/payload is doubled on the wire and
// undoubled here.
type beastDecoder struct {
	mode      Mode
	frequency uint64
	now       func() float64

	mu            sync.Mutex
	cache         *addressCache
	filter        map[uint32]struct{}
	modeacFilter  map[uint16]struct{}
	emittedMode   bool
	recent        map[uint32]struct{}
	received      uint64
	suppressed    uint64
	mlat          uint64
}

func newBeastDecoder(mode Mode, now func() float64) *beastDecoder {
	freq := uint64(beastFrequency)
	if mode == Radarcape {
		freq = radarcapeFrequency
	}
	return &beastDecoder{
		mode:      mode,
		frequency: freq,
		now:       now,
		cache:     newAddressCache(now),
		recent:    make(map[uint32]struct{}),
	}
}

func (d *beastDecoder) Mode() Mode        { return d.mode }
func (d *beastDecoder) Frequency() uint64 { return d.frequency }
func (d *beastDecoder) Epoch() string {
	if d.mode == Radarcape {
		return "gps_midnight"
	}
	return ""
}

func frameLenForType(t byte) int {
	switch t {
	case '1':
		return 2
	case '2':
		return 7
	case '3':
		return 14
	case '4':
		return 2 // radarcape status frame, counted as received but never delivered
	default:
		return -1
	}
}

// Feed consumes a single complete Beast frame, if one is buffered, undoing
// the 0x1A byte-stuffing as it copies the frame out.
func (d *beastDecoder) Feed(in []byte) (int, []modes.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var msgs []modes.Message
	if !d.emittedMode {
		d.emittedMode = true
		msgs = append(msgs, modeChangeEvent(0, d.frequency, d.Epoch(), d.mode.String()))
	}

	// Find the start marker: an 0x1A not immediately preceded by another
	// 0x1A (an escaped literal byte).
	start := -1
	for i := 0; i < len(in); i++ {
		if in[i] != 0x1A {
			continue
		}
		if i > 0 && in[i-1] == 0x1A {
			continue
		}
		start = i
		break
	}
	if start == -1 {
		return len(in), msgs, nil
	}
	if start+1 >= len(in) {
		return start, msgs, nil
	}

	payloadLen := frameLenForType(in[start+1])
	if payloadLen < 0 {
		// Unknown type byte; resync by dropping the marker.
		return start + 2, msgs, nil
	}

	need := 6 + 1 + payloadLen // timestamp + signal + payload, stuffed
	raw := make([]byte, 0, need)
	pos := start + 2
	for len(raw) < need {
		if pos >= len(in) {
			return start, msgs, nil // incomplete frame, wait for more bytes
		}
		b := in[pos]
		if b == 0x1A {
			if pos+1 >= len(in) {
				return start, msgs, nil
			}
			if in[pos+1] != 0x1A {
				// A bare 0x1A inside the frame body marks the start of the
				// next frame; this one is malformed/truncated. Resync.
				return pos, msgs, nil
			}
			pos += 2
			raw = append(raw, 0x1A)
			continue
		}
		pos++
		raw = append(raw, b)
	}

	timestamp := uint64(raw[0])<<40 | uint64(raw[1])<<32 | uint64(raw[2])<<24 |
		uint64(raw[3])<<16 | uint64(raw[4])<<8 | uint64(raw[5])
	payload := raw[7:]

	var m modes.Message
	if in[start+1] == '1' {
		m = decodeModeAC(payload, timestamp)
	} else {
		m = decodeFrame(payload, timestamp, d.cache)
	}

	d.received++
	if in[start+1] != '4' {
		d.recordAndFilter(&m, &msgs)
	}

	return pos, msgs, nil
}

// recordAndFilter tracks every observed address for RecentAircraft, and
// drops (counting as suppressed) non-reference messages for addresses not
// named in the current filter, the same selection the reference decoder's
// C extension leaves to the receiver-link layer but which this client
// performs here so the filter can also gate Mode A/C codes.
func (d *beastDecoder) recordAndFilter(m *modes.Message, msgs *[]modes.Message) {
	if m.HasAddress {
		d.recent[m.Address] = struct{}{}
	}
	if m.DF == modes.DFModeAC {
		if len(d.modeacFilter) > 0 {
			if _, ok := d.modeacFilter[m.ModeACode]; !ok {
				d.suppressed++
				return
			}
		}
		*msgs = append(*msgs, *m)
		return
	}
	if m.DF != 17 && m.DF != 18 && len(d.filter) > 0 {
		if !m.HasAddress {
			d.suppressed++
			return
		}
		if _, ok := d.filter[m.Address]; !ok {
			d.suppressed++
			return
		}
	}
	*msgs = append(*msgs, *m)
}

func (d *beastDecoder) RecentAircraft() map[uint32]struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.recent
	d.recent = make(map[uint32]struct{})
	return r
}

func (d *beastDecoder) UpdateFilter(icaos map[uint32]struct{}) {
	d.mu.Lock()
	d.filter = icaos
	d.mu.Unlock()
}

func (d *beastDecoder) UpdateModeACFilter(codes map[uint16]struct{}) {
	d.mu.Lock()
	d.modeacFilter = codes
	d.mu.Unlock()
}

func (d *beastDecoder) ReceivedMessages() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.received
}

func (d *beastDecoder) SuppressedMessages() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suppressed
}

func (d *beastDecoder) MlatMessages() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mlat
}
