package decoder

import (
	"sync"

	"github.com/mlatclient/edgeclient/internal/modes"
)

// sbsFrequency is the tick rate used by the Kinetic/Basestation binary feed
// this decoder targets: a 1MHz counter, independent of the Beast clock.
const sbsFrequency = 1000000

// sbsDecoder parses the DLE(0x10)/STX(0x02) ... DLE/ETX(0x03) framed binary
// protocol some Basestation-compatible receivers speak: inside the
// envelope, a one-byte type, a 6-byte big-endian timestamp, a 1-byte signal
// level and the frame payload, the same inner layout as Beast, with 0x10
// substituted for 0x1A as the escape byte.
type sbsDecoder struct {
	now func() float64

	mu          sync.Mutex
	cache       *addressCache
	filter      map[uint32]struct{}
	emittedMode bool
	recent      map[uint32]struct{}
	received    uint64
	suppressed  uint64
}

func newSBSDecoder(now func() float64) *sbsDecoder {
	return &sbsDecoder{
		now:    now,
		cache:  newAddressCache(now),
		recent: make(map[uint32]struct{}),
	}
}

func (d *sbsDecoder) Mode() Mode        { return SBS }
func (d *sbsDecoder) Frequency() uint64 { return sbsFrequency }
func (d *sbsDecoder) Epoch() string     { return "" }

const (
	dle = 0x10
	stx = 0x02
	etx = 0x03
)

func (d *sbsDecoder) Feed(in []byte) (int, []modes.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var msgs []modes.Message
	if !d.emittedMode {
		d.emittedMode = true
		msgs = append(msgs, modeChangeEvent(0, sbsFrequency, "", "sbs"))
	}

	start := findDLESTX(in)
	if start == -1 {
		if len(in) > 1 {
			return len(in) - 1, msgs, nil // keep the last byte in case it's a split DLE
		}
		return 0, msgs, nil
	}
	bodyStart := start + 2

	body, end, ok := readUntilDLEETX(in, bodyStart)
	if !ok {
		return start, msgs, nil // incomplete packet, wait for more bytes
	}

	if len(body) >= 9 {
		payloadLen := len(body) - 8
		if payloadLen == 2 || payloadLen == 7 || payloadLen == 14 {
			timestamp := uint64(body[1])<<40 | uint64(body[2])<<32 | uint64(body[3])<<24 |
				uint64(body[4])<<16 | uint64(body[5])<<8 | uint64(body[6])
			payload := body[8:]

			var m modes.Message
			if payloadLen == 2 {
				m = decodeModeAC(payload, timestamp)
			} else {
				m = decodeFrame(payload, timestamp, d.cache)
			}
			d.received++
			if m.HasAddress {
				d.recent[m.Address] = struct{}{}
			}
			if m.DF != 17 && m.DF != 18 && m.DF != modes.DFModeAC && len(d.filter) > 0 {
				if !m.HasAddress {
					d.suppressed++
				} else if _, ok := d.filter[m.Address]; !ok {
					d.suppressed++
				} else {
					msgs = append(msgs, m)
				}
			} else {
				msgs = append(msgs, m)
			}
		}
	}

	return end, msgs, nil
}

// findDLESTX locates an unescaped DLE STX marker.
func findDLESTX(in []byte) int {
	for i := 0; i+1 < len(in); i++ {
		if in[i] != dle || in[i+1] != stx {
			continue
		}
		if i > 0 && in[i-1] == dle {
			continue
		}
		return i
	}
	return -1
}

// readUntilDLEETX copies bytes from start, undoubling DLE-stuffed bytes,
// until an unescaped DLE ETX is found, returning the unescaped body and the
// input offset just past the terminator.
func readUntilDLEETX(in []byte, start int) (body []byte, end int, ok bool) {
	i := start
	for i < len(in) {
		b := in[i]
		if b != dle {
			body = append(body, b)
			i++
			continue
		}
		if i+1 >= len(in) {
			return nil, 0, false
		}
		switch in[i+1] {
		case dle:
			body = append(body, dle)
			i += 2
		case etx:
			return body, i + 2, true
		default:
			body = append(body, b)
			i++
		}
	}
	return nil, 0, false
}

func (d *sbsDecoder) RecentAircraft() map[uint32]struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.recent
	d.recent = make(map[uint32]struct{})
	return r
}

func (d *sbsDecoder) UpdateFilter(icaos map[uint32]struct{}) {
	d.mu.Lock()
	d.filter = icaos
	d.mu.Unlock()
}

func (d *sbsDecoder) UpdateModeACFilter(codes map[uint16]struct{}) {}

func (d *sbsDecoder) ReceivedMessages() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.received
}

func (d *sbsDecoder) SuppressedMessages() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suppressed
}

func (d *sbsDecoder) MlatMessages() uint64 { return 0 }
