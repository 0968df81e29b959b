package decoder

import (
	"encoding/hex"
	"sync"

	"github.com/mlatclient/edgeclient/internal/modes"
)

// avrmlatFrequency is the tick rate of the 12-hex-digit (48-bit) timestamp
// prefix dump1090's --net-ro-port raw-with-timestamp stream emits: the same
// 12MHz counter as Beast, just hex-encoded instead of binary.
const avrmlatFrequency = 12000000

// avrmlatDecoder parses lines of the form ';\n@' + 12 hex timestamp digits
// + hex-encoded frame + ';', one frame per line. Only the '@' (timestamp
// present) marker is decoded; '%' and '<' variants are skipped, since they
// either lack a usable timestamp or use a layout this client has not been
// asked to support.
type avrmlatDecoder struct {
	now func() float64

	mu          sync.Mutex
	cache       *addressCache
	filter      map[uint32]struct{}
	emittedMode bool
	recent      map[uint32]struct{}
	received    uint64
	suppressed  uint64
}

func newAVRMLATDecoder(now func() float64) *avrmlatDecoder {
	return &avrmlatDecoder{
		now:    now,
		cache:  newAddressCache(now),
		recent: make(map[uint32]struct{}),
	}
}

func (d *avrmlatDecoder) Mode() Mode        { return AVRMLAT }
func (d *avrmlatDecoder) Frequency() uint64 { return avrmlatFrequency }
func (d *avrmlatDecoder) Epoch() string     { return "" }

func (d *avrmlatDecoder) Feed(in []byte) (int, []modes.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var msgs []modes.Message
	if !d.emittedMode {
		d.emittedMode = true
		msgs = append(msgs, modeChangeEvent(0, avrmlatFrequency, "", "avrmlat"))
	}

	start := -1
	for i, b := range in {
		if b == ';' || b == '\n' || b == '\r' {
			continue
		}
		start = i
		break
	}
	if start == -1 {
		return len(in), msgs, nil
	}

	end := -1
	for i := start; i < len(in); i++ {
		if in[i] == ';' {
			end = i
			break
		}
	}
	if end == -1 {
		return start, msgs, nil // incomplete line, wait for the terminator
	}

	line := in[start:end]
	consumed := end + 1

	if len(line) < 13 || line[0] != '@' {
		// Not a timestamped frame we understand; skip it.
		return consumed, msgs, nil
	}

	tsHex := line[1:13]
	frameHex := line[13:]
	var tsBytes [6]byte
	if _, err := hex.Decode(tsBytes[:], tsHex); err != nil {
		return consumed, msgs, nil
	}
	timestamp := uint64(tsBytes[0])<<40 | uint64(tsBytes[1])<<32 | uint64(tsBytes[2])<<24 |
		uint64(tsBytes[3])<<16 | uint64(tsBytes[4])<<8 | uint64(tsBytes[5])

	payload := make([]byte, hex.DecodedLen(len(frameHex)))
	n, err := hex.Decode(payload, frameHex)
	if err != nil || (n != 2 && n != 7 && n != 14) {
		return consumed, msgs, nil
	}
	payload = payload[:n]

	var m modes.Message
	if n == 2 {
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

	return consumed, msgs, nil
}

func (d *avrmlatDecoder) RecentAircraft() map[uint32]struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.recent
	d.recent = make(map[uint32]struct{})
	return r
}

func (d *avrmlatDecoder) UpdateFilter(icaos map[uint32]struct{}) {
	d.mu.Lock()
	d.filter = icaos
	d.mu.Unlock()
}

func (d *avrmlatDecoder) UpdateModeACFilter(codes map[uint16]struct{}) {
	// AVR-MLAT framing carries no Mode A/C replies; nothing to filter.
}

func (d *avrmlatDecoder) ReceivedMessages() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.received
}

func (d *avrmlatDecoder) SuppressedMessages() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suppressed
}

func (d *avrmlatDecoder) MlatMessages() uint64 { return 0 }
