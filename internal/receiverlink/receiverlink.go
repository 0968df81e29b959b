// Package receiverlink implements the TCP client to the local Mode S/ADS-B
// receiver: connection lifecycle, format auto-detection, residual-buffer
// parsing, and the inactivity watchdog.
package receiverlink

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/mlatclient/edgeclient/internal/decoder"
	"github.com/mlatclient/edgeclient/internal/logging"
	"github.com/mlatclient/edgeclient/internal/modes"
)

const (
	inactivityTimeout = 150.0
	maxResidualBytes  = 5120
)

// beastModeACSettings are the receiver-specific Beast configuration byte
// strings toggling Mode A/C reporting; preserved verbatim from the
// reference implementation since they are receiver firmware magic, not
// something this client can derive.
var (
	beastModeACDisable = []byte{0x1a, '1', 'C', 0x1a, '1', 'd', 0x1a, '1', 'f', 0x1a, '1', 'j'}
	beastModeACEnable  = []byte{0x1a, '1', 'C', 0x1a, '1', 'd', 0x1a, '1', 'f', 0x1a, '1', 'J'}
)

// Coordinator is the subset of the coordinator the receiver link drives.
type Coordinator interface {
	InputReceivedMessages(msgs []modes.Message)
	InputConnected()
	InputDisconnected()
}

// Link is the TCP client to the local receiver.
type Link struct {
	addr        string
	mode        decoder.Mode
	autoDetect  bool
	coordinator Coordinator
	now         func() float64

	mu         sync.Mutex
	conn       net.Conn
	w          *bufio.Writer
	dec        decoder.Decoder
	newDecoder func(decoder.Mode) decoder.Decoder

	residual         []byte
	lastDataReceived float64
	recent           map[uint32]struct{}

	filter        map[uint32]struct{}
	modeacFilter  map[uint16]struct{}
	modeacWasSet  bool
	connecting    bool
	disconnected  bool
}

// New creates a receiver link that dials addr. If autoDetect is true the
// link performs §4.C format auto-detection instead of assuming a fixed
// framing, and mode is ignored.
func New(addr string, mode decoder.Mode, autoDetect bool, coord Coordinator, now func() float64, newDecoder func(decoder.Mode) decoder.Decoder) *Link {
	return &Link{
		addr:         addr,
		mode:         mode,
		autoDetect:   autoDetect,
		coordinator:  coord,
		now:          now,
		newDecoder:   newDecoder,
		recent:       make(map[uint32]struct{}),
		filter:       make(map[uint32]struct{}),
		modeacFilter: make(map[uint16]struct{}),
	}
}

// Start dials the receiver asynchronously; read errors surface through the
// read goroutine's disconnect path, not through Start's return value.
func (l *Link) Start() {
	l.mu.Lock()
	if l.connecting || l.conn != nil {
		l.mu.Unlock()
		return
	}
	l.connecting = true
	l.mu.Unlock()

	go l.connectAndServe()
}

func (l *Link) connectAndServe() {
	conn, err := net.DialTimeout("tcp", l.addr, 10*time.Second)
	l.mu.Lock()
	l.connecting = false
	if err != nil {
		l.mu.Unlock()
		logging.Warnf("receiverlink: connect to %s failed: %v", l.addr, err)
		return
	}
	l.conn = conn
	l.w = bufio.NewWriter(conn)
	l.lastDataReceived = l.now()
	l.disconnected = false
	if !l.autoDetect {
		l.dec = l.newDecoder(l.mode)
	}
	l.mu.Unlock()

	l.coordinator.InputConnected()
	l.readLoop(conn)
}

func (l *Link) readLoop(conn net.Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			l.handleBytes(buf[:n])
		}
		if err != nil {
			l.Disconnect(fmt.Sprintf("read error: %v", err))
			return
		}
	}
}

func (l *Link) handleBytes(b []byte) {
	l.mu.Lock()
	l.lastDataReceived = l.now()
	l.residual = append(l.residual, b...)

	if l.dec == nil && l.autoDetect {
		mode, offset, err := decoder.Detect(l.residual)
		if err == decoder.ErrNoFraming {
			if len(l.residual) >= 512 {
				l.mu.Unlock()
				l.Disconnect("no recognized receiver framing found in first 512 bytes")
				return
			}
			l.mu.Unlock()
			return
		}
		if err == decoder.ErrUnusableFraming {
			l.mu.Unlock()
			l.Disconnect(fmt.Sprintf("receiver framing %s has no timestamps, unusable for mlat", mode))
			return
		}
		l.dec = l.newDecoder(mode)
		l.residual = l.residual[offset:]
		logging.Infof("receiverlink: detected input format=%s", mode)
	}

	if l.dec == nil {
		l.mu.Unlock()
		return
	}

	var allMsgs []modes.Message
	for {
		consumed, msgs, pendingErr := l.dec.Feed(l.residual)
		allMsgs = append(allMsgs, msgs...)
		if consumed > 0 {
			l.residual = l.residual[consumed:]
		}
		if pendingErr != nil {
			// Feed once more so the decoder surfaces the fault through
			// its own pendingErr accounting.
			_, _, pendingErr2 := l.dec.Feed(nil)
			l.mu.Unlock()
			l.Disconnect(fmt.Sprintf("decoder error: %v / %v", pendingErr, pendingErr2))
			return
		}
		if consumed == 0 {
			break
		}
	}

	if len(l.residual) > maxResidualBytes {
		l.mu.Unlock()
		l.Disconnect(fmt.Sprintf("receiver parser fell behind: residual buffer exceeded %d bytes", maxResidualBytes))
		return
	}

	for _, m := range allMsgs {
		if m.HasAddress {
			l.recent[m.Address] = struct{}{}
		}
	}
	l.mu.Unlock()

	if len(allMsgs) > 0 {
		l.coordinator.InputReceivedMessages(allMsgs)
	}
}

// Heartbeat is called roughly every 0.5s; it enforces the inactivity
// timeout. While no connection is open it does nothing: the link does not
// redial the receiver after a disconnect.
func (l *Link) Heartbeat(now float64) {
	l.mu.Lock()
	conn := l.conn
	last := l.lastDataReceived
	l.mu.Unlock()
	if conn == nil {
		return
	}
	if now-last > inactivityTimeout {
		l.Disconnect(fmt.Sprintf("no data received from receiver in %.0fs", inactivityTimeout))
	}
}

// Disconnect idempotently closes the connection and notifies the
// coordinator exactly once.
func (l *Link) Disconnect(reason string) {
	l.mu.Lock()
	if l.disconnected {
		l.mu.Unlock()
		return
	}
	l.disconnected = true
	conn := l.conn
	l.conn = nil
	l.dec = nil
	l.residual = nil
	l.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	logging.Warnf("receiverlink: disconnected: %s", reason)
	l.coordinator.InputDisconnected()
}

// RecentAircraft returns and clears the set of addresses observed (filtered
// or not) since the last call.
func (l *Link) RecentAircraft() map[uint32]struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.recent
	l.recent = make(map[uint32]struct{})
	if l.dec != nil {
		for icao := range l.dec.RecentAircraft() {
			r[icao] = struct{}{}
		}
	}
	return r
}

// UpdateFilter replaces the per-DF address filter.
func (l *Link) UpdateFilter(icaos map[uint32]struct{}) {
	l.mu.Lock()
	l.filter = icaos
	if l.dec != nil {
		l.dec.UpdateFilter(icaos)
	}
	l.mu.Unlock()
}

// UpdateModeACFilter replaces the Mode A/C whitelist, emitting a receiver
// reconfiguration byte string on empty<->nonempty transitions.
func (l *Link) UpdateModeACFilter(codes map[uint16]struct{}) {
	l.mu.Lock()
	wasEmpty := len(l.modeacFilter) == 0
	isEmpty := len(codes) == 0
	l.modeacFilter = codes
	if l.dec != nil {
		l.dec.UpdateModeACFilter(codes)
	}
	w := l.w
	l.mu.Unlock()

	if wasEmpty == isEmpty {
		return
	}
	if w == nil {
		return
	}
	var settings []byte
	if isEmpty {
		settings = beastModeACDisable
	} else {
		settings = beastModeACEnable
	}
	l.mu.Lock()
	_, _ = w.Write(settings)
	_ = w.Flush()
	l.mu.Unlock()
}

// Frequency returns the receiver clock frequency in ticks/second as
// reported by the active decoder, or 0 if no decoder is attached yet.
func (l *Link) Frequency() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dec == nil {
		return 0
	}
	return l.dec.Frequency()
}
