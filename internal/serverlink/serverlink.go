// Package serverlink implements the TCP+UDP client to the mlat server:
// JSON handshake and compression negotiation, the outbound line queue, the
// binary UDP timing channel, and result decoding.
package serverlink

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/mlatclient/edgeclient/internal/coordinator"
	"github.com/mlatclient/edgeclient/internal/logging"
	"github.com/mlatclient/edgeclient/internal/modes"
	"github.com/mlatclient/edgeclient/internal/udpcodec"
)

const (
	outboundQueueMaxAge   = 1.0
	outboundHardCapBytes  = 65536
	tcpHeartbeatInterval  = 120.0
	tcpInactivityTimeout  = 60.0
	flushInterval         = 0.25
	clockJumpRateLimit    = 0.5

	clientVersion = "mlatclient-edge/1.0"
)

// Coordinator is the subset of the coordinator the server link reports
// inbound directives and position results to.
type Coordinator interface {
	StartSending(icaos []uint32)
	StopSending(icaos []uint32)
	ServerMlatResult(icao uint32, fix coordinator.PositionFix, anon, modeac bool)
}

type queuedLine struct {
	data      []byte
	producedAt float64
}

// Link is the TCP+UDP client to the mlat server.
type Link struct {
	addr        string
	user        string
	lat, lon, alt float64
	privacy     bool
	wantUDP     bool
	uuid        string

	coordinator Coordinator
	now         func() float64

	mu             sync.Mutex
	conn           net.Conn
	udpConn        net.PacketConn
	udpAddr        *net.UDPAddr
	udpKey         uint32
	udpBuf         *udpcodec.Buffer
	compressMethod CompressMethod
	outComp        *outboundCompressor
	inComp         *inboundDecompressor
	splitSync      bool
	ready          bool

	queue             []queuedLine
	unsentBytes       int
	lastInboundData   float64
	lastHeartbeatSent float64
	lastClockJumpSend float64

	stats Stats
}

// Stats is the subset of internal/stats the server link updates directly.
type Stats interface {
	AddServerTxBytes(n uint64)
	AddServerRxBytes(n uint64)
	AddServerUDPBytes(n uint64)
}

// New creates a server link to the given host:port.
func New(addr, user string, lat, lon, alt float64, privacy, wantUDP bool, uuid string, coord Coordinator, stats Stats, now func() float64) *Link {
	return &Link{
		addr: addr, user: user, lat: lat, lon: lon, alt: alt,
		privacy: privacy, wantUDP: wantUDP, uuid: uuid,
		coordinator: coord, stats: stats, now: now,
	}
}

// Connect dials the server, performs the handshake, and starts the read
// loop. It blocks until the handshake completes or fails.
func (l *Link) Connect() error {
	conn, err := net.DialTimeout("tcp", l.addr, 10*time.Second)
	if err != nil {
		return &ConnectionError{Reason: err.Error(), Fatal: false}
	}

	l.mu.Lock()
	l.conn = conn
	l.compressMethod = CompressNone
	l.outComp = newOutboundCompressor(CompressNone)
	l.ready = false
	l.lastInboundData = l.now()
	l.mu.Unlock()

	if err := l.handshake(conn); err != nil {
		_ = conn.Close()
		return err
	}

	go l.readLoop(conn)
	return nil
}

func (l *Link) handshake(conn net.Conn) error {
	udpTransport := any(false)
	if l.wantUDP {
		udpTransport = 2
	}

	req := handshakeRequest{
		Version:          3,
		ClientVersion:    clientVersion,
		Compress:         []string{string(CompressNone), string(CompressZlib), string(CompressZlib2)},
		SelectiveTraffic: true,
		Heartbeat:        true,
		ReturnResults:    true,
		UDPTransport:     udpTransport,
		ReturnResultFmt:  "ecef",
		UUID:             l.uuid,
		Lat:              l.lat,
		Lon:              l.lon,
		Alt:              l.alt,
		User:             l.user,
		Privacy:          l.privacy,
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	if _, err := conn.Write(raw); err != nil {
		return &ConnectionError{Reason: err.Error(), Fatal: false}
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return &ConnectionError{Reason: err.Error(), Fatal: false}
	}

	var resp handshakeResponse
	if err := json.Unmarshal(bytes.TrimSpace(line), &resp); err != nil {
		return &ErrProtocolViolation{Detail: fmt.Sprintf("malformed handshake response: %v", err)}
	}

	if len(resp.Deny) > 0 {
		return &ConnectionError{Reason: fmt.Sprintf("server denied connection: %v", resp.Deny), Fatal: true}
	}
	if resp.Motd != "" {
		logging.Infof("serverlink: motd: %s", resp.Motd)
	}

	l.mu.Lock()
	l.splitSync = resp.SplitSync
	switch CompressMethod(resp.Compress) {
	case CompressZlib:
		l.compressMethod = CompressZlib
		l.outComp = newOutboundCompressor(CompressZlib)
	case CompressZlib2:
		l.compressMethod = CompressZlib2
		l.outComp = newOutboundCompressor(CompressZlib2)
		l.inComp = newInboundDecompressor()
	default:
		l.compressMethod = CompressNone
		l.outComp = newOutboundCompressor(CompressNone)
	}

	if len(resp.UDPTransport) == 3 {
		host, _ := resp.UDPTransport[0].(string)
		if host == "" {
			host, _, _ = net.SplitHostPort(l.addr)
		}
		portF, _ := resp.UDPTransport[1].(float64)
		keyF, _ := resp.UDPTransport[2].(float64)
		l.udpKey = uint32(keyF)
		l.udpAddr = &net.UDPAddr{IP: net.ParseIP(host), Port: int(portF)}
		if uc, err := net.ListenPacket("udp", ":0"); err == nil {
			l.udpConn = uc
			l.udpBuf = udpcodec.New(l.udpKey, uint64(l.now()*1e9), l.flushUDP)
		}
	}
	l.ready = true
	l.mu.Unlock()

	l.enqueueLine(map[string]any{"rate_report": map[string]float64{}})
	return nil
}

func (l *Link) flushUDP(datagram []byte) {
	l.mu.Lock()
	conn := l.udpConn
	addr := l.udpAddr
	l.mu.Unlock()
	if conn == nil || addr == nil {
		return
	}
	n, err := conn.WriteTo(datagram, addr)
	if err != nil {
		logging.Warnf("serverlink: udp send failed: %v", err)
		return
	}
	l.stats.AddServerUDPBytes(uint64(n))
}

func (l *Link) readLoop(conn net.Conn) {
	reader := bufio.NewReader(conn)
	for {
		var line []byte
		var err error
		l.mu.Lock()
		useComp := l.compressMethod == CompressZlib2
		l.mu.Unlock()

		if useComp {
			line, err = l.readCompressedLine(reader)
		} else {
			line, err = reader.ReadBytes('\n')
		}
		if len(line) > 0 {
			l.stats.AddServerRxBytes(uint64(len(line)))
			l.mu.Lock()
			l.lastInboundData = l.now()
			l.mu.Unlock()
			l.handleLine(bytes.TrimSpace(line))
		}
		if err != nil {
			l.Disconnect(fmt.Sprintf("read error: %v", err))
			return
		}
	}
}

func (l *Link) readCompressedLine(reader *bufio.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(reader, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	block := make([]byte, n)
	if _, err := io.ReadFull(reader, block); err != nil {
		return nil, err
	}
	l.mu.Lock()
	comp := l.inComp
	l.mu.Unlock()
	if comp == nil {
		return nil, &ErrProtocolViolation{Detail: "zlib2 negotiated but no decompressor attached"}
	}
	return comp.Feed(block)
}

func (l *Link) handleLine(line []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		l.Disconnect(fmt.Sprintf("malformed json from server: %v", err))
		return
	}

	if len(env.StartSending) > 0 {
		icaos := make([]uint32, 0, len(env.StartSending))
		for _, s := range env.StartSending {
			if icao, err := hexToICAO(s); err == nil {
				icaos = append(icaos, icao)
			}
		}
		l.coordinator.StartSending(icaos)
	}
	if len(env.StopSending) > 0 {
		icaos := make([]uint32, 0, len(env.StopSending))
		for _, s := range env.StopSending {
			if icao, err := hexToICAO(s); err == nil {
				icaos = append(icaos, icao)
			}
		}
		l.coordinator.StopSending(icaos)
	}
	if env.Result != nil {
		res, err := decodeResult(env.Result)
		if err != nil {
			logging.Warnf("serverlink: %v", err)
			return
		}
		fix := coordinator.PositionFix{
			Lat: res.Lat, Lon: res.Lon, Alt: res.Alt, ErrorEst: res.ErrorEst,
			NStations: res.NStations, Callsign: res.Callsign, Squawk: res.Squawk,
			NSVel: res.NSVel, EWVel: res.EWVel, VRate: res.VRate, HasVelocity: res.HasVelocity,
		}
		icao, _ := hexToICAO(env.Result.Addr)
		l.coordinator.ServerMlatResult(icao, fix, false, false)
	}
}

// Heartbeat is called roughly every 0.5s: flushes the outbound queue,
// sends a TCP heartbeat if due, and checks the inactivity timeout.
func (l *Link) Heartbeat(now float64) {
	l.mu.Lock()
	conn := l.conn
	ready := l.ready
	lastIn := l.lastInboundData
	lastHB := l.lastHeartbeatSent
	l.mu.Unlock()
	if conn == nil {
		return
	}

	if now-lastIn > tcpInactivityTimeout {
		l.Disconnect(fmt.Sprintf("no data received from server in %.0fs", tcpInactivityTimeout))
		return
	}
	if ready && now-lastHB >= tcpHeartbeatInterval {
		l.enqueueLine(map[string]any{"heartbeat": map[string]any{"client_time": int64(now)}})
		l.mu.Lock()
		l.lastHeartbeatSent = now
		l.mu.Unlock()
	}

	l.flushQueue(now)
}

func (l *Link) enqueueLine(msg map[string]any) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, queuedLine{data: raw, producedAt: l.now()})
	l.unsentBytes += len(raw)
	overflow := l.unsentBytes > outboundHardCapBytes
	l.mu.Unlock()
	if overflow {
		l.Disconnect("outbound queue exceeded 65536 unsent bytes")
	}
}

func (l *Link) flushQueue(now float64) {
	l.mu.Lock()
	if len(l.queue) == 0 {
		l.mu.Unlock()
		return
	}
	fresh := make([]queuedLine, 0, len(l.queue))
	for _, q := range l.queue {
		if now-q.producedAt > outboundQueueMaxAge {
			l.unsentBytes -= len(q.data)
			continue
		}
		fresh = append(fresh, q)
	}
	l.queue = fresh
	conn := l.conn
	comp := l.outComp
	l.mu.Unlock()

	if conn == nil || comp == nil {
		return
	}
	sent := 0
	for _, q := range fresh {
		out := comp.Wrap(q.data)
		n, err := conn.Write(out)
		if err != nil {
			l.Disconnect(fmt.Sprintf("write error: %v", err))
			break
		}
		l.stats.AddServerTxBytes(uint64(n))
		l.mu.Lock()
		l.unsentBytes -= len(q.data)
		l.mu.Unlock()
		sent++
	}

	if sent == 0 {
		return
	}
	l.mu.Lock()
	if sent <= len(l.queue) {
		l.queue = l.queue[sent:]
	}
	l.mu.Unlock()
}

// Disconnect idempotently tears down the connection.
func (l *Link) Disconnect(reason string) {
	l.mu.Lock()
	conn := l.conn
	udp := l.udpConn
	inComp := l.inComp
	l.conn = nil
	l.udpConn = nil
	l.ready = false
	l.mu.Unlock()

	if conn == nil {
		return
	}
	_ = conn.Close()
	if udp != nil {
		_ = udp.Close()
	}
	if inComp != nil {
		_ = inComp.Close()
	}
	logging.Warnf("serverlink: disconnected: %s", reason)
}

// SplitSyncNegotiated reports whether the server accepted split-sync
// submission.
func (l *Link) SplitSyncNegotiated() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.splitSync
}

// SendMlat enqueues a single timing measurement for transmission, via UDP
// when negotiated, else TCP.
func (l *Link) SendMlat(m modes.Message) {
	if len(m.Payload) == 7 {
		l.mu.Lock()
		buf := l.udpBuf
		l.mu.Unlock()
		if buf != nil {
			buf.MlatShort(m.Timestamp, m.Payload)
			return
		}
	}
	if len(m.Payload) == 14 {
		l.mu.Lock()
		buf := l.udpBuf
		l.mu.Unlock()
		if buf != nil {
			buf.MlatLong(m.Timestamp, m.Payload)
			return
		}
	}
	l.enqueueLine(map[string]any{"mlat": map[string]any{"t": m.Timestamp, "m": fmt.Sprintf("%x", m.Payload)}})
}

// SendSync enqueues a reference-pair sync submission.
func (l *Link) SendSync(even, odd modes.Message) {
	l.mu.Lock()
	buf := l.udpBuf
	l.mu.Unlock()
	if buf != nil {
		buf.Sync(even.Timestamp, odd.Timestamp, even.Payload, odd.Payload)
		return
	}
	l.enqueueLine(map[string]any{"sync": map[string]any{
		"et": even.Timestamp, "em": fmt.Sprintf("%x", even.Payload),
		"ot": odd.Timestamp, "om": fmt.Sprintf("%x", odd.Payload),
	}})
}

// SendSplitSync enqueues a single-message synchronization reference.
func (l *Link) SendSplitSync(m modes.Message) {
	l.mu.Lock()
	buf := l.udpBuf
	l.mu.Unlock()
	if buf != nil {
		buf.SSync(m.Timestamp, m.Payload)
		return
	}
	l.enqueueLine(map[string]any{"ssync": map[string]any{"t": m.Timestamp, "m": fmt.Sprintf("%x", m.Payload)}})
}

// SendClockReset notifies the server of a clock discontinuity.
func (l *Link) SendClockReset(reason string, frequency uint64, epoch string, mode string) {
	l.enqueueLine(map[string]any{"clock_reset": map[string]any{
		"reason": reason, "frequency": frequency, "epoch": epoch, "mode": mode,
	}})
}

// SendClockJump notifies the server of a receiver timestamp discontinuity,
// rate-limited to at most once every 0.5s.
func (l *Link) SendClockJump() {
	now := l.now()
	l.mu.Lock()
	if now-l.lastClockJumpSend < clockJumpRateLimit {
		l.mu.Unlock()
		return
	}
	l.lastClockJumpSend = now
	l.mu.Unlock()
	l.enqueueLine(map[string]any{"clock_jump": true})
}

// SendSeen reports newly-tracked aircraft.
func (l *Link) SendSeen(icaos []uint32) {
	l.enqueueLine(map[string]any{"seen": hexICAOs(icaos)})
}

// SendLost reports aircraft that dropped out of the registry.
func (l *Link) SendLost(icaos []uint32) {
	l.enqueueLine(map[string]any{"lost": hexICAOs(icaos)})
}

// SendRateReport reports the per-aircraft ADS-B position rate.
func (l *Link) SendRateReport(rates map[uint32]float64) {
	out := make(map[string]float64, len(rates))
	for icao, rate := range rates {
		out[fmt.Sprintf("%06x", icao)] = rate
	}
	l.enqueueLine(map[string]any{"rate_report": out})
}

// SendPositionUpdate reports a locally-sourced (e.g. radarcape) reference
// position update.
func (l *Link) SendPositionUpdate(lat, lon, alt float64, referenceFrame string) {
	l.enqueueLine(map[string]any{"position_update": map[string]any{
		"lat": lat, "lon": lon, "alt": alt, "reference": referenceFrame,
	}})
}

// InputConnected notifies the server that the receiver link is up.
func (l *Link) InputConnected() {
	l.enqueueLine(map[string]any{"input_connected": "connected"})
}

// InputDisconnected notifies the server that the receiver link is down.
func (l *Link) InputDisconnected() {
	l.enqueueLine(map[string]any{"input_disconnected": "disconnected"})
}
