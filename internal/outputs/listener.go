package outputs

import (
	"fmt"
	"net"
	"sync"

	"github.com/mlatclient/edgeclient/internal/coordinator"
	"github.com/mlatclient/edgeclient/internal/logging"
)

// listener accepts inbound TCP connections and fans position updates out to
// all of them, for "results protocol,listen,port" endpoints.
type listener struct {
	format   Format
	listener net.Listener
	now      func() float64

	mu    sync.Mutex
	conns []*conn
}

func newListener(format Format, addr string, now func() float64) (*listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	l := &listener{format: format, listener: ln, now: now}
	go l.acceptLoop()
	logging.Infof("outputs: listening for %s connections on %s", formatName(format), addr)
	return l, nil
}

func (l *listener) acceptLoop() {
	for {
		nc, err := l.listener.Accept()
		if err != nil {
			return
		}
		c := newConn(nc, l.format, fmt.Sprintf("%s connection from %s", formatName(l.format), nc.RemoteAddr()), l.now())
		logging.Infof("outputs: accepted %s", c.description)
		l.mu.Lock()
		l.conns = append(l.conns, c)
		l.mu.Unlock()
	}
}

func (l *listener) publish(icao uint32, fix coordinator.PositionFix, anon, modeac bool, hasPosition bool) {
	now := l.now()
	l.mu.Lock()
	conns := append([]*conn(nil), l.conns...)
	l.mu.Unlock()
	for _, c := range conns {
		c.publish(icao, fix, anon, modeac, hasPosition, now)
	}
	l.reap()
}

func (l *listener) heartbeat(now float64) {
	l.mu.Lock()
	conns := append([]*conn(nil), l.conns...)
	l.mu.Unlock()
	for _, c := range conns {
		c.heartbeat(now)
	}
	l.reap()
}

func (l *listener) reap() {
	l.mu.Lock()
	defer l.mu.Unlock()
	live := l.conns[:0]
	for _, c := range l.conns {
		if !c.isClosed() {
			live = append(live, c)
		}
	}
	l.conns = live
}

func (l *listener) close() {
	l.mu.Lock()
	conns := l.conns
	l.conns = nil
	l.mu.Unlock()
	for _, c := range conns {
		c.close("shutting down")
	}
	_ = l.listener.Close()
}

func formatName(f Format) string {
	switch f {
	case FormatBasestation:
		return "Basestation-format results"
	case FormatExtBasestation:
		return "Extended Basestation-format results"
	case FormatBeast:
		return "Beast-format results"
	default:
		return "unknown-format results"
	}
}
