package outputs

import (
	"bufio"
	"net"
	"sync"

	"github.com/mlatclient/edgeclient/internal/coordinator"
	"github.com/mlatclient/edgeclient/internal/logging"
)

// Format selects the wire representation an output publisher writes.
type Format int

const (
	FormatBasestation Format = iota
	FormatExtBasestation
	FormatBeast
)

const (
	basestationHeartbeatInterval = 30.0
	beastKeepaliveInterval       = 60.0
)

// conn is one live output socket, either accepted by a Listener or dialed by
// a Connector. It owns its own write buffer and heartbeat state so the two
// transports share formatting and keepalive logic.
type conn struct {
	format Format

	mu          sync.Mutex
	netConn     net.Conn
	w           *bufio.Writer
	lastWrite   float64
	closed      bool
	description string
}

func newConn(nc net.Conn, format Format, description string, now float64) *conn {
	return &conn{
		format:      format,
		netConn:     nc,
		w:           bufio.NewWriter(nc),
		lastWrite:   now,
		description: description,
	}
}

func (c *conn) publish(icao uint32, fix coordinator.PositionFix, anon, modeac bool, hasPosition bool, now float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	switch c.format {
	case FormatBasestation, FormatExtBasestation:
		ext := c.format == FormatExtBasestation
		line := buildBasestationLine(ext, icao, fix, anon, modeac, now, now)
		if _, err := c.w.WriteString(line + "\n"); err != nil {
			c.closeLocked(err.Error())
			return
		}
	case FormatBeast:
		for _, frame := range buildBeastFrames(icao, fix, anon, modeac, hasPosition) {
			if _, err := c.w.Write(frame); err != nil {
				c.closeLocked(err.Error())
				return
			}
		}
	}
	if err := c.w.Flush(); err != nil {
		c.closeLocked(err.Error())
		return
	}
	c.lastWrite = now
}

func (c *conn) heartbeat(now float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	var due bool
	var payload []byte
	switch c.format {
	case FormatBasestation, FormatExtBasestation:
		due = now-c.lastWrite >= basestationHeartbeatInterval
		payload = []byte("\n")
	case FormatBeast:
		due = now-c.lastWrite >= beastKeepaliveInterval
		payload = beastKeepalive
	}
	if !due {
		return
	}
	if _, err := c.w.Write(payload); err != nil {
		c.closeLocked(err.Error())
		return
	}
	if err := c.w.Flush(); err != nil {
		c.closeLocked(err.Error())
		return
	}
	c.lastWrite = now
}

func (c *conn) close(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked(reason)
}

func (c *conn) closeLocked(reason string) {
	if c.closed {
		return
	}
	c.closed = true
	_ = c.netConn.Close()
	logging.Infof("outputs: %s closed: %s", c.description, reason)
}

func (c *conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
