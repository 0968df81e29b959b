package outputs

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/mlatclient/edgeclient/internal/coordinator"
	"github.com/mlatclient/edgeclient/internal/logging"
	"github.com/mlatclient/edgeclient/internal/netutil"
)

const connectorReconnectInterval = 30.0

// connector dials out to a fixed results consumer, for "results
// protocol,connect,host:port" endpoints. It reconnects on a fixed interval
// rather than the server link's jittered backoff, matching the reference
// client's simpler output-side reconnect policy.
type connector struct {
	format   Format
	resolver *netutil.Resolver
	now      func() float64

	mu             sync.Mutex
	active         *conn
	nextReconnect  float64
}

func newConnector(format Format, host, port string, now func() float64) *connector {
	c := &connector{
		format:        format,
		resolver:      netutil.NewResolver(host, port),
		now:           now,
		nextReconnect: now(),
	}
	return c
}

func (c *connector) publish(icao uint32, fix coordinator.PositionFix, anon, modeac bool, hasPosition bool) {
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()
	if active == nil {
		return
	}
	active.publish(icao, fix, anon, modeac, hasPosition, c.now())
}

func (c *connector) heartbeat(now float64) {
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()

	if active != nil {
		if active.isClosed() {
			c.mu.Lock()
			c.active = nil
			c.nextReconnect = now + connectorReconnectInterval
			c.mu.Unlock()
		} else {
			active.heartbeat(now)
			return
		}
	}

	c.mu.Lock()
	due := now >= c.nextReconnect
	c.mu.Unlock()
	if due {
		c.reconnect(now)
	}
}

func (c *connector) reconnect(now float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	addr, err := c.resolver.Next(ctx)
	if err != nil {
		logging.Warnf("outputs: %s resolve failed: %v", formatName(c.format), err)
		c.mu.Lock()
		c.nextReconnect = now + connectorReconnectInterval
		c.mu.Unlock()
		return
	}

	nc, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		logging.Warnf("outputs: %s connect to %s failed: %v", formatName(c.format), addr, err)
		c.mu.Lock()
		c.nextReconnect = now + connectorReconnectInterval
		c.mu.Unlock()
		return
	}

	logging.Infof("outputs: %s connected to %s", formatName(c.format), addr)
	c.mu.Lock()
	c.active = newConn(nc, c.format, formatName(c.format)+" connection to "+addr, now)
	c.mu.Unlock()
}

func (c *connector) close() {
	c.mu.Lock()
	active := c.active
	c.active = nil
	c.mu.Unlock()
	if active != nil {
		active.close("shutting down")
	}
}
