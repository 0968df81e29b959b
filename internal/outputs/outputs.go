// Package outputs implements the downstream result publishers: Basestation,
// Extended Basestation, and Beast-format feeds of server-computed position
// fixes, each either listening for consumers or connecting out to one.
package outputs

import (
	"fmt"
	"net"

	"github.com/mlatclient/edgeclient/internal/config"
	"github.com/mlatclient/edgeclient/internal/coordinator"
)

// publisher is the common shape listener and connector both implement.
type publisher interface {
	publish(icao uint32, fix coordinator.PositionFix, anon, modeac bool, hasPosition bool)
	heartbeat(now float64)
	close()
}

// Outputs fans a coordinator's position fixes out to every configured
// publisher. It implements coordinator.Outputs.
type Outputs struct {
	publishers []publisher
}

// New builds one publisher per configured output spec.
func New(specs []config.OutputSpec, now func() float64) (*Outputs, error) {
	o := &Outputs{}
	for _, spec := range specs {
		format, err := protocolFormat(spec.Protocol)
		if err != nil {
			return nil, err
		}
		if spec.Listen {
			l, err := newListener(format, spec.Endpoint, now)
			if err != nil {
				o.Close()
				return nil, fmt.Errorf("outputs: listen on %s: %w", spec.Endpoint, err)
			}
			o.publishers = append(o.publishers, l)
			continue
		}

		host, port, err := net.SplitHostPort(spec.Endpoint)
		if err != nil {
			o.Close()
			return nil, fmt.Errorf("outputs: invalid connect endpoint %q: %w", spec.Endpoint, err)
		}
		o.publishers = append(o.publishers, newConnector(format, host, port, now))
	}
	return o, nil
}

func protocolFormat(p config.OutputProtocol) (Format, error) {
	switch p {
	case config.ProtocolBasestation:
		return FormatBasestation, nil
	case config.ProtocolExtBasestation:
		return FormatExtBasestation, nil
	case config.ProtocolBeast:
		return FormatBeast, nil
	default:
		return 0, fmt.Errorf("outputs: unknown protocol %q", p)
	}
}

// Publish fans a position fix out to every publisher. Every fix reaching
// here came from a decoded server result, which always carries a real
// lat/lon, so the Beast publisher always builds the even/odd CPR pair
// rather than an altitude-only frame.
func (o *Outputs) Publish(icao uint32, fix coordinator.PositionFix, anon, modeac bool) {
	const hasPosition = true
	for _, p := range o.publishers {
		p.publish(icao, fix, anon, modeac, hasPosition)
	}
}

// Heartbeat drives per-publisher keepalive and reconnect logic; called
// every ~0.5s by the event loop alongside every other component.
func (o *Outputs) Heartbeat(now float64) {
	for _, p := range o.publishers {
		p.heartbeat(now)
	}
}

// Close tears down every publisher, used both on startup failure and on
// shutdown.
func (o *Outputs) Close() {
	for _, p := range o.publishers {
		p.close()
	}
}
