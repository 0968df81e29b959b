// Package eventloop drives the cooperative single-threaded cadence tying
// the receiver link, server link, coordinator and output publishers
// together: a ~100ms poll, a 0.5s heartbeat, a jittered ~4.5s aircraft
// sweep (with every fourth pass also sending the seen/lost and rate
// reports), and a 900s stats rollup.
package eventloop

import (
	"context"
	"math/rand"
	"time"

	"github.com/mlatclient/edgeclient/internal/logging"
	"github.com/mlatclient/edgeclient/internal/netutil"
)

const (
	pollInterval      = 100 * time.Millisecond
	heartbeatInterval = 0.5
	sweepsPerReport   = 4
	statsInterval     = 900.0
)

// Receiver is the subset of the receiver link the loop drives.
type Receiver interface {
	Start()
	Heartbeat(now float64)
	Disconnect(reason string)
}

// Server is the subset of the server link the loop drives. Connect blocks
// until the handshake succeeds or fails; the loop owns retrying it.
type Server interface {
	Connect() error
	Heartbeat(now float64)
	Disconnect(reason string)
}

// Coordinator is the subset of the coordinator the loop drives.
type Coordinator interface {
	UpdateAircraft()
	UpdateReceiverFilter()
	SendAircraftReport()
	SendRateReport()
	PeriodicStats(logAndReset func())
}

// Outputs is the subset of the output publisher fan-out the loop drives.
type Outputs interface {
	Heartbeat(now float64)
	Close()
}

// FatalServerError is implemented by server connection errors that should
// abort the loop instead of being retried (e.g. a handshake deny).
type FatalServerError interface {
	error
	IsFatal() bool
}

// Loop owns the timers that drive every other component.
type Loop struct {
	Receiver    Receiver
	Server      Server
	Coordinator Coordinator
	Outputs     Outputs
	Now         func() float64
	LogStats    func()

	// Jitter returns a value in [0,1); overridden by tests for determinism.
	Jitter func() float64
}

// New builds a Loop with the production jitter source.
func New(receiver Receiver, server Server, coordinator Coordinator, outputs Outputs, now func() float64, logStats func()) *Loop {
	return &Loop{
		Receiver:    receiver,
		Server:      server,
		Coordinator: coordinator,
		Outputs:     outputs,
		Now:         now,
		LogStats:    logStats,
		Jitter:      rand.Float64,
	}
}

// Run connects the server link (retrying with jittered backoff on
// transient failure), starts the receiver link, and then drives the
// heartbeat/sweep/stats cadence until ctx is cancelled. On return it
// disconnects every component exactly once, the termination sequence the
// reference client's shutdown predicate triggers.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.connectServerWithRetry(ctx); err != nil {
		return err
	}
	defer l.shutdown()

	l.Receiver.Start()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	now := l.Now()
	nextHeartbeat := now + heartbeatInterval
	nextSweep := now + l.sweepInterval()
	nextStats := now + statsInterval
	sweepCount := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			now := l.Now()

			if now >= nextHeartbeat {
				l.Receiver.Heartbeat(now)
				l.Server.Heartbeat(now)
				l.Outputs.Heartbeat(now)
				nextHeartbeat = now + heartbeatInterval
			}

			if now >= nextSweep {
				l.Coordinator.UpdateAircraft()
				l.Coordinator.UpdateReceiverFilter()
				sweepCount++
				if sweepCount%sweepsPerReport == 0 {
					l.Coordinator.SendAircraftReport()
					l.Coordinator.SendRateReport()
				}
				nextSweep = now + l.sweepInterval()
			}

			if now >= nextStats {
				l.Coordinator.PeriodicStats(l.LogStats)
				nextStats = now + statsInterval
			}
		}
	}
}

func (l *Loop) sweepInterval() float64 {
	const base = 4.5
	const jitterSpan = 0.5
	return base + l.Jitter()*jitterSpan
}

func (l *Loop) connectServerWithRetry(ctx context.Context) error {
	for {
		err := l.Server.Connect()
		if err == nil {
			return nil
		}
		if fatal, ok := err.(FatalServerError); ok && fatal.IsFatal() {
			return err
		}
		delay := netutil.ReconnectDelay(l.Jitter())
		logging.Warnf("eventloop: server connect failed, retrying in %s: %v", delay, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (l *Loop) shutdown() {
	l.Receiver.Disconnect("shutting down")
	l.Server.Disconnect("shutting down")
	l.Outputs.Close()
}
