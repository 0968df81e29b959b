// Package clock exposes a monotonic time source for scheduling, TTLs, and
// heartbeats. It is never affected by wall-clock adjustments.
package clock

import "time"

var start = time.Now()

// Now returns seconds elapsed since the process started, as a monotonic,
// strictly non-decreasing float64. Every TTL, heartbeat interval, and
// reconnect delay in this client is computed against this clock rather than
// wall-clock time.
func Now() float64 {
	return time.Since(start).Seconds()
}
