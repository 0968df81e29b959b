// Package stats tracks the rolling traffic counters the client logs every
// stats interval, mirrored onto a Prometheus registry for local scraping.
package stats

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mlatclient/edgeclient/internal/logging"
)

const namespace = "mlatclient"

// Counters holds the raw traffic tallies accumulated since the last
// Snapshot or LogAndReset.
type Counters struct {
	ServerTxBytes      uint64
	ServerRxBytes      uint64
	ServerUDPBytes     uint64
	ReceiverRxBytes    uint64
	ReceiverRxMessages uint64
	ReceiverRxFiltered uint64
	ReceiverRxMlat     uint64
	MlatPositions      uint64
}

// Stats is the coordinator-wide counter set. All mutators are safe for
// concurrent use even though the event loop is single-threaded, so an
// HTTP metrics scrape can read it without coordinating with the loop.
type Stats struct {
	serverTxBytes      uint64
	serverRxBytes      uint64
	serverUDPBytes     uint64
	receiverRxBytes    uint64
	receiverRxMessages uint64
	receiverRxFiltered uint64
	receiverRxMlat     uint64
	mlatPositions      uint64

	promServerTx   prometheus.Counter
	promServerRx   prometheus.Counter
	promServerUDP  prometheus.Counter
	promRxBytes    prometheus.Counter
	promRxMessages prometheus.Counter
	promRxFiltered prometheus.Counter
	promRxMlat     prometheus.Counter
	promPositions  prometheus.Counter
}

// New creates a Stats block and registers its Prometheus counters with reg.
// reg may be nil, in which case metrics are tracked in-process only.
func New(reg prometheus.Registerer) *Stats {
	s := &Stats{
		promServerTx:   newCounter("server_tx_bytes_total", "Bytes sent to the mlat server."),
		promServerRx:   newCounter("server_rx_bytes_total", "Bytes received from the mlat server."),
		promServerUDP:  newCounter("server_udp_bytes_total", "Bytes sent to the mlat server over UDP."),
		promRxBytes:    newCounter("receiver_rx_bytes_total", "Bytes received from the local receiver."),
		promRxMessages: newCounter("receiver_rx_messages_total", "Messages decoded from the local receiver."),
		promRxFiltered: newCounter("receiver_rx_filtered_total", "Receiver messages dropped by the address filter."),
		promRxMlat:     newCounter("receiver_rx_mlat_total", "Receiver messages forwarded to the server as mlat candidates."),
		promPositions:  newCounter("mlat_positions_total", "Position results received from the mlat server."),
	}
	if reg != nil {
		reg.MustRegister(s.promServerTx, s.promServerRx, s.promServerUDP,
			s.promRxBytes, s.promRxMessages, s.promRxFiltered, s.promRxMlat, s.promPositions)
	}
	return s
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
}

func (s *Stats) AddServerTxBytes(n uint64)   { atomic.AddUint64(&s.serverTxBytes, n); s.promServerTx.Add(float64(n)) }
func (s *Stats) AddServerRxBytes(n uint64)   { atomic.AddUint64(&s.serverRxBytes, n); s.promServerRx.Add(float64(n)) }
func (s *Stats) AddServerUDPBytes(n uint64)  { atomic.AddUint64(&s.serverUDPBytes, n); s.promServerUDP.Add(float64(n)) }
func (s *Stats) AddReceiverRxBytes(n uint64) { atomic.AddUint64(&s.receiverRxBytes, n); s.promRxBytes.Add(float64(n)) }
func (s *Stats) IncReceiverRxMessages()      { atomic.AddUint64(&s.receiverRxMessages, 1); s.promRxMessages.Inc() }
func (s *Stats) IncReceiverRxFiltered()      { atomic.AddUint64(&s.receiverRxFiltered, 1); s.promRxFiltered.Inc() }
func (s *Stats) IncReceiverRxMlat()          { atomic.AddUint64(&s.receiverRxMlat, 1); s.promRxMlat.Inc() }
func (s *Stats) IncMlatPositions()           { atomic.AddUint64(&s.mlatPositions, 1); s.promPositions.Inc() }

// Snapshot returns the current counter values and resets them to zero,
// the "report and reset" contract behind the periodic stats log line
// (LogAndReset).
func (s *Stats) Snapshot() Counters {
	return Counters{
		ServerTxBytes:      atomic.SwapUint64(&s.serverTxBytes, 0),
		ServerRxBytes:      atomic.SwapUint64(&s.serverRxBytes, 0),
		ServerUDPBytes:     atomic.SwapUint64(&s.serverUDPBytes, 0),
		ReceiverRxBytes:    atomic.SwapUint64(&s.receiverRxBytes, 0),
		ReceiverRxMessages: atomic.SwapUint64(&s.receiverRxMessages, 0),
		ReceiverRxFiltered: atomic.SwapUint64(&s.receiverRxFiltered, 0),
		ReceiverRxMlat:     atomic.SwapUint64(&s.receiverRxMlat, 0),
		MlatPositions:      atomic.SwapUint64(&s.mlatPositions, 0),
	}
}

// LogAndReset snapshots the counters and writes them as a single structured
// log line, the way the reference client logs its stats block every
// StatsInterval seconds.
func (s *Stats) LogAndReset() Counters {
	c := s.Snapshot()
	logging.Infof("stats server_tx_bytes=%d server_rx_bytes=%d server_udp_bytes=%d "+
		"receiver_rx_bytes=%d receiver_rx_messages=%d receiver_rx_filtered=%d "+
		"receiver_rx_mlat=%d mlat_positions=%d",
		c.ServerTxBytes, c.ServerRxBytes, c.ServerUDPBytes,
		c.ReceiverRxBytes, c.ReceiverRxMessages, c.ReceiverRxFiltered,
		c.ReceiverRxMlat, c.MlatPositions)
	return c
}
