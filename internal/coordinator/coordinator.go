// Package coordinator is the selection engine: it owns the aircraft
// registry, decides which receiver frames are useful timing references or
// MLAT candidates, and drives the periodic reporting to the server.
package coordinator

import (
	"math"

	"github.com/mlatclient/edgeclient/internal/logging"
	"github.com/mlatclient/edgeclient/internal/modes"
)

// Timing constants for the periodic sweep, mirrored from the reference
// client: update_interval multiples give the report and stats cadence.
const (
	UpdateInterval = 4.5
	ReportInterval = UpdateInterval * 4
	StatsInterval  = 900.0

	minMessagesForMlat = 10
	syncPairWindowTicks = 5 // multiplied by clock frequency

	// a timestamp jump warning fires at most once every jumpWarnEvery
	// jumps, and never more often than jumpWarnMinInterval seconds, per
	// the original client's "likely multiple receivers mixed" guard.
	jumpWarnEvery        = 9
	jumpWarnMinInterval  = 300.0
)

// Server is the subset of the server link the coordinator drives.
type Server interface {
	SendMlat(m modes.Message)
	SendSync(even, odd modes.Message)
	SendSplitSync(m modes.Message)
	SplitSyncNegotiated() bool
	SendClockReset(reason string, frequency uint64, epoch string, mode string)
	SendClockJump()
	SendSeen(icaos []uint32)
	SendLost(icaos []uint32)
	SendRateReport(rates map[uint32]float64)
	SendPositionUpdate(lat, lon, alt float64, referenceFrame string)
}

// Receiver is the subset of the receiver link the coordinator drives.
type Receiver interface {
	RecentAircraft() map[uint32]struct{}
	UpdateFilter(icaos map[uint32]struct{})
	UpdateModeACFilter(codes map[uint16]struct{})
	Frequency() uint64
}

// PositionFix is a decoded server position result, in the shape the output
// publishers fan out.
type PositionFix struct {
	Lat, Lon, Alt float64
	ErrorEst      float64
	NStations     int
	Callsign      string
	Squawk        string

	NSVel, EWVel, VRate float64
	HasVelocity         bool

	ReferenceFrame string
}

// Outputs is the fan-out target for position fixes, regardless of source.
type Outputs interface {
	Publish(icao uint32, fix PositionFix, anon, modeac bool)
}

// Coordinator owns the aircraft registry and the dispatch logic described
// by the data model: one Aircraft per ICAO, a df-keyed handler table, and
// the periodic sweep/report/stats cadence.
type Coordinator struct {
	server   Server
	receiver Receiver
	outputs  Outputs
	now      func() float64

	aircraft map[uint32]*Aircraft

	requestedTraffic map[uint32]struct{}
	requestedModeAC  map[uint16]struct{}

	clockFrequency uint64
	clockEpoch     string

	jumpCount       int
	lastJumpWarning float64

	lastClockJumpSend float64
}

// New creates a Coordinator bound to the given server and receiver links.
// now is the monotonic clock source (internal/clock.Now in production).
func New(server Server, receiver Receiver, now func() float64) *Coordinator {
	return &Coordinator{
		server:           server,
		receiver:         receiver,
		now:              now,
		aircraft:         make(map[uint32]*Aircraft),
		requestedTraffic: make(map[uint32]struct{}),
		requestedModeAC:  make(map[uint16]struct{}),
		clockFrequency:   clockFrequencyFallback,
	}
}

func (c *Coordinator) getOrCreate(icao uint32) (*Aircraft, bool) {
	if a, ok := c.aircraft[icao]; ok {
		return a, false
	}
	now := c.now()
	_, requested := c.requestedTraffic[icao]
	a := newAircraft(icao, now, now)
	a.Requested = requested
	c.aircraft[icao] = a
	return a, true
}

// UpdateAircraft performs the periodic aircraft sweep: folding in addresses
// the receiver observed (even if filtered), recomputing adsb_good, and
// expiring stale entries.
func (c *Coordinator) UpdateAircraft() {
	now := c.now()
	for icao := range c.receiver.RecentAircraft() {
		a, created := c.getOrCreate(icao)
		if !created && a.LastMessageTime <= now {
			a.Messages++
			a.LastMessageTime = now
		}
	}

	for icao, a := range c.aircraft {
		if a.Expired(now) {
			if a.Reported {
				c.server.SendLost([]uint32{icao})
			}
			delete(c.aircraft, icao)
		}
	}
}

// InputReceivedMessages dispatches one batch of decoded receiver messages,
// in receipt order.
func (c *Coordinator) InputReceivedMessages(msgs []modes.Message) {
	for _, m := range msgs {
		c.dispatch(m)
	}
}

func (c *Coordinator) dispatch(m modes.Message) {
	switch m.DF {
	case modes.DFEventModeChange:
		c.receivedModeChange(m)
		return
	case modes.DFEventEpochRollover:
		c.server.SendClockReset("epoch rollover detected", c.clockFrequency, c.clockEpoch, "")
		return
	case modes.DFEventTimestampJump:
		c.receivedTimestampJump()
		return
	case modes.DFEventRadarcapePosition:
		c.receivedRadarcapePosition(m)
		return
	case modes.DFModeAC:
		c.receivedModeAC(m)
		return
	}

	if !m.HasAddress {
		return
	}

	a, known := c.aircraft[m.Address]
	if !known {
		switch m.DF {
		case 11, 17:
			a, _ = c.getOrCreate(m.Address)
			a.Messages++
			a.LastMessageTime = c.now()
		}
		return
	}

	now := c.now()
	a.Messages++
	a.LastMessageTime = now

	c.maybeSendMlat(a, m)

	if m.DF == 17 {
		c.receivedDF17(a, m)
	}
}

func (c *Coordinator) maybeSendMlat(a *Aircraft, m modes.Message) {
	switch m.DF {
	case 0, 4, 5, 11, 16, 17, 20, 21:
	default:
		return
	}
	if a.Messages < minMessagesForMlat || !a.Requested {
		return
	}
	if a.ADSBGood(c.now()) {
		return
	}
	c.server.SendMlat(m)
}

func (c *Coordinator) receivedModeAC(m modes.Message) {
	if _, want := c.requestedModeAC[m.ModeACode]; want {
		c.server.SendMlat(m)
	}
}

func (c *Coordinator) receivedDF17(a *Aircraft, m modes.Message) {
	if (!m.EvenCPR && !m.OddCPR) || !m.Valid || m.NUC < 6 || !m.HasAltitude {
		return
	}

	now := c.now()
	msgCopy := m
	if m.EvenCPR {
		a.EvenMessage = &msgCopy
		a.LastEvenTime = now
	} else {
		a.OddMessage = &msgCopy
		a.LastOddTime = now
	}

	if a.EvenMessage == nil || a.OddMessage == nil {
		return
	}

	freq := c.clockFrequency
	if freq == 0 {
		freq = clockFrequencyFallback
	}
	delta := int64(a.EvenMessage.Timestamp) - int64(a.OddMessage.Timestamp)
	if delta < 0 {
		delta = -delta
	}
	if uint64(delta) > syncPairWindowTicks*freq {
		return
	}

	if c.server.SplitSyncNegotiated() {
		c.server.SendSplitSync(m)
	} else {
		c.server.SendSync(*a.EvenMessage, *a.OddMessage)
	}

	a.RecentADSBPositions++
}

func (c *Coordinator) receivedModeChange(m modes.Message) {
	freq, _ := m.EventData["frequency"].(uint64)
	epoch, _ := m.EventData["epoch"].(string)
	mode, _ := m.EventData["mode"].(string)
	if freq != 0 {
		c.clockFrequency = freq
	}
	c.clockEpoch = epoch
	c.jumpCount = 0
	c.server.SendClockReset("mode change", c.clockFrequency, c.clockEpoch, mode)
}

func (c *Coordinator) receivedTimestampJump() {
	c.jumpCount++
	now := c.now()
	if now-c.lastClockJumpSend >= 0.5 {
		c.server.SendClockJump()
		c.lastClockJumpSend = now
	}
	if c.jumpCount%jumpWarnEvery == jumpWarnEvery-1 && now-c.lastJumpWarning > jumpWarnMinInterval {
		logging.Warnf("receiver clock jumped %d times; this usually means multiple receivers are being mixed on one mlat-client instance, which is unsupported", c.jumpCount)
		c.lastJumpWarning = now
	}
}

func (c *Coordinator) receivedRadarcapePosition(m modes.Message) {
	lat, _ := m.EventData["lat"].(float64)
	lon, _ := m.EventData["lon"].(float64)
	alt, _ := m.EventData["alt"].(float64)

	if lat < -90 || lat > 90 {
		return
	}
	// The reference client once compared lon against -180 on both sides of
	// the range check; the upper bound must be 180.
	if lon < -180 || lon > 180 {
		return
	}

	c.server.SendPositionUpdate(lat, lon, alt, "egm96_meters")
}

// SendAircraftReport computes seen/lost deltas against the reported set and
// emits the corresponding server events.
func (c *Coordinator) SendAircraftReport() {
	var seen, lost []uint32
	for icao, a := range c.aircraft {
		eligible := a.Messages > 1
		if eligible && !a.Reported {
			seen = append(seen, icao)
			a.Reported = true
		} else if !eligible && a.Reported {
			lost = append(lost, icao)
			a.Reported = false
		}
	}
	if len(seen) > 0 {
		c.server.SendSeen(seen)
	}
	if len(lost) > 0 {
		c.server.SendLost(lost)
	}
}

// SendRateReport computes each aircraft's ADS-B position rate since the last
// report and resets the counters.
func (c *Coordinator) SendRateReport() {
	now := c.now()
	rates := make(map[uint32]float64)
	for icao, a := range c.aircraft {
		elapsed := now - a.RateMeasurementStart
		if elapsed <= 0 {
			continue
		}
		if a.RecentADSBPositions > 0 {
			rates[icao] = float64(a.RecentADSBPositions) / elapsed
		}
		a.RecentADSBPositions = 0
		a.RateMeasurementStart = now
	}
	if len(rates) > 0 {
		c.server.SendRateReport(rates)
	}
}

// UpdateReceiverFilter recomputes which addresses still need MLAT timing
// frames (requested but not already well-served by their own ADS-B
// position) and pushes the filter down to the receiver link.
func (c *Coordinator) UpdateReceiverFilter() {
	now := c.now()
	mlatSet := make(map[uint32]struct{}, len(c.requestedTraffic))
	for icao := range c.requestedTraffic {
		a, known := c.aircraft[icao]
		if known && a.ADSBGood(now) {
			continue
		}
		mlatSet[icao] = struct{}{}
	}
	c.receiver.UpdateFilter(mlatSet)
	c.receiver.UpdateModeACFilter(c.requestedModeAC)
}

// StartSending marks icaos as requested traffic and reconciles the filter.
func (c *Coordinator) StartSending(icaos []uint32) {
	for _, icao := range icaos {
		c.requestedTraffic[icao] = struct{}{}
		a, _ := c.getOrCreate(icao)
		a.Requested = true
	}
	c.UpdateReceiverFilter()
}

// StopSending unmarks icaos as requested traffic and reconciles the filter.
func (c *Coordinator) StopSending(icaos []uint32) {
	for _, icao := range icaos {
		delete(c.requestedTraffic, icao)
		if a, ok := c.aircraft[icao]; ok {
			a.Requested = false
		}
	}
	c.UpdateReceiverFilter()
}

// PeriodicStats logs and resets the rolling stats counters. The actual
// counter storage lives in internal/stats; this just provides the 900s
// cadence hook the event loop calls.
func (c *Coordinator) PeriodicStats(logAndReset func()) {
	logAndReset()
}

// AircraftCount reports the number of tracked aircraft, for status/metrics
// endpoints.
func (c *Coordinator) AircraftCount() int {
	return len(c.aircraft)
}

// SetOutputs wires the output publisher fan-out that ServerMlatResult
// publishes to.
func (c *Coordinator) SetOutputs(o Outputs) {
	c.outputs = o
}

// SetServer wires the server link once it has been constructed. Server and
// receiver links both need a reference to the coordinator to be built, so
// callers construct the coordinator with a nil server and receiver first and
// fill them in with SetServer/SetReceiver once the links exist.
func (c *Coordinator) SetServer(s Server) {
	c.server = s
}

// SetReceiver wires the receiver link once it has been constructed. See
// SetServer.
func (c *Coordinator) SetReceiver(r Receiver) {
	c.receiver = r
}

// ServerMlatResult forwards one decoded server position result to the
// output publishers.
func (c *Coordinator) ServerMlatResult(icao uint32, fix PositionFix, anon, modeac bool) {
	if c.outputs != nil {
		c.outputs.Publish(icao, fix, anon, modeac)
	}
}

// InputConnected is called by the receiver link on successful connect.
func (c *Coordinator) InputConnected() {
	logging.Infof("coordinator: receiver connected")
}

// InputDisconnected is called by the receiver link on disconnect.
func (c *Coordinator) InputDisconnected() {
	logging.Warnf("coordinator: receiver disconnected")
}

// clampNUC keeps a NUC value within its documented 0-9 range.
func clampNUC(n int) int {
	return int(math.Max(0, math.Min(9, float64(n))))
}
