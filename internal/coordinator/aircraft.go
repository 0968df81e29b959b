package coordinator

import "github.com/mlatclient/edgeclient/internal/modes"

const (
	adsbGoodWindow  = 30.0
	expiryAge       = 120.0
	positionExpiry  = 30.0
	clockFrequencyFallback = 12e6
)

// Aircraft is a per-ICAO tracked entity, mutated only from the coordinator's
// single-threaded event loop.
type Aircraft struct {
	ICAO uint32

	Messages         uint64
	LastMessageTime  float64
	LastEvenTime     float64
	LastOddTime      float64

	EvenMessage *modes.Message
	OddMessage  *modes.Message

	Reported  bool
	Requested bool

	RateMeasurementStart float64
	RecentADSBPositions  uint64
}

// ADSBGood reports whether both the even and odd CPR positions were updated
// within the last 30s window as of now, meaning the server already has a
// reliable ADS-B position and doesn't need MLAT timing for this aircraft.
func (a *Aircraft) ADSBGood(now float64) bool {
	return now-a.LastEvenTime <= adsbGoodWindow && now-a.LastOddTime <= adsbGoodWindow
}

// Expired reports whether this aircraft should be dropped from the registry.
func (a *Aircraft) Expired(now float64) bool {
	return now-a.LastMessageTime > expiryAge
}

// neverUpdated is used as the initial LastEvenTime/LastOddTime so a
// freshly-created aircraft never reads as adsb_good before it has actually
// received a position, regardless of how early in the process lifetime it
// is created.
const neverUpdated = -1e9

func newAircraft(icao uint32, now, rateStart float64) *Aircraft {
	return &Aircraft{
		ICAO:                 icao,
		LastMessageTime:      now,
		LastEvenTime:         neverUpdated,
		LastOddTime:          neverUpdated,
		RateMeasurementStart: rateStart,
	}
}
