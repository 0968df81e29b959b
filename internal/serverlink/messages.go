package serverlink

import (
	"encoding/hex"
	"fmt"
	"math"

	"github.com/mlatclient/edgeclient/internal/geodesy"
)

// handshakeRequest is the single newline-terminated JSON object sent to
// open a server session.
type handshakeRequest struct {
	Version          int      `json:"version"`
	ClientVersion    string   `json:"client_version"`
	Compress         []string `json:"compress"`
	SelectiveTraffic bool     `json:"selective_traffic"`
	Heartbeat        bool     `json:"heartbeat"`
	ReturnResults    bool     `json:"return_results"`
	UDPTransport     any      `json:"udp_transport"`
	ReturnResultFmt  string   `json:"return_result_format"`
	UUID             string   `json:"uuid,omitempty"`
	Lat              float64  `json:"lat"`
	Lon              float64  `json:"lon"`
	Alt              float64  `json:"alt"`
	User             string   `json:"user"`
	Privacy          bool     `json:"privacy,omitempty"`
}

// handshakeResponse is the server's reply to the handshake.
type handshakeResponse struct {
	Deny         []string `json:"deny"`
	Motd         string   `json:"motd"`
	ReconnectIn  float64  `json:"reconnect_in"`
	Compress     string   `json:"compress"`
	UDPTransport []any    `json:"udp_transport"`
	SplitSync    bool     `json:"split_sync"`
}

// inboundEnvelope is used to sniff which single key an inbound JSON line
// carries, mirroring the "one message type per line" wire shape.
type inboundEnvelope struct {
	StartSending []string        `json:"start_sending"`
	StopSending  []string        `json:"stop_sending"`
	Heartbeat    *struct{}       `json:"heartbeat"`
	Result       *resultEnvelope `json:"result"`
}

type resultEnvelope struct {
	Addr     string    `json:"addr"`
	ECEF     []float64 `json:"ecef"`
	Cov      []float64 `json:"cov"`
	Lat      *float64  `json:"lat"`
	Lon      *float64  `json:"lon"`
	Alt      *float64  `json:"alt"`
	GDOP     *float64  `json:"gdop"`
	NStations int      `json:"nstations"`
	Callsign string    `json:"callsign"`
	Squawk   string    `json:"squawk"`
	NSVel    *float64  `json:"nsvel"`
	EWVel    *float64  `json:"ewvel"`
	VRate    *float64  `json:"vrate"`
}

// Result is the decoded form of a server position fix, in the common shape
// the coordinator/outputs layer consumes regardless of which wire shape it
// arrived in.
type Result struct {
	Lat, Lon, Alt float64
	ErrorEst      float64
	NStations     int
	Callsign      string
	Squawk        string
	NSVel, EWVel, VRate float64
	HasVelocity   bool
}

// decodeResult turns a resultEnvelope into a Result, handling both the
// ECEF and legacy wire shapes.
func decodeResult(r *resultEnvelope) (Result, error) {
	var out Result

	switch {
	case len(r.ECEF) == 3:
		llh := geodesy.ECEFToLLH(geodesy.ECEF{X: r.ECEF[0], Y: r.ECEF[1], Z: r.ECEF[2]})
		out.Lat = llh.Lat
		out.Lon = llh.Lon
		out.Alt = llh.Alt / 0.3048 // meters -> feet

		if len(r.Cov) == 6 {
			sum := r.Cov[0] + r.Cov[3] + r.Cov[5]
			if sum >= 0 {
				out.ErrorEst = math.Sqrt(sum)
			} else {
				out.ErrorEst = -1
			}
		} else {
			out.ErrorEst = -1
		}

	case r.Lat != nil && r.Lon != nil && r.Alt != nil:
		out.Lat = *r.Lat
		out.Lon = *r.Lon
		out.Alt = *r.Alt
		if r.GDOP != nil {
			out.ErrorEst = *r.GDOP * 300
		} else {
			out.ErrorEst = -1
		}
		out.NStations = r.NStations
		out.Callsign = r.Callsign
		out.Squawk = r.Squawk

	default:
		return Result{}, &ErrProtocolViolation{Detail: "result message has neither ecef nor lat/lon/alt fields"}
	}

	if r.NSVel != nil {
		out.NSVel = *r.NSVel
		out.HasVelocity = true
	}
	if r.EWVel != nil {
		out.EWVel = *r.EWVel
		out.HasVelocity = true
	}
	if r.VRate != nil {
		out.VRate = *r.VRate
		out.HasVelocity = true
	}

	return out, nil
}

// hexICAOs formats a set of 24-bit ICAO addresses as lowercase hex strings.
func hexICAOs(icaos []uint32) []string {
	out := make([]string, len(icaos))
	for i, a := range icaos {
		out[i] = fmt.Sprintf("%06x", a)
	}
	return out
}

func hexToICAO(s string) (uint32, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 3 {
		return 0, fmt.Errorf("invalid icao hex %q", s)
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
}
