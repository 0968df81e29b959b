package outputs

import (
	"github.com/mlatclient/edgeclient/internal/coordinator"
	"github.com/mlatclient/edgeclient/internal/modes"
)

// beastFramePrefix precedes every republished frame: long-frame marker,
// the magic MLAT timestamp (FF 00 'MLAT'), and a zero signal-level byte.
var beastFramePrefix = []byte{0x1A, '3', 0xFF, 0x00, 'M', 'L', 'A', 'T', 0x00}

// beastKeepalive is sent when nothing else has been written for 60s.
var beastKeepalive = []byte{0x1A, '1', 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

// encodeBeastFrame wraps a raw Mode S frame with the Beast long-frame
// prefix, doubling any 0x1A byte in the payload so a receiver reading the
// stream can't mistake frame data for a new message marker.
func encodeBeastFrame(frame []byte) []byte {
	out := make([]byte, 0, len(beastFramePrefix)+len(frame)+4)
	out = append(out, beastFramePrefix...)
	for _, b := range frame {
		if b == 0x1A {
			out = append(out, 0x1A)
		}
		out = append(out, b)
	}
	return out
}

// buildBeastFrames synthesizes the Beast-format frame(s) a position fix
// publishes: altitude-only when there's no position, an even/odd CPR pair
// when there is, plus a separate velocity frame when any component is
// present.
func buildBeastFrames(icao uint32, fix coordinator.PositionFix, anon, modeac bool, hasPosition bool) [][]byte {
	var frames [][]byte

	if !hasPosition {
		frames = append(frames, modes.MakeAltitudeOnlyFrame(icao, int(fix.Alt), anon))
	} else {
		even, odd := modes.MakePositionFramePair(icao, fix.Lat, fix.Lon, int(fix.Alt), anon, modeac)
		frames = append(frames, even, odd)
	}

	if fix.HasVelocity {
		frames = append(frames, modes.MakeVelocityFrame(icao, int(fix.EWVel), int(fix.NSVel), int(fix.VRate)))
	}

	for i, f := range frames {
		frames[i] = encodeBeastFrame(f)
	}
	return frames
}
