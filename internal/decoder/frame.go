package decoder

import "github.com/mlatclient/edgeclient/internal/modes"

// icaoCacheTTL bounds how long an address seen via a direct-address frame
// (DF11/17/18 with a valid CRC) is trusted to validate the CRC/parity
// overlay recovery used by DF0/4/5/16/20/21, mirroring the reference
// decoder's recently-seen-address cache.
const icaoCacheTTL = 60.0

// addressCache is consulted by bruteForceAddress to decide whether a
// candidate ICAO address recovered from a CRC/parity overlay is plausible.
type addressCache struct {
	now  func() float64
	seen map[uint32]float64
}

func newAddressCache(now func() float64) *addressCache {
	return &addressCache{now: now, seen: make(map[uint32]float64)}
}

func (c *addressCache) add(addr uint32) {
	c.seen[addr] = c.now()
}

func (c *addressCache) recent(addr uint32) bool {
	t, ok := c.seen[addr]
	if !ok {
		return false
	}
	if c.now()-t > icaoCacheTTL {
		delete(c.seen, addr)
		return false
	}
	return true
}

// nucByType approximates the navigation uncertainty category from the
// extended squitter position message type code (9-18 for barometric
// altitude airborne position), matching the type-code-to-containment-radius
// ordering used throughout ADS-B decoders: lower type codes mean a larger,
// less certain containment radius.
func nucByType(metype int) int {
	if metype < 9 || metype > 18 {
		return 0
	}
	return 18 - metype
}

// decodeFrame turns one raw Mode S frame (2, 7 or 14 bytes: Mode A/C replies
// are handled separately by the caller) into a Message, recovering the
// ICAO address directly for DF11/17/18 and via CRC/parity-overlay brute
// force (checked against cache) for the surveillance reply formats that
// don't carry an explicit address field.
func decodeFrame(payload []byte, timestamp uint64, cache *addressCache) modes.Message {
	msg := modes.Message{
		DF:        int(payload[0]) >> 3,
		Timestamp: timestamp,
		Payload:   append([]byte(nil), payload...),
	}

	switch msg.DF {
	case 11, 17, 18:
		if len(payload) >= 4 {
			msg.Address = uint32(payload[1])<<16 | uint32(payload[2])<<8 | uint32(payload[3])
			msg.HasAddress = true
		}
		msg.Valid = modes.CRC24(payload) == 0
		if msg.Valid {
			cache.add(msg.Address)
		}
	default:
		bruteForceAddress(&msg, payload, cache)
	}

	switch msg.DF {
	case 17, 18:
		decodeExtendedSquitter(&msg, payload)
	case 0, 4, 16, 20:
		decodeAC13(&msg, payload)
	}

	return msg
}

// bruteForceAddress recovers the ICAO address overlaid with the CRC on
// downlink formats that have no explicit address field: AP = ICAO xor
// CRC(data), so CRC(data) xor AP recovers ICAO. The result is only trusted
// if it matches an address recently confirmed via a direct-address frame.
func bruteForceAddress(msg *modes.Message, payload []byte, cache *addressCache) {
	n := len(payload)
	if n < 3 {
		return
	}
	crc := modes.CRC24(payload[:n-3])
	parity := uint32(payload[n-3])<<16 | uint32(payload[n-2])<<8 | uint32(payload[n-1])
	addr := crc ^ parity
	if !cache.recent(addr) {
		return
	}
	msg.Address = addr
	msg.HasAddress = true
	msg.Valid = true
}

// decodeExtendedSquitter pulls the airborne-position (barometric altitude)
// fields out of a DF17/18 frame: the even/odd CPR flag, the raw (encoded)
// CPR latitude/longitude, the 12-bit altitude and an approximate NUC.
func decodeExtendedSquitter(msg *modes.Message, payload []byte) {
	if len(payload) < 11 {
		return
	}
	metype := int(payload[4]) >> 3
	if metype < 9 || metype > 18 {
		return
	}

	msg.NUC = nucByType(metype)

	qBit := payload[5] & 1
	if qBit != 0 {
		n := (int(payload[5]>>1) << 4) | int(payload[6]>>4)
		msg.Altitude = n*25 - 1000
		msg.HasAltitude = true
	}

	if payload[6]&4 != 0 {
		msg.OddCPR = true
	} else {
		msg.EvenCPR = true
	}
	msg.CPRLat = (uint32(payload[6]&3) << 15) | (uint32(payload[7]) << 7) | (uint32(payload[8]) >> 1)
	msg.CPRLon = (uint32(payload[8]&1) << 16) | (uint32(payload[9]) << 8) | uint32(payload[10])
}

// decodeAC13 pulls the 13-bit Gillham-coded altitude field used by DF0,
// DF4, DF16 and DF20 surveillance replies.
func decodeAC13(msg *modes.Message, payload []byte) {
	if len(payload) < 4 {
		return
	}
	qBit := payload[3] & (1 << 4)
	if qBit == 0 {
		return
	}
	n := (int(payload[2]&31) << 6) |
		(int(payload[3]&0x80) >> 2) |
		(int(payload[3]&0x20) >> 1) |
		int(payload[3]&15)
	msg.Altitude = n*25 - 1000
	msg.HasAltitude = true
}

// decodeModeAC turns a raw 2-byte Beast-framed Mode A/C reply into the
// synthetic DFModeAC event the coordinator expects. The 13-bit field is
// reported as-is; it is the receiver's already-converted binary squawk
// code, not the wire Gillham encoding used by an over-the-air reply.
func decodeModeAC(payload []byte, timestamp uint64) modes.Message {
	code := uint16(payload[0])<<8 | uint16(payload[1])
	return modes.Message{
		DF:        modes.DFModeAC,
		Timestamp: timestamp,
		ModeACode: code & 0x1FFF,
		Valid:     true,
		Payload:   append([]byte(nil), payload...),
	}
}

// modeChangeEvent builds the synthetic mode-change message a decoder emits
// once, on its first Feed call, telling the coordinator the clock frequency
// and epoch it should assume for this connection.
func modeChangeEvent(timestamp uint64, frequency uint64, epoch, mode string) modes.Message {
	return modes.Message{
		DF:        modes.DFEventModeChange,
		Timestamp: timestamp,
		EventData: map[string]interface{}{
			"frequency": frequency,
			"epoch":     epoch,
			"mode":      mode,
		},
	}
}
