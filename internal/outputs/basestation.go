package outputs

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mlatclient/edgeclient/internal/coordinator"
)

// buildBasestationLine renders one MSG,3 (or, with ext=true, MLAT,3) line
// for a position fix, matching the column layout of SBS-format feeders:
// address-type prefix, literal receive/now dates and times, then
// course/speed/altitude/lat/lon/vrate/squawk, with the extended variant
// appending station count and rounded error estimate.
func buildBasestationLine(ext bool, icao uint32, fix coordinator.PositionFix, anon, modeac bool, rcvTimestamp, nowTimestamp float64) string {
	addrtype := ""
	if modeac {
		addrtype = "@"
	} else if anon {
		addrtype = "~"
	}

	speed, heading := "", ""
	if fix.HasVelocity {
		sp := math.Sqrt(fix.NSVel*fix.NSVel + fix.EWVel*fix.EWVel)
		hd := math.Atan2(fix.EWVel, fix.NSVel) * 180 / math.Pi
		if hd < 0 {
			hd += 360
		}
		speed = strconv.Itoa(int(sp))
		heading = strconv.Itoa(int(hd))
	}

	vrate := ""
	if fix.HasVelocity {
		vrate = strconv.Itoa(int(fix.VRate))
	}

	errEst := ""
	if fix.ErrorEst >= 0 {
		errEst = roundTo(fix.ErrorEst, 0)
	}
	nstations := ""
	if fix.NStations > 0 {
		nstations = strconv.Itoa(fix.NStations)
	}

	msgType := "MSG"
	if ext {
		msgType = "MLAT"
	}
	fields := []string{
		msgType, "3", "1", "1",
		fmt.Sprintf("%s%06X", addrtype, icao),
		"1",
		formatDate(rcvTimestamp), formatTime(rcvTimestamp),
		formatDate(nowTimestamp), formatTime(nowTimestamp),
		csvQuote(fix.Callsign),
		strconv.Itoa(int(fix.Alt)),
		speed, heading,
		roundTo(fix.Lat, 4), roundTo(fix.Lon, 4),
		vrate, csvQuote(fix.Squawk),
		"", "", "", "", // fs, emerg, ident, aog
	}
	if ext {
		fields = append(fields, nstations, "", errEst)
	}
	return strings.Join(fields, ",")
}

func roundTo(v float64, places int) string {
	mult := math.Pow(10, float64(places))
	rounded := math.Round(v*mult) / mult
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}
