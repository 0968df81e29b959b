// Package geodesy converts between WGS84 lat/lon/height and ECEF Cartesian
// coordinates, and implements the CPR (Compact Position Reporting) encoding
// used by ADS-B position messages.
package geodesy

import "math"

const (
	dtor = math.Pi / 180.0
	rtod = 180.0 / math.Pi

	wgs84A = 6378137.0
	wgs84F = 1.0 / 298.257223563
)

var (
	wgs84B      = wgs84A * (1 - wgs84F)
	wgs84EccSq  = 1 - wgs84B*wgs84B/(wgs84A*wgs84A)
	wgs84Ep     = math.Sqrt((wgs84A*wgs84A - wgs84B*wgs84B) / (wgs84B * wgs84B))
	wgs84Ep2B   = wgs84Ep * wgs84Ep * wgs84B
	wgs84E2A    = wgs84EccSq * wgs84A
)

// ECEF is an Earth-centered, Earth-fixed Cartesian position in meters.
type ECEF struct {
	X, Y, Z float64
}

// LLH is a WGS84 geodetic position: latitude and longitude in degrees,
// altitude (height above the ellipsoid) in meters.
type LLH struct {
	Lat, Lon, Alt float64
}

// LLHToECEF converts a WGS84 lat/lon/height to ellipsoid-earth ECEF.
func LLHToECEF(p LLH) ECEF {
	lat := p.Lat * dtor
	lon := p.Lon * dtor

	slat, clat := math.Sincos(lat)
	slon, clon := math.Sincos(lon)

	d := math.Sqrt(1 - slat*slat*wgs84EccSq)
	rn := wgs84A / d

	return ECEF{
		X: (rn + p.Alt) * clat * clon,
		Y: (rn + p.Alt) * clat * slon,
		Z: (rn*(1-wgs84EccSq) + p.Alt) * slat,
	}
}

// ECEFToLLH converts ECEF to WGS84 lat/lon/height.
func ECEFToLLH(p ECEF) LLH {
	lon := math.Atan2(p.Y, p.X)

	pr := math.Hypot(p.X, p.Y)
	th := math.Atan2(wgs84A*p.Z, wgs84B*pr)
	sth, cth := math.Sincos(th)
	lat := math.Atan2(p.Z+wgs84Ep2B*sth*sth*sth, pr-wgs84E2A*cth*cth*cth)

	n := wgs84A / math.Sqrt(1-wgs84EccSq*math.Sin(lat)*math.Sin(lat))
	alt := pr/math.Cos(lat) - n

	return LLH{Lat: lat * rtod, Lon: lon * rtod, Alt: alt}
}

// GreatCircle returns the great-circle distance in meters between two LLH
// points, assuming a spherical Earth and ignoring altitude. Not accurate to
// better than about 1%; good enough for rough sanity checks.
func GreatCircle(p0, p1 LLH) float64 {
	const sphericalR = 6371e3
	lat0, lon0 := p0.Lat*dtor, p0.Lon*dtor
	lat1, lon1 := p1.Lat*dtor, p1.Lon*dtor
	return sphericalR * math.Acos(
		math.Sin(lat0)*math.Sin(lat1)+
			math.Cos(lat0)*math.Cos(lat1)*math.Cos(math.Abs(lon0-lon1)))
}

// cprNLTable holds the latitude breakpoints for the CPR "number of
// longitude zones" function, most permissive latitude first. Each entry is
// the maximum latitude (degrees, either hemisphere) at which the zone count
// in the second column still applies.
var cprNLTable = []struct {
	lat float64
	nl  int
}{
	{10.47047130, 59}, {14.82817437, 58}, {18.18626357, 57}, {21.02939493, 56},
	{23.54504487, 55}, {25.82924707, 54}, {27.93898710, 53}, {29.91135686, 52},
	{31.77209708, 51}, {33.53993436, 50}, {35.22899598, 49}, {36.85025108, 48},
	{38.41241892, 47}, {39.92256684, 46}, {41.38651832, 45}, {42.80914012, 44},
	{44.19454951, 43}, {45.54626723, 42}, {46.86733252, 41}, {48.16039128, 40},
	{49.42776439, 39}, {50.67150166, 38}, {51.89342469, 37}, {53.09516153, 36},
	{54.27817472, 35}, {55.44378444, 34}, {56.59318756, 33}, {57.72747354, 32},
	{58.84763776, 31}, {59.95459277, 30}, {61.04917774, 29}, {62.13216659, 28},
	{63.20427479, 27}, {64.26616523, 26}, {65.31845310, 25}, {66.36171008, 24},
	{67.39646774, 23}, {68.42322022, 22}, {69.44242631, 21}, {70.45451075, 20},
	{71.45986473, 19}, {72.45884545, 18}, {73.45177442, 17}, {74.43893416, 16},
	{75.42056257, 15}, {76.39684391, 14}, {77.36789461, 13}, {78.33374083, 12},
	{79.29428225, 11}, {80.24923213, 10}, {81.19801349, 9}, {82.13956981, 8},
	{83.07199445, 7}, {83.99173563, 6}, {84.89166191, 5}, {85.75541621, 4},
	{86.53536998, 3}, {87.00000000, 2}, {90.00000000, 1},
}

// CPRNL returns the NL ("number of longitude zones") function used by CPR
// decoding, for the given latitude in degrees.
func CPRNL(lat float64) int {
	if lat < 0 {
		lat = -lat
	}
	for _, e := range cprNLTable {
		if lat <= e.lat {
			return e.nl
		}
	}
	return 1
}

// CPRN returns floor(NL(lat) - oddFlag), clamped to at least 1, as used in
// the CPR longitude quantization step.
func CPRN(lat float64, odd bool) int {
	nl := CPRNL(lat)
	if odd {
		nl--
	}
	if nl < 1 {
		nl = 1
	}
	return nl
}

// CPREncode produces a 17-bit-quantized (lat, lon) CPR pair for the given
// true latitude/longitude and odd/even format flag, matching the synthetic
// ADS-B position encoder in the reference implementation.
func CPREncode(lat, lon float64, odd bool) (latCPR, lonCPR uint32) {
	const scale = 131072.0 // 2^17

	var dLat float64
	if odd {
		dLat = 360.0 / 59.0
	} else {
		dLat = 360.0 / 60.0
	}

	yz := math.Floor(scale*math.Mod(lat, dLat)/dLat + 0.5)
	rlat := dLat * (yz/scale + math.Floor(lat/dLat))

	dLon := 360.0
	if n := CPRN(rlat, odd); n > 0 {
		dLon = 360.0 / float64(n)
	}
	xz := math.Floor(scale*math.Mod(lon, dLon)/dLon + 0.5)

	latCPR = uint32(int64(yz)) & 0x1FFFF
	lonCPR = uint32(int64(xz)) & 0x1FFFF
	return latCPR, lonCPR
}
