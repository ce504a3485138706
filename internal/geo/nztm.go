// Package geo provides the coordinate math for the 250m grid: conversion
// between WGS84 geographic coordinates (EPSG:4326) and NZ Transverse
// Mercator 2000 (EPSG:2193), plus polygon centroids.
//
// NZTM2000 is a single fixed Transverse Mercator projection on the GRS80
// ellipsoid, so the standard Snyder series expansions are implemented
// directly rather than pulling in a general projection engine. NZGD2000 is
// treated as coincident with WGS84, which holds to well under a metre for
// this dataset.
package geo

import "math"

// GRS80 ellipsoid and NZTM2000 projection constants (LINZ definition).
const (
	semiMajorAxis = 6378137.0
	flattening    = 1.0 / 298.257222101

	originLatitude  = 0.0
	centralMeridian = 173.0
	scaleFactor     = 0.9996
	falseEasting    = 1600000.0
	falseNorthing   = 10000000.0
)

var (
	e2  = flattening * (2 - flattening) // first eccentricity squared
	e4  = e2 * e2
	e6  = e4 * e2
	ep2 = e2 / (1 - e2) // second eccentricity squared
)

// Point is a position in some coordinate reference system. X is easting or
// longitude, Y is northing or latitude.
type Point struct {
	X float64
	Y float64
}

// meridianArc returns the meridian distance from the equator to latitude
// phi (radians).
func meridianArc(phi float64) float64 {
	return semiMajorAxis * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}

// ToNZTM converts a WGS84 longitude/latitude (degrees) to NZTM2000
// easting/northing (metres).
func ToNZTM(lon, lat float64) Point {
	phi := lat * math.Pi / 180
	lambda := (lon - centralMeridian) * math.Pi / 180

	sinPhi := math.Sin(phi)
	cosPhi := math.Cos(phi)
	tanPhi := math.Tan(phi)

	nu := semiMajorAxis / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := ep2 * cosPhi * cosPhi
	a := lambda * cosPhi

	m := meridianArc(phi)
	m0 := meridianArc(originLatitude * math.Pi / 180)

	easting := falseEasting + scaleFactor*nu*(a+
		(1-t+c)*math.Pow(a, 3)/6+
		(5-18*t+t*t+72*c-58*ep2)*math.Pow(a, 5)/120)

	northing := falseNorthing + scaleFactor*(m-m0+
		nu*tanPhi*(a*a/2+
			(5-t+9*c+4*c*c)*math.Pow(a, 4)/24+
			(61-58*t+t*t+600*c-330*ep2)*math.Pow(a, 6)/720))

	return Point{X: easting, Y: northing}
}

// FromNZTM converts NZTM2000 easting/northing (metres) back to WGS84
// longitude/latitude (degrees).
func FromNZTM(easting, northing float64) (lon, lat float64) {
	m0 := meridianArc(originLatitude * math.Pi / 180)
	m := m0 + (northing-falseNorthing)/scaleFactor

	mu := m / (semiMajorAxis * (1 - e2/4 - 3*e4/64 - 5*e6/256))

	sqrt1e2 := math.Sqrt(1 - e2)
	e1 := (1 - sqrt1e2) / (1 + sqrt1e2)

	// Footpoint latitude.
	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sinPhi1 := math.Sin(phi1)
	cosPhi1 := math.Cos(phi1)
	tanPhi1 := math.Tan(phi1)

	c1 := ep2 * cosPhi1 * cosPhi1
	t1 := tanPhi1 * tanPhi1
	n1 := semiMajorAxis / math.Sqrt(1-e2*sinPhi1*sinPhi1)
	r1 := semiMajorAxis * (1 - e2) / math.Pow(1-e2*sinPhi1*sinPhi1, 1.5)
	d := (easting - falseEasting) / (n1 * scaleFactor)

	phi := phi1 - (n1*tanPhi1/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)

	lambda := (d -
		(1+2*t1+c1)*math.Pow(d, 3)/6 +
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120) / cosPhi1

	lat = phi * 180 / math.Pi
	lon = centralMeridian + lambda*180/math.Pi
	return lon, lat
}
