package roadposterrenderer

import (
	"math"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/roadposter/roadposter"
	"github.com/paulmach/orb"
)

// Project converts every geometry into the same local planar coordinate system (meters, x east, y north).
//
// The reference point is the mean location over all the points of all the geometries, so that
// the planar coordinates of different ways can be compared with each other. Longitudes are scaled by
// the cosine of the reference latitude (local equirectangular projection), which is only accurate for
// areas small enough to be treated as flat.
func Project(geometries [][]roadposter.Location) ([]orb.LineString, errorsx.Error) {
	if len(geometries) == 0 {
		return nil, errorsx.Wrap(ErrInvalidGeometry, "reason", "no geometries to project")
	}

	var latSum, lonSum float64
	pointCount := 0
	for wayIdx, geometry := range geometries {
		if len(geometry) < 2 {
			return nil, errorsx.Wrap(ErrInvalidGeometry, "reason", "way has fewer than 2 points", "wayIndex", wayIdx, "pointCount", len(geometry))
		}

		for _, point := range geometry {
			if !isFinite(point.Lat) || !isFinite(point.Lon) {
				return nil, errorsx.Wrap(ErrInvalidGeometry, "reason", "non-finite coordinate", "wayIndex", wayIdx)
			}
			latSum += point.Lat
			lonSum += point.Lon
		}
		pointCount += len(geometry)
	}

	reference := roadposter.Location{
		Lat: latSum / float64(pointCount),
		Lon: lonSum / float64(pointCount),
	}

	lonScale := math.Cos(degreesToRadians(reference.Lat))

	lineStrings := make([]orb.LineString, len(geometries))
	for wayIdx, geometry := range geometries {
		lineString := make(orb.LineString, len(geometry))
		for pointIdx, point := range geometry {
			lineString[pointIdx] = orb.Point{
				orb.EarthRadius * degreesToRadians(point.Lon-reference.Lon) * lonScale,
				orb.EarthRadius * degreesToRadians(point.Lat-reference.Lat),
			}
		}
		lineStrings[wayIdx] = lineString
	}

	return lineStrings, nil
}

func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

func isFinite(val float64) bool {
	return !math.IsNaN(val) && !math.IsInf(val, 0)
}
