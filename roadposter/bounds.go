package roadposter

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/osm"
)

var ErrInvalidBounds = errors.New("invalid bounds")

// ValidateBounds checks the bounds describe a south-west/north-east box. Boxes crossing the antimeridian are not supported.
func ValidateBounds(bounds osm.Bounds) errorsx.Error {
	for _, val := range []float64{bounds.MinLat, bounds.MaxLat, bounds.MinLon, bounds.MaxLon} {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return errorsx.Wrap(ErrInvalidBounds, "reason", "non-finite coordinate")
		}
	}

	if bounds.MinLat > bounds.MaxLat {
		return errorsx.Wrap(ErrInvalidBounds, "reason", "south is above north", "minLat", bounds.MinLat, "maxLat", bounds.MaxLat)
	}

	if bounds.MinLon > bounds.MaxLon {
		return errorsx.Wrap(ErrInvalidBounds, "reason", "west edge is east of east edge", "minLon", bounds.MinLon, "maxLon", bounds.MaxLon)
	}

	if bounds.MinLat < -90 || bounds.MaxLat > 90 || bounds.MinLon < -180 || bounds.MaxLon > 180 {
		return errorsx.Wrap(ErrInvalidBounds, "reason", "outside of the world")
	}

	return nil
}

func BoundsFromWNES(west, north, east, south float64) osm.Bounds {
	return osm.Bounds{
		MinLat: south,
		MaxLat: north,
		MinLon: west,
		MaxLon: east,
	}
}

// ParseWNESBounds parses a comma separated "W,N,E,S" string. Example: -1,1,1,-1
func ParseWNESBounds(boundsStr string) (osm.Bounds, errorsx.Error) {
	fragments := strings.Split(boundsStr, ",")
	if len(fragments) != 4 {
		return osm.Bounds{}, errorsx.Wrap(ErrInvalidBounds, "reason", "expected 4 comma separated values", "bounds", boundsStr)
	}

	var values [4]float64
	for idx, fragment := range fragments {
		val, err := strconv.ParseFloat(strings.TrimSpace(fragment), 64)
		if err != nil {
			return osm.Bounds{}, errorsx.Wrap(err, "bounds", boundsStr)
		}
		values[idx] = val
	}

	bounds := BoundsFromWNES(values[0], values[1], values[2], values[3])

	err := ValidateBounds(bounds)
	if err != nil {
		return osm.Bounds{}, err
	}

	return bounds, nil
}

// ParseLocation parses a "lat,lon" string.
func ParseLocation(locationStr string) (Location, errorsx.Error) {
	fragments := strings.Split(locationStr, ",")
	if len(fragments) != 2 {
		return Location{}, errorsx.Errorf("expected location in the format 'lat,lon', but got %q", locationStr)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(fragments[0]), 64)
	if err != nil {
		return Location{}, errorsx.Wrap(err, "location", locationStr)
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(fragments[1]), 64)
	if err != nil {
		return Location{}, errorsx.Wrap(err, "location", locationStr)
	}

	return Location{Lat: lat, Lon: lon}, nil
}

func GetWholeWorldBounds() osm.Bounds {
	return osm.Bounds{
		MaxLat: 90,
		MinLat: -90,
		MaxLon: 180,
		MinLon: -180,
	}
}

// BoundsAroundCenterDegrees returns a box with sides of sizeDegrees, centered on center.
func BoundsAroundCenterDegrees(center Location, sizeDegrees float64) (osm.Bounds, errorsx.Error) {
	if !(sizeDegrees > 0) {
		return osm.Bounds{}, errorsx.Wrap(ErrInvalidBounds, "reason", "size must be positive", "sizeDegrees", sizeDegrees)
	}

	halfSize := sizeDegrees / 2
	bounds := osm.Bounds{
		MinLat: center.Lat - halfSize,
		MaxLat: center.Lat + halfSize,
		MinLon: center.Lon - halfSize,
		MaxLon: center.Lon + halfSize,
	}

	err := ValidateBounds(bounds)
	if err != nil {
		return osm.Bounds{}, err
	}

	return bounds, nil
}

// BoundsAroundCenterMeters returns a box with sides of approximately sideMeters on the ground, centered on center.
func BoundsAroundCenterMeters(center Location, sideMeters float64) (osm.Bounds, errorsx.Error) {
	if !(sideMeters > 0) {
		return osm.Bounds{}, errorsx.Wrap(ErrInvalidBounds, "reason", "size must be positive", "sideMeters", sideMeters)
	}

	bound := geo.NewBoundAroundPoint(orb.Point{center.Lon, center.Lat}, sideMeters/2)

	bounds := osm.Bounds{
		MinLat: bound.Min.Lat(),
		MaxLat: bound.Max.Lat(),
		MinLon: bound.Min.Lon(),
		MaxLon: bound.Max.Lon(),
	}

	err := ValidateBounds(bounds)
	if err != nil {
		return osm.Bounds{}, err
	}

	return bounds, nil
}

// Overlaps checks whether an item is at least partially inside a container
func Overlaps(container osm.Bounds, item osm.Bounds) bool {
	if container.MinLat > item.MaxLat {
		// container is wholly above item
		return false
	}

	if container.MaxLat < item.MinLat {
		// container is wholly below item
		return false
	}

	if container.MinLon > item.MaxLon {
		// container is wholly to the right of item
		return false
	}

	if container.MaxLon < item.MinLon {
		// container is wholly to the left of item
		return false
	}

	return true
}

// CalcBoundsForPoints returns the smallest box containing all the points.
func CalcBoundsForPoints(points []Location) osm.Bounds {
	objBounds := osm.Bounds{
		MaxLat: -90,
		MinLat: 90,
		MaxLon: -180,
		MinLon: 180,
	}
	for _, point := range points {
		if point.Lat < objBounds.MinLat {
			objBounds.MinLat = point.Lat
		}
		if point.Lat > objBounds.MaxLat {
			objBounds.MaxLat = point.Lat
		}
		if point.Lon < objBounds.MinLon {
			objBounds.MinLon = point.Lon
		}
		if point.Lon > objBounds.MaxLon {
			objBounds.MaxLon = point.Lon
		}
	}
	return objBounds
}

// TouchesBounds returns true if the box around the points overlaps the bounds
func TouchesBounds(points []Location, bounds osm.Bounds) bool {
	if len(points) == 0 {
		return false
	}

	return Overlaps(CalcBoundsForPoints(points), bounds)
}
