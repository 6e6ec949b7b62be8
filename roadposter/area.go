package roadposter

import (
	"strconv"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/paulmach/osm"
)

// ParseArea turns user input into bounds. The area is either given as "W,N,E,S" bounds,
// or as a "lat,lon" center with a side length in degrees or in meters.
// Exactly one way of giving the area must be used.
func ParseArea(boundsStr, centerStr, sizeDegStr, sizeMetersStr string) (osm.Bounds, errorsx.Error) {
	switch {
	case boundsStr != "" && centerStr != "":
		return osm.Bounds{}, errorsx.Errorf("only one of bounds and center can be given")
	case boundsStr != "":
		if sizeDegStr != "" || sizeMetersStr != "" {
			return osm.Bounds{}, errorsx.Errorf("a size can only be given together with a center")
		}
		return ParseWNESBounds(boundsStr)
	case centerStr != "":
		center, err := ParseLocation(centerStr)
		if err != nil {
			return osm.Bounds{}, err
		}

		return parseAreaAroundCenter(center, sizeDegStr, sizeMetersStr)
	default:
		return osm.Bounds{}, errorsx.Errorf("no area given. Use either bounds (W,N,E,S) or a center (LAT,LON) with a size")
	}
}

func parseAreaAroundCenter(center Location, sizeDegStr, sizeMetersStr string) (osm.Bounds, errorsx.Error) {
	switch {
	case sizeDegStr != "" && sizeMetersStr != "":
		return osm.Bounds{}, errorsx.Errorf("only one of size in degrees and size in meters can be given")
	case sizeDegStr != "":
		sizeDeg, err := strconv.ParseFloat(sizeDegStr, 64)
		if err != nil {
			return osm.Bounds{}, errorsx.Wrap(err, "sizeDeg", sizeDegStr)
		}
		return BoundsAroundCenterDegrees(center, sizeDeg)
	case sizeMetersStr != "":
		sizeMeters, err := strconv.ParseFloat(sizeMetersStr, 64)
		if err != nil {
			return osm.Bounds{}, errorsx.Wrap(err, "sizeMeters", sizeMetersStr)
		}
		return BoundsAroundCenterMeters(center, sizeMeters)
	default:
		return osm.Bounds{}, errorsx.Errorf("center given without a size")
	}
}
