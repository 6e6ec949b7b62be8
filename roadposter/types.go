package roadposter

type Location struct {
	Lat float64
	Lon float64
}

// Way is one connected road segment. Points are drawn as a polyline in the order given.
type Way struct {
	ID       int64
	Points   []Location
	Category string // value of the "highway" tag, may be empty
}

type WaySet []*Way

// Geometries returns the point sequence of every way. The i-th sequence belongs to the i-th way.
func (ws WaySet) Geometries() [][]Location {
	geometries := make([][]Location, len(ws))
	for i, way := range ws {
		geometries[i] = way.Points
	}
	return geometries
}

// Categories returns the category of every way. The i-th category belongs to the i-th way.
func (ws WaySet) Categories() []string {
	categories := make([]string, len(ws))
	for i, way := range ws {
		categories[i] = way.Category
	}
	return categories
}

func (ws WaySet) PointCount() int {
	count := 0
	for _, way := range ws {
		count += len(way.Points)
	}
	return count
}
