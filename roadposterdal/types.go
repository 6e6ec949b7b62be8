package roadposterdal

import (
	"context"
	"errors"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/roadposter/roadposter"
	"github.com/paulmach/osm"
)

var (
	ErrNoDataAvailable = errors.New("no data available")
)

// DataSource fetches the roads inside a bounding box.
// Every returned way has at least 2 points, and the ways are ordered by way ID.
type DataSource interface {
	Name() string
	GetWays(ctx context.Context, bounds osm.Bounds, filter *RoadFilter) (roadposter.WaySet, errorsx.Error)
}

// RoadFilter lists the road categories (values of the "highway" tag) that should be fetched
type RoadFilter struct {
	Categories []string
}

var defaultRoadCategories = []string{
	"motorway",
	"trunk",
	"primary",
	"secondary",
	"tertiary",
	"residential",
	"living_street",
}

func DefaultRoadFilter() *RoadFilter {
	categories := make([]string, len(defaultRoadCategories))
	copy(categories, defaultRoadCategories)

	return &RoadFilter{categories}
}

// returns true if ways of this category should be fetched
func (f *RoadFilter) Accepts(category string) bool {
	for _, acceptedCategory := range f.Categories {
		if acceptedCategory == category {
			return true
		}
	}
	return false
}

func (f *RoadFilter) Validate() errorsx.Error {
	if len(f.Categories) == 0 {
		return errorsx.Errorf("no road categories in filter")
	}

	for _, category := range f.Categories {
		if category == "" || strings.ContainsAny(category, `|"$^()\`) {
			return errorsx.Errorf("invalid road category in filter: %q", category)
		}
	}

	return nil
}

// ParseRoadFilter parses a comma separated list of road categories. An empty string gives the default filter.
func ParseRoadFilter(categoriesStr string) (*RoadFilter, errorsx.Error) {
	if strings.TrimSpace(categoriesStr) == "" {
		return DefaultRoadFilter(), nil
	}

	filter := new(RoadFilter)
	for _, category := range strings.Split(categoriesStr, ",") {
		category = strings.TrimSpace(category)
		if category == "" {
			continue
		}
		filter.Categories = append(filter.Categories, category)
	}

	err := filter.Validate()
	if err != nil {
		return nil, err
	}

	return filter, nil
}

type DataSourceType string

const (
	DataSourceTypeOverpass   DataSourceType = "overpass"
	DataSourceTypePBF        DataSourceType = "pbf"
	DataSourceTypePostgresql DataSourceType = "postgresql"
)

type DataSourceURL struct {
	Type           DataSourceType
	ConnectionPath string
}

const ConnectionPathSeparator = "://"

// ParseDataSourceURL parses strings like "pbf://path/to/extract.osm.pbf" or "overpass://https://overpass-api.de/api/interpreter"
func ParseDataSourceURL(str string) (DataSourceURL, errorsx.Error) {
	idx := strings.Index(str, ConnectionPathSeparator)
	if idx < 0 {
		return DataSourceURL{}, errorsx.Errorf("couldn't find connection path separator %q in data source URL", ConnectionPathSeparator)
	}

	return DataSourceURL{
		Type:           DataSourceType(str[:idx]),
		ConnectionPath: str[idx+len(ConnectionPathSeparator):],
	}, nil
}

// keepDrawableWays drops ways that can't be drawn as a line
func keepDrawableWays(waySet roadposter.WaySet) (roadposter.WaySet, int) {
	var kept roadposter.WaySet
	dropped := 0
	for _, way := range waySet {
		if len(way.Points) < 2 {
			dropped++
			continue
		}
		kept = append(kept, way)
	}
	return kept, dropped
}
