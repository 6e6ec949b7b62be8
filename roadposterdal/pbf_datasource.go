package roadposterdal

import (
	"context"
	"runtime"
	"sort"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/roadposter/roadposter"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
)

type PBFReader interface {
	Scan() bool
	Object() osm.Object
	Err() error
	Close() error
}

type DefaultPBFReader struct {
	file gofs.File
	*osmpbf.Scanner
}

func NewDefaultPBFReader(ctx context.Context, file gofs.File) *DefaultPBFReader {
	return &DefaultPBFReader{file, osmpbf.New(ctx, file, runtime.NumCPU())}
}

func (r *DefaultPBFReader) Close() error {
	scannerErr := r.Scanner.Close()
	fileErr := r.file.Close()
	if scannerErr != nil {
		return scannerErr
	}
	return fileErr
}

// OpenPBFReaderFunc opens a new reader, positioned at the start of the PBF data
type OpenPBFReaderFunc func(ctx context.Context) (PBFReader, errorsx.Error)

// OpenPBFFileFunc returns a OpenPBFReaderFunc reading from the file at filePath
func OpenPBFFileFunc(fs gofs.Fs, filePath string) OpenPBFReaderFunc {
	return func(ctx context.Context) (PBFReader, errorsx.Error) {
		file, err := fs.Open(filePath)
		if err != nil {
			return nil, errorsx.Wrap(err, "filePath", filePath)
		}

		return NewDefaultPBFReader(ctx, file), nil
	}
}

var _ DataSource = &PBFDataSource{}

// PBFDataSource reads ways from an OSM PBF extract. The extract is scanned twice per request:
// once for the ways, and once for the nodes of those ways.
type PBFDataSource struct {
	logger     *logpkg.Logger
	name       string
	openReader OpenPBFReaderFunc
}

func NewPBFDataSource(logger *logpkg.Logger, name string, openReader OpenPBFReaderFunc) *PBFDataSource {
	return &PBFDataSource{logger, name, openReader}
}

func (ds *PBFDataSource) Name() string {
	return ds.name
}

type pbfWayType struct {
	ID       int64
	NodeIDs  []osm.NodeID
	Category string
}

func (ds *PBFDataSource) GetWays(ctx context.Context, bounds osm.Bounds, filter *RoadFilter) (roadposter.WaySet, errorsx.Error) {
	err := filter.Validate()
	if err != nil {
		return nil, err
	}

	ways, wantedNodes, err := ds.scanWays(ctx, filter)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	if len(ways) == 0 {
		return nil, errorsx.Wrap(ErrNoDataAvailable, "dataSource", ds.name)
	}

	nodeLocations, err := ds.scanNodes(ctx, wantedNodes)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	var waySet roadposter.WaySet
	for _, way := range ways {
		var points []roadposter.Location
		for _, nodeID := range way.NodeIDs {
			location, ok := nodeLocations[nodeID]
			if !ok {
				// node not in the extract (ways are not clipped at the extract boundary)
				continue
			}
			points = append(points, location)
		}

		if !roadposter.TouchesBounds(points, bounds) {
			continue
		}

		waySet = append(waySet, &roadposter.Way{
			ID:       way.ID,
			Points:   points,
			Category: way.Category,
		})
	}

	waySet, dropped := keepDrawableWays(waySet)
	if dropped != 0 {
		ds.logger.Debug("datasource: %q. dropped %d ways with fewer than 2 nodes in the extract", ds.name, dropped)
	}

	if len(waySet) == 0 {
		return nil, errorsx.Wrap(ErrNoDataAvailable, "dataSource", ds.name)
	}

	sort.Slice(waySet, func(a, b int) bool {
		return waySet[a].ID < waySet[b].ID
	})

	return waySet, nil
}

func (ds *PBFDataSource) scanWays(ctx context.Context, filter *RoadFilter) ([]*pbfWayType, map[osm.NodeID]bool, errorsx.Error) {
	reader, err := ds.openReader(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer reader.Close()

	var ways []*pbfWayType
	wantedNodes := make(map[osm.NodeID]bool)

	for reader.Scan() {
		if ctx.Err() != nil {
			return nil, nil, errorsx.Wrap(ctx.Err())
		}

		way, ok := reader.Object().(*osm.Way)
		if !ok {
			continue
		}

		category := way.Tags.Find("highway")
		if !filter.Accepts(category) {
			continue
		}

		nodeIDs := make([]osm.NodeID, len(way.Nodes))
		for i, wayNode := range way.Nodes {
			nodeIDs[i] = wayNode.ID
			wantedNodes[wayNode.ID] = true
		}

		ways = append(ways, &pbfWayType{
			ID:       int64(way.ID),
			NodeIDs:  nodeIDs,
			Category: category,
		})
	}

	if reader.Err() != nil {
		return nil, nil, errorsx.Wrap(reader.Err())
	}

	return ways, wantedNodes, nil
}

func (ds *PBFDataSource) scanNodes(ctx context.Context, wantedNodes map[osm.NodeID]bool) (map[osm.NodeID]roadposter.Location, errorsx.Error) {
	reader, err := ds.openReader(ctx)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	nodeLocations := make(map[osm.NodeID]roadposter.Location, len(wantedNodes))

	for reader.Scan() {
		if ctx.Err() != nil {
			return nil, errorsx.Wrap(ctx.Err())
		}

		node, ok := reader.Object().(*osm.Node)
		if !ok {
			continue
		}

		if !wantedNodes[node.ID] {
			continue
		}

		nodeLocations[node.ID] = roadposter.Location{Lat: node.Lat, Lon: node.Lon}
	}

	if reader.Err() != nil {
		return nil, errorsx.Wrap(reader.Err())
	}

	return nodeLocations, nil
}
