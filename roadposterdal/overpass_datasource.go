package roadposterdal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/httpextra"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/roadposter/roadposter"
	"github.com/paulmach/osm"
)

const (
	DefaultOverpassEndpoint = "https://overpass-api.de/api/interpreter"
	defaultOverpassTimeout  = 60 * time.Second
)

var ErrOverpassQueryFailed = errors.New("overpass query failed")

var _ DataSource = &OverpassDataSource{}

type OverpassDataSource struct {
	logger   *logpkg.Logger
	endpoint string
	client   httpextra.Doer
	timeout  time.Duration
}

func NewOverpassDataSource(logger *logpkg.Logger, endpoint string, client httpextra.Doer) *OverpassDataSource {
	if endpoint == "" {
		endpoint = DefaultOverpassEndpoint
	}

	return &OverpassDataSource{logger, endpoint, client, defaultOverpassTimeout}
}

func (ds *OverpassDataSource) Name() string {
	return "overpass: " + ds.endpoint
}

// BuildOverpassQuery returns the Overpass QL query for the ways matching the filter inside the bounds, with their nodes
func BuildOverpassQuery(bounds osm.Bounds, filter *RoadFilter, timeout time.Duration) string {
	return fmt.Sprintf(
		`[out:json][timeout:%d];(way["highway"~"^(%s)$"](%s,%s,%s,%s);>;);out;`,
		int(timeout.Seconds()),
		strings.Join(filter.Categories, "|"),
		formatCoord(bounds.MinLat),
		formatCoord(bounds.MinLon),
		formatCoord(bounds.MaxLat),
		formatCoord(bounds.MaxLon),
	)
}

func formatCoord(val float64) string {
	return fmt.Sprintf("%.7f", val)
}

type overpassResponse struct {
	Elements []*overpassElement `json:"elements"`
	// set when the query failed at runtime (timeout, out of memory). The status code is still 200.
	Remark string `json:"remark"`
}

type overpassElement struct {
	Type  string            `json:"type"`
	ID    int64             `json:"id"`
	Lat   float64           `json:"lat"`
	Lon   float64           `json:"lon"`
	Nodes []int64           `json:"nodes"`
	Tags  map[string]string `json:"tags"`
}

func (ds *OverpassDataSource) GetWays(ctx context.Context, bounds osm.Bounds, filter *RoadFilter) (roadposter.WaySet, errorsx.Error) {
	var err error

	err = filter.Validate()
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	query := BuildOverpassQuery(bounds, filter, ds.timeout)
	ds.logger.Debug("overpass query: %s", query)

	form := url.Values{}
	form.Set("data", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ds.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ds.client.Do(req)
	if err != nil {
		return nil, errorsx.Wrap(err, "endpoint", ds.endpoint)
	}
	defer resp.Body.Close()

	err = httpextra.CheckResponseCode(http.StatusOK, resp.StatusCode)
	if err != nil {
		return nil, errorsx.Wrap(err, "endpoint", ds.endpoint, "body", httpextra.GetBodyOrErrorMsg(resp))
	}

	body, err := httpextra.RemoveGzip(resp)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	defer body.Close()

	var overpassResp overpassResponse
	err = json.NewDecoder(body).Decode(&overpassResp)
	if err != nil {
		return nil, errorsx.Wrap(err, "endpoint", ds.endpoint)
	}

	if overpassResp.Remark != "" {
		return nil, errorsx.Wrap(ErrOverpassQueryFailed, "endpoint", ds.endpoint, "remark", overpassResp.Remark)
	}

	waySet := waySetFromOverpassElements(overpassResp.Elements)

	waySet, dropped := keepDrawableWays(waySet)
	if dropped != 0 {
		ds.logger.Debug("overpass: dropped %d ways with fewer than 2 resolvable nodes", dropped)
	}

	if len(waySet) == 0 {
		return nil, errorsx.Wrap(ErrNoDataAvailable, "endpoint", ds.endpoint)
	}

	return waySet, nil
}

func waySetFromOverpassElements(elements []*overpassElement) roadposter.WaySet {
	nodeLocations := make(map[int64]roadposter.Location)
	for _, element := range elements {
		if element.Type == "node" {
			nodeLocations[element.ID] = roadposter.Location{Lat: element.Lat, Lon: element.Lon}
		}
	}

	var waySet roadposter.WaySet
	for _, element := range elements {
		if element.Type != "way" {
			continue
		}

		var points []roadposter.Location
		for _, nodeID := range element.Nodes {
			location, ok := nodeLocations[nodeID]
			if !ok {
				// node not returned by the server
				continue
			}
			points = append(points, location)
		}

		waySet = append(waySet, &roadposter.Way{
			ID:       element.ID,
			Points:   points,
			Category: element.Tags["highway"],
		})
	}

	sort.Slice(waySet, func(a, b int) bool {
		return waySet[a].ID < waySet[b].ID
	})

	return waySet
}
