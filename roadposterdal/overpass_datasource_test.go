package roadposterdal

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/httpextra"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/roadposter/roadposter"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOverpassQuery(t *testing.T) {
	bounds := osm.Bounds{MinLat: 51.5, MaxLat: 51.51, MinLon: -0.13, MaxLon: -0.12}
	filter := &RoadFilter{Categories: []string{"motorway", "residential"}}

	query := BuildOverpassQuery(bounds, filter, 25*time.Second)

	assert.Equal(t,
		`[out:json][timeout:25];(way["highway"~"^(motorway|residential)$"](51.5000000,-0.1300000,51.5100000,-0.1200000);>;);out;`,
		query,
	)
}

const overpassResponseJSON = `{
  "version": 0.6,
  "elements": [
    {"type": "way", "id": 20, "nodes": [1, 2, 3], "tags": {"highway": "residential", "name": "Some Street"}},
    {"type": "way", "id": 10, "nodes": [3, 4], "tags": {"highway": "primary"}},
    {"type": "way", "id": 30, "nodes": [4, 99], "tags": {"highway": "tertiary"}},
    {"type": "node", "id": 1, "lat": 51.501, "lon": -0.121},
    {"type": "node", "id": 2, "lat": 51.502, "lon": -0.122},
    {"type": "node", "id": 3, "lat": 51.503, "lon": -0.123},
    {"type": "node", "id": 4, "lat": 51.504, "lon": -0.124}
  ]
}`

func newTestLogger() *logpkg.Logger {
	return logpkg.NewLogger(os.Stderr, logpkg.LogLevelError)
}

func TestOverpassDataSource_GetWays(t *testing.T) {
	var receivedQuery string
	doer := &httpextra.MockDoer{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, http.MethodPost, req.Method)
			assert.Equal(t, "https://overpass.example.com/api/interpreter", req.URL.String())

			b, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			form, err := url.ParseQuery(string(b))
			require.NoError(t, err)
			receivedQuery = form.Get("data")

			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     make(http.Header),
				Body:       io.NopCloser(bytes.NewBufferString(overpassResponseJSON)),
			}, nil
		},
	}

	ds := NewOverpassDataSource(newTestLogger(), "https://overpass.example.com/api/interpreter", doer)

	bounds := osm.Bounds{MinLat: 51.5, MaxLat: 51.51, MinLon: -0.13, MaxLon: -0.12}
	waySet, err := ds.GetWays(context.Background(), bounds, DefaultRoadFilter())
	require.Nil(t, err)

	assert.Contains(t, receivedQuery, `way["highway"~"^(motorway|trunk|primary|secondary|tertiary|residential|living_street)$"]`)

	// way 30 only has 1 resolvable node, so is dropped. Ways are sorted by ID.
	require.Len(t, waySet, 2)

	assert.Equal(t, &roadposter.Way{
		ID:       10,
		Category: "primary",
		Points: []roadposter.Location{
			{Lat: 51.503, Lon: -0.123},
			{Lat: 51.504, Lon: -0.124},
		},
	}, waySet[0])

	assert.Equal(t, &roadposter.Way{
		ID:       20,
		Category: "residential",
		Points: []roadposter.Location{
			{Lat: 51.501, Lon: -0.121},
			{Lat: 51.502, Lon: -0.122},
			{Lat: 51.503, Lon: -0.123},
		},
	}, waySet[1])
}

func TestOverpassDataSource_GetWays_errors(t *testing.T) {
	bounds := osm.Bounds{MinLat: 51.5, MaxLat: 51.51, MinLon: -0.13, MaxLon: -0.12}

	t.Run("server error", func(t *testing.T) {
		doer := &httpextra.MockDoer{
			DoFunc: func(req *http.Request) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusTooManyRequests,
					Header:     make(http.Header),
					Body:       io.NopCloser(bytes.NewBufferString("rate limited")),
				}, nil
			},
		}
		ds := NewOverpassDataSource(newTestLogger(), "", doer)
		_, err := ds.GetWays(context.Background(), bounds, DefaultRoadFilter())
		require.NotNil(t, err)
		assert.Contains(t, err.Error(), "rate limited")
	})

	t.Run("no ways", func(t *testing.T) {
		doer := &httpextra.MockDoer{
			DoFunc: func(req *http.Request) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusOK,
					Header:     make(http.Header),
					Body:       io.NopCloser(bytes.NewBufferString(`{"elements": []}`)),
				}, nil
			},
		}
		ds := NewOverpassDataSource(newTestLogger(), "", doer)
		_, err := ds.GetWays(context.Background(), bounds, DefaultRoadFilter())
		require.NotNil(t, err)
		assert.Equal(t, ErrNoDataAvailable, errorsx.Cause(err))
	})

	t.Run("runtime error reported in remark", func(t *testing.T) {
		doer := &httpextra.MockDoer{
			DoFunc: func(req *http.Request) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusOK,
					Header:     make(http.Header),
					Body: io.NopCloser(bytes.NewBufferString(`{
						"elements": [],
						"remark": "runtime error: Query timed out in \"query\" at line 1 after 61 seconds."
					}`)),
				}, nil
			},
		}
		ds := NewOverpassDataSource(newTestLogger(), "", doer)
		_, err := ds.GetWays(context.Background(), bounds, DefaultRoadFilter())
		require.NotNil(t, err)
		assert.Equal(t, ErrOverpassQueryFailed, errorsx.Cause(err))
		assert.Contains(t, err.Error(), "Query timed out")
	})

	t.Run("invalid filter", func(t *testing.T) {
		doer := &httpextra.MockDoer{
			DoFunc: func(req *http.Request) (*http.Response, error) {
				t.Error("no request should be made")
				return nil, nil
			},
		}
		ds := NewOverpassDataSource(newTestLogger(), "", doer)
		_, err := ds.GetWays(context.Background(), bounds, &RoadFilter{})
		require.NotNil(t, err)
	})
}
