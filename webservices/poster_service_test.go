package webservices

import (
	"context"
	"errors"
	"image"
	"image/png"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	tracing "github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/roadposter/roadposter"
	"github.com/jamesrr39/roadposter/roadposterdal"
	"github.com/jamesrr39/roadposter/roadposterrenderer"
	"github.com/jamesrr39/roadposter/styling"
	"github.com/paulmach/osm"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type renderPosterCall struct {
	bounds osm.Bounds
	filter *roadposterdal.RoadFilter
	opts   roadposterrenderer.RasterOptions
}

type mockPosterRenderer struct {
	RenderPosterFunc   func(ctx context.Context, bounds osm.Bounds, filter *roadposterdal.RoadFilter, opts roadposterrenderer.RasterOptions) (image.Image, errorsx.Error)
	RenderTextTileFunc func(size image.Rectangle, text string) (image.Image, errorsx.Error)
	renderPosterCalls  []renderPosterCall
}

func (m *mockPosterRenderer) RenderPoster(ctx context.Context, bounds osm.Bounds, filter *roadposterdal.RoadFilter, opts roadposterrenderer.RasterOptions) (image.Image, errorsx.Error) {
	m.renderPosterCalls = append(m.renderPosterCalls, renderPosterCall{bounds, filter, opts})
	return m.RenderPosterFunc(ctx, bounds, filter, opts)
}

func (m *mockPosterRenderer) RenderTextTile(size image.Rectangle, text string) (image.Image, errorsx.Error) {
	return m.RenderTextTileFunc(size, text)
}

func newTestLogger() *logpkg.Logger {
	return logpkg.NewLogger(os.Stderr, logpkg.LogLevelError)
}

func newTestStyleSet(t *testing.T) *styling.StyleSet {
	boldStyle := &styling.Style{
		ID:         "bold",
		LineWidths: styling.CategoryStyleMap{"motorway": 12, "residential": 4},
	}

	styleSet, err := styling.NewStyleSet([]*styling.Style{styling.BuiltinStyle(), boldStyle}, styling.BUILTIN_STYLEID)
	require.NoError(t, err)

	return styleSet
}

func newTestPosterRouter(ps *PosterService) http.Handler {
	router := chi.NewRouter()
	router.Use(tracing.Middleware(tracing.NewTracer(ioutil.Discard)))
	router.Mount("/api/poster", ps)

	return router
}

func renderSquare(ctx context.Context, bounds osm.Bounds, filter *roadposterdal.RoadFilter, opts roadposterrenderer.RasterOptions) (image.Image, errorsx.Error) {
	return roadposterrenderer.NewImageWithBackground(image.Rect(0, 0, 8, 8), image.Black), nil
}

func doGet(handler http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func TestPosterService_handleGetPoster(t *testing.T) {
	renderer := &mockPosterRenderer{
		RenderPosterFunc: renderSquare,
	}
	metrics := NewRenderMetrics()
	defaultFilter := roadposterdal.DefaultRoadFilter()
	ps := NewPosterService(newTestLogger(), renderer, newTestStyleSet(t), defaultFilter, metrics, 2, false)
	router := newTestPosterRouter(ps)

	rec := doGet(router, "/api/poster?bounds=-0.13,51.51,-0.12,51.50")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), img.Bounds())

	require.Len(t, renderer.renderPosterCalls, 1)
	call := renderer.renderPosterCalls[0]
	assert.Equal(t, roadposter.BoundsFromWNES(-0.13, 51.51, -0.12, 51.50), call.bounds)
	assert.Equal(t, defaultFilter, call.filter)
	assert.Equal(t, roadposterrenderer.RasterOptions{
		Size:     DefaultPosterSize,
		Padding:  DefaultPosterSize / 20,
		StyleMap: styling.BuiltinStyle().LineWidths,
	}, call.opts)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.rendersTotal.WithLabelValues(renderOutcomeSuccess)))
}

func TestPosterService_handleGetPoster_centerAndOptions(t *testing.T) {
	renderer := &mockPosterRenderer{
		RenderPosterFunc: renderSquare,
	}
	ps := NewPosterService(newTestLogger(), renderer, newTestStyleSet(t), roadposterdal.DefaultRoadFilter(), NewRenderMetrics(), 2, false)
	router := newTestPosterRouter(ps)

	rec := doGet(router, "/api/poster?center=51.5,-0.12&sizeDeg=0.02&size=200&padding=0&styleId=bold&categories=motorway,residential")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	expectedBounds, err := roadposter.BoundsAroundCenterDegrees(roadposter.Location{Lat: 51.5, Lon: -0.12}, 0.02)
	require.NoError(t, err)

	require.Len(t, renderer.renderPosterCalls, 1)
	call := renderer.renderPosterCalls[0]
	assert.Equal(t, expectedBounds, call.bounds)
	assert.Equal(t, []string{"motorway", "residential"}, call.filter.Categories)
	assert.Equal(t, 200, call.opts.Size)
	assert.Equal(t, 0, call.opts.Padding)
	assert.Equal(t, styling.CategoryStyleMap{"motorway": 12, "residential": 4}, call.opts.StyleMap)

	rec = doGet(router, "/api/poster?center=51.5,-0.12&sizeMeters=2000")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	expectedBounds, err = roadposter.BoundsAroundCenterMeters(roadposter.Location{Lat: 51.5, Lon: -0.12}, 2000)
	require.NoError(t, err)

	require.Len(t, renderer.renderPosterCalls, 2)
	assert.Equal(t, expectedBounds, renderer.renderPosterCalls[1].bounds)
}

func TestPosterService_handleGetPoster_noRoads(t *testing.T) {
	var textTileSize image.Rectangle
	var textTileText string

	renderer := &mockPosterRenderer{
		RenderPosterFunc: func(ctx context.Context, bounds osm.Bounds, filter *roadposterdal.RoadFilter, opts roadposterrenderer.RasterOptions) (image.Image, errorsx.Error) {
			return nil, errorsx.Wrap(roadposterrenderer.ErrEmptyGeometry)
		},
		RenderTextTileFunc: func(size image.Rectangle, text string) (image.Image, errorsx.Error) {
			textTileSize = size
			textTileText = text
			return roadposterrenderer.NewImageWithBackground(size, image.White), nil
		},
	}
	metrics := NewRenderMetrics()
	ps := NewPosterService(newTestLogger(), renderer, newTestStyleSet(t), roadposterdal.DefaultRoadFilter(), metrics, 2, false)

	rec := doGet(newTestPosterRouter(ps), "/api/poster?bounds=1,2,2,1&size=64")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 64), img.Bounds())
	assert.Equal(t, image.Rect(0, 0, 64, 64), textTileSize)
	assert.Equal(t, noRoadsFoundText, textTileText)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.rendersTotal.WithLabelValues(renderOutcomeNoRoads)))
}

func TestPosterService_handleGetPoster_badRequests(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"no area", ""},
		{"bounds and center", "bounds=1,2,2,1&center=1.5,1.5&sizeDeg=1"},
		{"bounds with 3 values", "bounds=1,2,2"},
		{"bounds with south above north", "bounds=1,1,2,2"},
		{"bounds with latitude out of range", "bounds=1,95,2,1"},
		{"center without size", "center=1.5,1.5"},
		{"center with both sizes", "center=1.5,1.5&sizeDeg=1&sizeMeters=100"},
		{"center with negative size", "center=1.5,1.5&sizeDeg=-1"},
		{"center not a number", "center=north,1.5&sizeDeg=1"},
		{"size zero", "bounds=1,2,2,1&size=0"},
		{"size too big", "bounds=1,2,2,1&size=9000"},
		{"size not a number", "bounds=1,2,2,1&size=big"},
		{"padding too big", "bounds=1,2,2,1&size=100&padding=51"},
		{"negative padding", "bounds=1,2,2,1&padding=-1"},
		{"unknown style", "bounds=1,2,2,1&styleId=unknown"},
		{"invalid category", "bounds=1,2,2,1&categories=primary|secondary"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renderer := &mockPosterRenderer{
				RenderPosterFunc: renderSquare,
			}
			metrics := NewRenderMetrics()
			ps := NewPosterService(newTestLogger(), renderer, newTestStyleSet(t), roadposterdal.DefaultRoadFilter(), metrics, 2, false)

			rec := doGet(newTestPosterRouter(ps), "/api/poster?"+tt.query)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Empty(t, renderer.renderPosterCalls)
			assert.Equal(t, float64(1), testutil.ToFloat64(metrics.rendersTotal.WithLabelValues(renderOutcomeInvalidInput)))
		})
	}
}

func TestPosterService_handleGetPoster_renderErrors(t *testing.T) {
	tests := []struct {
		name           string
		renderErr      error
		expectedStatus int
		expectedOutput string
	}{
		{"degenerate extent", roadposterrenderer.ErrDegenerateExtent, http.StatusBadRequest, renderOutcomeInvalidInput},
		{"invalid style", styling.ErrInvalidStyle, http.StatusBadRequest, renderOutcomeInvalidInput},
		{"data source down", errors.New("connection refused"), http.StatusInternalServerError, renderOutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renderer := &mockPosterRenderer{
				RenderPosterFunc: func(ctx context.Context, bounds osm.Bounds, filter *roadposterdal.RoadFilter, opts roadposterrenderer.RasterOptions) (image.Image, errorsx.Error) {
					return nil, errorsx.Wrap(tt.renderErr, "test", tt.name)
				},
			}
			metrics := NewRenderMetrics()
			ps := NewPosterService(newTestLogger(), renderer, newTestStyleSet(t), roadposterdal.DefaultRoadFilter(), metrics, 2, false)

			rec := doGet(newTestPosterRouter(ps), "/api/poster?bounds=1,2,2,1")
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.renderErr.Error())
			assert.Equal(t, float64(1), testutil.ToFloat64(metrics.rendersTotal.WithLabelValues(tt.expectedOutput)))
		})
	}
}

func TestRenderMetrics_Handler(t *testing.T) {
	metrics := NewRenderMetrics()
	metrics.ObserveRender(renderOutcomeSuccess, 0)
	metrics.ObserveRender(renderOutcomeSuccess, 0)

	rec := doGet(metrics.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `roadposter_renders_total{outcome="success"} 2`), body)
	assert.True(t, strings.Contains(body, "roadposter_render_duration_seconds_count 2"), body)
}
