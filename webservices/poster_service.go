package webservices

import (
	"image"
	"image/png"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	tracing "github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/roadposter/roadposter"
	"github.com/jamesrr39/roadposter/roadposter/posterrenderer"
	"github.com/jamesrr39/roadposter/roadposterdal"
	"github.com/jamesrr39/roadposter/roadposterrenderer"
	"github.com/jamesrr39/roadposter/styling"
	"github.com/jamesrr39/semaphore"
	"github.com/paulmach/osm"
	"github.com/pkg/profile"
)

const (
	DefaultPosterSize = 1024
	MaxPosterSize     = 8192

	noRoadsFoundText = "(no roads found)"
)

type PosterService struct {
	logger        *logpkg.Logger
	renderer      posterrenderer.PosterRenderer
	styleSet      *styling.StyleSet
	defaultFilter *roadposterdal.RoadFilter
	sema          *semaphore.Semaphore
	metrics       *RenderMetrics
	shouldProfile bool
	chi.Router
}

func NewPosterService(logger *logpkg.Logger, renderer posterrenderer.PosterRenderer, styleSet *styling.StyleSet, defaultFilter *roadposterdal.RoadFilter, metrics *RenderMetrics, maxConcurrentRenders uint, shouldProfile bool) *PosterService {
	ps := &PosterService{
		logger,
		renderer,
		styleSet,
		defaultFilter,
		semaphore.NewSemaphore(maxConcurrentRenders),
		metrics,
		shouldProfile,
		chi.NewRouter(),
	}

	ps.Get("/", ps.handleGetPoster)

	return ps
}

type posterRequest struct {
	bounds osm.Bounds
	filter *roadposterdal.RoadFilter
	opts   roadposterrenderer.RasterOptions
}

func (ps *PosterService) getStyle(styleID string) (*styling.Style, errorsx.Error) {
	if styleID == "" {
		return ps.styleSet.GetDefaultStyle(), nil
	}

	style := ps.styleSet.GetStyleByID(styleID)
	if style == nil {
		return nil, errorsx.Errorf("couldn't get requested style %q (style not loaded)", styleID)
	}

	return style, nil
}

// parsePosterRequest reads the poster parameters from the query string.
//
// The area is either "bounds=W,N,E,S", or "center=LAT,LON" with one of "sizeDeg" or "sizeMeters".
func (ps *PosterService) parsePosterRequest(query url.Values) (*posterRequest, errorsx.Error) {
	var err error

	bounds, err := roadposter.ParseArea(query.Get("bounds"), query.Get("center"), query.Get("sizeDeg"), query.Get("sizeMeters"))
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	size := DefaultPosterSize
	sizeStr := query.Get("size")
	if sizeStr != "" {
		size, err = strconv.Atoi(sizeStr)
		if err != nil {
			return nil, errorsx.Wrap(err, "size", sizeStr)
		}
	}

	if size < 1 || size > MaxPosterSize {
		return nil, errorsx.Wrap(roadposterrenderer.ErrInvalidCanvas, "reason", "size out of range", "size", size, "maxSize", MaxPosterSize)
	}

	padding := size / 20
	paddingStr := query.Get("padding")
	if paddingStr != "" {
		padding, err = strconv.Atoi(paddingStr)
		if err != nil {
			return nil, errorsx.Wrap(err, "padding", paddingStr)
		}
	}

	style, err := ps.getStyle(query.Get("styleId"))
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	filter := ps.defaultFilter
	categoriesStr := query.Get("categories")
	if categoriesStr != "" {
		filter, err = roadposterdal.ParseRoadFilter(categoriesStr)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}
	}

	opts := roadposterrenderer.RasterOptions{
		Size:     size,
		Padding:  padding,
		StyleMap: style.LineWidths,
	}

	err = opts.Validate()
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return &posterRequest{bounds, filter, opts}, nil
}

// isInvalidInputErr returns true if the render failed because of the request, rather than the server
func isInvalidInputErr(err errorsx.Error) bool {
	switch errorsx.Cause(err) {
	case roadposter.ErrInvalidBounds,
		styling.ErrInvalidStyle,
		roadposterrenderer.ErrDegenerateExtent,
		roadposterrenderer.ErrInvalidCanvas:
		return true
	default:
		return false
	}
}

func (ps *PosterService) handleGetPoster(w http.ResponseWriter, r *http.Request) {
	if ps.shouldProfile {
		defer profile.Start().Stop()
	}

	startTime := time.Now()

	req, err := ps.parsePosterRequest(r.URL.Query())
	if err != nil {
		ps.metrics.ObserveRender(renderOutcomeInvalidInput, time.Since(startTime))
		errorsx.HTTPError(w, ps.logger, err, http.StatusBadRequest)
		return
	}

	ps.logger.Info("rendering poster. Bounds (NW, SE): [%f %f, %f %f]. Size: %d, padding: %d", req.bounds.MaxLat, req.bounds.MinLon, req.bounds.MinLat, req.bounds.MaxLon, req.opts.Size, req.opts.Padding)

	ps.sema.Add()
	defer ps.sema.Done()

	ps.metrics.rendersRunning.Inc()
	defer ps.metrics.rendersRunning.Dec()

	renderSpan := tracing.StartSpan(r.Context(), "render poster")
	img, err := ps.renderer.RenderPoster(r.Context(), req.bounds, req.filter, req.opts)
	renderSpan.End(r.Context())
	if err != nil {
		switch {
		case errorsx.Cause(err) == roadposterrenderer.ErrEmptyGeometry:
			ps.metrics.ObserveRender(renderOutcomeNoRoads, time.Since(startTime))
			img, err = ps.renderer.RenderTextTile(image.Rect(0, 0, req.opts.Size, req.opts.Size), noRoadsFoundText)
			if err != nil {
				errorsx.HTTPError(w, ps.logger, err, http.StatusInternalServerError)
				return
			}
		case isInvalidInputErr(err):
			ps.metrics.ObserveRender(renderOutcomeInvalidInput, time.Since(startTime))
			errorsx.HTTPError(w, ps.logger, err, http.StatusBadRequest)
			return
		default:
			ps.metrics.ObserveRender(renderOutcomeError, time.Since(startTime))
			errorsx.HTTPError(w, ps.logger, err, http.StatusInternalServerError)
			return
		}
	} else {
		ps.metrics.ObserveRender(renderOutcomeSuccess, time.Since(startTime))
	}

	w.Header().Set("Content-Type", "image/png")

	encodeSpan := tracing.StartSpan(r.Context(), "encode png")
	defer encodeSpan.End(r.Context())

	encodeErr := png.Encode(w, img)
	if encodeErr != nil {
		switch encodeErr.(type) {
		case *net.OpError:
			// broken pipe (request cancelled). Do nothing
		default:
			errorsx.HTTPError(w, ps.logger, errorsx.Wrap(encodeErr), http.StatusInternalServerError)
		}
		return
	}
}
