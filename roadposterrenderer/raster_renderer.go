package roadposterrenderer

import (
	"context"
	"image"
	"image/color"
	"time"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/roadposter/roadposter"
	"github.com/jamesrr39/roadposter/roadposterdal"
	"github.com/paulmach/osm"
)

const textTileFontSize = 16.0

type RasterRenderer struct {
	logger     *logpkg.Logger
	dataSource roadposterdal.DataSource
	font       *truetype.Font
}

func NewRasterRenderer(logger *logpkg.Logger, dataSource roadposterdal.DataSource, font *truetype.Font) *RasterRenderer {
	return &RasterRenderer{
		logger,
		dataSource,
		font,
	}
}

// RenderPoster fetches the roads inside the bounds and draws them onto a square image.
// If no roads are found, an error with the cause ErrEmptyGeometry is returned.
func (rr *RasterRenderer) RenderPoster(ctx context.Context, bounds osm.Bounds, filter *roadposterdal.RoadFilter, opts RasterOptions) (image.Image, errorsx.Error) {
	err := roadposter.ValidateBounds(bounds)
	if err != nil {
		return nil, err
	}

	// fail before querying the data source
	err = opts.Validate()
	if err != nil {
		return nil, err
	}

	fetchStartTime := time.Now()

	waySet, err := rr.dataSource.GetWays(ctx, bounds, filter)
	if err != nil {
		if errorsx.Cause(err) != roadposterdal.ErrNoDataAvailable {
			return nil, errorsx.Wrap(err, "dataSource", rr.dataSource.Name())
		}
		rr.logger.Info("datasource: %q. no data available", rr.dataSource.Name())
		waySet = nil
	}

	rr.logger.Debug("datasource: %q. fetched %d ways (%d points) in %s", rr.dataSource.Name(), len(waySet), waySet.PointCount(), time.Since(fetchStartTime))

	if len(waySet) == 0 {
		return nil, errorsx.Wrap(ErrEmptyGeometry, "reason", "no roads found in bounds")
	}

	img, err := RenderWaySet(waySet, opts)
	if err != nil {
		return nil, err
	}

	return img, nil
}

// RenderWaySet projects and rasterizes an already-fetched set of ways
func RenderWaySet(waySet roadposter.WaySet, opts RasterOptions) (*image.RGBA, errorsx.Error) {
	if len(waySet) == 0 {
		return nil, errorsx.Wrap(ErrEmptyGeometry, "reason", "no ways")
	}

	planarWays, err := Project(waySet.Geometries())
	if err != nil {
		return nil, err
	}

	return Rasterize(planarWays, waySet.Categories(), opts)
}

// RenderTextTile renders a white square image with the text in black, roughly centered
func (rr *RasterRenderer) RenderTextTile(size image.Rectangle, text string) (image.Image, errorsx.Error) {
	img := NewImageWithBackground(size, color.White)

	ctx := freetype.NewContext()
	ctx.SetDPI(72)
	ctx.SetFont(rr.font)
	ctx.SetFontSize(textTileFontSize)
	ctx.SetClip(img.Bounds())
	ctx.SetDst(img)
	ctx.SetSrc(image.NewUniform(color.Black))

	textWidth := int(float64(len(text)) * textTileFontSize / 2)
	x := (size.Dx() - textWidth) / 2
	if x < 0 {
		x = 0
	}
	y := size.Dy() / 2

	_, err := ctx.DrawString(text, freetype.Pt(size.Min.X+x, size.Min.Y+y))
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return img, nil
}
