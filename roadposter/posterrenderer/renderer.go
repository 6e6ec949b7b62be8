package posterrenderer

import (
	"context"
	"image"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/roadposter/roadposterdal"
	"github.com/jamesrr39/roadposter/roadposterrenderer"
	"github.com/paulmach/osm"
)

type PosterRenderer interface {
	RenderPoster(ctx context.Context, bounds osm.Bounds, filter *roadposterdal.RoadFilter, opts roadposterrenderer.RasterOptions) (image.Image, errorsx.Error)
	RenderTextTile(size image.Rectangle, text string) (image.Image, errorsx.Error)
}

var _ PosterRenderer = &roadposterrenderer.RasterRenderer{}
