package roadposterrenderer

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/roadposter/styling"
	"github.com/llgcode/draw2d"
	"github.com/llgcode/draw2d/draw2dimg"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
)

// maxPixelCoord bounds the quantized coordinates, so they fit in an int on every platform.
const maxPixelCoord = 1 << 30

type RasterOptions struct {
	Size     int // width and height of the square image, in pixels
	Padding  int // width of the blank border, in pixels
	StyleMap styling.CategoryStyleMap
}

func (opts RasterOptions) Validate() errorsx.Error {
	if opts.Size <= 0 {
		return errorsx.Wrap(ErrInvalidCanvas, "reason", "size must be positive", "size", opts.Size)
	}

	if opts.Padding < 0 || opts.Padding > opts.Size/2 {
		return errorsx.Wrap(ErrInvalidCanvas, "reason", "padding must be between 0 and size/2", "size", opts.Size, "padding", opts.Padding)
	}

	err := opts.StyleMap.Validate()
	if err != nil {
		return err
	}

	return nil
}

// Rasterize draws the ways onto a new square image.
//
// categories[i] is the category of ways[i]. Ways are drawn in order, so later ways are drawn over earlier ones.
// The padding border is drawn last, over any road pixels near the edges.
func Rasterize(ways []orb.LineString, categories []string, opts RasterOptions) (*image.RGBA, errorsx.Error) {
	err := opts.Validate()
	if err != nil {
		return nil, err
	}

	if len(ways) != len(categories) {
		return nil, errorsx.Wrap(ErrInvalidGeometry, "reason", "ways and categories are not aligned", "wayCount", len(ways), "categoryCount", len(categories))
	}

	pixelWays, err := QuantizeWays(ways, opts.Size)
	if err != nil {
		return nil, err
	}

	img := NewImageWithBackground(image.Rect(0, 0, opts.Size, opts.Size), color.White)

	gc := draw2dimg.NewGraphicContext(img)
	gc.SetStrokeColor(color.Black)
	gc.SetLineCap(draw2d.RoundCap)

	for wayIdx, pixelWay := range pixelWays {
		lineWidth := opts.StyleMap.LineWidthFor(categories[wayIdx])
		gc.SetLineWidth(lineWidth)
		for _, visibleLine := range clipToCanvas(pixelWay, opts.Size, lineWidth) {
			drawPolyline(gc, visibleLine)
		}
	}

	drawPadding(img, opts.Padding)

	return img, nil
}

// clipToCanvas cuts away the parts of a pixel polyline that cannot touch the canvas.
// The stroker visits every cell along a line, on or off the canvas.
func clipToCanvas(points []image.Point, size int, lineWidth float64) orb.MultiLineString {
	margin := lineWidth/2 + 1
	canvas := orb.Bound{
		Min: orb.Point{-margin, -margin},
		Max: orb.Point{float64(size) + margin, float64(size) + margin},
	}

	lineString := make(orb.LineString, len(points))
	for i, point := range points {
		lineString[i] = orb.Point{float64(point.X), float64(point.Y)}
	}

	return clip.LineString(canvas, lineString)
}

func drawPolyline(gc *draw2dimg.GraphicContext, points orb.LineString) {
	gc.BeginPath()
	for i, point := range points {
		if i == 0 {
			gc.MoveTo(point.X(), point.Y())
		} else {
			gc.LineTo(point.X(), point.Y())
		}
	}
	gc.Stroke()
}

func drawPadding(img *image.RGBA, padding int) {
	if padding == 0 {
		return
	}

	size := img.Bounds().Max
	paddingRects := []image.Rectangle{
		image.Rect(0, 0, size.X, padding),
		image.Rect(0, 0, padding, size.Y),
		image.Rect(size.X-padding, 0, size.X, size.Y),
		image.Rect(0, size.Y-padding, size.X, size.Y),
	}

	white := image.NewUniform(color.White)
	for _, rect := range paddingRects {
		draw.Draw(img, rect, white, image.Point{}, draw.Src)
	}
}

// CalcExtent returns the box around every point of every way
func CalcExtent(ways []orb.LineString) (orb.Bound, errorsx.Error) {
	if len(ways) == 0 {
		return orb.Bound{}, errorsx.Wrap(ErrEmptyGeometry, "reason", "no ways")
	}

	var extent orb.Bound
	extentStarted := false
	for wayIdx, way := range ways {
		if len(way) < 2 {
			return orb.Bound{}, errorsx.Wrap(ErrInvalidGeometry, "reason", "way has fewer than 2 points", "wayIndex", wayIdx, "pointCount", len(way))
		}

		for _, point := range way {
			if !extentStarted {
				extent = orb.Bound{Min: point, Max: point}
				extentStarted = true
				continue
			}
			extent = extent.Extend(point)
		}
	}

	return extent, nil
}

// QuantizeWays maps the planar ways to pixel coordinates.
//
// A single scale is used for both axes, chosen so the smaller extent spans exactly [0, size].
// The larger extent may go beyond the image. The y axis is flipped so north is at the top.
// Halves are rounded to even.
func QuantizeWays(ways []orb.LineString, size int) ([][]image.Point, errorsx.Error) {
	extent, err := CalcExtent(ways)
	if err != nil {
		return nil, err
	}

	rangeX := extent.Max.X() - extent.Min.X()
	rangeY := extent.Max.Y() - extent.Min.Y()
	if rangeX == 0 || rangeY == 0 {
		return nil, errorsx.Wrap(ErrDegenerateExtent, "rangeX", rangeX, "rangeY", rangeY)
	}

	scale := float64(size) / math.Min(rangeX, rangeY)

	pixelWays := make([][]image.Point, len(ways))
	for wayIdx, way := range ways {
		pixelWay := make([]image.Point, len(way))
		for pointIdx, point := range way {
			x := math.RoundToEven((point.X() - extent.Min.X()) * scale)
			y := math.RoundToEven((point.Y() - extent.Min.Y()) * scale)
			if x > maxPixelCoord || y > maxPixelCoord {
				return nil, errorsx.Wrap(ErrDegenerateExtent, "reason", "extent is too narrow for its length", "rangeX", rangeX, "rangeY", rangeY)
			}
			pixelWay[pointIdx] = image.Point{
				X: int(x),
				Y: size - int(y),
			}
		}
		pixelWays[wayIdx] = pixelWay
	}

	return pixelWays, nil
}
