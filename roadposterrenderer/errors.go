package roadposterrenderer

import "errors"

var (
	ErrInvalidGeometry  = errors.New("invalid geometry")
	ErrEmptyGeometry    = errors.New("empty geometry")
	ErrDegenerateExtent = errors.New("degenerate extent")
	ErrInvalidCanvas    = errors.New("invalid canvas")
)
