package isomap

import "errors"

// Rect is an axis-aligned rectangle. The coordinate system has its origin at
// the top-left, with Y increasing downward.
type Rect struct {
	X, Y, Width, Height float64
}

// Contains reports whether the point (x, y) lies inside the rectangle.
// Points on the edge are considered inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// Intersects reports whether r and other overlap.
// Adjacent rectangles (sharing only an edge) are considered intersecting.
func (r Rect) Intersects(other Rect) bool {
	return r.X <= other.X+other.Width &&
		r.X+r.Width >= other.X &&
		r.Y <= other.Y+other.Height &&
		r.Y+r.Height >= other.Y
}

// ResourceID identifies an image inside a resource file. Zero means empty.
type ResourceID uint32

// EmptyResource is the resource id of an unpainted cell.
const EmptyResource ResourceID = 0

// ResourceKey is the identity of a decodable image resource.
type ResourceKey struct {
	FileID     uint16
	ResourceID ResourceID
}

// Sentinel errors returned (wrapped) by the tile map and config loaders.
var (
	ErrInvalidLayer  = errors.New("invalid layer")
	ErrDerivedLayer  = errors.New("layer is derived from the spec value")
	ErrOutOfBounds   = errors.New("cell out of bounds")
	ErrInvalidConfig = errors.New("invalid config")
)
