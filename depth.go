package isomap

import "fmt"

// TileGap is the depth distance between consecutive layer slots of one row.
const TileGap = 1.0

// maxExactDepth is the largest integer a float64 holds exactly (2^53).
const maxExactDepth = 1 << 53

// DepthKey computes painter's-algorithm sort keys for one grid width:
//
//	depth(x, y, layer) = baseDepth(layer) + y*rowGap + x*LayerCount*TileGap
//
// rowGap is width*LayerCount*TileGap, one more than the largest in-row
// offset, so every key of row y sorts before every key of row y+1 and no two
// (x, y, layer) triples share a key.
type DepthKey struct {
	width  int
	rowGap float64
}

// NewDepthKey returns the key for grids of the given width.
func NewDepthKey(width int) DepthKey {
	return DepthKey{width: width, rowGap: float64(width) * LayerCount * TileGap}
}

// RowGap returns the depth distance between two consecutive rows.
func (k DepthKey) RowGap() float64 { return k.rowGap }

// Depth returns the sort key of a graphic at cell (x, y) on layer.
func (k DepthKey) Depth(x, y int, layer Layer) float64 {
	return baseDepth(layer) + float64(y)*k.rowGap + float64(x)*LayerCount*TileGap
}

func baseDepth(l Layer) float64 {
	return float64(layerDrawOrder[l]) * TileGap
}

// ValidateDepthKey checks that a width x height grid keeps the key a strict
// total order: the widest in-row span stays below the row gap and the largest
// key is exactly representable.
func ValidateDepthKey(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("isomap: grid %dx%d must be positive: %w", width, height, ErrInvalidConfig)
	}
	k := NewDepthKey(width)
	var maxOrder int
	var seen [LayerCount]bool
	for l, o := range layerDrawOrder {
		if o < 0 || o >= LayerCount || seen[o] {
			return fmt.Errorf("isomap: layer %s has draw order %d, not a unique slot below %d: %w",
				Layer(l), o, LayerCount, ErrInvalidConfig)
		}
		seen[o] = true
		maxOrder = max(maxOrder, o)
	}
	span := float64(width-1)*LayerCount*TileGap + float64(maxOrder)*TileGap
	if span >= k.rowGap {
		return fmt.Errorf("isomap: row span %v reaches row gap %v: %w", span, k.rowGap, ErrInvalidConfig)
	}
	if top := float64(height-1)*k.rowGap + span; top >= maxExactDepth {
		return fmt.Errorf("isomap: grid %dx%d needs depth %v, beyond exact float range: %w",
			width, height, top, ErrInvalidConfig)
	}
	return nil
}
