package isomap

import (
	"encoding/json"
	"fmt"
)

// Layer indexes one of the per-cell graphic slots.
type Layer uint8

const (
	LayerGround       Layer = iota // base terrain, falls back to the fill resource
	LayerGroundDetail              // terrain variation drawn over the ground
	LayerShore                     // transitions between terrain types
	LayerFloor                     // built floors
	LayerObject                    // props anchored to the cell bottom
	LayerWall                      // walls
	LayerItem                      // loose items
	LayerRoof                      // roofs
	LayerEffect                    // animated effects
	LayerSpecUnder                 // spec overlay beneath adjacent art (derived)
	LayerSpecOver                  // spec overlay above adjacent art (derived)
)

const (
	// LayerCount is the number of logical layers per cell.
	LayerCount = 11
	// PaintableLayers is the number of layers SetGraphic accepts; the rest
	// are derived from the per-cell spec value.
	PaintableLayers = 9
)

var layerNames = [LayerCount]string{
	"ground", "groundDetail", "shore", "floor", "object",
	"wall", "item", "roof", "effect", "specUnder", "specOver",
}

// String returns the layer's config name.
func (l Layer) String() string {
	if int(l) < LayerCount {
		return layerNames[l]
	}
	return fmt.Sprintf("Layer(%d)", uint8(l))
}

// Valid reports whether l is within [0, LayerCount).
func (l Layer) Valid() bool { return int(l) < LayerCount }

// Derived reports whether l renders from the spec value instead of a
// painted resource.
func (l Layer) Derived() bool { return l == LayerSpecUnder || l == LayerSpecOver }

// ParseLayer maps a config name back to its Layer.
func ParseLayer(name string) (Layer, error) {
	for i, n := range layerNames {
		if n == name {
			return Layer(i), nil
		}
	}
	return 0, fmt.Errorf("isomap: unknown layer %q: %w", name, ErrInvalidLayer)
}

// layerDrawOrder is each layer's rank among the graphics of one cell. The
// spec pair brackets the structural layers: one under floors, one over all.
var layerDrawOrder = [LayerCount]int{
	LayerGround:       0,
	LayerGroundDetail: 1,
	LayerShore:        2,
	LayerSpecUnder:    3,
	LayerFloor:        4,
	LayerObject:       5,
	LayerWall:         6,
	LayerItem:         7,
	LayerRoof:         8,
	LayerEffect:       9,
	LayerSpecOver:     10,
}

// LayerPlacement is the per-layer rule that turns a cell position into a
// sprite position.
type LayerPlacement struct {
	// FileID is the resource file the layer's resource ids refer to.
	FileID uint16
	// OffsetX and OffsetY shift the sprite from the cell's top-left corner.
	OffsetX, OffsetY float64
	// Alpha is the layer's base opacity in [0, 1].
	Alpha float64
	// CenterX centers the sprite horizontally on its own width.
	CenterX bool
	// AnchorBottom places the sprite's bottom edge, not its top, at the
	// offset point. Tall art then grows upward.
	AnchorBottom bool
}

// DefaultPlacements returns the built-in placement table for the given tile
// size. Ground-like layers fill the cell; standing art is anchored to the
// bottom center of the cell.
func DefaultPlacements(tileWidth, tileHeight int) [LayerCount]LayerPlacement {
	tw, th := float64(tileWidth), float64(tileHeight)
	flat := func(file uint16) LayerPlacement {
		return LayerPlacement{FileID: file, Alpha: 1}
	}
	standing := func(file uint16) LayerPlacement {
		return LayerPlacement{FileID: file, OffsetX: tw / 2, OffsetY: th, Alpha: 1, CenterX: true, AnchorBottom: true}
	}
	return [LayerCount]LayerPlacement{
		LayerGround:       flat(1),
		LayerGroundDetail: flat(1),
		LayerShore:        flat(1),
		LayerFloor:        flat(2),
		LayerObject:       standing(3),
		LayerWall:         standing(4),
		LayerItem:         standing(5),
		LayerRoof:         standing(4),
		LayerEffect:       standing(6),
		LayerSpecUnder:    {FileID: 9, Alpha: 0.5},
		LayerSpecOver:     {FileID: 9, Alpha: 0.35},
	}
}

// --- JSON placement tables ---

type jsonPlacement struct {
	Layer        string   `json:"layer"`
	File         *uint16  `json:"file"`
	OffsetX      *float64 `json:"offsetX"`
	OffsetY      *float64 `json:"offsetY"`
	Alpha        *float64 `json:"alpha"`
	CenterX      *bool    `json:"centerX"`
	AnchorBottom *bool    `json:"anchorBottom"`
}

// LoadPlacements applies a JSON placement table on top of base. Only the
// fields present in the JSON change:
//
//	{"placements": [{"layer": "object", "file": 7, "offsetY": 40, "alpha": 0.8}]}
func LoadPlacements(jsonData []byte, base [LayerCount]LayerPlacement) ([LayerCount]LayerPlacement, error) {
	var doc struct {
		Placements []jsonPlacement `json:"placements"`
	}
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return base, fmt.Errorf("isomap: failed to parse placement JSON: %w", err)
	}
	if doc.Placements == nil {
		return base, fmt.Errorf("isomap: placement JSON has no \"placements\" key: %w", ErrInvalidConfig)
	}

	out := base
	for _, jp := range doc.Placements {
		layer, err := ParseLayer(jp.Layer)
		if err != nil {
			return base, err
		}
		p := out[layer]
		if jp.File != nil {
			p.FileID = *jp.File
		}
		if jp.OffsetX != nil {
			p.OffsetX = *jp.OffsetX
		}
		if jp.OffsetY != nil {
			p.OffsetY = *jp.OffsetY
		}
		if jp.Alpha != nil {
			if *jp.Alpha < 0 || *jp.Alpha > 1 {
				return base, fmt.Errorf("isomap: layer %s alpha %v outside [0, 1]: %w", layer, *jp.Alpha, ErrInvalidConfig)
			}
			p.Alpha = *jp.Alpha
		}
		if jp.CenterX != nil {
			p.CenterX = *jp.CenterX
		}
		if jp.AnchorBottom != nil {
			p.AnchorBottom = *jp.AnchorBottom
		}
		out[layer] = p
	}
	return out, nil
}
