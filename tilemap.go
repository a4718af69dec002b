package isomap

import (
	"fmt"
	"math"
)

// MapConfig configures a TileMap. Zero fields take the defaults noted on each
// field; Width and Height are required.
type MapConfig struct {
	// Width and Height are the grid size in cells.
	Width, Height int
	// TileWidth and TileHeight are the projected cell size. Default 64x32.
	TileWidth, TileHeight int
	// SectionSize is the edge of a culling bucket in pixels. Default 512.
	SectionSize int
	// FillResource is drawn on ground cells with nothing painted. Zero
	// disables the fill.
	FillResource ResourceID
	// SelectedAlphaBoost is added to the alpha of the selected layer.
	// Default 0.35; negative disables the boost.
	SelectedAlphaBoost float64
	// Placements overrides DefaultPlacements(TileWidth, TileHeight).
	Placements *[LayerCount]LayerPlacement
}

const (
	defaultTileWidth   = 64
	defaultTileHeight  = 32
	defaultSectionSize = 512
	defaultAlphaBoost  = 0.35
)

func (cfg MapConfig) withDefaults() MapConfig {
	if cfg.TileWidth == 0 {
		cfg.TileWidth = defaultTileWidth
	}
	if cfg.TileHeight == 0 {
		cfg.TileHeight = defaultTileHeight
	}
	if cfg.SectionSize == 0 {
		cfg.SectionSize = defaultSectionSize
	}
	if cfg.SelectedAlphaBoost == 0 {
		cfg.SelectedAlphaBoost = defaultAlphaBoost
	} else if cfg.SelectedAlphaBoost < 0 {
		cfg.SelectedAlphaBoost = 0
	}
	if cfg.Placements == nil {
		p := DefaultPlacements(cfg.TileWidth, cfg.TileHeight)
		cfg.Placements = &p
	}
	return cfg
}

// TileGraphic is one rendered occurrence of a resource at a cell and layer.
// Owned by its TileMap; read it, never keep it past the next edit of its cell.
type TileGraphic struct {
	// X and Y are the projected top-left corner of the packed pixels.
	X, Y float64
	// Width and Height come from the cache entry (one frame for strips).
	Width, Height float64
	Layer         Layer

	cellX, cellY int
	id           int
	depth        float64
	baseAlpha    float64
	alpha        float64
	entry        *CacheEntry
	sections     []int // section indices holding id
}

// Depth returns the painter's-algorithm sort key.
func (g *TileGraphic) Depth() float64 { return g.depth }

// Bounds returns the projected bounding box.
func (g *TileGraphic) Bounds() Rect {
	return Rect{X: g.X, Y: g.Y, Width: g.Width, Height: g.Height}
}

// Alpha returns the opacity computed by the last render list rebuild.
func (g *TileGraphic) Alpha() float64 { return g.alpha }

// Entry returns the cache entry the graphic draws from.
func (g *TileGraphic) Entry() *CacheEntry { return g.entry }

// Cell returns the grid coordinates the graphic occupies.
func (g *TileGraphic) Cell() (x, y int) { return g.cellX, g.cellY }

// Sections returns the number of sections the graphic is registered in.
func (g *TileGraphic) Sections() int { return len(g.sections) }

// Region returns the atlas region to sample after elapsedMs of animation.
func (g *TileGraphic) Region(elapsedMs int) TextureRegion {
	return g.entry.FrameAt(elapsedMs)
}

// TileEvent describes one applied cell change.
type TileEvent struct {
	X, Y  int
	Layer Layer // LayerSpecUnder for spec changes
	Spec  bool  // true when the spec value changed
	Old   ResourceID
	New   ResourceID
}

// EditObserver receives every applied cell change.
type EditObserver interface {
	TileChanged(event TileEvent)
}

// Edit is one cell change for TileMap.Apply. Spec edits ignore Layer.
type Edit struct {
	X, Y     int
	Layer    Layer
	Resource ResourceID
	Spec     bool
}

// TileMap is a grid of cells x layers. Painted cells hold TileGraphics that
// reference shared cache entries; every graphic is registered in the
// sections its bounds overlap, and a depth-sorted render list of the visible
// ones is rebuilt lazily.
//
// Not reentrant and not safe for concurrent use: edits, culling and drawing
// all happen on the frame loop.
type TileMap struct {
	cfg        MapConfig
	placements [LayerCount]LayerPlacement
	cache      *TextureCache
	depth      DepthKey
	sections   *sectionIndex
	observer   EditObserver

	resources []ResourceID   // painted ids, width*height*PaintableLayers
	specs     []ResourceID   // spec value per cell
	graphics  []*TileGraphic // slot id = cell*LayerCount + layer
	live      int            // non-nil graphics

	visible     sectionRange
	hasView     bool
	hidden      [LayerCount]bool
	selected    Layer
	hasSelected bool

	renderList  []*TileGraphic
	sortBuf     []*TileGraphic
	renderDirty bool
	seen        []uint32 // per-slot stamp for render list dedupe
	stamp       uint32
}

// NewTileMap creates an empty map drawing from cache. With a FillResource
// set, every ground cell starts out showing the fill.
func NewTileMap(cache *TextureCache, cfg MapConfig) (*TileMap, error) {
	if cache == nil {
		return nil, fmt.Errorf("isomap: tile map cache is nil: %w", ErrInvalidConfig)
	}
	cfg = cfg.withDefaults()
	if cfg.TileWidth < 0 || cfg.TileHeight < 0 || cfg.SectionSize < 0 {
		return nil, fmt.Errorf("isomap: negative tile or section size: %w", ErrInvalidConfig)
	}
	if err := ValidateDepthKey(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	cells := cfg.Width * cfg.Height
	m := &TileMap{
		cfg:        cfg,
		placements: *cfg.Placements,
		cache:      cache,
		depth:      NewDepthKey(cfg.Width),
		resources:  make([]ResourceID, cells*PaintableLayers),
		specs:      make([]ResourceID, cells),
		graphics:   make([]*TileGraphic, cells*LayerCount),
		seen:       make([]uint32, cells*LayerCount),
	}
	m.sections = newSectionIndex(m.WorldBounds(), float64(cfg.SectionSize))

	if cfg.FillResource != EmptyResource {
		for y := 0; y < cfg.Height; y++ {
			for x := 0; x < cfg.Width; x++ {
				m.setSlot(x, y, LayerGround, cfg.FillResource)
			}
		}
	}
	return m, nil
}

// Size returns the grid size in cells.
func (m *TileMap) Size() (width, height int) { return m.cfg.Width, m.cfg.Height }

// Cache returns the texture cache the map draws from.
func (m *TileMap) Cache() *TextureCache { return m.cache }

// Len returns the number of tile graphics on the map.
func (m *TileMap) Len() int { return m.live }

// SetObserver registers the receiver of cell change events. nil disables.
func (m *TileMap) SetObserver(o EditObserver) { m.observer = o }

// --- Projection ---

// CellOrigin returns the projected top-left corner of cell (x, y). Rows are
// staggered: odd rows shift half a tile right, each row sits half a tile
// below the previous one, and world x is centered on 0.
func (m *TileMap) CellOrigin(x, y int) (px, py float64) {
	tw, th := float64(m.cfg.TileWidth), float64(m.cfg.TileHeight)
	px = float64(x)*tw - m.halfWorldWidth()
	if y&1 == 1 {
		px += tw / 2
	}
	py = float64(y) * th / 2
	return px, py
}

func (m *TileMap) halfWorldWidth() float64 {
	return float64(m.cfg.Width) * float64(m.cfg.TileWidth) / 2
}

// WorldBounds returns the projected area covered by the cell diamonds.
func (m *TileMap) WorldBounds() Rect {
	tw, th := float64(m.cfg.TileWidth), float64(m.cfg.TileHeight)
	return Rect{
		X:      -m.halfWorldWidth(),
		Y:      0,
		Width:  float64(m.cfg.Width)*tw + tw/2,
		Height: float64(m.cfg.Height+1) * th / 2,
	}
}

// CellAt returns the cell whose diamond contains the projected point.
func (m *TileMap) CellAt(wx, wy float64) (x, y int, ok bool) {
	tw, th := float64(m.cfg.TileWidth), float64(m.cfg.TileHeight)
	band := int(math.Floor(wy / (th / 2)))
	// A diamond spans two half-rows, so the point is in row band or band-1.
	for _, row := range [2]int{band, band - 1} {
		if row < 0 || row >= m.cfg.Height {
			continue
		}
		shift := 0.0
		if row&1 == 1 {
			shift = tw / 2
		}
		col := int(math.Floor((wx + m.halfWorldWidth() - shift) / tw))
		if col < 0 || col >= m.cfg.Width {
			continue
		}
		px, py := m.CellOrigin(col, row)
		dx := math.Abs(wx-(px+tw/2)) / (tw / 2)
		dy := math.Abs(wy-(py+th/2)) / (th / 2)
		if dx+dy <= 1 {
			return col, row, true
		}
	}
	return 0, 0, false
}

// --- Queries ---

// Graphic returns the tile graphic at a cell and layer, or nil.
func (m *TileMap) Graphic(x, y int, layer Layer) *TileGraphic {
	if !m.inBounds(x, y) || !layer.Valid() {
		return nil
	}
	return m.graphics[m.slot(x, y, layer)]
}

// Resource returns the resource id painted at a cell and paintable layer.
// Ground cells showing the fill report EmptyResource.
func (m *TileMap) Resource(x, y int, layer Layer) ResourceID {
	if !m.inBounds(x, y) || int(layer) >= PaintableLayers {
		return EmptyResource
	}
	return m.resources[m.cell(x, y)*PaintableLayers+int(layer)]
}

// Spec returns the spec value of a cell.
func (m *TileMap) Spec(x, y int) ResourceID {
	if !m.inBounds(x, y) {
		return EmptyResource
	}
	return m.specs[m.cell(x, y)]
}

func (m *TileMap) inBounds(x, y int) bool {
	return x >= 0 && x < m.cfg.Width && y >= 0 && y < m.cfg.Height
}

func (m *TileMap) cell(x, y int) int { return y*m.cfg.Width + x }

func (m *TileMap) slot(x, y int, layer Layer) int {
	return m.cell(x, y)*LayerCount + int(layer)
}

// --- Editing ---

// SetGraphic paints resource on a cell and paintable layer; EmptyResource
// clears it. The old graphic (if any) releases its cache entry and leaves
// its sections before the new one is created. Invalid arguments return an
// error and change nothing.
//
// Pixel uploads stay pending until the cache's ApplyPendingUploads; use
// Apply to edit and flush in one step.
func (m *TileMap) SetGraphic(x, y int, layer Layer, resource ResourceID) error {
	if err := m.validate(Edit{X: x, Y: y, Layer: layer, Resource: resource}); err != nil {
		return err
	}
	m.setGraphic(x, y, layer, resource)
	return nil
}

// SetSpec sets the spec value of a cell. Both spec overlay layers render
// from it.
func (m *TileMap) SetSpec(x, y int, spec ResourceID) error {
	if err := m.validate(Edit{X: x, Y: y, Resource: spec, Spec: true}); err != nil {
		return err
	}
	m.setSpec(x, y, spec)
	return nil
}

// Apply validates every edit, then applies them in order and flushes the
// cache's pending uploads once. If any edit is invalid nothing is applied.
// An abortable operation (a flood fill, a drag) prepares its edits and
// either calls Apply once or drops them.
func (m *TileMap) Apply(edits ...Edit) error {
	for i, e := range edits {
		if err := m.validate(e); err != nil {
			return fmt.Errorf("isomap: edit %d: %w", i, err)
		}
	}
	for _, e := range edits {
		if e.Spec {
			m.setSpec(e.X, e.Y, e.Resource)
		} else {
			m.setGraphic(e.X, e.Y, e.Layer, e.Resource)
		}
	}
	m.cache.ApplyPendingUploads()
	return nil
}

func (m *TileMap) validate(e Edit) error {
	if !m.inBounds(e.X, e.Y) {
		return fmt.Errorf("isomap: cell (%d, %d) outside %dx%d grid: %w",
			e.X, e.Y, m.cfg.Width, m.cfg.Height, ErrOutOfBounds)
	}
	if e.Spec {
		return nil
	}
	if !e.Layer.Valid() {
		return fmt.Errorf("isomap: layer %d out of range [0, %d): %w", uint8(e.Layer), LayerCount, ErrInvalidLayer)
	}
	if e.Layer.Derived() {
		return fmt.Errorf("isomap: layer %s cannot be painted, use SetSpec: %w", e.Layer, ErrDerivedLayer)
	}
	return nil
}

func (m *TileMap) setGraphic(x, y int, layer Layer, resource ResourceID) {
	i := m.cell(x, y)*PaintableLayers + int(layer)
	old := m.resources[i]
	m.resources[i] = resource

	display := resource
	if display == EmptyResource && layer == LayerGround {
		display = m.cfg.FillResource
	}
	m.setSlot(x, y, layer, display)

	if m.observer != nil && old != resource {
		m.observer.TileChanged(TileEvent{X: x, Y: y, Layer: layer, Old: old, New: resource})
	}
}

func (m *TileMap) setSpec(x, y int, spec ResourceID) {
	i := m.cell(x, y)
	old := m.specs[i]
	m.specs[i] = spec
	m.setSlot(x, y, LayerSpecUnder, spec)
	m.setSlot(x, y, LayerSpecOver, spec)

	if m.observer != nil && old != spec {
		m.observer.TileChanged(TileEvent{X: x, Y: y, Layer: LayerSpecUnder, Spec: true, Old: old, New: spec})
	}
}

// setSlot replaces the graphic of one cell layer with one showing display.
func (m *TileMap) setSlot(x, y int, layer Layer, display ResourceID) {
	id := m.slot(x, y, layer)
	placement := m.placements[layer]

	if g := m.graphics[id]; g != nil {
		if g.entry.Key() == (ResourceKey{FileID: placement.FileID, ResourceID: display}) {
			return
		}
		m.removeGraphic(id, g)
	}
	if display == EmptyResource {
		return
	}

	entry := m.cache.GetOrCreate(ResourceKey{FileID: placement.FileID, ResourceID: display})
	entry.IncRef()

	g := &TileGraphic{
		Layer:     layer,
		cellX:     x,
		cellY:     y,
		id:        id,
		depth:     m.depth.Depth(x, y, layer),
		baseAlpha: placement.Alpha,
		alpha:     placement.Alpha,
		entry:     entry,
	}
	m.place(g, placement)
	g.sections = m.sections.register(id, g.Bounds())
	m.graphics[id] = g
	m.live++
	m.touch(g.sections)
}

// place applies the layer's placement rule to the graphic's position.
func (m *TileMap) place(g *TileGraphic, p LayerPlacement) {
	r := g.entry.displayRegion()
	g.Width, g.Height = float64(r.Width), float64(r.Height)

	px, py := m.CellOrigin(g.cellX, g.cellY)
	x := px + p.OffsetX + float64(r.OffsetX)
	y := py + p.OffsetY + float64(r.OffsetY)
	if p.CenterX {
		x -= float64(r.OriginalW) / 2
	}
	if p.AnchorBottom {
		y -= float64(r.OriginalH)
	}
	g.X, g.Y = x, y
}

func (m *TileMap) removeGraphic(id int, g *TileGraphic) {
	g.entry.DecRef()
	m.sections.unregister(id, g.sections)
	m.touch(g.sections)
	g.sections = nil
	m.graphics[id] = nil
	m.live--
}

// touch dirties the render list if any of the sections is on screen.
func (m *TileMap) touch(sections []int) {
	if m.renderDirty || !m.hasView {
		return
	}
	for _, i := range sections {
		if m.visible.contains(m.sections.coords(i)) {
			m.renderDirty = true
			return
		}
	}
}

// --- Layer state ---

// SetLayerVisible shows or hides a layer.
func (m *TileMap) SetLayerVisible(layer Layer, visible bool) error {
	if !layer.Valid() {
		return fmt.Errorf("isomap: layer %d out of range [0, %d): %w", uint8(layer), LayerCount, ErrInvalidLayer)
	}
	if m.hidden[layer] != !visible {
		m.hidden[layer] = !visible
		m.renderDirty = true
	}
	return nil
}

// LayerVisible reports whether a layer is shown.
func (m *TileMap) LayerVisible(layer Layer) bool {
	return layer.Valid() && !m.hidden[layer]
}

// SelectLayer emphasizes a layer: its graphics get the alpha boost.
func (m *TileMap) SelectLayer(layer Layer) error {
	if !layer.Valid() {
		return fmt.Errorf("isomap: layer %d out of range [0, %d): %w", uint8(layer), LayerCount, ErrInvalidLayer)
	}
	if !m.hasSelected || m.selected != layer {
		m.selected, m.hasSelected = layer, true
		m.renderDirty = true
	}
	return nil
}

// ClearSelection removes the layer emphasis.
func (m *TileMap) ClearSelection() {
	if m.hasSelected {
		m.hasSelected = false
		m.renderDirty = true
	}
}

// SelectedLayer returns the emphasized layer, if any.
func (m *TileMap) SelectedLayer() (Layer, bool) { return m.selected, m.hasSelected }
