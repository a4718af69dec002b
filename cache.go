package isomap

import (
	"cmp"
	"errors"
	"fmt"
	"image"
	"log"
	"math"
	"slices"
	"time"
)

// CacheConfig configures a TextureCache. Zero fields take the defaults noted
// on each field.
type CacheConfig struct {
	// PageWidth and PageHeight size every atlas page. Default 1024x1024.
	PageWidth, PageHeight int
	// BaseTileWidth is the frame width of animation strips. Default 64.
	BaseTileWidth int
	// FrameDurationMs is the playback time of one strip frame. Default 100.
	FrameDurationMs int
	// Decoder produces pixels on cache misses. Required.
	Decoder Decoder
	// Surfaces creates the render-facing page surfaces. Default ImageSurfaces.
	Surfaces SurfaceProvider
	// Logger receives decode failures. Default log.Default().
	Logger *log.Logger
}

const (
	defaultPageSize        = 1024
	defaultBaseTileWidth   = 64
	defaultFrameDurationMs = 100
)

func (cfg CacheConfig) withDefaults() CacheConfig {
	if cfg.PageWidth == 0 {
		cfg.PageWidth = defaultPageSize
	}
	if cfg.PageHeight == 0 {
		cfg.PageHeight = defaultPageSize
	}
	if cfg.BaseTileWidth == 0 {
		cfg.BaseTileWidth = defaultBaseTileWidth
	}
	if cfg.FrameDurationMs == 0 {
		cfg.FrameDurationMs = defaultFrameDurationMs
	}
	if cfg.Surfaces == nil {
		cfg.Surfaces = ImageSurfaces{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return cfg
}

// CacheEntry is the placement of one decoded resource inside an atlas page.
// Entries are shared; holders call IncRef/DecRef. An entry whose count drops
// to zero stays usable until the next rebuild evicts it.
type CacheEntry struct {
	key         ResourceKey
	region      TextureRegion
	frames      []TextureRegion // nil unless the resource is a frame strip
	frameMs     int
	refCount    int
	seq         uint64 // creation order, tie-break for rebuild ordering
	placeholder bool
	evicted     bool
}

// Key returns the resource identity.
func (e *CacheEntry) Key() ResourceKey { return e.key }

// Region returns the packed rectangle covering the whole resource (every
// frame, for strips).
func (e *CacheEntry) Region() TextureRegion { return e.region }

// Page returns the index of the atlas page holding the entry.
func (e *CacheEntry) Page() int { return int(e.region.Page) }

// Size returns the on-map size: one frame for strips, the region otherwise.
func (e *CacheEntry) Size() (width, height int) {
	r := e.displayRegion()
	return int(r.Width), int(r.Height)
}

// RefCount returns the number of holders.
func (e *CacheEntry) RefCount() int { return e.refCount }

// Placeholder reports whether the entry stands in for a resource that could
// not be decoded.
func (e *CacheEntry) Placeholder() bool { return e.placeholder }

// Evicted reports whether a rebuild has removed the entry from its cache.
func (e *CacheEntry) Evicted() bool { return e.evicted }

// IncRef registers one more holder. Panics on an evicted entry.
func (e *CacheEntry) IncRef() {
	if e.evicted {
		panic(fmt.Sprintf("isomap: IncRef on evicted cache entry %v", e.key))
	}
	e.refCount++
}

// DecRef releases one holder. Panics if the count would go negative: that is
// always a lifecycle bug in the caller.
func (e *CacheEntry) DecRef() {
	if e.refCount <= 0 {
		panic(fmt.Sprintf("isomap: DecRef on cache entry %v with no references", e.key))
	}
	e.refCount--
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Entries      int // live entries
	Pages        int // atlas pages
	Hits         int // GetOrCreate calls answered from the map
	Misses       int // GetOrCreate calls that decoded
	Placeholders int // misses answered with the magenta placeholder
	Rebuilds     int // compactions run
	Evictions    int // entries removed by compactions
	Uploads      int // page surface uploads
}

// TextureCache maps resource keys to packed atlas entries. It decodes on
// miss, packs into its pages, and compacts or grows when the pages are full.
// Single-threaded: call it from the frame loop only.
type TextureCache struct {
	cfg        CacheConfig
	entries    map[ResourceKey]*CacheEntry
	pages      []*AtlasPage
	canRebuild bool
	nextSeq    uint64
	stats      CacheStats
}

// NewTextureCache creates a cache with one empty page.
func NewTextureCache(cfg CacheConfig) (*TextureCache, error) {
	cfg = cfg.withDefaults()
	if cfg.Decoder == nil {
		return nil, fmt.Errorf("isomap: cache decoder is nil: %w", ErrInvalidConfig)
	}
	if cfg.PageWidth < 0 || cfg.PageHeight < 0 ||
		cfg.PageWidth > math.MaxUint16 || cfg.PageHeight > math.MaxUint16 {
		return nil, fmt.Errorf("isomap: page size %dx%d out of range: %w",
			cfg.PageWidth, cfg.PageHeight, ErrInvalidConfig)
	}
	if cfg.BaseTileWidth < 0 || cfg.FrameDurationMs < 0 {
		return nil, fmt.Errorf("isomap: negative strip settings: %w", ErrInvalidConfig)
	}
	c := &TextureCache{
		cfg:        cfg,
		entries:    make(map[ResourceKey]*CacheEntry),
		canRebuild: true,
	}
	c.addPage()
	return c, nil
}

// Lookup returns the entry for key without decoding or touching counts.
func (c *TextureCache) Lookup(key ResourceKey) (*CacheEntry, bool) {
	e, ok := c.entries[key]
	return e, ok
}

// Len returns the number of live entries.
func (c *TextureCache) Len() int { return len(c.entries) }

// Pages returns the atlas pages in order. The returned slice MUST NOT be
// mutated.
func (c *TextureCache) Pages() []*AtlasPage { return c.pages }

// Stats returns the current counters.
func (c *TextureCache) Stats() CacheStats {
	s := c.stats
	s.Entries = len(c.entries)
	s.Pages = len(c.pages)
	return s
}

// GetOrCreate returns the entry for key, decoding and packing it on a miss.
// Reference counts are never changed here. Decode failures yield a 1x1
// magenta placeholder entry, so the result is never nil.
func (c *TextureCache) GetOrCreate(key ResourceKey) *CacheEntry {
	if e, ok := c.entries[key]; ok {
		c.stats.Hits++
		return e
	}
	c.stats.Misses++

	src, trim, frames, placeholder := c.decode(key)
	if placeholder {
		c.stats.Placeholders++
	}
	// Pages only grow and src always fits an empty page, so this terminates.
	for {
		if e := c.place(key, src, trim, frames); e != nil {
			e.placeholder = placeholder
			c.canRebuild = true
			return e
		}
		c.handleOutOfSpace()
	}
}

var errNilImage = errors.New("decoder returned no image")

// decode runs the decoder and normalizes its output. Anything unusable is
// logged and replaced by the placeholder.
func (c *TextureCache) decode(key ResourceKey) (src *image.RGBA, trim Trim, frames int, placeholder bool) {
	res, err := c.cfg.Decoder.Decode(key)
	if err == nil && res.Image == nil {
		err = errNilImage
	}
	if err != nil {
		c.cfg.Logger.Printf("isomap: decode %v failed, using placeholder: %v", key, err)
		return magentaImage(), Trim{}, 1, true
	}
	src = toRGBA(res.Image)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if w == 0 || h == 0 || w > c.cfg.PageWidth || h > c.cfg.PageHeight {
		c.cfg.Logger.Printf("isomap: resource %v is %dx%d, does not fit a %dx%d page, using placeholder",
			key, w, h, c.cfg.PageWidth, c.cfg.PageHeight)
		return magentaImage(), Trim{}, 1, true
	}
	return src, res.Trim, stripFrameCount(res.Category, w, c.cfg.BaseTileWidth), false
}

// place tries every page in order and builds the entry on the first fit.
func (c *TextureCache) place(key ResourceKey, src *image.RGBA, trim Trim, frames int) *CacheEntry {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	for _, p := range c.pages {
		box, ok := p.Pack(w, h)
		if !ok {
			continue
		}
		p.blit(box, src, image.Point{})
		e := &CacheEntry{
			key:     key,
			region:  regionFor(p.index, box, trim),
			frameMs: c.cfg.FrameDurationMs,
			seq:     c.nextSeq,
		}
		c.nextSeq++
		e.frames = splitFrames(e.region, frames)
		c.entries[key] = e
		return e
	}
	return nil
}

func regionFor(page int, box image.Rectangle, trim Trim) TextureRegion {
	r := TextureRegion{
		Page:      uint16(page),
		X:         uint16(box.Min.X),
		Y:         uint16(box.Min.Y),
		Width:     uint16(box.Dx()),
		Height:    uint16(box.Dy()),
		OriginalW: uint16(box.Dx()),
		OriginalH: uint16(box.Dy()),
	}
	if trim.OriginalW > 0 && trim.OriginalH > 0 {
		r.OriginalW = uint16(trim.OriginalW)
		r.OriginalH = uint16(trim.OriginalH)
		r.OffsetX = int16(trim.OffsetX)
		r.OffsetY = int16(trim.OffsetY)
	}
	return r
}

// handleOutOfSpace compacts once after every successful pack; when that was
// already tried it grows the page list instead.
func (c *TextureCache) handleOutOfSpace() {
	if c.canRebuild {
		c.Rebuild()
		return
	}
	c.addPage()
}

func (c *TextureCache) addPage() *AtlasPage {
	p := newAtlasPage(len(c.pages), c.cfg.PageWidth, c.cfg.PageHeight, c.cfg.Surfaces)
	c.pages = append(c.pages, p)
	return p
}

// Rebuild compacts the cache. Every page is cleared, referenced entries are
// repacked hottest first (most references), and every entry left with zero
// references is evicted. Referenced entries are always placed, growing the
// page list if needed. A rebuild disables the next automatic rebuild until a
// regular pack succeeds.
func (c *TextureCache) Rebuild() {
	var t0 time.Time
	if globalDebug {
		t0 = time.Now()
	}

	snapshots := make([]*image.RGBA, len(c.pages))
	for i, p := range c.pages {
		snapshots[i] = p.reset()
	}

	live := make([]*CacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.refCount > 0 {
			live = append(live, e)
		}
	}
	slices.SortFunc(live, func(a, b *CacheEntry) int {
		if a.refCount != b.refCount {
			return cmp.Compare(b.refCount, a.refCount)
		}
		return cmp.Compare(a.seq, b.seq)
	})

	for _, e := range live {
		old := e.region
		w, h := int(old.Width), int(old.Height)
		p, box := c.packAnywhere(w, h)
		p.blit(box, snapshots[old.Page], image.Pt(int(old.X), int(old.Y)))
		e.region.Page = uint16(p.index)
		e.region.X = uint16(box.Min.X)
		e.region.Y = uint16(box.Min.Y)
		moveFrames(e.frames, old, e.region)
	}

	// Eviction is its own pass over every entry; it does not rely on where
	// zero-count entries ended up in the sort.
	evicted := 0
	for key, e := range c.entries {
		if e.refCount == 0 {
			e.evicted = true
			delete(c.entries, key)
			evicted++
		}
	}

	c.canRebuild = false
	c.stats.Rebuilds++
	c.stats.Evictions += evicted

	if globalDebug {
		debugLogRebuild(len(live), evicted, len(c.pages), time.Since(t0))
	}
}

// packAnywhere packs into the first page with room, appending a page when
// none has any. Failing on a fresh page is an invariant violation.
func (c *TextureCache) packAnywhere(w, h int) (*AtlasPage, image.Rectangle) {
	for _, p := range c.pages {
		if box, ok := p.Pack(w, h); ok {
			return p, box
		}
	}
	p := c.addPage()
	box, ok := p.Pack(w, h)
	if !ok {
		panic(fmt.Sprintf("isomap: %dx%d region does not fit an empty %dx%d page", w, h, p.width, p.height))
	}
	return p, box
}

// ApplyPendingUploads pushes every dirty page to its surface and returns the
// number of pages uploaded. Call once per logical edit batch.
func (c *TextureCache) ApplyPendingUploads() int {
	n := 0
	for _, p := range c.pages {
		if p.upload() {
			n++
		}
	}
	c.stats.Uploads += n
	return n
}
