package isomap

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log"
	"strings"
	"testing"
)

// keyColor is the solid color the test decoders paint a key with.
func keyColor(key ResourceKey) color.RGBA {
	return color.RGBA{R: uint8(key.ResourceID), G: uint8(key.ResourceID >> 8), B: uint8(key.FileID), A: 255}
}

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// sizedDecoder decodes every key to a w x h image in the key's color.
func sizedDecoder(w, h int) DecoderFunc {
	return func(key ResourceKey) (Resource, error) {
		return Resource{Image: solidImage(w, h, keyColor(key))}, nil
	}
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func newTestCache(t testing.TB, pageW, pageH int, dec Decoder) *TextureCache {
	t.Helper()
	c, err := NewTextureCache(CacheConfig{
		PageWidth:  pageW,
		PageHeight: pageH,
		Decoder:    dec,
		Logger:     quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewTextureCache: %v", err)
	}
	return c
}

// stagedColor returns the staging pixel at the top-left of the entry's region.
func stagedColor(c *TextureCache, e *CacheEntry) color.RGBA {
	r := e.Region()
	return c.pages[r.Page].pix.RGBAAt(int(r.X), int(r.Y))
}

func key(id int) ResourceKey { return ResourceKey{FileID: 3, ResourceID: ResourceID(id)} }

func assertNoOverlaps(t *testing.T, entries []*CacheEntry) {
	t.Helper()
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			if entries[i].Region().Overlaps(entries[j].Region()) {
				t.Fatalf("entries %v and %v overlap: %+v vs %+v",
					entries[i].Key(), entries[j].Key(), entries[i].Region(), entries[j].Region())
			}
		}
	}
}

// --- Construction ---

func TestNewTextureCacheDefaults(t *testing.T) {
	c, err := NewTextureCache(CacheConfig{Decoder: sizedDecoder(8, 8)})
	if err != nil {
		t.Fatalf("NewTextureCache: %v", err)
	}
	if len(c.Pages()) != 1 {
		t.Fatalf("Pages() = %d, want 1", len(c.Pages()))
	}
	if w, h := c.Pages()[0].Size(); w != 1024 || h != 1024 {
		t.Errorf("page size = %dx%d, want 1024x1024", w, h)
	}
	if c.cfg.BaseTileWidth != 64 || c.cfg.FrameDurationMs != 100 {
		t.Errorf("strip defaults = %d/%d, want 64/100", c.cfg.BaseTileWidth, c.cfg.FrameDurationMs)
	}
	if _, ok := c.Pages()[0].Surface().(*ImageSurface); !ok {
		t.Errorf("default surface = %T, want *ImageSurface", c.Pages()[0].Surface())
	}
	if !c.canRebuild {
		t.Error("canRebuild = false on a new cache, want true")
	}
}

func TestNewTextureCacheErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  CacheConfig
	}{
		{"nil decoder", CacheConfig{}},
		{"page too wide", CacheConfig{Decoder: sizedDecoder(1, 1), PageWidth: 70000}},
		{"negative height", CacheConfig{Decoder: sizedDecoder(1, 1), PageHeight: -1}},
		{"negative frame time", CacheConfig{Decoder: sizedDecoder(1, 1), FrameDurationMs: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTextureCache(tt.cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

// --- GetOrCreate ---

func TestGetOrCreate_SameEntry(t *testing.T) {
	c := newTestCache(t, 256, 256, sizedDecoder(64, 32))
	a := c.GetOrCreate(key(1))
	b := c.GetOrCreate(key(1))
	if a != b {
		t.Fatal("GetOrCreate returned different entries for the same key")
	}
	if a.RefCount() != 0 {
		t.Errorf("RefCount = %d, want 0 (GetOrCreate must not count)", a.RefCount())
	}
	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Entries != 1 {
		t.Errorf("Stats = %+v, want 1 hit, 1 miss, 1 entry", st)
	}
	if got, ok := c.Lookup(key(1)); !ok || got != a {
		t.Error("Lookup did not return the created entry")
	}
}

func TestGetOrCreate_CopiesPixels(t *testing.T) {
	c := newTestCache(t, 256, 256, sizedDecoder(16, 16))
	for i := 1; i <= 5; i++ {
		e := c.GetOrCreate(key(i))
		if got, want := stagedColor(c, e), keyColor(key(i)); got != want {
			t.Errorf("key %d staged color = %v, want %v", i, got, want)
		}
		if w, h := e.Size(); w != 16 || h != 16 {
			t.Errorf("key %d size = %dx%d, want 16x16", i, w, h)
		}
	}
}

func TestGetOrCreate_NonZeroOriginImage(t *testing.T) {
	src := solidImage(40, 40, color.RGBA{A: 255})
	sub := src.SubImage(image.Rect(10, 10, 30, 20))
	c := newTestCache(t, 128, 128, DecoderFunc(func(ResourceKey) (Resource, error) {
		return Resource{Image: sub}, nil
	}))
	e := c.GetOrCreate(key(1))
	if w, h := e.Size(); w != 20 || h != 10 {
		t.Errorf("size = %dx%d, want 20x10", w, h)
	}
}

func TestGetOrCreate_Trim(t *testing.T) {
	c := newTestCache(t, 128, 128, DecoderFunc(func(ResourceKey) (Resource, error) {
		return Resource{
			Image: solidImage(20, 10, color.RGBA{A: 255}),
			Trim:  Trim{OffsetX: 6, OffsetY: 30, OriginalW: 32, OriginalH: 48},
		}, nil
	}))
	r := c.GetOrCreate(key(1)).Region()
	if r.Width != 20 || r.Height != 10 || r.OriginalW != 32 || r.OriginalH != 48 || r.OffsetX != 6 || r.OffsetY != 30 {
		t.Errorf("region = %+v, want 20x10 packed inside 32x48 at (6, 30)", r)
	}
}

func TestGetOrCreate_Placeholder(t *testing.T) {
	tests := []struct {
		name string
		dec  DecoderFunc
		logs string
	}{
		{"decode error", func(ResourceKey) (Resource, error) {
			return Resource{}, errors.New("truncated file")
		}, "truncated file"},
		{"nil image", func(ResourceKey) (Resource, error) {
			return Resource{}, nil
		}, "no image"},
		{"too wide for page", func(ResourceKey) (Resource, error) {
			return Resource{Image: solidImage(65, 8, color.RGBA{A: 255})}, nil
		}, "does not fit"},
		{"empty image", func(ResourceKey) (Resource, error) {
			return Resource{Image: image.NewRGBA(image.Rect(0, 0, 0, 5))}, nil
		}, "does not fit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			c, err := NewTextureCache(CacheConfig{
				PageWidth: 64, PageHeight: 64,
				Decoder: tt.dec,
				Logger:  log.New(&buf, "", 0),
			})
			if err != nil {
				t.Fatalf("NewTextureCache: %v", err)
			}
			e := c.GetOrCreate(key(9))
			if e == nil {
				t.Fatal("GetOrCreate returned nil")
			}
			if !e.Placeholder() {
				t.Error("Placeholder() = false, want true")
			}
			if w, h := e.Size(); w != 1 || h != 1 {
				t.Errorf("placeholder size = %dx%d, want 1x1", w, h)
			}
			if got := stagedColor(c, e); got != magenta {
				t.Errorf("placeholder color = %v, want magenta", got)
			}
			if !strings.Contains(buf.String(), tt.logs) {
				t.Errorf("log = %q, want it to mention %q", buf.String(), tt.logs)
			}
			if c.Stats().Placeholders != 1 {
				t.Errorf("Stats().Placeholders = %d, want 1", c.Stats().Placeholders)
			}
			// The placeholder is cached under the key; no second decode.
			if c.GetOrCreate(key(9)) != e {
				t.Error("second GetOrCreate built a new placeholder")
			}
		})
	}
}

// --- Reference counting ---

func TestDecRefPanicsAtZero(t *testing.T) {
	c := newTestCache(t, 128, 128, sizedDecoder(8, 8))
	e := c.GetOrCreate(key(1))
	e.IncRef()
	e.DecRef()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("DecRef at zero did not panic")
		}
		if !strings.Contains(fmt.Sprint(r), "no references") {
			t.Errorf("panic = %v, want mention of no references", r)
		}
	}()
	e.DecRef()
}

func TestIncRefEvictedPanics(t *testing.T) {
	c := newTestCache(t, 128, 128, sizedDecoder(8, 8))
	e := c.GetOrCreate(key(1))
	c.Rebuild()
	if !e.Evicted() {
		t.Fatal("unreferenced entry survived Rebuild")
	}
	defer func() {
		if recover() == nil {
			t.Error("IncRef on an evicted entry did not panic")
		}
	}()
	e.IncRef()
}

// --- Rebuild ---

func TestRebuild_KeepsReferencedEvictsRest(t *testing.T) {
	c := newTestCache(t, 256, 256, sizedDecoder(64, 32))
	var held []*CacheEntry
	var dropped []*CacheEntry
	for i := 1; i <= 12; i++ {
		e := c.GetOrCreate(key(i))
		if i%3 == 0 {
			dropped = append(dropped, e)
			continue
		}
		e.IncRef()
		held = append(held, e)
	}

	c.Rebuild()

	for _, e := range held {
		if e.Evicted() {
			t.Errorf("held entry %v evicted", e.Key())
		}
		if got, ok := c.Lookup(e.Key()); !ok || got != e {
			t.Errorf("held entry %v no longer in the cache", e.Key())
		}
		if got, want := stagedColor(c, e), keyColor(e.Key()); got != want {
			t.Errorf("held entry %v color after move = %v, want %v", e.Key(), got, want)
		}
	}
	for _, e := range dropped {
		if !e.Evicted() {
			t.Errorf("unreferenced entry %v not evicted", e.Key())
		}
		if _, ok := c.Lookup(e.Key()); ok {
			t.Errorf("unreferenced entry %v still in the cache", e.Key())
		}
	}
	assertNoOverlaps(t, held)

	st := c.Stats()
	if st.Entries != len(held) || st.Rebuilds != 1 || st.Evictions != len(dropped) {
		t.Errorf("Stats = %+v, want %d entries, 1 rebuild, %d evictions", st, len(held), len(dropped))
	}
	if c.canRebuild {
		t.Error("canRebuild = true right after Rebuild")
	}
}

func TestRebuild_HottestFirst(t *testing.T) {
	c := newTestCache(t, 256, 256, sizedDecoder(64, 32))
	cold := c.GetOrCreate(key(1))
	warm := c.GetOrCreate(key(2))
	hot := c.GetOrCreate(key(3))
	cold.IncRef()
	warm.IncRef()
	warm.IncRef()
	for range 5 {
		hot.IncRef()
	}

	c.Rebuild()

	for i, e := range []*CacheEntry{hot, warm, cold} {
		r := e.Region()
		if int(r.X) != i*64 || r.Y != 0 {
			t.Errorf("entry %v at (%d, %d), want (%d, 0)", e.Key(), r.X, r.Y, i*64)
		}
	}
}

func TestRebuild_TiesKeepCreationOrder(t *testing.T) {
	c := newTestCache(t, 256, 256, sizedDecoder(64, 32))
	var es []*CacheEntry
	for i := 1; i <= 4; i++ {
		e := c.GetOrCreate(key(i))
		e.IncRef()
		es = append(es, e)
	}
	// Free the first slot so the rest would shift if order were not kept.
	es[0].DecRef()
	c.Rebuild()
	for i, e := range es[1:] {
		if int(e.Region().X) != i*64 {
			t.Errorf("entry %v X = %d, want %d", e.Key(), e.Region().X, i*64)
		}
	}
}

// The page is sized to hold exactly n 64x32 entries. After every holder lets
// go, request n+1 compacts the page instead of growing the cache.
func TestCache_FullPageOfUnreferencedCompacts(t *testing.T) {
	tests := []struct {
		name         string
		pageW, pageH int
		n            int
	}{
		{"50 entries", 320, 320, 50},
		{"512 entries", 1024, 1024, 512},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCache(t, tt.pageW, tt.pageH, sizedDecoder(64, 32))
			var es []*CacheEntry
			for i := 1; i <= tt.n; i++ {
				e := c.GetOrCreate(key(i))
				e.IncRef()
				es = append(es, e)
			}
			if len(c.Pages()) != 1 {
				t.Fatalf("pages after %d entries = %d, want 1", tt.n, len(c.Pages()))
			}
			for _, e := range es {
				e.DecRef()
			}

			last := c.GetOrCreate(key(tt.n + 1))

			if c.Len() != 1 {
				t.Errorf("Len() = %d, want 1", c.Len())
			}
			if len(c.Pages()) != 1 {
				t.Errorf("Pages() = %d, want 1", len(c.Pages()))
			}
			if r := last.Region(); r.Page != 0 || r.X != 0 || r.Y != 0 {
				t.Errorf("new entry region = %+v, want page 0 at (0, 0)", r)
			}
			st := c.Stats()
			if st.Rebuilds != 1 || st.Evictions != tt.n {
				t.Errorf("Stats = %+v, want 1 rebuild, %d evictions", st, tt.n)
			}
			for _, e := range es {
				if !e.Evicted() {
					t.Fatalf("entry %v not evicted", e.Key())
				}
			}
		})
	}
}

func TestCache_FullPageOfReferencedGrows(t *testing.T) {
	c := newTestCache(t, 320, 320, sizedDecoder(64, 32))
	var es []*CacheEntry
	for i := 1; i <= 50; i++ {
		e := c.GetOrCreate(key(i))
		e.IncRef()
		es = append(es, e)
	}

	extra := c.GetOrCreate(key(51))
	extra.IncRef()
	es = append(es, extra)

	if len(c.Pages()) != 2 {
		t.Fatalf("Pages() = %d, want 2", len(c.Pages()))
	}
	if extra.Page() != 1 {
		t.Errorf("new entry page = %d, want 1", extra.Page())
	}
	if c.Stats().Rebuilds != 1 {
		t.Errorf("Rebuilds = %d, want 1 (one compaction before growing)", c.Stats().Rebuilds)
	}
	if !c.canRebuild {
		t.Error("canRebuild = false after a successful pack, want true")
	}
	for _, e := range es {
		if e.Evicted() {
			t.Fatalf("referenced entry %v evicted", e.Key())
		}
		if got, want := stagedColor(c, e), keyColor(e.Key()); got != want {
			t.Fatalf("entry %v color = %v, want %v", e.Key(), got, want)
		}
	}
	assertNoOverlaps(t, es)

	// Room remains on page 1; no further rebuild.
	c.GetOrCreate(key(52))
	if c.Stats().Rebuilds != 1 || len(c.Pages()) != 2 {
		t.Errorf("after key 52: rebuilds %d, pages %d, want 1 and 2", c.Stats().Rebuilds, len(c.Pages()))
	}
}

func TestRebuild_SpillsToNewPage(t *testing.T) {
	c := newTestCache(t, 128, 64, sizedDecoder(64, 32))
	// Page 0 holds four entries; the rest spill onto a second page.
	var es []*CacheEntry
	for i := 1; i <= 6; i++ {
		e := c.GetOrCreate(key(i))
		e.IncRef()
		es = append(es, e)
	}
	if len(c.Pages()) != 2 {
		t.Fatalf("Pages() = %d, want 2", len(c.Pages()))
	}
	c.Rebuild()
	assertNoOverlaps(t, es)
	if len(c.Pages()) != 2 {
		t.Errorf("Pages() after rebuild = %d, want 2", len(c.Pages()))
	}
	for _, e := range es {
		if got, want := stagedColor(c, e), keyColor(e.Key()); got != want {
			t.Errorf("entry %v color = %v, want %v", e.Key(), got, want)
		}
	}
}

// --- Uploads ---

func TestApplyPendingUploads(t *testing.T) {
	c := newTestCache(t, 64, 64, sizedDecoder(8, 8))
	e := c.GetOrCreate(key(7))
	page := c.Pages()[0]
	if !page.Dirty() {
		t.Fatal("page not dirty after a pack")
	}
	surf := page.Surface().(*ImageSurface)
	if surf.Image().RGBAAt(0, 0) == keyColor(e.Key()) {
		t.Fatal("surface updated before ApplyPendingUploads")
	}

	if n := c.ApplyPendingUploads(); n != 1 {
		t.Errorf("ApplyPendingUploads() = %d, want 1", n)
	}
	if got := surf.Image().RGBAAt(int(e.Region().X), int(e.Region().Y)); got != keyColor(e.Key()) {
		t.Errorf("surface color = %v, want %v", got, keyColor(e.Key()))
	}
	if page.Dirty() {
		t.Error("page still dirty after upload")
	}
	if n := c.ApplyPendingUploads(); n != 0 {
		t.Errorf("second ApplyPendingUploads() = %d, want 0", n)
	}
	if surf.Uploads() != 1 || c.Stats().Uploads != 1 {
		t.Errorf("uploads = %d / %d, want 1", surf.Uploads(), c.Stats().Uploads)
	}
}
