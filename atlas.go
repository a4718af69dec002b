package isomap

import (
	"image"
	"image/color"
)

// TextureRegion describes a sub-rectangle within an atlas page.
// Value type, copied freely; cache entries own the authoritative copy.
type TextureRegion struct {
	Page      uint16 // atlas page index (references TextureCache.Pages())
	X, Y      uint16 // top-left corner of the sub-image rect within the atlas page
	Width     uint16 // width of the sub-image rect (may differ from OriginalW if trimmed)
	Height    uint16 // height of the sub-image rect (may differ from OriginalH if trimmed)
	OriginalW uint16 // untrimmed sprite width as authored
	OriginalH uint16 // untrimmed sprite height as authored
	OffsetX   int16  // horizontal trim offset inside the untrimmed frame
	OffsetY   int16  // vertical trim offset inside the untrimmed frame
}

// Rect returns the packed rectangle in page pixel coordinates.
func (r TextureRegion) Rect() image.Rectangle {
	return image.Rect(int(r.X), int(r.Y), int(r.X)+int(r.Width), int(r.Y)+int(r.Height))
}

// Overlaps reports whether two regions share any pixel on the same page.
func (r TextureRegion) Overlaps(other TextureRegion) bool {
	if r.Page != other.Page {
		return false
	}
	return r.Rect().Overlaps(other.Rect())
}

// Trim describes where the packed pixels of a resource sit inside the frame
// the artist authored. A zero Trim means "untrimmed".
type Trim struct {
	OffsetX, OffsetY    int
	OriginalW, OriginalH int
}

// magenta fills the placeholder substituted for resources that fail to decode.
var magenta = color.RGBA{R: 255, G: 0, B: 255, A: 255}

// magentaImage returns a fresh 1x1 magenta image.
func magentaImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, magenta)
	return img
}

// shelf is one row of the page allocator.
type shelf struct {
	y      int // top edge in page pixels
	height int // fixed once the shelf is opened
	used   int // horizontal space consumed from the left edge
}

// AtlasPage is one fixed-size pixel surface plus a shelf-packing allocator.
// Rectangles are never freed individually; Clear resets the whole page.
type AtlasPage struct {
	index   int
	width   int
	height  int
	shelves []shelf
	pix     *image.RGBA // CPU staging copy, source of truth for uploads
	surface Surface
	dirty   bool
}

func newAtlasPage(index, width, height int, surfaces SurfaceProvider) *AtlasPage {
	return &AtlasPage{
		index:   index,
		width:   width,
		height:  height,
		pix:     image.NewRGBA(image.Rect(0, 0, width, height)),
		surface: surfaces.NewSurface(width, height),
	}
}

// Index returns the page's position in the cache page list.
func (p *AtlasPage) Index() int { return p.index }

// Size returns the page dimensions in pixels.
func (p *AtlasPage) Size() (width, height int) { return p.width, p.height }

// Surface returns the render-facing surface.
func (p *AtlasPage) Surface() Surface { return p.surface }

// Dirty reports whether the staging copy has changes not yet uploaded.
func (p *AtlasPage) Dirty() bool { return p.dirty }

// Shelves returns the number of open shelves.
func (p *AtlasPage) Shelves() int { return len(p.shelves) }

// Pack reserves a width x height rectangle and returns its box. Among the
// shelves tall enough with room left, the one with the least height to spare
// wins (earliest on ties). Otherwise a new shelf is opened below the last one
// if vertical space remains. Deterministic for a fixed call sequence.
func (p *AtlasPage) Pack(width, height int) (image.Rectangle, bool) {
	if width <= 0 || height <= 0 || width > p.width || height > p.height {
		return image.Rectangle{}, false
	}

	best := -1
	for i := range p.shelves {
		s := &p.shelves[i]
		if s.height < height || p.width-s.used < width {
			continue
		}
		if best < 0 || s.height < p.shelves[best].height {
			best = i
		}
	}
	if best >= 0 {
		s := &p.shelves[best]
		r := image.Rect(s.used, s.y, s.used+width, s.y+height)
		s.used += width
		return r, true
	}

	top := 0
	if n := len(p.shelves); n > 0 {
		last := p.shelves[n-1]
		top = last.y + last.height
	}
	if top+height > p.height {
		return image.Rectangle{}, false
	}
	p.shelves = append(p.shelves, shelf{y: top, height: height, used: width})
	return image.Rect(0, top, width, top+height), true
}

// Clear resets all shelves and zeroes the staging pixels. The page is marked
// dirty so the cleared contents reach the surface on the next upload.
func (p *AtlasPage) Clear() {
	p.shelves = p.shelves[:0]
	clear(p.pix.Pix)
	p.dirty = true
}

// reset clears the page like Clear but hands back the previous staging
// buffer so its pixels can be moved elsewhere.
func (p *AtlasPage) reset() *image.RGBA {
	old := p.pix
	p.pix = image.NewRGBA(old.Rect)
	p.shelves = p.shelves[:0]
	p.dirty = true
	return old
}

// blit copies src (zero-origin) into the staging buffer at dst.Min.
func (p *AtlasPage) blit(dst image.Rectangle, src *image.RGBA, srcMin image.Point) {
	rowBytes := dst.Dx() * 4
	for y := 0; y < dst.Dy(); y++ {
		so := src.PixOffset(srcMin.X, srcMin.Y+y)
		do := p.pix.PixOffset(dst.Min.X, dst.Min.Y+y)
		copy(p.pix.Pix[do:do+rowBytes], src.Pix[so:so+rowBytes])
	}
	p.dirty = true
}

// upload pushes the staging copy to the surface if dirty.
func (p *AtlasPage) upload() bool {
	if !p.dirty {
		return false
	}
	p.surface.WritePixels(p.pix.Pix)
	p.dirty = false
	return true
}
