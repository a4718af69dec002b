package isomap

import (
	"image"
	"image/draw"

	"github.com/hajimehoshi/ebiten/v2"
)

// Surface is the render-facing pixel store behind one atlas page. Pages keep
// their own CPU staging copy and push it to the surface in one call per
// upload batch.
type Surface interface {
	// Size returns the surface dimensions in pixels.
	Size() (width, height int)
	// WritePixels replaces the whole surface with the given RGBA bytes
	// (len = 4*width*height, premultiplied, image.RGBA layout).
	WritePixels(pix []byte)
}

// SurfaceProvider creates surfaces for new atlas pages. It is the explicit
// stand-in for a process-wide graphics context.
type SurfaceProvider interface {
	NewSurface(width, height int) Surface
}

// --- Ebitengine ---

// EbitenSurfaces creates page surfaces backed by *ebiten.Image.
type EbitenSurfaces struct{}

// NewSurface allocates an ebiten image of the given size.
func (EbitenSurfaces) NewSurface(width, height int) Surface {
	return &EbitenSurface{img: ebiten.NewImage(width, height)}
}

// EbitenSurface is an atlas page surface living on the GPU.
type EbitenSurface struct {
	img *ebiten.Image
}

// Size returns the image dimensions.
func (s *EbitenSurface) Size() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// WritePixels uploads the page staging buffer.
func (s *EbitenSurface) WritePixels(pix []byte) {
	s.img.WritePixels(pix)
}

// Image returns the underlying ebiten image for draw passes.
func (s *EbitenSurface) Image() *ebiten.Image {
	return s.img
}

// --- Headless ---

// ImageSurfaces creates page surfaces backed by *image.RGBA. Used by tools
// and tests that run without a graphics context.
type ImageSurfaces struct{}

// NewSurface allocates an RGBA image of the given size.
func (ImageSurfaces) NewSurface(width, height int) Surface {
	return &ImageSurface{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// ImageSurface is an atlas page surface in main memory.
type ImageSurface struct {
	img     *image.RGBA
	uploads int
}

// Size returns the image dimensions.
func (s *ImageSurface) Size() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// WritePixels copies pix into the surface.
func (s *ImageSurface) WritePixels(pix []byte) {
	copy(s.img.Pix, pix)
	s.uploads++
}

// Image returns the surface contents.
func (s *ImageSurface) Image() *image.RGBA {
	return s.img
}

// Uploads returns how many times WritePixels has been called.
func (s *ImageSurface) Uploads() int {
	return s.uploads
}

// toRGBA returns img as a zero-origin *image.RGBA, converting if needed.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return dst
}
