package isomap

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"path"

	"golang.org/x/image/bmp"
)

// Category classifies a resource. Some categories hold animation strips.
type Category uint8

const (
	CategoryTile     Category = iota // static ground/terrain art
	CategoryObject                   // static props, walls, roofs
	CategoryAnimated                 // animated tiles (water, lava, flags)
	CategoryEffect                   // animated overlays
	CategorySpec                     // attribute highlight overlays
)

// animatable reports whether wide images of this category are frame strips.
func (c Category) animatable() bool {
	return c == CategoryAnimated || c == CategoryEffect
}

// Resource is the decoded form of one (file, resource) pair.
type Resource struct {
	Image    image.Image
	Category Category
	// Trim places Image inside the authored frame. Zero means untrimmed.
	Trim Trim
}

// Decoder produces pixels for a resource key. Implementations must be pure:
// decoding the same key twice yields the same pixels.
type Decoder interface {
	Decode(key ResourceKey) (Resource, error)
}

// DecoderFunc adapts a plain function to the Decoder interface.
type DecoderFunc func(key ResourceKey) (Resource, error)

// Decode calls f(key).
func (f DecoderFunc) Decode(key ResourceKey) (Resource, error) {
	return f(key)
}

// ErrResourceNotFound is returned by FSDecoder when no file matches a key.
var ErrResourceNotFound = errors.New("resource not found")

// FSDecoder loads resources laid out as "<Root>/<fileID>/<resourceID>.bmp"
// (or .png) from a file system. Bitmaps are tried first.
type FSDecoder struct {
	FS   fs.FS
	Root string
	// Categories maps a file id to the category of every resource inside it.
	// Unlisted files decode as CategoryTile.
	Categories map[uint16]Category
}

// Decode implements Decoder.
func (d *FSDecoder) Decode(key ResourceKey) (Resource, error) {
	base := path.Join(d.Root, fmt.Sprint(key.FileID), fmt.Sprint(key.ResourceID))
	for _, ext := range [...]string{".bmp", ".png"} {
		f, err := d.FS.Open(base + ext)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Resource{}, fmt.Errorf("isomap: open %s%s: %w", base, ext, err)
		}
		var img image.Image
		if ext == ".bmp" {
			img, err = bmp.Decode(f)
		} else {
			img, err = png.Decode(f)
		}
		_ = f.Close()
		if err != nil {
			return Resource{}, fmt.Errorf("isomap: decode %s%s: %w", base, ext, err)
		}
		return Resource{Image: img, Category: d.Categories[key.FileID]}, nil
	}
	return Resource{}, fmt.Errorf("isomap: %v: %w", key, ErrResourceNotFound)
}

type memoResult struct {
	res Resource
	err error
}

// MemoDecoder remembers every result (failures included) of the wrapped
// decoder. Not safe for concurrent use.
type MemoDecoder struct {
	next    Decoder
	results map[ResourceKey]memoResult
}

// NewMemoDecoder wraps next with a result memo.
func NewMemoDecoder(next Decoder) *MemoDecoder {
	return &MemoDecoder{next: next, results: make(map[ResourceKey]memoResult)}
}

// Decode implements Decoder.
func (m *MemoDecoder) Decode(key ResourceKey) (Resource, error) {
	if r, ok := m.results[key]; ok {
		return r.res, r.err
	}
	res, err := m.next.Decode(key)
	m.results[key] = memoResult{res: res, err: err}
	return res, err
}

// Forget drops the memoized result for key.
func (m *MemoDecoder) Forget(key ResourceKey) {
	delete(m.results, key)
}

// Len returns the number of memoized keys.
func (m *MemoDecoder) Len() int {
	return len(m.results)
}
