package isomap

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
)

// Viewer binds a Camera to a TileMap and draws its render list with
// Ebitengine. It is the host side of the renderer: the map decides what is
// visible and in which order, the viewer samples the atlas pages.
//
// Pages must come from EbitenSurfaces; graphics on other surfaces are skipped.
type Viewer struct {
	Map    *TileMap
	Camera *Camera
	// ClearColor fills the target before drawing. nil leaves it untouched.
	ClearColor color.Color

	elapsedMs int
	drawn     int
}

// NewViewer creates a viewer whose camera covers viewport, starts centered
// on the map and is clamped to the map's bounds.
func NewViewer(m *TileMap, viewport Rect) *Viewer {
	cam := NewCamera(viewport)
	b := m.WorldBounds()
	cam.X = b.X + b.Width/2
	cam.Y = b.Y + b.Height/2
	cam.SetBounds(b)
	return &Viewer{Map: m, Camera: cam}
}

// Update advances the camera and animation clock by dt seconds and culls
// the map against the camera's visible bounds.
func (v *Viewer) Update(dt float32) {
	v.Camera.Update(dt)
	v.Map.Cull(v.Camera.VisibleBounds())
	if ms := int(dt * 1000); ms > 0 {
		v.elapsedMs += ms
	}
}

// Elapsed returns the animation clock in milliseconds.
func (v *Viewer) Elapsed() int { return v.elapsedMs }

// Drawn returns how many graphics the last Draw submitted.
func (v *Viewer) Drawn() int { return v.drawn }

// Draw flushes pending page uploads and draws the render list to target.
func (v *Viewer) Draw(target *ebiten.Image) {
	if v.ClearColor != nil {
		target.Fill(v.ClearColor)
	}
	cache := v.Map.Cache()
	cache.ApplyPendingUploads()

	view := v.Camera.computeViewMatrix()
	pages := cache.Pages()
	v.drawn = 0

	var op ebiten.DrawImageOptions
	for _, g := range v.Map.RenderList() {
		r := g.Region(v.elapsedMs)
		if int(r.Page) >= len(pages) {
			continue
		}
		surf, ok := pages[r.Page].Surface().(*EbitenSurface)
		if !ok {
			continue
		}
		src := surf.Image().SubImage(r.Rect()).(*ebiten.Image)
		op.GeoM = geoM(translateAffine(view, g.X, g.Y))
		op.ColorScale.Reset()
		op.ColorScale.ScaleAlpha(float32(g.Alpha()))
		target.DrawImage(src, &op)
		v.drawn++
	}
}

// Pick returns the map cell under a screen position.
func (v *Viewer) Pick(sx, sy float64) (x, y int, ok bool) {
	wx, wy := v.Camera.ScreenToWorld(sx, sy)
	return v.Map.CellAt(wx, wy)
}
