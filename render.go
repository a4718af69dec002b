package isomap

import (
	"math"
	"time"
)

// Drawable is what a host draw pass needs from a render list entry.
type Drawable interface {
	Depth() float64
	Bounds() Rect
}

var _ Drawable = (*TileGraphic)(nil)

// RenderList returns the visible tile graphics sorted by ascending depth,
// rebuilding it first if an edit, cull or layer change dirtied it. Before the
// first Cull nothing is visible. The returned slice MUST NOT be mutated and
// is only valid until the next edit or cull.
func (m *TileMap) RenderList() []*TileGraphic {
	if m.renderDirty {
		m.rebuildRenderList()
	}
	return m.renderList
}

// RenderDirty reports whether the next RenderList call rebuilds.
func (m *TileMap) RenderDirty() bool { return m.renderDirty }

// rebuildRenderList unions the graphics of every visible section, drops
// hidden layers, recomputes alpha, and sorts by depth. It is a full rebuild;
// it only runs on visibility or edit transitions.
func (m *TileMap) rebuildRenderList() {
	var stats renderStats
	var t0 time.Time
	if globalDebug {
		t0 = time.Now()
	}

	m.renderDirty = false
	m.renderList = m.renderList[:0]
	if !m.hasView {
		return
	}

	m.nextStamp()
	for row := m.visible.r0; row <= m.visible.r1; row++ {
		for col := m.visible.c0; col <= m.visible.c1; col++ {
			sec := &m.sections.sections[m.sections.index(col, row)]
			stats.sections++
			for id := range sec.members {
				if m.seen[id] == m.stamp {
					continue
				}
				m.seen[id] = m.stamp
				stats.candidates++
				g := m.graphics[id]
				if g == nil || m.hidden[g.Layer] {
					continue
				}
				g.alpha = m.alphaFor(g)
				m.renderList = append(m.renderList, g)
			}
		}
	}

	if globalDebug {
		stats.collectTime = time.Since(t0)
		t0 = time.Now()
	}

	m.mergeSort()

	if globalDebug {
		stats.sortTime = time.Since(t0)
		stats.visible = len(m.renderList)
		debugLogRender(stats)
		debugCheckRenderListSize(stats.visible)
	}
}

// nextStamp advances the dedupe stamp, clearing the table on wraparound.
func (m *TileMap) nextStamp() {
	if m.stamp == math.MaxUint32 {
		clear(m.seen)
		m.stamp = 0
	}
	m.stamp++
}

// alphaFor returns the graphic's opacity: the layer's base alpha, boosted
// when its layer is selected.
func (m *TileMap) alphaFor(g *TileGraphic) float64 {
	a := g.baseAlpha
	if m.hasSelected && g.Layer == m.selected {
		a = min(1, a+m.cfg.SelectedAlphaBoost)
	}
	return a
}

// --- Merge sort ---

// graphicLessOrEqual returns true if a should sort before or at the same
// position as b. Depth keys are unique per slot; the slot id keeps the order
// total even so.
func graphicLessOrEqual(a, b *TileGraphic) bool {
	if a.depth != b.depth {
		return a.depth < b.depth
	}
	return a.id <= b.id
}

// mergeSort sorts m.renderList in-place using m.sortBuf as scratch space.
// Bottom-up merge sort: zero allocations after the sort buffer reaches high-water mark.
func (m *TileMap) mergeSort() {
	n := len(m.renderList)
	if n <= 1 {
		return
	}
	if cap(m.sortBuf) < n {
		m.sortBuf = make([]*TileGraphic, n)
	}
	m.sortBuf = m.sortBuf[:n]

	a := m.renderList
	b := m.sortBuf
	swapped := false

	for width := 1; width < n; width *= 2 {
		for i := 0; i < n; i += 2 * width {
			lo := i
			mid := min(lo+width, n)
			hi := min(lo+2*width, n)
			mergeRun(a, b, lo, mid, hi)
		}
		a, b = b, a
		swapped = !swapped
	}

	if swapped {
		copy(m.renderList, m.sortBuf)
	}
}

// mergeRun merges two sorted runs [lo, mid) and [mid, hi) from src into dst.
func mergeRun(src, dst []*TileGraphic, lo, mid, hi int) {
	i, j, k := lo, mid, lo
	for i < mid && j < hi {
		if graphicLessOrEqual(src[i], src[j]) {
			dst[k] = src[i]
			i++
		} else {
			dst[k] = src[j]
			j++
		}
		k++
	}
	for i < mid {
		dst[k] = src[i]
		i++
		k++
	}
	for j < hi {
		dst[k] = src[j]
		j++
		k++
	}
}
