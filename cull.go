package isomap

// Cull selects the sections overlapping viewport, given in projected world
// pixels (the same space as CellOrigin, centered on x = 0). If the selection
// differs from the previous call the render list is marked dirty. Returns
// whether the selection changed.
//
// Sections on the border of the world extend outward without limit, so a
// viewport past the edge still selects the border sections.
func (m *TileMap) Cull(viewport Rect) bool {
	r := m.sections.span(viewport)
	if m.hasView && r == m.visible {
		return false
	}
	m.visible = r
	m.hasView = true
	m.renderDirty = true
	return true
}

// VisibleSections returns the indices of the sections selected by the last
// Cull, in row-major order.
func (m *TileMap) VisibleSections() []int {
	if !m.hasView {
		return nil
	}
	out := make([]int, 0, m.visible.count())
	for row := m.visible.r0; row <= m.visible.r1; row++ {
		for col := m.visible.c0; col <= m.visible.c1; col++ {
			out = append(out, m.sections.index(col, row))
		}
	}
	return out
}

// SectionBounds returns the world rectangle of section i. Border sections
// are reported at their nominal size.
func (m *TileMap) SectionBounds(i int) Rect {
	col, row := m.sections.coords(i)
	s := m.sections.size
	return Rect{
		X:      m.sections.originX + float64(col)*s,
		Y:      m.sections.originY + float64(row)*s,
		Width:  s,
		Height: s,
	}
}

// SectionCount returns the number of sections covering the map.
func (m *TileMap) SectionCount() int { return len(m.sections.sections) }
