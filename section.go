package isomap

import "math"

// section is one fixed-size spatial bucket. Members are tile graphic ids
// (slot indices into TileMap.graphics), never pointers.
type section struct {
	members map[int]struct{}
}

// sectionRange is an inclusive block of section columns and rows.
type sectionRange struct {
	c0, r0, c1, r1 int
}

func (r sectionRange) contains(col, row int) bool {
	return col >= r.c0 && col <= r.c1 && row >= r.r0 && row <= r.r1
}

func (r sectionRange) count() int {
	return (r.c1 - r.c0 + 1) * (r.r1 - r.r0 + 1)
}

// sectionIndex partitions projected pixel space into size x size buckets
// starting at (originX, originY). Border buckets extend without limit
// outward: anything left of the first column lands in it, and so on. Lookups
// for registration and for culling clamp the same way, so the two always
// agree.
type sectionIndex struct {
	size     float64
	originX  float64
	originY  float64
	cols     int
	rows     int
	sections []section
}

func newSectionIndex(bounds Rect, size float64) *sectionIndex {
	cols := max(1, int(math.Ceil(bounds.Width/size)))
	rows := max(1, int(math.Ceil(bounds.Height/size)))
	s := &sectionIndex{
		size:     size,
		originX:  bounds.X,
		originY:  bounds.Y,
		cols:     cols,
		rows:     rows,
		sections: make([]section, cols*rows),
	}
	for i := range s.sections {
		s.sections[i].members = make(map[int]struct{})
	}
	return s
}

func (s *sectionIndex) column(x float64) int {
	c := int(math.Floor((x - s.originX) / s.size))
	return min(max(c, 0), s.cols-1)
}

func (s *sectionIndex) row(y float64) int {
	r := int(math.Floor((y - s.originY) / s.size))
	return min(max(r, 0), s.rows-1)
}

// span returns the sections overlapped by r. Edges count as overlapping, as
// in Rect.Intersects.
func (s *sectionIndex) span(r Rect) sectionRange {
	return sectionRange{
		c0: s.column(r.X),
		r0: s.row(r.Y),
		c1: s.column(r.X + r.Width),
		r1: s.row(r.Y + r.Height),
	}
}

func (s *sectionIndex) index(col, row int) int { return row*s.cols + col }

func (s *sectionIndex) coords(index int) (col, row int) {
	return index % s.cols, index / s.cols
}

// register adds id to every section bounds overlaps and returns their
// indices, for the later unregister.
func (s *sectionIndex) register(id int, bounds Rect) []int {
	sr := s.span(bounds)
	out := make([]int, 0, sr.count())
	for row := sr.r0; row <= sr.r1; row++ {
		for col := sr.c0; col <= sr.c1; col++ {
			i := s.index(col, row)
			s.sections[i].members[id] = struct{}{}
			out = append(out, i)
		}
	}
	return out
}

// unregister removes id from the given sections.
func (s *sectionIndex) unregister(id int, indices []int) {
	for _, i := range indices {
		delete(s.sections[i].members, id)
	}
}

// memberCount returns the number of graphics registered in section i.
func (s *sectionIndex) memberCount(i int) int {
	return len(s.sections[i].members)
}
