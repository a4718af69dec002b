package isomap

// minStripTiles is how many base tiles wide an image must be before an
// animatable resource is treated as a frame strip.
const minStripTiles = 4

// stripFrameCount returns how many frames an image of the given category and
// width holds. Strips are split into frames exactly baseTileWidth wide, so a
// width that is not a whole multiple is a single (static) frame.
func stripFrameCount(cat Category, width, baseTileWidth int) int {
	if !cat.animatable() || baseTileWidth <= 0 {
		return 1
	}
	if width < minStripTiles*baseTileWidth || width%baseTileWidth != 0 {
		return 1
	}
	return width / baseTileWidth
}

// splitFrames divides a packed strip region into n equal frames laid out
// left to right. Each frame's trim is the strip's trim scaled by 1/n on the
// horizontal axis; the vertical trim carries over unchanged. The result only
// depends on base, so a moved strip re-derives the same frames at the new
// location.
func splitFrames(base TextureRegion, n int) []TextureRegion {
	if n <= 1 {
		return nil
	}
	fw := base.Width / uint16(n)
	frames := make([]TextureRegion, n)
	for i := range frames {
		frames[i] = TextureRegion{
			Page:      base.Page,
			X:         base.X + uint16(i)*fw,
			Y:         base.Y,
			Width:     fw,
			Height:    base.Height,
			OriginalW: base.OriginalW / uint16(n),
			OriginalH: base.OriginalH,
			OffsetX:   base.OffsetX / int16(n),
			OffsetY:   base.OffsetY,
		}
	}
	return frames
}

// moveFrames shifts every frame by the displacement between the old and new
// base placement.
func moveFrames(frames []TextureRegion, oldBase, newBase TextureRegion) {
	dx := int(newBase.X) - int(oldBase.X)
	dy := int(newBase.Y) - int(oldBase.Y)
	for i := range frames {
		frames[i].Page = newBase.Page
		frames[i].X = uint16(int(frames[i].X) + dx)
		frames[i].Y = uint16(int(frames[i].Y) + dy)
	}
}

// FrameCount returns the number of animation frames (1 for static entries).
func (e *CacheEntry) FrameCount() int {
	if len(e.frames) == 0 {
		return 1
	}
	return len(e.frames)
}

// Frames returns the animation frame regions, or nil for static entries.
// The returned slice MUST NOT be mutated.
func (e *CacheEntry) Frames() []TextureRegion {
	return e.frames
}

// FrameAt returns the region to draw after elapsedMs milliseconds of
// playback. Static entries always return their single region.
func (e *CacheEntry) FrameAt(elapsedMs int) TextureRegion {
	if len(e.frames) == 0 || e.frameMs <= 0 {
		return e.displayRegion()
	}
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	return e.frames[(elapsedMs/e.frameMs)%len(e.frames)]
}

// displayRegion is the region that defines the entry's on-map size: the first
// frame of a strip, or the whole region otherwise.
func (e *CacheEntry) displayRegion() TextureRegion {
	if len(e.frames) > 0 {
		return e.frames[0]
	}
	return e.region
}
