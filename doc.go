// Package isomap renders large staggered-isometric tile maps for
// [Ebitengine] from a packed, reference-counted texture cache.
//
// Two halves work together:
//
//   - [TextureCache] decodes resources on demand through a [Decoder], packs
//     them into fixed-size [AtlasPage]s with a shelf allocator and hands out
//     shared [CacheEntry] values. Entries are reference counted; an entry
//     nobody holds stays packed until the next compaction ([TextureCache.Rebuild])
//     evicts it. Compaction runs on its own when the pages fill up.
//   - [TileMap] stores a grid of cells with eleven layers each. Every painted
//     cell layer is a [TileGraphic] bucketed into fixed-size spatial sections.
//     [TileMap.Cull] selects the sections under the camera and
//     [TileMap.RenderList] returns the visible graphics in painter's order.
//
// # Quick start
//
//	cache, _ := isomap.NewTextureCache(isomap.CacheConfig{
//		Decoder:  &isomap.FSDecoder{FS: os.DirFS("art")},
//		Surfaces: isomap.EbitenSurfaces{},
//	})
//	m, _ := isomap.NewTileMap(cache, isomap.MapConfig{Width: 256, Height: 512})
//	_ = m.Apply(isomap.Edit{X: 5, Y: 5, Layer: isomap.LayerObject, Resource: 12})
//
//	viewer := isomap.NewViewer(m, isomap.Rect{Width: 1280, Height: 720})
//	// in ebiten.Game.Update:  viewer.Update(1.0 / 60)
//	// in ebiten.Game.Draw:    viewer.Draw(screen)
//
// # Edits and uploads
//
// Edits only touch the CPU staging copy of the atlas pages. The pages are
// pushed to their surfaces by [TextureCache.ApplyPendingUploads], which
// [TileMap.Apply] and [Viewer.Draw] call once per batch.
//
// # Threading
//
// Everything runs on the frame loop. Nothing locks, nothing blocks, and no
// mutating call may be made from inside an [EditObserver] callback.
//
// [Ebitengine]: https://ebitengine.org
package isomap
