// Package ecs provides ECS adapters for isomap's tile edit events.
//
// The primary adapter is [NewDonburiObserver], which bridges tile map edits
// (paint, clear, spec changes) into a [Donburi] world as typed events.
// Subscribe to [TileEventType] in your ECS systems to receive them.
//
// Usage:
//
//	observer := ecs.NewDonburiObserver(world)
//	tileMap.SetObserver(observer)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
