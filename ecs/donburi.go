package ecs

import (
	"github.com/phanxgames/isomap"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

// TileEventType is the Donburi event type for isomap tile edits.
// Subscribe to this in your ECS systems to react to map changes.
var TileEventType = events.NewEventType[isomap.TileEvent]()

type donburiObserver struct {
	world donburi.World
}

// NewDonburiObserver creates an EditObserver backed by a Donburi world.
// Tile events are published to TileEventType and can be consumed with
// events.Subscribe and ProcessEvents. Events are queued, so subscribers run
// outside the edit and may safely edit the map again.
func NewDonburiObserver(world donburi.World) isomap.EditObserver {
	return &donburiObserver{world: world}
}

func (o *donburiObserver) TileChanged(event isomap.TileEvent) {
	TileEventType.Publish(o.world, event)
}
