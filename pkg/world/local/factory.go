package local

import (
	"context"
	"time"

	"github.com/cbodonnell/worldgate/pkg/messages"
	"github.com/cbodonnell/worldgate/pkg/metrics"
)

// Factory starts local worlds on behalf of the global world.
type Factory struct {
	global    messages.GlobalSender
	loader    ZoneLoader
	tickRate  time.Duration
	queueSize int
}

type NewFactoryOptions struct {
	Global    messages.GlobalSender
	Loader    ZoneLoader
	TickRate  time.Duration
	QueueSize int
}

func NewFactory(opts NewFactoryOptions) *Factory {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	return &Factory{
		global:    opts.Global,
		loader:    opts.Loader,
		tickRate:  opts.TickRate,
		queueSize: opts.QueueSize,
	}
}

// Create starts a local world for zoneID on its own goroutine and returns
// immediately. The world reports LocalWorldLoaded once the zone is loaded.
func (f *Factory) Create(ctx context.Context, worldID messages.WorldID, zoneID int32) messages.LocalWorldHandle {
	world := NewLocalWorld(NewLocalWorldOptions{
		WorldID:   worldID,
		ZoneID:    zoneID,
		Global:    f.global,
		Loader:    f.loader,
		TickRate:  f.tickRate,
		QueueSize: f.queueSize,
	})
	go func() {
		metrics.LocalWorlds.Inc()
		defer metrics.LocalWorlds.Dec()
		world.Start(ctx)
	}()
	return world
}
