package local

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cbodonnell/worldgate/pkg/log"
	"github.com/cbodonnell/worldgate/pkg/messages"
	"github.com/cbodonnell/worldgate/pkg/metrics"
	"github.com/cbodonnell/worldgate/pkg/queue"
	"github.com/cbodonnell/worldgate/pkg/staticdata"
	"github.com/google/uuid"
)

const (
	DefaultTickRate  = 50 * time.Millisecond
	DefaultQueueSize = 4096
)

var (
	// ErrInvariantViolation stops a local world. Only that world is affected.
	ErrInvariantViolation = errors.New("local world invariant violated")
	ErrWorldStopped       = errors.New("local world stopped")
)

type registration struct {
	entityID   messages.EntityID
	connection messages.ConnectionHandle
}

// LocalWorld simulates one zone instance. All state is owned by the goroutine
// running Start; other actors only reach it through Send.
type LocalWorld struct {
	id       messages.WorldID
	zoneID   int32
	global   messages.GlobalSender
	loader   ZoneLoader
	inbox    queue.Queue
	tickRate time.Duration
	logger   *log.Logger

	zone        staticdata.Zone
	space       *visibilitySpace
	entities    map[messages.EntityID]*entity
	tickets     map[uuid.UUID]messages.EntityID
	connections map[messages.ConnectionID]registration
	nextID      messages.EntityID
	stopped     bool

	done     chan struct{}
	stopOnce sync.Once
}

var _ messages.LocalWorldHandle = (*LocalWorld)(nil)

type NewLocalWorldOptions struct {
	WorldID   messages.WorldID
	ZoneID    int32
	Global    messages.GlobalSender
	Loader    ZoneLoader
	TickRate  time.Duration
	QueueSize int
}

func NewLocalWorld(opts NewLocalWorldOptions) *LocalWorld {
	if opts.TickRate <= 0 {
		opts.TickRate = DefaultTickRate
	}
	return &LocalWorld{
		id:          opts.WorldID,
		zoneID:      opts.ZoneID,
		global:      opts.Global,
		loader:      opts.Loader,
		inbox:       queue.NewInMemoryQueue(opts.QueueSize),
		tickRate:    opts.TickRate,
		logger:      log.Default().With("world_id", opts.WorldID).With("zone_id", opts.ZoneID),
		entities:    make(map[messages.EntityID]*entity),
		tickets:     make(map[uuid.UUID]messages.EntityID),
		connections: make(map[messages.ConnectionID]registration),
		nextID:      1,
		done:        make(chan struct{}),
	}
}

func (w *LocalWorld) ID() messages.WorldID {
	return w.id
}

func (w *LocalWorld) ZoneID() int32 {
	return w.zoneID
}

// Send queues an event for the next tick. It never blocks.
func (w *LocalWorld) Send(event messages.LocalEvent) error {
	select {
	case <-w.done:
		return ErrWorldStopped
	default:
	}
	if err := w.inbox.Enqueue(event); err != nil {
		return fmt.Errorf("failed to enqueue %T: %w", event, err)
	}
	return nil
}

// Done is closed once the world stopped.
func (w *LocalWorld) Done() <-chan struct{} {
	return w.done
}

// Start loads the zone, reports the result to the global world and then
// runs the tick loop until Shutdown, a broken invariant or ctx is done.
func (w *LocalWorld) Start(ctx context.Context) {
	defer w.stopOnce.Do(func() { close(w.done) })

	if err := w.load(ctx); err != nil {
		w.logger.Error("Failed to load zone: %v", err)
		w.sendGlobal(ctx, messages.LocalWorldLoaded{WorldID: w.id, Err: err})
		return
	}
	w.logger.Info("Local world loaded")
	w.sendGlobal(ctx, messages.LocalWorldLoaded{WorldID: w.id})

	ticker := time.NewTicker(w.tickRate)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			err := w.tick(ctx, now.Sub(last).Seconds())
			metrics.LocalWorldTickDuration.Observe(time.Since(now).Seconds())
			last = now
			if err != nil {
				w.fail(ctx, err)
				return
			}
			if w.stopped {
				w.logger.Info("Local world shut down")
				return
			}
		}
	}
}

func (w *LocalWorld) load(ctx context.Context) error {
	zone, err := w.loader.LoadZone(ctx, w.zoneID)
	if err != nil {
		return err
	}
	w.zone = zone
	w.space = newVisibilitySpace(zone)
	return nil
}

func (w *LocalWorld) fail(ctx context.Context, err error) {
	w.logger.Error("Local world failed: %v", err)

	seen := make(map[messages.ConnectionID]struct{})
	var connections []messages.ConnectionID
	for _, e := range w.entities {
		if _, ok := seen[e.connectionID]; ok {
			continue
		}
		seen[e.connectionID] = struct{}{}
		connections = append(connections, e.connectionID)
	}
	sort.Slice(connections, func(i, j int) bool { return connections[i] < connections[j] })

	w.sendGlobal(ctx, messages.LocalWorldFailed{WorldID: w.id, Err: err, Connections: connections})
}

// tick drains the inbox in arrival order, then advances the simulation.
func (w *LocalWorld) tick(ctx context.Context, dt float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrInvariantViolation, r)
		}
	}()

	for _, item := range w.inbox.ReadAllMessages() {
		event, ok := item.(messages.LocalEvent)
		if !ok {
			return fmt.Errorf("%w: unexpected inbox item %T", ErrInvariantViolation, item)
		}
		if err := w.handle(ctx, event); err != nil {
			return err
		}
		if w.stopped {
			return nil
		}
	}

	for _, e := range w.entities {
		if !e.active {
			continue
		}
		e.integrate(dt, w.zone.Bounds)
		w.space.move(e)
	}
	w.updateVisibility()

	return nil
}

func (w *LocalWorld) handle(ctx context.Context, event messages.LocalEvent) error {
	switch e := event.(type) {
	case messages.PrepareUserSpawn:
		return w.handlePrepareUserSpawn(ctx, e)
	case messages.RegisterConnection:
		w.handleRegisterConnection(e)
	case messages.UserReadyToConnect:
		w.handleUserReadyToConnect(e)
	case messages.LoadTopologyFinished:
		w.handleLoadTopologyFinished(ctx, e)
	case messages.PlayerLocation:
		w.handlePlayerLocation(e)
	case messages.Despawn:
		w.handleDespawn(ctx, e)
	case messages.CancelTicket:
		w.handleCancelTicket(e)
	case messages.Shutdown:
		w.stopped = true
	default:
		w.logger.Warn("Unhandled local event %T", event)
	}
	return nil
}

func (w *LocalWorld) handlePrepareUserSpawn(ctx context.Context, event messages.PrepareUserSpawn) error {
	if _, ok := w.tickets[event.Ticket]; ok {
		w.logger.Warn("Ticket %s already prepared", event.Ticket)
		return nil
	}

	id := w.nextID
	w.nextID++
	if _, exists := w.entities[id]; exists {
		return fmt.Errorf("%w: duplicate entity id %d", ErrInvariantViolation, id)
	}

	e := newEntity(id, event.Ticket, event.ConnectionID, event.User, w.zone)
	w.entities[id] = e
	w.tickets[event.Ticket] = id

	w.logger.Debug("Prepared entity %d for user %d", id, event.User.ID)
	w.sendGlobal(ctx, messages.UserSpawnPrepared{Ticket: event.Ticket, WorldID: w.id, EntityID: id})
	return nil
}

func (w *LocalWorld) handleRegisterConnection(event messages.RegisterConnection) {
	e, ok := w.entities[event.EntityID]
	if !ok || e.connectionID != event.ConnectionID {
		w.logger.Warn("Ignoring registration of connection %d for entity %d", event.ConnectionID, event.EntityID)
		return
	}
	w.connections[event.ConnectionID] = registration{entityID: event.EntityID, connection: event.Connection}
}

func (w *LocalWorld) handleUserReadyToConnect(event messages.UserReadyToConnect) {
	id, ok := w.tickets[event.Ticket]
	if !ok {
		w.logger.Debug("Ready for unknown ticket %s", event.Ticket)
		return
	}
	w.entities[id].ready = true
}

func (w *LocalWorld) handleLoadTopologyFinished(ctx context.Context, event messages.LoadTopologyFinished) {
	e, ok := w.entities[event.EntityID]
	if !ok || e.connectionID != event.ConnectionID {
		w.logger.Warn("Connection %d finished loading for entity %d it does not own", event.ConnectionID, event.EntityID)
		return
	}
	if !e.ready {
		w.logger.Warn("Entity %d finished loading before it was ready", e.id)
		return
	}
	if e.active {
		return
	}
	reg, ok := w.connections[e.connectionID]
	if !ok {
		w.logger.Warn("Entity %d has no registered connection", e.id)
		return
	}

	e.active = true
	w.space.add(e)
	reg.connection.Send(messages.SpawnConfirmed{Packet: e.spawnMe()})
	w.sendGlobal(ctx, messages.UserSpawned{Ticket: e.ticket, WorldID: w.id, EntityID: e.id})
	w.logger.Debug("Entity %d spawned", e.id)
}

func (w *LocalWorld) handlePlayerLocation(event messages.PlayerLocation) {
	e, ok := w.entities[event.EntityID]
	if !ok || !e.active || e.connectionID != event.ConnectionID {
		return
	}
	p := event.Packet
	if !w.zone.Bounds.Contains(float64(p.X), float64(p.Y)) {
		w.logger.Debug("Entity %d reported a location outside the zone", e.id)
		return
	}
	e.x, e.y, e.z, e.rotation = p.X, p.Y, p.Z, p.Rotation
	e.vx, e.vy = p.VX, p.VY
	w.space.move(e)
}

func (w *LocalWorld) handleDespawn(ctx context.Context, event messages.Despawn) {
	e, ok := w.entities[event.EntityID]
	if !ok {
		w.sendGlobal(ctx, messages.UserDespawned{WorldID: w.id, EntityID: event.EntityID})
		return
	}
	w.removeEntity(e)
	w.sendGlobal(ctx, messages.UserDespawned{
		WorldID:  w.id,
		EntityID: e.id,
		Found:    true,
		Location: e.location(w.zoneID),
		Alive:    e.alive,
	})
}

func (w *LocalWorld) handleCancelTicket(event messages.CancelTicket) {
	id, ok := w.tickets[event.Ticket]
	if !ok {
		return
	}
	w.removeEntity(w.entities[id])
}

func (w *LocalWorld) removeEntity(e *entity) {
	if e.active {
		for _, other := range w.entities {
			if _, ok := other.visible[e.id]; ok {
				delete(other.visible, e.id)
				w.sendPacket(other, messages.SDespawnUser{EntityID: e.id})
			}
		}
		w.space.remove(e)
	}
	delete(w.entities, e.id)
	delete(w.tickets, e.ticket)
	if reg, ok := w.connections[e.connectionID]; ok && reg.entityID == e.id {
		delete(w.connections, e.connectionID)
	}
}

func (w *LocalWorld) updateVisibility() {
	for _, e := range w.entities {
		if !e.active {
			continue
		}
		now := make(map[messages.EntityID]struct{})
		for _, other := range w.space.visibleFrom(e) {
			now[other.id] = struct{}{}
			if _, ok := e.visible[other.id]; !ok {
				w.sendPacket(e, other.spawnUser())
			}
		}
		for id := range e.visible {
			if _, ok := now[id]; !ok {
				w.sendPacket(e, messages.SDespawnUser{EntityID: id})
			}
		}
		e.visible = now
	}
}

func (w *LocalWorld) sendPacket(to *entity, packet messages.Packet) {
	reg, ok := w.connections[to.connectionID]
	if !ok {
		return
	}
	reg.connection.Send(messages.SendPacket{Packet: packet})
}

func (w *LocalWorld) sendGlobal(ctx context.Context, event messages.GlobalEvent) {
	if err := w.global.Send(ctx, event); err != nil {
		w.logger.Error("Failed to send %T to global world: %v", event, err)
	}
}
