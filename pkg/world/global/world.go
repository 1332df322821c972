package global

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/cbodonnell/worldgate/pkg/log"
	"github.com/cbodonnell/worldgate/pkg/messages"
	"github.com/cbodonnell/worldgate/pkg/metrics"
	"github.com/cbodonnell/worldgate/pkg/repositories/models"
	"github.com/cbodonnell/worldgate/pkg/staticdata"
	"github.com/cbodonnell/worldgate/pkg/workers"
	"github.com/google/uuid"
)

const (
	DefaultInboxSize      = 4096
	DefaultTicketTimeout  = 30 * time.Second
	DefaultDespawnTimeout = 10 * time.Second
	DefaultIdleGrace      = 15 * time.Second
	DefaultSweepInterval  = 500 * time.Millisecond
	DefaultLocationTTL    = 10 * time.Minute
)

var (
	ErrNotAuthenticated = errors.New("select user before login")
	ErrWorldStopped     = errors.New("global world stopped")
)

// LocalWorldFactory starts local worlds. Create must not block: the world
// reports LocalWorldLoaded when it is ready.
type LocalWorldFactory interface {
	Create(ctx context.Context, worldID messages.WorldID, zoneID int32) messages.LocalWorldHandle
}

// Persistence runs repository calls and reports their results as events.
type Persistence interface {
	Submit(request workers.PersistenceRequest) error
}

// StateSaver persists the final state of despawned users.
type StateSaver interface {
	Submit(request workers.SaveUserStateRequest) bool
}

// GlobalWorld coordinates connections, accounts, spawn tickets and local
// worlds. All of its state is owned by the goroutine running Start.
type GlobalWorld struct {
	inbox   Inbox
	stopped chan struct{}

	tables      *staticdata.Tables
	factory     LocalWorldFactory
	persistence Persistence
	saver       StateSaver

	defaultZoneID  int32
	ticketTimeout  time.Duration
	despawnTimeout time.Duration
	idleGrace      time.Duration
	sweepInterval  time.Duration
	locationTTL    time.Duration
	now            func() time.Time

	connections   map[messages.ConnectionID]*connectionState
	users         map[int32]*userState
	accountSpawn  map[int64]int32
	tickets       map[uuid.UUID]*spawnTicket
	worlds        map[messages.WorldID]*worldEntry
	zoneWorlds    map[int32]messages.WorldID
	lastLocations map[int32]lastLocation
	nextWorldID   messages.WorldID
	nextTicketSeq uint64
}

var (
	_ messages.GlobalSender = (*GlobalWorld)(nil)
	_ messages.GlobalSender = Inbox(nil)
)

// Inbox is the event queue of a global world. It exists before the world so
// the persistence workers and local worlds reporting to it can be built first.
type Inbox chan messages.GlobalEvent

func NewInbox(size int) Inbox {
	if size <= 0 {
		size = DefaultInboxSize
	}
	return make(Inbox, size)
}

// Send blocks until there is room in the inbox or ctx is done.
func (i Inbox) Send(ctx context.Context, event messages.GlobalEvent) error {
	select {
	case i <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type NewGlobalWorldOptions struct {
	Tables         *staticdata.Tables
	Factory        LocalWorldFactory
	Persistence    Persistence
	Saver          StateSaver
	DefaultZoneID  int32
	// Inbox is created with DefaultInboxSize when nil.
	Inbox          Inbox
	TicketTimeout  time.Duration
	DespawnTimeout time.Duration
	IdleGrace      time.Duration
	SweepInterval  time.Duration
	// LocationTTL bounds how long a despawn location whose save was never
	// confirmed overrides the stored one.
	LocationTTL    time.Duration
}

func NewGlobalWorld(opts NewGlobalWorldOptions) *GlobalWorld {
	if opts.Inbox == nil {
		opts.Inbox = NewInbox(DefaultInboxSize)
	}
	if opts.TicketTimeout <= 0 {
		opts.TicketTimeout = DefaultTicketTimeout
	}
	if opts.DespawnTimeout <= 0 {
		opts.DespawnTimeout = DefaultDespawnTimeout
	}
	if opts.IdleGrace <= 0 {
		opts.IdleGrace = DefaultIdleGrace
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.LocationTTL <= 0 {
		opts.LocationTTL = DefaultLocationTTL
	}
	return &GlobalWorld{
		inbox:          opts.Inbox,
		stopped:        make(chan struct{}),
		tables:         opts.Tables,
		factory:        opts.Factory,
		persistence:    opts.Persistence,
		saver:          opts.Saver,
		defaultZoneID:  opts.DefaultZoneID,
		ticketTimeout:  opts.TicketTimeout,
		despawnTimeout: opts.DespawnTimeout,
		idleGrace:      opts.IdleGrace,
		sweepInterval:  opts.SweepInterval,
		locationTTL:    opts.LocationTTL,
		now:            time.Now,
		connections:    make(map[messages.ConnectionID]*connectionState),
		users:          make(map[int32]*userState),
		accountSpawn:   make(map[int64]int32),
		tickets:        make(map[uuid.UUID]*spawnTicket),
		worlds:         make(map[messages.WorldID]*worldEntry),
		zoneWorlds:     make(map[int32]messages.WorldID),
		lastLocations:  make(map[int32]lastLocation),
		nextWorldID:    1,
	}
}

// Send delivers an event to the global world, blocking until there is room
// in the inbox or the world stops. ctx bounds the wait.
func (g *GlobalWorld) Send(ctx context.Context, event messages.GlobalEvent) error {
	select {
	case <-g.stopped:
		return ErrWorldStopped
	default:
	}
	select {
	case g.inbox <- event:
		return nil
	case <-g.stopped:
		return ErrWorldStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status asks the running global world for a snapshot.
func (g *GlobalWorld) Status(ctx context.Context) (messages.Status, error) {
	reply := make(chan messages.Status, 1)
	if err := g.Send(ctx, messages.StatusRequest{Reply: reply}); err != nil {
		return messages.Status{}, err
	}
	select {
	case status := <-reply:
		return status, nil
	case <-g.stopped:
		return messages.Status{}, ErrWorldStopped
	case <-ctx.Done():
		return messages.Status{}, ctx.Err()
	}
}

// Start handles events one at a time until ctx is done.
func (g *GlobalWorld) Start(ctx context.Context) {
	ticker := time.NewTicker(g.sweepInterval)
	defer ticker.Stop()

	log.Info("Global world started")
	for {
		select {
		case <-ctx.Done():
			g.shutdown()
			close(g.stopped)
			log.Info("Global world stopped")
			return
		case event := <-g.inbox:
			g.handle(ctx, event)
		case <-ticker.C:
			g.sweep(ctx)
		}
	}
}

func (g *GlobalWorld) handle(ctx context.Context, event messages.GlobalEvent) {
	switch e := event.(type) {
	case messages.ConnectionOpened:
		g.handleConnectionOpened(e)
	case messages.ConnectionClosed:
		g.handleConnectionClosed(e)
	case messages.LoginRequest:
		g.handleLoginRequest(e)
	case messages.AccountAuthenticated:
		g.handleAccountAuthenticated(e)
	case messages.UserListRequest:
		g.handleUserListRequest(e)
	case messages.UsersListed:
		g.handleUsersListed(e)
	case messages.SelectUser:
		g.handleSelectUser(ctx, e)
	case messages.UserLoaded:
		g.handleUserLoaded(e)
	case messages.LocalWorldLoaded:
		g.handleLocalWorldLoaded(e)
	case messages.UserSpawnPrepared:
		g.handleUserSpawnPrepared(e)
	case messages.PersistedDataLoaded:
		g.handlePersistedDataLoaded(e)
	case messages.UserSpawned:
		g.handleUserSpawned(e)
	case messages.ReturnToLobby:
		g.handleReturnToLobby(e)
	case messages.UserDespawned:
		g.handleUserDespawned(e)
	case messages.UserStateSaved:
		g.handleUserStateSaved(e)
	case messages.LocalWorldFailed:
		g.handleLocalWorldFailed(e)
	case messages.StatusRequest:
		g.handleStatusRequest(e)
	default:
		log.Warn("Unhandled global event %T", event)
	}
}

func (g *GlobalWorld) handleConnectionOpened(event messages.ConnectionOpened) {
	id := event.Connection.ID()
	if _, ok := g.connections[id]; ok {
		log.Warn("Connection %d opened twice", id)
		return
	}
	g.connections[id] = &connectionState{handle: event.Connection}
}

// handleConnectionClosed releases everything the connection held. Closing an
// unknown connection is a no-op.
func (g *GlobalWorld) handleConnectionClosed(event messages.ConnectionClosed) {
	conn, ok := g.connections[event.ConnectionID]
	if !ok {
		return
	}
	delete(g.connections, event.ConnectionID)

	if conn.ticket != nil {
		if t, ok := g.tickets[*conn.ticket]; ok {
			g.cancelTicket(t)
			metrics.SpawnResults.WithLabelValues("cancelled").Inc()
		}
	}
	if conn.activeUser != 0 {
		if u, ok := g.users[conn.activeUser]; ok && u.state == spawnStateActive {
			g.despawn(u, false)
		}
	}
	log.Debug("Connection %d closed", event.ConnectionID)
}

func (g *GlobalWorld) handleLoginRequest(event messages.LoginRequest) {
	conn, ok := g.connections[event.ConnectionID]
	if !ok {
		return
	}
	if conn.account != nil {
		log.Warn("Connection %d is already logged in", event.ConnectionID)
		return
	}
	err := g.persistence.Submit(workers.AuthenticateRequest{
		ConnectionID: event.ConnectionID,
		AccountName:  event.AccountName,
		Ticket:       event.Ticket,
	})
	if err != nil {
		log.Error("Failed to submit login for connection %d: %v", event.ConnectionID, err)
		conn.handle.Send(messages.LoginRejected{})
	}
}

func (g *GlobalWorld) handleAccountAuthenticated(event messages.AccountAuthenticated) {
	conn, ok := g.connections[event.ConnectionID]
	if !ok {
		return
	}
	if event.Err != nil {
		log.Info("Login failed for connection %d: %v", event.ConnectionID, event.Err)
		conn.handle.Send(messages.LoginRejected{})
		return
	}
	conn.account = event.Account
	conn.setUsers(event.Users)
	log.Info("Account %s logged in on connection %d", event.Account.Name, event.ConnectionID)
	conn.handle.Send(messages.LoginAccepted{AccountID: event.Account.ID, Users: event.Users})
}

func (g *GlobalWorld) handleUserListRequest(event messages.UserListRequest) {
	conn, ok := g.connections[event.ConnectionID]
	if !ok || conn.account == nil {
		return
	}
	err := g.persistence.Submit(workers.ListUsersRequest{ConnectionID: event.ConnectionID, AccountID: conn.account.ID})
	if err != nil {
		log.Error("Failed to submit user list for connection %d: %v", event.ConnectionID, err)
	}
}

func (g *GlobalWorld) handleUsersListed(event messages.UsersListed) {
	conn, ok := g.connections[event.ConnectionID]
	if !ok || conn.account == nil || conn.account.ID != event.AccountID {
		return
	}
	if event.Err != nil {
		log.Error("Failed to list users for connection %d: %v", event.ConnectionID, event.Err)
		return
	}
	conn.setUsers(event.Users)

	list := messages.SGetUserList{Users: make([]messages.UserSummary, 0, len(event.Users))}
	for _, u := range event.Users {
		list.Users = append(list.Users, messages.NewUserSummary(u))
	}
	conn.handle.Send(messages.SendPacket{Packet: list})
}

func (g *GlobalWorld) handleSelectUser(ctx context.Context, event messages.SelectUser) {
	conn, ok := g.connections[event.ConnectionID]
	if !ok {
		return
	}
	if conn.account == nil {
		conn.handle.Send(messages.Disconnect{Reason: ErrNotAuthenticated})
		return
	}
	if conn.ticket != nil {
		g.rejectSelect(conn, messages.ErrorCodeSpawnInProgress, false)
		return
	}
	if conn.activeUser != 0 {
		g.rejectSelect(conn, messages.ErrorCodeAlreadySpawned, false)
		return
	}
	user, ok := conn.users[event.UserID]
	if !ok || user.AccountID != conn.account.ID {
		g.rejectSelect(conn, messages.ErrorCodeNotOwned, true)
		return
	}
	if spawned, ok := g.accountSpawn[conn.account.ID]; ok {
		code := messages.ErrorCodeAlreadySpawned
		if u := g.users[spawned]; spawned == event.UserID && u != nil && u.state < spawnStateActive {
			code = messages.ErrorCodeSpawnInProgress
		}
		g.rejectSelect(conn, code, true)
		return
	}

	zoneID := g.zoneFor(user)
	worldID := g.acquireWorld(ctx, zoneID)

	g.nextTicketSeq++
	t := &spawnTicket{
		id:           uuid.New(),
		seq:          g.nextTicketSeq,
		connectionID: event.ConnectionID,
		userID:       user.ID,
		accountID:    conn.account.ID,
		zoneID:       zoneID,
		worldID:      worldID,
		deadline:     g.now().Add(g.ticketTimeout),
		phase:        phaseLoading,
	}
	g.tickets[t.id] = t
	conn.ticket = &t.id
	g.users[user.ID] = &userState{
		userID:       user.ID,
		accountID:    conn.account.ID,
		connectionID: event.ConnectionID,
		state:        spawnStateSpawningGlobal,
		worldID:      worldID,
	}
	g.accountSpawn[conn.account.ID] = user.ID

	log.Debug("Issued ticket %s for user %d in world %d", t.id, user.ID, worldID)

	if err := g.persistence.Submit(workers.LoadUserRequest{Ticket: t.id, UserID: user.ID}); err != nil {
		log.Error("Failed to submit user load for ticket %s: %v", t.id, err)
		g.revertTicket(t, messages.ErrorCodeUserLoadFailed, true)
	}
}

func (g *GlobalWorld) rejectSelect(conn *connectionState, code messages.ErrorCode, revert bool) {
	metrics.SpawnResults.WithLabelValues("rejected").Inc()
	conn.handle.Send(messages.SelectUserRejected{Code: code, Revert: revert})
}

// zoneFor picks the zone a user spawns in: where it was last despawned, else
// its stored zone, else the default zone.
func (g *GlobalWorld) zoneFor(user *models.User) int32 {
	zoneID := user.Location.ZoneID
	if last, ok := g.lastLocations[user.ID]; ok {
		zoneID = last.location.ZoneID
	}
	if _, ok := g.tables.Zone(zoneID); ok {
		return zoneID
	}
	return g.defaultZoneID
}

func (g *GlobalWorld) handleUserLoaded(event messages.UserLoaded) {
	t, ok := g.tickets[event.Ticket]
	if !ok {
		return
	}
	if event.Err != nil {
		log.Error("Failed to load user for ticket %s: %v", t.id, event.Err)
		g.revertTicket(t, messages.ErrorCodeUserLoadFailed, true)
		return
	}
	user := *event.User
	// The despawn save is asynchronous, so the stored row may be older than
	// what this server last saw.
	if last, ok := g.lastLocations[user.ID]; ok {
		user.Location = last.location
		user.Alive = last.alive
	}
	t.user = &user
	g.maybePrepare(t)
}

func (g *GlobalWorld) handleLocalWorldLoaded(event messages.LocalWorldLoaded) {
	entry, ok := g.worlds[event.WorldID]
	if !ok {
		return
	}
	pending := g.ticketsIn(event.WorldID)

	if event.Err != nil {
		log.Error("Local world %d failed to load zone %d: %v", event.WorldID, entry.zoneID, event.Err)
		g.removeWorld(event.WorldID)
		for _, t := range pending {
			g.revertTicket(t, messages.ErrorCodeZoneLoadFailed, false)
		}
		return
	}

	entry.loaded = true
	log.Info("Local world %d loaded zone %d", event.WorldID, entry.zoneID)
	for _, t := range pending {
		g.maybePrepare(t)
	}
}

// maybePrepare hands the ticket to the local world once both the user
// snapshot and the world are ready.
func (g *GlobalWorld) maybePrepare(t *spawnTicket) {
	if t.phase != phaseLoading || t.user == nil {
		return
	}
	entry, ok := g.worlds[t.worldID]
	if !ok || !entry.loaded {
		return
	}
	err := entry.handle.Send(messages.PrepareUserSpawn{
		Ticket:       t.id,
		ConnectionID: t.connectionID,
		User:         *t.user,
	})
	if err != nil {
		log.Error("Failed to prepare spawn in world %d: %v", t.worldID, err)
		g.revertTicket(t, messages.ErrorCodeRespawnRequired, true)
		return
	}
	t.phase = phaseAwaitingLocalWorld
	if u, ok := g.users[t.userID]; ok {
		u.state = spawnStateAwaitingLocalWorld
	}
}

func (g *GlobalWorld) handleUserSpawnPrepared(event messages.UserSpawnPrepared) {
	t, ok := g.tickets[event.Ticket]
	if !ok || t.worldID != event.WorldID || t.phase != phaseAwaitingLocalWorld {
		if entry, ok := g.worlds[event.WorldID]; ok {
			if err := entry.handle.Send(messages.CancelTicket{Ticket: event.Ticket}); err != nil {
				log.Warn("Failed to cancel ticket %s in world %d: %v", event.Ticket, event.WorldID, err)
			}
		}
		return
	}
	t.entityID = event.EntityID
	t.phase = phasePrepared
	if u, ok := g.users[t.userID]; ok {
		u.entityID = event.EntityID
	}

	if err := g.persistence.Submit(workers.LoadPersistedDataRequest{Ticket: t.id, UserID: t.userID}); err != nil {
		log.Error("Failed to submit persisted data load for ticket %s: %v", t.id, err)
		g.revertTicket(t, messages.ErrorCodeUserLoadFailed, true)
	}
}

func (g *GlobalWorld) handlePersistedDataLoaded(event messages.PersistedDataLoaded) {
	t, ok := g.tickets[event.Ticket]
	if !ok || t.phase != phasePrepared {
		return
	}
	if event.Err != nil {
		log.Error("Failed to load persisted data for ticket %s: %v", t.id, event.Err)
		g.revertTicket(t, messages.ErrorCodeUserLoadFailed, true)
		return
	}
	conn, ok := g.connections[t.connectionID]
	entry, worldOK := g.worlds[t.worldID]
	if !ok || !worldOK {
		g.cancelTicket(t)
		return
	}

	// The local world and the connection must both be ready for
	// C_LOAD_TOPO_FIN before the client sees the login burst.
	err := entry.handle.Send(messages.RegisterConnection{
		ConnectionID: t.connectionID,
		EntityID:     t.entityID,
		Connection:   conn.handle,
	})
	if err == nil {
		err = entry.handle.Send(messages.UserReadyToConnect{Ticket: t.id})
	}
	if err != nil {
		log.Error("Failed to hand ticket %s to world %d: %v", t.id, t.worldID, err)
		g.revertTicket(t, messages.ErrorCodeRespawnRequired, true)
		return
	}
	t.phase = phaseReady

	conn.handle.Send(messages.AttachLocalWorld{World: entry.handle, EntityID: t.entityID})
	for _, p := range g.spawnPackets(t, event.Bundle) {
		conn.handle.Send(messages.SendPacket{Packet: p})
	}
}

// spawnPackets is the login burst that precedes the topology load.
func (g *GlobalWorld) spawnPackets(t *spawnTicket, bundle *models.PersistedBundle) []messages.Packet {
	if bundle == nil {
		bundle = &models.PersistedBundle{}
	}
	user := t.user

	topo := messages.SLoadTopo{ZoneID: t.zoneID}
	if zone, ok := g.tables.Zone(t.zoneID); ok {
		loc := user.Location
		p := zone.Place(loc.ZoneID, staticdata.Point{X: loc.X, Y: loc.Y, Z: loc.Z, Rotation: loc.Rotation})
		topo.X, topo.Y, topo.Z = p.X, p.Y, p.Z
	}

	return []messages.Packet{
		messages.SLogin{
			EntityID: t.entityID,
			UserID:   user.ID,
			UserName: user.Name,
			Level:    user.Level,
			Race:     user.Race,
			Gender:   user.Gender,
			Class:    user.Class,
			Alive:    user.Alive,
		},
		messages.SInven{Items: bundle.Inventory},
		messages.SQuestInfo{Quests: bundle.Quests},
		messages.SFriendList{Friends: bundle.Friends},
		topo,
		messages.SLoadHint{},
	}
}

func (g *GlobalWorld) handleUserSpawned(event messages.UserSpawned) {
	t, ok := g.tickets[event.Ticket]
	if !ok || t.worldID != event.WorldID {
		return
	}
	delete(g.tickets, t.id)

	u, ok := g.users[t.userID]
	if !ok {
		return
	}
	u.state = spawnStateActive
	u.entityID = event.EntityID
	if conn, ok := g.connections[t.connectionID]; ok {
		conn.ticket = nil
		conn.activeUser = t.userID
	}
	metrics.SpawnResults.WithLabelValues("spawned").Inc()
	log.Info("User %d spawned as entity %d in world %d", t.userID, event.EntityID, event.WorldID)
}

func (g *GlobalWorld) handleReturnToLobby(event messages.ReturnToLobby) {
	conn, ok := g.connections[event.ConnectionID]
	if !ok || conn.activeUser == 0 {
		return
	}
	u, ok := g.users[conn.activeUser]
	if !ok || u.state != spawnStateActive {
		return
	}
	g.despawn(u, true)
}

func (g *GlobalWorld) despawn(u *userState, toLobby bool) {
	u.state = spawnStateDespawning
	u.deadline = g.now().Add(g.despawnTimeout)
	u.toLobby = toLobby

	entry, ok := g.worlds[u.worldID]
	if !ok {
		g.finishDespawn(u)
		return
	}
	if err := entry.handle.Send(messages.Despawn{EntityID: u.entityID}); err != nil {
		log.Error("Failed to despawn user %d from world %d: %v", u.userID, u.worldID, err)
		g.finishDespawn(u)
	}
}

func (g *GlobalWorld) handleUserDespawned(event messages.UserDespawned) {
	var u *userState
	for _, candidate := range g.users {
		if candidate.state == spawnStateDespawning && candidate.worldID == event.WorldID && candidate.entityID == event.EntityID {
			u = candidate
			break
		}
	}
	if u == nil {
		return
	}
	if event.Found {
		g.lastLocations[u.userID] = lastLocation{
			location: event.Location,
			alive:    event.Alive,
			expires:  g.now().Add(g.locationTTL),
		}
		saved := g.saver.Submit(workers.SaveUserStateRequest{
			UserID:   u.userID,
			Location: event.Location,
			Alive:    event.Alive,
		})
		if !saved {
			log.Warn("Save queue full, location of user %d not persisted", u.userID)
		}
	}
	g.finishDespawn(u)
}

// handleUserStateSaved drops the cached despawn location once the repository
// holds it. A newer despawn of the same user keeps its own entry.
func (g *GlobalWorld) handleUserStateSaved(event messages.UserStateSaved) {
	last, ok := g.lastLocations[event.UserID]
	if !ok || last.location != event.Location || last.alive != event.Alive {
		return
	}
	delete(g.lastLocations, event.UserID)
}

func (g *GlobalWorld) finishDespawn(u *userState) {
	g.forgetUser(u)
	g.releaseWorld(u.worldID)

	if conn, ok := g.connections[u.connectionID]; ok && conn.activeUser == u.userID {
		conn.activeUser = 0
		if u.toLobby {
			conn.handle.Send(messages.ReturnedToLobby{})
		}
	}
	log.Debug("User %d despawned from world %d", u.userID, u.worldID)
}

func (g *GlobalWorld) forgetUser(u *userState) {
	delete(g.users, u.userID)
	if g.accountSpawn[u.accountID] == u.userID {
		delete(g.accountSpawn, u.accountID)
	}
}

func (g *GlobalWorld) handleLocalWorldFailed(event messages.LocalWorldFailed) {
	log.Error("Local world %d failed: %v", event.WorldID, event.Err)
	g.removeWorld(event.WorldID)

	for _, t := range g.ticketsIn(event.WorldID) {
		g.revertTicket(t, messages.ErrorCodeRespawnRequired, true)
	}
	for _, u := range g.users {
		if u.worldID != event.WorldID {
			continue
		}
		g.forgetUser(u)
		conn, ok := g.connections[u.connectionID]
		if !ok || conn.activeUser != u.userID {
			continue
		}
		conn.activeUser = 0
		conn.handle.Send(messages.SpawnReverted{Code: messages.ErrorCodeRespawnRequired, Retryable: true})
	}
}

// cancelTicket drops a ticket without telling the connection.
func (g *GlobalWorld) cancelTicket(t *spawnTicket) {
	if t.contacted() {
		if entry, ok := g.worlds[t.worldID]; ok {
			if err := entry.handle.Send(messages.CancelTicket{Ticket: t.id}); err != nil {
				log.Warn("Failed to cancel ticket %s in world %d: %v", t.id, t.worldID, err)
			}
		}
	}
	delete(g.tickets, t.id)
	if u, ok := g.users[t.userID]; ok && u.state < spawnStateActive {
		g.forgetUser(u)
	}
	if conn, ok := g.connections[t.connectionID]; ok && conn.ticket != nil && *conn.ticket == t.id {
		conn.ticket = nil
	}
	g.releaseWorld(t.worldID)
}

// revertTicket cancels a ticket and tells the connection why.
func (g *GlobalWorld) revertTicket(t *spawnTicket, code messages.ErrorCode, retryable bool) {
	g.cancelTicket(t)
	metrics.SpawnResults.WithLabelValues("reverted").Inc()
	if conn, ok := g.connections[t.connectionID]; ok {
		conn.handle.Send(messages.SpawnReverted{Code: code, Retryable: retryable})
	}
}

func (g *GlobalWorld) ticketsIn(worldID messages.WorldID) []*spawnTicket {
	var tickets []*spawnTicket
	for _, t := range g.tickets {
		if t.worldID == worldID {
			tickets = append(tickets, t)
		}
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].seq < tickets[j].seq })
	return tickets
}

// acquireWorld returns the world serving zoneID, creating it when there is
// none, and takes a reference on it.
func (g *GlobalWorld) acquireWorld(ctx context.Context, zoneID int32) messages.WorldID {
	if id, ok := g.zoneWorlds[zoneID]; ok {
		entry := g.worlds[id]
		entry.refCount++
		entry.idleAt = time.Time{}
		return id
	}

	id := g.nextWorldID
	g.nextWorldID++
	g.worlds[id] = &worldEntry{
		handle:   g.factory.Create(ctx, id, zoneID),
		zoneID:   zoneID,
		refCount: 1,
	}
	g.zoneWorlds[zoneID] = id
	log.Info("Creating local world %d for zone %d", id, zoneID)
	return id
}

func (g *GlobalWorld) releaseWorld(id messages.WorldID) {
	entry, ok := g.worlds[id]
	if !ok {
		return
	}
	entry.refCount--
	if entry.refCount <= 0 {
		entry.refCount = 0
		entry.idleAt = g.now().Add(g.idleGrace)
	}
}

func (g *GlobalWorld) removeWorld(id messages.WorldID) {
	entry, ok := g.worlds[id]
	if !ok {
		return
	}
	delete(g.worlds, id)
	if g.zoneWorlds[entry.zoneID] == id {
		delete(g.zoneWorlds, entry.zoneID)
	}
}

// sweep expires tickets, despawns and idle worlds.
func (g *GlobalWorld) sweep(ctx context.Context) {
	now := g.now()

	var expired []*spawnTicket
	for _, t := range g.tickets {
		if now.After(t.deadline) {
			expired = append(expired, t)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].seq < expired[j].seq })
	for _, t := range expired {
		log.Warn("Ticket %s for user %d timed out", t.id, t.userID)
		g.revertTicket(t, messages.ErrorCodeTicketTimeout, true)
	}

	for _, u := range g.users {
		if u.state == spawnStateDespawning && now.After(u.deadline) {
			log.Warn("Despawn of user %d timed out", u.userID)
			g.finishDespawn(u)
		}
	}

	for userID, last := range g.lastLocations {
		if now.After(last.expires) {
			delete(g.lastLocations, userID)
		}
	}

	for id, entry := range g.worlds {
		if entry.refCount > 0 || entry.idleAt.IsZero() || now.Before(entry.idleAt) {
			continue
		}
		if err := entry.handle.Send(messages.Shutdown{}); err != nil {
			log.Warn("Failed to shut down local world %d: %v", id, err)
		}
		g.removeWorld(id)
		log.Info("Local world %d shut down after idling", id)
	}
}

func (g *GlobalWorld) shutdown() {
	for id, entry := range g.worlds {
		if err := entry.handle.Send(messages.Shutdown{}); err != nil {
			log.Debug("Local world %d already stopped: %v", id, err)
		}
	}
}

func (g *GlobalWorld) handleStatusRequest(event messages.StatusRequest) {
	status := messages.Status{
		Timestamp:   g.now(),
		Connections: len(g.connections),
		Tickets:     len(g.tickets),
		Users:       make([]messages.UserStatus, 0, len(g.users)),
		Worlds:      make([]messages.WorldStatus, 0, len(g.worlds)),
	}
	for _, u := range g.users {
		status.Users = append(status.Users, messages.UserStatus{
			UserID:       u.userID,
			AccountID:    u.accountID,
			ConnectionID: u.connectionID,
			State:        u.state.String(),
			WorldID:      u.worldID,
			EntityID:     u.entityID,
		})
	}
	sort.Slice(status.Users, func(i, j int) bool { return status.Users[i].UserID < status.Users[j].UserID })

	for id, entry := range g.worlds {
		ws := messages.WorldStatus{
			WorldID:  id,
			ZoneID:   entry.zoneID,
			Loaded:   entry.loaded,
			RefCount: entry.refCount,
		}
		if !entry.idleAt.IsZero() {
			idleAt := entry.idleAt
			ws.IdleAt = &idleAt
		}
		status.Worlds = append(status.Worlds, ws)
	}
	sort.Slice(status.Worlds, func(i, j int) bool { return status.Worlds[i].WorldID < status.Worlds[j].WorldID })

	select {
	case event.Reply <- status:
	default:
		log.Warn("Dropped status reply")
	}
}
