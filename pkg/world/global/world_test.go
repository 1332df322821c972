package global

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cbodonnell/worldgate/pkg/messages"
	"github.com/cbodonnell/worldgate/pkg/repositories/models"
	"github.com/cbodonnell/worldgate/pkg/staticdata"
	"github.com/cbodonnell/worldgate/pkg/workers"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWorld struct {
	id      messages.WorldID
	zoneID  int32
	events  []messages.LocalEvent
	stopped bool
}

func (w *fakeWorld) ID() messages.WorldID { return w.id }
func (w *fakeWorld) ZoneID() int32        { return w.zoneID }

func (w *fakeWorld) Send(event messages.LocalEvent) error {
	if w.stopped {
		return errors.New("stopped")
	}
	w.events = append(w.events, event)
	return nil
}

type fakeFactory struct {
	worlds []*fakeWorld
}

func (f *fakeFactory) Create(ctx context.Context, worldID messages.WorldID, zoneID int32) messages.LocalWorldHandle {
	w := &fakeWorld{id: worldID, zoneID: zoneID}
	f.worlds = append(f.worlds, w)
	return w
}

type fakePersistence struct {
	requests []workers.PersistenceRequest
	err      error
}

func (p *fakePersistence) Submit(request workers.PersistenceRequest) error {
	if p.err != nil {
		return p.err
	}
	p.requests = append(p.requests, request)
	return nil
}

type fakeSaver struct {
	requests []workers.SaveUserStateRequest
}

func (s *fakeSaver) Submit(request workers.SaveUserStateRequest) bool {
	s.requests = append(s.requests, request)
	return true
}

type fakeConnection struct {
	id     messages.ConnectionID
	events []messages.ConnectionEvent
}

func (c *fakeConnection) ID() messages.ConnectionID { return c.id }

func (c *fakeConnection) Send(event messages.ConnectionEvent) bool {
	c.events = append(c.events, event)
	return true
}

func (c *fakeConnection) take() []messages.ConnectionEvent {
	events := c.events
	c.events = nil
	return events
}

func filter[T any, E any](events []E) []T {
	var out []T
	for _, e := range events {
		if v, ok := any(e).(T); ok {
			out = append(out, v)
		}
	}
	return out
}

type harness struct {
	g           *GlobalWorld
	factory     *fakeFactory
	persistence *fakePersistence
	saver       *fakeSaver
	clock       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tables, err := staticdata.Default()
	require.NoError(t, err)

	h := &harness{
		factory:     &fakeFactory{},
		persistence: &fakePersistence{},
		saver:       &fakeSaver{},
		clock:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	h.g = NewGlobalWorld(NewGlobalWorldOptions{
		Tables:        tables,
		Factory:       h.factory,
		Persistence:   h.persistence,
		Saver:         h.saver,
		DefaultZoneID: 5,
	})
	h.g.now = func() time.Time { return h.clock }
	return h
}

func (h *harness) send(event messages.GlobalEvent) {
	h.g.handle(context.Background(), event)
}

func (h *harness) advance(d time.Duration) {
	h.clock = h.clock.Add(d)
	h.g.sweep(context.Background())
}

var (
	testAccount = &models.Account{ID: 10, Name: "alice"}
	testUsers   = []*models.User{
		{ID: 1, AccountID: 10, Name: "Elin", Level: 3, Alive: true, Location: models.Location{ZoneID: 5, X: 16000, Y: 1000, Z: 5}},
		{ID: 2, AccountID: 10, Name: "Castanic", Alive: true, Location: models.Location{ZoneID: 7}},
	}
)

func (h *harness) login(t *testing.T, id messages.ConnectionID) *fakeConnection {
	t.Helper()
	conn := &fakeConnection{id: id}
	h.send(messages.ConnectionOpened{Connection: conn})
	h.send(messages.AccountAuthenticated{ConnectionID: id, Account: testAccount, Users: testUsers})
	require.Equal(t, []messages.ConnectionEvent{messages.LoginAccepted{AccountID: testAccount.ID, Users: testUsers}}, conn.take())
	return conn
}

// lastRequest returns the most recent persistence request of type T.
func lastRequest[T workers.PersistenceRequest](t *testing.T, h *harness) T {
	t.Helper()
	requests := filter[T](h.persistence.requests)
	require.NotEmpty(t, requests)
	return requests[len(requests)-1]
}

// spawn runs the whole spawn sequence for userID and returns the ticket.
func (h *harness) spawn(t *testing.T, conn *fakeConnection, userID int32) (uuid.UUID, *fakeWorld, messages.EntityID) {
	t.Helper()
	h.send(messages.SelectUser{ConnectionID: conn.id, UserID: userID})
	load := lastRequest[workers.LoadUserRequest](t, h)
	require.Equal(t, userID, load.UserID)

	world := h.factory.worlds[len(h.factory.worlds)-1]
	user := *testUsers[userID-1]
	h.send(messages.UserLoaded{Ticket: load.Ticket, User: &user})
	h.send(messages.LocalWorldLoaded{WorldID: world.id})

	const entityID = messages.EntityID(100)
	h.send(messages.UserSpawnPrepared{Ticket: load.Ticket, WorldID: world.id, EntityID: entityID})
	data := lastRequest[workers.LoadPersistedDataRequest](t, h)
	require.Equal(t, load.Ticket, data.Ticket)
	h.send(messages.PersistedDataLoaded{Ticket: load.Ticket, Bundle: &models.PersistedBundle{Quests: []int32{9}}})
	h.send(messages.UserSpawned{Ticket: load.Ticket, WorldID: world.id, EntityID: entityID})
	return load.Ticket, world, entityID
}

func (h *harness) status(t *testing.T) messages.Status {
	t.Helper()
	reply := make(chan messages.Status, 1)
	h.send(messages.StatusRequest{Reply: reply})
	select {
	case s := <-reply:
		return s
	default:
		t.Fatal("no status reply")
		return messages.Status{}
	}
}

func TestGlobalWorld_Login(t *testing.T) {
	h := newHarness(t)
	conn := &fakeConnection{id: 1}
	h.send(messages.ConnectionOpened{Connection: conn})

	h.send(messages.LoginRequest{ConnectionID: 1, AccountName: "alice", Ticket: []byte("t")})
	assert.Equal(t, workers.AuthenticateRequest{ConnectionID: 1, AccountName: "alice", Ticket: []byte("t")}, lastRequest[workers.AuthenticateRequest](t, h))

	h.send(messages.AccountAuthenticated{ConnectionID: 1, Err: errors.New("bad ticket")})
	assert.Equal(t, []messages.ConnectionEvent{messages.LoginRejected{}}, conn.take())

	h.send(messages.AccountAuthenticated{ConnectionID: 1, Account: testAccount, Users: testUsers})
	assert.Equal(t, []messages.ConnectionEvent{messages.LoginAccepted{AccountID: 10, Users: testUsers}}, conn.take())

	h.send(messages.UserListRequest{ConnectionID: 1})
	assert.Equal(t, workers.ListUsersRequest{ConnectionID: 1, AccountID: 10}, lastRequest[workers.ListUsersRequest](t, h))
	h.send(messages.UsersListed{ConnectionID: 1, AccountID: 10, Users: testUsers[:1]})
	packets := filter[messages.SendPacket](conn.take())
	require.Len(t, packets, 1)
	assert.Equal(t, messages.SGetUserList{Users: []messages.UserSummary{messages.NewUserSummary(testUsers[0])}}, packets[0].Packet)

	// The refreshed list no longer contains user 2.
	h.send(messages.SelectUser{ConnectionID: 1, UserID: 2})
	assert.Equal(t, []messages.ConnectionEvent{messages.SelectUserRejected{Code: messages.ErrorCodeNotOwned, Revert: true}}, conn.take())
}

func TestGlobalWorld_LoginSubmitFails(t *testing.T) {
	h := newHarness(t)
	h.persistence.err = workers.ErrPersistenceBusy
	conn := &fakeConnection{id: 1}
	h.send(messages.ConnectionOpened{Connection: conn})

	h.send(messages.LoginRequest{ConnectionID: 1, AccountName: "alice"})
	assert.Equal(t, []messages.ConnectionEvent{messages.LoginRejected{}}, conn.take())
}

func TestGlobalWorld_SelectBeforeLogin(t *testing.T) {
	h := newHarness(t)
	conn := &fakeConnection{id: 1}
	h.send(messages.ConnectionOpened{Connection: conn})

	h.send(messages.SelectUser{ConnectionID: 1, UserID: 1})
	assert.Equal(t, []messages.ConnectionEvent{messages.Disconnect{Reason: ErrNotAuthenticated}}, conn.take())
	assert.Empty(t, h.persistence.requests)
}

func TestGlobalWorld_SpawnSequence(t *testing.T) {
	h := newHarness(t)
	conn := h.login(t, 1)

	h.send(messages.SelectUser{ConnectionID: 1, UserID: 1})
	require.Len(t, h.factory.worlds, 1)
	world := h.factory.worlds[0]
	assert.Equal(t, int32(5), world.zoneID)
	load := lastRequest[workers.LoadUserRequest](t, h)

	// The snapshot arrives before the world is loaded.
	user := *testUsers[0]
	h.send(messages.UserLoaded{Ticket: load.Ticket, User: &user})
	assert.Empty(t, world.events)

	h.send(messages.LocalWorldLoaded{WorldID: world.id})
	require.Equal(t, []messages.LocalEvent{messages.PrepareUserSpawn{Ticket: load.Ticket, ConnectionID: 1, User: user}}, world.events)
	world.events = nil

	h.send(messages.UserSpawnPrepared{Ticket: load.Ticket, WorldID: world.id, EntityID: 42})
	h.send(messages.PersistedDataLoaded{Ticket: load.Ticket, Bundle: &models.PersistedBundle{Friends: []string{"bob"}}})

	events := conn.take()
	require.NotEmpty(t, events)
	assert.Equal(t, messages.AttachLocalWorld{World: world, EntityID: 42}, events[0])
	packets := filter[messages.SendPacket](events)
	require.Len(t, packets, 6)
	names := make([]string, 0, len(packets))
	for _, p := range packets {
		names = append(names, p.Packet.Name())
	}
	assert.Equal(t, []string{"S_LOGIN", "S_INVEN", "S_QUEST_INFO", "S_FRIEND_LIST", "S_LOAD_TOPO", "S_LOAD_HINT"}, names)
	assert.Equal(t, messages.SFriendList{Friends: []string{"bob"}}, packets[3].Packet)
	assert.Equal(t, messages.SLoadTopo{ZoneID: 5, X: 16000, Y: 1000, Z: 5}, packets[4].Packet)
	assert.Equal(t, []messages.AttachLocalWorld{{World: world, EntityID: 42}}, filter[messages.AttachLocalWorld](events))

	assert.Equal(t, []messages.LocalEvent{
		messages.RegisterConnection{ConnectionID: 1, EntityID: 42, Connection: conn},
		messages.UserReadyToConnect{Ticket: load.Ticket},
	}, world.events)

	h.send(messages.UserSpawned{Ticket: load.Ticket, WorldID: world.id, EntityID: 42})
	status := h.status(t)
	assert.Equal(t, 0, status.Tickets)
	assert.Equal(t, []messages.UserStatus{{UserID: 1, AccountID: 10, ConnectionID: 1, State: "active", WorldID: world.id, EntityID: 42}}, status.Users)
	assert.Equal(t, []messages.WorldStatus{{WorldID: world.id, ZoneID: 5, Loaded: true, RefCount: 1}}, status.Worlds)
}

func TestGlobalWorld_UnknownZoneUsesDefault(t *testing.T) {
	h := newHarness(t)
	conn := &fakeConnection{id: 1}
	h.send(messages.ConnectionOpened{Connection: conn})
	h.send(messages.AccountAuthenticated{ConnectionID: 1, Account: testAccount, Users: []*models.User{{ID: 3, AccountID: 10, Location: models.Location{ZoneID: 999}}}})

	h.send(messages.SelectUser{ConnectionID: 1, UserID: 3})
	require.Len(t, h.factory.worlds, 1)
	assert.Equal(t, int32(5), h.factory.worlds[0].zoneID)
}

func TestGlobalWorld_DoubleSelect(t *testing.T) {
	tests := []struct {
		name       string
		spawned    bool
		connection messages.ConnectionID
		userID     int32
		want       messages.SelectUserRejected
	}{
		{
			name:       "same connection while spawning",
			connection: 1,
			userID:     1,
			want:       messages.SelectUserRejected{Code: messages.ErrorCodeSpawnInProgress},
		},
		{
			name:       "same connection while in world",
			spawned:    true,
			connection: 1,
			userID:     2,
			want:       messages.SelectUserRejected{Code: messages.ErrorCodeAlreadySpawned},
		},
		{
			name:       "other connection same user while spawning",
			connection: 2,
			userID:     1,
			want:       messages.SelectUserRejected{Code: messages.ErrorCodeSpawnInProgress, Revert: true},
		},
		{
			name:       "other connection other user while spawning",
			connection: 2,
			userID:     2,
			want:       messages.SelectUserRejected{Code: messages.ErrorCodeAlreadySpawned, Revert: true},
		},
		{
			name:       "other connection while in world",
			spawned:    true,
			connection: 2,
			userID:     1,
			want:       messages.SelectUserRejected{Code: messages.ErrorCodeAlreadySpawned, Revert: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			first := h.login(t, 1)
			second := h.login(t, 2)

			if tt.spawned {
				h.spawn(t, first, 1)
			} else {
				h.send(messages.SelectUser{ConnectionID: 1, UserID: 1})
			}
			first.take()
			requests := len(h.persistence.requests)

			h.send(messages.SelectUser{ConnectionID: tt.connection, UserID: tt.userID})

			conn := first
			if tt.connection == 2 {
				conn = second
			}
			assert.Equal(t, []messages.ConnectionEvent{tt.want}, conn.take())
			assert.Len(t, h.persistence.requests, requests)
			assert.Len(t, h.factory.worlds, 1)
			assert.Len(t, h.status(t).Users, 1)
		})
	}
}

func TestGlobalWorld_TicketTimeout(t *testing.T) {
	tests := []struct {
		name       string
		contact    bool
		wantCancel bool
	}{
		{name: "before the world was contacted"},
		{name: "after the world was contacted", contact: true, wantCancel: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			conn := h.login(t, 1)

			h.send(messages.SelectUser{ConnectionID: 1, UserID: 1})
			load := lastRequest[workers.LoadUserRequest](t, h)
			world := h.factory.worlds[0]
			if tt.contact {
				user := *testUsers[0]
				h.send(messages.UserLoaded{Ticket: load.Ticket, User: &user})
				h.send(messages.LocalWorldLoaded{WorldID: world.id})
			}
			world.events = nil

			h.advance(DefaultTicketTimeout / 2)
			assert.Empty(t, conn.events)

			h.advance(DefaultTicketTimeout)
			assert.Equal(t, []messages.ConnectionEvent{messages.SpawnReverted{Code: messages.ErrorCodeTicketTimeout, Retryable: true}}, conn.take())
			if tt.wantCancel {
				assert.Equal(t, []messages.LocalEvent{messages.CancelTicket{Ticket: load.Ticket}}, world.events)
			} else {
				assert.Empty(t, world.events)
			}

			status := h.status(t)
			assert.Empty(t, status.Users)
			assert.Equal(t, 0, status.Tickets)
			require.Len(t, status.Worlds, 1)
			assert.Equal(t, 0, status.Worlds[0].RefCount)
			assert.NotNil(t, status.Worlds[0].IdleAt)

			// Late results for the expired ticket are ignored and the user
			// can be selected again.
			h.send(messages.UserSpawnPrepared{Ticket: load.Ticket, WorldID: world.id, EntityID: 7})
			h.send(messages.SelectUser{ConnectionID: 1, UserID: 1})
			assert.Empty(t, conn.take())
			assert.Len(t, h.status(t).Users, 1)
		})
	}
}

func TestGlobalWorld_PreparedForUnknownTicket(t *testing.T) {
	h := newHarness(t)
	h.login(t, 1)
	h.send(messages.SelectUser{ConnectionID: 1, UserID: 1})
	world := h.factory.worlds[0]

	stray := uuid.New()
	h.send(messages.UserSpawnPrepared{Ticket: stray, WorldID: world.id, EntityID: 3})
	assert.Equal(t, []messages.LocalEvent{messages.CancelTicket{Ticket: stray}}, world.events)
}

func TestGlobalWorld_CloseDuringSpawn(t *testing.T) {
	h := newHarness(t)
	h.login(t, 1)

	h.send(messages.SelectUser{ConnectionID: 1, UserID: 1})
	load := lastRequest[workers.LoadUserRequest](t, h)
	world := h.factory.worlds[0]
	user := *testUsers[0]
	h.send(messages.UserLoaded{Ticket: load.Ticket, User: &user})
	h.send(messages.LocalWorldLoaded{WorldID: world.id})
	world.events = nil

	h.send(messages.ConnectionClosed{ConnectionID: 1})
	h.send(messages.ConnectionClosed{ConnectionID: 1})
	assert.Equal(t, []messages.LocalEvent{messages.CancelTicket{Ticket: load.Ticket}}, world.events)

	status := h.status(t)
	assert.Equal(t, 0, status.Connections)
	assert.Equal(t, 0, status.Tickets)
	assert.Empty(t, status.Users)
	assert.Equal(t, 0, status.Worlds[0].RefCount)

	// Another connection on the same account can spawn right away.
	other := h.login(t, 2)
	h.send(messages.SelectUser{ConnectionID: 2, UserID: 1})
	assert.Empty(t, other.take())
}

func TestGlobalWorld_CloseInWorld(t *testing.T) {
	h := newHarness(t)
	conn := h.login(t, 1)
	_, world, entityID := h.spawn(t, conn, 1)
	world.events = nil

	h.send(messages.ConnectionClosed{ConnectionID: 1})
	assert.Equal(t, []messages.LocalEvent{messages.Despawn{EntityID: entityID}}, world.events)
	assert.Equal(t, "despawning", h.status(t).Users[0].State)

	final := models.Location{ZoneID: 5, X: 17000, Y: 2000, Z: 9, Rotation: 12}
	h.send(messages.UserDespawned{WorldID: world.id, EntityID: entityID, Found: true, Location: final, Alive: false})
	assert.Equal(t, []workers.SaveUserStateRequest{{UserID: 1, Location: final, Alive: false}}, h.saver.requests)

	status := h.status(t)
	assert.Empty(t, status.Users)
	assert.Equal(t, 0, status.Worlds[0].RefCount)

	// The next spawn uses the despawn location even if the stored row is stale.
	other := h.login(t, 2)
	h.send(messages.SelectUser{ConnectionID: 2, UserID: 1})
	load := lastRequest[workers.LoadUserRequest](t, h)
	stale := *testUsers[0]
	h.send(messages.UserLoaded{Ticket: load.Ticket, User: &stale})
	prepares := filter[messages.PrepareUserSpawn](world.events)
	require.Len(t, prepares, 1)
	assert.Equal(t, final, prepares[0].User.Location)
	assert.False(t, prepares[0].User.Alive)
	assert.Empty(t, other.take())
}

func TestGlobalWorld_DespawnTimeout(t *testing.T) {
	h := newHarness(t)
	conn := h.login(t, 1)
	h.spawn(t, conn, 1)

	h.send(messages.ConnectionClosed{ConnectionID: 1})
	h.advance(DefaultDespawnTimeout + time.Second)

	assert.Empty(t, h.status(t).Users)
	assert.Empty(t, h.saver.requests)
}

func TestGlobalWorld_ReturnToLobby(t *testing.T) {
	h := newHarness(t)
	conn := h.login(t, 1)
	_, world, entityID := h.spawn(t, conn, 1)
	conn.take()
	world.events = nil

	h.send(messages.ReturnToLobby{ConnectionID: 1})
	assert.Equal(t, []messages.LocalEvent{messages.Despawn{EntityID: entityID}}, world.events)
	assert.Empty(t, conn.take())

	h.send(messages.UserDespawned{WorldID: world.id, EntityID: entityID, Found: true, Location: models.Location{ZoneID: 5}})
	assert.Equal(t, []messages.ConnectionEvent{messages.ReturnedToLobby{}}, conn.take())

	// The same connection can pick another character.
	h.send(messages.SelectUser{ConnectionID: 1, UserID: 2})
	assert.Empty(t, conn.take())
	assert.Len(t, h.factory.worlds, 2)
}

func TestGlobalWorld_IdleWorldTeardown(t *testing.T) {
	h := newHarness(t)
	conn := h.login(t, 1)
	_, world, entityID := h.spawn(t, conn, 1)

	h.send(messages.ReturnToLobby{ConnectionID: 1})
	h.send(messages.UserDespawned{WorldID: world.id, EntityID: entityID, Found: true, Location: models.Location{ZoneID: 5}})
	world.events = nil

	h.advance(DefaultIdleGrace - time.Second)
	assert.Empty(t, world.events)
	assert.Len(t, h.status(t).Worlds, 1)

	// A new reference inside the grace period keeps the world.
	h.send(messages.SelectUser{ConnectionID: 1, UserID: 1})
	h.advance(2 * time.Second)
	assert.Empty(t, world.events)
	require.Len(t, h.factory.worlds, 1)

	h.send(messages.ConnectionClosed{ConnectionID: 1})
	h.advance(DefaultIdleGrace + time.Second)
	assert.Equal(t, []messages.LocalEvent{messages.Shutdown{}}, world.events)
	assert.Empty(t, h.status(t).Worlds)

	// The zone gets a fresh world afterwards.
	h.login(t, 2)
	h.send(messages.SelectUser{ConnectionID: 2, UserID: 1})
	require.Len(t, h.factory.worlds, 2)
	assert.NotEqual(t, world.id, h.factory.worlds[1].id)
}

func TestGlobalWorld_LocalWorldLoadFailed(t *testing.T) {
	h := newHarness(t)
	conn := h.login(t, 1)
	h.send(messages.SelectUser{ConnectionID: 1, UserID: 1})
	world := h.factory.worlds[0]

	h.send(messages.LocalWorldLoaded{WorldID: world.id, Err: errors.New("no such zone")})
	assert.Equal(t, []messages.ConnectionEvent{messages.SpawnReverted{Code: messages.ErrorCodeZoneLoadFailed}}, conn.take())

	status := h.status(t)
	assert.Empty(t, status.Worlds)
	assert.Empty(t, status.Users)

	h.send(messages.SelectUser{ConnectionID: 1, UserID: 1})
	assert.Len(t, h.factory.worlds, 2)
}

func TestGlobalWorld_LocalWorldFailed(t *testing.T) {
	h := newHarness(t)
	first := h.login(t, 1)
	_, world, _ := h.spawn(t, first, 1)
	first.take()

	h.send(messages.LocalWorldFailed{WorldID: world.id, Err: errors.New("boom"), Connections: []messages.ConnectionID{1}})
	assert.Equal(t, []messages.ConnectionEvent{messages.SpawnReverted{Code: messages.ErrorCodeRespawnRequired, Retryable: true}}, first.take())

	status := h.status(t)
	assert.Empty(t, status.Users)
	assert.Empty(t, status.Worlds)
}

func TestGlobalWorld_StatusWhileRunning(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.g.Start(ctx)

	require.NoError(t, h.g.Send(ctx, messages.ConnectionOpened{Connection: &fakeConnection{id: 9}}))

	statusCtx, statusCancel := context.WithTimeout(ctx, time.Second)
	defer statusCancel()
	status, err := h.g.Status(statusCtx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Connections)
}

// despawnAt spawns user 1 on a new connection, closes it and reports final
// as the despawn location.
func (h *harness) despawnAt(t *testing.T, final models.Location) {
	t.Helper()
	conn := h.login(t, 1)
	_, world, entityID := h.spawn(t, conn, 1)
	h.send(messages.ConnectionClosed{ConnectionID: 1})
	h.send(messages.UserDespawned{WorldID: world.id, EntityID: entityID, Found: true, Location: final, Alive: true})
	require.Len(t, h.saver.requests, 1)
	require.Contains(t, h.g.lastLocations, int32(1))
}

func TestGlobalWorld_SavedLocationIsForgotten(t *testing.T) {
	h := newHarness(t)
	final := models.Location{ZoneID: 5, X: 17000, Y: 2000, Z: 9}
	h.despawnAt(t, final)

	// A report for another location belongs to an older despawn.
	h.send(messages.UserStateSaved{UserID: 1, Location: models.Location{ZoneID: 5, X: 1}, Alive: true})
	assert.Contains(t, h.g.lastLocations, int32(1))

	h.send(messages.UserStateSaved{UserID: 1, Location: final, Alive: true})
	assert.NotContains(t, h.g.lastLocations, int32(1))

	// The stored row is used again.
	h.login(t, 2)
	h.send(messages.SelectUser{ConnectionID: 2, UserID: 1})
	load := lastRequest[workers.LoadUserRequest](t, h)
	stored := *testUsers[0]
	h.send(messages.UserLoaded{Ticket: load.Ticket, User: &stored})
	prepares := filter[messages.PrepareUserSpawn](h.factory.worlds[0].events)
	require.NotEmpty(t, prepares)
	assert.Equal(t, stored.Location, prepares[len(prepares)-1].User.Location)
}

func TestGlobalWorld_UnsavedLocationExpires(t *testing.T) {
	h := newHarness(t)
	h.despawnAt(t, models.Location{ZoneID: 5, X: 17000, Y: 2000, Z: 9})

	h.advance(time.Minute)
	assert.Contains(t, h.g.lastLocations, int32(1))

	h.advance(DefaultLocationTTL)
	assert.Empty(t, h.g.lastLocations)
}

func TestGlobalWorld_SendAfterStop(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.g.Start(ctx)
		close(done)
	}()
	cancel()
	<-done

	// Even without a deadline, sends fail once the world is gone.
	err := h.g.Send(context.Background(), messages.ConnectionClosed{ConnectionID: 1})
	assert.ErrorIs(t, err, ErrWorldStopped)
	_, err = h.g.Status(context.Background())
	assert.ErrorIs(t, err, ErrWorldStopped)
}
