package network

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/cbodonnell/worldgate/pkg/client"
	"github.com/cbodonnell/worldgate/pkg/messages"
	"github.com/cbodonnell/worldgate/pkg/repositories/models"
	"github.com/cbodonnell/worldgate/pkg/staticdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 2 * time.Second

type chanSender chan messages.GlobalEvent

func (c chanSender) Send(ctx context.Context, event messages.GlobalEvent) error {
	select {
	case c <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func expectEvent[T messages.GlobalEvent](t *testing.T, events chanSender) T {
	t.Helper()
	select {
	case event := <-events:
		e, ok := event.(T)
		require.True(t, ok, "unexpected event %T", event)
		return e
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for global event")
	}
	var zero T
	return zero
}

type fakeWorld struct {
	events chan messages.LocalEvent
}

func (w *fakeWorld) ID() messages.WorldID { return 1 }
func (w *fakeWorld) ZoneID() int32        { return 5 }

func (w *fakeWorld) Send(event messages.LocalEvent) error {
	w.events <- event
	return nil
}

type connectionHarness struct {
	conn   *Connection
	client *client.Client
	global chanSender
	tables *staticdata.Tables
}

func newConnectionHarness(t *testing.T, opts ConnectionOptions) *connectionHarness {
	t.Helper()
	tables, err := staticdata.Default()
	require.NoError(t, err)

	serverConn, clientConn := net.Pipe()
	global := make(chanSender, 16)
	conn := NewConnection(NewConnectionOptions{
		ID:      7,
		Conn:    serverConn,
		Global:  global,
		Tables:  tables,
		Options: opts,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go conn.Run(ctx)
	t.Cleanup(func() {
		cancel()
		clientConn.Close()
		<-conn.Done()
	})

	c, err := client.New(ctx, clientConn, tables)
	require.NoError(t, err)

	opened := expectEvent[messages.ConnectionOpened](t, global)
	assert.Equal(t, messages.ConnectionID(7), opened.Connection.ID())

	return &connectionHarness{conn: conn, client: c, global: global, tables: tables}
}

func (h *connectionHarness) login(t *testing.T) {
	t.Helper()
	require.NoError(t, h.client.Send(messages.CLoginArbiter{AccountName: "alice", Ticket: []byte{1, 2, 3}}))
	login := expectEvent[messages.LoginRequest](t, h.global)
	assert.Equal(t, messages.LoginRequest{ConnectionID: 7, AccountName: "alice", Ticket: []byte{1, 2, 3}}, login)

	users := []*models.User{{ID: 1, Name: "Elin", Level: 60}}
	require.True(t, h.conn.Send(messages.LoginAccepted{AccountID: 10, Users: users}))

	p, err := h.client.Expect("S_LOGIN_ARBITER", testTimeout)
	require.NoError(t, err)
	assert.True(t, p.(*messages.SLoginArbiter).Success)
	p, err = h.client.Expect("S_GET_USER_LIST", testTimeout)
	require.NoError(t, err)
	assert.Equal(t, []messages.UserSummary{messages.NewUserSummary(users[0])}, p.(*messages.SGetUserList).Users)
}

func (h *connectionHarness) waitClosed(t *testing.T) error {
	t.Helper()
	select {
	case <-h.conn.Done():
	case <-time.After(testTimeout):
		t.Fatal("connection did not close")
	}
	expectEvent[messages.ConnectionClosed](t, h.global)
	return h.conn.Reason()
}

func (h *connectionHarness) systemMessage(t *testing.T, name string) uint16 {
	t.Helper()
	id, ok := h.tables.SystemMessageID(name)
	require.True(t, ok)
	return id
}

func TestConnection_Login(t *testing.T) {
	h := newConnectionHarness(t, ConnectionOptions{})
	h.login(t)
}

func TestConnection_LoginRejected(t *testing.T) {
	h := newConnectionHarness(t, ConnectionOptions{})

	require.NoError(t, h.client.Send(messages.CLoginArbiter{AccountName: "alice"}))
	expectEvent[messages.LoginRequest](t, h.global)
	h.conn.Send(messages.LoginRejected{})

	p, err := h.client.Expect("S_LOGIN_ARBITER", testTimeout)
	require.NoError(t, err)
	assert.False(t, p.(*messages.SLoginArbiter).Success)
	p, err = h.client.Expect("S_SYSTEM_MESSAGE", testTimeout)
	require.NoError(t, err)
	assert.Equal(t, h.systemMessage(t, "SMT_LOGIN_FAILED"), p.(*messages.SSystemMessage).MessageID)

	// The connection stays open and accepts another attempt.
	require.NoError(t, h.client.Send(messages.CLoginArbiter{AccountName: "alice"}))
	expectEvent[messages.LoginRequest](t, h.global)
}

func TestConnection_ProtocolViolation(t *testing.T) {
	tests := []struct {
		name string
		opts ConnectionOptions
		send func(c *client.Client) error
	}{
		{
			name: "select user before login",
			send: func(c *client.Client) error {
				return c.Send(messages.CSelectUser{UserID: 1})
			},
		},
		{
			name: "load topology before spawning",
			send: func(c *client.Client) error {
				return c.Send(messages.CLoadTopoFin{})
			},
		},
		{
			name: "second login while pending",
			send: func(c *client.Client) error {
				if err := c.Send(messages.CLoginArbiter{AccountName: "a"}); err != nil {
					return err
				}
				return c.Send(messages.CLoginArbiter{AccountName: "a"})
			},
		},
		{
			name: "bad integrity sequence",
			send: func(c *client.Client) error {
				return c.SendRaw("C_PLAYER_LOCATION", make([]byte, 4+24))
			},
		},
		{
			name: "truncated payload",
			send: func(c *client.Client) error {
				return c.SendRaw("C_SELECT_USER", []byte{1})
			},
		},
		{
			name: "record flood",
			opts: ConnectionOptions{RecordRate: 1, RecordBurst: 1},
			send: func(c *client.Client) error {
				if err := c.Send(messages.CPong{}); err != nil {
					return err
				}
				return c.Send(messages.CPong{})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newConnectionHarness(t, tt.opts)
			require.NoError(t, tt.send(h.client))

			// A login request may be forwarded before the violation.
			select {
			case <-h.conn.Done():
			case <-time.After(testTimeout):
				t.Fatal("connection did not close")
			}
			for event := range h.global {
				if _, ok := event.(messages.ConnectionClosed); ok {
					break
				}
			}
			assert.ErrorIs(t, h.conn.Reason(), ErrProtocolViolation)
		})
	}
}

func TestConnection_Disconnect(t *testing.T) {
	h := newConnectionHarness(t, ConnectionOptions{})
	h.conn.Send(messages.Disconnect{Reason: assert.AnError})

	err := h.waitClosed(t)
	assert.ErrorIs(t, err, ErrProtocolViolation)
	assert.False(t, h.conn.Send(messages.SendPacket{Packet: messages.SPing{}}))
}

func TestConnection_SpawnSequence(t *testing.T) {
	h := newConnectionHarness(t, ConnectionOptions{})
	h.login(t)

	require.NoError(t, h.client.Send(messages.CSelectUser{UserID: 1}))
	assert.Equal(t, messages.SelectUser{ConnectionID: 7, UserID: 1}, expectEvent[messages.SelectUser](t, h.global))

	world := &fakeWorld{events: make(chan messages.LocalEvent, 8)}
	h.conn.Send(messages.AttachLocalWorld{World: world, EntityID: 42})
	h.conn.Send(messages.SendPacket{Packet: messages.SLoadHint{}})
	_, err := h.client.Expect("S_LOAD_HINT", testTimeout)
	require.NoError(t, err)

	require.NoError(t, h.client.Send(messages.CLoadTopoFin{}))
	assert.Equal(t, messages.LoadTopologyFinished{ConnectionID: 7, EntityID: 42}, <-world.events)

	h.conn.Send(messages.SpawnConfirmed{Packet: messages.SSpawnMe{EntityID: 42, X: 1, Y: 2, Z: 3}})
	p, err := h.client.Expect("S_SPAWN_ME", testTimeout)
	require.NoError(t, err)
	assert.Equal(t, &messages.SSpawnMe{EntityID: 42, X: 1, Y: 2, Z: 3}, p)

	location := messages.CPlayerLocation{X: 10, Y: 20, Z: 30, Rotation: 5, VX: 1}
	require.NoError(t, h.client.Send(location))
	require.NoError(t, h.client.Send(location))
	assert.Equal(t, messages.PlayerLocation{ConnectionID: 7, EntityID: 42, Packet: location}, <-world.events)
	assert.Equal(t, messages.PlayerLocation{ConnectionID: 7, EntityID: 42, Packet: location}, <-world.events)

	// Selecting again while in the world is forwarded so the global world
	// can reject it.
	require.NoError(t, h.client.Send(messages.CSelectUser{UserID: 1}))
	expectEvent[messages.SelectUser](t, h.global)
	h.conn.Send(messages.SelectUserRejected{Code: messages.ErrorCodeAlreadySpawned})
	p, err = h.client.Expect("S_SYSTEM_MESSAGE", testTimeout)
	require.NoError(t, err)
	assert.Equal(t, h.systemMessage(t, "SMT_ALREADY_SPAWNED"), p.(*messages.SSystemMessage).MessageID)

	require.NoError(t, h.client.Send(messages.CReturnToLobby{}))
	expectEvent[messages.ReturnToLobby](t, h.global)
	h.conn.Send(messages.ReturnedToLobby{})
	_, err = h.client.Expect("S_RETURN_TO_LOBBY", testTimeout)
	require.NoError(t, err)

	// Back in the lobby the user list is available again.
	require.NoError(t, h.client.Send(messages.CGetUserList{}))
	expectEvent[messages.UserListRequest](t, h.global)
}

func TestConnection_SpawnReverted(t *testing.T) {
	h := newConnectionHarness(t, ConnectionOptions{})
	h.login(t)

	require.NoError(t, h.client.Send(messages.CSelectUser{UserID: 1}))
	expectEvent[messages.SelectUser](t, h.global)

	h.conn.Send(messages.SpawnReverted{Code: messages.ErrorCodeTicketTimeout, Retryable: true})
	p, err := h.client.Expect("S_SYSTEM_MESSAGE", testTimeout)
	require.NoError(t, err)
	assert.Equal(t, h.systemMessage(t, "SMT_SPAWN_TIMEOUT_RETRY"), p.(*messages.SSystemMessage).MessageID)

	// Back to character selection.
	require.NoError(t, h.client.Send(messages.CGetUserList{}))
	expectEvent[messages.UserListRequest](t, h.global)
}

func TestConnection_Ping(t *testing.T) {
	h := newConnectionHarness(t, ConnectionOptions{PingInterval: 20 * time.Millisecond})

	p, err := h.client.Receive(testTimeout)
	require.NoError(t, err)
	assert.Equal(t, "S_PING", p.Name())
	require.NoError(t, h.client.Send(messages.CPong{}))
}

func TestConnection_IdleTimeout(t *testing.T) {
	h := newConnectionHarness(t, ConnectionOptions{IdleTimeout: 50 * time.Millisecond})

	err := h.waitClosed(t)
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
}

func TestConnection_ClientClose(t *testing.T) {
	h := newConnectionHarness(t, ConnectionOptions{})
	require.NoError(t, h.client.Close())

	err := h.waitClosed(t)
	assert.Error(t, err)
}

func TestConnection_SlowConsumer(t *testing.T) {
	h := newConnectionHarness(t, ConnectionOptions{OutboxSize: 1, WriteTimeout: 100 * time.Millisecond})

	// Nothing reads the client side, so the first write blocks the actor.
	accepted := 0
	for i := 0; i < 10; i++ {
		if !h.conn.Send(messages.SendPacket{Packet: messages.SPing{}}) {
			break
		}
		accepted++
	}
	assert.Less(t, accepted, 10)

	err := h.waitClosed(t)
	assert.ErrorIs(t, err, ErrSlowConsumer)
}

func TestConnection_AuthTimeout(t *testing.T) {
	h := newConnectionHarness(t, ConnectionOptions{AuthTimeout: 50 * time.Millisecond, PingInterval: 10 * time.Millisecond})

	// Answering pings does not keep an unauthenticated session alive.
	go func() {
		for {
			p, err := h.client.Receive(testTimeout)
			if err != nil {
				return
			}
			if p.Name() == "S_PING" {
				if err := h.client.Send(messages.CPong{}); err != nil {
					return
				}
			}
		}
	}()

	err := h.waitClosed(t)
	assert.ErrorIs(t, err, ErrAuthTimeout)
}

func TestConnection_AuthTimeoutAfterLogin(t *testing.T) {
	h := newConnectionHarness(t, ConnectionOptions{AuthTimeout: 200 * time.Millisecond})
	h.login(t)

	time.Sleep(300 * time.Millisecond)
	assert.NoError(t, h.conn.Reason())
	select {
	case <-h.conn.Done():
		t.Fatal("logged in connection closed")
	default:
	}
}

func TestConnection_PongTimeout(t *testing.T) {
	h := newConnectionHarness(t, ConnectionOptions{PingInterval: 20 * time.Millisecond, PongTimeout: 100 * time.Millisecond})
	h.login(t)

	// Pings are read but never answered.
	go func() {
		for {
			if _, err := h.client.Receive(testTimeout); err != nil {
				return
			}
		}
	}()

	err := h.waitClosed(t)
	assert.ErrorIs(t, err, ErrPongTimeout)
}

func TestConnection_PongKeepsSessionAlive(t *testing.T) {
	h := newConnectionHarness(t, ConnectionOptions{PingInterval: 20 * time.Millisecond, PongTimeout: 100 * time.Millisecond})
	h.login(t)

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		p, err := h.client.Receive(testTimeout)
		require.NoError(t, err)
		if p.Name() == "S_PING" {
			require.NoError(t, h.client.Send(messages.CPong{}))
		}
	}
	assert.NoError(t, h.conn.Reason())
}

func TestConnection_CloseReportWaitsForGlobal(t *testing.T) {
	h := newConnectionHarness(t, ConnectionOptions{})

	// Fill the global inbox so the close report has to wait for room.
	for len(h.global) < cap(h.global) {
		h.global <- messages.StatusRequest{}
	}
	require.NoError(t, h.client.Close())

	<-h.conn.Done()
	time.Sleep(50 * time.Millisecond)
	for i := 0; i < cap(h.global); i++ {
		<-h.global
	}
	expectEvent[messages.ConnectionClosed](t, h.global)
}
