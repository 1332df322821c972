package network

import (
	"context"
	"fmt"
	"time"

	"github.com/cbodonnell/worldgate/pkg/log"
	"github.com/cbodonnell/worldgate/pkg/messages"
)

// ConnectionState is where a connection is in the login and spawn sequence.
type ConnectionState int

const (
	StateConnecting ConnectionState = iota
	StateAuthenticating
	StateLoggedIn
	StateCharacterSelected
	StateSpawning
	StateInWorld
	StateClosing
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateAuthenticating:
		return "Authenticating"
	case StateLoggedIn:
		return "LoggedIn"
	case StateCharacterSelected:
		return "CharacterSelected"
	case StateSpawning:
		return "Spawning"
	case StateInWorld:
		return "InWorld"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

type route struct {
	states []ConnectionState
	handle func(ctx context.Context, c *Connection, packet messages.Packet) error
}

func (r route) allowed(state ConnectionState) bool {
	if r.states == nil {
		return true
	}
	for _, s := range r.states {
		if s == state {
			return true
		}
	}
	return false
}

// routes maps inbound packet names to their handlers. Known opcodes missing
// from this table are ignored.
var routes = map[string]route{
	"C_LOGIN_ARBITER": {
		states: []ConnectionState{StateAuthenticating},
		handle: handleLoginArbiter,
	},
	"C_GET_USER_LIST": {
		states: []ConnectionState{StateLoggedIn},
		handle: handleGetUserList,
	},
	"C_SELECT_USER": {
		states: []ConnectionState{StateLoggedIn, StateCharacterSelected, StateSpawning, StateInWorld},
		handle: handleSelectUser,
	},
	"C_LOAD_TOPO_FIN": {
		states: []ConnectionState{StateSpawning},
		handle: handleLoadTopoFin,
	},
	"C_PLAYER_LOCATION": {
		states: []ConnectionState{StateInWorld},
		handle: handlePlayerLocation,
	},
	"C_RETURN_TO_LOBBY": {
		states: []ConnectionState{StateInWorld},
		handle: handleReturnToLobby,
	},
	"C_PONG": {
		handle: handlePong,
	},
}

func handleLoginArbiter(ctx context.Context, c *Connection, packet messages.Packet) error {
	p := packet.(*messages.CLoginArbiter)
	if c.loginPending {
		return fmt.Errorf("%w: login already in progress", ErrProtocolViolation)
	}
	c.loginPending = true
	return c.global.Send(ctx, messages.LoginRequest{
		ConnectionID: c.id,
		AccountName:  p.AccountName,
		Ticket:       p.Ticket,
	})
}

func handleGetUserList(ctx context.Context, c *Connection, packet messages.Packet) error {
	return c.global.Send(ctx, messages.UserListRequest{ConnectionID: c.id})
}

func handleSelectUser(ctx context.Context, c *Connection, packet messages.Packet) error {
	p := packet.(*messages.CSelectUser)
	if c.state == StateLoggedIn {
		c.setState(StateCharacterSelected)
	}
	return c.global.Send(ctx, messages.SelectUser{ConnectionID: c.id, UserID: p.UserID})
}

func handleLoadTopoFin(ctx context.Context, c *Connection, packet messages.Packet) error {
	if c.world == nil {
		return fmt.Errorf("%w: no local world attached", ErrProtocolViolation)
	}
	err := c.world.Send(messages.LoadTopologyFinished{ConnectionID: c.id, EntityID: c.entityID})
	if err != nil {
		c.logger.Warn("Failed to forward C_LOAD_TOPO_FIN to world %d: %v", c.world.ID(), err)
	}
	return nil
}

func handlePlayerLocation(ctx context.Context, c *Connection, packet messages.Packet) error {
	p := packet.(*messages.CPlayerLocation)
	if c.world == nil {
		return nil
	}
	err := c.world.Send(messages.PlayerLocation{ConnectionID: c.id, EntityID: c.entityID, Packet: *p})
	if err != nil {
		c.logger.Debug("Dropped location update: %v", err)
	}
	return nil
}

func handleReturnToLobby(ctx context.Context, c *Connection, packet messages.Packet) error {
	return c.global.Send(ctx, messages.ReturnToLobby{ConnectionID: c.id})
}

func handlePong(ctx context.Context, c *Connection, packet messages.Packet) error {
	c.pingSent = time.Time{}
	log.Trace("Pong from connection %d", c.id)
	return nil
}
