package global

import (
	"time"

	"github.com/cbodonnell/worldgate/pkg/messages"
	"github.com/cbodonnell/worldgate/pkg/repositories/models"
	"github.com/google/uuid"
)

type spawnState int

const (
	spawnStateUnspawned spawnState = iota
	spawnStateSpawningGlobal
	spawnStateAwaitingLocalWorld
	spawnStateActive
	spawnStateDespawning
)

func (s spawnState) String() string {
	switch s {
	case spawnStateUnspawned:
		return "unspawned"
	case spawnStateSpawningGlobal:
		return "spawning_global"
	case spawnStateAwaitingLocalWorld:
		return "awaiting_local_world"
	case spawnStateActive:
		return "active"
	case spawnStateDespawning:
		return "despawning"
	default:
		return "unknown"
	}
}

type connectionState struct {
	handle  messages.ConnectionHandle
	account *models.Account
	// users owned by the account, refreshed on every user list.
	users map[int32]*models.User
	// ticket is set while a spawn is in flight.
	ticket *uuid.UUID
	// activeUser is set while a user is spawned or despawning.
	activeUser int32
}

func (c *connectionState) setUsers(users []*models.User) {
	c.users = make(map[int32]*models.User, len(users))
	for _, u := range users {
		c.users[u.ID] = u
	}
}

type userState struct {
	userID       int32
	accountID    int64
	connectionID messages.ConnectionID
	state        spawnState
	worldID      messages.WorldID
	entityID     messages.EntityID
	// set while despawning.
	deadline time.Time
	// toLobby is set when the connection asked to return to character
	// selection and should be told once the despawn completes.
	toLobby bool
}

type ticketPhase int

const (
	// waiting for the user snapshot and the world load.
	phaseLoading ticketPhase = iota
	// PrepareUserSpawn sent.
	phaseAwaitingLocalWorld
	// entity reserved, persisted data requested.
	phasePrepared
	// UserReadyToConnect sent, waiting for the client to finish loading.
	phaseReady
)

type spawnTicket struct {
	id           uuid.UUID
	seq          uint64
	connectionID messages.ConnectionID
	userID       int32
	accountID    int64
	zoneID       int32
	worldID      messages.WorldID
	entityID     messages.EntityID
	deadline     time.Time
	phase        ticketPhase
	user         *models.User
}

// contacted reports whether the local world may hold state for the ticket.
func (t *spawnTicket) contacted() bool {
	return t.phase != phaseLoading
}

type worldEntry struct {
	handle   messages.LocalWorldHandle
	zoneID   int32
	loaded   bool
	refCount int
	// idleAt is zero while the world is referenced.
	idleAt time.Time
}

type lastLocation struct {
	location models.Location
	alive    bool
	// expires bounds how long an unsaved location is kept.
	expires  time.Time
}
