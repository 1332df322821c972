package messages

import (
	"context"
	"time"

	"github.com/cbodonnell/worldgate/pkg/repositories/models"
	"github.com/google/uuid"
)

type ConnectionID uint64

type WorldID uint64

// EntityID is unique within one local world.
type EntityID uint64

// ConnectionHandle is how actors reach a connection.
type ConnectionHandle interface {
	ID() ConnectionID
	// Send queues an event without blocking. It returns false when the event
	// was dropped because the connection is closed or its outbox is full.
	Send(event ConnectionEvent) bool
}

// LocalWorldHandle is how actors reach a local world.
type LocalWorldHandle interface {
	ID() WorldID
	ZoneID() int32
	// Send queues an event without blocking.
	Send(event LocalEvent) error
}

// GlobalSender delivers events to the global world.
type GlobalSender interface {
	Send(ctx context.Context, event GlobalEvent) error
}

// GlobalEvent is handled by the global world.
type GlobalEvent interface {
	globalEvent()
}

// LocalEvent is handled by a local world.
type LocalEvent interface {
	localEvent()
}

// ConnectionEvent is handled by a connection.
type ConnectionEvent interface {
	connectionEvent()
}

// Global world events from connections

type ConnectionOpened struct {
	Connection ConnectionHandle
}

type ConnectionClosed struct {
	ConnectionID ConnectionID
}

type LoginRequest struct {
	ConnectionID ConnectionID
	AccountName  string
	Ticket       []byte
}

type UserListRequest struct {
	ConnectionID ConnectionID
}

type SelectUser struct {
	ConnectionID ConnectionID
	UserID       int32
}

type ReturnToLobby struct {
	ConnectionID ConnectionID
}

// Global world events from persistence workers

type AccountAuthenticated struct {
	ConnectionID ConnectionID
	Account      *models.Account
	Users        []*models.User
	Err          error
}

type UsersListed struct {
	ConnectionID ConnectionID
	AccountID    int64
	Users        []*models.User
	Err          error
}

type UserLoaded struct {
	Ticket uuid.UUID
	User   *models.User
	Err    error
}

type PersistedDataLoaded struct {
	Ticket uuid.UUID
	Bundle *models.PersistedBundle
	Err    error
}

// UserStateSaved reports that the state of a despawned user reached the
// repository.
type UserStateSaved struct {
	UserID   int32
	Location models.Location
	Alive    bool
}

// Global world events from local worlds

type LocalWorldLoaded struct {
	WorldID WorldID
	Err     error
}

type UserSpawnPrepared struct {
	Ticket   uuid.UUID
	WorldID  WorldID
	EntityID EntityID
}

type UserSpawned struct {
	Ticket   uuid.UUID
	WorldID  WorldID
	EntityID EntityID
}

type UserDespawned struct {
	WorldID  WorldID
	EntityID EntityID
	Found    bool
	Location models.Location
	Alive    bool
}

// LocalWorldFailed is the last event a local world sends after it stopped
// on a broken invariant.
type LocalWorldFailed struct {
	WorldID     WorldID
	Err         error
	Connections []ConnectionID
}

type StatusRequest struct {
	Reply chan<- Status
}

func (ConnectionOpened) globalEvent()     {}
func (ConnectionClosed) globalEvent()     {}
func (LoginRequest) globalEvent()         {}
func (UserListRequest) globalEvent()      {}
func (SelectUser) globalEvent()           {}
func (ReturnToLobby) globalEvent()        {}
func (AccountAuthenticated) globalEvent() {}
func (UsersListed) globalEvent()          {}
func (UserLoaded) globalEvent()           {}
func (PersistedDataLoaded) globalEvent()  {}
func (UserStateSaved) globalEvent()       {}
func (LocalWorldLoaded) globalEvent()     {}
func (UserSpawnPrepared) globalEvent()    {}
func (UserSpawned) globalEvent()          {}
func (UserDespawned) globalEvent()        {}
func (LocalWorldFailed) globalEvent()     {}
func (StatusRequest) globalEvent()        {}

// Local world events

type PrepareUserSpawn struct {
	Ticket       uuid.UUID
	ConnectionID ConnectionID
	User         models.User
}

type RegisterConnection struct {
	ConnectionID ConnectionID
	EntityID     EntityID
	Connection   ConnectionHandle
}

type UserReadyToConnect struct {
	Ticket uuid.UUID
}

// LoadTopologyFinished is sent by the connection itself once the client
// reports that the zone is loaded.
type LoadTopologyFinished struct {
	ConnectionID ConnectionID
	EntityID     EntityID
}

type PlayerLocation struct {
	ConnectionID ConnectionID
	EntityID     EntityID
	Packet       CPlayerLocation
}

type Despawn struct {
	EntityID EntityID
}

type CancelTicket struct {
	Ticket uuid.UUID
}

type Shutdown struct{}

func (PrepareUserSpawn) localEvent()     {}
func (RegisterConnection) localEvent()   {}
func (UserReadyToConnect) localEvent()   {}
func (LoadTopologyFinished) localEvent() {}
func (PlayerLocation) localEvent()       {}
func (Despawn) localEvent()              {}
func (CancelTicket) localEvent()         {}
func (Shutdown) localEvent()             {}

// Connection events

// SendPacket writes a packet as is.
type SendPacket struct {
	Packet Packet
}

type LoginAccepted struct {
	AccountID int64
	Users     []*models.User
}

type LoginRejected struct{}

type SelectUserRejected struct {
	Code ErrorCode
	// Revert is set when the connection has no spawn in progress and
	// should go back to character selection.
	Revert bool
}

type AttachLocalWorld struct {
	World    LocalWorldHandle
	EntityID EntityID
}

type SpawnConfirmed struct {
	Packet SSpawnMe
}

type SpawnReverted struct {
	Code      ErrorCode
	Retryable bool
}

type ReturnedToLobby struct{}

type Disconnect struct {
	Reason error
}

func (SendPacket) connectionEvent()         {}
func (LoginAccepted) connectionEvent()      {}
func (LoginRejected) connectionEvent()      {}
func (SelectUserRejected) connectionEvent() {}
func (AttachLocalWorld) connectionEvent()   {}
func (SpawnConfirmed) connectionEvent()     {}
func (SpawnReverted) connectionEvent()      {}
func (ReturnedToLobby) connectionEvent()    {}
func (Disconnect) connectionEvent()         {}

// Status is a point in time view of the global world.
type Status struct {
	Timestamp   time.Time     `json:"timestamp"`
	Connections int           `json:"connections"`
	Users       []UserStatus  `json:"users"`
	Tickets     int           `json:"tickets"`
	Worlds      []WorldStatus `json:"worlds"`
}

type UserStatus struct {
	UserID       int32        `json:"user_id"`
	AccountID    int64        `json:"account_id"`
	ConnectionID ConnectionID `json:"connection_id"`
	State        string       `json:"state"`
	WorldID      WorldID      `json:"world_id,omitempty"`
	EntityID     EntityID     `json:"entity_id,omitempty"`
}

type WorldStatus struct {
	WorldID  WorldID    `json:"world_id"`
	ZoneID   int32      `json:"zone_id"`
	Loaded   bool       `json:"loaded"`
	RefCount int        `json:"ref_count"`
	IdleAt   *time.Time `json:"idle_at,omitempty"`
}
