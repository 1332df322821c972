package messages

// ErrorCode is a client visible failure. Each code maps to a system message.
type ErrorCode int

const (
	ErrorCodeNone ErrorCode = iota
	ErrorCodeLoginFailed
	ErrorCodeNotOwned
	ErrorCodeAlreadySpawned
	ErrorCodeSpawnInProgress
	ErrorCodeTicketTimeout
	ErrorCodeZoneLoadFailed
	ErrorCodeRespawnRequired
	ErrorCodeUserLoadFailed
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeNone:
		return "None"
	case ErrorCodeLoginFailed:
		return "LoginFailed"
	case ErrorCodeNotOwned:
		return "NotOwned"
	case ErrorCodeAlreadySpawned:
		return "AlreadySpawned"
	case ErrorCodeSpawnInProgress:
		return "SpawnInProgress"
	case ErrorCodeTicketTimeout:
		return "TicketTimeout"
	case ErrorCodeZoneLoadFailed:
		return "ZoneLoadFailed"
	case ErrorCodeRespawnRequired:
		return "RespawnRequired"
	case ErrorCodeUserLoadFailed:
		return "UserLoadFailed"
	default:
		return "Unknown"
	}
}

// SystemMessage returns the system message catalog name for the code.
func (c ErrorCode) SystemMessage() string {
	switch c {
	case ErrorCodeLoginFailed:
		return "SMT_LOGIN_FAILED"
	case ErrorCodeNotOwned:
		return "SMT_CHARACTER_NOT_OWNED"
	case ErrorCodeAlreadySpawned:
		return "SMT_ALREADY_SPAWNED"
	case ErrorCodeSpawnInProgress:
		return "SMT_SPAWN_IN_PROGRESS"
	case ErrorCodeTicketTimeout:
		return "SMT_SPAWN_TIMEOUT_RETRY"
	case ErrorCodeZoneLoadFailed:
		return "SMT_ZONE_LOAD_FAILED"
	case ErrorCodeRespawnRequired:
		return "SMT_RESPAWN_REQUIRED"
	case ErrorCodeUserLoadFailed:
		return "SMT_GENERAL_CONNECTION_ERROR"
	default:
		return "SMT_UNDEFINED"
	}
}
