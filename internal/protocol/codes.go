// Package protocol implements the framed binary packet protocol spoken
// between the BattleShip server and its clients: a little-endian length
// prefix, the 'H' magic byte, a packet code and a typed payload.
package protocol

// Code identifies a packet kind.
type Code uint8

const (
	CodeUndefined     Code = 0 // malformed or unparseable
	CodeOK            Code = 1 // generic ack
	CodeError         Code = 2
	CodePing          Code = 3 // keep-alive from the peer
	CodeStatus        Code = 4
	CodeUsernameAndID Code = 5
	CodePassword      Code = 6
	CodeSessionData   Code = 7
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeError:
		return "ERROR"
	case CodePing:
		return "PING"
	case CodeStatus:
		return "STATUS"
	case CodeUsernameAndID:
		return "USERNAME_AND_ID"
	case CodePassword:
		return "PASSWORD"
	case CodeSessionData:
		return "SESSION_DATA"
	default:
		return "UNDEFINED"
	}
}

// ErrorCode classifies ERROR packets.
type ErrorCode uint8

const (
	ErrCodeNameAlreadyInUse  ErrorCode = 0
	ErrCodeNameTooLong       ErrorCode = 1
	ErrCodeReachedUsersLimit ErrorCode = 2
	ErrCodeUnexpectedPacket  ErrorCode = 3
	ErrCodeUncorrectPacket   ErrorCode = 4
)

func (e ErrorCode) String() string {
	switch e {
	case ErrCodeNameAlreadyInUse:
		return "NAME_ALREADY_IN_USE"
	case ErrCodeNameTooLong:
		return "NAME_TOO_LONG"
	case ErrCodeReachedUsersLimit:
		return "REACHED_USERS_LIMIT"
	case ErrCodeUnexpectedPacket:
		return "UNEXPECTED_PACKET"
	case ErrCodeUncorrectPacket:
		return "UNCORRECT_PACKET"
	default:
		return "UNKNOWN"
	}
}

// ErrorMessage is a machine-readable ERROR detail understood by clients.
type ErrorMessage uint8

const (
	ErrMsgPlayerNotInAnySession ErrorMessage = 0
)

// Status values carried by STATUS packets.
type Status uint8

const (
	StatusConnected             Status = 1
	StatusDisconnected          Status = 2
	StatusBanned                Status = 3
	StatusReachedUsersLimit     Status = 4
	StatusRegisterRequired      Status = 5
	StatusAuthorizationRequired Status = 6
	StatusFindNewSession        Status = 8
	StatusLeaveSession          Status = 9
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "CONNECTED"
	case StatusDisconnected:
		return "DISCONNECTED"
	case StatusBanned:
		return "BANNED"
	case StatusReachedUsersLimit:
		return "REACHED_USERS_LIMIT"
	case StatusRegisterRequired:
		return "REGISTER_REQUIRED"
	case StatusAuthorizationRequired:
		return "AUTHORIZATION_REQUIRED"
	case StatusFindNewSession:
		return "FIND_NEW_SESSION"
	case StatusLeaveSession:
		return "LEAVE_SESSION"
	default:
		return "UNKNOWN"
	}
}

// GameDataCode is the first discriminator inside SESSION_DATA payloads.
type GameDataCode uint8

const (
	GameSessionStarted GameDataCode = 0
	GameSessionClosed  GameDataCode = 1
	GameGetData        GameDataCode = 2
	GamePostData       GameDataCode = 3
	GameComplete       GameDataCode = 4
	GameWaiting        GameDataCode = 5
)

func (g GameDataCode) String() string {
	switch g {
	case GameSessionStarted:
		return "SESSION_STARTED"
	case GameSessionClosed:
		return "SESSION_CLOSED"
	case GameGetData:
		return "GET_DATA"
	case GamePostData:
		return "POST_DATA"
	case GameComplete:
		return "COMPLETE"
	case GameWaiting:
		return "WAITING"
	default:
		return "UNKNOWN"
	}
}

// GameDataType is the second discriminator, under POST_DATA records.
type GameDataType uint8

const (
	DataBattleFieldRequired GameDataType = 0
	DataBattleField         GameDataType = 1
	DataNotYourTurn         GameDataType = 2
	DataCoordinate          GameDataType = 3
	DataShootState          GameDataType = 4
	DataResults             GameDataType = 5
)

func (d GameDataType) String() string {
	switch d {
	case DataBattleFieldRequired:
		return "BATTLE_FIELD_REQUIRED"
	case DataBattleField:
		return "BATTLE_FIELD"
	case DataNotYourTurn:
		return "NOT_YOUR_TURN"
	case DataCoordinate:
		return "COORDINATE"
	case DataShootState:
		return "SHOOT_STATE"
	case DataResults:
		return "RESULTS"
	default:
		return "UNKNOWN"
	}
}
