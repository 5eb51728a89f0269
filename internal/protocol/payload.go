package protocol

import (
	"encoding/binary"

	"github.com/SuperWhiteDev/BattleShip/internal/battle"
)

// MsgKind selects which optional detail an ErrorPayload carries.
type MsgKind uint8

const (
	MsgNone MsgKind = 0
	MsgEnum MsgKind = 1
	MsgText MsgKind = 2
)

// ErrorPayload is the body of an ERROR packet: a mandatory error code
// plus an optional machine-readable enum or human-readable text detail.
type ErrorPayload struct {
	Code    ErrorCode
	MsgKind MsgKind
	MsgEnum ErrorMessage // valid when MsgKind == MsgEnum
	MsgText string       // valid when MsgKind == MsgText
}

func (e ErrorPayload) appendTo(dst []byte) []byte {
	dst = append(dst, byte(e.Code), byte(e.MsgKind))
	switch e.MsgKind {
	case MsgEnum:
		dst = append(dst, byte(e.MsgEnum))
	case MsgText:
		dst = appendString(dst, e.MsgText)
	}
	return dst
}

// Status doubles as the body of a STATUS packet.
func (s Status) appendTo(dst []byte) []byte {
	return append(dst, byte(s))
}

// CredentialsPayload is the body of a USERNAME_AND_ID packet.
type CredentialsPayload struct {
	Name string
	UID  string
}

func (c CredentialsPayload) appendTo(dst []byte) []byte {
	dst = appendString(dst, c.Name)
	return appendString(dst, c.UID)
}

// PasswordPayload is the body of a PASSWORD packet.
type PasswordPayload struct {
	Password string
}

func (p PasswordPayload) appendTo(dst []byte) []byte {
	return appendString(dst, p.Password)
}

// Coordinate addresses one cell of the 10x10 grid.
type Coordinate struct {
	Row uint8
	Col uint8
}

// GameData is the typed record under a POST_DATA session message.
// Which fields are meaningful depends on Type.
type GameData struct {
	Type       GameDataType
	Field      *battle.Grid      // BATTLE_FIELD; optional for SHOOT_STATE
	Player     string            // BATTLE_FIELD: the board owner's opponent, empty when unknown
	Coord      Coordinate        // COORDINATE
	ShootState battle.ShootState // SHOOT_STATE
	Winner     string            // RESULTS
}

func (g *GameData) appendTo(dst []byte) []byte {
	dst = append(dst, byte(g.Type))
	switch g.Type {
	case DataBattleField:
		grid := battle.EmptyGrid()
		if g.Field != nil {
			grid = *g.Field
		}
		dst = appendGrid(dst, grid)
		dst = appendOptString(dst, g.Player)
	case DataCoordinate:
		dst = append(dst, g.Coord.Row, g.Coord.Col)
	case DataShootState:
		dst = append(dst, byte(g.ShootState))
		if g.Field != nil {
			dst = append(dst, 1)
			dst = appendGrid(dst, *g.Field)
		} else {
			dst = append(dst, 0)
		}
	case DataResults:
		dst = appendString(dst, g.Winner)
	}
	return dst
}

// SessionDataPayload is the body of a SESSION_DATA packet.
type SessionDataPayload struct {
	Code      GameDataCode
	SessionID int32     // SESSION_STARTED
	Player    string    // WAITING: opponent name, empty when still unknown
	Data      *GameData // POST_DATA
}

func (s SessionDataPayload) appendTo(dst []byte) []byte {
	dst = append(dst, byte(s.Code))
	switch s.Code {
	case GameSessionStarted:
		dst = binary.LittleEndian.AppendUint32(dst, uint32(s.SessionID))
	case GameWaiting:
		dst = appendOptString(dst, s.Player)
	case GamePostData:
		if s.Data == nil {
			return append(dst, 0)
		}
		dst = append(dst, 1)
		dst = s.Data.appendTo(dst)
	}
	return dst
}

// NewOK returns a bare acknowledgment packet.
func NewOK() Packet {
	return Packet{Code: CodeOK}
}

// NewPing returns a keep-alive packet.
func NewPing() Packet {
	return Packet{Code: CodePing}
}

// NewStatus returns a STATUS packet carrying s.
func NewStatus(s Status) Packet {
	return Packet{Code: CodeStatus, Payload: s}
}

// NewError returns an ERROR packet without detail.
func NewError(code ErrorCode) Packet {
	return Packet{Code: CodeError, Payload: ErrorPayload{Code: code}}
}

// NewErrorText returns an ERROR packet with a human-readable reason.
func NewErrorText(code ErrorCode, text string) Packet {
	return Packet{Code: CodeError, Payload: ErrorPayload{Code: code, MsgKind: MsgText, MsgText: text}}
}

// NewErrorEnum returns an ERROR packet with a machine-readable detail.
func NewErrorEnum(code ErrorCode, msg ErrorMessage) Packet {
	return Packet{Code: CodeError, Payload: ErrorPayload{Code: code, MsgKind: MsgEnum, MsgEnum: msg}}
}

// NewCredentials returns the USERNAME_AND_ID handshake packet.
func NewCredentials(name, uid string) Packet {
	return Packet{Code: CodeUsernameAndID, Payload: CredentialsPayload{Name: name, UID: uid}}
}

// NewPassword returns a PASSWORD packet.
func NewPassword(password string) Packet {
	return Packet{Code: CodePassword, Payload: PasswordPayload{Password: password}}
}

// NewSessionStarted announces a new game session to a matched player.
func NewSessionStarted(id int32) Packet {
	return Packet{Code: CodeSessionData, Payload: SessionDataPayload{Code: GameSessionStarted, SessionID: id}}
}

// NewSessionClosed announces that the player's session is gone.
func NewSessionClosed() Packet {
	return Packet{Code: CodeSessionData, Payload: SessionDataPayload{Code: GameSessionClosed}}
}

// NewWaiting acknowledges matchmaking; player names the opponent being
// waited for and may be empty.
func NewWaiting(player string) Packet {
	return Packet{Code: CodeSessionData, Payload: SessionDataPayload{Code: GameWaiting, Player: player}}
}

// NewGetData is the in-session poll the client sends when it has
// nothing else to say.
func NewGetData() Packet {
	return Packet{Code: CodeSessionData, Payload: SessionDataPayload{Code: GameGetData}}
}

// NewComplete acknowledges an accepted battlefield layout.
func NewComplete() Packet {
	return Packet{Code: CodeSessionData, Payload: SessionDataPayload{Code: GameComplete}}
}

// NewPostData wraps a game-data record into a SESSION_DATA packet.
func NewPostData(data GameData) Packet {
	return Packet{Code: CodeSessionData, Payload: SessionDataPayload{Code: GamePostData, Data: &data}}
}

func appendString(dst []byte, s string) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(s)))
	return append(dst, s...)
}

func appendOptString(dst []byte, s string) []byte {
	if s == "" {
		return append(dst, 0)
	}
	dst = append(dst, 1)
	return appendString(dst, s)
}

func appendGrid(dst []byte, g battle.Grid) []byte {
	for _, row := range g {
		for _, cell := range row {
			dst = append(dst, byte(cell))
		}
	}
	return dst
}
