package protocol

import (
	"encoding/binary"

	"github.com/SuperWhiteDev/BattleShip/internal/battle"
)

// Decode parses a packet body (magic, code, payload). Anything that
// does not parse structurally comes back as an UNDEFINED packet; Decode
// never fails. Enum values that do not select a payload shape (status,
// error codes, shoot states) pass through unchecked, their validation
// belongs to the handlers.
func Decode(body []byte) Packet {
	if len(body) < 2 || body[0] != Magic {
		return Packet{Code: CodeUndefined}
	}

	r := reader{data: body, pos: 2}
	p := Packet{Code: Code(body[1])}

	switch p.Code {
	case CodeOK, CodePing:
		// no payload
	case CodeError:
		p.Payload = decodeError(&r)
	case CodeStatus:
		p.Payload = Status(r.u8())
	case CodeUsernameAndID:
		name := r.str()
		uid := r.str()
		p.Payload = CredentialsPayload{Name: name, UID: uid}
	case CodePassword:
		p.Payload = PasswordPayload{Password: r.str()}
	case CodeSessionData:
		p.Payload = decodeSessionData(&r)
	default:
		return Packet{Code: CodeUndefined}
	}

	if !r.ok() {
		return Packet{Code: CodeUndefined}
	}
	return p
}

func decodeError(r *reader) ErrorPayload {
	e := ErrorPayload{Code: ErrorCode(r.u8()), MsgKind: MsgKind(r.u8())}
	switch e.MsgKind {
	case MsgNone:
	case MsgEnum:
		e.MsgEnum = ErrorMessage(r.u8())
	case MsgText:
		e.MsgText = r.str()
	default:
		r.bad = true
	}
	return e
}

func decodeSessionData(r *reader) SessionDataPayload {
	s := SessionDataPayload{Code: GameDataCode(r.u8())}
	switch s.Code {
	case GameSessionStarted:
		s.SessionID = r.i32()
	case GameSessionClosed, GameGetData, GameComplete:
	case GameWaiting:
		if r.flag() {
			s.Player = r.str()
		}
	case GamePostData:
		if r.flag() {
			data := decodeGameData(r)
			s.Data = &data
		}
	default:
		r.bad = true
	}
	return s
}

func decodeGameData(r *reader) GameData {
	d := GameData{Type: GameDataType(r.u8())}
	switch d.Type {
	case DataBattleFieldRequired, DataNotYourTurn:
	case DataBattleField:
		g := r.grid()
		d.Field = &g
		if r.flag() {
			d.Player = r.str()
		}
	case DataCoordinate:
		d.Coord = Coordinate{Row: r.u8(), Col: r.u8()}
	case DataShootState:
		d.ShootState = battle.ShootState(r.u8())
		if r.flag() {
			g := r.grid()
			d.Field = &g
		}
	case DataResults:
		d.Winner = r.str()
	default:
		r.bad = true
	}
	return d
}

// reader consumes a packet body left to right. Any out-of-bounds read
// poisons it; ok reports whether the body parsed exactly.
type reader struct {
	data []byte
	pos  int
	bad  bool
}

func (r *reader) ok() bool {
	return !r.bad && r.pos == len(r.data)
}

func (r *reader) u8() uint8 {
	if r.bad || r.pos >= len(r.data) {
		r.bad = true
		return 0
	}
	b := r.data[r.pos]
	r.pos++
	return b
}

func (r *reader) u16() uint16 {
	if r.bad || r.pos+2 > len(r.data) {
		r.bad = true
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v
}

func (r *reader) i32() int32 {
	if r.bad || r.pos+4 > len(r.data) {
		r.bad = true
		return 0
	}
	v := int32(binary.LittleEndian.Uint32(r.data[r.pos:]))
	r.pos += 4
	return v
}

func (r *reader) str() string {
	n := int(r.u16())
	if r.bad || r.pos+n > len(r.data) {
		r.bad = true
		return ""
	}
	s := string(r.data[r.pos : r.pos+n])
	r.pos += n
	return s
}

func (r *reader) grid() battle.Grid {
	var g battle.Grid
	if r.bad || r.pos+battle.Size*battle.Size > len(r.data) {
		r.bad = true
		return g
	}
	for i := range battle.Size {
		for j := range battle.Size {
			g[i][j] = battle.Cell(r.data[r.pos])
			r.pos++
		}
	}
	return g
}

// flag reads a presence byte; anything but 0 or 1 poisons the reader.
func (r *reader) flag() bool {
	switch r.u8() {
	case 0:
		return false
	case 1:
		return true
	default:
		r.bad = true
		return false
	}
}
