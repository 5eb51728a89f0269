package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SuperWhiteDev/BattleShip/internal/battle"
)

func testGrid(t *testing.T) battle.Grid {
	t.Helper()
	g, err := battle.ParseGrid([]string{
		"SSSS......",
		"..........",
		"SSS.SSS...",
		"..........",
		"SS.SS.SS..",
		"..........",
		"S.S.S.S...",
		"..........",
		"..........",
		"..........",
	})
	require.NoError(t, err)
	return g
}

// Every packet the server or client can emit must survive an
// encode/decode round trip unchanged.
func TestDecodeRoundTrip(t *testing.T) {
	grid := testGrid(t)

	tests := []struct {
		name   string
		packet Packet
	}{
		{"ok", NewOK()},
		{"ping", NewPing()},
		{"status connected", NewStatus(StatusConnected)},
		{"status find new session", NewStatus(StatusFindNewSession)},
		{"error bare", NewError(ErrCodeReachedUsersLimit)},
		{"error with text", NewErrorText(ErrCodeUncorrectPacket, "ship near (0,0) is not a straight line")},
		{"error with enum", NewErrorEnum(ErrCodeUnexpectedPacket, ErrMsgPlayerNotInAnySession)},
		{"credentials", NewCredentials("Alice", "8400fa5f-2333-4f52-a241-7b0a5c6e87d1")},
		{"password", NewPassword("s3cret")},
		{"session started", NewSessionStarted(3)},
		{"session closed", NewSessionClosed()},
		{"waiting unknown opponent", NewWaiting("")},
		{"waiting named opponent", NewWaiting("Bob")},
		{"get data", NewGetData()},
		{"complete", NewComplete()},
		{"post battlefield", NewPostData(GameData{Type: DataBattleField, Field: &grid})},
		{"post battlefield with player", NewPostData(GameData{Type: DataBattleField, Field: &grid, Player: "Bob"})},
		{"post battlefield required", NewPostData(GameData{Type: DataBattleFieldRequired})},
		{"post not your turn", NewPostData(GameData{Type: DataNotYourTurn})},
		{"post coordinate", NewPostData(GameData{Type: DataCoordinate, Coord: Coordinate{Row: 9, Col: 0}})},
		{"post hit", NewPostData(GameData{Type: DataShootState, ShootState: battle.ShootHit})},
		{"post miss with field", NewPostData(GameData{Type: DataShootState, ShootState: battle.ShootMiss, Field: &grid})},
		{"post results", NewPostData(GameData{Type: DataResults, Winner: "Alice"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(tt.packet)
			require.NoError(t, err)

			got := Decode(frame[2:])
			assert.Equal(t, tt.packet, got)
		})
	}
}

// Structurally broken bodies all collapse to UNDEFINED: the connection
// survives, the handler answers with UNCORRECT_PACKET.
func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"empty body", nil},
		{"magic only", []byte{'H'}},
		{"wrong magic", []byte{'X', byte(CodeOK)}},
		{"explicit undefined code", []byte{'H', 0}},
		{"unknown code", []byte{'H', 42}},
		{"ok with trailing bytes", []byte{'H', byte(CodeOK), 0}},
		{"status without value", []byte{'H', byte(CodeStatus)}},
		{"error with bad msg tag", []byte{'H', byte(CodeError), 0, 9}},
		{"error text truncated", []byte{'H', byte(CodeError), 4, 2, 10, 0, 'a', 'b'}},
		{"credentials truncated", []byte{'H', byte(CodeUsernameAndID), 5, 0, 'a', 'b'}},
		{"credentials trailing bytes", []byte{'H', byte(CodeUsernameAndID), 1, 0, 'a', 1, 0, 'b', 0}},
		{"password without length", []byte{'H', byte(CodePassword)}},
		{"session data empty", []byte{'H', byte(CodeSessionData)}},
		{"session data unknown game code", []byte{'H', byte(CodeSessionData), 99}},
		{"session started short id", []byte{'H', byte(CodeSessionData), byte(GameSessionStarted), 1, 2}},
		{"waiting bad flag", []byte{'H', byte(CodeSessionData), byte(GameWaiting), 2}},
		{"post data bad flag", []byte{'H', byte(CodeSessionData), byte(GamePostData), 2}},
		{"post data missing record", []byte{'H', byte(CodeSessionData), byte(GamePostData), 1}},
		{"post data unknown type", []byte{'H', byte(CodeSessionData), byte(GamePostData), 1, 77}},
		{"coordinate missing column", []byte{'H', byte(CodeSessionData), byte(GamePostData), 1, byte(DataCoordinate), 3}},
		{"battlefield short grid", append([]byte{'H', byte(CodeSessionData), byte(GamePostData), 1, byte(DataBattleField)}, make([]byte, 50)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.body)
			assert.Equal(t, Packet{Code: CodeUndefined}, got)
		})
	}
}

// Values that carry no structure pass through decode untouched, even
// when they name no known enum member. Rejecting them is up to the
// handlers, not the codec.
func TestDecodePassesUnknownEnumValues(t *testing.T) {
	got := Decode([]byte{'H', byte(CodeStatus), 200})
	require.Equal(t, CodeStatus, got.Code)
	assert.Equal(t, Status(200), got.Payload)

	got = Decode([]byte{'H', byte(CodeError), 77, 0})
	require.Equal(t, CodeError, got.Code)
	assert.Equal(t, ErrorPayload{Code: ErrorCode(77)}, got.Payload)
}
