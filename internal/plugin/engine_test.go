package plugin

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SuperWhiteDev/BattleShip/internal/admin"
	"github.com/SuperWhiteDev/BattleShip/internal/game"
	"github.com/SuperWhiteDev/BattleShip/internal/protocol"
	"github.com/SuperWhiteDev/BattleShip/internal/store"
	"github.com/SuperWhiteDev/BattleShip/internal/testutil"
)

type stubPlayer struct{ name string }

func (p *stubPlayer) Name() string              { return p.name }
func (p *stubPlayer) Send(protocol.Packet) bool { return true }
func (p *stubPlayer) Connected() bool           { return true }
func (p *stubPlayer) LookingForSession() bool   { return false }
func (p *stubPlayer) SetLookingForSession(bool) {}
func (p *stubPlayer) Session() *game.Session    { return nil }
func (p *stubPlayer) SetSession(*game.Session)  {}

type stubPresence struct{ players []game.Player }

func (s *stubPresence) Players() []game.Player { return s.players }

type commandRecorder struct{ cmds map[string]admin.Handler }

func newCommandRecorder() *commandRecorder {
	return &commandRecorder{cmds: make(map[string]admin.Handler)}
}

func (r *commandRecorder) AddCommand(name string, fn admin.Handler) {
	r.cmds[name] = fn
}

func writePlugin(t *testing.T, dir, name, script string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(script), 0o644))
}

func newEngine(t *testing.T, st Store, presence Presence) (*Engine, *commandRecorder) {
	t.Helper()

	if st == nil {
		st = testutil.NewMemoryStore()
	}
	if presence == nil {
		presence = &stubPresence{}
	}
	rec := newCommandRecorder()
	e := NewEngine(st, presence, rec)
	t.Cleanup(e.Close)
	return e, rec
}

func TestEngineRegistersCommand(t *testing.T) {
	e, rec := newEngine(t, nil, nil)

	dir := t.TempDir()
	writePlugin(t, dir, "greet.lua", `
battleship.add_command("greet", function(args)
    if #args > 0 then
        return "hello " .. args[1]
    end
    return "hello"
end)
`)
	require.NoError(t, e.LoadDir(dir))

	fn, ok := rec.cmds["greet"]
	require.True(t, ok, "plugin command not registered")

	out, err := fn([]string{"alice"})
	require.NoError(t, err)
	assert.Equal(t, "hello alice", out)

	out, err = fn(nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestEngineSkipsBrokenPlugin(t *testing.T) {
	e, rec := newEngine(t, nil, nil)

	dir := t.TempDir()
	writePlugin(t, dir, "bad.lua", `battleship.add_command("broken", function(`)
	writePlugin(t, dir, "good.lua", `battleship.add_command("fine", function(args) return "ok" end)`)

	require.NoError(t, e.LoadDir(dir))

	assert.NotContains(t, rec.cmds, "broken")
	require.Contains(t, rec.cmds, "fine")

	out, err := rec.cmds["fine"](nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestEngineMissingDirIsFine(t *testing.T) {
	e, _ := newEngine(t, nil, nil)
	require.NoError(t, e.LoadDir(filepath.Join(t.TempDir(), "nope")))
}

func TestEnginePluginErrors(t *testing.T) {
	e, rec := newEngine(t, nil, nil)

	dir := t.TempDir()
	writePlugin(t, dir, "faulty.lua", `
battleship.add_command("boom", function(args) error("boom") end)
battleship.add_command("silent", function(args) end)
`)
	require.NoError(t, e.LoadDir(dir))

	_, err := rec.cmds["boom"](nil)
	require.ErrorContains(t, err, "boom")

	_, err = rec.cmds["silent"](nil)
	require.ErrorContains(t, err, "no output")
}

func TestEngineRegisteredUsers(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewMemoryStore()

	hash, err := store.HashPassword("secret")
	require.NoError(t, err)
	require.NoError(t, st.CreateUser(ctx, "alice", hash, "device-1"))
	require.NoError(t, st.CreateUser(ctx, "bob", hash, "device-2"))
	require.NoError(t, st.RecordResult(ctx, "alice", "bob", time.Minute))
	require.NoError(t, st.RecordResult(ctx, "alice", "bob", time.Minute))

	e, rec := newEngine(t, st, nil)

	dir := t.TempDir()
	writePlugin(t, dir, "tally.lua", `
battleship.add_command("tally", function(args)
    local out = ""
    for _, u in ipairs(battleship.registered_users()) do
        out = out .. u.name .. "=" .. u.wins .. ";"
    end
    return out
end)
`)
	require.NoError(t, e.LoadDir(dir))

	out, err := rec.cmds["tally"](nil)
	require.NoError(t, err)
	assert.Equal(t, "alice=2;bob=0;", out)
}

func TestEngineOnlineUsers(t *testing.T) {
	presence := &stubPresence{players: []game.Player{
		&stubPlayer{name: "alice"},
		&stubPlayer{name: "bob"},
	}}
	e, rec := newEngine(t, nil, presence)

	dir := t.TempDir()
	writePlugin(t, dir, "who.lua", `
battleship.add_command("who", function(args)
    return table.concat(battleship.online_users(), ",")
end)
`)
	require.NoError(t, e.LoadDir(dir))

	out, err := rec.cmds["who"](nil)
	require.NoError(t, err)
	assert.Equal(t, "alice,bob", out)
}

// Пиним поведение плагина, который реально лежит в plugins/.
func TestEngineShippedLeaderboard(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewMemoryStore()

	hash, err := store.HashPassword("secret")
	require.NoError(t, err)
	require.NoError(t, st.CreateUser(ctx, "alice", hash, "device-1"))
	require.NoError(t, st.CreateUser(ctx, "bob", hash, "device-2"))
	require.NoError(t, st.RecordResult(ctx, "bob", "alice", time.Minute))

	e, rec := newEngine(t, st, nil)
	require.NoError(t, e.LoadDir(filepath.Join("..", "..", "plugins")))

	fn, ok := rec.cmds["leaderboard"]
	require.True(t, ok, "shipped leaderboard plugin not registered")

	out, err := fn(nil)
	require.NoError(t, err)
	assert.Equal(t, "Top users:\nbob - 1\nalice - 0", out)
}
