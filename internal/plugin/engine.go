// Package plugin hosts the Lua scripts that extend the admin command
// set at runtime.
package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/SuperWhiteDev/BattleShip/internal/admin"
	"github.com/SuperWhiteDev/BattleShip/internal/game"
	"github.com/SuperWhiteDev/BattleShip/internal/store"
)

// Store is the persistence slice exposed to plugins.
type Store interface {
	ListUsers(ctx context.Context) ([]store.User, error)
}

// Presence lists who is connected right now.
type Presence interface {
	Players() []game.Player
}

// CommandSink receives the admin commands plugins register.
type CommandSink interface {
	AddCommand(name string, fn admin.Handler)
}

// Engine runs every plugin inside one shared Lua VM. LStates are not
// goroutine-safe, so each call into the VM holds the engine lock; the
// admin command set serializes on its own lock as well.
type Engine struct {
	mu sync.Mutex
	vm *lua.LState

	store    Store
	presence Presence
	cmds     CommandSink
}

// NewEngine creates the VM and installs the battleship module:
//
//	battleship.add_command(name, fn)  -- fn(args) -> string
//	battleship.registered_users()     -- accounts with their stats
//	battleship.online_users()         -- connected user names
//	battleship.log(message)
func NewEngine(st Store, presence Presence, cmds CommandSink) *Engine {
	e := &Engine{
		vm:       lua.NewState(),
		store:    st,
		presence: presence,
		cmds:     cmds,
	}

	mod := e.vm.NewTable()
	e.vm.SetField(mod, "add_command", e.vm.NewFunction(e.luaAddCommand))
	e.vm.SetField(mod, "registered_users", e.vm.NewFunction(e.luaRegisteredUsers))
	e.vm.SetField(mod, "online_users", e.vm.NewFunction(e.luaOnlineUsers))
	e.vm.SetField(mod, "log", e.vm.NewFunction(e.luaLog))
	e.vm.SetGlobal("battleship", mod)

	return e
}

// LoadDir runs every .lua file in dir. A broken plugin is logged and
// skipped so one bad script cannot block startup. Load before the admin
// terminals start serving.
func (e *Engine) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("no plugins directory", "dir", dir)
			return nil
		}
		return fmt.Errorf("reading plugins directory: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			slog.Error("loading plugin failed", "plugin", path, "error", err)
			continue
		}
		slog.Info("plugin loaded", "plugin", entry.Name())
	}
	return nil
}

// Close shuts the VM down.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}

func (e *Engine) luaAddCommand(L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)

	e.cmds.AddCommand(name, func(args []string) (string, error) {
		return e.call(fn, args)
	})
	slog.Info("plugin command registered", "command", name)
	return 0
}

// call invokes a registered plugin command with the argument list.
func (e *Engine) call(fn *lua.LFunction, args []string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.vm.NewTable()
	for _, a := range args {
		t.Append(lua.LString(a))
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		return "", fmt.Errorf("plugin command failed: %w", err)
	}

	ret := e.vm.Get(-1)
	e.vm.Pop(1)
	if ret == lua.LNil {
		return "", fmt.Errorf("plugin command returned no output")
	}
	return lua.LVAsString(ret), nil
}

func (e *Engine) luaRegisteredUsers(L *lua.LState) int {
	users, err := e.store.ListUsers(context.Background())
	if err != nil {
		L.RaiseError("listing users: %v", err)
		return 0
	}

	list := L.NewTable()
	for _, u := range users {
		t := L.NewTable()
		t.RawSetString("name", lua.LString(u.Name))
		t.RawSetString("wins", lua.LNumber(u.Stats.Wins))
		t.RawSetString("defeats", lua.LNumber(u.Stats.Defeats))
		t.RawSetString("matches", lua.LNumber(u.Stats.Matches))
		t.RawSetString("hits", lua.LNumber(u.Stats.Hits))
		t.RawSetString("misses", lua.LNumber(u.Stats.Misses))
		list.Append(t)
	}
	L.Push(list)
	return 1
}

func (e *Engine) luaOnlineUsers(L *lua.LState) int {
	list := L.NewTable()
	for _, p := range e.presence.Players() {
		list.Append(lua.LString(p.Name()))
	}
	L.Push(list)
	return 1
}

func (e *Engine) luaLog(L *lua.LState) int {
	slog.Info("plugin message", "message", L.CheckString(1))
	return 0
}
