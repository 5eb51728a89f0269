// Package admin exposes the operator surface of the battleship server:
// one shared command set served over the interactive terminal, a
// dedicated admin socket and a watched terminal file.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/SuperWhiteDev/BattleShip/internal/game"
	"github.com/SuperWhiteDev/BattleShip/internal/protocol"
	"github.com/SuperWhiteDev/BattleShip/internal/server"
	"github.com/SuperWhiteDev/BattleShip/internal/store"
)

// Store is the persistence slice the admin commands operate on.
type Store interface {
	ListUsers(ctx context.Context) ([]store.User, error)
	DeleteUser(ctx context.Context, name string) (bool, error)
	DeleteAllData(ctx context.Context) error
	AddToBlacklist(ctx context.Context, name, uid string) error
	RemoveFromBlacklist(ctx context.Context, name string) (bool, error)
	Blacklist(ctx context.Context) ([]store.BlacklistEntry, error)
	AddToWhitelist(ctx context.Context, name string, permission store.Permission) error
	Whitelist(ctx context.Context) ([]store.WhitelistEntry, error)
}

// Control lets the stop and restart commands reach the process manager.
type Control interface {
	Stop()
	Restart()
}

// Handler is a plugin-registered admin command. It receives the
// whitespace-split arguments after the command name.
type Handler func(args []string) (string, error)

// Commands is the shared command set. Execution is serialized: the live
// user table, the session registry and the Lua states behind plugin
// commands are all touched from one command at a time.
type Commands struct {
	store Store
	users *server.UserTable
	reg   *game.Registry
	ctl   Control

	mu     sync.Mutex
	custom map[string]Handler
}

// NewCommands builds the command set around the running server's state.
func NewCommands(st Store, users *server.UserTable, reg *game.Registry, ctl Control) *Commands {
	return &Commands{
		store:  st,
		users:  users,
		reg:    reg,
		ctl:    ctl,
		custom: make(map[string]Handler),
	}
}

// AddCommand registers a plugin command under the given name. A later
// registration with the same name replaces the earlier one.
func (c *Commands) AddCommand(name string, fn Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.custom[strings.ToLower(name)] = fn
}

// Execute runs one command line and returns the printable result.
func (c *Commands) Execute(ctx context.Context, line string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}
	name, rest, _ := strings.Cut(line, " ")
	name = strings.ToLower(name)
	args, kwargs := parseArgs(rest)

	switch name {
	case "help":
		return c.help()
	case "users":
		return c.usersList()
	case "ban-list":
		return c.banList(ctx)
	case "white-list":
		return c.whiteList(ctx)
	case "sessions":
		return c.sessionsList()
	case "ban":
		return c.banUser(ctx, args, kwargs)
	case "unban":
		return c.unbanUser(ctx, args, kwargs)
	case "disconnect":
		return c.disconnectUser(args, kwargs)
	case "stop-session":
		return c.stopSession(args, kwargs)
	case "delete-data":
		return c.deleteData(ctx)
	case "all-users":
		return c.allUsers(ctx)
	case "delete-user":
		return c.deleteUser(ctx, args, kwargs)
	case "add-admin-user":
		return c.addAdminUser(ctx, args, kwargs)
	case "stop":
		c.ctl.Stop()
		return "Stopping the server..."
	case "restart":
		c.ctl.Restart()
		return "Restarting the server..."
	}

	if fn, ok := c.custom[name]; ok {
		out, err := fn(args)
		if err != nil {
			return fmt.Sprintf("Error: %v", err)
		}
		return out
	}
	return fmt.Sprintf("Unknown command: %q. Enter \"help\" to see commands list.", line)
}

// parseArgs splits everything after the command name into positional
// arguments and key=value pairs. Angle brackets from pasted help
// examples are tolerated.
func parseArgs(rest string) ([]string, map[string]string) {
	rest = strings.NewReplacer("<", " ", ">", " ").Replace(rest)

	var args []string
	kwargs := make(map[string]string)
	for _, f := range strings.Fields(rest) {
		if k, v, ok := strings.Cut(f, "="); ok && k != "" {
			kwargs[k] = v
		} else {
			args = append(args, f)
		}
	}
	return args, kwargs
}

// argOrKey favours the named key=value form and falls back to the first
// positional argument.
func argOrKey(args []string, kwargs map[string]string, key string) string {
	if v, ok := kwargs[key]; ok {
		return v
	}
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

const helpText = `Available commands:
    1. users
    2. ban-list
    3. white-list
    4. sessions
    5. ban <user_name>
    6. unban <user_name>
    7. disconnect <user_name>
    8. stop-session <id>
    9. delete-data
    10. all-users
    11. delete-user <user_name>
    12. add-admin-user <user_name>
    13. stop
    14. restart
Example:
    ban SomeUserName

    stop-session 0

    restart`

func (c *Commands) help() string {
	if len(c.custom) == 0 {
		return helpText
	}
	names := slices.Sorted(maps.Keys(c.custom))
	return helpText + "\nPlugin commands:\n    " + strings.Join(names, "\n    ")
}

func (c *Commands) usersList() string {
	users := c.users.List()
	if len(users) == 0 {
		return "No connected clients"
	}
	slices.SortFunc(users, func(a, b *server.User) int {
		return strings.Compare(a.Name(), b.Name())
	})

	var b strings.Builder
	b.WriteString("Connected users:\n")
	for i, u := range users {
		logged := u.State() == server.StateAuthorized
		fmt.Fprintf(&b, "%d. %s (ID: %s, IP: %s) Logged in: %t\n",
			i+1, capitalize(u.Name()), u.UID(), u.IP(), logged)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Commands) banList(ctx context.Context) string {
	entries, err := c.store.Blacklist(ctx)
	if err != nil {
		slog.Error("listing blacklist failed", "error", err)
		return "Error: failed to read the ban list."
	}
	if len(entries) == 0 {
		return "No blocked users yet."
	}

	var b strings.Builder
	b.WriteString("Blocked users:\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s (HID: %s)\n", i+1, capitalize(e.Name), e.UID)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Commands) whiteList(ctx context.Context) string {
	entries, err := c.store.Whitelist(ctx)
	if err != nil {
		slog.Error("listing whitelist failed", "error", err)
		return "Error: failed to read the white list."
	}
	if len(entries) == 0 {
		return "No privileged users yet."
	}

	var b strings.Builder
	b.WriteString("Privileged users:\n")
	for i, e := range entries {
		level := strconv.Itoa(int(e.Permission))
		if e.Permission == store.PermissionAdmin {
			level = "Admin"
		}
		fmt.Fprintf(&b, "%d. %s (Privilege level: %s)\n", i+1, capitalize(e.Name), level)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Commands) sessionsList() string {
	sessions := c.reg.List()
	if len(sessions) == 0 {
		return "No active sessions"
	}

	var b strings.Builder
	b.WriteString("Active Game Sessions:\n")
	for i, s := range sessions {
		names := s.PlayerNames()
		for j, n := range names {
			names[j] = "'" + n + "'"
		}
		fmt.Fprintf(&b, "%d. Session #%d (%s). Players: %s\n",
			i+1, s.ID(), s.Phase(), strings.Join(names, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Commands) banUser(ctx context.Context, args []string, kwargs map[string]string) string {
	name := argOrKey(args, kwargs, "user_name")
	if name == "" {
		return "Error: Specify a valid user name to ban (e.g., 'ban <user_name>')."
	}

	u := c.users.Get(name)
	if u == nil {
		return fmt.Sprintf("Failed to ban user with name %s.", name)
	}
	if err := c.store.AddToBlacklist(ctx, u.Name(), u.UID()); err != nil {
		slog.Error("banning user failed", "name", name, "error", err)
		return fmt.Sprintf("Failed to ban user with name %s.", name)
	}

	u.Send(protocol.NewStatus(protocol.StatusDisconnected))
	u.Disconnect()
	slog.Warn("user banned by admin", "name", u.Name(), "uid", u.UID())
	return fmt.Sprintf("The User with name %s has been banned.", name)
}

func (c *Commands) unbanUser(ctx context.Context, args []string, kwargs map[string]string) string {
	name := argOrKey(args, kwargs, "user_name")
	if name == "" {
		return "Error: Specify a valid user name to unban (e.g., 'unban <user_name>')."
	}

	removed, err := c.store.RemoveFromBlacklist(ctx, name)
	if err != nil {
		slog.Error("unbanning user failed", "name", name, "error", err)
		removed = false
	}
	if !removed {
		return fmt.Sprintf("Failed to unban user with name %s.", name)
	}
	return fmt.Sprintf("The User with name %s has been unbanned.", name)
}

func (c *Commands) disconnectUser(args []string, kwargs map[string]string) string {
	name := argOrKey(args, kwargs, "user_name")
	if name == "" {
		return "Error: Specify a valid user name to disconnect (e.g., 'disconnect <user_name>')."
	}

	u := c.users.Get(name)
	if u == nil {
		return fmt.Sprintf("Failed to disconnect user with name %s.", name)
	}
	u.Send(protocol.NewStatus(protocol.StatusDisconnected))
	u.Disconnect()
	return fmt.Sprintf("The User with name %s has been disconnected.", name)
}

func (c *Commands) stopSession(args []string, kwargs map[string]string) string {
	raw := argOrKey(args, kwargs, "id")
	if raw == "" {
		return "Error: Specify the session id to close (e.g., 'stop-session <id>')."
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return "Error: Specify a valid session id to close it."
	}

	s := c.reg.Get(int32(id))
	if s == nil {
		return "Error: Specify a valid session id to close it."
	}
	s.Stop()
	return fmt.Sprintf("Session #%d has been stopped.", id)
}

func (c *Commands) deleteData(ctx context.Context) string {
	if err := c.store.DeleteAllData(ctx); err != nil {
		slog.Error("wiping database failed", "error", err)
		return "Failed to delete data in the database."
	}
	return "The data in the database has been successfully deleted."
}

func (c *Commands) allUsers(ctx context.Context) string {
	users, err := c.store.ListUsers(ctx)
	if err != nil {
		slog.Error("listing users failed", "error", err)
		return "Error: failed to read registered users."
	}
	if len(users) == 0 {
		return "No registered users yet."
	}

	var b strings.Builder
	b.WriteString("Registered users:\n")
	for i, u := range users {
		fmt.Fprintf(&b, "%d. %s. Since: %s\n",
			i+1, capitalize(u.Name), u.RegisterDate.Format(time.DateOnly))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Commands) deleteUser(ctx context.Context, args []string, kwargs map[string]string) string {
	name := argOrKey(args, kwargs, "user_name")
	if name == "" {
		return "Error: Specify a valid user name to delete (e.g., 'delete-user <user_name>')."
	}

	deleted, err := c.store.DeleteUser(ctx, name)
	if err != nil {
		slog.Error("deleting user failed", "name", name, "error", err)
		deleted = false
	}
	if !deleted {
		return fmt.Sprintf("Failed to delete user with name %s.", name)
	}
	return fmt.Sprintf("The User with name %s has been deleted from database.", name)
}

func (c *Commands) addAdminUser(ctx context.Context, args []string, kwargs map[string]string) string {
	name := argOrKey(args, kwargs, "user_name")
	if name == "" {
		return "Error: Specify a valid user name to add-admin-user (e.g., 'add-admin-user <user_name>')."
	}

	if err := c.store.AddToWhitelist(ctx, name, store.PermissionAdmin); err != nil {
		slog.Error("whitelisting user failed", "name", name, "error", err)
		return fmt.Sprintf("Failed to add user with name %s as an admin.", name)
	}
	return fmt.Sprintf("The user with name %s has been added as an admin.", name)
}
