package server

import (
	"context"
	"errors"
	"log/slog"

	"github.com/SuperWhiteDev/BattleShip/internal/game"
	"github.com/SuperWhiteDev/BattleShip/internal/metrics"
	"github.com/SuperWhiteDev/BattleShip/internal/protocol"
	"github.com/SuperWhiteDev/BattleShip/internal/store"
)

// maxPasswordAttempts is how many PASSWORD packets an authorizing user
// gets before the connection is dropped.
const maxPasswordAttempts = 4

// Store is the persistence the handler depends on. *store.Store
// implements it; tests substitute an in-memory double.
type Store interface {
	GetUser(ctx context.Context, name string) (*store.User, error)
	CreateUser(ctx context.Context, name, passwordHash, uid string) error
	UpdateLastLogin(ctx context.Context, name, uid string) error
	IsBlacklisted(ctx context.Context, name, uid string) (bool, error)
	game.StatsRecorder
}

// Handler processes client packets. Singleton — один на сервер.
type Handler struct {
	store Store
	users *UserTable
	mm    *game.Matchmaker
	mets  *metrics.Metrics
}

// NewHandler creates a packet handler.
func NewHandler(store Store, users *UserTable, mm *game.Matchmaker, mets *metrics.Metrics) *Handler {
	return &Handler{
		store: store,
		users: users,
		mm:    mm,
		mets:  mets,
	}
}

// HandlePacket dispatches one packet according to the user's auth
// state. The returned packet is the reply (zero packet = nothing to
// send); false closes the connection after the reply.
func (h *Handler) HandlePacket(ctx context.Context, u *User, p protocol.Packet) (protocol.Packet, bool) {
	h.mets.PacketRead(p.Code.String())

	switch u.State() {
	case StateInitial:
		return h.handleHandshake(ctx, u, p)
	case StateConnected:
		return h.handleAuthGate(ctx, u)
	case StateAuthorizing:
		return h.handleAuthorizing(ctx, u, p)
	case StateRegistering:
		return h.handleRegistering(ctx, u, p)
	case StateAuthorized:
		return h.handleAuthorized(ctx, u, p)
	default:
		return protocol.NewError(protocol.ErrCodeUnexpectedPacket), false
	}
}

// handleHandshake admits the announced name into the user table and
// screens it against the blacklist.
func (h *Handler) handleHandshake(ctx context.Context, u *User, p protocol.Packet) (protocol.Packet, bool) {
	creds, ok := p.Payload.(protocol.CredentialsPayload)
	if p.Code != protocol.CodeUsernameAndID || !ok {
		slog.Warn("handshake expected", "got", p.Code, "client", u.IP())
		return protocol.NewError(protocol.ErrCodeUnexpectedPacket), false
	}
	u.setIdentity(creds.Name, creds.UID)

	if err := h.users.Add(u); err != nil {
		slog.Warn("user rejected", "name", creds.Name, "client", u.IP(), "reason", err)
		switch {
		case errors.Is(err, ErrNameInUse):
			return protocol.NewError(protocol.ErrCodeNameAlreadyInUse), false
		case errors.Is(err, ErrNameTooLong):
			return protocol.NewError(protocol.ErrCodeNameTooLong), false
		default:
			return protocol.NewError(protocol.ErrCodeReachedUsersLimit), false
		}
	}
	h.mets.UserOnline()

	banned, err := h.store.IsBlacklisted(ctx, creds.Name, creds.UID)
	if err != nil {
		slog.Error("blacklist lookup failed", "name", creds.Name, "error", err)
		return protocol.NewStatus(protocol.StatusDisconnected), false
	}
	if banned {
		slog.Warn("banned user turned away", "name", creds.Name, "client", u.IP())
		return protocol.NewStatus(protocol.StatusBanned), false
	}

	u.SetState(StateConnected)
	slog.Info("user connected", "name", u.Name(), "client", u.IP(), "id", u.ID())
	return protocol.NewStatus(protocol.StatusConnected), true
}

// handleAuthGate picks the auth path on the first packet after the
// handshake. The password round is skipped when the install id matches
// the last login.
func (h *Handler) handleAuthGate(ctx context.Context, u *User) (protocol.Packet, bool) {
	rec, err := h.store.GetUser(ctx, u.Name())
	if err != nil {
		slog.Error("user lookup failed", "name", u.Name(), "error", err)
		return protocol.NewStatus(protocol.StatusDisconnected), false
	}

	if rec == nil {
		u.SetState(StateRegistering)
		return protocol.NewStatus(protocol.StatusRegisterRequired), true
	}
	if rec.LastLoginID == u.UID() {
		u.SetState(StateAuthorized)
		h.mets.AuthResult("login")
		slog.Info("user authorized", "name", u.Name(), "client", u.IP())
		return protocol.NewOK(), true
	}
	u.SetState(StateAuthorizing)
	u.authAttempts = maxPasswordAttempts
	return protocol.NewStatus(protocol.StatusAuthorizationRequired), true
}

func (h *Handler) handleAuthorizing(ctx context.Context, u *User, p protocol.Packet) (protocol.Packet, bool) {
	pw, ok := p.Payload.(protocol.PasswordPayload)
	if p.Code != protocol.CodePassword || !ok {
		slog.Warn("password expected", "got", p.Code, "name", u.Name(), "client", u.IP())
		return protocol.Packet{}, false
	}

	rec, err := h.store.GetUser(ctx, u.Name())
	if err != nil || rec == nil {
		slog.Error("user lookup failed", "name", u.Name(), "error", err)
		return protocol.NewStatus(protocol.StatusDisconnected), false
	}

	if !store.CheckPassword(rec.PasswordHash, pw.Password) {
		u.authAttempts--
		h.mets.AuthResult("wrong_password")
		slog.Warn("wrong password", "name", u.Name(), "client", u.IP(), "attemptsLeft", u.authAttempts)
		if u.authAttempts <= 0 {
			return protocol.NewError(protocol.ErrCodeUncorrectPacket), false
		}
		return protocol.NewError(protocol.ErrCodeUncorrectPacket), true
	}

	if err := h.store.UpdateLastLogin(ctx, u.Name(), u.UID()); err != nil {
		slog.Error("failed to update last login", "name", u.Name(), "error", err)
	}
	u.SetState(StateAuthorized)
	h.mets.AuthResult("login")
	slog.Info("user authorized", "name", u.Name(), "client", u.IP())
	return protocol.NewOK(), true
}

func (h *Handler) handleRegistering(ctx context.Context, u *User, p protocol.Packet) (protocol.Packet, bool) {
	pw, ok := p.Payload.(protocol.PasswordPayload)
	if p.Code != protocol.CodePassword || !ok {
		slog.Warn("password expected", "got", p.Code, "name", u.Name(), "client", u.IP())
		return protocol.Packet{}, false
	}

	hash, err := store.HashPassword(pw.Password)
	if err != nil {
		slog.Error("hashing password failed", "name", u.Name(), "error", err)
		return protocol.NewStatus(protocol.StatusDisconnected), false
	}
	if err := h.store.CreateUser(ctx, u.Name(), hash, u.UID()); err != nil {
		slog.Error("registering user failed", "name", u.Name(), "error", err)
		return protocol.NewStatus(protocol.StatusDisconnected), false
	}

	u.SetState(StateAuthorized)
	h.mets.AuthResult("registered")
	slog.Info("user registered", "name", u.Name(), "client", u.IP())
	return protocol.NewOK(), true
}

func (h *Handler) handleAuthorized(ctx context.Context, u *User, p protocol.Packet) (protocol.Packet, bool) {
	switch p.Code {
	case protocol.CodePing:
		// Keep-alives double as the ban enforcement point.
		banned, err := h.store.IsBlacklisted(ctx, u.Name(), u.UID())
		if err != nil {
			slog.Error("blacklist lookup failed", "name", u.Name(), "error", err)
			return protocol.NewOK(), true
		}
		if banned {
			slog.Warn("banned user kicked", "name", u.Name(), "client", u.IP())
			return protocol.NewStatus(protocol.StatusBanned), false
		}
		return protocol.NewOK(), true

	case protocol.CodeStatus:
		st, ok := p.Payload.(protocol.Status)
		if !ok {
			return protocol.NewError(protocol.ErrCodeUncorrectPacket), true
		}
		return h.handleStatus(ctx, u, st)

	case protocol.CodeSessionData:
		if s := u.Session(); s != nil && s.Post(u, p) {
			// The session task owns the reply.
			return protocol.Packet{}, true
		}
		return protocol.NewErrorEnum(protocol.ErrCodeUnexpectedPacket, protocol.ErrMsgPlayerNotInAnySession), true

	default:
		return protocol.NewError(protocol.ErrCodeUnexpectedPacket), true
	}
}

func (h *Handler) handleStatus(ctx context.Context, u *User, st protocol.Status) (protocol.Packet, bool) {
	switch st {
	case protocol.StatusFindNewSession:
		if u.Session() != nil {
			return protocol.NewError(protocol.ErrCodeUnexpectedPacket), true
		}
		if h.mm.Find(ctx, u) {
			// The matchmaker already pushed SESSION_STARTED.
			return protocol.Packet{}, true
		}
		return protocol.NewWaiting(""), true

	case protocol.StatusLeaveSession:
		if s := u.Session(); s != nil {
			s.Stop()
			return protocol.NewOK(), true
		}
		h.mm.Leave(u)
		return protocol.NewOK(), true

	case protocol.StatusDisconnected:
		return protocol.Packet{}, false

	default:
		return protocol.NewError(protocol.ErrCodeUnexpectedPacket), true
	}
}
