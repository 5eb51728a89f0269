package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/SuperWhiteDev/BattleShip/internal/config"
	"github.com/SuperWhiteDev/BattleShip/internal/game"
	"github.com/SuperWhiteDev/BattleShip/internal/metrics"
	"github.com/SuperWhiteDev/BattleShip/internal/protocol"
)

// Server is the game server that accepts client connections on port 64221.
type Server struct {
	cfg   config.Server
	store Store
	mets  *metrics.Metrics

	users    *UserTable
	registry *game.Registry
	mm       *game.Matchmaker
	handler  *Handler
	readPool *BytePool

	listener net.Listener
	mu       sync.Mutex
}

// New wires the user table, matchmaker and session registry around the
// given store. mets may be nil.
func New(cfg config.Server, st Store, mets *metrics.Metrics) *Server {
	users := NewUserTable(cfg.MaxUsers, cfg.MaxUserNameLength)
	registry := game.NewRegistry(st, mets, cfg.MaxGameSessions)
	mm := game.NewMatchmaker(users, registry)

	return &Server{
		cfg:      cfg,
		store:    st,
		mets:     mets,
		users:    users,
		registry: registry,
		mm:       mm,
		handler:  NewHandler(st, users, mm, mets),
		readPool: NewBytePool(protocol.MaxPacketSize),
	}
}

// Users возвращает таблицу онлайн-пользователей (для админ-команд).
func (s *Server) Users() *UserTable {
	return s.users
}

// Registry возвращает реестр активных сессий (для админ-команд).
func (s *Server) Registry() *game.Registry {
	return s.registry
}

// Addr возвращает адрес, на котором слушает сервер.
// Возвращает nil если сервер ещё не запущен.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close закрывает listener и останавливает сервер.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Run binds cfg.Host:cfg.Port with a retry budget (the port may still
// be in TIME_WAIT after a restart) and starts the accept loop.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	attempts := max(s.cfg.InitAttempts, 1)

	var (
		ln  net.Listener
		err error
	)
	for attempt := 1; ; attempt++ {
		ln, err = net.Listen("tcp", addr)
		if err == nil {
			break
		}
		if attempt >= attempts {
			return fmt.Errorf("listening on %s after %d attempts: %w", addr, attempt, err)
		}
		slog.Warn("bind failed, retrying", "address", addr, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	return s.Serve(ctx, ln)
}

// Serve принимает готовый listener и запускает accept loop.
// Используется для тестирования с произвольным listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		slog.Info("battleship server started", "address", ln.Addr())
		acceptLoop(ctx, &wg, s, ln)
	})

	wg.Wait()

	s.shutdown()
	return nil
}

// shutdown stops every session and tells the remaining users goodbye.
func (s *Server) shutdown() {
	s.registry.StopAll()
	for _, u := range s.users.List() {
		u.Send(protocol.NewStatus(protocol.StatusDisconnected))
		u.Disconnect()
	}
	slog.Info("battleship server stopped")
}

func acceptLoop(
	ctx context.Context,
	wg *sync.WaitGroup,
	srv *Server,
	ln net.Listener,
) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				slog.Error("Failed to accept new connection", "error", err)
				continue
			}
			wg.Go(func() {
				handleConnection(ctx, srv, conn)
			})
		}
	}
}

func handleConnection(ctx context.Context, srv *Server, conn net.Conn) {
	done := make(chan struct{})
	defer close(done)

	srv.mets.ConnectionAccepted()

	c := NewConnection(
		conn,
		time.Duration(srv.cfg.ReadTimeout)*time.Second,
		time.Duration(srv.cfg.WriteTimeout)*time.Second,
		srv.readPool,
	)
	u := NewUser(c)

	go func() {
		select {
		case <-ctx.Done():
			c.Send(protocol.NewStatus(protocol.StatusDisconnected))
			c.Disconnect()
		case <-done:
		}
	}()

	slog.Info("new connection", "client", c.IP())

	// Admission before the handshake is even read.
	if srv.users.Full() {
		slog.Warn("server full, rejecting connection", "client", c.IP())
		c.Send(protocol.NewError(protocol.ErrCodeReachedUsersLimit))
		c.Disconnect()
		return
	}

	c.OnDisconnect(func() {
		if srv.users.Remove(u) {
			srv.mets.UserOffline()
			slog.Info("user disconnected", "name", u.Name(), "client", c.IP())
		}
		u.SetLookingForSession(false)
	})

	c.Handle(func(p protocol.Packet) (protocol.Packet, bool) {
		return srv.handler.HandlePacket(ctx, u, p)
	})
}
