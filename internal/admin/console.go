package admin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/SuperWhiteDev/BattleShip/internal/config"
)

// Console is the admin socket terminal. It listens on localhost only
// and speaks a line protocol: the password dialog first, then one
// command per line with the response written back newline-terminated.
type Console struct {
	cfg  config.AdminConfig
	auth *Auth
	cmds *Commands
}

// NewConsole builds the socket terminal around the shared command set.
func NewConsole(cfg config.AdminConfig, auth *Auth, cmds *Commands) *Console {
	return &Console{cfg: cfg, auth: auth, cmds: cmds}
}

// Run binds the console port and serves until ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(c.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on admin console %s: %w", addr, err)
	}
	return c.Serve(ctx, ln)
}

// Serve принимает готовый listener и обслуживает админов до отмены ctx.
// Используется для тестирования с произвольным listener.
func (c *Console) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	slog.Info("admin console listening", "address", ln.Addr())

	var wg sync.WaitGroup
	c.acceptLoop(ctx, &wg, ln)
	wg.Wait()

	slog.Info("admin console stopped")
	return nil
}

func (c *Console) acceptLoop(ctx context.Context, wg *sync.WaitGroup, ln net.Listener) {
	// Extra connections wait in the listen backlog until a slot frees.
	sem := make(chan struct{}, max(c.cfg.MaxConnections, 1))
	for {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		conn, err := ln.Accept()
		if err != nil {
			<-sem
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Error("Failed to accept admin connection", "error", err)
			continue
		}
		wg.Go(func() {
			defer func() { <-sem }()
			c.handle(ctx, conn)
		})
	}
}

func (c *Console) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	addr := conn.RemoteAddr()
	slog.Warn("admin console connection opened", "client", addr)
	defer slog.Warn("admin console connection closed", "client", addr)

	out := func(s string) {
		if _, err := conn.Write([]byte(s + "\n")); err != nil {
			conn.Close()
		}
	}
	sc := bufio.NewScanner(conn)
	in := func(prompt string) (string, error) {
		out(prompt)
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return strings.TrimSpace(sc.Text()), nil
	}

	if err := c.auth.EnsureAccess(out, in); err != nil {
		return
	}

	reauth := time.Duration(c.cfg.ReauthInterval) * time.Second
	lastSeen := time.Now()

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		if reauth > 0 && time.Since(lastSeen) >= reauth {
			if err := c.auth.EnsureAccess(out, in); err != nil {
				return
			}
		}
		lastSeen = time.Now()

		slog.Warn("executing admin command", "terminal", "socket", "command", line)
		out(c.cmds.Execute(ctx, line))
	}
}
