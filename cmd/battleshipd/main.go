package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/SuperWhiteDev/BattleShip/internal/admin"
	"github.com/SuperWhiteDev/BattleShip/internal/config"
	"github.com/SuperWhiteDev/BattleShip/internal/metrics"
	"github.com/SuperWhiteDev/BattleShip/internal/plugin"
	"github.com/SuperWhiteDev/BattleShip/internal/server"
	"github.com/SuperWhiteDev/BattleShip/internal/store"
)

const ConfigPath = "config/battleship.yaml"

// control backs the stop and restart admin commands.
type control struct {
	cancel  context.CancelFunc
	restart atomic.Bool
}

func (c *control) Stop() { c.cancel() }

func (c *control) Restart() {
	c.restart.Store(true)
	c.cancel()
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	ctl := &control{cancel: cancel}
	if err := run(ctx, ctl); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}

	if ctl.restart.Load() {
		slog.Info("restarting")
		if err := reexec(); err != nil {
			slog.Error("restart failed", "err", err)
			os.Exit(1)
		}
	}
}

func run(ctx context.Context, ctl *control) error {
	// Configure slog
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	slog.Info("battleship server starting")

	// Load config
	cfgPath := ConfigPath
	if p := os.Getenv("BATTLESHIP_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	slog.Info("config loaded", "host", cfg.Host, "port", cfg.Port, "max_users", cfg.MaxUsers)

	// Connect to database
	st, err := store.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer st.Close()
	slog.Info("database connected")

	// Run migrations
	if err := store.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// Prometheus collectors
	var mets *metrics.Metrics
	reg := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		reg.MustRegister(collectors.NewGoCollector())
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		mets = metrics.New(reg)
	}

	// Game server
	srv := server.New(cfg, st, mets)

	// Admin surface: one command set shared by every terminal
	auth := admin.NewAuth(cfg.Admin.AuthFile)
	cmds := admin.NewCommands(st, srv.Users(), srv.Registry(), ctl)

	// Lua plugins extend the command set before the terminals start
	if cfg.Plugins.Enabled {
		engine := plugin.NewEngine(st, srv.Users(), cmds)
		defer engine.Close()
		if err := engine.LoadDir(cfg.Plugins.Dir); err != nil {
			slog.Error("loading plugins failed", "error", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Run(gctx); err != nil {
			return fmt.Errorf("game server: %w", err)
		}
		return nil
	})

	if cfg.Admin.Port > 0 {
		console := admin.NewConsole(cfg.Admin, auth, cmds)
		g.Go(func() error {
			if err := console.Run(gctx); err != nil {
				return fmt.Errorf("admin console: %w", err)
			}
			return nil
		})
	}

	if cfg.Admin.TerminalFile != "" {
		fileTerm := admin.NewFileTerminal(cfg.Admin.TerminalFile, auth, cmds, cfg.Admin.ReauthInterval)
		g.Go(func() error {
			if err := fileTerm.Run(gctx); err != nil {
				return fmt.Errorf("file terminal: %w", err)
			}
			return nil
		})
	}

	if cfg.Admin.Terminal {
		term := admin.NewTerminal(auth, cmds, cfg.Admin.ReauthInterval, os.Stdin, os.Stdout)
		g.Go(func() error {
			if err := term.Run(gctx); err != nil {
				return fmt.Errorf("admin terminal: %w", err)
			}
			return nil
		})
	}

	if cfg.Metrics.Enabled {
		g.Go(func() error {
			if err := serveMetrics(gctx, cfg.Metrics.Addr, reg); err != nil {
				return fmt.Errorf("metrics endpoint: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// serveMetrics exposes the Prometheus registry on /metrics until ctx is
// cancelled.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics endpoint listening", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// reexec replaces the process with a fresh copy of itself, keeping
// arguments and environment. Backs the restart admin command.
func reexec() error {
	bin, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable: %w", err)
	}
	return syscall.Exec(bin, os.Args, os.Environ())
}
