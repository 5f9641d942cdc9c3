// Roomsync is the front-desk state synchronization daemon. It keeps rooms,
// reservations and revenue in memory, mirrors them to a local cache, writes
// through to the hotel's Postgres database and serves an HTTP API.
//
// Usage:
//
//	roomsync daemon [--config <path>] [--verbose]   # run engine + HTTP API
//	roomsync migrate [--config <path>]              # create remote tables
//	roomsync status [--config <path>]               # show config & cache state
//	roomsync version                                # print version
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/njoerd114/roomsync/internal/config"
	"github.com/njoerd114/roomsync/internal/handler"
	"github.com/njoerd114/roomsync/internal/invoice"
	"github.com/njoerd114/roomsync/internal/model"
	"github.com/njoerd114/roomsync/internal/realtime"
	"github.com/njoerd114/roomsync/internal/remote"
	"github.com/njoerd114/roomsync/internal/state"
	syncp "github.com/njoerd114/roomsync/internal/sync"
	"github.com/njoerd114/roomsync/internal/telemetry"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// run dispatches to the requested subcommand.
func run() error {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch cmd := os.Args[1]; cmd {
	case "daemon":
		return runDaemon(os.Args[2:])
	case "migrate":
		return runMigrate(os.Args[2:])
	case "status":
		return runStatus(os.Args[2:])
	case "version":
		fmt.Println("roomsync", version)
		return nil
	case "-h", "--help", "help":
		printUsage()
		return nil
	default:
		return fmt.Errorf("unknown command %q, run 'roomsync help' for usage", cmd)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "roomsync: front-desk room and reservation sync")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  roomsync daemon [--config ...] [--verbose]  Run sync engine and HTTP API")
	fmt.Fprintln(os.Stderr, "  roomsync migrate [--config ...]             Create remote tables")
	fmt.Fprintln(os.Stderr, "  roomsync status [--config ...]              Show config and cache state")
	fmt.Fprintln(os.Stderr, "  roomsync version                            Print version")
}

// commonFlags parses --config and --verbose for a subcommand.
func commonFlags(name string, args []string) (cfgPath string, verbose bool, err error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	path := fs.String("config", defaultCfg, "path to config.yaml")
	v := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return "", false, err
	}
	return *path, *v, nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// --- Subcommands -------------------------------------------------------------

// runDaemon starts the engine and the HTTP API and blocks until SIGINT or
// SIGTERM.
func runDaemon(args []string) error {
	cfgPath, verbose, err := commonFlags("daemon", args)
	if err != nil {
		return err
	}
	logger := newLogger(verbose)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config from %q: %w", cfgPath, err)
	}
	logger.Info("config loaded",
		"remote", cfg.Remote != nil,
		"realtime", cfg.Realtime != nil,
		"local_backend", cfg.Local.Backend,
		"rooms", len(cfg.Rooms),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// --- Telemetry (optional) ------------------------------------------------

	if cfg.Telemetry != nil {
		shutdownTel, err := telemetry.Setup(ctx, telemetry.Config{
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
			Insecure:       cfg.Telemetry.Insecure,
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: version,
			Headers:        cfg.Telemetry.Headers,
		})
		if err != nil {
			logger.Error("telemetry setup failed, continuing without telemetry", "error", err)
		} else {
			logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.OTLPEndpoint)
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTel(flushCtx); err != nil {
					logger.Error("telemetry shutdown error", "error", err)
				}
			}()
		}
	}

	// --- Local cache ---------------------------------------------------------

	local, closeLocal, err := openLocal(ctx, cfg.Local)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeLocal(); err != nil {
			logger.Error("closing local cache", "error", err)
		}
	}()
	logger.Info("local cache opened", "backend", cfg.Local.Backend)

	// --- Engine collaborators ------------------------------------------------

	opts := syncp.Options{
		Local:         local,
		RetryAttempts: cfg.Retry.Attempts,
		RetryDelay:    cfg.Retry.Delay,
	}
	for _, r := range cfg.Rooms {
		opts.Rooms = append(opts.Rooms, r.Model())
	}

	if cfg.Remote != nil {
		gw, err := remote.Open(cfg.Remote.DSN, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := gw.Close(); err != nil {
				logger.Error("closing remote store", "error", err)
			}
		}()
		if cfg.Remote.Migrate {
			migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if err := gw.Migrate(migrateCtx); err != nil {
				logger.Warn("remote schema migration failed", "error", err)
			}
			cancel()
		}
		opts.Remote = gw
		opts.Invoices = invoice.NewSource(gw.DB())
		opts.CallTimeout = cfg.Remote.CallTimeout
		opts.OpTimeout = cfg.Remote.OpTimeout
		opts.ProbeTimeout = cfg.Remote.ProbeTimeout
	}

	if cfg.Realtime != nil {
		opts.Subscriber = realtime.NewKafkaSubscriber(realtime.Config{
			Brokers: cfg.Realtime.Brokers,
			Topic:   cfg.Realtime.Topic,
			GroupID: cfg.Realtime.GroupID,
		}, logger)
	}

	// --- Sync engine ---------------------------------------------------------

	engine := syncp.NewEngine(opts, logger)
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error("closing sync engine", "error", err)
		}
	}()
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("starting sync engine: %w", err)
	}

	// --- HTTP API ------------------------------------------------------------

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.NewRouter(handler.New(engine, logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http api listening", "addr", cfg.HTTP.Addr, "mode", engine.Mode())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http api: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// runMigrate creates or updates the remote tables.
func runMigrate(args []string) error {
	cfgPath, verbose, err := commonFlags("migrate", args)
	if err != nil {
		return err
	}
	logger := newLogger(verbose)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config from %q: %w", cfgPath, err)
	}
	if cfg.Remote == nil {
		return fmt.Errorf("no remote block in %q", cfgPath)
	}

	gw, err := remote.Open(cfg.Remote.DSN, logger)
	if err != nil {
		return err
	}
	defer gw.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := gw.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("remote schema up to date")
	return nil
}

// runStatus prints configuration and local cache state.
func runStatus(args []string) error {
	cfgPath, _, err := commonFlags("status", args)
	if err != nil {
		return err
	}

	fmt.Println("Roomsync Status")
	fmt.Println("───────────────")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config:    %s (%v)\n", cfgPath, err)
		return nil
	}
	fmt.Printf("  Config:    %s ✓\n", cfgPath)
	if cfg.Remote != nil {
		fmt.Printf("  Remote:    configured (timeout %s)\n", cfg.Remote.CallTimeout)
	} else {
		fmt.Println("  Remote:    not configured (local only)")
	}
	if cfg.Realtime != nil {
		fmt.Printf("  Realtime:  %s on %d broker(s)\n", cfg.Realtime.Topic, len(cfg.Realtime.Brokers))
	}
	fmt.Printf("  HTTP:      %s\n", cfg.HTTP.Addr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	local, closeLocal, err := openLocal(ctx, cfg.Local)
	if err != nil {
		fmt.Printf("  Cache:     %s unavailable (%v)\n", cfg.Local.Backend, err)
		return nil
	}
	defer closeLocal()

	var (
		mode    syncp.Mode
		revenue int64
		rooms   []model.Room
		res     []model.Reservation
	)
	for key, dst := range map[string]any{
		state.KeyMode:         &mode,
		state.KeyRevenue:      &revenue,
		state.KeyRooms:        &rooms,
		state.KeyReservations: &res,
	} {
		data, err := local.Load(ctx, key)
		if err != nil {
			fmt.Printf("  Cache:     unreadable (%v)\n", err)
			return nil
		}
		if data != nil {
			_ = json.Unmarshal(data, dst)
		}
	}
	if mode == "" {
		fmt.Printf("  Cache:     %s, empty\n", cfg.Local.Backend)
		return nil
	}
	fmt.Printf("  Cache:     %s\n", cfg.Local.Backend)
	if saved, err := lastSaved(ctx, local); err != nil {
		fmt.Printf("  Saved:     unknown (%v)\n", err)
	} else if !saved.IsZero() {
		fmt.Printf("  Saved:     %s (%s ago)\n", saved.Local().Format(time.DateTime), time.Since(saved).Round(time.Second))
	}
	fmt.Printf("  Last mode: %s\n", mode)
	fmt.Printf("  Rooms:     %d\n", len(rooms))
	fmt.Printf("  Bookings:  %d\n", len(res))
	fmt.Printf("  Revenue:   %d.%02d\n", revenue/100, revenue%100)
	return nil
}

// cacheStore is a local cache that also reports when each key was saved.
// Implemented by [state.Store] and [state.RedisStore].
type cacheStore interface {
	syncp.LocalStore
	UpdatedAt(ctx context.Context, key string) (time.Time, error)
}

// lastSaved returns the most recent save time across the snapshot keys, or
// the zero time for an empty cache.
func lastSaved(ctx context.Context, c cacheStore) (time.Time, error) {
	var latest time.Time
	for _, key := range []string{state.KeyMode, state.KeyRooms, state.KeyReservations, state.KeyRevenue} {
		at, err := c.UpdatedAt(ctx, key)
		if err != nil {
			return time.Time{}, err
		}
		if at.After(latest) {
			latest = at
		}
	}
	return latest, nil
}

// openLocal opens the configured cache backend.
func openLocal(ctx context.Context, cfg config.LocalConfig) (cacheStore, func() error, error) {
	if cfg.Backend == config.BackendRedis {
		rs, err := state.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, fmt.Errorf("opening redis cache at %q: %w", cfg.RedisAddr, err)
		}
		return rs, rs.Close, nil
	}

	path := cfg.Path
	if path == "" {
		var err error
		if path, err = state.DefaultDBPath(); err != nil {
			return nil, nil, fmt.Errorf("resolving cache path: %w", err)
		}
	}
	store, err := state.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening cache at %q: %w", path, err)
	}
	return store, store.Close, nil
}
