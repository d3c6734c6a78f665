package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/surplus/internal/api"
	"github.com/erazemk/surplus/internal/auth"
	"github.com/erazemk/surplus/internal/config"
	"github.com/erazemk/surplus/internal/db"
	"github.com/erazemk/surplus/internal/listing"
	"github.com/erazemk/surplus/internal/model"
	"github.com/erazemk/surplus/internal/pgstore"
	"github.com/erazemk/surplus/internal/safety"
	"github.com/erazemk/surplus/internal/store"
)

const shutdownTimeout = 10 * time.Second

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. If logPath is non-empty, all
// levels are also written to that file. The returned cleanup closes it.
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	cleanup := func() {}
	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	slog.SetDefault(slog.New(&levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}))
	return cleanup, nil
}

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := setupLogger(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	code := run(cfg)
	closeLog()
	os.Exit(code)
}

func run(cfg *config.Config) int {
	ctx := context.Background()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		return 1
	}
	defer database.Close()

	// Idempotent: creates the schema on first run.
	if err := db.Migrate(database); err != nil {
		slog.Error("failed to migrate database", "error", err)
		return 1
	}
	slog.Info("database ready", "path", cfg.DBPath)

	password, err := ensureAdmin(ctx, database, cfg.AdminUser)
	if err != nil {
		slog.Error("failed to create admin account", "error", err)
		return 1
	}
	if password != "" {
		printInitResult(cfg.DBPath, cfg.AdminUser, password)
	}

	// Load JWT secret from database (auto-generated on first run).
	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		slog.Error("failed to get JWT secret", "error", err)
		return 1
	}

	repo, closeRepo, err := openListings(ctx, cfg, database)
	if err != nil {
		slog.Error("failed to open listing storage", "error", err)
		return 1
	}
	defer closeRepo()

	windows, err := cfg.Windows()
	if err != nil {
		slog.Error("invalid safety windows", "error", err)
		return 1
	}
	slog.Info("safety windows loaded", "windows", windows.Table())

	manager := listing.NewManager(repo, safety.NewEvaluator(windows), listing.Options{
		StoreTimeout:     cfg.StoreTimeout,
		DegradeOnTimeout: cfg.DegradeOnTimeout,
	})
	if cfg.DegradeOnTimeout {
		slog.Warn("degraded responses on store timeout are enabled")
	}

	apiRouter := api.NewRouter(database, manager, auth.NewTokens(jwtSecret))

	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok\n"))
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LoggingMiddleware(api.RecoverMiddleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server started", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	wait := gfshutdown.GracefulShutdown(ctx, shutdownTimeout, map[string]gfshutdown.Operation{
		"http-server": func(ctx context.Context) error {
			slog.Info("shutdown signal received, draining connections")
			return server.Shutdown(ctx)
		},
	})

	select {
	case err := <-serveErr:
		slog.Error("server error", "error", err)
		return 1
	case exitCode := <-wait:
		slog.Info("server stopped, closing database", "exit_code", exitCode)
		return exitCode
	}
}

// openListings picks the listing store: PostgreSQL when a DSN is configured,
// otherwise the SQLite database that also holds accounts.
func openListings(ctx context.Context, cfg *config.Config, database *sql.DB) (listing.Repository, func(), error) {
	if cfg.ListingsDSN == "" {
		return &store.Listings{DB: database}, func() {}, nil
	}

	pg, err := pgstore.Open(ctx, cfg.ListingsDSN)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("listings stored in postgres")
	return pg, func() { pg.Close() }, nil
}

// ensureAdmin creates the first admin account when none exists and returns
// its generated password. It returns an empty password if an admin exists.
func ensureAdmin(ctx context.Context, database *sql.DB, username string) (string, error) {
	admins, err := store.CountAdmins(ctx, database)
	if err != nil {
		return "", err
	}
	if admins > 0 {
		return "", nil
	}

	password, err := generatePassword(16)
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	if _, err := store.CreateUser(ctx, database, username, string(hash), model.RoleAdmin); err != nil {
		return "", fmt.Errorf("creating admin user: %w", err)
	}
	return password, nil
}

// printInitResult prints the first-run admin credentials to stdout.
func printInitResult(dbPath, username, password string) {
	fmt.Printf("Database initialized: %s\n", dbPath)
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
	fmt.Println()
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
