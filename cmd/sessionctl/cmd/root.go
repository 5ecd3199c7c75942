// Package cmd implements the sessionctl commands.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/MrEthical07/goSession/session"
)

// Build information, set with -ldflags.
var (
	Version = "dev"
	Commit  = "none"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sessionctl",
	Short: "Manage a persisted login session against an identity service",
	Long: `sessionctl keeps one authenticated session on disk and drives it against the
identity service: login, register, reconcile, profile changes and logout.

Configuration is read from sessionctl.yaml in the current directory or
$HOME/.sessionctl/. Environment variables override it with the SESSIONCTL_
prefix, for example SESSIONCTL_API_BASE_URL=http://localhost:8000.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(func() { initViper(cfgFile) })
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./sessionctl.yaml)")
}

// env is everything a command needs for one run.
type env struct {
	settings *Settings
	logger   *slog.Logger
	manager  *goSession.Manager
	closers  []func() error
}

func (e *env) Close() {
	if e.manager != nil {
		e.manager.Close()
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.logger.Warn("close failed", "error", err)
		}
	}
}

// openEnv builds a Manager over the configured store. The caller must Close it.
func openEnv(stderr io.Writer) (*env, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, err
	}
	e := &env{
		settings: s,
		logger:   logging.New(s.Log.Level, s.Log.Format, stderr),
	}

	backend, err := e.openBackend()
	if err != nil {
		e.Close()
		return nil, err
	}

	m, err := goSession.New().
		WithConfig(s.managerConfig()).
		WithBackend(backend).
		WithLogger(e.logger).
		WithEventSink(goSession.SinkFunc(func(_ context.Context, ev goSession.Event) {
			e.logger.Debug("session event", "type", ev.Type, "user_id", ev.UserID)
		})).
		Build()
	if err != nil {
		e.Close()
		return nil, err
	}
	e.manager = m
	return e, nil
}

func (e *env) openBackend() (session.Backend, error) {
	s := e.settings
	switch s.Store.Driver {
	case storeRedis:
		rdb := redis.NewClient(&redis.Options{Addr: s.Store.RedisAddr})
		e.closers = append(e.closers, rdb.Close)
		return session.NewRedisBackend(rdb, s.Store.RedisTTL), nil
	case storeMemory:
		return session.NewMemoryBackend(), nil
	default:
		if err := os.MkdirAll(filepath.Dir(s.Store.Path), 0o700); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		b, err := session.OpenSQLite(s.Store.Path)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, b.Close)
		return b, nil
	}
}

// withEnv runs fn with a fresh env and reconciled session.
func withEnv(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	e, err := openEnv(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e.manager.Reconcile(ctx)
	if e.manager.ConsumeExpiryNotice() {
		fmt.Fprintln(cmd.ErrOrStderr(), "Your session has expired. Please log in again.")
	}
	return fn(ctx, e)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
