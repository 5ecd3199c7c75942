package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goSession/authtest"
	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/internal/logging"
)

var (
	fakeAddr   string
	fakeSecret string
	fakeUsers  []string
)

var fakeServerCmd = &cobra.Command{
	Use:   "fake-server",
	Short: "Run an in-memory identity service for local development",
	Long: `Runs the fake identity service on --addr. Accounts live in memory only.
Seed users with --user name:email:password (repeatable).`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		logger := logging.New(s.Log.Level, s.Log.Format, cmd.ErrOrStderr())

		var opts []authtest.Option
		opts = append(opts, authtest.WithLogger(logger))
		var secret []byte
		if fakeSecret != "" {
			secret, err = internal.DecodeSecret(fakeSecret)
			if err != nil {
				return fmt.Errorf("decode --secret: %w", err)
			}
		} else {
			secret, err = internal.NewSecret(internal.DefaultSecretSize)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "signing secret (reuse with --secret): %s\n", internal.EncodeSecret(secret))
		}
		opts = append(opts, authtest.WithSecret(secret))
		fake, err := authtest.New(opts...)
		if err != nil {
			return err
		}
		for _, arg := range fakeUsers {
			name, email, password, err := splitUser(arg)
			if err != nil {
				return err
			}
			if _, err := fake.AddUser(name, email, password); err != nil {
				return fmt.Errorf("seed %s: %w", name, err)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := &http.Server{
			Addr:              fakeAddr,
			Handler:           fake.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		logger.Info("fake identity service listening", "addr", fakeAddr, "users", len(fakeUsers))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	fakeServerCmd.Flags().StringVar(&fakeAddr, "addr", "127.0.0.1:8000", "listen address")
	fakeServerCmd.Flags().StringVar(&fakeSecret, "secret", "", "base64url HS256 secret (random when empty)")
	fakeServerCmd.Flags().StringArrayVar(&fakeUsers, "user", nil, "seed user as name:email:password")
	rootCmd.AddCommand(fakeServerCmd)
}

func splitUser(arg string) (name, email, password string, err error) {
	parts := strings.SplitN(arg, ":", 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("--user %q: want name:email:password", arg)
	}
	return parts[0], parts[1], parts[2], nil
}
