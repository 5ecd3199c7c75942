package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
)

var (
	loginUsername string
	loginPassword string

	registerUsername string
	registerEmail    string
	registerPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and persist the session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		password, err := newPrompter(cmd).secret(loginPassword, "Password: ")
		if err != nil {
			return err
		}
		return withEnv(cmd, func(ctx context.Context, e *env) error {
			st, err := e.manager.Login(ctx, loginUsername, password)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", st.Profile.Username)
			return nil
		})
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	RunE: func(cmd *cobra.Command, _ []string) error {
		password, err := newPrompter(cmd).secret(registerPassword, "Password: ")
		if err != nil {
			return err
		}
		return withEnv(cmd, func(ctx context.Context, e *env) error {
			st, err := e.manager.Register(ctx, goSession.RegisterInput{
				Username: registerUsername,
				Email:    registerEmail,
				Password: password,
			})
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered and logged in as %s\n", st.Profile.Username)
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEnv(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer e.Close()
		e.manager.Logout(cmd.Context())
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Reconcile the stored session and print the state as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEnv(cmd, func(_ context.Context, e *env) error {
			return printJSON(cmd.OutOrStdout(), e.manager.Status())
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the current profile",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEnv(cmd, func(_ context.Context, e *env) error {
			st := e.manager.Status()
			if !st.LoggedIn() {
				return goSession.ErrNotAuthenticated
			}
			if !st.Validated {
				fmt.Fprintln(cmd.ErrOrStderr(), "identity service unreachable, showing cached profile")
			}
			return printJSON(cmd.OutOrStdout(), st.Profile)
		})
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "username")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "password (read from stdin when empty)")

	registerCmd.Flags().StringVarP(&registerUsername, "username", "u", "", "username")
	registerCmd.Flags().StringVarP(&registerEmail, "email", "e", "", "email address")
	registerCmd.Flags().StringVarP(&registerPassword, "password", "p", "", "password (read from stdin when empty)")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, statusCmd, whoamiCmd)
}

// prompter reads secrets from one buffered stdin so consecutive prompts see
// consecutive lines.
type prompter struct {
	cmd *cobra.Command
	in  *bufio.Reader
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{cmd: cmd}
}

// secret returns value, or one line from stdin when value is empty.
func (p *prompter) secret(value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}
	if p.in == nil {
		p.in = bufio.NewReader(p.cmd.InOrStdin())
	}
	fmt.Fprint(p.cmd.ErrOrStderr(), prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(prompt), ": "), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// describe maps library errors to short user-facing messages.
func describe(err error) error {
	var apiErr *goSession.Error
	switch {
	case errors.Is(err, goSession.ErrUnreachable):
		return errors.New("identity service unreachable, try again later")
	case errors.As(err, &apiErr):
		return errors.New(apiErr.Message)
	default:
		return err
	}
}
