package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
)

var (
	profileUsername string
	profileEmail    string

	passwdCurrent string
	passwdNew     string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Change username and email",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEnv(cmd, func(ctx context.Context, e *env) error {
			username := profileUsername
			if username == "" {
				if st := e.manager.Status(); st.LoggedIn() {
					username = st.Profile.Username
				}
			}
			p, err := e.manager.Profiles().UpdateProfile(ctx, goSession.ProfileUpdate{
				Username: username,
				Email:    profileEmail,
			})
			if err != nil {
				return describe(err)
			}
			return printJSON(cmd.OutOrStdout(), p)
		})
	},
}

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the account password",
	RunE: func(cmd *cobra.Command, _ []string) error {
		prompt := newPrompter(cmd)
		current, err := prompt.secret(passwdCurrent, "Current password: ")
		if err != nil {
			return err
		}
		next, err := prompt.secret(passwdNew, "New password: ")
		if err != nil {
			return err
		}
		return withEnv(cmd, func(ctx context.Context, e *env) error {
			form := &goSession.PasswordForm{Current: current, New: next}
			if err := e.manager.Profiles().ChangePassword(ctx, form); err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password updated")
			return nil
		})
	},
}

var avatarCmd = &cobra.Command{
	Use:   "avatar <image-file>",
	Short: "Upload a new profile picture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return withEnv(cmd, func(ctx context.Context, e *env) error {
			p, err := e.manager.Profiles().UpdateAvatar(ctx, goSession.Avatar{
				Filename: filepath.Base(args[0]),
				Data:     data,
			})
			if err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), *p.ImageURL)
			return nil
		})
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the account balance",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEnv(cmd, func(ctx context.Context, e *env) error {
			balance, err := e.manager.Balance(ctx)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), balance)
			return nil
		})
	},
}

func init() {
	profileCmd.Flags().StringVarP(&profileUsername, "username", "u", "", "new username (default: current)")
	profileCmd.Flags().StringVarP(&profileEmail, "email", "e", "", "new email address")

	passwdCmd.Flags().StringVar(&passwdCurrent, "current", "", "current password (read from stdin when empty)")
	passwdCmd.Flags().StringVar(&passwdNew, "new", "", "new password (read from stdin when empty)")

	rootCmd.AddCommand(profileCmd, passwdCmd, avatarCmd, balanceCmd)
}
