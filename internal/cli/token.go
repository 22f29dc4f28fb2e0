package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pratik-mahalle/wiman/internal/auth"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the bearer token used for API calls",
	}

	cmd.AddCommand(newTokenSetCmd())
	cmd.AddCommand(newTokenClearCmd())
	cmd.AddCommand(newTokenMintCmd())

	return cmd
}

func newTokenSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <token>",
		Short: "Store a token issued by the auth service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			viper.Set("auth.token", args[0])
			if _, err := writeConfig(); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}
			fmt.Println("Token saved")
			return nil
		},
	}
}

func newTokenClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			viper.Set("auth.token", "")
			if _, err := writeConfig(); err != nil {
				return err
			}
			fmt.Println("Token cleared")
			return nil
		},
	}
}

func newTokenMintCmd() *cobra.Command {
	var (
		userID int64
		email  string
		role   string
		secret string
		ttl    time.Duration
		save   bool
	)

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Sign a development token with the shared secret",
		Long: `Sign a token the way the auth service does. Only useful against a server
whose JWT_SECRET you know, such as a local development instance.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return fmt.Errorf("--user-id must be positive")
			}
			if role != auth.RoleUser && role != auth.RoleAdmin {
				return fmt.Errorf("--role must be %q or %q", auth.RoleUser, auth.RoleAdmin)
			}
			if secret == "" {
				secret = viper.GetString("auth.jwt_secret")
			}
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("no signing secret: pass --secret or set JWT_SECRET")
			}

			token, err := auth.Mint(auth.Identity{UserID: userID, Email: email, Role: role}, secret, ttl)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}

			if save {
				viper.Set("auth.token", token)
				if _, err := writeConfig(); err != nil {
					return fmt.Errorf("failed to save token: %w", err)
				}
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user-id", 0, "user the token is issued to")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&role, "role", auth.RoleUser, "role claim: user or admin")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&save, "save", false, "store the token for later commands")

	return cmd
}
