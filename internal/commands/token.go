package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kislikjeka/tallymigrate/internal/transport/httpapi/middleware"
)

func newTokenCommand() *cobra.Command {
	var operator, secret string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator token for the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				_ = godotenv.Load()
				secret = os.Getenv("JWT_SECRET")
			}
			if len(secret) < 32 {
				return errors.New("JWT_SECRET must be at least 32 characters long")
			}

			token, err := middleware.NewJWTService(secret).GenerateToken(operator, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&operator, "operator", "", "operator the token is issued to")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default $JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", middleware.DefaultTokenTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("operator")
	return cmd
}
