package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/ticket-bot/internal/auth"
)

var tokenSubject string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the ops HTTP API",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "name of the operator or client the token is for")
	_ = tokenCmd.MarkFlagRequired("subject")
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, _, err := bootstrap()
	if err != nil {
		return err
	}
	if cfg.Ops.JWTSecret == "" {
		return errors.New("OPS_JWT_SECRET not set")
	}
	tokens := auth.NewTokenManager(cfg.Ops.JWTSecret, cfg.App.Name, cfg.Ops.TokenTTLMinutes)
	token, expiresAt, err := tokens.GenerateToken(tokenSubject)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
	return nil
}
