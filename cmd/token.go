package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/workgate/workgate/internal/session"
)

// newTokenCmd manages bearer tokens directly against a shared Redis store.
// It is an operator escape hatch for the HTTP /tokens endpoints: issuing a
// token here requires the session to already exist (the user completed the
// browser OAuth flow against a server using the same store).
func newTokenCmd() *cobra.Command {
	var (
		redisAddr     string
		redisPassword string
		redisDB       int
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and revoke bearer tokens",
	}

	cmd.PersistentFlags().StringVar(&redisAddr, "redis-addr", "localhost:6379", "Redis address of the gateway's credential store")
	cmd.PersistentFlags().StringVar(&redisPassword, "redis-password", "", "Redis password")
	cmd.PersistentFlags().IntVar(&redisDB, "redis-db", 0, "Redis database number")

	newStore := func(ctx context.Context) (session.Store, error) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		store := session.NewRedisStore(session.RedisConfig{
			Addr:     redisAddr,
			Password: redisPassword,
			DB:       redisDB,
		}, session.TTLs{}, logger)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("credential store unreachable: %w", err)
		}
		return store, nil
	}

	var issueTTL time.Duration
	issueCmd := &cobra.Command{
		Use:   "issue <session-id>",
		Short: "Issue a bearer token bound to an authenticated session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := newStore(ctx)
			if err != nil {
				return err
			}

			sess, err := store.GetSession(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to load session: %w", err)
			}
			if sess == nil || !sess.Authenticated {
				return fmt.Errorf("session %s not found or not authenticated", args[0])
			}

			secret, err := session.NewSecret()
			if err != nil {
				return fmt.Errorf("failed to generate token: %w", err)
			}
			now := time.Now()
			err = store.PutBearerToken(ctx, &session.BearerToken{
				Hash:      session.HashToken(secret),
				SessionID: sess.ID,
				IssuedAt:  now,
				ExpiresAt: now.Add(issueTTL),
			})
			if err != nil {
				return fmt.Errorf("failed to store token: %w", err)
			}

			// The raw secret is printed exactly once; only its hash is stored.
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}
	issueCmd.Flags().DurationVar(&issueTTL, "ttl", session.DefaultTTLs.BearerToken, "Lifetime of the issued token")

	revokeCmd := &cobra.Command{
		Use:   "revoke <token>",
		Short: "Revoke a bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := newStore(ctx)
			if err != nil {
				return err
			}
			if err := store.RevokeBearerToken(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to revoke token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "token revoked")
			return nil
		},
	}

	cmd.AddCommand(issueCmd)
	cmd.AddCommand(revokeCmd)
	return cmd
}
