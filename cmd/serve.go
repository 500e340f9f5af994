package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/workgate/workgate/internal/auth"
	"github.com/workgate/workgate/internal/breaker"
	"github.com/workgate/workgate/internal/google"
	"github.com/workgate/workgate/internal/instrumentation"
	"github.com/workgate/workgate/internal/prompts"
	"github.com/workgate/workgate/internal/resources"
	"github.com/workgate/workgate/internal/rpc"
	"github.com/workgate/workgate/internal/server"
	"github.com/workgate/workgate/internal/session"
	"github.com/workgate/workgate/internal/tools"
	"github.com/workgate/workgate/internal/tools/calendar_tools"
	"github.com/workgate/workgate/internal/tools/drive_tools"
	"github.com/workgate/workgate/internal/tools/forms_tools"
	"github.com/workgate/workgate/internal/tools/gmail_tools"
	"github.com/workgate/workgate/internal/workspace"
)

func newServeCmd() *cobra.Command {
	var (
		debugMode          bool
		httpAddr           string
		baseURL            string
		googleClientID     string
		googleClientSecret string
		secureCookies      bool

		storeType     string
		redisAddr     string
		redisPassword string
		redisDB       int
		sessionTTL    time.Duration
		bearerTTL     time.Duration

		breakerThreshold   uint32
		breakerCooldown    time.Duration
		breakerWindow      time.Duration
		breakerCallTimeout time.Duration

		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP gateway server",
		Long: `Start the workgate gateway: the authenticated /mcp JSON-RPC endpoint,
the Google OAuth login flow, bearer token management, and a dedicated
Prometheus metrics listener.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if debugMode {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)

			if googleClientID == "" {
				googleClientID = os.Getenv("GOOGLE_CLIENT_ID")
			}
			if googleClientSecret == "" {
				googleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Instrumentation: metrics recorder, tracing, audit log.
			instrConfig := instrumentation.DefaultConfig()
			instrConfig.ServiceVersion = version
			if err := instrConfig.Validate(); err != nil {
				return fmt.Errorf("invalid instrumentation config: %w", err)
			}
			provider, err := instrumentation.NewProvider(ctx, instrConfig)
			if err != nil {
				return fmt.Errorf("failed to initialize instrumentation: %w", err)
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := provider.Shutdown(shutdownCtx); err != nil {
					logger.Warn("instrumentation shutdown failed", slog.Any("error", err))
				}
			}()
			audit := instrumentation.NewAuditLoggerWithConfig(logger, provider.Metrics(), instrConfig.AuditLogging)

			// Credential store.
			ttls := session.TTLs{Session: sessionTTL, BearerToken: bearerTTL}
			var store session.Store
			switch storeType {
			case "memory":
				memStore := session.NewMemoryStore(ttls, logger)
				defer memStore.Close()
				store = memStore
			case "redis":
				store = session.NewRedisStore(session.RedisConfig{
					Addr:     redisAddr,
					Password: redisPassword,
					DB:       redisDB,
				}, ttls, logger)
				pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				err := store.Ping(pingCtx)
				cancel()
				if err != nil {
					return fmt.Errorf("redis store unreachable: %w", err)
				}
			default:
				return fmt.Errorf("unknown store type %q, must be memory or redis", storeType)
			}

			// Google OAuth client and refresh orchestration.
			googleCfg := &google.ClientConfig{
				ClientID:     googleClientID,
				ClientSecret: googleClientSecret,
				RedirectURL:  baseURL + "/oauth/callback",
				Scopes:       google.DefaultScopes,
			}
			orchestrator := google.NewOrchestrator(store, google.NewRefresher(googleCfg), logger,
				google.WithRefreshObserver(func(ctx context.Context, result string) {
					if m := provider.Metrics(); m != nil {
						m.RecordOAuthTokenRefresh(ctx, result)
					}
				}))

			// Circuit breakers, with transitions feeding metrics.
			breakers := breaker.NewRegistry(breaker.Settings{
				FailureThreshold: breakerThreshold,
				Cooldown:         breakerCooldown,
				Window:           breakerWindow,
				CallTimeout:      breakerCallTimeout,
			}, logger)
			if m := provider.Metrics(); m != nil {
				go m.WatchBreakers(ctx, breakers.Subscribe())
			}

			// Tool, resource and prompt table.
			registry := tools.NewRegistry()
			gmail_tools.RegisterGmailTools(registry)
			calendar_tools.RegisterCalendarTools(registry)
			drive_tools.RegisterDriveTools(registry)
			forms_tools.RegisterFormsTools(registry)
			resources.RegisterUserResources(registry)
			prompts.RegisterPrompts(registry)

			factory := workspace.NewFactory(logger)
			router := rpc.NewRouter(registry, orchestrator, factory, breakers,
				rpc.ServerInfo{Name: "workgate", Version: version}, "/oauth/login", logger,
				rpc.WithMetrics(provider.Metrics()))

			resolver := auth.NewResolver(store, logger, auth.WithAuditSink(audit))

			var flow *server.OAuthFlow
			if googleCfg.Configured() {
				flow = server.NewOAuthFlow(googleCfg, store, auth.DefaultCookieName, secureCookies, logger)
				flow.SetMetrics(provider.Metrics())
			} else {
				logger.Warn("google oauth client not configured, login flow disabled")
			}

			gateway := server.New(server.Config{
				Addr:          httpAddr,
				BaseURL:       baseURL,
				SecureCookies: secureCookies,
			}, resolver, router, store, flow, audit, logger)

			// Metrics on a dedicated listener.
			if metricsEnabled && provider.Enabled() {
				metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
					Addr:     metricsAddr,
					Provider: provider,
				}, logger)
				if err != nil {
					return fmt.Errorf("failed to create metrics server: %w", err)
				}
				go func() {
					if err := metricsServer.Start(); err != nil {
						logger.Error("metrics server failed", slog.Any("error", err))
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = metricsServer.Shutdown(shutdownCtx)
				}()
			}

			return gateway.Start(ctx)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&httpAddr, "http-addr", server.DefaultAddr, "Address for the gateway server")
	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:8080", "Externally reachable base URL, used in OAuth redirects")
	cmd.Flags().StringVar(&googleClientID, "google-client-id", "", "Google OAuth client ID (or GOOGLE_CLIENT_ID)")
	cmd.Flags().StringVar(&googleClientSecret, "google-client-secret", "", "Google OAuth client secret (or GOOGLE_CLIENT_SECRET)")
	cmd.Flags().BoolVar(&secureCookies, "secure-cookies", true, "Mark session cookies Secure; disable only for plain-HTTP development")

	cmd.Flags().StringVar(&storeType, "store", "memory", "Credential store backend: memory or redis")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "localhost:6379", "Redis address (store=redis)")
	cmd.Flags().StringVar(&redisPassword, "redis-password", "", "Redis password (store=redis)")
	cmd.Flags().IntVar(&redisDB, "redis-db", 0, "Redis database number (store=redis)")
	cmd.Flags().DurationVar(&sessionTTL, "session-ttl", session.DefaultTTLs.Session, "Idle lifetime of a session")
	cmd.Flags().DurationVar(&bearerTTL, "bearer-ttl", session.DefaultTTLs.BearerToken, "Default lifetime of an issued bearer token")

	cmd.Flags().Uint32Var(&breakerThreshold, "breaker-threshold", breaker.DefaultFailureThreshold, "Consecutive upstream failures that open a circuit")
	cmd.Flags().DurationVar(&breakerCooldown, "breaker-cooldown", breaker.DefaultCooldown, "How long an open circuit waits before a half-open probe")
	cmd.Flags().DurationVar(&breakerWindow, "breaker-window", breaker.DefaultWindow, "Rolling window after which failure counts reset")
	cmd.Flags().DurationVar(&breakerCallTimeout, "breaker-call-timeout", breaker.DefaultCallTimeout, "Per-call timeout for upstream operations")

	cmd.Flags().BoolVar(&metricsEnabled, "metrics", true, "Enable the Prometheus metrics server")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Address for the metrics server")

	return cmd
}
