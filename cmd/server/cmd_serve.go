package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/agentdesk/internal/agent"
	"github.com/ashureev/agentdesk/internal/api"
	"github.com/ashureev/agentdesk/internal/config"
	"github.com/ashureev/agentdesk/internal/handoff"
	"github.com/ashureev/agentdesk/internal/identity"
	"github.com/ashureev/agentdesk/internal/llm"
	"github.com/ashureev/agentdesk/internal/middleware"
	"github.com/ashureev/agentdesk/internal/notify"
	"github.com/ashureev/agentdesk/internal/scheduler"
	"github.com/ashureev/agentdesk/internal/store"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server and background jobs",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

//nolint:funlen // Startup wiring is intentionally sequential to keep dependency setup explicit.
func runServe(cmd *cobra.Command, _ []string) error {
	logger := setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "model", cfg.LLM.Model)

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()
	slog.Info("Database connected", "path", cfg.DBPath)

	if cfg.LLM.APIKey == "" {
		slog.Warn("LLM_API_KEY is not set; relay calls will be rejected by the gateway")
	}
	completer := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout)

	personas := agent.DefaultPersonas()
	if cfg.PersonasPath != "" {
		if personas, err = agent.LoadPersonas(cfg.PersonasPath); err != nil {
			return fmt.Errorf("load personas: %w", err)
		}
		slog.Info("Personas loaded", "path", cfg.PersonasPath)
	}

	conversationLogger, err := agent.NewConversationLogger(agent.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize conversation logger: %w", err)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	relay := agent.NewService(completer, repo, personas, agent.Config{
		ChatMaxTokens:   cfg.LLM.ChatMaxTokens,
		ChatTemperature: cfg.LLM.ChatTemperature,
		EvalTemperature: cfg.LLM.EvalTemperature,
	}, conversationLogger)
	agentHandler := agent.NewHandler(relay, cfg)
	defer agentHandler.Close()

	notifications := notify.NewService(repo, notify.NewHub())
	notifyHandler := notify.NewHandler(notifications,
		notify.NewStreamHandler(notifications, originPatterns(cfg.CORSAllowedOrigins), cfg.Notifications.StreamKeepalive))

	coordinator := handoff.NewCoordinator(repo, notifications, cfg.Handoff.ReasonMaxLen)
	handoffHandler := handoff.NewHandler(coordinator)

	sessionHandler := api.NewSessionHandler(api.NewHandler(repo))

	jobs, err := scheduler.New(repo, notifications, notifications, schedulerConfig(cfg))
	if err != nil {
		return fmt.Errorf("initialize scheduler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	sessionHandler.RegisterPublicRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo))
		agentHandler.RegisterRoutes(r)
		r.Route("/api", func(r chi.Router) {
			sessionHandler.RegisterRoutes(r)
			handoffHandler.RegisterRoutes(r)
			notifyHandler.RegisterRoutes(r)
		})
	})

	// No WriteTimeout: the notification stream is long-lived.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return jobs.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Server stopped successfully")
	return nil
}

func schedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		ReminderSchedule: cfg.Handoff.ReminderSchedule,
		ReminderAfter:    cfg.Handoff.ReminderAfter,
		PruneSchedule:    cfg.Notifications.PruneSchedule,
		Retention:        cfg.Notifications.Retention,
	}
}

// originPatterns converts CORS origins into websocket host patterns.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			slog.Warn("Ignoring invalid origin for notification stream", "origin", o)
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}
