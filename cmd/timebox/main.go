package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/oauth2"

	"github.com/example/timebox/internal/application"
	"github.com/example/timebox/internal/config"
	httptransport "github.com/example/timebox/internal/http"
	"github.com/example/timebox/internal/logging"
	"github.com/example/timebox/internal/outbox"
	"github.com/example/timebox/internal/outlook"
	"github.com/example/timebox/internal/persistence/sqlite"
)

// syncOutcomeRetention bounds how long sync attempt records are kept.
const syncOutcomeRetention = 30 * 24 * time.Hour

func main() {
	logger := logging.New(os.Stdout, slog.LevelInfo)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := sqlite.NewDB(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		sqlDB, derr := db.DB()
		if derr != nil {
			return
		}
		if cerr := sqlDB.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	users := sqlite.NewUserRepository(db)
	sessions := sqlite.NewSessionRepository(db)
	tasks := sqlite.NewTaskRepository(db)
	history := sqlite.NewHistoryRepository(db)
	reminders := sqlite.NewReminderRepository(db)
	recurring := sqlite.NewRecurringEventRepository(db)
	integrations := sqlite.NewOutlookRepository(db)
	outcomes := sqlite.NewSyncOutcomeRepository(db)

	idGenerator := uuid.NewString
	tokenGenerator := func() string { return randomHex(32) }
	now := time.Now

	graph := outlook.NewClient(logger)
	tokens := &tokenSourceProxy{}
	queue := outbox.NewQueue(tokens, graph, integrations, tasks, outcomes, idGenerator, now, logger)

	// When the Microsoft application settings are absent the service gets no
	// OAuth config or Graph client and reports the feature as unconfigured.
	var oauthCfg *oauth2.Config
	var serviceGraph application.GraphClient
	if cfg.Outlook.Enabled() {
		oauthCfg = outlook.NewOAuthConfig(cfg.Outlook.ClientID, cfg.Outlook.ClientSecret, cfg.Outlook.RedirectURL)
		serviceGraph = graph
	}
	outlookService := application.NewOutlookService(
		integrations, tasks, outcomes, queue,
		oauthCfg, serviceGraph,
		cfg.BaseURL+"/api/outlook/webhook",
		idGenerator, now, logger,
	)
	tokens.source = outlookService

	authService := application.NewAuthService(users, sessions, nil, nil, idGenerator, tokenGenerator, now, cfg.SessionTTL, logger)
	taskService := application.NewTaskService(tasks, history, queue, idGenerator, now, logger)
	reminderService := application.NewReminderService(reminders, idGenerator, now, logger)
	recurringService := application.NewRecurringEventService(recurring, nil, idGenerator, now, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:      httptransport.NewAuthHandler(authService, logger),
		Tasks:     httptransport.NewTaskHandler(taskService, logger),
		Reminders: httptransport.NewReminderHandler(reminderService, logger),
		Recurring: httptransport.NewRecurringHandler(recurringService, logger),
		Outlook:   httptransport.NewOutlookHandler(outlookService, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.RequireSession(authService, logger, httptransport.PublicPaths...),
		},
	})

	queue.Start(ctx)
	defer queue.Stop()

	jobs := cron.New()
	if _, err := jobs.AddFunc("@hourly", func() {
		if err := sessions.DeleteExpiredSessions(context.Background(), now()); err != nil {
			logger.Error("failed to purge expired sessions", "error", err)
		}
	}); err != nil {
		logger.Error("failed to schedule session purge", "error", err)
		os.Exit(1)
	}
	if _, err := jobs.AddFunc("@daily", func() {
		if err := outcomes.DeleteOutcomesBefore(context.Background(), now().Add(-syncOutcomeRetention)); err != nil {
			logger.Error("failed to prune sync outcomes", "error", err)
		}
	}); err != nil {
		logger.Error("failed to schedule outcome pruning", "error", err)
		os.Exit(1)
	}
	jobs.Start()
	defer jobs.Stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("timebox API listening", "addr", server.Addr, "outlook_enabled", cfg.Outlook.Enabled())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// tokenSourceProxy breaks the construction cycle between the sync queue and
// the Outlook service. The source is assigned before the queue starts.
type tokenSourceProxy struct {
	source outbox.TokenSource
}

func (p *tokenSourceProxy) ValidAccessToken(ctx context.Context, userID string) (string, error) {
	if p == nil || p.source == nil {
		return "", errors.New("token source not ready")
	}
	return p.source.ValidAccessToken(ctx, userID)
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
