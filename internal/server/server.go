// Package server wires the services together and lays out the HTTP routes.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rowanhall/hearth/internal/assistant"
	"github.com/rowanhall/hearth/internal/backup"
	"github.com/rowanhall/hearth/internal/calendar"
	"github.com/rowanhall/hearth/internal/config"
	"github.com/rowanhall/hearth/internal/handler"
	"github.com/rowanhall/hearth/internal/kv"
	"github.com/rowanhall/hearth/internal/ledger"
	"github.com/rowanhall/hearth/internal/middleware"
	"github.com/rowanhall/hearth/internal/notify"
	ws "github.com/rowanhall/hearth/internal/websocket"
)

type Server struct {
	cfg         *config.Config
	hub         *ws.Hub
	ledgerH     *handler.LedgerHandler
	calendarH   *handler.CalendarHandler
	assistantH  *handler.AssistantHandler
	authH       *handler.AuthHandler
	cronH       *handler.CronHandler
	webhookH    *handler.WebhookHandler
	rateLimiter *middleware.RateLimiter
	digest      *notify.Digest
	snapshotter *backup.Snapshotter
	logger      *slog.Logger
}

// New builds every service on top of the document store and returns the
// assembled server. The assistant chat endpoint is only enabled when a
// model API key is configured.
func New(ctx context.Context, cfg *config.Config, store kv.Store, logger *slog.Logger) (*Server, error) {
	hub := ws.NewHub(logger.With("component", "websocket"))

	ledgerSvc := ledger.New(store, logger.With("component", "ledger"))
	calendarSvc := calendar.New(store, logger.With("component", "calendar"))
	dispatcher := assistant.NewDispatcher(calendarSvc, logger.With("component", "assistant"))

	var chat *assistant.Chat
	if cfg.Assistant.Enabled() {
		var err error
		chat, err = assistant.NewChat(ctx, cfg.Assistant.APIKey, cfg.Assistant.Model, dispatcher, logger.With("component", "assistant"))
		if err != nil {
			return nil, err
		}
	}

	telegram := notify.NewTelegramClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	telephony := notify.NewTelephonyClient(cfg.Telephony.AccountSID, cfg.Telephony.AuthToken, cfg.Telephony.FromNumber)

	var sender notify.Sender = telegram
	if !telegram.Configured() && telephony.Configured() {
		sender = notify.SMSSender(telephony, cfg.Telephony.ToNumber)
	}

	digest := notify.NewDigest(
		ledgerSvc, calendarSvc, sender, store,
		cfg.Digest.Hour, cfg.DigestLocation(),
		logger.With("component", "digest"),
	)

	snapshotter := backup.New(backup.Config{
		Endpoint:   cfg.Backup.Endpoint,
		Bucket:     cfg.Backup.Bucket,
		Region:     cfg.Backup.Region,
		AccessKey:  cfg.Backup.AccessKey,
		SecretKey:  cfg.Backup.SecretKey,
		Prefix:     cfg.Backup.Prefix,
		Passphrase: cfg.Backup.Passphrase,
	}, store, logger.With("component", "backup"))

	if cfg.Auth.CronToken == "" {
		logger.Warn("cron token not set, cron endpoints are open")
	}

	return &Server{
		cfg:         cfg,
		hub:         hub,
		ledgerH:     handler.NewLedgerHandler(ledgerSvc, hub, logger.With("component", "ledger_handler")),
		calendarH:   handler.NewCalendarHandler(calendarSvc, hub, logger.With("component", "calendar_handler")),
		assistantH:  handler.NewAssistantHandler(dispatcher, chat, logger.With("component", "assistant_handler")),
		authH:       handler.NewAuthHandler(cfg.Auth.DashboardPassword, logger.With("component", "auth")),
		cronH:       handler.NewCronHandler(digest, snapshotter, logger.With("component", "cron")),
		webhookH:    handler.NewWebhookHandler(cfg.Telephony.AuthToken, digest, logger.With("component", "webhook")),
		rateLimiter: middleware.NewRateLimiter(),
		digest:      digest,
		snapshotter: snapshotter,
		logger:      logger,
	}, nil
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub { return s.hub }

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter { return s.rateLimiter }

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no password required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /logout", s.authH.Logout)
	outerMux.HandleFunc("GET /session", s.authH.Session)

	// Provider webhooks carry their own request signature
	outerMux.HandleFunc("POST /webhooks/sms", s.webhookH.SMS)

	// Cron endpoints are gated by a dedicated token
	cronMux := http.NewServeMux()
	cronMux.HandleFunc("POST /cron/digest", s.cronH.Digest)
	cronMux.HandleFunc("POST /cron/backup", s.cronH.Backup)
	cronMux.HandleFunc("POST /cron/restore", s.cronH.Restore)
	outerMux.Handle("/cron/", middleware.RequireToken(s.cfg.Auth.CronToken)(cronMux))

	// Everything else requires the household password
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)
	outerMux.Handle("/api/", middleware.RequireAuth(s.cfg.Auth.DashboardPassword)(protectedMux))
	outerMux.Handle("GET /ws", middleware.RequireAuth(s.cfg.Auth.DashboardPassword)(ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket"))))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(h).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Kids
	mux.HandleFunc("GET /api/kids", s.ledgerH.ListKids)
	mux.HandleFunc("POST /api/kids", s.ledgerH.CreateKid)
	mux.HandleFunc("GET /api/kids/{id}/balance", s.ledgerH.Balance)
	mux.HandleFunc("GET /api/balances", s.ledgerH.Balances)

	// Chores
	mux.HandleFunc("GET /api/chores", s.ledgerH.ListChores)
	mux.HandleFunc("POST /api/chores", s.ledgerH.CreateChore)
	mux.HandleFunc("PUT /api/chores/{id}", s.ledgerH.UpdateChore)
	mux.HandleFunc("DELETE /api/chores/{id}", s.ledgerH.ArchiveChore)

	// Completions
	mux.HandleFunc("GET /api/completions", s.ledgerH.ListCompletions)
	mux.HandleFunc("POST /api/completions", s.ledgerH.RecordCompletion)
	mux.HandleFunc("POST /api/completions/{id}/approve", s.ledgerH.ApproveCompletion)
	mux.HandleFunc("DELETE /api/completions/{id}", s.ledgerH.RevokeCompletion)

	// Rewards and redemptions
	mux.HandleFunc("GET /api/rewards", s.ledgerH.ListRewards)
	mux.HandleFunc("POST /api/rewards", s.ledgerH.CreateReward)
	mux.HandleFunc("PUT /api/rewards/{id}", s.ledgerH.UpdateReward)
	mux.HandleFunc("DELETE /api/rewards/{id}", s.ledgerH.ArchiveReward)
	mux.HandleFunc("POST /api/rewards/{id}/redeem", s.ledgerH.Redeem)
	mux.HandleFunc("GET /api/redemptions", s.ledgerH.ListRedemptions)

	// Calendar
	mux.HandleFunc("GET /api/calendar/presets", s.calendarH.ListPresets)
	mux.HandleFunc("GET /api/calendar/range", s.calendarH.ListRange)
	mux.HandleFunc("GET /api/calendar/{day}", s.calendarH.ListDay)
	mux.HandleFunc("POST /api/calendar/{day}/events", s.calendarH.CreateEvent)
	mux.HandleFunc("PUT /api/calendar/{day}/events/{id}", s.calendarH.UpdateEvent)
	mux.HandleFunc("DELETE /api/calendar/{day}/events/{id}", s.calendarH.DeleteEvent)

	// Assistant tool surface
	mux.HandleFunc("GET /api/tools", s.assistantH.Tools)
	mux.HandleFunc("POST /api/tools/{name}", s.assistantH.Tool)
	mux.HandleFunc("POST /api/assistant/chat", s.assistantH.Chat)
}
