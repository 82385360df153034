// Package webhookapp wires the Telegram webhook endpoint: the HTTP server,
// the secret-token gate, and the relay dispatcher behind it.
package webhookapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yayitinyu/RelayCat/internal/config"
	"github.com/yayitinyu/RelayCat/internal/infra/telegram"
	"github.com/yayitinyu/RelayCat/internal/jobs/cleanup"
	filerepo "github.com/yayitinyu/RelayCat/internal/repo/file"
	filtersvc "github.com/yayitinyu/RelayCat/internal/services/filter"
	ratesvc "github.com/yayitinyu/RelayCat/internal/services/rate"
	relaysvc "github.com/yayitinyu/RelayCat/internal/services/relay"
	"github.com/yayitinyu/RelayCat/internal/services/verification"
)

// Dispatcher consumes one decoded webhook update.
type Dispatcher interface {
	HandleUpdate(upd relaysvc.Update)
}

type App struct {
	cfg    config.Config
	logger *zap.Logger
	server *http.Server
	router http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if err := cfg.ValidateWebhook(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	bot, err := telegram.NewBot(cfg.Bot.Token, cfg.Bot.APITimeout)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}

	verified := filerepo.NewUserSetRepo(cfg.Storage.VerifiedFile)
	banned := filerepo.NewUserSetRepo(cfg.Storage.BannedFile)
	routes := filerepo.NewRouteRepo(cfg.Storage.RouteFile, cfg.Routes.TTL, cfg.Routes.MaxEntries)
	rateRepo := filerepo.NewRateRepo(cfg.Storage.RateFile)
	words := filerepo.NewBadWordsRepo(cfg.BadWords.File)

	limiter := ratesvc.NewLimiter(rateRepo, cfg.RateLimit.Enabled, cfg.RateLimit.Window, cfg.RateLimit.MaxEvents)
	filter := filtersvc.NewService(words, filtersvc.Config{
		IgnoreCase: cfg.BadWords.IgnoreCase,
		Wildcard:   cfg.BadWords.Wildcard,
		Regex:      cfg.BadWords.Regex,
	})
	tokens := verification.NewManager(cfg.Tokens.Secret, cfg.Tokens.TTL, cfg.Tokens.Leeway)

	botUsername := cfg.Bot.Username
	if botUsername == "" {
		botUsername = bot.Username()
	}

	dispatcher := relaysvc.NewService(relaysvc.Dependencies{
		Transport: bot,
		Verified:  verified,
		Banned:    banned,
		Routes:    routes,
		Words:     words,
		Limiter:   limiter,
		Filter:    filter,
		Tokens:    tokens,
		Logger:    log,
	}, relaysvc.Config{
		AdminID:           cfg.Bot.AdminID,
		BotUsername:       botUsername,
		AllowBotInitiated: cfg.Bot.AllowBotInitiated,
		VerifyURL:         cfg.Captcha.VerifyURL,
		TokenTTL:          cfg.Tokens.TTL,
		BadWordsFile:      cfg.BadWords.File,
	})

	r := newRouter(dispatcher, cfg.Webhook, log)

	sweep := cleanup.New(routes, rateRepo, cfg.RateLimit.Window, time.Hour, log)
	go sweep.Start(ctx)

	server := &http.Server{
		Addr:         cfg.Webhook.Addr,
		Handler:      r,
		ReadTimeout:  cfg.Webhook.ReadTimeout,
		WriteTimeout: cfg.Webhook.WriteTimeout,
		IdleTimeout:  cfg.Webhook.IdleTimeout,
	}

	return &App{
		cfg:    cfg,
		logger: log,
		server: server,
		router: r,
	}, nil
}

func newRouter(d Dispatcher, whCfg config.WebhookConfig, log *zap.Logger) chi.Router {
	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Group(func(r chi.Router) {
		r.Use(secretMiddleware(whCfg, log))
		r.Post("/webhook", handleWebhook(d, log))
	})

	return r
}

// handleWebhook always acknowledges with 200 "OK" once past the secret gate.
// Telegram re-delivers on any other status, so a malformed body or a handler
// panic must not surface as an error.
func handleWebhook(d Dispatcher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("webhook handler panicked", zap.Any("panic", rec))
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		}()

		var upd relaysvc.Update
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			log.Warn("webhook body decode failed", zap.Error(err))
			return
		}

		d.HandleUpdate(upd)
	}
}

func (a *App) Run() error {
	a.logger.Info("webhook server started", zap.String("addr", a.cfg.Webhook.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

func (a *App) Handler() http.Handler {
	return a.router
}
