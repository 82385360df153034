// Package verifyapp serves the human-verification web page: the reCAPTCHA
// challenge behind the links the bot hands out, and the success page carrying
// the /start token back into Telegram.
package verifyapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/yayitinyu/RelayCat/internal/config"
	"github.com/yayitinyu/RelayCat/internal/infra/recaptcha"
	"github.com/yayitinyu/RelayCat/internal/services/verification"
)

type App struct {
	cfg    config.Config
	logger *zap.Logger
	server *http.Server
	router http.Handler
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if err := cfg.ValidateVerify(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	h, err := newHandler(handlerDeps{
		Tokens:  verification.NewManager(cfg.Tokens.Secret, cfg.Tokens.TTL, cfg.Tokens.Leeway),
		Captcha: recaptcha.NewClient(cfg.Captcha.SecretKey, cfg.Captcha.Timeout),
		Logger:  log,
	}, pageConfig{
		SiteKey:     cfg.Captcha.SiteKey,
		VerifyURL:   cfg.Captcha.VerifyURL,
		BotUsername: cfg.Bot.Username,
	})
	if err != nil {
		return nil, err
	}

	r := newRouter(h, log)

	server := &http.Server{
		Addr:         cfg.Captcha.Addr,
		Handler:      r,
		ReadTimeout:  cfg.Captcha.ReadTimeout,
		WriteTimeout: cfg.Captcha.WriteTimeout,
		IdleTimeout:  cfg.Captcha.IdleTimeout,
	}

	return &App{
		cfg:    cfg,
		logger: log,
		server: server,
		router: r,
	}, nil
}

func newRouter(h *handler, log *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(h.recoverPage)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/", h.showChallenge)
	r.Post("/", h.submitChallenge)

	return r
}

func (a *App) Run() error {
	a.logger.Info("verify server started", zap.String("addr", a.cfg.Captcha.Addr))
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
