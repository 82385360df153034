package verifyapp

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/yayitinyu/RelayCat/internal/infra/recaptcha"
	"github.com/yayitinyu/RelayCat/internal/services/verification"
)

//go:embed templates/*.html
var templateFS embed.FS

// CaptchaVerifier checks a submitted CAPTCHA response against the provider.
type CaptchaVerifier interface {
	Verify(ctx context.Context, response, remoteIP string) (recaptcha.Result, error)
}

type handlerDeps struct {
	Tokens  *verification.Manager
	Captcha CaptchaVerifier
	Logger  *zap.Logger
}

type pageConfig struct {
	SiteKey     string
	VerifyURL   string
	BotUsername string
}

type handler struct {
	tokens  *verification.Manager
	captcha CaptchaVerifier
	cfg     pageConfig
	log     *zap.Logger
	tmpl    *template.Template
}

func newHandler(deps handlerDeps, cfg pageConfig) (*handler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse page templates: %w", err)
	}

	return &handler{
		tokens:  deps.Tokens,
		captcha: deps.Captcha,
		cfg:     cfg,
		log:     deps.Logger,
		tmpl:    tmpl,
	}, nil
}

type challengeData struct {
	SiteKey string
	Token   string
}

type successData struct {
	StartCommand string
	DeepLink     string
}

type errorData struct {
	Title   string
	Message string
}

func (h *handler) showChallenge(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		h.renderError(w, http.StatusBadRequest, "Missing token",
			"Open the verification link the bot sent you; the token is part of it.")
		return
	}

	if _, ok := h.checkVerifyToken(w, token); !ok {
		return
	}

	h.render(w, http.StatusOK, "challenge.html", challengeData{
		SiteKey: h.cfg.SiteKey,
		Token:   token,
	})
}

func (h *handler) submitChallenge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, http.StatusBadRequest, "Bad request", "The form could not be read. Please try again.")
		return
	}

	token := strings.TrimSpace(r.PostFormValue("verify_token"))
	claims, ok := h.checkVerifyToken(w, token)
	if !ok {
		return
	}

	result, err := h.captcha.Verify(r.Context(), r.PostFormValue("g-recaptcha-response"), remoteIP(r))
	if err != nil {
		h.log.Warn("captcha verification call failed", zap.Error(err))
		h.renderError(w, http.StatusBadGateway, "Verification unavailable",
			"The CAPTCHA service could not be reached. Please try again in a moment.")
		return
	}
	if !result.Success {
		h.log.Debug("captcha rejected", zap.Strings("error_codes", result.ErrorCodes))
		h.renderError(w, http.StatusForbidden, "Verification failed",
			"The CAPTCHA was not solved. Go back and try again.")
		return
	}
	if !h.hostnameAllowed(r, result.Hostname) {
		h.log.Warn("captcha hostname mismatch", zap.String("hostname", result.Hostname))
		h.renderError(w, http.StatusForbidden, "Verification failed",
			"The CAPTCHA was solved on an unexpected site.")
		return
	}

	successToken, err := h.tokens.IssueSuccess(claims.UserID, claims.ExpiresAt)
	if err != nil {
		h.log.Error("issue success token failed", zap.Error(err), zap.Int64("user_id", claims.UserID))
		h.renderError(w, http.StatusInternalServerError, "Something went wrong",
			"Could not finish the verification. Please try again.")
		return
	}

	h.render(w, http.StatusOK, "success.html", successData{
		StartCommand: "/start " + successToken,
		DeepLink:     "https://t.me/" + h.cfg.BotUsername + "?start=" + url.QueryEscape(successToken),
	})
}

// checkVerifyToken decodes a verify-type token and renders the matching error
// page on failure. The expired and invalid cases stay distinguishable so the
// user knows whether to request a fresh link.
func (h *handler) checkVerifyToken(w http.ResponseWriter, token string) (verification.Claims, bool) {
	claims, err := h.tokens.Decode(token)
	switch {
	case errors.Is(err, verification.ErrTokenExpired):
		h.renderError(w, http.StatusForbidden, "Link expired",
			"This verification link has expired. Message the bot again to get a fresh one.")
		return verification.Claims{}, false
	case err != nil:
		h.renderError(w, http.StatusForbidden, "Invalid link",
			"This verification link is not valid. Message the bot to get a new one.")
		return verification.Claims{}, false
	}

	if claims.Type != verification.TokenTypeVerify {
		h.renderError(w, http.StatusForbidden, "Invalid link",
			"This verification link is not valid. Message the bot to get a new one.")
		return verification.Claims{}, false
	}

	return claims, true
}

// hostnameAllowed accepts the host the page is served on plus the configured
// public verification URL, since the two differ behind a reverse proxy.
func (h *handler) hostnameAllowed(r *http.Request, hostname string) bool {
	if hostname == "" {
		return false
	}

	allowed := map[string]struct{}{stripPort(r.Host): {}}
	if u, err := url.Parse(h.cfg.VerifyURL); err == nil && u.Hostname() != "" {
		allowed[u.Hostname()] = struct{}{}
	}

	_, ok := allowed[hostname]
	return ok
}

func (h *handler) recoverPage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.log.Error("verify page panicked", zap.Any("panic", rec))
				h.renderError(w, http.StatusInternalServerError, "Something went wrong",
					"Could not finish the verification. Please try again.")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *handler) render(w http.ResponseWriter, status int, page string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.tmpl.ExecuteTemplate(w, page, data); err != nil {
		h.log.Error("render page failed", zap.Error(err), zap.String("page", page))
	}
}

func (h *handler) renderError(w http.ResponseWriter, status int, title, message string) {
	h.render(w, status, "error.html", errorData{Title: title, Message: message})
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func stripPort(host string) string {
	h, _, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	return h
}
