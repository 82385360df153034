package webhookapp

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/yayitinyu/RelayCat/internal/config"
	relaysvc "github.com/yayitinyu/RelayCat/internal/services/relay"
)

type recordingDispatcher struct {
	updates []relaysvc.Update
	panic   bool
}

func (d *recordingDispatcher) HandleUpdate(upd relaysvc.Update) {
	if d.panic {
		panic("dispatcher blew up")
	}
	d.updates = append(d.updates, upd)
}

func newTestRouter(t *testing.T, d Dispatcher, whCfg config.WebhookConfig) http.Handler {
	t.Helper()
	return newRouter(d, whCfg, zap.NewNop())
}

const sampleUpdate = `{
	"update_id": 10,
	"message": {
		"message_id": 5,
		"from": {"id": 7, "is_bot": false, "first_name": "Test", "is_premium": true},
		"chat": {"id": 7, "type": "private"},
		"date": 1700000000,
		"text": "hello"
	}
}`

func TestWebhookDispatchesUpdate(t *testing.T) {
	d := &recordingDispatcher{}
	h := newTestRouter(t, d, config.WebhookConfig{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(sampleUpdate)))

	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("got %d %q, want 200 OK", rec.Code, rec.Body.String())
	}
	if len(d.updates) != 1 {
		t.Fatalf("dispatcher received %d updates, want 1", len(d.updates))
	}
	upd := d.updates[0]
	if upd.Message == nil || upd.Message.From.ID != 7 {
		t.Fatalf("decoded update lost the sender: %+v", upd)
	}
	if !upd.SenderPremium {
		t.Fatal("is_premium flag not carried through decoding")
	}
}

func TestWebhookSecretEnforced(t *testing.T) {
	d := &recordingDispatcher{}
	whCfg := config.WebhookConfig{Secret: "s3cret", EnforceSecret: true}
	h := newTestRouter(t, d, whCfg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(sampleUpdate)))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("missing secret got %d, want 403", rec.Code)
	}
	if len(d.updates) != 0 {
		t.Fatal("update dispatched despite missing secret")
	}

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(sampleUpdate))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("matching secret got %d, want 200", rec.Code)
	}
	if len(d.updates) != 1 {
		t.Fatal("update not dispatched with matching secret")
	}
}

func TestWebhookSecretNotEnforcedWhenDisabled(t *testing.T) {
	d := &recordingDispatcher{}
	whCfg := config.WebhookConfig{Secret: "s3cret", EnforceSecret: false}
	h := newTestRouter(t, d, whCfg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(sampleUpdate)))
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200 with enforcement off", rec.Code)
	}
}

func TestWebhookMalformedBodyStillOK(t *testing.T) {
	d := &recordingDispatcher{}
	h := newTestRouter(t, d, config.WebhookConfig{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json")))

	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("got %d %q, want 200 OK", rec.Code, rec.Body.String())
	}
	if len(d.updates) != 0 {
		t.Fatal("malformed body must not reach the dispatcher")
	}
}

func TestWebhookPanicStillOK(t *testing.T) {
	d := &recordingDispatcher{panic: true}
	h := newTestRouter(t, d, config.WebhookConfig{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(sampleUpdate)))

	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("got %d %q, want 200 OK after panic", rec.Code, rec.Body.String())
	}
}

func TestWebhookRejectsGet(t *testing.T) {
	d := &recordingDispatcher{}
	h := newTestRouter(t, d, config.WebhookConfig{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /webhook got %d, want 405", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	d := &recordingDispatcher{}
	h := newTestRouter(t, d, config.WebhookConfig{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("healthz got %d, want 200", rec.Code)
	}
}
