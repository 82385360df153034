package recaptcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestVerifyParsesSiteVerifyResponse(t *testing.T) {
	var gotSecret, gotResponse, gotRemoteIP string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotSecret = r.PostFormValue("secret")
		gotResponse = r.PostFormValue("response")
		gotRemoteIP = r.PostFormValue("remoteip")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"hostname":"relay.example.com"}`))
	}))
	defer ts.Close()

	c := NewClient("captcha-secret", time.Second)
	c.endpoint = ts.URL

	result, err := c.Verify(context.Background(), "token-123", "203.0.113.9")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if !result.Success {
		t.Fatalf("expected success result")
	}
	if result.Hostname != "relay.example.com" {
		t.Fatalf("unexpected hostname: %q", result.Hostname)
	}
	if gotSecret != "captcha-secret" || gotResponse != "token-123" || gotRemoteIP != "203.0.113.9" {
		t.Fatalf("unexpected form payload: secret=%q response=%q remoteip=%q", gotSecret, gotResponse, gotRemoteIP)
	}
}

func TestVerifyRejectsNon200(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	c := NewClient("captcha-secret", time.Second)
	c.endpoint = ts.URL

	if _, err := c.Verify(context.Background(), "token-123", ""); err == nil {
		t.Fatalf("expected error on non-200 siteverify status")
	}
}

func TestVerifyRejectsEmptyResponse(t *testing.T) {
	c := NewClient("captcha-secret", time.Second)

	if _, err := c.Verify(context.Background(), "  ", ""); err == nil {
		t.Fatalf("expected error on empty captcha response")
	}
}
