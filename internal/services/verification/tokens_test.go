package verification

import (
	"errors"
	"testing"
	"time"
)

func newTestManager(t *testing.T, leeway time.Duration) (*Manager, *time.Time) {
	t.Helper()

	now := time.Unix(1_700_000_000, 0)
	m := NewManager("test-secret", 10*time.Minute, leeway)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestVerifyTokenRoundTrip(t *testing.T) {
	m, now := newTestManager(t, 0)

	token, expiresAt, err := m.IssueVerify(42)
	if err != nil {
		t.Fatalf("issue verify: %v", err)
	}
	if got, want := expiresAt, now.Add(10*time.Minute); !got.Equal(want) {
		t.Fatalf("unexpected expiry: got %v want %v", got, want)
	}

	claims, err := m.Decode(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claims.Type != TokenTypeVerify {
		t.Fatalf("unexpected type: %q", claims.Type)
	}
	if claims.UserID != 42 {
		t.Fatalf("unexpected user id: %d", claims.UserID)
	}
	if claims.Verified {
		t.Fatalf("verify token must not carry verified flag")
	}
	if !claims.ExpiresAt.Equal(expiresAt.Truncate(time.Second)) {
		t.Fatalf("unexpected claims expiry: %v", claims.ExpiresAt)
	}
}

func TestSuccessTokenInheritsExpiry(t *testing.T) {
	m, _ := newTestManager(t, 0)

	inherited := time.Unix(1_700_000_300, 0)
	token, err := m.IssueSuccess(42, inherited)
	if err != nil {
		t.Fatalf("issue success: %v", err)
	}

	claims, err := m.Decode(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claims.Type != TokenTypeSuccess || !claims.Verified {
		t.Fatalf("unexpected success claims: %+v", claims)
	}
	if !claims.ExpiresAt.Equal(inherited) {
		t.Fatalf("expected inherited expiry %v, got %v", inherited, claims.ExpiresAt)
	}
}

func TestSuccessTokenRecomputesZeroExpiry(t *testing.T) {
	m, now := newTestManager(t, 0)

	token, err := m.IssueSuccess(42, time.Time{})
	if err != nil {
		t.Fatalf("issue success: %v", err)
	}

	claims, err := m.Decode(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if want := now.Add(10 * time.Minute); !claims.ExpiresAt.Equal(want) {
		t.Fatalf("expected recomputed expiry %v, got %v", want, claims.ExpiresAt)
	}
}

func TestDecodeExpiredBeyondLeeway(t *testing.T) {
	m, _ := newTestManager(t, 5*time.Minute)

	token, _, err := m.IssueVerify(42)
	if err != nil {
		t.Fatalf("issue verify: %v", err)
	}

	// inside leeway: still valid
	m.now = func() time.Time { return time.Unix(1_700_000_000, 0).Add(12 * time.Minute) }
	if _, err := m.Decode(token); err != nil {
		t.Fatalf("decode inside leeway: %v", err)
	}

	// beyond expiry + leeway: expired, and distinguishable from invalid
	m.now = func() time.Time { return time.Unix(1_700_000_000, 0).Add(16 * time.Minute) }
	_, err = m.Decode(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestDecodeWrongSecretIsInvalid(t *testing.T) {
	m, _ := newTestManager(t, 0)

	token, _, err := m.IssueVerify(42)
	if err != nil {
		t.Fatalf("issue verify: %v", err)
	}

	other := NewManager("other-secret", 10*time.Minute, 0)
	other.now = m.now

	_, err = other.Decode(token)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestDecodeGarbageIsInvalid(t *testing.T) {
	m, _ := newTestManager(t, 0)

	for _, raw := range []string{"", "   ", "not-a-token", "a.b.c"} {
		if _, err := m.Decode(raw); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("expected ErrTokenInvalid for %q, got %v", raw, err)
		}
	}
}
