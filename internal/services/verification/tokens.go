package verification

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	// TokenTypeVerify marks a token embedded in a verification-page link.
	TokenTypeVerify = "verify"
	// TokenTypeSuccess marks a token the page hands back after a passed
	// CAPTCHA, redeemed via /start.
	TokenTypeSuccess = "success"
)

var (
	// ErrTokenExpired is returned when the token was well-formed and
	// correctly signed but its expiry (plus leeway) has passed. Callers
	// message the user differently for this case.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers every other decode failure: bad signature,
	// wrong algorithm, malformed payload.
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims is the decoded view of a relay token.
type Claims struct {
	Type      string
	UserID    int64
	Verified  bool
	ExpiresAt time.Time
}

// tokenClaims is the wire format. Field names match the historical tokens so
// links minted before an upgrade still validate.
type tokenClaims struct {
	Type     string `json:"type"`
	UserID   int64  `json:"user_id"`
	Verified bool   `json:"verified,omitempty"`
	jwt.RegisteredClaims
}

// Manager issues and validates the two signed token kinds. Tokens are
// stateless; nothing is recorded server-side at issuance or redemption.
type Manager struct {
	secret []byte
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

func NewManager(secret string, ttl, leeway time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		leeway: leeway,
		now:    time.Now,
	}
}

// IssueVerify mints the token embedded in a verification-page URL.
func (m *Manager) IssueVerify(userID int64) (string, time.Time, error) {
	expiresAt := m.now().Add(m.ttl)
	token, err := m.sign(tokenClaims{
		Type:   TokenTypeVerify,
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// IssueSuccess mints the token the verification page presents after a passed
// CAPTCHA. It inherits the originating verify token's expiry; a zero
// expiresAt recomputes now+TTL.
func (m *Manager) IssueSuccess(userID int64, expiresAt time.Time) (string, error) {
	if expiresAt.IsZero() {
		expiresAt = m.now().Add(m.ttl)
	}
	return m.sign(tokenClaims{
		Type:     TokenTypeSuccess,
		UserID:   userID,
		Verified: true,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
}

// Decode validates raw and returns its claims. Expiry is checked against the
// configured leeway; ErrTokenExpired and ErrTokenInvalid are the only error
// values returned.
func (m *Manager) Decode(raw string) (Claims, error) {
	if strings.TrimSpace(raw) == "" {
		return Claims{}, ErrTokenInvalid
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(m.leeway),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	if token == nil || !token.Valid {
		return Claims{}, ErrTokenInvalid
	}
	if claims.ExpiresAt == nil {
		return Claims{}, ErrTokenInvalid
	}

	return Claims{
		Type:      claims.Type,
		UserID:    claims.UserID,
		Verified:  claims.Verified,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (m *Manager) sign(claims tokenClaims) (string, error) {
	if len(m.secret) == 0 {
		return "", fmt.Errorf("token secret is empty")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
