package request

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"persona/internal/platform/middleware"
	dErrors "persona/pkg/domain-errors"
)

const (
	sessionIssuer   = "persona"
	sessionAudience = "receive-proof"
)

// SessionClaims are carried by the token appended to the proof callback URL.
type SessionClaims struct {
	ProviderID  string `json:"provider_id"`
	UserAddress string `json:"user_address"`
	jwt.RegisteredClaims
}

// SessionIssuer mints and redeems one-time verification session tokens.
// A token binds the provider and address a request was generated for; the
// callback that carries it may only deliver a matching proof, once.
type SessionIssuer struct {
	signingKey []byte
	ttl        time.Duration
	consumer   Consumer
	now        func() time.Time
}

type SessionOption func(*SessionIssuer)

// WithSessionClock overrides time.Now for tests.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *SessionIssuer) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSessionIssuer(signingKey []byte, ttl time.Duration, consumer Consumer, opts ...SessionOption) (*SessionIssuer, error) {
	if len(signingKey) < 32 {
		return nil, errors.New("session signing key must be at least 32 bytes")
	}
	if consumer == nil {
		return nil, errors.New("session consumer is required")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	s := &SessionIssuer{signingKey: signingKey, ttl: ttl, consumer: consumer, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue returns a signed token and its session ID.
func (s *SessionIssuer) Issue(providerID, userAddress string) (token string, sessionID string, err error) {
	now := s.now()
	sessionID = uuid.NewString()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		ProviderID:  providerID,
		UserAddress: userAddress,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    sessionIssuer,
			Audience:  []string{sessionAudience},
			ID:        sessionID,
		},
	})
	token, err = t.SignedString(s.signingKey)
	if err != nil {
		return "", "", fmt.Errorf("sign session token: %w", err)
	}
	return token, sessionID, nil
}

// ValidateSession checks the token and marks it used. A second presentation
// of the same token is rejected.
func (s *SessionIssuer) ValidateSession(ctx context.Context, token string) (*middleware.SessionClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(sessionIssuer),
		jwt.WithAudience(sessionAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "session has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session")
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid || claims.ID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session claims")
	}

	remaining := claims.ExpiresAt.Time.Sub(s.now())
	first, err := s.consumer.Consume(ctx, claims.ID, remaining)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "session store unavailable")
	}
	if !first {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "session already used")
	}
	return &middleware.SessionClaims{
		SessionID:   claims.ID,
		ProviderID:  claims.ProviderID,
		UserAddress: claims.UserAddress,
	}, nil
}
