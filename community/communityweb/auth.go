// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package communityweb

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"storj.io/common/uuid"

	"github.com/StorXNetwork/gatehouse/community"
)

const sessionTokenType = "session"

// AuthConfig contains configuration for session tokens.
type AuthConfig struct {
	SecretKey  string        `help:"secret key for signing session tokens" default:"" devDefault:"dev-secret-do-not-use"`
	Expiration time.Duration `help:"session token expiration time" default:"720h"`
	Issuer     string        `help:"session token issuer identifier" default:"gatehouse"`
}

// SessionClaims are the JWT claims of a session token.
type SessionClaims struct {
	CommunityID string `json:"communityId"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	DeviceID    string `json:"device,omitempty"`
	TokenType   string `json:"token_type"`
	jwt.RegisteredClaims
}

// AuthService issues and validates session tokens.
type AuthService struct {
	secretKey  []byte
	expiration time.Duration
	issuer     string
	nowFn      func() time.Time
}

// NewAuthService creates a new session token service.
func NewAuthService(config AuthConfig) (*AuthService, error) {
	if config.SecretKey == "" {
		return nil, Error.New("session secret key is required")
	}
	return &AuthService{
		secretKey:  []byte(config.SecretKey),
		expiration: config.Expiration,
		issuer:     config.Issuer,
		nowFn:      time.Now,
	}, nil
}

// TestSetNow sets the clock used for issuing and validating tokens.
func (s *AuthService) TestSetNow(nowFn func() time.Time) {
	s.nowFn = nowFn
}

// GenerateToken signs a token for session.
func (s *AuthService) GenerateToken(ctx context.Context, session community.Session) (_ string, err error) {
	defer mon.Task()(&ctx)(&err)

	if session.CommunityID == "" || session.UserID == "" {
		return "", Error.New("session requires community and user")
	}

	id, err := uuid.New()
	if err != nil {
		return "", Error.Wrap(err)
	}

	now := s.nowFn()
	claims := &SessionClaims{
		CommunityID: session.CommunityID,
		Name:        session.Name,
		Role:        session.Role,
		DeviceID:    session.DeviceID,
		TokenType:   sessionTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.UserID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        id.String(),
		},
	}
	if s.expiration > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.expiration))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		return "", Error.Wrap(err)
	}
	return signed, nil
}

// ValidateToken validates a token and returns its session.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (_ community.Session, err error) {
	defer mon.Task()(&ctx)(&err)

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secretKey, nil
	}, jwt.WithTimeFunc(s.nowFn), jwt.WithIssuer(s.issuer))
	if err != nil {
		return community.Session{}, community.ErrUnauthorized.Wrap(err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return community.Session{}, community.ErrUnauthorized.New("invalid token")
	}
	if claims.TokenType != sessionTokenType {
		return community.Session{}, community.ErrUnauthorized.New("invalid token type")
	}
	if claims.Subject == "" || claims.CommunityID == "" {
		return community.Session{}, community.ErrUnauthorized.New("token has no community or user")
	}

	return community.Session{
		CommunityID: claims.CommunityID,
		UserID:      claims.Subject,
		Name:        claims.Name,
		Role:        claims.Role,
		DeviceID:    claims.DeviceID,
	}, nil
}

type sessionKey struct{}

// WithSession returns a context carrying session.
func WithSession(ctx context.Context, session community.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetSession returns the session of an authenticated request.
func GetSession(ctx context.Context) (community.Session, error) {
	session, ok := ctx.Value(sessionKey{}).(community.Session)
	if !ok {
		return community.Session{}, community.ErrUnauthorized.New("no session")
	}
	return session, nil
}
