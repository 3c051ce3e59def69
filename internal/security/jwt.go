package security

import (
	"errors"
	"fmt"
	"time"

	"auth-core-service/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("access token expired")
	ErrTokenInvalid = errors.New("invalid access token")
)

// SessionClaims carry only an opaque session handle. Every validation has
// to dereference the session server-side, so a leaked signing key exposes
// live sessions, not user data.
type SessionClaims struct {
	SessionUUID string `json:"session_uuid"`
	jwt.RegisteredClaims
}

// LegacyClaims embed user identity directly, as the single-token model did.
type LegacyClaims struct {
	UserID       uint   `json:"user"`
	UserUUID     string `json:"user_uuid"`
	AccessServer string `json:"access_server"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	issuer    string
	secret    []byte
	accessTTL time.Duration
}

func NewJWTManager(issuer, secret string, accessTTL time.Duration) *JWTManager {
	return &JWTManager{issuer: issuer, secret: []byte(secret), accessTTL: accessTTL}
}

func (m *JWTManager) SignSessionToken(sessionUUID string) (string, error) {
	claims := SessionClaims{
		SessionUUID: sessionUUID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *JWTManager) ParseSessionToken(raw string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := m.parse(raw, claims); err != nil {
		return nil, err
	}
	if claims.SessionUUID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (m *JWTManager) SignLegacyToken(user *domain.User) (string, error) {
	claims := LegacyClaims{
		UserID:       user.ID,
		UserUUID:     user.UUID,
		AccessServer: string(user.AccessServer),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   fmt.Sprintf("%d", user.ID),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *JWTManager) ParseLegacyToken(raw string) (*LegacyClaims, error) {
	claims := &LegacyClaims{}
	if err := m.parse(raw, claims); err != nil {
		return nil, err
	}
	if claims.UserID == 0 {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (m *JWTManager) parse(raw string, claims jwt.Claims) error {
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing algorithm")
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}
	if !tok.Valid {
		return ErrTokenInvalid
	}
	return nil
}
