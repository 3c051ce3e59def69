package service

import (
	"context"
	"log/slog"

	"auth-core-service/internal/domain"
	"auth-core-service/internal/observability"
	"auth-core-service/internal/security"
)

// LegacyTokenPair is the single-token model: one opaque refresh token kept
// on the user row, replaced wholesale on every refresh.
type LegacyTokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// LegacyAuthService keeps the pre-session token flows alive for clients
// that have not migrated. It authenticates through the same resolver and
// OTP machinery as the session flows.
type LegacyAuthService struct {
	resolver *IdentityResolver
	core     *SecurityService
	jwt      *security.JWTManager
	hasher   *security.PasswordHasher
	logger   *slog.Logger
}

func NewLegacyAuthService(resolver *IdentityResolver, core *SecurityService, jwtManager *security.JWTManager, hasher *security.PasswordHasher, logger *slog.Logger) *LegacyAuthService {
	return &LegacyAuthService{
		resolver: resolver,
		core:     core,
		jwt:      jwtManager,
		hasher:   hasher,
		logger:   logger,
	}
}

func (s *LegacyAuthService) LoginByPassword(ctx context.Context, username, password string, groupID int) (*LegacyTokenPair, error) {
	user, err := s.resolver.Resolve(
		ResolveQuery{Username: username, GroupID: groupID},
		ResolveOptions{AssertNotDeactivated: true},
	)
	if err != nil {
		observability.RecordAuthLogin("legacy_password", "rejected")
		return nil, err
	}
	if user.PasswordHash == nil || !s.hasher.Verify(password, *user.PasswordHash) {
		observability.RecordAuthLogin("legacy_password", "rejected")
		return nil, ErrIncorrectCredentials
	}
	pair, err := s.IssueTokens(ctx, user)
	if err != nil {
		observability.RecordAuthLogin("legacy_password", "error")
		return nil, err
	}
	observability.RecordAuthLogin("legacy_password", "success")
	return pair, nil
}

func (s *LegacyAuthService) LoginByOTP(ctx context.Context, username, code string, groupID int) (*LegacyTokenPair, error) {
	user, err := s.core.authenticateByOTP(username, code, groupID)
	if err != nil {
		observability.RecordAuthLogin("legacy_otp", "rejected")
		return nil, err
	}
	pair, err := s.IssueTokens(ctx, user)
	if err != nil {
		observability.RecordAuthLogin("legacy_otp", "error")
		return nil, err
	}
	observability.RecordAuthLogin("legacy_otp", "success")
	return pair, nil
}

// Refresh validates the stored user-row token and replaces it. Unlike the
// session model there is no per-device rotation; the newest refresh wins
// and every other device is logged out.
func (s *LegacyAuthService) Refresh(ctx context.Context, userID uint, refreshToken string) (*LegacyTokenPair, error) {
	user, err := s.resolver.Resolve(
		ResolveQuery{ID: userID},
		ResolveOptions{AssertNotDeactivated: true, AssertRefreshToken: refreshToken},
	)
	if err != nil {
		observability.RecordAuthRefresh("legacy_rejected")
		return nil, err
	}
	pair, err := s.IssueTokens(ctx, user)
	if err != nil {
		observability.RecordAuthRefresh("legacy_error")
		return nil, err
	}
	observability.RecordAuthRefresh("legacy_success")
	return pair, nil
}

// IssueTokens mints a legacy JWT and regenerates the opaque refresh token
// on the user row in its home store.
func (s *LegacyAuthService) IssueTokens(ctx context.Context, user *domain.User) (*LegacyTokenPair, error) {
	access, err := s.jwt.SignLegacyToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := security.OpaqueToken(48)
	if err != nil {
		return nil, err
	}
	set := s.resolver.Stores().For(user.AccessServer)
	if err := set.Users.SaveRefreshToken(user.ID, &refresh); err != nil {
		return nil, err
	}
	return &LegacyTokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Logout clears the user-row refresh token, ending every legacy login.
func (s *LegacyAuthService) Logout(ctx context.Context, userID uint) error {
	user, err := s.resolver.Resolve(ResolveQuery{ID: userID}, ResolveOptions{})
	if err != nil {
		return err
	}
	set := s.resolver.Stores().For(user.AccessServer)
	return set.Users.SaveRefreshToken(user.ID, nil)
}
