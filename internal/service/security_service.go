package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"auth-core-service/internal/domain"
	"auth-core-service/internal/observability"
	"auth-core-service/internal/repository"
	"auth-core-service/internal/security"
)

// TokenBundle is what every successful authentication hands back.
type TokenBundle struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	SessionUUID  string `json:"session_uuid"`
}

// SecurityService is the only component that composes identity, OTP,
// email verification and sessions into user-facing auth operations.
type SecurityService struct {
	resolver      *IdentityResolver
	sessions      repository.SessionRepository
	verifications *EmailVerificationService
	jwt           *security.JWTManager
	hasher        *security.PasswordHasher
	cache         *SessionDataCache
	logger        *slog.Logger
}

func NewSecurityService(
	resolver *IdentityResolver,
	sessions repository.SessionRepository,
	verifications *EmailVerificationService,
	jwtManager *security.JWTManager,
	hasher *security.PasswordHasher,
	cache *SessionDataCache,
	logger *slog.Logger,
) *SecurityService {
	return &SecurityService{
		resolver:      resolver,
		sessions:      sessions,
		verifications: verifications,
		jwt:           jwtManager,
		hasher:        hasher,
		cache:         cache,
		logger:        logger,
	}
}

// CreatePresignSession creates an anonymous user row and a presign session
// on top of it, in one transaction so a session-insert failure cannot leave
// an orphaned user behind. The row is later upgraded in place by
// RegisterAccount.
func (s *SecurityService) CreatePresignSession(ctx context.Context, platform domain.Platform, groupID int) (*TokenBundle, error) {
	_, session, err := s.sessions.CreateWithPresignUser(groupID, func(u *domain.User) *domain.AuthSession {
		return &domain.AuthSession{
			UUID:         uuid.NewString(),
			UserID:       u.ID,
			AccessServer: domain.AccessServerPrimary,
			Platform:     platform,
			Presign:      true,
			RefreshToken: uuid.NewString(),
		}
	})
	if err != nil {
		return nil, fmt.Errorf("create presign session: %w", err)
	}
	access, err := s.jwt.SignSessionToken(session.UUID)
	if err != nil {
		return nil, err
	}
	return &TokenBundle{
		AccessToken:  access,
		RefreshToken: session.RefreshToken,
		SessionUUID:  session.UUID,
	}, nil
}

// LoginByPassword authenticates with a stored password hash. Unknown user,
// missing hash and wrong password are indistinguishable to the caller.
func (s *SecurityService) LoginByPassword(ctx context.Context, platform domain.Platform, username, password string, groupID int) (*TokenBundle, error) {
	user, err := s.resolver.Resolve(
		ResolveQuery{Username: username, GroupID: groupID},
		ResolveOptions{AssertNotDeactivated: true},
	)
	if err != nil {
		observability.RecordAuthLogin("password", "rejected")
		return nil, err
	}
	if user.PasswordHash == nil || !s.hasher.Verify(password, *user.PasswordHash) {
		observability.RecordAuthLogin("password", "rejected")
		return nil, ErrIncorrectCredentials
	}
	bundle, err := s.issueSession(user, platform, false)
	if err != nil {
		observability.RecordAuthLogin("password", "error")
		return nil, err
	}
	observability.RecordAuthLogin("password", "success")
	return bundle, nil
}

// LoginByOTP spends one check attempt, compares the submitted code and, on
// success, invalidates every outstanding code for the identity before the
// session is issued.
func (s *SecurityService) LoginByOTP(ctx context.Context, platform domain.Platform, username, code string, groupID int) (*TokenBundle, error) {
	user, err := s.authenticateByOTP(username, code, groupID)
	if err != nil {
		observability.RecordAuthLogin("otp", "rejected")
		return nil, err
	}
	bundle, err := s.issueSession(user, platform, false)
	if err != nil {
		observability.RecordAuthLogin("otp", "error")
		return nil, err
	}
	observability.RecordAuthLogin("otp", "success")
	return bundle, nil
}

// Refresh rotates the refresh token and re-mints an access token for the
// same session UUID. A replayed or forged token fails identically.
func (s *SecurityService) Refresh(ctx context.Context, sessionUUID, refreshToken string) (*TokenBundle, error) {
	session, err := s.sessions.Rotate(sessionUUID, refreshToken, uuid.NewString())
	if err != nil {
		if errors.Is(err, repository.ErrWrongRefreshToken) {
			observability.RecordAuthRefresh("rejected")
			return nil, ErrWrongRefreshToken
		}
		observability.RecordAuthRefresh("error")
		return nil, err
	}
	access, err := s.jwt.SignSessionToken(session.UUID)
	if err != nil {
		observability.RecordAuthRefresh("error")
		return nil, err
	}
	observability.RecordAuthRefresh("success")
	return &TokenBundle{
		AccessToken:  access,
		RefreshToken: session.RefreshToken,
		SessionUUID:  session.UUID,
	}, nil
}

// RegisterAccount upgrades the presign user behind the current session into
// a real account. The email must have completed verification and must not
// be claimed by a live account; credentials land on the existing user row
// and a brand-new non-presign session is issued.
func (s *SecurityService) RegisterAccount(ctx context.Context, data *domain.SessionData, password, verificationKey string) (*TokenBundle, error) {
	verification, err := s.verifications.ValidateVerified(ctx, verificationKey)
	if err != nil {
		observability.RecordRegistration("rejected")
		return nil, err
	}

	if err := s.ensureEmailUnclaimed(verification.Email); err != nil {
		observability.RecordRegistration("rejected")
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		observability.RecordRegistration("error")
		return nil, err
	}
	user, err := s.resolver.Stores().Primary.Users.Register(data.UserID, verification.Email, hash)
	if err != nil {
		observability.RecordRegistration("error")
		return nil, err
	}
	user.AccessServer = domain.AccessServerPrimary

	bundle, err := s.issueSession(user, data.Platform, false)
	if err != nil {
		observability.RecordRegistration("error")
		return nil, err
	}
	observability.RecordRegistration("success")
	return bundle, nil
}

// RegisterByOTP claims a username with the code issued by SendRegisterOTP.
// The code is spent and every sibling invalidated, the account is created
// in the primary store, and a fresh session is issued for it.
func (s *SecurityService) RegisterByOTP(ctx context.Context, platform domain.Platform, username, code string, groupID int) (*TokenBundle, error) {
	set := s.resolver.Stores().Primary
	current, err := set.OTPs.ConsumeForCheck(username, groupID)
	if err != nil {
		if errors.Is(err, repository.ErrOTPNotFound) {
			observability.RecordOTPVerification("exhausted")
			observability.RecordRegistration("rejected")
			return nil, ErrOTPExhausted
		}
		observability.RecordRegistration("error")
		return nil, err
	}
	if current != code {
		observability.RecordOTPVerification("mismatch")
		observability.RecordRegistration("rejected")
		return nil, ErrOTPMismatch
	}
	if err := set.OTPs.InvalidateAll(username, groupID); err != nil {
		observability.RecordRegistration("error")
		return nil, err
	}
	observability.RecordOTPVerification("success")

	// Send time already checked, but the name may have been claimed since.
	existing, err := s.resolver.Resolve(
		ResolveQuery{Username: username, GroupID: groupID},
		ResolveOptions{ReturnNone: true},
	)
	if err != nil {
		observability.RecordRegistration("error")
		return nil, err
	}
	if existing != nil {
		observability.RecordRegistration("rejected")
		return nil, ErrUsernameTaken
	}

	user := &domain.User{GroupID: groupID, Username: &username}
	if err := set.Users.Create(user); err != nil {
		observability.RecordRegistration("error")
		return nil, err
	}
	user.AccessServer = domain.AccessServerPrimary

	bundle, err := s.issueSession(user, platform, false)
	if err != nil {
		observability.RecordRegistration("error")
		return nil, err
	}
	observability.RecordRegistration("success")
	return bundle, nil
}

// GetSessionData decodes an access token and resolves its session data
// through the cache. Staleness inside the cache TTL is accepted.
func (s *SecurityService) GetSessionData(ctx context.Context, accessToken string) (*domain.SessionData, error) {
	claims, err := s.jwt.ParseSessionToken(accessToken)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, ErrAccessTokenExpired
		}
		return nil, ErrIncorrectCredentials
	}

	cached, err := s.cache.Get(ctx, claims.SessionUUID)
	if err != nil {
		s.logger.Error("session data cache read failed", "session_uuid", claims.SessionUUID, "error", err)
	}
	if cached != nil {
		return cached, nil
	}

	session, err := s.sessions.FindByUUID(claims.SessionUUID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	// UserID is only meaningful inside the store the session was issued
	// against; resolving it across both stores could bind the session to
	// an unrelated account that happens to share the auto-increment value.
	user, err := s.resolver.Stores().For(session.AccessServer).Users.FindByID(session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	user.AccessServer = session.AccessServer

	data := domain.BuildSessionData(session, user)
	if err := s.cache.Set(ctx, &data); err != nil {
		s.logger.Error("session data cache write failed", "session_uuid", session.UUID, "error", err)
	}
	return &data, nil
}

// RevokeSession ends a session and drops its device token. The cached
// projection is left to age out.
func (s *SecurityService) RevokeSession(ctx context.Context, sessionUUID string) error {
	if err := s.sessions.SetFCMToken(sessionUUID, nil); err != nil {
		return err
	}
	return s.sessions.Revoke(sessionUUID)
}

func (s *SecurityService) SetFCMToken(ctx context.Context, sessionUUID, token string) error {
	return s.sessions.SetFCMToken(sessionUUID, &token)
}

// authenticateByOTP is shared by the session and legacy login paths.
func (s *SecurityService) authenticateByOTP(username, code string, groupID int) (*domain.User, error) {
	user, err := s.resolver.Resolve(
		ResolveQuery{Username: username, GroupID: groupID},
		ResolveOptions{AssertNotDeactivated: true},
	)
	if err != nil {
		return nil, err
	}
	set := s.resolver.Stores().For(user.AccessServer)

	current, err := set.OTPs.ConsumeForCheck(username, groupID)
	if err != nil {
		if errors.Is(err, repository.ErrOTPNotFound) {
			observability.RecordOTPVerification("exhausted")
			return nil, ErrOTPExhausted
		}
		observability.RecordOTPVerification("error")
		return nil, err
	}
	if current != code {
		observability.RecordOTPVerification("mismatch")
		return nil, ErrOTPMismatch
	}
	if err := set.OTPs.InvalidateAll(username, groupID); err != nil {
		observability.RecordOTPVerification("error")
		return nil, err
	}
	observability.RecordOTPVerification("success")
	return user, nil
}

func (s *SecurityService) ensureEmailUnclaimed(email string) error {
	stores := s.resolver.Stores()
	for _, set := range []StoreSet{stores.Primary, stores.Secondary} {
		existing, err := set.Users.FindLiveByUsername(email)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				continue
			}
			return err
		}
		if existing != nil {
			return ErrEmailAlreadyClaimed
		}
	}
	return nil
}

func (s *SecurityService) issueSession(user *domain.User, platform domain.Platform, presign bool) (*TokenBundle, error) {
	server := user.AccessServer
	if server == "" {
		server = domain.AccessServerPrimary
	}
	session := &domain.AuthSession{
		UUID:         uuid.NewString(),
		UserID:       user.ID,
		AccessServer: server,
		Platform:     platform,
		Presign:      presign,
		RefreshToken: uuid.NewString(),
	}
	if err := s.sessions.Create(session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	access, err := s.jwt.SignSessionToken(session.UUID)
	if err != nil {
		return nil, err
	}
	return &TokenBundle{
		AccessToken:  access,
		RefreshToken: session.RefreshToken,
		SessionUUID:  session.UUID,
	}, nil
}
