package service

import (
	"context"
	"log/slog"
	"time"

	"auth-core-service/internal/domain"
	"auth-core-service/internal/observability"
	"auth-core-service/internal/security"
)

type OTPConfig struct {
	Length      int
	CheckBudget int
	ValidFor    time.Duration
	RetryWindow time.Duration
}

// OTPService issues one-time passwords for login and registration. Codes
// are generated here, delivered by the OTPSender collaborator and audited
// in the owning store.
type OTPService struct {
	resolver *IdentityResolver
	sender   OTPSender
	cfg      OTPConfig
	logger   *slog.Logger
}

func NewOTPService(resolver *IdentityResolver, sender OTPSender, cfg OTPConfig, logger *slog.Logger) *OTPService {
	return &OTPService{
		resolver: resolver,
		sender:   sender,
		cfg:      cfg,
		logger:   logger,
	}
}

// SendLoginOTP sends a login code to an existing account. An unknown or
// deactivated identity surfaces as ErrIncorrectCredentials before any code
// is generated.
func (s *OTPService) SendLoginOTP(ctx context.Context, username string, groupID int, method DeliveryMethod) error {
	user, err := s.resolver.Resolve(
		ResolveQuery{Username: username, GroupID: groupID},
		ResolveOptions{AssertNotDeactivated: true},
	)
	if err != nil {
		return err
	}

	set := s.resolver.Stores().For(user.AccessServer)
	if timeleft := set.OTPs.TimeUntilNextSend(username, groupID, s.cfg.RetryWindow); timeleft > 0 {
		observability.RecordOTPSend("throttled")
		return &ResendIntervalError{Timeleft: timeleft}
	}

	userID := user.ID
	return s.issue(ctx, set, username, groupID, &userID, method)
}

// SendRegisterOTP sends a registration code to a not-yet-existing identity.
// The code is stored against the bare username in the primary store because
// no user row owns it yet.
func (s *OTPService) SendRegisterOTP(ctx context.Context, username string, groupID int, method DeliveryMethod) error {
	user, err := s.resolver.Resolve(
		ResolveQuery{Username: username, GroupID: groupID},
		ResolveOptions{ReturnNone: true},
	)
	if err != nil {
		return err
	}
	if user != nil {
		observability.RecordOTPSend("username_taken")
		return ErrUsernameTaken
	}

	set := s.resolver.Stores().Primary
	if timeleft := set.OTPs.TimeUntilNextSend(username, groupID, s.cfg.RetryWindow); timeleft > 0 {
		observability.RecordOTPSend("throttled")
		return &ResendIntervalError{Timeleft: timeleft}
	}
	return s.issue(ctx, set, username, groupID, nil, method)
}

func (s *OTPService) issue(ctx context.Context, set StoreSet, username string, groupID int, userID *uint, method DeliveryMethod) error {
	code, err := security.NumericCode(s.cfg.Length)
	if err != nil {
		observability.RecordOTPSend("error")
		return err
	}

	if err := s.sender.Send(ctx, username, code, method); err != nil {
		s.logger.Error("one-time password delivery failed",
			"username", username,
			"group_id", groupID,
			"method", string(method),
			"error", err,
		)
		observability.RecordOTPSend("send_failed")
		return ErrOTPSendFailed
	}

	otp := &domain.OneTimePassword{
		UserID:     userID,
		Username:   username,
		GroupID:    groupID,
		Password:   code,
		ValidUntil: time.Now().UTC().Add(s.cfg.ValidFor),
		CheckCount: s.cfg.CheckBudget,
	}
	// The code is already on its way; a failed audit insert must not turn
	// a delivered code into a reported failure.
	if err := set.OTPs.Create(otp); err != nil {
		s.logger.Error("one-time password persisted after send failed",
			"username", username,
			"group_id", groupID,
			"error", err,
		)
	}
	observability.RecordOTPSend("success")
	return nil
}
