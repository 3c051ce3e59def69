package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"auth-core-service/internal/domain"
	"auth-core-service/internal/repository"
	"auth-core-service/internal/security"
)

func newRedisClientForTest(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})
	return server, client
}

func newStoreDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"), name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.OneTimePassword{},
		&domain.AuthSession{},
		&domain.EmailVerification{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type stubOTPSender struct {
	sent []string
	fail error
}

func (s *stubOTPSender) Send(ctx context.Context, username, code string, method DeliveryMethod) error {
	if s.fail != nil {
		return s.fail
	}
	s.sent = append(s.sent, code)
	return nil
}

func (s *stubOTPSender) lastCode(t *testing.T) string {
	t.Helper()
	if len(s.sent) == 0 {
		t.Fatalf("no code was sent")
	}
	return s.sent[len(s.sent)-1]
}

type stubEmailSender struct {
	sent []string
	fail error
}

func (s *stubEmailSender) SendCode(ctx context.Context, email, code string) error {
	if s.fail != nil {
		return s.fail
	}
	s.sent = append(s.sent, code)
	return nil
}

func (s *stubEmailSender) lastCode(t *testing.T) string {
	t.Helper()
	if len(s.sent) == 0 {
		t.Fatalf("no verification code was sent")
	}
	return s.sent[len(s.sent)-1]
}

type fixture struct {
	primaryDB   *gorm.DB
	secondaryDB *gorm.DB

	stores   Stores
	resolver *IdentityResolver
	sessions repository.SessionRepository
	jwt      *security.JWTManager
	hasher   *security.PasswordHasher

	otpSender   *stubOTPSender
	emailSender *stubEmailSender

	otp           *OTPService
	verifications *EmailVerificationService
	core          *SecurityService
	legacy        *LegacyAuthService
}

func newFixture(t *testing.T, cacheClient redis.UniversalClient) *fixture {
	t.Helper()

	f := &fixture{
		primaryDB:   newStoreDB(t, "primary"),
		secondaryDB: newStoreDB(t, "secondary"),
		otpSender:   &stubOTPSender{},
		emailSender: &stubEmailSender{},
	}
	f.stores = Stores{
		Primary: StoreSet{
			Users: repository.NewUserRepository(f.primaryDB),
			OTPs:  repository.NewOTPRepository(f.primaryDB),
		},
		Secondary: StoreSet{
			Users: repository.NewUserRepository(f.secondaryDB),
			OTPs:  repository.NewOTPRepository(f.secondaryDB),
		},
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.resolver = NewIdentityResolver(f.stores, log)
	f.sessions = repository.NewSessionRepository(f.primaryDB)
	f.jwt = security.NewJWTManager("auth-core-service", "test-secret", time.Hour)
	f.hasher = security.NewPasswordHasher("test-pepper")

	f.otp = NewOTPService(f.resolver, f.otpSender, OTPConfig{
		Length:      6,
		CheckBudget: 3,
		ValidFor:    3 * time.Minute,
		RetryWindow: 5 * time.Minute,
	}, log)
	f.verifications = NewEmailVerificationService(
		repository.NewEmailVerificationRepository(f.primaryDB),
		f.emailSender,
		EmailVerificationConfig{
			CodeLength:    6,
			AttemptBudget: 3,
			ValidFor:      3 * time.Minute,
			RetryWindow:   5 * time.Minute,
		},
		log,
	)
	cache := NewSessionDataCache(cacheClient, "", time.Minute)
	f.core = NewSecurityService(f.resolver, f.sessions, f.verifications, f.jwt, f.hasher, cache, log)
	f.legacy = NewLegacyAuthService(f.resolver, f.core, f.jwt, f.hasher, log)
	return f
}

// seedUser inserts a user with an optional password into the given store DB.
func (f *fixture) seedUser(t *testing.T, db *gorm.DB, username string, groupID int, password string) *domain.User {
	t.Helper()
	u := &domain.User{GroupID: groupID, Username: &username}
	if password != "" {
		hash, err := f.hasher.Hash(password)
		if err != nil {
			t.Fatalf("hash password: %v", err)
		}
		u.PasswordHash = &hash
	}
	if err := repository.NewUserRepository(db).Create(u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

// seedOTP inserts an OTP row directly, bypassing delivery.
func (f *fixture) seedOTP(t *testing.T, db *gorm.DB, username string, groupID int, code string, checks int) *domain.OneTimePassword {
	t.Helper()
	otp := &domain.OneTimePassword{
		Username:   username,
		GroupID:    groupID,
		Password:   code,
		ValidUntil: time.Now().UTC().Add(3 * time.Minute),
		CheckCount: checks,
	}
	if err := repository.NewOTPRepository(db).Create(otp); err != nil {
		t.Fatalf("seed otp: %v", err)
	}
	return otp
}
