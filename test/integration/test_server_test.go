package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"auth-core-service/internal/domain"
	"auth-core-service/internal/http/handler"
	"auth-core-service/internal/http/router"
	"auth-core-service/internal/repository"
	"auth-core-service/internal/security"
	"auth-core-service/internal/service"
)

// captureSender records issued codes so tests can play the out-of-band leg.
type captureSender struct {
	otpCodes   []string
	emailCodes []string
}

func (s *captureSender) Send(ctx context.Context, username, code string, method service.DeliveryMethod) error {
	s.otpCodes = append(s.otpCodes, code)
	return nil
}

func (s *captureSender) SendCode(ctx context.Context, email, code string) error {
	s.emailCodes = append(s.emailCodes, code)
	return nil
}

func (s *captureSender) lastOTP(t *testing.T) string {
	t.Helper()
	if len(s.otpCodes) == 0 {
		t.Fatalf("no otp code captured")
	}
	return s.otpCodes[len(s.otpCodes)-1]
}

func (s *captureSender) lastEmailCode(t *testing.T) string {
	t.Helper()
	if len(s.emailCodes) == 0 {
		t.Fatalf("no email code captured")
	}
	return s.emailCodes[len(s.emailCodes)-1]
}

type authServer struct {
	baseURL   string
	client    *http.Client
	sender    *captureSender
	primaryDB *gorm.DB
	hasher    *security.PasswordHasher
}

func newAuthTestServer(t *testing.T) *authServer {
	t.Helper()

	openStore := func(name string) *gorm.DB {
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
	primaryDB := openStore("primary")
	secondaryDB := openStore("secondary")

	redisServer := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: redisServer.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sender := &captureSender{}

	stores := service.Stores{
		Primary: service.StoreSet{
			Users: repository.NewUserRepository(primaryDB),
			OTPs:  repository.NewOTPRepository(primaryDB),
		},
		Secondary: service.StoreSet{
			Users: repository.NewUserRepository(secondaryDB),
			OTPs:  repository.NewOTPRepository(secondaryDB),
		},
	}
	resolver := service.NewIdentityResolver(stores, log)
	jwtManager := security.NewJWTManager("auth-core-service", "integration-secret", time.Hour)
	hasher := security.NewPasswordHasher("integration-pepper")

	otpService := service.NewOTPService(resolver, sender, service.OTPConfig{
		Length:      6,
		CheckBudget: 3,
		ValidFor:    3 * time.Minute,
		RetryWindow: 5 * time.Minute,
	}, log)
	verifications := service.NewEmailVerificationService(
		repository.NewEmailVerificationRepository(primaryDB),
		sender,
		service.EmailVerificationConfig{
			CodeLength:    6,
			AttemptBudget: 3,
			ValidFor:      3 * time.Minute,
			RetryWindow:   5 * time.Minute,
		},
		log,
	)
	cache := service.NewSessionDataCache(redisClient, "", time.Minute)
	securityService := service.NewSecurityService(
		resolver,
		repository.NewSessionRepository(primaryDB),
		verifications,
		jwtManager,
		hasher,
		cache,
		log,
	)
	legacyService := service.NewLegacyAuthService(resolver, securityService, jwtManager, hasher, log)

	h := router.NewRouter(router.Dependencies{
		AuthHandler:       handler.NewAuthHandler(securityService, otpService, verifications, log),
		LegacyAuthHandler: handler.NewLegacyAuthHandler(legacyService, jwtManager, log),
		SessionResolver:   securityService,
		AuthRateLimitRPM:  1000,
		APIRateLimitRPM:   1000,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return &authServer{
		baseURL:   srv.URL,
		client:    srv.Client(),
		sender:    sender,
		primaryDB: primaryDB,
		hasher:    hasher,
	}
}

func (s *authServer) seedUser(t *testing.T, username string, groupID int, password string) *domain.User {
	t.Helper()
	u := &domain.User{GroupID: groupID, Username: &username}
	if password != "" {
		hash, err := s.hasher.Hash(password)
		if err != nil {
			t.Fatalf("hash password: %v", err)
		}
		u.PasswordHash = &hash
	}
	if err := repository.NewUserRepository(s.primaryDB).Create(u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func (s *authServer) doJSON(t *testing.T, method, path, bearer string, body any) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.baseURL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return out
}

type tokenBundle struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	SessionUUID  string `json:"session_uuid"`
}
