package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"auth-core-service/internal/app"
	"auth-core-service/internal/config"
	"auth-core-service/internal/domain"
	"auth-core-service/internal/http/handler"
	"auth-core-service/internal/http/router"
	"auth-core-service/internal/notify"
	"auth-core-service/internal/observability"
	"auth-core-service/internal/repository"
	"auth-core-service/internal/security"
	"auth-core-service/internal/service"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "auth-core-service",
		Short:        "OTP and session authentication service",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCommand(), newMigrateCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema to both stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			primary, err := openDB(cfg.PrimaryDatabaseDSN)
			if err != nil {
				return fmt.Errorf("open primary store: %w", err)
			}
			secondary, err := openDB(cfg.SecondaryDatabaseDSN)
			if err != nil {
				return fmt.Errorf("open secondary store: %w", err)
			}
			if err := primary.AutoMigrate(
				&domain.User{},
				&domain.OneTimePassword{},
				&domain.AuthSession{},
				&domain.EmailVerification{},
			); err != nil {
				return fmt.Errorf("migrate primary store: %w", err)
			}
			// The secondary store only ever holds identities and their codes.
			if err := secondary.AutoMigrate(
				&domain.User{},
				&domain.OneTimePassword{},
			); err != nil {
				return fmt.Errorf("migrate secondary store: %w", err)
			}
			return nil
		},
	}
}

func buildApp(ctx context.Context) (*app.App, error) {
	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	runtime, err := observability.InitRuntime(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	primaryDB, err := openDB(cfg.PrimaryDatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open primary store: %w", err)
	}
	secondaryDB, err := openDB(cfg.SecondaryDatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open secondary store: %w", err)
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

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
	resolver := service.NewIdentityResolver(stores, logger)
	jwtManager := security.NewJWTManager("auth-core-service", cfg.JWTSecret, cfg.AccessTokenTTL)
	hasher := security.NewPasswordHasher(cfg.PasswordPepper)

	var otpSender service.OTPSender = notify.NewLogSender(logger)
	if cfg.OTPGatewayURL != "" {
		otpSender = notify.NewWebhookSender(cfg.OTPGatewayURL, logger)
	}
	var emailSender service.EmailCodeSender = notify.NewLogSender(logger)
	if cfg.EmailGatewayURL != "" {
		emailSender = notify.NewWebhookSender(cfg.EmailGatewayURL, logger)
	}

	otpService := service.NewOTPService(resolver, otpSender, service.OTPConfig{
		Length:      cfg.OTPLength,
		CheckBudget: cfg.OTPCheckBudget,
		ValidFor:    cfg.OTPValidFor,
		RetryWindow: cfg.OTPRetryWindow,
	}, logger)
	verifications := service.NewEmailVerificationService(
		repository.NewEmailVerificationRepository(primaryDB),
		emailSender,
		service.EmailVerificationConfig{
			CodeLength:    cfg.EmailCodeLength,
			AttemptBudget: cfg.EmailAttemptBudget,
			ValidFor:      cfg.EmailValidFor,
			RetryWindow:   cfg.EmailRetryWindow,
		},
		logger,
	)
	cache := service.NewSessionDataCache(redisClient, "", cfg.SessionCacheTTL)
	securityService := service.NewSecurityService(
		resolver,
		repository.NewSessionRepository(primaryDB),
		verifications,
		jwtManager,
		hasher,
		cache,
		logger,
	)
	legacyService := service.NewLegacyAuthService(resolver, securityService, jwtManager, hasher, logger)

	h := router.NewRouter(router.Dependencies{
		AuthHandler:       handler.NewAuthHandler(securityService, otpService, verifications, logger),
		LegacyAuthHandler: handler.NewLegacyAuthHandler(legacyService, jwtManager, logger),
		SessionResolver:   securityService,
		AuthRateLimitRPM:  cfg.AuthRateLimitRPM,
		APIRateLimitRPM:   cfg.APIRateLimitRPM,
		EnableOTelHTTP:    cfg.OTELMetricsEnabled,
	})
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	a := app.New(cfg, logger, server, runtime)
	a.PrimaryDB = primaryDB
	a.SecondaryDB = secondaryDB
	a.Redis = redisClient
	return a, nil
}

func openDB(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
}
