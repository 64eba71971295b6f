package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/neighborly/directory-api/services/auth-service/internal/config"
	"github.com/neighborly/directory-api/services/auth-service/internal/handler"
	"github.com/neighborly/directory-api/services/auth-service/internal/repository"
	"github.com/neighborly/directory-api/services/auth-service/internal/usecase"
	"github.com/neighborly/directory-api/shared/auth"
	"github.com/neighborly/directory-api/shared/logger"
	"github.com/neighborly/directory-api/shared/mailer"
	"github.com/neighborly/directory-api/shared/provider"
	"github.com/neighborly/directory-api/shared/registry"
	"github.com/neighborly/directory-api/shared/validation"
)

func main() {
	bootLogger := logger.New("auth-service", os.Getenv("AUTH_PRETTY_LOGS") == "true")
	cfg := config.NewAuthServiceConfig(bootLogger)
	log := logger.New(cfg.ServiceName, cfg.PrettyLogs)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to disconnect from mongodb")
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		log.Fatal().Err(err).Msg("failed to ping mongodb")
	}

	db := client.Database(cfg.MongoDatabase)
	userRepo := repository.NewUserMongoRepository(ctx, log, db)
	refreshRepo := repository.NewRefreshTokenMongoRepository(ctx, log, db)
	oneTimeRepo := repository.NewOneTimeTokenMongoRepository(ctx, log, db)

	var identityProvider usecase.IdentityProvider
	if cfg.Mode == config.AuthModeFederated {
		googleProvider, err := provider.NewGoogleIdentityProvider(
			ctx,
			cfg.Provider.APIKey,
			cfg.Provider.ActionURL,
			cfg.Provider.Timeout,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create identity provider client")
		}
		identityProvider = googleProvider
	}

	notifier := mailer.NewMailer(log)
	jwtAuth := auth.NewJWTAuthenticator(cfg.Token.Issuer, cfg.Token.Issuer)

	verificationUsecase := usecase.NewVerificationUsecase(userRepo, oneTimeRepo, identityProvider, notifier, log, cfg)
	authUsecase := usecase.NewAuthUsecase(userRepo, refreshRepo, identityProvider, verificationUsecase, jwtAuth, log, cfg)
	passwordResetUsecase := usecase.NewPasswordResetUsecase(userRepo, oneTimeRepo, refreshRepo, notifier, log, cfg)
	userUsecase := usecase.NewUserUsecase(userRepo)

	validator, err := validation.NewValidator()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create request validator")
	}

	authHandler := handler.NewAuthHTTPHandler(
		authUsecase,
		verificationUsecase,
		passwordResetUsecase,
		userUsecase,
		validator,
		jwtAuth,
		log,
		cfg,
	)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           authHandler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.ConsulAddr != "" {
		consulRegistry, err := registry.NewConsulRegistry(cfg.ConsulAddr, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create consul registry")
		}
		if err := consulRegistry.Register(cfg.ServiceName, cfg.HTTPAddr, "/healthz"); err != nil {
			log.Fatal().Err(err).Msg("failed to register with consul")
		}
		defer consulRegistry.Deregister()
	}

	go sweepExpiredTokens(ctx, log, cfg.SweepInterval, refreshRepo, oneTimeRepo)

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("auth service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shut down http server gracefully")
	}
}

// sweepExpiredTokens periodically removes expired refresh and one-time
// tokens. Expiry is already enforced at redemption time; the sweep only
// keeps the collections from growing without bound.
func sweepExpiredTokens(
	ctx context.Context,
	log *zerolog.Logger,
	interval time.Duration,
	refreshRepo repository.RefreshTokenRepository,
	oneTimeRepo repository.OneTimeTokenRepository,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refreshRemoved, err := refreshRepo.DeleteExpired(ctx)
			if err != nil {
				log.Error().Err(err).Msg("failed to sweep expired refresh tokens")
			}

			oneTimeRemoved, err := oneTimeRepo.DeleteExpired(ctx)
			if err != nil {
				log.Error().Err(err).Msg("failed to sweep expired one-time tokens")
			}

			if refreshRemoved > 0 || oneTimeRemoved > 0 {
				log.Info().
					Int64("refresh_tokens", refreshRemoved).
					Int64("one_time_tokens", oneTimeRemoved).
					Msg("swept expired tokens")
			}
		}
	}
}
