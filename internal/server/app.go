// Package server initializes and runs the identity server: it wires the
// database, the repositories, the token and identity services, the optional
// Redis throttle, and the HTTP endpoint, and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/mikhailbahdashych/identity-core/internal/cryptox"
	"github.com/mikhailbahdashych/identity-core/internal/logging"
	"github.com/mikhailbahdashych/identity-core/internal/server/config"
	"github.com/mikhailbahdashych/identity-core/internal/server/httpapi"
	"github.com/mikhailbahdashych/identity-core/internal/server/ratelimit"
	"github.com/mikhailbahdashych/identity-core/internal/server/repositories/repomanager"
	"github.com/mikhailbahdashych/identity-core/internal/server/services"
	"github.com/mikhailbahdashych/identity-core/internal/server/tokens"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	handler *httpapi.Handler
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	privateKey, publicKey, err := tokens.LoadKeyPair(cfg.PrivateKeyPath, cfg.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("key init error: %w", err)
	}

	cipher, err := cryptox.NewCipher([]byte(cfg.EncryptionKey), []byte(cfg.EncryptionIV))
	if err != nil {
		return nil, fmt.Errorf("cipher init error: %w", err)
	}
	hasher := cryptox.NewPasswordHasher([]byte(cfg.PasswordSalt))

	var throttle services.SignInThrottle
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		throttle = ratelimit.NewSignInLimiter(client, cfg.SignInMaxAttempts, cfg.SignInWindow)
	}

	tokenService := tokens.NewService(privateKey, publicKey, cipher, rm,
		cfg.AccessTokenValidityDuration, cfg.RefreshTokenValidityDuration)
	identityService := services.NewIdentityService(db, rm, tokenService, hasher,
		throttle, cfg.PasswordChangeCooldown, logger)

	handler := httpapi.NewHandler(logger.With("component", "http"), identityService,
		tokenService, cfg.RefreshTokenValidityDuration, cfg.SecureCookies)

	return &App{config: cfg, logger: logger, db: db, handler: handler}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves HTTP until the context is cancelled or a termination signal
// arrives, then shuts down draining in-flight requests.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	server := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: app.handler.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "starting server", "addr", app.config.EndpointAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	if err := app.db.Close(); err != nil {
		return fmt.Errorf("db close error: %w", err)
	}
	return nil
}
