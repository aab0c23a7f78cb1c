// Package server wires configuration, storage, mail and the HTTP and gRPC
// servers together and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/berboapp/internal/logging"
	"github.com/dmitrijs2005/berboapp/internal/server/auth"
	"github.com/dmitrijs2005/berboapp/internal/server/config"
	"github.com/dmitrijs2005/berboapp/internal/server/httpapi"
	mailer "github.com/dmitrijs2005/berboapp/internal/server/mail"
	"github.com/dmitrijs2005/berboapp/internal/server/ratelimit"
	"github.com/dmitrijs2005/berboapp/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/berboapp/internal/server/services"
	"github.com/dmitrijs2005/berboapp/internal/server/storage"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	"golang.org/x/crypto/bcrypt"

	gs "github.com/dmitrijs2005/berboapp/internal/server/grpc"
)

const defaultSecretKey = "secretKey"

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	redis      *redis.Client
	dispatcher *mailer.Dispatcher
	handlers   *httpapi.Handlers
	codec      *auth.Codec
	limiter    *ratelimit.Limiter
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.SecretKey == defaultSecretKey {
		logger.Warn(ctx, "using the built-in development secret key, set BERBO_SECRET_KEY in production")
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	codec, err := newCodec(c)
	if err != nil {
		db.Close()
		return nil, err
	}

	sender, err := newMailSender(c)
	if err != nil {
		db.Close()
		return nil, err
	}
	dispatcher := mailer.NewDispatcher(mailer.DispatcherConfig{
		QueueSize:  c.MailQueueSize,
		Workers:    c.MailWorkers,
		MaxRetries: uint64(max(c.MailMaxRetries, 0)),
	}, sender, logger)

	images, err := newImageStore(ctx, c)
	if err != nil {
		dispatcher.Close()
		db.Close()
		return nil, err
	}

	rdb, limiter := newLimiter(ctx, c, logger)

	hasher := auth.NewHasher(bcrypt.DefaultCost)
	events := services.NewEventService(db, rm, logger)
	mfa := services.NewMFAService(db, rm, dispatcher, events, c, logger)
	authSvc := services.NewAuthService(db, rm, codec, hasher, mfa, events, logger)
	account := services.NewAccountService(db, rm, dispatcher, hasher, c, logger)
	reset := services.NewPasswordResetService(db, rm, dispatcher, hasher, c, logger)
	profile := services.NewProfileService(db, rm, hasher, images, events, c, logger)

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		redis:      rdb,
		dispatcher: dispatcher,
		handlers:   httpapi.NewHandlers(authSvc, account, reset, profile, events, logger),
		codec:      codec,
		limiter:    limiter,
	}, nil
}

func newCodec(c *config.Config) (*auth.Codec, error) {
	verify := make(map[string][]byte, len(c.VerifyKeys))
	for kid, secret := range c.VerifyKeys {
		verify[kid] = []byte(secret)
	}
	return auth.NewCodec(auth.CodecConfig{
		SigningKey:   []byte(c.SecretKey),
		SigningKeyID: c.SigningKeyID,
		VerifyKeys:   verify,
		AccessTTL:    c.AccessTokenValidityDuration,
		RefreshTTL:   c.RefreshTokenValidityDuration,
	})
}

func newMailSender(c *config.Config) (mailer.Sender, error) {
	switch c.MailProvider {
	case "smtp":
		s, err := mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			User:     c.SMTPUser,
			Password: c.SMTPPassword,
			From:     c.MailFrom,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postmark":
		s, err := mailer.NewPostmarkSender(mailer.PostmarkConfig{
			ServerToken:  c.PostmarkServerToken,
			AccountToken: c.PostmarkAccountToken,
			From:         c.MailFrom,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return mailer.NewDevSender(c.DevMailDir), nil
	}
}

func newImageStore(ctx context.Context, c *config.Config) (storage.ImageStore, error) {
	if c.ImageStore == "s3" {
		s, err := storage.NewS3Store(ctx, storage.S3Config{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 image store: %w", err)
		}
		return s, nil
	}
	s, err := storage.NewLocalStore(c.ImageDir)
	if err != nil {
		return nil, fmt.Errorf("local image store: %w", err)
	}
	return s, nil
}

// newLimiter returns a nil limiter when Redis is not configured. An
// unreachable Redis keeps the limiter, which lets requests through until the
// server comes back.
func newLimiter(ctx context.Context, c *config.Config, log logging.Logger) (*redis.Client, *ratelimit.Limiter) {
	if c.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		log.Warn(ctx, "invalid redis url, rate limiting disabled", "error", err)
		return nil, nil
	}
	rdb := redis.NewClient(opts)

	backoff := retry.WithMaxRetries(3, retry.NewConstant(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		log.Warn(ctx, "redis not reachable, rate limiter fails open", "error", err)
	}
	return rdb, ratelimit.New(rdb, "", c.RateLimitRequests, c.RateLimitWindow)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	handler := httpapi.NewRouter(httpapi.RouterConfig{
		Handlers: app.handlers,
		Verifier: app.codec,
		Limiter:  app.limiter,
		Logger:   app.logger,
	})
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, handler, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.EndpointAddrGRPC, app.logger, app.db)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a signal or a server failure, then drains the mail queue
// and releases connections.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.dispatcher.Close()
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close error", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}
