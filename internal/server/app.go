// Package server is the composition root: it builds every component from config and owns their lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/followwatch/internal/api"
	"github.com/JakeFAU/followwatch/internal/auth"
	"github.com/JakeFAU/followwatch/internal/cache"
	"github.com/JakeFAU/followwatch/internal/classifier"
	"github.com/JakeFAU/followwatch/internal/clock/system"
	"github.com/JakeFAU/followwatch/internal/config"
	"github.com/JakeFAU/followwatch/internal/hash/sha256"
	"github.com/JakeFAU/followwatch/internal/id/uuid"
	"github.com/JakeFAU/followwatch/internal/logging"
	"github.com/JakeFAU/followwatch/internal/mediacheck"
	"github.com/JakeFAU/followwatch/internal/metrics"
	"github.com/JakeFAU/followwatch/internal/notify"
	"github.com/JakeFAU/followwatch/internal/policy/ratelimit"
	"github.com/JakeFAU/followwatch/internal/poller"
	"github.com/JakeFAU/followwatch/internal/provider"
	memorypublisher "github.com/JakeFAU/followwatch/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/followwatch/internal/publisher/pubsub"
	"github.com/JakeFAU/followwatch/internal/snapshot"
	gcsstorage "github.com/JakeFAU/followwatch/internal/storage/gcs"
	localstorage "github.com/JakeFAU/followwatch/internal/storage/local"
	memorystorage "github.com/JakeFAU/followwatch/internal/storage/memory"
	pgstore "github.com/JakeFAU/followwatch/internal/storage/postgres"
	"github.com/JakeFAU/followwatch/internal/tracker"
)

// instagramReferer is sent with image downloads; the CDN rejects bare requests.
const instagramReferer = "https://www.instagram.com/"

// App contains the application's dependencies.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	apiServer *api.Server
	engine    *poller.Engine
	scheduler *poller.Scheduler

	trackers tracker.TrackerStore
	users    tracker.UserStore
	pool     pgstore.Pool
	gcs      *gcsstorage.BlobStore
	pubsub   *gcppublisher.Publisher
}

// Build creates the application's dependencies. The logger is created from cfg when nil.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		var err error
		logger, err = logging.New(cfg.Logging.Development)
		if err != nil {
			return nil, fmt.Errorf("logger init failed: %w", err)
		}
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.Bool("postgres", cfg.DB.DSN != ""),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("poller_enabled", cfg.Poller.Enabled),
	)

	clock := system.New()
	ids := uuid.New()

	if err := app.setupDatabase(ctx, clock); err != nil {
		return nil, app.abort(ctx, err)
	}

	client, err := app.setupProvider(clock)
	if err != nil {
		return nil, app.abort(ctx, err)
	}

	mailer, err := app.setupMailer()
	if err != nil {
		return nil, app.abort(ctx, err)
	}

	opts, err := app.setupChangeSinks(ctx)
	if err != nil {
		return nil, app.abort(ctx, err)
	}
	app.engine = poller.NewEngine(app.trackers, client, mailer, clock, logger, opts...)
	app.scheduler, err = poller.NewScheduler(app.engine, poller.SchedulerConfig{
		Schedule:     cfg.Poller.Schedule,
		SmokeDelay:   cfg.Poller.SmokeDelay,
		CycleTimeout: cfg.Poller.CycleTimeout,
	}, logger)
	if err != nil {
		return nil, app.abort(ctx, err)
	}

	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, clock)
	if err != nil {
		return nil, app.abort(ctx, fmt.Errorf("token issuer init failed: %w", err))
	}
	accounts := auth.NewService(app.users, tokens, ids, clock, cfg.Auth.BcryptCost, logger)
	trackers := tracker.NewService(app.trackers, app.users, client, ids, clock, tracker.Limits{
		MaxPerOwner:  cfg.Tracker.MaxPerOwner,
		MaxFollowing: cfg.Tracker.MaxFollowing,
	}, logger.Named("tracker"))

	media, err := app.setupMediaCheck(client)
	if err != nil {
		return nil, app.abort(ctx, err)
	}

	app.apiServer = api.NewServer(trackers, accounts, media, app.trackers, api.Config{
		ClientOrigin:   cfg.Server.ClientOrigin,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, logger)
	return app, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves HTTP and the poll schedule until the context is canceled or a signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.cfg.Poller.Enabled {
		a.scheduler.Start(ctx)
	} else {
		a.logger.Info("poller disabled")
	}

	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	if a.cfg.Poller.Enabled {
		if err := a.scheduler.Stop(shutdownCtx); err != nil {
			a.logger.Warn("poller did not stop cleanly", zap.Error(err))
		}
	}
	a.Close(shutdownCtx)

	select {
	case err := <-serveErr:
		return err
	default:
		return nil
	}
}

// PollOnce runs a single poll cycle outside the schedule.
func (a *App) PollOnce(ctx context.Context) (poller.CycleReport, error) {
	if a.cfg.Poller.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Poller.CycleTimeout)
		defer cancel()
	}
	return a.engine.RunCycle(ctx)
}

// Close releases infrastructure clients. It is safe to call more than once.
func (a *App) Close(_ context.Context) {
	if a.pubsub != nil {
		if err := a.pubsub.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
		a.pubsub = nil
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
		a.gcs = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
}

func (a *App) abort(ctx context.Context, err error) error {
	a.Close(ctx)
	return err
}

func (a *App) setupDatabase(ctx context.Context, clock tracker.Clock) error {
	if a.cfg.DB.DSN == "" {
		a.logger.Warn("no database DSN configured, using in-memory stores; trackers are lost on restart")
		a.trackers = memorystorage.NewTrackerStore(memorystorage.WithClock(clock))
		a.users = memorystorage.NewUserStore()
		return nil
	}
	pool, err := pgstore.Open(ctx, pgstore.Config{
		DSN:             a.cfg.DB.DSN,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: a.cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("database init failed: %w", err)
	}
	a.pool = pool
	if a.cfg.DB.Migrate {
		if err := pgstore.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("database migration failed: %w", err)
		}
	}
	if a.trackers, err = pgstore.NewTrackerStore(pool); err != nil {
		return fmt.Errorf("tracker store init failed: %w", err)
	}
	if a.users, err = pgstore.NewUserStore(pool); err != nil {
		return fmt.Errorf("user store init failed: %w", err)
	}
	a.logger.Info("postgres stores initialized")
	return nil
}

func (a *App) setupProvider(clock tracker.Clock) (*provider.Client, error) {
	c := a.cfg.Provider
	responses, err := cache.New(a.cfg.Cache.Size, clock)
	if err != nil {
		return nil, fmt.Errorf("response cache init failed: %w", err)
	}
	var opts []provider.Option
	if c.RateLimitRPS > 0 {
		opts = append(opts, provider.WithLimiter(ratelimit.New(ratelimit.Config{
			DefaultRPS:   c.RateLimitRPS,
			DefaultBurst: c.RateLimitBurst,
		})))
		a.logger.Info("provider rate limiter enabled",
			zap.Float64("rps", c.RateLimitRPS),
			zap.Int("burst", c.RateLimitBurst),
		)
	}
	if c.APIKey == "" {
		a.logger.Warn("provider.api_key is empty; upstream calls will be rejected")
	}
	client, err := provider.New(provider.Config{
		BaseURL: c.BaseURL,
		Host:    c.Host,
		APIKey:  c.APIKey,
		Paths: provider.Paths{
			ResolveID:   c.Paths.ResolveID,
			Profile:     c.Paths.Profile,
			Followings:  c.Paths.Followings,
			RecentPosts: c.Paths.RecentPosts,
		},
		Timeout:       c.Timeout,
		MaxRetries:    c.MaxRetries,
		BackoffBase:   c.BackoffBase,
		BackoffJitter: c.BackoffJitter,
		BackoffMax:    c.BackoffMax,
		IdentityTTL:   a.cfg.Cache.IdentityTTL,
		ProfileTTL:    a.cfg.Cache.ProfileTTL,
		ListTTL:       a.cfg.Cache.ListTTL,
		PostsTTL:      a.cfg.Cache.PostsTTL,
	}, responses, a.logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("provider client init failed: %w", err)
	}
	return client, nil
}

func (a *App) setupMailer() (tracker.Mailer, error) {
	if a.cfg.Email.SendGridAPIKey == "" {
		a.logger.Warn("no SendGrid key configured, notifications are logged only")
		return notify.NewLogMailer(a.logger), nil
	}
	m, err := notify.NewSendGridMailer(notify.SendGridConfig{
		APIKey: a.cfg.Email.SendGridAPIKey,
		Host:   a.cfg.Email.SendGridHost,
		Sender: a.cfg.Email.Sender,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("sendgrid mailer init failed: %w", err)
	}
	return m, nil
}

func (a *App) setupChangeSinks(ctx context.Context) ([]poller.Option, error) {
	var opts []poller.Option

	blobs, err := a.setupStorage(ctx)
	if err != nil {
		return nil, err
	}
	if blobs != nil {
		archiver, err := snapshot.NewArchiver(blobs, sha256.New(), a.cfg.Storage.Prefix)
		if err != nil {
			return nil, fmt.Errorf("snapshot archiver init failed: %w", err)
		}
		opts = append(opts, poller.WithArchiver(archiver))
	}

	if !a.cfg.PubSub.Enabled() {
		a.logger.Info("no Pub/Sub topic configured, using in-memory publisher")
		return append(opts, poller.WithPublisher(memorypublisher.New())), nil
	}
	a.pubsub, err = gcppublisher.Dial(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return append(opts, poller.WithPublisher(a.pubsub)), nil
}

func (a *App) setupStorage(ctx context.Context) (tracker.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case config.StorageGCS:
		store, err := gcsstorage.Dial(ctx, gcsstorage.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.gcs = store
		a.logger.Info("archiving snapshots to GCS", zap.String("bucket", a.cfg.Storage.GCSBucket))
		return store, nil
	case config.StorageLocal:
		store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Info("archiving snapshots to local disk", zap.String("path", a.cfg.Storage.LocalDir))
		return store, nil
	case config.StorageMemory:
		a.logger.Info("archiving snapshots in memory")
		return memorystorage.NewBlobStore(), nil
	default:
		a.logger.Info("snapshot archive disabled")
		return nil, nil
	}
}

func (a *App) setupMediaCheck(client tracker.SocialProvider) (api.MediaChecker, error) {
	c := a.cfg.Classifier
	if c.APIKey == "" {
		a.logger.Warn("no classifier key configured, media check disabled")
		return nil, nil
	}
	fetcher := classifier.NewImageFetcher(c.FetchTimeout, c.MaxImageBytes, classifier.WithReferer(instagramReferer))
	vision, err := classifier.NewVisionClassifier(classifier.VisionConfig{
		APIKey:  c.APIKey,
		BaseURL: c.BaseURL,
		Model:   c.Model,
		Subject: c.Subject,
	}, fetcher)
	if err != nil {
		return nil, fmt.Errorf("vision classifier init failed: %w", err)
	}
	pipeline := classifier.NewPipeline(vision, c.Concurrency, c.CallTimeout, a.logger)
	a.logger.Info("media check enabled", zap.String("model", c.Model), zap.Int("concurrency", pipeline.Limit()))
	return mediacheck.NewService(client, pipeline, a.logger), nil
}
