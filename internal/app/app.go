package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/abrezinsky/electionvote/internal/auth"
	"github.com/abrezinsky/electionvote/internal/config"
	"github.com/abrezinsky/electionvote/internal/handlers"
	"github.com/abrezinsky/electionvote/internal/logger"
	"github.com/abrezinsky/electionvote/internal/metrics"
	"github.com/abrezinsky/electionvote/internal/ratelimit"
	"github.com/abrezinsky/electionvote/internal/repository"
	"github.com/abrezinsky/electionvote/internal/services"
	"github.com/abrezinsky/electionvote/internal/websocket"
	"github.com/abrezinsky/electionvote/pkg/electionfeed"
)

const shutdownTimeout = 10 * time.Second

// App holds all application dependencies
type App struct {
	cfg      *config.Config
	log      logger.Logger
	repo     repository.FullRepository
	hub      *websocket.Hub
	metrics  *metrics.Metrics
	handlers *handlers.Handlers
	redis    *redis.Client
}

// OpenRepository connects the store selected by cfg.DBDriver
func OpenRepository(ctx context.Context, cfg *config.Config) (repository.FullRepository, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		repo, err := repository.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.DriverMongo:
		repo, err := repository.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
}

// New creates and initializes a new application instance
func New(ctx context.Context, cfg *config.Config, log logger.Logger, feed electionfeed.Client, adminAuth *auth.Auth) (*App, error) {
	repo, err := OpenRepository(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.DBDriver, err)
	}

	a := &App{cfg: cfg, log: log, repo: repo, metrics: metrics.New()}

	// Initialize services
	guard := services.NewGuard(log, repo, a.metrics)
	tally := services.NewTallyService(log, repo, a.metrics)
	candidateService := services.NewCandidateVotingService(log, repo, guard, tally, a.metrics)
	pollService := services.NewPollService(log, repo, guard, tally, a.metrics)
	feedService := services.NewFeedService(log, repo, feed)
	shareService := services.NewShareService(log, repo, resolvePublicURL(cfg.PublicURL, realNetworkProvider{}))

	// Initialize WebSocket hub with DI
	a.hub = websocket.New(log, pollService)
	a.hub.SetObserver(a.metrics)
	a.hub.Start()
	candidateService.SetBroadcaster(a.hub)
	pollService.SetBroadcaster(a.hub)

	a.handlers = handlers.New(candidateService, pollService, tally, feedService, shareService, adminAuth, log)
	a.handlers.WS = a.hub.ServeWs
	a.handlers.Metrics = a.metrics.Handler()
	a.handlers.Health = repo
	a.handlers.Limiter = a.newLimiter()
	a.handlers.OnLimited = a.metrics.RateLimited

	return a, nil
}

// newLimiter uses Redis when an address is configured so that every
// instance shares one budget, otherwise an in-process limiter
func (a *App) newLimiter() ratelimit.Limiter {
	if a.cfg.RedisAddress == "" {
		a.log.Info("Rate limiting in-process", "per_minute", a.cfg.RateLimitPerMinute)
		return ratelimit.NewLocalLimiter(a.cfg.RateLimitPerMinute, time.Minute)
	}

	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.cfg.RedisAddress,
		Password: a.cfg.RedisPassword,
	})
	a.log.Info("Rate limiting via Redis", "address", a.cfg.RedisAddress, "per_minute", a.cfg.RateLimitPerMinute)
	return ratelimit.NewRedisLimiter(a.redis, "electionvote:ratelimit", a.cfg.RateLimitPerMinute, time.Minute)
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// Close performs graceful shutdown of app resources
func (a *App) Close() {
	a.hub.Stop()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("Failed to close Redis client", "error", err)
		}
	}
	if err := a.repo.Close(); err != nil {
		a.log.Warn("Failed to close store", "error", err)
	}
}

// Run serves HTTP and watches poll schedules until ctx is cancelled, then
// drains in-flight requests
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("Server starting", "addr", ln.Addr().String(), "driver", a.cfg.DBDriver)
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		a.hub.StartPollWatcher(gctx, a.cfg.PollWatchInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.log.Info("Server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// resolvePublicURL swaps a localhost host for the preferred LAN address so
// QR codes work from phones on the same network
func resolvePublicURL(publicURL string, provider networkProvider) string {
	u, err := url.Parse(publicURL)
	if err != nil || u.Hostname() != "localhost" {
		return publicURL
	}
	ip := getPreferredIP(provider)
	if ip == "localhost" {
		return publicURL
	}
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(ip, port)
	} else {
		u.Host = ip
	}
	return u.String()
}
