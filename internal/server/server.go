package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/victornm/codexa/internal/api"
	"github.com/victornm/codexa/internal/auth"
	"github.com/victornm/codexa/internal/database"
	"github.com/victornm/codexa/internal/event"
	"github.com/victornm/codexa/internal/leaderboard"
	"github.com/victornm/codexa/internal/quiz"
	"github.com/victornm/codexa/internal/ratelimit"
	"github.com/victornm/codexa/internal/registration"
	"github.com/victornm/codexa/internal/score"
	"github.com/victornm/codexa/internal/telemetry"
)

type RedisConfig struct {
	Addrs  []string
	Pass   string
	Prefix string
}

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Redis struct {
		Leaderboard RedisConfig
		Pubsub      RedisConfig
	}

	Postgres database.Config

	Auth auth.Config

	RateLimit struct {
		Enabled bool
		// Backend is "redis" (shared across instances, uses the leaderboard Redis) or "local".
		Backend string
		Limit   int
		Window  time.Duration
	}

	CORS struct {
		Origins []string
	}

	Log telemetry.LogConfig
}

type Server struct {
	c Config

	eb  *event.Bus
	log io.Closer

	infra struct {
		redis struct {
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
		}

		postgres *pgxpool.Pool
	}

	service struct {
		quiz         *quiz.Service
		registration *registration.Service
		score        *score.Service
		leaderboard  *leaderboard.Service
	}

	http *http.Server
	grpc *grpc.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	var err error
	if s.log, err = telemetry.SetupLogger(c.Log); err != nil {
		return nil, fmt.Errorf("server: setup logger: %w", err)
	}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()

	if err := s.initAPI(); err != nil {
		return nil, fmt.Errorf("server: init api: %w", err)
	}

	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(name string, c RedisConfig) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    c.Addrs,
			Password: c.Pass,
		})

		if err := telemetry.MonitorRedis(r, name); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.leaderboard, err = connect("leaderboard", s.c.Redis.Leaderboard)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.redis.pubsub, err = connect("pubsub", s.c.Redis.Pubsub)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() (err error) {
	ctx := context.Background()

	s.infra.postgres, err = database.Connect(ctx, s.c.Postgres)
	if err != nil {
		return err
	}

	return database.Migrate(ctx, s.infra.postgres)
}

func (s *Server) initService() {
	s.service.quiz = quiz.NewService(quiz.Config{
		DB:       s.infra.postgres,
		EventBus: s.eb,
	})

	s.service.registration = registration.NewService(registration.Config{
		DB:      s.infra.postgres,
		Quizzes: s.service.quiz,
	})

	s.service.score = score.NewService(score.Config{
		EventBus: s.eb,
		DB:       s.infra.postgres,
		Quizzes:  s.service.quiz,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Results:  s.service.score,
		Redis:    s.infra.redis.leaderboard,
		Prefix:   s.c.Redis.Leaderboard.Prefix,
	})
}

func (s *Server) initAPI() error {
	verifier := auth.NewVerifier(s.c.Auth)

	e := gin.New()
	e.Use(gin.Recovery(), telemetry.HTTPMiddleware())

	e.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "codexa quiz service is running"})
	})
	e.GET("/healthz", healthz(map[string]func(context.Context) error{
		"postgres":          s.infra.postgres.Ping,
		"redis.leaderboard": pingRedis(s.infra.redis.leaderboard),
		"redis.pubsub":      pingRedis(s.infra.redis.pubsub),
	}))
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")

	g := e.Group("")
	if len(s.c.CORS.Origins) > 0 {
		cc := cors.DefaultConfig()
		cc.AllowOrigins = s.c.CORS.Origins
		cc.AddAllowHeaders("Authorization")
		cc.AddExposeHeaders(telemetry.RequestIDHeader, "Retry-After", "X-RateLimit-Remaining")
		g.Use(cors.New(cc))
	}

	if s.c.RateLimit.Enabled {
		l, err := s.newLimiter()
		if err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
		g.Use(ratelimit.Middleware(l, ratelimit.ByClientIP))
	}

	g.Use(verifier.Middleware())

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor(verifier.UnaryServerInterceptor()))

	api.New(api.Config{
		GRPC:           s.grpc,
		EventBus:       s.eb,
		Quizzes:        s.service.quiz,
		Gate:           s.service.registration,
		Score:          s.service.score,
		Leaderboard:    s.service.leaderboard,
		Redis:          s.infra.redis.pubsub,
		PubsubPrefix:   s.c.Redis.Pubsub.Prefix,
		AllowedOrigins: s.c.CORS.Origins,
	}).RegisterRoutes(g)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}

	return nil
}

func (s *Server) newLimiter() (ratelimit.Limiter, error) {
	c := ratelimit.Config{
		Limit:  s.c.RateLimit.Limit,
		Window: s.c.RateLimit.Window,
	}

	switch s.c.RateLimit.Backend {
	case "", "redis":
		return ratelimit.NewRedis(s.infra.redis.leaderboard, s.c.Redis.Leaderboard.Prefix, c)
	case "local":
		return ratelimit.NewLocal(c)
	default:
		return nil, fmt.Errorf("unknown backend %q", s.c.RateLimit.Backend)
	}
}

func pingRedis(r redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		return r.Ping(ctx).Err()
	}
}

// healthz reports 503 when any dependency fails its check.
func healthz(checks map[string]func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		code := http.StatusOK
		report := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				slog.WarnContext(ctx, "healthz: check failed", "dependency", name, "error", err)
				report[name] = "down"
				code = http.StatusServiceUnavailable
				continue
			}
			report[name] = "up"
		}

		c.JSON(code, report)
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	s.infra.postgres.Close()
	for name, r := range map[string]redis.UniversalClient{
		"leaderboard": s.infra.redis.leaderboard,
		"pubsub":      s.infra.redis.pubsub,
	} {
		if err := r.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "client", name, "error", err)
		}
	}

	slog.InfoContext(ctx, "server: shutdown completed")

	if err := s.log.Close(); err != nil {
		slog.ErrorContext(ctx, "server: close log file failed", "error", err)
	}
}
