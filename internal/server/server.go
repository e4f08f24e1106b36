// Package server owns the long-lived resources of the process and their
// shutdown order.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/deppfellow/itembatch/internal/config"
	"github.com/deppfellow/itembatch/internal/database"
	"github.com/deppfellow/itembatch/internal/lib/job"
	"github.com/deppfellow/itembatch/internal/lib/workerpool"
	loggerPkg "github.com/deppfellow/itembatch/internal/logger"
	"github.com/newrelic/go-agent/v3/integrations/nrredis-v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// RedisPingTimeout bounds the startup ping of Redis.
	RedisPingTimeout = 5 * time.Second

	// HTTPShutdownTimeout bounds in-flight requests during Shutdown.
	HTTPShutdownTimeout = 30 * time.Second
)

// Server is the application container: config, logging, connections, the
// batch worker pool and the HTTP listener.
type Server struct {
	Config        *config.Config
	Logger        *zerolog.Logger
	LoggerService *loggerPkg.LoggerService
	DB            *database.Database
	Redis         *redis.Client
	Job           *job.JobService

	// Pool executes batch tasks. Its size comes from the batch config.
	Pool *workerpool.Pool

	httpServer *http.Server
}

// New connects to PostgreSQL and Redis and creates the worker pool and the
// job service. The job worker is started separately, once its handlers are
// registered.
func New(cfg *config.Config, logger *zerolog.Logger, loggerService *loggerPkg.LoggerService) (*Server, error) {
	db, err := database.New(cfg, logger, loggerService)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Address,
	})
	if loggerService.GetApplication() != nil {
		redisClient.AddHook(nrredis.NewHook(redisClient.Options()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), RedisPingTimeout)
	defer cancel()

	// Redis only backs the async batch endpoint; the rest of the API works
	// without it.
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error().Err(err).Msg("failed to connect to Redis, continuing without it")
	}

	pool := workerpool.New(cfg.Batch.PoolSize(), logger)
	logger.Info().Int("workers", pool.Size()).Msg("worker pool started")

	return &Server{
		Config:        cfg,
		Logger:        logger,
		LoggerService: loggerService,
		DB:            db,
		Redis:         redisClient,
		Job:           job.NewJobService(logger, cfg),
		Pool:          pool,
	}, nil
}

func (s *Server) SetupHTTPServer(handler http.Handler) {
	s.httpServer = &http.Server{
		Addr:         ":" + s.Config.Server.Port,
		Handler:      handler,
		ReadTimeout:  time.Duration(s.Config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.Config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.Config.Server.IdleTimeout) * time.Second,
	}
}

// Start blocks serving HTTP. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	if s.httpServer == nil {
		return errors.New("HTTP server not initialized")
	}

	s.Logger.Info().
		Str("port", s.Config.Server.Port).
		Str("env", s.Config.Primary.Env).
		Msg("starting server")

	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting requests, then drains background work before
// releasing connections:
//
//  1. HTTP listener (in-flight requests get HTTPShutdownTimeout)
//  2. Asynq worker
//  3. worker pool, waiting up to the batch shutdown timeout before
//     cancelling queued and running tasks
//  4. database pool, Redis and New Relic
//
// Cancelling ctx interrupts the pool drain and forces cancellation at once.
// Every step runs even if an earlier one failed; the errors are joined.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if s.httpServer != nil {
		httpCtx, cancel := context.WithTimeout(ctx, HTTPShutdownTimeout)
		err := s.httpServer.Shutdown(httpCtx)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown HTTP server: %w", err))
		}
	}

	if s.Job != nil {
		s.Job.Stop()
	}

	if s.Pool != nil {
		if err := s.Pool.Shutdown(ctx, s.Config.Batch.ShutdownTimeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain worker pool: %w", err))
		}
	}

	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database connection: %w", err))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis client: %w", err))
		}
	}

	s.LoggerService.Shutdown()

	return errors.Join(errs...)
}
