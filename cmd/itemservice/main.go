package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deppfellow/itembatch/internal/config"
	"github.com/deppfellow/itembatch/internal/database"
	"github.com/deppfellow/itembatch/internal/handler"
	"github.com/deppfellow/itembatch/internal/logger"
	"github.com/deppfellow/itembatch/internal/repository"
	"github.com/deppfellow/itembatch/internal/router"
	"github.com/deppfellow/itembatch/internal/server"
	"github.com/deppfellow/itembatch/internal/service"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultContextTimeout bounds startup migrations.
const DefaultContextTimeout = 30 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootstrap := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootstrap.Fatal().Err(err).Msg("failed to load config")
	}

	loggerService := logger.NewLoggerService(cfg.Observability)
	defer loggerService.Shutdown()

	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	migrateCtx, cancel := context.WithTimeout(context.Background(), DefaultContextTimeout)
	err = database.Migrate(migrateCtx, &log, cfg)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	srv, err := server.New(cfg, &log, loggerService)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize server")
	}

	repos := repository.NewRepositories(srv)

	services, err := service.NewService(srv, repos)
	if err != nil {
		log.Fatal().Err(err).Msg("could not create services")
	}

	if err := srv.Job.Start(); err != nil {
		log.Error().Err(err).Msg("background job server not started, async batch runs will queue up")
	}

	handlers := handler.NewHandlers(srv, services)
	r := router.NewRouter(srv, handlers)
	srv.SetupHTTPServer(r)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		stop()
		log.Info().Msg("shutting down, send the signal again to cancel pending batch work")

		// A second signal interrupts the drain instead of killing the process.
		interruptCtx, stopInterrupt := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stopInterrupt()

		return srv.Shutdown(interruptCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		loggerService.Shutdown()
		os.Exit(1)
	}

	log.Info().Msg("server exited properly")
}
