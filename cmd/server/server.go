package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"chatlima-server/internal/config"
	"chatlima-server/internal/infrastructure"
	"chatlima-server/internal/infrastructure/crontab"
	"chatlima-server/internal/infrastructure/logger"
	"chatlima-server/internal/infrastructure/observability"
	"chatlima-server/internal/interfaces/httpserver"

	_ "net/http/pprof"
)

type Application struct {
	httpServer *httpserver.HTTPServer
	crontab    *crontab.Crontab
	infra      *infrastructure.Infrastructure
	cfg        *config.Config
}

// Start runs the pprof listener, the scheduler and the HTTP server until ctx ends or one of them fails.
func (application *Application) Start(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer application.infra.Validator.Close()

	pprofServer := &http.Server{Addr: application.cfg.PprofAddr, ReadHeaderTimeout: 10 * time.Second}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		err := pprofServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	eg.Go(func() error {
		<-egCtx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		return pprofServer.Shutdown(shutdownCtx)
	})
	eg.Go(func() error {
		return application.crontab.Run(egCtx)
	})
	eg.Go(func() error {
		return application.httpServer.Run(egCtx)
	})

	return eg.Wait()
}

func main() {
	log := logger.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := CreateApplication()
	if err != nil {
		log.Fatal().Err(err).Msg("create application")
	}
	log = application.infra.Logger

	dataInitializer, err := CreateDataInitializer()
	if err != nil {
		log.Fatal().Err(err).Msg("create data initializer")
	}

	otelShutdown, err := observability.Setup(ctx, application.cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("initialize observability")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelShutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("shutdown telemetry")
			}
		}()
	}

	if err := dataInitializer.Install(ctx); err != nil {
		log.Fatal().Err(err).Msg("install data")
	}

	log.Info().Str("version", config.Version).Int("port", application.cfg.HTTPPort).Msg("starting chatlima server")
	if err := application.Start(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return
	}
	log.Info().Msg("server stopped")
}
