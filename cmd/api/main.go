package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/alertack/internal/app"
	"github.com/hamed0406/alertack/internal/config"
	"github.com/hamed0406/alertack/internal/httpapi"
	apimw "github.com/hamed0406/alertack/internal/httpapi/middleware"
	"github.com/hamed0406/alertack/internal/logging"
	"github.com/hamed0406/alertack/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	_ = godotenv.Load() // .env is optional

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	hooks, err := a.Hooks()
	if err != nil {
		return multierr.Append(err, a.Close())
	}

	proxies, err := apimw.ParseProxies(cfg.API.TrustedProxies)
	if err != nil {
		return multierr.Append(err, a.Close())
	}

	api := httpapi.NewServer(logger, a.Store, a.Runner)
	srv := &http.Server{
		Addr: cfg.API.Addr,
		Handler: api.Router(httpapi.RouterOptions{
			Keys:           apimw.Keys{Public: cfg.API.PublicAPIKeys, Admin: cfg.API.AdminAPIKeys},
			AllowedOrigins: cfg.API.AllowedOrigins,
			PublicRPM:      cfg.API.PublicRPM,
			PublicBurst:    cfg.API.PublicBurst,
			TrustedProxies: proxies,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	loop := scheduler.NewLoop(logger, a.Runner, cfg.Scheduler.Interval, hooks...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api_listen", zap.String("addr", cfg.API.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		loop.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("api_shutdown")
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	return multierr.Append(err, a.Close())
}
