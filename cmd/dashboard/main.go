package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"rsvpdash/internal/config"
	"rsvpdash/internal/delivery"
	"rsvpdash/internal/httpserver"
	"rsvpdash/internal/logging"
	"rsvpdash/internal/observability"
	"rsvpdash/internal/scheduler"
	"rsvpdash/internal/service"
	"rsvpdash/internal/statuscallback"
	"rsvpdash/internal/store/memory"
)

func main() {
	cfg := config.Load()
	logging.Init("dashboard", cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	observability.Register(prometheus.DefaultRegisterer)

	store := memory.New()
	if cfg.SeedFixtures {
		fx, err := memory.LoadFixtures()
		if err != nil {
			slog.Error("dashboard fixtures load failed", "err", err)
			os.Exit(1)
		}
		if err := store.Seed(ctx, fx); err != nil {
			slog.Error("dashboard fixtures seed failed", "err", err)
			os.Exit(1)
		}
		slog.Info("dashboard fixtures seeded", "events", len(fx.Events), "contacts", len(fx.Contacts))
	}

	// simulated delivery runs on a single loop goroutine
	loop := scheduler.NewLoop(0)
	loopErrCh := make(chan error, 1)
	go func() { loopErrCh <- loop.Run(ctx) }()

	sim := &delivery.Simulator{
		Store:           store,
		Sched:           loop,
		Limiter:         rate.NewLimiter(rate.Every(cfg.SendStagger), 1),
		Breaker:         delivery.NewBreaker(cfg.BreakerMaxFailures, cfg.BreakerTimeout),
		DeliveryLatency: cfg.DeliveryLatency,
		ReadLatency:     cfg.ReadLatency,
		ReadProbability: cfg.ReadProbability,
	}

	notifier := service.LogNotifier{}
	messaging := &service.MessagingService{Store: store, Sender: sim, Notifier: notifier, Now: loop.Now}

	s := httpserver.New()
	api := &httpserver.API{
		Events:    &service.EventService{Store: store, Notifier: notifier, RSVPBaseURL: cfg.RSVPBaseURL, Now: loop.Now},
		Contacts:  &service.ContactService{Store: store, Notifier: notifier, Now: loop.Now},
		Messaging: messaging,
		RSVPs:     &service.RSVPService{Store: store, Notifier: notifier, Now: loop.Now},
		Reports:   &service.ReportService{Store: store, Now: loop.Now},
	}
	api.Register(s.Mux)

	if cfg.StatusWebhookToken != "" {
		hook := &httpserver.Webhook{
			Messages:        messaging,
			VerifySignature: statuscallback.Verify,
			Token:           cfg.StatusWebhookToken,
			PublicURL:       cfg.PublicWebhookURL,
		}
		hook.Register(s.Mux)
		slog.Info("dashboard status callbacks enabled", "url", cfg.PublicWebhookURL)
	}

	s.Mux.HandleFunc("/healthz", httpserver.Healthz())
	s.Mux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second, func(c context.Context) error {
		_, err := store.Snapshot(c)
		return err
	}))
	s.Mux.Use(httpserver.Metrics(observability.APIRequests))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpserver.Logging(httpserver.Recover(s.Mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsSrv := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: httpserver.NewMetrics(prometheus.DefaultGatherer),
	}

	srvErrCh := make(chan error, 2)
	go func() {
		slog.Info("dashboard listening", "port", cfg.Port)
		srvErrCh <- srv.ListenAndServe()
	}()
	go func() {
		slog.Info("dashboard metrics listening", "port", cfg.MetricsPort)
		srvErrCh <- metricsSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case err := <-srvErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("dashboard server failed", "err", err)
			exitCode = 1
		}
	case err := <-loopErrCh:
		slog.Error("dashboard scheduler stopped", "err", err)
		exitCode = 1
	case sig := <-sigCh:
		slog.Info("dashboard shutdown", "signal", sig.String(), "pending_deliveries", sim.Pending())
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
