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

	"github.com/mtalha0777/arfurniture/internal/config"
	"github.com/mtalha0777/arfurniture/internal/logger"
	"github.com/mtalha0777/arfurniture/internal/metrics"
	"github.com/mtalha0777/arfurniture/internal/notification"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	var mailer notification.Mailer
	if cfg.SMTPAddr != "" {
		mailer = notification.NewSMTPMailer(cfg.SMTPAddr, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
		log.Info("sending order emails over SMTP", "addr", cfg.SMTPAddr)
	} else {
		mailer = notification.NewLogMailer(log)
		log.Warn("SMTP_ADDR not set, order emails are only logged")
	}

	reader := notification.NewKafkaReader(cfg.KafkaBrokers, cfg.NotificationTopic, cfg.NotifierGroupID)
	defer func() {
		if err := reader.Close(); err != nil {
			log.Warn("failed to close kafka reader", "error", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              ":" + cfg.NotifierPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()

	log.Info("order notifier started", "topic", cfg.NotificationTopic, "group_id", cfg.NotifierGroupID)
	notification.NewConsumer(reader, mailer, m, log).Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics server forced to shutdown", "error", err)
	}
	log.Info("order notifier stopped")
}
