package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	protocolconfig "hooliganhorde/config"
	"hooliganhorde/integrations/webhooks"
	"hooliganhorde/observability/logging"
	telemetry "hooliganhorde/observability/otel"
	"hooliganhorde/services/silod/config"
	"hooliganhorde/services/silod/journal"
	"hooliganhorde/services/silod/middleware"
	"hooliganhorde/services/silod/server"
	"hooliganhorde/services/silod/service"
	"hooliganhorde/services/silod/stream"
	"hooliganhorde/services/silod/sunrise"
	statesilo "hooliganhorde/state/silo"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/silod/config.yaml", "path to silod configuration file")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("silod: load config: %v", err)
	}

	env := strings.TrimSpace(os.Getenv("HOOLIGAN_ENV"))
	logger, logCloser := logging.SetupWithOptions("silod", env, logging.Options{
		Level: logging.ParseLevel(cfg.Log.Level),
		File: logging.FileConfig{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   true,
		},
	})
	defer logCloser.Close()

	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "silod",
		Environment: env,
		Endpoint:    strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		Insecure:    insecure,
		Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		log.Fatalf("silod: init telemetry: %v", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	protocol, err := protocolconfig.Load(cfg.Protocol)
	if err != nil {
		log.Fatalf("silod: load protocol config: %v", err)
	}
	epochCfg, err := protocol.EpochConfig()
	if err != nil {
		log.Fatalf("silod: gameday config: %v", err)
	}
	silo, err := protocol.NewSilo()
	if err != nil {
		log.Fatalf("silod: build silo: %v", err)
	}
	db, err := protocol.OpenDatabase()
	if err != nil {
		log.Fatalf("silod: open state database: %v", err)
	}
	defer db.Close()

	planJournal, err := journal.Open(cfg.Journal.Driver, cfg.Journal.DSN)
	if err != nil {
		log.Fatalf("silod: open journal: %v", err)
	}
	defer planJournal.Close()
	logger.Info("plan journal opened", slog.String("driver", cfg.Journal.Driver), logging.MaskField("dsn", cfg.Journal.DSN))

	opts := service.Options{
		Silo:    silo,
		Store:   statesilo.NewStore(db),
		Epoch:   epochCfg,
		Journal: planJournal,
		Logger:  logger,
	}
	var notifiers service.Notifiers
	var hub *stream.Hub
	if cfg.Stream.Enabled {
		hub = stream.NewHub(cfg.Stream.Buffer, cfg.Stream.Backlog)
		notifiers = append(notifiers, hub)
	}
	if cfg.Webhook.Endpoint != "" {
		outbox, err := webhooks.OpenOutbox(cfg.Webhook.Outbox)
		if err != nil {
			log.Fatalf("silod: webhook outbox: %v", err)
		}
		defer outbox.Close()
		dispatcher, err := webhooks.NewDispatcher(cfg.Webhook.Endpoint, []byte(cfg.Webhook.Secret),
			webhooks.WithLogger(logger),
			webhooks.WithOutbox(outbox),
			webhooks.WithQueueSize(cfg.Webhook.QueueSize))
		if err != nil {
			log.Fatalf("silod: webhook dispatcher: %v", err)
		}
		logger.Info("webhooks enabled",
			slog.String("endpoint", cfg.Webhook.Endpoint),
			slog.String("outbox", cfg.Webhook.Outbox),
			logging.MaskField("secret", cfg.Webhook.Secret))
		defer dispatcher.Close()
		notifiers = append(notifiers, dispatcher)
	}
	if len(notifiers) > 0 {
		opts.Notifier = notifiers
	}
	svc, err := service.New(opts)
	if err != nil {
		log.Fatalf("silod: service: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Sunrise.Enabled {
		scheduler, err := sunrise.New(ctx, svc, cfg.Sunrise.Schedule, !epochCfg.Genesis.IsZero(), logger)
		if err != nil {
			log.Fatalf("silod: sunrise: %v", err)
		}
		scheduler.RunNow()
		scheduler.Start()
		defer scheduler.Stop()
	}

	srv, err := server.New(server.Config{
		ListenAddress: cfg.ListenAddress,
		Service:       svc,
		Auth: middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:    cfg.Auth.Enabled,
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  cfg.Auth.ClockSkew.Duration,
		}, logger),
		RateLimiter: middleware.NewRateLimiter(middleware.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		}, logger),
		Stream: hub,
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("silod: server: %v", err)
	}
	logger.Info("silod starting", slog.String("listen", cfg.ListenAddress), slog.Uint64("gameday", svc.Gameday()))
	if err := srv.Run(ctx); err != nil {
		logger.Error("silod stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
