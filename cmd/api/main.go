// Api runs the ticket engine: the websocket purchase gateway, the HTTP
// event and ticket endpoints, and the event completion sweep.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/srgjo27/ticket_engine/internal/adapter/cache"
	"github.com/srgjo27/ticket_engine/internal/adapter/handler"
	"github.com/srgjo27/ticket_engine/internal/adapter/observer"
	"github.com/srgjo27/ticket_engine/internal/core/ports"
	"github.com/srgjo27/ticket_engine/internal/core/services"
	"github.com/srgjo27/ticket_engine/internal/platform/clock"
	"github.com/srgjo27/ticket_engine/internal/platform/config"
	"github.com/srgjo27/ticket_engine/internal/platform/kafka"
	"github.com/srgjo27/ticket_engine/internal/platform/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		envFile    string
	)
	pflag.StringVar(&configPath, "config", "", "path to the YAML config file (default $TICKET_CONFIG)")
	pflag.StringVar(&envFile, "env-file", ".env", "optional KEY=VALUE file loaded into the environment")
	pflag.Parse()

	dotenvLoaded, err := config.LoadDotEnv(envFile)
	if err != nil {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	if !dotenvLoaded {
		logger.Info("no env file found, using process environment", "path", envFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	healthChecks := map[string]handler.HealthCheck{"store": st.ping}

	var eventCache ports.EventCache
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		logger.Info("connecting to redis", "addr", cfg.Redis.Addr())
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		eventCache = cache.NewRedisEventCache(redisClient, cfg.Redis.EventTTL)
		healthChecks["cache"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	observers := observer.Multi{observer.NewLogger(logger), observer.NewMetrics(registry)}

	// Background workers share this context so shutdown can stop them after
	// the listeners have drained.
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()
	var workers sync.WaitGroup

	kafkaClient := kafka.NewClient(cfg.Kafka.Brokers)
	if kafkaClient.Enabled() {
		topic := cmp.Or(cfg.Kafka.Topic, observer.PurchasesTopic)
		writer, err := kafkaClient.NewWriter(topic)
		if err != nil {
			return err
		}
		defer writer.Close()

		publisher := observer.NewPublisher(writer, cfg.Kafka.Buffer, logger)
		observers = append(observers, publisher)
		workers.Add(1)
		go func() {
			defer workers.Done()
			publisher.Run(workCtx)
		}()
		logger.Info("publishing purchase outcomes", "brokers", kafkaClient.Brokers, "topic", topic)
	}

	clk := clock.NewSystem()
	ledger := services.NewLedger(st.events,
		services.WithLedgerAttempts(cfg.Ledger.MaxAttempts),
		services.WithLedgerLogger(logger),
	)
	purchaseService := services.NewPurchaseService(st.tx, st.events, st.tickets, ledger, clk,
		services.WithEventCache(eventCache),
		services.WithObserver(observers),
		services.WithRetryPolicy(services.RetryPolicy{
			MaxAttempts: cfg.Purchase.MaxAttempts,
			BaseBackoff: cfg.Purchase.BaseBackoff,
			MaxBackoff:  cfg.Purchase.MaxBackoff,
		}),
		services.WithStoreTimeout(cfg.Purchase.StoreTimeout),
		services.WithPurchaseLogger(logger),
	)
	eventService := services.NewEventService(st.tx, st.events, st.tickets, eventCache, clk, logger)
	ticketService := services.NewTicketService(st.tx, st.events, st.tickets, clk, logger)

	if cfg.Sweep.Interval > 0 {
		workers.Add(1)
		go func() {
			defer workers.Done()
			eventService.RunCompletionSweep(workCtx, cfg.Sweep.Interval)
		}()
	}

	gateway := handler.NewGateway(purchaseService, handler.GatewayConfig{
		MaxConnections:  cfg.Gateway.MaxConnections,
		PingInterval:    cfg.Gateway.PingInterval,
		PongWait:        cfg.Gateway.PongWait,
		WriteWait:       cfg.Gateway.WriteWait,
		MaxMessageBytes: cfg.Gateway.MaxMessageBytes,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
	}, logger)

	router := handler.NewRouter(handler.RouterConfig{
		Events:         handler.NewEventHandler(eventService, logger),
		Tickets:        handler.NewTicketHandler(ticketService, logger),
		Gateway:        gateway,
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		HealthChecks:   healthChecks,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Server.Addr, "store", cfg.Store.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server startup failed: %w", err)
		}
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// A purchase already in the store runs to its own timeout whatever the
	// caller does, so its connection gets that long on top.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout+cfg.Purchase.StoreTimeout)
	defer cancelDrain()
	if err := gateway.Shutdown(drainCtx); err != nil {
		logger.Error("gateway connections did not close in time", "error", err)
	}

	// Publishing stops after the gateway has drained.
	cancelWork()
	workers.Wait()

	logger.Info("server exiting")
	return nil
}
