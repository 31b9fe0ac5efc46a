package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/creator-coin-ledger/internal/components"
	"github.com/creator-coin-ledger/internal/config"
	"github.com/creator-coin-ledger/internal/idempotency"
	"github.com/creator-coin-ledger/internal/lifecycle"
	"github.com/creator-coin-ledger/internal/logger"
	"github.com/creator-coin-ledger/internal/platform/messaging/consumers"
	"github.com/creator-coin-ledger/internal/platform/messaging/producers"
	"github.com/creator-coin-ledger/internal/worker"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("background_worker")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Background Worker",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Connect storage and start the audit writer
	resources, err := components.OpenResources(appCtx, log, cfg)
	if err != nil {
		log.Error("Failed to initialize resources", "error", err)
		os.Exit(1)
	}

	core := components.NewCore(log, cfg, resources.Infra)

	// Initialize Kafka producers
	eventProducer, err := producers.NewEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize event Kafka producer", "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka consumers for provider confirmations and catalog updates
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)
	catalogConsumer := consumers.NewCatalogConsumer(appCtx, log, &cfg.Kafka)

	confirmations := worker.CreateConfirmationService(core.Payments, &cfg.WorkerPool, log)
	// a nil producer means the DLQ is disabled
	var deadLetters producers.DeadLetterPublisher
	if dlqProducer != nil {
		deadLetters = dlqProducer
	}
	paymentHandler := worker.NewPaymentHandler(log.With("component", "payment_handler"), confirmations, deadLetters)
	catalogHandler := worker.NewCatalogHandler(log.With("component", "catalog_handler"), resources.Store.Repositories().Content, deadLetters)

	poller := worker.NewPoller(
		&cfg.Outbox,
		resources.Store.Repositories().Outbox,
		eventProducer,
		resources.Metrics,
		log.With("component", "outbox_poller"),
	)

	scheduler := lifecycle.NewScheduler(
		log.With("component", "lifecycle_scheduler"),
		core.Lifecycle,
		core.Processor,
		resources.Store,
		resources.Metrics,
		cfg.Lifecycle.SweepInterval,
	)

	janitor := idempotency.NewJanitor(log.With("component", "idempotency_janitor"), core.Guard, cfg.Idempotency.CleanupInterval)

	// Metrics endpoint for the worker process
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           resources.Metrics.Handler(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}

	// Create error channel for service errors
	errChan := make(chan error, 3)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumers
	log.Info("Starting Kafka consumers",
		"payment_topic", cfg.Kafka.PaymentTopic,
		"catalog_topic", cfg.Kafka.CatalogTopic,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := kafkaConsumer.Subscribe(appCtx, paymentHandler.HandleMessage); err != nil {
		errChan <- fmt.Errorf("kafka consumer error: %w", err)
	}
	if err := catalogConsumer.Subscribe(appCtx, catalogHandler.HandleMessage); err != nil {
		errChan <- fmt.Errorf("catalog consumer error: %w", err)
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()
	go func() {
		defer wg.Done()
		scheduler.Start(appCtx)
	}()
	go func() {
		defer wg.Done()
		janitor.Start(appCtx)
	}()

	go func() {
		log.Info("Starting metrics server", "port", cfg.Server.Port)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Release the worker pool once no new confirmations arrive
	if pooled, ok := confirmations.(*worker.PoolService); ok {
		pooled.Shutdown()
	}

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	if err = metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping metrics server", "error", err)
	}

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Close Kafka clients
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}
	if err = catalogConsumer.Close(); err != nil {
		log.Error("Error closing catalog Kafka consumer", "error", err)
	}
	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing event Kafka producer", "error", err)
	}
	if dlqProducer != nil {
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	resources.Close(shutdownCtx)

	// Final status
	if serviceErr != nil {
		log.Error("Background Worker shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Background Worker shutdown completed with errors")
	} else {
		log.Info("Background Worker shutdown completed successfully")
	}
}
