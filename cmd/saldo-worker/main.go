package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"saldo/internal/amqp"
	"saldo/internal/auth"
	"saldo/internal/backend"
	"saldo/internal/cli"
	"saldo/internal/log"
	"saldo/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.SetupLogger("info").Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentWorker)
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Worker configuration invalid", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Starting saldo-worker",
		log.FieldBackend, cfg.DataBackend,
		"mirror", cfg.MirrorBackend)

	// Primary and mirror are opened in parallel; either failing aborts.
	var primary, mirror *backend.BackendResult
	g, gctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		var err error
		primary, err = cli.OpenPrimary(gctx, logger, cfg)
		return err
	})
	g.Go(func() error {
		var err error
		mirror, err = cli.OpenMirror(gctx, logger, cfg)
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Error("Failed to open backends", log.FieldError, err)
		_ = primary.Close()
		_ = mirror.Close()
		os.Exit(1)
	}
	defer primary.Close()
	defer mirror.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// The primary is read past the cache so the worker never mirrors a stale copy.
	mirrorWorker := worker.NewMirrorWorker(primary.Direct, mirror.Store, 4, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// Catch up on ledgers saved while the worker was down.
	users, err := auth.NewLocal(cfg.CredentialsPath, logger).UserIDs()
	if err != nil {
		logger.Warn("Cannot list users for startup backfill", log.FieldError, err)
	} else if _, failed, err := mirrorWorker.Backfill(ctx, users); err != nil || failed > 0 {
		logger.Warn("Startup backfill incomplete", "failed", failed, log.FieldError, err)
	}

	logger.Info("Consuming ledger saved events", "queue", cfg.AMQPQueue)
	if err := amqpClient.ConsumeLedgerSaved(ctx, mirrorWorker.HandleLedgerSaved); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Consumer stopped", log.FieldError, err)
		os.Exit(1)
	}
	<-done
	logger.Info("saldo-worker stopped", log.FieldOperation, log.OpShutdown)
}
