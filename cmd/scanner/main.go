// Package main runs the ledger scanner: an HTTP trigger that scans new ledger
// blocks into Elasticsearch.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodnatureofminers/ledgerscan/internal/classifier"
	"github.com/goodnatureofminers/ledgerscan/internal/ledger"
	"github.com/goodnatureofminers/ledgerscan/internal/lock"
	"github.com/goodnatureofminers/ledgerscan/internal/metrics"
	"github.com/goodnatureofminers/ledgerscan/internal/repository/clickhouse"
	"github.com/goodnatureofminers/ledgerscan/internal/repository/elasticsearch"
	"github.com/goodnatureofminers/ledgerscan/internal/service/scanner"
	"github.com/goodnatureofminers/ledgerscan/internal/transport"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const redisPingTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	var cfg config
	if _, err := flags.ParseArgs(&cfg, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("Failed to parse arguments", zap.Error(err))
	}
	if err := cfg.validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	svc, closeDeps, err := buildScanner(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build scanner", zap.Error(err))
	}
	defer closeDeps()

	if cfg.RunOnce {
		res, err := svc.Scan(ctx)
		if err != nil {
			logger.Error("Scan failed", zap.Error(err))
			closeDeps()
			os.Exit(1)
		}
		fmt.Println(res.String())
		return
	}

	go serveMetrics(ctx, cfg.MetricsAddr, logger)

	if cfg.Schedule != "" {
		sched, err := transport.NewScheduler(ctx, cfg.Schedule, svc, cfg.ScanTimeout, logger)
		if err != nil {
			logger.Fatal("Failed to set up schedule", zap.Error(err))
		}
		sched.Start()
		logger.Info("Schedule started", zap.String("schedule", cfg.Schedule))
		defer sched.Stop()
	}

	handler, err := transport.NewScanHandler(svc, logger.Named("http"))
	if err != nil {
		logger.Fatal("Failed to create handler", zap.Error(err))
	}

	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           cors.Default().Handler(handler.Router()),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down the http server")
		if err := s.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown http server", zap.Error(err))
		}
	}()

	logger.Info("Starting HTTP server", zap.String("addr", cfg.Addr))
	if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Failed to listen and serve", zap.Error(err))
	}
}

func buildScanner(ctx context.Context, cfg config, logger *zap.Logger) (*scanner.Service, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		closers = nil
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.ESAddresses,
		Username:  cfg.ESUsername,
		Password:  cfg.ESPassword,
	})
	if err != nil {
		return nil, nil, err
	}

	ledgerClient, err := ledger.NewClient(ledger.Config{
		Endpoint:  cfg.LedgerEndpoint,
		Channel:   cfg.LedgerChannel,
		Chaincode: cfg.LedgerChaincode,
		Account:   cfg.LedgerAccount,
		Timeout:   cfg.LedgerTimeout,
		RPS:       cfg.LedgerRPS,
	}, metrics.NewLedgerClient(cfg.LedgerChannel, cfg.LedgerChaincode))
	if err != nil {
		return nil, nil, err
	}

	namer, err := classifier.NewIndexNamer(classifier.Bucketing(cfg.IndexBucketing), cfg.TxIndexPrefix, cfg.OfferIndexPrefix)
	if err != nil {
		return nil, nil, err
	}

	indexer, err := elasticsearch.NewBulkIndexer(es, cfg.BulkMaxActions, metrics.NewRepository(backendElasticsearch))
	if err != nil {
		return nil, nil, err
	}

	var checkpoints scanner.CheckpointRepository
	switch cfg.CheckpointBackend {
	case backendClickhouse:
		checkpoints, err = clickhouse.NewCheckpointRepository(cfg.ClickhouseDSN, cfg.CheckpointScope, metrics.NewRepository(backendClickhouse))
	default:
		checkpoints, err = elasticsearch.NewCheckpointRepository(es, cfg.CheckpointIndex, metrics.NewRepository(backendElasticsearch))
	}
	if err != nil {
		return nil, nil, err
	}

	var guard scanner.Guard = lock.NewLocal()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		closers = append(closers, func() { _ = rdb.Close() })

		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}

		guard, err = lock.NewRedis(rdb, lock.DefaultKey, cfg.LockTTL, logger)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		logger.Info("Using redis scan lock", zap.String("addr", cfg.RedisAddr), zap.String("key", lock.DefaultKey))
	}

	svc, err := scanner.NewService(
		checkpoints,
		ledgerClient,
		classifier.New(namer),
		indexer,
		guard,
		metrics.NewScanner(cfg.LedgerChannel, cfg.LedgerChaincode),
		logger.Named("scanner"),
	)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return svc, closeAll, nil
}

func serveMetrics(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		if err := s.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown metrics server", zap.Error(err))
		}
	}()

	logger.Info("Starting metrics server", zap.String("addr", addr))
	if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Metrics server stopped", zap.Error(err))
	}
}
