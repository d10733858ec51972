// Package scanner runs the scan cycle that moves ledger blocks into the search index.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodnatureofminers/ledgerscan/internal/clock"
	"github.com/goodnatureofminers/ledgerscan/internal/model"
	"go.uber.org/zap"
)

// Service scans the blocks finalized since the last committed checkpoint.
// Cycles never overlap: a call made while another is running is skipped.
type Service struct {
	logger      *zap.Logger
	guard       Guard
	ledger      LedgerReader
	checkpoints *checkpointLoader
	processor   *blockProcessor
	metrics     Metrics
}

// NewService builds a Service with dependencies.
func NewService(
	repo CheckpointRepository,
	ledger LedgerReader,
	classifier Classifier,
	indexer BulkIndexer,
	guard Guard,
	metrics Metrics,
	logger *zap.Logger,
) (*Service, error) {
	switch {
	case repo == nil:
		return nil, errors.New("checkpoint repository is required")
	case ledger == nil:
		return nil, errors.New("ledger reader is required")
	case classifier == nil:
		return nil, errors.New("classifier is required")
	case indexer == nil:
		return nil, errors.New("bulk indexer is required")
	case guard == nil:
		return nil, errors.New("scan guard is required")
	case metrics == nil:
		return nil, errors.New("scanner metrics is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	checkpoints := &checkpointLoader{repo: repo, logger: logger.Named("checkpoint")}
	return &Service{
		logger:      logger,
		guard:       guard,
		ledger:      ledger,
		checkpoints: checkpoints,
		processor: &blockProcessor{
			classifier:  classifier,
			indexer:     indexer,
			checkpoints: checkpoints,
			clock:       clock.Real{},
			logger:      logger.Named("blockProcessor"),
		},
		metrics: metrics,
	}, nil
}

// Scan runs one cycle. Blocks checkpoint+1 up to the ledger height (exclusive)
// are processed in order, each committed before the next is read. A block that
// cannot be fetched halts the cycle without error; the result then reports the
// last committed height.
func (s *Service) Scan(ctx context.Context) (result model.ScanResult, err error) {
	started := time.Now()
	defer func() {
		s.metrics.ObserveCycle(string(result.State), err, started)
	}()

	release, ok, err := s.guard.TryAcquire(ctx)
	if err != nil {
		return model.ScanResult{State: model.ScanFailed}, fmt.Errorf("%w: %w", ErrGuardUnavailable, err)
	}
	if !ok {
		s.logger.Info("scan already in progress, skipping")
		return model.ScanResult{State: model.ScanSkipped}, nil
	}
	defer release()

	return s.scan(ctx)
}

func (s *Service) scan(ctx context.Context) (model.ScanResult, error) {
	start, err := s.checkpoints.Load(ctx)
	if err != nil {
		return model.ScanResult{State: model.ScanFailed}, err
	}
	s.metrics.SetCheckpoint(start)

	height, err := s.ledger.CurrentHeight(ctx)
	if err != nil {
		return model.ScanResult{State: model.ScanFailed, Start: start, Reached: start},
			fmt.Errorf("%w: %w", ErrChainHeightUnavailable, err)
	}

	result := model.ScanResult{
		State:        model.ScanDone,
		Start:        start,
		Reached:      start,
		LedgerHeight: height,
	}
	logger := s.logger.With(zap.Int64("checkpoint", start), zap.Int64("ledger_height", height))
	if start+1 >= height {
		logger.Debug("no new blocks")
		return result, nil
	}
	logger.Info("scanning blocks", zap.Int64("from", start+1), zap.Int64("to", height-1))

	for h := start + 1; h < height; h++ {
		if err := ctx.Err(); err != nil {
			result.State = model.ScanFailed
			return result, err
		}

		documents, halt, err := s.scanBlock(ctx, h)
		if halt != nil {
			logger.Warn("block fetch failed, halting", zap.Int64("height", h), zap.Error(halt))
			result.State = model.ScanHalted
			result.HaltErr = halt
			return result, nil
		}
		if err != nil {
			logger.Error("block processing failed", zap.Int64("height", h), zap.Error(err))
			result.State = model.ScanFailed
			return result, err
		}

		result.Reached = h
		result.Blocks++
		result.Documents += documents
		s.metrics.SetCheckpoint(h)
	}

	logger.Info("scan finished",
		zap.Int64("reached", result.Reached),
		zap.Int("blocks", result.Blocks),
		zap.Int("documents", result.Documents),
	)
	return result, nil
}

// scanBlock returns halt when the block could not be fetched and err when the
// cycle must stop with a failure.
func (s *Service) scanBlock(ctx context.Context, height int64) (documents int, halt, err error) {
	started := time.Now()
	defer func() {
		observed := err
		if halt != nil {
			observed = halt
		}
		s.metrics.ObserveBlock(observed, height, documents, started)
	}()

	txs, err := s.ledger.BlockTransactions(ctx, height)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, nil, ctxErr
		}
		return 0, err, nil
	}

	documents, err = s.processor.Process(ctx, height, txs)
	return documents, nil, err
}
