package scanner

import (
	"context"
	"fmt"
	"strings"

	"github.com/goodnatureofminers/ledgerscan/internal/clock"
	"github.com/goodnatureofminers/ledgerscan/internal/model"
	"go.uber.org/zap"
)

// blockProcessor indexes one fetched block and commits it to the checkpoint.
type blockProcessor struct {
	classifier  Classifier
	indexer     BulkIndexer
	checkpoints *checkpointLoader
	clock       clock.Clock
	logger      *zap.Logger
}

// Process writes the documents of txs and advances the checkpoint to height.
// The checkpoint is left untouched unless every document was accepted.
func (p *blockProcessor) Process(ctx context.Context, height int64, txs []model.Transaction) (int, error) {
	at := p.clock.Now()

	var docs []model.Document
	for _, tx := range txs {
		docs = append(docs, p.classifier.Classify(tx, at)...)
	}

	res, err := p.indexer.WriteAll(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("%w: block %d: %w", ErrBulkWrite, height, err)
	}
	if len(res.Failed) > 0 {
		p.logger.Error("index refused documents",
			zap.Int64("height", height),
			zap.Int("failed", len(res.Failed)),
			zap.Int("succeeded", res.Succeeded),
		)
		return 0, fmt.Errorf("%w: block %d: %d of %d documents refused: %s",
			ErrPartialBulkWrite, height, len(res.Failed), len(docs), describeFailures(res.Failed))
	}

	if err := p.checkpoints.Store(ctx, height); err != nil {
		return 0, err
	}
	return len(docs), nil
}

func describeFailures(failed []model.BulkItemFailure) string {
	n := min(len(failed), reportedFailures)
	parts := make([]string, 0, n+1)
	for _, f := range failed[:n] {
		parts = append(parts, f.String())
	}
	if len(failed) > n {
		parts = append(parts, fmt.Sprintf("and %d more", len(failed)-n))
	}
	return strings.Join(parts, "; ")
}
