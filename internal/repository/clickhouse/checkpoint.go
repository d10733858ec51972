package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/goodnatureofminers/ledgerscan/internal/model"
)

const (
	readCheckpointQuery = `
SELECT max(height) AS height, count() AS cnt
FROM ledger_checkpoints
WHERE scope = ?`

	insertCheckpointQuery = `
INSERT INTO ledger_checkpoints (scope, height, updated_at)
VALUES (?, ?, ?)`
)

// Read returns the highest checkpoint recorded for the scope.
func (r *CheckpointRepository) Read(ctx context.Context) (cp model.Checkpoint, found bool, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("read_checkpoint", err, start)
	}()

	return r.read(ctx)
}

// Create records the initial checkpoint when the scope has none. Two racing
// creators may both insert; max(height) keeps the outcome identical.
func (r *CheckpointRepository) Create(ctx context.Context, cp model.Checkpoint) (err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("create_checkpoint", err, start)
	}()

	_, found, err := r.read(ctx)
	if err != nil {
		return err
	}
	if found {
		return model.ErrCheckpointExists
	}
	return r.insert(ctx, cp)
}

// Write appends cp. Reads take the maximum, so an older height written late
// never lowers the checkpoint.
func (r *CheckpointRepository) Write(ctx context.Context, cp model.Checkpoint) (err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("write_checkpoint", err, start)
	}()

	return r.insert(ctx, cp)
}

func (r *CheckpointRepository) read(ctx context.Context) (model.Checkpoint, bool, error) {
	row := r.conn.QueryRow(ctx, readCheckpointQuery, r.scope)
	if err := row.Err(); err != nil {
		return model.Checkpoint{}, false, fmt.Errorf("query checkpoint: %w", err)
	}

	var (
		height int64
		cnt    uint64
	)
	if err := row.Scan(&height, &cnt); err != nil {
		return model.Checkpoint{}, false, fmt.Errorf("scan checkpoint: %w", err)
	}
	if cnt == 0 {
		return model.Checkpoint{}, false, nil
	}
	return model.Checkpoint{Height: height}, true, nil
}

func (r *CheckpointRepository) insert(ctx context.Context, cp model.Checkpoint) error {
	if err := r.conn.Exec(ctx, insertCheckpointQuery, r.scope, cp.Height, r.now().UTC()); err != nil {
		return fmt.Errorf("insert checkpoint %d: %w", cp.Height, err)
	}
	return nil
}
