package scanner

import (
	"context"
	"errors"
	"fmt"

	"github.com/goodnatureofminers/ledgerscan/internal/model"
	"go.uber.org/zap"
)

type checkpointLoader struct {
	repo   CheckpointRepository
	logger *zap.Logger
}

// Load returns the committed height, creating the initial record when the
// store has none.
func (l *checkpointLoader) Load(ctx context.Context) (int64, error) {
	cp, found, err := l.repo.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: read: %w", ErrStoreUnavailable, err)
	}
	if found {
		return cp.Height, nil
	}

	err = l.repo.Create(ctx, model.Checkpoint{Height: model.InitialHeight})
	switch {
	case err == nil:
		l.logger.Info("initialized checkpoint", zap.Int64("height", model.InitialHeight))
		return model.InitialHeight, nil
	case errors.Is(err, model.ErrCheckpointExists):
		// Lost the creation race; the winner's record is authoritative.
		cp, found, err = l.repo.Read(ctx)
		if err != nil {
			return 0, fmt.Errorf("%w: read: %w", ErrStoreUnavailable, err)
		}
		if !found {
			return 0, fmt.Errorf("%w: checkpoint reported as existing but not readable", ErrStoreUnavailable)
		}
		return cp.Height, nil
	default:
		return 0, fmt.Errorf("%w: create: %w", ErrStoreUnavailable, err)
	}
}

// Store commits height as the new checkpoint.
func (l *checkpointLoader) Store(ctx context.Context, height int64) error {
	if err := l.repo.Write(ctx, model.Checkpoint{Height: height}); err != nil {
		return fmt.Errorf("%w: write %d: %w", ErrStoreUnavailable, height, err)
	}
	return nil
}
