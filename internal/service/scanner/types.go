package scanner

import (
	"context"
	"time"

	"github.com/goodnatureofminers/ledgerscan/internal/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	CheckpointRepository interface {
		Read(ctx context.Context) (model.Checkpoint, bool, error)
		Create(ctx context.Context, cp model.Checkpoint) error
		Write(ctx context.Context, cp model.Checkpoint) error
	}
	LedgerReader interface {
		CurrentHeight(ctx context.Context) (int64, error)
		BlockTransactions(ctx context.Context, height int64) ([]model.Transaction, error)
	}
	Classifier interface {
		Classify(tx model.Transaction, at time.Time) []model.Document
	}
	BulkIndexer interface {
		WriteAll(ctx context.Context, docs []model.Document) (model.BulkResult, error)
	}
	Guard interface {
		TryAcquire(ctx context.Context) (release func(), ok bool, err error)
	}
	Metrics interface {
		ObserveCycle(state string, err error, started time.Time)
		ObserveBlock(err error, height int64, documents int, started time.Time)
		SetCheckpoint(height int64)
	}
)
