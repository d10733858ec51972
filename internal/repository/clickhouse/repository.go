// Package clickhouse keeps scan checkpoints in an append-only ClickHouse table.
package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Metrics interface {
		Observe(operation string, err error, started time.Time)
	}
	// Conn is the part of clickhouse.Conn the repository uses.
	Conn interface {
		QueryRow(ctx context.Context, query string, args ...any) driver.Row
		Exec(ctx context.Context, query string, args ...any) error
	}
	// Row mirrors driver.Row.
	Row interface {
		Err() error
		Scan(dest ...any) error
		ScanStruct(dest any) error
	}
)

// DefaultScope names the checkpoint row set when only one ledger is scanned.
const DefaultScope = "default"

type CheckpointRepository struct {
	conn    Conn
	scope   string
	now     func() time.Time
	metrics Metrics
}

func NewCheckpointRepository(dsn, scope string, metrics Metrics) (*CheckpointRepository, error) {
	if dsn == "" {
		return nil, errors.New("clickhouse dsn is required")
	}
	if scope == "" {
		return nil, errors.New("checkpoint scope is required")
	}
	if metrics == nil {
		return nil, errors.New("clickhouse repository metrics is required")
	}

	options, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	return &CheckpointRepository{conn: conn, scope: scope, now: time.Now, metrics: metrics}, nil
}
