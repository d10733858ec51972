// Package elasticsearch stores scan checkpoints and index documents in Elasticsearch.
package elasticsearch

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const maxErrorBody = 1024

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// Metrics records metrics for repository operations.
	Metrics interface {
		Observe(operation string, err error, started time.Time)
	}
	// BulkMetrics additionally records per-item bulk outcomes.
	BulkMetrics interface {
		Metrics
		ObserveBulkItems(succeeded, failed int)
	}
)

// Config describes how to reach the Elasticsearch cluster.
type Config struct {
	Addresses []string
	Username  string
	Password  string
}

// NewClient builds an Elasticsearch client from cfg.
func NewClient(cfg Config) (*elasticsearch.Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("elasticsearch addresses are required")
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return client, nil
}

func responseError(operation string, res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	return fmt.Errorf("%s: status %d: %s", operation, res.StatusCode, body)
}

func closeBody(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}
}
