package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/goodnatureofminers/ledgerscan/internal/model"
	"github.com/goodnatureofminers/ledgerscan/pkg/batcher"
)

const (
	// DefaultBulkMaxActions bounds the number of documents per bulk request.
	DefaultBulkMaxActions = 500
	retryOnConflict       = 3
)

// BulkIndexer upserts documents with partial-document merge semantics:
// fields present in a document overwrite stored fields, absent ones are kept.
type BulkIndexer struct {
	client     *elasticsearch.Client
	maxActions int
	metrics    BulkMetrics
}

// NewBulkIndexer returns an indexer sending at most maxActions documents per
// request. A maxActions of zero or less sends every write in one request.
func NewBulkIndexer(client *elasticsearch.Client, maxActions int, metrics BulkMetrics) (*BulkIndexer, error) {
	if client == nil {
		return nil, errors.New("elasticsearch client is required")
	}
	if metrics == nil {
		return nil, errors.New("bulk indexer metrics is required")
	}
	return &BulkIndexer{client: client, maxActions: maxActions, metrics: metrics}, nil
}

type bulkAction struct {
	Update bulkTarget `json:"update"`
}

type bulkTarget struct {
	Index           string `json:"_index"`
	ID              string `json:"_id"`
	RetryOnConflict int    `json:"retry_on_conflict"`
}

type bulkUpsert struct {
	Doc         map[string]any `json:"doc"`
	DocAsUpsert bool           `json:"doc_as_upsert"`
}

type bulkResponse struct {
	Errors bool                          `json:"errors"`
	Items  []map[string]bulkResponseItem `json:"items"`
}

type bulkResponseItem struct {
	Index  string         `json:"_index"`
	ID     string         `json:"_id"`
	Status int            `json:"status"`
	Error  *bulkItemError `json:"error"`
}

type bulkItemError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// WriteAll upserts docs and reports the outcome of every item. A returned
// error means the request as a whole failed; refused items are listed in the
// result instead.
func (b *BulkIndexer) WriteAll(ctx context.Context, docs []model.Document) (result model.BulkResult, err error) {
	if len(docs) == 0 {
		return model.BulkResult{}, nil
	}

	started := time.Now()
	defer func() {
		b.metrics.Observe("bulk_upsert", err, started)
		if err == nil {
			b.metrics.ObserveBulkItems(result.Succeeded, len(result.Failed))
		}
	}()

	for _, chunk := range batcher.Chunk(docs, b.maxActions) {
		part, err := b.write(ctx, chunk)
		if err != nil {
			return model.BulkResult{}, err
		}
		result.Succeeded += part.Succeeded
		result.Failed = append(result.Failed, part.Failed...)
	}
	return result, nil
}

func (b *BulkIndexer) write(ctx context.Context, docs []model.Document) (model.BulkResult, error) {
	body, err := encodeBulk(docs)
	if err != nil {
		return model.BulkResult{}, err
	}

	res, err := b.client.Bulk(bytes.NewReader(body), b.client.Bulk.WithContext(ctx))
	if err != nil {
		return model.BulkResult{}, fmt.Errorf("bulk request: %w", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return model.BulkResult{}, responseError("bulk request", res)
	}

	var resp bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return model.BulkResult{}, fmt.Errorf("decode bulk response: %w", err)
	}
	if len(resp.Items) != len(docs) {
		return model.BulkResult{}, fmt.Errorf("bulk response has %d items for %d documents", len(resp.Items), len(docs))
	}

	var result model.BulkResult
	for i, entry := range resp.Items {
		item, ok := entry["update"]
		if !ok {
			return model.BulkResult{}, fmt.Errorf("bulk response item %d is not an update", i)
		}
		if item.Error == nil && item.Status < http.StatusMultipleChoices {
			result.Succeeded++
			continue
		}

		failure := model.BulkItemFailure{
			Index:  docs[i].Index,
			ID:     docs[i].ID,
			Status: item.Status,
		}
		if item.Error != nil {
			failure.Type = item.Error.Type
			failure.Reason = item.Error.Reason
		}
		result.Failed = append(result.Failed, failure)
	}
	return result, nil
}

func encodeBulk(docs []model.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		if doc.Index == "" || doc.ID == "" {
			return nil, fmt.Errorf("document %q in index %q is not addressable", doc.ID, doc.Index)
		}
		fields := doc.Body
		if fields == nil {
			fields = map[string]any{}
		}

		if err := enc.Encode(bulkAction{Update: bulkTarget{
			Index:           doc.Index,
			ID:              doc.ID,
			RetryOnConflict: retryOnConflict,
		}}); err != nil {
			return nil, fmt.Errorf("encode bulk action for %s/%s: %w", doc.Index, doc.ID, err)
		}
		if err := enc.Encode(bulkUpsert{Doc: fields, DocAsUpsert: true}); err != nil {
			return nil, fmt.Errorf("encode bulk document %s/%s: %w", doc.Index, doc.ID, err)
		}
	}
	return buf.Bytes(), nil
}
