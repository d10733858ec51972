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
	"github.com/goodnatureofminers/ledgerscan/pkg/safe"
)

const (
	// DefaultStateIndex holds the single checkpoint record.
	DefaultStateIndex = "blockchain_state"
	checkpointID      = "1"

	defaultWriteAttempts = 5
)

var errVersionConflict = errors.New("checkpoint version conflict")

// CheckpointRepository persists the scan checkpoint as one document with a
// fixed id. Writes are conditioned on the document's sequence number and
// never lower the stored height.
type CheckpointRepository struct {
	client        *elasticsearch.Client
	index         string
	id            string
	writeAttempts int
	metrics       Metrics
}

// NewCheckpointRepository returns a repository keeping the checkpoint in index.
func NewCheckpointRepository(client *elasticsearch.Client, index string, metrics Metrics) (*CheckpointRepository, error) {
	if client == nil {
		return nil, errors.New("elasticsearch client is required")
	}
	if index == "" {
		return nil, errors.New("checkpoint index is required")
	}
	if metrics == nil {
		return nil, errors.New("checkpoint repository metrics is required")
	}
	return &CheckpointRepository{
		client:        client,
		index:         index,
		id:            checkpointID,
		writeAttempts: defaultWriteAttempts,
		metrics:       metrics,
	}, nil
}

type storedCheckpoint struct {
	checkpoint  model.Checkpoint
	seqNo       int64
	primaryTerm int64
}

type getResponse struct {
	Found       bool   `json:"found"`
	SeqNo       int64  `json:"_seq_no"`
	PrimaryTerm int64  `json:"_primary_term"`
	Source      source `json:"_source"`
}

type source struct {
	CurrentHeight *int64 `json:"current_height"`
}

// Read returns the stored checkpoint; the bool is false when no record exists.
func (r *CheckpointRepository) Read(ctx context.Context) (cp model.Checkpoint, found bool, err error) {
	started := time.Now()
	defer func() {
		r.metrics.Observe("read_checkpoint", err, started)
	}()

	stored, found, err := r.read(ctx)
	if err != nil {
		return model.Checkpoint{}, false, err
	}
	return stored.checkpoint, found, nil
}

// Create stores cp only if no checkpoint exists yet. It returns
// model.ErrCheckpointExists when the record is already there.
func (r *CheckpointRepository) Create(ctx context.Context, cp model.Checkpoint) (err error) {
	started := time.Now()
	defer func() {
		r.metrics.Observe("create_checkpoint", err, started)
	}()

	return r.create(ctx, cp)
}

// Write replaces the stored checkpoint with cp unless the stored height is
// already at or above cp.Height. Concurrent writers are resolved by retrying
// on sequence number conflicts.
func (r *CheckpointRepository) Write(ctx context.Context, cp model.Checkpoint) (err error) {
	started := time.Now()
	defer func() {
		r.metrics.Observe("write_checkpoint", err, started)
	}()

	for attempt := 0; attempt < r.writeAttempts; attempt++ {
		stored, found, err := r.read(ctx)
		if err != nil {
			return err
		}

		if !found {
			err = r.create(ctx, cp)
			if errors.Is(err, model.ErrCheckpointExists) {
				continue
			}
			return err
		}

		if stored.checkpoint.Height >= cp.Height {
			return nil
		}

		err = r.replace(ctx, cp, stored)
		if errors.Is(err, errVersionConflict) {
			continue
		}
		return err
	}

	return fmt.Errorf("write checkpoint %d: gave up after %d conflicting attempts", cp.Height, r.writeAttempts)
}

func (r *CheckpointRepository) read(ctx context.Context) (storedCheckpoint, bool, error) {
	res, err := r.client.Get(r.index, r.id, r.client.Get.WithContext(ctx))
	if err != nil {
		return storedCheckpoint{}, false, fmt.Errorf("get checkpoint: %w", err)
	}
	defer closeBody(res)

	if res.StatusCode == http.StatusNotFound {
		return storedCheckpoint{}, false, nil
	}
	if res.IsError() {
		return storedCheckpoint{}, false, responseError("get checkpoint", res)
	}

	var doc getResponse
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return storedCheckpoint{}, false, fmt.Errorf("decode checkpoint: %w", err)
	}
	if !doc.Found {
		return storedCheckpoint{}, false, nil
	}
	if doc.Source.CurrentHeight == nil {
		return storedCheckpoint{}, false, fmt.Errorf("checkpoint %s/%s has no current_height", r.index, r.id)
	}

	return storedCheckpoint{
		checkpoint:  model.Checkpoint{Height: *doc.Source.CurrentHeight},
		seqNo:       doc.SeqNo,
		primaryTerm: doc.PrimaryTerm,
	}, true, nil
}

func (r *CheckpointRepository) create(ctx context.Context, cp model.Checkpoint) error {
	body, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	res, err := r.client.Create(r.index, r.id, bytes.NewReader(body), r.client.Create.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	defer closeBody(res)

	if res.StatusCode == http.StatusConflict {
		return model.ErrCheckpointExists
	}
	if res.IsError() {
		return responseError("create checkpoint", res)
	}
	return nil
}

func (r *CheckpointRepository) replace(ctx context.Context, cp model.Checkpoint, prev storedCheckpoint) error {
	body, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	seqNo, err := safe.Int(prev.seqNo)
	if err != nil {
		return fmt.Errorf("checkpoint seq_no: %w", err)
	}
	primaryTerm, err := safe.Int(prev.primaryTerm)
	if err != nil {
		return fmt.Errorf("checkpoint primary_term: %w", err)
	}

	res, err := r.client.Index(
		r.index,
		bytes.NewReader(body),
		r.client.Index.WithContext(ctx),
		r.client.Index.WithDocumentID(r.id),
		r.client.Index.WithIfSeqNo(seqNo),
		r.client.Index.WithIfPrimaryTerm(primaryTerm),
	)
	if err != nil {
		return fmt.Errorf("index checkpoint: %w", err)
	}
	defer closeBody(res)

	if res.StatusCode == http.StatusConflict {
		return errVersionConflict
	}
	if res.IsError() {
		return responseError("index checkpoint", res)
	}
	return nil
}
