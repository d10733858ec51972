// Package ledger reads block height and block transactions from a ledger gateway.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goodnatureofminers/ledgerscan/internal/model"
	"github.com/goodnatureofminers/ledgerscan/pkg/safe"
	"go.uber.org/ratelimit"
)

const (
	accountHeader = "X-Ledger-Account"

	maxErrorBody = 512
)

var (
	// ErrHeightUnavailable is returned when the current ledger height cannot be read.
	ErrHeightUnavailable = errors.New("ledger height unavailable")
	// ErrBlockFetch is returned when a block's transactions cannot be retrieved or decoded.
	ErrBlockFetch = errors.New("block fetch failed")
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// Metrics records metrics for ledger gateway calls.
	Metrics interface {
		Observe(operation string, err error, started time.Time)
	}
)

// Config describes how to reach the ledger gateway.
type Config struct {
	Endpoint  string
	Channel   string
	Chaincode string
	Account   string
	Timeout   time.Duration
	// RPS caps outgoing requests per second; zero or less disables throttling.
	RPS int
}

// Client is a read-only view of the ledger. It owns no mutable state.
type Client struct {
	httpClient *http.Client
	endpoint   *url.URL
	channel    string
	chaincode  string
	account    string
	limiter    ratelimit.Limiter
	metrics    Metrics
}

// NewClient validates cfg and constructs an instrumented ledger client.
func NewClient(cfg Config, metrics Metrics) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("ledger endpoint is required")
	}
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse ledger endpoint: %w", err)
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return nil, fmt.Errorf("ledger endpoint scheme %q not supported, use http or https", endpoint.Scheme)
	}
	if endpoint.Host == "" {
		return nil, errors.New("ledger endpoint missing host")
	}
	if metrics == nil {
		return nil, errors.New("ledger client metrics is required")
	}

	limiter := ratelimit.NewUnlimited()
	if cfg.RPS > 0 {
		limiter = ratelimit.New(cfg.RPS)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   endpoint,
		channel:    cfg.Channel,
		chaincode:  cfg.Chaincode,
		account:    cfg.Account,
		limiter:    limiter,
		metrics:    metrics,
	}, nil
}

type heightResponse struct {
	Height *uint64 `json:"height"`
}

type transactionsResponse struct {
	Transactions *[]model.Transaction `json:"transactions"`
}

// CurrentHeight returns the ledger's block height. Blocks 0..height-1 are
// final; height itself is the first block that cannot be scanned yet.
func (c *Client) CurrentHeight(ctx context.Context) (height int64, err error) {
	started := time.Now()
	defer func() {
		c.metrics.Observe("height", err, started)
	}()

	var resp heightResponse
	if err = c.get(ctx, "height", &resp); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrHeightUnavailable, err)
	}
	if resp.Height == nil {
		return 0, fmt.Errorf("%w: response has no height", ErrHeightUnavailable)
	}
	height, err = safe.Int64(*resp.Height)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrHeightUnavailable, err)
	}
	return height, nil
}

// BlockTransactions returns the ordered transactions of the block at height.
// An empty block is a success; any retrieval or decoding problem wraps ErrBlockFetch.
func (c *Client) BlockTransactions(ctx context.Context, height int64) (txs []model.Transaction, err error) {
	started := time.Now()
	defer func() {
		c.metrics.Observe("block_transactions", err, started)
	}()

	if height < 0 {
		return nil, fmt.Errorf("%w: negative height %d", ErrBlockFetch, height)
	}

	var resp transactionsResponse
	if err = c.get(ctx, "blocks/"+strconv.FormatInt(height, 10)+"/transactions", &resp); err != nil {
		return nil, fmt.Errorf("%w: height %d: %w", ErrBlockFetch, height, err)
	}
	if resp.Transactions == nil {
		return nil, fmt.Errorf("%w: height %d: response has no transactions", ErrBlockFetch, height)
	}
	return *resp.Transactions, nil
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.limiter.Take()

	u := c.endpoint.JoinPath(path)
	q := u.Query()
	if c.channel != "" {
		q.Set("channel", c.channel)
	}
	if c.chaincode != "" {
		q.Set("chaincode", c.chaincode)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.account != "" {
		req.Header.Set(accountHeader, c.account)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return fmt.Errorf("get %s: unexpected status %d: %s", path, res.StatusCode, body)
	}

	if err := json.NewDecoder(res.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
