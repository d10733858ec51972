package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/goodnatureofminers/ledgerscan/internal/classifier"
)

const (
	backendElasticsearch = "elasticsearch"
	backendClickhouse    = "clickhouse"
)

type config struct {
	ESAddresses []string `long:"es-address" env:"LEDGERSCAN_ES_ADDRESSES" env-delim:"," default:"http://localhost:9200" description:"elasticsearch node address, repeatable"`
	ESUsername  string   `long:"es-username" env:"LEDGERSCAN_ES_USERNAME" description:"elasticsearch username"`
	ESPassword  string   `long:"es-password" env:"LEDGERSCAN_ES_PASSWORD" description:"elasticsearch password"`

	LedgerEndpoint  string        `long:"ledger-endpoint" env:"LEDGERSCAN_LEDGER_ENDPOINT" required:"true" description:"ledger gateway base url"`
	LedgerChannel   string        `long:"ledger-channel" env:"LEDGERSCAN_LEDGER_CHANNEL" default:"pts-exchange" description:"ledger channel"`
	LedgerChaincode string        `long:"ledger-chaincode" env:"LEDGERSCAN_LEDGER_CHAINCODE" default:"pts-exchange" description:"ledger chaincode"`
	LedgerAccount   string        `long:"ledger-account" env:"LEDGERSCAN_LEDGER_ACCOUNT" description:"account identity sent to the ledger gateway"`
	LedgerTimeout   time.Duration `long:"ledger-timeout" env:"LEDGERSCAN_LEDGER_TIMEOUT" default:"30s" description:"ledger request timeout"`
	LedgerRPS       int           `long:"ledger-rps" env:"LEDGERSCAN_LEDGER_RPS" default:"0" description:"max ledger requests per second, 0 disables throttling"`

	CheckpointBackend string `long:"checkpoint-backend" env:"LEDGERSCAN_CHECKPOINT_BACKEND" default:"elasticsearch" choice:"elasticsearch" choice:"clickhouse" description:"checkpoint store"`
	CheckpointIndex   string `long:"checkpoint-index" env:"LEDGERSCAN_CHECKPOINT_INDEX" default:"blockchain_state" description:"elasticsearch index holding the checkpoint"`
	ClickhouseDSN     string `long:"clickhouse-dsn" env:"LEDGERSCAN_CLICKHOUSE_DSN" description:"clickhouse dsn for the clickhouse checkpoint backend"`
	CheckpointScope   string `long:"checkpoint-scope" env:"LEDGERSCAN_CHECKPOINT_SCOPE" default:"default" description:"clickhouse checkpoint scope"`

	RedisAddr     string        `long:"redis-addr" env:"LEDGERSCAN_REDIS_ADDR" description:"redis address for the cross-replica scan lock, empty keeps the lock in process"`
	RedisPassword string        `long:"redis-password" env:"LEDGERSCAN_REDIS_PASSWORD" description:"redis password"`
	RedisDB       int           `long:"redis-db" env:"LEDGERSCAN_REDIS_DB" default:"0" description:"redis database"`
	LockTTL       time.Duration `long:"lock-ttl" env:"LEDGERSCAN_LOCK_TTL" default:"10m" description:"expiry of the cross-replica scan lock"`

	IndexBucketing   string `long:"index-bucketing" env:"LEDGERSCAN_INDEX_BUCKETING" default:"hourly" choice:"hourly" choice:"none" description:"index time bucketing"`
	TxIndexPrefix    string `long:"tx-index-prefix" env:"LEDGERSCAN_TX_INDEX_PREFIX" default:"blockchain_tx" description:"transaction index prefix"`
	OfferIndexPrefix string `long:"offer-index-prefix" env:"LEDGERSCAN_OFFER_INDEX_PREFIX" default:"blockchain_offer" description:"offer index prefix"`
	BulkMaxActions   int    `long:"bulk-max-actions" env:"LEDGERSCAN_BULK_MAX_ACTIONS" default:"0" description:"max documents per bulk request, 0 sends a block in one request"`

	Addr        string        `long:"addr" env:"LEDGERSCAN_ADDR" default:":8080" description:"trigger http addr"`
	MetricsAddr string        `long:"metrics-addr" env:"LEDGERSCAN_METRICS_ADDR" default:":9090" description:"metrics http addr"`
	RunOnce     bool          `long:"run-once" env:"LEDGERSCAN_RUN_ONCE" description:"run one cycle, print its status and exit"`
	Schedule    string        `long:"schedule" env:"LEDGERSCAN_SCHEDULE" description:"cron schedule triggering cycles in process"`
	ScanTimeout time.Duration `long:"scan-timeout" env:"LEDGERSCAN_SCAN_TIMEOUT" default:"0" description:"upper bound of a scheduled cycle, 0 disables"`
}

func (c config) validate() error {
	if len(c.ESAddresses) == 0 {
		return errors.New("at least one elasticsearch address is required")
	}
	if c.CheckpointBackend == backendClickhouse && c.ClickhouseDSN == "" {
		return errors.New("clickhouse dsn is required for the clickhouse checkpoint backend")
	}
	if c.RedisAddr != "" && c.LockTTL <= 0 {
		return fmt.Errorf("lock ttl must be positive, got %s", c.LockTTL)
	}
	if c.RunOnce && c.Schedule != "" {
		return errors.New("run-once and schedule are mutually exclusive")
	}
	if c.BulkMaxActions < 0 {
		return fmt.Errorf("bulk max actions must not be negative, got %d", c.BulkMaxActions)
	}
	if _, err := classifier.NewIndexNamer(classifier.Bucketing(c.IndexBucketing), c.TxIndexPrefix, c.OfferIndexPrefix); err != nil {
		return err
	}
	return nil
}
