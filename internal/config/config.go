// Package config defines the CLI/env configuration surface of
// cmd/poller, using the github.com/jessevdk/go-flags grouped-struct
// idiom for its poller/inbox/ocr/blob/db/backpressure/log/metrics
// option groups.
package config

// Poller controls scheduler timing.
type Poller struct {
	Enabled         bool `long:"enabled" env:"ENABLED" default:"true" description:"Run the poller service."`
	IntervalSeconds int  `long:"interval-seconds" env:"INTERVAL_SECONDS" default:"5" description:"Seconds between poll ticks."`
	BatchSize       int  `long:"batch-size" env:"BATCH_SIZE" default:"50" description:"Source rows drained per poll tick."`
	ReclaimEvery    int  `long:"reclaim-every" env:"RECLAIM_EVERY" default:"10" description:"Run the Reclaimer every N poll ticks."`
	Workers         int  `long:"workers" env:"WORKERS" default:"4" description:"Concurrent inbox workers per process."`
}

// Inbox controls reclaim/DEAD thresholds.
type Inbox struct {
	StaleLockMinutes int `long:"stale-lock-minutes" env:"STALE_LOCK_MINUTES" default:"10" description:"PROCESSING rows older than this are eligible for reclaim."`
	MaxAttempts      int `long:"max-attempts" env:"MAX_ATTEMPTS" default:"5" description:"Attempts before a row is promoted to DEAD."`
}

// OCR controls the field-extraction stage's external calls.
type OCR struct {
	Endpoint                     string  `long:"endpoint" env:"ENDPOINT" description:"Base URL of the OCR HTTP service."`
	MaxPagesPerDoc               int     `long:"max-pages-per-doc" env:"MAX_PAGES_PER_DOC" default:"10" description:"Hard cap on pages submitted to OCR per document."`
	TotalAttemptsBudget          int     `long:"total-attempts-budget" env:"TOTAL_ATTEMPTS_BUDGET" default:"3" description:"Stop-ship cap on OCR attempts across all pages of one invocation."`
	DelayBetweenRequestsSeconds  float64 `long:"delay-between-requests-seconds" env:"DELAY_BETWEEN_REQUESTS_SECONDS" default:"0.5" description:"Inter-page pacing delay."`
	StopAfterCoversheet          bool    `long:"stop-after-coversheet" env:"STOP_AFTER_COVERSHEET" default:"true" description:"Stop processing further pages once a coversheet is early-accepted."`
	CoversheetConfidenceThresh   float64 `long:"coversheet-confidence-threshold" env:"COVERSHEET_CONFIDENCE_THRESHOLD" default:"0.7" description:"Minimum OCR confidence for early coversheet accept."`
	MinCoversheetFields          int     `long:"min-coversheet-fields" env:"MIN_COVERSHEET_FIELDS" default:"20" description:"Minimum field_count for early coversheet accept."`
	RequestTimeoutSeconds        int     `long:"request-timeout-seconds" env:"REQUEST_TIMEOUT_SECONDS" default:"30" description:"Per-request OCR HTTP timeout."`
	MaxRetries                   int     `long:"max-retries" env:"MAX_RETRIES" default:"3" description:"Adapter-level retries on transient OCR failures."`
}

// Blob controls the source/destination blob containers.
type Blob struct {
	SourceContainer string `long:"source-container" env:"SOURCE_CONTAINER" description:"Read-only upstream container."`
	DestContainer   string `long:"dest-container" env:"DEST_CONTAINER" description:"This core's write container."`
	TempDir         string `long:"temp-dir" env:"TEMP_DIR" default:"" description:"Local scratch directory for downloads (empty = os.TempDir())."`
	MaxRetries      int    `long:"max-retries" env:"MAX_RETRIES" default:"3" description:"Adapter-level retries on transient blob failures."`
}

// DB controls the Postgres connection pool.
type DB struct {
	DSN               string `long:"dsn" env:"DSN" description:"Postgres connection string."`
	PoolSize          int    `long:"pool-size" env:"POOL_SIZE" default:"10" description:"Base connection pool size."`
	MaxOverflow       int    `long:"max-overflow" env:"MAX_OVERFLOW" default:"5" description:"Additional connections allowed beyond pool-size."`
	PoolRecycleSecs   int    `long:"pool-recycle-seconds" env:"POOL_RECYCLE_SECONDS" default:"1800" description:"Max connection lifetime before recycling."`
	PoolPrePing       bool   `long:"pool-pre-ping" env:"POOL_PRE_PING" default:"true" description:"Ping a connection before handing it out."`
}

// Backpressure controls claim batch shrinking.
type Backpressure struct {
	PoolCriticalThreshold float64 `long:"pool-critical-threshold" env:"POOL_CRITICAL_THRESHOLD" default:"0.95" description:"Pool utilization above which claim batch size shrinks to 1."`
	InterJobDelaySeconds  float64 `long:"inter-job-delay-seconds" env:"INTER_JOB_DELAY_SECONDS" default:"3" description:"Delay between jobs within one tick, yielding connections back to the pool."`
}

// Log controls the process logger, configuring github.com/sirupsen/logrus
// at startup.
type Log struct {
	Level string `long:"level" env:"LEVEL" default:"info" description:"Log level."`
	Text  bool   `long:"text" env:"TEXT" description:"Use human-readable text formatting instead of JSON."`
}

// Metrics controls the Prometheus HTTP exporter.
type Metrics struct {
	ListenAddr string `long:"listen-addr" env:"LISTEN_ADDR" default:":9090" description:"Address to serve /metrics on."`
}

// Args is the root go-flags struct parsed by cmd/poller.
type Args struct {
	Poller       Poller       `group:"Poller" namespace:"poller" env-namespace:"POLLER"`
	Inbox        Inbox        `group:"Inbox" namespace:"inbox" env-namespace:"INBOX"`
	OCR          OCR          `group:"OCR" namespace:"ocr" env-namespace:"OCR"`
	Blob         Blob         `group:"Blob" namespace:"blob" env-namespace:"BLOB"`
	DB           DB           `group:"Database" namespace:"db" env-namespace:"DB"`
	Backpressure Backpressure `group:"Backpressure" namespace:"backpressure" env-namespace:"BACKPRESSURE"`
	Log          Log          `group:"Logging" namespace:"log" env-namespace:"LOG"`
	Metrics      Metrics      `group:"Metrics" namespace:"metrics" env-namespace:"METRICS"`
}
