// Package config loads tunecore's host configuration: environment variables
// (optionally via a .env file) layered under an optional YAML file, with
// env taking precedence.
package config

// ObsConfig holds OpenTelemetry/observability settings.
type ObsConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Environment    string `yaml:"environment"`
	OTLP           string `yaml:"otlp"`
}

// S3SSEConfig configures server-side encryption for S3-backed storage.
type S3SSEConfig struct {
	Mode     string `yaml:"mode"`
	KMSKeyID string `yaml:"kms_key_id"`
}

// S3Config configures an S3-compatible object store (used both for the
// trace-sink backend and as a generic ObjectStore).
type S3Config struct {
	Endpoint              string      `yaml:"endpoint"`
	Region                string      `yaml:"region"`
	Bucket                string      `yaml:"bucket"`
	Prefix                string      `yaml:"prefix"`
	AccessKey             string      `yaml:"access_key"`
	SecretKey             string      `yaml:"secret_key"`
	UsePathStyle          bool        `yaml:"use_path_style"`
	TLSInsecureSkipVerify bool        `yaml:"tls_insecure_skip_verify"`
	SSE                   S3SSEConfig `yaml:"sse"`
}

// KafkaConfig configures the distributed work queue's Kafka transport.
type KafkaConfig struct {
	Brokers       string `yaml:"brokers"`
	TaskTopic     string `yaml:"task_topic"`
	ResponseTopic string `yaml:"response_topic"`
	GroupID       string `yaml:"group_id"`
}

// RedisConfig configures the work queue's dedupe store.
type RedisConfig struct {
	Addr             string `yaml:"addr"`
	DedupeTTLSeconds int    `yaml:"dedupe_ttl_seconds"`
}

// PostgresConfig configures the Postgres-backed trace sink.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// TraceConfig selects and configures the record_search:io_format backend.
type TraceConfig struct {
	Format string `yaml:"format"` // csv | postgres | s3
	Path   string `yaml:"path"`   // csv output path
	RunID  string `yaml:"run_id"` // postgres/s3 key namespace
	S3Key  string `yaml:"s3_key"`
}

// SearchConfig carries the default parameter bounds, compressor selection,
// and strategy-tree options that seed a run when not overridden by the
// caller.
type SearchConfig struct {
	CompressorName string         `yaml:"compressor_name"`
	Options        map[string]any `yaml:"options"`
	WorkerCount    int            `yaml:"worker_count"`
	Distributed    bool           `yaml:"distributed"`
}

// Config is the top-level tunecore host configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`
	LogPath  string `yaml:"log_path"`

	Obs      ObsConfig      `yaml:"obs"`
	S3       S3Config       `yaml:"s3"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Trace    TraceConfig    `yaml:"trace"`
	Search   SearchConfig   `yaml:"search"`
}
