package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

// Load reads configuration in layers: a .env file
// (if present) is overlaid onto the process environment, environment
// variables are read first, an optional YAML file fills in anything still
// unset, then defaults are applied.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{}

	cfg.LogLevel = strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	cfg.LogPath = strings.TrimSpace(os.Getenv("LOG_PATH"))

	cfg.Obs.ServiceName = strings.TrimSpace(os.Getenv("OTEL_SERVICE_NAME"))
	cfg.Obs.ServiceVersion = strings.TrimSpace(os.Getenv("SERVICE_VERSION"))
	cfg.Obs.Environment = strings.TrimSpace(os.Getenv("ENVIRONMENT"))
	cfg.Obs.OTLP = strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))

	cfg.S3.Endpoint = strings.TrimSpace(os.Getenv("TUNECORE_S3_ENDPOINT"))
	cfg.S3.Region = strings.TrimSpace(os.Getenv("TUNECORE_S3_REGION"))
	cfg.S3.Bucket = strings.TrimSpace(os.Getenv("TUNECORE_S3_BUCKET"))
	cfg.S3.Prefix = strings.TrimSpace(os.Getenv("TUNECORE_S3_PREFIX"))
	cfg.S3.AccessKey = strings.TrimSpace(os.Getenv("TUNECORE_S3_ACCESS_KEY"))
	cfg.S3.SecretKey = strings.TrimSpace(os.Getenv("TUNECORE_S3_SECRET_KEY"))
	if v := strings.TrimSpace(os.Getenv("TUNECORE_S3_USE_PATH_STYLE")); v != "" {
		cfg.S3.UsePathStyle = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv("TUNECORE_S3_SSE_MODE")); v != "" {
		cfg.S3.SSE.Mode = v
	}

	cfg.Kafka.Brokers = firstNonEmpty(os.Getenv("KAFKA_BROKERS"), os.Getenv("KAFKA_BOOTSTRAP_SERVERS"))
	cfg.Kafka.TaskTopic = strings.TrimSpace(os.Getenv("TUNECORE_KAFKA_TASK_TOPIC"))
	cfg.Kafka.ResponseTopic = strings.TrimSpace(os.Getenv("TUNECORE_KAFKA_RESPONSE_TOPIC"))
	cfg.Kafka.GroupID = strings.TrimSpace(os.Getenv("TUNECORE_KAFKA_GROUP_ID"))

	cfg.Redis.Addr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if v := strings.TrimSpace(os.Getenv("TUNECORE_DEDUPE_TTL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DedupeTTLSeconds = n
		}
	}

	cfg.Postgres.DSN = firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("POSTGRES_DSN"))

	cfg.Trace.Format = strings.TrimSpace(os.Getenv("TUNECORE_TRACE_FORMAT"))
	cfg.Trace.Path = strings.TrimSpace(os.Getenv("TUNECORE_TRACE_PATH"))
	cfg.Trace.RunID = strings.TrimSpace(os.Getenv("TUNECORE_TRACE_RUN_ID"))
	cfg.Trace.S3Key = strings.TrimSpace(os.Getenv("TUNECORE_TRACE_S3_KEY"))

	cfg.Search.CompressorName = strings.TrimSpace(os.Getenv("TUNECORE_COMPRESSOR"))
	if v := strings.TrimSpace(os.Getenv("TUNECORE_WORKER_COUNT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.WorkerCount = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("TUNECORE_DISTRIBUTED")); v != "" {
		cfg.Search.Distributed = truthy(v)
	}

	if err := loadYAML(&cfg); err != nil {
		return Config{}, err
	}

	applyDefaults(&cfg)
	return cfg, nil
}

// loadYAML fills in anything still unset from a YAML file, located via
// TUNECORE_CONFIG or the conventional tunecore.yaml/tunecore.yml names. Absent
// is not an error: YAML is optional.
func loadYAML(cfg *Config) error {
	var paths []string
	if p := strings.TrimSpace(os.Getenv("TUNECORE_CONFIG")); p != "" {
		paths = append(paths, p)
	}
	paths = append(paths, "tunecore.yaml", "tunecore.yml")

	var data []byte
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data = b
			break
		}
		if os.IsNotExist(err) {
			continue
		}
		return fmt.Errorf("read %s: %w", p, err)
	}
	if len(data) == 0 {
		return nil
	}

	var fromYAML Config
	if err := yaml.Unmarshal(data, &fromYAML); err != nil {
		return fmt.Errorf("parse yaml config: %w", err)
	}
	mergeEmpty(cfg, &fromYAML)
	return nil
}

// mergeEmpty copies any field in from that is still zero-valued in cfg.
// Environment variables always win over YAML: env first, YAML fills gaps.
func mergeEmpty(cfg, from *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = from.LogLevel
	}
	if cfg.LogPath == "" {
		cfg.LogPath = from.LogPath
	}
	if cfg.Obs == (ObsConfig{}) {
		cfg.Obs = from.Obs
	}
	if cfg.S3 == (S3Config{}) {
		cfg.S3 = from.S3
	}
	if cfg.Kafka == (KafkaConfig{}) {
		cfg.Kafka = from.Kafka
	}
	if cfg.Redis == (RedisConfig{}) {
		cfg.Redis = from.Redis
	}
	if cfg.Postgres == (PostgresConfig{}) {
		cfg.Postgres = from.Postgres
	}
	if cfg.Trace == (TraceConfig{}) {
		cfg.Trace = from.Trace
	}
	if cfg.Search.CompressorName == "" && cfg.Search.WorkerCount == 0 && len(cfg.Search.Options) == 0 {
		cfg.Search = from.Search
	}
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Obs.ServiceName == "" {
		cfg.Obs.ServiceName = "tunecore"
	}
	if cfg.Obs.Environment == "" {
		cfg.Obs.Environment = "dev"
	}
	if cfg.Kafka.Brokers == "" {
		cfg.Kafka.Brokers = "localhost:9092"
	}
	if cfg.Kafka.TaskTopic == "" {
		cfg.Kafka.TaskTopic = "tunecore.search.tasks"
	}
	if cfg.Kafka.ResponseTopic == "" {
		cfg.Kafka.ResponseTopic = "tunecore.search.responses"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "tunecore-worker"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.DedupeTTLSeconds <= 0 {
		cfg.Redis.DedupeTTLSeconds = 3600
	}
	if cfg.Trace.Format == "" {
		cfg.Trace.Format = "csv"
	}
	if cfg.Trace.Path == "" {
		cfg.Trace.Path = "tunecore_trace.csv"
	}
	if cfg.Search.WorkerCount <= 0 {
		cfg.Search.WorkerCount = 1
	}
	if cfg.S3.Region == "" {
		cfg.S3.Region = "us-east-1"
	}
	if cfg.S3.SSE.Mode == "" {
		cfg.S3.SSE.Mode = "none"
	}
}

func truthy(v string) bool {
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
