// Package config defines all configuration structures for the pharmsearch
// search engine.  No I/O or parsing logic lives here — only plain data types
// and validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// QueryConfig holds the default tuning knobs applied to a query when the
// caller does not override them: the maxRMSD/weight/rotatable-bond windows,
// duplicate suppression, and result bounding described by the query
// parameters surface. These are the values intended for viper hot-reload, so
// an operator can retune orientationsPerConf without restarting a shard.
type QueryConfig struct {
	MaxRMSD             float64 `mapstructure:"max_rmsd"`
	MinWeight           float64 `mapstructure:"min_weight"`
	MaxWeight           float64 `mapstructure:"max_weight"`
	MinRotatableBonds   uint32  `mapstructure:"min_rotatable_bonds"`
	MaxRotatableBonds   uint32  `mapstructure:"max_rotatable_bonds"`
	ReduceConfs         uint32  `mapstructure:"reduce_confs"`
	OrientationsPerConf uint32  `mapstructure:"orientations_per_conf"`
	MaxHits             uint32  `mapstructure:"max_hits"`
	Sort                string  `mapstructure:"sort"`           // "none" | "rmsd"
	WeightingMode       string  `mapstructure:"weighting_mode"` // "unweighted" | "weighted"
}

// ShardConfig holds per-shard pipeline tunables: how many corresponder
// workers to run and how deep the inter-stage queues are.
type ShardConfig struct {
	Workers       int     `mapstructure:"workers"`
	Q1Capacity    int     `mapstructure:"q1_capacity"`
	Q2Capacity    int     `mapstructure:"q2_capacity"`
	TripletDelta  float64 `mapstructure:"triplet_delta"`
	IndexCacheDir string  `mapstructure:"index_cache_dir"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the shard
// catalog (which shards and point-type-triple tables exist, and where their
// index files live in object storage).
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// Neo4jConfig holds Neo4j connection parameters for the scaffold-similarity
// graph used by the optional post-search clustering pass.
type Neo4jConfig struct {
	URI                   string        `mapstructure:"uri"`
	User                  string        `mapstructure:"user"`
	Password              string        `mapstructure:"password"`
	MaxConnectionPoolSize int           `mapstructure:"max_connection_pool_size"`
	MaxConnectionLifetime time.Duration `mapstructure:"max_connection_lifetime"`
	ConnectionTimeout     time.Duration `mapstructure:"connection_timeout"`
	Database              string        `mapstructure:"database"`
}

// RedisConfig holds Redis connection parameters for the cache client and
// distributed lock in internal/infrastructure/database/redis.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds the shard-availability notification feed parameters: a
// watcher consumes the shard.published topic and refreshes the in-memory
// catalog snapshot used by the pipeline.
type KafkaConfig struct {
	Brokers           []string `mapstructure:"brokers"`
	GroupID           string   `mapstructure:"group_id"`
	AutoOffsetReset   string   `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	TimeoutMS         int      `mapstructure:"timeout_ms"`
	ProducerRetries   int      `mapstructure:"producer_retries"`
	BatchSize         int      `mapstructure:"batch_size"`
	AutoCreateTopics  bool     `mapstructure:"auto_create_topics"`
	ReplicationFactor int      `mapstructure:"replication_factor"`
	NumPartitions     int      `mapstructure:"num_partitions"`
	ShardPublishTopic string   `mapstructure:"shard_publish_topic"`
}

// OpenSearchConfig holds OpenSearch cluster parameters for the metadata
// pre-filter index (per-conformer weight/rotatable-bond/db_id metadata).
type OpenSearchConfig struct {
	Addresses           []string      `mapstructure:"addresses"`
	User                string        `mapstructure:"user"`
	Password            string        `mapstructure:"password"`
	InsecureSkipVerify  bool          `mapstructure:"insecure_skip_verify"`
	BulkBatchSize       int           `mapstructure:"bulk_batch_size"`
	ScrollSize          int           `mapstructure:"scroll_size"`
	IndexPrefix         string        `mapstructure:"index_prefix"`
	MaxRetries          int           `mapstructure:"max_retries"`
	RetryBackoff        time.Duration `mapstructure:"retry_backoff"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
}

// MilvusConfig holds Milvus vector-store parameters for the shape-similarity
// ANN pre-filter over shape descriptor embeddings.
type MilvusConfig struct {
	Addr               string        `mapstructure:"addr"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	DBName             string        `mapstructure:"db_name"`
	TLSEnabled         bool          `mapstructure:"tls_enabled"`
	TLSCertPath        string        `mapstructure:"tls_cert_path"`
	ConnectTimeout     time.Duration `mapstructure:"connect_timeout"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	EmbeddingDim       int           `mapstructure:"embedding_dim"`
	IndexType          string        `mapstructure:"index_type"`
	HNSWM              int           `mapstructure:"hnsw_m"`
	HNSWEfConstruction int           `mapstructure:"hnsw_ef_construction"`
	DefaultTopK        int           `mapstructure:"default_top_k"`
	CollectionPrefix   string        `mapstructure:"collection_prefix"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters used to
// fetch shard index files on demand into a local mmap cache.
type MinIOConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Bucket        string        `mapstructure:"bucket"`
	Region        string        `mapstructure:"region"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
	PartSize      int64         `mapstructure:"part_size"`
	MaxRetries    int           `mapstructure:"max_retries"`
	CacheDir      string        `mapstructure:"cache_dir"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string `mapstructure:"format"` // "json" | "console"
	Output           string `mapstructure:"output"`
	EnableCaller     bool   `mapstructure:"enable_caller"`
	EnableStacktrace bool   `mapstructure:"enable_stacktrace"`
	SamplingRate     int    `mapstructure:"sampling_rate"`
}

// MetricsConfig holds Prometheus exporter parameters.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure for the search engine. Every
// infrastructure component and the pipeline reads its settings from the
// relevant sub-struct.
type Config struct {
	Query      QueryConfig      `mapstructure:"query"`
	Shard      ShardConfig      `mapstructure:"shard"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Neo4j      Neo4jConfig      `mapstructure:"neo4j"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
	Milvus     MilvusConfig     `mapstructure:"milvus"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	// Query
	if c.Query.MaxRMSD <= 0 {
		return fmt.Errorf("config: query.max_rmsd must be > 0, got %f", c.Query.MaxRMSD)
	}
	switch c.Query.Sort {
	case "none", "rmsd":
	default:
		return fmt.Errorf("config: query.sort %q is invalid; expected none|rmsd", c.Query.Sort)
	}
	switch c.Query.WeightingMode {
	case "unweighted", "weighted":
	default:
		return fmt.Errorf("config: query.weighting_mode %q is invalid; expected unweighted|weighted", c.Query.WeightingMode)
	}

	// Shard
	if c.Shard.Workers < 1 {
		return fmt.Errorf("config: shard.workers must be ≥ 1, got %d", c.Shard.Workers)
	}

	// Database
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be ≥ 1, got %d", c.Database.MaxConns)
	}

	// Redis
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
	}

	// Kafka
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("config: kafka.group_id is required")
	}

	// Milvus
	if c.Milvus.Addr == "" {
		return fmt.Errorf("config: milvus.addr is required")
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
