// Package config provides configuration loading, defaults, and validation for
// the pharmsearch search engine.
package config

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultMaxRMSD             = 1.0
	DefaultOrientationsPerConf = 1
	DefaultSort                = "none"
	DefaultWeightingMode       = "weighted"

	DefaultShardWorkers      = 4
	DefaultQ1Capacity        = 64
	DefaultQ2Capacity        = 64
	DefaultTripletDelta      = 0.05
	DefaultIndexCacheDir     = "./cache/index"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "pharmsearch"
	DefaultDBMaxConns = 25

	DefaultRedisAddr = "localhost:6379"
	DefaultRedisDB   = 0

	DefaultKafkaBroker        = "localhost:9092"
	DefaultKafkaGroupID       = "pharmsearch-group"
	DefaultShardPublishTopic  = "shard.published"

	DefaultMilvusAddr = "localhost:19530"

	DefaultOpenSearchAddr = "https://localhost:9200"

	DefaultMinIOEndpoint = "localhost:9000"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsAddr = ":9090"
	DefaultMetricsPath = "/metrics"
)

// ─────────────────────────────────────────────────────────────────────────────
// ApplyDefaults fills zero-value fields in cfg with well-known defaults.
// It must be called after unmarshalling raw config data and before Validate()
// so that optional-but-defaulted fields are never seen as missing.
// ─────────────────────────────────────────────────────────────────────────────

// ApplyDefaults fills each zero-value field of cfg that has a platform
// default with that default; fields without one (credentials, user names)
// stay as they are.
// Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Query ─────────────────────────────────────────────────────────────────
	if cfg.Query.MaxRMSD == 0 {
		cfg.Query.MaxRMSD = DefaultMaxRMSD
	}
	if cfg.Query.OrientationsPerConf == 0 {
		cfg.Query.OrientationsPerConf = DefaultOrientationsPerConf
	}
	if cfg.Query.Sort == "" {
		cfg.Query.Sort = DefaultSort
	}
	if cfg.Query.WeightingMode == "" {
		cfg.Query.WeightingMode = DefaultWeightingMode
	}

	// ── Shard ─────────────────────────────────────────────────────────────────
	if cfg.Shard.Workers == 0 {
		cfg.Shard.Workers = DefaultShardWorkers
	}
	if cfg.Shard.Q1Capacity == 0 {
		cfg.Shard.Q1Capacity = DefaultQ1Capacity
	}
	if cfg.Shard.Q2Capacity == 0 {
		cfg.Shard.Q2Capacity = DefaultQ2Capacity
	}
	if cfg.Shard.TripletDelta == 0 {
		cfg.Shard.TripletDelta = DefaultTripletDelta
	}
	if cfg.Shard.IndexCacheDir == "" {
		cfg.Shard.IndexCacheDir = DefaultIndexCacheDir
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	// DB is an int; 0 is a valid explicit value so we cannot distinguish "not
	// set" from "set to 0". We leave it as-is (0 is also the default).

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}
	if cfg.Kafka.ShardPublishTopic == "" {
		cfg.Kafka.ShardPublishTopic = DefaultShardPublishTopic
	}

	// ── OpenSearch ────────────────────────────────────────────────────────────
	if len(cfg.OpenSearch.Addresses) == 0 {
		cfg.OpenSearch.Addresses = []string{DefaultOpenSearchAddr}
	}

	// ── Milvus ────────────────────────────────────────────────────────────────
	if cfg.Milvus.Addr == "" {
		cfg.Milvus.Addr = DefaultMilvusAddr
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = DefaultMetricsAddr
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
}
