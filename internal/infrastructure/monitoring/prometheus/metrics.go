package prometheus

import (
	"time"
)

// PipelineMetrics holds all metrics emitted by the search pipeline and its
// supporting infrastructure adapters.
type PipelineMetrics struct {
	// Pipeline queues (Q1 aggregator->corresponders, Q2 corresponders->ranker)
	QueueDepth        GaugeVec
	QueueEnqueuedTotal CounterVec
	QueueDroppedTotal CounterVec

	// Throughput
	TripletMatchesTotal CounterVec
	ResultsEmittedTotal CounterVec
	QueriesTotal        CounterVec
	QueryDuration       HistogramVec

	// Shard scan / index
	ShardScanDuration  HistogramVec
	ShardOpenTotal     CounterVec
	ShardRecordsScanned CounterVec
	ShardCorruptRecords CounterVec

	// Correspondence / alignment (C4/C5)
	CorrespondencesGenerated CounterVec
	AlignmentsAttempted      CounterVec
	AlignmentsAccepted       CounterVec
	AlignmentDuration        HistogramVec

	// Worker pool
	ActiveCorresponderWorkers GaugeVec
	WorkerTaskDuration        HistogramVec

	// Pre-filter / metadata-filter cache
	CacheHitsTotal   CounterVec
	CacheMissesTotal CounterVec
	CacheHitRatio    GaugeVec

	// Infrastructure
	DBConnectionPoolActive GaugeVec
	DBQueryDuration        HistogramVec
	MessageQueueDepth      GaugeVec
	StorageOpDuration      HistogramVec
	GraphQueryDuration     HistogramVec

	// System health
	ServiceUptime     GaugeVec
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

// Default Buckets
var (
	DefaultQueryDurationBuckets  = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	DefaultShardScanBuckets      = []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5}
	DefaultAlignmentBuckets      = []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05}
	DefaultDBDurationBuckets     = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
	DefaultStorageOpBuckets      = []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10}
)

// NewPipelineMetrics registers all pipeline metrics and returns the struct
// that pipeline stages and infrastructure adapters record against.
func NewPipelineMetrics(collector MetricsCollector) *PipelineMetrics {
	m := &PipelineMetrics{}

	m.QueueDepth = collector.RegisterGauge("queue_depth", "Current depth of a pipeline queue", "queue", "shard_id")
	m.QueueEnqueuedTotal = collector.RegisterCounter("queue_enqueued_total", "Items enqueued onto a pipeline queue", "queue", "shard_id")
	m.QueueDroppedTotal = collector.RegisterCounter("queue_dropped_total", "Items dropped from a pipeline queue on early stop", "queue", "shard_id")

	m.TripletMatchesTotal = collector.RegisterCounter("triplet_matches_total", "Triplet matches found per shard", "shard_id")
	m.ResultsEmittedTotal = collector.RegisterCounter("results_emitted_total", "Final ranked results emitted", "shard_id")
	m.QueriesTotal = collector.RegisterCounter("queries_total", "Queries executed", "status")
	m.QueryDuration = collector.RegisterHistogram("query_duration_seconds", "End-to-end query duration", DefaultQueryDurationBuckets, "status")

	m.ShardScanDuration = collector.RegisterHistogram("shard_scan_duration_seconds", "Triplet index scan duration per shard", DefaultShardScanBuckets, "shard_id")
	m.ShardOpenTotal = collector.RegisterCounter("shard_open_total", "Shard index files opened", "shard_id", "status")
	m.ShardRecordsScanned = collector.RegisterCounter("shard_records_scanned_total", "Triplet index records scanned", "shard_id")
	m.ShardCorruptRecords = collector.RegisterCounter("shard_corrupt_records_total", "Triplet index records skipped for failing a range/ordering check", "shard_id")

	m.CorrespondencesGenerated = collector.RegisterCounter("correspondences_generated_total", "Point correspondences generated by C4", "shard_id")
	m.AlignmentsAttempted = collector.RegisterCounter("alignments_attempted_total", "Kabsch alignments attempted by C5", "shard_id")
	m.AlignmentsAccepted = collector.RegisterCounter("alignments_accepted_total", "Kabsch alignments passing the RMSD threshold", "shard_id")
	m.AlignmentDuration = collector.RegisterHistogram("alignment_duration_seconds", "Kabsch alignment duration", DefaultAlignmentBuckets, "shard_id")

	m.ActiveCorresponderWorkers = collector.RegisterGauge("active_corresponder_workers", "Corresponder workers currently processing a shard", "shard_id")
	m.WorkerTaskDuration = collector.RegisterHistogram("worker_task_duration_seconds", "Corresponder worker task duration", DefaultAlignmentBuckets, "shard_id")

	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Pre-filter/metadata-filter cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Pre-filter/metadata-filter cache misses", "cache")
	m.CacheHitRatio = collector.RegisterGauge("cache_hit_ratio", "Rolling cache hit ratio", "cache")

	m.DBConnectionPoolActive = collector.RegisterGauge("db_pool_active", "Shard catalog database active connections", "db")
	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Shard catalog query duration", DefaultDBDurationBuckets, "db", "operation")
	m.MessageQueueDepth = collector.RegisterGauge("mq_depth", "Kafka consumer lag for the shard-published topic", "topic")
	m.StorageOpDuration = collector.RegisterHistogram("storage_op_duration_seconds", "Object storage operation duration", DefaultStorageOpBuckets, "operation")
	m.GraphQueryDuration = collector.RegisterHistogram("graph_query_duration_seconds", "Scaffold graph query duration", DefaultDBDurationBuckets, "operation")

	m.ServiceUptime = collector.RegisterGauge("service_uptime_seconds", "Service uptime", "service")
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type")

	return m
}

// Helpers

// RecordQuery records the outcome and duration of one end-to-end search.
func RecordQuery(metrics *PipelineMetrics, status string, duration time.Duration) {
	metrics.QueriesTotal.WithLabelValues(status).Inc()
	metrics.QueryDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordShardScan records a shard's triplet-index scan.
func RecordShardScan(metrics *PipelineMetrics, shardID string, duration time.Duration, recordsScanned, corruptRecords int64) {
	metrics.ShardScanDuration.WithLabelValues(shardID).Observe(duration.Seconds())
	metrics.ShardRecordsScanned.WithLabelValues(shardID).Add(float64(recordsScanned))
	if corruptRecords > 0 {
		metrics.ShardCorruptRecords.WithLabelValues(shardID).Add(float64(corruptRecords))
	}
}

// RecordAlignment records one C5 Kabsch alignment attempt.
func RecordAlignment(metrics *PipelineMetrics, shardID string, accepted bool, duration time.Duration) {
	metrics.AlignmentsAttempted.WithLabelValues(shardID).Inc()
	if accepted {
		metrics.AlignmentsAccepted.WithLabelValues(shardID).Inc()
	}
	metrics.AlignmentDuration.WithLabelValues(shardID).Observe(duration.Seconds())
}

// RecordCacheAccess records a pre-filter/metadata-filter cache lookup on the
// hit or miss counter. It does not set CacheHitRatio; no helper sets it.
func RecordCacheAccess(metrics *PipelineMetrics, cache string, hit bool) {
	if hit {
		metrics.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

// RecordDBQuery records a shard-catalog database query.
func RecordDBQuery(metrics *PipelineMetrics, db, operation string, duration time.Duration, err error) {
	metrics.DBQueryDuration.WithLabelValues(db, operation).Observe(duration.Seconds())
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues(db, "query_error").Inc()
	}
}

// RecordStorageOp records a MinIO object-storage operation.
func RecordStorageOp(metrics *PipelineMetrics, operation string, duration time.Duration, err error) {
	metrics.StorageOpDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("storage", "op_error").Inc()
	}
}

// RecordError increments the errors counter for a component.
func RecordError(metrics *PipelineMetrics, component, errorType string) {
	metrics.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
