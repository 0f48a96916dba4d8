// Command pharma-indexd watches the shard-publish feed and keeps the
// conformer metadata snapshot used by the weight/rotatable-bond pre-filter
// up to date, so newly-built shards become searchable without a restart of
// any pharma-search process. It also records shard publication in the
// PostgreSQL catalog.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkoes-labs/pharmsearch/internal/config"
	"github.com/dkoes-labs/pharmsearch/internal/infrastructure/database/postgres"
	"github.com/dkoes-labs/pharmsearch/internal/infrastructure/messaging/kafka"
	"github.com/dkoes-labs/pharmsearch/internal/infrastructure/monitoring/logging"
	"github.com/dkoes-labs/pharmsearch/internal/infrastructure/search/opensearch"
	"github.com/dkoes-labs/pharmsearch/internal/metafilter"
)

const refreshInterval = 5 * time.Minute

func main() {
	configPath := flag.String("config", "", "path to config file (defaults applied if omitted)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:            cfg.Log.Level,
		Format:           cfg.Log.Format,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := postgres.NewConnectionPool(cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to postgres", logging.Err(err))
	}
	defer pool.Close()
	catalog := postgres.NewCatalogRepository(pool)

	osClient, err := opensearch.NewClient(cfg.OpenSearch, logger)
	if err != nil {
		logger.Fatal("failed to connect to opensearch", logging.Err(err))
	}
	searcher := opensearch.NewSearcher(osClient, opensearch.SearcherConfig{}, logger)
	metaIndex := metafilter.NewIndex(searcher, cfg.OpenSearch.IndexPrefix+"conformer-metadata", logger, nil)

	if err := metaIndex.Refresh(ctx); err != nil {
		logger.Warn("initial metadata refresh failed", logging.Err(err))
	}

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:         cfg.Kafka.Brokers,
		GroupID:         cfg.Kafka.GroupID,
		Topics:          []string{shardPublishTopic(cfg.Kafka)},
		AutoOffsetReset: cfg.Kafka.AutoOffsetReset,
	}, logger)
	if err != nil {
		logger.Fatal("failed to construct kafka consumer", logging.Err(err))
	}
	defer consumer.Close()

	topic := shardPublishTopic(cfg.Kafka)
	handler := newShardPublishedHandler(catalog, metaIndex, logger)
	if err := consumer.Subscribe(topic, handler); err != nil {
		logger.Fatal("failed to subscribe to shard-publish topic", logging.Err(err))
	}
	if err := consumer.Start(ctx); err != nil {
		logger.Fatal("failed to start kafka consumer", logging.Err(err))
	}

	go periodicRefresh(ctx, metaIndex, logger)

	logger.Info("pharma-indexd started", logging.String("topic", topic))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("pharma-indexd shutting down")
	cancel()
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := &config.Config{}
		config.ApplyDefaults(cfg)
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

func shardPublishTopic(cfg config.KafkaConfig) string {
	if cfg.ShardPublishTopic != "" {
		return cfg.ShardPublishTopic
	}
	return kafka.DefaultShardPublishTopic
}

// newShardPublishedHandler builds the MessageHandler that registers a newly
// published shard in the catalog and refreshes the metadata snapshot so the
// shard's molecules are immediately subject to the weight/rotatable-bond
// pre-filter.
func newShardPublishedHandler(catalog *postgres.CatalogRepository, metaIndex *metafilter.Index, logger logging.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg *kafka.Message) error {
		return handleShardPublished(ctx, msg, catalog, metaIndex, logger)
	}
}

func decodeEnvelope(data []byte) (*kafka.EventEnvelope, error) {
	var envelope kafka.EventEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}
	return &envelope, nil
}

func handleShardPublished(ctx context.Context, msg *kafka.Message, catalog *postgres.CatalogRepository, metaIndex *metafilter.Index, logger logging.Logger) error {
	var payload kafka.ShardPublishedPayload
	envelope, err := decodeEnvelope(msg.Value)
	if err != nil {
		logger.Warn("skipping unparsable shard-publish message", logging.Err(err))
		return nil
	}
	if err := envelope.DecodePayload(&payload); err != nil {
		logger.Warn("skipping shard-publish message with unparsable payload", logging.Err(err))
		return nil
	}

	if err := catalog.RegisterShard(ctx, postgres.ShardRecord{
		DBID:           payload.DBID,
		NumDBs:         payload.NumDBs,
		IndexObjectKey: payload.IndexObjectKey,
		MoleculeCount:  payload.MoleculeCount,
		Published:      true,
	}); err != nil {
		return err
	}

	logger.Info("shard published",
		logging.Int("db_id", int(payload.DBID)),
		logging.Int("molecule_count", int(payload.MoleculeCount)),
	)

	if err := metaIndex.Refresh(ctx); err != nil {
		logger.Warn("metadata refresh after shard publish failed", logging.Err(err))
	}
	return nil
}

func periodicRefresh(ctx context.Context, metaIndex *metafilter.Index, logger logging.Logger) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := metaIndex.Refresh(ctx); err != nil {
				logger.Warn("periodic metadata refresh failed", logging.Err(err))
			}
		}
	}
}
