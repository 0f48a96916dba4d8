// Package metafilter implements the per-conformer metadata pre-filter: an
// OpenSearch-backed index of molecular weight, rotatable-bond count, and
// db_id, kept in memory so a shard scan can be skipped entirely when none of
// its molecules could possibly pass C6's weight/rotatable-bond window, and
// so internal/rank's Ranker has a MetadataProvider to consult without
// touching the network on every CorrespondenceResult.
package metafilter

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dkoes-labs/pharmsearch/internal/infrastructure/monitoring/logging"
	"github.com/dkoes-labs/pharmsearch/internal/infrastructure/monitoring/prometheus"
	"github.com/dkoes-labs/pharmsearch/internal/infrastructure/search/opensearch"
	"github.com/dkoes-labs/pharmsearch/internal/rank"
	"github.com/dkoes-labs/pharmsearch/pkg/errors"
	"github.com/dkoes-labs/pharmsearch/pkg/types/pharma"
)

// record is the decoded shape of one document in the conformer metadata
// index, matching opensearch.ConformerMetadataMapping's field names.
type record struct {
	DBID            uint32  `json:"db_id"`
	ShardID         string  `json:"shard_id"`
	MolecularWeight float64 `json:"molecular_weight"`
	RotatableBonds  uint32  `json:"rotatable_bonds"`
}

// MetadataSearcher is the subset of opensearch.Searcher the pre-filter
// needs, narrowed to an interface so it can be exercised against a fake.
type MetadataSearcher interface {
	ScrollSearch(ctx context.Context, req opensearch.SearchRequest, batchHandler func(hits []opensearch.SearchHit) error) error
}

// Index holds an in-memory snapshot of the conformer metadata index,
// keyed by db_id (one row per distinct molecule, not per conformer — every
// conformer of a molecule shares the same weight and rotatable-bond count).
type Index struct {
	searcher  MetadataSearcher
	indexName string
	logger    logging.Logger
	metrics   *prometheus.PipelineMetrics

	mu    sync.RWMutex
	byDB  map[uint32]rank.MoleculeMetadata
}

// NewIndex constructs an Index over an already-connected Searcher. metrics
// may be nil.
func NewIndex(searcher MetadataSearcher, indexName string, logger logging.Logger, metrics *prometheus.PipelineMetrics) *Index {
	if indexName == "" {
		indexName = "conformer-metadata"
	}
	return &Index{
		searcher:  searcher,
		indexName: indexName,
		logger:    logger,
		metrics:   metrics,
		byDB:      make(map[uint32]rank.MoleculeMetadata),
	}
}

// Refresh scrolls the full conformer metadata index and replaces the
// in-memory snapshot. Safe to call from a long-running refresh loop driven
// by the shard-published Kafka feed; Metadata lookups against the old
// snapshot remain safe to call concurrently with a Refresh in progress.
func (ix *Index) Refresh(ctx context.Context) error {
	next := make(map[uint32]rank.MoleculeMetadata)

	err := ix.searcher.ScrollSearch(ctx, opensearch.SearchRequest{
		IndexName: ix.indexName,
	}, func(hits []opensearch.SearchHit) error {
		for _, hit := range hits {
			var rec record
			if err := json.Unmarshal(hit.Source, &rec); err != nil {
				if ix.logger != nil {
					ix.logger.Warn("metafilter: skipping unparsable document", logging.String("doc_id", hit.ID), logging.Err(err))
				}
				continue
			}
			next[rec.DBID] = rank.MoleculeMetadata{
				Weight:         rec.MolecularWeight,
				RotatableBonds: rec.RotatableBonds,
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeSearchError, "metafilter: refresh scroll failed")
	}

	ix.mu.Lock()
	ix.byDB = next
	ix.mu.Unlock()

	if ix.logger != nil {
		ix.logger.Info("metafilter: refreshed conformer metadata snapshot", logging.Int("molecule_count", len(next)))
	}
	return nil
}

// Metadata implements internal/rank.MetadataProvider against the in-memory
// snapshot.
func (ix *Index) Metadata(dbID uint32) (rank.MoleculeMetadata, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	meta, ok := ix.byDB[dbID]
	if ix.metrics != nil {
		prometheus.RecordCacheAccess(ix.metrics, "metafilter", ok)
	}
	return meta, ok
}

// CouldPassWindow reports whether at least one of dbIDs could satisfy
// params' weight/rotatable-bond window, so a shard scan naming only these
// db_ids can be skipped when it returns false. A db_id with no snapshot
// entry is treated as passing — an unknown molecule is never excluded on
// the strength of a stale or incomplete metadata snapshot.
func (ix *Index) CouldPassWindow(dbIDs []uint32, params pharma.QueryParameters) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	for _, dbID := range dbIDs {
		meta, ok := ix.byDB[dbID]
		if !ok {
			return true
		}
		if params.MinWeight > 0 && meta.Weight < params.MinWeight {
			continue
		}
		if params.MaxWeight > 0 && meta.Weight > params.MaxWeight {
			continue
		}
		if params.MinRot > 0 && meta.RotatableBonds < params.MinRot {
			continue
		}
		if params.MaxRot > 0 && meta.RotatableBonds > params.MaxRot {
			continue
		}
		return true
	}
	return false
}

// Len returns the number of molecules in the current snapshot.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byDB)
}

var _ rank.MetadataProvider = (*Index)(nil)
