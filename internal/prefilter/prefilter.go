// Package prefilter implements the shape-similarity ANN pre-filter: an
// optional collaborator, backed by a Milvus collection of shape descriptor
// embeddings, that can hand already-matched conformers straight to the
// ranker without going through triplet matching, correspondence search, or
// Kabsch alignment at all.
//
// This is not part of the exact pharmacophore-match core (modules C1-C6).
// A conformer whose shape descriptor is close enough to the query's in
// embedding space is injected with an identity correspondence and a
// zero-residual identity alignment, exactly as original_source's
// ShapeResults.h describes for a pre-matched shape hit: no per-point
// binding was computed, so none is claimed.
package prefilter

import (
	"context"
	"fmt"

	"github.com/dkoes-labs/pharmsearch/internal/infrastructure/monitoring/logging"
	"github.com/dkoes-labs/pharmsearch/internal/infrastructure/monitoring/prometheus"
	"github.com/dkoes-labs/pharmsearch/internal/infrastructure/search/milvus"
	"github.com/dkoes-labs/pharmsearch/internal/rank"
	"github.com/dkoes-labs/pharmsearch/pkg/errors"
	"github.com/dkoes-labs/pharmsearch/pkg/types/pharma"
)

// Config holds the ANN query shape for the shape descriptor collection.
type Config struct {
	CollectionName  string
	VectorFieldName string
	TopK            int
	MetricType      string
}

// DefaultConfig returns the Config matching milvus.ShapeDescriptorSchema's
// field names.
func DefaultConfig() Config {
	return Config{
		CollectionName:  "shape_descriptors",
		VectorFieldName: "shape_vector",
		TopK:            256,
		MetricType:      "COSINE",
	}
}

// ShapeSearcher is the subset of milvus.Searcher the pre-filter needs,
// narrowed to an interface so it can be exercised against a fake in tests
// without standing up a Milvus connection.
type ShapeSearcher interface {
	Search(ctx context.Context, req milvus.VectorSearchRequest) (*milvus.VectorSearchResult, error)
}

// Filter runs an ANN shape-similarity query and injects its hits into a
// Ranker with an identity alignment.
type Filter struct {
	searcher ShapeSearcher
	cfg      Config
	logger   logging.Logger
	metrics  *prometheus.PipelineMetrics
}

// New constructs a Filter over an already-connected Searcher. metrics may be
// nil, in which case cache-hit/miss accounting is skipped.
func New(searcher ShapeSearcher, cfg Config, logger logging.Logger, metrics *prometheus.PipelineMetrics) *Filter {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultConfig().TopK
	}
	if cfg.CollectionName == "" {
		cfg.CollectionName = DefaultConfig().CollectionName
	}
	if cfg.VectorFieldName == "" {
		cfg.VectorFieldName = DefaultConfig().VectorFieldName
	}
	return &Filter{searcher: searcher, cfg: cfg, logger: logger, metrics: metrics}
}

// Inject runs the ANN query for one query shape vector and feeds every hit
// to ranker.Accept as an identity-aligned CorrespondenceResult. numPoints is
// the query's point count P, used to size the identity (all-unmatched)
// Correspondence per ShapeResults.h. It returns how many injected hits the
// ranker actually retained.
func (f *Filter) Inject(ctx context.Context, queryVector []float32, numPoints int, numDBs uint32, ranker *rank.Ranker) (int, error) {
	if ranker == nil {
		return 0, errors.New(errors.CodeInvalidParam, "prefilter: ranker must not be nil")
	}

	result, err := f.searcher.Search(ctx, milvus.VectorSearchRequest{
		CollectionName:   f.cfg.CollectionName,
		VectorFieldName:  f.cfg.VectorFieldName,
		Vectors:          [][]float32{queryVector},
		TopK:             f.cfg.TopK,
		OutputFields:     []string{"db_id"},
		MetricType:       f.cfg.MetricType,
	})
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeSearchError, "prefilter: shape descriptor search failed")
	}
	if len(result.Results) == 0 {
		if f.metrics != nil {
			prometheus.RecordCacheAccess(f.metrics, "prefilter", false)
		}
		return 0, nil
	}

	hits := result.Results[0]
	if len(hits) == 0 {
		if f.metrics != nil {
			prometheus.RecordCacheAccess(f.metrics, "prefilter", false)
		}
		return 0, nil
	}

	accepted := 0
	for _, hit := range hits {
		dbID, ok := fieldUint32(hit.Fields, "db_id")
		if !ok {
			if f.logger != nil {
				f.logger.Warn("prefilter: ANN hit missing db_id, skipping", logging.Int64("conformer_location", hit.ID))
			}
			continue
		}

		cr := pharma.CorrespondenceResult{
			ConformerLocation: uint64(hit.ID),
			DBID:              dbID,
			NumDBs:            numDBs,
			Correspondence:    pharma.NewCorrespondence(numPoints),
			RMSDResult:        pharma.IdentityRMSDResult(),
			WeightedResidual:  0,
		}
		if ranker.Accept(cr) {
			accepted++
		}
		if f.metrics != nil {
			prometheus.RecordCacheAccess(f.metrics, "prefilter", true)
		}
	}

	return accepted, nil
}

// fieldUint32 extracts an integer-valued output field from a Milvus hit's
// field map, tolerating the handful of numeric types the SDK's column
// decoding can produce.
func fieldUint32(fields map[string]interface{}, key string) (uint32, bool) {
	v, ok := fields[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int32:
		return uint32(n), true
	case int64:
		return uint32(n), true
	case uint32:
		return n, true
	case uint64:
		return uint32(n), true
	case float32:
		return uint32(n), true
	case float64:
		return uint32(n), true
	default:
		return 0, false
	}
}

// String renders the filter's target collection for logging.
func (f *Filter) String() string {
	return fmt.Sprintf("prefilter(collection=%s, field=%s, top_k=%d)", f.cfg.CollectionName, f.cfg.VectorFieldName, f.cfg.TopK)
}
