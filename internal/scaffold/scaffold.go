// Package scaffold implements the optional scaffold-similarity clustering
// pass: a SimilarScaffold edge graph stored in Neo4j groups molecules whose
// core ring scaffold matches, so a finished, ranked hit list can be
// presented clustered by scaffold instead of as a flat list. This has no
// bearing on which hits are found or how they are ranked — it runs strictly
// after internal/rank.Ranker.Results, over an already-finished result set.
package scaffold

import (
	"context"

	neo4jdriver "github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/dkoes-labs/pharmsearch/internal/infrastructure/database/neo4j"
	"github.com/dkoes-labs/pharmsearch/internal/infrastructure/monitoring/logging"
	"github.com/dkoes-labs/pharmsearch/internal/infrastructure/monitoring/prometheus"
	"github.com/dkoes-labs/pharmsearch/pkg/errors"
	"github.com/dkoes-labs/pharmsearch/pkg/types/pharma"
)

// ScaffoldID identifies one scaffold node in the graph. Molecules are
// linked to a scaffold by an IN_SCAFFOLD edge, and two scaffolds are linked
// by a SIMILAR_TO edge carrying a similarity score, per the SimilarScaffold
// graph this package builds on.
type ScaffoldID string

// Cluster groups every hit whose molecule shares a scaffold. ClusterByScaffold
// returns clusters in the order their scaffold first appears in the input
// hits, and keeps each cluster's hits in input order.
type Cluster struct {
	ScaffoldID ScaffoldID
	Hits       []pharma.CorrespondenceResult
}

// GraphSession is the subset of *neo4j.Driver the clustering pass and the
// scaffold-graph writer need, narrowed to an interface so both can be
// exercised against a fake.
type GraphSession interface {
	ExecuteRead(ctx context.Context, work func(neo4j.Transaction) (interface{}, error)) (interface{}, error)
	ExecuteWrite(ctx context.Context, work func(neo4j.Transaction) (interface{}, error)) (interface{}, error)
}

// Grapher clusters a finished hit list by querying the scaffold graph for
// each hit's db_id.
type Grapher struct {
	driver  GraphSession
	logger  logging.Logger
	metrics *prometheus.PipelineMetrics
}

// New constructs a Grapher over an already-connected graph driver. metrics
// may be nil.
func New(driver GraphSession, logger logging.Logger, metrics *prometheus.PipelineMetrics) *Grapher {
	return &Grapher{driver: driver, logger: logger, metrics: metrics}
}

// ClusterByScaffold groups hits by their molecule's scaffold, querying the
// graph once per distinct db_id among the hits. A db_id with no IN_SCAFFOLD
// edge gets its own singleton cluster keyed by its own db_id, so every hit
// is returned exactly once regardless of graph coverage.
func (g *Grapher) ClusterByScaffold(ctx context.Context, hits []pharma.CorrespondenceResult) ([]Cluster, error) {
	scaffoldOf := make(map[uint32]ScaffoldID, len(hits))
	seen := make(map[uint32]bool)

	for _, h := range hits {
		if seen[h.DBID] {
			continue
		}
		seen[h.DBID] = true

		id, err := g.scaffoldForMolecule(ctx, h.DBID)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeGraphError, "scaffold: lookup failed")
		}
		scaffoldOf[h.DBID] = id
	}

	byScaffold := make(map[ScaffoldID][]pharma.CorrespondenceResult)
	order := make([]ScaffoldID, 0)
	for _, h := range hits {
		id := scaffoldOf[h.DBID]
		if _, ok := byScaffold[id]; !ok {
			order = append(order, id)
		}
		byScaffold[id] = append(byScaffold[id], h)
	}

	clusters := make([]Cluster, 0, len(order))
	for _, id := range order {
		clusters = append(clusters, Cluster{ScaffoldID: id, Hits: byScaffold[id]})
	}
	return clusters, nil
}

// scaffoldForMolecule returns the scaffold id a molecule belongs to, or a
// synthetic per-molecule id (so the molecule lands in its own singleton
// cluster) when the graph has no IN_SCAFFOLD edge for it.
func (g *Grapher) scaffoldForMolecule(ctx context.Context, dbID uint32) (ScaffoldID, error) {
	result, err := g.driver.ExecuteRead(ctx, func(tx neo4j.Transaction) (interface{}, error) {
		res, err := tx.Run(ctx, `
			MATCH (m:Molecule {db_id: $db_id})-[:IN_SCAFFOLD]->(s:Scaffold)
			RETURN s.scaffold_id AS scaffold_id
			LIMIT 1`, map[string]any{"db_id": int64(dbID)})
		if err != nil {
			return nil, err
		}
		return neo4j.ExtractSingleRecord(ctx, res, func(rec *neo4jdriver.Record) (string, error) {
			v, _ := rec.Get("scaffold_id")
			s, _ := v.(string)
			return s, nil
		})
	})
	if err != nil {
		// A missing IN_SCAFFOLD edge (ExtractSingleRecord's CodeNotFound,
		// wrapped by Driver.ExecuteRead as CodeGraphError) and a genuine
		// graph failure both land here and are handled alike. Clustering is a best-effort presentation pass over an
		// already-finished result set, so either way the molecule still
		// gets returned — alone, in its own cluster — rather than the
		// whole query failing.
		if g.logger != nil {
			g.logger.Warn("scaffold: lookup failed, clustering molecule alone", logging.Int("db_id", int(dbID)), logging.Err(err))
		}
		return syntheticScaffoldID(dbID), nil
	}
	id, _ := result.(string)
	if id == "" {
		return syntheticScaffoldID(dbID), nil
	}
	return ScaffoldID(id), nil
}

// syntheticScaffoldID manufactures a scaffold id for a molecule the graph
// has no record of, so it clusters alone rather than being dropped.
func syntheticScaffoldID(dbID uint32) ScaffoldID {
	return ScaffoldID("unclustered:" + itoa(dbID))
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	digits := ""
	for v > 0 {
		digits = string(rune('0'+v%10)) + digits
		v /= 10
	}
	return digits
}

// RegisterSimilarScaffold records a SIMILAR_TO edge between two scaffolds
// with a similarity score, used by the indexing side when building the
// scaffold graph alongside a shard build. Not consulted by
// ClusterByScaffold directly — it is here so the graph this package reads
// has a writer in the same package.
func (g *Grapher) RegisterSimilarScaffold(ctx context.Context, a, b ScaffoldID, similarity float64) error {
	_, err := g.driver.ExecuteWrite(ctx, func(tx neo4j.Transaction) (interface{}, error) {
		return nil, singleRun(ctx, tx, `
			MERGE (a:Scaffold {scaffold_id: $a})
			MERGE (b:Scaffold {scaffold_id: $b})
			MERGE (a)-[r:SIMILAR_TO]->(b)
			SET r.similarity = $similarity`, map[string]any{
			"a": string(a), "b": string(b), "similarity": similarity,
		})
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeGraphError, "scaffold: failed to register similar-scaffold edge")
	}
	return nil
}

func singleRun(ctx context.Context, tx neo4j.Transaction, cypher string, params map[string]any) error {
	_, err := tx.Run(ctx, cypher, params)
	return err
}
