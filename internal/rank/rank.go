// Package rank implements the result ranker and deduper (C6): the final
// stage of the search pipeline, consuming the Q₂ stream of
// CorrespondenceResults from every corresponder worker across every shard
// and applying the molecular-weight window, rotatable-bond window, spatial
// constraint check, per-molecule conformer cap, and bounded top-M retention.
package rank

import (
	"sort"

	"github.com/dkoes-labs/pharmsearch/pkg/types/pharma"
)

// MoleculeMetadata is the subset of a molecule's static properties the
// ranker's filter windows need. It says nothing about pharmacophore
// geometry — that is already folded into the CorrespondenceResult being
// ranked.
type MoleculeMetadata struct {
	Weight         float64
	RotatableBonds uint32
}

// MetadataProvider looks up a molecule's static metadata by database id.
// Implementations typically wrap internal/metafilter's OpenSearch-backed
// index or a local in-memory table for tests.
type MetadataProvider interface {
	Metadata(dbID uint32) (MoleculeMetadata, bool)
}

// ConstraintChecker applies a query's spatial include/exclude constraint to
// an aligned molecule. This is the Go analogue of original_source's PMol +
// Excluder collaboration: given the conformer's identity and the rigid
// transform that aligned it, decide whether the molecule's non-pharmacophore
// atoms respect every exclusion sphere and touch every inclusion sphere.
// The ranker treats this purely as an external collaborator — it has no
// access to raw atom coordinates itself.
type ConstraintChecker interface {
	Satisfies(conformerLocation uint64, dbID uint32, rmsd pharma.RMSDResult, constraint pharma.SpatialConstraint) bool
}

// NoConstraintChecker always reports satisfaction; used when a query carries
// no spatial constraint, so the ranker never needs to consult a collaborator.
type NoConstraintChecker struct{}

// Satisfies implements ConstraintChecker by always returning true.
func (NoConstraintChecker) Satisfies(uint64, uint32, pharma.RMSDResult, pharma.SpatialConstraint) bool {
	return true
}

// Ranker accumulates CorrespondenceResults, applying the query's filter
// windows and caps, and yields the final bounded, optionally-sorted hit
// list. Not safe for concurrent use — a pipeline feeds it from a single Q₂
// consumer goroutine.
type Ranker struct {
	params      pharma.QueryParameters
	metadata    MetadataProvider
	constraints ConstraintChecker

	perMoleculeConfs map[uint32]uint32
	hits             []pharma.CorrespondenceResult
}

// NewRanker constructs a Ranker for one query. metadata and constraints may
// be nil, in which case the weight/rotatable-bond window and spatial
// constraint checks are both skipped entirely.
func NewRanker(params pharma.QueryParameters, metadata MetadataProvider, constraints ConstraintChecker) *Ranker {
	if constraints == nil {
		constraints = NoConstraintChecker{}
	}
	return &Ranker{
		params:           params,
		metadata:         metadata,
		constraints:      constraints,
		perMoleculeConfs: make(map[uint32]uint32),
	}
}

// Accept applies every filter window and cap to one CorrespondenceResult,
// in the order molecular-weight window, rotatable-bond window, spatial
// constraint, per-molecule conformer cap, then bounded top-M retention.
// Returns true if the result was retained (it may later be evicted by a
// subsequent, better-ranked Accept call once the top-M cap is full).
func (r *Ranker) Accept(cr pharma.CorrespondenceResult) bool {
	if r.metadata != nil {
		meta, ok := r.metadata.Metadata(cr.DBID)
		if ok {
			if r.params.MinWeight > 0 && meta.Weight < r.params.MinWeight {
				return false
			}
			if r.params.MaxWeight > 0 && meta.Weight > r.params.MaxWeight {
				return false
			}
			if r.params.MinRot > 0 && meta.RotatableBonds < r.params.MinRot {
				return false
			}
			if r.params.MaxRot > 0 && meta.RotatableBonds > r.params.MaxRot {
				return false
			}
		}
	}

	if !r.constraints.Satisfies(cr.ConformerLocation, cr.DBID, cr.RMSDResult, r.params.Constraint) {
		return false
	}

	if r.params.ReduceConfs > 0 {
		count := r.perMoleculeConfs[cr.DBID]
		if count >= r.params.ReduceConfs {
			return false
		}
		r.perMoleculeConfs[cr.DBID] = count + 1
	}

	return r.insertBounded(cr)
}

// insertBounded maintains the top-M cap. With no cap (MaxHits == 0) every
// accepted result is kept. With a cap, once full, a new result only
// displaces the current worst-ranked one when sorting by RMSD; with no sort
// requested the cap instead simply stops accepting further results, since
// "worst" is undefined for arrival order.
func (r *Ranker) insertBounded(cr pharma.CorrespondenceResult) bool {
	if r.params.MaxHits == 0 || uint32(len(r.hits)) < r.params.MaxHits {
		r.hits = append(r.hits, cr)
		return true
	}

	if r.params.Sort != pharma.SortRMSD {
		return false
	}

	worstIdx := 0
	for i := 1; i < len(r.hits); i++ {
		if r.hits[i].RMSDResult.Value > r.hits[worstIdx].RMSDResult.Value {
			worstIdx = i
		}
	}
	if cr.RMSDResult.Value >= r.hits[worstIdx].RMSDResult.Value {
		return false
	}
	r.hits[worstIdx] = cr
	return true
}

// Results returns the final hit list, applying the query's optional sort.
// SortRMSD yields a stable ascending-RMSD order (ties keep their order in the
// retained list; a result that displaced the worst hit sits in that hit's
// slot, so after the cap is reached this is not always acceptance order);
// SortNone preserves arrival order untouched.
func (r *Ranker) Results() []pharma.CorrespondenceResult {
	out := make([]pharma.CorrespondenceResult, len(r.hits))
	copy(out, r.hits)
	if r.params.Sort == pharma.SortRMSD {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].RMSDResult.Value < out[j].RMSDResult.Value
		})
	}
	return out
}
