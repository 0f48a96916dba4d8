// Package aggregator implements the TripletMatchAggregator (C3): for a
// single query, it walks the index for each of the query's triangles (one
// per slot), collects per-conformer candidate matches via a streaming
// k-way merge across the slots' sorted candidate lists, and emits a
// TripletMatch for every conformer that has at least one candidate in every
// slot.
package aggregator

import (
	"sort"

	"github.com/dkoes-labs/pharmsearch/internal/index"
	"github.com/dkoes-labs/pharmsearch/internal/triplet"
	"github.com/dkoes-labs/pharmsearch/pkg/types/pharma"
)

// CoordStep is the fixed-point quantization step used for reduced molecule
// coordinates, matching the distance-encoding step (§3 data model).
const CoordStep = triplet.DistanceStep

func dequantize(v int16) float64 {
	return float64(v) * CoordStep
}

// slotCandidates is one slot's merged, conformer-location-sorted candidate
// list, gathered across all of the slot's up-to-6 orderings.
type slotCandidates struct {
	entries []pharma.TripletMatchInfo
	locs    []uint64 // parallel to entries, the conformer location each came from
}

// gatherSlot queries the index for every ordering in a slot and merges the
// results into one location-sorted candidate list. An index error aborts the
// whole gather rather than being treated as "no candidates": a missing table
// is already filtered out by ix.Query (nil, nil), so any error reaching here
// is a genuine read failure (including an aborted, unsupported-version
// table) that the caller must not silently mask as zero matches.
func gatherSlot(ix *index.Index, slot []pharma.QueryTriplet, delta float64) (slotCandidates, error) {
	var sc slotCandidates
	deltaSteps := triplet.ToleranceSteps(delta)

	for orderIdx, qt := range slot {
		key := triplet.KeyForTriplet(qt)
		s, m, l := triplet.CanonicalDistances(qt)
		recs, err := ix.Query(key,
			triplet.EncodeDistance(s), triplet.EncodeDistance(m), triplet.EncodeDistance(l),
			deltaSteps)
		if err != nil {
			return slotCandidates{}, err
		}
		if len(recs) == 0 {
			continue
		}
		for _, r := range recs {
			info := pharma.TripletMatchInfo{
				WhichTripOrder: uint8(orderIdx),
				Indices:        r.PIdx,
			}
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					info.Coords[i][j] = dequantize(r.ReducedXYZ[i][j])
				}
			}
			sc.entries = append(sc.entries, info)
			sc.locs = append(sc.locs, r.MolLoc)
		}
	}

	sort.Sort(&sc)
	return sc, nil
}

// Len, Less, Swap implement sort.Interface over (locs, entries) in parallel.
func (sc *slotCandidates) Len() int           { return len(sc.locs) }
func (sc *slotCandidates) Less(i, j int) bool { return sc.locs[i] < sc.locs[j] }
func (sc *slotCandidates) Swap(i, j int) {
	sc.locs[i], sc.locs[j] = sc.locs[j], sc.locs[i]
	sc.entries[i], sc.entries[j] = sc.entries[j], sc.entries[i]
}

// Aggregate walks every slot of the query's generated triangles and, for
// every conformer location that has at least one candidate in every slot,
// hands the merged TripletMatch to push as soon as it is produced — it does
// not materialize the whole result set before returning. This is what gives
// Q1's bounded capacity (§5) teeth as backpressure: push blocks the merge
// loop itself while the queue is full, so the aggregator's progress through
// the scan is bounded by how fast the corresponder workers drain Q1, not by
// how much of the shard it has already matched. Tolerance delta (angstroms)
// bounds each slot's range query. The stop flag, if non-nil and set, aborts
// early. An index error (including an aborted, unsupported-version table)
// aborts the whole aggregation and is returned to the caller.
func Aggregate(ix *index.Index, slots [][]pharma.QueryTriplet, delta float64, stop func() bool, push func(*pharma.TripletMatch) error) error {
	s := len(slots)
	lists := make([]slotCandidates, s)
	for i, slot := range slots {
		if stop != nil && stop() {
			return nil
		}
		sc, err := gatherSlot(ix, slot, delta)
		if err != nil {
			return err
		}
		lists[i] = sc
	}

	cursors := make([]int, s)

	for {
		if stop != nil && stop() {
			return nil
		}
		// Find the minimum conformer location across all non-exhausted slots.
		var min uint64
		found := false
		for i := 0; i < s; i++ {
			if cursors[i] >= len(lists[i].locs) {
				continue
			}
			loc := lists[i].locs[cursors[i]]
			if !found || loc < min {
				min = loc
				found = true
			}
		}
		if !found {
			return nil
		}

		match := pharma.TripletMatch{ConformerLocation: min, Matches: make([][]pharma.TripletMatchInfo, s)}
		allPresent := true
		for i := 0; i < s; i++ {
			for cursors[i] < len(lists[i].locs) && lists[i].locs[cursors[i]] == min {
				match.Matches[i] = append(match.Matches[i], lists[i].entries[cursors[i]])
				cursors[i]++
			}
			if len(match.Matches[i]) == 0 {
				allPresent = false
			}
		}
		if allPresent {
			if err := push(&match); err != nil {
				return err
			}
		}
	}
}
