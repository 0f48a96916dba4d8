// Package correspond implements the correspondence generator (C4): the
// combinatorial core that, for each TripletMatch handed to it by the
// aggregator, enumerates every legal one-to-one query-point -> molecule-point
// binding by depth-first backtracking over the query's slots, and for each
// complete binding invokes the alignment filter (C5) to decide whether it
// becomes a result.
package correspond

import (
	"github.com/dkoes-labs/pharmsearch/internal/align"
	"github.com/dkoes-labs/pharmsearch/internal/concurrency"
	"github.com/dkoes-labs/pharmsearch/pkg/types/pharma"
)

// Worker processes one shard's stream of TripletMatches, pushing accepted
// CorrespondenceResults onto a shared result queue. A Worker is not safe for
// concurrent use; run N of them, one per goroutine, over a shared input
// queue to get N-way fan-out (§5).
type Worker struct {
	numQueryPoints int
	triplets       [][]pharma.QueryTriplet
	params         pharma.QueryParameters
	dbID, numDBs   uint32

	arena   *concurrency.Arena
	shard   *concurrency.ShardHandle
	resultQ *concurrency.Queue[*pharma.CorrespondenceResult]
	stop    *concurrency.StopFlag

	// per-match scratch state, reset at the start of every Process call.
	tm          *pharma.TripletMatch
	cor         pharma.Correspondence
	queryCoords [][3]float64
	molCoords   [][3]float64
	weights     []float64
	thisConfCnt uint32

	processedCnt, matchedCnt int
}

// NewWorker constructs a Worker for one shard. triplets is the query's
// per-slot triangle orderings (as produced by internal/triplet.GenerateSlots);
// numQueryPoints is the query's point count, used to size the correspondence.
func NewWorker(
	numQueryPoints int,
	triplets [][]pharma.QueryTriplet,
	params pharma.QueryParameters,
	dbID, numDBs uint32,
	arena *concurrency.Arena,
	shard *concurrency.ShardHandle,
	resultQ *concurrency.Queue[*pharma.CorrespondenceResult],
	stop *concurrency.StopFlag,
) *Worker {
	return &Worker{
		numQueryPoints: numQueryPoints,
		triplets:       triplets,
		params:         params,
		dbID:           dbID,
		numDBs:         numDBs,
		arena:          arena,
		shard:          shard,
		resultQ:        resultQ,
		stop:           stop,
	}
}

// Run drains inQ until it reports EOF, calling Process for every
// TripletMatch, then removes itself as a producer of resultQ so downstream
// consumers see EOF once every worker has exited. A Worker is a consumer of
// inQ, not a producer, so it keeps draining to EOF even once the stop flag
// is set — abandoning inQ early would leave its other producer (the
// aggregator) and any sibling worker blocked on a full queue with nobody
// left to Pop. The stop flag is instead checked inside generate, at
// enumeration suspension points, so a set flag cuts each Process call short
// without dropping inQ itself.
func (w *Worker) Run(inQ *concurrency.Queue[*pharma.TripletMatch]) {
	defer w.resultQ.RemoveProducer()

	for {
		tm, ok := inQ.Pop()
		if !ok {
			return
		}
		w.Process(tm)
	}
}

// Process enumerates every legal correspondence for one TripletMatch,
// pushing an accepted CorrespondenceResult to the result queue for each.
func (w *Worker) Process(tm *pharma.TripletMatch) {
	w.tm = tm
	w.cor = pharma.NewCorrespondence(w.numQueryPoints)
	w.queryCoords = w.queryCoords[:0]
	w.molCoords = w.molCoords[:0]
	w.weights = w.weights[:0]
	w.thisConfCnt = 0
	w.processedCnt++

	if !w.generate(len(w.triplets)-1, Bitmask128{}) {
		// Early termination (orientation cap or stop flag): bookkeeping
		// stacks may be left non-empty if enumeration stopped mid-unwind;
		// clear them.
		w.queryCoords = w.queryCoords[:0]
		w.molCoords = w.molCoords[:0]
		w.weights = w.weights[:0]
	}
	if w.thisConfCnt > 0 {
		w.matchedCnt++
	}
}

// generate is the depth-first backtracking core. Invariant at entry: slots
// slot+1..S-1 have been consistently assigned and their coordinates pushed
// onto the parallel stacks; alreadyMatched has a bit set for every molecule
// point used by those assignments. Returns false to signal "stop all further
// enumeration for this conformer" (the orientation cap was hit, or the stop
// flag is set).
func (w *Worker) generate(slot int, alreadyMatched Bitmask128) bool {
	if w.stop.IsSet() {
		return false
	}

	if slot < 0 {
		return w.acceptBaseCase()
	}

	for _, info := range w.tm.Matches[slot] {
		trip := w.triplets[slot][info.WhichTripOrder]

		var newQPoints [3]int
		var newMPoints [3]uint8
		for i := range newQPoints {
			newQPoints[i] = -1
		}

		valid := true
		for p := 0; p < 3; p++ {
			qIdx := trip.Points[p].Index
			mIdx := info.Indices[p]

			cur := w.cor[qIdx]
			if cur == pharma.UnmatchedSlot {
				if alreadyMatched.Test(mIdx) {
					valid = false
					break
				}
				newQPoints[p] = qIdx
				newMPoints[p] = mIdx
			} else if uint8(cur) != mIdx {
				valid = false
				break
			}
		}
		if !valid {
			continue
		}

		var newBits Bitmask128
		pushed := 0
		for p := 0; p < 3; p++ {
			if newQPoints[p] < 0 {
				continue
			}
			qIdx := newQPoints[p]
			w.cor[qIdx] = int8(newMPoints[p])
			w.queryCoords = append(w.queryCoords, [3]float64{
				trip.Points[p].X, trip.Points[p].Y, trip.Points[p].Z,
			})
			w.molCoords = append(w.molCoords, info.Coords[p])
			w.weights = append(w.weights, trip.Points[p].Weight())
			newBits = newBits.Set(newMPoints[p])
			pushed++
		}

		cont := w.generate(slot-1, alreadyMatched.Union(newBits))

		for p := 0; p < 3; p++ {
			if newQPoints[p] < 0 {
				continue
			}
			w.cor[newQPoints[p]] = pharma.UnmatchedSlot
		}
		if pushed > 0 {
			w.queryCoords = w.queryCoords[:len(w.queryCoords)-pushed]
			w.molCoords = w.molCoords[:len(w.molCoords)-pushed]
			w.weights = w.weights[:len(w.weights)-pushed]
		}

		if !cont {
			return false
		}
	}

	return true
}

// acceptBaseCase runs the alignment filter over the parallel stacks' current
// full binding and, if accepted, allocates and pushes a CorrespondenceResult.
func (w *Worker) acceptBaseCase() bool {
	result, accepted, converged := align.Align(
		w.queryCoords, w.molCoords, w.weights, w.params.WeightingMode, w.params.MaxRMSD)
	if !converged || !accepted {
		return true
	}

	cr := w.arena.Alloc()
	cr.ConformerLocation = w.tm.ConformerLocation
	cr.DBID = w.dbID
	cr.NumDBs = w.numDBs
	cr.Correspondence = append(pharma.Correspondence(nil), w.cor...)
	cr.RMSDResult = result.RMSD
	cr.WeightedResidual = result.WeightedResidual

	w.resultQ.Push(cr)
	w.shard.NoteProduced()
	w.thisConfCnt++

	if w.params.OrientationsPerConf != 0 && w.thisConfCnt >= w.params.OrientationsPerConf {
		return false
	}
	return true
}
