// Package pipeline wires together the search stages — index (C2), the
// triplet match aggregator (C3), N corresponder+aligner workers (C4+C5), and
// the result ranker (C6) — into the end-to-end flow described in the
// concurrency model: Index -> Aggregator -> Q1 -> N workers -> Q2 -> Ranker.
package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dkoes-labs/pharmsearch/internal/aggregator"
	"github.com/dkoes-labs/pharmsearch/internal/concurrency"
	"github.com/dkoes-labs/pharmsearch/internal/correspond"
	"github.com/dkoes-labs/pharmsearch/internal/index"
	"github.com/dkoes-labs/pharmsearch/internal/rank"
	"github.com/dkoes-labs/pharmsearch/internal/triplet"
	"github.com/dkoes-labs/pharmsearch/pkg/types/pharma"
)

// ShardConfig identifies one shard's index and its provenance for
// cross-shard dedup (carried through to every CorrespondenceResult).
type ShardConfig struct {
	IndexDir     string
	DBID         uint32
	NumDBs       uint32
	Workers      int // corresponder workers for this shard; 0 defaults to 1
	Q1Capacity   int // 0 defaults to 64
	Q2Capacity   int // 0 defaults to 64
	Delta        float64
}

// Search runs one query against a single shard, pushing every accepted
// CorrespondenceResult into the given Ranker. The stop flag is checked
// cooperatively at every C3 emission and every C4 backtracking suspension
// point, per the cancellation policy; it may be nil. Both Q1 and Q2's sole
// consumers drain to EOF regardless of the flag — only producers stop
// early — so cancellation never strands a producer blocked on a full,
// abandoned queue.
func Search(ctx context.Context, shard ShardConfig, points []pharma.QueryPoint, params pharma.QueryParameters, ix *index.Index, r *rank.Ranker, stop *concurrency.StopFlag) error {
	if stop == nil {
		stop = &concurrency.StopFlag{}
	}

	slots, err := triplet.GenerateSlots(points)
	if err != nil {
		return err
	}

	workers := shard.Workers
	if workers <= 0 {
		workers = 1
	}
	q1Cap := shard.Q1Capacity
	if q1Cap <= 0 {
		q1Cap = 64
	}
	q2Cap := shard.Q2Capacity
	if q2Cap <= 0 {
		q2Cap = 64
	}

	q1 := concurrency.NewQueue[*pharma.TripletMatch](q1Cap, 1)
	q2 := concurrency.NewQueue[*pharma.CorrespondenceResult](q2Cap, workers)

	g, _ := errgroup.WithContext(ctx)

	// Aggregator: single producer of Q1. Aggregate pushes each TripletMatch
	// to Q1 as it's merged, so Q1's bounded capacity backpressures the scan
	// itself rather than just gating a batch handoff after the fact.
	g.Go(func() error {
		defer q1.RemoveProducer()
		return aggregator.Aggregate(ix, slots, shard.Delta, stop.IsSet, func(m *pharma.TripletMatch) error {
			q1.Push(m)
			return nil
		})
	})

	// N corresponder workers: consumers of Q1, producers of Q2. Each gets its
	// own bump arena — an Arena is owned by exactly one producer goroutine,
	// so sharing one across workers would race on its backing slice.
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			arena := concurrency.NewArena(q2Cap)
			shardHandle := concurrency.NewShardHandle(arena)
			w := correspond.NewWorker(len(points), slots, params, shard.DBID, shard.NumDBs, arena, shardHandle, q2, stop)
			w.Run(q1)
			return nil
		})
	}

	// Ranker consumer: drains Q2 until EOF, never abandoning it on the stop
	// flag. Q2's producers (the corresponder workers) only stop *generating*
	// new results early; once a result is pushed it must be read, or a
	// worker blocked in Queue.Push against a full Q2 would never see notFull
	// signaled again and Search would hang in g.Wait() forever. Per-worker
	// arena reset is not driven from here: with N independent arenas,
	// reclaiming one requires knowing which worker a given result came from,
	// which Q2 does not carry. Arenas are released to the garbage collector
	// when Search returns instead.
	g.Go(func() error {
		for {
			cr, ok := q2.Pop()
			if !ok {
				return nil
			}
			r.Accept(*cr)
		}
	})

	return g.Wait()
}
