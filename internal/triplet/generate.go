package triplet

import (
	"math"

	"github.com/dkoes-labs/pharmsearch/pkg/errors"
	"github.com/dkoes-labs/pharmsearch/pkg/types/pharma"
)

// permutations3 enumerates the 6 orderings of three indices {0,1,2}.
var permutations3 = [6][3]int{
	{0, 1, 2},
	{0, 2, 1},
	{1, 0, 2},
	{1, 2, 0},
	{2, 0, 1},
	{2, 1, 0},
}

func distance(a, b pharma.QueryPoint) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// combination is one C(P,3) choice of three query-point indices.
type combination [3]int

// combinations3 enumerates every unordered 3-subset of {0,...,p-1}.
func combinations3(p int) []combination {
	var out []combination
	for i := 0; i < p; i++ {
		for j := i + 1; j < p; j++ {
			for k := j + 1; k < p; k++ {
				out = append(out, combination{i, j, k})
			}
		}
	}
	return out
}

// GenerateSlots builds one slot per triangle (C(P,3) combinations of the
// query's points), each slot holding up to 6 rotation/reflection
// orderings of that triangle as QueryTriplets. A query with fewer than 3
// points, or more points than the correspondence bitmask can address,
// is rejected with CodeQueryTooLarge.
func GenerateSlots(points []pharma.QueryPoint) ([][]pharma.QueryTriplet, error) {
	p := len(points)
	if p < 3 {
		return nil, errors.QueryTooLarge("query must have at least 3 points")
	}
	if p > pharma.MaxMoleculePoints {
		return nil, errors.QueryTooLarge("query has more points than the correspondence bitmask can address")
	}

	combos := combinations3(p)
	slots := make([][]pharma.QueryTriplet, 0, len(combos))
	for _, c := range combos {
		triangle := [3]pharma.QueryPoint{points[c[0]], points[c[1]], points[c[2]]}
		slot := make([]pharma.QueryTriplet, 0, 6)
		for _, perm := range permutations3 {
			a, b, cc := triangle[perm[0]], triangle[perm[1]], triangle[perm[2]]
			slot = append(slot, pharma.QueryTriplet{
				Points: [3]pharma.QueryPoint{a, b, cc},
				D12:    distance(a, b),
				D13:    distance(a, cc),
				D23:    distance(b, cc),
			})
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// TypeKey is the unordered triple of point types used to select an index
// table on disk (§4.1): tables are keyed by the sorted (t0,t1,t2).
type TypeKey [3]uint8

// KeyForTriplet returns the canonical TypeKey for a QueryTriplet's three
// point types, sorted ascending so lookup does not depend on ordering.
func KeyForTriplet(qt pharma.QueryTriplet) TypeKey {
	t := [3]uint8{qt.Points[0].TypeID, qt.Points[1].TypeID, qt.Points[2].TypeID}
	// Insertion sort over 3 elements.
	if t[0] > t[1] {
		t[0], t[1] = t[1], t[0]
	}
	if t[1] > t[2] {
		t[1], t[2] = t[2], t[1]
	}
	if t[0] > t[1] {
		t[0], t[1] = t[1], t[0]
	}
	return TypeKey(t)
}

// CanonicalDistances returns a QueryTriplet's three distances sorted
// ascending (d_smallest, d_middle, d_largest) — the ordering the on-disk
// table is sorted by and that range scans rely on (§4.1, data-model
// invariant).
func CanonicalDistances(qt pharma.QueryTriplet) (smallest, middle, largest float64) {
	d := [3]float64{qt.D12, qt.D13, qt.D23}
	if d[0] > d[1] {
		d[0], d[1] = d[1], d[0]
	}
	if d[1] > d[2] {
		d[1], d[2] = d[2], d[1]
	}
	if d[0] > d[1] {
		d[0], d[1] = d[1], d[0]
	}
	return d[0], d[1], d[2]
}
