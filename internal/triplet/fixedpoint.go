// Package triplet implements the triplet key and encoding (C1): packing a
// canonical three-point descriptor — three point types plus three pairwise
// distances reduced to fixed-point — into the form used for index lookup and
// range queries, and generating the query-side QueryTriplets a search walks.
package triplet

import "math"

// DistanceStep is the fixed-point quantization step for encoded distances,
// in angstroms (§6).
const DistanceStep = 0.01

// MaxEncodedDistance is the largest representable distance before
// saturation: 65535 * 0.01 = 655.35 Å.
const MaxEncodedDistance = float64(math.MaxUint16) * DistanceStep

// EncodeDistance quantizes a distance in angstroms to the u16 fixed-point
// representation used on disk, saturating rather than overflowing for
// distances at or beyond MaxEncodedDistance.
func EncodeDistance(d float64) uint16 {
	if d <= 0 {
		return 0
	}
	if d >= MaxEncodedDistance {
		return math.MaxUint16
	}
	return uint16(math.Round(d / DistanceStep))
}

// DecodeDistance reinflates a fixed-point encoded distance back to
// angstroms.
func DecodeDistance(enc uint16) float64 {
	return float64(enc) * DistanceStep
}

// ToleranceSteps converts a tolerance radius in angstroms to the number of
// fixed-point steps a range scan must cover on either side of an encoded
// center distance, rounding up so the scan window never under-covers the
// requested tolerance.
func ToleranceSteps(delta float64) uint16 {
	if delta <= 0 {
		return 0
	}
	steps := math.Ceil(delta / DistanceStep)
	if steps >= float64(math.MaxUint16) {
		return math.MaxUint16
	}
	return uint16(steps)
}
