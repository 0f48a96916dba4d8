// Package align implements the weighted/unweighted Kabsch rigid-body
// alignment (C5): given paired query/molecule point sets and per-point
// weights, it finds the rotation and translation that best superimposes
// molecule onto query, then gates the result against the per-point
// tolerance and the aggregate RMSD bound.
package align

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/dkoes-labs/pharmsearch/pkg/types/pharma"
)

// Result is the outcome of one alignment attempt.
type Result struct {
	// RMSD is the post-alignment aggregate sqrt(mean(d^2_i)), gated against
	// the query's maxRMSD.
	RMSD pharma.RMSDResult
	// WeightedResidual is the quaternion-method's own normalized residual,
	// gated against 1.0 in weighted mode before the per-point check runs.
	WeightedResidual float64
}

// Align computes the weighted (or unweighted) Kabsch superposition of mol
// onto query and applies the three validity gates in order: the weighted
// pre-check (weighted mode only), the per-point tolerance check, and the
// aggregate RMSD bound against maxRMSD.
//
// It returns converged=false if the underlying eigendecomposition fails to
// converge; per the alignment filter's cancellation policy this is not an
// error, the caller simply drops the candidate and continues. accepted is
// only meaningful when converged is true.
//
// query and mol must have equal, matching length n >= 3. weights has length
// n and is ignored (treated as all-1) when mode is WeightingUnweighted.
func Align(query, mol [][3]float64, weights []float64, mode pharma.WeightingMode, maxRMSD float64) (result Result, accepted, converged bool) {
	n := len(query)
	w := make([]float64, n)
	for i := range w {
		if mode == pharma.WeightingUnweighted {
			w[i] = 1
		} else {
			w[i] = weights[i]
		}
	}

	var wsum float64
	var qc, mc [3]float64
	for i := 0; i < n; i++ {
		wsum += w[i]
		for k := 0; k < 3; k++ {
			qc[k] += w[i] * query[i][k]
			mc[k] += w[i] * mol[i][k]
		}
	}
	for k := 0; k < 3; k++ {
		qc[k] /= wsum
		mc[k] /= wsum
	}

	qCentered := make([][3]float64, n)
	mCentered := make([][3]float64, n)
	var e0 float64
	var s [3][3]float64 // cross-covariance: s[i][j] = sum w_k * m_k[i] * q_k[j]
	for i := 0; i < n; i++ {
		for k := 0; k < 3; k++ {
			qCentered[i][k] = query[i][k] - qc[k]
			mCentered[i][k] = mol[i][k] - mc[k]
		}
		e0 += w[i] * (sqNorm(qCentered[i]) + sqNorm(mCentered[i]))
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				s[a][b] += w[i] * mCentered[i][a] * qCentered[i][b]
			}
		}
	}

	lambdaMax, quat, ok := largestEigenQuaternion(s)
	if !ok {
		return Result{}, false, false
	}

	rot := quaternionToMatrix(quat)

	residualSq := (e0 - 2*lambdaMax) / wsum
	if residualSq < 0 {
		residualSq = 0
	}
	weightedResidual := math.Sqrt(residualSq)
	result.WeightedResidual = weightedResidual

	// Additional validity screen (weighted mode): a weighted residual above
	// 1.0 cannot satisfy the per-point check, so skip straight to rejection.
	if mode != pharma.WeightingUnweighted && weightedResidual > 1.0 {
		return result, false, true
	}

	translation := [3]float64{}
	rotatedCentroid := applyRotation(rot, mc)
	for k := 0; k < 3; k++ {
		translation[k] = qc[k] - rotatedCentroid[k]
	}

	var sumSq float64
	for i := 0; i < n; i++ {
		transformed := applyRotation(rot, mol[i])
		for k := 0; k < 3; k++ {
			transformed[k] += translation[k]
		}
		d2 := 0.0
		for k := 0; k < 3; k++ {
			diff := transformed[k] - query[i][k]
			d2 += diff * diff
		}
		// weight is 1/r^2; the squared displacement must not exceed r^2.
		if w[i]*d2 > 1.0 {
			return result, false, true
		}
		sumSq += d2
	}

	rmsdValue := math.Sqrt(sumSq / float64(n))

	var res pharma.RMSDResult
	res.Value = rmsdValue
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			res.Rotation[a][b] = float32(rot[a][b])
		}
		res.Translation[a] = float32(translation[a])
	}
	result.RMSD = res

	return result, rmsdValue <= maxRMSD, true
}

func sqNorm(v [3]float64) float64 {
	return v[0]*v[0] + v[1]*v[1] + v[2]*v[2]
}

func applyRotation(r [3][3]float64, v [3]float64) [3]float64 {
	var out [3]float64
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			out[a] += r[a][b] * v[b]
		}
	}
	return out
}

// largestEigenQuaternion builds the 4x4 symmetric key matrix from the
// 3x3 weighted cross-covariance s (per Horn's quaternion method) and
// returns its largest eigenvalue and corresponding unit eigenvector.
func largestEigenQuaternion(s [3][3]float64) (float64, [4]float64, bool) {
	sxx, sxy, sxz := s[0][0], s[0][1], s[0][2]
	syx, syy, syz := s[1][0], s[1][1], s[1][2]
	szx, szy, szz := s[2][0], s[2][1], s[2][2]

	n := mat.NewSymDense(4, []float64{
		sxx + syy + szz, syz - szy, szx - sxz, sxy - syx,
		0, sxx - syy - szz, sxy + syx, szx + sxz,
		0, 0, -sxx + syy - szz, syz + szy,
		0, 0, 0, -sxx - syy + szz,
	})

	var eig mat.EigenSym
	if ok := eig.Factorize(n, true); !ok {
		return 0, [4]float64{}, false
	}

	values := eig.Values(nil)
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}

	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	var quat [4]float64
	for i := 0; i < 4; i++ {
		quat[i] = vectors.At(i, best)
	}

	return values[best], quat, true
}

func quaternionToMatrix(q [4]float64) [3][3]float64 {
	w, x, y, z := q[0], q[1], q[2], q[3]
	return [3][3]float64{
		{w*w + x*x - y*y - z*z, 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), w*w - x*x + y*y - z*z, 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), w*w - x*x - y*y + z*z},
	}
}
