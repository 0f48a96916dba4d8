package triplet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dkoes-labs/pharmsearch/internal/triplet"
)

func TestEncodeDecodeDistance_RoundTrips(t *testing.T) {
	t.Parallel()

	cases := []float64{0, 0.01, 1.23, 10.0, 100.5}
	for _, d := range cases {
		enc := triplet.EncodeDistance(d)
		dec := triplet.DecodeDistance(enc)
		assert.InDelta(t, d, dec, triplet.DistanceStep, "round trip for %v", d)
	}
}

func TestEncodeDistance_SaturatesAboveMax(t *testing.T) {
	t.Parallel()

	enc := triplet.EncodeDistance(10000.0)
	assert.Equal(t, uint16(65535), enc)
}

func TestEncodeDistance_NegativeClampsToZero(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint16(0), triplet.EncodeDistance(-5))
}

func TestToleranceSteps_ZeroForNonPositive(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint16(0), triplet.ToleranceSteps(0))
	assert.Equal(t, uint16(0), triplet.ToleranceSteps(-1))
}

func TestToleranceSteps_RoundsUp(t *testing.T) {
	t.Parallel()

	// 0.015 Å needs 2 steps of 0.01 Å to fully cover.
	assert.Equal(t, uint16(2), triplet.ToleranceSteps(0.015))
}
