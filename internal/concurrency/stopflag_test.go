package concurrency_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dkoes-labs/pharmsearch/internal/concurrency"
)

func TestStopFlag_InitiallyUnset(t *testing.T) {
	t.Parallel()

	var f concurrency.StopFlag
	assert.False(t, f.IsSet())
}

func TestStopFlag_SetIsObservedAfterward(t *testing.T) {
	t.Parallel()

	var f concurrency.StopFlag
	f.Set()
	assert.True(t, f.IsSet())
}

func TestStopFlag_SetIsIdempotent(t *testing.T) {
	t.Parallel()

	var f concurrency.StopFlag
	f.Set()
	f.Set()
	assert.True(t, f.IsSet())
}
