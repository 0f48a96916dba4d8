package metafilter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoes-labs/pharmsearch/internal/infrastructure/search/opensearch"
	"github.com/dkoes-labs/pharmsearch/internal/testutil"
	"github.com/dkoes-labs/pharmsearch/pkg/types/pharma"
)

type fakeScroller struct {
	batches [][]opensearch.SearchHit
	err     error
}

func (f *fakeScroller) ScrollSearch(ctx context.Context, req opensearch.SearchRequest, handler func(hits []opensearch.SearchHit) error) error {
	if f.err != nil {
		return f.err
	}
	for _, batch := range f.batches {
		if err := handler(batch); err != nil {
			return err
		}
	}
	return nil
}

func hitFor(dbID uint32, weight float64, rotBonds uint32) opensearch.SearchHit {
	return opensearch.SearchHit{
		ID:     "doc",
		Source: []byte(`{"db_id":` + itoa(dbID) + `,"molecular_weight":` + ftoa(weight) + `,"rotatable_bonds":` + itoa(rotBonds) + `}`),
	}
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

func ftoa(v float64) string {
	whole := int64(v)
	return itoa(uint32(whole)) + ".0"
}

func TestRefresh_PopulatesSnapshot(t *testing.T) {
	searcher := &fakeScroller{batches: [][]opensearch.SearchHit{
		{hitFor(1, 250, 3), hitFor(2, 400, 8)},
	}}
	ix := NewIndex(searcher, "", testutil.NewMockLogger(), nil)

	require.NoError(t, ix.Refresh(context.Background()))
	assert.Equal(t, 2, ix.Len())

	meta, ok := ix.Metadata(1)
	require.True(t, ok)
	assert.Equal(t, float64(250), meta.Weight)
	assert.Equal(t, uint32(3), meta.RotatableBonds)
}

func TestMetadata_Unknown(t *testing.T) {
	ix := NewIndex(&fakeScroller{}, "", testutil.NewMockLogger(), nil)
	_, ok := ix.Metadata(99)
	assert.False(t, ok)
}

func TestRefresh_SkipsUnparsableDocuments(t *testing.T) {
	searcher := &fakeScroller{batches: [][]opensearch.SearchHit{
		{{ID: "bad", Source: []byte(`not json`)}, hitFor(5, 300, 2)},
	}}
	ix := NewIndex(searcher, "", testutil.NewMockLogger(), nil)
	require.NoError(t, ix.Refresh(context.Background()))
	assert.Equal(t, 1, ix.Len())
}

func TestRefresh_ScrollError(t *testing.T) {
	ix := NewIndex(&fakeScroller{err: assert.AnError}, "", testutil.NewMockLogger(), nil)
	err := ix.Refresh(context.Background())
	assert.Error(t, err)
}

func TestCouldPassWindow_UnknownDBIDPasses(t *testing.T) {
	ix := NewIndex(&fakeScroller{}, "", testutil.NewMockLogger(), nil)
	assert.True(t, ix.CouldPassWindow([]uint32{123}, pharma.QueryParameters{MinWeight: 100}))
}

func TestCouldPassWindow_AllExcluded(t *testing.T) {
	searcher := &fakeScroller{batches: [][]opensearch.SearchHit{
		{hitFor(1, 50, 1), hitFor(2, 60, 1)},
	}}
	ix := NewIndex(searcher, "", testutil.NewMockLogger(), nil)
	require.NoError(t, ix.Refresh(context.Background()))

	assert.False(t, ix.CouldPassWindow([]uint32{1, 2}, pharma.QueryParameters{MinWeight: 500}))
}

func TestCouldPassWindow_OnePasses(t *testing.T) {
	searcher := &fakeScroller{batches: [][]opensearch.SearchHit{
		{hitFor(1, 50, 1), hitFor(2, 600, 1)},
	}}
	ix := NewIndex(searcher, "", testutil.NewMockLogger(), nil)
	require.NoError(t, ix.Refresh(context.Background()))

	assert.True(t, ix.CouldPassWindow([]uint32{1, 2}, pharma.QueryParameters{MinWeight: 500}))
}
