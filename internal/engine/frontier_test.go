package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poemharvest/internal/types"
)

func TestFrontierSubmitIfNewRejectsDuplicates(t *testing.T) {
	f := NewFrontier()

	err := f.SubmitIfNew(types.WorkItem{Page: types.PageRef{ID: 1, Title: "Les Fleurs du mal"}})
	require.NoError(t, err)

	// Same title resubmitted, including underscore and case variants.
	assert.ErrorIs(t, f.SubmitIfNew(types.WorkItem{Page: types.PageRef{Title: "Les Fleurs du mal"}}), types.ErrDuplicate)
	assert.ErrorIs(t, f.SubmitIfNew(types.WorkItem{Page: types.PageRef{Title: "Les_Fleurs_du_mal"}}), types.ErrDuplicate)
	assert.ErrorIs(t, f.SubmitIfNew(types.WorkItem{Page: types.PageRef{Title: "les Fleurs du mal"}}), types.ErrDuplicate)

	assert.Equal(t, 1, f.Len())
}

func TestFrontierSubmitIfNewDedupsByID(t *testing.T) {
	f := NewFrontier()

	require.NoError(t, f.SubmitIfNew(types.WorkItem{Page: types.PageRef{ID: 42, Title: "Demain, dès l'aube"}}))

	// The same identity under a different title is still a duplicate.
	assert.ErrorIs(t, f.SubmitIfNew(types.WorkItem{Page: types.PageRef{ID: 42, Title: "Demain dès l'aube…"}}), types.ErrDuplicate)
	assert.Equal(t, 1, f.Len())
}

func TestFrontierPreloadedIDRejectedAtSubmit(t *testing.T) {
	f := NewFrontier()
	f.PreloadProcessed([]int64{42})

	assert.ErrorIs(t, f.SubmitIfNew(types.WorkItem{Page: types.PageRef{ID: 42, Title: "Le Dormeur du val"}}), types.ErrDuplicate)
	assert.Equal(t, 0, f.Len())
}

func TestFrontierConcurrentSubmitAdmitsOnce(t *testing.T) {
	f := NewFrontier()

	const goroutines = 50
	var admitted sync.Map
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(n int) {
			defer wg.Done()
			if err := f.SubmitIfNew(types.WorkItem{Page: types.PageRef{Title: "Le Lac"}}); err == nil {
				admitted.Store(n, true)
			}
		}(i)
	}
	wg.Wait()

	count := 0
	admitted.Range(func(_, _ any) bool { count++; return true })
	assert.Equal(t, 1, count, "exactly one submitter should win")
	assert.Equal(t, 1, f.Len())
}

func TestFrontierDrainReturnsFIFO(t *testing.T) {
	f := NewFrontier()
	require.NoError(t, f.SubmitIfNew(types.WorkItem{Page: types.PageRef{Title: "A"}}))
	require.NoError(t, f.SubmitIfNew(types.WorkItem{Page: types.PageRef{Title: "B"}}))

	item, ok := f.Drain(context.Background())
	require.True(t, ok)
	assert.Equal(t, "A", item.Page.Title)

	item, ok = f.Drain(context.Background())
	require.True(t, ok)
	assert.Equal(t, "B", item.Page.Title)
}

func TestFrontierClosesWhenSealedAndIdle(t *testing.T) {
	f := NewFrontier()
	require.NoError(t, f.SubmitIfNew(types.WorkItem{Page: types.PageRef{Title: "A"}}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			item, ok := f.Drain(context.Background())
			if !ok {
				return
			}
			// A drained item may spawn a child before finishing.
			if item.Page.Title == "A" {
				_ = f.SubmitIfNew(types.WorkItem{Page: types.PageRef{Title: "B"}})
			}
			f.Done()
		}
	}()

	f.Seal()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("frontier did not close after seal and drain")
	}
	assert.Equal(t, 2, f.SeenCount())
}

func TestFrontierDrainHonorsContext(t *testing.T) {
	f := NewFrontier()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, ok := f.Drain(ctx)
	assert.False(t, ok)
}

func TestFrontierProcessedPreload(t *testing.T) {
	f := NewFrontier()
	f.PreloadProcessed([]int64{7, 11})

	assert.True(t, f.IsProcessed(7))
	assert.True(t, f.IsProcessed(11))
	assert.False(t, f.IsProcessed(13))

	f.MarkProcessed(13)
	assert.True(t, f.IsProcessed(13))
}

func TestFrontierSubmitAfterClose(t *testing.T) {
	f := NewFrontier()
	f.Close()
	assert.ErrorIs(t, f.SubmitIfNew(types.WorkItem{Page: types.PageRef{Title: "A"}}), types.ErrFrontierClosed)
}
