package attempt

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetOrCreateConcurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const workers = 32
	ids := make([]string, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			a, err := store.GetOrCreate(ctx, "ex1", "student1")
			assert.NoError(t, err)
			ids[i] = a.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id, "every racer must land on the same attempt")
	}
	all, err := store.List(ctx, ListOpts{ExamID: "ex1", UserID: "student1"})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemoryStore_ReplaceRefusedOnceCompleted(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	a, err := store.GetOrCreate(ctx, "ex1", "student1")
	require.NoError(t, err)
	_, err = store.Start(ctx, a.ID, 100)
	require.NoError(t, err)

	cid := "c1"
	require.NoError(t, store.Replace(ctx, a.ID, "q1", []Answer{{ChoiceID: &cid}}))

	_, err = store.Submit(ctx, a.ID, StatusSubmitted, 10, nil, false, 200)
	require.NoError(t, err)

	other := "c2"
	err = store.Replace(ctx, a.ID, "q1", []Answer{{ChoiceID: &other}})
	assert.ErrorIs(t, err, ErrInvalidState)

	rows, err := store.ListByAssignment(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "c1", *rows[0].ChoiceID, "frozen answers stay as submitted")

	assert.ErrorIs(t, store.Replace(ctx, "missing", "q1", nil), ErrNotFound)
}
