package dataloader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xevi10h/redbee-expo-sub000/internal/domain"
)

type countingBatch struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (b *countingBatch) FirstRepliesByParentIDs(ctx context.Context, parentIDs []string, viewerID string, pageSize int) (map[string]*domain.Page, error) {
	b.mu.Lock()
	b.calls = append(b.calls, append([]string(nil), parentIDs...))
	b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]*domain.Page)
	for _, id := range parentIDs {
		if id == "missing" {
			continue
		}
		pid := id
		out[id] = &domain.Page{
			Comments: []domain.Comment{{ID: id + "-r1", ParentID: &pid}},
			Total:    1,
		}
	}
	return out, nil
}

func TestRepliesLoader_BatchesParents(t *testing.T) {
	batch := &countingBatch{}
	l := NewRepliesLoader(batch, "viewer", 5, 20*time.Millisecond)
	ctx := context.Background()

	a := l.LoadAsync(ctx, "a")
	b := l.LoadAsync(ctx, "b")
	missing := l.LoadAsync(ctx, "missing")

	pa, err := a()
	require.NoError(t, err)
	assert.Equal(t, "a-r1", pa.Comments[0].ID)

	pb, err := b()
	require.NoError(t, err)
	assert.Equal(t, "b-r1", pb.Comments[0].ID)

	_, err = missing()
	assert.ErrorIs(t, err, domain.ErrNotFound)

	batch.mu.Lock()
	defer batch.mu.Unlock()
	require.Len(t, batch.calls, 1)
	assert.ElementsMatch(t, []string{"a", "b", "missing"}, batch.calls[0])
}

func TestRepliesLoader_NoCaching(t *testing.T) {
	batch := &countingBatch{}
	l := NewRepliesLoader(batch, "viewer", 5, time.Millisecond)
	ctx := context.Background()

	_, err := l.Load(ctx, "a")
	require.NoError(t, err)
	_, err = l.Load(ctx, "a")
	require.NoError(t, err)

	batch.mu.Lock()
	defer batch.mu.Unlock()
	assert.Len(t, batch.calls, 2)
}

func TestRepliesLoader_ErrorForAllKeys(t *testing.T) {
	boom := errors.New("boom")
	l := NewRepliesLoader(&countingBatch{err: boom}, "viewer", 5, time.Millisecond)

	_, err := l.Load(context.Background(), "a")
	assert.ErrorIs(t, err, boom)
}

func TestRepliesLoader_CancelledCallerDoesNotFailBatch(t *testing.T) {
	batch := &countingBatch{}
	l := NewRepliesLoader(batch, "viewer", 5, 20*time.Millisecond)

	cancelled, cancel := context.WithCancel(context.Background())
	a := l.LoadAsync(cancelled, "a")
	b := l.LoadAsync(context.Background(), "b")
	cancel()

	pb, err := b()
	require.NoError(t, err)
	assert.Equal(t, "b-r1", pb.Comments[0].ID)
	_, err = a()
	require.NoError(t, err)

	batch.mu.Lock()
	defer batch.mu.Unlock()
	require.Len(t, batch.calls, 1)
}
