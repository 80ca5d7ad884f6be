package thread

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xevi10h/redbee-expo-sub000/internal/domain"
)

func TestToggleReplies_ExpandThenCollapse(t *testing.T) {
	f := seedThread(2)
	f.addReplies("c02", 3)
	e := newTestEngine(t, f, WithReplyPageSize(2))
	ctx := context.Background()
	require.NoError(t, e.LoadMore(ctx))

	require.NoError(t, e.ToggleReplies(ctx, "c02"))
	s := e.Cache().Snapshot()
	assert.Equal(t, []string{"c02-r1", "c02-r2"}, ids(s.Replies["c02"]))
	assert.Equal(t, Cursor{Page: 1, HasMore: true, Total: 3}, s.ReplyCursors["c02"])
	for _, r := range s.Replies["c02"] {
		require.NotNil(t, r.ParentID)
		assert.Equal(t, "c02", *r.ParentID)
	}

	require.NoError(t, e.ToggleReplies(ctx, "c02"))
	s = e.Cache().Snapshot()
	assert.False(t, e.Cache().HasLoadedReplies("c02"))
	assert.NotContains(t, s.Replies, "c02")
	assert.NotContains(t, s.ReplyCursors, "c02")
	assert.Equal(t, 1, f.callCount(OpLoadReplies))
	assert.Equal(t, 3, s.TopLevel[0].ReplyCount)
}

func TestToggleReplies_EmptyIsStillLoaded(t *testing.T) {
	f := seedThread(1)
	e := newTestEngine(t, f)
	ctx := context.Background()
	require.NoError(t, e.LoadMore(ctx))

	require.NoError(t, e.ToggleReplies(ctx, "c01"))
	assert.True(t, e.Cache().HasLoadedReplies("c01"))
	assert.Empty(t, e.Cache().Snapshot().Replies["c01"])
}

func TestToggleReplies_RejectsReplyAndUnknown(t *testing.T) {
	f := seedThread(1)
	f.addReplies("c01", 1)
	e := newTestEngine(t, f)
	ctx := context.Background()
	require.NoError(t, e.LoadMore(ctx))
	require.NoError(t, e.ToggleReplies(ctx, "c01"))

	assert.ErrorIs(t, e.ToggleReplies(ctx, "c01-r1"), domain.ErrNestedReply)
	assert.ErrorIs(t, e.ToggleReplies(ctx, "nope"), ErrUnknownComment)
}

func TestLoadMoreReplies_IndependentCursors(t *testing.T) {
	f := seedThread(2)
	f.addReplies("c01", 3)
	f.addReplies("c02", 5)
	e := newTestEngine(t, f, WithReplyPageSize(2))
	ctx := context.Background()
	require.NoError(t, e.LoadMore(ctx))

	// до раскрытия дочитывать нечего
	require.NoError(t, e.LoadMoreReplies(ctx, "c01"))
	assert.Equal(t, 0, f.callCount(OpLoadReplies))

	require.NoError(t, e.ToggleReplies(ctx, "c01"))
	require.NoError(t, e.ToggleReplies(ctx, "c02"))
	require.NoError(t, e.LoadMoreReplies(ctx, "c02"))
	require.NoError(t, e.LoadMoreReplies(ctx, "c02"))

	s := e.Cache().Snapshot()
	assert.Len(t, s.Replies["c01"], 2)
	assert.Equal(t, 1, s.ReplyCursors["c01"].Page)
	assert.Len(t, s.Replies["c02"], 5)
	assert.Equal(t, Cursor{Page: 3, HasMore: false, Total: 5}, s.ReplyCursors["c02"])
	requireUnique(t, s.Replies["c02"])

	calls := f.callCount(OpLoadReplies)
	require.NoError(t, e.LoadMoreReplies(ctx, "c02"))
	assert.Equal(t, calls, f.callCount(OpLoadReplies))
}

func TestLoadMoreReplies_InFlightIsNoop(t *testing.T) {
	f := seedThread(1)
	f.addReplies("c01", 4)
	e := newTestEngine(t, f, WithReplyPageSize(2))
	ctx := context.Background()
	require.NoError(t, e.LoadMore(ctx))
	require.NoError(t, e.ToggleReplies(ctx, "c01"))

	gate := f.holdOn(OpLoadReplies)
	done := async(func() error { return e.LoadMoreReplies(ctx, "c01") })
	waitInFlight(t, e.Cache(), OpKey{ID: "c01", Kind: OpLoadReplies})

	require.NoError(t, e.LoadMoreReplies(ctx, "c01"))
	assert.Equal(t, 2, f.callCount(OpLoadReplies))

	close(gate)
	require.NoError(t, <-done)
	assert.Len(t, e.Cache().Snapshot().Replies["c01"], 4)
}

func TestToggleReplies_StaleAfterRefresh(t *testing.T) {
	f := seedThread(1)
	f.addReplies("c01", 2)
	e := newTestEngine(t, f)
	ctx := context.Background()
	require.NoError(t, e.LoadMore(ctx))

	gate := f.holdOn(OpLoadReplies)
	done := async(func() error { return e.ToggleReplies(ctx, "c01") })
	waitInFlight(t, e.Cache(), OpKey{ID: "c01", Kind: OpLoadReplies})

	require.NoError(t, e.Refresh(ctx))
	close(gate)
	require.NoError(t, <-done)

	assert.False(t, e.Cache().HasLoadedReplies("c01"))
	assert.Empty(t, e.Cache().Snapshot().InFlight)
}

func TestToggleReplies_ServerCountIsAuthoritative(t *testing.T) {
	f := seedThread(1)
	f.addReplies("c01", 2)
	e := newTestEngine(t, f)
	ctx := context.Background()
	require.NoError(t, e.LoadMore(ctx))

	// кто-то ответил после загрузки страницы
	f.mu.Lock()
	f.addReplies("c01", 3)
	f.mu.Unlock()

	require.NoError(t, e.ToggleReplies(ctx, "c01"))
	c, ok := e.Cache().Comment("c01")
	require.True(t, ok)
	assert.Equal(t, 5, c.ReplyCount)
}

func TestRetryReplies(t *testing.T) {
	f := seedThread(1)
	f.addReplies("c01", 2)
	e := newTestEngine(t, f)
	ctx := context.Background()
	require.NoError(t, e.LoadMore(ctx))

	f.failOn(OpLoadReplies, errDown)
	require.Error(t, e.ToggleReplies(ctx, "c01"))
	assert.False(t, e.Cache().HasLoadedReplies("c01"))
	assert.ErrorIs(t, e.Cache().ReplyError("c01"), domain.ErrTransient)

	f.failOn(OpLoadReplies, nil)
	require.NoError(t, e.RetryReplies(ctx, "c01"))
	assert.NoError(t, e.Cache().ReplyError("c01"))
	assert.Len(t, e.Cache().Snapshot().Replies["c01"], 2)
}

func TestToggleReplies_ParentGoneOnServer(t *testing.T) {
	f := seedThread(2)
	e := newTestEngine(t, f)
	ctx := context.Background()
	require.NoError(t, e.LoadMore(ctx))

	f.mu.Lock()
	f.top = f.top[1:]
	f.mu.Unlock()

	err := e.ToggleReplies(ctx, "c02")
	assert.True(t, domain.IsNotFound(err))
	s := e.Cache().Snapshot()
	assert.Equal(t, []string{"c01"}, ids(s.TopLevel))
	assert.Equal(t, 1, s.Cursor.Total)
}
