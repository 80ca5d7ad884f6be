package thread

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xevi10h/redbee-expo-sub000/internal/domain"
)

func TestLoadPage_PagesThroughWholeThread(t *testing.T) {
	f := seedThread(45)
	e := newTestEngine(t, f)
	ctx := context.Background()

	require.NoError(t, e.LoadPage(ctx, true))
	s := e.Cache().Snapshot()
	assert.Len(t, s.TopLevel, 20)
	assert.True(t, s.Cursor.HasMore)
	assert.Equal(t, 45, s.Cursor.Total)

	require.NoError(t, e.LoadMore(ctx))
	assert.Len(t, e.Cache().Snapshot().TopLevel, 40)

	require.NoError(t, e.LoadMore(ctx))
	s = e.Cache().Snapshot()
	assert.Len(t, s.TopLevel, 45)
	assert.False(t, s.Cursor.HasMore)
	assert.Equal(t, "c45", s.TopLevel[0].ID)
	assert.Equal(t, "c01", s.TopLevel[44].ID)

	version := e.Cache().Version()
	require.NoError(t, e.LoadMore(ctx))
	assert.Equal(t, 3, f.callCount(OpLoadPage))
	assert.Equal(t, version, e.Cache().Version())
}

func TestLoadPage_SkipsDuplicatesWhenServerShifts(t *testing.T) {
	f := seedThread(5)
	e := newTestEngine(t, f, WithPageSize(2))
	ctx := context.Background()

	require.NoError(t, e.LoadMore(ctx))
	// новый комментарий сдвигает смещения: c04 придёт повторно
	f.mu.Lock()
	f.top = append([]domain.Comment{{ID: "n1", Text: "late"}}, f.top...)
	f.mu.Unlock()

	require.NoError(t, e.LoadMore(ctx))
	require.NoError(t, e.LoadMore(ctx))

	top := e.Cache().Snapshot().TopLevel
	requireUnique(t, top)
	assert.Equal(t, []string{"c05", "c04", "c03", "c02", "c01"}, ids(top))
}

func TestLoadPage_RefreshDiscardsReplies(t *testing.T) {
	f := seedThread(3)
	f.addReplies("c03", 2)
	e := newTestEngine(t, f)
	ctx := context.Background()

	require.NoError(t, e.LoadMore(ctx))
	require.NoError(t, e.ToggleReplies(ctx, "c03"))
	require.True(t, e.Cache().HasLoadedReplies("c03"))

	require.NoError(t, e.Refresh(ctx))
	s := e.Cache().Snapshot()
	assert.False(t, e.Cache().HasLoadedReplies("c03"))
	assert.Empty(t, s.Replies)
	assert.Empty(t, s.ReplyCursors)
	assert.Equal(t, 2, s.TopLevel[0].ReplyCount)
	assert.Equal(t, Cursor{Page: 1, HasMore: false, Total: 3}, s.Cursor)
}

func TestLoadPage_RefreshSuppressesLoadMore(t *testing.T) {
	f := seedThread(30)
	e := newTestEngine(t, f)
	ctx := context.Background()

	gate := f.holdOn(OpLoadPage)
	done := async(func() error { return e.Refresh(ctx) })
	waitInFlight(t, e.Cache(), pageKey)

	assert.NoError(t, e.LoadMore(ctx))
	assert.NoError(t, e.Refresh(ctx))
	assert.Equal(t, 1, f.callCount(OpLoadPage))

	close(gate)
	require.NoError(t, <-done)
	assert.Len(t, e.Cache().Snapshot().TopLevel, 20)
	assert.False(t, e.Cache().InFlight(pageKey))
}

func TestLoadPage_StickyErrorAndRetry(t *testing.T) {
	f := seedThread(25)
	e := newTestEngine(t, f)
	ctx := context.Background()

	require.NoError(t, e.LoadMore(ctx))
	before := state(e.Cache())

	f.failOn(OpLoadPage, errDown)
	err := e.LoadMore(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
	assert.ErrorIs(t, e.Cache().PageError(), domain.ErrTransient)

	after := state(e.Cache())
	after.PageError = nil
	assert.Equal(t, before, after)

	f.failOn(OpLoadPage, nil)
	require.NoError(t, e.RetryPage(ctx))
	assert.NoError(t, e.Cache().PageError())
	s := e.Cache().Snapshot()
	assert.Len(t, s.TopLevel, 25)
	assert.False(t, s.Cursor.HasMore)

	// без ошибки повтор ничего не делает
	require.NoError(t, e.RetryPage(ctx))
	assert.Equal(t, 3, f.callCount(OpLoadPage))
}

func TestLoadPage_RetryAfterFailedRefresh(t *testing.T) {
	f := seedThread(3)
	e := newTestEngine(t, f)
	ctx := context.Background()

	f.failOn(OpLoadPage, errDown)
	require.Error(t, e.Refresh(ctx))
	assert.Empty(t, e.Cache().Snapshot().TopLevel)

	f.failOn(OpLoadPage, nil)
	require.NoError(t, e.RetryPage(ctx))
	assert.Len(t, e.Cache().Snapshot().TopLevel, 3)
}
