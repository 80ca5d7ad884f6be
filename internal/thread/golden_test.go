package thread

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestDump_LoadedThread(t *testing.T) {
	f := seedThread(5)
	f.addReplies("c05", 2)
	f.setLikes("c04", 3, false)
	e := newTestEngine(t, f, WithPageSize(3))
	ctx := context.Background()

	require.NoError(t, e.LoadMore(ctx))
	require.NoError(t, e.ToggleReplies(ctx, "c05"))
	_, err := e.ToggleLike(ctx, "c04")
	require.NoError(t, err)
	_, err = e.CreateReply(ctx, "c05", "thanks")
	require.NoError(t, err)
	_, err = e.CreateComment(ctx, "first!")
	require.NoError(t, err)

	newGoldie(t).Assert(t, "loaded_thread", []byte(e.Cache().Dump()))
}

func TestDump_PendingCreate(t *testing.T) {
	f := seedThread(2)
	e := newTestEngine(t, f)
	ctx := context.Background()
	require.NoError(t, e.LoadMore(ctx))
	before := e.Cache().Dump()

	f.failOn(OpCreate, errDown)
	gate := f.holdOn(OpCreate)
	done := async(func() error {
		_, err := e.CreateComment(ctx, "hello")
		return err
	})
	waitInFlight(t, e.Cache(), OpKey{ID: "local-1", Kind: OpCreate})

	newGoldie(t).Assert(t, "pending_create", []byte(e.Cache().Dump()))

	close(gate)
	require.Error(t, <-done)
	require.Equal(t, before, e.Cache().Dump())
}
