package thread

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xevi10h/redbee-expo-sub000/internal/domain"
)

var (
	viewer  = domain.Author{ID: "viewer", DisplayName: "Viewer"}
	epoch0  = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	errDown = fmt.Errorf("%w: connection reset", domain.ErrTransient)
)

// fakeExec - управляемое удалённое хранилище: ошибки и задержки задаются по виду операции.
type fakeExec struct {
	mu      sync.Mutex
	top     []domain.Comment
	replies map[string][]domain.Comment
	fail    map[OpKind]error
	hold    map[OpKind]chan struct{}
	calls   map[OpKind]int
	// extraLikes - лайки других зрителей, пришедшие во время переключения
	extraLikes map[string]int
	seq        int
}

// seedThread создаёт n комментариев верхнего уровня c<n>..c01, новые первыми.
func seedThread(n int) *fakeExec {
	f := &fakeExec{
		replies:    make(map[string][]domain.Comment),
		fail:       make(map[OpKind]error),
		hold:       make(map[OpKind]chan struct{}),
		calls:      make(map[OpKind]int),
		extraLikes: make(map[string]int),
	}
	for i := n; i >= 1; i-- {
		f.top = append(f.top, domain.Comment{
			ID:        fmt.Sprintf("c%02d", i),
			ContentID: "video-1",
			Author:    domain.Author{ID: "author", DisplayName: "Author"},
			Text:      fmt.Sprintf("comment %d", i),
			CreatedAt: epoch0.Add(time.Duration(i) * time.Minute),
			UpdatedAt: epoch0.Add(time.Duration(i) * time.Minute),
		})
	}
	return f
}

// addReplies дописывает n ответов <parent>-r<k>, старые первыми.
func (f *fakeExec) addReplies(parentID string, n int) {
	start := len(f.replies[parentID])
	for i := start + 1; i <= start+n; i++ {
		pid := parentID
		f.replies[parentID] = append(f.replies[parentID], domain.Comment{
			ID:        parentID + "-r" + strconv.Itoa(i),
			ContentID: "video-1",
			ParentID:  &pid,
			Author:    domain.Author{ID: "author", DisplayName: "Author"},
			Text:      "reply " + strconv.Itoa(i),
			CreatedAt: epoch0.Add(time.Hour + time.Duration(i)*time.Minute),
			UpdatedAt: epoch0.Add(time.Hour + time.Duration(i)*time.Minute),
		})
	}
	if p := f.find(parentID); p != nil {
		p.ReplyCount = len(f.replies[parentID])
	}
}

func (f *fakeExec) setLikes(id string, count int, liked bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.find(id)
	c.LikeCount = count
	c.LikedByViewer = liked
}

func (f *fakeExec) failOn(kind OpKind, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[kind] = err
}

// holdOn задерживает вызовы вида kind до закрытия возвращённого канала.
func (f *fakeExec) holdOn(kind OpKind) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.hold[kind] = gate
	return gate
}

func (f *fakeExec) callCount(kind OpKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

func (f *fakeExec) enter(kind OpKind) error {
	f.mu.Lock()
	f.calls[kind]++
	gate, err := f.hold[kind], f.fail[kind]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return err
}

// find вызывается под f.mu или до начала теста.
func (f *fakeExec) find(id string) *domain.Comment {
	for i := range f.top {
		if f.top[i].ID == id {
			return &f.top[i]
		}
	}
	for p := range f.replies {
		for i := range f.replies[p] {
			if f.replies[p][i].ID == id {
				return &f.replies[p][i]
			}
		}
	}
	return nil
}

func page(list []domain.Comment, n, size int) *domain.Page {
	start := n * size
	if start > len(list) {
		start = len(list)
	}
	end := start + size
	if end > len(list) {
		end = len(list)
	}
	return &domain.Page{
		Comments: cloneComments(list[start:end]),
		HasMore:  end < len(list),
		Total:    len(list),
	}
}

func (f *fakeExec) ListComments(ctx context.Context, n, size int) (*domain.Page, error) {
	if err := f.enter(OpLoadPage); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return page(f.top, n, size), nil
}

func (f *fakeExec) ListReplies(ctx context.Context, parentID string, n, size int) (*domain.Page, error) {
	if err := f.enter(OpLoadReplies); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.find(parentID) == nil {
		return nil, domain.ErrNotFound
	}
	return page(f.replies[parentID], n, size), nil
}

func (f *fakeExec) CreateComment(ctx context.Context, text string, parentID *string) (*domain.Comment, error) {
	if err := f.enter(OpCreate); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	at := epoch0.Add(24 * time.Hour).Add(time.Duration(f.seq) * time.Second)
	c := domain.Comment{
		ID:        "s" + strconv.Itoa(f.seq),
		ContentID: "video-1",
		Author:    viewer,
		Text:      text,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if parentID == nil {
		f.top = append([]domain.Comment{c}, f.top...)
		return &c, nil
	}
	parent := f.find(*parentID)
	if parent == nil {
		return nil, domain.ErrNotFound
	}
	parent.ReplyCount++
	pid := *parentID
	c.ParentID = &pid
	f.replies[pid] = append(f.replies[pid], c)
	out := c.Clone()
	// сервер не обязан возвращать parent_id в ответе на создание
	out.ParentID = nil
	return &out, nil
}

func (f *fakeExec) EditComment(ctx context.Context, id, text string) (*domain.Comment, error) {
	if err := f.enter(OpEdit); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.find(id)
	if c == nil {
		return nil, domain.ErrNotFound
	}
	c.Text = text
	c.UpdatedAt = c.CreatedAt.Add(48 * time.Hour)
	out := c.Clone()
	return &out, nil
}

func (f *fakeExec) DeleteComment(ctx context.Context, id string) error {
	if err := f.enter(OpDelete); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.top {
		if f.top[i].ID == id {
			f.top = removeAt(f.top, i)
			delete(f.replies, id)
			return nil
		}
	}
	for p, list := range f.replies {
		if i := indexOf(list, id); i >= 0 {
			f.replies[p] = removeAt(list, i)
			f.find(p).ReplyCount--
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeExec) ToggleLike(ctx context.Context, id string) (*domain.LikeState, error) {
	if err := f.enter(OpLike); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.find(id)
	if c == nil {
		return nil, domain.ErrNotFound
	}
	if c.LikedByViewer {
		c.LikeCount--
	} else {
		c.LikeCount++
	}
	c.LikedByViewer = !c.LikedByViewer
	c.LikeCount += f.extraLikes[id]
	return &domain.LikeState{Liked: c.LikedByViewer, LikeCount: c.LikeCount}, nil
}

func (f *fakeExec) ReportComment(ctx context.Context, id string, reason domain.ReportReason) error {
	if err := f.enter(OpReport); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.find(id) == nil {
		return domain.ErrNotFound
	}
	return nil
}

// newTestEngine собирает движок с детерминированными временем и id.
func newTestEngine(t *testing.T, f *fakeExec, opts ...Option) *Engine {
	t.Helper()
	seq := 0
	base := []Option{
		WithLogger(zaptest.NewLogger(t)),
		WithClock(func() time.Time { return epoch0.Add(72 * time.Hour) }),
		WithIDGenerator(func() string {
			seq++
			return strconv.Itoa(seq)
		}),
	}
	return NewEngine(Scope{ContentID: "video-1", Viewer: viewer}, NewCache(), f, append(base, opts...)...)
}

// state - снимок кэша без счётчика версий, пригодный для сравнения "до/после".
func state(c *Cache) Snapshot {
	s := c.Snapshot()
	s.Version = 0
	return s
}

func ids(list []domain.Comment) []string {
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.ID
	}
	return out
}

func requireUnique(t *testing.T, list []domain.Comment) {
	t.Helper()
	seen := make(map[string]bool, len(list))
	for _, c := range list {
		require.False(t, seen[c.ID], "duplicate id %s", c.ID)
		seen[c.ID] = true
	}
}

// waitInFlight ждёт, пока операция не будет отмечена в кэше.
func waitInFlight(t *testing.T, c *Cache, key OpKey) {
	t.Helper()
	require.Eventually(t, func() bool { return c.InFlight(key) }, time.Second, time.Millisecond)
}

// async запускает fn в горутине и возвращает канал с её ошибкой.
func async(fn func() error) <-chan error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	return done
}
