package thread

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xevi10h/redbee-expo-sub000/internal/domain"
)

const (
	DefaultPageSize      = 20
	DefaultReplyPageSize = 10

	// localPrefix отличает временные id оптимистичных вставок от серверных
	localPrefix = "local-"
)

// Executor - узкий контракт к удалённому хранилищу. Реализация уже
// привязана к контенту и зрителю и возвращает ошибки из таксономии domain.
type Executor interface {
	ListComments(ctx context.Context, page, pageSize int) (*domain.Page, error)
	ListReplies(ctx context.Context, parentID string, page, pageSize int) (*domain.Page, error)
	CreateComment(ctx context.Context, text string, parentID *string) (*domain.Comment, error)
	EditComment(ctx context.Context, id, text string) (*domain.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	ToggleLike(ctx context.Context, id string) (*domain.LikeState, error)
	ReportComment(ctx context.Context, id string, reason domain.ReportReason) error
}

// Scope - пара (контент, зритель), которую обслуживает один Engine.
type Scope struct {
	ContentID string
	Viewer    domain.Author
}

// Engine синхронизирует Cache с удалённым хранилищем: постраничное чтение,
// ленивое раскрытие ответов и оптимистичные мутации с откатом.
//
// Методы блокируют вызывающую горутину до согласования с сервером,
// но блокировка кэша на время удалённого вызова не удерживается:
// читатели кэша никогда не ждут сеть.
type Engine struct {
	scope         Scope
	cache         *Cache
	exec          Executor
	pageSize      int
	replyPageSize int
	logger        *zap.Logger
	now           func() time.Time
	newID         func() string

	mu      sync.Mutex
	pending map[string]DeleteToken
}

// Option настраивает Engine.
type Option func(*Engine)

func WithPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

func WithReplyPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.replyPageSize = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock подменяет источник времени для оптимистичных отметок.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator подменяет генератор временных id и токенов.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// NewEngine создаёт движок для одной ветки. Кэш передаётся снаружи,
// чтобы слой представления мог читать его напрямую.
func NewEngine(scope Scope, cache *Cache, exec Executor, opts ...Option) *Engine {
	e := &Engine{
		scope:         scope,
		cache:         cache,
		exec:          exec,
		pageSize:      DefaultPageSize,
		replyPageSize: DefaultReplyPageSize,
		logger:        zap.NewNop(),
		now:           func() time.Time { return time.Now().UTC() },
		newID:         uuid.NewString,
		pending:       make(map[string]DeleteToken),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("content", scope.ContentID), zap.String("viewer", scope.Viewer.ID))
	return e
}

// Cache возвращает кэш, которым владеет движок.
func (e *Engine) Cache() *Cache {
	return e.cache
}

// newLocal собирает оптимистичную сущность с временным id.
func (e *Engine) newLocal(text string, parentID *string) domain.Comment {
	now := e.now()
	c := domain.Comment{
		ID:        localPrefix + e.newID(),
		ContentID: e.scope.ContentID,
		ParentID:  parentID,
		Author:    e.scope.Viewer,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return c.Clone()
}

// rollback откатывает мутацию и снимает флаг выполнения одним шагом.
// Если сервер сообщил, что сущности missing больше нет, она удаляется из кэша.
func (e *Engine) rollback(s *mutationSnapshot, err error, missing string) {
	c := e.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inFlight, s.op)
	delete(c.pendingReplies, s.op.ID)
	c.restore(s)
	if missing != "" && domain.IsNotFound(err) {
		c.dropMissing(missing)
	}
	c.commit()

	e.logger.Warn("mutation rolled back",
		zap.String("op", string(s.op.Kind)),
		zap.String("id", s.op.ID),
		zap.Error(err))
}

func indexOf(list []domain.Comment, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
