package executor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xevi10h/redbee-expo-sub000/internal/dataloader"
	"github.com/xevi10h/redbee-expo-sub000/internal/domain"
	"github.com/xevi10h/redbee-expo-sub000/internal/storage"
)

// DefaultTimeout ограничивает один удалённый вызов.
const DefaultTimeout = 10 * time.Second

// Executor выполняет одну логическую операцию над удалённым хранилищем
// от имени конкретного зрителя и приводит ошибки к таксономии domain.
// Состояния между вызовами не хранит и повторов не делает.
type Executor struct {
	store     storage.Storage
	contentID string
	viewer    domain.Author
	timeout   time.Duration
	logger    *zap.Logger

	replies       *dataloader.RepliesLoader
	replyPageSize int
}

// Option настраивает Executor.
type Option func(*Executor)

// WithTimeout задаёт таймаут одного вызова. Ноль отключает таймаут.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// WithLogger задаёт логгер.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithBatchedReplies включает сбор первых страниц ответов в батчи,
// если хранилище это поддерживает.
func WithBatchedReplies(pageSize int, wait time.Duration) Option {
	return func(e *Executor) {
		batch, ok := e.store.(storage.BatchReplies)
		if !ok {
			return
		}
		e.replies = dataloader.NewRepliesLoader(batch, e.viewer.ID, pageSize, wait)
		e.replyPageSize = pageSize
	}
}

// New создаёт исполнителя для пары (контент, зритель).
func New(store storage.Storage, contentID string, viewer domain.Author, opts ...Option) *Executor {
	e := &Executor{
		store:     store,
		contentID: contentID,
		viewer:    viewer,
		timeout:   DefaultTimeout,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) ListComments(ctx context.Context, page, pageSize int) (*domain.Page, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	p, err := e.store.ListComments(ctx, e.contentID, e.viewer.ID, storage.PaginationArgs{Page: page, PageSize: pageSize})
	return p, e.result("list comments", "", err)
}

func (e *Executor) ListReplies(ctx context.Context, parentID string, page, pageSize int) (*domain.Page, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var (
		p   *domain.Page
		err error
	)
	if page == 0 && e.replies != nil && pageSize == e.replyPageSize {
		p, err = e.replies.Load(ctx, parentID)
	} else {
		p, err = e.store.ListReplies(ctx, parentID, e.viewer.ID, storage.PaginationArgs{Page: page, PageSize: pageSize})
	}
	return p, e.result("list replies", parentID, err)
}

func (e *Executor) CreateComment(ctx context.Context, text string, parentID *string) (*domain.Comment, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	c, err := e.store.CreateComment(ctx, &domain.Comment{
		ContentID: e.contentID,
		ParentID:  parentID,
		Author:    e.viewer,
		Text:      text,
	})
	target := ""
	if parentID != nil {
		target = *parentID
	}
	return c, e.result("create comment", target, err)
}

func (e *Executor) EditComment(ctx context.Context, id, text string) (*domain.Comment, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	c, err := e.store.UpdateComment(ctx, id, e.viewer.ID, text)
	return c, e.result("edit comment", id, err)
}

func (e *Executor) DeleteComment(ctx context.Context, id string) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	return e.result("delete comment", id, e.store.DeleteComment(ctx, id, e.viewer.ID))
}

func (e *Executor) ToggleLike(ctx context.Context, id string) (*domain.LikeState, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	s, err := e.store.ToggleLike(ctx, id, e.viewer.ID)
	return s, e.result("toggle like", id, err)
}

func (e *Executor) ReportComment(ctx context.Context, id string, reason domain.ReportReason) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	err := e.store.ReportComment(ctx, &domain.Report{
		CommentID:  id,
		ReporterID: e.viewer.ID,
		Reason:     reason,
	})
	return e.result("report comment", id, err)
}

func (e *Executor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

// result логирует исход вызова и приводит ошибку к таксономии.
func (e *Executor) result(op, target string, err error) error {
	if err == nil {
		e.logger.Debug("remote call succeeded", zap.String("op", op), zap.String("target", target))
		return nil
	}
	mapped := Classify(err)
	e.logger.Warn("remote call failed",
		zap.String("op", op),
		zap.String("target", target),
		zap.String("viewer", e.viewer.ID),
		zap.Error(mapped))
	return fmt.Errorf("%s: %w", op, mapped)
}

// Classify приводит произвольную ошибку хранилища или транспорта к одной из
// категорий: validation, authorization, not-found, transient.
// Всё неизвестное считается временной ошибкой.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case domain.IsValidation(err), domain.IsAuthorization(err), domain.IsNotFound(err), domain.IsTransient(err):
		return err
	default:
		// Таймауты, обрывы соединения, ошибки драйвера
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
}
