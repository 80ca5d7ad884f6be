package storage

import (
	"context"

	"github.com/xevi10h/redbee-expo-sub000/internal/domain"
)

// PaginationArgs - аргументы для постраничного чтения. Page начинается с нуля.
type PaginationArgs struct {
	Page     int
	PageSize int
}

// Offset возвращает смещение первого элемента страницы.
func (a PaginationArgs) Offset() int {
	if a.Page < 0 {
		return 0
	}
	return a.Page * a.PageSize
}

// Storage определяет контракт удалённого хранилища комментариев.
// Все методы, зависящие от зрителя, принимают его идентификатор:
// от него зависят LikedByViewer и проверки авторства.
type Storage interface {
	// Верхний уровень отсортирован от новых к старым
	ListComments(ctx context.Context, contentID, viewerID string, args PaginationArgs) (*domain.Page, error)
	// Ответы отсортированы от старых к новым
	ListReplies(ctx context.Context, parentID, viewerID string, args PaginationArgs) (*domain.Page, error)

	CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error)
	UpdateComment(ctx context.Context, id, authorID, text string) (*domain.Comment, error)
	DeleteComment(ctx context.Context, id, authorID string) error
	ToggleLike(ctx context.Context, id, viewerID string) (*domain.LikeState, error)
	ReportComment(ctx context.Context, report *domain.Report) error
}

// BatchReplies - необязательный метод для Dataloader'а: первые страницы ответов
// сразу для нескольких родителей одним запросом.
type BatchReplies interface {
	FirstRepliesByParentIDs(ctx context.Context, parentIDs []string, viewerID string, pageSize int) (map[string]*domain.Page, error)
}
