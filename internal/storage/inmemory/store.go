package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xevi10h/redbee-expo-sub000/internal/domain"
	"github.com/xevi10h/redbee-expo-sub000/internal/storage"
)

// record - комментарий вместе с множеством лайкнувших его зрителей.
type record struct {
	comment domain.Comment
	likes   map[string]struct{}
}

// Store реализует интерфейс Storage в памяти.
type Store struct {
	mu                sync.RWMutex
	comments          map[string]*record
	commentsByContent map[string][]string // map[contentID][]commentID (только корневые, в порядке создания)
	commentsByParent  map[string][]string // map[parentID][]commentID
	reports           []domain.Report
	now               func() time.Time
}

// New создает новый экземпляр in-memory хранилища.
func New() *Store {
	return &Store{
		comments:          make(map[string]*record),
		commentsByContent: make(map[string][]string),
		commentsByParent:  make(map[string][]string),
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	if err := domain.ValidateText(comment.Text); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Проверка родительского комментария
	if comment.ParentID != nil {
		parent, ok := s.comments[*comment.ParentID]
		if !ok || parent.comment.ContentID != comment.ContentID {
			return nil, domain.ErrNotFound
		}
		if parent.comment.IsReply() {
			return nil, domain.ErrNestedReply
		}
	}

	c := comment.Clone()
	c.ID = uuid.NewString()
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	c.LikeCount = 0
	c.LikedByViewer = false
	c.ReplyCount = 0
	s.comments[c.ID] = &record{comment: c, likes: make(map[string]struct{})}

	// Обновление индексов для иерархии
	if c.ParentID == nil {
		s.commentsByContent[c.ContentID] = append(s.commentsByContent[c.ContentID], c.ID)
	} else {
		s.commentsByParent[*c.ParentID] = append(s.commentsByParent[*c.ParentID], c.ID)
	}

	return s.view(c.ID, c.Author.ID), nil
}

func (s *Store) UpdateComment(ctx context.Context, id, authorID, text string) (*domain.Comment, error) {
	if err := domain.ValidateText(text); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.comments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if r.comment.Author.ID != authorID {
		return nil, domain.ErrNotOwner
	}
	r.comment.Text = text
	r.comment.UpdatedAt = s.now()
	return s.view(id, authorID), nil
}

func (s *Store) DeleteComment(ctx context.Context, id, authorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.comments[id]
	if !ok {
		return domain.ErrNotFound
	}
	if r.comment.Author.ID != authorID {
		return domain.ErrNotOwner
	}

	if r.comment.ParentID == nil {
		// Удаляем вместе со всеми ответами
		for _, childID := range s.commentsByParent[id] {
			delete(s.comments, childID)
		}
		delete(s.commentsByParent, id)
		s.commentsByContent[r.comment.ContentID] = without(s.commentsByContent[r.comment.ContentID], id)
	} else {
		parentID := *r.comment.ParentID
		s.commentsByParent[parentID] = without(s.commentsByParent[parentID], id)
	}
	delete(s.comments, id)
	return nil
}

func (s *Store) ToggleLike(ctx context.Context, id, viewerID string) (*domain.LikeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.comments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if _, liked := r.likes[viewerID]; liked {
		delete(r.likes, viewerID)
	} else {
		r.likes[viewerID] = struct{}{}
	}
	_, liked := r.likes[viewerID]
	return &domain.LikeState{Liked: liked, LikeCount: len(r.likes)}, nil
}

func (s *Store) ReportComment(ctx context.Context, report *domain.Report) error {
	if !report.Reason.Valid() {
		return domain.ErrInvalidReason
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[report.CommentID]; !ok {
		return domain.ErrNotFound
	}
	rep := *report
	rep.CreatedAt = s.now()
	s.reports = append(s.reports, rep)
	return nil
}

// Reports возвращает копию всех принятых жалоб.
func (s *Store) Reports() []domain.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Report(nil), s.reports...)
}

// === Pagination Methods ===

func (s *Store) ListComments(ctx context.Context, contentID, viewerID string, args storage.PaginationArgs) (*domain.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.commentsByContent[contentID]
	// Индекс хранится в порядке создания, лента - от новых к старым
	newestFirst := make([]string, len(ids))
	for i, id := range ids {
		newestFirst[len(ids)-1-i] = id
	}
	return s.paginate(newestFirst, viewerID, args), nil
}

func (s *Store) ListReplies(ctx context.Context, parentID, viewerID string, args storage.PaginationArgs) (*domain.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.comments[parentID]; !ok {
		return nil, domain.ErrNotFound
	}
	return s.paginate(s.commentsByParent[parentID], viewerID, args), nil
}

// paginate - вспомогательная функция для пагинации
func (s *Store) paginate(ids []string, viewerID string, args storage.PaginationArgs) *domain.Page {
	page := &domain.Page{Comments: []domain.Comment{}, Total: len(ids)}

	start := args.Offset()
	if start >= len(ids) || args.PageSize <= 0 {
		return page
	}
	end := start + args.PageSize
	if end > len(ids) {
		end = len(ids)
	}

	for _, id := range ids[start:end] {
		page.Comments = append(page.Comments, *s.view(id, viewerID))
	}
	page.HasMore = end < len(ids)
	return page
}

// === Dataloader Methods ===

func (s *Store) FirstRepliesByParentIDs(ctx context.Context, parentIDs []string, viewerID string, pageSize int) (map[string]*domain.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make(map[string]*domain.Page, len(parentIDs))
	for _, pID := range parentIDs {
		if _, ok := s.comments[pID]; !ok {
			continue
		}
		results[pID] = s.paginate(s.commentsByParent[pID], viewerID, storage.PaginationArgs{PageSize: pageSize})
	}
	return results, nil
}

// view собирает копию комментария с полями, зависящими от зрителя.
// Вызывается под блокировкой.
func (s *Store) view(id, viewerID string) *domain.Comment {
	r := s.comments[id]
	c := r.comment.Clone()
	c.LikeCount = len(r.likes)
	_, c.LikedByViewer = r.likes[viewerID]
	if c.ParentID == nil {
		c.ReplyCount = len(s.commentsByParent[id])
	}
	return &c
}

func without(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
