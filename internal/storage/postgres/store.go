package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xevi10h/redbee-expo-sub000/internal/domain"
	"github.com/xevi10h/redbee-expo-sub000/internal/storage"
)

// Store реализует интерфейс Storage с использованием PostgreSQL.
type Store struct {
	db *gorm.DB
}

// New создает новый экземпляр хранилища PostgreSQL.
func New(dsn string) (*Store, error) {
	return NewWithDialector(postgres.Open(dsn))
}

// NewWithDialector открывает хранилище поверх любого диалекта gorm и выполняет миграцию схемы.
func NewWithDialector(dialector gorm.Dialector) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&commentRow{}, &likeRow{}, &reportRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	if err := domain.ValidateText(comment.Text); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	row := commentRow{
		ID:           uuid.NewString(),
		ContentID:    comment.ContentID,
		ParentID:     comment.Clone().ParentID,
		AuthorID:     comment.Author.ID,
		AuthorName:   comment.Author.DisplayName,
		AuthorAvatar: comment.Author.AvatarURL,
		Text:         comment.Text,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// Проверяем родителя и создаём комментарий в одной транзакции
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if row.ParentID != nil {
			parent, err := findComment(tx, *row.ParentID)
			if err != nil {
				return err
			}
			if parent.ContentID != row.ContentID {
				return domain.ErrNotFound
			}
			if parent.ParentID != nil {
				return domain.ErrNestedReply
			}
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return nil, err
	}

	c := row.toDomain()
	return &c, nil
}

func (s *Store) UpdateComment(ctx context.Context, id, authorID, text string) (*domain.Comment, error) {
	if err := domain.ValidateText(text); err != nil {
		return nil, err
	}

	var out *domain.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := findComment(tx, id)
		if err != nil {
			return err
		}
		if row.AuthorID != authorID {
			return domain.ErrNotOwner
		}
		row.Text = text
		row.UpdatedAt = time.Now().UTC()
		if err := tx.Model(&commentRow{}).Where("seq = ?", row.Seq).
			Updates(map[string]any{"text": row.Text, "updated_at": row.UpdatedAt}).Error; err != nil {
			return err
		}

		hydrated, err := hydrate(tx, []commentRow{*row}, authorID)
		if err != nil {
			return err
		}
		out = &hydrated[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) DeleteComment(ctx context.Context, id, authorID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := findComment(tx, id)
		if err != nil {
			return err
		}
		if row.AuthorID != authorID {
			return domain.ErrNotOwner
		}

		ids := []string{id}
		if row.ParentID == nil {
			// Корневой комментарий удаляется вместе с ответами
			var replyIDs []string
			if err := tx.Model(&commentRow{}).Where("parent_id = ?", id).Pluck("id", &replyIDs).Error; err != nil {
				return err
			}
			ids = append(ids, replyIDs...)
		}

		if err := tx.Where("comment_id IN ?", ids).Delete(&likeRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("comment_id IN ?", ids).Delete(&reportRow{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&commentRow{}).Error
	})
}

func (s *Store) ToggleLike(ctx context.Context, id, viewerID string) (*domain.LikeState, error) {
	var state domain.LikeState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findComment(tx, id); err != nil {
			return err
		}

		res := tx.Where("comment_id = ? AND viewer_id = ?", id, viewerID).Delete(&likeRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Лайка не было - ставим
			like := likeRow{CommentID: id, ViewerID: viewerID, CreatedAt: time.Now().UTC()}
			if err := tx.Create(&like).Error; err != nil {
				return err
			}
			state.Liked = true
		}

		var count int64
		if err := tx.Model(&likeRow{}).Where("comment_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		state.LikeCount = int(count)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Store) ReportComment(ctx context.Context, report *domain.Report) error {
	if !report.Reason.Valid() {
		return domain.ErrInvalidReason
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findComment(tx, report.CommentID); err != nil {
			return err
		}
		return tx.Create(&reportRow{
			CommentID:  report.CommentID,
			ReporterID: report.ReporterID,
			Reason:     string(report.Reason),
			CreatedAt:  time.Now().UTC(),
		}).Error
	})
}

// === Pagination Methods ===

func (s *Store) ListComments(ctx context.Context, contentID, viewerID string, args storage.PaginationArgs) (*domain.Page, error) {
	db := s.db.WithContext(ctx)
	// Выбираем только комментарии верхнего уровня (parent_id IS NULL)
	scope := db.Model(&commentRow{}).Where("content_id = ? AND parent_id IS NULL", contentID)
	return s.page(db, scope, "seq DESC", viewerID, args)
}

func (s *Store) ListReplies(ctx context.Context, parentID, viewerID string, args storage.PaginationArgs) (*domain.Page, error) {
	db := s.db.WithContext(ctx)
	if _, err := findComment(db, parentID); err != nil {
		return nil, err
	}
	scope := db.Model(&commentRow{}).Where("parent_id = ?", parentID)
	return s.page(db, scope, "seq ASC", viewerID, args)
}

func (s *Store) page(db, scope *gorm.DB, order, viewerID string, args storage.PaginationArgs) (*domain.Page, error) {
	var total int64
	if err := scope.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	page := &domain.Page{Comments: []domain.Comment{}, Total: int(total)}
	if args.PageSize <= 0 {
		return page, nil
	}

	var rows []commentRow
	err := scope.Session(&gorm.Session{}).
		Order(order).
		Limit(args.PageSize).
		Offset(args.Offset()).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	comments, err := hydrate(db, rows, viewerID)
	if err != nil {
		return nil, err
	}
	page.Comments = comments
	page.HasMore = args.Offset()+len(rows) < page.Total
	return page, nil
}

// === Dataloader Method ===

func (s *Store) FirstRepliesByParentIDs(ctx context.Context, parentIDs []string, viewerID string, pageSize int) (map[string]*domain.Page, error) {
	result := make(map[string]*domain.Page, len(parentIDs))
	if len(parentIDs) == 0 {
		return result, nil
	}
	db := s.db.WithContext(ctx)

	var existing []string
	if err := db.Model(&commentRow{}).Where("id IN ?", parentIDs).Pluck("id", &existing).Error; err != nil {
		return nil, err
	}
	for _, id := range existing {
		result[id] = &domain.Page{Comments: []domain.Comment{}}
	}

	// Загружаем все ответы для всех переданных parentID одним запросом
	var rows []commentRow
	err := db.Where("parent_id IN ?", parentIDs).
		Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	firstPages := make([]commentRow, 0, len(rows))
	for _, r := range rows {
		p, ok := result[*r.ParentID]
		if !ok {
			continue
		}
		p.Total++
		if p.Total <= pageSize {
			firstPages = append(firstPages, r)
		}
	}

	comments, err := hydrate(db, firstPages, viewerID)
	if err != nil {
		return nil, err
	}
	for _, c := range comments {
		p := result[*c.ParentID]
		p.Comments = append(p.Comments, c)
	}
	for _, p := range result {
		p.HasMore = len(p.Comments) < p.Total
	}
	return result, nil
}

// === Helpers ===

func findComment(db *gorm.DB, id string) (*commentRow, error) {
	var row commentRow
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		// GORM возвращает gorm.ErrRecordNotFound, если запись не найдена
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// aggregate - результат GROUP BY по одной колонке.
type aggregate struct {
	Ref   string
	Total int
}

// hydrate дополняет строки счётчиками лайков, ответов и состоянием лайка зрителя.
func hydrate(db *gorm.DB, rows []commentRow, viewerID string) ([]domain.Comment, error) {
	out := make([]domain.Comment, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	var likeCounts []aggregate
	err := db.Model(&likeRow{}).
		Select("comment_id AS ref, COUNT(*) AS total").
		Where("comment_id IN ?", ids).
		Group("comment_id").
		Scan(&likeCounts).Error
	if err != nil {
		return nil, err
	}

	var replyCounts []aggregate
	err = db.Model(&commentRow{}).
		Select("parent_id AS ref, COUNT(*) AS total").
		Where("parent_id IN ?", ids).
		Group("parent_id").
		Scan(&replyCounts).Error
	if err != nil {
		return nil, err
	}

	var liked []string
	err = db.Model(&likeRow{}).
		Where("viewer_id = ? AND comment_id IN ?", viewerID, ids).
		Pluck("comment_id", &liked).Error
	if err != nil {
		return nil, err
	}

	likesByID := make(map[string]int, len(likeCounts))
	for _, a := range likeCounts {
		likesByID[a.Ref] = a.Total
	}
	repliesByID := make(map[string]int, len(replyCounts))
	for _, a := range replyCounts {
		repliesByID[a.Ref] = a.Total
	}
	likedByViewer := make(map[string]bool, len(liked))
	for _, id := range liked {
		likedByViewer[id] = true
	}

	for i, r := range rows {
		c := r.toDomain()
		c.LikeCount = likesByID[r.ID]
		c.LikedByViewer = likedByViewer[r.ID]
		if c.ParentID == nil {
			c.ReplyCount = repliesByID[r.ID]
		}
		out[i] = c
	}
	return out, nil
}
