package postgres

import (
	"time"

	"github.com/xevi10h/redbee-expo-sub000/internal/domain"
)

// commentRow - строка таблицы comments. Seq задаёт порядок создания.
type commentRow struct {
	Seq          int64     `gorm:"primaryKey;autoIncrement"`
	ID           string    `gorm:"type:varchar(36);uniqueIndex;not null"`
	ContentID    string    `gorm:"type:varchar(255);not null;index"`
	ParentID     *string   `gorm:"type:varchar(36);index"`
	AuthorID     string    `gorm:"type:varchar(255);not null"`
	AuthorName   string    `gorm:"type:varchar(255);not null"`
	AuthorAvatar string    `gorm:"type:varchar(1024)"`
	Text         string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (commentRow) TableName() string { return "comments" }

type likeRow struct {
	CommentID string    `gorm:"type:varchar(36);primaryKey"`
	ViewerID  string    `gorm:"type:varchar(255);primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
}

func (likeRow) TableName() string { return "comment_likes" }

type reportRow struct {
	Seq        int64     `gorm:"primaryKey;autoIncrement"`
	CommentID  string    `gorm:"type:varchar(36);not null;index"`
	ReporterID string    `gorm:"type:varchar(255);not null"`
	Reason     string    `gorm:"type:varchar(32);not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (reportRow) TableName() string { return "comment_reports" }

// toDomain переводит строку в доменную модель без счётчиков.
func (r commentRow) toDomain() domain.Comment {
	return domain.Comment{
		ID:        r.ID,
		ContentID: r.ContentID,
		ParentID:  r.ParentID,
		Author: domain.Author{
			ID:          r.AuthorID,
			DisplayName: r.AuthorName,
			AvatarURL:   r.AuthorAvatar,
		},
		Text:      r.Text,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
