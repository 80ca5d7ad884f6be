package domain

import "time"

// Author - снимок автора комментария. Движок его не изменяет.
type Author struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Comment представляет комментарий или ответ в ветке.
type Comment struct {
	ID            string    `json:"id"`
	ContentID     string    `json:"contentId"`
	ParentID      *string   `json:"parentId,omitempty"`
	Author        Author    `json:"author"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	LikeCount     int       `json:"likeCount"`
	LikedByViewer bool      `json:"likedByViewer"`
	// ReplyCount имеет смысл только для комментариев верхнего уровня.
	ReplyCount int `json:"replyCount"`
}

// IsReply сообщает, является ли комментарий ответом.
func (c Comment) IsReply() bool {
	return c.ParentID != nil
}

// Edited сообщает, редактировался ли комментарий.
func (c Comment) Edited() bool {
	return !c.UpdatedAt.Equal(c.CreatedAt)
}

// Clone возвращает структурную копию, не разделяющую ParentID с оригиналом.
func (c Comment) Clone() Comment {
	if c.ParentID != nil {
		p := *c.ParentID
		c.ParentID = &p
	}
	return c
}

// Page - одна страница результатов постраничного чтения.
type Page struct {
	Comments []Comment `json:"comments"`
	HasMore  bool      `json:"hasMore"`
	Total    int       `json:"total"`
}

// LikeState - состояние лайка после переключения на сервере.
type LikeState struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"likeCount"`
}

// ReportReason - причина жалобы на комментарий.
type ReportReason string

const (
	ReportSpam          ReportReason = "spam"
	ReportHarassment    ReportReason = "harassment"
	ReportInappropriate ReportReason = "inappropriate"
	ReportOther         ReportReason = "other"
)

// Valid сообщает, известна ли причина жалобы.
func (r ReportReason) Valid() bool {
	switch r {
	case ReportSpam, ReportHarassment, ReportInappropriate, ReportOther:
		return true
	}
	return false
}

// Report - жалоба зрителя на комментарий.
type Report struct {
	CommentID  string       `json:"commentId"`
	ReporterID string       `json:"reporterId"`
	Reason     ReportReason `json:"reason"`
	CreatedAt  time.Time    `json:"createdAt"`
}
