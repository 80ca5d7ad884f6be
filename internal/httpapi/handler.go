package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xevi10h/redbee-expo-sub000/internal/domain"
	"github.com/xevi10h/redbee-expo-sub000/internal/storage"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// maxBodyBytes с запасом покрывает комментарий максимальной длины
	maxBodyBytes = 64 * 1024
)

// CreateCommentInput - тело POST /contents/{contentID}/comments.
type CreateCommentInput struct {
	Text     string  `json:"text"`
	ParentID *string `json:"parentId,omitempty"`
}

// UpdateCommentInput - тело PATCH /comments/{commentID}.
type UpdateCommentInput struct {
	Text string `json:"text"`
}

// ReportInput - тело POST /comments/{commentID}/reports.
type ReportInput struct {
	Reason domain.ReportReason `json:"reason"`
}

// Handler отдаёт Storage по JSON/HTTP. Это удалённое хранилище,
// с которым клиентский движок ветки синхронизируется.
type Handler struct {
	store  storage.Storage
	logger *zap.Logger
}

type Option func(*Handler)

func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func New(store storage.Storage, opts ...Option) *Handler {
	h := &Handler{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes собирает роутер со всеми маршрутами и общими middleware.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(WithViewer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/contents/{contentID}/comments", h.listComments)
	r.Post("/contents/{contentID}/comments", h.createComment)
	r.Get("/replies", h.firstReplies)

	r.Route("/comments/{commentID}", func(r chi.Router) {
		r.Patch("/", h.updateComment)
		r.Delete("/", h.deleteComment)
		r.Get("/replies", h.listReplies)
		r.Post("/like", h.toggleLike)
		r.Post("/reports", h.reportComment)
	})
	return r
}

// === Чтение ===

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request) {
	args, ok := paginationArgs(w, r)
	if !ok {
		return
	}
	page, err := h.store.ListComments(r.Context(), chi.URLParam(r, "contentID"), ViewerFrom(r.Context()).ID, args)
	if err != nil {
		h.handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) listReplies(w http.ResponseWriter, r *http.Request) {
	args, ok := paginationArgs(w, r)
	if !ok {
		return
	}
	page, err := h.store.ListReplies(r.Context(), chi.URLParam(r, "commentID"), ViewerFrom(r.Context()).ID, args)
	if err != nil {
		h.handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// firstReplies отдаёт первые страницы ответов сразу для нескольких родителей:
// GET /replies?parent=a&parent=b&pageSize=10. Отсутствующих родителей в ответе нет.
func (h *Handler) firstReplies(w http.ResponseWriter, r *http.Request) {
	args, ok := paginationArgs(w, r)
	if !ok {
		return
	}
	parents := r.URL.Query()["parent"]
	viewerID := ViewerFrom(r.Context()).ID

	if batch, ok := h.store.(storage.BatchReplies); ok {
		pages, err := batch.FirstRepliesByParentIDs(r.Context(), parents, viewerID, args.PageSize)
		if err != nil {
			h.handleStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, pages)
		return
	}

	pages := make(map[string]*domain.Page, len(parents))
	for _, p := range parents {
		page, err := h.store.ListReplies(r.Context(), p, viewerID, storage.PaginationArgs{PageSize: args.PageSize})
		if domain.IsNotFound(err) {
			continue
		}
		if err != nil {
			h.handleStoreError(w, r, err)
			return
		}
		pages[p] = page
	}
	writeJSON(w, http.StatusOK, pages)
}

// === Изменения ===

func (h *Handler) createComment(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	var input CreateCommentInput
	if !decode(w, r, &input) {
		return
	}

	created, err := h.store.CreateComment(r.Context(), &domain.Comment{
		ContentID: chi.URLParam(r, "contentID"),
		ParentID:  input.ParentID,
		Author:    viewer,
		Text:      input.Text,
	})
	if err != nil {
		h.handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) updateComment(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	var input UpdateCommentInput
	if !decode(w, r, &input) {
		return
	}

	updated, err := h.store.UpdateComment(r.Context(), chi.URLParam(r, "commentID"), viewer.ID, input.Text)
	if err != nil {
		h.handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteComment(r.Context(), chi.URLParam(r, "commentID"), viewer.ID); err != nil {
		h.handleStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) toggleLike(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	state, err := h.store.ToggleLike(r.Context(), chi.URLParam(r, "commentID"), viewer.ID)
	if err != nil {
		h.handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) reportComment(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	var input ReportInput
	if !decode(w, r, &input) {
		return
	}
	if !input.Reason.Valid() {
		h.handleStoreError(w, r, domain.ErrInvalidReason)
		return
	}

	err := h.store.ReportComment(r.Context(), &domain.Report{
		CommentID:  chi.URLParam(r, "commentID"),
		ReporterID: viewer.ID,
		Reason:     input.Reason,
	})
	if err != nil {
		h.handleStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// === Вспомогательные функции ===

func (h *Handler) requireViewer(w http.ResponseWriter, r *http.Request) (domain.Author, bool) {
	v := ViewerFrom(r.Context())
	if strings.TrimSpace(v.ID) == "" {
		h.handleStoreError(w, r, domain.ErrUnauthorized)
		return domain.Author{}, false
	}
	return v, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return false
	}
	return true
}

// paginationArgs читает page и pageSize из query. Размер страницы
// по умолчанию DefaultPageSize, сверху ограничен MaxPageSize.
func paginationArgs(w http.ResponseWriter, r *http.Request) (storage.PaginationArgs, bool) {
	args := storage.PaginationArgs{PageSize: DefaultPageSize}
	q := r.URL.Query()

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, CodeBadRequest, "page must be a non-negative integer")
			return args, false
		}
		args.Page = n
	}
	if raw := q.Get("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, CodeBadRequest, "pageSize must be a positive integer")
			return args, false
		}
		args.PageSize = min(n, MaxPageSize)
	}
	return args, true
}
