package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xevi10h/redbee-expo-sub000/internal/domain"
)

// Зритель передаётся заголовками: аутентификация находится вне этого сервиса.
const (
	HeaderViewerID     = "X-Viewer-ID"
	HeaderViewerName   = "X-Viewer-Name"
	HeaderViewerAvatar = "X-Viewer-Avatar"
)

type viewerKey struct{}

// WithViewer кладёт зрителя из заголовков в контекст запроса.
// Без X-Viewer-ID запрос обрабатывается как анонимный.
func WithViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := domain.Author{
			ID:          r.Header.Get(HeaderViewerID),
			DisplayName: r.Header.Get(HeaderViewerName),
			AvatarURL:   r.Header.Get(HeaderViewerAvatar),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), viewerKey{}, v)))
	})
}

// ViewerFrom возвращает зрителя текущего запроса.
func ViewerFrom(ctx context.Context) domain.Author {
	v, _ := ctx.Value(viewerKey{}).(domain.Author)
	return v
}

// requestLogger пишет одну строку zap на запрос.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
