package thread

import (
	"context"

	"go.uber.org/zap"

	"github.com/xevi10h/redbee-expo-sub000/internal/domain"
)

// LoadPage читает страницу комментариев верхнего уровня.
//
// refresh=true начинает ветку заново: первая страница заменяет весь
// верхний уровень, загруженные ответы сбрасываются. refresh=false дописывает
// следующую страницу в конец. Пока идёт любое чтение страницы, повторный
// вызов ничего не делает; как и дочитывание при has_more=false.
// При ошибке кэш не меняется, а ошибка запоминается до успешного повтора.
func (e *Engine) LoadPage(ctx context.Context, refresh bool) error {
	page, ok := e.beginPage(refresh)
	if !ok {
		return nil
	}
	p, err := e.exec.ListComments(ctx, page, e.pageSize)
	return e.finishPage(refresh, page, p, err)
}

// Refresh перечитывает ветку с первой страницы.
func (e *Engine) Refresh(ctx context.Context) error {
	return e.LoadPage(ctx, true)
}

// LoadMore дочитывает следующую страницу.
func (e *Engine) LoadMore(ctx context.Context) error {
	return e.LoadPage(ctx, false)
}

// RetryPage повторяет последнее неудачное чтение той же страницы.
func (e *Engine) RetryPage(ctx context.Context) error {
	e.cache.mu.RLock()
	failed := e.cache.pageErr
	e.cache.mu.RUnlock()

	if failed == nil {
		return nil
	}
	return e.LoadPage(ctx, failed.refresh)
}

func (e *Engine) beginPage(refresh bool) (int, bool) {
	c := e.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.inFlight[pageKey]; busy {
		e.logger.Debug("page read already in flight", zap.Bool("refresh", refresh))
		return 0, false
	}
	page := 0
	if !refresh {
		if !c.cursor.HasMore {
			e.logger.Debug("no more pages", zap.Int("total", c.cursor.Total))
			return 0, false
		}
		page = c.cursor.Page
	}
	c.inFlight[pageKey] = struct{}{}
	c.commit()
	return page, true
}

func (e *Engine) finishPage(refresh bool, page int, p *domain.Page, err error) error {
	c := e.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.commit()

	delete(c.inFlight, pageKey)
	if err != nil {
		c.pageErr = &pageFailure{refresh: refresh, err: err}
		e.logger.Warn("page read failed", zap.Int("page", page), zap.Bool("refresh", refresh), zap.Error(err))
		return err
	}
	c.pageErr = nil

	incoming := e.topLevelOnly(p.Comments)
	if refresh {
		c.epoch++
		c.topLevel = c.appendUnique(nil, incoming)
		c.replies = make(map[string][]domain.Comment)
		c.replyCursors = make(map[string]Cursor)
		c.replyErrs = make(map[string]error)
	} else {
		c.topLevel = c.appendUnique(c.topLevel, incoming)
	}
	c.cursor = Cursor{Page: page + 1, HasMore: p.HasMore, Total: p.Total}
	c.countVer[""]++

	e.logger.Debug("page loaded",
		zap.Int("page", page),
		zap.Int("received", len(p.Comments)),
		zap.Int("loaded", len(c.topLevel)),
		zap.Bool("has_more", p.HasMore))
	return nil
}

func (e *Engine) topLevelOnly(list []domain.Comment) []domain.Comment {
	out := make([]domain.Comment, 0, len(list))
	for _, cm := range list {
		if cm.IsReply() {
			e.logger.Warn("reply in top-level page skipped", zap.String("id", cm.ID))
			continue
		}
		out = append(out, cm)
	}
	return out
}
