package thread

import (
	"context"

	"go.uber.org/zap"

	"github.com/xevi10h/redbee-expo-sub000/internal/domain"
)

// replyRequest - одно чтение страницы ответов и версии, при которых оно начато.
type replyRequest struct {
	key      OpKey
	parentID string
	page     int
	first    bool
	epoch    uint64
	replyVer uint64
}

// ToggleReplies раскрывает или сворачивает ответы родителя.
// Если ответы ещё не загружены, читается первая страница. Если загружены,
// они удаляются из кэша без запроса: "свёрнуто" и "не загружалось"
// внешне неразличимы.
func (e *Engine) ToggleReplies(ctx context.Context, parentID string) error {
	req, err := e.expandOrCollapse(parentID)
	if err != nil || req == nil {
		return err
	}
	return e.loadReplies(ctx, req)
}

// LoadMoreReplies дочитывает следующую страницу ответов родителя по его
// собственному курсору. Ничего не делает, если ответы не загружены, чтение
// уже идёт или страниц больше нет.
func (e *Engine) LoadMoreReplies(ctx context.Context, parentID string) error {
	c := e.cache
	c.mu.Lock()
	var req *replyRequest
	if cur, loaded := c.replyCursors[parentID]; loaded && c.hasLoadedReplies(parentID) && cur.HasMore {
		req = e.startReplies(parentID, false)
	}
	c.mu.Unlock()

	if req == nil {
		return nil
	}
	return e.loadReplies(ctx, req)
}

// RetryReplies повторяет неудачное чтение ответов родителя.
func (e *Engine) RetryReplies(ctx context.Context, parentID string) error {
	c := e.cache
	c.mu.Lock()
	var req *replyRequest
	if c.replyErrs[parentID] != nil {
		if _, ok := c.topLevelComment(parentID); ok {
			req = e.startReplies(parentID, !c.hasLoadedReplies(parentID))
		}
	}
	c.mu.Unlock()

	if req == nil {
		return nil
	}
	return e.loadReplies(ctx, req)
}

func (e *Engine) expandOrCollapse(parentID string) (*replyRequest, error) {
	c := e.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.topLevelComment(parentID); !ok {
		if _, _, found := c.locate(parentID); found {
			return nil, domain.ErrNestedReply
		}
		return nil, ErrUnknownComment
	}
	if _, creating := c.inFlight[OpKey{ID: parentID, Kind: OpCreate}]; creating {
		return nil, ErrInFlight
	}

	if c.hasLoadedReplies(parentID) {
		c.discardReplies(parentID)
		c.commit()
		e.logger.Debug("replies collapsed", zap.String("parent", parentID))
		return nil, nil
	}
	return e.startReplies(parentID, true), nil
}

// startReplies отмечает чтение в полёте. Вызывается под блокировкой записи.
// Возвращает nil, если чтение ответов этого родителя уже идёт.
func (e *Engine) startReplies(parentID string, first bool) *replyRequest {
	c := e.cache
	key := OpKey{ID: parentID, Kind: OpLoadReplies}
	if _, busy := c.inFlight[key]; busy {
		e.logger.Debug("reply read already in flight", zap.String("parent", parentID))
		return nil
	}

	req := &replyRequest{
		key:      key,
		parentID: parentID,
		first:    first,
		epoch:    c.epoch,
		replyVer: c.replyVer[parentID],
	}
	if !first {
		req.page = c.replyCursors[parentID].Page
	}
	c.inFlight[key] = struct{}{}
	c.commit()
	return req
}

func (e *Engine) loadReplies(ctx context.Context, req *replyRequest) error {
	p, err := e.exec.ListReplies(ctx, req.parentID, req.page, e.replyPageSize)
	return e.finishReplies(req, p, err)
}

func (e *Engine) finishReplies(req *replyRequest, p *domain.Page, err error) error {
	c := e.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.commit()

	delete(c.inFlight, req.key)
	parent, present := c.topLevelComment(req.parentID)
	stale := req.epoch != c.epoch || !present ||
		req.replyVer != c.replyVer[req.parentID] ||
		c.hasLoadedReplies(req.parentID) == req.first

	if err != nil {
		e.logger.Warn("reply read failed", zap.String("parent", req.parentID), zap.Int("page", req.page), zap.Error(err))
		if domain.IsNotFound(err) {
			// Родителя удалили на сервере
			c.dropMissing(req.parentID)
			return err
		}
		if !stale {
			c.replyErrs[req.parentID] = err
		}
		return err
	}
	if stale {
		e.logger.Debug("stale reply page ignored", zap.String("parent", req.parentID))
		return nil
	}

	incoming := make([]domain.Comment, 0, len(p.Comments))
	for _, r := range p.Comments {
		if r.ParentID == nil || *r.ParentID != req.parentID {
			e.logger.Warn("reply with foreign parent skipped", zap.String("id", r.ID), zap.String("parent", req.parentID))
			continue
		}
		incoming = append(incoming, r)
	}

	if req.first {
		c.replies[req.parentID] = c.appendUnique(nil, incoming)
		c.replyVer[req.parentID]++
	} else {
		c.replies[req.parentID] = c.appendUnique(c.replies[req.parentID], incoming)
	}
	c.replyCursors[req.parentID] = Cursor{Page: req.page + 1, HasMore: p.HasMore, Total: p.Total}
	delete(c.replyErrs, req.parentID)

	// Счётчик с сервера авторитетен при каждом подтверждённом чтении
	parent.ReplyCount = p.Total
	c.countVer[req.parentID]++
	return nil
}
