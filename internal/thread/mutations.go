package thread

import (
	"context"

	"go.uber.org/zap"

	"github.com/xevi10h/redbee-expo-sub000/internal/domain"
)

// DeleteToken - ожидающее подтверждение удаления, выданное RequestDelete.
type DeleteToken struct {
	Value     string `json:"value"`
	CommentID string `json:"commentId"`
}

// CreateComment оптимистично добавляет комментарий в начало ветки.
// Возвращает подтверждённый сервером комментарий.
func (e *Engine) CreateComment(ctx context.Context, text string) (domain.Comment, error) {
	if err := domain.ValidateText(text); err != nil {
		return domain.Comment{}, err
	}

	c := e.cache
	c.mu.Lock()
	local := e.newLocal(text, nil)
	key := OpKey{ID: local.ID, Kind: OpCreate}
	s := c.captureCreate(key, "")
	c.topLevel = insertAt(c.topLevel, 0, local)
	c.track(s, "", 1)
	c.cursor.Total++
	c.inFlight[key] = struct{}{}
	c.commit()
	c.mu.Unlock()

	created, err := e.exec.CreateComment(ctx, text, nil)
	if err != nil {
		e.rollback(s, err, "")
		return domain.Comment{}, err
	}
	return e.confirmCreate(s, *created), nil
}

// CreateReply оптимистично добавляет ответ к комментарию верхнего уровня
// и увеличивает его reply_count в том же обновлении. Если ответы родителя
// не загружены, меняется только счётчик.
func (e *Engine) CreateReply(ctx context.Context, parentID, text string) (domain.Comment, error) {
	if err := domain.ValidateText(text); err != nil {
		return domain.Comment{}, err
	}

	c := e.cache
	c.mu.Lock()
	if _, ok := c.topLevelComment(parentID); !ok {
		_, _, found := c.locate(parentID)
		c.mu.Unlock()
		if found {
			return domain.Comment{}, domain.ErrNestedReply
		}
		return domain.Comment{}, ErrUnknownComment
	}
	if c.parentPending(parentID) {
		c.mu.Unlock()
		return domain.Comment{}, ErrInFlight
	}

	pid := parentID
	local := e.newLocal(text, &pid)
	key := OpKey{ID: local.ID, Kind: OpCreate}
	s := c.captureCreate(key, parentID)
	if c.hasLoadedReplies(parentID) {
		c.replies[parentID] = append(c.replies[parentID], local)
	}
	c.track(s, parentID, c.adjustReplyCount(parentID, 1))
	c.inFlight[key] = struct{}{}
	c.pendingReplies[local.ID] = parentID
	c.commit()
	c.mu.Unlock()

	created, err := e.exec.CreateComment(ctx, text, &pid)
	if err != nil {
		// not-found здесь означает, что исчез родитель
		e.rollback(s, err, parentID)
		return domain.Comment{}, err
	}
	return e.confirmCreate(s, *created), nil
}

// confirmCreate заменяет временную сущность подтверждённой.
// Если та же сущность уже пришла с очередной страницей, временная просто убирается.
//
// Если пока ответ ждал подтверждения, чтение ответов перезаписало
// reply_count родителя, а сам ответ с этим чтением не пришёл, серверный
// счётчик считается прочитанным до создания и увеличивается на единицу.
func (e *Engine) confirmCreate(s *mutationSnapshot, created domain.Comment) domain.Comment {
	parentID := s.entity.parentID
	if parentID != "" {
		pid := parentID
		created.ParentID = &pid
	}

	c := e.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.commit()

	delete(c.inFlight, s.op)
	delete(c.pendingReplies, s.op.ID)
	if s.epoch != c.epoch {
		e.logger.Debug("stale create confirmation ignored", zap.String("id", created.ID))
		return created.Clone()
	}

	list := c.topLevel
	if parentID != "" {
		list = c.replies[parentID]
	}
	delivered := indexOf(list, created.ID) >= 0

	confirmed := created.Clone()
	live, _, ok := c.locate(s.entity.id)
	switch {
	case ok && delivered:
		c.remove(s.entity.id)
	case ok:
		confirmed.ReplyCount = live.ReplyCount
		*live = confirmed.Clone()
	}

	if parentID != "" && !delivered && c.countVer[parentID] != s.counter.version {
		c.adjustReplyCount(parentID, 1)
		// Полностью прочитанный список теряет ответ вместе с временной сущностью
		if !ok && c.hasLoadedReplies(parentID) && !c.replyCursors[parentID].HasMore {
			c.replies[parentID] = append(c.replies[parentID], confirmed.Clone())
		}
		e.logger.Debug("reply count rebased on confirm", zap.String("parent", parentID), zap.String("id", created.ID))
	}
	return confirmed
}

// EditComment оптимистично меняет текст. Тот же текст - ничего не делает.
func (e *Engine) EditComment(ctx context.Context, id, text string) (domain.Comment, error) {
	if err := domain.ValidateText(text); err != nil {
		return domain.Comment{}, err
	}

	c := e.cache
	c.mu.Lock()
	live, _, ok := c.locate(id)
	switch {
	case !ok:
		c.mu.Unlock()
		return domain.Comment{}, ErrUnknownComment
	case c.busy(id):
		c.mu.Unlock()
		return domain.Comment{}, ErrInFlight
	case live.Text == text:
		current := live.Clone()
		c.mu.Unlock()
		return current, nil
	}

	key := OpKey{ID: id, Kind: OpEdit}
	s := c.capture(key, id)
	live.Text = text
	live.UpdatedAt = e.now()
	c.inFlight[key] = struct{}{}
	c.commit()
	c.mu.Unlock()

	updated, err := e.exec.EditComment(ctx, id, text)
	if err != nil {
		e.rollback(s, err, id)
		return domain.Comment{}, err
	}

	confirmed := updated.Clone()
	e.reconcile(s, func(live *domain.Comment) {
		if live.ParentID != nil {
			pid := *live.ParentID
			confirmed.ParentID = &pid
		}
		confirmed.ReplyCount = live.ReplyCount
		*live = confirmed.Clone()
	})
	return confirmed, nil
}

// RequestDelete выдаёт токен подтверждения. Кэш не меняется.
func (e *Engine) RequestDelete(id string) (DeleteToken, error) {
	c := e.cache
	c.mu.RLock()
	_, _, ok := c.locate(id)
	busy := c.busy(id) || c.hasPendingReplies(id)
	c.mu.RUnlock()

	if !ok {
		return DeleteToken{}, ErrUnknownComment
	}
	if busy {
		return DeleteToken{}, ErrInFlight
	}

	t := DeleteToken{Value: e.newID(), CommentID: id}
	e.mu.Lock()
	e.pending[t.Value] = t
	e.mu.Unlock()
	return t, nil
}

// CancelDelete отзывает токен. Неизвестный токен игнорируется.
func (e *Engine) CancelDelete(t DeleteToken) {
	e.mu.Lock()
	delete(e.pending, t.Value)
	e.mu.Unlock()
}

// ConfirmDelete выполняет удаление по токену. Токен одноразовый и
// считается использованным даже при ошибке.
//
// Корневой комментарий удаляется вместе с загруженными ответами,
// ответ - с уменьшением reply_count родителя на единицу.
func (e *Engine) ConfirmDelete(ctx context.Context, t DeleteToken) error {
	e.mu.Lock()
	stored, ok := e.pending[t.Value]
	delete(e.pending, t.Value)
	e.mu.Unlock()
	if !ok || stored.CommentID != t.CommentID {
		return ErrInvalidToken
	}
	id := stored.CommentID

	c := e.cache
	c.mu.Lock()
	_, loc, found := c.locate(id)
	if !found {
		c.mu.Unlock()
		return ErrUnknownComment
	}
	// Ожидающие ответы попали бы в снимок поддерева и пережили бы откат
	if c.busy(id) || c.hasPendingReplies(id) {
		c.mu.Unlock()
		return ErrInFlight
	}

	key := OpKey{ID: id, Kind: OpDelete}
	s := c.capture(key, id)
	c.remove(id)
	if loc.parentID == "" {
		c.captureSubtree(s)
		c.discardReplies(id)
		before := c.cursor.Total
		c.cursor.Total = floor(before - 1)
		c.track(s, "", c.cursor.Total-before)
	} else {
		c.track(s, loc.parentID, c.adjustReplyCount(loc.parentID, -1))
	}
	c.inFlight[key] = struct{}{}
	c.commit()
	c.mu.Unlock()

	if err := e.exec.DeleteComment(ctx, id); err != nil {
		e.rollback(s, err, id)
		return err
	}

	// Refresh или очередная страница могли вернуть комментарий, пока удаление шло
	c.mu.Lock()
	delete(c.inFlight, key)
	c.dropMissing(id)
	c.commit()
	c.mu.Unlock()
	return nil
}

// ToggleLike оптимистично переключает лайк зрителя. Пока переключение
// по комментарию не подтверждено, следующее отклоняется с ErrInFlight.
func (e *Engine) ToggleLike(ctx context.Context, id string) (domain.LikeState, error) {
	c := e.cache
	c.mu.Lock()
	live, _, ok := c.locate(id)
	if !ok {
		c.mu.Unlock()
		return domain.LikeState{}, ErrUnknownComment
	}
	if c.busy(id) {
		c.mu.Unlock()
		return domain.LikeState{}, ErrInFlight
	}

	key := OpKey{ID: id, Kind: OpLike}
	s := c.capture(key, id)
	if live.LikedByViewer {
		live.LikeCount = floor(live.LikeCount - 1)
	} else {
		live.LikeCount++
	}
	live.LikedByViewer = !live.LikedByViewer
	c.inFlight[key] = struct{}{}
	c.commit()
	c.mu.Unlock()

	st, err := e.exec.ToggleLike(ctx, id)
	if err != nil {
		e.rollback(s, err, id)
		return domain.LikeState{}, err
	}

	e.reconcile(s, func(live *domain.Comment) {
		live.LikedByViewer = st.Liked
		live.LikeCount = st.LikeCount
	})
	return *st, nil
}

// ReportComment отправляет жалобу. Кэш не меняется, кроме случая,
// когда комментария на сервере уже нет.
func (e *Engine) ReportComment(ctx context.Context, id string, reason domain.ReportReason) error {
	if !reason.Valid() {
		return domain.ErrInvalidReason
	}

	c := e.cache
	key := OpKey{ID: id, Kind: OpReport}
	c.mu.Lock()
	if _, _, ok := c.locate(id); !ok {
		c.mu.Unlock()
		return ErrUnknownComment
	}
	_, reporting := c.inFlight[key]
	_, creating := c.inFlight[OpKey{ID: id, Kind: OpCreate}]
	if reporting || creating {
		c.mu.Unlock()
		return ErrInFlight
	}
	c.inFlight[key] = struct{}{}
	c.commit()
	c.mu.Unlock()

	err := e.exec.ReportComment(ctx, id, reason)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.commit()
	delete(c.inFlight, key)
	if err != nil {
		e.logger.Warn("report failed", zap.String("id", id), zap.Error(err))
		if domain.IsNotFound(err) {
			c.dropMissing(id)
		}
	}
	return err
}

// reconcile применяет подтверждённый результат к живой сущности.
// Подтверждение новее любого чтения, начатого до него, поэтому применяется
// и после refresh. Если сущность исчезла, ничего не делает.
func (e *Engine) reconcile(s *mutationSnapshot, apply func(live *domain.Comment)) {
	c := e.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.commit()

	delete(c.inFlight, s.op)
	if live, _, ok := c.locate(s.entity.id); ok {
		apply(live)
	}
}
