package thread

import (
	"github.com/xevi10h/redbee-expo-sub000/internal/domain"
)

// entitySnapshot - состояние одного комментария до изменения.
type entitySnapshot struct {
	id       string
	parentID string          // пустой для верхнего уровня
	prior    *domain.Comment // nil: сущности не было (ожидающее создание)
	index    int
}

// subtreeSnapshot - загруженные ответы удаляемого корневого комментария.
type subtreeSnapshot struct {
	loaded  bool
	replies []domain.Comment
	cursor  Cursor
	err     error
}

// counterDelta - изменение счётчика. key пустой для общего total,
// иначе это id родителя, чей reply_count изменён.
type counterDelta struct {
	key     string
	delta   int
	version uint64
}

// mutationSnapshot хранит всё, что нужно для точного отката одной мутации.
type mutationSnapshot struct {
	op       OpKey
	epoch    uint64
	entity   entitySnapshot
	subtree  *subtreeSnapshot
	counter  counterDelta
	replyVer uint64 // версия списка ответов родителя на момент изменения
}

// capture фиксирует состояние сущности id перед изменением.
// Сущность должна присутствовать в кэше.
func (c *Cache) capture(op OpKey, id string) *mutationSnapshot {
	s := &mutationSnapshot{op: op, epoch: c.epoch}
	cm, loc, ok := c.locate(id)
	if !ok {
		s.entity = entitySnapshot{id: id, index: -1}
		return s
	}
	prior := cm.Clone()
	s.entity = entitySnapshot{id: id, parentID: loc.parentID, prior: &prior, index: loc.index}
	if loc.parentID != "" {
		s.replyVer = c.replyVer[loc.parentID]
	}
	return s
}

// captureCreate фиксирует "отсутствие" будущей локальной сущности.
func (c *Cache) captureCreate(op OpKey, parentID string) *mutationSnapshot {
	s := &mutationSnapshot{
		op:     op,
		epoch:  c.epoch,
		entity: entitySnapshot{id: op.ID, parentID: parentID, index: -1},
	}
	if parentID != "" {
		s.replyVer = c.replyVer[parentID]
	}
	return s
}

// captureSubtree дополнительно сохраняет загруженные ответы корневого комментария.
func (c *Cache) captureSubtree(s *mutationSnapshot) {
	id := s.entity.id
	list, loaded := c.replies[id]
	s.subtree = &subtreeSnapshot{
		loaded:  loaded,
		replies: cloneComments(list),
		cursor:  c.replyCursors[id],
		err:     c.replyErrs[id],
	}
}

// track запоминает изменение счётчика вместе с его текущей версией.
func (c *Cache) track(s *mutationSnapshot, key string, delta int) {
	s.counter = counterDelta{key: key, delta: delta, version: c.countVer[key]}
}

// restore возвращает затронутые сущности в состояние из снимка.
// Если ветка была перечитана (refresh), свежие данные сервера важнее
// и откат ничего не делает. Счётчики откатываются обратной дельтой,
// только если сервер не перезаписал их после изменения: так независимые
// мутации одного родителя не затирают друг друга.
func (c *Cache) restore(s *mutationSnapshot) {
	if s.epoch != c.epoch {
		return
	}

	ent := s.entity
	switch live, _, ok := c.locate(ent.id); {
	case ent.prior == nil:
		c.remove(ent.id)
	case ok:
		restored := ent.prior.Clone()
		// reply_count ведётся дельтами отдельно от снимка сущности
		restored.ReplyCount = live.ReplyCount
		*live = restored
	case ent.parentID == "":
		c.topLevel = insertAt(c.topLevel, ent.index, ent.prior.Clone())
	default:
		if _, parentOK := c.topLevelComment(ent.parentID); parentOK &&
			c.hasLoadedReplies(ent.parentID) && c.replyVer[ent.parentID] == s.replyVer {
			c.replies[ent.parentID] = insertAt(c.replies[ent.parentID], ent.index, ent.prior.Clone())
		}
	}

	if s.subtree != nil {
		if s.subtree.loaded {
			c.replies[ent.id] = cloneComments(s.subtree.replies)
			c.replyCursors[ent.id] = s.subtree.cursor
		}
		if s.subtree.err != nil {
			c.replyErrs[ent.id] = s.subtree.err
		}
		c.replyVer[ent.id]++
	}

	d := s.counter
	if d.delta == 0 || c.countVer[d.key] != d.version {
		return
	}
	if d.key == "" {
		c.cursor.Total = floor(c.cursor.Total - d.delta)
		return
	}
	if parent, ok := c.topLevelComment(d.key); ok {
		parent.ReplyCount = floor(parent.ReplyCount - d.delta)
	}
	if cur, ok := c.replyCursors[d.key]; ok && c.replyVer[d.key] == s.replyVer {
		cur.Total = floor(cur.Total - d.delta)
		c.replyCursors[d.key] = cur
	}
}
