package thread

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xevi10h/redbee-expo-sub000/internal/domain"
)

// Cursor - состояние постраничного чтения одной коллекции.
// Page - номер следующей страницы для загрузки.
type Cursor struct {
	Page    int  `json:"page"`
	HasMore bool `json:"hasMore"`
	Total   int  `json:"total"`
}

// Cache хранит известную часть ветки комментариев.
// Писатель один - Engine; читателей сколько угодно. Каждое изменение
// публикуется целиком под одной блокировкой, так что читатель никогда
// не видит половину многопольного обновления.
type Cache struct {
	mu sync.RWMutex

	topLevel     []domain.Comment
	replies      map[string][]domain.Comment // отсутствие ключа = ответы не загружены
	cursor       Cursor
	replyCursors map[string]Cursor

	inFlight  map[OpKey]struct{}
	pageErr   *pageFailure
	replyErrs map[string]error

	// временный id ожидающего ответа -> id родителя
	pendingReplies map[string]string

	// epoch растёт при каждом refresh: всё, что было начато раньше, устарело
	epoch uint64
	// countVer растёт, когда сервер перезаписывает счётчик ("" - общий total, иначе reply_count родителя)
	countVer map[string]uint64
	// replyVer растёт, когда список ответов родителя заменяется целиком или сбрасывается
	replyVer map[string]uint64

	version uint64
}

type pageFailure struct {
	refresh bool
	err     error
}

// NewCache создаёт пустой кэш. До первой загрузки считается, что страницы есть.
func NewCache() *Cache {
	return &Cache{
		replies:        make(map[string][]domain.Comment),
		cursor:         Cursor{HasMore: true},
		replyCursors:   make(map[string]Cursor),
		inFlight:       make(map[OpKey]struct{}),
		replyErrs:      make(map[string]error),
		pendingReplies: make(map[string]string),
		countVer:       make(map[string]uint64),
		replyVer:       make(map[string]uint64),
	}
}

// Snapshot - копия кэша только для чтения.
type Snapshot struct {
	TopLevel     []domain.Comment            `json:"topLevel"`
	Replies      map[string][]domain.Comment `json:"replies"`
	Cursor       Cursor                      `json:"cursor"`
	ReplyCursors map[string]Cursor           `json:"replyCursors"`
	InFlight     []OpKey                     `json:"inFlight"`
	PageError    error                       `json:"-"`
	ReplyErrors  map[string]error            `json:"-"`
	Version      uint64                      `json:"version"`
}

// Snapshot возвращает глубокую копию текущего состояния.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		TopLevel:     cloneComments(c.topLevel),
		Replies:      make(map[string][]domain.Comment, len(c.replies)),
		Cursor:       c.cursor,
		ReplyCursors: make(map[string]Cursor, len(c.replyCursors)),
		InFlight:     make([]OpKey, 0, len(c.inFlight)),
		ReplyErrors:  make(map[string]error, len(c.replyErrs)),
		Version:      c.version,
	}
	for p, list := range c.replies {
		s.Replies[p] = cloneComments(list)
	}
	for p, cur := range c.replyCursors {
		s.ReplyCursors[p] = cur
	}
	for k := range c.inFlight {
		s.InFlight = append(s.InFlight, k)
	}
	sort.Slice(s.InFlight, func(i, j int) bool {
		if s.InFlight[i].ID != s.InFlight[j].ID {
			return s.InFlight[i].ID < s.InFlight[j].ID
		}
		return s.InFlight[i].Kind < s.InFlight[j].Kind
	})
	for p, err := range c.replyErrs {
		s.ReplyErrors[p] = err
	}
	if c.pageErr != nil {
		s.PageError = c.pageErr.err
	}
	return s
}

// HasLoadedReplies - единственное место, где различаются
// "ответы не загружены" и "загружены, но их ноль".
func (c *Cache) HasLoadedReplies(parentID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hasLoadedReplies(parentID)
}

func (c *Cache) hasLoadedReplies(parentID string) bool {
	_, ok := c.replies[parentID]
	return ok
}

// Comment возвращает копию комментария или ответа из кэша.
func (c *Cache) Comment(id string) (domain.Comment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cm, _, ok := c.locate(id); ok {
		return cm.Clone(), true
	}
	return domain.Comment{}, false
}

// InFlight сообщает, выполняется ли операция.
func (c *Cache) InFlight(key OpKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.inFlight[key]
	return ok
}

// PageError возвращает липкую ошибку постраничного чтения.
func (c *Cache) PageError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pageErr == nil {
		return nil
	}
	return c.pageErr.err
}

// ReplyError возвращает липкую ошибку загрузки ответов родителя.
func (c *Cache) ReplyError(parentID string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.replyErrs[parentID]
}

// Version растёт с каждым опубликованным изменением.
func (c *Cache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Dump выводит кэш в детерминированном текстовом виде.
func (c *Cache) Dump() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var b strings.Builder
	fmt.Fprintf(&b, "thread page=%d more=%t total=%d\n", c.cursor.Page, c.cursor.HasMore, c.cursor.Total)
	for _, cm := range c.topLevel {
		fmt.Fprintf(&b, "%s %q likes=%d liked=%t replies=%d\n", cm.ID, cm.Text, cm.LikeCount, cm.LikedByViewer, cm.ReplyCount)
		list, ok := c.replies[cm.ID]
		if !ok {
			continue
		}
		cur := c.replyCursors[cm.ID]
		fmt.Fprintf(&b, "  replies page=%d more=%t total=%d\n", cur.Page, cur.HasMore, cur.Total)
		for _, r := range list {
			fmt.Fprintf(&b, "  %s %q likes=%d liked=%t\n", r.ID, r.Text, r.LikeCount, r.LikedByViewer)
		}
	}
	keys := make([]string, 0, len(c.inFlight))
	for k := range c.inFlight {
		keys = append(keys, string(k.Kind)+":"+k.ID)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "in-flight %s\n", k)
	}
	return b.String()
}

// === Вспомогательные методы. Вызываются под блокировкой записи. ===

// location - позиция комментария: parentID пустой для верхнего уровня.
type location struct {
	parentID string
	index    int
}

func (c *Cache) locate(id string) (*domain.Comment, location, bool) {
	for i := range c.topLevel {
		if c.topLevel[i].ID == id {
			return &c.topLevel[i], location{index: i}, true
		}
	}
	for p, list := range c.replies {
		for i := range list {
			if list[i].ID == id {
				return &list[i], location{parentID: p, index: i}, true
			}
		}
	}
	return nil, location{}, false
}

func (c *Cache) topLevelComment(id string) (*domain.Comment, bool) {
	for i := range c.topLevel {
		if c.topLevel[i].ID == id {
			return &c.topLevel[i], true
		}
	}
	return nil, false
}

// busy сообщает, выполняется ли над сущностью изменяющая операция.
func (c *Cache) busy(id string) bool {
	for k := range c.inFlight {
		if k.ID == id && k.Kind.mutating() {
			return true
		}
	}
	return false
}

// remove удаляет комментарий из своей последовательности, не трогая счётчики.
func (c *Cache) remove(id string) (domain.Comment, location, bool) {
	cm, loc, ok := c.locate(id)
	if !ok {
		return domain.Comment{}, location{}, false
	}
	removed := cm.Clone()
	if loc.parentID == "" {
		c.topLevel = removeAt(c.topLevel, loc.index)
	} else {
		c.replies[loc.parentID] = removeAt(c.replies[loc.parentID], loc.index)
	}
	return removed, loc, true
}

// discardReplies сбрасывает загруженное поддерево родителя.
func (c *Cache) discardReplies(parentID string) {
	delete(c.replies, parentID)
	delete(c.replyCursors, parentID)
	delete(c.replyErrs, parentID)
	c.replyVer[parentID]++
}

// dropMissing удаляет сущность, которой больше нет на сервере,
// вместе с поддеревом и с поправкой счётчиков.
func (c *Cache) dropMissing(id string) {
	_, loc, ok := c.remove(id)
	if !ok {
		return
	}
	if loc.parentID == "" {
		c.discardReplies(id)
		c.cursor.Total = floor(c.cursor.Total - 1)
		return
	}
	c.adjustReplyCount(loc.parentID, -1)
}

// adjustReplyCount меняет reply_count родителя и total его курсора ответов одним шагом.
// Возвращает фактически применённое к reply_count изменение.
func (c *Cache) adjustReplyCount(parentID string, delta int) int {
	applied := 0
	if parent, ok := c.topLevelComment(parentID); ok {
		before := parent.ReplyCount
		parent.ReplyCount = floor(before + delta)
		applied = parent.ReplyCount - before
	}
	if cur, ok := c.replyCursors[parentID]; ok {
		cur.Total = floor(cur.Total + delta)
		c.replyCursors[parentID] = cur
	}
	return applied
}

// appendUnique добавляет комментарии в конец, пропуская уже известные id,
// но перед ещё не подтверждёнными локальными вставками.
func (c *Cache) appendUnique(list []domain.Comment, incoming []domain.Comment) []domain.Comment {
	seen := make(map[string]struct{}, len(list)+len(incoming))
	for _, cm := range list {
		seen[cm.ID] = struct{}{}
	}

	tail := len(list)
	for tail > 0 {
		if _, pending := c.inFlight[OpKey{ID: list[tail-1].ID, Kind: OpCreate}]; !pending {
			break
		}
		tail--
	}

	fresh := make([]domain.Comment, 0, len(incoming))
	for _, cm := range incoming {
		if _, dup := seen[cm.ID]; dup {
			continue
		}
		seen[cm.ID] = struct{}{}
		fresh = append(fresh, cm.Clone())
	}

	out := make([]domain.Comment, 0, len(list)+len(fresh))
	out = append(out, list[:tail]...)
	out = append(out, fresh...)
	out = append(out, list[tail:]...)
	return out
}

func (c *Cache) commit() {
	c.version++
}

func cloneComments(list []domain.Comment) []domain.Comment {
	out := make([]domain.Comment, len(list))
	for i, cm := range list {
		out[i] = cm.Clone()
	}
	return out
}

func removeAt(list []domain.Comment, i int) []domain.Comment {
	out := make([]domain.Comment, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}

func insertAt(list []domain.Comment, i int, cm domain.Comment) []domain.Comment {
	if i < 0 || i > len(list) {
		i = len(list)
	}
	out := make([]domain.Comment, 0, len(list)+1)
	out = append(out, list[:i]...)
	out = append(out, cm)
	return append(out, list[i:]...)
}

func floor(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// parentPending сообщает, что родитель ещё не создан на сервере или уже удаляется.
func (c *Cache) parentPending(parentID string) bool {
	_, creating := c.inFlight[OpKey{ID: parentID, Kind: OpCreate}]
	_, deleting := c.inFlight[OpKey{ID: parentID, Kind: OpDelete}]
	return creating || deleting
}

// hasPendingReplies сообщает, ждут ли подтверждения ответы, созданные под parentID.
func (c *Cache) hasPendingReplies(parentID string) bool {
	for _, p := range c.pendingReplies {
		if p == parentID {
			return true
		}
	}
	return false
}
