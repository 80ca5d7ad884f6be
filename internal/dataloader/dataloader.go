package dataloader

import (
	"context"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader"

	"github.com/xevi10h/redbee-expo-sub000/internal/domain"
	"github.com/xevi10h/redbee-expo-sub000/internal/storage"
)

// DefaultWait - окно, в течение которого запросы первых страниц собираются в один батч.
const DefaultWait = 2 * time.Millisecond

// RepliesLoader собирает запросы первой страницы ответов от разных родителей
// в один вызов хранилища. Результаты не кэшируются: после сворачивания
// и повторного раскрытия ветки ответы всегда читаются заново.
type RepliesLoader struct {
	loader *dataloader.Loader
}

// NewRepliesLoader создаёт лоадер для одного зрителя и размера страницы.
func NewRepliesLoader(batch storage.BatchReplies, viewerID string, pageSize int, wait time.Duration) *RepliesLoader {
	// Создаем батч-функцию для лоадера
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		// ctx принадлежит первому ключу батча: его отмена батч не отменяет, дедлайн сохраняется
		ctx, cancel := detach(ctx)
		defer cancel()

		// Преобразуем ключи в []string
		parentIDs := make([]string, len(keys))
		for i, key := range keys {
			parentIDs[i] = key.String()
		}

		// Вызываем метод хранилища, который делает ОДИН запрос
		pages, err := batch.FirstRepliesByParentIDs(ctx, parentIDs, viewerID, pageSize)
		results := make([]*dataloader.Result, len(keys))
		if err != nil {
			// В случае ошибки, возвращаем ее для всех ключей
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Формируем результат в том же порядке, что и ключи
		for i, parentID := range parentIDs {
			page, ok := pages[parentID]
			if !ok {
				results[i] = &dataloader.Result{Error: fmt.Errorf("replies of %s: %w", parentID, domain.ErrNotFound)}
				continue
			}
			results[i] = &dataloader.Result{Data: page}
		}
		return results
	}

	return &RepliesLoader{
		loader: dataloader.NewBatchedLoader(batchFn,
			dataloader.WithWait(wait),
			dataloader.WithCache(&dataloader.NoCache{}),
		),
	}
}

func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(detached, deadline)
	}
	return detached, func() {}
}

// LoadAsync ставит родителя в очередь батча и возвращает функцию ожидания результата.
func (l *RepliesLoader) LoadAsync(ctx context.Context, parentID string) func() (*domain.Page, error) {
	thunk := l.loader.Load(ctx, dataloader.StringKey(parentID))
	return func() (*domain.Page, error) {
		data, err := thunk()
		if err != nil {
			return nil, err
		}
		return data.(*domain.Page), nil
	}
}

// Load возвращает первую страницу ответов родителя.
func (l *RepliesLoader) Load(ctx context.Context, parentID string) (*domain.Page, error) {
	return l.LoadAsync(ctx, parentID)()
}
