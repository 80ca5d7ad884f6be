package main

import (
	"context"
	"fmt"

	"github.com/xevi10h/redbee-expo-sub000/internal/domain"
	"github.com/xevi10h/redbee-expo-sub000/internal/storage"
)

const demoContentID = "video-1"

var demoAuthors = []domain.Author{
	{ID: "user-1", DisplayName: "Марина"},
	{ID: "user-2", DisplayName: "Игорь"},
	{ID: "user-3", DisplayName: "Lucía"},
}

// fillWithMockData создаёт демо-ветку: корневые комментарии, ответы и лайки.
func fillWithMockData(ctx context.Context, s storage.Storage) error {
	roots := []string{
		"Отличное видео! Очень информативно.",
		"А будет продолжение?",
		"Музыка в конце просто огонь 🔥",
	}

	for i, text := range roots {
		root, err := s.CreateComment(ctx, &domain.Comment{
			ContentID: demoContentID,
			Author:    demoAuthors[i%len(demoAuthors)],
			Text:      text,
		})
		if err != nil {
			return fmt.Errorf("fillWithMockData: create comment %d: %w", i+1, err)
		}

		// На каждый корневой комментарий отвечают остальные авторы
		for j := 1; j < len(demoAuthors); j++ {
			author := demoAuthors[(i+j)%len(demoAuthors)]
			_, err := s.CreateComment(ctx, &domain.Comment{
				ContentID: demoContentID,
				ParentID:  &root.ID,
				Author:    author,
				Text:      fmt.Sprintf("Ответ #%d от %s", j, author.DisplayName),
			})
			if err != nil {
				return fmt.Errorf("fillWithMockData: create reply to %s: %w", root.ID, err)
			}
			if _, err := s.ToggleLike(ctx, root.ID, author.ID); err != nil {
				return fmt.Errorf("fillWithMockData: like %s: %w", root.ID, err)
			}
		}
	}
	return nil
}
