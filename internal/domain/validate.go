package domain

import (
	"strings"

	"github.com/rivo/uniseg"
)

// MaxTextGraphemes - максимальная длина текста комментария в графемах.
const MaxTextGraphemes = 2000

// ValidateText проверяет текст комментария перед любым оптимистичным изменением.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if uniseg.GraphemeClusterCount(text) > MaxTextGraphemes {
		return ErrTextTooLong
	}
	return nil
}
