package domain

import "errors"

var (
	// ErrEmptyText - текст пустой или состоит из пробелов
	ErrEmptyText = errors.New("comment text cannot be empty")

	// ErrTextTooLong - текст длиннее MaxTextGraphemes
	ErrTextTooLong = errors.New("comment text is too long")

	// ErrInvalidReason - неизвестная причина жалобы
	ErrInvalidReason = errors.New("invalid report reason")

	// ErrNestedReply - ответы не могут иметь собственных ответов
	ErrNestedReply = errors.New("replies cannot have replies")

	// ErrNotFound - комментарий (или его родитель) не существует на сервере
	ErrNotFound = errors.New("comment not found")

	// ErrUnauthorized - зритель не аутентифицирован или не имеет доступа
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotOwner - зритель не является автором комментария
	ErrNotOwner = errors.New("viewer is not the comment author")

	// ErrTransient - сетевая или серверная ошибка, операцию можно повторить
	ErrTransient = errors.New("transient failure")
)

// IsValidation проверяет, что ошибка отклонена до любого удалённого вызова.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyText) ||
		errors.Is(err, ErrTextTooLong) ||
		errors.Is(err, ErrInvalidReason) ||
		errors.Is(err, ErrNestedReply)
}

// IsAuthorization проверяет ошибки доступа. Повторять такие операции бессмысленно.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotOwner)
}

// IsNotFound проверяет, что сущность удалена кем-то другим.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransient проверяет, можно ли повторить операцию.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
