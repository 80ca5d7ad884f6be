package thread

import "errors"

// OpKind - вид операции, для которой ведётся флаг загрузки.
type OpKind string

const (
	OpLoadPage    OpKind = "load-page"
	OpLoadReplies OpKind = "load-replies"
	OpCreate      OpKind = "create"
	OpEdit        OpKind = "edit"
	OpDelete      OpKind = "delete"
	OpLike        OpKind = "like"
	OpReport      OpKind = "report"
)

// mutating сообщает, меняет ли операция саму сущность.
func (k OpKind) mutating() bool {
	switch k {
	case OpCreate, OpEdit, OpDelete, OpLike:
		return true
	}
	return false
}

// OpKey идентифицирует выполняющуюся операцию: сущность и вид.
// Для постраничного чтения верхнего уровня ID пустой.
type OpKey struct {
	ID   string `json:"id,omitempty"`
	Kind OpKind `json:"kind"`
}

var pageKey = OpKey{Kind: OpLoadPage}

var (
	// ErrInFlight - по этой сущности уже выполняется операция
	ErrInFlight = errors.New("operation already in flight")

	// ErrUnknownComment - комментария нет в локальном кэше
	ErrUnknownComment = errors.New("comment is not in the thread cache")

	// ErrInvalidToken - токен подтверждения удаления неизвестен или уже использован
	ErrInvalidToken = errors.New("invalid or used delete confirmation token")
)
