package gosortable

import "errors"

var (
	// ErrInvalidInput is returned when an operation receives arguments it
	// cannot interpret, e.g. a nil key list for SetNewOrder.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when an explicitly referenced record cannot be
	// loaded from the store.
	ErrNotFound          = errors.New("record not found")
	ErrInvalidConfig     = errors.New("invalid config")
	ErrUnsupportedColumn = errors.New("unsupported column")
	ErrLockTimeout       = errors.New("partition lock not acquired")
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
