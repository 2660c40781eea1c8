package gosortable

import "fmt"

// MoveFlags tells which directional moves are currently legal for a record.
// It is meant to drive UI affordances (enabled "up"/"down" buttons).
type MoveFlags int

const (
	CannotMove MoveFlags = iota
	CanMoveDownOnly
	CanMoveUpOnly
	CanMoveBoth
)

func (f MoveFlags) Valid() bool {
	return f >= CannotMove && f <= CanMoveBoth
}

func (f MoveFlags) CanMoveUp() bool {
	return f == CanMoveUpOnly || f == CanMoveBoth
}

func (f MoveFlags) CanMoveDown() bool {
	return f == CanMoveDownOnly || f == CanMoveBoth
}

func (f MoveFlags) String() string {
	switch f {
	case CannotMove:
		return "none"
	case CanMoveDownOnly:
		return "down"
	case CanMoveUpOnly:
		return "up"
	case CanMoveBoth:
		return "both"
	default:
		return fmt.Sprintf("MoveFlags(%d)", int(f))
	}
}

// FlagsAt returns the flags of the record at position index (0 is the head)
// in a list of size records.
func FlagsAt(index, size int) MoveFlags {
	switch {
	case size <= 1:
		return CannotMove
	case index == 0:
		return CanMoveDownOnly
	case index == size-1:
		return CanMoveUpOnly
	default:
		return CanMoveBoth
	}
}
