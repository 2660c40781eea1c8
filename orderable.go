package gosortable

// Orderable is implemented by every record type the Engine can rank.
type Orderable[K comparable] interface {
	GetKey() K
	GetRank() int64
	SetRank(rank int64)
}

// Flagged is implemented by records carrying MoveFlags. When flag
// maintenance is enabled, swapping two Flagged records swaps their flags too.
type Flagged interface {
	GetMoveFlags() MoveFlags
	SetMoveFlags(flags MoveFlags)
}

// Partitioned is implemented by records that belong to a group. The
// returned partition is merged over Config.Partition.
type Partitioned interface {
	SortPartition() Partition
}
