package gosortable

import "context"

// Store is the record store collaborator of the Engine. It executes
// aggregate, ordered and update queries on the rank column of a single
// collection. Every method is restricted to the given partition.
//
// The Engine performs no retries and does not translate store errors,
// except that a missing record must be reported as ErrNotFound by Find.
type Store[K comparable, T any] interface {
	// Max returns the highest value of column, 0 for an empty partition.
	Max(ctx context.Context, p Partition, column string) (int64, error)
	// Min returns the lowest value of column, 0 for an empty partition.
	Min(ctx context.Context, p Partition, column string) (int64, error)
	// Ordered lists records ordered by column in the given direction, ties
	// broken by key in the same direction. cond, if not nil, filters on
	// column. limit may be NoLimit.
	Ordered(ctx context.Context, p Partition, column string, cond *RankCondition, direction Direction, limit int) ([]T, error)
	// After lists records following the position (rank, key) when the
	// partition is listed by column in the given direction, ties broken by
	// key. limit may be NoLimit.
	After(ctx context.Context, p Partition, column string, direction Direction, rank int64, key K, limit int) ([]T, error)
	// Find loads a single record by key.
	Find(ctx context.Context, p Partition, key K) (T, error)
	// UpdateColumn sets column of the record identified by key.
	UpdateColumn(ctx context.Context, p Partition, key K, column string, value any) error
	// UpdateColumnBy sets column of the records whose match column equals
	// matchValue.
	UpdateColumnBy(ctx context.Context, p Partition, match string, matchValue any, column string, value any) error
	// Increment adds delta to column for every record but exclude whose
	// column satisfies cond. Returns the number of affected records.
	Increment(ctx context.Context, p Partition, exclude K, column string, cond RankCondition, delta int64) (int64, error)
	// UpdateExcluding sets column for every record whose key is not in
	// exclude. Returns the number of affected records.
	UpdateExcluding(ctx context.Context, p Partition, exclude []K, column string, value any) (int64, error)
	// Transaction runs fn against a store bound to a single transaction.
	Transaction(ctx context.Context, fn func(Store[K, T]) error) error
}

// Creator is implemented by stores that can persist a new record, see
// Engine.Create.
type Creator[T any] interface {
	Create(ctx context.Context, rec T) error
}
