package gosortable

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// MemoryStore implements Store in process. Records are shared with the
// caller, not copied: the store reads and writes ranks through the
// Orderable methods of the very values it was given.
//
// A record belongs to a partition when it implements Partitioned and its
// SortPartition contains every predicate of the queried partition. Records
// that do not implement Partitioned belong to every partition.
//
// Transaction serialises transactions and restores ranks and flags when fn
// fails. Records created within a failed transaction are kept.
type MemoryStore[K cmp.Ordered, T Orderable[K]] struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	rankColumn  string
	flagsColumn string
	keyColumn   string
	records     map[K]T
}

// NewMemoryStore creates a store resolving column names from cfg.
func NewMemoryStore[K cmp.Ordered, T Orderable[K]](cfg Config) *MemoryStore[K, T] {
	cfg = cfg.withDefaults(DefaultConfig())

	return &MemoryStore[K, T]{
		rankColumn:  cfg.RankColumn,
		flagsColumn: cfg.FlagsColumn,
		keyColumn:   cfg.KeyColumn,
		records:     make(map[K]T),
	}
}

// Add puts records into the store, replacing records with equal keys.
func (s *MemoryStore[K, T]) Add(records ...T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		s.records[rec.GetKey()] = rec
	}
}

// Create - implements Creator.
func (s *MemoryStore[K, T]) Create(_ context.Context, rec T) error {
	s.Add(rec)

	return nil
}

// Delete removes the record with the given key.
func (s *MemoryStore[K, T]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
}

// Len returns the number of stored records.
func (s *MemoryStore[K, T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

func (s *MemoryStore[K, T]) inPartition(rec T, p Partition) bool {
	if len(p) == 0 {
		return true
	}

	partitioned, ok := any(rec).(Partitioned)
	if !ok {
		return true
	}

	return p.Contains(partitioned.SortPartition())
}

// selectLocked returns the records of p matching filter. s.mu must be held.
func (s *MemoryStore[K, T]) selectLocked(p Partition, filter func(T) bool) []T {
	ret := make([]T, 0, len(s.records))
	for _, rec := range s.records {
		if s.inPartition(rec, p) && (filter == nil || filter(rec)) {
			ret = append(ret, rec)
		}
	}

	return ret
}

func (s *MemoryStore[K, T]) checkRankColumn(column string) error {
	if column != s.rankColumn {
		return fmt.Errorf("%w: '%s'", ErrUnsupportedColumn, column)
	}

	return nil
}

func (s *MemoryStore[K, T]) aggregate(p Partition, column string, pick func(a, b int64) int64) (int64, error) {
	if err := s.checkRankColumn(column); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.selectLocked(p, nil)
	if len(records) == 0 {
		return 0, nil
	}

	return lo.Reduce(records[1:], func(agg int64, rec T, _ int) int64 {
		return pick(agg, rec.GetRank())
	}, records[0].GetRank()), nil
}

// Max - implements Store.
func (s *MemoryStore[K, T]) Max(_ context.Context, p Partition, column string) (int64, error) {
	return s.aggregate(p, column, func(a, b int64) int64 { return max(a, b) })
}

// Min - implements Store.
func (s *MemoryStore[K, T]) Min(_ context.Context, p Partition, column string) (int64, error) {
	return s.aggregate(p, column, func(a, b int64) int64 { return min(a, b) })
}

// Ordered - implements Store.
func (s *MemoryStore[K, T]) Ordered(
	_ context.Context,
	p Partition,
	column string,
	cond *RankCondition,
	direction Direction,
	limit int,
) ([]T, error) {
	if err := s.checkRankColumn(column); err != nil {
		return nil, err
	}

	if !direction.Valid() {
		return nil, fmt.Errorf("invalid ordering direction '%s'", direction)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.selectLocked(p, func(rec T) bool {
		return cond == nil || cond.Matches(rec.GetRank())
	})

	return sortRecords(records, direction, limit), nil
}

// After - implements Store.
func (s *MemoryStore[K, T]) After(
	_ context.Context,
	p Partition,
	column string,
	direction Direction,
	rank int64,
	key K,
	limit int,
) ([]T, error) {
	if err := s.checkRankColumn(column); err != nil {
		return nil, err
	}

	if !direction.Valid() {
		return nil, fmt.Errorf("invalid ordering direction '%s'", direction)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.selectLocked(p, func(rec T) bool {
		ret := cmp.Or(cmp.Compare(rec.GetRank(), rank), cmp.Compare(rec.GetKey(), key))
		return lo.Ternary(direction == DirectionASC, ret > 0, ret < 0)
	})

	return sortRecords(records, direction, limit), nil
}

// sortRecords orders records by rank then key in direction and applies limit.
func sortRecords[K cmp.Ordered, T Orderable[K]](records []T, direction Direction, limit int) []T {
	slices.SortFunc(records, func(a, b T) int {
		ret := cmp.Or(cmp.Compare(a.GetRank(), b.GetRank()), cmp.Compare(a.GetKey(), b.GetKey()))
		return lo.Ternary(direction == DirectionASC, ret, -ret)
	})

	if limit != NoLimit && limit < len(records) {
		records = records[:limit]
	}

	return records
}

// Find - implements Store.
func (s *MemoryStore[K, T]) Find(_ context.Context, p Partition, key K) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok || !s.inPartition(rec, p) {
		return lo.Empty[T](), fmt.Errorf("%w: %s = %v", ErrNotFound, s.keyColumn, key)
	}

	return rec, nil
}

// setLocked writes column of rec. s.mu must be held.
func (s *MemoryStore[K, T]) setLocked(rec T, column string, value any) error {
	switch column {
	case s.rankColumn:
		rank, err := toInt64(value)
		if err != nil {
			return err
		}
		rec.SetRank(rank)
	case s.flagsColumn:
		flagged, ok := any(rec).(Flagged)
		if !ok {
			return fmt.Errorf("%w: record %v does not carry flags", ErrUnsupportedColumn, rec.GetKey())
		}
		flags, err := toInt64(value)
		if err != nil {
			return err
		}
		flagged.SetMoveFlags(MoveFlags(flags))
	default:
		return fmt.Errorf("%w: '%s'", ErrUnsupportedColumn, column)
	}

	return nil
}

// UpdateColumn - implements Store.
func (s *MemoryStore[K, T]) UpdateColumn(_ context.Context, p Partition, key K, column string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || !s.inPartition(rec, p) {
		return nil
	}

	return s.setLocked(rec, column, value)
}

// UpdateColumnBy - implements Store. Only the key column can be matched.
func (s *MemoryStore[K, T]) UpdateColumnBy(
	ctx context.Context,
	p Partition,
	match string,
	matchValue any,
	column string,
	value any,
) error {
	if match != s.keyColumn {
		return fmt.Errorf("%w: cannot match on '%s'", ErrUnsupportedColumn, match)
	}

	key, ok := matchValue.(K)
	if !ok {
		return fmt.Errorf("%w: key %v has type %T", ErrInvalidInput, matchValue, matchValue)
	}

	return s.UpdateColumn(ctx, p, key, column, value)
}

// Increment - implements Store.
func (s *MemoryStore[K, T]) Increment(
	_ context.Context,
	p Partition,
	exclude K,
	column string,
	cond RankCondition,
	delta int64,
) (int64, error) {
	if err := s.checkRankColumn(column); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.selectLocked(p, func(rec T) bool {
		return rec.GetKey() != exclude && cond.Matches(rec.GetRank())
	})
	for _, rec := range records {
		rec.SetRank(rec.GetRank() + delta)
	}

	return int64(len(records)), nil
}

// UpdateExcluding - implements Store.
func (s *MemoryStore[K, T]) UpdateExcluding(
	_ context.Context,
	p Partition,
	exclude []K,
	column string,
	value any,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.selectLocked(p, func(rec T) bool {
		return !lo.Contains(exclude, rec.GetKey())
	})
	for _, rec := range records {
		if err := s.setLocked(rec, column, value); err != nil {
			return 0, err
		}
	}

	return int64(len(records)), nil
}

type memorySnapshot struct {
	rank  int64
	flags *MoveFlags
}

// Transaction - implements Store.
func (s *MemoryStore[K, T]) Transaction(_ context.Context, fn func(Store[K, T]) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snapshot := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snapshot)
		return err
	}

	return nil
}

func (s *MemoryStore[K, T]) snapshot() map[K]memorySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ret := make(map[K]memorySnapshot, len(s.records))
	for key, rec := range s.records {
		snap := memorySnapshot{rank: rec.GetRank()}
		if flagged, ok := any(rec).(Flagged); ok {
			snap.flags = lo.ToPtr(flagged.GetMoveFlags())
		}
		ret[key] = snap
	}

	return ret
}

func (s *MemoryStore[K, T]) restore(snapshot map[K]memorySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, snap := range snapshot {
		rec, ok := s.records[key]
		if !ok {
			continue
		}

		rec.SetRank(snap.rank)
		if flagged, ok := any(rec).(Flagged); ok && snap.flags != nil {
			flagged.SetMoveFlags(*snap.flags)
		}
	}
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case MoveFlags:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("%w: cannot use %v (%T) as integer", ErrInvalidInput, value, value)
	}
}
