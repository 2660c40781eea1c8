package gosortable

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
)

const defaultLockNamespace = "default"

type options struct {
	logger        *slog.Logger
	locker        Locker
	metrics       *Metrics
	notifier      Notifier
	lockNamespace string
}

// Option configures an Engine.
type Option func(*options)

// WithLogger sets the engine logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLocker serialises operations per partition with locker. Create is
// covered, BeforeCreate is not: it runs inside the caller's insert.
func WithLocker(locker Locker) Option {
	return func(o *options) {
		o.locker = locker
	}
}

// WithLockNamespace prefixes lock keys, so that equal partitions of
// different collections do not share a lock. Defaults to "default".
func WithLockNamespace(namespace string) Option {
	return func(o *options) {
		o.lockNamespace = namespace
	}
}

// WithMetrics records operation metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WithNotifier reports completed operations to notifier.
func WithNotifier(notifier Notifier) Option {
	return func(o *options) {
		o.notifier = notifier
	}
}

// Engine maintains the rank column of one collection through a Store.
//
// Records passed to the Engine must hold their current rank: neighbours are
// looked up relative to rec.GetRank(). Records are updated in memory once
// the store writes of an operation succeeded; a failed or rolled back
// operation leaves them untouched.
type Engine[K comparable, T Orderable[K]] struct {
	store Store[K, T]
	cfg   Config
	opts  options
}

// NewEngine validates cfg, fills its defaults and creates an Engine.
func NewEngine[K comparable, T Orderable[K]](store Store[K, T], cfg Config, opts ...Option) (*Engine[K, T], error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil store", ErrInvalidConfig)
	}

	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	o := options{lockNamespace: defaultLockNamespace}
	for _, opt := range opts {
		opt(&o)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = o.logger.With("component", "sortable")

	return &Engine[K, T]{
		store: store,
		cfg:   cfg,
		opts:  o,
	}, nil
}

// WithStore returns a copy of the engine bound to store, e.g. a store
// bound to the transaction of a gorm hook.
func (e *Engine[K, T]) WithStore(store Store[K, T]) *Engine[K, T] {
	ret := *e
	ret.store = store

	return &ret
}

// Config returns the resolved configuration.
func (e *Engine[K, T]) Config() Config {
	return e.cfg
}

// Store returns the record store.
func (e *Engine[K, T]) Store() Store[K, T] {
	return e.store
}

func (e *Engine[K, T]) partition(p Partition) Partition {
	return e.cfg.Partition.Merge(p)
}

// partitionOf returns the partition rec belongs to.
func (e *Engine[K, T]) partitionOf(rec T) Partition {
	if partitioned, ok := any(rec).(Partitioned); ok {
		return e.partition(partitioned.SortPartition())
	}

	return e.partition(nil)
}

func (e *Engine[K, T]) lockKey(p Partition) string {
	return e.opts.lockNamespace + ":" + p.Key()
}

type operation[K comparable, T Orderable[K]] func(ctx context.Context, store Store[K, T], commit *onCommit) ([]K, error)

// onCommit queues in-memory updates of caller records.
type onCommit []func()

func (c *onCommit) add(fn func()) {
	*c = append(*c, fn)
}

func (c onCommit) apply() {
	for _, fn := range c {
		fn()
	}
}

// run executes fn under the partition lock and, if configured, within a
// transaction. Queued record updates are applied after the store writes
// succeeded, still under the lock. It records metrics and notifies about the
// touched keys.
func (e *Engine[K, T]) run(ctx context.Context, name string, p Partition, fn operation[K, T]) (err error) {
	started := time.Now()
	defer func() {
		e.opts.metrics.observe(name, started, err)
	}()

	if e.opts.locker != nil {
		release, lockErr := e.opts.locker.Lock(ctx, e.lockKey(p))
		if lockErr != nil {
			return fmt.Errorf("cannot %s: %w", name, lockErr)
		}
		defer func() {
			if releaseErr := release(); releaseErr != nil {
				e.opts.logger.ErrorContext(ctx, "partition lock release failed",
					"operation", name,
					"partition", p.Key(),
					"error", releaseErr,
				)
			}
		}()
	}

	var (
		keys   []K
		commit onCommit
	)
	if e.cfg.Transactional {
		err = e.store.Transaction(ctx, func(tx Store[K, T]) error {
			var txErr error
			keys, txErr = fn(ctx, tx, &commit)
			return txErr
		})
	} else {
		keys, err = fn(ctx, e.store, &commit)
	}

	if err != nil {
		e.opts.logger.DebugContext(ctx, "rank operation failed",
			"operation", name,
			"partition", p.Key(),
			"error", err,
		)
		return fmt.Errorf("cannot %s: %w", name, err)
	}
	commit.apply()

	e.opts.logger.DebugContext(ctx, "rank operation completed",
		"operation", name,
		"partition", p.Key(),
		"keys", keys,
		"duration", time.Since(started),
	)
	e.notify(ctx, name, p, keys)

	return nil
}

func (e *Engine[K, T]) notify(ctx context.Context, name string, p Partition, keys []K) {
	if e.opts.notifier == nil || len(keys) == 0 {
		return
	}

	event := Event{
		Operation: name,
		Partition: p.Key(),
		Keys:      lo.ToAnySlice(keys),
		At:        time.Now().UTC(),
	}
	if err := e.opts.notifier.Notify(ctx, event); err != nil {
		e.opts.logger.ErrorContext(ctx, "rank event notification failed",
			"operation", name,
			"partition", event.Partition,
			"error", err,
		)
	}
}

// MaxRank returns the highest rank of the partition, 0 when it is empty.
func (e *Engine[K, T]) MaxRank(ctx context.Context, p Partition) (int64, error) {
	return e.store.Max(ctx, e.partition(p), e.cfg.RankColumn)
}

// MinRank returns the lowest rank of the partition, 0 when it is empty.
func (e *Engine[K, T]) MinRank(ctx context.Context, p Partition) (int64, error) {
	return e.store.Min(ctx, e.partition(p), e.cfg.RankColumn)
}

// BeforeCreate assigns the initial rank of a record that is about to be
// persisted: MaxRank()+1 for SortOnCreateAppend, MinRank()-1 for
// SortOnCreatePrepend. It must be called exactly once per creation.
//
// With gorm it is typically called from the model hook:
//
//	func (t *Task) BeforeCreate(tx *gorm.DB) error {
//		store := taskStore.WithDB(tx.Session(&gorm.Session{NewDB: true}))
//		return taskEngine.WithStore(store).BeforeCreate(tx.Statement.Context, t)
//	}
//
// BeforeCreate does not take the partition lock, so two concurrent creations
// can read the same MaxRank. Use Create to serialise them.
func (e *Engine[K, T]) BeforeCreate(ctx context.Context, rec T) (err error) {
	started := time.Now()
	defer func() {
		e.opts.metrics.observe("before_create", started, err)
	}()

	return e.assignRank(ctx, e.store, e.partitionOf(rec), rec)
}

func (e *Engine[K, T]) assignRank(ctx context.Context, store Store[K, T], p Partition, rec T) error {
	switch e.cfg.SortOnCreate {
	case SortOnCreateAppend:
		maxRank, err := store.Max(ctx, p, e.cfg.RankColumn)
		if err != nil {
			return fmt.Errorf("cannot assign rank: %w", err)
		}
		rec.SetRank(maxRank + 1)
	case SortOnCreatePrepend:
		minRank, err := store.Min(ctx, p, e.cfg.RankColumn)
		if err != nil {
			return fmt.Errorf("cannot assign rank: %w", err)
		}
		rec.SetRank(minRank - 1)
	}

	return nil
}

// Create assigns the initial rank of rec, persists it through the store and
// recomputes the move flags of its partition, all in one operation: under
// the partition lock and, with Config.Transactional, in one transaction.
// The store must implement Creator, otherwise ErrInvalidInput is returned.
//
// Models whose gorm hooks call BeforeCreate must not be created this way:
// the rank would be assigned twice.
func (e *Engine[K, T]) Create(ctx context.Context, rec T) error {
	if _, ok := e.store.(Creator[T]); !ok {
		return fmt.Errorf("%w: store %T cannot create records", ErrInvalidInput, e.store)
	}

	p := e.partitionOf(rec)

	return e.run(ctx, "create", p, func(ctx context.Context, store Store[K, T], _ *onCommit) ([]K, error) {
		creator, ok := store.(Creator[T])
		if !ok {
			return nil, fmt.Errorf("%w: store %T cannot create records", ErrInvalidInput, store)
		}

		if err := e.assignRank(ctx, store, p, rec); err != nil {
			return nil, err
		}

		if err := creator.Create(ctx, rec); err != nil {
			return nil, fmt.Errorf("cannot persist record: %w", err)
		}

		flagged, err := e.resetFlags(ctx, store, p)
		if err != nil {
			return nil, err
		}

		return lo.Uniq(append([]K{rec.GetKey()}, flagged...)), nil
	})
}

// AfterCreate recomputes the move flags of the record's partition.
func (e *Engine[K, T]) AfterCreate(ctx context.Context, rec T) error {
	return e.afterBoundaryChange(ctx, "after_create", rec)
}

// AfterDelete recomputes the move flags of the deleted record's partition.
func (e *Engine[K, T]) AfterDelete(ctx context.Context, rec T) error {
	return e.afterBoundaryChange(ctx, "after_delete", rec)
}

func (e *Engine[K, T]) afterBoundaryChange(ctx context.Context, name string, rec T) error {
	if !e.cfg.FlagsEnabled() {
		return nil
	}

	p := e.partitionOf(rec)

	return e.run(ctx, name, p, func(ctx context.Context, store Store[K, T], _ *onCommit) ([]K, error) {
		return e.resetFlags(ctx, store, p)
	})
}

// First returns the head of the partition listing.
func (e *Engine[K, T]) First(ctx context.Context, p Partition) (T, error) {
	return e.edge(ctx, e.store, e.partition(p), e.cfg.Direction)
}

// Last returns the tail of the partition listing.
func (e *Engine[K, T]) Last(ctx context.Context, p Partition) (T, error) {
	return e.edge(ctx, e.store, e.partition(p), e.cfg.Direction.Reverse())
}

func (e *Engine[K, T]) edge(ctx context.Context, store Store[K, T], p Partition, direction Direction) (T, error) {
	records, err := store.Ordered(ctx, p, e.cfg.RankColumn, nil, direction, 1)
	if err != nil {
		return lo.Empty[T](), err
	}

	if len(records) == 0 {
		return lo.Empty[T](), fmt.Errorf("%w: partition '%s' is empty", ErrNotFound, p.Key())
	}

	return records[0], nil
}

// neighbour returns the record with the nearest rank to rec when walking in
// direction. ok is false if rec is the last record in that direction.
func (e *Engine[K, T]) neighbour(
	ctx context.Context,
	store Store[K, T],
	p Partition,
	rec T,
	direction Direction,
) (ret T, ok bool, err error) {
	cond := RankCondition{
		Operator: direction.ForOperator(),
		Value:    rec.GetRank(),
	}

	records, err := store.Ordered(ctx, p, e.cfg.RankColumn, &cond, cond.Operator.ForOrdering(), 1)
	if err != nil || len(records) == 0 {
		return ret, false, err
	}

	return records[0], true, nil
}

// MoveUp swaps rec with its neighbour towards the head of the listing. Under
// the default DESC listing this is the record with the nearest greater rank.
// Returns false if rec already is the head.
func (e *Engine[K, T]) MoveUp(ctx context.Context, rec T) (bool, error) {
	return e.moveAdjacent(ctx, "move_up", rec, e.cfg.Direction.Reverse())
}

// MoveDown swaps rec with its neighbour towards the tail of the listing.
// Returns false if rec already is the tail.
func (e *Engine[K, T]) MoveDown(ctx context.Context, rec T) (bool, error) {
	return e.moveAdjacent(ctx, "move_down", rec, e.cfg.Direction)
}

func (e *Engine[K, T]) moveAdjacent(ctx context.Context, name string, rec T, direction Direction) (bool, error) {
	p := e.partitionOf(rec)

	var moved bool
	err := e.run(ctx, name, p, func(ctx context.Context, store Store[K, T], commit *onCommit) ([]K, error) {
		other, ok, err := e.neighbour(ctx, store, p, rec, direction)
		if err != nil || !ok {
			return nil, err
		}

		moved = true

		return e.swap(ctx, store, p, rec, other, commit)
	})

	return moved && err == nil, err
}

// SwapRanks exchanges the ranks of a and b, and their move flags when flag
// maintenance is enabled and both records are Flagged. Swapping a record
// with itself is a no-op. Both records must belong to the same partition.
func (e *Engine[K, T]) SwapRanks(ctx context.Context, a, b T) error {
	p := e.partitionOf(a)
	if otherP := e.partitionOf(b); otherP.Key() != p.Key() {
		return fmt.Errorf("%w: cannot swap across partitions '%s' and '%s'", ErrInvalidInput, p.Key(), otherP.Key())
	}

	return e.run(ctx, "swap", p, func(ctx context.Context, store Store[K, T], commit *onCommit) ([]K, error) {
		return e.swap(ctx, store, p, a, b, commit)
	})
}

func (e *Engine[K, T]) swap(ctx context.Context, store Store[K, T], p Partition, a, b T, commit *onCommit) ([]K, error) {
	if a.GetKey() == b.GetKey() {
		return nil, nil
	}

	rankA, rankB := a.GetRank(), b.GetRank()

	flaggedA, okA := any(a).(Flagged)
	flaggedB, okB := any(b).(Flagged)
	swapFlags := e.cfg.FlagsEnabled() && okA && okB

	var flagsA, flagsB MoveFlags
	if swapFlags {
		flagsA, flagsB = flaggedA.GetMoveFlags(), flaggedB.GetMoveFlags()
	}

	if err := store.UpdateColumn(ctx, p, b.GetKey(), e.cfg.RankColumn, rankA); err != nil {
		return nil, err
	}
	if swapFlags {
		if err := store.UpdateColumn(ctx, p, b.GetKey(), e.cfg.FlagsColumn, flagsA); err != nil {
			return nil, err
		}
	}

	if err := store.UpdateColumn(ctx, p, a.GetKey(), e.cfg.RankColumn, rankB); err != nil {
		return nil, err
	}
	if swapFlags {
		if err := store.UpdateColumn(ctx, p, a.GetKey(), e.cfg.FlagsColumn, flagsB); err != nil {
			return nil, err
		}
	}

	commit.add(func() {
		b.SetRank(rankA)
		a.SetRank(rankB)
		if swapFlags {
			flaggedB.SetMoveFlags(flagsA)
			flaggedA.SetMoveFlags(flagsB)
		}
	})

	return []K{a.GetKey(), b.GetKey()}, nil
}

// InsertBefore places rec immediately before ref in the listing: rec takes
// ref's rank, and ref together with every other record on its tail side is
// shifted one step towards the tail. Under the default DESC listing that is
// every record with rank <= ref's rank, decremented by one. ref is reloaded
// from the store, a missing ref yields ErrNotFound. rec == ref is a no-op.
func (e *Engine[K, T]) InsertBefore(ctx context.Context, rec, ref T) error {
	p := e.partitionOf(rec)

	return e.run(ctx, "insert_before", p, func(ctx context.Context, store Store[K, T], commit *onCommit) ([]K, error) {
		return e.insert(ctx, store, commit, "insert_before", p, rec, ref, true, true)
	})
}

// InsertAfter places rec immediately after ref in the listing, shifting ref
// and every other record on its head side one step towards the head. Under
// the default DESC listing that is every record with rank >= ref's rank,
// incremented by one.
func (e *Engine[K, T]) InsertAfter(ctx context.Context, rec, ref T) error {
	p := e.partitionOf(rec)

	return e.run(ctx, "insert_after", p, func(ctx context.Context, store Store[K, T], commit *onCommit) ([]K, error) {
		return e.insert(ctx, store, commit, "insert_after", p, rec, ref, false, true)
	})
}

func (e *Engine[K, T]) insert(
	ctx context.Context,
	store Store[K, T],
	commit *onCommit,
	name string,
	p Partition,
	rec, ref T,
	before bool,
	reload bool,
) ([]K, error) {
	if rec.GetKey() == ref.GetKey() {
		return nil, nil
	}

	target := ref.GetRank()
	if reload {
		fresh, err := store.Find(ctx, p, ref.GetKey())
		if err != nil {
			return nil, err
		}
		target = fresh.GetRank()
	}

	if err := store.UpdateColumn(ctx, p, rec.GetKey(), e.cfg.RankColumn, target); err != nil {
		return nil, err
	}

	// The shifted side includes the target so that ref vacates it.
	direction := lo.Ternary(before, e.cfg.Direction, e.cfg.Direction.Reverse())
	cond := RankCondition{
		Operator: direction.ForOperator().Inclusive(),
		Value:    target,
	}
	delta := direction.Step()

	shifted, err := store.Increment(ctx, p, rec.GetKey(), e.cfg.RankColumn, cond, delta)
	if err != nil {
		return nil, err
	}
	e.opts.metrics.shifted(name, shifted)
	commit.add(func() {
		rec.SetRank(target)
		ref.SetRank(target + delta)
	})

	keys := []K{rec.GetKey(), ref.GetKey()}
	flagged, err := e.resetFlags(ctx, store, p)
	if err != nil {
		return nil, err
	}

	return lo.Uniq(append(keys, flagged...)), nil
}

// MoveToStart makes rec the head of its partition. It is a no-op when the
// partition is empty or rec already is the head.
func (e *Engine[K, T]) MoveToStart(ctx context.Context, rec T) error {
	return e.moveToEdge(ctx, "move_to_start", rec, true)
}

// MoveToEnd makes rec the tail of its partition. It is a no-op when the
// partition is empty or rec already is the tail.
func (e *Engine[K, T]) MoveToEnd(ctx context.Context, rec T) error {
	return e.moveToEdge(ctx, "move_to_end", rec, false)
}

func (e *Engine[K, T]) moveToEdge(ctx context.Context, name string, rec T, start bool) error {
	p := e.partitionOf(rec)
	direction := lo.Ternary(start, e.cfg.Direction, e.cfg.Direction.Reverse())

	return e.run(ctx, name, p, func(ctx context.Context, store Store[K, T], commit *onCommit) ([]K, error) {
		records, err := store.Ordered(ctx, p, e.cfg.RankColumn, nil, direction, 1)
		if err != nil {
			return nil, err
		}

		if len(records) == 0 || records[0].GetKey() == rec.GetKey() {
			return nil, nil
		}

		return e.insert(ctx, store, commit, name, p, rec, records[0], start, false)
	})
}
