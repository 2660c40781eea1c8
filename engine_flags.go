package gosortable

import (
	"context"
	"fmt"

	"github.com/samber/lo"
)

// ResetFlags recomputes the move flags of a partition: a single record
// cannot move, otherwise the head can only move down, the tail can only
// move up and every other record can move both ways. It is a no-op when
// flag maintenance is disabled.
func (e *Engine[K, T]) ResetFlags(ctx context.Context, p Partition) error {
	if !e.cfg.FlagsEnabled() {
		return nil
	}

	p = e.partition(p)

	return e.run(ctx, "reset_flags", p, func(ctx context.Context, store Store[K, T], _ *onCommit) ([]K, error) {
		return e.resetFlags(ctx, store, p)
	})
}

// resetFlags issues two single-row updates for the head and the tail and one
// bulk update for the rest. Returns the keys of the head and the tail.
func (e *Engine[K, T]) resetFlags(ctx context.Context, store Store[K, T], p Partition) ([]K, error) {
	if !e.cfg.FlagsEnabled() {
		return nil, nil
	}

	first, err := e.edge(ctx, store, p, e.cfg.Direction)
	if isNotFound(err) {
		// Nothing to flag in an empty partition.
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	last, err := e.edge(ctx, store, p, e.cfg.Direction.Reverse())
	if err != nil {
		return nil, err
	}

	if first.GetKey() == last.GetKey() {
		if err = e.setFlags(ctx, store, p, first, CannotMove); err != nil {
			return nil, err
		}
	} else {
		if err = e.setFlags(ctx, store, p, first, CanMoveDownOnly); err != nil {
			return nil, err
		}
		if err = e.setFlags(ctx, store, p, last, CanMoveUpOnly); err != nil {
			return nil, err
		}
	}

	edges := lo.Uniq([]K{first.GetKey(), last.GetKey()})
	if _, err = store.UpdateExcluding(ctx, p, edges, e.cfg.FlagsColumn, CanMoveBoth); err != nil {
		return nil, fmt.Errorf("cannot reset inner flags: %w", err)
	}

	return edges, nil
}

func (e *Engine[K, T]) setFlags(ctx context.Context, store Store[K, T], p Partition, rec T, flags MoveFlags) error {
	if err := store.UpdateColumn(ctx, p, rec.GetKey(), e.cfg.FlagsColumn, flags); err != nil {
		return err
	}

	if flagged, ok := any(rec).(Flagged); ok {
		flagged.SetMoveFlags(flags)
	}

	return nil
}
