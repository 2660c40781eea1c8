package gosortable

import (
	"context"
	"fmt"
	"reflect"

	"github.com/samber/lo"
)

// DefaultStartOrder is the first rank assigned by SetNewOrder and Compact.
const DefaultStartOrder int64 = 1

// SetNewOrder assigns startOrder, startOrder+1, ... to the records
// identified by keys, in order, one update per key. keys may be a subset of
// the partition; keys outside the partition are left untouched. A duplicate
// key ends up with the last rank assigned to it. A nil keys slice is
// rejected with ErrInvalidInput.
//
// Ranks are rewritten regardless of their previous values, so SetNewOrder
// can leave duplicates behind when keys does not cover the partition. The
// move flags of the partition are recomputed afterwards.
func (e *Engine[K, T]) SetNewOrder(ctx context.Context, p Partition, keys []K, startOrder int64) error {
	if keys == nil {
		return fmt.Errorf("%w: SetNewOrder requires a key list", ErrInvalidInput)
	}

	p = e.partition(p)

	return e.run(ctx, "set_new_order", p, func(ctx context.Context, store Store[K, T], _ *onCommit) ([]K, error) {
		for i, key := range keys {
			err := store.UpdateColumn(ctx, p, key, e.cfg.RankColumn, startOrder+int64(i))
			if err != nil {
				return nil, err
			}
		}

		if _, err := e.resetFlags(ctx, store, p); err != nil {
			return nil, err
		}

		return lo.Uniq(keys), nil
	})
}

// SetNewOrderByColumn is SetNewOrder matching records on column instead of
// the key column. values must be a slice or an array; anything else
// (including nil) is rejected with ErrInvalidInput.
func (e *Engine[K, T]) SetNewOrderByColumn(
	ctx context.Context,
	p Partition,
	column string,
	values any,
	startOrder int64,
) error {
	if err := validateColumnName(column); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	list, err := toAnySlice(values)
	if err != nil {
		return err
	}

	p = e.partition(p)

	return e.run(ctx, "set_new_order", p, func(ctx context.Context, store Store[K, T], _ *onCommit) ([]K, error) {
		for i, value := range list {
			err := store.UpdateColumnBy(ctx, p, column, value, e.cfg.RankColumn, startOrder+int64(i))
			if err != nil {
				return nil, err
			}
		}

		_, err := e.resetFlags(ctx, store, p)

		return nil, err
	})
}

func toAnySlice(values any) ([]any, error) {
	v := reflect.ValueOf(values)
	if !v.IsValid() || (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) {
		return nil, fmt.Errorf("%w: expected a slice or an array, got %T", ErrInvalidInput, values)
	}

	if v.Kind() == reflect.Slice && v.IsNil() {
		return nil, fmt.Errorf("%w: nil %T", ErrInvalidInput, values)
	}

	ret := make([]any, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		ret = append(ret, v.Index(i).Interface())
	}

	return ret, nil
}

// List returns up to limit records of the partition, head first. limit may
// be NoLimit; other values are normalised with NormalizeLimit.
func (e *Engine[K, T]) List(ctx context.Context, p Partition, limit int) ([]T, error) {
	return e.store.Ordered(ctx, e.partition(p), e.cfg.RankColumn, nil, e.cfg.Direction, NormalizeLimit(limit))
}

// ListPage returns a page of up to limit records of the partition, head
// first, starting after the position encoded in token. An empty token starts
// at the head. NoLimit is rejected: an unlimited listing has no next page.
// A token issued for another rank column or direction is ErrInvalidInput.
func (e *Engine[K, T]) ListPage(ctx context.Context, p Partition, limit int, token string) (*Page[T], error) {
	if limit == NoLimit {
		return nil, fmt.Errorf("%w: cannot page an unlimited listing", ErrInvalidInput)
	}
	limit = NormalizeLimit(limit)

	orderings := rankOrderings(e.cfg.RankColumn, e.cfg.KeyColumn, e.cfg.Direction)

	pageToken, err := DecodePageToken(token)
	if err == nil {
		err = pageToken.validate(orderings)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	p = e.partition(p)

	// One extra record tells whether a next page exists.
	var records []T
	if pageToken.IsEmpty() {
		records, err = e.store.Ordered(ctx, p, e.cfg.RankColumn, nil, e.cfg.Direction, limit+1)
	} else {
		rank, key, posErr := pagePosition[K](pageToken)
		if posErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, posErr)
		}
		records, err = e.store.After(ctx, p, e.cfg.RankColumn, e.cfg.Direction, rank, key, limit+1)
	}
	if err != nil {
		return nil, err
	}

	ret := &Page[T]{Items: records, AppliedLimit: limit}
	if len(records) <= limit {
		return ret, nil
	}

	ret.Items = records[:limit]
	last := ret.Items[limit-1]

	next, err := newPageToken(orderings, last.GetRank(), last.GetKey())
	if err != nil {
		return nil, fmt.Errorf("cannot build next page token: %w", err)
	}
	ret.NextPageToken = next.String()

	return ret, nil
}

// Compact renumbers the partition to DefaultStartOrder..N preserving its
// order: the lowest rank becomes DefaultStartOrder. Records already holding
// their new rank are not rewritten.
//
// Each write targets a rank no other record holds at that moment, so a
// unique (partition, rank) index stays satisfied: records moving down are
// written head to tail, then records moving up tail to head.
func (e *Engine[K, T]) Compact(ctx context.Context, p Partition) error {
	p = e.partition(p)

	return e.run(ctx, "compact", p, func(ctx context.Context, store Store[K, T], _ *onCommit) ([]K, error) {
		records, err := store.Ordered(ctx, p, e.cfg.RankColumn, nil, DirectionASC, NoLimit)
		if err != nil {
			return nil, err
		}

		var down, up []int
		for i, rec := range records {
			switch rank := DefaultStartOrder + int64(i); {
			case rank < rec.GetRank():
				down = append(down, i)
			case rank > rec.GetRank():
				up = append(up, i)
			}
		}

		order := append(down, lo.Reverse(up)...)
		changed := make([]K, 0, len(order))
		for _, i := range order {
			key := records[i].GetKey()
			if err = store.UpdateColumn(ctx, p, key, e.cfg.RankColumn, DefaultStartOrder+int64(i)); err != nil {
				return nil, err
			}
			changed = append(changed, key)
		}

		return changed, nil
	})
}
