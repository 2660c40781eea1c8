package gosortable

import (
	"context"
	"errors"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryStore(records ...*tItem) *MemoryStore[int64, *tItem] {
	store := NewMemoryStore[int64, *tItem](Config{FlagsColumn: "flags"})
	store.Add(records...)

	return store
}

func Test_MemoryStore_MaxMin(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore(items("a", 4, -2, 9)...)

	maxRank, err := store.Max(ctx, nil, "weight")
	require.NoError(t, err)
	assert.Equal(t, int64(9), maxRank)

	minRank, err := store.Min(ctx, nil, "weight")
	require.NoError(t, err)
	assert.Equal(t, int64(-2), minRank)

	maxRank, err = store.Max(ctx, Partition{"group": "b"}, "weight")
	require.NoError(t, err)
	assert.Zero(t, maxRank, "empty partition")

	_, err = store.Max(ctx, nil, "position")
	assert.ErrorIs(t, err, ErrUnsupportedColumn)
}

func Test_MemoryStore_Ordered(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore(
		&tItem{ID: 1, Weight: 10, Group: "a"},
		&tItem{ID: 2, Weight: 30, Group: "a"},
		&tItem{ID: 3, Weight: 20, Group: "a"},
		&tItem{ID: 4, Weight: 20, Group: "a"},
		&tItem{ID: 5, Weight: 15, Group: "b"},
	)

	keys := func(records []*tItem) []int64 {
		return lo.Map(records, func(rec *tItem, _ int) int64 { return rec.ID })
	}

	tests := []struct {
		name      string
		p         Partition
		cond      *RankCondition
		direction Direction
		limit     int
		want      []int64
	}{
		{"all asc", nil, nil, DirectionASC, NoLimit, []int64{1, 5, 3, 4, 2}},
		{"partition desc", Partition{"group": "a"}, nil, DirectionDESC, NoLimit, []int64{2, 4, 3, 1}},
		{"nearest greater", Partition{"group": "a"}, &RankCondition{OperatorGT, 10}, DirectionASC, 1, []int64{3}},
		{"nearest lower", Partition{"group": "a"}, &RankCondition{OperatorLT, 30}, DirectionDESC, 1, []int64{4}},
		{"no match", Partition{"group": "b"}, &RankCondition{OperatorGT, 15}, DirectionASC, 1, []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Ordered(ctx, tt.p, "weight", tt.cond, tt.direction, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, keys(got))
		})
	}
}

func Test_MemoryStore_After(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore(
		&tItem{ID: 1, Weight: 10, Group: "a"},
		&tItem{ID: 2, Weight: 30, Group: "a"},
		&tItem{ID: 3, Weight: 20, Group: "a"},
		&tItem{ID: 4, Weight: 20, Group: "a"},
		&tItem{ID: 5, Weight: 15, Group: "b"},
	)

	keys := func(records []*tItem) []int64 {
		return lo.Map(records, func(rec *tItem, _ int) int64 { return rec.ID })
	}

	got, err := store.After(ctx, nil, "weight", DirectionDESC, 20, 4, NoLimit)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 5, 1}, keys(got), "ties continue by key")

	got, err = store.After(ctx, Partition{"group": "a"}, "weight", DirectionASC, 20, 3, NoLimit)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 2}, keys(got))

	got, err = store.After(ctx, nil, "weight", DirectionASC, 10, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 3}, keys(got))

	got, err = store.After(ctx, nil, "weight", DirectionASC, 30, 2, NoLimit)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = store.After(ctx, nil, "position", DirectionASC, 0, 0, NoLimit)
	assert.ErrorIs(t, err, ErrUnsupportedColumn)

	_, err = store.After(ctx, nil, "weight", "sideways", 0, 0, NoLimit)
	assert.Error(t, err)
}

func Test_MemoryStore_Find(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore(items("a", 1, 2)...)

	rec, err := store.Find(ctx, Partition{"group": "a"}, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Weight)

	_, err = store.Find(ctx, nil, 42)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Find(ctx, Partition{"group": "b"}, 1)
	assert.ErrorIs(t, err, ErrNotFound, "record outside the partition")
}

func Test_MemoryStore_Updates(t *testing.T) {
	ctx := context.Background()
	records := items("a", 1, 2, 3, 4)
	store := newTestMemoryStore(records...)

	require.NoError(t, store.UpdateColumn(ctx, nil, 1, "weight", 7))
	assert.Equal(t, int64(7), records[0].Weight)

	require.NoError(t, store.UpdateColumn(ctx, nil, 1, "flags", CanMoveBoth))
	assert.Equal(t, CanMoveBoth, records[0].Flags)

	assert.ErrorIs(t, store.UpdateColumn(ctx, nil, 1, "title", "x"), ErrUnsupportedColumn)
	assert.ErrorIs(t, store.UpdateColumn(ctx, nil, 1, "weight", "x"), ErrInvalidInput)

	require.NoError(t, store.UpdateColumnBy(ctx, nil, "id", int64(2), "weight", int64(8)))
	assert.Equal(t, int64(8), records[1].Weight)
	assert.ErrorIs(t, store.UpdateColumnBy(ctx, nil, "slug", "b", "weight", 1), ErrUnsupportedColumn)

	n, err := store.Increment(ctx, nil, 4, "weight", RankCondition{OperatorGTE, 3}, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, []int64{17, 18, 13, 4}, lo.Map(records, func(rec *tItem, _ int) int64 { return rec.Weight }))

	n, err = store.UpdateExcluding(ctx, nil, []int64{1, 4}, "flags", CanMoveUpOnly)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, []MoveFlags{CanMoveBoth, CanMoveUpOnly, CanMoveUpOnly, CannotMove},
		lo.Map(records, func(rec *tItem, _ int) MoveFlags { return rec.Flags }))
}

func Test_MemoryStore_Transaction(t *testing.T) {
	ctx := context.Background()
	records := items("a", 1, 2)
	store := newTestMemoryStore(records...)
	errBoom := errors.New("boom")

	err := store.Transaction(ctx, func(tx Store[int64, *tItem]) error {
		if err := tx.UpdateColumn(ctx, nil, 1, "weight", 5); err != nil {
			return err
		}
		if err := tx.UpdateColumn(ctx, nil, 2, "flags", CanMoveUpOnly); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, int64(1), records[0].Weight, "rank rolled back")
	assert.Equal(t, CannotMove, records[1].Flags, "flags rolled back")

	err = store.Transaction(ctx, func(tx Store[int64, *tItem]) error {
		return tx.UpdateColumn(ctx, nil, 1, "weight", 5)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), records[0].Weight)
}

func Test_MemoryStore_AddDelete(t *testing.T) {
	store := newTestMemoryStore(items("", 1, 2, 3)...)
	assert.Equal(t, 3, store.Len())

	store.Delete(2)
	assert.Equal(t, 2, store.Len())

	_, err := store.Find(context.Background(), nil, 2)
	assert.ErrorIs(t, err, ErrNotFound)
}
