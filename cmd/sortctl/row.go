package main

import (
	"fmt"

	"github.com/Alp4ka/gosortable"
)

// sortRow is the projection of any sortable table: the configured key, rank
// and flags columns are selected under fixed aliases.
type sortRow struct {
	SortKey   int64
	SortRank  int64
	SortFlags gosortable.MoveFlags
}

func (r *sortRow) GetKey() int64                       { return r.SortKey }
func (r *sortRow) GetRank() int64                      { return r.SortRank }
func (r *sortRow) SetRank(rank int64)                  { r.SortRank = rank }
func (r *sortRow) GetMoveFlags() gosortable.MoveFlags  { return r.SortFlags }
func (r *sortRow) SetMoveFlags(f gosortable.MoveFlags) { r.SortFlags = f }

func selectList(cfg gosortable.Config) string {
	ret := fmt.Sprintf("%s AS sort_key, %s AS sort_rank", cfg.KeyColumn, cfg.RankColumn)
	if cfg.FlagsEnabled() {
		ret += fmt.Sprintf(", %s AS sort_flags", cfg.FlagsColumn)
	}

	return ret
}
