package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Alp4ka/gosortable"
)

type moveTarget string

const (
	moveToStart moveTarget = "start"
	moveToEnd   moveTarget = "end"
	moveUp      moveTarget = "up"
	moveDown    moveTarget = "down"
)

var _moveTargets = []string{string(moveToStart), string(moveToEnd), string(moveUp), string(moveDown)}

func parseMoveTarget(s string) (moveTarget, error) {
	target := moveTarget(strings.ToLower(strings.TrimSpace(s)))
	switch target {
	case moveToStart, moveToEnd, moveUp, moveDown:
		return target, nil
	default:
		return "", fmt.Errorf("invalid target %q. closest: %q", s, gosortable.ClosestMatch(string(target), _moveTargets))
	}
}

func parseKeys(args []string) ([]int64, error) {
	ret := make([]int64, 0, len(args))
	for _, arg := range args {
		key, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid key %q: %w", arg, err)
		}
		ret = append(ret, key)
	}

	return ret, nil
}

// withSession opens a session for the duration of fn.
func withSession(opts *rootOptions, cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	return fn(ctx, s)
}

type listedRow struct {
	Key   int64  `json:"key"`
	Rank  int64  `json:"rank"`
	Flags string `json:"flags,omitempty"`
}

func writeRows(w io.Writer, output string, rows []*sortRow, withFlags bool) error {
	listed := make([]listedRow, 0, len(rows))
	for _, row := range rows {
		item := listedRow{Key: row.SortKey, Rank: row.SortRank}
		if withFlags {
			item.Flags = row.SortFlags.String()
		}
		listed = append(listed, item)
	}

	if output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(listed)
	}

	for _, item := range listed {
		line := fmt.Sprintf("%d\t%d", item.Key, item.Rank)
		if withFlags {
			line += "\t" + item.Flags
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	return nil
}

func newListCommand(opts *rootOptions) *cobra.Command {
	var (
		limit     int
		pageToken string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the partition head first",
		Long: "List the partition head first.\n\n" +
			"With --page-token the listing is paged: the token of the next page, if any, is printed to stderr. " +
			"Pass an empty token to start at the head.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(ctx context.Context, s *session) error {
				withFlags := s.engine.Config().FlagsEnabled()

				if !cmd.Flags().Changed("page-token") {
					rows, err := s.engine.List(ctx, nil, limit)
					if err != nil {
						return err
					}

					return writeRows(cmd.OutOrStdout(), opts.output, rows, withFlags)
				}

				page, err := s.engine.ListPage(ctx, nil, limit, pageToken)
				if err != nil {
					return err
				}

				if err = writeRows(cmd.OutOrStdout(), opts.output, page.Items, withFlags); err != nil {
					return err
				}

				if page.NextPageToken != "" {
					_, err = fmt.Fprintln(cmd.ErrOrStderr(), "next page token:", page.NextPageToken)
				}

				return err
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", gosortable.DefaultLimit, "maximum number of records, -1 for all")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "page through the listing starting after this token")

	return cmd
}

func newCompactCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Renumber the partition to 1..N keeping its order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(ctx context.Context, s *session) error {
				return s.engine.Compact(ctx, nil)
			})
		},
	}
}

func newReorderCommand(opts *rootOptions) *cobra.Command {
	var start int64

	cmd := &cobra.Command{
		Use:   "reorder KEY...",
		Short: "Assign consecutive ranks to the given keys in order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parseKeys(args)
			if err != nil {
				return err
			}

			return withSession(opts, cmd, func(ctx context.Context, s *session) error {
				return s.engine.SetNewOrder(ctx, nil, keys, start)
			})
		},
	}

	cmd.Flags().Int64Var(&start, "start", gosortable.DefaultStartOrder, "rank of the first key")

	return cmd
}

func newMoveCommand(opts *rootOptions) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "move KEY",
		Short: "Move a record to the start or the end, or one step up or down",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parseKeys(args)
			if err != nil {
				return err
			}

			target, err := parseMoveTarget(to)
			if err != nil {
				return err
			}

			return withSession(opts, cmd, func(ctx context.Context, s *session) error {
				rec, err := s.engine.Store().Find(ctx, s.engine.Config().Partition, keys[0])
				if err != nil {
					return err
				}

				switch target {
				case moveToStart:
					return s.engine.MoveToStart(ctx, rec)
				case moveToEnd:
					return s.engine.MoveToEnd(ctx, rec)
				case moveUp:
					_, err = s.engine.MoveUp(ctx, rec)
				case moveDown:
					_, err = s.engine.MoveDown(ctx, rec)
				}

				return err
			})
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "target (start|end|up|down)")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func newResetFlagsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-flags",
		Short: "Recompute the move flags of the partition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(ctx context.Context, s *session) error {
				if !s.engine.Config().FlagsEnabled() {
					return fmt.Errorf("no flags column configured")
				}

				return s.engine.ResetFlags(ctx, nil)
			})
		},
	}
}
