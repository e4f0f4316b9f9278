package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ordokr/lmssearch/internal/backend"
	"github.com/ordokr/lmssearch/internal/mcp"
	"github.com/ordokr/lmssearch/internal/search"
	"github.com/ordokr/lmssearch/internal/store"
)

// searchFlags holds CLI flags for search.
type searchFlags struct {
	limit      int
	offset     int
	filter     string
	sort       []string
	jsonOutput bool
}

func newSearchCmd(a *app) *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Query the topics or categories index",
		Long: `Query one index. Matching is typo tolerant.

Examples:
  lmssearch search topics "ownership"
  lmssearch search topics "exam" --filter "category_id = 3 AND created_at > 2024-01-01"
  lmssearch search topics "week" --sort created_at:desc --limit 5
  lmssearch search categories "homework" --json`,
	}

	cmd.PersistentFlags().IntVarP(&flags.limit, "limit", "n", search.DefaultLimit, "Maximum number of hits")
	cmd.PersistentFlags().IntVar(&flags.offset, "offset", 0, "Number of hits to skip")
	cmd.PersistentFlags().StringVar(&flags.filter, "filter", "", "Filter expression on filterable fields")
	cmd.PersistentFlags().StringSliceVar(&flags.sort, "sort", nil, "Sort entries such as created_at:desc (repeatable)")
	cmd.PersistentFlags().BoolVar(&flags.jsonOutput, "json", false, "Output hits as JSON")

	for _, kind := range store.Kinds {
		cmd.AddCommand(newSearchKindCmd(a, kind, &flags))
	}
	return cmd
}

func newSearchKindCmd(a *app, kind store.Kind, flags *searchFlags) *cobra.Command {
	return &cobra.Command{
		Use:   string(kind) + " <query>",
		Short: "Search " + string(kind),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			ctx := cmd.Context()

			e, err := a.openEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			opts := search.SearchOptions{
				Limit:  flags.limit,
				Offset: flags.offset,
				Filter: flags.filter,
				Sort:   flags.sort,
			}
			var res *backend.SearchResult
			if kind == store.KindCategories {
				res, err = e.svc.SearchCategories(ctx, query, opts)
			} else {
				res, err = e.svc.SearchTopics(ctx, query, opts)
			}
			if err != nil {
				return err
			}
			a.logger.Info("search_complete",
				slog.String("collection", string(kind)),
				slog.Int("results", len(res.Hits)))

			if flags.jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), mcp.FormatSearchResults(string(kind), query, res))
			return err
		},
	}
}
