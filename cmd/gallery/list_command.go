package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/abelbrown/gallery/internal/aggregate"
	"github.com/abelbrown/gallery/internal/catalog"
	"github.com/abelbrown/gallery/internal/media"
	"github.com/abelbrown/gallery/internal/store"
)

type listRow struct {
	Key       string    `json:"key"`
	Type      string    `json:"type"`
	Label     string    `json:"label"`
	Name      string    `json:"name,omitempty"`
	URL       string    `json:"url"`
	Visible   bool      `json:"visible"`
	CreatedAt time.Time `json:"created_at"`
}

type listOutput struct {
	Category string          `json:"category"`
	Query    string          `json:"query,omitempty"`
	Total    int             `json:"total"`
	Items    []listRow       `json:"items"`
	Stats    aggregate.Stats `json:"stats"`
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var category string
	var query string
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the media collection as the gallery would show it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.ParseCategory(category)
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				src, err := st.List(cmd.Context())
				if err != nil {
					return err
				}
				items, stats := aggregate.AggregateWithStats(src)
				view := ctx.configValue().Classifier().View(items, cat, query)
				total := len(view)
				if limit > 0 && len(view) > limit {
					view = view[:limit]
				}

				if jsonOut {
					out := listOutput{Category: string(cat), Query: query, Total: total, Stats: stats,
						Items: make([]listRow, 0, len(view))}
					for _, it := range view {
						out.Items = append(out.Items, toListRow(it))
					}
					return writeJSON(cmd, out)
				}
				return printList(cmd, view, total, stats)
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "all", "Category: all, ai, uploads, projects")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Search the provenance label")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most n items (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func toListRow(it media.Item) listRow {
	return listRow{
		Key:       it.Key(),
		Type:      string(it.FileType),
		Label:     it.Label(),
		Name:      it.Name,
		URL:       it.URL,
		Visible:   it.Visible,
		CreatedAt: it.CreatedAt,
	}
}

func printList(cmd *cobra.Command, view []media.Item, total int, stats aggregate.Stats) error {
	out := cmd.OutOrStdout()
	headers := []string{"Key", "Type", "Label", "Name", "Public", "Added", "URL"}
	rows := make([][]string, 0, len(view))
	for _, it := range view {
		public := "-"
		if it.SourceType == media.SourceProject {
			public = yesNo(it.Visible)
		}
		rows = append(rows, []string{
			it.Key(), string(it.FileType), it.Label(), it.Name, public,
			humanize.Time(it.CreatedAt), it.URL,
		})
	}

	if !isTerminal(out) {
		fmt.Fprint(out, renderTSV(headers, rows))
		return nil
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "No media matches.")
	} else {
		fmt.Fprintln(out, renderTable(headers, rows, nil))
	}
	fmt.Fprintf(out, "%d of %d shown · %d dropped (%d without URL, %d ephemeral, %d duplicate)\n",
		len(view), total, stats.Input-stats.Output, stats.NoURL, stats.Ephemeral, stats.Duplicates)
	return nil
}
