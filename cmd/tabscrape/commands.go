package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/baxromumarov/tabscrape/internal/document"
	"github.com/baxromumarov/tabscrape/internal/extract"
	"github.com/baxromumarov/tabscrape/internal/observability"
	"github.com/baxromumarov/tabscrape/internal/pipeline"
	"github.com/baxromumarov/tabscrape/internal/selector"
	"github.com/baxromumarov/tabscrape/internal/table"
)

func writeTable(w io.Writer, tbl *table.Table, output string) error {
	switch strings.ToLower(output) {
	case "", "table":
		_, err := fmt.Fprintln(w, tbl.Render())
		return err
	case "csv":
		return tbl.WriteCSV(w)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tbl)
	default:
		return fmt.Errorf("unknown output %q: want table, csv or json", output)
	}
}

func (a *app) runCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "run <recipe>...",
		Short: "Run one or more YAML or JSON5 recipes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs := make([]pipeline.Recipe, len(args))
			for i, path := range args {
				rec, err := pipeline.LoadRecipe(path)
				if err != nil {
					return err
				}
				recs[i] = rec
			}

			metrics := observability.NewMetrics()
			runner := pipeline.NewRunner(a.fetcher, pipeline.Options{
				Backend: a.cfg.Backend,
				Metrics: metrics,
				Logger:  a.logger,
				Batch:   a.cfg.BatchOptions(a.logger),
			})
			tables, err := runner.RunAll(cmd.Context(), recs)
			if err != nil {
				return err
			}
			for i, tbl := range tables {
				if len(tables) > 1 && output != "csv" && output != "json" {
					fmt.Fprintln(cmd.OutOrStdout(), recs[i].Name)
				}
				if err := writeTable(cmd.OutOrStdout(), tbl, output); err != nil {
					return err
				}
			}
			a.logger.Debug("run finished", "stats", metrics.Snapshot().String())
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, csv or json")
	return cmd
}

func (a *app) fetchCmd() *cobra.Command {
	var query []string
	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetch a URL and print its status, content type and size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseQuery(query)
			if err != nil {
				return err
			}
			res, err := a.fetcher.Fetch(cmd.Context(), args[0], q)
			if err != nil {
				return err
			}
			format, _ := document.DetectFormat(res.ContentType)
			fmt.Fprintf(cmd.OutOrStdout(), "url:          %s\nstatus:       %d\ncontent-type: %s\nformat:       %s\nbytes:        %d\n",
				res.URL, res.StatusCode, res.ContentType, format, len(res.Body))
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&query, "query", "q", nil, "query parameter as key=value (repeatable)")
	return cmd
}

func (a *app) tablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables <url>",
		Short: "List the HTML tables on a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.fetcher.Fetch(cmd.Context(), args[0], nil)
			if err != nil {
				return err
			}
			doc, err := document.ParseHTML(res.Body, res.ContentType)
			if err != nil {
				return err
			}
			rows := [][]string{}
			for _, t := range extract.Tables(doc) {
				rows = append(rows, []string{
					strconv.Itoa(t.Index),
					strconv.Itoa(len(t.Rows)),
					strconv.Itoa(t.Width()),
					strconv.FormatBool(t.Ragged()),
					preview(t.Header, 60),
				})
			}
			summary, err := table.FromRows([]string{"index", "rows", "cols", "ragged", "header"}, rows)
			if err != nil {
				return err
			}
			return writeTable(cmd.OutOrStdout(), summary, "table")
		},
	}
}

func (a *app) extractCmd() *cobra.Command {
	var (
		kind, attr, output, format string
		raw                        bool
	)
	cmd := &cobra.Command{
		Use:   "extract <url> <expr>",
		Short: "Extract one column of values with a css, xpath, path or column selector",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			textMode := "normalized"
			if raw {
				textMode = "raw"
			}
			runner := pipeline.NewRunner(a.fetcher, pipeline.Options{Backend: a.cfg.Backend, Logger: a.logger})
			tbl, err := runner.Run(cmd.Context(), pipeline.Recipe{
				Name:   "extract",
				URL:    args[0],
				Format: format,
				Columns: []pipeline.Column{{
					Name: "value", Kind: kind, Expr: args[1], Attr: attr, Text: textMode,
				}},
			})
			if err != nil {
				return err
			}
			return writeTable(cmd.OutOrStdout(), tbl, output)
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", selector.KindCSS, "selector kind: css, xpath, path or column")
	cmd.Flags().StringVarP(&attr, "attr", "a", "", "read this attribute instead of text")
	cmd.Flags().BoolVar(&raw, "raw", false, "raw text instead of normalized text")
	cmd.Flags().StringVarP(&format, "format", "f", "", "document format: html, csv or json (default from content type)")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, csv or json")
	return cmd
}

func parseQuery(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	q := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("query %q: want key=value", p)
		}
		q[k] = v
	}
	return q, nil
}

func preview(cells []string, limit int) string {
	s := strings.Join(cells, " | ")
	if r := []rune(s); len(r) > limit {
		return string(r[:limit-1]) + "…"
	}
	return s
}
