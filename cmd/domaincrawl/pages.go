package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/domaincrawl/internal/config"
	"github.com/nao1215/domaincrawl/internal/database"
	"github.com/nao1215/domaincrawl/internal/model"
)

// maxTextPreview is the number of text runes shown per page in table output.
const maxTextPreview = 60

// NewPagesCmd creates the pages command.
func NewPagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pages [entity-id]",
		Short: "Show crawled pages stored in the local database",
		Long: `Pages lists what earlier crawls stored in the local database.

Without an argument it lists every entity with its page count and the
time of its last crawl. With an entity id it lists that entity's pages,
or its crawl diagnostics history with --runs.

Examples:
  # List all entities
  domaincrawl pages

  # List the pages of one entity as JSON
  domaincrawl pages --json 370014000000

  # Show the diagnostics of every crawl of one entity
  domaincrawl pages --runs 370014000000`,
		Args: cobra.MaximumNArgs(1),
		RunE: runPagesCmd,
	}

	cmd.Flags().BoolP("runs", "R", false, "Show crawl diagnostics history instead of pages")
	cmd.Flags().BoolP("json", "j", false, "Output JSON")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the database")

	return cmd
}

func runPagesCmd(cmd *cobra.Command, args []string) error {
	runs, err := cmd.Flags().GetBool("runs")
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if runs && len(args) == 0 {
		return errors.New("--runs requires an entity id")
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case len(args) == 0:
		entities, err := db.ListEntities(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(out, entities)
		}
		return writeEntities(out, entities)
	case runs:
		records, err := db.GetRuns(ctx, args[0])
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(out, records)
		}
		return writeRuns(out, records)
	default:
		pages, err := db.GetPages(ctx, args[0])
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(out, pages)
		}
		return writePages(out, pages)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeEntities(w io.Writer, entities []database.EntitySummary) error {
	if len(entities) == 0 {
		_, err := fmt.Fprintln(w, "No crawled entities found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY\tPAGES\tLAST CRAWLED")
	for _, e := range entities {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", e.EntityID, e.Pages, e.LastCrawled.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func writePages(w io.Writer, pages []*model.PageRecord) error {
	if len(pages) == 0 {
		_, err := fmt.Fprintln(w, "No pages found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DEPTH\tURL\tIMAGES\tFILES\tTEXT")
	for _, p := range pages {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n",
			p.Depth, p.URL, len(p.ImageURLs), len(p.FileURLs), preview(p.Text, maxTextPreview))
	}
	return tw.Flush()
}

func writeRuns(w io.Writer, records []database.RunRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No crawl runs found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tMODE\tPAGES\tLINKS\tFOLLOWED\tERROR")
	for _, r := range records {
		d := r.Diagnostics
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID, r.Timestamp.Local().Format(time.DateTime), d.Mode, d.PagesEmitted,
			d.LinksFound(), percent(d.LinksFollowed(), d.LinksFound()), d.Error)
	}
	return tw.Flush()
}

func percent(part, total int64) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", model.Percent(part, total))
}

// preview returns the first n runes of s on one line.
func preview(s string, n int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' || c == '\t' {
			r[i] = ' '
		}
	}
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
