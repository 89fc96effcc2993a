package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "domaincrawl",
		Short: "Domain-scoped web crawler with text and document extraction",
		Long: `domaincrawl crawls the web sites listed in a seed file.

Each seed URL belongs to an entity (for example a school or a company).
The crawl never leaves the seed's registrable domain and emits one record
per page with its normalized text, image URLs and the text of linked
PDF, DOCX and DOC documents.

Pages are fetched over plain HTTP by default. Use --mode browser for sites
that build their navigation with JavaScript.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewPagesCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
