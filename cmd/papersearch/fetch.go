package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"paper-search-go/pkg/arxiv"
)

func init() {
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <id>",
	Short: "Fetch paper metadata from the arXiv API",
	Long: `Fetch and validate the metadata of a single paper.

Example:
  papersearch fetch 1706.03762`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	id, ok := arxiv.ExtractID(args[0])
	if !ok {
		return fmt.Errorf("not an arXiv identifier: %s", args[0])
	}

	paper, err := arxiv.NewClient(cfg.Arxiv).FetchByID(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", id, err)
	}

	if humanOutput {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, paper.ID)
		fmt.Fprintf(out, "Title:      %s\n", paper.Title)
		fmt.Fprintf(out, "Authors:    %s\n", strings.Join(paper.Authors, ", "))
		fmt.Fprintf(out, "Date:       %d-%02d\n", paper.Year, paper.Month)
		fmt.Fprintf(out, "Categories: %s\n", strings.Join(paper.Categories, " "))
		fmt.Fprintf(out, "URL:        %s\n\n", paper.URL)
		fmt.Fprintln(out, paper.Abstract)
		return nil
	}
	return outputJSON(cmd.OutOrStdout(), paper)
}
