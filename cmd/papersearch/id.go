package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"paper-search-go/pkg/arxiv"
)

func init() {
	rootCmd.AddCommand(idCmd)
}

var idCmd = &cobra.Command{
	Use:   "id <text>...",
	Short: "Extract normalized arXiv identifiers from text or URLs",
	Long: `Extract the arXiv identifier from each argument.

Example:
  papersearch id https://arxiv.org/abs/1706.03762v7 arXiv:hep-th/9901001`,
	Args: cobra.MinimumNArgs(1),
	RunE: runID,
}

type idResult struct {
	Input string `json:"input"`
	ID    string `json:"id,omitempty"`
	Found bool   `json:"found"`
}

func runID(cmd *cobra.Command, args []string) error {
	results := make([]idResult, 0, len(args))
	for _, arg := range args {
		id, ok := arxiv.ExtractID(arg)
		results = append(results, idResult{Input: arg, ID: id, Found: ok})
	}

	if humanOutput {
		for _, r := range results {
			if r.Found {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", r.Input, r.ID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t-\n", r.Input)
			}
		}
		return nil
	}
	return outputJSON(cmd.OutOrStdout(), results)
}
