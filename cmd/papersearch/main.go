// Package main provides the papersearch operator CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"paper-search-go/internal/config"
)

// ExitError is returned for any command failure.
const ExitError = 1

var (
	configPath  string
	humanOutput bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "papersearch",
	Short: "Operator CLI for the arXiv semantic search service",
	Long: `papersearch is a companion CLI for the search server.

It can mint admin tokens for the ingest API, normalize arXiv
identifiers, fetch paper metadata, run database migrations and
enqueue papers for indexing without going through HTTP.

All commands output JSON by default.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./configs/config.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
}

// loadConfig 读取 --config 指定的配置文件并叠加环境变量。
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config %s: %w", configPath, err)
	}
	return cfg, nil
}
