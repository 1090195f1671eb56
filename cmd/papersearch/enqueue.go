package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"paper-search-go/internal/repository"
	"paper-search-go/internal/service"
	"paper-search-go/pkg/database"
	"paper-search-go/pkg/kafka"
)

var enqueueRequestedBy string

func init() {
	enqueueCmd.Flags().StringVar(&enqueueRequestedBy, "requested-by", "cli", "Recorded as requested_by on each task")
	rootCmd.AddCommand(enqueueCmd)
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <id>...",
	Short: "Enqueue papers for indexing",
	Long: fmt.Sprintf(`Mark papers as pending and publish one index task per paper.

At most %d ids are accepted per call. If any id is invalid
nothing is enqueued.

Example:
  papersearch enqueue 1706.03762 1810.04805`, service.MaxEnqueueBatch),
	Args: cobra.RangeArgs(1, service.MaxEnqueueBatch),
	RunE: runEnqueue,
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := database.InitMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()

	svc := service.NewIndexService(repository.NewIngestRepository(db), producer)
	ids, err := svc.Enqueue(cmd.Context(), args, enqueueRequestedBy)
	if err != nil {
		return fmt.Errorf("enqueueing: %w", err)
	}
	if humanOutput {
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	}
	return outputJSON(cmd.OutOrStdout(), map[string]interface{}{"enqueued": ids})
}
