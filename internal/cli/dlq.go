package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/formrelay-systems/formrelay/internal/dlq"
)

var dlqListLimit int

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect the failure queue",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted failure artifacts, oldest first",
	RunE:  runDLQList,
}

var dlqStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show failure queue counters",
	RunE:  runDLQStats,
}

var dlqPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete all persisted failure artifacts",
	RunE:  runDLQPurge,
}

func init() {
	dlqListCmd.Flags().IntVar(&dlqListLimit, "limit", 0, "max artifacts to show (0 = all)")
	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqStatsCmd)
	dlqCmd.AddCommand(dlqPurgeCmd)
	rootCmd.AddCommand(dlqCmd)
}

func runDLQList(cmd *cobra.Command, args []string) error {
	queue, err := dlq.NewQueue(cfg.DLQ.BasePath)
	if err != nil {
		return fmt.Errorf("open failure queue: %w", err)
	}

	entries, err := queue.List(cmd.Context(), dlqListLimit)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("Failure queue is empty")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tSUBMISSION\tFORM TYPE\tATTEMPTS\tLAST STATUS\tFAILED AT")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			e.File,
			e.SubmissionID,
			e.FormType,
			e.Attempts,
			e.LastResult.StatusCode,
			e.Timestamp.Format("2006-01-02 15:04:05"),
		)
	}
	return w.Flush()
}

func runDLQStats(cmd *cobra.Command, args []string) error {
	queue, err := dlq.NewQueue(cfg.DLQ.BasePath)
	if err != nil {
		return fmt.Errorf("open failure queue: %w", err)
	}

	out, err := json.MarshalIndent(queue.Stats(), "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func runDLQPurge(cmd *cobra.Command, args []string) error {
	queue, err := dlq.NewQueue(cfg.DLQ.BasePath)
	if err != nil {
		return fmt.Errorf("open failure queue: %w", err)
	}

	removed, err := queue.Purge(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Removed %d artifacts\n", removed)
	return nil
}
