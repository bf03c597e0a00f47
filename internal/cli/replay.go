package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/formrelay-systems/formrelay/internal/dlq"
	"github.com/formrelay-systems/formrelay/internal/logging"
	"github.com/formrelay-systems/formrelay/internal/replay"
	"github.com/formrelay-systems/formrelay/internal/upstream"
)

var replayLimit int

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-forward persisted failure artifacts",
	Long: `Reads failure artifacts from the queue directory oldest-first and
forwards each one once. Successes are removed from disk; failures stay
for the next run.`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().IntVar(&replayLimit, "limit", 0, "max artifacts to replay (0 = all)")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("formrelay-replay"))
	logging.SetDefault(logger)

	queue, err := dlq.NewQueue(cfg.DLQ.BasePath)
	if err != nil {
		return fmt.Errorf("open failure queue: %w", err)
	}

	client := upstream.New(upstream.Config{
		BaseURL:    cfg.Upstream.BaseURL,
		APIKey:     cfg.Upstream.APIKey,
		Timeout:    cfg.Upstream.Timeout,
		PathPrefix: cfg.Upstream.PathPrefix,
	})

	runner := replay.NewRunner(queue, client, logger)
	summary, err := runner.Run(cmd.Context(), replayLimit)
	if err != nil {
		return err
	}

	fmt.Printf("Replayed: %d\nFailed:   %d\nRemaining: %d\n",
		summary.Replayed, summary.Failed, summary.Remaining)
	return nil
}
