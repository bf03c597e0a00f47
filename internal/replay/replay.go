// Package replay re-forwards persisted failure artifacts to the admin
// dashboard API. It is driven by the replay CLI command, not by the
// serving path.
package replay

import (
	"context"

	"github.com/formrelay-systems/formrelay/internal/dlq"
	"github.com/formrelay-systems/formrelay/internal/logging"
	"github.com/formrelay-systems/formrelay/internal/models"
)

// Forwarder is the slice of the upstream client replay depends on.
type Forwarder interface {
	Forward(ctx context.Context, formType models.FormType, payload map[string]any) models.ForwardResult
}

// Summary reports the outcome of one replay run.
type Summary struct {
	Replayed  int `json:"replayed"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

type Runner struct {
	queue    *dlq.Queue
	upstream Forwarder
	logger   *logging.Logger
}

func NewRunner(queue *dlq.Queue, upstream Forwarder, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{
		queue:    queue,
		upstream: upstream,
		logger:   logger,
	}
}

// Run replays up to limit artifacts, oldest first (limit <= 0 means all).
// Each artifact gets a single forward attempt per run; successes are
// removed from disk, failures stay for the next run. The enriched payload
// is re-sent as persisted, so the upstream sees the original submission id
// and timestamps.
func (r *Runner) Run(ctx context.Context, limit int) (Summary, error) {
	entries, err := r.queue.List(ctx, limit)
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			summary.Remaining += len(entries) - summary.Replayed - summary.Failed
			return summary, err
		}

		result := r.upstream.Forward(ctx, entry.FormType, entry.Payload)
		if !result.OK {
			summary.Failed++
			r.logger.WarnContext(ctx, "replay attempt failed",
				logging.SubmissionID(entry.SubmissionID),
				logging.FormType(string(entry.FormType)),
				logging.Status(result.StatusCode),
			)
			continue
		}

		if err := r.queue.Remove(ctx, entry.File); err != nil {
			// Delivered upstream but still on disk; count it replayed
			// and let the next run hit upstream dedup.
			r.logger.ErrorContext(ctx, "failed to remove replayed artifact",
				logging.SubmissionID(entry.SubmissionID),
				logging.Error(err),
			)
		}
		summary.Replayed++
		r.logger.InfoContext(ctx, "submission replayed",
			logging.SubmissionID(entry.SubmissionID),
			logging.FormType(string(entry.FormType)),
		)
	}

	remaining, err := r.queue.List(ctx, 0)
	if err == nil {
		summary.Remaining = len(remaining)
	}
	return summary, nil
}
