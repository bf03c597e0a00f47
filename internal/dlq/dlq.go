// Package dlq persists terminally failed submissions to local disk for
// offline inspection and manual replay. One JSON file per failure is the
// only durable state this service produces.
package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/formrelay-systems/formrelay/internal/logging"
	"github.com/formrelay-systems/formrelay/internal/metrics"
	"github.com/formrelay-systems/formrelay/internal/models"
)

// FailedSubmission is the failure-replay artifact: the full enriched
// payload plus the last forward result, everything replay needs.
type FailedSubmission struct {
	Timestamp    time.Time            `json:"timestamp"`
	SubmissionID string               `json:"submission_id"`
	FormType     models.FormType      `json:"form_type"`
	Payload      map[string]any       `json:"payload"`
	LastResult   models.ForwardResult `json:"last_result"`
	Attempts     int                  `json:"attempts"`
	Error        string               `json:"error"`
}

// Entry is a listed artifact together with the file that holds it, so
// replay can remove it after a successful re-forward.
type Entry struct {
	File string `json:"file"`
	FailedSubmission
}

// Queue writes failure artifacts to a directory.
type Queue struct {
	basePath string
	logger   *logging.Logger
	mu       sync.Mutex
	written  uint64
}

// NewQueue creates a queue that writes to the specified directory.
func NewQueue(basePath string) (*Queue, error) {
	if basePath == "" {
		basePath = "/var/lib/formrelay/dlq"
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create dlq directory: %w", err)
	}

	return &Queue{
		basePath: basePath,
		logger:   logging.Default(),
	}, nil
}

// Write records one terminally failed submission. The filename carries
// the timestamp and the submission id so artifacts are greppable and
// sort chronologically.
func (q *Queue) Write(ctx context.Context, failed *FailedSubmission) error {
	if q == nil {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if failed.Timestamp.IsZero() {
		failed.Timestamp = time.Now().UTC()
	}

	filename := fmt.Sprintf("failed_%d_%s.json",
		failed.Timestamp.Unix(),
		failed.SubmissionID,
	)
	filePath := filepath.Join(q.basePath, filename)

	data, marshalErr := json.MarshalIndent(failed, "", "  ")
	if marshalErr != nil {
		q.logger.ErrorContext(ctx, "failed to marshal dlq artifact", logging.Error(marshalErr))
		return marshalErr
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		q.logger.ErrorContext(ctx, "failed to write dlq artifact", logging.Error(err))
		return err
	}

	q.written++
	metrics.DLQWrites.Inc()
	q.logger.InfoContext(ctx, "dlq: wrote failure artifact",
		slog.String("file", filename),
		logging.SubmissionID(failed.SubmissionID),
		logging.FormType(string(failed.FormType)),
	)

	return nil
}

// Stats returns queue metrics for the stats endpoint.
func (q *Queue) Stats() map[string]interface{} {
	if q == nil {
		return map[string]interface{}{
			"enabled": false,
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	files, err := os.ReadDir(q.basePath)
	if err != nil {
		q.logger.Error("failed to read dlq directory", logging.Error(err))
		return map[string]interface{}{
			"enabled":       true,
			"written":       q.written,
			"pending_files": 0,
			"error":         err.Error(),
		}
	}

	return map[string]interface{}{
		"enabled":       true,
		"written":       q.written,
		"pending_files": len(files),
		"base_path":     q.basePath,
	}
}

// List returns artifacts oldest-first, up to limit (0 means all).
// Unreadable or corrupt files are skipped, not fatal.
func (q *Queue) List(ctx context.Context, limit int) ([]Entry, error) {
	if q == nil {
		return nil, fmt.Errorf("dlq not enabled")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	files, err := os.ReadDir(q.basePath)
	if err != nil {
		return nil, fmt.Errorf("read dlq directory: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		if !f.IsDir() {
			names = append(names, f.Name())
		}
	}
	// failed_<unix>_... names sort chronologically as strings.
	sort.Strings(names)

	var entries []Entry
	for _, name := range names {
		if limit > 0 && len(entries) >= limit {
			break
		}

		data, err := os.ReadFile(filepath.Join(q.basePath, name))
		if err != nil {
			q.logger.ErrorContext(ctx, "failed to read dlq artifact", slog.String("file", name), logging.Error(err))
			continue
		}

		var failed FailedSubmission
		if err := json.Unmarshal(data, &failed); err != nil {
			q.logger.ErrorContext(ctx, "failed to parse dlq artifact", slog.String("file", name), logging.Error(err))
			continue
		}

		entries = append(entries, Entry{File: name, FailedSubmission: failed})
	}

	return entries, nil
}

// Remove deletes one artifact by filename, typically after replay.
func (q *Queue) Remove(ctx context.Context, file string) error {
	if q == nil {
		return fmt.Errorf("dlq not enabled")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	// Refuse path traversal; artifacts live flat in basePath.
	if filepath.Base(file) != file {
		return fmt.Errorf("invalid artifact name %q", file)
	}

	if err := os.Remove(filepath.Join(q.basePath, file)); err != nil {
		return fmt.Errorf("delete dlq artifact: %w", err)
	}

	q.logger.InfoContext(ctx, "dlq: deleted artifact", slog.String("file", file))
	return nil
}

// Purge removes all artifacts and returns how many were deleted.
func (q *Queue) Purge(ctx context.Context) (int, error) {
	if q == nil {
		return 0, fmt.Errorf("dlq not enabled")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	files, err := os.ReadDir(q.basePath)
	if err != nil {
		return 0, fmt.Errorf("read dlq directory: %w", err)
	}

	deleted := 0
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		if err := os.Remove(filepath.Join(q.basePath, file.Name())); err != nil {
			q.logger.ErrorContext(ctx, "failed to delete dlq artifact", slog.String("file", file.Name()), logging.Error(err))
			continue
		}
		deleted++
	}

	q.logger.InfoContext(ctx, "dlq: purged artifacts", slog.Int("deleted", deleted))
	return deleted, nil
}
