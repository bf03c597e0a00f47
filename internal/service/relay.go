// Package service implements the submission relay: idempotent acceptance,
// upstream forwarding with bounded retries, and failure persistence.
package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/formrelay-systems/formrelay/internal/dedup"
	"github.com/formrelay-systems/formrelay/internal/dlq"
	"github.com/formrelay-systems/formrelay/internal/logging"
	"github.com/formrelay-systems/formrelay/internal/metrics"
	"github.com/formrelay-systems/formrelay/internal/models"
	"github.com/formrelay-systems/formrelay/internal/status"
)

// UpstreamClient forwards one enriched payload to the collection endpoint
// for a form type and reports the attempt's outcome.
type UpstreamClient interface {
	Forward(ctx context.Context, formType models.FormType, payload map[string]any) models.ForwardResult
}

// FailureWriter persists a terminally failed submission for later replay.
type FailureWriter interface {
	Write(ctx context.Context, failed *dlq.FailedSubmission) error
}

type Config struct {
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffFactor  float64
	Async          bool
	QueueSize      int
	Workers        int
}

// RelayService accepts form submissions and guarantees each reaches the
// upstream at least once, collapsing duplicates within the idempotency
// window into a single forwarded call.
type RelayService struct {
	cfg      Config
	dedup    dedup.Store
	upstream UpstreamClient
	failures FailureWriter
	statuses *status.Registry
	logger   *logging.Logger

	queue  chan *models.Submission
	stopCh chan struct{}
	wg     sync.WaitGroup

	statsMu sync.RWMutex
	stats   models.RelayStats
}

// NewRelayService wires the relay. failures and statuses may be nil when
// the DLQ or async mode is disabled.
func NewRelayService(cfg Config, store dedup.Store, client UpstreamClient, failures FailureWriter, statuses *status.Registry, logger *logging.Logger) *RelayService {
	if logger == nil {
		logger = logging.Default()
	}

	s := &RelayService{
		cfg:      cfg,
		dedup:    store,
		upstream: client,
		failures: failures,
		statuses: statuses,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}

	if cfg.Async {
		if cfg.QueueSize <= 0 {
			cfg.QueueSize = 1024
		}
		workers := cfg.Workers
		if workers <= 0 {
			workers = 1
		}
		s.queue = make(chan *models.Submission, cfg.QueueSize)
		for i := 0; i < workers; i++ {
			s.wg.Add(1)
			go s.worker()
		}
	}

	return s
}

// Submit runs one submission through the relay state machine:
// received → (duplicate | forwarding) → (acknowledged-success |
// acknowledged-failure-persisted). It always returns an acknowledgment;
// failures never escape as errors.
func (s *RelayService) Submit(ctx context.Context, formType models.FormType, fields map[string]any, clientIP, userAgent string) models.Acknowledgment {
	id := submissionID(fields)

	// Check-and-record is one atomic store operation, so a concurrent
	// request for the same id cannot slip past the duplicate check while
	// this one is still forwarding.
	dup, err := s.dedup.CheckAndRecord(ctx, id)
	if err != nil {
		// A broken dedup backend must not drop submissions; forward
		// anyway and accept the risk of an upstream duplicate.
		s.logger.WarnContext(ctx, "dedup check failed, forwarding without dedup",
			logging.SubmissionID(id), logging.Error(err))
	}
	if dup {
		s.countOutcome(formType, "duplicate")
		metrics.DuplicatesTotal.Inc()
		if s.statuses != nil {
			s.statuses.Set(id, status.StateDuplicate, "")
		}
		s.logger.InfoContext(ctx, "duplicate submission short-circuited",
			logging.SubmissionID(id), logging.FormType(string(formType)))
		return models.Acknowledgment{
			Success:      true,
			SubmissionID: id,
			IsDuplicate:  true,
		}
	}

	sub := &models.Submission{
		ID:         id,
		FormType:   formType,
		ReceivedAt: time.Now().UTC(),
		Fields:     fields,
		ClientIP:   clientIP,
		UserAgent:  userAgent,
	}

	if s.cfg.Async {
		// The pending record must exist before the send: once a worker
		// holds the submission it may write the delivery outcome at any
		// moment, and a later pending write would clobber it.
		if s.statuses != nil {
			s.statuses.Set(id, status.StatePending, "")
		}
		select {
		case s.queue <- sub:
			metrics.QueueDepth.Inc()
			return models.Acknowledgment{
				Success:      true,
				SubmissionID: id,
				Accepted:     true,
				Status:       string(status.StatePending),
			}
		default:
			// Queue full: fall back to synchronous delivery rather
			// than shedding the submission.
			s.logger.WarnContext(ctx, "async queue full, delivering synchronously",
				logging.SubmissionID(id))
		}
	}

	// The retry sequence runs to completion even if the caller goes
	// away; the submission was accepted the moment it was recorded.
	return s.deliver(context.WithoutCancel(ctx), sub)
}

// deliver forwards a submission with bounded retries and multiplicative
// backoff, persisting to the DLQ when the budget is exhausted.
func (s *RelayService) deliver(ctx context.Context, sub *models.Submission) models.Acknowledgment {
	payload := sub.Enriched()
	maxAttempts := 1 + s.cfg.MaxRetries

	var result models.ForwardResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(s.backoff(attempt - 1))
		}

		result = s.upstream.Forward(ctx, sub.FormType, payload)

		if result.OK {
			s.countOutcome(sub.FormType, "forwarded")
			if s.statuses != nil {
				s.statuses.Set(sub.ID, status.StateDelivered, result.UpstreamID)
			}
			s.logger.InfoContext(ctx, "submission forwarded",
				logging.SubmissionID(sub.ID),
				logging.FormType(string(sub.FormType)),
				logging.Attempt(attempt),
			)
			return models.Acknowledgment{
				Success:      true,
				SubmissionID: sub.ID,
				UpstreamID:   result.UpstreamID,
			}
		}

		if !result.Retryable() {
			// Upstream rejected the data; surface its answer verbatim.
			s.countOutcome(sub.FormType, "rejected")
			if s.statuses != nil {
				s.statuses.Set(sub.ID, status.StateFailed, "")
			}
			s.logger.WarnContext(ctx, "upstream rejected submission",
				logging.SubmissionID(sub.ID),
				logging.Status(result.StatusCode),
			)
			return models.Acknowledgment{
				Success:        false,
				SubmissionID:   sub.ID,
				Error:          models.ErrTagUpstreamRejected,
				Detail:         result.Body,
				UpstreamStatus: result.StatusCode,
			}
		}

		s.logger.WarnContext(ctx, "forward attempt failed",
			logging.SubmissionID(sub.ID),
			logging.Attempt(attempt),
			logging.Status(result.StatusCode),
			logging.Endpoint(result.Endpoint),
		)
	}

	// Retry budget exhausted: persist for manual replay and report 502.
	metrics.ForwardFailures.Inc()
	s.countOutcome(sub.FormType, "failed")
	if s.statuses != nil {
		s.statuses.Set(sub.ID, status.StateFailed, "")
	}

	persisted := false
	if s.failures != nil {
		failed := &dlq.FailedSubmission{
			Timestamp:    time.Now().UTC(),
			SubmissionID: sub.ID,
			FormType:     sub.FormType,
			Payload:      payload,
			LastResult:   result,
			Attempts:     maxAttempts,
			Error:        "retry budget exhausted",
		}
		if err := s.failures.Write(ctx, failed); err != nil {
			s.logger.ErrorContext(ctx, "failed to persist failure artifact",
				logging.SubmissionID(sub.ID), logging.Error(err))
		} else {
			persisted = true
		}
	}

	s.logger.ErrorContext(ctx, "forwarding failed, retries exhausted",
		logging.SubmissionID(sub.ID),
		logging.FormType(string(sub.FormType)),
		logging.Attempt(maxAttempts),
	)

	return models.Acknowledgment{
		Success:      false,
		SubmissionID: sub.ID,
		Error:        models.ErrTagForwardingFailed,
		Persisted:    persisted,
	}
}

// backoff returns the delay before retry n (1-based):
// initial × factor^(n-1), so delays strictly grow.
func (s *RelayService) backoff(n int) time.Duration {
	return time.Duration(float64(s.cfg.BackoffInitial) * math.Pow(s.cfg.BackoffFactor, float64(n-1)))
}

func (s *RelayService) worker() {
	defer s.wg.Done()

	for {
		select {
		case sub := <-s.queue:
			metrics.QueueDepth.Dec()
			s.deliver(context.Background(), sub)
		case <-s.stopCh:
			return
		}
	}
}

// Stats returns a snapshot for the stats endpoint.
func (s *RelayService) Stats() models.RelayStats {
	s.statsMu.RLock()
	snapshot := s.stats
	s.statsMu.RUnlock()

	if n, err := s.dedup.Len(context.Background()); err == nil {
		snapshot.DedupEntries = n
		metrics.DedupEntries.Set(float64(n))
	}
	if s.queue != nil {
		snapshot.QueueDepth = len(s.queue)
	}

	return snapshot
}

// Close stops the async workers. Queued submissions that have not started
// delivery are lost, same as any other in-memory state on shutdown.
func (s *RelayService) Close() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *RelayService) countOutcome(formType models.FormType, outcome string) {
	metrics.SubmissionsTotal.WithLabelValues(string(formType), outcome).Inc()

	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	s.stats.TotalSubmissions++
	s.stats.LastSubmission = time.Now()
	switch outcome {
	case "forwarded":
		s.stats.Forwarded++
	case "duplicate":
		s.stats.Duplicates++
	case "rejected":
		s.stats.Rejected++
	case "failed":
		s.stats.Failed++
	}
}

// submissionID reuses a caller-supplied id when present so client retries
// dedupe, and otherwise generates one unique for practical purposes.
func submissionID(fields map[string]any) string {
	for _, key := range []string{"submissionId", "trace_id"} {
		if v, ok := fields[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return fmt.Sprintf("sub_%d_%s", time.Now().UnixMilli(), uuid.New().String()[:8])
}
