package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/formrelay-systems/formrelay/internal/httputil"
	"github.com/formrelay-systems/formrelay/internal/logging"
	"github.com/formrelay-systems/formrelay/internal/models"
	"github.com/formrelay-systems/formrelay/internal/ratelimit"
	"github.com/formrelay-systems/formrelay/internal/status"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "0.1.0"

// RelayServicer is the slice of the relay service the handlers depend on.
type RelayServicer interface {
	Submit(ctx context.Context, formType models.FormType, fields map[string]any, clientIP, userAgent string) models.Acknowledgment
	Stats() models.RelayStats
}

// DLQStats exposes failure-queue counters for the stats endpoint.
type DLQStats interface {
	Stats() map[string]interface{}
}

type SubmitHandler struct {
	service      RelayServicer
	statuses     *status.Registry
	limiter      ratelimit.RateLimiter
	dlqStats     DLQStats
	sharedSecret string
	maxBodySize  int64
	logger       *logging.Logger
}

func NewSubmitHandler(service RelayServicer, statuses *status.Registry, limiter ratelimit.RateLimiter, dlqStats DLQStats, sharedSecret string, maxBodySize int64, logger *logging.Logger) *SubmitHandler {
	if limiter == nil {
		limiter = &ratelimit.NoOpRateLimiter{}
	}
	if maxBodySize <= 0 {
		maxBodySize = 1 << 20
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SubmitHandler{
		service:      service,
		statuses:     statuses,
		limiter:      limiter,
		dlqStats:     dlqStats,
		sharedSecret: sharedSecret,
		maxBodySize:  maxBodySize,
		logger:       logger,
	}
}

// HandleForm serves POST /api/forms and POST /api/forms/{form_type}.
// The path tag is authoritative; untagged requests fall back to a
// formType payload field and then to shape inference.
func (h *SubmitHandler) HandleForm(w http.ResponseWriter, r *http.Request) {
	clientIP := getClientIP(r)

	allowed, err := h.limiter.Allow(r.Context(), clientIP)
	if err != nil {
		// A broken limiter must not block submissions.
		h.logger.WarnContext(r.Context(), "rate limiter unavailable", logging.Error(err))
		allowed = true
	}
	if !allowed {
		httputil.WriteJSON(w, http.StatusTooManyRequests, models.Acknowledgment{
			Success: false,
			Error:   "rate_limited",
		})
		return
	}

	fields, ok := h.readPayload(w, r)
	if !ok {
		return
	}

	var formType models.FormType
	if tag := r.PathValue("form_type"); tag != "" {
		formType, ok = models.ParseFormType(tag)
		if !ok {
			httputil.WriteJSON(w, http.StatusBadRequest, models.Acknowledgment{
				Success: false,
				Error:   models.ErrTagUnknownFormType,
				Detail:  "unknown form type " + tag,
			})
			return
		}
	} else {
		formType, ok = resolveFormType(fields)
		if !ok {
			httputil.WriteJSON(w, http.StatusBadRequest, models.Acknowledgment{
				Success: false,
				Error:   models.ErrTagUnknownFormType,
				Detail:  "supply a form type in the URL or a formType field",
			})
			return
		}
	}

	ack := h.service.Submit(r.Context(), formType, fields, clientIP, r.UserAgent())
	h.writeAck(w, ack)
}

// HandleIngest serves POST /api/ingest, the shared-secret variant used by
// server-side callers. The payload must name its form type explicitly;
// inference is a browser-facing convenience only.
func (h *SubmitHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	fields, ok := h.readPayload(w, r)
	if !ok {
		return
	}

	rawType, _ := fields["formType"].(string)
	formType, ok := models.ParseFormType(rawType)
	if !ok {
		httputil.WriteJSON(w, http.StatusBadRequest, models.Acknowledgment{
			Success: false,
			Error:   models.ErrTagUnknownFormType,
			Detail:  "formType field is required",
		})
		return
	}

	ack := h.service.Submit(r.Context(), formType, fields, getClientIP(r), r.UserAgent())
	h.writeAck(w, ack)
}

// HandleStatus serves GET /api/forms/status/{submission_id} for async
// deployments.
func (h *SubmitHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if h.statuses == nil {
		httputil.WriteError(w, http.StatusNotFound, "status tracking not enabled")
		return
	}

	id := r.PathValue("submission_id")
	rec, ok := h.statuses.Get(id)
	if !ok {
		httputil.WriteError(w, http.StatusNotFound, "unknown submission")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, rec)
}

// Health serves GET /healthz with static service metadata.
func (h *SubmitHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"service": "formrelay",
		"status":  "ok",
		"version": ServiceVersion,
	})
}

// HandleStats serves GET /stats: relay counters, dedup cache size, and
// failure-queue state. Read-only, no side effects.
func (h *SubmitHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	out := map[string]interface{}{
		"relay": h.service.Stats(),
	}
	if h.dlqStats != nil {
		out["dlq"] = h.dlqStats.Stats()
	}
	if h.statuses != nil {
		out["pending_deliveries"] = h.statuses.Pending()
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *SubmitHandler) authorized(r *http.Request) bool {
	if h.sharedSecret == "" {
		return false
	}
	got := r.Header.Get("X-Ingest-Secret")
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.sharedSecret)) == 1
}

// readPayload decodes the JSON body, translating every failure mode into
// a structured acknowledgment before any upstream call is attempted.
func (h *SubmitHandler) readPayload(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodySize))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, models.Acknowledgment{
			Success: false,
			Error:   models.ErrTagInvalidJSON,
		})
		return nil, false
	}
	defer r.Body.Close()

	if len(body) == 0 {
		httputil.WriteJSON(w, http.StatusBadRequest, models.Acknowledgment{
			Success: false,
			Error:   models.ErrTagInvalidJSON,
			Detail:  "empty body",
		})
		return nil, false
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, models.Acknowledgment{
			Success: false,
			Error:   models.ErrTagInvalidJSON,
		})
		return nil, false
	}

	return fields, true
}

// writeAck maps a relay acknowledgment onto an HTTP status.
func (h *SubmitHandler) writeAck(w http.ResponseWriter, ack models.Acknowledgment) {
	switch {
	case ack.Accepted:
		httputil.WriteJSON(w, http.StatusAccepted, ack)
	case ack.Success:
		httputil.WriteJSON(w, http.StatusOK, ack)
	case ack.Error == models.ErrTagUpstreamRejected:
		code := ack.UpstreamStatus
		if code < 400 || code > 599 {
			code = http.StatusBadRequest
		}
		httputil.WriteJSON(w, code, ack)
	case ack.Error == models.ErrTagForwardingFailed:
		httputil.WriteJSON(w, http.StatusBadGateway, ack)
	default:
		httputil.WriteJSON(w, http.StatusInternalServerError, ack)
	}
}

// resolveFormType resolves untagged submissions: an explicit formType
// field wins; shape inference is the last resort.
func resolveFormType(fields map[string]any) (models.FormType, bool) {
	if raw, ok := fields["formType"].(string); ok && raw != "" {
		return models.ParseFormType(raw)
	}
	return models.Infer(fields)
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
