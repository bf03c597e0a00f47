package models

import (
	"time"
)

// FormType tags a submission with the form category it came from. Callers
// should always supply it explicitly; payload-shape inference exists only
// as a fallback (see Infer).
type FormType string

const (
	FormDemoRequest      FormType = "demo-request"
	FormROICalculator    FormType = "roi-calculator"
	FormJobApplication   FormType = "job-application"
	FormNewsletterSignup FormType = "newsletter-signup"
	FormContactSales     FormType = "contact-sales"
)

// KnownFormTypes lists every form category the proxy accepts.
var KnownFormTypes = []FormType{
	FormDemoRequest,
	FormROICalculator,
	FormJobApplication,
	FormNewsletterSignup,
	FormContactSales,
}

// ParseFormType validates a form type tag.
func ParseFormType(s string) (FormType, bool) {
	for _, ft := range KnownFormTypes {
		if string(ft) == s {
			return ft, true
		}
	}
	return "", false
}

// Submission is one logical form-post event. The field map is opaque to
// the proxy; validation is the upstream's responsibility.
type Submission struct {
	ID         string         `json:"submission_id"`
	FormType   FormType       `json:"form_type"`
	ReceivedAt time.Time      `json:"received_at"`
	Fields     map[string]any `json:"fields"`
	ClientIP   string         `json:"client_ip,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
}

// Enriched returns the payload sent upstream: the caller's fields plus the
// proxy's metadata. Caller fields win nothing here; metadata keys overwrite
// same-named payload keys so the upstream always sees the proxy's values.
func (s *Submission) Enriched() map[string]any {
	out := make(map[string]any, len(s.Fields)+5)
	for k, v := range s.Fields {
		out[k] = v
	}
	out["submissionId"] = s.ID
	out["formType"] = string(s.FormType)
	out["receivedAt"] = s.ReceivedAt.UTC().Format(time.RFC3339Nano)
	out["source"] = "formrelay"
	if s.ClientIP != "" {
		out["clientIp"] = s.ClientIP
	}
	if s.UserAgent != "" {
		out["userAgent"] = s.UserAgent
	}
	return out
}

// ForwardResult captures the outcome of one upstream forwarding attempt.
type ForwardResult struct {
	OK         bool   `json:"ok"`
	StatusCode int    `json:"status_code"`
	Body       string `json:"body,omitempty"`
	Endpoint   string `json:"endpoint"`
	UpstreamID string `json:"upstream_id,omitempty"`
	Err        string `json:"error,omitempty"`
}

// Retryable reports whether the attempt failed in a way worth retrying:
// network/timeout errors (no status) and upstream 5xx. Upstream 4xx is a
// terminal rejection of the data.
func (r ForwardResult) Retryable() bool {
	if r.OK {
		return false
	}
	return r.StatusCode == 0 || r.StatusCode >= 500
}

// Acknowledgment is the normalized response returned to every caller,
// success or failure. Key casing matches the original browser-facing wire
// format.
type Acknowledgment struct {
	Success        bool   `json:"success"`
	SubmissionID   string `json:"submissionId"`
	IsDuplicate    bool   `json:"isDuplicate,omitempty"`
	UpstreamID     string `json:"id,omitempty"`
	Accepted       bool   `json:"accepted,omitempty"`
	Status         string `json:"status,omitempty"`
	Error          string `json:"error,omitempty"`
	Detail         string `json:"detail,omitempty"`
	UpstreamStatus int    `json:"upstreamStatus,omitempty"`
	Persisted      bool   `json:"persisted,omitempty"`
}

// Acknowledgment error tags.
const (
	ErrTagUpstreamRejected = "upstream_rejected"
	ErrTagForwardingFailed = "forwarding_failed"
	ErrTagInvalidJSON      = "invalid_json"
	ErrTagUnknownFormType  = "unknown_form_type"
	ErrTagProxyError       = "proxy_error"
)

// RelayStats is a read-only snapshot exposed by the stats endpoint.
type RelayStats struct {
	TotalSubmissions int64     `json:"total_submissions"`
	Forwarded        int64     `json:"forwarded"`
	Duplicates       int64     `json:"duplicates"`
	Rejected         int64     `json:"rejected"`
	Failed           int64     `json:"failed"`
	DedupEntries     int       `json:"dedup_entries"`
	QueueDepth       int       `json:"queue_depth"`
	LastSubmission   time.Time `json:"last_submission"`
}
