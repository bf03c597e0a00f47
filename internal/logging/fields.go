package logging

import "log/slog"

// Common field names for consistent logging across the service.
const (
	FieldService      = "service"
	FieldIP           = "ip"
	FieldMethod       = "method"
	FieldPath         = "path"
	FieldStatus       = "status"
	FieldError        = "error"
	FieldSubmissionID = "submission_id"
	FieldFormType     = "form_type"
	FieldAttempt      = "attempt"
	FieldEndpoint     = "endpoint"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// IP returns a slog attribute for the client IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// SubmissionID returns a slog attribute for a submission ID.
func SubmissionID(id string) slog.Attr {
	return slog.String(FieldSubmissionID, id)
}

// FormType returns a slog attribute for a form type.
func FormType(ft string) slog.Attr {
	return slog.String(FieldFormType, ft)
}

// Attempt returns a slog attribute for a forward attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(FieldAttempt, n)
}

// Endpoint returns a slog attribute for an upstream endpoint URL.
func Endpoint(url string) slog.Attr {
	return slog.String(FieldEndpoint, url)
}
