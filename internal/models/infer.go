package models

// Infer guesses the form category from payload shape. This is a
// best-effort fallback for callers that omit the form type, not a
// documented contract: overlapping fields are resolved by a fixed
// precedence (company beats position beats ROI fields beats bare email)
// so routing is at least deterministic. Callers should pass the form type
// explicitly.
func Infer(fields map[string]any) (FormType, bool) {
	if hasAny(fields, "company", "companyName", "company_name", "companySize") {
		return FormContactSales, true
	}
	if hasAny(fields, "position", "jobTitle", "job_title", "resume", "resumeUrl", "coverLetter") {
		return FormJobApplication, true
	}
	if hasAny(fields, "employees", "teamSize", "hoursPerWeek", "currentCost", "annualRevenue") {
		return FormROICalculator, true
	}
	if hasAny(fields, "email") {
		return FormNewsletterSignup, true
	}
	return "", false
}

func hasAny(fields map[string]any, keys ...string) bool {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok {
			continue
		}
		// An empty string is treated as absent; browsers post empty
		// inputs for untouched fields.
		if s, isStr := v.(string); isStr && s == "" {
			continue
		}
		if v == nil {
			continue
		}
		return true
	}
	return false
}
