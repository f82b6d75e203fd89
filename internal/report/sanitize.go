package report

import "regexp"

var (
	reEmail = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	reIBAN  = regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{10,30}\b`)
	reIDNum = regexp.MustCompile(`\b\d{9,18}\b`)
	rePhone = regexp.MustCompile(`\+\d{1,3}[\s\-]?\d{2,4}([\s\-]?\d{2,4}){2,4}`)
)

// SanitizeIssue masks personal identifiers that validators may have copied
// into issue text. Reports are persisted and exported, so raw PII must never
// leave the analysis call.
func SanitizeIssue(is Issue) Issue {
	is.Description = SanitizeText(is.Description)
	if is.Details != nil {
		clean := make(map[string]string, len(is.Details))
		for k, v := range is.Details {
			clean[k] = SanitizeText(v)
		}
		is.Details = clean
	}
	return is
}

func SanitizeText(s string) string {
	out := s
	out = reEmail.ReplaceAllString(out, "<redacted-email>")
	out = reIBAN.ReplaceAllString(out, "<redacted-account>")
	out = rePhone.ReplaceAllString(out, "<redacted-phone>")
	out = reIDNum.ReplaceAllStringFunc(out, func(tok string) string {
		if len(tok) <= 4 {
			return "<redacted-id>"
		}
		return "<redacted-id>..." + tok[len(tok)-2:]
	})
	return out
}
