package policy

import "regexp"

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)

	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[a-z0-9._\-]+`)
	apiKeyPattern = regexp.MustCompile(`\b(?:gsk|sk|sk-proj)[_-][A-Za-z0-9_\-]{8,}`)
)

// maxLogText bounds redacted text written to operator logs.
const maxLogText = 2048

// RedactPII masks common high-risk PII patterns.
func RedactPII(input string) (redacted string, changed bool) {
	out := input

	next := emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	// Card before phone, otherwise card numbers match the phone pattern.
	next = cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}

// RedactSecrets masks bearer tokens and provider API keys.
func RedactSecrets(input string) (redacted string, changed bool) {
	out := bearerPattern.ReplaceAllString(input, "Bearer [REDACTED_TOKEN]")
	out = apiKeyPattern.ReplaceAllString(out, "[REDACTED_KEY]")
	return out, out != input
}

// ForLog prepares untrusted text (upstream error bodies, user input) for
// operator logs: secrets and PII are masked and the result is bounded.
func ForLog(input string) string {
	out, _ := RedactSecrets(input)
	out, _ = RedactPII(out)
	if len(out) > maxLogText {
		out = out[:maxLogText] + "...(truncated)"
	}
	return out
}
