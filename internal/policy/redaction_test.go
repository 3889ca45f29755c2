package policy

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	input := "Email me at sam@example.com or +1 (555) 123-9876 and use 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
}

func TestRedactSecrets(t *testing.T) {
	input := `{"error":{"message":"Invalid API Key gsk_abcdefgh12345678","header":"Authorization: Bearer abc.def-ghi"}}`
	out, changed := RedactSecrets(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	if strings.Contains(out, "gsk_abcdefgh12345678") || strings.Contains(out, "abc.def-ghi") {
		t.Fatalf("secret survived redaction: %q", out)
	}
	if !strings.Contains(out, "Invalid API Key") {
		t.Fatalf("non-secret text was lost: %q", out)
	}
}

func TestForLogBoundsOutput(t *testing.T) {
	out := ForLog(strings.Repeat("x", maxLogText*2))
	if len(out) > maxLogText+len("...(truncated)") {
		t.Fatalf("len(ForLog) = %d, want bounded", len(out))
	}
	if !strings.HasSuffix(out, "...(truncated)") {
		t.Fatalf("ForLog output missing truncation marker")
	}

	if got := ForLog("plain upstream failure"); got != "plain upstream failure" {
		t.Fatalf("ForLog() = %q, want unchanged", got)
	}
}
