package persona

import (
	"strings"
	"testing"
)

func TestIDsAreTheFixedDomains(t *testing.T) {
	got := strings.Join(IDs(), ",")
	want := "cinephile,cybersec,explorer,traveller"
	if got != want {
		t.Fatalf("IDs() = %q, want %q", got, want)
	}
}

func TestLookupKnownDomain(t *testing.T) {
	p, ok := Lookup("explorer")
	if !ok {
		t.Fatalf("Lookup(explorer) not found")
	}
	if p.Name != "Explorer.ai" {
		t.Fatalf("Name = %q, want %q", p.Name, "Explorer.ai")
	}
	if !strings.HasPrefix(p.Prompt, "You are Explorer.ai, a curiosity-driven AI.") {
		t.Fatalf("unexpected prompt: %q", p.Prompt)
	}

	prompt, ok := Prompt("cybersec")
	if !ok {
		t.Fatalf("Prompt(cybersec) not found")
	}
	if !strings.Contains(prompt, "MUST refuse illegal hacking requests") {
		t.Fatalf("cybersec prompt missing refusal clause: %q", prompt)
	}
}

func TestLookupUnknownDomain(t *testing.T) {
	for _, id := range []string{"unknown", "", "Explorer", "constructor"} {
		if _, ok := Lookup(id); ok {
			t.Fatalf("Lookup(%q) should fail", id)
		}
		if _, ok := Prompt(id); ok {
			t.Fatalf("Prompt(%q) should fail", id)
		}
	}
}

func TestParseTableRejectsDuplicates(t *testing.T) {
	raw := []byte(`
personas:
  - id: a
    prompt: one
  - id: a
    prompt: two
`)
	if _, err := parseTable(raw); err == nil {
		t.Fatalf("parseTable() expected duplicate error")
	}
}

func TestParseTableRejectsEmptyPrompt(t *testing.T) {
	raw := []byte(`
personas:
  - id: a
    prompt: ""
`)
	if _, err := parseTable(raw); err == nil {
		t.Fatalf("parseTable() expected empty prompt error")
	}
}
