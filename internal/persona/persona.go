package persona

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed personas.yaml
var embeddedTable []byte

// Persona is one of the fixed assistant domains and its system prompt.
type Persona struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Prompt string `yaml:"prompt" json:"-"`
}

var table = mustParseTable(embeddedTable)

// Lookup returns the persona registered under id.
func Lookup(id string) (Persona, bool) {
	p, ok := table[id]
	return p, ok
}

// Prompt returns the immutable system prompt for id.
func Prompt(id string) (string, bool) {
	p, ok := table[id]
	if !ok {
		return "", false
	}
	return p.Prompt, true
}

// IDs lists the supported domain identifiers in sorted order.
func IDs() []string {
	ids := make([]string, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func mustParseTable(raw []byte) map[string]Persona {
	t, err := parseTable(raw)
	if err != nil {
		panic(fmt.Sprintf("persona table: %v", err))
	}
	return t
}

func parseTable(raw []byte) (map[string]Persona, error) {
	var doc struct {
		Personas []Persona `yaml:"personas"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(doc.Personas) == 0 {
		return nil, errors.New("no personas defined")
	}

	out := make(map[string]Persona, len(doc.Personas))
	for _, p := range doc.Personas {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			return nil, errors.New("persona with empty id")
		}
		if strings.TrimSpace(p.Prompt) == "" {
			return nil, fmt.Errorf("persona %q has empty prompt", p.ID)
		}
		if _, dup := out[p.ID]; dup {
			return nil, fmt.Errorf("duplicate persona %q", p.ID)
		}
		out[p.ID] = p
	}
	return out, nil
}
