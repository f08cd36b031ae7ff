// Package metadata holds repository metadata records and the deterministic
// corpus text used as the unit of embedding.
package metadata

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Metadata is a free-form repository analysis record. Absent fields are
// omitted from the corpus text, never defaulted to placeholder strings.
type Metadata struct {
	RepoID         string        `json:"repo_id,omitempty" yaml:"repo_id,omitempty"`
	GitHubURL      string        `json:"github_url,omitempty" yaml:"github_url,omitempty"`
	GitHubRepo     string        `json:"github_repo,omitempty" yaml:"github_repo,omitempty"`
	Overview       string        `json:"overview,omitempty" yaml:"overview,omitempty"`
	BusinessDomain string        `json:"business_domain,omitempty" yaml:"business_domain,omitempty"`
	Architecture   *Architecture `json:"architecture,omitempty" yaml:"architecture,omitempty"`
	TechStack      *TechStack    `json:"tech_stack,omitempty" yaml:"tech_stack,omitempty"`
}

// Architecture describes the repository's architecture.
type Architecture struct {
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// ResolveID returns the repository identifier for this record.
// Older analysis records carry github_url or github_repo instead of repo_id.
func (m *Metadata) ResolveID() string {
	switch {
	case m.RepoID != "":
		return m.RepoID
	case m.GitHubURL != "":
		return m.GitHubURL
	default:
		return m.GitHubRepo
	}
}

// CorpusText flattens the metadata into a single string for embedding.
// Present fields are concatenated in fixed order: overview, business domain,
// architecture description, tech stack. Identical metadata always yields
// identical text.
func (m Metadata) CorpusText() string {
	var parts []string

	if m.Overview != "" {
		parts = append(parts, "Overview: "+m.Overview)
	}
	if m.BusinessDomain != "" {
		parts = append(parts, "Business Domain: "+m.BusinessDomain)
	}
	if m.Architecture != nil && m.Architecture.Description != "" {
		parts = append(parts, "Architecture: "+m.Architecture.Description)
	}
	if techs := m.TechStack.Flatten(); len(techs) > 0 {
		parts = append(parts, "Tech Stack: "+strings.Join(techs, ", "))
	}

	return strings.Join(parts, " ")
}

// TechStack accepts three wire shapes: a flat list, a category→list mapping,
// or a bare string.
type TechStack struct {
	Items      []string
	Categories map[string][]string
}

// Flatten returns the deduplicated technology list. Categorized stacks are
// flattened in sorted-category order so the result is deterministic; the
// first occurrence of a duplicate wins.
func (t *TechStack) Flatten() []string {
	if t == nil {
		return nil
	}

	var raw []string
	if t.Categories != nil {
		cats := make([]string, 0, len(t.Categories))
		for c := range t.Categories {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		for _, c := range cats {
			raw = append(raw, t.Categories[c]...)
		}
	} else {
		raw = t.Items
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, tech := range raw {
		if tech == "" {
			continue
		}
		if _, dup := seen[tech]; dup {
			continue
		}
		seen[tech] = struct{}{}
		out = append(out, tech)
	}
	return out
}

// UnmarshalJSON accepts a string, a list of strings, or a category map whose
// values are strings or lists of strings.
func (t *TechStack) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "" {
			t.Items = []string{s}
		}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		t.Items = list
		return nil
	}

	var categorized map[string]json.RawMessage
	if err := json.Unmarshal(data, &categorized); err != nil {
		return fmt.Errorf("tech_stack: unsupported shape: %w", err)
	}

	t.Categories = make(map[string][]string, len(categorized))
	for cat, v := range categorized {
		var techs []string
		if err := json.Unmarshal(v, &techs); err == nil {
			t.Categories[cat] = techs
			continue
		}
		var one string
		if err := json.Unmarshal(v, &one); err != nil {
			return fmt.Errorf("tech_stack: category %q: unsupported shape", cat)
		}
		t.Categories[cat] = []string{one}
	}
	return nil
}

// MarshalJSON re-emits the original shape: a map when categorized, a list
// otherwise. Map keys serialize in sorted order, keeping output deterministic.
func (t TechStack) MarshalJSON() ([]byte, error) {
	if t.Categories != nil {
		return json.Marshal(t.Categories)
	}
	if t.Items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.Items)
}
