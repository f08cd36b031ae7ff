// Package docs holds the documentation outline tree and its schema rules.
//
// A structure is a tree of sections. Every node carries a non-empty string
// title and an explicit children list, possibly empty. A bare string or an
// omitted children field is a schema violation; validation happens once at
// the generation boundary and the tree is read-only downstream.
package docs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Section is a node in the documentation outline.
type Section struct {
	Title    string    `json:"title"`
	Children []Section `json:"children"`
}

// Structure is the documentation outline for one repository. The root is
// implicit; Sections are its direct children.
type Structure struct {
	Sections []Section `json:"sections"`
}

// UnmarshalJSON enforces the section schema: the node must be an object,
// title must be a non-empty string, and children must be present and an
// array (possibly empty).
func (s *Section) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title    *string         `json:"title"`
		Children json.RawMessage `json:"children"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("section must be an object with title and children: %w", err)
	}
	if raw.Title == nil || *raw.Title == "" {
		return fmt.Errorf("section title must be a non-empty string")
	}
	if raw.Children == nil {
		return fmt.Errorf("section %q: children field is required (use [] for leaves)", *raw.Title)
	}
	if trimmed := bytes.TrimSpace(raw.Children); len(trimmed) == 0 || trimmed[0] != '[' {
		return fmt.Errorf("section %q: children must be an array", *raw.Title)
	}

	var children []Section
	if err := json.Unmarshal(raw.Children, &children); err != nil {
		return fmt.Errorf("section %q: %w", *raw.Title, err)
	}
	if children == nil {
		children = []Section{}
	}

	s.Title = *raw.Title
	s.Children = children
	return nil
}

// MarshalJSON always emits an explicit children array so marshaled trees
// satisfy the same schema they are validated against.
func (s Section) MarshalJSON() ([]byte, error) {
	children := s.Children
	if children == nil {
		children = []Section{}
	}
	type wire struct {
		Title    string    `json:"title"`
		Children []Section `json:"children"`
	}
	return json.Marshal(wire{Title: s.Title, Children: children})
}

// Validate checks the schema invariants on a programmatically built tree.
func (s Structure) Validate() error {
	for i := range s.Sections {
		if err := validateSection(&s.Sections[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateSection(sec *Section) error {
	if sec.Title == "" {
		return fmt.Errorf("section title must be a non-empty string")
	}
	for i := range sec.Children {
		if err := validateSection(&sec.Children[i]); err != nil {
			return fmt.Errorf("in %q: %w", sec.Title, err)
		}
	}
	return nil
}

// Walk visits every section depth-first in document order. displayTitle
// joins ancestor titles with " > ".
func (s Structure) Walk(visit func(displayTitle string, sec *Section)) {
	var walk func(sections []Section, parent string)
	walk = func(sections []Section, parent string) {
		for i := range sections {
			sec := &sections[i]
			display := sec.Title
			if parent != "" {
				display = parent + " > " + sec.Title
			}
			visit(display, sec)
			walk(sec.Children, display)
		}
	}
	walk(s.Sections, "")
}

// invalidTitleChars are replaced with underscores when deriving file names.
const invalidTitleChars = `<>:"/\|?*`

// SanitizeTitle converts a section title into a safe file name stem:
// invalid characters and spaces become underscores, runs of underscores
// collapse to one, and leading/trailing underscores are trimmed.
func SanitizeTitle(title string) string {
	mapped := strings.Map(func(r rune) rune {
		if r == ' ' || strings.ContainsRune(invalidTitleChars, r) {
			return '_'
		}
		return r
	}, title)

	parts := strings.Split(mapped, "_")
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "_")
}
