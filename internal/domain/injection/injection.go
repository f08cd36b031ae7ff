// Package injection holds the custom-section configuration model and the
// priority-driven merge algorithms that combine generated and custom
// documentation sections.
package injection

import (
	"sort"
	"strings"

	"github.com/adocshq/adocs/internal/domain/docs"
)

// Strategy selects how custom sections combine with generated ones.
type Strategy string

const (
	StrategyPrepend Strategy = "prepend"
	StrategyAppend  Strategy = "append"
	StrategyReplace Strategy = "replace"
	StrategyMerge   Strategy = "merge"
)

// DefaultStrategy is used when the configured value is unrecognized.
const DefaultStrategy = StrategyPrepend

// Valid reports whether s is one of the recognized strategies.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyPrepend, StrategyAppend, StrategyReplace, StrategyMerge:
		return true
	}
	return false
}

// ParseStrategy maps a configured string onto a Strategy, falling back to
// the default for unrecognized values. ok is false on fallback.
func ParseStrategy(s string) (Strategy, bool) {
	st := Strategy(s)
	if st.Valid() {
		return st, true
	}
	return DefaultStrategy, false
}

// CustomSection describes one operator-supplied section.
type CustomSection struct {
	Name        string `json:"name"`
	StoragePath string `json:"storage_path"`
	Priority    int    `json:"priority"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Enabled     bool   `json:"enabled"`
}

// RepoConfig is the resolved per-repository configuration.
// CustomSections is kept ordered by ascending priority.
type RepoConfig struct {
	RepoID         string          `json:"repo_id"`
	CustomSections []CustomSection `json:"custom_sections"`
	PathOverride   string          `json:"path_override,omitempty"`
	CustomMetadata map[string]any  `json:"custom_metadata,omitempty"`
	Enabled        bool            `json:"enabled"`
}

// FindSection returns the first custom section matching name
// (case-insensitive), or nil.
func (c *RepoConfig) FindSection(name string) *CustomSection {
	for i := range c.CustomSections {
		if strings.EqualFold(c.CustomSections[i].Name, name) {
			return &c.CustomSections[i]
		}
	}
	return nil
}

// unprioritizedRank sorts entries without a priority after all others.
const unprioritizedRank = 999

// SectionDescriptor is a flat output entry of the injector. Generated
// sections keep their nested children; custom sections are always leaves.
type SectionDescriptor struct {
	Title       string         `json:"title"`
	Children    []docs.Section `json:"children"`
	Priority    *int           `json:"priority,omitempty"`
	Description string         `json:"description,omitempty"`
	Icon        string         `json:"icon,omitempty"`
	IsCustom    bool           `json:"is_custom"`
	StoragePath string         `json:"storage_path,omitempty"`
	Content     string         `json:"content,omitempty"`
}

// NavigationItem is the navigation-view projection of a descriptor.
type NavigationItem struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Priority    *int   `json:"priority,omitempty"`
	IsCustom    bool   `json:"is_custom"`
}

// defaultPriorities maps well-known lowercase titles to fixed priorities.
// Titles outside the table receive 10 + position index so their original
// order is preserved.
var defaultPriorities = map[string]int{
	"overview":                  1,
	"getting started":           2,
	"architecture":              3,
	"framework architecture":    3,
	"plugin system and extensibility": 4,
	"installation and setup":    5,
	"development guide":         6,
	"api reference":             7,
	"community and contribution": 8,
	"deployment and operations": 9,
}

// FromGenerated converts generated top-level sections into descriptors and
// assigns default priorities: the well-known-title table first, position
// based otherwise.
func FromGenerated(sections []docs.Section) []SectionDescriptor {
	out := make([]SectionDescriptor, 0, len(sections))
	for i, sec := range sections {
		p := defaultPriorities[strings.ToLower(sec.Title)]
		if p == 0 {
			p = 10 + i
		}
		prio := p
		out = append(out, SectionDescriptor{
			Title:    sec.Title,
			Children: sec.Children,
			Priority: &prio,
		})
	}
	return out
}

// FromCustom converts a custom section plus its fetched content into a
// leaf descriptor.
func FromCustom(cs CustomSection, content string) SectionDescriptor {
	prio := cs.Priority
	return SectionDescriptor{
		Title:       cs.Name,
		Children:    []docs.Section{},
		Priority:    &prio,
		Description: cs.Description,
		Icon:        cs.Icon,
		IsCustom:    true,
		StoragePath: cs.StoragePath,
		Content:     content,
	}
}

// Inject combines generated and custom descriptors under the given
// strategy. Unrecognized strategies behave as prepend.
//
// Ties under merge keep relative insertion order (generated before custom,
// then declaration order), so two custom sections with equal name and
// priority both survive with the later declaration rendered after.
func Inject(generated, custom []SectionDescriptor, strategy Strategy) []SectionDescriptor {
	switch strategy {
	case StrategyReplace:
		return sortByPriority(clone(custom))
	case StrategyAppend:
		return append(clone(generated), sortByPriority(clone(custom))...)
	case StrategyMerge:
		return sortByPriority(append(clone(generated), custom...))
	default: // prepend
		return append(sortByPriority(clone(custom)), generated...)
	}
}

// BuildNavigation projects descriptors into the navigation view, keeping
// the same ordering.
func BuildNavigation(descs []SectionDescriptor) []NavigationItem {
	nav := make([]NavigationItem, 0, len(descs))
	for _, d := range descs {
		nav = append(nav, NavigationItem{
			Title:       d.Title,
			Description: d.Description,
			Icon:        d.Icon,
			Priority:    d.Priority,
			IsCustom:    d.IsCustom,
		})
	}
	return nav
}

func clone(in []SectionDescriptor) []SectionDescriptor {
	out := make([]SectionDescriptor, len(in))
	copy(out, in)
	return out
}

// sortByPriority sorts ascending by priority; entries without one rank
// last. The sort is stable so equal priorities keep insertion order.
func sortByPriority(descs []SectionDescriptor) []SectionDescriptor {
	sort.SliceStable(descs, func(i, j int) bool {
		return rank(descs[i]) < rank(descs[j])
	})
	return descs
}

func rank(d SectionDescriptor) int {
	if d.Priority == nil {
		return unprioritizedRank
	}
	return *d.Priority
}
