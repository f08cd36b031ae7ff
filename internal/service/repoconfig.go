package service

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/adocshq/adocs/internal/domain/injection"
)

// GlobalSettings are the file-level defaults that apply across repositories.
type GlobalSettings struct {
	FallbackToGenerated  bool
	CacheTTL             time.Duration
	EnableCustomSections bool
	InjectionStrategy    injection.Strategy
}

// SectionTemplate is a reusable custom-section skeleton operators can
// reference when authoring repository entries.
type SectionTemplate struct {
	Description string `yaml:"description" json:"description"`
	Icon        string `yaml:"icon" json:"icon"`
	Priority    int    `yaml:"priority" json:"priority"`
}

// configFile mirrors the repository configuration YAML document.
type configFile struct {
	Repositories     map[string]repoEntry       `yaml:"repositories"`
	Global           globalEntry                `yaml:"global_config"`
	SectionTemplates map[string]SectionTemplate `yaml:"section_templates"`
}

type globalEntry struct {
	FallbackToGenerated  *bool  `yaml:"fallback_to_generated"`
	CacheTTLSeconds      *int   `yaml:"cache_ttl"`
	EnableCustomSections *bool  `yaml:"enable_custom_sections"`
	InjectionStrategy    string `yaml:"injection_strategy"`
}

type repoEntry struct {
	Enabled        *bool          `yaml:"enabled"`
	PathOverride   string         `yaml:"path_override"`
	CustomMetadata map[string]any `yaml:"custom_metadata"`
	CustomSections []sectionEntry `yaml:"custom_sections"`
}

type sectionEntry struct {
	Name        string `yaml:"name"`
	StoragePath string `yaml:"storage_path"`
	Priority    *int   `yaml:"priority"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon"`
	Enabled     *bool  `yaml:"enabled"`
}

const (
	defaultSectionIcon     = "📄"
	defaultSectionPriority = 1
	defaultCacheTTL        = 3600 * time.Second
)

// RepoConfigStore serves per-repository injection configuration from a YAML
// file. The parsed document is cached and re-read only when the file's
// modification time advances; concurrent reloads are collapsed through
// singleflight. A missing file is served as an empty default document.
type RepoConfigStore struct {
	path  string
	log   *slog.Logger
	group singleflight.Group

	mu      sync.RWMutex
	cached  *configFile
	modTime time.Time
}

// NewRepoConfigStore creates a store backed by the YAML file at path.
func NewRepoConfigStore(path string, log *slog.Logger) *RepoConfigStore {
	return &RepoConfigStore{path: path, log: log}
}

// Lookup resolves the configuration for a repository identifier. Exact keys
// win over wildcard patterns; patterns are tried in sorted order so matches
// do not depend on map iteration. Returns nil when no entry matches.
func (s *RepoConfigStore) Lookup(repoID string) (*injection.RepoConfig, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	if entry, ok := doc.Repositories[repoID]; ok {
		return parseRepoEntry(repoID, entry), nil
	}

	patterns := make([]string, 0, len(doc.Repositories))
	for pattern := range doc.Repositories {
		if strings.Contains(pattern, "*") {
			patterns = append(patterns, pattern)
		}
	}
	sort.Strings(patterns)

	for _, pattern := range patterns {
		ok, err := matchPattern(pattern, repoID)
		if err != nil {
			s.log.Warn("invalid repository pattern", "pattern", pattern, "error", err)
			continue
		}
		if ok {
			return parseRepoEntry(repoID, doc.Repositories[pattern]), nil
		}
	}
	return nil, nil
}

// Global returns the file-level settings with defaults applied.
func (s *RepoConfigStore) Global() (GlobalSettings, error) {
	doc, err := s.load()
	if err != nil {
		return GlobalSettings{}, err
	}

	out := GlobalSettings{
		FallbackToGenerated:  true,
		CacheTTL:             defaultCacheTTL,
		EnableCustomSections: true,
		InjectionStrategy:    injection.DefaultStrategy,
	}
	if doc.Global.FallbackToGenerated != nil {
		out.FallbackToGenerated = *doc.Global.FallbackToGenerated
	}
	if doc.Global.CacheTTLSeconds != nil {
		out.CacheTTL = time.Duration(*doc.Global.CacheTTLSeconds) * time.Second
	}
	if doc.Global.EnableCustomSections != nil {
		out.EnableCustomSections = *doc.Global.EnableCustomSections
	}
	if doc.Global.InjectionStrategy != "" {
		strategy, ok := injection.ParseStrategy(doc.Global.InjectionStrategy)
		if !ok {
			s.log.Warn("unrecognized injection strategy, using default",
				"strategy", doc.Global.InjectionStrategy)
		}
		out.InjectionStrategy = strategy
	}
	return out, nil
}

// Templates returns the named section templates.
func (s *RepoConfigStore) Templates() (map[string]SectionTemplate, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return doc.SectionTemplates, nil
}

// Reload discards the cached document so the next access re-reads the file.
func (s *RepoConfigStore) Reload() {
	s.mu.Lock()
	s.cached = nil
	s.modTime = time.Time{}
	s.mu.Unlock()
	s.log.Info("repository configuration cache cleared")
}

// Validate checks the document for authoring mistakes and returns one
// message per problem. An empty slice means the file is valid.
func (s *RepoConfigStore) Validate() ([]string, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	var problems []string

	keys := make([]string, 0, len(doc.Repositories))
	for k := range doc.Repositories {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		entry := doc.Repositories[key]
		for i, sec := range entry.CustomSections {
			if sec.Name == "" {
				problems = append(problems, fmt.Sprintf("repository %s: section %d missing name", key, i))
			}
			if sec.StoragePath == "" {
				problems = append(problems, fmt.Sprintf("repository %s: section %d missing storage_path", key, i))
			}
			if sec.Priority != nil && *sec.Priority < 0 {
				problems = append(problems, fmt.Sprintf("repository %s: section %d has negative priority", key, i))
			}
		}
		if strings.Contains(key, "*") {
			if _, err := matchPattern(key, ""); err != nil {
				problems = append(problems, fmt.Sprintf("repository pattern %s is invalid: %v", key, err))
			}
		}
	}

	if doc.Global.InjectionStrategy != "" {
		if _, ok := injection.ParseStrategy(doc.Global.InjectionStrategy); !ok {
			problems = append(problems, fmt.Sprintf("invalid injection_strategy: %s", doc.Global.InjectionStrategy))
		}
	}
	return problems, nil
}

// load serves the cached document when the file is unchanged, otherwise
// re-reads it. Concurrent cold loads share one read.
func (s *RepoConfigStore) load() (*configFile, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &configFile{}, nil
		}
		return nil, fmt.Errorf("stat repository config: %w", err)
	}

	s.mu.RLock()
	if s.cached != nil && !info.ModTime().After(s.modTime) {
		doc := s.cached
		s.mu.RUnlock()
		return doc, nil
	}
	s.mu.RUnlock()

	v, err, _ := s.group.Do("load", func() (any, error) {
		data, err := os.ReadFile(s.path) //nolint:gosec // G304: operator-configured path
		if err != nil {
			return nil, fmt.Errorf("read repository config: %w", err)
		}

		var doc configFile
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse repository config: %w", err)
		}

		s.mu.Lock()
		s.cached = &doc
		s.modTime = info.ModTime()
		s.mu.Unlock()

		s.log.Info("repository configuration loaded", "path", s.path,
			"repositories", len(doc.Repositories))
		return &doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*configFile), nil
}

// parseRepoEntry resolves one YAML entry into the domain config. Sections
// are defaulted and ordered by ascending priority.
func parseRepoEntry(repoID string, entry repoEntry) *injection.RepoConfig {
	sections := make([]injection.CustomSection, 0, len(entry.CustomSections))
	for _, sec := range entry.CustomSections {
		out := injection.CustomSection{
			Name:        sec.Name,
			StoragePath: sec.StoragePath,
			Priority:    defaultSectionPriority,
			Description: sec.Description,
			Icon:        defaultSectionIcon,
			Enabled:     true,
		}
		if sec.Priority != nil {
			out.Priority = *sec.Priority
		}
		if sec.Icon != "" {
			out.Icon = sec.Icon
		}
		if sec.Enabled != nil {
			out.Enabled = *sec.Enabled
		}
		sections = append(sections, out)
	}
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].Priority < sections[j].Priority
	})

	cfg := &injection.RepoConfig{
		RepoID:         repoID,
		CustomSections: sections,
		PathOverride:   entry.PathOverride,
		CustomMetadata: entry.CustomMetadata,
		Enabled:        true,
	}
	if entry.Enabled != nil {
		cfg.Enabled = *entry.Enabled
	}
	return cfg
}

// matchPattern anchors a wildcard pattern and matches it against the whole
// identifier. Only '*' is special; everything else matches literally.
func matchPattern(pattern, id string) (bool, error) {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	re, err := regexp.Compile("^" + strings.Join(parts, ".*") + "$")
	if err != nil {
		return false, err
	}
	return re.MatchString(id), nil
}
