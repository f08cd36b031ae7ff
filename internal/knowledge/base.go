// Package knowledge implements the embedding-indexed knowledge base used to
// ground documentation structure generation: offline construction, opaque
// on-disk persistence, and cosine-similarity retrieval.
package knowledge

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/adocshq/adocs/internal/domain/docs"
	"github.com/adocshq/adocs/internal/domain/metadata"
)

// ErrEmptyBase indicates retrieval was attempted against an empty knowledge
// base; no example can ground generation.
var ErrEmptyBase = errors.New("knowledge base is empty")

// Entry pairs one repository's metadata with its accepted documentation
// structure and the precomputed embedding of its corpus text. Entries are
// created once during the offline build and never partially updated.
type Entry struct {
	RepoID       string
	Metadata     metadata.Metadata
	DocStructure docs.Structure
	Embedding    []float32
	CorpusText   string
}

// Match is an entry annotated with its similarity to a query.
type Match struct {
	Entry
	Score float64
}

// Base is the immutable, ordered collection of knowledge entries.
type Base struct {
	entries []Entry
}

// NewBase wraps entries into a Base. The slice is owned by the Base
// afterwards.
func NewBase(entries []Entry) *Base {
	return &Base{entries: entries}
}

// Load reads a Base from its serialized blob on disk.
func Load(path string) (*Base, error) {
	f, err := os.Open(path) //nolint:gosec // G304: operator-configured path
	if err != nil {
		return nil, fmt.Errorf("open knowledge base: %w", err)
	}
	defer func() { _ = f.Close() }()

	var entries []Entry
	if err := gob.NewDecoder(f).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode knowledge base: %w", err)
	}
	return NewBase(entries), nil
}

// Save serializes the Base to path. The write goes to a temporary file in
// the same directory followed by a rename, so readers never observe a
// partially written base.
func (b *Base) Save(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp knowledge base: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := gob.NewEncoder(tmp).Encode(b.entries); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode knowledge base: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp knowledge base: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace knowledge base: %w", err)
	}
	return nil
}

// Len returns the number of entries.
func (b *Base) Len() int {
	return len(b.entries)
}

// Entries returns the stored entries. Callers must treat the slice as
// read-only.
func (b *Base) Entries() []Entry {
	return b.entries
}

// TopK ranks every entry by cosine similarity to the query vector and
// returns the k best matches in descending score order. Ties keep original
// insertion order. A base smaller than k returns all entries.
func (b *Base) TopK(query []float32, k int) ([]Match, error) {
	if len(b.entries) == 0 {
		return nil, ErrEmptyBase
	}
	if k < 1 {
		return nil, fmt.Errorf("top-k: k must be >= 1, got %d", k)
	}

	matches := make([]Match, 0, len(b.entries))
	for _, e := range b.entries {
		if len(e.Embedding) != len(query) {
			return nil, fmt.Errorf("top-k: entry %s has embedding dimension %d, query has %d",
				e.RepoID, len(e.Embedding), len(query))
		}
		matches = append(matches, Match{Entry: e, Score: cosineSimilarity(query, e.Embedding)})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

// Stats summarizes the knowledge base contents. Lists are sorted for
// deterministic output.
type Stats struct {
	TotalEntries          int      `json:"total_entries"`
	UniqueTechnologies    int      `json:"unique_technologies"`
	UniqueBusinessDomains int      `json:"unique_business_domains"`
	TopTechnologies       []string `json:"top_technologies"`
	BusinessDomains       []string `json:"business_domains"`
}

// statsListLimit caps the example lists returned by Stats.
const statsListLimit = 10

// Stats computes summary statistics over all entries.
func (b *Base) Stats() Stats {
	techs := make(map[string]struct{})
	domains := make(map[string]struct{})

	for _, e := range b.entries {
		for _, t := range e.Metadata.TechStack.Flatten() {
			techs[t] = struct{}{}
		}
		if d := e.Metadata.BusinessDomain; d != "" {
			domains[d] = struct{}{}
		}
	}

	return Stats{
		TotalEntries:          len(b.entries),
		UniqueTechnologies:    len(techs),
		UniqueBusinessDomains: len(domains),
		TopTechnologies:       sortedSample(techs, statsListLimit),
		BusinessDomains:       sortedSample(domains, statsListLimit),
	}
}

func sortedSample(set map[string]struct{}, limit int) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// cosineSimilarity returns the cosine of the angle between a and b.
// Zero-norm vectors yield 0.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
