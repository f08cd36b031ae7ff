package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/adocshq/adocs/internal/adapter/otel"
	"github.com/adocshq/adocs/internal/domain"
	"github.com/adocshq/adocs/internal/domain/docs"
	"github.com/adocshq/adocs/internal/domain/injection"
	"github.com/adocshq/adocs/internal/port/cache"
	"github.com/adocshq/adocs/internal/port/contentstore"
)

// DocsView is a served documentation structure: generated sections combined
// with the repository's custom sections under the configured strategy.
type DocsView struct {
	RepoID     string                        `json:"repo_id"`
	Strategy   injection.Strategy            `json:"strategy"`
	Sections   []injection.SectionDescriptor `json:"sections"`
	Navigation []injection.NavigationItem    `json:"navigation"`
}

// Injector combines generated structures with custom sections. Custom
// content is read through the content store and cached with the configured
// TTL.
type Injector struct {
	configs *RepoConfigStore
	store   contentstore.Store
	cache   cache.Cache
	log     *slog.Logger
	metrics *otel.Metrics
}

// NewInjector wires an Injector. cache and metrics may be nil.
func NewInjector(configs *RepoConfigStore, store contentstore.Store, c cache.Cache, log *slog.Logger, metrics *otel.Metrics) *Injector {
	return &Injector{configs: configs, store: store, cache: c, log: log, metrics: metrics}
}

// BuildDocs produces the served view for a repository. When custom sections
// are disabled globally, or the repository has no enabled configuration,
// the generated structure is served as-is.
func (inj *Injector) BuildDocs(ctx context.Context, repoID string, generated docs.Structure) (*DocsView, error) {
	global, err := inj.configs.Global()
	if err != nil {
		return nil, err
	}

	ctx, span := otel.StartInjectionSpan(ctx, repoID, string(global.InjectionStrategy))
	defer span.End()

	gen := injection.FromGenerated(generated.Sections)

	cfg, err := inj.repoConfig(repoID, global)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return inj.view(repoID, global.InjectionStrategy, gen), nil
	}

	custom := inj.fetchSections(ctx, cfg, global)
	if len(custom) == 0 {
		return inj.view(repoID, global.InjectionStrategy, gen), nil
	}

	if inj.metrics != nil {
		inj.metrics.SectionsInjected.Add(ctx, int64(len(custom)))
	}

	combined := injection.Inject(gen, custom, global.InjectionStrategy)
	return inj.view(repoID, global.InjectionStrategy, combined), nil
}

// GetSection resolves one section by name. Custom sections win over
// generated ones; the lookup is case-insensitive. Returns domain.ErrNotFound
// when neither side has the section.
func (inj *Injector) GetSection(ctx context.Context, repoID, name string, generated docs.Structure) (*injection.SectionDescriptor, error) {
	global, err := inj.configs.Global()
	if err != nil {
		return nil, err
	}

	cfg, err := inj.repoConfig(repoID, global)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		if cs := cfg.FindSection(name); cs != nil && cs.Enabled {
			content, err := inj.fetchContent(ctx, contentPath(cfg, *cs), global)
			if err == nil {
				desc := injection.FromCustom(*cs, content)
				return &desc, nil
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			if !global.FallbackToGenerated {
				return nil, err
			}
			inj.log.Warn("custom section content missing, falling back to generated",
				"repo_id", repoID, "section", cs.Name)
		}
	}

	for _, desc := range injection.FromGenerated(generated.Sections) {
		if strings.EqualFold(desc.Title, name) {
			d := desc
			return &d, nil
		}
	}
	return nil, fmt.Errorf("section %q: %w", name, domain.ErrNotFound)
}

func (inj *Injector) repoConfig(repoID string, global GlobalSettings) (*injection.RepoConfig, error) {
	if !global.EnableCustomSections {
		return nil, nil
	}
	cfg, err := inj.configs.Lookup(repoID)
	if err != nil {
		return nil, err
	}
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	return cfg, nil
}

// fetchSections resolves content for every enabled custom section. A failed
// fetch excludes that section and never aborts the rest; with generated
// fallback disabled the miss is reported at error level instead of warn.
func (inj *Injector) fetchSections(ctx context.Context, cfg *injection.RepoConfig, global GlobalSettings) []injection.SectionDescriptor {
	out := make([]injection.SectionDescriptor, 0, len(cfg.CustomSections))
	for _, cs := range cfg.CustomSections {
		if !cs.Enabled {
			continue
		}

		content, err := inj.fetchContent(ctx, contentPath(cfg, cs), global)
		if err != nil {
			level := slog.LevelWarn
			if !global.FallbackToGenerated {
				level = slog.LevelError
			}
			inj.log.Log(ctx, level, "custom section content unavailable, excluding",
				"repo_id", cfg.RepoID, "section", cs.Name, "error", err)
			continue
		}
		out = append(out, injection.FromCustom(cs, content))
	}
	return out
}

func (inj *Injector) fetchContent(ctx context.Context, p string, global GlobalSettings) (string, error) {
	key := "content:" + p
	if inj.cache != nil {
		if data, ok, err := inj.cache.Get(ctx, key); err == nil && ok {
			return string(data), nil
		}
	}

	data, err := inj.store.Get(ctx, p)
	if err != nil {
		return "", err
	}

	if inj.cache != nil {
		if err := inj.cache.Set(ctx, key, data, global.CacheTTL); err != nil {
			inj.log.Warn("failed to cache section content", "path", p, "error", err)
		}
	}
	return string(data), nil
}

func (inj *Injector) view(repoID string, strategy injection.Strategy, sections []injection.SectionDescriptor) *DocsView {
	return &DocsView{
		RepoID:     repoID,
		Strategy:   strategy,
		Sections:   sections,
		Navigation: injection.BuildNavigation(sections),
	}
}

// contentPath resolves a section's storage path, applying the repository's
// path override as a base directory when set.
func contentPath(cfg *injection.RepoConfig, cs injection.CustomSection) string {
	if cfg.PathOverride != "" {
		return path.Join(cfg.PathOverride, cs.StoragePath)
	}
	return cs.StoragePath
}
