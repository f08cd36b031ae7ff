package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/adocshq/adocs/internal/adapter/litellm"
	"github.com/adocshq/adocs/internal/adapter/postgres"
	"github.com/adocshq/adocs/internal/config"
	"github.com/adocshq/adocs/internal/domain/docs"
	"github.com/adocshq/adocs/internal/knowledge"
	"github.com/adocshq/adocs/internal/logger"
	"github.com/adocshq/adocs/internal/service"
)

// runKB dispatches knowledge base subcommands (build, stats).
func runKB(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printKBHelp()
		return nil
	}

	switch args[0] {
	case "build":
		return runKBBuild(args[1:])
	case "stats":
		return runKBStats(args[1:])
	default:
		printKBHelp()
		return fmt.Errorf("unknown kb command: %s", args[0])
	}
}

func printKBHelp() {
	fmt.Fprintf(os.Stderr, `Usage: adocs kb <command> [options]

Commands:
  build    Build the knowledge base from metadata records and accepted structures
  stats    Print knowledge base statistics
  help     Show this help message

Examples:
  adocs kb build --metadata-dir data/repo_metadata --out knowledge_base.gob
  adocs kb build --accepted data/deepwiki_structures.json
  adocs kb stats --path knowledge_base.gob
`)
}

func runKBBuild(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	metadataDir := fs.String("metadata-dir", cfg.Knowledge.MetadataDir, "directory of repository metadata JSON records")
	out := fs.String("out", cfg.Knowledge.Path, "output path for the serialized knowledge base")
	acceptedFile := fs.String("accepted", "", "accepted structures JSON file (default: read from postgres)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := logger.New(cfg.Logging)
	ctx := context.Background()

	accepted, err := loadAccepted(ctx, *cfg, *acceptedFile)
	if err != nil {
		return err
	}
	log.Info("accepted structures loaded", "count", len(accepted))

	gateway := litellm.NewClient(cfg.Gateway.URL, cfg.Gateway.APIKey, cfg.Gateway.Timeout)
	builder := knowledge.NewBuilder(gateway, cfg.Knowledge.EmbeddingModel, log)

	base, err := builder.Build(ctx, os.DirFS(*metadataDir), accepted)
	if err != nil {
		return fmt.Errorf("build knowledge base: %w", err)
	}

	if err := base.Save(*out); err != nil {
		return fmt.Errorf("save knowledge base: %w", err)
	}
	log.Info("knowledge base written", "path", *out, "entries", base.Len())
	return nil
}

// loadAccepted reads accepted structures from a JSON file when given, and
// from the database otherwise.
func loadAccepted(ctx context.Context, cfg config.Config, file string) (map[string]docs.Structure, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read accepted structures: %w", err)
		}
		return knowledge.ParseAcceptedStructures(data)
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	return postgres.NewStore(pool).ListAcceptedStructures(ctx)
}

func runKBStats(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	path := fs.String("path", cfg.Knowledge.Path, "serialized knowledge base path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	base, err := knowledge.Load(*path)
	if err != nil {
		return fmt.Errorf("load knowledge base: %w", err)
	}

	stats := base.Stats()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Entries:\t%d\n", stats.TotalEntries)
	fmt.Fprintf(w, "Unique technologies:\t%d\n", stats.UniqueTechnologies)
	fmt.Fprintf(w, "Unique business domains:\t%d\n", stats.UniqueBusinessDomains)
	for _, t := range stats.TopTechnologies {
		fmt.Fprintf(w, "Technology:\t%s\n", t)
	}
	for _, d := range stats.BusinessDomains {
		fmt.Fprintf(w, "Business domain:\t%s\n", d)
	}
	return w.Flush()
}

// runConfig dispatches repository configuration subcommands (validate).
func runConfig(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		fmt.Fprintf(os.Stderr, `Usage: adocs config <command> [options]

Commands:
  validate   Validate the repository configuration file
`)
		return nil
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:])
	default:
		return fmt.Errorf("unknown config command: %s", args[0])
	}
}

// runMigrate applies pending database migrations and reports the resulting
// schema version.
func runMigrate() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	version, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("migration version: %w", err)
	}
	fmt.Printf("migrated to version %d\n", version)
	return nil
}

func runConfigValidate(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	path := fs.String("path", cfg.Docs.RepoConfigPath, "repository configuration YAML path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := logger.New(cfg.Logging)
	store := service.NewRepoConfigStore(*path, log)
	problems, err := store.Validate()
	if err != nil {
		return err
	}
	if len(problems) == 0 {
		fmt.Println("configuration is valid")
		return nil
	}
	for _, p := range problems {
		fmt.Println(p)
	}
	return fmt.Errorf("%d problem(s) found", len(problems))
}
