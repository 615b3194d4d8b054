package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/NewsReader/internal/collect"
	"github.com/TobiSchelling/NewsReader/internal/config"
	"github.com/TobiSchelling/NewsReader/internal/database"
	"github.com/TobiSchelling/NewsReader/internal/fetch"
	"github.com/TobiSchelling/NewsReader/internal/pipeline"
	"github.com/TobiSchelling/NewsReader/internal/server"
	"github.com/TobiSchelling/NewsReader/internal/tracker"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "newsreader",
	Short:   "Local news reader with reading streaks",
	Long:    "NewsReader collects headlines from feeds and NewsAPI, serves them in a local web UI, and tracks your daily reading streak.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		if err := config.LoadDotEnv(); err != nil {
			return err
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(streakCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(resetCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("newsreader", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/newsreader/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure feeds and categories. Put NEWSAPI_KEY in a .env file next to it.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and reading status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		tr, err := openTracker(db)
		if err != nil {
			return err
		}
		reading := tr.Stats()

		fmt.Printf("Database: %s\n", db.Path())
		fmt.Printf("Today: %s\n\n", database.GetToday())
		fmt.Println("Articles:")
		fmt.Printf("  Total collected: %d\n", stats.TotalArticles)
		fmt.Printf("  With full text: %d\n", stats.FetchedArticles)
		fmt.Printf("  Categories: %d\n", stats.Categories)
		fmt.Printf("  Sources: %d\n", stats.Sources)
		fmt.Println("\nReading:")
		fmt.Printf("  Articles read: %d\n", reading.TotalArticlesRead)
		fmt.Printf("  Current streak: %d days\n", reading.CurrentStreak)
		fmt.Printf("  Longest streak: %d days\n", reading.LongestStreak)
		return nil
	},
}

// --- collect command ---

var collectDaysBack int

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect articles from configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		fmt.Println("Collecting articles from sources...")
		result := collect.NewCollector(cfg, db, collectDaysBack, nil).Collect(ctx)

		fmt.Println("\nCollection complete:")
		fmt.Printf("  Total found: %d\n", result.TotalFound)
		fmt.Printf("  New articles: %d\n", result.NewArticles)
		fmt.Printf("  Duplicates skipped: %d\n", result.Duplicates)

		printCounts("Articles by source", result.Sources)
		printCounts("Articles by category", result.Categories)
		return nil
	},
}

func init() {
	collectCmd.Flags().IntVar(&collectDaysBack, "days-back", 1, "Only keep feed entries published within this many days")
}

func printCounts(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Printf("\n%s:\n", title)
	type kv struct {
		key string
		val int
	}
	var sorted []kv
	for k, v := range counts {
		sorted = append(sorted, kv{k, v})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].val != sorted[j].val {
			return sorted[i].val > sorted[j].val
		}
		return sorted[i].key < sorted[j].key
	})
	for _, s := range sorted {
		fmt.Printf("  %s: %d\n", s.key, s.val)
	}
}

// --- fetch command ---

var fetchLimit int

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Extract full text for articles that only have a summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		result := fetch.NewContentFetcher(db, 0).FetchMissingContent(ctx, fetchLimit)
		fmt.Printf("Fetched %d, failed %d\n", result.Fetched, result.Failed)
		return nil
	},
}

func init() {
	fetchCmd.Flags().IntVar(&fetchLimit, "limit", 50, "Maximum number of articles to fetch (0 for all)")
}

// --- refresh command ---

var (
	refreshDryRun   bool
	refreshDaysBack int
	refreshLimit    int
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Collect new articles, fetch their full text and show reading progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		tr, err := openTracker(db)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		pipe := pipeline.New(cfg, db, tr, nil)
		var result *pipeline.Result
		if refreshDryRun {
			result = pipe.DryRun()
		} else {
			result = pipe.Run(ctx, refreshDaysBack, refreshLimit)
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if !refreshDryRun && !result.Failed() {
			fmt.Println("\nRefresh complete! Run 'newsreader serve' to start reading.")
		}
		return nil
	},
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshDryRun, "dry-run", false, "Show what would be done without executing")
	refreshCmd.Flags().IntVar(&refreshDaysBack, "days-back", 1, "Only keep feed entries published within this many days")
	refreshCmd.Flags().IntVar(&refreshLimit, "limit", 50, "Maximum number of articles to fetch (0 for all)")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		tr, err := openTracker(db)
		if err != nil {
			return err
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		opts := server.Options{
			Categories: cfg.Categories,
			Fetcher:    fetch.NewContentFetcher(db, 0),
			RequestLog: verbose || cfg.Debug(),
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, tr, opts, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on (overrides server.port)")
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "newsreader.db")
	return database.Open(dbPath)
}

func openTracker(db *database.DB) (*tracker.Tracker, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return tracker.New(db.KV(),
		tracker.WithLocation(loc),
		tracker.WithVerbose(verbose || cfg.Debug()),
	), nil
}
