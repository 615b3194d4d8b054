package pipeline

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/TobiSchelling/NewsReader/internal/collect"
	"github.com/TobiSchelling/NewsReader/internal/config"
	"github.com/TobiSchelling/NewsReader/internal/database"
	"github.com/TobiSchelling/NewsReader/internal/fetch"
	"github.com/TobiSchelling/NewsReader/internal/tracker"
)

const stepCount = 3

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full refresh.
type Result struct {
	Steps []StepResult
}

// Failed reports whether any step returned an error.
func (r *Result) Failed() bool {
	for _, s := range r.Steps {
		if s.Err != nil {
			return true
		}
	}
	return false
}

// Pipeline refreshes the article library: collect, fetch full text, then
// report reading progress.
type Pipeline struct {
	cfg          *config.Config
	db           *database.DB
	tracker      *tracker.Tracker
	client       *http.Client
	fetchTimeout time.Duration
}

// New creates a new pipeline. A nil client uses http.DefaultClient for
// feeds and NewsAPI.
func New(cfg *config.Config, db *database.DB, tr *tracker.Tracker, client *http.Client) *Pipeline {
	return &Pipeline{
		cfg:          cfg,
		db:           db,
		tracker:      tr,
		client:       client,
		fetchTimeout: 15 * time.Second,
	}
}

// Run executes all steps. Fetching is skipped when collection was cancelled.
func (p *Pipeline) Run(ctx context.Context, daysBack, fetchLimit int) *Result {
	r := &Result{}

	// Step 1: Collect
	step := p.runCollect(ctx, daysBack)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	// Step 2: Fetch content
	r.Steps = append(r.Steps, p.runFetch(ctx, fetchLimit))

	// Step 3: Reading summary
	r.Steps = append(r.Steps, p.runReadingSummary())
	return r
}

// DryRun shows what would be done without executing.
func (p *Pipeline) DryRun() *Result {
	r := &Result{}

	feeds := len(p.cfg.Sources.Feeds)
	newsAPI := "disabled"
	if p.cfg.Sources.APIs.NewsAPI.Enabled {
		newsAPI = fmt.Sprintf("%d categories", len(p.newsCategories()))
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("[dry-run] %d feeds, NewsAPI %s", feeds, newsAPI),
	})

	needing, err := p.db.GetArticlesNeedingFetch(0)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("[dry-run] %d articles need content fetching", len(needing)),
		Err:     err,
	})

	r.Steps = append(r.Steps, p.runReadingSummary())
	return r
}

func (p *Pipeline) newsCategories() []string {
	if cats := p.cfg.Sources.APIs.NewsAPI.Categories; len(cats) > 0 {
		return cats
	}
	return p.cfg.CategoryIDs()
}

func (p *Pipeline) runCollect(ctx context.Context, daysBack int) StepResult {
	log.Printf("Step 1/%d: Collecting articles...", stepCount)
	collector := collect.NewCollector(p.cfg, p.db, daysBack, p.client)
	result := collector.Collect(ctx)
	if err := ctx.Err(); err != nil {
		return StepResult{Name: "Collect", Err: err}
	}
	return StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("Found %d new articles (%d total, %d duplicates)", result.NewArticles, result.TotalFound, result.Duplicates),
	}
}

func (p *Pipeline) runFetch(ctx context.Context, limit int) StepResult {
	log.Printf("Step 2/%d: Fetching article content...", stepCount)
	fetcher := fetch.NewContentFetcher(p.db, p.fetchTimeout)
	result := fetcher.FetchMissingContent(ctx, limit)
	return StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("Fetched %d articles, %d failed", result.Fetched, result.Failed),
	}
}

func (p *Pipeline) runReadingSummary() StepResult {
	s := p.tracker.Stats()
	return StepResult{
		Name: "Reading",
		Summary: fmt.Sprintf("%s %d day streak, %d read today. %s",
			tracker.StreakBadge(s.CurrentStreak), s.CurrentStreak, s.TodayReadCount,
			tracker.StreakMessage(s.CurrentStreak)),
	}
}
