package collect

import (
	"context"
	"log"
	"net/http"

	"github.com/TobiSchelling/NewsReader/internal/config"
	"github.com/TobiSchelling/NewsReader/internal/database"
)

// Result holds the results of a collection run.
type Result struct {
	TotalFound  int
	NewArticles int
	Duplicates  int
	Sources     map[string]int
	Categories  map[string]int
}

// Collector orchestrates article collection from RSS feeds and NewsAPI.
type Collector struct {
	db             *database.DB
	feedParser     *FeedParser
	newsClient     *NewsAPIClient
	newsCategories []string
	daysBack       int
}

// NewCollector creates a new article collector. A nil client uses a
// default HTTP client for feeds.
func NewCollector(cfg *config.Config, db *database.DB, daysBack int, client *http.Client) *Collector {
	c := &Collector{
		db:       db,
		daysBack: daysBack,
	}

	if len(cfg.Sources.Feeds) > 0 {
		feeds := make([]FeedConfig, len(cfg.Sources.Feeds))
		for i, f := range cfg.Sources.Feeds {
			feeds[i] = FeedConfig{URL: f.URL, Name: f.Name, Category: f.Category}
		}
		c.feedParser = NewFeedParser(feeds, client)
	}

	apiCfg := cfg.Sources.APIs.NewsAPI
	if apiCfg.Enabled {
		c.newsClient = NewNewsAPIClient(apiCfg.APIKeyEnv, apiCfg.BaseURL, apiCfg.Country, apiCfg.PageSize)
		if client != nil {
			c.newsClient.client = client
		}
		c.newsCategories = apiCfg.Categories
		if len(c.newsCategories) == 0 {
			c.newsCategories = cfg.CategoryIDs()
		}
	}

	return c
}

// Collect collects articles from all configured sources.
func (c *Collector) Collect(ctx context.Context) *Result {
	r := &Result{Sources: make(map[string]int), Categories: make(map[string]int)}

	if c.feedParser != nil {
		log.Println("Collecting from RSS feeds...")
		entries := c.feedParser.ParseAll(ctx, c.daysBack)
		r.TotalFound += len(entries)

		for _, e := range entries {
			c.insert(r, &database.Article{
				URL:           e.URL,
				Title:         e.Title,
				Description:   optional(e.Description),
				Source:        optional(e.Source),
				Author:        optional(e.Author),
				ImageURL:      optional(e.ImageURL),
				Category:      e.Category,
				PublishedDate: optional(e.PublishedDate),
				Content:       optional(e.Content),
			})
		}
	}

	if c.newsClient != nil && c.newsClient.IsConfigured() {
		log.Println("Collecting from NewsAPI...")

		seen := make(map[string]struct{})
		for _, category := range c.newsCategories {
			if ctx.Err() != nil {
				break
			}
			articles, err := c.newsClient.TopHeadlines(ctx, category)
			if err != nil {
				log.Printf("NewsAPI %s: %v", category, err)
				continue
			}

			for _, a := range articles {
				if _, ok := seen[a.URL]; ok {
					continue
				}
				seen[a.URL] = struct{}{}
				r.TotalFound++
				c.insert(r, &database.Article{
					URL:           a.URL,
					Title:         a.Title,
					Description:   optional(a.Description),
					Source:        optional(a.Source),
					Author:        optional(a.Author),
					ImageURL:      optional(a.ImageURL),
					Category:      a.Category,
					PublishedDate: optional(a.PublishedDate),
					Content:       optional(a.Content),
				})
			}
		}
	}

	log.Printf("Collection complete: %d found, %d new, %d duplicates", r.TotalFound, r.NewArticles, r.Duplicates)
	return r
}

func (c *Collector) insert(r *Result, a *database.Article) {
	id, err := c.db.InsertArticle(a)
	if err != nil {
		log.Printf("Failed to store %s: %v", a.URL, err)
		return
	}
	if id == 0 {
		r.Duplicates++
		return
	}
	r.NewArticles++
	if a.Source != nil {
		r.Sources[*a.Source]++
	}
	category := a.Category
	if category == "" {
		category = database.DefaultCategory
	}
	r.Categories[category]++
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
