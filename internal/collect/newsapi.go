package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	defaultNewsAPIBaseURL = "https://newsapi.org/v2"
	userAgent             = "NewsReader/1.0 (news reader)"
)

// newsAPICategories are the categories the top-headlines endpoint accepts.
var newsAPICategories = map[string]bool{
	"business":      true,
	"entertainment": true,
	"general":       true,
	"health":        true,
	"science":       true,
	"sports":        true,
	"technology":    true,
}

// NewsArticle represents an article from NewsAPI.
type NewsArticle struct {
	URL           string
	Title         string
	Description   string
	Author        string
	ImageURL      string
	PublishedDate string
	Content       string
	Source        string
	Category      string
}

// NewsAPIClient fetches top headlines from NewsAPI.
type NewsAPIClient struct {
	apiKey   string
	baseURL  string
	country  string
	pageSize int
	client   *http.Client
}

// NewNewsAPIClient creates a NewsAPI client reading its key from apiKeyEnv.
// An empty baseURL selects the public endpoint.
func NewNewsAPIClient(apiKeyEnv, baseURL, country string, pageSize int) *NewsAPIClient {
	if baseURL == "" {
		baseURL = defaultNewsAPIBaseURL
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	return &NewsAPIClient{
		apiKey:   os.Getenv(apiKeyEnv),
		baseURL:  strings.TrimRight(baseURL, "/"),
		country:  country,
		pageSize: pageSize,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// IsConfigured returns whether the API key is available.
func (c *NewsAPIClient) IsConfigured() bool {
	return c.apiKey != ""
}

// TopHeadlines returns the current headlines for one category. Unknown
// categories are skipped with a log line.
func (c *NewsAPIClient) TopHeadlines(ctx context.Context, category string) ([]NewsArticle, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	if !newsAPICategories[category] {
		log.Printf("NewsAPI has no category %q, skipping", category)
		return nil, nil
	}

	params := url.Values{
		"category": {category},
		"pageSize": {fmt.Sprintf("%d", c.pageSize)},
	}
	if c.country != "" {
		params.Set("country", c.country)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/top-headlines?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting headlines: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Status   string `json:"status"`
		Message  string `json:"message"`
		Articles []struct {
			URL         string `json:"url"`
			Title       string `json:"title"`
			Author      string `json:"author"`
			URLToImage  string `json:"urlToImage"`
			PublishedAt string `json:"publishedAt"`
			Content     string `json:"content"`
			Description string `json:"description"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("NewsAPI HTTP error: %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || result.Status != "ok" {
		return nil, fmt.Errorf("NewsAPI error (%d): %s", resp.StatusCode, result.Message)
	}

	var articles []NewsArticle
	for _, a := range result.Articles {
		if a.URL == "" || a.Title == "" {
			continue
		}
		if a.Title == "[Removed]" || a.URL == "https://removed.com" {
			continue
		}

		var pubDate string
		if a.PublishedAt != "" {
			t, err := time.Parse(time.RFC3339, a.PublishedAt)
			if err == nil {
				pubDate = t.Format("2006-01-02")
			}
		}

		content := a.Content
		if content == "" {
			content = a.Description
		}

		source := "NewsAPI"
		if a.Source.Name != "" {
			source = a.Source.Name
		}

		articles = append(articles, NewsArticle{
			URL:           a.URL,
			Title:         strings.TrimSpace(a.Title),
			Description:   strings.TrimSpace(a.Description),
			Author:        strings.TrimSpace(a.Author),
			ImageURL:      a.URLToImage,
			PublishedDate: pubDate,
			Content:       strings.TrimSpace(content),
			Source:        source,
			Category:      category,
		})
	}

	log.Printf("Fetched %d %s headlines from NewsAPI", len(articles), category)
	return articles, nil
}
