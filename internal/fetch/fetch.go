package fetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/TobiSchelling/NewsReader/internal/database"
)

const (
	userAgent      = "NewsReader/1.0 (news reader)"
	minContentLen  = database.MinContentLength
	maxBodyBytes   = 5 << 20
	defaultTimeout = 15 * time.Second
)

// Result holds the results of a content fetch run.
type Result struct {
	Fetched int
	Failed  int
}

// ContentFetcher fetches full article text via HTTP + readability extraction.
type ContentFetcher struct {
	db     *database.DB
	client *http.Client
}

// NewContentFetcher creates a new content fetcher.
func NewContentFetcher(db *database.DB, timeout time.Duration) *ContentFetcher {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &ContentFetcher{
		db: db,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// FetchArticle returns the article with its full text, fetching and storing
// it first when the article has no content and no fetch was attempted yet.
// Returns nil, nil if the article does not exist.
func (f *ContentFetcher) FetchArticle(ctx context.Context, articleID int64) (*database.Article, error) {
	article, err := f.db.GetArticleByID(articleID)
	if err != nil || article == nil {
		return article, err
	}
	if article.ContentFetched || (article.Content != nil && len(*article.Content) >= minContentLen) {
		return article, nil
	}

	content, err := f.fetchArticleContent(ctx, article.URL)
	if err != nil {
		log.Printf("Fetching %s: %v", article.URL, err)
	}
	if content == "" {
		if err := f.db.MarkArticleFetchAttempted(article.ID); err != nil {
			return nil, fmt.Errorf("marking fetch attempt: %w", err)
		}
		article.ContentFetched = true
		return article, nil
	}

	if err := f.db.UpdateArticleContent(article.ID, &content); err != nil {
		return nil, fmt.Errorf("storing content: %w", err)
	}
	article.Content = &content
	article.ContentFetched = true
	return article, nil
}

// FetchMissingContent fetches content for up to limit articles that have
// empty content. After an HTTP error the rest of that domain is skipped.
func (f *ContentFetcher) FetchMissingContent(ctx context.Context, limit int) *Result {
	articles, err := f.db.GetArticlesNeedingFetch(limit)
	if err != nil {
		log.Printf("Error getting articles needing fetch: %v", err)
		return &Result{}
	}

	if len(articles) == 0 {
		log.Println("No articles need content fetching")
		return &Result{}
	}

	result := &Result{}
	failedDomains := make(map[string]struct{})

	for _, article := range articles {
		if ctx.Err() != nil {
			break
		}

		domain := domainOf(article.URL)
		if _, failed := failedDomains[domain]; failed {
			f.markAttempted(article.ID)
			result.Failed++
			continue
		}

		content, err := f.fetchArticleContent(ctx, article.URL)
		if _, isHTTP := err.(*httpError); isHTTP {
			f.markAttempted(article.ID)
			result.Failed++
			if domain != "" {
				failedDomains[domain] = struct{}{}
			}
			log.Printf("HTTP error for %s, skipping remaining from %s", article.URL, domain)
			continue
		}

		if content != "" {
			if err := f.db.UpdateArticleContent(article.ID, &content); err != nil {
				log.Printf("Failed to store content for %s: %v", article.URL, err)
				result.Failed++
				continue
			}
			result.Fetched++
			log.Printf("Fetched content for: %s", article.Title)
		} else {
			f.markAttempted(article.ID)
			result.Failed++
			log.Printf("No extractable content from: %s", article.URL)
		}
	}

	log.Printf("Content fetch complete: %d fetched, %d failed", result.Fetched, result.Failed)
	return result
}

func (f *ContentFetcher) markAttempted(id int64) {
	if err := f.db.MarkArticleFetchAttempted(id); err != nil {
		log.Printf("Failed to mark article %d: %v", id, err)
	}
}

// fetchArticleContent returns extracted text, or "" when nothing usable was
// found. Only HTTP status failures are returned as *httpError.
func (f *ContentFetcher) fetchArticleContent(ctx context.Context, articleURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("connecting: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}

	parsedURL, _ := url.Parse(articleURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return "", fmt.Errorf("extracting: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) >= minContentLen {
		return text, nil
	}
	return "", nil
}

func domainOf(articleURL string) string {
	u, err := url.Parse(articleURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.code, http.StatusText(e.code))
}
