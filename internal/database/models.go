package database

// DefaultCategory is assigned to articles collected without a category.
const DefaultCategory = "general"

// MinContentLength is the shortest stored content treated as full text.
// Shorter content, such as a feed teaser, is fetched again.
const MinContentLength = 100

// Article represents a collected article.
type Article struct {
	ID             int64
	URL            string
	Title          string
	Description    *string
	Source         *string
	Author         *string
	ImageURL       *string
	Category       string
	PublishedDate  *string
	Content        *string
	ContentFetched bool
	CollectedAt    *string
}

// ArticleFilter narrows article listings. Zero values mean "no filter".
type ArticleFilter struct {
	Category string
	Source   string
	Search   string
	Limit    int
	Offset   int
}

// CategoryCount is the number of articles in one category.
type CategoryCount struct {
	Category string
	Count    int
}

// SourceCount is the number of articles from one source.
type SourceCount struct {
	Source string
	Count  int
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalArticles   int
	FetchedArticles int
	Categories      int
	Sources         int
}
