package database

import (
	"database/sql"
	"strings"
)

const articleColumns = `id, url, title, description, source, author, image_url, category,
	published_date, content, content_fetched, collected_at`

// InsertArticle inserts an article. Returns the ID on success, 0 if duplicate.
func (db *DB) InsertArticle(a *Article) (int64, error) {
	category := a.Category
	if category == "" {
		category = DefaultCategory
	}

	result, err := db.conn.Exec(
		`INSERT INTO articles (url, title, description, source, author, image_url, category, published_date, content)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.URL, a.Title, a.Description, a.Source, a.Author, a.ImageURL, category, a.PublishedDate, a.Content,
	)
	if err != nil {
		// Duplicate URL constraint
		return 0, nil //nolint: nilerr
	}
	return result.LastInsertId()
}

// ListArticles returns articles matching the filter, newest first.
func (db *DB) ListArticles(f ArticleFilter) ([]Article, error) {
	where, args := f.clause()
	query := "SELECT " + articleColumns + " FROM articles" + where +
		" ORDER BY COALESCE(published_date, collected_at) DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// CountArticles returns the number of articles matching the filter,
// ignoring Limit and Offset.
func (db *DB) CountArticles(f ArticleFilter) (int, error) {
	where, args := f.clause()
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM articles"+where, args...).Scan(&n)
	return n, err
}

func (f ArticleFilter) clause() (string, []any) {
	var conds []string
	var args []any
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, f.Source)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		conds = append(conds, "(title LIKE ? OR description LIKE ?)")
		like := "%" + s + "%"
		args = append(args, like, like)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// GetArticlesNeedingFetch returns articles without full text that haven't
// been fetched yet.
func (db *DB) GetArticlesNeedingFetch(limit int) ([]Article, error) {
	query := "SELECT " + articleColumns + ` FROM articles
		WHERE (content IS NULL OR length(content) < ?) AND content_fetched = 0
		ORDER BY collected_at DESC`
	args := []any{MinContentLength}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// UpdateArticleContent updates article content after fetching.
func (db *DB) UpdateArticleContent(articleID int64, content *string) error {
	_, err := db.conn.Exec(
		"UPDATE articles SET content = ?, content_fetched = 1 WHERE id = ?",
		content, articleID,
	)
	return err
}

// MarkArticleFetchAttempted marks that we tried to fetch content.
func (db *DB) MarkArticleFetchAttempted(articleID int64) error {
	_, err := db.conn.Exec(
		"UPDATE articles SET content_fetched = 1 WHERE id = ?", articleID,
	)
	return err
}

// GetArticleByID returns a single article by ID.
func (db *DB) GetArticleByID(articleID int64) (*Article, error) {
	row := db.conn.QueryRow("SELECT "+articleColumns+" FROM articles WHERE id = ?", articleID)
	a, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetCategoryCounts returns the number of articles per category, largest first.
func (db *DB) GetCategoryCounts() ([]CategoryCount, error) {
	rows, err := db.conn.Query(
		`SELECT category, COUNT(*) FROM articles GROUP BY category ORDER BY COUNT(*) DESC, category`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// GetSourceCounts returns the number of articles per named source, largest
// first.
func (db *DB) GetSourceCounts() ([]SourceCount, error) {
	rows, err := db.conn.Query(
		`SELECT source, COUNT(*) FROM articles WHERE source IS NOT NULL AND source != ''
		GROUP BY source ORDER BY COUNT(*) DESC, source`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []SourceCount
	for rows.Next() {
		var c SourceCount
		if err := rows.Scan(&c.Source, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// ListTrending returns the newest articles published on or after since
// (YYYY-MM-DD).
func (db *DB) ListTrending(since string, limit int) ([]Article, error) {
	rows, err := db.conn.Query("SELECT "+articleColumns+` FROM articles
		WHERE published_date >= ?
		ORDER BY published_date DESC, collected_at DESC, id DESC
		LIMIT ?`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM articles", &s.TotalArticles},
		{"SELECT COUNT(*) FROM articles WHERE content IS NOT NULL AND content != ''", &s.FetchedArticles},
		{"SELECT COUNT(DISTINCT category) FROM articles", &s.Categories},
		{"SELECT COUNT(DISTINCT source) FROM articles", &s.Sources},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticles(rows *sql.Rows) ([]Article, error) {
	var articles []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	return articles, rows.Err()
}

func scanArticle(row scanner) (*Article, error) {
	var a Article
	var fetched int
	if err := row.Scan(&a.ID, &a.URL, &a.Title, &a.Description, &a.Source, &a.Author,
		&a.ImageURL, &a.Category, &a.PublishedDate, &a.Content, &fetched, &a.CollectedAt); err != nil {
		return nil, err
	}
	a.ContentFetched = fetched != 0
	return &a, nil
}
