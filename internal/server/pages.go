package server

import (
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/TobiSchelling/NewsReader/internal/database"
	"github.com/TobiSchelling/NewsReader/internal/tracker"
)

const trendingSize = 10

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}

	filter := database.ArticleFilter{
		Category: strings.ToLower(strings.TrimSpace(q.Get("category"))),
		Source:   strings.TrimSpace(q.Get("source")),
		Search:   strings.TrimSpace(q.Get("q")),
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
	}

	articles, err := s.db.ListArticles(filter)
	if err != nil {
		log.Printf("Listing articles: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	total, err := s.db.CountArticles(filter)
	if err != nil {
		log.Printf("Counting articles: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var trending []database.Article
	if page == 1 && filter.Category == "" && filter.Source == "" && filter.Search == "" {
		today := tracker.DayKey(s.tracker.Now(), s.tracker.Location())
		trending, err = s.db.ListTrending(today, trendingSize)
		if err != nil {
			log.Printf("Listing trending articles: %v", err)
		}
	}

	s.render(w, r, "index.html", map[string]any{
		"Articles": articles,
		"Trending": trending,
		"Total":    total,
		"Category": filter.Category,
		"Source":   filter.Source,
		"Query":    filter.Search,
		"Page":     page,
		"PrevURL":  pageURL(filter, page-1, total),
		"NextURL":  pageURL(filter, page+1, total),
	})
}

// pageURL returns the feed URL for page, or "" when page is out of range.
func pageURL(f database.ArticleFilter, page, total int) string {
	if page < 1 || (page-1)*pageSize >= total {
		return ""
	}
	v := url.Values{}
	if f.Category != "" {
		v.Set("category", f.Category)
	}
	if f.Source != "" {
		v.Set("source", f.Source)
	}
	if f.Search != "" {
		v.Set("q", f.Search)
	}
	if page > 1 {
		v.Set("page", strconv.Itoa(page))
	}
	if len(v) == 0 {
		return "/"
	}
	return "/?" + v.Encode()
}

type categoryView struct {
	ID    string
	Name  string
	Icon  string
	Count int
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	counts, err := s.db.GetCategoryCounts()
	if err != nil {
		log.Printf("Counting categories: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	byID := make(map[string]int, len(counts))
	for _, c := range counts {
		byID[c.Category] = c.Count
	}

	var views []categoryView
	seen := make(map[string]bool)
	for _, c := range s.opts.Categories {
		views = append(views, categoryView{ID: c.ID, Name: c.Name, Icon: s.categoryIcon(c.ID), Count: byID[c.ID]})
		seen[c.ID] = true
	}

	var extra []categoryView
	for id, n := range byID {
		if !seen[id] {
			extra = append(extra, categoryView{ID: id, Name: id, Icon: s.categoryIcon(id), Count: n})
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].ID < extra[j].ID })

	sources, err := s.db.GetSourceCounts()
	if err != nil {
		log.Printf("Counting sources: %v", err)
	}

	s.render(w, r, "categories.html", map[string]any{
		"CategoryViews": append(views, extra...),
		"Sources":       sources,
	})
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.renderStatus(w, r, http.StatusNotFound, "notfound.html", nil)
		return
	}

	var article *database.Article
	if s.opts.Fetcher != nil {
		article, err = s.opts.Fetcher.FetchArticle(r.Context(), id)
	} else {
		article, err = s.db.GetArticleByID(id)
	}
	if err != nil {
		log.Printf("Loading article %d: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if article == nil {
		s.renderStatus(w, r, http.StatusNotFound, "notfound.html", nil)
		return
	}

	// Reading still works when the session cannot be recorded.
	sessionID, err := s.tracker.StartSession(strconv.FormatInt(article.ID, 10))
	if err != nil {
		log.Printf("Starting reading session for article %d: %v", article.ID, err)
	}

	s.render(w, r, "article.html", map[string]any{
		"Article":   article,
		"SessionID": sessionID,
		"Saved":     s.saved.Contains(strconv.FormatInt(article.ID, 10)),
	})
}

// handleFinishReading ends a session from the article page form.
func (s *Server) handleFinishReading(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.EndSession(idParam(r), true); err != nil {
		log.Printf("Ending reading session: %v", err)
	}
	http.Redirect(w, r, "/tracker", http.StatusSeeOther)
}

func (s *Server) handleTrackerPage(w http.ResponseWriter, r *http.Request) {
	stats := s.tracker.Stats()
	streak := s.tracker.Streak()

	s.render(w, r, "tracker.html", map[string]any{
		"Stats":         stats,
		"Streak":        streak,
		"Trends":        s.tracker.Trends(7),
		"CurrentStreak": streak.CurrentStreak,
	})
}

func (s *Server) handleResetTracker(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.ClearAll(); err != nil {
		log.Printf("Clearing tracker: %v", err)
		http.Error(w, "Could not reset reading history", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/tracker", http.StatusSeeOther)
}
