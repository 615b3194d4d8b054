package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/NewsReader/internal/config"
	"github.com/TobiSchelling/NewsReader/internal/database"
	"github.com/TobiSchelling/NewsReader/internal/fetch"
	"github.com/TobiSchelling/NewsReader/internal/readinglist"
	"github.com/TobiSchelling/NewsReader/internal/tracker"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

const pageSize = 20

// Options holds the optional collaborators of a Server.
type Options struct {
	// Categories drive the category browser and feed filter labels.
	Categories []config.Category
	// Fetcher extracts full text when an article is opened. Nil disables
	// on-demand fetching.
	Fetcher *fetch.ContentFetcher
	// ReadingList holds saved articles. Nil uses a list over the
	// database's key/value store on the tracker's clock.
	ReadingList *readinglist.List
	// RequestLog enables per-request access logging.
	RequestLog bool
}

// Server is the HTTP server for the reader UI and the tracker API.
type Server struct {
	db      *database.DB
	tracker *tracker.Tracker
	saved   *readinglist.List
	opts    Options
	pages   map[string]*template.Template
	router  *chi.Mux
}

// New creates a new Server.
func New(db *database.DB, tr *tracker.Tracker, opts Options) (*Server, error) {
	s := &Server{db: db, tracker: tr, saved: opts.ReadingList, opts: opts, router: chi.NewRouter()}
	if s.saved == nil {
		s.saved = readinglist.New(db.KV(), tr)
	}

	funcMap := template.FuncMap{
		"markdown":      renderMarkdown,
		"formatDate":    database.FormatDateDisplay,
		"formatMinutes": tracker.FormatMinutes,
		"streakBadge":   tracker.StreakBadge,
		"streakMessage": tracker.StreakMessage,
		"categoryName":  s.categoryName,
		"categoryIcon":  s.categoryIcon,
		"timeAgo":       s.timeAgo,
		"pathEscape":    url.PathEscape,
		"level":         activityLevel,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "categories.html", "article.html", "tracker.html", "readinglist.html", "notfound.html"}
	s.pages = make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		s.pages[name] = clone
	}

	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	if s.opts.RequestLog {
		s.router.Use(middleware.Logger)
	}
	s.router.Use(middleware.Recoverer)

	staticSub, _ := fs.Sub(staticFS, "static")
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Pages
	s.router.Get("/", s.handleIndex)
	s.router.Get("/categories", s.handleCategories)
	s.router.Get("/article/{id}", s.handleArticle)
	s.router.Post("/sessions/{id}/finish", s.handleFinishReading)
	s.router.Get("/tracker", s.handleTrackerPage)
	s.router.Post("/tracker/reset", s.handleResetTracker)
	s.router.Get("/reading-list", s.handleReadingList)
	s.router.Post("/articles/{id}/save", s.handleSaveArticle)
	s.router.Post("/articles/{id}/unsave", s.handleUnsaveArticle)

	// Tracker API
	s.router.Route("/api", func(r chi.Router) {
		r.Post("/sessions", s.handleStartSession)
		r.Post("/sessions/{id}/end", s.handleEndSession)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/stats", s.handleStats)
		r.Get("/streak", s.handleStreak)
		r.Get("/trends", s.handleTrends)
		r.Delete("/tracker", s.handleClearTracker)
		r.Get("/saved", s.handleListSaved)
		r.Put("/saved/{id}", s.handlePutSaved)
		r.Delete("/saved/{id}", s.handleDeleteSaved)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.renderStatus(w, r, http.StatusNotFound, "notfound.html", nil)
	})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) {
	s.renderStatus(w, r, http.StatusOK, name, data)
}

func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if data == nil {
		data = map[string]any{}
	}
	data["Categories"] = s.opts.Categories
	data["Path"] = r.URL.Path
	if _, ok := data["CurrentStreak"]; !ok {
		data["CurrentStreak"] = s.tracker.Streak().CurrentStreak
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (s *Server) categoryName(id string) string {
	for _, c := range s.opts.Categories {
		if c.ID == id {
			return c.Name
		}
	}
	if id == "" {
		return ""
	}
	return id
}

func (s *Server) categoryIcon(id string) string {
	for _, c := range s.opts.Categories {
		if c.ID == id && c.Icon != "" {
			return c.Icon
		}
	}
	return "📰"
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

func (s *Server) timeAgo(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return humanize.RelTime(*t, s.tracker.Now(), "ago", "from now")
}

// idParam returns the unescaped {id} path parameter. The router
// matches on the escaped path, so ids containing "/" arrive as "%2F".
func idParam(r *http.Request) string {
	raw := chi.URLParam(r, "id")
	id, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return id
}

// activityLevel maps a daily read count to a heat-map shade from 0 to 4.
func activityLevel(n int) int {
	switch {
	case n <= 0:
		return 0
	case n >= 4:
		return 4
	default:
		return n
	}
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, tr *tracker.Tracker, opts Options, port int) error {
	srv, err := New(db, tr, opts)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
