package server

import (
	"errors"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/TobiSchelling/NewsReader/internal/database"
	"github.com/TobiSchelling/NewsReader/internal/readinglist"
)

// listItem is one row on the reading list page.
type listItem struct {
	ArticleID string
	Article   *database.Article
	At        *time.Time
}

func (s *Server) handleReadingList(w http.ResponseWriter, r *http.Request) {
	tab := "saved"
	if r.URL.Query().Get("tab") == "history" {
		tab = "history"
	}

	var saved []listItem
	for _, e := range s.saved.Entries() {
		at := e.SavedAt
		saved = append(saved, listItem{ArticleID: e.ArticleID, Article: s.lookupArticle(e.ArticleID), At: &at})
	}

	s.render(w, r, "readinglist.html", map[string]any{
		"Tab":     tab,
		"Saved":   saved,
		"History": s.readHistory(),
	})
}

// readHistory lists finished articles, most recently finished first. An
// article read more than once appears once.
func (s *Server) readHistory() []listItem {
	sessions := s.tracker.Sessions()
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i].EndTime, sessions[j].EndTime
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.After(*b)
	})

	seen := make(map[string]bool)
	var items []listItem
	for _, sess := range sessions {
		if !sess.Completed || sess.EndTime == nil || seen[sess.ArticleID] {
			continue
		}
		seen[sess.ArticleID] = true
		items = append(items, listItem{ArticleID: sess.ArticleID, Article: s.lookupArticle(sess.ArticleID), At: sess.EndTime})
	}
	return items
}

// lookupArticle returns nil for ids that are not stored articles.
func (s *Server) lookupArticle(articleID string) *database.Article {
	id, err := strconv.ParseInt(articleID, 10, 64)
	if err != nil {
		return nil
	}
	article, err := s.db.GetArticleByID(id)
	if err != nil {
		log.Printf("Loading article %d: %v", id, err)
		return nil
	}
	return article
}

func (s *Server) handleSaveArticle(w http.ResponseWriter, r *http.Request) {
	if err := s.saved.Save(idParam(r)); err != nil {
		log.Printf("Saving article: %v", err)
	}
	http.Redirect(w, r, safeNext(r.FormValue("next")), http.StatusSeeOther)
}

func (s *Server) handleUnsaveArticle(w http.ResponseWriter, r *http.Request) {
	if err := s.saved.Remove(idParam(r)); err != nil {
		log.Printf("Removing saved article: %v", err)
	}
	http.Redirect(w, r, safeNext(r.FormValue("next")), http.StatusSeeOther)
}

// safeNext only allows redirects to local paths.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/reading-list"
	}
	return next
}

func (s *Server) handleListSaved(w http.ResponseWriter, r *http.Request) {
	entries := s.saved.Entries()
	if entries == nil {
		entries = []readinglist.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handlePutSaved(w http.ResponseWriter, r *http.Request) {
	if err := s.saved.Save(idParam(r)); err != nil {
		writeReadingListError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteSaved(w http.ResponseWriter, r *http.Request) {
	if err := s.saved.Remove(idParam(r)); err != nil {
		writeReadingListError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeReadingListError(w http.ResponseWriter, err error) {
	if errors.Is(err, readinglist.ErrInvalidArticleID) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Printf("Reading list error: %v", err)
	writeError(w, http.StatusInternalServerError, "reading list is unavailable")
}
