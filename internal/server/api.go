package server

import (
	"encoding/json"
	"errors"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/TobiSchelling/NewsReader/internal/tracker"
)

const maxTrendDays = 365

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ArticleID any `json:"article_id"`
	}
	articleID := ""
	if isJSON(r) {
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		switch v := body.ArticleID.(type) {
		case string:
			articleID = v
		case json.Number:
			articleID = v.String()
		}
	} else {
		articleID = r.FormValue("article_id")
	}

	id, err := s.tracker.StartSession(articleID)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	completed := true
	if isJSON(r) {
		var body struct {
			Completed *bool `json:"completed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if body.Completed != nil {
			completed = *body.Completed
		}
	} else if v := r.FormValue("completed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "completed must be true or false")
			return
		}
		completed = b
	}

	if err := s.tracker.EndSession(idParam(r), completed); err != nil {
		writeTrackerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.tracker.Sessions()
	if sessions == nil {
		sessions = []tracker.ReadingSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Stats())
}

func (s *Server) handleStreak(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Streak())
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxTrendDays {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = n
	}
	writeJSON(w, http.StatusOK, s.tracker.Trends(days))
}

func (s *Server) handleClearTracker(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.ClearAll(); err != nil {
		writeTrackerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func isJSON(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return strings.EqualFold(mt, "application/json")
}

func writeTrackerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tracker.ErrInvalidArticleID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, tracker.ErrUnsupportedSchema):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("Tracker error: %v", err)
		writeError(w, http.StatusInternalServerError, "reading history is unavailable")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
