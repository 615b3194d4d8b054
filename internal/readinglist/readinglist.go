// Package readinglist keeps the articles a reader saved for later in the
// same key/value store the reading tracker uses.
package readinglist

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/TobiSchelling/NewsReader/internal/tracker"
)

const savedKey = "saved_articles"

const schemaVersion = 1

var (
	// ErrStorage wraps failures of the underlying store, including a saved
	// list that cannot be parsed.
	ErrStorage = errors.New("reading list storage failure")
	// ErrInvalidArticleID is returned for an empty article id.
	ErrInvalidArticleID = errors.New("invalid article id")
)

// Entry is one saved article.
type Entry struct {
	ArticleID string    `json:"articleId"`
	SavedAt   time.Time `json:"savedAt"`
}

type savedList struct {
	Version  int     `json:"version"`
	Articles []Entry `json:"articles"`
}

// List is the saved-articles list. Operations are serialized.
type List struct {
	mu    sync.Mutex
	store tracker.Store
	clock tracker.Clock
}

// New creates a List over store. A nil clock uses the system clock.
func New(store tracker.Store, clock tracker.Clock) *List {
	if clock == nil {
		clock = tracker.SystemClock{}
	}
	return &List{store: store, clock: clock}
}

// Save adds articleID to the list. Saving an article twice keeps the
// original entry.
func (l *List) Save(articleID string) error {
	articleID = strings.TrimSpace(articleID)
	if articleID == "" {
		return ErrInvalidArticleID
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.ArticleID == articleID {
			return nil
		}
	}
	return l.save(append(entries, Entry{ArticleID: articleID, SavedAt: l.clock.Now()}))
}

// Remove drops articleID from the list. Removing an unsaved article is a
// no-op.
func (l *List) Remove(articleID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load()
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.ArticleID != articleID {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return nil
	}
	return l.save(kept)
}

// Contains reports whether articleID is saved. Unreadable lists count as
// empty.
func (l *List) Contains(articleID string) bool {
	for _, e := range l.Entries() {
		if e.ArticleID == articleID {
			return true
		}
	}
	return false
}

// Entries returns the saved articles, most recently saved first.
// Unreadable lists count as empty.
func (l *List) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load()
	if err != nil {
		return nil
	}
	out := make([]Entry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
	}
	return out
}

func (l *List) load() ([]Entry, error) {
	data, ok, err := l.store.Get(savedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: reading saved articles: %w", ErrStorage, err)
	}
	if !ok || len(data) == 0 {
		return nil, nil
	}

	var list savedList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: decoding saved articles: %w", ErrStorage, err)
	}
	if list.Version != schemaVersion {
		return nil, fmt.Errorf("%w: unsupported saved articles version %d", ErrStorage, list.Version)
	}
	return list.Articles, nil
}

func (l *List) save(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.Marshal(savedList{Version: schemaVersion, Articles: entries})
	if err != nil {
		return fmt.Errorf("encoding saved articles: %w", err)
	}
	if err := l.store.Set(savedKey, data); err != nil {
		return fmt.Errorf("%w: saving saved articles: %w", ErrStorage, err)
	}
	return nil
}
