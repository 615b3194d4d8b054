// Package tracker records reading sessions in a key/value store and derives
// reading streaks and statistics from them.
//
// All derived values are recomputed from the persisted session log on every
// read. The only state kept between calls is the log itself.
package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrStorage wraps every failure of the underlying Store, including a
	// session log that can no longer be parsed.
	ErrStorage = errors.New("tracker storage failure")
	// ErrUnsupportedSchema is returned when a write would overwrite a session
	// log written by a newer schema version.
	ErrUnsupportedSchema = errors.New("unsupported session log schema")
	// ErrInvalidArticleID is returned by StartSession for an empty article id.
	ErrInvalidArticleID = errors.New("invalid article id")
)

// Tracker is the reading activity facade. It is the only writer of the
// tracker-owned keys in its Store. Operations are serialized, so a Tracker
// can be shared between HTTP handlers.
type Tracker struct {
	mu      sync.Mutex
	store   Store
	clock   Clock
	loc     *time.Location
	newID   func() string
	verbose bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithLocation sets the time zone used for every calendar-day computation.
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) {
		if loc != nil {
			t.loc = loc
		}
	}
}

// WithIDGenerator replaces the unique component of session ids.
func WithIDGenerator(fn func() string) Option {
	return func(t *Tracker) { t.newID = fn }
}

// WithVerbose enables logging of no-op session ends.
func WithVerbose(v bool) Option {
	return func(t *Tracker) { t.verbose = v }
}

// New creates a Tracker over store.
func New(store Store, opts ...Option) *Tracker {
	t := &Tracker{
		store: store,
		clock: SystemClock{},
		loc:   time.Local,
		newID: newUUID,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Now returns the current time of the tracker's clock.
func (t *Tracker) Now() time.Time {
	return t.clock.Now()
}

// Location returns the time zone used for day bucketing.
func (t *Tracker) Location() *time.Location {
	return t.loc
}

// StartSession appends an open session for articleID and returns its id.
// Several open sessions for the same article are allowed.
func (t *Tracker) StartSession(articleID string) (string, error) {
	articleID = strings.TrimSpace(articleID)
	if articleID == "" {
		return "", ErrInvalidArticleID
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	sessions, err := t.loadForWrite()
	if err != nil {
		return "", err
	}

	s := ReadingSession{
		ID:        fmt.Sprintf("session_%s_%s", t.newID(), articleID),
		ArticleID: articleID,
		StartTime: t.clock.Now(),
	}
	sessions = append(sessions, s)

	if err := t.save(sessions); err != nil {
		return "", err
	}
	return s.ID, nil
}

// EndSession closes an open session. Ending an unknown or already closed
// session is a no-op and returns nil, so callers may end defensively.
func (t *Tracker) EndSession(sessionID string, completed bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	sessions, err := t.loadForWrite()
	if err != nil {
		return err
	}

	idx := -1
	for i := range sessions {
		if sessions[i].ID == sessionID {
			idx = i
			break
		}
	}
	if idx < 0 || !sessions[idx].Open() {
		if t.verbose {
			log.Printf("Ignoring end of unknown or closed session %q", sessionID)
		}
		return nil
	}

	now := t.clock.Now()
	secs := elapsedSeconds(sessions[idx].StartTime, now)
	sessions[idx].EndTime = &now
	sessions[idx].DurationSeconds = &secs
	sessions[idx].Completed = completed

	if err := t.save(sessions); err != nil {
		return err
	}
	if err := t.writeStatsCache(sessions, now); err != nil {
		log.Printf("Stats cache not updated: %v", err)
	}
	return nil
}

// Stats recomputes reading statistics from the current log.
func (t *Tracker) Stats() ReadingStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ComputeStats(t.loadForRead(), t.clock.Now(), t.loc)
}

// Streak recomputes the streak snapshot from the current log.
func (t *Tracker) Streak() StreakSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return CalculateStreak(t.loadForRead(), t.clock.Now(), t.loc)
}

// Trends returns per-day activity for the trailing days ending today.
func (t *Tracker) Trends(days int) []DayTrend {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ComputeTrends(t.loadForRead(), t.clock.Now(), t.loc, days)
}

// Sessions returns a copy of the session log in insertion order.
func (t *Tracker) Sessions() []ReadingSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loadForRead()
}

// ClearAll erases the session log and the stats cache in one store call.
func (t *Tracker) ClearAll() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.Delete(sessionsKey, statsKey); err != nil {
		return fmt.Errorf("%w: clearing tracker data: %w", ErrStorage, err)
	}
	return nil
}

func (t *Tracker) load() ([]ReadingSession, error) {
	data, ok, err := t.store.Get(sessionsKey)
	if err != nil {
		return nil, fmt.Errorf("%w: reading sessions: %w", ErrStorage, err)
	}
	if !ok {
		return nil, nil
	}

	sessions, skipped, err := decodeLog(data)
	if skipped > 0 {
		log.Printf("Skipped %d malformed reading session record(s)", skipped)
	}
	return sessions, err
}

// loadForRead never fails: unreadable logs count as empty.
func (t *Tracker) loadForRead() []ReadingSession {
	sessions, err := t.load()
	if err != nil {
		log.Printf("Reading session log unavailable, using empty log: %v", err)
		return nil
	}
	return sessions
}

// loadForWrite surfaces storage, schema and corruption errors. A corrupt
// log is left untouched; ClearAll is the only write that discards it.
func (t *Tracker) loadForWrite() ([]ReadingSession, error) {
	sessions, err := t.load()
	if errors.Is(err, errCorruptLog) {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return sessions, err
}

func (t *Tracker) save(sessions []ReadingSession) error {
	data, err := encodeLog(sessions)
	if err != nil {
		return fmt.Errorf("encoding sessions: %w", err)
	}
	if err := t.store.Set(sessionsKey, data); err != nil {
		return fmt.Errorf("%w: saving sessions: %w", ErrStorage, err)
	}
	return nil
}

// writeStatsCache stores the last computed stats. The record is advisory;
// nothing in this package reads it back.
func (t *Tracker) writeStatsCache(sessions []ReadingSession, now time.Time) error {
	data, err := json.Marshal(ComputeStats(sessions, now, t.loc))
	if err != nil {
		return fmt.Errorf("encoding stats: %w", err)
	}
	if err := t.store.Set(statsKey, data); err != nil {
		return fmt.Errorf("%w: saving stats cache: %w", ErrStorage, err)
	}
	return nil
}

func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}
