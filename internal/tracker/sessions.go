package tracker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Store keys owned by the tracker.
const (
	sessionsKey = "reading_sessions"
	statsKey    = "reading_stats"
)

// SchemaVersion is the version written to the persisted session log.
const SchemaVersion = 1

var errCorruptLog = errors.New("corrupt session log")

// ReadingSession is one timed reading interval for a single article.
type ReadingSession struct {
	ID              string     `json:"id"`
	ArticleID       string     `json:"articleId"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	DurationSeconds *int64     `json:"durationSeconds,omitempty"`
	Completed       bool       `json:"completed"`
}

// Open reports whether the session has not been ended yet.
func (s ReadingSession) Open() bool {
	return s.EndTime == nil
}

// counts reports whether the session contributes to streaks and stats.
func (s ReadingSession) counts() bool {
	return s.Completed && s.EndTime != nil
}

func (s ReadingSession) duration() int64 {
	if s.DurationSeconds == nil {
		return 0
	}
	return *s.DurationSeconds
}

// sessionLog is the persisted envelope.
type sessionLog struct {
	Version  int               `json:"version"`
	Sessions []json.RawMessage `json:"sessions"`
}

type encodedLog struct {
	Version  int              `json:"version"`
	Sessions []ReadingSession `json:"sessions"`
}

// sessionRecord is the loose on-disk shape. It also accepts the unversioned
// layout, where articleId was numeric and the duration key was "duration".
type sessionRecord struct {
	ID              string          `json:"id"`
	ArticleID       json.RawMessage `json:"articleId"`
	StartTime       string          `json:"startTime"`
	EndTime         *string         `json:"endTime"`
	DurationSeconds *float64        `json:"durationSeconds"`
	Duration        *float64        `json:"duration"`
	Completed       bool            `json:"completed"`
}

func encodeLog(sessions []ReadingSession) ([]byte, error) {
	if sessions == nil {
		sessions = []ReadingSession{}
	}
	return json.Marshal(encodedLog{Version: SchemaVersion, Sessions: sessions})
}

// decodeLog parses a persisted session log. Records that fail to parse are
// skipped and counted; an unreadable envelope returns errCorruptLog and a
// newer schema returns ErrUnsupportedSchema.
func decodeLog(data []byte) ([]ReadingSession, int, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, 0, nil
	}

	var raw []json.RawMessage
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", errCorruptLog, err)
		}
	} else {
		var env sessionLog
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", errCorruptLog, err)
		}
		if env.Version > SchemaVersion {
			return nil, 0, fmt.Errorf("%w: version %d", ErrUnsupportedSchema, env.Version)
		}
		if env.Version < 1 {
			return nil, 0, fmt.Errorf("%w: missing version", errCorruptLog)
		}
		raw = env.Sessions
	}

	sessions := make([]ReadingSession, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		s, err := parseRecord(r)
		if err != nil {
			skipped++
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, skipped, nil
}

func parseRecord(data json.RawMessage) (ReadingSession, error) {
	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return ReadingSession{}, err
	}
	if strings.TrimSpace(rec.ID) == "" {
		return ReadingSession{}, errors.New("missing id")
	}

	articleID, err := parseArticleID(rec.ArticleID)
	if err != nil {
		return ReadingSession{}, err
	}

	start, err := time.Parse(time.RFC3339Nano, rec.StartTime)
	if err != nil {
		return ReadingSession{}, fmt.Errorf("startTime: %w", err)
	}

	s := ReadingSession{
		ID:        rec.ID,
		ArticleID: articleID,
		StartTime: start,
		Completed: rec.Completed,
	}

	if rec.EndTime != nil {
		end, err := time.Parse(time.RFC3339Nano, *rec.EndTime)
		if err != nil {
			return ReadingSession{}, fmt.Errorf("endTime: %w", err)
		}
		s.EndTime = &end

		dur := rec.DurationSeconds
		if dur == nil {
			dur = rec.Duration
		}
		var secs int64
		if dur != nil && !math.IsNaN(*dur) {
			secs = int64(math.Floor(*dur))
		} else {
			secs = elapsedSeconds(start, end)
		}
		if secs < 0 {
			secs = 0
		}
		s.DurationSeconds = &secs
	}

	return s, nil
}

func parseArticleID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("missing articleId")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", errors.New("empty articleId")
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("articleId: %w", err)
	}
	return n.String(), nil
}

// elapsedSeconds floors end-start to whole seconds, never negative.
func elapsedSeconds(start, end time.Time) int64 {
	secs := int64(end.Sub(start) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}
