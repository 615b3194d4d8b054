package tracker_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/NewsReader/internal/database"
	"github.com/TobiSchelling/NewsReader/internal/tracker"
)

var testLoc = time.FixedZone("UTC+2", 2*60*60)

// day is noon of the reference day D.
var day = time.Date(2026, 3, 15, 12, 0, 0, 0, testLoc)

type storeFactory func(t *testing.T) tracker.Store

func stores() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) tracker.Store { return tracker.NewMemoryStore() },
		"sqlite": func(t *testing.T) tracker.Store {
			db, err := database.Open(filepath.Join(t.TempDir(), "tracker.db"))
			require.NoError(t, err)
			t.Cleanup(func() { db.Close() })
			return db.KV()
		},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, store tracker.Store)) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func newTracker(store tracker.Store, clock *tracker.FixedClock) *tracker.Tracker {
	n := 0
	return tracker.New(store,
		tracker.WithClock(clock),
		tracker.WithLocation(testLoc),
		tracker.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("%04d", n)
		}),
	)
}

// read records one session ending at end after reading for d.
func read(t *testing.T, tr *tracker.Tracker, clock *tracker.FixedClock, articleID string, end time.Time, d time.Duration, completed bool) string {
	t.Helper()
	clock.Set(end.Add(-d))
	id, err := tr.StartSession(articleID)
	require.NoError(t, err)
	clock.Set(end)
	require.NoError(t, tr.EndSession(id, completed))
	return id
}

func TestStartSessionIDs(t *testing.T) {
	clock := tracker.NewFixedClock(day)
	tr := tracker.New(tracker.NewMemoryStore(), tracker.WithClock(clock))

	a, err := tr.StartSession("42")
	require.NoError(t, err)
	b, err := tr.StartSession("42")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "same article at the same instant must get distinct ids")
	assert.True(t, strings.HasPrefix(a, "session_"))
	assert.True(t, strings.HasSuffix(a, "_42"))

	sessions := tr.Sessions()
	require.Len(t, sessions, 2)
	for _, s := range sessions {
		assert.True(t, s.Open())
		assert.False(t, s.Completed)
		assert.Nil(t, s.DurationSeconds)
		assert.True(t, s.StartTime.Equal(day))
	}
}

func TestStartSessionRejectsEmptyArticle(t *testing.T) {
	tr := tracker.New(tracker.NewMemoryStore())
	_, err := tr.StartSession("  ")
	assert.ErrorIs(t, err, tracker.ErrInvalidArticleID)
}

func TestEndSessionRecordsDuration(t *testing.T) {
	forEachStore(t, func(t *testing.T, store tracker.Store) {
		clock := tracker.NewFixedClock(day)
		tr := newTracker(store, clock)

		id, err := tr.StartSession("7")
		require.NoError(t, err)
		clock.Advance(90*time.Second + 900*time.Millisecond)
		require.NoError(t, tr.EndSession(id, true))

		sessions := tr.Sessions()
		require.Len(t, sessions, 1)
		s := sessions[0]
		require.NotNil(t, s.EndTime)
		require.NotNil(t, s.DurationSeconds)
		assert.Equal(t, int64(90), *s.DurationSeconds, "duration is floored to whole seconds")
		assert.True(t, s.Completed)
		assert.False(t, s.Open())
	})
}

func TestEndSessionTwiceIsNoop(t *testing.T) {
	forEachStore(t, func(t *testing.T, store tracker.Store) {
		clock := tracker.NewFixedClock(day)
		tr := newTracker(store, clock)

		id, err := tr.StartSession("1")
		require.NoError(t, err)
		clock.Advance(2 * time.Minute)
		require.NoError(t, tr.EndSession(id, true))

		first := tr.Sessions()
		stats := tr.Stats()

		clock.Advance(10 * time.Minute)
		require.NoError(t, tr.EndSession(id, false))

		assert.Equal(t, first[0].EndTime.Unix(), tr.Sessions()[0].EndTime.Unix())
		assert.True(t, tr.Sessions()[0].Completed)
		assert.Equal(t, stats, tr.Stats())
	})
}

func TestEndUnknownSessionIsNoop(t *testing.T) {
	clock := tracker.NewFixedClock(day)
	tr := newTracker(tracker.NewMemoryStore(), clock)
	assert.NoError(t, tr.EndSession("session_missing_1", true))
	assert.Empty(t, tr.Sessions())
}

// Sessions on D, D-1, D-2 and D-5: current streak 3, longest 3.
func TestScenarioGapInHistory(t *testing.T) {
	forEachStore(t, func(t *testing.T, store tracker.Store) {
		clock := tracker.NewFixedClock(day)
		tr := newTracker(store, clock)

		for _, back := range []int{0, 1, 2, 5} {
			read(t, tr, clock, "a", day.AddDate(0, 0, -back), 5*time.Minute, true)
		}
		clock.Set(day)

		streak := tr.Streak()
		assert.Equal(t, 3, streak.CurrentStreak)
		assert.Equal(t, 3, streak.LongestStreak)

		stats := tr.Stats()
		assert.Equal(t, 3, stats.CurrentStreak)
		assert.Equal(t, 3, stats.LongestStreak)
	})
}

func TestScenarioNoSessions(t *testing.T) {
	forEachStore(t, func(t *testing.T, store tracker.Store) {
		tr := newTracker(store, tracker.NewFixedClock(day))

		assert.Equal(t, tracker.ReadingStats{}, tr.Stats())

		streak := tr.Streak()
		assert.Zero(t, streak.CurrentStreak)
		assert.Zero(t, streak.LongestStreak)
		assert.Nil(t, streak.LastReadDate)
		require.Len(t, streak.History, tracker.HistoryDays)
		for _, b := range streak.History {
			assert.Zero(t, b.ReadCount)
		}
	})
}

func TestScenarioOpenSessionExcluded(t *testing.T) {
	forEachStore(t, func(t *testing.T, store tracker.Store) {
		clock := tracker.NewFixedClock(day)
		tr := newTracker(store, clock)

		_, err := tr.StartSession("9")
		require.NoError(t, err)
		clock.Advance(time.Hour)

		stats := tr.Stats()
		assert.Zero(t, stats.TotalArticlesRead)
		assert.Zero(t, stats.TotalReadingTimeMinutes)
		assert.Zero(t, stats.CompletionRate)
	})
}

func TestScenarioTwoSessionsToday(t *testing.T) {
	forEachStore(t, func(t *testing.T, store tracker.Store) {
		clock := tracker.NewFixedClock(day)
		tr := newTracker(store, clock)

		read(t, tr, clock, "1", day.Add(-time.Hour), 120*time.Second, true)
		read(t, tr, clock, "2", day, 300*time.Second, true)

		stats := tr.Stats()
		assert.Equal(t, 2, stats.TotalArticlesRead)
		assert.Equal(t, 7, stats.TotalReadingTimeMinutes)
		assert.Equal(t, 4, stats.AverageReadingTimeMinutes)
		assert.Equal(t, 2, stats.TodayReadCount)
		assert.Equal(t, 2, stats.WeeklyReadCount)
		assert.Equal(t, 2, stats.MonthlyReadCount)
		assert.Equal(t, 1, stats.CurrentStreak)
		assert.Equal(t, float64(100), stats.CompletionRate)
		require.NotNil(t, stats.LastReadDate)
		assert.True(t, stats.LastReadDate.Equal(day))
	})
}

func TestTotalMatchesCompletedSessions(t *testing.T) {
	clock := tracker.NewFixedClock(day)
	tr := newTracker(tracker.NewMemoryStore(), clock)

	var open []string
	for i := 0; i < 12; i++ {
		clock.Set(day.Add(time.Duration(i) * time.Minute))
		id, err := tr.StartSession(fmt.Sprint(i % 4))
		require.NoError(t, err)
		switch i % 3 {
		case 0:
			require.NoError(t, tr.EndSession(id, true))
		case 1:
			require.NoError(t, tr.EndSession(id, false))
		default:
			open = append(open, id)
		}
	}

	want := 0
	for _, s := range tr.Sessions() {
		if s.Completed && s.EndTime != nil {
			want++
		}
	}
	assert.Equal(t, want, tr.Stats().TotalArticlesRead)
	assert.Equal(t, 4, want)
	assert.Len(t, open, 4)
	assert.Equal(t, float64(50), tr.Stats().CompletionRate)
}

func TestStreakGrowsByAtMostOne(t *testing.T) {
	clock := tracker.NewFixedClock(day)
	tr := newTracker(tracker.NewMemoryStore(), clock)

	read(t, tr, clock, "a", day.AddDate(0, 0, -2), time.Minute, true)
	read(t, tr, clock, "b", day.AddDate(0, 0, -1), time.Minute, true)
	clock.Set(day)
	before := tr.Streak().CurrentStreak
	assert.Equal(t, 2, before)

	read(t, tr, clock, "c", day, time.Minute, true)
	after := tr.Streak().CurrentStreak
	assert.Equal(t, before+1, after)

	read(t, tr, clock, "d", day.Add(time.Minute), time.Minute, true)
	assert.Equal(t, after, tr.Streak().CurrentStreak, "a second read on the same day does not extend the streak")
}

func TestHistoryIsDenseAndEndsToday(t *testing.T) {
	clock := tracker.NewFixedClock(day)
	tr := newTracker(tracker.NewMemoryStore(), clock)
	read(t, tr, clock, "a", day.AddDate(0, 0, -29), time.Minute, true)
	read(t, tr, clock, "b", day.AddDate(0, 0, -40), time.Minute, true)
	clock.Set(day)

	history := tr.Streak().History
	require.Len(t, history, tracker.HistoryDays)
	assert.Equal(t, "2026-03-15", history[len(history)-1].Date)
	assert.Equal(t, "2026-02-14", history[0].Date)
	assert.Equal(t, 1, history[0].ReadCount)

	total := 0
	for _, b := range history {
		total += b.ReadCount
	}
	assert.Equal(t, 1, total, "sessions older than the window are not in the history")
}

func TestDayBucketsUseTrackerLocation(t *testing.T) {
	clock := tracker.NewFixedClock(day)
	tr := newTracker(tracker.NewMemoryStore(), clock)

	// 00:30 local on D is still D-1 in UTC.
	end := time.Date(2026, 3, 15, 0, 30, 0, 0, testLoc)
	read(t, tr, clock, "a", end, time.Minute, true)
	clock.Set(day)

	stats := tr.Stats()
	assert.Equal(t, 1, stats.TodayReadCount)
	history := tr.Streak().History
	assert.Equal(t, 1, history[len(history)-1].ReadCount)
}

func TestTrailingWindows(t *testing.T) {
	clock := tracker.NewFixedClock(day)
	tr := newTracker(tracker.NewMemoryStore(), clock)

	read(t, tr, clock, "a", day.Add(-(7*24*time.Hour - time.Minute)), time.Minute, true)
	read(t, tr, clock, "b", day.Add(-(7*24*time.Hour + time.Minute)), time.Minute, true)
	read(t, tr, clock, "c", day.Add(-30*24*time.Hour), time.Minute, true)
	read(t, tr, clock, "d", day.Add(-31*24*time.Hour), time.Minute, true)
	clock.Set(day)

	stats := tr.Stats()
	assert.Equal(t, 4, stats.TotalArticlesRead)
	assert.Equal(t, 0, stats.TodayReadCount)
	assert.Equal(t, 1, stats.WeeklyReadCount)
	assert.Equal(t, 3, stats.MonthlyReadCount)
}

func TestStatsRoundTripAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roundtrip.db")
	db, err := database.Open(path)
	require.NoError(t, err)

	clock := tracker.NewFixedClock(day)
	tr := newTracker(db.KV(), clock)
	read(t, tr, clock, "1", day.AddDate(0, 0, -1), 61*time.Second, true)
	read(t, tr, clock, "2", day, 299*time.Second, true)
	read(t, tr, clock, "3", day.Add(time.Minute), 30*time.Second, false)
	clock.Set(day.Add(time.Hour))

	before, err := json.Marshal(tr.Stats())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = database.Open(path)
	require.NoError(t, err)
	defer db.Close()

	after, err := json.Marshal(newTracker(db.KV(), clock).Stats())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestStatsCacheIsWrittenAndCleared(t *testing.T) {
	store := tracker.NewMemoryStore()
	clock := tracker.NewFixedClock(day)
	tr := newTracker(store, clock)

	read(t, tr, clock, "1", day, time.Minute, true)

	data, ok, err := store.Get("reading_stats")
	require.NoError(t, err)
	require.True(t, ok)

	var cached tracker.ReadingStats
	require.NoError(t, json.Unmarshal(data, &cached))
	assert.Equal(t, tr.Stats().TotalArticlesRead, cached.TotalArticlesRead)

	require.NoError(t, tr.ClearAll())
	_, ok, _ = store.Get("reading_stats")
	assert.False(t, ok)
	_, ok, _ = store.Get("reading_sessions")
	assert.False(t, ok)
	assert.Equal(t, tracker.ReadingStats{}, tr.Stats())
}

func TestStaleStatsCacheIsIgnored(t *testing.T) {
	store := tracker.NewMemoryStore()
	require.NoError(t, store.Set("reading_stats", []byte(`{"totalArticlesRead":99}`)))

	tr := newTracker(store, tracker.NewFixedClock(day))
	assert.Zero(t, tr.Stats().TotalArticlesRead)
}

type failingStore struct {
	*tracker.MemoryStore
	failGet, failSet, failDelete bool
	// failSetKey fails Set for a single key only.
	failSetKey string
}

var errDisk = errors.New("disk full")

func (f *failingStore) Get(key string) ([]byte, bool, error) {
	if f.failGet {
		return nil, false, errDisk
	}
	return f.MemoryStore.Get(key)
}

func (f *failingStore) Set(key string, value []byte) error {
	if f.failSet || key == f.failSetKey {
		return errDisk
	}
	return f.MemoryStore.Set(key, value)
}

func (f *failingStore) Delete(keys ...string) error {
	if f.failDelete {
		return errDisk
	}
	return f.MemoryStore.Delete(keys...)
}

func TestStorageFailuresSurfaceOnWrites(t *testing.T) {
	store := &failingStore{MemoryStore: tracker.NewMemoryStore()}
	clock := tracker.NewFixedClock(day)
	tr := newTracker(store, clock)

	id, err := tr.StartSession("1")
	require.NoError(t, err)

	store.failSet = true
	_, err = tr.StartSession("2")
	assert.ErrorIs(t, err, tracker.ErrStorage)
	assert.ErrorIs(t, err, errDisk)

	err = tr.EndSession(id, true)
	assert.ErrorIs(t, err, tracker.ErrStorage)

	store.failDelete = true
	assert.ErrorIs(t, tr.ClearAll(), tracker.ErrStorage)

	store.failGet = true
	_, err = tr.StartSession("3")
	assert.ErrorIs(t, err, tracker.ErrStorage)
}

func TestEndSessionIgnoresStatsCacheFailure(t *testing.T) {
	store := &failingStore{MemoryStore: tracker.NewMemoryStore(), failSetKey: "reading_stats"}
	clock := tracker.NewFixedClock(day)
	tr := newTracker(store, clock)

	id, err := tr.StartSession("1")
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	require.NoError(t, tr.EndSession(id, true))
	assert.Equal(t, 1, tr.Stats().TotalArticlesRead)

	_, ok, _ := store.Get("reading_stats")
	assert.False(t, ok)
}

func TestReadsFailSafeOnStorageError(t *testing.T) {
	store := &failingStore{MemoryStore: tracker.NewMemoryStore(), failGet: true}
	tr := newTracker(store, tracker.NewFixedClock(day))

	assert.Equal(t, tracker.ReadingStats{}, tr.Stats())
	assert.Len(t, tr.Streak().History, tracker.HistoryDays)
	assert.Empty(t, tr.Sessions())
}

func TestMalformedRecordsAreSkipped(t *testing.T) {
	store := tracker.NewMemoryStore()
	require.NoError(t, store.Set("reading_sessions", []byte(`{"version":1,"sessions":[
		{"id":"good","articleId":"1","startTime":"2026-03-15T10:00:00+02:00","endTime":"2026-03-15T10:02:00+02:00","durationSeconds":120,"completed":true},
		{"id":"no-start","articleId":"2","completed":true},
		{"id":"bad-end","articleId":"3","startTime":"2026-03-15T10:00:00+02:00","endTime":"yesterday","completed":true},
		{"id":"","articleId":"4","startTime":"2026-03-15T10:00:00+02:00"},
		42
	]}`)))

	tr := newTracker(store, tracker.NewFixedClock(day))
	sessions := tr.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "good", sessions[0].ID)
	assert.Equal(t, 1, tr.Stats().TotalArticlesRead)
	assert.Equal(t, 2, tr.Stats().TotalReadingTimeMinutes)
}

func TestUnversionedLogIsMigrated(t *testing.T) {
	store := tracker.NewMemoryStore()
	require.NoError(t, store.Set("reading_sessions", []byte(`[
		{"id":"session_1773561600000_12","articleId":12,"startTime":"2026-03-15T08:00:00.000Z","endTime":"2026-03-15T08:03:30.000Z","duration":210,"completed":true},
		{"id":"session_1773561700000_13","articleId":13,"startTime":"2026-03-15T08:05:00.000Z","completed":false}
	]`)))

	clock := tracker.NewFixedClock(day)
	tr := newTracker(store, clock)

	sessions := tr.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, "12", sessions[0].ArticleID)
	assert.Equal(t, int64(210), *sessions[0].DurationSeconds)
	assert.True(t, sessions[1].Open())

	require.NoError(t, tr.EndSession("session_1773561700000_13", true))

	data, _, err := store.Get("reading_sessions")
	require.NoError(t, err)
	var env struct {
		Version int `json:"version"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, tracker.SchemaVersion, env.Version)
	assert.Equal(t, 2, tr.Stats().TotalArticlesRead)
}

func TestCorruptLogIsNotOverwritten(t *testing.T) {
	cases := map[string]string{
		"not json":        `{not json`,
		"missing version": `{"sessions":[{"id":"s1","articleId":"1","startTime":"2026-03-15T10:00:00+02:00","endTime":"2026-03-15T10:02:00+02:00","durationSeconds":120,"completed":true}]}`,
	}
	for name, stored := range cases {
		t.Run(name, func(t *testing.T) {
			store := tracker.NewMemoryStore()
			require.NoError(t, store.Set("reading_sessions", []byte(stored)))

			tr := newTracker(store, tracker.NewFixedClock(day))
			assert.Zero(t, tr.Stats().TotalArticlesRead)

			_, err := tr.StartSession("7")
			assert.ErrorIs(t, err, tracker.ErrStorage)
			assert.ErrorIs(t, tr.EndSession("s1", true), tracker.ErrStorage)

			data, ok, err := store.Get("reading_sessions")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, stored, string(data))

			require.NoError(t, tr.ClearAll())
			_, err = tr.StartSession("7")
			require.NoError(t, err)
			assert.Len(t, tr.Sessions(), 1)
		})
	}
}

func TestNewerSchemaIsNotOverwritten(t *testing.T) {
	store := tracker.NewMemoryStore()
	future := []byte(`{"version":2,"sessions":[]}`)
	require.NoError(t, store.Set("reading_sessions", future))

	tr := newTracker(store, tracker.NewFixedClock(day))
	assert.Equal(t, tracker.ReadingStats{}, tr.Stats())

	_, err := tr.StartSession("1")
	assert.ErrorIs(t, err, tracker.ErrUnsupportedSchema)

	data, _, _ := store.Get("reading_sessions")
	assert.Equal(t, string(future), string(data))
}

func TestTrends(t *testing.T) {
	clock := tracker.NewFixedClock(day)
	tr := newTracker(tracker.NewMemoryStore(), clock)
	read(t, tr, clock, "a", day.AddDate(0, 0, -1), 90*time.Second, true)
	read(t, tr, clock, "b", day.AddDate(0, 0, -1).Add(time.Minute), 60*time.Second, true)
	read(t, tr, clock, "c", day, 10*time.Minute, false)
	clock.Set(day)

	trends := tr.Trends(7)
	require.Len(t, trends, 7)
	assert.Equal(t, "2026-03-09", trends[0].Date)
	assert.Equal(t, "2026-03-15", trends[6].Date)
	assert.Equal(t, 2, trends[5].ArticlesRead)
	assert.Equal(t, 3, trends[5].ReadingTimeMinutes)
	assert.Zero(t, trends[6].ArticlesRead)

	assert.Empty(t, tr.Trends(0))
}
