package tracker

import (
	"sort"
	"time"
)

// HistoryDays is the length of the dense history in a StreakSnapshot.
const HistoryDays = 30

const dayLayout = "2006-01-02"

// DailyBucket aggregates completed sessions by calendar day.
type DailyBucket struct {
	Date      string `json:"date"`
	ReadCount int    `json:"readCount"`
}

// StreakSnapshot holds derived streak data.
type StreakSnapshot struct {
	CurrentStreak int           `json:"currentStreak"`
	LongestStreak int           `json:"longestStreak"`
	LastReadDate  *time.Time    `json:"lastReadDate,omitempty"`
	History       []DailyBucket `json:"history"`
}

// DayKey returns the YYYY-MM-DD key of t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dayLayout)
}

// shiftDay moves a day key by n calendar days. Keys are civil dates, so the
// arithmetic runs in UTC where every day is 24h long.
func shiftDay(key string, n int) string {
	d, err := time.Parse(dayLayout, key)
	if err != nil {
		return key
	}
	return d.AddDate(0, 0, n).Format(dayLayout)
}

// CalculateStreak derives current and longest streaks plus the dense
// 30-day history from the session log. Only completed, closed sessions count.
func CalculateStreak(sessions []ReadingSession, now time.Time, loc *time.Location) StreakSnapshot {
	counts := dailyCounts(sessions, loc)
	snap := StreakSnapshot{
		History: denseHistory(counts, DayKey(now, loc), HistoryDays),
	}
	if len(counts) == 0 {
		return snap
	}

	snap.CurrentStreak = currentRun(counts, DayKey(now, loc))
	snap.LongestStreak = longestRun(counts)
	snap.LastReadDate = lastReadDate(sessions, loc)
	return snap
}

func dailyCounts(sessions []ReadingSession, loc *time.Location) map[string]int {
	counts := make(map[string]int)
	for _, s := range sessions {
		if !s.counts() {
			continue
		}
		counts[DayKey(*s.EndTime, loc)]++
	}
	return counts
}

// currentRun counts consecutive active days ending today, or ending
// yesterday when nothing has been read yet today.
func currentRun(counts map[string]int, today string) int {
	day := today
	if counts[day] == 0 {
		day = shiftDay(today, -1)
		if counts[day] == 0 {
			return 0
		}
	}

	n := 0
	for counts[day] > 0 {
		n++
		day = shiftDay(day, -1)
	}
	return n
}

func longestRun(counts map[string]int) int {
	days := make([]string, 0, len(counts))
	for d, c := range counts {
		if c > 0 {
			days = append(days, d)
		}
	}
	sort.Strings(days)

	longest, run := 0, 0
	for i, d := range days {
		if i > 0 && shiftDay(days[i-1], 1) == d {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// denseHistory returns n buckets ending at today, oldest first.
func denseHistory(counts map[string]int, today string, n int) []DailyBucket {
	history := make([]DailyBucket, 0, n)
	for i := n - 1; i >= 0; i-- {
		d := shiftDay(today, -i)
		history = append(history, DailyBucket{Date: d, ReadCount: counts[d]})
	}
	return history
}

func lastReadDate(sessions []ReadingSession, loc *time.Location) *time.Time {
	var last *time.Time
	for _, s := range sessions {
		if !s.counts() {
			continue
		}
		if last == nil || s.EndTime.After(*last) {
			t := *s.EndTime
			last = &t
		}
	}
	if last == nil {
		return nil
	}
	t := last.In(loc)
	return &t
}
