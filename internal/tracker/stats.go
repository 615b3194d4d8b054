package tracker

import (
	"time"

	"github.com/montanaflynn/stats"
)

// Trailing windows for weekly and monthly counts.
const (
	weekWindow  = 7 * 24 * time.Hour
	monthWindow = 30 * 24 * time.Hour
)

// ReadingStats holds totals, averages and windowed counts derived from the
// session log.
type ReadingStats struct {
	TotalArticlesRead         int        `json:"totalArticlesRead"`
	TotalReadingTimeMinutes   int        `json:"totalReadingTimeMinutes"`
	AverageReadingTimeMinutes int        `json:"averageReadingTimeMinutes"`
	TodayReadCount            int        `json:"todayReadCount"`
	WeeklyReadCount           int        `json:"weeklyReadCount"`
	MonthlyReadCount          int        `json:"monthlyReadCount"`
	CurrentStreak             int        `json:"currentStreak"`
	LongestStreak             int        `json:"longestStreak"`
	LastReadDate              *time.Time `json:"lastReadDate,omitempty"`
	// CompletionRate is the percentage of closed sessions marked completed.
	CompletionRate float64 `json:"completionRate"`
}

// DayTrend is the reading activity of one calendar day.
type DayTrend struct {
	Date               string `json:"date"`
	ArticlesRead       int    `json:"articlesRead"`
	ReadingTimeMinutes int    `json:"readingTimeMinutes"`
}

// ComputeStats derives ReadingStats from the full session log and now.
func ComputeStats(sessions []ReadingSession, now time.Time, loc *time.Location) ReadingStats {
	var (
		r         ReadingStats
		durations stats.Float64Data
		closed    int
	)

	today := DayKey(now, loc)
	weekAgo := now.Add(-weekWindow)
	monthAgo := now.Add(-monthWindow)

	for _, s := range sessions {
		if !s.Open() {
			closed++
		}
		if !s.counts() {
			continue
		}
		r.TotalArticlesRead++
		durations = append(durations, float64(s.duration()))

		end := *s.EndTime
		if DayKey(end, loc) == today {
			r.TodayReadCount++
		}
		if !end.Before(weekAgo) {
			r.WeeklyReadCount++
		}
		if !end.Before(monthAgo) {
			r.MonthlyReadCount++
		}
	}

	if r.TotalArticlesRead > 0 {
		totalSeconds, _ := stats.Sum(durations)
		r.TotalReadingTimeMinutes = roundInt(totalSeconds / 60)
		r.AverageReadingTimeMinutes = roundInt(float64(r.TotalReadingTimeMinutes) / float64(r.TotalArticlesRead))
	}
	if closed > 0 {
		r.CompletionRate, _ = stats.Round(float64(r.TotalArticlesRead)*100/float64(closed), 1)
	}

	streak := CalculateStreak(sessions, now, loc)
	r.CurrentStreak = streak.CurrentStreak
	r.LongestStreak = streak.LongestStreak
	r.LastReadDate = streak.LastReadDate
	return r
}

// ComputeTrends returns per-day counts and reading minutes for the trailing
// days ending today, oldest first.
func ComputeTrends(sessions []ReadingSession, now time.Time, loc *time.Location, days int) []DayTrend {
	if days <= 0 {
		return nil
	}

	counts := make(map[string]int)
	seconds := make(map[string]int64)
	for _, s := range sessions {
		if !s.counts() {
			continue
		}
		d := DayKey(*s.EndTime, loc)
		counts[d]++
		seconds[d] += s.duration()
	}

	today := DayKey(now, loc)
	trends := make([]DayTrend, 0, days)
	for i := days - 1; i >= 0; i-- {
		d := shiftDay(today, -i)
		trends = append(trends, DayTrend{
			Date:               d,
			ArticlesRead:       counts[d],
			ReadingTimeMinutes: roundInt(float64(seconds[d]) / 60),
		})
	}
	return trends
}

// roundInt rounds half away from zero.
func roundInt(x float64) int {
	r, err := stats.Round(x, 0)
	if err != nil {
		return 0
	}
	return int(r)
}
