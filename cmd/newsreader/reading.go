package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/NewsReader/internal/database"
	"github.com/TobiSchelling/NewsReader/internal/tracker"
)

// withTracker opens the database and tracker for the duration of fn.
func withTracker(fn func(db *database.DB, tr *tracker.Tracker) error) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	tr, err := openTracker(db)
	if err != nil {
		return err
	}
	return fn(db, tr)
}

// --- read command ---

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Record reading sessions from the command line",
}

var readStartCmd = &cobra.Command{
	Use:   "start [article-id]",
	Short: "Start a reading session and print its id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTracker(func(db *database.DB, tr *tracker.Tracker) error {
			id, err := tr.StartSession(args[0])
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		})
	},
}

var readAbandoned bool

var readEndCmd = &cobra.Command{
	Use:   "end [session-id]",
	Short: "End a reading session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTracker(func(db *database.DB, tr *tracker.Tracker) error {
			if err := tr.EndSession(args[0], !readAbandoned); err != nil {
				return err
			}
			s := tr.Stats()
			fmt.Printf("Session ended. %s %d day streak\n", tracker.StreakBadge(s.CurrentStreak), s.CurrentStreak)
			return nil
		})
	},
}

func init() {
	readEndCmd.Flags().BoolVar(&readAbandoned, "abandoned", false, "Record the session as not completed")
	readCmd.AddCommand(readStartCmd)
	readCmd.AddCommand(readEndCmd)
}

// --- stats command ---

var (
	statsJSON bool
	statsDays int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show reading statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTracker(func(db *database.DB, tr *tracker.Tracker) error {
			stats := tr.Stats()
			if statsJSON {
				return writeJSON(os.Stdout, stats)
			}
			renderStats(os.Stdout, stats, tr.Trends(statsDays), time.Now())
			return nil
		})
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print statistics as JSON")
	statsCmd.Flags().IntVar(&statsDays, "days", 7, "Number of days in the trend table")
}

func renderStats(w io.Writer, s tracker.ReadingStats, trends []tracker.DayTrend, now time.Time) {
	rows := []struct {
		label, value string
	}{
		{"Articles read", fmt.Sprint(s.TotalArticlesRead)},
		{"Reading time", tracker.FormatMinutes(s.TotalReadingTimeMinutes)},
		{"Average per article", tracker.FormatMinutes(s.AverageReadingTimeMinutes)},
		{"Today", fmt.Sprint(s.TodayReadCount)},
		{"Last 7 days", fmt.Sprint(s.WeeklyReadCount)},
		{"Last 30 days", fmt.Sprint(s.MonthlyReadCount)},
		{"Completion rate", fmt.Sprintf("%.1f%%", s.CompletionRate)},
		{"Current streak", fmt.Sprintf("%d days", s.CurrentStreak)},
		{"Longest streak", fmt.Sprintf("%d days", s.LongestStreak)},
		{"Last read", lastRead(s.LastReadDate, now)},
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Reading statistics"))
	b.WriteString("\n\n")
	for _, r := range rows {
		b.WriteString(labelStyle.Render(r.label))
		b.WriteString(valueStyle.Render(r.value))
		b.WriteString("\n")
	}
	fmt.Fprintln(w, panelStyle.Render(strings.TrimRight(b.String(), "\n")))

	if len(trends) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Daily activity"))
	for _, t := range trends {
		fmt.Fprintf(w, "  %s  %s %s\n",
			mutedStyle.Render(database.FormatDateDisplay(t.Date)),
			valueStyle.Render(fmt.Sprintf("%3d", t.ArticlesRead)),
			mutedStyle.Render(tracker.FormatMinutes(t.ReadingTimeMinutes)))
	}
}

func lastRead(t *time.Time, now time.Time) string {
	if t == nil {
		return "never"
	}
	return humanize.RelTime(*t, now, "ago", "from now")
}

// --- streak command ---

var streakCmd = &cobra.Command{
	Use:   "streak",
	Short: "Show the current reading streak and 30-day history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTracker(func(db *database.DB, tr *tracker.Tracker) error {
			renderStreak(os.Stdout, tr.Streak(), time.Now())
			return nil
		})
	},
}

func renderStreak(w io.Writer, s tracker.StreakSnapshot, now time.Time) {
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		titleStyle.Render(fmt.Sprintf("%s %d day streak", tracker.StreakBadge(s.CurrentStreak), s.CurrentStreak)),
		"  ",
		mutedStyle.Render(fmt.Sprintf("longest %d", s.LongestStreak)),
	)
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, tracker.StreakMessage(s.CurrentStreak))
	fmt.Fprintln(w)

	var cells strings.Builder
	for _, b := range s.History {
		level := b.ReadCount
		if level >= len(heatCells) {
			level = len(heatCells) - 1
		}
		cells.WriteString(heatCells[level])
	}
	fmt.Fprintln(w, cells.String())
	if n := len(s.History); n > 0 {
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%s … %s", s.History[0].Date, s.History[n-1].Date)))
	}
	fmt.Fprintln(w, mutedStyle.Render("Last read "+lastRead(s.LastReadDate, now)))
}

// --- sessions command ---

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recent reading sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTracker(func(db *database.DB, tr *tracker.Tracker) error {
			sessions := tr.Sessions()
			if len(sessions) == 0 {
				fmt.Println("No reading sessions yet. Open an article with 'newsreader serve'.")
				return nil
			}
			titles := make(map[string]string)
			for _, s := range sessions {
				titles[s.ArticleID] = articleTitle(db, s.ArticleID)
			}
			renderSessions(os.Stdout, sessions, titles, sessionsLimit, tr.Location())
			return nil
		})
	},
}

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "Number of sessions to show (0 for all)")
}

func articleTitle(db *database.DB, articleID string) string {
	id, err := strconv.ParseInt(articleID, 10, 64)
	if err != nil {
		return ""
	}
	a, err := db.GetArticleByID(id)
	if err != nil || a == nil {
		return ""
	}
	return a.Title
}

// renderSessions prints the newest sessions first.
func renderSessions(w io.Writer, sessions []tracker.ReadingSession, titles map[string]string, limit int, loc *time.Location) {
	start := 0
	if limit > 0 && len(sessions) > limit {
		start = len(sessions) - limit
	}
	for i := len(sessions) - 1; i >= start; i-- {
		s := sessions[i]
		state := openStyle.Render("open     ")
		switch {
		case s.Completed:
			state = doneStyle.Render("completed")
		case !s.Open():
			state = mutedStyle.Render("abandoned")
		}

		dur := ""
		if s.DurationSeconds != nil {
			dur = (time.Duration(*s.DurationSeconds) * time.Second).String()
		}

		title := titles[s.ArticleID]
		if title == "" {
			title = "article " + s.ArticleID
		}
		title = truncate(title, 60)

		fmt.Fprintf(w, "%s  %s  %-8s  %s\n",
			mutedStyle.Render(s.StartTime.In(loc).Format("2006-01-02 15:04")), state, dur, title)
	}
}

// truncate shortens s to at most n runes, ending in "..." when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// --- reset command ---

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all reading history",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetYes {
			fmt.Print("Delete all reading sessions and streaks? [y/N]: ")
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			answer = strings.TrimSpace(strings.ToLower(answer))
			if answer != "y" && answer != "yes" {
				return fmt.Errorf("aborted")
			}
		}
		return withTracker(func(db *database.DB, tr *tracker.Tracker) error {
			if err := tr.ClearAll(); err != nil {
				return err
			}
			fmt.Println("Reading history cleared.")
			return nil
		})
	},
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Skip the confirmation prompt")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
