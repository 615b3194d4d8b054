package tracker

import "fmt"

// StreakBadge returns the emoji shown next to a streak length.
func StreakBadge(streak int) string {
	switch {
	case streak >= 30:
		return "🔥🔥🔥"
	case streak >= 20:
		return "🔥🔥"
	case streak >= 10:
		return "🔥"
	case streak >= 5:
		return "⚡"
	case streak >= 1:
		return "📚"
	default:
		return "📖"
	}
}

// StreakMessage returns the encouragement line for a streak length.
func StreakMessage(streak int) string {
	switch {
	case streak >= 30:
		return "Incredible! You're on fire!"
	case streak >= 20:
		return "Amazing streak! Keep it up!"
	case streak >= 10:
		return "Great job! You're building a habit!"
	case streak >= 5:
		return "Nice start! Keep reading daily!"
	case streak >= 1:
		return "Good start! Try to read tomorrow too!"
	default:
		return "Start your reading journey today!"
	}
}

// FormatMinutes renders minutes as "45m" or "2h 5m".
func FormatMinutes(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
