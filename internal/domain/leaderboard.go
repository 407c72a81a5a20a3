package domain

import (
	"fmt"
	"strings"
)

// Period selects a leaderboard window.
type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAllTime Period = "all-time"
)

// ParsePeriod maps user input to a Period. Anything unrecognised is treated as
// all-time.
func ParsePeriod(raw string) Period {
	switch Period(strings.ToLower(strings.TrimSpace(raw))) {
	case PeriodWeekly:
		return PeriodWeekly
	case PeriodMonthly:
		return PeriodMonthly
	default:
		return PeriodAllTime
	}
}

// YouLabel is the display name of the tracker's own row.
const YouLabel = "You"

// LeaderboardRow is one ranked entry.
type LeaderboardRow struct {
	Rank      int
	User      string
	Score     int
	Highlight bool
}

type mockEntry struct {
	user  string
	score int
	you   bool
}

// Leaderboard returns the static mock board for period with the tracker's
// score inserted. Rows keep their fixed order; the board is not re-sorted.
func Leaderboard(period Period, score int) []LeaderboardRow {
	var entries []mockEntry
	switch period {
	case PeriodWeekly:
		entries = []mockEntry{
			{user: "Alice", score: 98},
			{user: "Bob", score: 92},
			{you: true, score: score},
			{user: "Charlie", score: 88},
			{user: "Dana", score: 85},
		}
	case PeriodMonthly:
		entries = []mockEntry{
			{user: "Alice", score: 390},
			{you: true, score: score * 4},
			{user: "Bob", score: 370},
			{user: "Charlie", score: 355},
		}
	default:
		entries = []mockEntry{
			{user: "Alice", score: 1200},
			{user: "Bob", score: 1150},
			{you: true, score: score * 12},
			{user: "Charlie", score: 1100},
		}
	}

	rows := make([]LeaderboardRow, 0, len(entries))
	for i, e := range entries {
		user := e.user
		if e.you {
			user = YouLabel
		}
		rows = append(rows, LeaderboardRow{Rank: i + 1, User: user, Score: e.score, Highlight: e.you})
	}
	return rows
}

// String implements fmt.Stringer.
func (r LeaderboardRow) String() string {
	marker := ""
	if r.Highlight {
		marker = " *"
	}
	return fmt.Sprintf("%d. %s %d%s", r.Rank, r.User, r.Score, marker)
}
