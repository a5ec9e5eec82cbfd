package projection

import (
	"sort"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
)

// Tier is the podium treatment of a leaderboard row.
type Tier string

const (
	TierGold   Tier = "gold"
	TierSilver Tier = "silver"
	TierBronze Tier = "bronze"
	TierNone   Tier = ""
)

// TierFor returns the podium tier of rank.
func TierFor(rank int) Tier {
	switch rank {
	case 1:
		return TierGold
	case 2:
		return TierSilver
	case 3:
		return TierBronze
	}
	return TierNone
}

// LeaderboardRow is one rendered leaderboard line.
type LeaderboardRow struct {
	Rank        int      `json:"rank"`
	Username    string   `json:"username"`
	Points      int      `json:"points"`
	Tier        Tier     `json:"tier,omitempty"`
	CurrentUser bool     `json:"current_user"`
	Badges      []string `json:"badges"`
}

// LeaderboardRows sorts entries by rank and marks the row of currentUser.
func LeaderboardRows(entries []feed.LeaderboardEntry, currentUser string) []LeaderboardRow {
	sorted := append([]feed.LeaderboardEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	rows := make([]LeaderboardRow, 0, len(sorted))
	for _, e := range sorted {
		rows = append(rows, LeaderboardRow{
			Rank:        e.Rank,
			Username:    e.Username,
			Points:      e.Points,
			Tier:        TierFor(e.Rank),
			CurrentUser: currentUser != "" && e.Username == currentUser,
			Badges:      BadgesFor(e.Points),
		})
	}
	return rows
}

// badgeMilestones are the point thresholds at which badges are earned.
var badgeMilestones = []struct {
	points int
	name   string
}{
	{10, "First Responder"},
	{100, "Safe Driver"},
	{500, "Road Watcher"},
	{1000, "Guardian"},
	{5000, "Traffic Legend"},
}

// BadgesFor lists the badges a point total has earned, lowest first.
func BadgesFor(points int) []string {
	badges := []string{}
	for _, m := range badgeMilestones {
		if points >= m.points {
			badges = append(badges, m.name)
		}
	}
	return badges
}
