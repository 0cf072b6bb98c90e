package game

import (
	"sort"
	"strings"
	"time"
)

// Player is one roster entry. Identity is the case-insensitive name;
// Score persists across rounds while Answer, Vote and VotesReceived are
// reset by the phase that collects them.
type Player struct {
	Name          string
	JoinedAt      time.Time
	Connected     bool
	Score         int
	Answer        string
	Vote          string
	VotesReceived int
}

// sortPlayers keeps the roster ordered by score descending, then name
// ascending case-insensitively.
func sortPlayers(players []*Player) {
	sort.SliceStable(players, func(i, j int) bool {
		if players[i].Score != players[j].Score {
			return players[i].Score > players[j].Score
		}
		return strings.ToLower(players[i].Name) < strings.ToLower(players[j].Name)
	})
}
