// Package scoreboard holds the pure standings logic: filtering teams by
// subscription queries, rendering rank listings, diffing consecutive
// snapshots and the contest lifecycle transition function. Nothing here
// touches storage or the chat transport.
package scoreboard

import (
	"strings"

	"scoreboard-bot/internal/domain"
)

// Filter returns the teams whose name contains any of the queries,
// case-insensitively, preserving snapshot order. An empty query set or a nil
// snapshot matches nothing.
func Filter(snapshot *domain.Snapshot, queries []string) []domain.TeamStanding {
	if snapshot == nil || len(queries) == 0 {
		return nil
	}

	lowered := make([]string, 0, len(queries))
	for _, q := range queries {
		if q = strings.ToLower(strings.TrimSpace(q)); q != "" {
			lowered = append(lowered, q)
		}
	}

	var matched []domain.TeamStanding
	for _, team := range snapshot.Teams {
		name := strings.ToLower(team.Name)
		for _, q := range lowered {
			if strings.Contains(name, q) {
				matched = append(matched, team)
				break
			}
		}
	}
	return matched
}
