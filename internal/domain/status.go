package domain

import "fmt"

// ScoreboardStatus is the lifecycle state of a contest's scoreboard.
type ScoreboardStatus string

const (
	// StatusInvisible is the creation state, before the scoreboard goes live.
	StatusInvisible ScoreboardStatus = "INVISIBLE"
	// StatusVisible means the contest runs with a public, live scoreboard.
	StatusVisible ScoreboardStatus = "VISIBLE"
	// StatusFrozen means judging continues but standings no longer update.
	StatusFrozen ScoreboardStatus = "FROZEN"
	// StatusWaitingToBeReleased means the contest ended and final results are
	// pending publication.
	StatusWaitingToBeReleased ScoreboardStatus = "WAITING_TO_BE_RELEASED"
	// StatusReleased is terminal: final results are out.
	StatusReleased ScoreboardStatus = "RELEASED"
	// StatusArchived is terminal: the scoreboard is gone.
	StatusArchived ScoreboardStatus = "ARCHIVED"
)

// IsFinished reports whether the contest is past its competitive phase.
func (s ScoreboardStatus) IsFinished() bool {
	switch s {
	case StatusWaitingToBeReleased, StatusReleased, StatusArchived:
		return true
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s ScoreboardStatus) IsTerminal() bool {
	return s == StatusReleased || s == StatusArchived
}

// ParseScoreboardStatus validates a stored status value.
func ParseScoreboardStatus(raw string) (ScoreboardStatus, error) {
	switch s := ScoreboardStatus(raw); s {
	case StatusInvisible, StatusVisible, StatusFrozen,
		StatusWaitingToBeReleased, StatusReleased, StatusArchived:
		return s, nil
	}
	return "", fmt.Errorf("unknown scoreboard status %q", raw)
}
