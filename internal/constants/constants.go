package constants

import "time"

const (
	// PollInterval is how often the notifier re-fetches the scoreboard.
	PollInterval = 60 * time.Second

	// StartGraceWindow is how long after a contest starts that "appeared in
	// scoreboard" notices are still sent even when the previous snapshot was
	// empty.
	StartGraceWindow = 15 * time.Minute

	// PreStartWindow is how early before its start an upcoming contest is
	// picked up by the poll loop.
	PreStartWindow = 2 * time.Hour

	// ReleaseTimeout is how long after a contest ends we keep waiting for
	// final results before giving up and releasing silently.
	ReleaseTimeout = 5 * 24 * time.Hour
)

const (
	ScrapeTimeout   = 10 * time.Second
	DatabaseTimeout = 5 * time.Second
)

const (
	DBMaxOpenConns    = 10
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	MaxTeamsToRender = 30
	DefaultTopN      = 10
	MessageSizeLimit = 4096
)
