package constants

import "time"

const (
	DatabaseTimeout = 5 * time.Second
	RequestTimeout  = 30 * time.Second
	NotifyTimeout   = 10 * time.Second
)

const (
	ShutdownTimeout  = 5 * time.Second
	RequestQueueSize = 256
)

// Collection names in the statistics database.
const (
	PlayersCollection      = "players"
	PlayerStatsCollection  = "player-stats"
	GlobalStatsCollection  = "global-stats"
	CorruptStatsCollection = "corrupt-stats"
)

const (
	MaxChatReplyDepth = 8
)
