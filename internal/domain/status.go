package domain

import (
	"fmt"
	"stats-backend/internal/constants"
)

// Server-status and chat shapes exchanged with the rest of the network.
// Pure data apart from the chat reply-depth check.

type ServerStatus struct {
	GameVersion string         `json:"game_version"`
	ServerIP    *string        `json:"server_ip,omitempty"`
	Games       []Game         `json:"games"`
	Players     []OnlinePlayer `json:"players"`
}

type OnlinePlayer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Game struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	PlayerCount uint16 `json:"player_count"`
}

type ServerPerformance struct {
	AverageTickMs float32 `json:"average_tick_ms"`
	TPS           uint8   `json:"tps"`
	Dimensions    uint16  `json:"dimensions"`
	Entities      uint32  `json:"entities"`
	Chunks        uint32  `json:"chunks"`
	UsedMemory    uint64  `json:"used_memory"`
	TotalMemory   uint64  `json:"total_memory"`
}

type ChatAttachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ChatMessage owns at most one reply, which may itself own a reply, up to
// constants.MaxChatReplyDepth levels.
type ChatMessage struct {
	Sender      string           `json:"sender"`
	Content     string           `json:"content"`
	NameColor   *uint32          `json:"name_color,omitempty"`
	Attachments []ChatAttachment `json:"attachments"`
	ReplyingTo  *ChatMessage     `json:"replying_to,omitempty"`
}

// Depth counts the messages in the reply chain, including the receiver.
func (m *ChatMessage) Depth() int {
	depth := 0
	for cur := m; cur != nil; cur = cur.ReplyingTo {
		depth++
	}
	return depth
}

func (m *ChatMessage) Validate() error {
	if depth := m.Depth(); depth > constants.MaxChatReplyDepth {
		return fmt.Errorf("chat reply chain is %d messages deep, limit is %d", depth, constants.MaxChatReplyDepth)
	}
	return nil
}
