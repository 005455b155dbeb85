package discord

// InboundMessage is one user message delivered by the platform gateway over
// the relay webhook.
type InboundMessage struct {
	AuthorID  string `json:"author_id"`
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	// IsSlash marks slash-command invocations, which the platform already
	// acknowledges on its side.
	IsSlash bool `json:"is_slash"`
}

// --- Outbound REST payloads ---

type createMessageRequest struct {
	Content string `json:"content"`
}
