package discord

// Client posts session announcements to a Discord text channel.
type Client interface {
	SendChannelMessage(channelID, content string) error
}
