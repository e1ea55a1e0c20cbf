package discord

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/foxseedlab/tablesession/internal/discord"
)

// maxMessageLength is Discord's limit for a single channel message.
const maxMessageLength = 2000

// Client posts announcements over the REST API only; it never opens a gateway
// connection.
type Client struct {
	session *discordgo.Session
}

func NewClient(token string) (discordpkg.Client, error) {
	if strings.TrimSpace(token) == "" {
		return noopClient{}, nil
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &Client{session: s}, nil
}

func (c *Client) SendChannelMessage(channelID, content string) error {
	if channelID == "" {
		return fmt.Errorf("discord channel id is required")
	}
	_, err := c.session.ChannelMessageSend(channelID, truncateMessage(content))
	return err
}

func truncateMessage(content string) string {
	r := []rune(content)
	if len(r) <= maxMessageLength {
		return content
	}
	return string(r[:maxMessageLength-1]) + "…"
}

type noopClient struct{}

func (noopClient) SendChannelMessage(channelID, content string) error {
	slog.Debug("discord disabled; announcement dropped", "channel_id", channelID)
	return nil
}
