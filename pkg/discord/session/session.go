package session

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/confessbot/pkg/errutil"
	"github.com/small-frappuccino/confessbot/pkg/log"
)

// NewDiscordSession creates, configures and opens a Discord session.
// The message-content and guild-message intents are required by the guided
// setup flow, which reads the admin's next chat message.
func NewDiscordSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("discord bot token is empty")
	}

	var s *discordgo.Session
	if err := errutil.HandleDiscordError("create_session", func() error {
		var sessionErr error
		s, sessionErr = discordgo.New("Bot " + token)
		return sessionErr
	}); err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	log.DiscordLogger().Info("Connecting to Discord...")
	if err := errutil.HandleDiscordError("connect", func() error {
		return s.Open()
	}); err != nil {
		return nil, fmt.Errorf("failed to connect to Discord: %w", err)
	}

	log.DiscordLogger().Info("Connected to Discord")
	return s, nil
}
