package files

import (
	"github.com/bwmarrin/discordgo"
)

// ResolveTextChannel looks up a channel (state cache first, REST fallback) and
// verifies it is a guild text channel. Lookup failures map to
// ErrChannelUnavailable and non-text kinds to ErrInvalidChannelKind.
func ResolveTextChannel(s *discordgo.Session, channelID string) (*discordgo.Channel, error) {
	if channelID == "" {
		return nil, ErrNotConfigured
	}

	var ch *discordgo.Channel
	if s.State != nil {
		ch, _ = s.State.Channel(channelID)
	}
	if ch == nil {
		var err error
		ch, err = s.Channel(channelID)
		if err != nil {
			return nil, &DiscordError{Operation: "fetch_channel", Message: "channel lookup failed", Cause: ErrChannelUnavailable}
		}
	}

	if ch.Type != discordgo.ChannelTypeGuildText {
		return nil, ErrInvalidChannelKind
	}
	return ch, nil
}

// HasSendPermission reports whether the bot can send messages in the channel.
// A permission resolution failure counts as no permission.
func HasSendPermission(s *discordgo.Session, channelID string) bool {
	if s.State == nil || s.State.User == nil {
		return false
	}
	perms, err := s.UserChannelPermissions(s.State.User.ID, channelID)
	if err != nil {
		return false
	}
	return perms&discordgo.PermissionSendMessages != 0
}
