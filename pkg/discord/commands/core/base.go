package core

import (
	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/confessbot/pkg/files"
)

// ContextBuilder creates contexts for handler execution.
type ContextBuilder struct {
	session       *discordgo.Session
	configManager *files.ConfigManager
}

// NewContextBuilder creates a new context builder.
func NewContextBuilder(session *discordgo.Session, configManager *files.ConfigManager) *ContextBuilder {
	return &ContextBuilder{
		session:       session,
		configManager: configManager,
	}
}

// BuildContext creates a complete context for one interaction, including a
// fresh acknowledgement tracker.
func (cb *ContextBuilder) BuildContext(i *discordgo.InteractionCreate) *Context {
	userID := extractUserID(i)
	guildID := i.GuildID

	isOwner := false
	if guildID != "" {
		isOwner = cb.isGuildOwner(guildID, userID)
	}

	return &Context{
		Session:     cb.session,
		Interaction: i,
		Config:      cb.configManager,
		Ack:         NewAckTracker(),
		GuildID:     guildID,
		UserID:      userID,
		IsOwner:     isOwner,
	}
}

// isGuildOwner checks if the user is the server owner.
func (cb *ContextBuilder) isGuildOwner(guildID, userID string) bool {
	// Prefer state cache to avoid REST calls when possible
	if cb.session != nil && cb.session.State != nil {
		if g, _ := cb.session.State.Guild(guildID); g != nil {
			return g.OwnerID == userID
		}
	}
	guild, err := cb.session.Guild(guildID)
	if err != nil || guild == nil {
		return false
	}
	return guild.OwnerID == userID
}

// extractUserID extracts the user ID from the interaction.
func extractUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	} else if i.User != nil {
		return i.User.ID
	}
	return ""
}

// GetSubCommandName extracts the subcommand name from the interaction.
func GetSubCommandName(i *discordgo.InteractionCreate) string {
	options := i.ApplicationCommandData().Options
	if len(options) > 0 && options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return options[0].Name
	}
	return ""
}

// GetSubCommandOptions extracts the subcommand options from the interaction.
func GetSubCommandOptions(i *discordgo.InteractionCreate) []*discordgo.ApplicationCommandInteractionDataOption {
	options := i.ApplicationCommandData().Options
	if len(options) > 0 && options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return options[0].Options
	}
	return options
}

// GetStringOption extracts a string option value from command options.
func GetStringOption(options []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, option := range options {
		if option.Name == name && option.Type == discordgo.ApplicationCommandOptionString {
			return option.StringValue()
		}
	}
	return ""
}

// GetChannelOptionID extracts a channel option's ID from command options.
func GetChannelOptionID(options []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, option := range options {
		if option.Name == name && option.Type == discordgo.ApplicationCommandOptionChannel {
			if v, ok := option.Value.(string); ok {
				return v
			}
		}
	}
	return ""
}

// GetModalInput extracts the value of a text input from a modal submission.
func GetModalInput(data discordgo.ModalSubmitInteractionData, customID string) string {
	for _, row := range data.Components {
		actionRow, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, comp := range actionRow.Components {
			if input, ok := comp.(*discordgo.TextInput); ok && input.CustomID == customID {
				return input.Value
			}
		}
	}
	return ""
}

// GetCommandPath returns the full command path (command + subcommand if present).
func GetCommandPath(i *discordgo.InteractionCreate) string {
	path := i.ApplicationCommandData().Name
	if subCmd := GetSubCommandName(i); subCmd != "" {
		path += " " + subCmd
	}
	return path
}
