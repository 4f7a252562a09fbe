package core

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/confessbot/pkg/files"
)

// ChannelMention renders a channel binding for embed fields.
func ChannelMention(id string) string {
	if id == "" {
		return "not configured"
	}
	return "<#" + id + ">"
}

// ConfigOverviewEmbed renders the channel bindings and counters shared by the
// configuration views. Callers append their own extra fields.
func ConfigOverviewEmbed(cfg *files.ConfigManager) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Confession Bot Configuration",
		Color: cfg.DefaultColor(),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Confession channel", Value: ChannelMention(cfg.ConfessionChannelID()), Inline: true},
			{Name: "Logs channel", Value: ChannelMention(cfg.LogsChannelID()), Inline: true},
			{Name: "Confessions posted", Value: fmt.Sprintf("%d", cfg.ConfessionCount()), Inline: true},
			{Name: "Replies posted", Value: fmt.Sprintf("%d", cfg.ReplyCount()), Inline: true},
		},
	}
}
