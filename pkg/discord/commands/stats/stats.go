// Package stats implements the public /stats command.
package stats

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/confessbot/pkg/discord/commands/core"
	"github.com/small-frappuccino/confessbot/pkg/storage"
)

// Handler owns the /stats command.
type Handler struct {
	responder *core.ResponseManager
	journal   *storage.Journal
}

// NewHandler creates the stats handler. journal may be nil; the latest-number
// field is then omitted.
func NewHandler(responder *core.ResponseManager, journal *storage.Journal) *Handler {
	return &Handler{responder: responder, journal: journal}
}

// Register wires /stats into the router. The command is open to every member,
// so it carries no permission gate.
func (h *Handler) Register(router *core.CommandRouter) {
	router.RegisterCommand(core.NewSimpleCommand(
		"stats",
		"Show confession statistics for this server",
		nil,
		h.handleStatsCommand,
		true,
		false,
	))
}

func (h *Handler) handleStatsCommand(ctx *core.Context) error {
	embed := &discordgo.MessageEmbed{
		Title: "Confession Statistics",
		Color: ctx.Config.DefaultColor(),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Confessions posted", Value: fmt.Sprintf("%d", ctx.Config.ConfessionCount()), Inline: true},
			{Name: "Replies posted", Value: fmt.Sprintf("%d", ctx.Config.ReplyCount()), Inline: true},
		},
	}

	if h.journal != nil {
		if latest, err := h.journal.LatestNumber(ctx.GuildID); err == nil && latest > 0 {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:   "Latest confession",
				Value:  fmt.Sprintf("#%d", latest),
				Inline: true,
			})
		}
	}

	return h.responder.ReplyEmbed(ctx, embed, false)
}
