// Package setup implements the guided /setup flow: a select menu chooses
// which channel to bind, then the bot reads the admin's next chat message to
// resolve the channel.
package setup

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/confessbot/pkg/discord/commands/core"
	"github.com/small-frappuccino/confessbot/pkg/files"
	"github.com/small-frappuccino/confessbot/pkg/log"
)

// SelectSetupChannel is the custom ID of the setup select menu.
const SelectSetupChannel = "setup_select"

// Select menu option values.
const (
	optionSetConfession = "set_confession_channel"
	optionSetLogs       = "set_logs_channel"
	optionShowConfig    = "show_config"
)

var awaitTimeout = 30 * time.Second

var channelMentionRe = regexp.MustCompile(`^<#(\d+)>$`)
var snowflakeRe = regexp.MustCompile(`^\d{15,21}$`)

// Handler owns the guided setup flow.
type Handler struct {
	responder   *core.ResponseManager
	permChecker *core.PermissionChecker
}

// NewHandler creates the setup handler.
func NewHandler(responder *core.ResponseManager, permChecker *core.PermissionChecker) *Handler {
	return &Handler{responder: responder, permChecker: permChecker}
}

// Register wires /setup and its select menu into the router.
func (h *Handler) Register(router *core.CommandRouter) {
	router.RegisterCommand(core.NewSimpleCommand(
		"setup",
		"Guided setup for the confession bot",
		nil,
		h.handleSetupCommand,
		true,
		false,
	))
	router.RegisterSelectMenu(SelectSetupChannel, h.handleSelect)
}

// handleSetupCommand gates on the relaxed owner/admin-list check and shows
// the setting picker.
func (h *Handler) handleSetupCommand(ctx *core.Context) error {
	if !h.permChecker.CheckAndReply(ctx, h.responder, true) {
		return nil
	}

	return h.responder.ReplyComponents(ctx, "What would you like to configure?", []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.StringSelectMenu,
					CustomID:    SelectSetupChannel,
					Placeholder: "Choose a setting",
					Options: []discordgo.SelectMenuOption{
						{
							Label:       "Confession channel",
							Value:       optionSetConfession,
							Description: "Where anonymous confessions are posted",
						},
						{
							Label:       "Logs channel",
							Value:       optionSetLogs,
							Description: "Where confession logs are written",
						},
						{
							Label:       "Show configuration",
							Value:       optionShowConfig,
							Description: "Display the current settings",
						},
					},
				},
			},
		},
	}, true)
}

func (h *Handler) handleSelect(ctx *core.Context, _ string) error {
	if !h.permChecker.CheckAndReply(ctx, h.responder, true) {
		return nil
	}

	data := ctx.Interaction.MessageComponentData()
	if len(data.Values) == 0 {
		return core.NewCommandError("No option selected", true)
	}

	if err := h.responder.DeferUpdate(ctx); err != nil {
		return err
	}

	switch data.Values[0] {
	case optionSetConfession:
		return h.runChannelBinding(ctx, "confession", ctx.Config.SetConfessionChannel)
	case optionSetLogs:
		return h.runChannelBinding(ctx, "logs", ctx.Config.SetLogsChannel)
	case optionShowConfig:
		return h.showConfig(ctx)
	default:
		return core.NewCommandError("Unknown setup option", true)
	}
}

// runChannelBinding turns the select message into a prompt, waits for the
// actor's next message, and binds the resolved channel. Every wait is scoped
// to this one invocation; a timeout leaves the configuration untouched.
func (h *Handler) runChannelBinding(ctx *core.Context, label string, apply func(string) error) error {
	if err := h.responder.EditReply(ctx,
		fmt.Sprintf("Mention the channel to use for **%s**, or paste its ID. You have 30 seconds.", label)); err != nil {
		return err
	}

	msg, err := awaitMessage(ctx.Session, ctx.Interaction.ChannelID, ctx.UserID, awaitTimeout)
	if err != nil {
		if errors.Is(err, files.ErrAwaitTimeout) {
			return h.responder.EditReply(ctx, "⚠️ Setup timed out. Nothing was changed. Run /setup to try again.")
		}
		return err
	}

	channelID, ok := parseChannelRef(msg.Content)
	if !ok {
		return h.responder.EditReply(ctx, "❌ That doesn't look like a channel mention or ID. Nothing was changed.")
	}

	if _, rerr := files.ResolveTextChannel(ctx.Session, channelID); rerr != nil {
		log.DiscordLogger().Warn("Rejected setup channel",
			"setting", label,
			"channel", channelID,
			"error", rerr)
		return h.responder.EditReply(ctx, "❌ That channel is not a usable text channel. Nothing was changed.")
	}

	if err := apply(channelID); err != nil {
		return fmt.Errorf("persist %s channel: %w", label, err)
	}

	if derr := ctx.Session.ChannelMessageDelete(msg.ChannelID, msg.ID); derr != nil {
		log.DiscordLogger().Debug("Failed to delete setup reply", "error", derr)
	}

	return h.responder.EditReply(ctx, fmt.Sprintf("✅ The %s channel is now <#%s>.", label, channelID))
}

func (h *Handler) showConfig(ctx *core.Context) error {
	return h.responder.EditReplyEmbed(ctx, core.ConfigOverviewEmbed(ctx.Config))
}

// parseChannelRef accepts a <#id> mention or a bare snowflake.
func parseChannelRef(content string) (string, bool) {
	if m := channelMentionRe.FindStringSubmatch(content); m != nil {
		return m[1], true
	}
	if snowflakeRe.MatchString(content) {
		return content, true
	}
	return "", false
}
