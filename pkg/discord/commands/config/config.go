// Package config implements the /config command group: direct channel
// binding, a settings overview, and command redeployment.
package config

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/confessbot/pkg/discord/commands/core"
	"github.com/small-frappuccino/confessbot/pkg/files"
	"github.com/small-frappuccino/confessbot/pkg/log"
	"github.com/small-frappuccino/confessbot/pkg/storage"
)

// Handler owns the /config command group.
type Handler struct {
	responder *core.ResponseManager
	journal   *storage.Journal
	resync    func() error
}

// NewHandler creates the config handler. resync re-runs the application
// command sync for /config deploy; journal may be nil.
func NewHandler(responder *core.ResponseManager, journal *storage.Journal, resync func() error) *Handler {
	return &Handler{responder: responder, journal: journal, resync: resync}
}

// Register wires the /config group into the router.
func (h *Handler) Register(router *core.CommandRouter) {
	group := core.NewGroupCommand(
		"config",
		"Configure the confession bot",
		router.GetResponder(),
		router.GetPermissionChecker(),
	)
	group.AddSubCommand(&channelSubCommand{
		handler:     h,
		name:        "confession",
		description: "Set the channel where confessions are posted",
		apply:       func(cm *files.ConfigManager, id string) error { return cm.SetConfessionChannel(id) },
	})
	group.AddSubCommand(&channelSubCommand{
		handler:     h,
		name:        "logs",
		description: "Set the channel where confession logs are written",
		apply:       func(cm *files.ConfigManager, id string) error { return cm.SetLogsChannel(id) },
	})
	group.AddSubCommand(&showSubCommand{handler: h})
	group.AddSubCommand(&deploySubCommand{handler: h})
	router.RegisterCommand(group)
}

// channelSubCommand binds one channel setting via a channel option.
type channelSubCommand struct {
	handler     *Handler
	name        string
	description string
	apply       func(cm *files.ConfigManager, channelID string) error
}

func (c *channelSubCommand) Name() string        { return c.name }
func (c *channelSubCommand) Description() string { return c.description }
func (c *channelSubCommand) Options() []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionChannel,
			Name:        "channel",
			Description: "The text channel to use",
			Required:    true,
			ChannelTypes: []discordgo.ChannelType{
				discordgo.ChannelTypeGuildText,
			},
		},
	}
}
func (c *channelSubCommand) RequiresGuild() bool       { return true }
func (c *channelSubCommand) RequiresPermissions() bool { return true }

func (c *channelSubCommand) Handle(ctx *core.Context) error {
	options := core.GetSubCommandOptions(ctx.Interaction)
	channelID := core.GetChannelOptionID(options, "channel")
	if channelID == "" {
		return core.NewCommandError("No channel provided", true)
	}

	// The option already restricts to text channels; validate anyway since
	// clients are not trusted input.
	if _, err := files.ResolveTextChannel(ctx.Session, channelID); err != nil {
		log.DiscordLogger().Warn("Rejected channel binding",
			"setting", c.name,
			"channel", channelID,
			"error", err)
		return c.handler.responder.Error(ctx, "That channel is not a usable text channel.", true)
	}

	if err := c.apply(ctx.Config, channelID); err != nil {
		return fmt.Errorf("persist %s channel: %w", c.name, err)
	}

	return c.handler.responder.Success(ctx, fmt.Sprintf("The %s channel is now <#%s>.", c.name, channelID), true)
}

// showSubCommand renders the current configuration and counters.
type showSubCommand struct {
	handler *Handler
}

func (c *showSubCommand) Name() string        { return "show" }
func (c *showSubCommand) Description() string { return "Show the current configuration" }
func (c *showSubCommand) Options() []*discordgo.ApplicationCommandOption {
	return nil
}
func (c *showSubCommand) RequiresGuild() bool       { return true }
func (c *showSubCommand) RequiresPermissions() bool { return true }

func (c *showSubCommand) Handle(ctx *core.Context) error {
	embed := core.ConfigOverviewEmbed(ctx.Config)
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   "Admins",
		Value:  adminList(ctx.Config.AdminIDs()),
		Inline: false,
	})

	if c.handler.journal != nil {
		if missing, err := c.handler.journal.MissingNumbers(ctx.GuildID); err == nil && len(missing) > 0 {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:   "Unposted numbers",
				Value:  fmt.Sprintf("%d reserved numbers never reached the channel", len(missing)),
				Inline: false,
			})
		}
	}

	return c.handler.responder.ReplyEmbed(ctx, embed, true)
}

func adminList(ids []string) string {
	if len(ids) == 0 {
		return "none"
	}
	mentions := make([]string, len(ids))
	for i, id := range ids {
		mentions[i] = "<@" + id + ">"
	}
	return strings.Join(mentions, " ")
}

// deploySubCommand re-syncs the application commands with Discord.
type deploySubCommand struct {
	handler *Handler
}

func (c *deploySubCommand) Name() string        { return "deploy" }
func (c *deploySubCommand) Description() string { return "Re-sync slash commands with Discord" }
func (c *deploySubCommand) Options() []*discordgo.ApplicationCommandOption {
	return nil
}
func (c *deploySubCommand) RequiresGuild() bool       { return true }
func (c *deploySubCommand) RequiresPermissions() bool { return true }

func (c *deploySubCommand) Handle(ctx *core.Context) error {
	if c.handler.resync == nil {
		return core.NewCommandError("Command deployment is not available", true)
	}

	// Sync is a sequence of REST calls; defer so the token survives it.
	if err := c.handler.responder.Defer(ctx, true); err != nil {
		return err
	}
	if err := c.handler.resync(); err != nil {
		log.ErrorLoggerRaw().Error("Command re-sync failed", "error", err)
		return c.handler.responder.EditReply(ctx, "❌ Command re-sync failed. Check the logs.")
	}
	return c.handler.responder.EditReply(ctx, "✅ Commands re-synced.")
}
