// Package commands assembles the bot's command surface on top of the core
// dispatcher.
package commands

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	configcmd "github.com/small-frappuccino/confessbot/pkg/discord/commands/config"
	"github.com/small-frappuccino/confessbot/pkg/discord/commands/confession"
	"github.com/small-frappuccino/confessbot/pkg/discord/commands/core"
	"github.com/small-frappuccino/confessbot/pkg/discord/commands/setup"
	"github.com/small-frappuccino/confessbot/pkg/discord/commands/stats"
	"github.com/small-frappuccino/confessbot/pkg/files"
	"github.com/small-frappuccino/confessbot/pkg/storage"
	"github.com/small-frappuccino/confessbot/pkg/task"
)

// CommandHandler bundles the command manager with the domain handlers.
type CommandHandler struct {
	manager *core.CommandManager
}

// NewCommandHandler wires every command, modal, button and select-menu route.
func NewCommandHandler(
	session *discordgo.Session,
	configManager *files.ConfigManager,
	journal *storage.Journal,
	taskRouter *task.TaskRouter,
) *CommandHandler {
	manager := core.NewCommandManager(session, configManager)
	router := manager.GetRouter()
	router.SetTaskRouter(taskRouter)

	confession.NewHandler(router.GetResponder(), journal, taskRouter).Register(router)
	configcmd.NewHandler(router.GetResponder(), journal, manager.SyncCommands).Register(router)
	setup.NewHandler(router.GetResponder(), router.GetPermissionChecker()).Register(router)
	stats.NewHandler(router.GetResponder(), journal).Register(router)

	return &CommandHandler{manager: manager}
}

// Setup registers the gateway handler and syncs commands with Discord.
func (ch *CommandHandler) Setup() error {
	if err := ch.manager.SetupCommands(); err != nil {
		return fmt.Errorf("failed to set up commands: %w", err)
	}
	return nil
}

// Router exposes the underlying router, mainly for tests.
func (ch *CommandHandler) Router() *core.CommandRouter {
	return ch.manager.GetRouter()
}
