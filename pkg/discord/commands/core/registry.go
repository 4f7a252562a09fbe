package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/confessbot/pkg/files"
	"github.com/small-frappuccino/confessbot/pkg/log"
	"github.com/small-frappuccino/confessbot/pkg/task"
)

// componentRoutes holds handler lookups for one interaction kind: exact
// custom IDs plus ordered prefix routes for IDs carrying an argument suffix.
type componentRoutes struct {
	exact    map[string]ComponentHandler
	prefixes []prefixRoute
}

type prefixRoute struct {
	prefix  string
	handler ComponentHandler
}

func newComponentRoutes() *componentRoutes {
	return &componentRoutes{exact: make(map[string]ComponentHandler)}
}

func (r *componentRoutes) lookup(customID string) (ComponentHandler, string, bool) {
	if h, ok := r.exact[customID]; ok {
		return h, "", true
	}
	for _, pr := range r.prefixes {
		if strings.HasPrefix(customID, pr.prefix) {
			return pr.handler, strings.TrimPrefix(customID, pr.prefix), true
		}
	}
	return nil, "", false
}

// CommandRouter classifies inbound interactions once at the gateway boundary
// and routes each to exactly one handler.
type CommandRouter struct {
	registry       *CommandRegistry
	contextBuilder *ContextBuilder
	responder      *ResponseManager
	permChecker    *PermissionChecker

	modalRoutes  *componentRoutes
	buttonRoutes *componentRoutes
	selectRoutes *componentRoutes

	// Optional. When set, the interaction ID is claimed in the router's
	// idempotency index so duplicate gateway deliveries are dropped. Handlers
	// always run on the calling goroutine; discordgo invokes each gateway
	// event on its own goroutine, so interactions are serviced concurrently
	// and a slow handler never delays the rest of its guild.
	taskRouter *task.TaskRouter
}

// NewCommandRouter creates a new command router.
func NewCommandRouter(session *discordgo.Session, configManager *files.ConfigManager) *CommandRouter {
	return &CommandRouter{
		registry:       NewCommandRegistry(),
		contextBuilder: NewContextBuilder(session, configManager),
		responder:      NewResponseManager(session),
		permChecker:    NewPermissionChecker(session, configManager),
		modalRoutes:    newComponentRoutes(),
		buttonRoutes:   newComponentRoutes(),
		selectRoutes:   newComponentRoutes(),
	}
}

// SetTaskRouter enables duplicate-delivery suppression through a task router.
func (cr *CommandRouter) SetTaskRouter(tr *task.TaskRouter) {
	cr.taskRouter = tr
}

// RegisterCommand registers a slash command.
func (cr *CommandRouter) RegisterCommand(cmd Command) {
	cr.registry.Register(cmd)
}

// RegisterSubCommand registers a subcommand under a parent command name.
func (cr *CommandRouter) RegisterSubCommand(parentName string, subcmd SubCommand) {
	cr.registry.RegisterSubCommand(parentName, subcmd)
}

// RegisterModal registers a handler for an exact modal custom ID.
func (cr *CommandRouter) RegisterModal(customID string, handler ComponentHandler) {
	cr.modalRoutes.exact[customID] = handler
}

// RegisterModalPrefix registers a handler for modal custom IDs starting with
// prefix. The suffix is passed to the handler as its argument.
func (cr *CommandRouter) RegisterModalPrefix(prefix string, handler ComponentHandler) {
	cr.modalRoutes.prefixes = append(cr.modalRoutes.prefixes, prefixRoute{prefix, handler})
}

// RegisterButton registers a handler for an exact button custom ID.
func (cr *CommandRouter) RegisterButton(customID string, handler ComponentHandler) {
	cr.buttonRoutes.exact[customID] = handler
}

// RegisterButtonPrefix registers a handler for button custom IDs starting
// with prefix.
func (cr *CommandRouter) RegisterButtonPrefix(prefix string, handler ComponentHandler) {
	cr.buttonRoutes.prefixes = append(cr.buttonRoutes.prefixes, prefixRoute{prefix, handler})
}

// RegisterSelectMenu registers a handler for an exact select-menu custom ID.
func (cr *CommandRouter) RegisterSelectMenu(customID string, handler ComponentHandler) {
	cr.selectRoutes.exact[customID] = handler
}

// HandleInteraction is the gateway entry point. Interactions without a guild
// and interactions of unrecognized kinds are dropped without a response.
func (cr *CommandRouter) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	route := ClassifyInteraction(i)

	if route.Kind == RouteUnknown {
		log.DiscordLogger().Debug("Dropping unclassifiable interaction",
			"type", int(i.Type),
			"id", i.ID)
		return
	}
	if i.GuildID == "" {
		log.DiscordLogger().Debug("Dropping guildless interaction",
			"kind", route.Kind.String(),
			"key", route.Key)
		return
	}

	if cr.taskRouter != nil && !cr.taskRouter.Deduplicate("interaction:"+i.ID) {
		log.DiscordLogger().Debug("Dropping duplicate interaction delivery", "id", i.ID)
		return
	}

	cr.dispatch(i, route)
}

// dispatch routes one classified interaction to its single handler and runs
// the error recovery path on failure.
func (cr *CommandRouter) dispatch(i *discordgo.InteractionCreate, route Route) {
	ctx := cr.contextBuilder.BuildContext(i)

	var err error
	switch route.Kind {
	case RouteCommand:
		err = cr.runCommand(ctx, route.Key)
	case RouteModal:
		err = cr.runComponent(ctx, cr.modalRoutes, route)
	case RouteButton:
		err = cr.runComponent(ctx, cr.buttonRoutes, route)
	case RouteSelectMenu:
		err = cr.runComponent(ctx, cr.selectRoutes, route)
	}

	if err != nil {
		cr.recover(ctx, route, err)
	}
}

func (cr *CommandRouter) runCommand(ctx *Context, name string) error {
	cmd, exists := cr.registry.GetCommand(name)
	if !exists {
		// Commands are synced at startup, so an unknown name means a stale
		// registration somewhere. Not worth a user-facing error.
		log.DiscordLogger().Warn("Unknown command", "command", name)
		return nil
	}

	if cmd.RequiresGuild() && ctx.GuildID == "" {
		return cr.responder.Error(ctx, "This command can only be used in a server.", true)
	}

	if cmd.RequiresPermissions() && !cr.permChecker.CheckAndReply(ctx, cr.responder, false) {
		return nil
	}

	log.DiscordLogger().Info("Executing command",
		"command", GetCommandPath(ctx.Interaction),
		"user", ctx.UserID,
		"guild", ctx.GuildID)
	return cmd.Handle(ctx)
}

func (cr *CommandRouter) runComponent(ctx *Context, routes *componentRoutes, route Route) error {
	handler, arg, ok := routes.lookup(route.Key)
	if !ok {
		log.DiscordLogger().Debug("Dropping unrouted component interaction",
			"kind", route.Kind.String(),
			"key", route.Key)
		return nil
	}

	log.DiscordLogger().Info("Executing component handler",
		"kind", route.Kind.String(),
		"key", route.Key,
		"user", ctx.UserID,
		"guild", ctx.GuildID)
	return handler(ctx, arg)
}

// recover reports a handler failure to the user through whatever response
// channel the acknowledgement state still allows. Expired-interaction errors
// are swallowed: the token is dead and every response path would fail too.
func (cr *CommandRouter) recover(ctx *Context, route Route, handlerErr error) {
	log.ErrorLoggerRaw().Error("Handler failed",
		"kind", route.Kind.String(),
		"key", route.Key,
		"user", ctx.UserID,
		"guild", ctx.GuildID,
		"error", handlerErr)

	if isExpiredInteraction(handlerErr) {
		log.DiscordLogger().Debug("Interaction expired before response", "key", route.Key)
		return
	}

	msg := "❌ An error occurred while processing your request."
	var cmdErr *CommandError
	if errors.As(handlerErr, &cmdErr) {
		msg = "❌ " + cmdErr.Message
	}

	if err := cr.responder.Deliver(ctx, msg); err != nil {
		if isExpiredInteraction(err) {
			log.DiscordLogger().Debug("Interaction expired during error recovery", "key", route.Key)
			return
		}
		log.ErrorLoggerRaw().Error("Error recovery response failed",
			"key", route.Key,
			"error", err)
	}
}

// isExpiredInteraction reports whether err is Discord telling us the
// interaction token is no longer usable: unknown interaction (10062) or
// already acknowledged (40060).
func isExpiredInteraction(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message == nil {
		return false
	}
	code := restErr.Message.Code
	return code == 10062 || code == 40060
}

// CommandManager owns command registration lifecycle against the Discord API.
type CommandManager struct {
	session *discordgo.Session
	router  *CommandRouter
}

// NewCommandManager creates a new command manager.
func NewCommandManager(session *discordgo.Session, configManager *files.ConfigManager) *CommandManager {
	return &CommandManager{
		session: session,
		router:  NewCommandRouter(session, configManager),
	}
}

// GetRouter returns the command router.
func (cm *CommandManager) GetRouter() *CommandRouter {
	return cm.router
}

// SetupCommands registers the interaction handler and incrementally syncs the
// registered commands with Discord: create missing, update changed, delete
// orphans, skip unchanged.
func (cm *CommandManager) SetupCommands() error {
	cm.session.AddHandler(cm.router.HandleInteraction)
	return cm.SyncCommands()
}

// SyncCommands performs the incremental application-command sync.
func (cm *CommandManager) SyncCommands() error {
	registered, err := cm.session.ApplicationCommands(cm.session.State.User.ID, "")
	if err != nil {
		return fmt.Errorf("failed to fetch registered commands: %w", err)
	}

	regByName := make(map[string]*discordgo.ApplicationCommand, len(registered))
	for _, rc := range registered {
		regByName[rc.Name] = rc
	}

	codeCommands := cm.router.registry.GetAllCommands()

	created, updated, unchanged := 0, 0, 0
	for name, cmd := range codeCommands {
		desired := &discordgo.ApplicationCommand{
			Name:        cmd.Name(),
			Description: cmd.Description(),
			Options:     cmd.Options(),
		}

		if existing, ok := regByName[name]; ok {
			if CompareCommands(existing, desired) {
				unchanged++
				continue
			}
			if _, err := cm.session.ApplicationCommandEdit(cm.session.State.User.ID, "", existing.ID, desired); err != nil {
				return fmt.Errorf("error updating command '%s': %w", name, err)
			}
			log.DiscordLogger().Info("Command updated", "command", name)
			updated++
		} else {
			if _, err := cm.session.ApplicationCommandCreate(cm.session.State.User.ID, "", desired); err != nil {
				return fmt.Errorf("error creating command '%s': %w", name, err)
			}
			log.DiscordLogger().Info("Command created", "command", name)
			created++
		}
	}

	deleted := 0
	for _, rc := range registered {
		if _, exists := codeCommands[rc.Name]; !exists {
			if err := cm.session.ApplicationCommandDelete(cm.session.State.User.ID, "", rc.ID); err != nil {
				log.DiscordLogger().Warn("Error removing orphan command",
					"command", rc.Name,
					"error", err)
				continue
			}
			log.DiscordLogger().Info("Orphan command removed", "command", rc.Name)
			deleted++
		}
	}

	log.DiscordLogger().Info("Command synchronization completed",
		"created", created,
		"updated", updated,
		"deleted", deleted,
		"unchanged", unchanged,
		"total", len(codeCommands))

	return nil
}

// CompareCommands compares the fields of an application command that the sync
// cares about, via their JSON form.
func CompareCommands(a, b *discordgo.ApplicationCommand) bool {
	ca := struct {
		Name        string                                `json:"name"`
		Description string                                `json:"description"`
		Options     []*discordgo.ApplicationCommandOption `json:"options"`
	}{a.Name, a.Description, a.Options}
	cb := struct {
		Name        string                                `json:"name"`
		Description string                                `json:"description"`
		Options     []*discordgo.ApplicationCommandOption `json:"options"`
	}{b.Name, b.Description, b.Options}
	ba, _ := json.Marshal(ca)
	bb, _ := json.Marshal(cb)
	return string(ba) == string(bb)
}

// GroupCommand is a command composed of subcommands.
type GroupCommand struct {
	name        string
	description string
	subcommands map[string]SubCommand
	responder   *ResponseManager
	checker     *PermissionChecker
}

// NewGroupCommand creates a new group command.
func NewGroupCommand(name, description string, responder *ResponseManager, checker *PermissionChecker) *GroupCommand {
	return &GroupCommand{
		name:        name,
		description: description,
		subcommands: make(map[string]SubCommand),
		responder:   responder,
		checker:     checker,
	}
}

// AddSubCommand adds a subcommand to the group.
func (gc *GroupCommand) AddSubCommand(subcmd SubCommand) {
	gc.subcommands[subcmd.Name()] = subcmd
}

func (gc *GroupCommand) Name() string        { return gc.name }
func (gc *GroupCommand) Description() string { return gc.description }

// Options builds the command options from the registered subcommands.
func (gc *GroupCommand) Options() []*discordgo.ApplicationCommandOption {
	options := make([]*discordgo.ApplicationCommandOption, 0, len(gc.subcommands))
	for _, subcmd := range gc.subcommands {
		options = append(options, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        subcmd.Name(),
			Description: subcmd.Description(),
			Options:     subcmd.Options(),
		})
	}
	return options
}

// RequiresGuild reports whether any subcommand requires a guild.
func (gc *GroupCommand) RequiresGuild() bool {
	for _, subcmd := range gc.subcommands {
		if subcmd.RequiresGuild() {
			return true
		}
	}
	return false
}

// RequiresPermissions is false at the group level so the router does not gate
// the whole group. Each subcommand is gated individually in Handle.
func (gc *GroupCommand) RequiresPermissions() bool {
	return false
}

// Handle routes to the chosen subcommand.
func (gc *GroupCommand) Handle(ctx *Context) error {
	subCommandName := GetSubCommandName(ctx.Interaction)
	if subCommandName == "" {
		return NewCommandError("No subcommand specified", true)
	}

	subcmd, exists := gc.subcommands[subCommandName]
	if !exists {
		return NewCommandError("Unknown subcommand", true)
	}

	if subcmd.RequiresGuild() && ctx.GuildID == "" {
		return NewCommandError("This subcommand can only be used in a server", true)
	}

	if subcmd.RequiresPermissions() && !gc.checker.CheckAndReply(ctx, gc.responder, false) {
		return nil
	}

	return subcmd.Handle(ctx)
}

// SimpleCommand implements Command for leaf commands.
type SimpleCommand struct {
	name                string
	description         string
	options             []*discordgo.ApplicationCommandOption
	handler             func(ctx *Context) error
	requiresGuild       bool
	requiresPermissions bool
}

// NewSimpleCommand creates a simple command.
func NewSimpleCommand(
	name, description string,
	options []*discordgo.ApplicationCommandOption,
	handler func(ctx *Context) error,
	requiresGuild, requiresPermissions bool,
) *SimpleCommand {
	return &SimpleCommand{
		name:                name,
		description:         description,
		options:             options,
		handler:             handler,
		requiresGuild:       requiresGuild,
		requiresPermissions: requiresPermissions,
	}
}

func (sc *SimpleCommand) Name() string        { return sc.name }
func (sc *SimpleCommand) Description() string { return sc.description }
func (sc *SimpleCommand) Options() []*discordgo.ApplicationCommandOption {
	return sc.options
}
func (sc *SimpleCommand) Handle(ctx *Context) error { return sc.handler(ctx) }
func (sc *SimpleCommand) RequiresGuild() bool       { return sc.requiresGuild }
func (sc *SimpleCommand) RequiresPermissions() bool { return sc.requiresPermissions }

// GetSession returns the session behind the router.
func (cr *CommandRouter) GetSession() *discordgo.Session {
	return cr.contextBuilder.session
}

// GetConfigManager returns the config manager behind the router.
func (cr *CommandRouter) GetConfigManager() *files.ConfigManager {
	return cr.contextBuilder.configManager
}

// GetResponder returns the shared response manager.
func (cr *CommandRouter) GetResponder() *ResponseManager {
	return cr.responder
}

// GetPermissionChecker returns the shared permission checker.
func (cr *CommandRouter) GetPermissionChecker() *PermissionChecker {
	return cr.permChecker
}
