package core

import (
	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/confessbot/pkg/files"
)

// Command represents a slash command.
type Command interface {
	Name() string
	Description() string
	Options() []*discordgo.ApplicationCommandOption
	Handle(ctx *Context) error
	RequiresGuild() bool
	RequiresPermissions() bool
}

// SubCommand represents a subcommand within a group command.
type SubCommand interface {
	Name() string
	Description() string
	Options() []*discordgo.ApplicationCommandOption
	Handle(ctx *Context) error
	RequiresGuild() bool
	RequiresPermissions() bool
}

// ComponentHandler processes a routed modal submit, button click or
// select-menu choice. For prefix-registered routes, arg carries the custom ID
// suffix after the prefix.
type ComponentHandler func(ctx *Context, arg string) error

// Context is the unified execution context handed to every handler.
type Context struct {
	Session     *discordgo.Session
	Interaction *discordgo.InteractionCreate
	Config      *files.ConfigManager
	Ack         *AckTracker
	GuildID     string
	UserID      string
	IsOwner     bool
}

// RouteKind is the closed classification of inbound interactions, assigned
// once at the dispatcher boundary.
type RouteKind int

const (
	RouteUnknown RouteKind = iota
	RouteCommand
	RouteModal
	RouteButton
	RouteSelectMenu
)

func (k RouteKind) String() string {
	switch k {
	case RouteCommand:
		return "command"
	case RouteModal:
		return "modal"
	case RouteButton:
		return "button"
	case RouteSelectMenu:
		return "select-menu"
	default:
		return "unknown"
	}
}

// Route is the result of classifying one interaction: its kind plus the opaque
// identifier used for handler lookup.
type Route struct {
	Kind RouteKind
	Key  string
}

// ClassifyInteraction maps an inbound interaction to its route. Unrecognized
// interaction types yield RouteUnknown.
func ClassifyInteraction(i *discordgo.InteractionCreate) Route {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		return Route{Kind: RouteCommand, Key: i.ApplicationCommandData().Name}
	case discordgo.InteractionModalSubmit:
		return Route{Kind: RouteModal, Key: i.ModalSubmitData().CustomID}
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		if data.ComponentType == discordgo.ButtonComponent {
			return Route{Kind: RouteButton, Key: data.CustomID}
		}
		return Route{Kind: RouteSelectMenu, Key: data.CustomID}
	default:
		return Route{Kind: RouteUnknown}
	}
}

// CommandRegistry stores registered commands and subcommands.
type CommandRegistry struct {
	commands    map[string]Command
	subcommands map[string]map[string]SubCommand // [commandName][subcommandName]
}

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands:    make(map[string]Command),
		subcommands: make(map[string]map[string]SubCommand),
	}
}

// Register registers a command. Duplicate names overwrite.
func (r *CommandRegistry) Register(cmd Command) {
	r.commands[cmd.Name()] = cmd
}

// RegisterSubCommand registers a subcommand under a parent command name.
func (r *CommandRegistry) RegisterSubCommand(parentName string, subcmd SubCommand) {
	if r.subcommands[parentName] == nil {
		r.subcommands[parentName] = make(map[string]SubCommand)
	}
	r.subcommands[parentName][subcmd.Name()] = subcmd
}

// GetCommand returns a command by name.
func (r *CommandRegistry) GetCommand(name string) (Command, bool) {
	cmd, exists := r.commands[name]
	return cmd, exists
}

// GetSubCommand returns a subcommand by parent and name.
func (r *CommandRegistry) GetSubCommand(parentName, subName string) (SubCommand, bool) {
	if subs, exists := r.subcommands[parentName]; exists {
		if sub, ok := subs[subName]; ok {
			return sub, true
		}
	}
	return nil, false
}

// GetAllCommands returns all registered commands.
func (r *CommandRegistry) GetAllCommands() map[string]Command {
	return r.commands
}

// CommandError carries a user-facing command failure.
type CommandError struct {
	Message   string
	Ephemeral bool
	Code      string
}

func (e *CommandError) Error() string {
	return e.Message
}

// NewCommandError creates a new command error.
func NewCommandError(message string, ephemeral bool) *CommandError {
	return &CommandError{
		Message:   message,
		Ephemeral: ephemeral,
	}
}
