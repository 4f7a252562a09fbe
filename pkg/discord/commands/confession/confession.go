// Package confession implements the anonymous confession flow: the /confess
// command, the submission modal, and anonymous replies to posted confessions.
package confession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/confessbot/pkg/discord/commands/core"
	"github.com/small-frappuccino/confessbot/pkg/files"
	"github.com/small-frappuccino/confessbot/pkg/log"
	"github.com/small-frappuccino/confessbot/pkg/storage"
	"github.com/small-frappuccino/confessbot/pkg/task"
)

// Component custom IDs and modal input IDs.
const (
	ModalSubmitConfession = "submit_confession"
	ButtonOpenModal       = "open_modal"
	ButtonReplyPrefix     = "reply_"
	ModalReplyPrefix      = "reply_modal_"

	inputConfession = "confession"
	inputReply      = "reply"

	confessionMinLen = 10
	confessionMaxLen = 1500
)

const autoDeleteTaskType = "confession.auto_delete"

// Handler owns the confession flow.
type Handler struct {
	responder  *core.ResponseManager
	journal    *storage.Journal
	taskRouter *task.TaskRouter
}

// NewHandler creates the confession handler. journal and taskRouter may be
// nil; journaling and auto-delete are then skipped.
func NewHandler(responder *core.ResponseManager, journal *storage.Journal, taskRouter *task.TaskRouter) *Handler {
	h := &Handler{
		responder:  responder,
		journal:    journal,
		taskRouter: taskRouter,
	}
	if taskRouter != nil {
		taskRouter.RegisterHandler(autoDeleteTaskType, h.runAutoDelete)
	}
	return h
}

// Register wires the command and component routes into the router.
func (h *Handler) Register(router *core.CommandRouter) {
	router.RegisterCommand(core.NewSimpleCommand(
		"confess",
		"Submit an anonymous confession",
		nil,
		h.handleConfessCommand,
		true,
		false,
	))
	router.RegisterButton(ButtonOpenModal, func(ctx *core.Context, _ string) error {
		return h.openConfessionModal(ctx)
	})
	router.RegisterModal(ModalSubmitConfession, func(ctx *core.Context, _ string) error {
		return h.handleSubmission(ctx)
	})
	router.RegisterButtonPrefix(ButtonReplyPrefix, h.openReplyModal)
	router.RegisterModalPrefix(ModalReplyPrefix, h.handleReply)
}

// handleConfessCommand shows the submission modal. The command only works in
// the configured confession channel so submissions land where readers expect.
func (h *Handler) handleConfessCommand(ctx *core.Context) error {
	channelID := ctx.Config.ConfessionChannelID()
	if channelID == "" {
		return h.responder.Error(ctx, "Confessions are not set up yet. An admin must run /setup first.", true)
	}
	if ctx.Interaction.ChannelID != channelID {
		return h.responder.Error(ctx, fmt.Sprintf("Please use this command in <#%s>.", channelID), true)
	}
	return h.openConfessionModal(ctx)
}

func (h *Handler) openConfessionModal(ctx *core.Context) error {
	return h.responder.Modal(ctx, &discordgo.InteractionResponseData{
		CustomID: ModalSubmitConfession,
		Title:    "Anonymous Confession",
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:    inputConfession,
						Label:       "Your confession",
						Style:       discordgo.TextInputParagraph,
						Placeholder: "Type your confession here...",
						Required:    true,
						MinLength:   confessionMinLen,
						MaxLength:   confessionMaxLen,
					},
				},
			},
		},
	})
}

// handleSubmission runs the full submission pipeline. The deferral comes
// first so the interaction cannot expire during channel resolution and
// posting. A failed counter reservation degrades to a placeholder number
// instead of losing the confession.
func (h *Handler) handleSubmission(ctx *core.Context) error {
	if err := h.responder.Defer(ctx, true); err != nil {
		return err
	}

	content := core.GetModalInput(ctx.Interaction.ModalSubmitData(), inputConfession)
	if content == "" {
		return h.responder.EditReply(ctx, "❌ Your confession was empty. Please try again.")
	}

	channel, err := files.ResolveTextChannel(ctx.Session, ctx.Config.ConfessionChannelID())
	if err != nil {
		return h.responder.EditReply(ctx, "❌ "+channelErrorMessage(err))
	}
	// An unusable channel must be caught before a number is reserved, so a
	// doomed post never burns a counter value.
	if !files.HasSendPermission(ctx.Session, channel.ID) {
		return h.responder.EditReply(ctx, "❌ I don't have permission to post in the confession channel. An admin must fix my channel permissions.")
	}

	number, display := h.reserveNumber(ctx)

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Confession #%s", display),
		Description: content,
		Color:       ctx.Config.DefaultColor(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}

	msg, err := ctx.Session.ChannelMessageSendComplex(channel.ID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						CustomID: ButtonReplyPrefix + "pending",
						Label:    "Reply anonymously",
						Style:    discordgo.SecondaryButton,
					},
				},
			},
		},
	})
	if err != nil {
		log.ErrorLoggerRaw().Error("Failed to post confession",
			"channel", channel.ID,
			"error", err)
		return h.responder.EditReply(ctx, "❌ Could not post your confession. Please try again later.")
	}

	// The reply button needs the message ID, which only exists after posting.
	h.retargetReplyButton(ctx.Session, msg, embed)

	if err := h.responder.EditReply(ctx, "✅ Your confession has been posted anonymously."); err != nil {
		log.DiscordLogger().Warn("Failed to confirm confession to submitter", "error", err)
	}

	h.journalConfession(ctx, channel.ID, msg.ID, number)
	h.logConfession(ctx, channel.ID, msg.ID, display)
	h.scheduleAutoDelete(ctx, channel.ID, msg.ID)

	return nil
}

// reserveNumber increments the persistent counter. On failure the confession
// still goes out with a placeholder so the submitter is not turned away.
func (h *Handler) reserveNumber(ctx *core.Context) (int, string) {
	number, err := ctx.Config.IncrementConfessionCount()
	if err != nil {
		log.ErrorLoggerRaw().Error("Failed to reserve confession number", "error", err)
		return 0, "?"
	}
	return number, fmt.Sprintf("%d", number)
}

func (h *Handler) retargetReplyButton(s *discordgo.Session, msg *discordgo.Message, embed *discordgo.MessageEmbed) {
	_, err := s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:      msg.ID,
		Channel: msg.ChannelID,
		Embeds:  &[]*discordgo.MessageEmbed{embed},
		Components: &[]discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						CustomID: ButtonReplyPrefix + msg.ID,
						Label:    "Reply anonymously",
						Style:    discordgo.SecondaryButton,
					},
				},
			},
		},
	})
	if err != nil {
		log.DiscordLogger().Warn("Failed to bind reply button", "message", msg.ID, "error", err)
	}
}

func (h *Handler) journalConfession(ctx *core.Context, channelID, messageID string, number int) {
	if h.journal == nil {
		return
	}
	err := h.journal.InsertConfession(storage.ConfessionRecord{
		GuildID:   ctx.GuildID,
		ChannelID: channelID,
		MessageID: messageID,
		Number:    number,
		PostedAt:  time.Now(),
	})
	if err != nil {
		log.ApplicationLogger().Warn("Failed to journal confession", "error", err)
	}
}

// logConfession posts a non-anonymized audit record to the logs channel. The
// submitter identity stays out of the public channel but is visible to
// moderators. Best-effort.
func (h *Handler) logConfession(ctx *core.Context, channelID, messageID, display string) {
	logsChannelID := ctx.Config.LogsChannelID()
	if logsChannelID == "" {
		return
	}
	_, err := ctx.Session.ChannelMessageSendEmbed(logsChannelID, &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Confession #%s posted", display),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Author", Value: fmt.Sprintf("<@%s>", ctx.UserID), Inline: true},
			{Name: "Message", Value: fmt.Sprintf("https://discord.com/channels/%s/%s/%s", ctx.GuildID, channelID, messageID), Inline: true},
		},
		Color:     ctx.Config.DefaultColor(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.DiscordLogger().Warn("Failed to write confession log", "error", err)
	}
}

func (h *Handler) scheduleAutoDelete(ctx *core.Context, channelID, messageID string) {
	if h.taskRouter == nil {
		return
	}
	after := ctx.Config.AutoDeleteAfter()
	if after <= 0 {
		return
	}
	h.taskRouter.DispatchAfter(time.Duration(after)*time.Second, task.Task{
		Type:    autoDeleteTaskType,
		Payload: autoDeletePayload{Session: ctx.Session, ChannelID: channelID, MessageID: messageID},
	})
}

type autoDeletePayload struct {
	Session   *discordgo.Session
	ChannelID string
	MessageID string
}

func (h *Handler) runAutoDelete(_ context.Context, payload any) error {
	p, ok := payload.(autoDeletePayload)
	if !ok {
		return fmt.Errorf("unexpected auto-delete payload %T", payload)
	}
	if err := p.Session.ChannelMessageDelete(p.ChannelID, p.MessageID); err != nil {
		log.DiscordLogger().Warn("Auto-delete failed", "message", p.MessageID, "error", err)
	}
	return nil
}

// openReplyModal shows the anonymous-reply modal for the confession message
// carried in the button's custom ID suffix.
func (h *Handler) openReplyModal(ctx *core.Context, messageID string) error {
	if messageID == "" || messageID == "pending" {
		return h.responder.Error(ctx, "This confession cannot be replied to yet.", true)
	}
	return h.responder.Modal(ctx, &discordgo.InteractionResponseData{
		CustomID: ModalReplyPrefix + messageID,
		Title:    "Anonymous Reply",
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:  inputReply,
						Label:     "Your reply",
						Style:     discordgo.TextInputParagraph,
						Required:  true,
						MinLength: 1,
						MaxLength: confessionMaxLen,
					},
				},
			},
		},
	})
}

// handleReply posts an anonymous reply beneath the confession it targets.
func (h *Handler) handleReply(ctx *core.Context, messageID string) error {
	if err := h.responder.Defer(ctx, true); err != nil {
		return err
	}

	content := core.GetModalInput(ctx.Interaction.ModalSubmitData(), inputReply)
	if content == "" {
		return h.responder.EditReply(ctx, "❌ Your reply was empty. Please try again.")
	}

	channel, err := files.ResolveTextChannel(ctx.Session, ctx.Config.ConfessionChannelID())
	if err != nil {
		return h.responder.EditReply(ctx, "❌ "+channelErrorMessage(err))
	}
	if !files.HasSendPermission(ctx.Session, channel.ID) {
		return h.responder.EditReply(ctx, "❌ I don't have permission to post in the confession channel. An admin must fix my channel permissions.")
	}

	number, err := ctx.Config.IncrementReplyCount()
	if err != nil {
		log.ErrorLoggerRaw().Error("Failed to reserve reply number", "error", err)
		number = 0
	}

	_, err = ctx.Session.ChannelMessageSendComplex(channel.ID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title:       "Anonymous Reply",
				Description: content,
				Color:       ctx.Config.DefaultColor(),
				Timestamp:   time.Now().UTC().Format(time.RFC3339),
			},
		},
		Reference: &discordgo.MessageReference{
			MessageID: messageID,
			ChannelID: channel.ID,
			GuildID:   ctx.GuildID,
		},
	})
	if err != nil {
		log.ErrorLoggerRaw().Error("Failed to post reply",
			"confession_message", messageID,
			"error", err)
		return h.responder.EditReply(ctx, "❌ Could not post your reply. Please try again later.")
	}

	if h.journal != nil {
		if err := h.journal.InsertReply(ctx.GuildID, channel.ID, messageID, number, time.Now()); err != nil {
			log.ApplicationLogger().Warn("Failed to journal reply", "error", err)
		}
	}

	return h.responder.EditReply(ctx, "✅ Your reply has been posted anonymously.")
}

// channelErrorMessage maps channel resolution failures to user-facing text.
func channelErrorMessage(err error) string {
	switch {
	case errors.Is(err, files.ErrNotConfigured):
		return "No confession channel is configured. An admin must run /setup first."
	case errors.Is(err, files.ErrInvalidChannelKind):
		return "The configured confession channel is not a text channel. An admin must reconfigure it."
	case errors.Is(err, files.ErrChannelUnavailable):
		return "The confession channel is unavailable. It may have been deleted."
	default:
		return "Could not access the confession channel."
	}
}
