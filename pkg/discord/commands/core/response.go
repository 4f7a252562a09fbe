package core

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/confessbot/pkg/errutil"
	"github.com/small-frappuccino/confessbot/pkg/log"
)

// ResponseManager sends interaction responses and keeps the per-interaction
// acknowledgement tracker honest. Every send path checks the tracker first so
// an interaction is never acknowledged twice.
type ResponseManager struct {
	session *discordgo.Session
}

// NewResponseManager creates a new response manager.
func NewResponseManager(session *discordgo.Session) *ResponseManager {
	return &ResponseManager{session: session}
}

// Reply sends the initial response to an interaction.
func (rm *ResponseManager) Reply(ctx *Context, content string, ephemeral bool) error {
	if !ctx.Ack.MarkReplied() {
		return fmt.Errorf("interaction already acknowledged (%s)", ctx.Ack.State())
	}

	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}

	return errutil.HandleDiscordError("interaction_respond", func() error {
		return rm.session.InteractionRespond(ctx.Interaction.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: content,
				Flags:   flags,
			},
		})
	})
}

// Success sends a success response with a checkmark.
func (rm *ResponseManager) Success(ctx *Context, message string, ephemeral bool) error {
	return rm.Reply(ctx, "✅ "+message, ephemeral)
}

// Error sends an error response with an X mark.
func (rm *ResponseManager) Error(ctx *Context, message string, ephemeral bool) error {
	return rm.Reply(ctx, "❌ "+message, ephemeral)
}

// Warning sends a warning response.
func (rm *ResponseManager) Warning(ctx *Context, message string, ephemeral bool) error {
	return rm.Reply(ctx, "⚠️ "+message, ephemeral)
}

// Info sends an informational response.
func (rm *ResponseManager) Info(ctx *Context, message string, ephemeral bool) error {
	return rm.Reply(ctx, "ℹ️ "+message, ephemeral)
}

// ReplyComponents sends the initial response with message components attached.
func (rm *ResponseManager) ReplyComponents(ctx *Context, content string, components []discordgo.MessageComponent, ephemeral bool) error {
	if !ctx.Ack.MarkReplied() {
		return fmt.Errorf("interaction already acknowledged (%s)", ctx.Ack.State())
	}

	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}

	return errutil.HandleDiscordError("interaction_respond_components", func() error {
		return rm.session.InteractionRespond(ctx.Interaction.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content:    content,
				Flags:      flags,
				Components: components,
			},
		})
	})
}

// ReplyEmbed sends the initial response as an embed.
func (rm *ResponseManager) ReplyEmbed(ctx *Context, embed *discordgo.MessageEmbed, ephemeral bool) error {
	if !ctx.Ack.MarkReplied() {
		return fmt.Errorf("interaction already acknowledged (%s)", ctx.Ack.State())
	}

	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}

	return errutil.HandleDiscordError("interaction_respond_embed", func() error {
		return rm.session.InteractionRespond(ctx.Interaction.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Embeds: []*discordgo.MessageEmbed{embed},
				Flags:  flags,
			},
		})
	})
}

// Defer acknowledges the interaction without visible content, buying time for
// slow work. Must happen before the interaction's response window closes.
func (rm *ResponseManager) Defer(ctx *Context, ephemeral bool) error {
	if !ctx.Ack.MarkDeferred() {
		return fmt.Errorf("interaction already acknowledged (%s)", ctx.Ack.State())
	}

	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}

	return errutil.HandleDiscordError("interaction_defer", func() error {
		return rm.session.InteractionRespond(ctx.Interaction.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Flags: flags,
			},
		})
	})
}

// DeferUpdate acknowledges a component interaction without changing the
// message it came from.
func (rm *ResponseManager) DeferUpdate(ctx *Context) error {
	if !ctx.Ack.MarkDeferred() {
		return fmt.Errorf("interaction already acknowledged (%s)", ctx.Ack.State())
	}

	return errutil.HandleDiscordError("interaction_defer_update", func() error {
		return rm.session.InteractionRespond(ctx.Interaction.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		})
	})
}

// EditReply replaces the deferred or initial response content.
func (rm *ResponseManager) EditReply(ctx *Context, content string) error {
	if !ctx.Ack.Acknowledged() {
		return fmt.Errorf("cannot edit before acknowledging")
	}

	return errutil.HandleDiscordError("interaction_edit", func() error {
		_, err := rm.session.InteractionResponseEdit(ctx.Interaction.Interaction, &discordgo.WebhookEdit{
			Content: &content,
		})
		return err
	})
}

// EditReplyEmbed replaces the deferred or initial response with an embed.
func (rm *ResponseManager) EditReplyEmbed(ctx *Context, embed *discordgo.MessageEmbed) error {
	if !ctx.Ack.Acknowledged() {
		return fmt.Errorf("cannot edit before acknowledging")
	}

	return errutil.HandleDiscordError("interaction_edit_embed", func() error {
		_, err := rm.session.InteractionResponseEdit(ctx.Interaction.Interaction, &discordgo.WebhookEdit{
			Embeds: &[]*discordgo.MessageEmbed{embed},
		})
		return err
	})
}

// FollowUp sends an additional message after the initial response.
func (rm *ResponseManager) FollowUp(ctx *Context, content string, ephemeral bool) error {
	if !ctx.Ack.Acknowledged() {
		return fmt.Errorf("cannot follow up before acknowledging")
	}

	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}

	err := errutil.HandleDiscordError("interaction_followup", func() error {
		_, err := rm.session.FollowupMessageCreate(ctx.Interaction.Interaction, true, &discordgo.WebhookParams{
			Content: content,
			Flags:   flags,
		})
		return err
	})
	if err == nil {
		ctx.Ack.MarkFollowedUp()
	}
	return err
}

// Modal presents a modal dialog. Counts as the initial acknowledgement.
func (rm *ResponseManager) Modal(ctx *Context, data *discordgo.InteractionResponseData) error {
	if !ctx.Ack.MarkReplied() {
		return fmt.Errorf("interaction already acknowledged (%s)", ctx.Ack.State())
	}

	return errutil.HandleDiscordError("interaction_modal", func() error {
		return rm.session.InteractionRespond(ctx.Interaction.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: data,
		})
	})
}

// Deliver routes a message through whichever channel the acknowledgement state
// still permits: edit after a defer, follow-up after a reply, otherwise an
// ephemeral initial reply. Used by the dispatcher's error recovery.
func (rm *ResponseManager) Deliver(ctx *Context, message string) error {
	switch ctx.Ack.State() {
	case AckDeferred:
		return rm.EditReply(ctx, message)
	case AckReplied, AckFollowedUp:
		return rm.FollowUp(ctx, message, true)
	default:
		return rm.Reply(ctx, message, true)
	}
}

// ConfirmOrLog delivers a confirmation and logs delivery failures instead of
// propagating them.
func (rm *ResponseManager) ConfirmOrLog(ctx *Context, message string) {
	if err := rm.Deliver(ctx, message); err != nil {
		log.DiscordLogger().Warn("Failed to deliver confirmation", "error", err)
	}
}
