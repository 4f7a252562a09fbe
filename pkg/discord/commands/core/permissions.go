package core

import (
	"fmt"
	"slices"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/confessbot/pkg/files"
	"github.com/small-frappuccino/confessbot/pkg/log"
)

// IsAuthorizedAdmin is the pure authorization predicate. The guild owner is
// always authorized. With ownerOnly set, admin-list membership suffices.
// Otherwise the caller must be on the admin list AND hold the Administrator
// permission.
func IsAuthorizedAdmin(userID, ownerID string, adminIDs []string, hasAdminRole, ownerOnly bool) bool {
	if userID != "" && userID == ownerID {
		return true
	}
	listed := slices.Contains(adminIDs, userID)
	if ownerOnly {
		return listed
	}
	return listed && hasAdminRole
}

// PermissionChecker resolves guild membership and applies the authorization
// predicate against the configured admin list.
type PermissionChecker struct {
	session *discordgo.Session
	config  *files.ConfigManager
}

// NewPermissionChecker creates a new permission checker.
func NewPermissionChecker(session *discordgo.Session, config *files.ConfigManager) *PermissionChecker {
	return &PermissionChecker{session: session, config: config}
}

// Check evaluates authorization for the interaction's user. A failed guild or
// member lookup yields files.ErrMemberLookup, which callers must treat as a
// denial, never as authorization.
func (pc *PermissionChecker) Check(ctx *Context, ownerOnly bool) (bool, error) {
	if ctx.GuildID == "" {
		return false, fmt.Errorf("%w: no guild on interaction", files.ErrMemberLookup)
	}

	ownerID, err := pc.guildOwnerID(ctx.GuildID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", files.ErrMemberLookup, err)
	}

	hasAdminRole := false
	if ctx.Interaction.Member != nil {
		hasAdminRole = ctx.Interaction.Member.Permissions&discordgo.PermissionAdministrator != 0
	} else if !ownerOnly {
		// The Administrator flag only exists on guild members. Without member
		// data the non-ownerOnly path cannot be evaluated.
		return false, fmt.Errorf("%w: no member data on interaction", files.ErrMemberLookup)
	}

	return IsAuthorizedAdmin(ctx.UserID, ownerID, pc.config.AdminIDs(), hasAdminRole, ownerOnly), nil
}

// CheckAndReply evaluates authorization and, on denial or lookup failure,
// sends a single ephemeral denial itself. It reports whether the handler may
// proceed; when false the interaction has already been answered.
func (pc *PermissionChecker) CheckAndReply(ctx *Context, rm *ResponseManager, ownerOnly bool) bool {
	ok, err := pc.Check(ctx, ownerOnly)
	if err != nil {
		log.DiscordLogger().Warn("Permission check failed",
			"user", ctx.UserID,
			"guild", ctx.GuildID,
			"error", err)
		if derr := rm.Deliver(ctx, "❌ Could not verify your permissions. Please try again."); derr != nil {
			log.DiscordLogger().Warn("Failed to send permission error", "error", derr)
		}
		return false
	}
	if !ok {
		msg := "❌ You need Administrator permission and must be on the admin list to use this command."
		if ownerOnly {
			msg = "❌ Only the server owner or listed admins can use this command."
		}
		if derr := rm.Deliver(ctx, msg); derr != nil {
			log.DiscordLogger().Warn("Failed to send permission denial", "error", derr)
		}
		return false
	}
	return true
}

func (pc *PermissionChecker) guildOwnerID(guildID string) (string, error) {
	if pc.session.State != nil {
		if g, _ := pc.session.State.Guild(guildID); g != nil && g.OwnerID != "" {
			return g.OwnerID, nil
		}
	}
	guild, err := pc.session.Guild(guildID)
	if err != nil {
		return "", err
	}
	return guild.OwnerID, nil
}
