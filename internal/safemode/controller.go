// Package safemode implements the per-guild emergency lockdown state
// machine. Activation strips destructive capabilities from editable
// non-administrator roles and throttles text channels; deactivation only
// clears the flag. Stripped permissions are not restored and no snapshot
// is taken; operators restore manually.
package safemode

import (
	"context"
	"sync"

	"wardbot/internal/guildcfg"
	"wardbot/internal/modlog"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// SlowmodeSeconds is the uniform rate limit applied to text channels
// while a guild is in safe mode.
const SlowmodeSeconds = 10

// StrippedPermissions is the capability set removed from every editable
// non-administrator role on activation.
const StrippedPermissions = discordgo.PermissionManageChannels |
	discordgo.PermissionManageRoles |
	discordgo.PermissionBanMembers |
	discordgo.PermissionKickMembers

// Platform is the narrow slice of guild I/O the controller needs. Every
// call is individually fallible; the controller continues past failures.
type Platform interface {
	// EditableRoles returns the roles the agent is allowed to edit
	// (below its own top role), managed or not.
	EditableRoles(guildID string) ([]*discordgo.Role, error)
	SetRolePermissions(guildID, roleID string, permissions int64) error
	TextChannels(guildID string) ([]*discordgo.Channel, error)
	SetChannelSlowmode(channelID string, seconds int) error
}

type Controller struct {
	cfgs     *guildcfg.Store
	platform Platform
	sink     modlog.Sink
	logger   *zap.Logger

	mu       sync.Mutex
	inflight map[string]bool
}

func NewController(cfgs *guildcfg.Store, platform Platform, sink modlog.Sink, logger *zap.Logger) *Controller {
	return &Controller{
		cfgs:     cfgs,
		platform: platform,
		sink:     sink,
		logger:   logger,
		inflight: make(map[string]bool),
	}
}

// Active reports whether the guild is currently in safe mode.
func (c *Controller) Active(ctx context.Context, guildID string) bool {
	return c.cfgs.Get(ctx, guildID).NukeMode
}

// Activate transitions the guild into safe mode. It is idempotent:
// redundant calls while already active (or while a sweep is in flight)
// are safe no-ops. Returns whether a transition happened.
func (c *Controller) Activate(ctx context.Context, guildID string) bool {
	c.mu.Lock()
	if c.inflight[guildID] {
		c.mu.Unlock()
		return false
	}
	c.inflight[guildID] = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.inflight, guildID)
		c.mu.Unlock()
	}()

	if c.cfgs.Get(ctx, guildID).NukeMode {
		return false
	}
	c.cfgs.Set(ctx, guildID, func(cfg *guildcfg.GuildConfig) {
		cfg.NukeMode = true
	})

	locked := c.stripRoles(guildID)
	throttled := c.throttleChannels(guildID)

	c.logger.Warn("safe mode engaged",
		zap.String("guild_id", guildID),
		zap.Int("roles_locked", locked),
		zap.Int("channels_throttled", throttled))
	if c.sink != nil {
		c.sink.Record(ctx, modlog.Entry{
			GuildID: guildID,
			Action:  "safemode_on",
			Reason:  "destructive activity detected or manual activation",
		})
	}
	return true
}

// Deactivate returns the guild to normal. Only the flag is cleared;
// permissions stripped on activation stay stripped.
func (c *Controller) Deactivate(ctx context.Context, guildID string) bool {
	if !c.cfgs.Get(ctx, guildID).NukeMode {
		return false
	}
	c.cfgs.Set(ctx, guildID, func(cfg *guildcfg.GuildConfig) {
		cfg.NukeMode = false
	})

	c.logger.Info("safe mode lifted", zap.String("guild_id", guildID))
	if c.sink != nil {
		c.sink.Record(ctx, modlog.Entry{
			GuildID: guildID,
			Action:  "safemode_off",
			Details: "stripped permissions are not restored automatically",
		})
	}
	return true
}

func (c *Controller) stripRoles(guildID string) int {
	roles, err := c.platform.EditableRoles(guildID)
	if err != nil {
		c.logger.Warn("role list failed", zap.String("guild_id", guildID), zap.Error(err))
		return 0
	}

	locked := 0
	for _, role := range roles {
		if role == nil || role.Managed {
			continue
		}
		// Administrator roles are never stripped.
		if role.Permissions&discordgo.PermissionAdministrator != 0 {
			continue
		}
		next := role.Permissions &^ int64(StrippedPermissions)
		if next == role.Permissions {
			continue
		}
		if err := c.platform.SetRolePermissions(guildID, role.ID, next); err != nil {
			c.logger.Debug("role strip failed", zap.String("guild_id", guildID), zap.String("role_id", role.ID), zap.Error(err))
			continue
		}
		locked++
	}
	return locked
}

func (c *Controller) throttleChannels(guildID string) int {
	channels, err := c.platform.TextChannels(guildID)
	if err != nil {
		c.logger.Warn("channel list failed", zap.String("guild_id", guildID), zap.Error(err))
		return 0
	}

	throttled := 0
	for _, channel := range channels {
		if channel == nil {
			continue
		}
		if err := c.platform.SetChannelSlowmode(channel.ID, SlowmodeSeconds); err != nil {
			c.logger.Debug("slowmode failed", zap.String("guild_id", guildID), zap.String("channel_id", channel.ID), zap.Error(err))
			continue
		}
		throttled++
	}
	return throttled
}
