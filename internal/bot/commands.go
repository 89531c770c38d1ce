package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"wardbot/internal/guildcfg"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// handleCommand parses and executes an operator command. Returns false
// when the message is not a command so automod still evaluates it.
func (b *Bot) handleCommand(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate, cfg guildcfg.GuildConfig) bool {
	if !strings.HasPrefix(msg.Content, cfg.Prefix) {
		return false
	}
	fields := strings.Fields(strings.TrimPrefix(msg.Content, cfg.Prefix))
	if len(fields) == 0 {
		return false
	}
	command := strings.ToLower(fields[0])
	args := fields[1:]

	switch command {
	case "prefix", "antilink", "antispam", "wordfilter", "modlog", "leveling", "config":
		if !b.requirePermission(msg, discordgo.PermissionManageServer) {
			return true
		}
	case "safemode":
		if !b.requirePermission(msg, discordgo.PermissionAdministrator) {
			return true
		}
	default:
		return false
	}

	switch command {
	case "prefix":
		b.cmdPrefix(ctx, msg, args)
	case "antilink":
		b.cmdAntiLink(ctx, msg, args)
	case "antispam":
		b.cmdAntiSpam(ctx, msg, args)
	case "wordfilter":
		b.cmdWordFilter(ctx, msg, args)
	case "safemode":
		b.cmdSafeMode(ctx, msg, args)
	case "modlog":
		b.cmdModLog(ctx, msg, args)
	case "leveling":
		b.cmdLeveling(ctx, msg, args)
	case "config":
		b.cmdConfig(ctx, msg)
	}
	return true
}

func (b *Bot) requirePermission(msg *discordgo.MessageCreate, permission int64) bool {
	guild := b.guild(msg.GuildID)
	if guild == nil {
		return false
	}
	if guild.OwnerID == msg.Author.ID {
		return true
	}
	member := msg.Member
	if member == nil {
		member = b.member(msg.GuildID, msg.Author.ID)
	}
	perms := memberPermissions(guild, member)
	if perms&discordgo.PermissionAdministrator != 0 || perms&permission != 0 {
		return true
	}
	b.reply(msg.ChannelID, "Permission denied", "You do not have permission to use this command.", colorError, nil)
	return false
}

func (b *Bot) cmdPrefix(ctx context.Context, msg *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		b.reply(msg.ChannelID, "Prefix", "Usage: prefix <new prefix>", colorError, nil)
		return
	}
	prefix := args[0]
	if len(prefix) > guildcfg.MaxPrefixLen {
		b.reply(msg.ChannelID, "Prefix", fmt.Sprintf("Prefix must be at most %d characters.", guildcfg.MaxPrefixLen), colorError, nil)
		return
	}
	b.cfgs.Set(ctx, msg.GuildID, func(cfg *guildcfg.GuildConfig) {
		cfg.Prefix = prefix
	})
	b.reply(msg.ChannelID, "Prefix", "Prefix updated to `"+prefix+"`.", colorAction, nil)
}

func (b *Bot) cmdAntiLink(ctx context.Context, msg *discordgo.MessageCreate, args []string) {
	enabled, ok := parseToggle(args)
	if !ok {
		b.reply(msg.ChannelID, "Anti-link", "Usage: antilink on|off", colorError, nil)
		return
	}
	b.cfgs.Set(ctx, msg.GuildID, func(cfg *guildcfg.GuildConfig) {
		cfg.AntiLink = enabled
	})
	b.reply(msg.ChannelID, "Anti-link", "Anti-link is now "+onOff(enabled)+".", colorAction, nil)
}

func (b *Bot) cmdAntiSpam(ctx context.Context, msg *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		b.reply(msg.ChannelID, "Anti-spam", "Usage: antispam on|off | max <n> | window <ms>", colorError, nil)
		return
	}
	switch strings.ToLower(args[0]) {
	case "on", "off":
		enabled := strings.ToLower(args[0]) == "on"
		b.cfgs.Set(ctx, msg.GuildID, func(cfg *guildcfg.GuildConfig) {
			cfg.AntiSpam.Enabled = enabled
		})
		b.reply(msg.ChannelID, "Anti-spam", "Anti-spam is now "+onOff(enabled)+".", colorAction, nil)
	case "max":
		value, err := parsePositiveInt(args[1:])
		if err != nil {
			b.reply(msg.ChannelID, "Anti-spam", "Usage: antispam max <n>", colorError, nil)
			return
		}
		b.cfgs.Set(ctx, msg.GuildID, func(cfg *guildcfg.GuildConfig) {
			cfg.AntiSpam.Max = value
		})
		b.reply(msg.ChannelID, "Anti-spam", fmt.Sprintf("Spam threshold set to %d messages.", value), colorAction, nil)
	case "window":
		value, err := parsePositiveInt(args[1:])
		if err != nil {
			b.reply(msg.ChannelID, "Anti-spam", "Usage: antispam window <ms>", colorError, nil)
			return
		}
		b.cfgs.Set(ctx, msg.GuildID, func(cfg *guildcfg.GuildConfig) {
			cfg.AntiSpam.WindowMS = value
		})
		b.reply(msg.ChannelID, "Anti-spam", fmt.Sprintf("Spam window set to %d ms.", value), colorAction, nil)
	default:
		b.reply(msg.ChannelID, "Anti-spam", "Usage: antispam on|off | max <n> | window <ms>", colorError, nil)
	}
}

func (b *Bot) cmdWordFilter(ctx context.Context, msg *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		b.reply(msg.ChannelID, "Word filter", "Usage: wordfilter on|off | add <word> | remove <word> | list", colorError, nil)
		return
	}
	switch strings.ToLower(args[0]) {
	case "on", "off":
		enabled := strings.ToLower(args[0]) == "on"
		b.cfgs.Set(ctx, msg.GuildID, func(cfg *guildcfg.GuildConfig) {
			cfg.WordFilter.Enabled = enabled
		})
		b.reply(msg.ChannelID, "Word filter", "Word filter is now "+onOff(enabled)+".", colorAction, nil)
	case "add":
		if len(args) < 2 {
			b.reply(msg.ChannelID, "Word filter", "Usage: wordfilter add <word>", colorError, nil)
			return
		}
		word := strings.ToLower(args[1])
		b.cfgs.Set(ctx, msg.GuildID, func(cfg *guildcfg.GuildConfig) {
			for _, existing := range cfg.WordFilter.BannedWords {
				if existing == word {
					return
				}
			}
			cfg.WordFilter.BannedWords = append(cfg.WordFilter.BannedWords, word)
		})
		b.reply(msg.ChannelID, "Word filter", "Word added.", colorAction, nil)
	case "remove":
		if len(args) < 2 {
			b.reply(msg.ChannelID, "Word filter", "Usage: wordfilter remove <word>", colorError, nil)
			return
		}
		word := strings.ToLower(args[1])
		b.cfgs.Set(ctx, msg.GuildID, func(cfg *guildcfg.GuildConfig) {
			kept := cfg.WordFilter.BannedWords[:0]
			for _, existing := range cfg.WordFilter.BannedWords {
				if existing != word {
					kept = append(kept, existing)
				}
			}
			cfg.WordFilter.BannedWords = kept
		})
		b.reply(msg.ChannelID, "Word filter", "Word removed.", colorAction, nil)
	case "list":
		cfg := b.cfgs.Get(ctx, msg.GuildID)
		value := "none"
		if len(cfg.WordFilter.BannedWords) > 0 {
			value = strings.Join(cfg.WordFilter.BannedWords, ", ")
		}
		fields := []*discordgo.MessageEmbedField{{Name: "Banned words", Value: value, Inline: false}}
		b.reply(msg.ChannelID, "Word filter", "Current banned words.", colorAction, fields)
	default:
		b.reply(msg.ChannelID, "Word filter", "Usage: wordfilter on|off | add <word> | remove <word> | list", colorError, nil)
	}
}

func (b *Bot) cmdSafeMode(ctx context.Context, msg *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		b.reply(msg.ChannelID, "Safe mode", "Usage: safemode on|off|status", colorError, nil)
		return
	}
	switch strings.ToLower(args[0]) {
	case "on":
		if b.safemode.Activate(ctx, msg.GuildID) {
			b.reply(msg.ChannelID, "Safe mode", "Safe mode engaged. Dangerous role permissions stripped, channels throttled.", colorWarning, nil)
		} else {
			b.reply(msg.ChannelID, "Safe mode", "Safe mode is already active.", colorAction, nil)
		}
	case "off":
		if b.safemode.Deactivate(ctx, msg.GuildID) {
			b.reply(msg.ChannelID, "Safe mode", "Safe mode lifted. Stripped permissions must be restored manually.", colorAction, nil)
		} else {
			b.reply(msg.ChannelID, "Safe mode", "Safe mode is not active.", colorAction, nil)
		}
	case "status":
		status := "normal"
		if b.safemode.Active(ctx, msg.GuildID) {
			status = "safe mode"
		}
		b.reply(msg.ChannelID, "Safe mode", "Current state: "+status+".", colorAction, nil)
	default:
		b.reply(msg.ChannelID, "Safe mode", "Usage: safemode on|off|status", colorError, nil)
	}
}

func (b *Bot) cmdModLog(ctx context.Context, msg *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		b.reply(msg.ChannelID, "Mod log", "Usage: modlog set <#channel> | clear | recent", colorError, nil)
		return
	}
	switch strings.ToLower(args[0]) {
	case "set":
		if len(args) < 2 {
			b.reply(msg.ChannelID, "Mod log", "Usage: modlog set <#channel>", colorError, nil)
			return
		}
		channelID := parseChannelMention(args[1])
		if channelID == "" {
			b.reply(msg.ChannelID, "Mod log", "That does not look like a channel.", colorError, nil)
			return
		}
		b.cfgs.Set(ctx, msg.GuildID, func(cfg *guildcfg.GuildConfig) {
			cfg.ModLogChannel = channelID
		})
		b.reply(msg.ChannelID, "Mod log", "Moderation log channel set to <#"+channelID+">.", colorAction, nil)
	case "clear":
		b.cfgs.Set(ctx, msg.GuildID, func(cfg *guildcfg.GuildConfig) {
			cfg.ModLogChannel = ""
		})
		b.reply(msg.ChannelID, "Mod log", "Moderation log channel cleared.", colorAction, nil)
	case "recent":
		actions, err := b.modlog.Recent(ctx, msg.GuildID, time.Now().Add(-24*time.Hour))
		if err != nil {
			b.logger.Warn("mod log query failed", zap.String("guild_id", msg.GuildID), zap.Error(err))
			b.reply(msg.ChannelID, "Mod log", "Could not load recent actions.", colorError, nil)
			return
		}
		if len(actions) == 0 {
			b.reply(msg.ChannelID, "Mod log", "No actions in the last 24 hours.", colorAction, nil)
			return
		}
		lines := make([]string, 0, len(actions))
		for i, action := range actions {
			if i == 10 {
				break
			}
			lines = append(lines, fmt.Sprintf("`%s` %s %s", action.CreatedAt.Format("15:04"), action.Action, action.Details))
		}
		b.reply(msg.ChannelID, "Mod log", strings.Join(lines, "\n"), colorAction, nil)
	default:
		b.reply(msg.ChannelID, "Mod log", "Usage: modlog set <#channel> | clear | recent", colorError, nil)
	}
}

func (b *Bot) cmdLeveling(ctx context.Context, msg *discordgo.MessageCreate, args []string) {
	enabled, ok := parseToggle(args)
	if !ok {
		b.reply(msg.ChannelID, "Leveling", "Usage: leveling on|off", colorError, nil)
		return
	}
	b.cfgs.Set(ctx, msg.GuildID, func(cfg *guildcfg.GuildConfig) {
		cfg.LevelingEnabled = enabled
	})
	b.reply(msg.ChannelID, "Leveling", "Leveling is now "+onOff(enabled)+".", colorAction, nil)
}

func (b *Bot) cmdConfig(ctx context.Context, msg *discordgo.MessageCreate) {
	cfg := b.cfgs.Get(ctx, msg.GuildID)
	modLog := "not set"
	if cfg.ModLogChannel != "" {
		modLog = "<#" + cfg.ModLogChannel + ">"
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Prefix", Value: "`" + cfg.Prefix + "`", Inline: true},
		{Name: "Anti-link", Value: onOff(cfg.AntiLink), Inline: true},
		{Name: "Anti-spam", Value: fmt.Sprintf("%s (%d/%dms)", onOff(cfg.AntiSpam.Enabled), cfg.AntiSpam.Max, cfg.AntiSpam.WindowMS), Inline: true},
		{Name: "Word filter", Value: fmt.Sprintf("%s (%d words)", onOff(cfg.WordFilter.Enabled), len(cfg.WordFilter.BannedWords)), Inline: true},
		{Name: "Safe mode", Value: fmt.Sprintf("%t", cfg.NukeMode), Inline: true},
		{Name: "Leveling", Value: onOff(cfg.LevelingEnabled), Inline: true},
		{Name: "Mod log", Value: modLog, Inline: true},
	}
	b.reply(msg.ChannelID, "Guild configuration", "Current settings.", colorAction, fields)
}

func (b *Bot) reply(channelID, title, description string, color int, fields []*discordgo.MessageEmbedField) {
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
	if _, err := b.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
		b.logger.Debug("reply failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

func parseToggle(args []string) (bool, bool) {
	if len(args) == 0 {
		return false, false
	}
	switch strings.ToLower(args[0]) {
	case "on":
		return true, true
	case "off":
		return false, true
	default:
		return false, false
	}
}

func parsePositiveInt(args []string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("missing value")
	}
	value, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, err
	}
	if value <= 0 {
		return 0, fmt.Errorf("value must be positive")
	}
	return value, nil
}

func parseChannelMention(arg string) string {
	arg = strings.TrimPrefix(arg, "<#")
	arg = strings.TrimSuffix(arg, ">")
	if arg == "" {
		return ""
	}
	for _, r := range arg {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return arg
}
