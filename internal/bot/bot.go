package bot

import (
	"context"
	"time"

	"wardbot/internal/antinuke"
	"wardbot/internal/automod"
	"wardbot/internal/config"
	"wardbot/internal/guildcfg"
	"wardbot/internal/modlog"
	"wardbot/internal/safemode"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	colorAction  = 0xF59E0B
	colorWarning = 0xEF4444
	colorError   = 0xF97316
)

type Bot struct {
	cfg      config.Config
	logger   *zap.Logger
	cfgs     *guildcfg.Store
	safemode *safemode.Controller
	detector *antinuke.Detector
	automod  *automod.Pipeline
	modlog   *modlog.Logger
	session  *discordgo.Session
}

func New(cfg config.Config, logger *zap.Logger, cfgs *guildcfg.Store, modLogger *modlog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsMessageContent

	b := &Bot{
		cfg:     cfg,
		logger:  logger,
		cfgs:    cfgs,
		modlog:  modLogger,
		session: session,
	}

	platform := &sessionPlatform{session: session}
	b.safemode = safemode.NewController(cfgs, platform, modLogger, logger)
	b.detector = antinuke.NewDetector(
		time.Duration(cfg.Detection.WindowSeconds)*time.Second,
		antinuke.Thresholds{
			ChannelDeletes: cfg.Detection.ChannelDeletes,
			RoleDeletes:    cfg.Detection.RoleDeletes,
			Bans:           cfg.Detection.Bans,
		},
		cfgs, b.safemode, logger)
	b.automod = automod.NewPipeline(cfgs, platform, modLogger, logger)

	modLogger.SetNotifier(b.notifyModLog)

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onChannelDelete)
	b.session.AddHandler(b.onRoleDelete)
	b.session.AddHandler(b.onGuildBanAdd)
	b.session.AddHandler(b.onGuildDelete)

	return b.session.Open()
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
}

// recoverHandler is the top-level dispatch boundary: a panic while
// handling one event is logged and dropped, never fatal.
func (b *Bot) recoverHandler(event string) {
	if r := recover(); r != nil {
		b.logger.Error("event handler panicked", zap.String("event", event), zap.Any("panic", r))
	}
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	defer b.recoverHandler("message_create")

	if msg.Author == nil || msg.Author.Bot || msg.GuildID == "" {
		return
	}

	ctx := context.Background()
	cfg := b.cfgs.Get(ctx, msg.GuildID)

	if handled := b.handleCommand(ctx, session, msg, cfg); handled {
		return
	}

	b.automod.HandleMessage(ctx, automod.Message{
		GuildID:          msg.GuildID,
		ChannelID:        msg.ChannelID,
		MessageID:        msg.ID,
		AuthorID:         msg.Author.ID,
		Content:          msg.Content,
		AuthorTimedOut:   b.memberTimedOut(msg.Member),
		AuthorManageable: b.canModerate(msg.GuildID, msg.Author.ID),
	})
}

func (b *Bot) onChannelDelete(session *discordgo.Session, event *discordgo.ChannelDelete) {
	defer b.recoverHandler("channel_delete")
	if event.Channel == nil || event.Channel.GuildID == "" {
		return
	}
	b.detector.HandleEvent(context.Background(), event.Channel.GuildID, antinuke.KindChannelDelete)
}

func (b *Bot) onRoleDelete(session *discordgo.Session, event *discordgo.GuildRoleDelete) {
	defer b.recoverHandler("role_delete")
	if event.GuildID == "" {
		return
	}
	b.detector.HandleEvent(context.Background(), event.GuildID, antinuke.KindRoleDelete)
}

func (b *Bot) onGuildBanAdd(session *discordgo.Session, event *discordgo.GuildBanAdd) {
	defer b.recoverHandler("guild_ban_add")
	if event.GuildID == "" {
		return
	}
	b.detector.HandleEvent(context.Background(), event.GuildID, antinuke.KindBanAdd)
}

func (b *Bot) onGuildDelete(session *discordgo.Session, event *discordgo.GuildDelete) {
	defer b.recoverHandler("guild_delete")
	if event.Guild == nil || event.Guild.ID == "" {
		return
	}
	// Unavailable means an outage, not a removal.
	if event.Unavailable {
		return
	}
	b.cfgs.Drop(context.Background(), event.Guild.ID)
	b.logger.Info("guild removed, config dropped", zap.String("guild_id", event.Guild.ID))
}

func (b *Bot) notifyModLog(ctx context.Context, entry modlog.Entry) {
	cfg := b.cfgs.Get(ctx, entry.GuildID)
	if cfg.ModLogChannel == "" {
		return
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Action", Value: entry.Action, Inline: true},
	}
	if entry.UserID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "User", Value: "<@" + entry.UserID + ">", Inline: true})
	}
	if entry.Details != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Details", Value: entry.Details, Inline: false})
	}
	embed := &discordgo.MessageEmbed{
		Title:       "Moderation",
		Description: entry.Reason,
		Color:       colorWarning,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
	if _, err := b.session.ChannelMessageSendEmbed(cfg.ModLogChannel, embed); err != nil {
		b.logger.Debug("mod log notify failed", zap.String("guild_id", entry.GuildID), zap.Error(err))
	}
}

func (b *Bot) memberTimedOut(member *discordgo.Member) bool {
	if member == nil || member.CommunicationDisabledUntil == nil {
		return false
	}
	return member.CommunicationDisabledUntil.After(time.Now())
}

// canModerate reports whether the agent outranks the user: not the guild
// owner, and the user's top role sits below the agent's.
func (b *Bot) canModerate(guildID, userID string) bool {
	guild := b.guild(guildID)
	if guild == nil {
		return false
	}
	if guild.OwnerID == userID {
		return false
	}

	member := b.member(guildID, userID)
	if member == nil {
		return false
	}
	agent := b.member(guildID, b.session.State.User.ID)
	if agent == nil {
		return false
	}
	return topRolePosition(guild, agent) > topRolePosition(guild, member)
}

func (b *Bot) guild(guildID string) *discordgo.Guild {
	guild, err := b.session.State.Guild(guildID)
	if err == nil && guild != nil {
		return guild
	}
	guild, _ = b.session.Guild(guildID)
	return guild
}

func (b *Bot) member(guildID, userID string) *discordgo.Member {
	member, err := b.session.State.Member(guildID, userID)
	if err == nil && member != nil {
		return member
	}
	member, _ = b.session.GuildMember(guildID, userID)
	return member
}

func topRolePosition(guild *discordgo.Guild, member *discordgo.Member) int {
	roleMap := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		roleMap[role.ID] = role
	}
	top := 0
	for _, roleID := range member.Roles {
		if role := roleMap[roleID]; role != nil && role.Position > top {
			top = role.Position
		}
	}
	return top
}

func memberPermissions(guild *discordgo.Guild, member *discordgo.Member) int64 {
	if guild == nil || member == nil {
		return 0
	}
	perms := int64(0)
	for _, role := range guild.Roles {
		if role.ID == guild.ID {
			perms |= role.Permissions
			break
		}
	}
	roleMap := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		roleMap[role.ID] = role
	}
	for _, roleID := range member.Roles {
		if role := roleMap[roleID]; role != nil {
			perms |= role.Permissions
		}
	}
	return perms
}
