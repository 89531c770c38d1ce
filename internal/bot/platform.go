package bot

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// sessionPlatform adapts the discordgo session to the narrow platform
// interfaces the safety engine consumes.
type sessionPlatform struct {
	session *discordgo.Session
}

// EditableRoles returns the guild's non-managed editability candidates:
// every role positioned below the agent's own top role.
func (p *sessionPlatform) EditableRoles(guildID string) ([]*discordgo.Role, error) {
	roles, err := p.session.GuildRoles(guildID)
	if err != nil {
		return nil, err
	}

	agentTop := 0
	if agent, err := p.session.State.Member(guildID, p.session.State.User.ID); err == nil && agent != nil {
		roleMap := make(map[string]*discordgo.Role, len(roles))
		for _, role := range roles {
			roleMap[role.ID] = role
		}
		for _, roleID := range agent.Roles {
			if role := roleMap[roleID]; role != nil && role.Position > agentTop {
				agentTop = role.Position
			}
		}
	}

	editable := make([]*discordgo.Role, 0, len(roles))
	for _, role := range roles {
		if role.Position < agentTop {
			editable = append(editable, role)
		}
	}
	return editable, nil
}

func (p *sessionPlatform) SetRolePermissions(guildID, roleID string, permissions int64) error {
	_, err := p.session.GuildRoleEdit(guildID, roleID, &discordgo.RoleParams{Permissions: &permissions})
	return err
}

func (p *sessionPlatform) TextChannels(guildID string) ([]*discordgo.Channel, error) {
	channels, err := p.session.GuildChannels(guildID)
	if err != nil {
		return nil, err
	}
	text := make([]*discordgo.Channel, 0, len(channels))
	for _, channel := range channels {
		if channel == nil {
			continue
		}
		if channel.Type != discordgo.ChannelTypeGuildText && channel.Type != discordgo.ChannelTypeGuildNews {
			continue
		}
		text = append(text, channel)
	}
	return text, nil
}

func (p *sessionPlatform) SetChannelSlowmode(channelID string, seconds int) error {
	_, err := p.session.ChannelEditComplex(channelID, &discordgo.ChannelEdit{RateLimitPerUser: &seconds})
	return err
}

func (p *sessionPlatform) DeleteMessage(channelID, messageID string) error {
	return p.session.ChannelMessageDelete(channelID, messageID)
}

// PostTransient sends a warning and removes it after the TTL. Removal is
// scheduled in-process; a restart simply leaves the warning in place.
func (p *sessionPlatform) PostTransient(channelID, content string, ttl time.Duration) error {
	msg, err := p.session.ChannelMessageSend(channelID, content)
	if err != nil {
		return err
	}
	time.AfterFunc(ttl, func() {
		_ = p.session.ChannelMessageDelete(channelID, msg.ID)
	})
	return nil
}

func (p *sessionPlatform) TimeoutMember(guildID, userID string, duration time.Duration, reason string) error {
	_ = reason // discord's timeout endpoint takes no reason
	until := time.Now().Add(duration)
	return p.session.GuildMemberTimeout(guildID, userID, &until)
}
