// Package automod evaluates inbound messages against the guild's filters
// in a fixed order (links, then banned words, then spam rate), stopping
// at the first match. Side effects (delete, transient warning, timeout)
// are best-effort; a platform hiccup never cascades.
package automod

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wardbot/internal/guildcfg"
	"wardbot/internal/modlog"
	"wardbot/internal/safelinks"
	"wardbot/internal/window"

	"go.uber.org/zap"
)

type Verdict int

const (
	VerdictAllow Verdict = iota
	VerdictDeleteWarn
	VerdictDeleteTimeout
)

func (v Verdict) String() string {
	switch v {
	case VerdictDeleteWarn:
		return "delete_warn"
	case VerdictDeleteTimeout:
		return "delete_timeout"
	default:
		return "allow"
	}
}

type Result struct {
	Verdict Verdict
	Rule    string
	Detail  string
}

// Message carries the fields the pipeline needs, including the author's
// standing relative to the agent.
type Message struct {
	GuildID   string
	ChannelID string
	MessageID string
	AuthorID  string
	Content   string

	AuthorTimedOut   bool
	AuthorManageable bool
}

// Platform is the outbound surface for filter side effects.
type Platform interface {
	DeleteMessage(channelID, messageID string) error
	PostTransient(channelID, content string, ttl time.Duration) error
	TimeoutMember(guildID, userID string, duration time.Duration, reason string) error
}

type ConfigSource interface {
	Get(ctx context.Context, guildID string) guildcfg.GuildConfig
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

const (
	warningTTL      = 5 * time.Second
	timeoutDuration = 5 * time.Minute
)

type Pipeline struct {
	cfgs      ConfigSource
	platform  Platform
	sink      modlog.Sink
	logger    *zap.Logger
	clock     Clock
	spam      *window.Keyed
	allowlist []string
}

func NewPipeline(cfgs ConfigSource, platform Platform, sink modlog.Sink, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfgs:      cfgs,
		platform:  platform,
		sink:      sink,
		logger:    logger,
		clock:     realClock{},
		spam:      window.NewKeyed(10 * time.Second),
		allowlist: safelinks.DefaultAllowlist,
	}
}

func (p *Pipeline) WithClock(clock Clock) {
	p.clock = clock
}

// HandleMessage runs the filters in order and applies the first matching
// rule's side effects. Messages matching nothing pass through unchanged.
func (p *Pipeline) HandleMessage(ctx context.Context, msg Message) Result {
	cfg := p.cfgs.Get(ctx, msg.GuildID)

	if cfg.AntiLink {
		if result, matched := p.checkLinks(ctx, msg); matched {
			return result
		}
	}
	if cfg.WordFilter.Enabled && len(cfg.WordFilter.BannedWords) > 0 {
		if result, matched := p.checkWords(ctx, msg, cfg.WordFilter.BannedWords); matched {
			return result
		}
	}
	if cfg.AntiSpam.Enabled {
		if result, matched := p.checkSpam(ctx, msg, cfg.AntiSpam); matched {
			return result
		}
	}
	return Result{Verdict: VerdictAllow}
}

func (p *Pipeline) checkLinks(ctx context.Context, msg Message) (Result, bool) {
	for _, raw := range safelinks.ExtractURLs(msg.Content) {
		host, err := safelinks.Hostname(raw)
		if err == nil && safelinks.Allowed(host, p.allowlist) {
			continue
		}
		detail := host
		if detail == "" {
			detail = raw
		}
		p.deleteAndWarn(msg, fmt.Sprintf("<@%s>, that link is not allowed here.", msg.AuthorID))
		p.record(ctx, msg, "antilink", "unsafe link", "host="+detail)
		return Result{Verdict: VerdictDeleteWarn, Rule: "antilink", Detail: detail}, true
	}
	return Result{}, false
}

func (p *Pipeline) checkWords(ctx context.Context, msg Message, banned []string) (Result, bool) {
	content := strings.ToLower(msg.Content)
	for _, word := range banned {
		if word == "" || !strings.Contains(content, strings.ToLower(word)) {
			continue
		}
		p.deleteAndWarn(msg, fmt.Sprintf("<@%s>, watch your language.", msg.AuthorID))
		p.record(ctx, msg, "wordfilter", "banned word", "word="+word)
		return Result{Verdict: VerdictDeleteWarn, Rule: "wordfilter", Detail: word}, true
	}
	return Result{}, false
}

func (p *Pipeline) checkSpam(ctx context.Context, msg Message, cfg guildcfg.AntiSpam) (Result, bool) {
	windowSize := time.Duration(cfg.WindowMS) * time.Millisecond
	if windowSize <= 0 {
		windowSize = 10 * time.Second
	}
	key := msg.GuildID + ":" + msg.AuthorID
	count := p.spam.AddSized(key, windowSize, p.clock.Now())
	if cfg.Max <= 0 || count <= cfg.Max {
		return Result{}, false
	}

	if err := p.platform.DeleteMessage(msg.ChannelID, msg.MessageID); err != nil {
		p.logger.Debug("message delete failed", zap.String("guild_id", msg.GuildID), zap.Error(err))
	}
	if !msg.AuthorTimedOut && msg.AuthorManageable {
		if err := p.platform.TimeoutMember(msg.GuildID, msg.AuthorID, timeoutDuration, "message spam"); err != nil {
			p.logger.Debug("timeout failed", zap.String("guild_id", msg.GuildID), zap.String("user_id", msg.AuthorID), zap.Error(err))
		}
	}
	p.warn(msg, fmt.Sprintf("<@%s>, slow down.", msg.AuthorID))
	p.record(ctx, msg, "antispam", "message burst", fmt.Sprintf("count=%d max=%d window_ms=%d", count, cfg.Max, cfg.WindowMS))
	return Result{Verdict: VerdictDeleteTimeout, Rule: "antispam", Detail: fmt.Sprintf("%d messages", count)}, true
}

func (p *Pipeline) deleteAndWarn(msg Message, warning string) {
	if err := p.platform.DeleteMessage(msg.ChannelID, msg.MessageID); err != nil {
		p.logger.Debug("message delete failed", zap.String("guild_id", msg.GuildID), zap.Error(err))
	}
	p.warn(msg, warning)
}

func (p *Pipeline) warn(msg Message, warning string) {
	if err := p.platform.PostTransient(msg.ChannelID, warning, warningTTL); err != nil {
		p.logger.Debug("warning post failed", zap.String("guild_id", msg.GuildID), zap.Error(err))
	}
}

func (p *Pipeline) record(ctx context.Context, msg Message, rule, reason, details string) {
	if p.sink == nil {
		return
	}
	p.sink.Record(ctx, modlog.Entry{
		GuildID: msg.GuildID,
		UserID:  msg.AuthorID,
		Action:  "automod_" + rule,
		Reason:  reason,
		Details: details,
	})
}
