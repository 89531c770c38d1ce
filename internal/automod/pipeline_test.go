package automod

import (
	"context"
	"fmt"
	"testing"
	"time"

	"wardbot/internal/guildcfg"
	"wardbot/internal/modlog"

	"go.uber.org/zap"
)

type fakePlatform struct {
	deleted  []string
	warnings []string
	timeouts []string
}

func (p *fakePlatform) DeleteMessage(channelID, messageID string) error {
	p.deleted = append(p.deleted, messageID)
	return nil
}

func (p *fakePlatform) PostTransient(channelID, content string, ttl time.Duration) error {
	p.warnings = append(p.warnings, content)
	return nil
}

func (p *fakePlatform) TimeoutMember(guildID, userID string, duration time.Duration, reason string) error {
	p.timeouts = append(p.timeouts, userID)
	return nil
}

type fakeConfigs struct {
	cfg guildcfg.GuildConfig
}

func (f *fakeConfigs) Get(ctx context.Context, guildID string) guildcfg.GuildConfig {
	return f.cfg
}

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

type recordingSink struct {
	entries []modlog.Entry
}

func (s *recordingSink) Record(ctx context.Context, entry modlog.Entry) {
	s.entries = append(s.entries, entry)
}

func newPipeline(cfg guildcfg.GuildConfig) (*Pipeline, *fakePlatform, *fakeClock, *recordingSink) {
	platform := &fakePlatform{}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	sink := &recordingSink{}
	p := NewPipeline(&fakeConfigs{cfg: cfg}, platform, sink, zap.NewNop())
	p.WithClock(clock)
	return p, platform, clock, sink
}

func message(id, content string) Message {
	return Message{
		GuildID:          "g1",
		ChannelID:        "c1",
		MessageID:        id,
		AuthorID:         "u1",
		Content:          content,
		AuthorManageable: true,
	}
}

func TestCleanMessagePassesThrough(t *testing.T) {
	cfg := guildcfg.Default()
	cfg.AntiLink = true
	cfg.WordFilter.Enabled = true
	cfg.WordFilter.BannedWords = []string{"badword"}
	p, platform, _, _ := newPipeline(cfg)

	result := p.HandleMessage(context.Background(), message("1", "hello there"))
	if result.Verdict != VerdictAllow {
		t.Fatalf("expected allow, got %v", result)
	}
	if len(platform.deleted) != 0 || len(platform.warnings) != 0 {
		t.Fatalf("side effects on clean message")
	}
}

func TestLinkFilterBlocksUnsafeDomain(t *testing.T) {
	cfg := guildcfg.Default()
	cfg.AntiLink = true
	p, platform, _, sink := newPipeline(cfg)

	result := p.HandleMessage(context.Background(), message("1", "grab loot at http://evil-discord.com/x"))
	if result.Verdict != VerdictDeleteWarn || result.Rule != "antilink" {
		t.Fatalf("expected antilink verdict, got %+v", result)
	}
	if len(platform.deleted) != 1 || len(platform.warnings) != 1 {
		t.Fatalf("expected delete+warn, got %+v", platform)
	}
	if len(sink.entries) != 1 || sink.entries[0].Action != "automod_antilink" {
		t.Fatalf("expected mod log entry, got %+v", sink.entries)
	}
}

func TestLinkFilterAllowsKnownDomains(t *testing.T) {
	cfg := guildcfg.Default()
	cfg.AntiLink = true
	p, _, _, _ := newPipeline(cfg)

	for _, content := range []string{
		"http://discord.com/invite/x",
		"https://sub.discord.com/x",
		"https://www.youtube.com/watch?v=y",
	} {
		if result := p.HandleMessage(context.Background(), message("1", content)); result.Verdict != VerdictAllow {
			t.Fatalf("%q should be safe, got %+v", content, result)
		}
	}
}

func TestLinkFilterDisabledIgnoresLinks(t *testing.T) {
	cfg := guildcfg.Default()
	p, _, _, _ := newPipeline(cfg)

	if result := p.HandleMessage(context.Background(), message("1", "http://evil.net")); result.Verdict != VerdictAllow {
		t.Fatalf("antilink disabled but message blocked: %+v", result)
	}
}

func TestWordFilter(t *testing.T) {
	cfg := guildcfg.Default()
	cfg.WordFilter.Enabled = true
	cfg.WordFilter.BannedWords = []string{"BadWord"}
	p, platform, _, _ := newPipeline(cfg)

	result := p.HandleMessage(context.Background(), message("1", "you are a BADWORD okay"))
	if result.Verdict != VerdictDeleteWarn || result.Rule != "wordfilter" {
		t.Fatalf("expected word filter match, got %+v", result)
	}
	if len(platform.timeouts) != 0 {
		t.Fatalf("word filter must not time out")
	}
}

func TestLinkFilterWinsOverWordFilter(t *testing.T) {
	cfg := guildcfg.Default()
	cfg.AntiLink = true
	cfg.WordFilter.Enabled = true
	cfg.WordFilter.BannedWords = []string{"badword"}
	p, _, _, _ := newPipeline(cfg)

	result := p.HandleMessage(context.Background(), message("1", "badword http://evil.net/x"))
	if result.Rule != "antilink" {
		t.Fatalf("filter order violated: %+v", result)
	}
}

func TestWordFilterWinsOverSpam(t *testing.T) {
	cfg := guildcfg.Default()
	cfg.WordFilter.Enabled = true
	cfg.WordFilter.BannedWords = []string{"badword"}
	p, _, _, _ := newPipeline(cfg)

	result := p.HandleMessage(context.Background(), message("1", "badword"))
	if result.Rule != "wordfilter" {
		t.Fatalf("expected word filter before spam, got %+v", result)
	}
}

func TestSpamScenario(t *testing.T) {
	cfg := guildcfg.Default() // max=5, window=10000ms
	p, platform, clock, _ := newPipeline(cfg)
	ctx := context.Background()

	// Six messages inside three seconds: the sixth trips the filter.
	for i := 1; i <= 5; i++ {
		result := p.HandleMessage(ctx, message(fmt.Sprintf("%d", i), "hi"))
		if result.Verdict != VerdictAllow {
			t.Fatalf("message %d should pass, got %+v", i, result)
		}
		clock.Advance(500 * time.Millisecond)
	}
	result := p.HandleMessage(ctx, message("6", "hi"))
	if result.Verdict != VerdictDeleteTimeout || result.Rule != "antispam" {
		t.Fatalf("sixth message should trip spam filter, got %+v", result)
	}
	if len(platform.deleted) != 1 || len(platform.timeouts) != 1 {
		t.Fatalf("expected delete+timeout, got %+v", platform)
	}

	// A message one minute later starts a fresh window.
	clock.Advance(time.Minute)
	if result := p.HandleMessage(ctx, message("7", "hi")); result.Verdict != VerdictAllow {
		t.Fatalf("cooldown elapsed but message blocked: %+v", result)
	}
}

func TestSpamSkipsTimeoutWhenAlreadyTimedOut(t *testing.T) {
	cfg := guildcfg.Default()
	cfg.AntiSpam.Max = 1
	p, platform, _, _ := newPipeline(cfg)
	ctx := context.Background()

	msg := message("1", "hi")
	msg.AuthorTimedOut = true
	p.HandleMessage(ctx, msg)
	msg.MessageID = "2"
	result := p.HandleMessage(ctx, msg)
	if result.Verdict != VerdictDeleteTimeout {
		t.Fatalf("expected spam verdict, got %+v", result)
	}
	if len(platform.timeouts) != 0 {
		t.Fatalf("timed-out author must not be timed out again")
	}
}

func TestSpamSkipsTimeoutWithoutStanding(t *testing.T) {
	cfg := guildcfg.Default()
	cfg.AntiSpam.Max = 1
	p, platform, _, _ := newPipeline(cfg)
	ctx := context.Background()

	msg := message("1", "hi")
	msg.AuthorManageable = false
	p.HandleMessage(ctx, msg)
	msg.MessageID = "2"
	p.HandleMessage(ctx, msg)
	if len(platform.timeouts) != 0 {
		t.Fatalf("agent lacks standing, timeout must be skipped")
	}
}
