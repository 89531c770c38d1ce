// Package antinuke watches destructive guild events and triggers safe
// mode when any event kind bursts past its threshold inside the detection
// window.
package antinuke

import (
	"context"
	"time"

	"wardbot/internal/guildcfg"
	"wardbot/internal/window"

	"go.uber.org/zap"
)

// EventKind is the closed set of destructive events the detector tracks.
type EventKind int

const (
	KindChannelDelete EventKind = iota
	KindRoleDelete
	KindBanAdd
)

func (k EventKind) String() string {
	switch k {
	case KindChannelDelete:
		return "channel_delete"
	case KindRoleDelete:
		return "role_delete"
	case KindBanAdd:
		return "ban_add"
	default:
		return "unknown"
	}
}

// Thresholds holds the per-kind event counts that trip detection.
// Any single threshold tripping is sufficient; they are never combined.
type Thresholds struct {
	ChannelDeletes int
	RoleDeletes    int
	Bans           int
}

func DefaultThresholds() Thresholds {
	return Thresholds{ChannelDeletes: 3, RoleDeletes: 3, Bans: 3}
}

func (t Thresholds) forKind(kind EventKind) int {
	switch kind {
	case KindChannelDelete:
		return t.ChannelDeletes
	case KindRoleDelete:
		return t.RoleDeletes
	case KindBanAdd:
		return t.Bans
	default:
		return 0
	}
}

// DefaultWindow is the detection window for destructive bursts.
const DefaultWindow = 10 * time.Second

// Activator is the safe-mode entry point the detector fires. Activation
// must be idempotent; the detector may call it redundantly under
// interleaved events.
type Activator interface {
	Activate(ctx context.Context, guildID string) bool
}

// ConfigSource yields the guild config the detector consults for the
// current safe-mode flag.
type ConfigSource interface {
	Get(ctx context.Context, guildID string) guildcfg.GuildConfig
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Detector struct {
	windows    *window.Keyed
	thresholds Thresholds
	cfgs       ConfigSource
	safemode   Activator
	logger     *zap.Logger
	clock      Clock
}

func NewDetector(windowSize time.Duration, thresholds Thresholds, cfgs ConfigSource, activator Activator, logger *zap.Logger) *Detector {
	if windowSize <= 0 {
		windowSize = DefaultWindow
	}
	return &Detector{
		windows:    window.NewKeyed(windowSize),
		thresholds: thresholds,
		cfgs:       cfgs,
		safemode:   activator,
		logger:     logger,
		clock:      realClock{},
	}
}

func (d *Detector) WithClock(clock Clock) {
	d.clock = clock
}

// HandleEvent records one destructive event and re-evaluates the guild's
// threshold for that kind. Detection latency is bounded by event arrival;
// there is no polling.
func (d *Detector) HandleEvent(ctx context.Context, guildID string, kind EventKind) {
	count := d.windows.Add(guildID+":"+kind.String(), d.clock.Now())

	threshold := d.thresholds.forKind(kind)
	if threshold <= 0 || count < threshold {
		return
	}
	if d.cfgs.Get(ctx, guildID).NukeMode {
		return
	}

	d.logger.Warn("destructive burst detected",
		zap.String("guild_id", guildID),
		zap.String("kind", kind.String()),
		zap.Int("count", count),
		zap.Int("threshold", threshold))
	d.safemode.Activate(ctx, guildID)
}
