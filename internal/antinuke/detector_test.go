package antinuke

import (
	"context"
	"testing"
	"time"

	"wardbot/internal/guildcfg"

	"go.uber.org/zap"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

// fakeGuard plays both the config source and the activator: once
// activated, the guild reads as being in safe mode, mirroring the real
// controller writing the nukemode flag.
type fakeGuard struct {
	active      map[string]bool
	activations int
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{active: make(map[string]bool)}
}

func (f *fakeGuard) Get(ctx context.Context, guildID string) guildcfg.GuildConfig {
	cfg := guildcfg.Default()
	cfg.NukeMode = f.active[guildID]
	return cfg
}

func (f *fakeGuard) Activate(ctx context.Context, guildID string) bool {
	if f.active[guildID] {
		return false
	}
	f.active[guildID] = true
	f.activations++
	return true
}

func newDetector(guard *fakeGuard, clock *fakeClock) *Detector {
	d := NewDetector(DefaultWindow, DefaultThresholds(), guard, guard, zap.NewNop())
	d.WithClock(clock)
	return d
}

func TestBelowThresholdNeverActivates(t *testing.T) {
	guard := newFakeGuard()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	d := newDetector(guard, clock)
	ctx := context.Background()

	d.HandleEvent(ctx, "g1", KindChannelDelete)
	d.HandleEvent(ctx, "g1", KindChannelDelete)
	if guard.activations != 0 {
		t.Fatalf("activated below threshold")
	}
}

func TestThresholdActivatesOnce(t *testing.T) {
	guard := newFakeGuard()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	d := newDetector(guard, clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d.HandleEvent(ctx, "g1", KindChannelDelete)
		clock.Advance(time.Second)
	}
	if guard.activations != 1 {
		t.Fatalf("expected exactly one activation, got %d", guard.activations)
	}

	// A 4th deletion shortly after must not re-trigger.
	clock.Advance(2 * time.Second)
	d.HandleEvent(ctx, "g1", KindChannelDelete)
	if guard.activations != 1 {
		t.Fatalf("re-activated while already in safe mode")
	}
}

func TestKindsAreIndependent(t *testing.T) {
	guard := newFakeGuard()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	d := newDetector(guard, clock)
	ctx := context.Background()

	d.HandleEvent(ctx, "g1", KindChannelDelete)
	d.HandleEvent(ctx, "g1", KindRoleDelete)
	d.HandleEvent(ctx, "g1", KindBanAdd)
	d.HandleEvent(ctx, "g1", KindChannelDelete)
	d.HandleEvent(ctx, "g1", KindRoleDelete)
	d.HandleEvent(ctx, "g1", KindBanAdd)
	if guard.activations != 0 {
		t.Fatalf("kinds were combined: %d activations", guard.activations)
	}

	d.HandleEvent(ctx, "g1", KindBanAdd)
	if guard.activations != 1 {
		t.Fatalf("third ban should activate, got %d", guard.activations)
	}
}

func TestEventsOutsideWindowExpire(t *testing.T) {
	guard := newFakeGuard()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	d := newDetector(guard, clock)
	ctx := context.Background()

	d.HandleEvent(ctx, "g1", KindRoleDelete)
	d.HandleEvent(ctx, "g1", KindRoleDelete)
	clock.Advance(11 * time.Second)
	d.HandleEvent(ctx, "g1", KindRoleDelete)
	if guard.activations != 0 {
		t.Fatalf("stale events counted toward threshold")
	}
}

func TestGuildsAreIsolated(t *testing.T) {
	guard := newFakeGuard()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	d := newDetector(guard, clock)
	ctx := context.Background()

	d.HandleEvent(ctx, "g1", KindChannelDelete)
	d.HandleEvent(ctx, "g1", KindChannelDelete)
	d.HandleEvent(ctx, "g2", KindChannelDelete)
	if guard.activations != 0 {
		t.Fatalf("events leaked across guilds")
	}
}
