package storage

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestGuildConfigRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc, err := store.GetGuildConfig(ctx, "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc != nil {
		t.Fatalf("expected nil for missing guild, got %q", doc)
	}

	if err := store.UpsertGuildConfig(ctx, "g1", []byte(`{"prefix":"!"}`)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.UpsertGuildConfig(ctx, "g2", []byte(`{"prefix":"?"}`)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.UpsertGuildConfig(ctx, "g1", []byte(`{"prefix":".."}`)); err != nil {
		t.Fatalf("update: %v", err)
	}

	doc, err = store.GetGuildConfig(ctx, "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(doc) != `{"prefix":".."}` {
		t.Fatalf("expected updated document, got %q", doc)
	}

	// Writing g1 must not disturb g2.
	doc, err = store.GetGuildConfig(ctx, "g2")
	if err != nil {
		t.Fatalf("get g2: %v", err)
	}
	if string(doc) != `{"prefix":"?"}` {
		t.Fatalf("unrelated guild mutated: %q", doc)
	}
}

func TestDeleteGuildConfig(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.DeleteGuildConfig(ctx, "missing"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}

	_ = store.UpsertGuildConfig(ctx, "g1", []byte(`{}`))
	if err := store.DeleteGuildConfig(ctx, "g1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	doc, err := store.GetGuildConfig(ctx, "g1")
	if err != nil || doc != nil {
		t.Fatalf("expected guild gone, got %q err %v", doc, err)
	}
}

func TestModActions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	entry := ModAction{GuildID: "g1", UserID: "u1", Action: "automod_delete", Reason: "antilink", Details: "host=evil.net", CreatedAt: now}
	if err := store.AddModAction(ctx, entry); err != nil {
		t.Fatalf("add: %v", err)
	}

	actions, err := store.ListModActions(ctx, "g1", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(actions) != 1 || actions[0].Action != "automod_delete" {
		t.Fatalf("unexpected actions: %+v", actions)
	}

	actions, err = store.ListModActions(ctx, "g2", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("list g2: %v", err)
	}
	if len(actions) != 0 {
		t.Fatalf("expected no actions for other guild, got %d", len(actions))
	}
}
