package guildcfg

import (
	"context"
	"encoding/json"

	"wardbot/internal/storage"

	"go.uber.org/zap"
)

type Store struct {
	storage *storage.Store
	logger  *zap.Logger
}

func NewStore(store *storage.Store, logger *zap.Logger) *Store {
	return &Store{storage: store, logger: logger}
}

// Get returns the guild's configuration with defaults applied. If the
// stored document was missing fields (or missing entirely), the repaired
// document is persisted before returning. Get never fails: on storage
// errors it falls back to pure defaults.
func (s *Store) Get(ctx context.Context, guildID string) GuildConfig {
	raw, err := s.storage.GetGuildConfig(ctx, guildID)
	if err != nil {
		s.logger.Warn("guild config read failed", zap.String("guild_id", guildID), zap.Error(err))
		return Default()
	}

	doc := map[string]any{}
	if raw != nil {
		if err := json.Unmarshal(raw, &doc); err != nil {
			s.logger.Warn("guild config corrupt, rebuilding", zap.String("guild_id", guildID), zap.Error(err))
			doc = map[string]any{}
		}
	}

	repaired := mergeDefaults(doc, defaultDoc())

	cfg := Default()
	if data, err := json.Marshal(doc); err == nil {
		// Type mismatches in individual fields keep their defaults.
		_ = json.Unmarshal(data, &cfg)
	}
	if cfg.Prefix == "" || len(cfg.Prefix) > MaxPrefixLen {
		cfg.Prefix = DefaultPrefix
		repaired = true
	}

	if raw == nil || repaired {
		s.persist(ctx, guildID, cfg)
	}
	return cfg
}

// Set applies the mutation and persists synchronously. A persistence
// failure is logged and swallowed: the mutated config is still returned so
// moderation never blocks on storage faults.
func (s *Store) Set(ctx context.Context, guildID string, mutate func(*GuildConfig)) GuildConfig {
	cfg := s.Get(ctx, guildID)
	mutate(&cfg)
	if cfg.Prefix == "" || len(cfg.Prefix) > MaxPrefixLen {
		cfg.Prefix = DefaultPrefix
	}
	s.persist(ctx, guildID, cfg)
	return cfg
}

// Drop removes the guild's configuration entirely. Missing guilds are not
// an error.
func (s *Store) Drop(ctx context.Context, guildID string) {
	if err := s.storage.DeleteGuildConfig(ctx, guildID); err != nil {
		s.logger.Warn("guild config drop failed", zap.String("guild_id", guildID), zap.Error(err))
	}
}

func (s *Store) persist(ctx context.Context, guildID string, cfg GuildConfig) {
	doc, err := json.Marshal(cfg)
	if err != nil {
		s.logger.Warn("guild config encode failed", zap.String("guild_id", guildID), zap.Error(err))
		return
	}
	if err := s.storage.UpsertGuildConfig(ctx, guildID, doc); err != nil {
		s.logger.Warn("guild config write failed", zap.String("guild_id", guildID), zap.Error(err))
	}
}
