package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

// ModAction is one row of the moderation log.
type ModAction struct {
	ID        int64
	GuildID   string
	UserID    string
	Action    string
	Reason    string
	Details   string
	CreatedAt time.Time
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

// GetGuildConfig returns the raw config document for a guild, or nil when
// the guild has no record yet.
func (s *Store) GetGuildConfig(ctx context.Context, guildID string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx, `SELECT config FROM guild_configs WHERE guild_id = ?`, guildID)

	var doc string
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return []byte(doc), nil
}

func (s *Store) UpsertGuildConfig(ctx context.Context, guildID string, doc []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_configs (guild_id, config) VALUES (?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET config = excluded.config
	`, guildID, string(doc))
	return err
}

func (s *Store) DeleteGuildConfig(ctx context.Context, guildID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM guild_configs WHERE guild_id = ?`, guildID)
	return err
}

func (s *Store) AddModAction(ctx context.Context, action ModAction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mod_actions (guild_id, user_id, action, reason, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, action.GuildID, action.UserID, action.Action, action.Reason, action.Details, action.CreatedAt.Unix())
	return err
}

func (s *Store) ListModActions(ctx context.Context, guildID string, since time.Time) ([]ModAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, action, reason, details, created_at
		FROM mod_actions
		WHERE guild_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`, guildID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []ModAction
	for rows.Next() {
		var action ModAction
		var created int64
		if err := rows.Scan(&action.ID, &action.GuildID, &action.UserID, &action.Action, &action.Reason, &action.Details, &created); err != nil {
			return nil, err
		}
		action.CreatedAt = time.Unix(created, 0)
		actions = append(actions, action)
	}
	return actions, rows.Err()
}

func (s *Store) CleanupModActions(ctx context.Context, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	_, err := s.db.ExecContext(ctx, `DELETE FROM mod_actions WHERE created_at < ?`, cutoff.Unix())
	return err
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
