// Package modlog records moderation actions. Every leg (structured log,
// storage row, channel notification) is best-effort: moderation never
// fails because the log did.
package modlog

import (
	"context"
	"time"

	"wardbot/internal/storage"

	"go.uber.org/zap"
)

type Entry struct {
	GuildID string
	UserID  string
	Action  string
	Reason  string
	Details string
}

// Sink is what the safety engine components report actions to.
type Sink interface {
	Record(ctx context.Context, entry Entry)
}

type Logger struct {
	store  *storage.Store
	logger *zap.Logger
	notify func(context.Context, Entry)
}

func NewLogger(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

// SetNotifier installs the outbound notification leg (posting to the
// guild's configured log channel); wired late to avoid a cycle with the
// session layer.
func (l *Logger) SetNotifier(notify func(context.Context, Entry)) {
	l.notify = notify
}

func (l *Logger) Record(ctx context.Context, entry Entry) {
	if l.store != nil {
		err := l.store.AddModAction(ctx, storage.ModAction{
			GuildID:   entry.GuildID,
			UserID:    entry.UserID,
			Action:    entry.Action,
			Reason:    entry.Reason,
			Details:   entry.Details,
			CreatedAt: time.Now(),
		})
		if err != nil {
			l.logger.Warn("mod action write failed", zap.Error(err))
		}
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("mod action",
		zap.String("guild_id", entry.GuildID),
		zap.String("user_id", entry.UserID),
		zap.String("action", entry.Action),
		zap.String("reason", entry.Reason),
		zap.String("details", entry.Details))
}

func (l *Logger) Recent(ctx context.Context, guildID string, since time.Time) ([]storage.ModAction, error) {
	if l.store == nil {
		return nil, nil
	}
	return l.store.ListModActions(ctx, guildID, since)
}
