package audit

import (
	"context"
	"time"

	"afkwarden/internal/storage"

	"go.uber.org/zap"
)

const (
	ActionDisconnect = "afk_disconnect"
	ActionRelocate   = "idle_relocate"
)

// Logger records enforcement actions durably and mirrors them to the
// structured log. Storage failures are swallowed; losing a trail entry must
// never break event handling.
type Logger struct {
	store  *storage.Store
	logger *zap.Logger
}

func NewLogger(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

func (l *Logger) Log(ctx context.Context, guildID, userID, kind, detail string) {
	if l.store != nil {
		err := l.store.AddAction(ctx, storage.ActionRecord{
			GuildID:   guildID,
			UserID:    userID,
			Kind:      kind,
			Detail:    detail,
			CreatedAt: time.Now(),
		})
		if err != nil {
			l.logger.Warn("action record failed", zap.Error(err))
		}
	}
	l.logger.Info("action", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.String("kind", kind), zap.String("detail", detail))
}
