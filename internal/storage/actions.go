package storage

import (
	"context"
	"time"
)

// ActionRecord is one enforcement action taken by the bot: an AFK disconnect
// or an idle relocation.
type ActionRecord struct {
	ID        int64
	GuildID   string
	UserID    string
	Kind      string
	Detail    string
	CreatedAt time.Time
}

func (s *Store) AddAction(ctx context.Context, rec ActionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (guild_id, user_id, kind, detail, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.GuildID, rec.UserID, rec.Kind, rec.Detail, rec.CreatedAt.Unix())
	return err
}

func (s *Store) ListActions(ctx context.Context, guildID string, since time.Time) ([]ActionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, kind, detail, created_at
		FROM actions
		WHERE guild_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`, guildID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ActionRecord
	for rows.Next() {
		var rec ActionRecord
		var created int64
		if err := rows.Scan(&rec.ID, &rec.GuildID, &rec.UserID, &rec.Kind, &rec.Detail, &created); err != nil {
			return nil, err
		}
		rec.CreatedAt = time.Unix(created, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}
