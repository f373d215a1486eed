package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrInvalidTimeout is returned when a patch carries a non-positive AFK timeout.
var ErrInvalidTimeout = errors.New("afk timeout must be a positive number of minutes")

type Store struct {
	db *sql.DB
}

// RoleRef is a role authorized to change a guild's configuration,
// with its display name cached at the time it was set.
type RoleRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type GuildConfig struct {
	GuildID        string
	ServerName     string
	AFKChannelID   string
	AFKChannelName string
	AllowedRoles   []RoleRef
	Language       string
	AFKTimeout     int
}

// GuildConfigPatch is a partial update. Nil fields are left untouched by
// UpsertGuildConfig; only fields explicitly set overwrite stored values.
type GuildConfigPatch struct {
	ServerName     *string
	AFKChannelID   *string
	AFKChannelName *string
	AllowedRoles   *[]RoleRef
	Language       *string
	AFKTimeout     *int
}

const (
	DefaultLanguage   = "en_us"
	DefaultAFKTimeout = 5
)

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

// GetGuildConfig returns the stored configuration for a guild. The second
// return value is false when the guild has never been configured.
func (s *Store) GetGuildConfig(ctx context.Context, guildID string) (GuildConfig, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT server_name, afk_channel_id, afk_channel_name, allowed_roles, language, afk_timeout
		FROM guild_configs WHERE guild_id = ?`, guildID)

	cfg := GuildConfig{GuildID: guildID}
	var roles string
	err := row.Scan(
		&cfg.ServerName,
		&cfg.AFKChannelID,
		&cfg.AFKChannelName,
		&roles,
		&cfg.Language,
		&cfg.AFKTimeout,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return GuildConfig{GuildID: guildID}, false, nil
		}
		return GuildConfig{}, false, err
	}
	cfg.AllowedRoles = decodeRoles(roles)
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	return cfg, true, nil
}

// UpsertGuildConfig merges a partial update into the guild's record. Fields
// left nil in the patch keep their stored values; a missing record is created
// with schema defaults first. The write is committed before returning.
func (s *Store) UpsertGuildConfig(ctx context.Context, guildID string, patch GuildConfigPatch) error {
	if patch.AFKTimeout != nil && *patch.AFKTimeout <= 0 {
		return ErrInvalidTimeout
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	cfg := GuildConfig{
		GuildID:    guildID,
		Language:   DefaultLanguage,
		AFKTimeout: DefaultAFKTimeout,
	}

	row := tx.QueryRowContext(ctx, `
		SELECT server_name, afk_channel_id, afk_channel_name, allowed_roles, language, afk_timeout
		FROM guild_configs WHERE guild_id = ?`, guildID)
	var roles string
	err = row.Scan(&cfg.ServerName, &cfg.AFKChannelID, &cfg.AFKChannelName, &roles, &cfg.Language, &cfg.AFKTimeout)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if err == nil {
		cfg.AllowedRoles = decodeRoles(roles)
	}

	if patch.ServerName != nil {
		cfg.ServerName = *patch.ServerName
	}
	if patch.AFKChannelID != nil {
		cfg.AFKChannelID = *patch.AFKChannelID
	}
	if patch.AFKChannelName != nil {
		cfg.AFKChannelName = *patch.AFKChannelName
	}
	if patch.AllowedRoles != nil {
		cfg.AllowedRoles = *patch.AllowedRoles
	}
	if patch.Language != nil {
		cfg.Language = *patch.Language
	}
	if patch.AFKTimeout != nil {
		cfg.AFKTimeout = *patch.AFKTimeout
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO guild_configs (
			guild_id, server_name, afk_channel_id, afk_channel_name, allowed_roles, language, afk_timeout
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			server_name = excluded.server_name,
			afk_channel_id = excluded.afk_channel_id,
			afk_channel_name = excluded.afk_channel_name,
			allowed_roles = excluded.allowed_roles,
			language = excluded.language,
			afk_timeout = excluded.afk_timeout
	`,
		guildID,
		cfg.ServerName,
		cfg.AFKChannelID,
		cfg.AFKChannelName,
		encodeRoles(cfg.AllowedRoles),
		cfg.Language,
		cfg.AFKTimeout,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func encodeRoles(roles []RoleRef) string {
	if len(roles) == 0 {
		return "[]"
	}
	data, err := json.Marshal(roles)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// decodeRoles never fails: a corrupt column degrades to an empty list.
func decodeRoles(raw string) []RoleRef {
	if raw == "" {
		return nil
	}
	var roles []RoleRef
	if err := json.Unmarshal([]byte(raw), &roles); err != nil {
		return nil
	}
	return roles
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
