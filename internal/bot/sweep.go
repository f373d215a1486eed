package bot

import (
	"context"

	"afkwarden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// ReconcileGuilds walks every guild in the gateway state and fills in missing
// configuration records. Meant to run periodically from a scheduler.
func (b *Bot) ReconcileGuilds() {
	if b.session == nil || b.session.State == nil {
		return
	}
	ctx := context.Background()
	for _, guild := range b.session.State.Guilds {
		b.reconcileGuild(ctx, guild)
	}
}

// reconcileGuild creates the record on first observation (server name plus a
// language detected from the guild's preferred locale) and opportunistically
// adopts the platform-native AFK channel. Only fields not already configured
// are touched; explicit admin choices always win.
func (b *Bot) reconcileGuild(ctx context.Context, guild *discordgo.Guild) {
	if guild == nil || guild.ID == "" || guild.Unavailable {
		return
	}

	cfg, found := b.guildConfig(ctx, guild.ID)

	patch := storage.GuildConfigPatch{}
	if guild.Name != "" && guild.Name != cfg.ServerName {
		patch.ServerName = &guild.Name
	}
	if !found {
		lang := b.localizer.Normalize(guild.PreferredLocale)
		patch.Language = &lang
	}
	if cfg.AFKChannelID == "" && guild.AfkChannelID != "" {
		id := guild.AfkChannelID
		name := b.channelName(id)
		patch.AFKChannelID = &id
		patch.AFKChannelName = &name
	}

	if patch == (storage.GuildConfigPatch{}) {
		return
	}
	if err := b.store.UpsertGuildConfig(ctx, guild.ID, patch); err != nil {
		b.logger.Warn("guild reconcile failed", zap.String("guild_id", guild.ID), zap.Error(err))
	}
}

func (b *Bot) channelName(channelID string) string {
	if ch, err := b.session.State.Channel(channelID); err == nil && ch != nil {
		return ch.Name
	}
	if ch, err := b.session.Channel(channelID); err == nil && ch != nil {
		return ch.Name
	}
	return ""
}
