package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"afkwarden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}

	ctx := context.Background()
	data := interaction.ApplicationCommandData()

	if interaction.GuildID == "" {
		lang := b.cfg.DefaultLanguage
		b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, "status_title", nil), b.t(lang, "error_only_guild", nil), colorError, nil), true)
		return
	}

	cfg, found := b.guildConfig(ctx, interaction.GuildID)
	lang := cfg.Language
	if lang == "" {
		lang = b.cfg.DefaultLanguage
	}

	switch data.Name {
	case "setup":
		if !b.requireConfigAccess(session, interaction, cfg, lang, "setup_title") {
			return
		}
		b.handleSetup(ctx, session, interaction, lang, data.Options)
	case "channel":
		if !b.requireConfigAccess(session, interaction, cfg, lang, "channel_title") {
			return
		}
		b.handleChannel(ctx, session, interaction, lang, data.Options)
	case "roles":
		if !b.requireConfigAccess(session, interaction, cfg, lang, "roles_title") {
			return
		}
		b.handleRoles(ctx, session, interaction, lang, data.Options)
	case "language":
		if len(data.Options) == 0 {
			listing := b.t(lang, "language_list", map[string]string{"languages": strings.Join(b.localizer.Languages(), ", ")})
			b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, "language_title", nil), listing, colorAction, nil), true)
			return
		}
		if !b.requireConfigAccess(session, interaction, cfg, lang, "language_title") {
			return
		}
		b.handleLanguage(ctx, session, interaction, lang, data.Options)
	case "timeout":
		if !b.requireConfigAccess(session, interaction, cfg, lang, "timeout_title") {
			return
		}
		b.handleTimeout(ctx, session, interaction, lang, data.Options)
	case "status":
		b.handleStatus(ctx, session, interaction, cfg, found, lang)
	}
}

// requireConfigAccess rejects actors that are neither the guild owner, an
// administrator, nor holders of one of the guild's permitted roles. Rejected
// requests never reach the store.
func (b *Bot) requireConfigAccess(session *discordgo.Session, interaction *discordgo.InteractionCreate, cfg storage.GuildConfig, lang, titleKey string) bool {
	member := interaction.Member
	if member == nil || member.User == nil {
		b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, titleKey, nil), b.t(lang, "error_not_allowed", nil), colorError, nil), true)
		return false
	}

	guild, err := session.State.Guild(interaction.GuildID)
	if err != nil || guild == nil {
		guild, _ = session.Guild(interaction.GuildID)
	}

	if guild != nil && guild.OwnerID == member.User.ID {
		return true
	}
	if b.memberHasAdmin(guild, member) {
		return true
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedRoles))
	for _, role := range cfg.AllowedRoles {
		allowed[role.ID] = struct{}{}
	}
	for _, roleID := range member.Roles {
		if _, ok := allowed[roleID]; ok {
			return true
		}
	}

	b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, titleKey, nil), b.t(lang, "error_not_allowed", nil), colorError, nil), true)
	return false
}

func (b *Bot) handleSetup(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, lang string, options []*discordgo.ApplicationCommandInteractionDataOption) {
	patch := storage.GuildConfigPatch{}
	channelName := ""
	minutes := 0
	var roles []storage.RoleRef

	for _, opt := range options {
		switch opt.Name {
		case "channel":
			channel := opt.ChannelValue(session)
			if channel == nil {
				b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, "setup_title", nil), b.t(lang, "error_failed", nil), colorError, nil), true)
				return
			}
			if channel.Type != discordgo.ChannelTypeGuildVoice {
				b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, "setup_title", nil), b.t(lang, "error_not_voice", map[string]string{"channel": channel.Name}), colorError, nil), true)
				return
			}
			patch.AFKChannelID = &channel.ID
			patch.AFKChannelName = &channel.Name
			channelName = channel.Name
		case "minutes":
			minutes = int(opt.IntValue())
			if minutes < 1 {
				b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, "setup_title", nil), b.t(lang, "error_invalid_timeout", nil), colorError, nil), true)
				return
			}
			value := minutes
			patch.AFKTimeout = &value
		case "code":
			code := opt.StringValue()
			if !b.localizer.Has(code) {
				b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, "setup_title", nil), b.t(lang, "error_unknown_language", map[string]string{"language": code}), colorError, nil), true)
				return
			}
			patch.Language = &code
			lang = code
		case "role", "role2", "role3":
			if role := opt.RoleValue(session, interaction.GuildID); role != nil {
				roles = append(roles, storage.RoleRef{ID: role.ID, Name: role.Name})
			}
		}
	}
	if len(roles) > 0 {
		patch.AllowedRoles = &roles
	}
	if guild, err := session.State.Guild(interaction.GuildID); err == nil && guild != nil && guild.Name != "" {
		patch.ServerName = &guild.Name
	}

	if err := b.store.UpsertGuildConfig(ctx, interaction.GuildID, patch); err != nil {
		b.logger.Warn("setup failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, "setup_title", nil), b.t(lang, "error_failed", nil), colorError, nil), true)
		return
	}

	if minutes == 0 {
		if cfg, found := b.guildConfig(ctx, interaction.GuildID); found {
			minutes = cfg.AFKTimeout
		}
	}
	description := b.t(lang, "setup_saved", map[string]string{
		"channel": channelName,
		"minutes": b.renderMinutes(lang, minutes),
	})
	b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, "setup_title", nil), description, colorAction, nil), true)
}

func (b *Bot) handleChannel(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, lang string, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, "channel_title", nil), b.t(lang, "error_failed", nil), colorError, nil), true)
		return
	}
	channel := options[0].ChannelValue(session)
	if channel == nil {
		b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, "channel_title", nil), b.t(lang, "error_failed", nil), colorError, nil), true)
		return
	}
	if channel.Type != discordgo.ChannelTypeGuildVoice {
		b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, "channel_title", nil), b.t(lang, "error_not_voice", map[string]string{"channel": channel.Name}), colorError, nil), true)
		return
	}

	patch := storage.GuildConfigPatch{AFKChannelID: &channel.ID, AFKChannelName: &channel.Name}
	if guild, err := session.State.Guild(interaction.GuildID); err == nil && guild != nil && guild.Name != "" {
		patch.ServerName = &guild.Name
	}
	if err := b.store.UpsertGuildConfig(ctx, interaction.GuildID, patch); err != nil {
		b.logger.Warn("channel update failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, "channel_title", nil), b.t(lang, "error_failed", nil), colorError, nil), true)
		return
	}
	description := b.t(lang, "channel_saved", map[string]string{"channel": channel.Name})
	b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, "channel_title", nil), description, colorAction, nil), true)
}

func (b *Bot) handleRoles(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, lang string, options []*discordgo.ApplicationCommandInteractionDataOption) {
	var roles []storage.RoleRef
	for _, opt := range options {
		if role := opt.RoleValue(session, interaction.GuildID); role != nil {
			roles = append(roles, storage.RoleRef{ID: role.ID, Name: role.Name})
		}
	}
	if len(roles) == 0 {
		b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, "roles_title", nil), b.t(lang, "error_failed", nil), colorError, nil), true)
		return
	}

	if err := b.store.UpsertGuildConfig(ctx, interaction.GuildID, storage.GuildConfigPatch{AllowedRoles: &roles}); err != nil {
		b.logger.Warn("roles update failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, "roles_title", nil), b.t(lang, "error_failed", nil), colorError, nil), true)
		return
	}

	mentions := make([]string, 0, len(roles))
	for _, role := range roles {
		mentions = append(mentions, "<@&"+role.ID+">")
	}
	fields := []*discordgo.MessageEmbedField{{Name: b.t(lang, "field_roles", nil), Value: strings.Join(mentions, " "), Inline: false}}
	b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, "roles_title", nil), b.t(lang, "roles_saved", nil), colorAction, fields), true)
}

func (b *Bot) handleLanguage(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, lang string, options []*discordgo.ApplicationCommandInteractionDataOption) {
	code := options[0].StringValue()
	if !b.localizer.Has(code) {
		b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, "language_title", nil), b.t(lang, "error_unknown_language", map[string]string{"language": code}), colorError, nil), true)
		return
	}

	if err := b.store.UpsertGuildConfig(ctx, interaction.GuildID, storage.GuildConfigPatch{Language: &code}); err != nil {
		b.logger.Warn("language update failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, "language_title", nil), b.t(lang, "error_failed", nil), colorError, nil), true)
		return
	}

	// Confirm in the language that was just chosen.
	description := b.t(code, "language_saved", map[string]string{"language": code})
	b.respondEmbed(session, interaction, b.commandEmbed(b.t(code, "language_title", nil), description, colorAction, nil), true)
}

func (b *Bot) handleTimeout(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, lang string, options []*discordgo.ApplicationCommandInteractionDataOption) {
	minutes := int(options[0].IntValue())
	if minutes < 1 {
		b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, "timeout_title", nil), b.t(lang, "error_invalid_timeout", nil), colorError, nil), true)
		return
	}

	if err := b.store.UpsertGuildConfig(ctx, interaction.GuildID, storage.GuildConfigPatch{AFKTimeout: &minutes}); err != nil {
		b.logger.Warn("timeout update failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, "timeout_title", nil), b.t(lang, "error_failed", nil), colorError, nil), true)
		return
	}

	description := b.t(lang, "timeout_saved", map[string]string{"minutes": b.renderMinutes(lang, minutes)})
	b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, "timeout_title", nil), description, colorAction, nil), true)
}

func (b *Bot) handleStatus(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, cfg storage.GuildConfig, found bool, lang string) {
	if !found {
		b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, "status_title", nil), b.t(lang, "error_not_configured", nil), colorError, nil), true)
		return
	}

	channelValue := b.t(lang, "value_not_set", nil)
	if cfg.AFKChannelID != "" {
		channelValue = "<#" + cfg.AFKChannelID + ">"
		if cfg.AFKChannelName != "" {
			channelValue = cfg.AFKChannelName
		}
	}

	rolesValue := b.t(lang, "value_none", nil)
	if len(cfg.AllowedRoles) > 0 {
		mentions := make([]string, 0, len(cfg.AllowedRoles))
		for _, role := range cfg.AllowedRoles {
			mentions = append(mentions, "<@&"+role.ID+">")
		}
		rolesValue = strings.Join(mentions, " ")
	}

	actionsValue := b.t(lang, "value_none", nil)
	if report, err := b.analytics.Report(ctx, interaction.GuildID, time.Now().Add(-24*time.Hour)); err == nil && report.Total > 0 {
		actionsValue = fmt.Sprintf("%d", report.Total)
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: b.t(lang, "field_server", nil), Value: cfg.ServerName, Inline: true},
		{Name: b.t(lang, "field_channel", nil), Value: channelValue, Inline: true},
		{Name: b.t(lang, "field_timeout", nil), Value: b.renderMinutes(lang, cfg.AFKTimeout), Inline: true},
		{Name: b.t(lang, "field_language", nil), Value: cfg.Language, Inline: true},
		{Name: b.t(lang, "field_roles", nil), Value: rolesValue, Inline: false},
		{Name: b.t(lang, "field_actions", nil), Value: actionsValue, Inline: true},
	}
	description := b.t(lang, "status_desc", map[string]string{"server": cfg.ServerName})
	b.respondEmbed(session, interaction, b.commandEmbed(b.t(lang, "status_title", nil), description, colorAction, fields), true)
}

func (b *Bot) renderMinutes(lang string, minutes int) string {
	return b.t(lang, "timeout_minutes", map[string]string{"minutes": fmt.Sprintf("%d", minutes)})
}
