package bot

import (
	"context"
	"time"

	"afkwarden/internal/analytics"
	"afkwarden/internal/audit"
	"afkwarden/internal/config"
	"afkwarden/internal/enforcer"
	"afkwarden/internal/i18n"
	"afkwarden/internal/storage"
	"afkwarden/internal/watcher"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	colorAction = 0x5865F2
	colorError  = 0xEF4444
)

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	localizer *i18n.Localizer
	audit     *audit.Logger
	analytics *analytics.Service
	watcher   *watcher.Watcher
	enforcer  *enforcer.Module
	session   *discordgo.Session
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, localizer *i18n.Localizer, auditLogger *audit.Logger, analyticsService *analytics.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		localizer: localizer,
		audit:     auditLogger,
		analytics: analyticsService,
		session:   session,
	}

	b.watcher = watcher.New(b, b, b, auditLogger, logger)
	b.enforcer = enforcer.New(b, auditLogger, logger)

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onGuildCreate)
	b.session.AddHandler(b.onGuildUpdate)
	b.session.AddHandler(b.onVoiceStateUpdate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	return nil
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onGuildCreate(session *discordgo.Session, event *discordgo.GuildCreate) {
	if event.Guild == nil {
		return
	}
	b.reconcileGuild(context.Background(), event.Guild)
}

func (b *Bot) onGuildUpdate(session *discordgo.Session, event *discordgo.GuildUpdate) {
	if event.Guild == nil || event.Guild.ID == "" || event.Guild.Name == "" {
		return
	}
	ctx := context.Background()
	cfg, found := b.guildConfig(ctx, event.Guild.ID)
	if !found || cfg.ServerName == event.Guild.Name {
		return
	}
	patch := storage.GuildConfigPatch{ServerName: &event.Guild.Name}
	if err := b.store.UpsertGuildConfig(ctx, event.Guild.ID, patch); err != nil {
		b.logger.Warn("server name refresh failed", zap.String("guild_id", event.Guild.ID), zap.Error(err))
	}
}

func (b *Bot) onVoiceStateUpdate(session *discordgo.Session, event *discordgo.VoiceStateUpdate) {
	if event.VoiceState == nil || event.GuildID == "" || event.UserID == "" {
		return
	}
	botID := ""
	if session.State != nil && session.State.User != nil {
		botID = session.State.User.ID
	}
	if event.UserID == botID {
		return
	}
	if event.Member != nil && event.Member.User != nil && event.Member.User.Bot {
		return
	}

	ctx := context.Background()
	cfg, found := b.guildConfig(ctx, event.GuildID)
	if !found || cfg.AFKChannelID == "" {
		return
	}

	b.enforcer.HandleVoiceState(ctx, event.GuildID, event.UserID, event.ChannelID, botID, cfg.AFKChannelID)
	b.watcher.Observe(ctx, watcher.Update{
		GuildID:   event.GuildID,
		UserID:    event.UserID,
		ChannelID: event.ChannelID,
		SelfMute:  event.SelfMute,
		SelfDeaf:  event.SelfDeaf,
	})
}

// guildConfig reads the stored record; read errors degrade to "absent" so a
// storage hiccup never takes event handling down.
func (b *Bot) guildConfig(ctx context.Context, guildID string) (storage.GuildConfig, bool) {
	cfg, found, err := b.store.GetGuildConfig(ctx, guildID)
	if err != nil {
		b.logger.Warn("guild config read failed", zap.String("guild_id", guildID), zap.Error(err))
		return storage.GuildConfig{GuildID: guildID}, false
	}
	return cfg, found
}

// AFKSettings implements watcher.Settings over the config store.
func (b *Bot) AFKSettings(ctx context.Context, guildID string) (string, time.Duration, bool) {
	cfg, found := b.guildConfig(ctx, guildID)
	if !found || cfg.AFKChannelID == "" {
		return "", 0, false
	}
	minutes := cfg.AFKTimeout
	if minutes <= 0 {
		minutes = b.cfg.DefaultTimeoutMinutes
	}
	return cfg.AFKChannelID, time.Duration(minutes) * time.Minute, true
}

// VoiceState implements watcher.VoiceReader from the gateway state cache.
func (b *Bot) VoiceState(guildID, userID string) (string, bool, bool, bool) {
	if b.session == nil || b.session.State == nil {
		return "", false, false, false
	}
	vs, err := b.session.State.VoiceState(guildID, userID)
	if err != nil || vs == nil {
		return "", false, false, false
	}
	return vs.ChannelID, vs.SelfMute, vs.SelfDeaf, true
}

// Move implements watcher.Mover.
func (b *Bot) Move(guildID, userID, channelID string) error {
	return b.session.GuildMemberMove(guildID, userID, &channelID)
}

// Disconnect implements enforcer.Disconnector.
func (b *Bot) Disconnect(guildID, userID string) error {
	return b.session.GuildMemberMove(guildID, userID, nil)
}

func (b *Bot) t(lang, key string, vars map[string]string) string {
	return b.localizer.Resolve(lang, key, vars)
}

func (b *Bot) memberHasAdmin(guild *discordgo.Guild, member *discordgo.Member) bool {
	if guild == nil || member == nil {
		return false
	}
	perms := int64(0)
	for _, role := range guild.Roles {
		if role.ID == guild.ID {
			perms |= role.Permissions
			break
		}
	}
	roleMap := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		roleMap[role.ID] = role
	}
	for _, roleID := range member.Roles {
		if role := roleMap[roleID]; role != nil {
			perms |= role.Permissions
		}
	}
	return perms&discordgo.PermissionAdministrator != 0
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if embed == nil {
		b.respond(session, interaction, "No response available.", ephemeral)
		return
	}
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Fields:      fields,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}
