package bot

import "github.com/bwmarrin/discordgo"

func (b *Bot) registerCommands() error {
	languageChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(b.localizer.Languages()))
	for _, code := range b.localizer.Languages() {
		languageChoices = append(languageChoices, &discordgo.ApplicationCommandOptionChoice{Name: code, Value: code})
	}

	channelOption := func(required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:         discordgo.ApplicationCommandOptionChannel,
			Name:         "channel",
			Description:  "Voice channel used as the AFK channel",
			ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildVoice},
			Required:     required,
		}
	}
	roleOption := func(name string, required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionRole,
			Name:        name,
			Description: "Role allowed to change the configuration",
			Required:    required,
		}
	}
	timeoutOption := func(required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "minutes",
			Description: "Minutes of idle time before relocation",
			Required:    required,
		}
	}
	languageOption := func(required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "code",
			Description: "Language for bot replies",
			Required:    required,
			Choices:     languageChoices,
		}
	}

	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "setup",
			Description: "Configure AFK channel, roles, language and timeout in one go",
			Options: []*discordgo.ApplicationCommandOption{
				channelOption(true),
				timeoutOption(false),
				languageOption(false),
				roleOption("role", false),
				roleOption("role2", false),
				roleOption("role3", false),
			},
		},
		{
			Name:        "channel",
			Description: "Set the AFK voice channel",
			Options: []*discordgo.ApplicationCommandOption{
				channelOption(true),
			},
		},
		{
			Name:        "roles",
			Description: "Set the roles allowed to change the configuration",
			Options: []*discordgo.ApplicationCommandOption{
				roleOption("role", true),
				roleOption("role2", false),
				roleOption("role3", false),
			},
		},
		{
			Name:        "language",
			Description: "Set the bot language, or list available languages",
			Options: []*discordgo.ApplicationCommandOption{
				languageOption(false),
			},
		},
		{
			Name:        "timeout",
			Description: "Set the idle timeout in minutes",
			Options: []*discordgo.ApplicationCommandOption{
				timeoutOption(true),
			},
		},
		{
			Name:        "status",
			Description: "Show the current AFK configuration",
		},
	}

	for _, command := range commands {
		if _, err := b.session.ApplicationCommandCreate(b.cfg.ApplicationID, "", command); err != nil {
			return err
		}
	}
	return nil
}
