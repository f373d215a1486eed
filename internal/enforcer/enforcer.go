// Package enforcer disconnects members found in the guild's AFK voice
// channel. The check is stateless: it is a pure function of the new voice
// state and the guild's configuration.
package enforcer

import (
	"context"

	"afkwarden/internal/audit"

	"go.uber.org/zap"
)

// Disconnector drops a member from voice entirely.
type Disconnector interface {
	Disconnect(guildID, userID string) error
}

type Module struct {
	disconnect Disconnector
	audit      *audit.Logger
	logger     *zap.Logger
}

func New(disconnect Disconnector, auditLogger *audit.Logger, logger *zap.Logger) *Module {
	return &Module{disconnect: disconnect, audit: auditLogger, logger: logger}
}

// HandleVoiceState disconnects the member when their new channel is the
// configured AFK channel. Permission failures are logged and swallowed;
// there is no user to reply to on the event path. Returns true when a
// disconnect was issued.
func (m *Module) HandleVoiceState(ctx context.Context, guildID, userID, channelID, botUserID, afkChannelID string) bool {
	if afkChannelID == "" || channelID == "" || channelID != afkChannelID {
		return false
	}
	if userID == "" || userID == botUserID {
		return false
	}

	if err := m.disconnect.Disconnect(guildID, userID); err != nil {
		m.logger.Warn("afk disconnect failed",
			zap.String("guild_id", guildID),
			zap.String("user_id", userID),
			zap.Error(err))
		return false
	}
	m.audit.Log(ctx, guildID, userID, audit.ActionDisconnect, "member disconnected from AFK channel")
	return true
}
