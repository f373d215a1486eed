// Package watcher tracks members who sit idle (self-muted and self-deafened)
// in a voice channel and relocates them to the guild's AFK channel once the
// configured timeout elapses without a contradicting state change.
package watcher

import (
	"context"
	"strings"
	"sync"
	"time"

	"afkwarden/internal/audit"

	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

// Settings resolves the guild's AFK channel and idle timeout. ok is false
// when the guild has no AFK channel configured.
type Settings interface {
	AFKSettings(ctx context.Context, guildID string) (channelID string, timeout time.Duration, ok bool)
}

// VoiceReader reads a member's current voice state for fire-time
// re-verification.
type VoiceReader interface {
	VoiceState(guildID, userID string) (channelID string, selfMute, selfDeaf bool, ok bool)
}

// Mover relocates a member to another voice channel.
type Mover interface {
	Move(guildID, userID, channelID string) error
}

// Update is one voice-state transition for a member.
type Update struct {
	GuildID   string
	UserID    string
	ChannelID string
	SelfMute  bool
	SelfDeaf  bool
}

type pendingMove struct {
	timer     Timer
	guildID   string
	userID    string
	channelID string
}

type Watcher struct {
	mu       sync.Mutex
	clock    Clock
	settings Settings
	voice    VoiceReader
	mover    Mover
	audit    *audit.Logger
	logger   *zap.Logger
	pending  map[string]*pendingMove
}

func New(settings Settings, voice VoiceReader, mover Mover, auditLogger *audit.Logger, logger *zap.Logger) *Watcher {
	return &Watcher{
		clock:    realClock{},
		settings: settings,
		voice:    voice,
		mover:    mover,
		audit:    auditLogger,
		logger:   logger,
		pending:  make(map[string]*pendingMove),
	}
}

func (w *Watcher) WithClock(clock Clock) {
	w.clock = clock
}

// Observe feeds one voice-state transition into the per-member state machine.
// A member idle in a non-AFK channel gets a single pending relocation timer;
// any contradicting update cancels it.
func (w *Watcher) Observe(ctx context.Context, u Update) {
	if u.GuildID == "" || u.UserID == "" {
		return
	}
	key := memberKey(u.GuildID, u.UserID)

	afkChannelID, timeout, ok := w.settings.AFKSettings(ctx, u.GuildID)
	if !ok || u.ChannelID == "" || u.ChannelID == afkChannelID || !u.SelfMute || !u.SelfDeaf {
		w.cancel(key)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if p := w.pending[key]; p != nil {
		if p.channelID == u.ChannelID {
			return
		}
		// Moved to another channel while muted: replace, never stack.
		p.timer.Stop()
		delete(w.pending, key)
	}

	p := &pendingMove{guildID: u.GuildID, userID: u.UserID, channelID: u.ChannelID}
	p.timer = w.clock.AfterFunc(timeout, func() {
		w.fire(key, p)
	})
	w.pending[key] = p
}

// Pending reports whether a relocation timer is armed for the member.
func (w *Watcher) Pending(guildID, userID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending[memberKey(guildID, userID)] != nil
}

// ClearGuild drops every pending timer for a guild. Used when the guild's
// AFK channel configuration is removed.
func (w *Watcher) ClearGuild(guildID string) {
	prefix := guildID + ":"
	w.mu.Lock()
	defer w.mu.Unlock()
	for key, p := range w.pending {
		if strings.HasPrefix(key, prefix) {
			p.timer.Stop()
			delete(w.pending, key)
		}
	}
}

func (w *Watcher) cancel(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p := w.pending[key]; p != nil {
		p.timer.Stop()
		delete(w.pending, key)
	}
}

func (w *Watcher) fire(key string, p *pendingMove) {
	w.mu.Lock()
	if w.pending[key] != p {
		// A newer timer replaced this one after it was scheduled to run.
		w.mu.Unlock()
		return
	}
	delete(w.pending, key)
	w.mu.Unlock()

	ctx := context.Background()
	afkChannelID, _, ok := w.settings.AFKSettings(ctx, p.guildID)
	if !ok || afkChannelID == "" {
		return
	}

	channelID, selfMute, selfDeaf, ok := w.voice.VoiceState(p.guildID, p.userID)
	if !ok || channelID != p.channelID || !selfMute || !selfDeaf {
		w.logger.Debug("idle relocation skipped",
			zap.String("guild_id", p.guildID),
			zap.String("user_id", p.userID))
		return
	}

	if err := w.mover.Move(p.guildID, p.userID, afkChannelID); err != nil {
		w.logger.Warn("idle relocation failed",
			zap.String("guild_id", p.guildID),
			zap.String("user_id", p.userID),
			zap.Error(err))
		return
	}
	w.audit.Log(ctx, p.guildID, p.userID, audit.ActionRelocate, "idle member moved to AFK channel")
}

func memberKey(guildID, userID string) string {
	return guildID + ":" + userID
}
