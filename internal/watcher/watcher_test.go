package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"afkwarden/internal/audit"
	"afkwarden/internal/storage"

	"go.uber.org/zap"
)

type fakeTimer struct {
	deadline time.Time
	fn       func()
	stopped  bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{deadline: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	return t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	var due, rest []*fakeTimer
	for _, timer := range f.timers {
		if !timer.stopped && !timer.deadline.After(f.now) {
			due = append(due, timer)
		} else {
			rest = append(rest, timer)
		}
	}
	f.timers = rest
	f.mu.Unlock()
	for _, timer := range due {
		timer.fn()
	}
}

type fakeSettings struct {
	mu        sync.Mutex
	channelID string
	timeout   time.Duration
}

func (f *fakeSettings) AFKSettings(ctx context.Context, guildID string) (string, time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.channelID == "" {
		return "", 0, false
	}
	return f.channelID, f.timeout, true
}

func (f *fakeSettings) set(channelID string) {
	f.mu.Lock()
	f.channelID = channelID
	f.mu.Unlock()
}

type voiceState struct {
	channelID string
	selfMute  bool
	selfDeaf  bool
}

type fakeVoice struct {
	mu     sync.Mutex
	states map[string]voiceState
}

func (f *fakeVoice) VoiceState(guildID, userID string) (string, bool, bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[guildID+":"+userID]
	if !ok {
		return "", false, false, false
	}
	return state.channelID, state.selfMute, state.selfDeaf, true
}

func (f *fakeVoice) set(guildID, userID string, state voiceState) {
	f.mu.Lock()
	if f.states == nil {
		f.states = make(map[string]voiceState)
	}
	f.states[guildID+":"+userID] = state
	f.mu.Unlock()
}

type move struct {
	guildID, userID, channelID string
}

type fakeMover struct {
	mu    sync.Mutex
	moves []move
}

func (f *fakeMover) Move(guildID, userID, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, move{guildID, userID, channelID})
	return nil
}

func (f *fakeMover) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.moves)
}

func newTestWatcher(t *testing.T) (*Watcher, *fakeClock, *fakeSettings, *fakeVoice, *fakeMover) {
	t.Helper()
	store, _ := storage.New(":memory:")
	t.Cleanup(store.Close)
	_ = store.Migrate()

	settings := &fakeSettings{channelID: "afk", timeout: 5 * time.Minute}
	voice := &fakeVoice{}
	mover := &fakeMover{}
	w := New(settings, voice, mover, audit.NewLogger(store, zap.NewNop()), zap.NewNop())
	clock := &fakeClock{now: time.Unix(0, 0)}
	w.WithClock(clock)
	return w, clock, settings, voice, mover
}

func idleUpdate(channelID string) Update {
	return Update{GuildID: "g1", UserID: "u1", ChannelID: channelID, SelfMute: true, SelfDeaf: true}
}

func TestRelocatesAfterTimeout(t *testing.T) {
	w, clock, _, voice, mover := newTestWatcher(t)
	ctx := context.Background()

	voice.set("g1", "u1", voiceState{channelID: "general", selfMute: true, selfDeaf: true})
	w.Observe(ctx, idleUpdate("general"))
	if !w.Pending("g1", "u1") {
		t.Fatalf("expected pending timer")
	}

	clock.Advance(5*time.Minute - time.Second)
	if mover.count() != 0 {
		t.Fatalf("relocated before deadline")
	}

	clock.Advance(2 * time.Second)
	if mover.count() != 1 {
		t.Fatalf("expected exactly one relocation, got %d", mover.count())
	}
	if mover.moves[0] != (move{"g1", "u1", "afk"}) {
		t.Fatalf("unexpected move: %+v", mover.moves[0])
	}
	if w.Pending("g1", "u1") {
		t.Fatalf("timer should be consumed")
	}
}

func TestUnmuteCancelsRelocation(t *testing.T) {
	w, clock, _, voice, mover := newTestWatcher(t)
	ctx := context.Background()

	voice.set("g1", "u1", voiceState{channelID: "general", selfMute: true, selfDeaf: true})
	w.Observe(ctx, idleUpdate("general"))

	clock.Advance(time.Minute)
	w.Observe(ctx, Update{GuildID: "g1", UserID: "u1", ChannelID: "general", SelfMute: false, SelfDeaf: true})
	if w.Pending("g1", "u1") {
		t.Fatalf("expected timer cancelled")
	}

	clock.Advance(10 * time.Minute)
	if mover.count() != 0 {
		t.Fatalf("cancelled timer must not relocate")
	}
}

func TestLeavingVoiceCancelsRelocation(t *testing.T) {
	w, clock, _, voice, mover := newTestWatcher(t)
	ctx := context.Background()

	voice.set("g1", "u1", voiceState{channelID: "general", selfMute: true, selfDeaf: true})
	w.Observe(ctx, idleUpdate("general"))
	w.Observe(ctx, Update{GuildID: "g1", UserID: "u1", ChannelID: ""})
	if w.Pending("g1", "u1") {
		t.Fatalf("expected timer cancelled")
	}
	clock.Advance(10 * time.Minute)
	if mover.count() != 0 {
		t.Fatalf("unexpected relocation")
	}
}

func TestChannelMoveRearmsSingleTimer(t *testing.T) {
	w, clock, _, voice, mover := newTestWatcher(t)
	ctx := context.Background()

	w.Observe(ctx, idleUpdate("general"))
	clock.Advance(3 * time.Minute)
	w.Observe(ctx, idleUpdate("gaming"))
	voice.set("g1", "u1", voiceState{channelID: "gaming", selfMute: true, selfDeaf: true})

	// Old deadline passes; only the replacement timer may fire.
	clock.Advance(3 * time.Minute)
	if mover.count() != 0 {
		t.Fatalf("stale timer fired")
	}
	clock.Advance(3 * time.Minute)
	if mover.count() != 1 {
		t.Fatalf("expected one relocation, got %d", mover.count())
	}
}

func TestRepeatUpdateKeepsDeadline(t *testing.T) {
	w, clock, _, voice, mover := newTestWatcher(t)
	ctx := context.Background()

	voice.set("g1", "u1", voiceState{channelID: "general", selfMute: true, selfDeaf: true})
	w.Observe(ctx, idleUpdate("general"))
	clock.Advance(4 * time.Minute)
	w.Observe(ctx, idleUpdate("general"))

	clock.Advance(90 * time.Second)
	if mover.count() != 1 {
		t.Fatalf("repeat update must not extend the deadline, moves=%d", mover.count())
	}
}

func TestFireReverifiesVoiceState(t *testing.T) {
	w, clock, _, voice, mover := newTestWatcher(t)
	ctx := context.Background()

	voice.set("g1", "u1", voiceState{channelID: "general", selfMute: true, selfDeaf: true})
	w.Observe(ctx, idleUpdate("general"))

	// Member moved without the watcher seeing an update.
	voice.set("g1", "u1", voiceState{channelID: "other", selfMute: true, selfDeaf: true})
	clock.Advance(6 * time.Minute)
	if mover.count() != 0 {
		t.Fatalf("relocation must be skipped when re-verification fails")
	}
}

func TestFireSkippedWhenConfigCleared(t *testing.T) {
	w, clock, settings, voice, mover := newTestWatcher(t)
	ctx := context.Background()

	voice.set("g1", "u1", voiceState{channelID: "general", selfMute: true, selfDeaf: true})
	w.Observe(ctx, idleUpdate("general"))

	settings.set("")
	clock.Advance(6 * time.Minute)
	if mover.count() != 0 {
		t.Fatalf("relocation must be skipped without an AFK channel")
	}
}

func TestClearGuild(t *testing.T) {
	w, clock, _, voice, mover := newTestWatcher(t)
	ctx := context.Background()

	voice.set("g1", "u1", voiceState{channelID: "general", selfMute: true, selfDeaf: true})
	voice.set("g2", "u1", voiceState{channelID: "general", selfMute: true, selfDeaf: true})
	w.Observe(ctx, idleUpdate("general"))
	w.Observe(ctx, Update{GuildID: "g2", UserID: "u1", ChannelID: "general", SelfMute: true, SelfDeaf: true})

	w.ClearGuild("g1")
	if w.Pending("g1", "u1") {
		t.Fatalf("expected g1 timers cleared")
	}
	if !w.Pending("g2", "u1") {
		t.Fatalf("g2 timer must survive")
	}
	clock.Advance(10 * time.Minute)
	if mover.count() == 0 {
		t.Fatalf("g2 relocation should still fire")
	}
}

func TestInAfkChannelCancelsPending(t *testing.T) {
	w, _, _, voice, _ := newTestWatcher(t)
	ctx := context.Background()

	voice.set("g1", "u1", voiceState{channelID: "general", selfMute: true, selfDeaf: true})
	w.Observe(ctx, idleUpdate("general"))
	w.Observe(ctx, idleUpdate("afk"))
	if w.Pending("g1", "u1") {
		t.Fatalf("moving into the AFK channel must cancel the timer")
	}
}
