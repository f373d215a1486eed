package enforcer

import (
	"context"
	"errors"
	"testing"

	"afkwarden/internal/audit"
	"afkwarden/internal/storage"

	"go.uber.org/zap"
)

type fakeDisconnector struct {
	calls int
	err   error
}

func (f *fakeDisconnector) Disconnect(guildID, userID string) error {
	f.calls++
	return f.err
}

func newTestModule(t *testing.T, d *fakeDisconnector) *Module {
	t.Helper()
	store, _ := storage.New(":memory:")
	t.Cleanup(store.Close)
	_ = store.Migrate()
	return New(d, audit.NewLogger(store, zap.NewNop()), zap.NewNop())
}

func TestDisconnectsMemberInAfkChannel(t *testing.T) {
	d := &fakeDisconnector{}
	m := newTestModule(t, d)

	if !m.HandleVoiceState(context.Background(), "g1", "u1", "afk", "bot", "afk") {
		t.Fatalf("expected disconnect")
	}
	if d.calls != 1 {
		t.Fatalf("expected 1 disconnect call, got %d", d.calls)
	}
}

func TestNoopOutsideAfkChannel(t *testing.T) {
	d := &fakeDisconnector{}
	m := newTestModule(t, d)

	if m.HandleVoiceState(context.Background(), "g1", "u1", "general", "bot", "afk") {
		t.Fatalf("unexpected disconnect outside AFK channel")
	}
	if m.HandleVoiceState(context.Background(), "g1", "u1", "", "bot", "afk") {
		t.Fatalf("unexpected disconnect for member not in voice")
	}
	if m.HandleVoiceState(context.Background(), "g1", "u1", "afk", "bot", "") {
		t.Fatalf("unexpected disconnect with no AFK channel configured")
	}
	if d.calls != 0 {
		t.Fatalf("expected no disconnect calls, got %d", d.calls)
	}
}

func TestSkipsBotItself(t *testing.T) {
	d := &fakeDisconnector{}
	m := newTestModule(t, d)

	if m.HandleVoiceState(context.Background(), "g1", "bot", "afk", "bot", "afk") {
		t.Fatalf("bot must not disconnect itself")
	}
	if d.calls != 0 {
		t.Fatalf("expected no disconnect calls, got %d", d.calls)
	}
}

func TestPermissionFailureSwallowed(t *testing.T) {
	d := &fakeDisconnector{err: errors.New("missing permission")}
	m := newTestModule(t, d)

	if m.HandleVoiceState(context.Background(), "g1", "u1", "afk", "bot", "afk") {
		t.Fatalf("failed disconnect must not report success")
	}
	if d.calls != 1 {
		t.Fatalf("expected attempt despite failure")
	}
}
