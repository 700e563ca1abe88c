package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"kamadata-bot/internal/chat"

	"go.uber.org/zap/zaptest"
)

type sent struct {
	chatID    int64
	messageID int
	prompt    chat.Prompt
	edit      bool
}

type fakeMessenger struct {
	mu     sync.Mutex
	out    []sent
	failTo map[int64]bool
}

func (m *fakeMessenger) Send(_ context.Context, chatID int64, p chat.Prompt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTo[chatID] {
		return errors.New("blocked")
	}
	m.out = append(m.out, sent{chatID: chatID, prompt: p})
	return nil
}

func (m *fakeMessenger) Edit(_ context.Context, chatID int64, messageID int, p chat.Prompt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out = append(m.out, sent{chatID: chatID, messageID: messageID, prompt: p, edit: true})
	return nil
}

func (m *fakeMessenger) to(chatID int64) []sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var r []sent
	for _, s := range m.out {
		if s.chatID == chatID {
			r = append(r, s)
		}
	}
	return r
}

type failingStore struct{ *MemoryStore }

func (failingStore) SaveAuthorized(context.Context, int64) error { return errors.New("disk full") }

func newRegistry(t *testing.T, store Store, admins ...int64) *Registry {
	t.Helper()
	r, err := NewRegistry(context.Background(), store, admins, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func newHandshake(t *testing.T, r *Registry, m Messenger) *Handshake {
	t.Helper()
	h, err := NewHandshake(context.Background(), r, m, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewHandshake: %v", err)
	}
	return h
}

func TestRegistryAdminsAlwaysAuthorized(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	r := newRegistry(t, store, 1, 2)

	if !r.IsAuthorized(1) || !r.IsAdmin(2) {
		t.Fatal("admins must be authorized")
	}
	if err := r.Authorize(ctx, 1); err != nil {
		t.Fatalf("Authorize admin: %v", err)
	}
	if err := r.Revoke(ctx, 1); err != nil {
		t.Fatalf("Revoke admin: %v", err)
	}
	if !r.IsAuthorized(1) {
		t.Fatal("Revoke must not affect admins")
	}
	ids, _ := store.LoadAuthorized(ctx)
	if len(ids) != 0 {
		t.Fatalf("admins written to store: %v", ids)
	}
}

func TestRegistryWritesThrough(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	r := newRegistry(t, store, 1)

	if r.IsAuthorized(55) {
		t.Fatal("55 authorized before grant")
	}
	if err := r.Authorize(ctx, 55); err != nil {
		t.Fatalf("Authorize: %v", err)
	}

	reloaded := newRegistry(t, store, 1)
	if !reloaded.IsAuthorized(55) {
		t.Fatal("grant lost across reload")
	}

	if err := reloaded.Revoke(ctx, 55); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := reloaded.Revoke(ctx, 55); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
	if newRegistry(t, store, 1).IsAuthorized(55) {
		t.Fatal("revocation lost across reload")
	}
}

func TestRegistryStoreFailureLeavesCacheUnchanged(t *testing.T) {
	r := newRegistry(t, failingStore{NewMemoryStore()}, 1)
	if err := r.Authorize(context.Background(), 9); err == nil {
		t.Fatal("expected error")
	}
	if r.IsAuthorized(9) {
		t.Fatal("cache updated despite store failure")
	}
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		data string
		d    Decision
		id   int64
		ok   bool
	}{
		{DecisionData(Approve, 55), Approve, 55, true},
		{DecisionData(Reject, 7), Reject, 7, true},
		{"auth:maybe:7", "", 0, false},
		{"auth:approve:x", "", 0, false},
		{"auth:approve", "", 0, false},
		{"dlg:approve:7", "", 0, false},
	}
	for _, tt := range tests {
		d, id, ok := ParseDecision(tt.data)
		if d != tt.d || id != tt.id || ok != tt.ok {
			t.Errorf("ParseDecision(%q) = %q, %d, %v", tt.data, d, id, ok)
		}
	}
}

func TestHandshakeApproveFlow(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, NewMemoryStore(), 1, 2)
	m := &fakeMessenger{}
	h := newHandshake(t, r, m)
	h.ApprovedButtons = chat.Column(chat.Button{Label: "Menú", Data: "menu:sardina"})

	started, err := h.OnUnauthenticatedEntry(ctx, 55, "ana")
	if err != nil || !started {
		t.Fatalf("OnUnauthenticatedEntry = %v, %v", started, err)
	}
	if got := m.to(55); len(got) != 1 || got[0].prompt.Text != textPending {
		t.Fatalf("requester messages = %+v", got)
	}
	for _, admin := range []int64{1, 2} {
		got := m.to(admin)
		if len(got) != 1 {
			t.Fatalf("admin %d got %d messages", admin, len(got))
		}
		if got[0].prompt.Buttons[0][0].Data != "auth:approve:55" {
			t.Fatalf("admin %d buttons = %+v", admin, got[0].prompt.Buttons)
		}
	}

	if err := h.OnAdminDecision(ctx, 1, 100, Approve, 55); err != nil {
		t.Fatalf("OnAdminDecision: %v", err)
	}
	if !r.IsAuthorized(55) {
		t.Fatal("55 not authorized")
	}
	edits := m.to(1)
	if last := edits[len(edits)-1]; !last.edit || last.messageID != 100 || !strings.Contains(last.prompt.Text, "APROBADO") {
		t.Fatalf("admin edit = %+v", last)
	}
	notice := m.to(55)
	if len(notice) != 2 || notice[1].prompt.Text != textApproved || len(notice[1].prompt.Buttons) != 1 {
		t.Fatalf("requester notice = %+v", notice)
	}

	started, err = h.OnUnauthenticatedEntry(ctx, 55, "ana")
	if err != nil || started {
		t.Fatalf("authorized user restarted handshake: %v, %v", started, err)
	}
}

func TestHandshakeFirstDecisionWins(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, NewMemoryStore(), 1, 2)
	m := &fakeMessenger{}
	h := newHandshake(t, r, m)

	if _, err := h.OnUnauthenticatedEntry(ctx, 55, ""); err != nil {
		t.Fatalf("OnUnauthenticatedEntry: %v", err)
	}
	if err := h.OnAdminDecision(ctx, 1, 10, Approve, 55); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := h.OnAdminDecision(ctx, 2, 20, Reject, 55); err != nil {
		t.Fatalf("late reject: %v", err)
	}
	if !r.IsAuthorized(55) {
		t.Fatal("late decision overrode the first")
	}
	got := m.to(2)
	if last := got[len(got)-1]; last.prompt.Text != textResolved || last.messageID != 20 {
		t.Fatalf("late admin edit = %+v", last)
	}
	if h.Pending(55) {
		t.Fatal("request still pending")
	}
}

func TestHandshakeRejectAndNonAdmin(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, NewMemoryStore(), 1)
	m := &fakeMessenger{failTo: map[int64]bool{55: true}}
	h := newHandshake(t, r, m)

	_, err := h.OnUnauthenticatedEntry(ctx, 55, "ana")
	if err == nil {
		t.Fatal("expected requester delivery error")
	}
	if len(m.to(1)) != 1 {
		t.Fatal("admin not prompted when requester unreachable")
	}

	if err := h.OnAdminDecision(ctx, 77, 5, Approve, 55); err != nil {
		t.Fatalf("non-admin decision: %v", err)
	}
	if r.IsAuthorized(55) || !h.Pending(55) {
		t.Fatal("non-admin decision mutated state")
	}
	if got := m.to(77); len(got) != 1 || got[0].prompt.Text != textNotAdmin {
		t.Fatalf("non-admin reply = %+v", got)
	}

	if err := h.OnAdminDecision(ctx, 1, 6, Reject, 55); err != nil {
		t.Fatalf("reject with unreachable target must succeed: %v", err)
	}
	if r.IsAuthorized(55) {
		t.Fatal("rejected user authorized")
	}
}

func TestHandshakeRepeatedRequestRebroadcasts(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, NewMemoryStore(), 1)
	m := &fakeMessenger{failTo: map[int64]bool{2: true}}
	h := newHandshake(t, r, m)

	for i := 0; i < 2; i++ {
		if _, err := h.OnUnauthenticatedEntry(ctx, 55, "ana"); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if n := len(m.to(1)); n != 2 {
		t.Fatalf("admin got %d prompts, want 2", n)
	}
}

func TestHandshakeStoreFailureKeepsRequestPending(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, failingStore{NewMemoryStore()}, 1)
	h := newHandshake(t, r, &fakeMessenger{})

	if _, err := h.OnUnauthenticatedEntry(ctx, 55, "ana"); err != nil {
		t.Fatalf("OnUnauthenticatedEntry: %v", err)
	}
	if err := h.OnAdminDecision(ctx, 1, 1, Approve, 55); err == nil {
		t.Fatal("expected storage error")
	}
	if !h.Pending(55) {
		t.Fatal("request dropped after failed decision")
	}
}

func TestHandshakeRequestSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := &fakeMessenger{}

	before := newHandshake(t, newRegistry(t, store, 1), m)
	if _, err := before.OnUnauthenticatedEntry(ctx, 55, "ana"); err != nil {
		t.Fatalf("OnUnauthenticatedEntry: %v", err)
	}

	r := newRegistry(t, store, 1)
	after := newHandshake(t, r, m)
	if !after.Pending(55) {
		t.Fatal("request lost across restart")
	}
	if err := after.OnAdminDecision(ctx, 1, 10, Approve, 55); err != nil {
		t.Fatalf("OnAdminDecision: %v", err)
	}
	if !r.IsAuthorized(55) {
		t.Fatal("approval after restart not applied")
	}
	got := m.to(1)
	if last := got[len(got)-1]; !strings.Contains(last.prompt.Text, "APROBADO para @ana") {
		t.Fatalf("admin edit = %q", last.prompt.Text)
	}
	notice := m.to(55)
	if len(notice) != 2 || notice[1].prompt.Text != textApproved {
		t.Fatalf("requester messages = %+v", notice)
	}

	pending, _ := store.LoadPending(ctx)
	if len(pending) != 0 {
		t.Fatalf("decided request still stored: %v", pending)
	}
	if newHandshake(t, newRegistry(t, store, 1), m).Pending(55) {
		t.Fatal("decided request restored after second restart")
	}
}
