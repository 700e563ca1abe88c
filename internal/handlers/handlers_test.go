package handlers

import (
	"context"
	"strings"
	"sync"
	"testing"

	"kamadata-bot/internal/auth"
	"kamadata-bot/internal/chat"
	"kamadata-bot/internal/dialogue"
	"kamadata-bot/internal/flows"
	"kamadata-bot/internal/models"
	"kamadata-bot/internal/session"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap/zaptest"
)

type delivery struct {
	chatID    int64
	messageID int
	prompt    chat.Prompt
}

type fakeTransport struct {
	mu       sync.Mutex
	sent     []delivery
	edited   []delivery
	answered []string
	files    map[string][]byte
}

func (f *fakeTransport) Send(_ context.Context, chatID int64, p chat.Prompt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, delivery{chatID: chatID, prompt: p})
	return nil
}

func (f *fakeTransport) Edit(_ context.Context, chatID int64, messageID int, p chat.Prompt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited = append(f.edited, delivery{chatID: chatID, messageID: messageID, prompt: p})
	return nil
}

func (f *fakeTransport) AnswerCallback(_ context.Context, id, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, id)
	return nil
}

func (f *fakeTransport) Download(_ context.Context, fileID string) ([]byte, error) {
	return f.files[fileID], nil
}

func (f *fakeTransport) lastSent(t *testing.T, chatID int64) chat.Prompt {
	t.Helper()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].chatID == chatID {
			return f.sent[i].prompt
		}
	}
	t.Fatalf("nothing sent to %d", chatID)
	return chat.Prompt{}
}

func (f *fakeTransport) lastEdit(t *testing.T) delivery {
	t.Helper()
	if len(f.edited) == 0 {
		t.Fatal("nothing edited")
	}
	return f.edited[len(f.edited)-1]
}

type fakeGateway struct {
	records []models.ProductionRecord
	workers []models.Worker
}

func (g *fakeGateway) InsertProductionRecords(_ context.Context, r []models.ProductionRecord) error {
	g.records = append(g.records, r...)
	return nil
}

func (g *fakeGateway) UpsertWorkers(_ context.Context, w []models.Worker) (int, error) {
	g.workers = append(g.workers, w...)
	return len(w), nil
}

const (
	adminID = 1
	userID  = 55
)

type fixture struct {
	handler   *Handler
	transport *fakeTransport
	gateway   *fakeGateway
	registry  *auth.Registry
}

func newFixture(t *testing.T, authorized ...int64) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	tr := &fakeTransport{files: map[string][]byte{}}
	gw := &fakeGateway{}

	reg, err := auth.NewRegistry(context.Background(), auth.NewMemoryStore(authorized...), []int64{adminID}, log)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	engine, err := dialogue.New(session.NewMemory(), log,
		flows.Table(gw, "mesa1"),
		flows.WorkerImport(gw, "trab1"))
	if err != nil {
		t.Fatalf("dialogue.New: %v", err)
	}
	hs, err := auth.NewHandshake(context.Background(), reg, tr, log)
	if err != nil {
		t.Fatalf("NewHandshake: %v", err)
	}
	h := New(tr, engine, reg, hs, log)
	return &fixture{handler: h, transport: tr, gateway: gw, registry: reg}
}

func command(from int64, text string) tgbotapi.Update {
	name := strings.SplitN(text, " ", 2)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: from, UserName: "ana"},
		Chat:      &tgbotapi.Chat{ID: from, Type: "private"},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}}
}

func text(from int64, s string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 2,
		From:      &tgbotapi.User{ID: from},
		Chat:      &tgbotapi.Chat{ID: from, Type: "private"},
		Text:      s,
	}}
}

func press(from int64, messageID int, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: from},
		Message: &tgbotapi.Message{MessageID: messageID, Chat: &tgbotapi.Chat{ID: from, Type: "private"}},
		Data:    data,
	}}
}

func TestStartShowsMenuOrRequestsAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.handler.HandleUpdate(ctx, command(adminID, "/start"))
	menu := f.transport.lastSent(t, adminID)
	if len(menu.Buttons) != len(menuEntries) {
		t.Fatalf("admin menu has %d entries", len(menu.Buttons))
	}

	f.handler.HandleUpdate(ctx, command(userID, "/start"))
	if got := f.transport.lastSent(t, userID); !strings.Contains(got.Text, "No autorizado") {
		t.Fatalf("requester reply = %q", got.Text)
	}
	request := f.transport.lastSent(t, adminID)
	if request.Buttons[0][0].Data != auth.DecisionData(auth.Approve, userID) {
		t.Fatalf("admin prompt = %+v", request)
	}

	f.handler.HandleUpdate(ctx, press(adminID, 40, request.Buttons[0][0].Data))
	if !f.registry.IsAuthorized(userID) {
		t.Fatal("user not approved")
	}
	if e := f.transport.lastEdit(t); e.messageID != 40 || !strings.Contains(e.prompt.Text, "APROBADO") {
		t.Fatalf("admin edit = %+v", e)
	}
	approved := f.transport.lastSent(t, userID)
	if len(approved.Buttons) != len(menuEntries)-1 {
		t.Fatalf("approval notice menu = %+v", approved.Buttons)
	}
}

func TestUnauthorizedCannotStartDialogue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.handler.HandleUpdate(ctx, command(userID, "/mesa"))
	if got := f.transport.lastSent(t, userID); got.Text != textUnauthorized {
		t.Fatalf("reply = %q", got.Text)
	}
	f.handler.HandleUpdate(ctx, text(userID, "mesa1"))
	if len(f.transport.sent) != 1 {
		t.Fatalf("input without session answered: %+v", f.transport.sent)
	}
}

func TestTableDialogueThroughUpdates(t *testing.T) {
	f := newFixture(t, userID)
	ctx := context.Background()

	f.handler.HandleUpdate(ctx, command(adminID, "/menu"))
	f.handler.HandleUpdate(ctx, press(userID, 7, menuPrefix+string(dialogue.KindTable)))
	if e := f.transport.lastEdit(t); !strings.Contains(e.prompt.Text, "clave de acceso para Mesa") {
		t.Fatalf("first prompt = %q", e.prompt.Text)
	}

	f.handler.HandleUpdate(ctx, text(userID, "mesa1"))
	f.handler.HandleUpdate(ctx, text(userID, "15/03/2024"))
	f.handler.HandleUpdate(ctx, press(userID, 8, dialogue.ChoiceData("Kamada")))
	f.handler.HandleUpdate(ctx, text(userID, "12, 34, abc, 56"))
	f.handler.HandleUpdate(ctx, text(userID, "40"))

	confirm := f.transport.lastSent(t, userID)
	if !strings.Contains(confirm.Text, "12, 34, 56") || len(confirm.Buttons) != 3 {
		t.Fatalf("confirmation = %+v", confirm)
	}
	f.handler.HandleUpdate(ctx, press(userID, 9, confirm.Buttons[0][0].Data))

	if len(f.gateway.records) != 3 {
		t.Fatalf("records = %d, want 3", len(f.gateway.records))
	}
	done := f.transport.lastEdit(t)
	if done.messageID != 9 || !strings.Contains(done.prompt.Text, "3 trabajadores") {
		t.Fatalf("terminal = %+v", done)
	}
	if last := done.prompt.Buttons[len(done.prompt.Buttons)-1][0]; last != menuButton {
		t.Fatalf("terminal without menu button: %+v", done.prompt.Buttons)
	}

	f.handler.HandleUpdate(ctx, press(userID, 9, confirm.Buttons[0][0].Data))
	if len(f.gateway.records) != 3 {
		t.Fatal("stale confirmation committed twice")
	}
	if e := f.transport.lastEdit(t); e.prompt.Text != textInactive {
		t.Fatalf("stale press = %+v", e)
	}
}

func TestCancelCommand(t *testing.T) {
	f := newFixture(t, userID)
	ctx := context.Background()

	f.handler.HandleUpdate(ctx, command(userID, "/cancel"))
	if got := f.transport.lastSent(t, userID); got.Text != textNoDialogue {
		t.Fatalf("reply = %q", got.Text)
	}
	f.handler.HandleUpdate(ctx, command(userID, "/mesa"))
	f.handler.HandleUpdate(ctx, command(userID, "/cancel"))
	if got := f.transport.lastSent(t, userID); !strings.Contains(got.Text, "Cancelado") {
		t.Fatalf("cancel reply = %q", got.Text)
	}
}

func TestWorkerImportAdminOnly(t *testing.T) {
	f := newFixture(t, userID)
	ctx := context.Background()

	f.handler.HandleUpdate(ctx, command(userID, "/trabajadores"))
	if got := f.transport.lastSent(t, userID); got.Text != textAdminOnly {
		t.Fatalf("reply = %q", got.Text)
	}

	f.handler.HandleUpdate(ctx, command(adminID, "/trabajadores"))
	f.handler.HandleUpdate(ctx, text(adminID, "trab1"))

	f.transport.files["file-1"] = []byte("ID,Nombre\n12,Ana\n34,Luis\n")
	f.handler.HandleUpdate(ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 3,
		From:      &tgbotapi.User{ID: adminID},
		Chat:      &tgbotapi.Chat{ID: adminID, Type: "private"},
		Document:  &tgbotapi.Document{FileID: "file-1", FileName: "trabajadores.csv"},
	}})
	if len(f.gateway.workers) != 2 {
		t.Fatalf("workers = %+v", f.gateway.workers)
	}
	if got := f.transport.lastSent(t, adminID); !strings.Contains(got.Text, "2 registros") {
		t.Fatalf("reply = %q", got.Text)
	}
}

func TestGroupMessagesIgnored(t *testing.T) {
	f := newFixture(t)
	u := command(adminID, "/start")
	u.Message.Chat.Type = "group"
	f.handler.HandleUpdate(context.Background(), u)
	if len(f.transport.sent) != 0 {
		t.Fatalf("group message answered: %+v", f.transport.sent)
	}
}
