// Package handlers routes Telegram updates to the dialogue engine and the
// authorization handshake.
package handlers

import (
	"context"
	"strings"

	"kamadata-bot/internal/auth"
	"kamadata-bot/internal/chat"
	"kamadata-bot/internal/dialogue"
	"kamadata-bot/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Transport is the outbound side of the chat platform.
type Transport interface {
	Send(ctx context.Context, chatID int64, p chat.Prompt) error
	Edit(ctx context.Context, chatID int64, messageID int, p chat.Prompt) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	Download(ctx context.Context, fileID string) ([]byte, error)
}

const (
	textUnauthorized = "❌ No autorizado. Use /start para solicitar acceso."
	textNoDialogue   = "No hay ninguna operación en curso."
	textUnknown      = "Comando no reconocido. Use /menu para ver las opciones."
	textDeliveryFail = "❌ Ocurrió un error al procesar su solicitud. Intente de nuevo."
	textInactive     = "Esta operación ya no está activa."
)

type Handler struct {
	transport Transport
	engine    *dialogue.Engine
	registry  *auth.Registry
	handshake *auth.Handshake
	logger    *zap.Logger
}

func New(t Transport, engine *dialogue.Engine, registry *auth.Registry, handshake *auth.Handshake, log *zap.Logger) *Handler {
	engine.MenuButton = menuButton
	handshake.ApprovedButtons = MainMenu(false).Buttons
	return &Handler{
		transport: t,
		engine:    engine,
		registry:  registry,
		handshake: handshake,
		logger:    log.With(zap.String(logger.FieldComponent, "handlers")),
	}
}

// HandleUpdate processes one update to completion. Only private chats are
// served.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		message := update.Message
		if message.From == nil || !message.Chat.IsPrivate() {
			return
		}
		if message.IsCommand() {
			h.handleCommand(ctx, message)
			return
		}
		h.handleMessage(ctx, message)
	case update.CallbackQuery != nil:
		h.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

func (h *Handler) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	chatID := message.Chat.ID

	switch cmd := message.Command(); cmd {
	case "start":
		if h.registry.IsAuthorized(userID) {
			h.send(ctx, chatID, MainMenu(h.registry.IsAdmin(userID)))
			return
		}
		if _, err := h.handshake.OnUnauthenticatedEntry(ctx, userID, displayName(message.From)); err != nil {
			h.logger.Error("Access request reply failed", zap.Int64(logger.FieldUserID, userID), zap.Error(err))
		}
	case "menu":
		if !h.registry.IsAuthorized(userID) {
			h.send(ctx, chatID, chat.Prompt{Text: textUnauthorized})
			return
		}
		h.send(ctx, chatID, MainMenu(h.registry.IsAdmin(userID)))
	case "cancel", "cancelar":
		reply, ok := h.engine.Cancel(userID)
		if !ok {
			h.send(ctx, chatID, chat.Prompt{Text: textNoDialogue})
			return
		}
		h.send(ctx, chatID, reply.Prompt)
	default:
		kind := dialogue.Kind(cmd)
		if !h.engine.Has(kind) {
			h.send(ctx, chatID, chat.Prompt{Text: textUnknown})
			return
		}
		h.startDialogue(ctx, chatID, 0, userID, kind)
	}
}

func (h *Handler) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	if _, ok := h.engine.Active(userID); !ok || !h.registry.IsAuthorized(userID) {
		return
	}

	in := chat.Text(message.Text)
	if doc := message.Document; doc != nil {
		data, err := h.transport.Download(ctx, doc.FileID)
		if err != nil {
			h.logger.Error("Document download failed",
				zap.Int64(logger.FieldUserID, userID), zap.Error(err))
			h.send(ctx, message.Chat.ID, chat.Prompt{Text: textDeliveryFail})
			return
		}
		in = chat.File(doc.FileName, data)
	}

	reply, handled, err := h.engine.HandleInput(ctx, userID, in)
	if err != nil {
		h.logger.Error("Dialogue input failed", zap.Int64(logger.FieldUserID, userID), zap.Error(err))
	}
	if handled {
		h.send(ctx, message.Chat.ID, reply.Prompt)
	}
}

func (h *Handler) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	defer func() {
		if err := h.transport.AnswerCallback(ctx, callback.ID, ""); err != nil {
			h.logger.Warn("Answer callback failed", zap.Error(err))
		}
	}()

	if callback.Message == nil || callback.From == nil {
		return
	}
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID
	data := callback.Data

	if strings.HasPrefix(data, auth.CallbackPrefix) {
		h.handleAuthCallback(ctx, callback)
		return
	}

	if !h.registry.IsAuthorized(userID) {
		h.edit(ctx, chatID, messageID, chat.Prompt{Text: textUnauthorized})
		return
	}

	if kind, ok := strings.CutPrefix(data, menuPrefix); ok {
		if kind == menuMain {
			h.edit(ctx, chatID, messageID, MainMenu(h.registry.IsAdmin(userID)))
			return
		}
		h.startDialogue(ctx, chatID, messageID, userID, dialogue.Kind(kind))
		return
	}

	value, isConfirm, ok := dialogue.ParseCallback(data)
	if !ok {
		return
	}

	var (
		reply   dialogue.Reply
		handled bool
		err     error
	)
	if isConfirm {
		reply, handled, err = h.engine.HandleConfirmation(ctx, userID, dialogue.Confirmation(value))
	} else {
		reply, handled, err = h.engine.HandleInput(ctx, userID, chat.Choice(value))
	}
	if err != nil {
		h.logger.Error("Dialogue callback failed", zap.Int64(logger.FieldUserID, userID), zap.Error(err))
	}
	if !handled {
		h.edit(ctx, chatID, messageID, chat.Prompt{Text: textInactive, Buttons: chat.Column(menuButton)})
		return
	}
	h.edit(ctx, chatID, messageID, reply.Prompt)
}

func (h *Handler) startDialogue(ctx context.Context, chatID int64, messageID int, userID int64, kind dialogue.Kind) {
	if !h.registry.IsAuthorized(userID) {
		h.send(ctx, chatID, chat.Prompt{Text: textUnauthorized})
		return
	}
	if adminOnly[kind] && !h.registry.IsAdmin(userID) {
		h.logger.Warn("Admin dialogue refused",
			zap.Int64(logger.FieldUserID, userID), zap.String(logger.FieldDialogue, string(kind)))
		h.reply(ctx, chatID, messageID, chat.Prompt{Text: textAdminOnly})
		return
	}

	reply, err := h.engine.Start(ctx, userID, kind)
	if err != nil {
		h.logger.Error("Dialogue start failed",
			zap.Int64(logger.FieldUserID, userID), zap.String(logger.FieldDialogue, string(kind)), zap.Error(err))
		h.reply(ctx, chatID, messageID, chat.Prompt{Text: textUnknown})
		return
	}
	h.reply(ctx, chatID, messageID, reply.Prompt)
}

// reply edits messageID when it is set, and sends a new message otherwise.
func (h *Handler) reply(ctx context.Context, chatID int64, messageID int, p chat.Prompt) {
	if messageID != 0 {
		h.edit(ctx, chatID, messageID, p)
		return
	}
	h.send(ctx, chatID, p)
}

// edit falls back to a new message when the prompt carries attachments.
func (h *Handler) edit(ctx context.Context, chatID int64, messageID int, p chat.Prompt) {
	if len(p.Attachments) > 0 {
		h.send(ctx, chatID, p)
		return
	}
	if err := h.transport.Edit(ctx, chatID, messageID, p); err != nil {
		h.deliveryFailed(ctx, chatID, err)
	}
}

func (h *Handler) send(ctx context.Context, chatID int64, p chat.Prompt) {
	if err := h.transport.Send(ctx, chatID, p); err != nil {
		h.deliveryFailed(ctx, chatID, err)
	}
}

func (h *Handler) deliveryFailed(ctx context.Context, chatID int64, err error) {
	h.logger.Error("Reply delivery failed", zap.Int64(logger.FieldChatID, chatID), zap.Error(err))
	if err := h.transport.Send(ctx, chatID, chat.Prompt{Text: textDeliveryFail}); err != nil {
		h.logger.Error("Failure notice delivery failed", zap.Int64(logger.FieldChatID, chatID), zap.Error(err))
	}
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
