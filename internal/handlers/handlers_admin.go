package handlers

import (
	"context"

	"kamadata-bot/internal/auth"
	"kamadata-bot/internal/chat"
	"kamadata-bot/internal/dialogue"
	"kamadata-bot/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const textAdminOnly = "❌ Sólo los administradores pueden gestionar la lista de trabajadores."

// adminOnly lists the dialogues restricted to administrators.
var adminOnly = map[dialogue.Kind]bool{
	dialogue.KindWorkerImport: true,
}

func (h *Handler) handleAuthCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	adminID := callback.From.ID
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	decision, targetID, ok := auth.ParseDecision(callback.Data)
	if !ok {
		h.logger.Warn("Malformed access decision", zap.String("data", callback.Data))
		return
	}

	if err := h.handshake.OnAdminDecision(ctx, adminID, messageID, decision, targetID); err != nil {
		h.logger.Error("Access decision failed",
			zap.Int64(logger.FieldAdminID, adminID),
			zap.Int64(logger.FieldTargetID, targetID),
			zap.Error(err))
		h.send(ctx, chatID, chat.Prompt{Text: textDeliveryFail})
	}
}
