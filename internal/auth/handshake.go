package auth

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"kamadata-bot/internal/chat"
	"kamadata-bot/pkg/logger"

	"go.uber.org/zap"
)

// Messenger delivers prompts. Implemented by the bot transport.
type Messenger interface {
	Send(ctx context.Context, chatID int64, p chat.Prompt) error
	Edit(ctx context.Context, chatID int64, messageID int, p chat.Prompt) error
}

type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
)

const CallbackPrefix = "auth:"

// DecisionData is the callback payload of an admin decision button.
func DecisionData(d Decision, targetID int64) string {
	return CallbackPrefix + string(d) + ":" + strconv.FormatInt(targetID, 10)
}

// ParseDecision reads a payload built by DecisionData.
func ParseDecision(data string) (Decision, int64, bool) {
	rest, ok := strings.CutPrefix(data, CallbackPrefix)
	if !ok {
		return "", 0, false
	}
	action, idStr, ok := strings.Cut(rest, ":")
	if !ok {
		return "", 0, false
	}
	d := Decision(action)
	if d != Approve && d != Reject {
		return "", 0, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return "", 0, false
	}
	return d, id, true
}

const (
	textPending  = "❌ No autorizado. Su solicitud de acceso ha sido enviada al administrador."
	textNotAdmin = "❌ Sólo los administradores pueden gestionar accesos."
	textResolved = "ℹ️ Esta solicitud ya fue resuelta."
	textApproved = "🎉 ¡Felicidades! El administrador ha APROBADO tu acceso. Usa /start para entrar al menú."
	textRejected = "❌ Lamentablemente, tu solicitud de acceso ha sido RECHAZADA por el administrador."
)

// Handshake runs the access request protocol: an unknown user asks, every
// administrator is prompted, and the first decision on a request wins.
type Handshake struct {
	registry  *Registry
	messenger Messenger
	logger    *zap.Logger

	// pending holds at most one undecided request per requester and is
	// mirrored in the registry's Store. A re-request replaces the entry, so
	// a decision from an older admin message acts on the newest request.
	mu      sync.Mutex
	pending map[int64]string

	// ApprovedButtons are attached to the approval notice, typically the main menu.
	ApprovedButtons [][]chat.Button
}

// NewHandshake restores the undecided requests kept in the registry's Store.
func NewHandshake(ctx context.Context, registry *Registry, messenger Messenger, log *zap.Logger) (*Handshake, error) {
	pending, err := registry.store.LoadPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pending requests: %w", err)
	}
	if pending == nil {
		pending = make(map[int64]string)
	}

	h := &Handshake{
		registry:  registry,
		messenger: messenger,
		logger:    log.With(zap.String(logger.FieldComponent, "handshake")),
		pending:   pending,
	}
	h.logger.Info("Pending access requests loaded", zap.Int("pending", len(pending)))
	return h, nil
}

// OnUnauthenticatedEntry starts a request for userID. It returns false and
// does nothing when the user is already authorized. A repeated request
// broadcasts again.
func (h *Handshake) OnUnauthenticatedEntry(ctx context.Context, userID int64, displayName string) (bool, error) {
	if h.registry.IsAuthorized(userID) {
		return false, nil
	}

	h.mu.Lock()
	h.pending[userID] = displayName
	h.mu.Unlock()

	if err := h.registry.store.SavePending(ctx, userID, displayName); err != nil {
		h.logger.Error("Failed to persist access request",
			zap.Int64(logger.FieldUserID, userID), zap.Error(err))
	}

	var replyErr error
	if err := h.messenger.Send(ctx, userID, chat.Prompt{Text: textPending}); err != nil {
		replyErr = fmt.Errorf("notify requester %d: %w", userID, err)
	}

	request := chat.Prompt{
		Text: fmt.Sprintf("🔔 SOLICITUD DE ACCESO\nUsuario: %s (ID: %d)\n¿Desea autorizarlo?", label(displayName, userID), userID),
		Buttons: chat.Column(
			chat.Button{Label: "✅ Autorizar", Data: DecisionData(Approve, userID)},
			chat.Button{Label: "❌ Rechazar", Data: DecisionData(Reject, userID)},
		),
	}
	for _, adminID := range h.registry.Admins() {
		if err := h.messenger.Send(ctx, adminID, request); err != nil {
			h.logger.Error("Failed to send access request to admin",
				zap.Int64(logger.FieldAdminID, adminID),
				zap.Int64(logger.FieldTargetID, userID),
				zap.Error(err))
		}
	}

	h.logger.Info("Access requested", zap.Int64(logger.FieldUserID, userID))
	return true, replyErr
}

// Pending reports whether userID has an undecided request.
func (h *Handshake) Pending(userID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, ok := h.pending[userID]
	return ok
}

// OnAdminDecision applies an administrator's decision from the request
// message identified by messageID.
func (h *Handshake) OnAdminDecision(ctx context.Context, adminID int64, messageID int, d Decision, targetID int64) error {
	log := h.logger.With(zap.Int64(logger.FieldAdminID, adminID), zap.Int64(logger.FieldTargetID, targetID))

	if !h.registry.IsAdmin(adminID) {
		log.Warn("Access decision from a non-admin")
		return h.messenger.Edit(ctx, adminID, messageID, chat.Prompt{Text: textNotAdmin})
	}

	h.mu.Lock()
	name, ok := h.pending[targetID]
	delete(h.pending, targetID)
	h.mu.Unlock()
	if !ok {
		log.Info("Access decision on a resolved request", zap.String("decision", string(d)))
		return h.messenger.Edit(ctx, adminID, messageID, chat.Prompt{Text: textResolved})
	}

	var (
		adminText string
		notice    chat.Prompt
		err       error
	)
	switch d {
	case Approve:
		err = h.registry.Authorize(ctx, targetID)
		adminText = fmt.Sprintf("✅ Acceso APROBADO para %s.", label(name, targetID))
		notice = chat.Prompt{Text: textApproved, Buttons: h.ApprovedButtons}
	case Reject:
		err = h.registry.Revoke(ctx, targetID)
		adminText = fmt.Sprintf("❌ Acceso RECHAZADO para %s.", label(name, targetID))
		notice = chat.Prompt{Text: textRejected}
	default:
		err = fmt.Errorf("unknown decision %q", d)
	}
	if err != nil {
		h.mu.Lock()
		if _, again := h.pending[targetID]; !again {
			h.pending[targetID] = name
		}
		h.mu.Unlock()
		return err
	}

	log.Info("Access decided", zap.String("decision", string(d)))

	if err := h.registry.store.DeletePending(ctx, targetID); err != nil {
		log.Warn("Could not clear persisted request", zap.Error(err))
	}

	editErr := h.messenger.Edit(ctx, adminID, messageID, chat.Prompt{Text: adminText})

	if err := h.messenger.Send(ctx, targetID, notice); err != nil {
		log.Warn("Could not notify requester", zap.Error(err))
	}
	return editErr
}

func label(displayName string, userID int64) string {
	if displayName == "" {
		return fmt.Sprintf("ID: %d", userID)
	}
	return "@" + displayName
}
