package dialogue

import (
	"context"
	"fmt"
	"time"

	"kamadata-bot/internal/chat"
	"kamadata-bot/pkg/logger"

	"go.uber.org/zap"
)

type Outcome int

const (
	OutcomeContinue Outcome = iota
	OutcomeRetry
	OutcomeCommitted
	OutcomeCancelled
	OutcomeFailed
)

// Reply is what the engine wants sent back to the user.
type Reply struct {
	Prompt  chat.Prompt
	Outcome Outcome
}

// Terminal reports whether the session ended with this reply.
func (r Reply) Terminal() bool {
	return r.Outcome == OutcomeCommitted || r.Outcome == OutcomeCancelled || r.Outcome == OutcomeFailed
}

const (
	confirmQuestion = "¿Qué desea hacer?"
	failureText     = "❌ Ocurrió un error al guardar el registro. No se guardó nada; intente de nuevo más tarde."
	defaultCancel   = "❌ Cancelado."
)

type Engine struct {
	specs  map[Kind]*Spec
	store  Store
	logger *zap.Logger
	now    func() time.Time

	// MenuButton is appended to every terminal prompt when its Data is set.
	MenuButton chat.Button
}

func New(store Store, log *zap.Logger, specs ...*Spec) (*Engine, error) {
	e := &Engine{
		specs:  make(map[Kind]*Spec, len(specs)),
		store:  store,
		logger: log.With(zap.String(logger.FieldComponent, "dialogue")),
		now:    time.Now,
	}
	for _, sp := range specs {
		if err := sp.validate(); err != nil {
			return nil, err
		}
		if _, dup := e.specs[sp.Kind]; dup {
			return nil, fmt.Errorf("dialogue %s registered twice", sp.Kind)
		}
		e.specs[sp.Kind] = sp
	}
	return e, nil
}

// Has reports whether a dialogue of this kind is registered.
func (e *Engine) Has(kind Kind) bool {
	_, ok := e.specs[kind]
	return ok
}

// Active returns the user's current session, if any.
func (e *Engine) Active(userID int64) (*Session, bool) {
	return e.store.Get(userID)
}

// Start opens a new session at the first step, replacing any earlier one.
func (e *Engine) Start(ctx context.Context, userID int64, kind Kind) (Reply, error) {
	sp, ok := e.specs[kind]
	if !ok {
		return Reply{}, fmt.Errorf("unknown dialogue %q", kind)
	}

	if old, ok := e.store.Get(userID); ok {
		e.logger.Debug("Replacing stale session",
			zap.Int64(logger.FieldUserID, userID),
			zap.String(logger.FieldDialogue, string(old.Kind)),
			zap.String(logger.FieldStep, old.Step))
	}

	first := sp.Steps[0]
	e.store.Put(&Session{
		UserID:    userID,
		Kind:      kind,
		Step:      first.Name,
		Fields:    sp.NewFields(),
		UpdatedAt: e.now(),
	})

	e.logger.Info("Dialogue started",
		zap.Int64(logger.FieldUserID, userID),
		zap.String(logger.FieldDialogue, string(kind)))

	return Reply{Prompt: withTitle(sp, first.Prompt)}, nil
}

// HandleInput feeds one inbound event to the user's session. handled is false
// when the user has no session, in which case the input is ignored.
func (e *Engine) HandleInput(ctx context.Context, userID int64, in chat.Input) (reply Reply, handled bool, err error) {
	s, ok := e.store.Get(userID)
	if !ok {
		return Reply{}, false, nil
	}
	sp, ok := e.specs[s.Kind]
	if !ok {
		e.store.Delete(userID)
		return Reply{}, false, nil
	}

	if s.Step == StepConfirm {
		if in.Kind == chat.InputChoice {
			r, err := e.confirm(ctx, sp, s, Confirmation(in.Text))
			return r, true, err
		}
		return Reply{Prompt: e.confirmPrompt(sp, s), Outcome: OutcomeRetry}, true, nil
	}

	idx := sp.stepIndex(s.Step)
	if idx < 0 {
		e.store.Delete(userID)
		return Reply{}, false, fmt.Errorf("session of %d is at unknown step %q", userID, s.Step)
	}
	step := sp.Steps[idx]

	log := e.logger.With(
		zap.Int64(logger.FieldUserID, userID),
		zap.String(logger.FieldDialogue, string(s.Kind)),
		zap.String(logger.FieldStep, step.Name))

	applyErr := errWrongInput
	if in.Kind == step.Input {
		applyErr = step.Apply(s, in)
	}
	if applyErr != nil {
		log.Debug("Input rejected", zap.Error(applyErr))
		retry := step.Prompt
		retry.Text = step.Retry
		return Reply{Prompt: retry, Outcome: OutcomeRetry}, true, nil
	}

	s.UpdatedAt = e.now()
	if idx+1 < len(sp.Steps) {
		next := sp.Steps[idx+1]
		s.Step = next.Name
		e.store.Put(s)
		return Reply{Prompt: next.Prompt}, true, nil
	}

	if sp.Summary != nil {
		s.Step = StepConfirm
		e.store.Put(s)
		return Reply{Prompt: e.confirmPrompt(sp, s)}, true, nil
	}

	return e.commit(ctx, sp, s), true, nil
}

// HandleConfirmation applies commit, edit or cancel. handled is false when
// the user has no session waiting for confirmation.
func (e *Engine) HandleConfirmation(ctx context.Context, userID int64, choice Confirmation) (reply Reply, handled bool, err error) {
	s, ok := e.store.Get(userID)
	if !ok || s.Step != StepConfirm {
		return Reply{}, false, nil
	}
	sp, ok := e.specs[s.Kind]
	if !ok {
		e.store.Delete(userID)
		return Reply{}, false, nil
	}
	r, err := e.confirm(ctx, sp, s, choice)
	return r, true, err
}

// Cancel drops the user's session without writing anything.
func (e *Engine) Cancel(userID int64) (Reply, bool) {
	s, ok := e.store.Get(userID)
	if !ok {
		return Reply{}, false
	}
	e.store.Delete(userID)
	text := defaultCancel
	if sp, ok := e.specs[s.Kind]; ok && sp.CancelText != "" {
		text = sp.CancelText
	}
	return Reply{Prompt: e.terminal(chat.Prompt{Text: text}), Outcome: OutcomeCancelled}, true
}

func (e *Engine) confirm(ctx context.Context, sp *Spec, s *Session, choice Confirmation) (Reply, error) {
	switch choice {
	case ConfirmCommit:
		return e.commit(ctx, sp, s), nil
	case ConfirmCancel:
		r, _ := e.Cancel(s.UserID)
		return r, nil
	case ConfirmEdit:
		idx := sp.stepIndex(sp.EditFrom)
		step := sp.Steps[idx]
		s.Step = step.Name
		s.UpdatedAt = e.now()
		e.store.Put(s)
		p := step.Prompt
		if sp.EditNotice != "" {
			p.Text = sp.EditNotice + "\n" + p.Text
		}
		return Reply{Prompt: p}, nil
	default:
		return Reply{Prompt: e.confirmPrompt(sp, s), Outcome: OutcomeRetry}, nil
	}
}

func (e *Engine) commit(ctx context.Context, sp *Spec, s *Session) Reply {
	e.store.Delete(s.UserID)

	log := e.logger.With(
		zap.Int64(logger.FieldUserID, s.UserID),
		zap.String(logger.FieldDialogue, string(s.Kind)))

	p, err := sp.Commit(ctx, s)
	if err != nil {
		log.Error("Commit failed", zap.Error(err))
		return Reply{Prompt: e.terminal(chat.Prompt{Text: failureText}), Outcome: OutcomeFailed}
	}
	log.Info("Dialogue committed")
	return Reply{Prompt: e.terminal(p), Outcome: OutcomeCommitted}
}

func (e *Engine) confirmPrompt(sp *Spec, s *Session) chat.Prompt {
	return chat.Prompt{
		Text: sp.Summary(s.Fields) + "\n" + confirmQuestion,
		Buttons: chat.Column(
			chat.Button{Label: "✅ Confirmar", Data: ConfirmData(ConfirmCommit)},
			chat.Button{Label: "✏️ Editar", Data: ConfirmData(ConfirmEdit)},
			chat.Button{Label: "❌ Cancelar", Data: ConfirmData(ConfirmCancel)},
		),
	}
}

func (e *Engine) terminal(p chat.Prompt) chat.Prompt {
	if e.MenuButton.Data != "" {
		p.Buttons = append(p.Buttons, chat.Row(e.MenuButton))
	}
	return p
}

func withTitle(sp *Spec, p chat.Prompt) chat.Prompt {
	if sp.Title != "" {
		p.Text = sp.Title + "\n" + p.Text
	}
	return p
}
