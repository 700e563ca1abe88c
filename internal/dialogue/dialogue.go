// Package dialogue implements the guided data-collection state machine
// shared by every production area and administrative task. A dialogue is a
// declarative Spec: an ordered list of steps, an optional confirmation, and
// a commit action.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kamadata-bot/internal/chat"
	"kamadata-bot/internal/validate"
)

type Kind string

const (
	KindSardine       Kind = "sardina"
	KindTable         Kind = "mesa"
	KindLine          Kind = "linea"
	KindPacking       Kind = "empaque"
	KindWorkerImport  Kind = "trabajadores"
	KindSummaryByDate Kind = "resumen"
	KindPeriodReport  Kind = "reporte_periodo"
)

// StepConfirm is the state of a session waiting for commit, edit or cancel.
const StepConfirm = "confirm"

// Fields is the typed record a dialogue accumulates. Each dialogue kind has
// its own implementation.
type Fields interface {
	Kind() Kind
}

// Session is the transient state of one user's dialogue.
type Session struct {
	UserID    int64
	Kind      Kind
	Step      string
	Fields    Fields
	UpdatedAt time.Time
}

// Store keeps at most one session per user. Implementations must make each
// call atomic per user.
type Store interface {
	Get(userID int64) (*Session, bool)
	Put(s *Session)
	Delete(userID int64)
}

// Step is one prompt/validate/advance unit. Apply must leave the session
// untouched when it returns an error.
type Step struct {
	Name   string
	Input  chat.InputKind
	Prompt chat.Prompt
	Retry  string
	Apply  func(s *Session, in chat.Input) error
}

// Spec describes one dialogue. When Summary is nil the dialogue commits as
// soon as the last step succeeds.
type Spec struct {
	Kind       Kind
	Title      string
	NewFields  func() Fields
	Steps      []Step
	Summary    func(f Fields) string
	EditFrom   string
	EditNotice string
	CancelText string
	Commit     func(ctx context.Context, s *Session) (chat.Prompt, error)
}

func (sp *Spec) stepIndex(name string) int {
	for i, st := range sp.Steps {
		if st.Name == name {
			return i
		}
	}
	return -1
}

func (sp *Spec) validate() error {
	if len(sp.Steps) == 0 {
		return fmt.Errorf("dialogue %s: no steps", sp.Kind)
	}
	if sp.NewFields == nil || sp.Commit == nil {
		return fmt.Errorf("dialogue %s: NewFields and Commit are required", sp.Kind)
	}
	seen := make(map[string]bool, len(sp.Steps))
	for _, st := range sp.Steps {
		if st.Name == "" || st.Name == StepConfirm || seen[st.Name] {
			return fmt.Errorf("dialogue %s: bad step name %q", sp.Kind, st.Name)
		}
		if st.Apply == nil {
			return fmt.Errorf("dialogue %s: step %s has no Apply", sp.Kind, st.Name)
		}
		seen[st.Name] = true
	}
	if sp.Summary != nil && sp.stepIndex(sp.EditFrom) < 0 {
		return fmt.Errorf("dialogue %s: edit target %q is not a step", sp.Kind, sp.EditFrom)
	}
	return nil
}

var errWrongInput = errors.New("unexpected input kind")

func fieldsAs[F Fields](s *Session) (F, error) {
	f, ok := s.Fields.(F)
	if !ok {
		var zero F
		return zero, fmt.Errorf("dialogue %s: fields have type %T", s.Kind, s.Fields)
	}
	return f, nil
}

// TextStep builds a free-text step that parses the input and stores it.
func TextStep[F Fields, T any](name, prompt, retry string, parse func(string) (T, error), set func(F, T)) Step {
	return Step{
		Name:   name,
		Input:  chat.InputText,
		Prompt: chat.Prompt{Text: prompt},
		Retry:  retry,
		Apply: func(s *Session, in chat.Input) error {
			f, err := fieldsAs[F](s)
			if err != nil {
				return err
			}
			v, err := parse(in.Text)
			if err != nil {
				return err
			}
			set(f, v)
			return nil
		},
	}
}

// ChoiceStep builds a button step offering options in order.
func ChoiceStep[F Fields](name, prompt, retry string, options []string, set func(F, string)) Step {
	buttons := make([]chat.Button, 0, len(options))
	for _, o := range options {
		buttons = append(buttons, chat.Button{Label: o, Data: ChoiceData(o)})
	}
	check := validate.OneOf(options...)
	return Step{
		Name:   name,
		Input:  chat.InputChoice,
		Prompt: chat.Prompt{Text: prompt, Buttons: chat.Column(buttons...)},
		Retry:  retry,
		Apply: func(s *Session, in chat.Input) error {
			f, err := fieldsAs[F](s)
			if err != nil {
				return err
			}
			v, err := check(in.Text)
			if err != nil {
				return err
			}
			set(f, v)
			return nil
		},
	}
}

// DocumentStep builds a step waiting for an uploaded file.
func DocumentStep[F Fields, T any](name, prompt, retry string, parse func(*chat.Document) (T, error), set func(F, T)) Step {
	return Step{
		Name:   name,
		Input:  chat.InputDocument,
		Prompt: chat.Prompt{Text: prompt},
		Retry:  retry,
		Apply: func(s *Session, in chat.Input) error {
			f, err := fieldsAs[F](s)
			if err != nil {
				return err
			}
			v, err := parse(in.Document)
			if err != nil {
				return err
			}
			set(f, v)
			return nil
		},
	}
}

// Confirmation is the outcome picked at the confirmation step.
type Confirmation string

const (
	ConfirmCommit Confirmation = "commit"
	ConfirmEdit   Confirmation = "edit"
	ConfirmCancel Confirmation = "cancel"
)

const (
	CallbackPrefix = "dlg:"
	confirmPrefix  = CallbackPrefix + "confirm:"
)

// ChoiceData is the callback payload of a step button.
func ChoiceData(value string) string {
	return CallbackPrefix + value
}

// ConfirmData is the callback payload of a confirmation button.
func ConfirmData(c Confirmation) string {
	return confirmPrefix + string(c)
}

// ParseCallback splits dialogue callback data. isConfirm reports whether it
// came from a confirmation button; ok is false for data not owned by the engine.
func ParseCallback(data string) (value string, isConfirm bool, ok bool) {
	if v, found := strings.CutPrefix(data, confirmPrefix); found {
		return v, true, true
	}
	if v, found := strings.CutPrefix(data, CallbackPrefix); found {
		return v, false, true
	}
	return "", false, false
}
