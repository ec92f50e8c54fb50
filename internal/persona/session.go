package persona

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"profiler-service/internal/assembler"
	"profiler-service/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	Temperature float32 = 0.9
	MaxTokens           = 500
)

// Status of a persona session
type Status int

const (
	StatusInactive Status = iota
	StatusSynchronizing
	StatusActive
)

func (s Status) String() string {
	switch s {
	case StatusSynchronizing:
		return "synchronizing"
	case StatusActive:
		return "active"
	default:
		return "inactive"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Role of a turn in the conversation
type Role string

const (
	RoleUser    Role = "user"
	RoleSubject Role = "subject"
)

// Turn is one entry of the conversation history.
type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Completer is the generative model that answers as the subject.
type Completer interface {
	Complete(ctx context.Context, req models.CompletionRequest) (string, error)
}

// State is a copy of the session's observable state.
type State struct {
	ID           string    `json:"id,omitempty"`
	Subject      string    `json:"subject,omitempty"`
	Status       Status    `json:"status"`
	ReportKind   string    `json:"report_kind,omitempty"`
	Instruction  string    `json:"instruction,omitempty"`
	History      []Turn    `json:"history"`
	Synchronized time.Time `json:"synchronized_at,omitempty"`
}

// Session holds a fixed persona instruction and an append-only history.
// History is never windowed; every turn resends the whole conversation.
type Session struct {
	// turnMu serializes SendTurn so each turn sees the previous reply
	turnMu sync.Mutex

	mu           sync.Mutex
	client       Completer
	logger       *zap.Logger
	id           string
	subject      string
	reportKind   models.ReportKind
	instruction  string
	history      []Turn
	status       Status
	synchronized time.Time
	now          func() time.Time
}

// NewSession creates an inactive session. client may be nil, in which case
// Synchronize fails with models.ErrModelUnavailable.
func NewSession(client Completer, logger *zap.Logger) *Session {
	return &Session{client: client, logger: logger, now: time.Now}
}

// Synchronize builds the persona instruction from the subject, evidence and
// report, clears the history and activates the session under a new ID.
// On any failed precondition the session is left untouched.
func (s *Session) Synchronize(subject string, items []models.EvidenceItem, report models.ProfileReport) error {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return fmt.Errorf("%w: no subject name", models.ErrSessionPrecondition)
	}
	if report.IsZero() {
		return fmt.Errorf("%w: no profile report", models.ErrSessionPrecondition)
	}
	if s.client == nil {
		return models.ErrModelUnavailable
	}

	s.mu.Lock()
	prev := s.status
	s.status = StatusSynchronizing
	s.mu.Unlock()

	instruction := assembler.PersonaInstruction(subject, items, report)
	if instruction == "" {
		s.mu.Lock()
		s.status = prev
		s.mu.Unlock()
		return fmt.Errorf("%w: report has no usable content", models.ErrSessionPrecondition)
	}

	s.mu.Lock()
	s.id = uuid.New().String()
	s.subject = subject
	s.reportKind = report.Kind()
	s.instruction = instruction
	s.history = nil
	s.status = StatusActive
	s.synchronized = s.now()
	id := s.id
	s.mu.Unlock()

	s.logger.Info("Persona synchronized",
		zap.String("session_id", id),
		zap.String("subject", subject),
		zap.String("report_kind", report.Kind().String()),
		zap.Int("instruction_chars", models.CharCount(instruction)))
	return nil
}

// SendTurn appends the user's text, asks the model for the subject's reply
// and appends it. On failure the user turn stays in the history and the
// error wraps models.ErrTurnFailed.
func (s *Session) SendTurn(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty message", models.ErrInvalidInput)
	}

	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return "", models.ErrSessionInactive
	}
	id := s.id
	req := models.CompletionRequest{
		System:      s.instruction,
		History:     toMessages(s.history),
		Prompt:      text,
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
		NoFailover:  true,
	}
	s.history = append(s.history, Turn{Role: RoleUser, Text: text, At: s.now()})
	s.mu.Unlock()

	reply, err := s.client.Complete(ctx, req)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = fmt.Errorf("empty reply")
	}
	if err != nil {
		s.logger.Warn("Persona turn failed", zap.String("session_id", id), zap.Error(err))
		return "", fmt.Errorf("%w: %v", models.ErrTurnFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// a resynchronize during the call started a new conversation
	if s.id != id {
		return "", fmt.Errorf("%w: session was resynchronized", models.ErrTurnFailed)
	}
	s.history = append(s.history, Turn{Role: RoleSubject, Text: reply, At: s.now()})
	return reply, nil
}

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// History returns a copy of the conversation so far.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.history...)
}

// Instruction returns the fixed system instruction, empty when inactive.
func (s *Session) Instruction() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instruction
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		ID:           s.id,
		Subject:      s.subject,
		Status:       s.status,
		Instruction:  s.instruction,
		History:      append([]Turn{}, s.history...),
		Synchronized: s.synchronized,
	}
	if s.reportKind != models.ReportNone {
		st.ReportKind = s.reportKind.String()
	}
	return st
}

func toMessages(turns []Turn) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(turns))
	for _, t := range turns {
		role := models.RoleUser
		if t.Role == RoleSubject {
			role = models.RoleAssistant
		}
		out = append(out, models.ChatMessage{Role: role, Content: t.Text})
	}
	return out
}
