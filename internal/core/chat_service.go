package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"scrapp.io/client/internal/api"
	"scrapp.io/client/internal/apperr"
)

const (
	DisposalChatPath = "/api/disposal-chat/"

	genericSubject   = "this item"
	noReplyText      = "(no reply)"
	replyErrorPrefix = "Sorry, error: "
)

// ErrSendInFlight is returned when a session already has a round-trip outstanding.
var ErrSendInFlight = errors.New("a message is already being sent")

// ChatRequest is the body of one chat round-trip. The backend keeps no state
// between calls, so History always carries the whole conversation.
type ChatRequest struct {
	Message      string     `json:"message"`
	Label        *string    `json:"label,omitempty"`
	Instructions *string    `json:"instructions,omitempty"`
	History      []ChatTurn `json:"history"`
}

// Responder produces the assistant reply for one round-trip. A nil reply
// means the service answered without one.
type Responder interface {
	Reply(ctx context.Context, req ChatRequest) (*string, error)
}

// ChatSession is one item-disposal conversation. The subject label and
// instructions are fixed at creation; turns are only ever appended.
type ChatSession struct {
	ID           string
	label        string
	instructions string

	inflight *semaphore.Weighted

	mu    sync.Mutex
	turns []ChatTurn
}

func (s *ChatSession) Label() string        { return s.label }
func (s *ChatSession) Instructions() string { return s.instructions }

// History returns a copy of the turns so far.
func (s *ChatSession) History() []ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (s *ChatSession) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Busy reports whether a send is outstanding.
func (s *ChatSession) Busy() bool {
	if !s.inflight.TryAcquire(1) {
		return true
	}
	s.inflight.Release(1)
	return false
}

func (s *ChatSession) appendTurn(turn ChatTurn) []ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
	out := make([]ChatTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

type ChatService struct {
	responder Responder
	logger    *zap.Logger
}

func NewChatService(responder Responder, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{responder: responder, logger: logger}
}

// NewSession starts a conversation about a classified item. Both arguments
// may be empty when nothing is known about the item.
func (s *ChatService) NewSession(label, instructions string) *ChatSession {
	label = strings.TrimSpace(label)
	subject := label
	if subject == "" {
		subject = genericSubject
	}

	return &ChatSession{
		ID:           uuid.NewString(),
		label:        label,
		instructions: strings.TrimSpace(instructions),
		inflight:     semaphore.NewWeighted(1),
		turns: []ChatTurn{{
			Role:    RoleAssistant,
			Content: fmt.Sprintf("Ask me anything about disposing %s responsibly.", subject),
		}},
	}
}

// NewSessionFromResult seeds a session with a classification verdict.
func (s *ChatService) NewSessionFromResult(result *ClassificationResult) *ChatSession {
	if result == nil {
		return s.NewSession("", "")
	}
	return s.NewSession(result.Label, result.SubjectInstructions())
}

// Send runs one round-trip. The user turn is appended before the request goes
// out and exactly one assistant turn is appended after it resolves; a failed
// round-trip becomes an assistant turn describing the error rather than an
// error return. Blank input and concurrent sends are rejected without
// touching the history.
func (s *ChatService) Send(ctx context.Context, sess *ChatSession, text string) (ChatTurn, error) {
	msg := strings.TrimSpace(text)
	if msg == "" {
		return ChatTurn{}, apperr.Validation("chat", "message is empty")
	}
	if !sess.inflight.TryAcquire(1) {
		return ChatTurn{}, ErrSendInFlight
	}
	defer sess.inflight.Release(1)

	history := sess.appendTurn(ChatTurn{Role: RoleUser, Content: msg})

	req := ChatRequest{
		Message: msg,
		History: history,
	}
	if sess.label != "" {
		req.Label = &sess.label
	}
	if sess.instructions != "" {
		req.Instructions = &sess.instructions
	}

	reply, err := s.responder.Reply(ctx, req)

	var content string
	switch {
	case err != nil:
		s.logger.Warn("Chat round-trip failed", zap.String("session", sess.ID), zap.Error(err))
		content = replyErrorPrefix + apperr.UserMessage(err)
	case reply == nil:
		content = noReplyText
	default:
		content = *reply
	}

	turn := ChatTurn{Role: RoleAssistant, Content: content}
	sess.appendTurn(turn)
	return turn, nil
}

// HTTPResponder talks to the backend's disposal chat endpoint. The endpoint
// is called without credentials.
type HTTPResponder struct {
	gw *api.Client
}

// NewHTTPResponder expects gw to be rooted at the service base URL.
func NewHTTPResponder(gw *api.Client) *HTTPResponder {
	return &HTTPResponder{gw: gw}
}

func (r *HTTPResponder) Reply(ctx context.Context, req ChatRequest) (*string, error) {
	var resp struct {
		Reply *string `json:"reply"`
	}
	if err := r.gw.Post(ctx, DisposalChatPath, req, &resp); err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	return resp.Reply, nil
}
