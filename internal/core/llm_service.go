package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	DefaultGeminiModel = "gemini-1.5-flash"

	// Prior turns forwarded to the model.
	maxHistoryTurns = 10

	disposalSystemGuide = "You are a recycling and waste-disposal assistant. " +
		"Be concise, actionable, and accurate. " +
		"Always note that local rules vary and users should check their municipality's website. " +
		"When unsure, ask a clarifying question (e.g., type numbers on plastic, contamination, etc.)."
)

// LLMService answers disposal chat turns by calling Gemini directly instead of
// going through the backend's chat endpoint.
type LLMService struct {
	client    *genai.Client
	modelName string
	logger    *zap.Logger
	now       func() time.Time
}

func NewLLMService(ctx context.Context, apiKey, modelName string, logger *zap.Logger) (*LLMService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &LLMService{
		client:    client,
		modelName: modelName,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Warn("Error closing GenAI client", zap.Error(err))
		}
	}
}

func (s *LLMService) Reply(ctx context.Context, req ChatRequest) (*string, error) {
	model := s.client.GenerativeModel(s.modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(disposalSystemGuide)},
	}

	chatSession := model.StartChat()
	chatSession.History = geminiHistory(req.History, req.Message)

	resp, err := chatSession.SendMessage(ctx, genai.Text(buildDisposalPrompt(req, s.now())))
	if err != nil {
		return nil, fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		s.logger.Warn("Gemini response was empty or had no valid candidates/parts")
		return nil, nil
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			s.logger.Debug("Gemini response part was not text", zap.String("type", fmt.Sprintf("%T", part)))
		}
	}

	text := strings.TrimSpace(responseText.String())
	if text == "" {
		return nil, nil
	}
	return &text, nil
}

// subjectContext renders the fixed label/instructions pair for the prompt.
func subjectContext(req ChatRequest) string {
	var bits []string
	if req.Label != nil && *req.Label != "" {
		bits = append(bits, "Predicted category: "+*req.Label)
	}
	if req.Instructions != nil && *req.Instructions != "" {
		bits = append(bits, "Recommended steps: "+*req.Instructions)
	}
	if len(bits) == 0 {
		return "No prior classification context."
	}
	return strings.Join(bits, "\n")
}

func buildDisposalPrompt(req ChatRequest, now time.Time) string {
	return fmt.Sprintf("Context:\n%s\n\nUser message at %s:\n%s",
		subjectContext(req), now.UTC().Format(time.RFC3339), req.Message)
}

// geminiHistory converts prior turns to Gemini contents. The trailing user
// turn carrying message is sent as the prompt instead, only the last
// maxHistoryTurns are kept, and leading model turns are dropped because
// Gemini requires a conversation to open with the user.
func geminiHistory(turns []ChatTurn, message string) []*genai.Content {
	if n := len(turns); n > 0 && turns[n-1].Role == RoleUser && turns[n-1].Content == message {
		turns = turns[:n-1]
	}
	if len(turns) > maxHistoryTurns {
		turns = turns[len(turns)-maxHistoryTurns:]
	}
	for len(turns) > 0 && turns[0].Role != RoleUser {
		turns = turns[1:]
	}

	history := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := "model"
		if t.Role == RoleUser {
			role = "user"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(t.Content)},
		})
	}
	return history
}
