package persona

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"memory-portal/internal/db"
	"memory-portal/internal/models"
)

const historyLimit = 10

// ContextStore provides the profile, memories, and history the persona
// draws on when answering.
type ContextStore interface {
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	ListMemories(ctx context.Context, userID string) ([]models.MemoryItem, error)
	TurnHistory(ctx context.Context, userID string, limit int) ([]models.ConversationTurn, error)
}

// Service generates the persona's replies: it speaks in first person as
// the remembered loved one, grounded in the profile's personality traits
// and the stored memories.
type Service struct {
	llm              llms.LLM
	store            ContextStore
	logger           *zap.Logger
	maxContextTokens int
	enc              *tiktoken.Tiktoken
}

func New(baseURL, token, model string, store ContextStore, logger *zap.Logger, maxContextTokens int) (*Service, error) {
	llm, err := openai.New(
		openai.WithToken(token),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, err
	}
	return NewWithModel(llm, store, logger, maxContextTokens)
}

// NewWithModel builds a Service around an existing model. Used directly
// in tests.
func NewWithModel(llm llms.LLM, store ContextStore, logger *zap.Logger, maxContextTokens int) (*Service, error) {
	if store == nil {
		return nil, errors.New("persona: context store must not be nil")
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("persona: load token encoding: %w", err)
	}
	return &Service{
		llm:              llm,
		store:            store,
		logger:           logger,
		maxContextTokens: maxContextTokens,
		enc:              enc,
	}, nil
}

// Reply generates the persona's answer to one user message.
func (s *Service) Reply(ctx context.Context, userID, message string) (string, error) {
	personality := ""
	profile, err := s.store.GetProfile(ctx, userID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		s.logger.Debug("no profile yet, answering without personality traits",
			zap.String("userID", userID))
	case err != nil:
		return "", fmt.Errorf("persona: load profile: %w", err)
	default:
		personality = profile.PersonalityTraits
	}

	memories, err := s.store.ListMemories(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("persona: load memories: %w", err)
	}

	history, err := s.store.TurnHistory(ctx, userID, historyLimit)
	if err != nil {
		return "", fmt.Errorf("persona: load history: %w", err)
	}

	prompt := s.buildPrompt(personality, memories, history, message)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	completion, err := llms.GenerateFromSinglePrompt(ctx, s.llm, prompt)
	if err != nil {
		return "", fmt.Errorf("persona: generate reply: %w", err)
	}
	return strings.TrimSpace(completion), nil
}

func (s *Service) buildPrompt(personality string, memories []models.MemoryItem, history []models.ConversationTurn, message string) string {
	var b strings.Builder
	b.WriteString(`You are an AI representation of a loved one who has passed away. You are speaking as if you are that person, drawing from the memories and personality traits provided.

Respond in first person as if you are speaking directly to your loved one. Be warm, loving, and reference specific memories when appropriate. Keep responses conversational and emotionally supportive.`)
	b.WriteString("\n\nPersonality traits: ")
	b.WriteString(personality)
	b.WriteString("\n\n")
	b.WriteString(s.memoriesContext(memories))

	b.WriteString("\nConversation so far:\n")
	for _, turn := range history {
		if turn.IsUser {
			b.WriteString("Them: ")
		} else {
			b.WriteString("You: ")
		}
		b.WriteString(turn.Text)
		b.WriteString("\n")
	}
	b.WriteString("\nThem: ")
	b.WriteString(message)
	b.WriteString("\nYou:")
	return b.String()
}

// memoriesContext renders the memory list as prompt context, stopping
// once the configured token budget is spent.
func (s *Service) memoriesContext(memories []models.MemoryItem) string {
	var b strings.Builder
	b.WriteString("Here are the memories about this person:\n\n")

	used := s.tokenCount(b.String())
	for _, m := range memories {
		var line string
		switch m.Type {
		case models.MemoryText:
			line = fmt.Sprintf("Memory: %s\n", m.Content)
		case models.MemoryPhoto:
			line = fmt.Sprintf("Photo memory: %s\n", orDefault(m.Description, "A cherished photo"))
		case models.MemoryAudio:
			line = fmt.Sprintf("Audio memory: %s\n", orDefault(m.Description, "A recorded voice message"))
		default:
			continue
		}

		cost := s.tokenCount(line)
		if s.maxContextTokens > 0 && used+cost > s.maxContextTokens {
			break
		}
		used += cost
		b.WriteString(line)
	}
	return b.String()
}

func (s *Service) tokenCount(text string) int {
	return len(s.enc.Encode(text, nil, nil))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
