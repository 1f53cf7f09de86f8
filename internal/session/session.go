package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"memory-portal/internal/models"
)

const createJobTimeout = 30 * time.Second

type TurnStore interface {
	SaveTurn(ctx context.Context, t *models.ConversationTurn) error
	TurnHistory(ctx context.Context, userID string, limit int) ([]models.ConversationTurn, error)
}

type ReplyProvider interface {
	Reply(ctx context.Context, userID, message string) (string, error)
}

type ProfileProvider interface {
	GetOrCreate(ctx context.Context, userID string) (*models.UserProfile, error)
}

// JobStarter creates one rendering job per assistant reply. A created
// job is tracked to completion by its owner; the session only kicks it
// off.
type JobStarter interface {
	CreateJob(ctx context.Context, userID, imageURL, text, sourceTurnID string) (string, error)
}

// Exchange is one completed user/assistant turn pair.
type Exchange struct {
	UserTurn      models.ConversationTurn `json:"user_message"`
	AssistantTurn models.ConversationTurn `json:"ai_response"`
}

// Session owns the ordered conversation history for the portal. Each
// submit appends the user turn first, then the persona's reply, and as a
// side effect kicks off avatar rendering for the reply when the profile
// has an avatar image bound.
type Session struct {
	turns    TurnStore
	persona  ReplyProvider
	profiles ProfileProvider
	jobs     JobStarter
	logger   *zap.Logger
}

func New(turns TurnStore, persona ReplyProvider, profiles ProfileProvider, jobs JobStarter, logger *zap.Logger) *Session {
	return &Session{
		turns:    turns,
		persona:  persona,
		profiles: profiles,
		jobs:     jobs,
		logger:   logger,
	}
}

// Submit appends the user's message, asks the persona for a reply, and
// appends that too. The user turn is written before the reply is
// requested and is never rolled back: if the reply fails, the turn stays
// in history and the error surfaces to the caller.
//
// Rendering is strictly a side effect. A job-creation failure is logged
// and swallowed; the exchange itself has already succeeded.
func (s *Session) Submit(ctx context.Context, userID, text string) (*Exchange, error) {
	userTurn := models.ConversationTurn{
		ID:        uuid.NewString(),
		UserID:    userID,
		IsUser:    true,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	if err := s.turns.SaveTurn(ctx, &userTurn); err != nil {
		return nil, fmt.Errorf("session: save user turn: %w", err)
	}

	reply, err := s.persona.Reply(ctx, userID, text)
	if err != nil {
		return nil, fmt.Errorf("session: generate reply: %w", err)
	}

	assistantTurn := models.ConversationTurn{
		ID:        uuid.NewString(),
		UserID:    userID,
		IsUser:    false,
		Text:      reply,
		Timestamp: time.Now().UTC(),
	}
	if err := s.turns.SaveTurn(ctx, &assistantTurn); err != nil {
		return nil, fmt.Errorf("session: save assistant turn: %w", err)
	}

	s.startRendering(ctx, userID, assistantTurn)

	return &Exchange{UserTurn: userTurn, AssistantTurn: assistantTurn}, nil
}

// History returns the user's conversation in chronological order.
func (s *Session) History(ctx context.Context, userID string) ([]models.ConversationTurn, error) {
	return s.turns.TurnHistory(ctx, userID, 0)
}

func (s *Session) startRendering(ctx context.Context, userID string, turn models.ConversationTurn) {
	prof, err := s.profiles.GetOrCreate(ctx, userID)
	if err != nil {
		s.logger.Warn("skipping avatar rendering, profile unavailable",
			zap.String("userID", userID),
			zap.Error(err))
		return
	}
	if prof.AvatarImageURL == "" {
		return
	}

	// Fire and forget: job creation outlives the request that caused it.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), createJobTimeout)
		defer cancel()

		if _, err := s.jobs.CreateJob(ctx, userID, prof.AvatarImageURL, turn.Text, turn.ID); err != nil {
			s.logger.Warn("avatar job creation failed",
				zap.String("userID", userID),
				zap.String("sourceTurnID", turn.ID),
				zap.Error(err))
		}
	}()
}
