package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"idol-server/internal/models"
	"idol-server/internal/service"
)

// NegotiationService - мок сервиса переговоров.
type NegotiationService struct {
	mock.Mock
}

var _ service.NegotiationService = (*NegotiationService)(nil)

func (m *NegotiationService) EnsurePlayer(ctx context.Context, playerKey string) (*models.Player, error) {
	args := m.Called(ctx, playerKey)
	p, _ := args.Get(0).(*models.Player)
	return p, args.Error(1)
}
func (m *NegotiationService) GetProfile(ctx context.Context, playerKey string) (*models.Player, error) {
	args := m.Called(ctx, playerKey)
	p, _ := args.Get(0).(*models.Player)
	return p, args.Error(1)
}
func (m *NegotiationService) ListCharacters(ctx context.Context) ([]models.Character, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]models.Character)
	return list, args.Error(1)
}
func (m *NegotiationService) GetCharacter(ctx context.Context, characterID uuid.UUID) (*models.Character, error) {
	args := m.Called(ctx, characterID)
	c, _ := args.Get(0).(*models.Character)
	return c, args.Error(1)
}
func (m *NegotiationService) GetOrCreateSession(ctx context.Context, playerKey string, characterID uuid.UUID) (*models.NegotiationSession, error) {
	args := m.Called(ctx, playerKey, characterID)
	s, _ := args.Get(0).(*models.NegotiationSession)
	return s, args.Error(1)
}
func (m *NegotiationService) GetSession(ctx context.Context, playerKey string, sessionID uuid.UUID) (*models.NegotiationSession, error) {
	args := m.Called(ctx, playerKey, sessionID)
	s, _ := args.Get(0).(*models.NegotiationSession)
	return s, args.Error(1)
}
func (m *NegotiationService) ListSessions(ctx context.Context, playerKey string) ([]models.NegotiationSession, error) {
	args := m.Called(ctx, playerKey)
	list, _ := args.Get(0).([]models.NegotiationSession)
	return list, args.Error(1)
}
func (m *NegotiationService) ListMessages(ctx context.Context, playerKey string, sessionID uuid.UUID) ([]models.Message, error) {
	args := m.Called(ctx, playerKey, sessionID)
	list, _ := args.Get(0).([]models.Message)
	return list, args.Error(1)
}
func (m *NegotiationService) CloseSession(ctx context.Context, playerKey string, sessionID uuid.UUID) (*models.NegotiationSession, error) {
	args := m.Called(ctx, playerKey, sessionID)
	s, _ := args.Get(0).(*models.NegotiationSession)
	return s, args.Error(1)
}
func (m *NegotiationService) SubmitProposal(ctx context.Context, playerKey string, sessionID uuid.UUID, text string) (*service.SubmitResult, error) {
	args := m.Called(ctx, playerKey, sessionID, text)
	r, _ := args.Get(0).(*service.SubmitResult)
	return r, args.Error(1)
}

// MinigameService - мок приема результатов мини-игр.
type MinigameService struct {
	mock.Mock
}

func (m *MinigameService) SubmitResult(ctx context.Context, playerKey string, completionTimeMs int64) (*models.MinigameOutcome, error) {
	args := m.Called(ctx, playerKey, completionTimeMs)
	o, _ := args.Get(0).(*models.MinigameOutcome)
	return o, args.Error(1)
}

// CrisisService - мок оценки кризисов.
type CrisisService struct {
	mock.Mock
}

func (m *CrisisService) RespondToCrisis(ctx context.Context, playerKey, crisisDescription, responseText string) (*models.CrisisEvaluation, error) {
	args := m.Called(ctx, playerKey, crisisDescription, responseText)
	e, _ := args.Get(0).(*models.CrisisEvaluation)
	return e, args.Error(1)
}

// SquadService - мок карт и отрядов.
type SquadService struct {
	mock.Mock
}

var _ service.SquadService = (*SquadService)(nil)

func (m *SquadService) ListCards(ctx context.Context, playerKey string) ([]models.Card, error) {
	args := m.Called(ctx, playerKey)
	cards, _ := args.Get(0).([]models.Card)
	return cards, args.Error(1)
}

func (m *SquadService) ListUnits(ctx context.Context, playerKey string) ([]models.Unit, error) {
	args := m.Called(ctx, playerKey)
	units, _ := args.Get(0).([]models.Unit)
	return units, args.Error(1)
}

func (m *SquadService) SaveUnit(ctx context.Context, playerKey, unitName string, cardIDs []uuid.UUID) (*models.Unit, error) {
	args := m.Called(ctx, playerKey, unitName, cardIDs)
	u, _ := args.Get(0).(*models.Unit)
	return u, args.Error(1)
}
