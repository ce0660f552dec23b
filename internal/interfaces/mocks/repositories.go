package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"idol-server/internal/interfaces"
	"idol-server/internal/models"
)

// PlayerRepository - мок репозитория игроков.
type PlayerRepository struct {
	mock.Mock
}

func (m *PlayerRepository) Ensure(ctx context.Context, q interfaces.DBTX, playerKey string, initialTickets int) (*models.Player, error) {
	args := m.Called(ctx, q, playerKey, initialTickets)
	p, _ := args.Get(0).(*models.Player)
	return p, args.Error(1)
}
func (m *PlayerRepository) GetByKey(ctx context.Context, q interfaces.DBTX, playerKey string) (*models.Player, error) {
	args := m.Called(ctx, q, playerKey)
	p, _ := args.Get(0).(*models.Player)
	return p, args.Error(1)
}
func (m *PlayerRepository) GetForUpdate(ctx context.Context, q interfaces.DBTX, playerKey string) (*models.Player, error) {
	args := m.Called(ctx, q, playerKey)
	p, _ := args.Get(0).(*models.Player)
	return p, args.Error(1)
}
func (m *PlayerRepository) SpendTicket(ctx context.Context, q interfaces.DBTX, playerKey string) (int, error) {
	args := m.Called(ctx, q, playerKey)
	return args.Int(0), args.Error(1)
}
func (m *PlayerRepository) CreditCurrencies(ctx context.Context, q interfaces.DBTX, playerKey string, egoShards, dataCores int) error {
	args := m.Called(ctx, q, playerKey, egoShards, dataCores)
	return args.Error(0)
}
func (m *PlayerRepository) AppendBuff(ctx context.Context, q interfaces.DBTX, playerKey string, buff models.StatBuff) error {
	args := m.Called(ctx, q, playerKey, buff)
	return args.Error(0)
}
func (m *PlayerRepository) SetFandom(ctx context.Context, q interfaces.DBTX, playerKey string, coreFandom, casualFandom int) error {
	args := m.Called(ctx, q, playerKey, coreFandom, casualFandom)
	return args.Error(0)
}
func (m *PlayerRepository) RecordMinigame(ctx context.Context, q interfaces.DBTX, playerKey string, completionTimeMs int64, ticketsAwarded int) (*models.Player, error) {
	args := m.Called(ctx, q, playerKey, completionTimeMs, ticketsAwarded)
	p, _ := args.Get(0).(*models.Player)
	return p, args.Error(1)
}
func (m *PlayerRepository) PruneExpiredBuffs(ctx context.Context, q interfaces.DBTX, now time.Time) (int64, error) {
	args := m.Called(ctx, q, now)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

// CharacterRepository - мок ростера.
type CharacterRepository struct {
	mock.Mock
}

func (m *CharacterRepository) List(ctx context.Context, q interfaces.DBTX) ([]models.Character, error) {
	args := m.Called(ctx, q)
	list, _ := args.Get(0).([]models.Character)
	return list, args.Error(1)
}
func (m *CharacterRepository) GetByID(ctx context.Context, q interfaces.DBTX, id uuid.UUID) (*models.Character, error) {
	args := m.Called(ctx, q, id)
	c, _ := args.Get(0).(*models.Character)
	return c, args.Error(1)
}

// SessionRepository - мок репозитория сессий.
type SessionRepository struct {
	mock.Mock
}

func (m *SessionRepository) Create(ctx context.Context, q interfaces.DBTX, session *models.NegotiationSession) error {
	args := m.Called(ctx, q, session)
	return args.Error(0)
}
func (m *SessionRepository) GetByID(ctx context.Context, q interfaces.DBTX, id uuid.UUID) (*models.NegotiationSession, error) {
	args := m.Called(ctx, q, id)
	s, _ := args.Get(0).(*models.NegotiationSession)
	return s, args.Error(1)
}
func (m *SessionRepository) GetForUpdate(ctx context.Context, q interfaces.DBTX, id uuid.UUID) (*models.NegotiationSession, error) {
	args := m.Called(ctx, q, id)
	s, _ := args.Get(0).(*models.NegotiationSession)
	return s, args.Error(1)
}
func (m *SessionRepository) FindOpen(ctx context.Context, q interfaces.DBTX, playerKey string, characterID uuid.UUID) (*models.NegotiationSession, error) {
	args := m.Called(ctx, q, playerKey, characterID)
	s, _ := args.Get(0).(*models.NegotiationSession)
	return s, args.Error(1)
}
func (m *SessionRepository) FindLatest(ctx context.Context, q interfaces.DBTX, playerKey string, characterID uuid.UUID) (*models.NegotiationSession, error) {
	args := m.Called(ctx, q, playerKey, characterID)
	s, _ := args.Get(0).(*models.NegotiationSession)
	return s, args.Error(1)
}
func (m *SessionRepository) ListByPlayer(ctx context.Context, q interfaces.DBTX, playerKey string) ([]models.NegotiationSession, error) {
	args := m.Called(ctx, q, playerKey)
	list, _ := args.Get(0).([]models.NegotiationSession)
	return list, args.Error(1)
}
func (m *SessionRepository) UpdateStats(ctx context.Context, q interfaces.DBTX, id uuid.UUID, stats models.SessionStats) error {
	args := m.Called(ctx, q, id, stats)
	return args.Error(0)
}
func (m *SessionRepository) UpdateArtifact(ctx context.Context, q interfaces.DBTX, id uuid.UUID, artifact string) (bool, error) {
	args := m.Called(ctx, q, id, artifact)
	return args.Bool(0), args.Error(1)
}
func (m *SessionRepository) Close(ctx context.Context, q interfaces.DBTX, id uuid.UUID) error {
	args := m.Called(ctx, q, id)
	return args.Error(0)
}

// MessageRepository - мок журнала сообщений.
type MessageRepository struct {
	mock.Mock
}

func (m *MessageRepository) Create(ctx context.Context, q interfaces.DBTX, msg *models.Message) error {
	args := m.Called(ctx, q, msg)
	return args.Error(0)
}
func (m *MessageRepository) CreateReply(ctx context.Context, q interfaces.DBTX, msg *models.Message) (bool, error) {
	args := m.Called(ctx, q, msg)
	return args.Bool(0), args.Error(1)
}
func (m *MessageRepository) GetByID(ctx context.Context, q interfaces.DBTX, id uuid.UUID) (*models.Message, error) {
	args := m.Called(ctx, q, id)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}
func (m *MessageRepository) GetLatestWithAge(ctx context.Context, q interfaces.DBTX, sessionID uuid.UUID) (*models.Message, time.Duration, error) {
	args := m.Called(ctx, q, sessionID)
	msg, _ := args.Get(0).(*models.Message)
	age, _ := args.Get(1).(time.Duration)
	return msg, age, args.Error(2)
}
func (m *MessageRepository) ReplyExists(ctx context.Context, q interfaces.DBTX, turnID uuid.UUID) (bool, error) {
	args := m.Called(ctx, q, turnID)
	return args.Bool(0), args.Error(1)
}
func (m *MessageRepository) ListRecent(ctx context.Context, q interfaces.DBTX, sessionID uuid.UUID, limit int) ([]models.Message, error) {
	args := m.Called(ctx, q, sessionID, limit)
	list, _ := args.Get(0).([]models.Message)
	return list, args.Error(1)
}
func (m *MessageRepository) ListUnanswered(ctx context.Context, q interfaces.DBTX, olderThan time.Time, limit int) ([]models.Message, error) {
	args := m.Called(ctx, q, olderThan, limit)
	list, _ := args.Get(0).([]models.Message)
	return list, args.Error(1)
}

// MinigameRepository - мок журнала мини-игр.
type MinigameRepository struct {
	mock.Mock
}

func (m *MinigameRepository) Create(ctx context.Context, q interfaces.DBTX, result *models.MinigameResult) error {
	args := m.Called(ctx, q, result)
	return args.Error(0)
}
func (m *MinigameRepository) GetLatestForPlayer(ctx context.Context, q interfaces.DBTX, playerKey string) (*models.MinigameResult, error) {
	args := m.Called(ctx, q, playerKey)
	r, _ := args.Get(0).(*models.MinigameResult)
	return r, args.Error(1)
}

// CardRepository - мок коллекции карт.
type CardRepository struct {
	mock.Mock
}

func (m *CardRepository) GrantStarterSet(ctx context.Context, q interfaces.DBTX, playerKey string, stats models.CardStats) (int64, error) {
	args := m.Called(ctx, q, playerKey, stats)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}
func (m *CardRepository) ListByPlayer(ctx context.Context, q interfaces.DBTX, playerKey string) ([]models.Card, error) {
	args := m.Called(ctx, q, playerKey)
	cards, _ := args.Get(0).([]models.Card)
	return cards, args.Error(1)
}
func (m *CardRepository) GetOwnedForShare(ctx context.Context, q interfaces.DBTX, playerKey string, ids []uuid.UUID) ([]models.Card, error) {
	args := m.Called(ctx, q, playerKey, ids)
	cards, _ := args.Get(0).([]models.Card)
	return cards, args.Error(1)
}

// UnitRepository - мок отрядов.
type UnitRepository struct {
	mock.Mock
}

func (m *UnitRepository) ListByPlayer(ctx context.Context, q interfaces.DBTX, playerKey string) ([]models.Unit, error) {
	args := m.Called(ctx, q, playerKey)
	units, _ := args.Get(0).([]models.Unit)
	return units, args.Error(1)
}
func (m *UnitRepository) Upsert(ctx context.Context, q interfaces.DBTX, unit *models.Unit) error {
	args := m.Called(ctx, q, unit)
	return args.Error(0)
}

// TurnLocker - мок блокировки хода.
type TurnLocker struct {
	mock.Mock
}

func (m *TurnLocker) Acquire(ctx context.Context, turnID uuid.UUID, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, turnID, ttl)
	return args.Bool(0), args.Error(1)
}
func (m *TurnLocker) Release(ctx context.Context, turnID uuid.UUID) error {
	args := m.Called(ctx, turnID)
	return args.Error(0)
}

// TransactionManager выполняет fn без настоящей транзакции, передавая nil вместо pgx.Tx.
// Committed/RolledBack считают исходы для проверок в тестах.
type TransactionManager struct {
	Committed  int
	RolledBack int
}

var _ interfaces.TransactionManager = (*TransactionManager)(nil)

func (m *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx interfaces.DBTX) error) error {
	if err := fn(ctx, nil); err != nil {
		m.RolledBack++
		return err
	}
	m.Committed++
	return nil
}
