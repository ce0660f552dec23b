package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"idol-server/internal/config"
	"idol-server/internal/generation"
	genMocks "idol-server/internal/generation/mocks"
	repoMocks "idol-server/internal/interfaces/mocks"
	"idol-server/internal/messaging"
	messagingMocks "idol-server/internal/messaging/mocks"
	"idol-server/internal/models"
	"idol-server/internal/worker"
)

type handlerFixture struct {
	players    *repoMocks.PlayerRepository
	characters *repoMocks.CharacterRepository
	sessions   *repoMocks.SessionRepository
	messages   *repoMocks.MessageRepository
	locker     *repoMocks.TurnLocker
	generator  *genMocks.Generator
	enrichPub  *messagingMocks.EnrichmentTaskPublisher
	updatePub  *messagingMocks.SessionUpdatePublisher
	tx         *repoMocks.TransactionManager
	handler    *worker.NegotiationHandler

	session   *models.NegotiationSession
	character *models.Character
	turn      *models.Message
}

func testConfig() *config.Config {
	return &config.Config{
		AITemperature:     0.9,
		AIMaxOutputTokens: 2048,
		AITimeout:         5 * time.Second,
		TurnLockTTL:       time.Minute,
		StaleTurnAfter:    2 * time.Minute,
		SweepSchedule:     "@every 30s",
	}
}

func newHandlerFixture() *handlerFixture {
	f := &handlerFixture{
		players:    new(repoMocks.PlayerRepository),
		characters: new(repoMocks.CharacterRepository),
		sessions:   new(repoMocks.SessionRepository),
		messages:   new(repoMocks.MessageRepository),
		locker:     new(repoMocks.TurnLocker),
		generator:  new(genMocks.Generator),
		enrichPub:  new(messagingMocks.EnrichmentTaskPublisher),
		updatePub:  new(messagingMocks.SessionUpdatePublisher),
		tx:         new(repoMocks.TransactionManager),
	}
	f.character = &models.Character{ID: uuid.New(), Name: "하린", Personality: "도도하지만 속은 여림"}
	f.session = &models.NegotiationSession{
		ID:            uuid.New(),
		PlayerKey:     "player-1",
		CharacterID:   f.character.ID,
		CharacterName: f.character.Name,
	}
	f.session.SetStats(models.SessionStats{Stress: 10, Ego: 95, Motivation: 50})
	f.turn = &models.Message{
		ID:        uuid.New(),
		SessionID: f.session.ID,
		Sender:    models.SenderPlayer,
		Text:      "이번 주말에 라이브 방송 어때?",
		CreatedAt: time.Now().UTC(),
	}

	applier := worker.NewTurnApplier(f.tx, f.players, f.sessions, f.messages, f.updatePub, zap.NewNop())
	f.handler = worker.NewNegotiationHandler(nil, f.characters, f.sessions, f.messages, f.locker, f.generator, applier, f.enrichPub, testConfig(), zap.NewNop())
	return f
}

func (f *handlerFixture) payload() messaging.NegotiationTaskPayload {
	return messaging.NegotiationTaskPayload{
		TaskID:      "task-1",
		TurnID:      f.turn.ID,
		SessionID:   f.session.ID,
		PlayerKey:   f.session.PlayerKey,
		CharacterID: f.character.ID,
		InputText:   f.turn.Text,
		SubmittedAt: f.turn.CreatedAt,
	}
}

// expectLoad настраивает захват блокировки и чтение хода, сессии и истории.
func (f *handlerFixture) expectLoad(ctx context.Context) {
	f.locker.On("Acquire", mock.Anything, f.turn.ID, time.Minute).Return(true, nil).Once()
	f.locker.On("Release", mock.Anything, f.turn.ID).Return(nil).Once()
	f.messages.On("ReplyExists", ctx, mock.Anything, f.turn.ID).Return(false, nil).Once()
	f.messages.On("GetByID", ctx, mock.Anything, f.turn.ID).Return(f.turn, nil).Once()
	f.sessions.On("GetByID", ctx, mock.Anything, f.session.ID).Return(f.session, nil).Once()
	f.characters.On("GetByID", ctx, mock.Anything, f.character.ID).Return(f.character, nil).Once()
	f.messages.On("ListRecent", ctx, mock.Anything, f.session.ID, models.MessageHistoryLimit).
		Return([]models.Message{*f.turn}, nil).Once()
}

// expectApplyStart - блокировка сессии под транзакцией и повторная проверка дубля.
func (f *handlerFixture) expectApplyStart(ctx context.Context) {
	f.sessions.On("GetForUpdate", ctx, mock.Anything, f.session.ID).Return(f.session, nil).Once()
	f.messages.On("ReplyExists", ctx, mock.Anything, f.turn.ID).Return(false, nil).Once()
}

func TestNegotiationHandler_GeneratedTurn(t *testing.T) {
	ctx := context.Background()
	f := newHandlerFixture()
	f.expectLoad(ctx)
	f.expectApplyStart(ctx)

	raw := "```json\n" + `{"reply_text":"좋아요, 해볼게요!","stat_changes":{"stress":3,"ego":12,"motivation":40},"mood":"Accept.","reward_bonus":2}` + "\n```"
	f.generator.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return assert.Contains(t, p, f.character.Personality) && assert.Contains(t, p, f.turn.Text)
	}), mock.MatchedBy(func(o generation.Options) bool {
		return o.Structured && o.Schema == generation.NegotiationSchema && o.Purpose == generation.PurposeNegotiation
	})).Return(raw, nil).Once()

	// ego 95+12 и motivation 50+15 зажимаются; дельта ego 12 дает прорыв
	f.sessions.On("UpdateStats", ctx, mock.Anything, f.session.ID, models.SessionStats{Stress: 13, Ego: 100, Motivation: 65}).Return(nil).Once()
	f.players.On("CreditCurrencies", ctx, mock.Anything, "player-1", mock.AnythingOfType("int"), mock.AnythingOfType("int")).Return(nil).Once()
	f.players.On("AppendBuff", ctx, mock.Anything, "player-1", mock.AnythingOfType("models.StatBuff")).Return(nil).Once()

	var stored *models.Message
	f.messages.On("CreateReply", ctx, mock.Anything, mock.AnythingOfType("*models.Message")).
		Run(func(args mock.Arguments) { stored = args.Get(2).(*models.Message) }).
		Return(true, nil).Once()
	f.updatePub.On("PublishSessionUpdate", ctx, mock.MatchedBy(func(u models.SessionUpdate) bool {
		return u.Type == models.SessionUpdateReply && u.PlayerKey == "player-1" && u.Message != nil
	})).Return(nil).Once()
	f.enrichPub.On("PublishEnrichmentTask", ctx, mock.MatchedBy(func(p messaging.EnrichmentTaskPayload) bool {
		return p.SessionID == f.session.ID && p.Mood == models.MoodAccept && p.CharacterName == "하린"
	})).Return(nil).Once()

	require.NoError(t, f.handler.Process(ctx, f.payload()))

	require.NotNil(t, stored)
	assert.Equal(t, models.SenderCharacter, stored.Sender)
	assert.Equal(t, "좋아요, 해볼게요!", stored.Text)
	require.NotNil(t, stored.ReplyTo)
	assert.Equal(t, f.turn.ID, *stored.ReplyTo)
	assert.Equal(t, models.StatDelta{Stress: 3, Ego: 12, Motivation: 15}, *stored.StatDelta)
	require.NotNil(t, stored.Reward)
	assert.True(t, stored.Reward.Breakthrough)
	assert.GreaterOrEqual(t, stored.Reward.ShardGrant, 12)
	assert.Equal(t, 1, f.tx.Committed)

	f.generator.AssertExpectations(t)
	f.players.AssertExpectations(t)
	f.sessions.AssertExpectations(t)
	f.messages.AssertExpectations(t)
	f.enrichPub.AssertExpectations(t)
	f.updatePub.AssertExpectations(t)
	f.locker.AssertExpectations(t)
}

func TestNegotiationHandler_TransportFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	f := newHandlerFixture()
	f.expectLoad(ctx)
	f.expectApplyStart(ctx)

	f.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", generation.ErrTransport).Once()
	f.sessions.On("UpdateStats", ctx, mock.Anything, f.session.ID, f.session.Stats()).Return(nil).Once()

	var stored *models.Message
	f.messages.On("CreateReply", ctx, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { stored = args.Get(2).(*models.Message) }).
		Return(true, nil).Once()
	f.updatePub.On("PublishSessionUpdate", ctx, mock.Anything).Return(nil).Once()

	require.NoError(t, f.handler.Process(ctx, f.payload()))

	require.NotNil(t, stored)
	assert.Equal(t, worker.FallbackOutcome(f.session.ID.String(), f.turn.Text).ReplyText, stored.Text)
	assert.True(t, stored.StatDelta.IsZero())
	assert.True(t, stored.Reward.IsZero())
	f.players.AssertNotCalled(t, "CreditCurrencies", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.enrichPub.AssertNotCalled(t, "PublishEnrichmentTask", mock.Anything, mock.Anything)
}

func TestNegotiationHandler_ParseFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	f := newHandlerFixture()
	f.expectLoad(ctx)
	f.expectApplyStart(ctx)

	f.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("I'd love to! 💕", nil).Once()
	f.sessions.On("UpdateStats", ctx, mock.Anything, f.session.ID, f.session.Stats()).Return(nil).Once()
	f.messages.On("CreateReply", ctx, mock.Anything, mock.Anything).Return(true, nil).Once()
	f.updatePub.On("PublishSessionUpdate", ctx, mock.Anything).Return(nil).Once()

	require.NoError(t, f.handler.Process(ctx, f.payload()))
	f.enrichPub.AssertNotCalled(t, "PublishEnrichmentTask", mock.Anything, mock.Anything)
}

func TestNegotiationHandler_RedeliveryOfAnsweredTurn(t *testing.T) {
	ctx := context.Background()
	f := newHandlerFixture()
	f.locker.On("Acquire", mock.Anything, f.turn.ID, time.Minute).Return(true, nil).Once()
	f.locker.On("Release", mock.Anything, f.turn.ID).Return(nil).Once()
	f.messages.On("ReplyExists", ctx, mock.Anything, f.turn.ID).Return(true, nil).Once()

	require.NoError(t, f.handler.Process(ctx, f.payload()))
	f.generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
	assert.Zero(t, f.tx.Committed)
}

func TestNegotiationHandler_TurnLockedElsewhere(t *testing.T) {
	ctx := context.Background()
	f := newHandlerFixture()
	f.locker.On("Acquire", mock.Anything, f.turn.ID, time.Minute).Return(false, nil).Once()

	require.NoError(t, f.handler.Process(ctx, f.payload()))
	f.messages.AssertNotCalled(t, "ReplyExists", mock.Anything, mock.Anything, mock.Anything)
	f.locker.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}

func TestNegotiationHandler_ReplyRaceLostUnderLock(t *testing.T) {
	ctx := context.Background()
	f := newHandlerFixture()
	f.expectLoad(ctx)
	f.sessions.On("GetForUpdate", ctx, mock.Anything, f.session.ID).Return(f.session, nil).Once()
	f.messages.On("ReplyExists", ctx, mock.Anything, f.turn.ID).Return(true, nil).Once()
	f.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", generation.ErrEmptyOutput).Once()

	require.NoError(t, f.handler.Process(ctx, f.payload()))
	f.sessions.AssertNotCalled(t, "UpdateStats", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.updatePub.AssertNotCalled(t, "PublishSessionUpdate", mock.Anything, mock.Anything)
	assert.Equal(t, 1, f.tx.RolledBack)
}

func TestNegotiationHandler_StorageErrorIsRetryable(t *testing.T) {
	ctx := context.Background()
	f := newHandlerFixture()
	f.locker.On("Acquire", mock.Anything, f.turn.ID, time.Minute).Return(true, nil).Once()
	f.locker.On("Release", mock.Anything, f.turn.ID).Return(nil).Once()
	f.messages.On("ReplyExists", ctx, mock.Anything, f.turn.ID).Return(false, errors.New("connection reset")).Once()

	err := f.handler.Process(ctx, f.payload())
	assert.ErrorIs(t, err, messaging.ErrRetryable)
}

func TestNegotiationHandler_MalformedTask(t *testing.T) {
	f := newHandlerFixture()

	err := f.handler.Handle(context.Background(), []byte("{not json"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, messaging.ErrRetryable)

	body, _ := json.Marshal(messaging.NegotiationTaskPayload{TaskID: "t"})
	err = f.handler.Handle(context.Background(), body)
	require.Error(t, err)
	assert.NotErrorIs(t, err, messaging.ErrRetryable)
}
