package worker_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"idol-server/internal/generation"
	genMocks "idol-server/internal/generation/mocks"
	repoMocks "idol-server/internal/interfaces/mocks"
	"idol-server/internal/messaging"
	messagingMocks "idol-server/internal/messaging/mocks"
	"idol-server/internal/models"
	"idol-server/internal/worker"
)

func TestEnrichmentHandler(t *testing.T) {
	ctx := context.Background()
	sessionID := uuid.New()
	body, err := json.Marshal(messaging.EnrichmentTaskPayload{
		TaskID:        "task-1",
		SessionID:     sessionID,
		PlayerKey:     "player-1",
		CharacterName: "하린",
		Mood:          models.MoodAccept,
	})
	require.NoError(t, err)

	setup := func() (*repoMocks.SessionRepository, *genMocks.Generator, *messagingMocks.SessionUpdatePublisher, *worker.EnrichmentHandler) {
		sessions := new(repoMocks.SessionRepository)
		gen := new(genMocks.Generator)
		updates := new(messagingMocks.SessionUpdatePublisher)
		h := worker.NewEnrichmentHandler(nil, sessions, gen, updates, testConfig(), zap.NewNop())
		return sessions, gen, updates, h
	}

	t.Run("Sanitized artifact is stored and pushed", func(t *testing.T) {
		sessions, gen, updates, h := setup()
		raw := `Here you go: <svg viewBox="0 0 10 10"><script>alert(1)</script><circle r="4" onclick="x()"/></svg> enjoy`
		gen.On("Generate", mock.Anything, mock.Anything, mock.MatchedBy(func(o generation.Options) bool {
			return !o.Structured && o.Purpose == generation.PurposeEnrichment
		})).Return(raw, nil).Once()
		sessions.On("UpdateArtifact", ctx, mock.Anything, sessionID, mock.MatchedBy(func(a string) bool {
			return assert.NotContains(t, a, "script") && assert.NotContains(t, a, "onclick") &&
				assert.Contains(t, a, "<circle")
		})).Return(true, nil).Once()
		updates.On("PublishSessionUpdate", ctx, mock.MatchedBy(func(u models.SessionUpdate) bool {
			return u.Type == models.SessionUpdateArtifact && u.SessionID == sessionID && u.Artifact != ""
		})).Return(nil).Once()

		assert.NoError(t, h.Handle(ctx, body))
		sessions.AssertExpectations(t)
		updates.AssertExpectations(t)
	})

	t.Run("Generation failure is swallowed", func(t *testing.T) {
		sessions, gen, updates, h := setup()
		gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", generation.ErrSafetyBlocked).Once()

		assert.NoError(t, h.Handle(ctx, body))
		sessions.AssertNotCalled(t, "UpdateArtifact", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		updates.AssertNotCalled(t, "PublishSessionUpdate", mock.Anything, mock.Anything)
	})

	t.Run("Output without markup keeps the previous artifact", func(t *testing.T) {
		sessions, gen, _, h := setup()
		gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("Sorry, I can't draw today.", nil).Once()

		assert.NoError(t, h.Handle(ctx, body))
		sessions.AssertNotCalled(t, "UpdateArtifact", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Malformed task is acknowledged", func(t *testing.T) {
		_, gen, _, h := setup()
		assert.NoError(t, h.Handle(ctx, []byte("nope")))
		gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
	})
}
