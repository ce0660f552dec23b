package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"idol-server/internal/messaging"
	"idol-server/internal/models"
)

// NegotiationTaskPublisher - мок публикатора задач генерации.
type NegotiationTaskPublisher struct {
	mock.Mock
}

func (m *NegotiationTaskPublisher) PublishNegotiationTask(ctx context.Context, payload messaging.NegotiationTaskPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

// EnrichmentTaskPublisher - мок публикатора декоративных задач.
type EnrichmentTaskPublisher struct {
	mock.Mock
}

func (m *EnrichmentTaskPublisher) PublishEnrichmentTask(ctx context.Context, payload messaging.EnrichmentTaskPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

// SessionUpdatePublisher - мок публикатора обновлений сессии.
type SessionUpdatePublisher struct {
	mock.Mock
}

func (m *SessionUpdatePublisher) PublishSessionUpdate(ctx context.Context, update models.SessionUpdate) error {
	args := m.Called(ctx, update)
	return args.Error(0)
}
