package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"idol-server/internal/generation"
)

// Generator - мок провайдера генерации.
type Generator struct {
	mock.Mock
}

func (m *Generator) Generate(ctx context.Context, prompt string, opts generation.Options) (string, error) {
	args := m.Called(ctx, prompt, opts)
	return args.String(0), args.Error(1)
}
