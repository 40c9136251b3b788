package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, principalID, message, category string) {
	m.Called(ctx, principalID, message, category)
}
