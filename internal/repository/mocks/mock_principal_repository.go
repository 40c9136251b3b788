package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"medvault/internal/model"
)

type MockPrincipalRepository struct {
	mock.Mock
}

func (m *MockPrincipalRepository) FindByID(ctx context.Context, id string) (*model.Principal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Principal), args.Error(1)
}
