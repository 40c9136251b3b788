package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"medvault/internal/model"
)

type MockRecordRepository struct {
	mock.Mock
}

func (m *MockRecordRepository) Create(ctx context.Context, rec *model.MedicalRecord) (*model.MedicalRecord, error) {
	args := m.Called(ctx, rec)
	if f, ok := args.Get(0).(func(context.Context, *model.MedicalRecord) *model.MedicalRecord); ok {
		return f(ctx, rec), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MedicalRecord), args.Error(1)
}

func (m *MockRecordRepository) FindByID(ctx context.Context, id string) (*model.MedicalRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MedicalRecord), args.Error(1)
}

func (m *MockRecordRepository) ListForPrincipal(ctx context.Context, principalID string) ([]model.MedicalRecord, error) {
	args := m.Called(ctx, principalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MedicalRecord), args.Error(1)
}

func (m *MockRecordRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.MedicalRecord, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MedicalRecord), args.Error(1)
}

func (m *MockRecordRepository) CountByContentHandle(ctx context.Context, handle string) (int64, error) {
	args := m.Called(ctx, handle)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRecordRepository) InsertGrant(ctx context.Context, recordID string, g model.AccessGrant) error {
	args := m.Called(ctx, recordID, g)
	return args.Error(0)
}

func (m *MockRecordRepository) DeleteGrants(ctx context.Context, recordID, principalID string) (int64, error) {
	args := m.Called(ctx, recordID, principalID)
	return args.Get(0).(int64), args.Error(1)
}
