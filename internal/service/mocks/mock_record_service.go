package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"medvault/internal/model"
)

type MockRecordService struct {
	mock.Mock
}

func (m *MockRecordService) Ingest(ctx context.Context, ownerID string, recordType model.RecordType, name, description, contentType string, raw []byte) (*model.MedicalRecord, error) {
	args := m.Called(ctx, ownerID, recordType, name, description, contentType, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MedicalRecord), args.Error(1)
}

func (m *MockRecordService) Grant(ctx context.Context, recordID, grantorID, principalID string, kind model.PrincipalKind, expiresAt *time.Time) (*model.MedicalRecord, error) {
	args := m.Called(ctx, recordID, grantorID, principalID, kind, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MedicalRecord), args.Error(1)
}

func (m *MockRecordService) Revoke(ctx context.Context, recordID, revokerID, principalID string) (*model.MedicalRecord, int64, error) {
	args := m.Called(ctx, recordID, revokerID, principalID)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).(*model.MedicalRecord), args.Get(1).(int64), args.Error(2)
}

func (m *MockRecordService) ListVisible(ctx context.Context, principalID string) ([]model.MedicalRecord, error) {
	args := m.Called(ctx, principalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MedicalRecord), args.Error(1)
}

func (m *MockRecordService) ListOwned(ctx context.Context, ownerID string) ([]model.MedicalRecord, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MedicalRecord), args.Error(1)
}

func (m *MockRecordService) Get(ctx context.Context, recordID, requesterID string) (*model.MedicalRecord, error) {
	args := m.Called(ctx, recordID, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MedicalRecord), args.Error(1)
}

func (m *MockRecordService) Download(ctx context.Context, recordID, requesterID string) (*model.MedicalRecord, []byte, error) {
	args := m.Called(ctx, recordID, requesterID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.MedicalRecord), args.Get(1).([]byte), args.Error(2)
}

func (m *MockRecordService) ContentURL(ctx context.Context, recordID, requesterID string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, recordID, requesterID, expiry)
	return args.String(0), args.Error(1)
}
