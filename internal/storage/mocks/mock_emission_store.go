package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/shaharia-lab/emitter/internal/storage"
)

// MockEmissionStore is a mock implementation of storage.EmissionStore.
type MockEmissionStore struct {
	mock.Mock
}

//nolint:revive
func (m *MockEmissionStore) Record(ctx context.Context, e *storage.Emission) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

//nolint:revive
func (m *MockEmissionStore) List(ctx context.Context, filter storage.EmissionFilter) ([]*storage.Emission, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*storage.Emission), args.Error(1)
}

//nolint:revive
func (m *MockEmissionStore) Get(ctx context.Context, id string) (*storage.Emission, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Emission), args.Error(1)
}

//nolint:revive
func (m *MockEmissionStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}
