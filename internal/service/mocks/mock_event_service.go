package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/shaharia-lab/emitter/internal/service"
	"github.com/shaharia-lab/emitter/internal/storage"
)

// MockEventService is a mock implementation of service.EventService.
type MockEventService struct {
	mock.Mock
}

//nolint:revive
func (m *MockEventService) DefineEvents(ctx context.Context, keys []string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

//nolint:revive
func (m *MockEventService) RemoveEvent(ctx context.Context, spec service.SelectorSpec) error {
	args := m.Called(ctx, spec)
	return args.Error(0)
}

//nolint:revive
func (m *MockEventService) ListEvents(ctx context.Context) ([]service.EventInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.EventInfo), args.Error(1)
}

//nolint:revive
func (m *MockEventService) CreateSubscriber(ctx context.Context, req service.SubscriberRequest) (*service.Subscriber, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Subscriber), args.Error(1)
}

//nolint:revive
func (m *MockEventService) GetSubscriber(ctx context.Context, id string) (*service.Subscriber, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Subscriber), args.Error(1)
}

//nolint:revive
func (m *MockEventService) DeleteSubscriber(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

//nolint:revive
func (m *MockEventService) ListSubscribers(ctx context.Context) ([]*service.Subscriber, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*service.Subscriber), args.Error(1)
}

//nolint:revive
func (m *MockEventService) Deliveries(ctx context.Context, id string, drain bool) ([]service.Delivery, error) {
	args := m.Called(ctx, id, drain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.Delivery), args.Error(1)
}

//nolint:revive
func (m *MockEventService) Emit(ctx context.Context, req service.EmitRequest) (*service.EmitResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.EmitResult), args.Error(1)
}

//nolint:revive
func (m *MockEventService) SetOnceReturnValue(ctx context.Context, v any) (any, error) {
	args := m.Called(ctx, v)
	return args.Get(0), args.Error(1)
}

//nolint:revive
func (m *MockEventService) OnceReturnValue(ctx context.Context) any {
	args := m.Called(ctx)
	return args.Get(0)
}

//nolint:revive
func (m *MockEventService) Journal(ctx context.Context, filter storage.EmissionFilter) ([]*storage.Emission, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*storage.Emission), args.Error(1)
}

var _ service.EventService = (*MockEventService)(nil)
