package govern_test

import (
	"context"

	govern "github.com/goliatone/go-govern"
	"github.com/stretchr/testify/mock"
)

// MockProvisioner implements govern.Provisioner
type MockProvisioner struct {
	mock.Mock
}

func (m *MockProvisioner) CreateAccount(ctx context.Context, sourceID string, attributes map[string]string) (string, error) {
	args := m.Called(ctx, sourceID, attributes)
	return args.String(0), args.Error(1)
}

func (m *MockProvisioner) DisableAccount(ctx context.Context, accountID string) (string, error) {
	args := m.Called(ctx, accountID)
	return args.String(0), args.Error(1)
}

func (m *MockProvisioner) SetLifecycleState(ctx context.Context, identityID string, state govern.LifecycleState) (string, error) {
	args := m.Called(ctx, identityID, state)
	return args.String(0), args.Error(1)
}

func (m *MockProvisioner) RequestAccess(ctx context.Context, identityID string, req govern.AccessRequest) (string, error) {
	args := m.Called(ctx, identityID, req)
	return args.String(0), args.Error(1)
}

func (m *MockProvisioner) GetTaskStatus(ctx context.Context, taskID string) (*govern.Task, error) {
	args := m.Called(ctx, taskID)
	if task, ok := args.Get(0).(*govern.Task); ok {
		return task, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProvisioner) SearchIdentity(ctx context.Context, filter govern.SearchFilter) ([]*govern.Identity, error) {
	args := m.Called(ctx, filter)
	if matches, ok := args.Get(0).([]*govern.Identity); ok {
		return matches, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProvisioner) ListAccountsByIdentity(ctx context.Context, identityID string) ([]govern.Account, error) {
	args := m.Called(ctx, identityID)
	if accounts, ok := args.Get(0).([]govern.Account); ok {
		return accounts, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProvisioner) GetUserDetails(ctx context.Context, identityID string) (*govern.Identity, error) {
	args := m.Called(ctx, identityID)
	if identity, ok := args.Get(0).(*govern.Identity); ok {
		return identity, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProvisioner) GetUserEntitlements(ctx context.Context, identityID string) ([]govern.AccessItem, error) {
	args := m.Called(ctx, identityID)
	if items, ok := args.Get(0).([]govern.AccessItem); ok {
		return items, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockTaskAwaiter implements govern.TaskAwaiter
type MockTaskAwaiter struct {
	mock.Mock
}

func (m *MockTaskAwaiter) Await(ctx context.Context, taskID string) (*govern.Task, error) {
	args := m.Called(ctx, taskID)
	if task, ok := args.Get(0).(*govern.Task); ok {
		return task, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockTaskQuerier implements govern.TaskQuerier
type MockTaskQuerier struct {
	mock.Mock
}

func (m *MockTaskQuerier) GetTaskStatus(ctx context.Context, taskID string) (*govern.Task, error) {
	args := m.Called(ctx, taskID)
	if task, ok := args.Get(0).(*govern.Task); ok {
		return task, args.Error(1)
	}
	return nil, args.Error(1)
}

// recordingSink collects activity events for assertions.
type recordingSink struct {
	events []govern.ActivityEvent
}

func (s *recordingSink) Record(ctx context.Context, event govern.ActivityEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) byType(eventType govern.ActivityEventType) []govern.ActivityEvent {
	var out []govern.ActivityEvent
	for _, e := range s.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
