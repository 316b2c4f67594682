// Package mocks provides test doubles for boundary providers.
package mocks

import (
	"context"

	boundary "github.com/sells-group/tqgap/internal/boundary"
	mock "github.com/stretchr/testify/mock"
)

// MockProvider is a mock type for the Provider interface.
type MockProvider struct {
	mock.Mock
}

// Fetch provides a mock function with given fields: ctx, key
func (_m *MockProvider) Fetch(ctx context.Context, key boundary.Key) (*boundary.Geometry, error) {
	ret := _m.Called(ctx, key)

	if len(ret) == 0 {
		panic("no return value specified for Fetch")
	}

	var r0 *boundary.Geometry
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, boundary.Key) (*boundary.Geometry, error)); ok {
		return rf(ctx, key)
	}
	if rf, ok := ret.Get(0).(func(context.Context, boundary.Key) *boundary.Geometry); ok {
		r0 = rf(ctx, key)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*boundary.Geometry)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, boundary.Key) error); ok {
		r1 = rf(ctx, key)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockProvider creates a new instance of MockProvider.
func NewMockProvider(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockProvider {
	mock := &MockProvider{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
