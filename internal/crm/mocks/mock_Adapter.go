// Package mocks provides test doubles for the crm adapters.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	crm "github.com/sells-group/leadsync/internal/crm"
	model "github.com/sells-group/leadsync/internal/model"
)

// MockAdapter is a mock type for the Adapter interface.
type MockAdapter struct {
	mock.Mock
}

// Backend provides a mock function with given fields:
func (_m *MockAdapter) Backend() crm.Backend {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Backend")
	}

	return ret.Get(0).(crm.Backend)
}

// Identity provides a mock function with given fields:
func (_m *MockAdapter) Identity() crm.IdentityModel {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Identity")
	}

	return ret.Get(0).(crm.IdentityModel)
}

// CreateOrUpdateLead provides a mock function with given fields: ctx, lead
func (_m *MockAdapter) CreateOrUpdateLead(ctx context.Context, lead model.Lead) crm.Result {
	ret := _m.Called(ctx, lead)

	if len(ret) == 0 {
		panic("no return value specified for CreateOrUpdateLead")
	}

	if rf, ok := ret.Get(0).(func(context.Context, model.Lead) crm.Result); ok {
		return rf(ctx, lead)
	}
	return ret.Get(0).(crm.Result)
}

// NewMockAdapter creates a new instance of MockAdapter. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockAdapter(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockAdapter {
	m := &MockAdapter{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
