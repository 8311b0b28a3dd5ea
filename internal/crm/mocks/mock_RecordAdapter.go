package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	crm "github.com/sells-group/leadsync/internal/crm"
	model "github.com/sells-group/leadsync/internal/model"
)

// MockRecordAdapter is a mock type for the RecordAdapter interface.
type MockRecordAdapter struct {
	MockAdapter
}

// UpdateLead provides a mock function with given fields: ctx, nativeID, lead
func (_m *MockRecordAdapter) UpdateLead(ctx context.Context, nativeID string, lead model.Lead) crm.Result {
	ret := _m.Called(ctx, nativeID, lead)

	if len(ret) == 0 {
		panic("no return value specified for UpdateLead")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string, model.Lead) crm.Result); ok {
		return rf(ctx, nativeID, lead)
	}
	return ret.Get(0).(crm.Result)
}

// GetLead provides a mock function with given fields: ctx, nativeID
func (_m *MockRecordAdapter) GetLead(ctx context.Context, nativeID string) crm.Result {
	ret := _m.Called(ctx, nativeID)

	if len(ret) == 0 {
		panic("no return value specified for GetLead")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string) crm.Result); ok {
		return rf(ctx, nativeID)
	}
	return ret.Get(0).(crm.Result)
}

// NewMockRecordAdapter creates a new instance of MockRecordAdapter. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockRecordAdapter(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockRecordAdapter {
	m := &MockRecordAdapter{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
