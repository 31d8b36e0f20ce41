package cli

import (
	"context"

	mock "github.com/stretchr/testify/mock"
)

// RelayMock is a mock type for the Relay type.
type RelayMock struct {
	mock.Mock
}

type RelayMock_Expecter struct {
	mock *mock.Mock
}

func (_m *RelayMock) EXPECT() *RelayMock_Expecter {
	return &RelayMock_Expecter{mock: &_m.Mock}
}

// Start provides a mock function with given fields: ctx
func (_m *RelayMock) Start(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Start")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context) error); ok {
		r0 = rf(ctx)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

type RelayMock_Start_Call struct {
	*mock.Call
}

func (_e *RelayMock_Expecter) Start(ctx interface{}) *RelayMock_Start_Call {
	return &RelayMock_Start_Call{Call: _e.mock.On("Start", ctx)}
}

func (_c *RelayMock_Start_Call) Return(_a0 error) *RelayMock_Start_Call {
	_c.Call.Return(_a0)
	return _c
}

func (_c *RelayMock_Start_Call) Run(run func(ctx context.Context)) *RelayMock_Start_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(context.Context))
	})
	return _c
}

// Stop provides a mock function with no fields
func (_m *RelayMock) Stop() {
	_m.Called()
}

type RelayMock_Stop_Call struct {
	*mock.Call
}

func (_e *RelayMock_Expecter) Stop() *RelayMock_Stop_Call {
	return &RelayMock_Stop_Call{Call: _e.mock.On("Stop")}
}

func (_c *RelayMock_Stop_Call) Return() *RelayMock_Stop_Call {
	_c.Call.Return()
	return _c
}

func (_c *RelayMock_Stop_Call) Run(run func()) *RelayMock_Stop_Call {
	_c.Call.Run(func(mock.Arguments) {
		run()
	})
	return _c
}

// NewRelayMock creates a new instance of RelayMock. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewRelayMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *RelayMock {
	m := &RelayMock{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
