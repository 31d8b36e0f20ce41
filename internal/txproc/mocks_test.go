package txproc

import (
	"context"

	"github.com/gabapcia/txrelay/internal/txqueue"

	"github.com/stretchr/testify/mock"
)

// BroadcasterMock is a mock type for the Broadcaster type
type BroadcasterMock struct {
	mock.Mock
}

type BroadcasterMock_Expecter struct {
	mock *mock.Mock
}

func (_m *BroadcasterMock) EXPECT() *BroadcasterMock_Expecter {
	return &BroadcasterMock_Expecter{mock: &_m.Mock}
}

// Broadcast provides a mock function with given fields: ctx, signedTx, chainID
func (_m *BroadcasterMock) Broadcast(ctx context.Context, signedTx []byte, chainID string) (Receipt, error) {
	ret := _m.Called(ctx, signedTx, chainID)

	if len(ret) == 0 {
		panic("no return value specified for Broadcast")
	}

	if rf, ok := ret.Get(0).(func(context.Context, []byte, string) (Receipt, error)); ok {
		return rf(ctx, signedTx, chainID)
	}

	return ret.Get(0).(Receipt), ret.Error(1)
}

type BroadcasterMock_Broadcast_Call struct {
	*mock.Call
}

func (_e *BroadcasterMock_Expecter) Broadcast(ctx any, signedTx any, chainID any) *BroadcasterMock_Broadcast_Call {
	return &BroadcasterMock_Broadcast_Call{Call: _e.mock.On("Broadcast", ctx, signedTx, chainID)}
}

func (_c *BroadcasterMock_Broadcast_Call) Return(receipt Receipt, err error) *BroadcasterMock_Broadcast_Call {
	_c.Call.Return(receipt, err)
	return _c
}

func (_c *BroadcasterMock_Broadcast_Call) RunAndReturn(run func(context.Context, []byte, string) (Receipt, error)) *BroadcasterMock_Broadcast_Call {
	_c.Call.Return(run)
	return _c
}

// NewBroadcasterMock creates a new instance of BroadcasterMock. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewBroadcasterMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *BroadcasterMock {
	m := &BroadcasterMock{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// ResultStoreMock is a mock type for the ResultStore type
type ResultStoreMock struct {
	mock.Mock
}

type ResultStoreMock_Expecter struct {
	mock *mock.Mock
}

func (_m *ResultStoreMock) EXPECT() *ResultStoreMock_Expecter {
	return &ResultStoreMock_Expecter{mock: &_m.Mock}
}

// SaveResult provides a mock function with given fields: ctx, result
func (_m *ResultStoreMock) SaveResult(ctx context.Context, result txqueue.TransactionResult) error {
	ret := _m.Called(ctx, result)

	if len(ret) == 0 {
		panic("no return value specified for SaveResult")
	}

	return ret.Error(0)
}

type ResultStoreMock_SaveResult_Call struct {
	*mock.Call
}

func (_e *ResultStoreMock_Expecter) SaveResult(ctx any, result any) *ResultStoreMock_SaveResult_Call {
	return &ResultStoreMock_SaveResult_Call{Call: _e.mock.On("SaveResult", ctx, result)}
}

func (_c *ResultStoreMock_SaveResult_Call) Return(err error) *ResultStoreMock_SaveResult_Call {
	_c.Call.Return(err)
	return _c
}

// LoadResult provides a mock function with given fields: ctx, id
func (_m *ResultStoreMock) LoadResult(ctx context.Context, id string) (txqueue.TransactionResult, error) {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for LoadResult")
	}

	return ret.Get(0).(txqueue.TransactionResult), ret.Error(1)
}

type ResultStoreMock_LoadResult_Call struct {
	*mock.Call
}

func (_e *ResultStoreMock_Expecter) LoadResult(ctx any, id any) *ResultStoreMock_LoadResult_Call {
	return &ResultStoreMock_LoadResult_Call{Call: _e.mock.On("LoadResult", ctx, id)}
}

func (_c *ResultStoreMock_LoadResult_Call) Return(result txqueue.TransactionResult, err error) *ResultStoreMock_LoadResult_Call {
	_c.Call.Return(result, err)
	return _c
}

// NewResultStoreMock creates a new instance of ResultStoreMock. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewResultStoreMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *ResultStoreMock {
	m := &ResultStoreMock{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
