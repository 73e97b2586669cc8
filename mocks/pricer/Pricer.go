package pricer

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/vadiminshakov/gridsim/internal/domain"
)

// Pricer is a testify mock of a price feed.
type Pricer struct {
	mock.Mock
}

// GetPrice provides a mock function with given fields: ctx, pair
func (_m *Pricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	ret := _m.Called(ctx, pair)

	if len(ret) == 0 {
		panic("no return value specified for GetPrice")
	}

	if rf, ok := ret.Get(0).(func(context.Context, domain.Pair) (decimal.Decimal, error)); ok {
		return rf(ctx, pair)
	}

	var r0 decimal.Decimal
	if rf, ok := ret.Get(0).(func(context.Context, domain.Pair) decimal.Decimal); ok {
		r0 = rf(ctx, pair)
	} else {
		r0 = ret.Get(0).(decimal.Decimal)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, domain.Pair) error); ok {
		r1 = rf(ctx, pair)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewPricer creates a new instance of Pricer. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewPricer(t interface {
	mock.TestingT
	Cleanup(func())
}) *Pricer {
	m := &Pricer{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
