package app

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/service/tasks"
)

type spyCreator struct {
	called int
	got    tasks.OrderInfo
	err    error
}

func (s *spyCreator) CreateFromOrder(_ context.Context, o tasks.OrderInfo) (*domain.Task, error) {
	s.called++
	s.got = o
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Task{ID: "t1", OrderID: o.OrderID}, nil
}

func TestOrderHandler_DelegatesToService(t *testing.T) {
	t.Parallel()

	spy := &spyCreator{}
	h := orderHandler(spy, logx.Nop())

	in := tasks.OrderInfo{OrderID: "order-1", Mode: domain.ModeHomeDelivery}
	err := h(context.Background(), in)
	require.NoError(t, err)

	require.Equal(t, 1, spy.called)
	require.Equal(t, in, spy.got)
}

func TestOrderHandler_DuplicateOrderIsSkipped(t *testing.T) {
	t.Parallel()

	dup := &pgconn.PgError{Code: "23505"}
	spy := &spyCreator{err: dup}
	h := orderHandler(spy, logx.Nop())

	err := h(context.Background(), tasks.OrderInfo{OrderID: "order-1"})
	require.NoError(t, err)
	require.Equal(t, 1, spy.called)
}

func TestOrderHandler_OtherErrorPropagates(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("db down")
	spy := &spyCreator{err: sentinel}
	h := orderHandler(spy, logx.Nop())

	err := h(context.Background(), tasks.OrderInfo{OrderID: "order-1"})
	require.ErrorIs(t, err, sentinel)
}
