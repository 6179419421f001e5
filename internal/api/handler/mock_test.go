package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/edvin/svcctl/internal/history"
	"github.com/edvin/svcctl/internal/model"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, req model.DesiredState) (*model.Report, error) {
	args := m.Called(ctx, req)
	var rep *model.Report
	if r := args.Get(0); r != nil {
		rep = r.(*model.Report)
	}
	return rep, args.Error(1)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) Record(ctx context.Context, source string, rep *model.Report) error {
	return m.Called(ctx, source, rep).Error(0)
}

func (m *mockLedger) Get(ctx context.Context, id string) (*history.Run, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*history.Run), args.Error(1)
}

func (m *mockLedger) List(ctx context.Context, f history.Filter) ([]history.Run, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]history.Run), args.Error(1)
}
