package jobs_test

import (
	"context"
	"errors"
	"testing"

	"chronobank/internal/config"
	"chronobank/internal/jobs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockSweeper struct {
	mock.Mock
}

func (m *MockSweeper) SweepOverdue(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockSweeper) SweepMatured(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockSweeper) Run(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestJobRunner_RunAll(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		m := new(MockSweeper)
		m.On("SweepOverdue", mock.Anything).Return(2, nil).Once()
		m.On("SweepMatured", mock.Anything).Return(1, nil).Once()
		m.On("Run", mock.Anything).Return(3, nil).Once()

		jr := jobs.NewJobRunner(&jobs.Services{Loans: m, Investments: m, Relay: m}, &config.Config{})
		jr.RunAll()
		m.AssertExpectations(t)
	})

	t.Run("ErrorsDoNotStopLaterJobs", func(t *testing.T) {
		m := new(MockSweeper)
		m.On("SweepOverdue", mock.Anything).Return(0, errors.New("db down")).Once()
		m.On("SweepMatured", mock.Anything).Return(0, errors.New("db down")).Once()
		m.On("Run", mock.Anything).Return(0, nil).Once()

		jobs.NewJobRunner(&jobs.Services{Loans: m, Investments: m, Relay: m}, &config.Config{}).RunAll()
		m.AssertExpectations(t)
	})

	t.Run("PanicIsRecovered", func(t *testing.T) {
		m := new(MockSweeper)
		m.On("SweepOverdue", mock.Anything).Panic("boom").Once()
		m.On("SweepMatured", mock.Anything).Return(0, nil).Once()
		m.On("Run", mock.Anything).Return(0, nil).Once()

		jr := jobs.NewJobRunner(&jobs.Services{Loans: m, Investments: m, Relay: m}, &config.Config{})
		assert.NotPanics(t, jr.RunAll)
		m.AssertExpectations(t)
	})
}
