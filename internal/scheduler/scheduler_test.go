package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/applytrack-api/internal/model"
	"github.com/yourusername/applytrack-api/internal/service"
)

type mockScanner struct{ mock.Mock }

func (m *mockScanner) ScanAll(ctx context.Context, trigger string) (service.ScanTotals, error) {
	args := m.Called(ctx, trigger)
	return args.Get(0).(service.ScanTotals), args.Error(1)
}

func (m *mockScanner) Reminders(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestNew_WhenScheduleInvalid_ShouldFail(t *testing.T) {
	_, err := New(&mockScanner{}, "every tuesday", "0 8 * * *")
	assert.ErrorContains(t, err, "scheduling scan")

	_, err = New(&mockScanner{}, "0 */6 * * *", "* *")
	assert.ErrorContains(t, err, "scheduling reminders")
}

func TestScheduler_RegistersBothJobs(t *testing.T) {
	s, err := New(&mockScanner{}, "0 */6 * * *", "0 8 * * *")
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)

	s.Start()
	s.Stop()
}

func TestScheduler_Jobs_CallScanner(t *testing.T) {
	scanner := &mockScanner{}
	scanner.On("ScanAll", mock.Anything, model.TriggerCron).Return(service.ScanTotals{Users: 2}, nil).Once()
	scanner.On("Reminders", mock.Anything).Return(0, errors.New("db down")).Once()

	s, err := New(scanner, "@every 1h", "@daily")
	require.NoError(t, err)

	s.runSweep()
	s.runReminders()

	scanner.AssertExpectations(t)
}

func TestScheduler_Stop_CancelsJobContext(t *testing.T) {
	scanner := &mockScanner{}
	scanner.On("ScanAll", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() != nil
	}), model.TriggerCron).Return(service.ScanTotals{}, context.Canceled)

	s, err := New(scanner, "@every 1h", "@daily")
	require.NoError(t, err)
	s.Stop()

	s.runSweep()
	scanner.AssertExpectations(t)
}
