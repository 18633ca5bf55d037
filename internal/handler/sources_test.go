package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/applytrack-api/internal/model"
	"github.com/yourusername/applytrack-api/internal/service"
)

type mockSourceRepo struct {
	mock.Mock
}

func (m *mockSourceRepo) List(ctx context.Context, userID uuid.UUID) ([]model.UserJobSource, error) {
	args := m.Called(ctx, userID)
	sources, _ := args.Get(0).([]model.UserJobSource)
	return sources, args.Error(1)
}

func (m *mockSourceRepo) Create(ctx context.Context, s *model.UserJobSource) (*model.UserJobSource, error) {
	args := m.Called(ctx, s)
	created, _ := args.Get(0).(*model.UserJobSource)
	return created, args.Error(1)
}

func (m *mockSourceRepo) Update(ctx context.Context, s *model.UserJobSource) (*model.UserJobSource, error) {
	args := m.Called(ctx, s)
	updated, _ := args.Get(0).(*model.UserJobSource)
	return updated, args.Error(1)
}

func (m *mockSourceRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	return m.Called(ctx, id, userID).Error(0)
}

type mockScanner struct {
	mock.Mock
}

func (m *mockScanner) ScanUser(ctx context.Context, userID uuid.UUID, trigger string, force bool) (*model.ScanRun, error) {
	args := m.Called(ctx, userID, trigger, force)
	run, _ := args.Get(0).(*model.ScanRun)
	return run, args.Error(1)
}

func (m *mockScanner) ScanAll(ctx context.Context, trigger string) (service.ScanTotals, error) {
	args := m.Called(ctx, trigger)
	return args.Get(0).(service.ScanTotals), args.Error(1)
}

func (m *mockScanner) Reminders(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestSourceHandler_Create(t *testing.T) {
	userID := uuid.New()

	t.Run("defaults name and enabled", func(t *testing.T) {
		repo := new(mockSourceRepo)
		repo.On("Create", mock.Anything, mock.MatchedBy(func(s *model.UserJobSource) bool {
			return s.UserID == userID && s.Kind == model.SourceRemotive && s.Name == model.SourceRemotive && s.Enabled
		})).Return(&model.UserJobSource{ID: uuid.New(), Kind: model.SourceRemotive}, nil)

		r := newTestRouter(userID)
		r.POST("/sources", NewSourceHandler(repo, nil, nil).Create)

		w := doJSON(r, http.MethodPost, "/sources", map[string]string{"kind": "remotive", "query": "golang"})
		assert.Equal(t, http.StatusOK, w.Code)
		repo.AssertExpectations(t)
	})

	t.Run("rss requires a feed url", func(t *testing.T) {
		repo := new(mockSourceRepo)
		r := newTestRouter(userID)
		r.POST("/sources", NewSourceHandler(repo, nil, nil).Create)

		w := doJSON(r, http.MethodPost, "/sources", map[string]string{"kind": "rss"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"feedUrl is required for rss sources"}`, w.Body.String())
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("unknown kind", func(t *testing.T) {
		r := newTestRouter(userID)
		r.POST("/sources", NewSourceHandler(new(mockSourceRepo), nil, nil).Create)

		w := doJSON(r, http.MethodPost, "/sources", map[string]string{"kind": "monster"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSourceHandler_Scan(t *testing.T) {
	userID := uuid.New()
	scanner := new(mockScanner)
	scanner.On("ScanUser", mock.Anything, userID, model.TriggerManual, true).
		Return(&model.ScanRun{ID: uuid.New(), Trigger: model.TriggerManual, Fetched: 12, Created: 3}, nil)

	r := newTestRouter(userID)
	r.POST("/sources/scan", NewSourceHandler(nil, nil, scanner).Scan)

	w := doJSON(r, http.MethodPost, "/sources/scan?force=true", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var run model.ScanRun
	decodeBody(t, w, &run)
	assert.Equal(t, 3, run.Created)
	scanner.AssertExpectations(t)
}

func TestSourceHandler_Scan_WhenUserGone_ShouldReturn404(t *testing.T) {
	userID := uuid.New()
	scanner := new(mockScanner)
	scanner.On("ScanUser", mock.Anything, userID, model.TriggerManual, false).Return(nil, service.ErrUserNotFound)

	r := newTestRouter(userID)
	r.POST("/sources/scan", NewSourceHandler(nil, nil, scanner).Scan)

	w := doJSON(r, http.MethodPost, "/sources/scan", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCronHandler(t *testing.T) {
	scanner := new(mockScanner)
	scanner.On("ScanAll", mock.Anything, model.TriggerCron).
		Return(service.ScanTotals{Users: 2, Scanned: 2, Created: 5, Alerts: 1}, nil)
	scanner.On("Reminders", mock.Anything).Return(4, nil)

	h := NewCronHandler(scanner)
	r := newTestRouter(uuid.Nil)
	r.POST("/cron/scan", h.Scan)
	r.POST("/cron/reminders", h.Reminders)

	w := doJSON(r, http.MethodPost, "/cron/scan", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"users":2,"scanned":2,"skipped":0,"failed":0,"created":5,"alerts":1}`, w.Body.String())

	w = doJSON(r, http.MethodPost, "/cron/reminders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"alerts":4}`, w.Body.String())
	scanner.AssertExpectations(t)
}

func TestCronHandler_WhenSweepFails_ShouldReturn500(t *testing.T) {
	scanner := new(mockScanner)
	scanner.On("ScanAll", mock.Anything, model.TriggerCron).Return(service.ScanTotals{}, errors.New("listing users: timeout"))

	r := newTestRouter(uuid.Nil)
	r.POST("/cron/scan", NewCronHandler(scanner).Scan)

	w := doJSON(r, http.MethodPost, "/cron/scan", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
