package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/applytrack-api/internal/model"
)

type fakeDashboardRepos struct {
	counts     map[string]int
	newOpps    int
	unread     int
	interviews []model.Interview
	top        []model.JobOpportunity
	gotFilter  model.OpportunityFilter
	gotHorizon time.Duration
	err        error
}

func (f *fakeDashboardRepos) CountByStatus(context.Context, uuid.UUID) (map[string]int, error) {
	return f.counts, f.err
}

func (f *fakeDashboardRepos) List(_ context.Context, _ uuid.UUID, filter model.OpportunityFilter) ([]model.JobOpportunity, error) {
	f.gotFilter = filter
	return f.top, nil
}

func (f *fakeDashboardRepos) CountNew(context.Context, uuid.UUID) (int, error) { return f.newOpps, nil }

func (f *fakeDashboardRepos) CountUnread(context.Context, uuid.UUID) (int, error) { return f.unread, nil }

func (f *fakeDashboardRepos) ListUpcoming(_ context.Context, _ uuid.UUID, horizon time.Duration) ([]model.Interview, error) {
	f.gotHorizon = horizon
	return f.interviews, nil
}

type noFollowUps struct{}

func (noFollowUps) List(context.Context, uuid.UUID, bool, bool) ([]model.FollowUp, error) {
	return nil, nil
}

func TestDashboardHandler_Summary(t *testing.T) {
	userID := uuid.New()
	repos := &fakeDashboardRepos{
		counts: map[string]int{
			model.StatusApplied:   3,
			model.StatusInterview: 2,
			model.StatusRejected:  4,
			model.StatusGhosted:   1,
		},
		newOpps:    7,
		unread:     2,
		interviews: []model.Interview{{ID: uuid.New(), Round: 1}},
	}
	h := NewDashboardHandler(repos, repos, repos, noFollowUps{}, repos)

	r := newTestRouter(userID)
	r.GET("/dashboard/summary", h.Summary)

	w := doJSON(r, http.MethodGet, "/dashboard/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got model.DashboardSummary
	decodeBody(t, w, &got)
	assert.Equal(t, 5, got.ActiveApplications)
	assert.Equal(t, 7, got.NewOpportunities)
	assert.Equal(t, 2, got.UnreadAlerts)
	assert.Len(t, got.PipelineCounts, len(model.ApplicationStatuses))
	assert.Equal(t, 0, got.PipelineCounts[model.StatusOffer])
	assert.Len(t, got.UpcomingInterviews, 1)
	assert.NotNil(t, got.DueFollowUps)
	assert.NotNil(t, got.TopOpportunities)

	assert.Equal(t, model.OpportunityNew, repos.gotFilter.Status)
	assert.Equal(t, dashboardTopOpportunities, repos.gotFilter.Limit)
	assert.Equal(t, dashboardInterviewHorizon, repos.gotHorizon)
}

func TestDashboardHandler_Summary_WhenAnyQueryFails_ShouldReturn500(t *testing.T) {
	repos := &fakeDashboardRepos{err: errors.New("timeout")}
	h := NewDashboardHandler(repos, repos, repos, noFollowUps{}, repos)

	r := newTestRouter(uuid.New())
	r.GET("/dashboard/summary", h.Summary)

	w := doJSON(r, http.MethodGet, "/dashboard/summary", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
