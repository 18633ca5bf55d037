package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/yourusername/applytrack-api/internal/model"
	"golang.org/x/sync/errgroup"
)

const (
	dashboardInterviewHorizon = 7 * 24 * time.Hour
	dashboardTopOpportunities = 5
)

type statusCounter interface {
	CountByStatus(ctx context.Context, userID uuid.UUID) (map[string]int, error)
}

type opportunityBrowser interface {
	List(ctx context.Context, userID uuid.UUID, f model.OpportunityFilter) ([]model.JobOpportunity, error)
	CountNew(ctx context.Context, userID uuid.UUID) (int, error)
}

type upcomingInterviews interface {
	ListUpcoming(ctx context.Context, userID uuid.UUID, horizon time.Duration) ([]model.Interview, error)
}

type followUpLister interface {
	List(ctx context.Context, userID uuid.UUID, dueOnly, includeCompleted bool) ([]model.FollowUp, error)
}

type unreadCounter interface {
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

type DashboardHandler struct {
	appRepo       statusCounter
	oppRepo       opportunityBrowser
	interviewRepo upcomingInterviews
	followUpRepo  followUpLister
	alertRepo     unreadCounter
}

func NewDashboardHandler(appRepo statusCounter, oppRepo opportunityBrowser, interviewRepo upcomingInterviews,
	followUpRepo followUpLister, alertRepo unreadCounter) *DashboardHandler {
	return &DashboardHandler{
		appRepo:       appRepo,
		oppRepo:       oppRepo,
		interviewRepo: interviewRepo,
		followUpRepo:  followUpRepo,
		alertRepo:     alertRepo,
	}
}

// Summary handles GET /dashboard/summary
func (h *DashboardHandler) Summary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var summary model.DashboardSummary
	g, ctx := errgroup.WithContext(c.Request.Context())

	g.Go(func() error {
		counts, err := h.appRepo.CountByStatus(ctx, userID)
		if err != nil {
			return err
		}
		summary.PipelineCounts = make(map[string]int, len(model.ApplicationStatuses))
		for _, status := range model.ApplicationStatuses {
			summary.PipelineCounts[status] = counts[status]
			if model.IsActiveStatus(status) {
				summary.ActiveApplications += counts[status]
			}
		}
		return nil
	})
	g.Go(func() (err error) {
		summary.NewOpportunities, err = h.oppRepo.CountNew(ctx, userID)
		return err
	})
	g.Go(func() (err error) {
		summary.UnreadAlerts, err = h.alertRepo.CountUnread(ctx, userID)
		return err
	})
	g.Go(func() (err error) {
		summary.UpcomingInterviews, err = h.interviewRepo.ListUpcoming(ctx, userID, dashboardInterviewHorizon)
		return err
	})
	g.Go(func() (err error) {
		summary.DueFollowUps, err = h.followUpRepo.List(ctx, userID, true, false)
		return err
	})
	g.Go(func() (err error) {
		summary.TopOpportunities, err = h.oppRepo.List(ctx, userID, model.OpportunityFilter{
			Status: model.OpportunityNew,
			Limit:  dashboardTopOpportunities,
		})
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Str("userId", userID.String()).Msg("Failed to build dashboard")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
		return
	}

	summary.UpcomingInterviews = lo.Ternary(summary.UpcomingInterviews == nil, []model.Interview{}, summary.UpcomingInterviews)
	summary.DueFollowUps = lo.Ternary(summary.DueFollowUps == nil, []model.FollowUp{}, summary.DueFollowUps)
	summary.TopOpportunities = lo.Ternary(summary.TopOpportunities == nil, []model.JobOpportunity{}, summary.TopOpportunities)

	c.JSON(http.StatusOK, summary)
}
