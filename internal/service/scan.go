package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/yourusername/applytrack-api/internal/events"
	"github.com/yourusername/applytrack-api/internal/fit"
	"github.com/yourusername/applytrack-api/internal/metrics"
	"github.com/yourusername/applytrack-api/internal/model"
	"github.com/yourusername/applytrack-api/internal/sources"
	"golang.org/x/sync/singleflight"
)

const (
	scanTimeout    = 90 * time.Second
	reminderWindow = 24 * time.Hour
)

// ErrUserNotFound is returned when a scan is requested for a missing user
var ErrUserNotFound = errors.New("user not found")

type userRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	ListScanEnabled(ctx context.Context) ([]model.User, error)
}

type sourceRepository interface {
	ListEnabled(ctx context.Context, userID uuid.UUID) ([]model.UserJobSource, error)
	RecordResult(ctx context.Context, id uuid.UUID, fetchErr string) error
}

type opportunityRepository interface {
	Upsert(ctx context.Context, userID uuid.UUID, p *model.ScannedPosting) (*model.JobOpportunity, bool, error)
	UpdateFit(ctx context.Context, id uuid.UUID, fit *model.FitResult) error
}

type alertRepository interface {
	Create(ctx context.Context, a *model.Alert) (*model.Alert, error)
}

type scanRunRepository interface {
	Start(ctx context.Context, userID uuid.UUID, trigger string) (*model.ScanRun, error)
	Finish(ctx context.Context, run *model.ScanRun) error
	LastStarted(ctx context.Context, userID uuid.UUID) (*model.ScanRun, error)
}

type skillRepository interface {
	List(ctx context.Context, userID uuid.UUID) ([]model.Skill, error)
}

type resumeRepository interface {
	FindPrimary(ctx context.Context, userID uuid.UUID) (*model.Resume, error)
}

type followUpRepository interface {
	ListDueWithin(ctx context.Context, window time.Duration) ([]model.FollowUp, error)
}

type interviewRepository interface {
	ListStartingWithin(ctx context.Context, window time.Duration) ([]model.Interview, error)
}

type sourceProvider interface {
	For(kind string) (sources.Source, error)
}

type fitScorer interface {
	Score(ctx context.Context, key string, p fit.Profile, job fit.Posting) model.FitResult
}

// ScanRepos groups the stores the scan service reads and writes
type ScanRepos struct {
	Users         userRepository
	Sources       sourceRepository
	Opportunities opportunityRepository
	Alerts        alertRepository
	Runs          scanRunRepository
	Skills        skillRepository
	Resumes       resumeRepository
	FollowUps     followUpRepository
	Interviews    interviewRepository
}

// ScanService sweeps a user's job sources, stores new postings, scores them
// and raises alerts for strong matches.
type ScanService struct {
	repos    ScanRepos
	sources  sourceProvider
	scorer   fitScorer
	bus      EventBus.Bus
	clock    clockwork.Clock
	throttle time.Duration
	group    singleflight.Group
}

func NewScanService(repos ScanRepos, src sourceProvider, scorer fitScorer, bus EventBus.Bus,
	clock clockwork.Clock, throttle time.Duration) *ScanService {
	return &ScanService{
		repos:    repos,
		sources:  src,
		scorer:   scorer,
		bus:      bus,
		clock:    clock,
		throttle: throttle,
	}
}

// ScanTotals summarizes a sweep over all users
type ScanTotals struct {
	Users   int `json:"users"`
	Scanned int `json:"scanned"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Created int `json:"created"`
	Alerts  int `json:"alerts"`
}

// ScanUser runs one scan for a user. Concurrent calls for the same user share
// a single run. Unless force is set, a user scanned within the throttle window
// gets a skipped run back without any fetching.
//
// The shared run is detached from ctx and bounded by scanTimeout instead, so
// a caller that goes away returns ctx.Err() without aborting the run for the
// others waiting on it.
func (s *ScanService) ScanUser(ctx context.Context, userID uuid.UUID, trigger string, force bool) (*model.ScanRun, error) {
	runCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(userID.String(), func() (interface{}, error) {
		return s.scanUser(runCtx, userID, trigger, force)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			log.Debug().Str("userId", userID.String()).Msg("Joined in-flight scan")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.ScanRun), nil
	}
}

func (s *ScanService) scanUser(ctx context.Context, userID uuid.UUID, trigger string, force bool) (*model.ScanRun, error) {
	user, err := s.repos.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if !force {
		last, err := s.repos.Runs.LastStarted(ctx, userID)
		if err != nil {
			log.Warn().Err(err).Str("userId", userID.String()).Msg("Failed to check last scan, continuing anyway")
		}
		if last != nil && s.clock.Since(last.StartedAt) < s.throttle {
			log.Info().
				Str("userId", userID.String()).
				Time("lastScan", last.StartedAt).
				Msg("Scanned recently, skipping")
			metrics.ScanRunsTotal.WithLabelValues(trigger, "skipped").Inc()
			skipped := *last
			skipped.Skipped = true
			return &skipped, nil
		}
	}

	run, err := s.repos.Runs.Start(ctx, userID, trigger)
	if err != nil {
		return nil, err
	}

	started := s.clock.Now()
	s.execute(ctx, user, run)
	metrics.ScanDuration.Observe(s.clock.Since(started).Seconds())

	if err := s.repos.Runs.Finish(ctx, run); err != nil {
		log.Error().Err(err).Str("userId", userID.String()).Msg("Failed to record scan run")
	}
	metrics.ScanRunsTotal.WithLabelValues(trigger, lo.Ternary(run.Error == "", "ok", "failed")).Inc()

	log.Info().
		Str("userId", userID.String()).
		Str("trigger", trigger).
		Int("fetched", run.Fetched).
		Int("new", run.Created).
		Int("alerts", run.Alerts).
		Str("error", run.Error).
		Msg("Scan complete")

	return run, nil
}

type fetchResult struct {
	source   model.UserJobSource
	postings []model.ScannedPosting
	err      error
}

// execute fetches every enabled source concurrently, then stores and scores
// the postings sequentially. Counters and the error summary land on run.
func (s *ScanService) execute(ctx context.Context, user *model.User, run *model.ScanRun) {
	scanCtx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	userSources, err := s.repos.Sources.ListEnabled(scanCtx, user.ID)
	if err != nil {
		run.Error = fmt.Sprintf("listing sources: %v", err)
		return
	}
	if len(userSources) == 0 {
		return
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []fetchResult
	)
	for _, src := range userSources {
		wg.Add(1)
		go func(src model.UserJobSource) {
			defer wg.Done()
			postings, err := s.fetch(scanCtx, &src, user)
			mu.Lock()
			results = append(results, fetchResult{source: src, postings: postings, err: err})
			mu.Unlock()
		}(src)
	}
	wg.Wait()

	var batch []model.ScannedPosting
	var failures []string
	for _, r := range results {
		errText := ""
		if r.err != nil {
			errText = r.err.Error()
			failures = append(failures, fmt.Sprintf("%s: %s", r.source.Name, errText))
			metrics.ScanPostingsTotal.WithLabelValues(r.source.Kind, "error").Inc()
			log.Warn().Err(r.err).Str("userId", user.ID.String()).Str("source", r.source.Kind).Msg("Source fetch failed")
		}
		if err := s.repos.Sources.RecordResult(ctx, r.source.ID, errText); err != nil {
			log.Error().Err(err).Str("sourceId", r.source.ID.String()).Msg("Failed to record source result")
		}
		batch = append(batch, r.postings...)
	}

	batch = lo.UniqBy(batch, func(p model.ScannedPosting) string { return p.Source + "\x00" + p.ExternalID })
	run.Fetched = len(batch)

	if len(failures) > 0 {
		run.Error = strings.Join(failures, "; ")
	}
	if len(failures) == len(results) {
		s.raise(ctx, &model.Alert{
			UserID: user.ID,
			Kind:   model.AlertScanFailed,
			Title:  "Job scan failed",
			Body:   run.Error,
		})
		return
	}

	profile := s.profileFor(scanCtx, user)
	for i := range batch {
		if scanCtx.Err() != nil {
			run.Error = strings.TrimPrefix(run.Error+"; scan timed out", "; ")
			return
		}
		s.store(scanCtx, user, profile, &batch[i], run)
	}
}

func (s *ScanService) fetch(ctx context.Context, src *model.UserJobSource, user *model.User) ([]model.ScannedPosting, error) {
	source, err := s.sources.For(src.Kind)
	if err != nil {
		return nil, err
	}
	postings, err := source.Fetch(ctx, sources.QueryFor(src, user))
	if err != nil {
		return nil, err
	}
	// Postings with no stable id cannot be deduplicated
	return lo.Filter(postings, func(p model.ScannedPosting, _ int) bool {
		return p.ExternalID != "" && p.Title != ""
	}), nil
}

// store upserts one posting; new ones are scored and may raise an alert
func (s *ScanService) store(ctx context.Context, user *model.User, profile fit.Profile, p *model.ScannedPosting, run *model.ScanRun) {
	sanitizePosting(p)

	opp, inserted, err := s.repos.Opportunities.Upsert(ctx, user.ID, p)
	if err != nil {
		metrics.ScanPostingsTotal.WithLabelValues(p.Source, "error").Inc()
		log.Error().Err(err).Str("source", p.Source).Str("externalId", p.ExternalID).Msg("Failed to upsert opportunity")
		return
	}
	if !inserted {
		metrics.ScanPostingsTotal.WithLabelValues(p.Source, "existing").Inc()
		return
	}
	metrics.ScanPostingsTotal.WithLabelValues(p.Source, "new").Inc()
	run.Created++

	result := s.scorer.Score(ctx, user.ID.String()+":"+opp.ID.String(), profile, fit.PostingFrom(opp))
	if err := s.repos.Opportunities.UpdateFit(ctx, opp.ID, &result); err != nil {
		log.Error().Err(err).Str("opportunityId", opp.ID.String()).Msg("Failed to store fit score")
		return
	}

	if result.Score < user.MinAlertScore {
		return
	}
	oppID := opp.ID
	alert := s.raise(ctx, &model.Alert{
		UserID:        user.ID,
		Kind:          model.AlertNewMatch,
		Title:         fmt.Sprintf("%d%% match: %s at %s", result.Score, opp.Title, opp.Company),
		Body:          result.Summary,
		OpportunityID: &oppID,
	})
	if alert != nil {
		run.Alerts++
	}
}

// raise stores an alert and announces it; a duplicate returns nil
func (s *ScanService) raise(ctx context.Context, a *model.Alert) *model.Alert {
	created, err := s.repos.Alerts.Create(ctx, a)
	if err != nil {
		log.Error().Err(err).Str("userId", a.UserID.String()).Str("kind", a.Kind).Msg("Failed to create alert")
		return nil
	}
	if created == nil {
		return nil
	}
	metrics.AlertsCreatedTotal.WithLabelValues(created.Kind).Inc()
	if s.bus != nil {
		s.bus.Publish(events.AlertCreatedTopic, events.AlertCreated{Alert: *created})
	}
	return created
}

// profileFor assembles the scoring profile; missing skills or résumé only weaken it
func (s *ScanService) profileFor(ctx context.Context, user *model.User) fit.Profile {
	skills, err := s.repos.Skills.List(ctx, user.ID)
	if err != nil {
		log.Warn().Err(err).Str("userId", user.ID.String()).Msg("Failed to load skills for scoring")
	}
	resumeText := ""
	resume, err := s.repos.Resumes.FindPrimary(ctx, user.ID)
	if err != nil {
		log.Warn().Err(err).Str("userId", user.ID.String()).Msg("Failed to load primary resume for scoring")
	} else if resume != nil {
		resumeText = resume.RawText
	}
	return fit.ProfileFor(user, skills, resumeText)
}

// ScoreOpportunity (re)scores one stored opportunity against the user's current profile
func (s *ScanService) ScoreOpportunity(ctx context.Context, user *model.User, opp *model.JobOpportunity) (*model.FitResult, error) {
	result := s.scorer.Score(ctx, user.ID.String()+":"+opp.ID.String(), s.profileFor(ctx, user), fit.PostingFrom(opp))
	if err := s.repos.Opportunities.UpdateFit(ctx, opp.ID, &result); err != nil {
		return nil, err
	}
	opp.FitScore = &result.Score
	opp.FitSummary = result.Summary
	opp.MatchedSkills = result.MatchedSkills
	opp.MissingSkills = result.MissingSkills
	return &result, nil
}

// ScanAll scans every scan-enabled user one after another
func (s *ScanService) ScanAll(ctx context.Context, trigger string) (ScanTotals, error) {
	users, err := s.repos.Users.ListScanEnabled(ctx)
	if err != nil {
		return ScanTotals{}, err
	}

	totals := ScanTotals{Users: len(users)}
	for _, u := range users {
		if ctx.Err() != nil {
			return totals, ctx.Err()
		}
		run, err := s.ScanUser(ctx, u.ID, trigger, false)
		switch {
		case err != nil:
			totals.Failed++
			log.Error().Err(err).Str("userId", u.ID.String()).Msg("Scan failed")
		case run.Skipped:
			totals.Skipped++
		default:
			totals.Scanned++
			totals.Created += run.Created
			totals.Alerts += run.Alerts
		}
	}

	log.Info().
		Int("users", totals.Users).
		Int("scanned", totals.Scanned).
		Int("skipped", totals.Skipped).
		Int("failed", totals.Failed).
		Int("new", totals.Created).
		Msg("Scan sweep complete")

	return totals, nil
}

// Reminders raises alerts for follow-ups and interviews due in the next 24
// hours. Each row gets at most one reminder.
func (s *ScanService) Reminders(ctx context.Context) (int, error) {
	followUps, err := s.repos.FollowUps.ListDueWithin(ctx, reminderWindow)
	if err != nil {
		return 0, err
	}
	interviews, err := s.repos.Interviews.ListStartingWithin(ctx, reminderWindow)
	if err != nil {
		return 0, err
	}

	raised := 0
	for _, f := range followUps {
		id := f.ID
		body := f.Notes
		if f.Company != "" {
			body = strings.TrimSpace(fmt.Sprintf("%s (%s) %s", f.Company, f.Position, f.Notes))
		}
		if s.raise(ctx, &model.Alert{
			UserID:        f.UserID,
			Kind:          model.AlertFollowUpDue,
			Title:         "Follow-up due: " + f.Title,
			Body:          body,
			ApplicationID: f.ApplicationID,
			FollowUpID:    &id,
		}) != nil {
			raised++
		}
	}
	for _, i := range interviews {
		id, appID := i.ID, i.ApplicationID
		if s.raise(ctx, &model.Alert{
			UserID:        i.UserID,
			Kind:          model.AlertInterviewSoon,
			Title:         fmt.Sprintf("Interview with %s at %s", i.Company, i.ScheduledAt.UTC().Format("Mon Jan 2 15:04 MST")),
			Body:          fmt.Sprintf("Round %d (%s) for %s", i.Round, i.Kind, i.Position),
			ApplicationID: &appID,
			InterviewID:   &id,
		}) != nil {
			raised++
		}
	}

	log.Info().
		Int("followUps", len(followUps)).
		Int("interviews", len(interviews)).
		Int("alerts", raised).
		Msg("Reminders sent")

	return raised, nil
}

// sanitizePosting makes every text field valid UTF-8 for PostgreSQL
func sanitizePosting(p *model.ScannedPosting) {
	for _, f := range []*string{&p.ExternalID, &p.Title, &p.Company, &p.Location, &p.URL, &p.Description} {
		*f = strings.ToValidUTF8(strings.ReplaceAll(*f, "\x00", ""), "")
	}
	p.Tags = lo.Map(p.Tags, func(t string, _ int) string { return strings.ToValidUTF8(t, "") })
}
