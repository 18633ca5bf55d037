package repository

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/yourusername/applytrack-api/internal/model"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}
	os.Exit(runWithPostgres(m))
}

func runWithPostgres(m *testing.M) int {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("applytrack"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start postgres container: %v\n", err)
		return 1
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to terminate postgres container: %v\n", err)
		}
	}()

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get connection string: %v\n", err)
		return 1
	}

	testPool, err = Connect(ctx, connStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to test database: %v\n", err)
		return 1
	}
	defer testPool.Close()

	if err := Migrate(ctx, testPool); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to run migrations: %v\n", err)
		return 1
	}

	return m.Run()
}

func requireDB(t *testing.T) {
	t.Helper()
	if testPool == nil {
		t.Skip("integration test, needs docker (run without -short)")
	}
}

func createTestUser(t *testing.T) *model.User {
	t.Helper()
	uid := uuid.NewString()
	u, err := NewUserRepo(testPool).Create(context.Background(), "fb-"+uid, uid+"@example.com", "Test User", "")
	require.NoError(t, err)
	return u
}

func TestMigrate_IsIdempotent(t *testing.T) {
	requireDB(t)
	require.NoError(t, Migrate(context.Background(), testPool))
}

func TestApplicationRepo_Create_ShouldDefaultToAppliedWithHistory(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	user := createTestUser(t)
	repo := NewApplicationRepo(testPool)

	app, err := repo.Create(ctx, &model.Application{UserID: user.ID, Company: "Acme", Position: "Go Engineer"})
	require.NoError(t, err)

	assert.Equal(t, model.StatusApplied, app.Status)
	assert.NotNil(t, app.AppliedAt)

	history, err := repo.GetHistory(ctx, app.ID, user.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.StatusApplied, history[0].ToStatus)
}

func TestApplicationRepo_UpdateStatus(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	user := createTestUser(t)
	repo := NewApplicationRepo(testPool)

	app, err := repo.Create(ctx, &model.Application{UserID: user.ID, Company: "Acme", Position: "SRE"})
	require.NoError(t, err)

	updated, err := repo.UpdateStatus(ctx, app.ID, user.ID, model.StatusRejected, "no fit")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, updated.Status)

	_, err = repo.UpdateStatus(ctx, app.ID, user.ID, model.StatusOffer, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = repo.UpdateStatus(ctx, app.ID, user.ID, model.StatusApplied, "reopened")
	require.NoError(t, err)

	history, err := repo.GetHistory(ctx, app.ID, user.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	_, err = repo.UpdateStatus(ctx, app.ID, uuid.New(), model.StatusScreening, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplicationRepo_SoftDelete_ShouldHideFromListAndCounts(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	user := createTestUser(t)
	repo := NewApplicationRepo(testPool)

	keep, err := repo.Create(ctx, &model.Application{UserID: user.ID, Company: "Keep", Position: "Dev"})
	require.NoError(t, err)
	gone, err := repo.Create(ctx, &model.Application{UserID: user.ID, Company: "Gone", Position: "Dev"})
	require.NoError(t, err)

	require.NoError(t, repo.SoftDelete(ctx, gone.ID, user.ID))
	assert.ErrorIs(t, repo.SoftDelete(ctx, gone.ID, user.ID), ErrNotFound)

	apps, err := repo.List(ctx, user.ID, model.ApplicationFilter{})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, keep.ID, apps[0].ID)

	found, err := repo.FindByID(ctx, gone.ID, user.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	counts, err := repo.CountByStatus(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[model.StatusApplied])
}

func TestOpportunityRepo_Upsert_ShouldDeduplicate(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	user := createTestUser(t)
	repo := NewOpportunityRepo(testPool)

	posting := &model.ScannedPosting{
		Source:     model.SourceRemotive,
		ExternalID: "123",
		Title:      "Backend Engineer",
		Company:    "Acme",
		URL:        "https://remotive.com/jobs/123",
	}

	first, inserted, err := repo.Upsert(ctx, user.ID, posting)
	require.NoError(t, err)
	assert.True(t, inserted)

	posting.Title = "Senior Backend Engineer"
	second, inserted, err := repo.Upsert(ctx, user.ID, posting)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Senior Backend Engineer", second.Title)

	n, err := repo.CountNew(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpportunityRepo_Upsert_ShouldStoreSkills(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	user := createTestUser(t)
	repo := NewOpportunityRepo(testPool)

	untagged, _, err := repo.Upsert(ctx, user.ID, &model.ScannedPosting{
		Source: model.SourceManual, ExternalID: "plain", Title: "Analyst", Company: "Acme",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{}, untagged.Skills)

	posting := &model.ScannedPosting{
		Source: model.SourceRemotive, ExternalID: "tagged", Title: "Go Engineer", Company: "Acme",
		Tags: []string{"Go", "Postgres"},
	}
	_, _, err = repo.Upsert(ctx, user.ID, posting)
	require.NoError(t, err)

	posting.Tags = []string{"Go", "Kafka"}
	updated, inserted, err := repo.Upsert(ctx, user.ID, posting)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, []string{"Go", "Kafka"}, updated.Skills)

	found, err := repo.FindByID(ctx, updated.ID, user.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, []string{"Go", "Kafka"}, found.Skills)
}

func TestContactRepo_BulkCreate_ShouldSkipDuplicates(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	user := createTestUser(t)
	repo := NewContactRepo(testPool)

	_, err := repo.Create(ctx, &model.Contact{UserID: user.ID, Name: "Jane Doe", Company: "Acme"})
	require.NoError(t, err)

	inserted, skipped, err := repo.BulkCreate(ctx, user.ID, []model.Contact{
		{Name: "jane doe", Company: "ACME"},
		{Name: "John Roe", Company: "Globex"},
		{Name: "John Roe", Company: "Globex"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.Equal(t, 2, skipped)
}

func TestResumeRepo_PrimaryLifecycle(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	user := createTestUser(t)
	repo := NewResumeRepo(testPool)

	first, err := repo.Create(ctx, &model.Resume{UserID: user.ID, Name: "One", FilePath: "a.pdf"})
	require.NoError(t, err)
	assert.True(t, first.IsPrimary)

	second, err := repo.Create(ctx, &model.Resume{UserID: user.ID, Name: "Two", FilePath: "b.pdf"})
	require.NoError(t, err)
	assert.False(t, second.IsPrimary)

	require.NoError(t, repo.SetPrimary(ctx, second.ID, user.ID))
	primary, err := repo.FindPrimary(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, primary)
	assert.Equal(t, second.ID, primary.ID)

	path, err := repo.SoftDelete(ctx, second.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "b.pdf", path)

	primary, err = repo.FindPrimary(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, primary)
	assert.Equal(t, first.ID, primary.ID)
}

func TestSkillRepo_MergeExtracted(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	user := createTestUser(t)
	repo := NewSkillRepo(testPool)

	_, err := repo.Create(ctx, &model.Skill{UserID: user.ID, Name: "Go", Level: 2})
	require.NoError(t, err)

	added, err := repo.MergeExtracted(ctx, user.ID, []model.ExtractedSkill{
		{Name: "go", Category: "Languages", Level: 5},
		{Name: "PostgreSQL", Category: "Databases", Level: 4},
		{Name: "  ", Level: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	skills, err := repo.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, skills, 2)
	assert.Equal(t, "Go", skills[0].Name)
	assert.Equal(t, 5, skills[0].Level)

	_, err = repo.Create(ctx, &model.Skill{UserID: user.ID, Name: "GO", Level: 1})
	assert.ErrorIs(t, err, ErrDuplicate)

	groups, err := repo.ListGrouped(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, groups, 2)
}

func TestAlertRepo_ReminderAlertsAreUnique(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	user := createTestUser(t)
	followUps := NewFollowUpRepo(testPool)
	alerts := NewAlertRepo(testPool)

	f, err := followUps.Create(ctx, &model.FollowUp{
		UserID:  user.ID,
		Title:   "Ping recruiter",
		Channel: "email",
		DueAt:   time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	a := &model.Alert{UserID: user.ID, Kind: model.AlertFollowUpDue, Title: "Due", FollowUpID: &f.ID}
	created, err := alerts.Create(ctx, a)
	require.NoError(t, err)
	require.NotNil(t, created)

	again, err := alerts.Create(ctx, a)
	require.NoError(t, err)
	assert.Nil(t, again)

	unread, err := alerts.CountUnread(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	n, err := alerts.MarkAllRead(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestUserRepo_ApplyExtractedProfile_ShouldOnlyFillEmptyFields(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	user := createTestUser(t)
	repo := NewUserRepo(testPool)

	updated, err := repo.ApplyExtractedProfile(ctx, user.ID, &model.ResumeProfile{
		Name:     "Someone Else",
		Headline: "Backend engineer",
		Location: "Berlin",
	})
	require.NoError(t, err)
	assert.Equal(t, "Test User", updated.Name)
	assert.Equal(t, "Backend engineer", updated.Headline)
	assert.Equal(t, "Berlin", updated.Location)

	token, err := repo.RotateBookmarkletToken(ctx, user.ID)
	require.NoError(t, err)
	byToken, err := repo.FindByBookmarkletToken(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, byToken)
	assert.Equal(t, user.ID, byToken.ID)
}

func TestRefRepo_CheckOwned(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	owner, other := createTestUser(t), createTestUser(t)
	apps := NewApplicationRepo(testPool)
	refs := NewRefRepo(testPool)

	app, err := apps.Create(ctx, &model.Application{UserID: owner.ID, Company: "Acme", Position: "Dev"})
	require.NoError(t, err)

	require.NoError(t, refs.CheckOwned(ctx, owner.ID,
		Ref{Field: "applicationId", Kind: RefApplication, ID: &app.ID},
		Ref{Field: "contactId", Kind: RefContact, ID: nil},
	))

	err = refs.CheckOwned(ctx, other.ID, Ref{Field: "applicationId", Kind: RefApplication, ID: &app.ID})
	var refErr *RefError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "applicationId", refErr.Field)
	assert.ErrorIs(t, err, ErrForeignRef)

	require.NoError(t, apps.SoftDelete(ctx, app.ID, owner.ID))
	err = refs.CheckOwned(ctx, owner.ID, Ref{Field: "applicationId", Kind: RefApplication, ID: &app.ID})
	assert.ErrorIs(t, err, ErrForeignRef)
}

func TestFollowUpRepo_ShouldOnlyJoinOwnApplications(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	owner, other := createTestUser(t), createTestUser(t)

	app, err := NewApplicationRepo(testPool).Create(ctx, &model.Application{UserID: owner.ID, Company: "Secret Corp", Position: "CTO"})
	require.NoError(t, err)

	f, err := NewFollowUpRepo(testPool).Create(ctx, &model.FollowUp{
		UserID:        other.ID,
		ApplicationID: &app.ID,
		Title:         "x",
		Channel:       "email",
		DueAt:         time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Empty(t, f.Company)
	assert.Empty(t, f.Position)
}

func TestFollowUpRepo_ListDueWithin_ShouldSkipDeletedApplications(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	user := createTestUser(t)
	apps := NewApplicationRepo(testPool)
	followUps := NewFollowUpRepo(testPool)

	kept, err := apps.Create(ctx, &model.Application{UserID: user.ID, Company: "Acme", Position: "Dev"})
	require.NoError(t, err)
	dropped, err := apps.Create(ctx, &model.Application{UserID: user.ID, Company: "Globex", Position: "Dev"})
	require.NoError(t, err)

	due := time.Now().Add(time.Hour)
	var ids []uuid.UUID
	for _, appID := range []*uuid.UUID{&kept.ID, &dropped.ID, nil} {
		f, err := followUps.Create(ctx, &model.FollowUp{UserID: user.ID, ApplicationID: appID, Title: "Ping", Channel: "email", DueAt: due})
		require.NoError(t, err)
		ids = append(ids, f.ID)
	}
	require.NoError(t, apps.SoftDelete(ctx, dropped.ID, user.ID))

	list, err := followUps.ListDueWithin(ctx, 24*time.Hour)
	require.NoError(t, err)

	var got []uuid.UUID
	for _, f := range list {
		if f.UserID == user.ID {
			got = append(got, f.ID)
		}
	}
	assert.ElementsMatch(t, []uuid.UUID{ids[0], ids[2]}, got)
}
