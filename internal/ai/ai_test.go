package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/applytrack-api/internal/fit"
	"github.com/yourusername/applytrack-api/internal/llm"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

func TestNewService_NilProvider(t *testing.T) {
	s := NewService(nil)
	assert.Nil(t, s)

	_, err := s.ExtractProfile(context.Background(), "text")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "", s.ProviderName())
}

func Test_ExtractProfile_WhenModelReturnsFencedJSON_ShouldDecodeAndClampLevels(t *testing.T) {
	p := new(mockProvider)
	p.On("Complete", mock.Anything, mock.MatchedBy(func(pr llm.Prompt) bool {
		return strings.Contains(pr.User, "Jane Doe") && pr.System == extractSystemPrompt
	})).Return("```json\n"+`{
		"name": "Jane Doe",
		"headline": "Backend engineer",
		"yearsExperience": -2,
		"targetRoles": ["Backend Engineer"],
		"skills": [{"name": "Go", "category": "Languages", "level": 9}, {"name": "SQL", "level": 0}]
	}`+"\n```", nil)

	profile, err := NewService(p).ExtractProfile(context.Background(), "Jane Doe\nGo developer")

	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", profile.Name)
	assert.Equal(t, 0, profile.YearsExperience)
	require.Len(t, profile.Skills, 2)
	assert.Equal(t, 5, profile.Skills[0].Level)
	assert.Equal(t, 1, profile.Skills[1].Level)
}

func Test_ExtractProfile_WhenModelReturnsGarbage_ShouldError(t *testing.T) {
	p := new(mockProvider)
	p.On("Complete", mock.Anything, mock.Anything).Return("sorry, no", nil)

	_, err := NewService(p).ExtractProfile(context.Background(), "resume")
	assert.Error(t, err)
}

func Test_ScoreFit_ShouldClampScore(t *testing.T) {
	p := new(mockProvider)
	p.On("Complete", mock.Anything, mock.Anything).
		Return(`{"score": 140, "summary": "Great", "matchedSkills": ["go"], "missingSkills": []}`, nil)

	r, err := NewService(p).ScoreFit(context.Background(),
		fit.Profile{Skills: []string{"go"}}, fit.Posting{Title: "Go dev"})

	require.NoError(t, err)
	assert.Equal(t, 100, r.Score)
	assert.Equal(t, []string{"go"}, r.MatchedSkills)
}

func Test_GenerateCoverLetter_WhenToneUnknown_ShouldFallBackToProfessional(t *testing.T) {
	p := new(mockProvider)
	p.On("Complete", mock.Anything, mock.MatchedBy(func(pr llm.Prompt) bool {
		return strings.HasPrefix(pr.User, "Tone: professional.")
	})).Return("  Dear team,\n\nI am writing...  ", nil)

	letter, err := NewService(p).GenerateCoverLetter(context.Background(), CoverLetterInput{
		ResumeText: "resume",
		Job:        fit.Posting{Title: "PM", Company: "Acme"},
		Tone:       "sarcastic",
	})

	require.NoError(t, err)
	assert.Equal(t, "Dear team,\n\nI am writing...", letter)
	p.AssertExpectations(t)
}

func Test_TailorResume_ShouldPropagateProviderError(t *testing.T) {
	p := new(mockProvider)
	p.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("overloaded"))

	_, err := NewService(p).TailorResume(context.Background(), "resume", fit.Posting{Title: "x"})
	assert.EqualError(t, err, "overloaded")
}

func Test_ParsePosting_ShouldSwapInvertedSalary(t *testing.T) {
	p := new(mockProvider)
	p.On("Complete", mock.Anything, mock.Anything).
		Return(`Here it is: {"title": "SRE", "company": "Acme", "salaryMin": 180000, "salaryMax": 150000}`, nil)

	parsed, err := NewService(p).ParsePosting(context.Background(), "https://acme.dev/jobs/1", "SRE - Acme", "page text")

	require.NoError(t, err)
	assert.Equal(t, "SRE", parsed.Title)
	assert.Equal(t, 150000, parsed.SalaryMin)
	assert.Equal(t, 180000, parsed.SalaryMax)
}

func TestClip(t *testing.T) {
	assert.Equal(t, "héll", clip("héllo", 4))
	assert.Equal(t, "hi", clip("hi", 4))
}
