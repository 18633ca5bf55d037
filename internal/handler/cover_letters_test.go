package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/applytrack-api/internal/ai"
	"github.com/yourusername/applytrack-api/internal/model"
)

type fakeLetterRepo struct {
	created *model.CoverLetter
}

func (f *fakeLetterRepo) Create(_ context.Context, cl *model.CoverLetter) (*model.CoverLetter, error) {
	cl.ID = uuid.New()
	f.created = cl
	return cl, nil
}

func (f *fakeLetterRepo) List(context.Context, uuid.UUID, *uuid.UUID) ([]model.CoverLetter, error) {
	return nil, nil
}

func (f *fakeLetterRepo) FindByID(context.Context, uuid.UUID, uuid.UUID) (*model.CoverLetter, error) {
	return nil, nil
}

func (f *fakeLetterRepo) Update(context.Context, uuid.UUID, uuid.UUID, string, string) (*model.CoverLetter, error) {
	return nil, nil
}

func (f *fakeLetterRepo) Delete(context.Context, uuid.UUID, uuid.UUID) error { return nil }

type fakeResumeFinder struct{ primary *model.Resume }

func (f fakeResumeFinder) FindByID(_ context.Context, id, _ uuid.UUID) (*model.Resume, error) {
	if f.primary != nil && f.primary.ID == id {
		return f.primary, nil
	}
	return nil, nil
}

func (f fakeResumeFinder) FindPrimary(context.Context, uuid.UUID) (*model.Resume, error) {
	return f.primary, nil
}

type fakeApplicationFinder map[uuid.UUID]*model.Application

func (f fakeApplicationFinder) FindByID(_ context.Context, id, _ uuid.UUID) (*model.Application, error) {
	return f[id], nil
}

type fakeWriter struct {
	got ai.CoverLetterInput
	err error
}

func (w *fakeWriter) GenerateCoverLetter(_ context.Context, in ai.CoverLetterInput) (string, error) {
	w.got = in
	return "Dear hiring team,", w.err
}

func (w *fakeWriter) ProviderName() string { return "gemini" }

func TestCoverLetterHandler_Generate_FromApplicationWithoutOpportunity(t *testing.T) {
	userID, appID := uuid.New(), uuid.New()
	letters := &fakeLetterRepo{}
	writer := &fakeWriter{}
	resume := &model.Resume{ID: uuid.New(), RawText: "Ten years of Go."}
	h := NewCoverLetterHandler(
		letters,
		fakeResumeFinder{primary: resume},
		fakeApplicationFinder{appID: {ID: appID, Company: "Acme", Position: "Staff Engineer", Location: "Berlin"}},
		&fakeOpportunityRepo{},
		fakeUserLookup{userID: {ID: userID, Name: "Jane Doe"}},
		writer,
	)

	r := newTestRouter(userID)
	r.POST("/cover-letters/generate", h.Generate)

	w := doJSON(r, http.MethodPost, "/cover-letters/generate", map[string]string{"applicationId": appID.String()})
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "professional", writer.got.Tone)
	assert.Equal(t, "Jane Doe", writer.got.CandidateName)
	assert.Equal(t, "Staff Engineer", writer.got.Job.Title)
	require.NotNil(t, letters.created)
	assert.Equal(t, "Staff Engineer at Acme", letters.created.Title)
	assert.Equal(t, "gemini", letters.created.Provider)
	assert.Equal(t, &resume.ID, letters.created.ResumeID)
	assert.Nil(t, letters.created.OpportunityID)
}

func TestCoverLetterHandler_Generate_Failures(t *testing.T) {
	userID, appID := uuid.New(), uuid.New()
	apps := fakeApplicationFinder{appID: {ID: appID, Company: "Acme", Position: "Dev"}}
	users := fakeUserLookup{userID: {ID: userID}}
	resume := &model.Resume{ID: uuid.New(), RawText: "text"}

	tests := []struct {
		name     string
		body     map[string]string
		resumes  fakeResumeFinder
		writer   *fakeWriter
		wantCode int
	}{
		{"no target", map[string]string{}, fakeResumeFinder{primary: resume}, &fakeWriter{}, http.StatusBadRequest},
		{"bad tone", map[string]string{"applicationId": appID.String(), "tone": "snarky"}, fakeResumeFinder{primary: resume}, &fakeWriter{}, http.StatusBadRequest},
		{"no resume", map[string]string{"applicationId": appID.String()}, fakeResumeFinder{}, &fakeWriter{}, http.StatusBadRequest},
		{"unknown application", map[string]string{"applicationId": uuid.NewString()}, fakeResumeFinder{primary: resume}, &fakeWriter{}, http.StatusNotFound},
		{"unknown opportunity", map[string]string{"opportunityId": uuid.NewString()}, fakeResumeFinder{primary: resume}, &fakeWriter{}, http.StatusNotFound},
		{"ai unavailable", map[string]string{"applicationId": appID.String()}, fakeResumeFinder{primary: resume}, &fakeWriter{err: ai.ErrUnavailable}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			letters := &fakeLetterRepo{}
			h := NewCoverLetterHandler(letters, tt.resumes, apps, &fakeOpportunityRepo{}, users, tt.writer)

			r := newTestRouter(userID)
			r.POST("/cover-letters/generate", h.Generate)

			w := doJSON(r, http.MethodPost, "/cover-letters/generate", tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Nil(t, letters.created)
		})
	}
}
