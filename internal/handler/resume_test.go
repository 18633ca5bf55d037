package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/applytrack-api/internal/ai"
	"github.com/yourusername/applytrack-api/internal/fit"
	"github.com/yourusername/applytrack-api/internal/model"
)

type fakeResumeRepo struct {
	resumes   map[uuid.UUID]*model.Resume
	created   []*model.Resume
	createErr error
}

func (f *fakeResumeRepo) Create(_ context.Context, res *model.Resume) (*model.Resume, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	res.ID = uuid.New()
	res.IsPrimary = len(f.created) == 0
	f.created = append(f.created, res)
	return res, nil
}

func (f *fakeResumeRepo) List(context.Context, uuid.UUID) ([]model.Resume, error) { return nil, nil }

func (f *fakeResumeRepo) FindByID(_ context.Context, id, _ uuid.UUID) (*model.Resume, error) {
	return f.resumes[id], nil
}

func (f *fakeResumeRepo) SetPrimary(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (f *fakeResumeRepo) SoftDelete(context.Context, uuid.UUID, uuid.UUID) (string, error) {
	return "", nil
}

type fakeStore struct {
	saved   map[string][]byte
	removed []string
}

func (s *fakeStore) Save(userID uuid.UUID, fileName string, r io.Reader) (string, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	rel := userID.String() + "/" + fileName
	s.saved[rel] = data
	return rel, int64(len(data)), nil
}

func (s *fakeStore) Remove(rel string) error {
	s.removed = append(s.removed, rel)
	return nil
}

type fakeResumeAI struct {
	profile *model.ResumeProfile
	err     error
}

func (f *fakeResumeAI) ExtractProfile(context.Context, string) (*model.ResumeProfile, error) {
	return f.profile, f.err
}

func (f *fakeResumeAI) TailorResume(context.Context, string, fit.Posting) (string, error) {
	return "", f.err
}

type fakeProfileApplier struct{ applied *model.ResumeProfile }

func (f *fakeProfileApplier) ApplyExtractedProfile(_ context.Context, id uuid.UUID, p *model.ResumeProfile) (*model.User, error) {
	f.applied = p
	return &model.User{ID: id, Headline: p.Headline}, nil
}

type fakeSkillMerger struct{ merged []model.ExtractedSkill }

func (f *fakeSkillMerger) MergeExtracted(_ context.Context, _ uuid.UUID, extracted []model.ExtractedSkill) (int, error) {
	f.merged = extracted
	return len(extracted), nil
}

func multipartUpload(t *testing.T, fileName string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/resumes", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newResumeRouter(userID uuid.UUID, h *ResumeHandler) *gin.Engine {
	r := newTestRouter(userID)
	r.POST("/resumes", h.Upload)
	r.POST("/resumes/:id/extract-profile", h.ExtractProfile)
	return r
}

func TestResumeHandler_Upload_ShouldStoreTextResume(t *testing.T) {
	userID := uuid.New()
	repo := &fakeResumeRepo{}
	store := &fakeStore{}
	h := NewResumeHandler(repo, nil, nil, nil, store, nil, 1<<20)

	content := []byte(strings.Repeat("Go engineer with Postgres and Kubernetes experience. ", 3))
	w := httptest.NewRecorder()
	newResumeRouter(userID, h).ServeHTTP(w, multipartUpload(t, "jane-doe.txt", content))

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, repo.created, 1)
	created := repo.created[0]
	assert.Equal(t, "jane-doe", created.Name)
	assert.Equal(t, "text/plain", created.MimeType)
	assert.Equal(t, model.ResumeUploaded, created.Kind)
	assert.True(t, created.IsPrimary)
	assert.Contains(t, w.Body.String(), `"fileUrl":"/uploads/`+userID.String()+`/jane-doe.txt"`)
	assert.Len(t, store.saved, 1)
}

func TestResumeHandler_Upload_WhenTypeUnsupported_ShouldReturn400AndStoreNothing(t *testing.T) {
	userID := uuid.New()
	repo := &fakeResumeRepo{}
	store := &fakeStore{}
	h := NewResumeHandler(repo, nil, nil, nil, store, nil, 1<<20)

	w := httptest.NewRecorder()
	newResumeRouter(userID, h).ServeHTTP(w, multipartUpload(t, "resume.docx", []byte("PK\x03\x04 binary")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.saved)
	assert.Empty(t, repo.created)
}

func TestResumeHandler_Upload_WhenTooLittleText_ShouldReturn422(t *testing.T) {
	userID := uuid.New()
	h := NewResumeHandler(&fakeResumeRepo{}, nil, nil, nil, &fakeStore{}, nil, 1<<20)

	w := httptest.NewRecorder()
	newResumeRouter(userID, h).ServeHTTP(w, multipartUpload(t, "short.txt", []byte("Jane Doe")))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestResumeHandler_Upload_WhenTooLarge_ShouldReturn413(t *testing.T) {
	userID := uuid.New()
	h := NewResumeHandler(&fakeResumeRepo{}, nil, nil, nil, &fakeStore{}, nil, 64)

	w := httptest.NewRecorder()
	newResumeRouter(userID, h).ServeHTTP(w, multipartUpload(t, "long.txt", bytes.Repeat([]byte("a"), 200)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestResumeHandler_Upload_WhenRowInsertFails_ShouldRemoveFile(t *testing.T) {
	userID := uuid.New()
	store := &fakeStore{}
	repo := &fakeResumeRepo{createErr: errors.New("db down")}
	h := NewResumeHandler(repo, nil, nil, nil, store, nil, 1<<20)

	content := []byte(strings.Repeat("Experienced backend engineer. ", 4))
	w := httptest.NewRecorder()
	newResumeRouter(userID, h).ServeHTTP(w, multipartUpload(t, "cv.md", content))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, []string{userID.String() + "/cv.md"}, store.removed)
}

func TestResumeHandler_ExtractProfile(t *testing.T) {
	userID, resumeID := uuid.New(), uuid.New()
	repo := &fakeResumeRepo{resumes: map[uuid.UUID]*model.Resume{
		resumeID: {ID: resumeID, UserID: userID, RawText: "resume text"},
	}}

	t.Run("merges profile and skills", func(t *testing.T) {
		users := &fakeProfileApplier{}
		skills := &fakeSkillMerger{}
		profile := &model.ResumeProfile{
			Headline: "Backend engineer",
			Skills:   []model.ExtractedSkill{{Name: "Go", Level: 5}, {Name: "SQL", Level: 4}},
		}
		h := NewResumeHandler(repo, users, skills, nil, &fakeStore{}, &fakeResumeAI{profile: profile}, 1<<20)

		w := doJSON(newResumeRouter(userID, h), http.MethodPost, "/resumes/"+resumeID.String()+"/extract-profile", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Same(t, profile, users.applied)
		assert.Len(t, skills.merged, 2)
		assert.Contains(t, w.Body.String(), `"skillsAdded":2`)
	})

	t.Run("answers 503 when AI is not configured", func(t *testing.T) {
		h := NewResumeHandler(repo, &fakeProfileApplier{}, &fakeSkillMerger{}, nil, &fakeStore{},
			&fakeResumeAI{err: ai.ErrUnavailable}, 1<<20)

		w := doJSON(newResumeRouter(userID, h), http.MethodPost, "/resumes/"+resumeID.String()+"/extract-profile", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("answers 502 when the model call fails", func(t *testing.T) {
		h := NewResumeHandler(repo, &fakeProfileApplier{}, &fakeSkillMerger{}, nil, &fakeStore{},
			&fakeResumeAI{err: errors.New("upstream 500")}, 1<<20)

		w := doJSON(newResumeRouter(userID, h), http.MethodPost, "/resumes/"+resumeID.String()+"/extract-profile", nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("answers 404 for another user's resume", func(t *testing.T) {
		h := NewResumeHandler(repo, &fakeProfileApplier{}, &fakeSkillMerger{}, nil, &fakeStore{}, &fakeResumeAI{}, 1<<20)

		w := doJSON(newResumeRouter(userID, h), http.MethodPost, "/resumes/"+uuid.NewString()+"/extract-profile", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
