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
	"github.com/yourusername/applytrack-api/internal/repository"
)

type fakeFollowUpRepo struct {
	created *model.FollowUp
	updated *model.FollowUp
}

func (f *fakeFollowUpRepo) List(context.Context, uuid.UUID, bool, bool) ([]model.FollowUp, error) {
	return nil, nil
}

func (f *fakeFollowUpRepo) Create(_ context.Context, fu *model.FollowUp) (*model.FollowUp, error) {
	fu.ID = uuid.New()
	f.created = fu
	return fu, nil
}

func (f *fakeFollowUpRepo) Update(_ context.Context, fu *model.FollowUp) (*model.FollowUp, error) {
	f.updated = fu
	return fu, nil
}

func (f *fakeFollowUpRepo) Complete(context.Context, uuid.UUID, uuid.UUID) (*model.FollowUp, error) {
	return nil, nil
}

func (f *fakeFollowUpRepo) Delete(context.Context, uuid.UUID, uuid.UUID) error { return nil }

type failingRefs struct{}

func (failingRefs) CheckOwned(context.Context, uuid.UUID, ...repository.Ref) error {
	return errors.New("conn reset")
}

func TestFollowUpHandler_ForeignReferences(t *testing.T) {
	userID, ownApp, ownContact := uuid.New(), uuid.New(), uuid.New()
	due := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)

	tests := []struct {
		name     string
		method   string
		path     string
		body     map[string]string
		wantCode int
		wantErr  string
	}{
		{
			name:     "create with another user's application",
			method:   http.MethodPost,
			path:     "/follow-ups",
			body:     map[string]string{"title": "Ping recruiter", "dueAt": due, "applicationId": uuid.NewString()},
			wantCode: http.StatusBadRequest,
			wantErr:  "applicationId not found",
		},
		{
			name:     "update with another user's contact",
			method:   http.MethodPut,
			path:     "/follow-ups/" + uuid.NewString(),
			body:     map[string]string{"title": "Ping recruiter", "dueAt": due, "applicationId": ownApp.String(), "contactId": uuid.NewString()},
			wantCode: http.StatusBadRequest,
			wantErr:  "contactId not found",
		},
		{
			name:     "own records",
			method:   http.MethodPost,
			path:     "/follow-ups",
			body:     map[string]string{"title": "Ping recruiter", "dueAt": due, "applicationId": ownApp.String(), "contactId": ownContact.String()},
			wantCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeFollowUpRepo{}
			h := NewFollowUpHandler(repo, ownedRefs{ownApp: true, ownContact: true})

			r := newTestRouter(userID)
			r.POST("/follow-ups", h.Create)
			r.PUT("/follow-ups/:id", h.Update)

			w := doJSON(r, tt.method, tt.path, tt.body)
			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantErr != "" {
				assert.JSONEq(t, `{"error":"`+tt.wantErr+`"}`, w.Body.String())
				assert.Nil(t, repo.created)
				assert.Nil(t, repo.updated)
				return
			}
			require.NotNil(t, repo.created)
			assert.Equal(t, &ownApp, repo.created.ApplicationID)
			assert.Equal(t, "email", repo.created.Channel)
		})
	}
}

func TestFollowUpHandler_Create_WhenOwnershipCheckFails_ShouldReturn500(t *testing.T) {
	repo := &fakeFollowUpRepo{}
	r := newTestRouter(uuid.New())
	r.POST("/follow-ups", NewFollowUpHandler(repo, failingRefs{}).Create)

	w := doJSON(r, http.MethodPost, "/follow-ups", map[string]string{
		"title":         "Ping recruiter",
		"dueAt":         time.Now().UTC().Format(time.RFC3339),
		"applicationId": uuid.NewString(),
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Nil(t, repo.created)
}
