package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/applytrack-api/internal/model"
)

const linkedInExport = `Notes:
"When exporting your connection data, you may notice that some of the email addresses are missing."

First Name,Last Name,URL,Email Address,Company,Position,Connected On
Jane,Doe,https://www.linkedin.com/in/janedoe,jane@acme.com,Acme,CTO,01 Jan 2024
John,Roe,https://www.linkedin.com/in/johnroe,,Globex,Recruiter,02 Feb 2024
,,https://www.linkedin.com/in/anon,,,,03 Mar 2024
`

func TestParseContactsCSV_LinkedInExport(t *testing.T) {
	contacts, parseErrors, err := parseContactsCSV(strings.NewReader(linkedInExport))
	require.NoError(t, err)

	assert.Equal(t, 1, parseErrors)
	require.Len(t, contacts, 2)
	assert.Equal(t, model.Contact{
		Name:         "Jane Doe",
		Email:        "jane@acme.com",
		Company:      "Acme",
		Title:        "CTO",
		LinkedInURL:  "https://www.linkedin.com/in/janedoe",
		Relationship: "linkedin",
	}, contacts[0])
	assert.Equal(t, "Recruiter", contacts[1].Title)
	assert.Empty(t, contacts[1].Email)
}

func TestParseContactsCSV_WithBOMAndNameColumn(t *testing.T) {
	csv := "\xef\xbb\xbfName,Email,Company,Title\nAda Lovelace,ada@engine.org,Analytical,Engineer\n"

	contacts, parseErrors, err := parseContactsCSV(strings.NewReader(csv))
	require.NoError(t, err)

	assert.Zero(t, parseErrors)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Ada Lovelace", contacts[0].Name)
	assert.Equal(t, "ada@engine.org", contacts[0].Email)
	assert.Equal(t, "Engineer", contacts[0].Title)
}

func TestParseContactsCSV_WithoutNameHeader_ShouldFail(t *testing.T) {
	_, _, err := parseContactsCSV(strings.NewReader("Email,Company\na@b.c,Acme\n"))
	assert.ErrorIs(t, err, errNoContactHeader)
}

type fakeContactRepo struct {
	bulk []model.Contact
}

func (f *fakeContactRepo) List(context.Context, uuid.UUID, string) ([]model.Contact, error) {
	return nil, nil
}

func (f *fakeContactRepo) Create(_ context.Context, c *model.Contact) (*model.Contact, error) {
	return c, nil
}

func (f *fakeContactRepo) Update(_ context.Context, c *model.Contact) (*model.Contact, error) {
	return c, nil
}

func (f *fakeContactRepo) Delete(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (f *fakeContactRepo) BulkCreate(_ context.Context, _ uuid.UUID, contacts []model.Contact) (int, int, error) {
	f.bulk = contacts
	return len(contacts) - 1, 1, nil
}

func TestContactHandler_Import(t *testing.T) {
	userID := uuid.New()
	repo := &fakeContactRepo{}

	r := newTestRouter(userID)
	r.POST("/contacts/import", NewContactHandler(repo, ownedRefs{}).Import)

	upload := func(name, content string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/contacts/import", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := upload("Connections.csv", linkedInExport)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"imported":1,"skipped":1,"parseErrors":1,"total":3}`, w.Body.String())
	assert.Len(t, repo.bulk, 2)

	w = upload("contacts.xlsx", linkedInExport)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = upload("empty.csv", "First Name,Last Name\n")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"No valid contacts found in CSV"}`, w.Body.String())
}

func TestContactHandler_Create_WhenApplicationIsForeign_ShouldReject(t *testing.T) {
	userID, ownApp := uuid.New(), uuid.New()
	h := NewContactHandler(&fakeContactRepo{}, ownedRefs{ownApp: true})

	r := newTestRouter(userID)
	r.POST("/contacts", h.Create)

	w := doJSON(r, http.MethodPost, "/contacts", map[string]string{"name": "Jane", "applicationId": uuid.NewString()})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"applicationId not found"}`, w.Body.String())

	w = doJSON(r, http.MethodPost, "/contacts", map[string]string{"name": "Jane", "applicationId": ownApp.String()})
	assert.Equal(t, http.StatusOK, w.Code)
}
