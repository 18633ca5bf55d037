package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/applytrack-api/internal/middleware"
	"github.com/yourusername/applytrack-api/internal/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := RegisterValidators(); err != nil {
		panic(err)
	}
}

// newTestRouter returns an engine whose requests are already authenticated as userID
func newTestRouter(userID uuid.UUID) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		middleware.SetUserID(c, userID)
		c.Next()
	})
	return r
}

// ownedRefs treats the listed ids as the caller's records; any other id is foreign
type ownedRefs map[uuid.UUID]bool

func (o ownedRefs) CheckOwned(_ context.Context, _ uuid.UUID, refs ...repository.Ref) error {
	for _, ref := range refs {
		if ref.ID != nil && !o[*ref.ID] {
			return &repository.RefError{Field: ref.Field}
		}
	}
	return nil
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestBindJSON_WhenRequiredFieldMissing_ShouldNameIt(t *testing.T) {
	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var req applicationRequest
		if !bindJSON(c, &req) {
			return
		}
		c.Status(http.StatusOK)
	})

	w := doJSON(r, http.MethodPost, "/", map[string]string{"position": "Engineer"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"company is required"}`, w.Body.String())

	w = doJSON(r, http.MethodPost, "/", map[string]string{"company": "Acme", "position": "Engineer", "jobUrl": "not a url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"jobUrl must be a valid URL"}`, w.Body.String())

	w = doJSON(r, http.MethodPost, "/", map[string]string{"company": "Acme", "position": "Engineer", "status": "hired"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid status"}`, w.Body.String())
}

func TestBindJSON_WhenBodyIsNotJSON_ShouldAnswerGenericMessage(t *testing.T) {
	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var req applicationRequest
		if bindJSON(c, &req) {
			c.Status(http.StatusOK)
		}
	})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid request body"}`, w.Body.String())
}

func TestPageParams(t *testing.T) {
	tests := []struct {
		query         string
		limit, offset int
	}{
		{"", defaultPageSize, 0},
		{"?limit=10&offset=20", 10, 20},
		{"?limit=0", defaultPageSize, 0},
		{"?limit=-5&offset=-1", defaultPageSize, 0},
		{"?limit=5000", maxPageSize, 0},
		{"?limit=abc", defaultPageSize, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)

			limit, offset := pageParams(c)
			assert.Equal(t, tt.limit, limit)
			assert.Equal(t, tt.offset, offset)
		})
	}
}

func TestParamID_WhenMalformed_ShouldAnswer400(t *testing.T) {
	r := gin.New()
	r.GET("/things/:id", func(c *gin.Context) {
		if _, ok := paramID(c, "id", "thing"); ok {
			c.Status(http.StatusOK)
		}
	})

	w := doJSON(r, http.MethodGet, "/things/nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid thing ID"}`, w.Body.String())

	w = doJSON(r, http.MethodGet, "/things/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetUserID_WhenMissing_HandlersAnswer401(t *testing.T) {
	r := gin.New()
	h := NewAlertHandler(nil)
	r.GET("/alerts", h.List)

	w := doJSON(r, http.MethodGet, "/alerts", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Not authenticated"}`, w.Body.String())
}
