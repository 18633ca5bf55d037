package handler

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/applytrack-api/internal/model"
	"github.com/yourusername/applytrack-api/internal/repository"
)

const (
	maxContactsCSVBytes = 5 << 20
	// LinkedIn puts a few "Notes:" lines above the real header
	headerScanRows = 10
)

var errNoContactHeader = errors.New("no header row with a name column found")

type contactRepository interface {
	List(ctx context.Context, userID uuid.UUID, search string) ([]model.Contact, error)
	Create(ctx context.Context, c *model.Contact) (*model.Contact, error)
	Update(ctx context.Context, c *model.Contact) (*model.Contact, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	BulkCreate(ctx context.Context, userID uuid.UUID, contacts []model.Contact) (inserted int, skipped int, err error)
}

type ContactHandler struct {
	contactRepo contactRepository
	refs        refChecker
}

func NewContactHandler(contactRepo contactRepository, refs refChecker) *ContactHandler {
	return &ContactHandler{contactRepo: contactRepo, refs: refs}
}

type contactRequest struct {
	ApplicationID   *uuid.UUID `json:"applicationId"`
	Name            string     `json:"name" binding:"required,max=200"`
	Email           string     `json:"email" binding:"omitempty,email"`
	Phone           string     `json:"phone" binding:"max=50"`
	Company         string     `json:"company" binding:"max=200"`
	Title           string     `json:"title" binding:"max=200"`
	LinkedInURL     string     `json:"linkedinUrl" binding:"omitempty,url"`
	Relationship    string     `json:"relationship" binding:"max=100"`
	Notes           string     `json:"notes"`
	LastContactedAt *time.Time `json:"lastContactedAt"`
}

func (r *contactRequest) toModel(userID uuid.UUID) *model.Contact {
	return &model.Contact{
		UserID:          userID,
		ApplicationID:   r.ApplicationID,
		Name:            strings.TrimSpace(r.Name),
		Email:           strings.TrimSpace(r.Email),
		Phone:           strings.TrimSpace(r.Phone),
		Company:         strings.TrimSpace(r.Company),
		Title:           strings.TrimSpace(r.Title),
		LinkedInURL:     strings.TrimSpace(r.LinkedInURL),
		Relationship:    r.Relationship,
		Notes:           r.Notes,
		LastContactedAt: r.LastContactedAt,
	}
}

// List handles GET /contacts
func (h *ContactHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	search := strings.TrimSpace(c.Query("search"))
	contacts, err := h.contactRepo.List(c.Request.Context(), userID, search)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list contacts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list contacts"})
		return
	}

	if contacts == nil {
		contacts = []model.Contact{}
	}

	c.JSON(http.StatusOK, contacts)
}

// Create handles POST /contacts
func (h *ContactHandler) Create(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req contactRequest
	if !bindJSON(c, &req) {
		return
	}
	if !checkRefs(c, h.refs, userID, repository.Ref{Field: "applicationId", Kind: repository.RefApplication, ID: req.ApplicationID}) {
		return
	}

	created, err := h.contactRepo.Create(c.Request.Context(), req.toModel(userID))
	if err != nil {
		log.Error().Err(err).Msg("Failed to create contact")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create contact"})
		return
	}

	c.JSON(http.StatusOK, created)
}

// Update handles PUT /contacts/:id
func (h *ContactHandler) Update(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	contactID, ok := paramID(c, "id", "contact")
	if !ok {
		return
	}

	var req contactRequest
	if !bindJSON(c, &req) {
		return
	}
	if !checkRefs(c, h.refs, userID, repository.Ref{Field: "applicationId", Kind: repository.RefApplication, ID: req.ApplicationID}) {
		return
	}

	contact := req.toModel(userID)
	contact.ID = contactID

	updated, err := h.contactRepo.Update(c.Request.Context(), contact)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to update contact")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update contact"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /contacts/:id
func (h *ContactHandler) Delete(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	contactID, ok := paramID(c, "id", "contact")
	if !ok {
		return
	}

	err = h.contactRepo.Delete(c.Request.Context(), contactID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete contact")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete contact"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// Import handles POST /contacts/import (multipart "file", LinkedIn Connections.csv
// or any CSV with a Name or First Name/Last Name header)
func (h *ContactHandler) Import(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only CSV files are supported"})
		return
	}
	if header.Size > maxContactsCSVBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large. Maximum size is 5MB."})
		return
	}

	contacts, parseErrors, err := parseContactsCSV(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid CSV: " + err.Error()})
		return
	}
	if len(contacts) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No valid contacts found in CSV"})
		return
	}

	imported, skipped, err := h.contactRepo.BulkCreate(c.Request.Context(), userID, contacts)
	if err != nil {
		log.Error().Err(err).Msg("Failed to bulk import contacts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to import contacts"})
		return
	}

	log.Info().
		Str("userId", userID.String()).
		Int("imported", imported).
		Int("skipped", skipped).
		Int("parseErrors", parseErrors).
		Str("filename", header.Filename).
		Msg("Contact CSV import completed")

	c.JSON(http.StatusOK, gin.H{
		"imported":    imported,
		"skipped":     skipped,
		"parseErrors": parseErrors,
		"total":       len(contacts) + parseErrors,
	})
}

// parseContactsCSV reads contacts from a CSV export. The header is the first
// row within headerScanRows that names a name column; rows above it are ignored.
func parseContactsCSV(r io.Reader) ([]model.Contact, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var colMap map[string]int
	for i := 0; i < headerScanRows && colMap == nil; i++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		if cols := headerColumns(record); cols != nil {
			colMap = cols
		}
	}
	if colMap == nil {
		return nil, 0, errNoContactHeader
	}

	var contacts []model.Contact
	parseErrors := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			parseErrors++
			continue
		}

		name := getCSVField(record, colMap, "name")
		if name == "" {
			name = strings.TrimSpace(getCSVField(record, colMap, "first name") + " " + getCSVField(record, colMap, "last name"))
		}
		if name == "" {
			parseErrors++
			continue
		}

		contacts = append(contacts, model.Contact{
			Name:         name,
			Email:        getCSVField(record, colMap, "email address", "email"),
			Company:      getCSVField(record, colMap, "company"),
			Title:        getCSVField(record, colMap, "position", "title"),
			LinkedInURL:  getCSVField(record, colMap, "url", "linkedin url", "profile url"),
			Relationship: "linkedin",
		})
	}
	return contacts, parseErrors, nil
}

// headerColumns maps lower-cased column names to indices when the record looks
// like a header row
func headerColumns(record []string) map[string]int {
	cols := make(map[string]int, len(record))
	for i, h := range record {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\xef\xbb\xbf")))
		cols[h] = i
	}
	_, hasName := cols["name"]
	_, hasFirst := cols["first name"]
	_, hasLast := cols["last name"]
	if hasName || (hasFirst && hasLast) {
		return cols
	}
	return nil
}

// getCSVField returns the first non-empty value among the given columns
func getCSVField(record []string, colMap map[string]int, columns ...string) string {
	for _, column := range columns {
		idx, ok := colMap[column]
		if !ok || idx >= len(record) {
			continue
		}
		if v := strings.TrimSpace(record[idx]); v != "" {
			return v
		}
	}
	return ""
}
