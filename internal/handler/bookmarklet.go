package handler

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/applytrack-api/internal/model"
	"github.com/yourusername/applytrack-api/internal/sources"
)

const minSelectionChars = 200

var titleSeparators = strings.NewReplacer(" | ", "\x00", " — ", "\x00", " – ", "\x00", " - ", "\x00")

type postingParser interface {
	ParsePosting(ctx context.Context, pageURL, pageTitle, text string) (*model.ParsedPosting, error)
}

// BookmarkletHandler turns pages captured by the browser bookmarklet into opportunities
type BookmarkletHandler struct {
	opportunities *OpportunityHandler
	parser        postingParser
}

func NewBookmarkletHandler(opportunities *OpportunityHandler, parser postingParser) *BookmarkletHandler {
	return &BookmarkletHandler{opportunities: opportunities, parser: parser}
}

// Capture handles POST /bookmarklet/capture?token=...
func (h *BookmarkletHandler) Capture(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid bookmarklet token"})
		return
	}

	var req struct {
		URL       string `json:"url" binding:"required,url"`
		Title     string `json:"title"`
		Text      string `json:"text"`
		Selection string `json:"selection"`
	}
	if !bindJSON(c, &req) {
		return
	}

	// A deliberate selection of the posting beats the whole page
	text := req.Text
	if len(strings.TrimSpace(req.Selection)) >= minSelectionChars {
		text = req.Selection
	}

	parsed, err := h.parser.ParsePosting(c.Request.Context(), req.URL, req.Title, text)
	if err != nil || parsed == nil || strings.TrimSpace(parsed.Title) == "" {
		if err != nil {
			log.Warn().Err(err).Str("url", req.URL).Msg("AI parse failed, using page heuristics")
		}
		parsed = heuristicPosting(req.URL, req.Title, text)
	}

	description := parsed.Description
	if strings.TrimSpace(description) == "" {
		description = text
	}

	posting := &model.ScannedPosting{
		Source:      model.SourceBookmarklet,
		ExternalID:  urlExternalID(req.URL),
		Title:       strings.TrimSpace(parsed.Title),
		Company:     strings.TrimSpace(parsed.Company),
		Location:    strings.TrimSpace(parsed.Location),
		Remote:      parsed.Remote,
		URL:         req.URL,
		Description: sources.TruncateUTF8(strings.TrimSpace(description), sources.MaxDescriptionBytes),
		SalaryMin:   parsed.SalaryMin,
		SalaryMax:   parsed.SalaryMax,
		Tags:        parsed.Skills,
	}

	opp, err := h.opportunities.storeAndScore(c.Request.Context(), userID, posting)
	if err != nil {
		log.Error().Err(err).Msg("Failed to store captured posting")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save posting"})
		return
	}

	log.Info().
		Str("userId", userID.String()).
		Str("opportunityId", opp.ID.String()).
		Str("url", req.URL).
		Msg("Bookmarklet capture saved")

	c.JSON(http.StatusOK, opp)
}

// urlExternalID is the dedup key for postings identified only by their URL.
// Fragments and trailing slashes do not create new postings.
func urlExternalID(raw string) string {
	normalized := strings.TrimSpace(raw)
	if u, err := url.Parse(normalized); err == nil {
		u.Fragment = ""
		u.Host = strings.ToLower(u.Host)
		u.Path = strings.TrimRight(u.Path, "/")
		normalized = u.String()
	}
	sum := sha1.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// heuristicPosting guesses title and company from a page title such as
// "Senior Go Engineer - Acme | LinkedIn" or "Backend Engineer at Acme".
func heuristicPosting(pageURL, pageTitle, text string) *model.ParsedPosting {
	title := strings.TrimSpace(pageTitle)
	company := ""

	if parts := strings.Split(titleSeparators.Replace(title), "\x00"); len(parts) > 1 {
		title = strings.TrimSpace(parts[0])
		company = strings.TrimSpace(parts[1])
	}
	if company == "" {
		if i := strings.LastIndex(title, " at "); i > 0 {
			company = strings.TrimSpace(title[i+4:])
			title = strings.TrimSpace(title[:i])
		}
	}

	if company == "" {
		if u, err := url.Parse(pageURL); err == nil {
			company = strings.TrimPrefix(u.Hostname(), "www.")
		}
	}
	if title == "" {
		title = "Untitled posting"
	}

	lower := strings.ToLower(pageTitle + " " + text)
	return &model.ParsedPosting{
		Title:       title,
		Company:     company,
		Remote:      strings.Contains(lower, "remote"),
		Description: sources.StripHTML(text),
	}
}
