package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/yourusername/applytrack-api/internal/model"
)

// AdzunaClient wraps the Adzuna job search API.
// Requires app_id and app_key from developer.adzuna.com (free tier available).
type AdzunaClient struct {
	baseURL string
	appID   string
	appKey  string
	country string
	client  *http.Client
}

func NewAdzunaClient(client *http.Client, appID, appKey, country string) *AdzunaClient {
	if country == "" {
		country = "us"
	}
	return &AdzunaClient{
		baseURL: "https://api.adzuna.com",
		appID:   appID,
		appKey:  appKey,
		country: strings.ToLower(country),
		client:  client,
	}
}

// ── Adzuna API response types ────────────────────────

type adzunaResponse struct {
	Results []adzunaJob `json:"results"`
	Count   int         `json:"count"`
}

type adzunaJob struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	SalaryMin   float64 `json:"salary_min"`
	SalaryMax   float64 `json:"salary_max"`
	RedirectURL string  `json:"redirect_url"`
	Created     string  `json:"created"`
	Company     struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string   `json:"display_name"`
		Area        []string `json:"area"`
	} `json:"location"`
}

func (c *AdzunaClient) Kind() string { return model.SourceAdzuna }

func (c *AdzunaClient) Fetch(ctx context.Context, q Query) ([]model.ScannedPosting, error) {
	if q.Keywords == "" {
		return nil, ErrNoQuery
	}

	params := url.Values{}
	params.Set("app_id", c.appID)
	params.Set("app_key", c.appKey)
	params.Set("results_per_page", strconv.Itoa(min(q.limit(), 50)))
	params.Set("sort_by", "date")
	params.Set("max_days_old", "14")
	params.Set("content-type", "application/json")

	what := q.Keywords
	if q.RemoteOnly {
		what += " remote"
	}
	params.Set("what", what)
	if q.Location != "" && !q.RemoteOnly {
		params.Set("where", q.Location)
	}

	reqURL := fmt.Sprintf("%s/v1/api/jobs/%s/search/1?%s", c.baseURL, c.country, params.Encode())

	log.Info().
		Str("keywords", what).
		Str("location", q.Location).
		Str("country", c.country).
		Msg("Searching Adzuna API")

	var result adzunaResponse
	if err := getJSON(ctx, c.client, "Adzuna", reqURL, nil, &result); err != nil {
		return nil, err
	}

	log.Info().
		Int("results", len(result.Results)).
		Int("total", result.Count).
		Msg("Adzuna API search complete")

	return lo.Map(result.Results, func(j adzunaJob, _ int) model.ScannedPosting {
		return model.ScannedPosting{
			Source:      model.SourceAdzuna,
			ExternalID:  j.ID,
			Title:       strings.TrimSpace(StripHTML(j.Title)),
			Company:     strings.TrimSpace(j.Company.DisplayName),
			Location:    j.Location.DisplayName,
			Remote:      looksRemote(j.Title, j.Location.DisplayName, j.Description),
			URL:         j.RedirectURL,
			Description: cleanDescription(j.Description),
			SalaryMin:   int(j.SalaryMin),
			SalaryMax:   int(j.SalaryMax),
			PostedAt:    parseTime([]string{"2006-01-02T15:04:05Z07:00", "2006-01-02T15:04:05Z"}, j.Created),
		}
	}), nil
}
