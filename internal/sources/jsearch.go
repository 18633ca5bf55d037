package sources

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/yourusername/applytrack-api/internal/model"
)

const jsearchHost = "jsearch.p.rapidapi.com"

// JSearchClient wraps the JSearch API on RapidAPI (Google for Jobs aggregate)
type JSearchClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewJSearchClient(client *http.Client, apiKey string) *JSearchClient {
	return &JSearchClient{baseURL: "https://" + jsearchHost, apiKey: apiKey, client: client}
}

// ── JSearch API response types ────────────────────────

type jsearchResponse struct {
	Status string       `json:"status"`
	Data   []jsearchJob `json:"data"`
}

type jsearchJob struct {
	JobID             string   `json:"job_id"`
	JobTitle          string   `json:"job_title"`
	EmployerName      string   `json:"employer_name"`
	JobCity           string   `json:"job_city"`
	JobState          string   `json:"job_state"`
	JobCountry        string   `json:"job_country"`
	JobIsRemote       bool     `json:"job_is_remote"`
	JobDescription    string   `json:"job_description"`
	JobApplyLink      string   `json:"job_apply_link"`
	JobMinSalary      *float64 `json:"job_min_salary"`
	JobMaxSalary      *float64 `json:"job_max_salary"`
	JobSalaryPeriod   string   `json:"job_salary_period"`
	JobPostedAt       string   `json:"job_posted_at_datetime_utc"`
	JobRequiredSkills []string `json:"job_required_skills"`
}

func (c *JSearchClient) Kind() string { return model.SourceJSearch }

func (c *JSearchClient) Fetch(ctx context.Context, q Query) ([]model.ScannedPosting, error) {
	if q.Keywords == "" {
		return nil, ErrNoQuery
	}

	query := q.Keywords
	if q.RemoteOnly {
		query += " remote"
	} else if q.Location != "" {
		query += " in " + q.Location
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("page", "1")
	params.Set("num_pages", "1")
	params.Set("date_posted", "week")
	if q.RemoteOnly {
		params.Set("remote_jobs_only", "true")
	}

	log.Info().
		Str("query", query).
		Msg("Searching JSearch API")

	var result jsearchResponse
	headers := map[string]string{"x-rapidapi-host": jsearchHost, "x-rapidapi-key": c.apiKey}
	if err := getJSON(ctx, c.client, "JSearch", c.baseURL+"/search?"+params.Encode(), headers, &result); err != nil {
		return nil, err
	}

	log.Info().
		Int("results", len(result.Data)).
		Str("query", query).
		Msg("JSearch API returned results")

	return lo.Map(result.Data, func(j jsearchJob, _ int) model.ScannedPosting {
		location := strings.Join(lo.Compact([]string{j.JobCity, j.JobState, j.JobCountry}), ", ")
		return model.ScannedPosting{
			Source:      model.SourceJSearch,
			ExternalID:  j.JobID,
			Title:       strings.TrimSpace(j.JobTitle),
			Company:     strings.TrimSpace(j.EmployerName),
			Location:    location,
			Remote:      j.JobIsRemote,
			URL:         j.JobApplyLink,
			Description: cleanDescription(j.JobDescription),
			SalaryMin:   annualSalary(j.JobMinSalary, j.JobSalaryPeriod),
			SalaryMax:   annualSalary(j.JobMaxSalary, j.JobSalaryPeriod),
			Tags:        j.JobRequiredSkills,
			PostedAt:    parseTime([]string{"2006-01-02T15:04:05.000Z", "2006-01-02T15:04:05Z07:00"}, j.JobPostedAt),
		}
	}), nil
}

// annualSalary normalizes JSearch pay to a yearly figure
func annualSalary(v *float64, period string) int {
	if v == nil {
		return 0
	}
	switch strings.ToUpper(period) {
	case "HOUR":
		return int(*v * 2080)
	case "MONTH":
		return int(*v * 12)
	}
	return int(*v)
}
