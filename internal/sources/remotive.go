package sources

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/yourusername/applytrack-api/internal/model"
)

// RemotiveClient wraps the Remotive free remote jobs API.
// No API key required.
type RemotiveClient struct {
	baseURL string
	client  *http.Client
}

func NewRemotiveClient(client *http.Client) *RemotiveClient {
	return &RemotiveClient{baseURL: "https://remotive.com", client: client}
}

// ── Remotive API response types ──────────────────────

type remotiveResponse struct {
	JobCount int           `json:"job-count"`
	Jobs     []remotiveJob `json:"jobs"`
}

type remotiveJob struct {
	ID                        int      `json:"id"`
	Title                     string   `json:"title"`
	CompanyName               string   `json:"company_name"`
	Category                  string   `json:"category"`
	Tags                      []string `json:"tags"`
	PublicationDate           string   `json:"publication_date"`
	CandidateRequiredLocation string   `json:"candidate_required_location"`
	Salary                    string   `json:"salary"`
	URL                       string   `json:"url"`
	Description               string   `json:"description"`
}

func (c *RemotiveClient) Kind() string { return model.SourceRemotive }

func (c *RemotiveClient) Fetch(ctx context.Context, q Query) ([]model.ScannedPosting, error) {
	if q.Keywords == "" {
		return nil, ErrNoQuery
	}

	params := url.Values{}
	params.Set("search", q.Keywords)
	params.Set("limit", strconv.Itoa(q.limit()))

	log.Info().
		Str("search", q.Keywords).
		Int("limit", q.limit()).
		Msg("Searching Remotive API")

	var result remotiveResponse
	if err := getJSON(ctx, c.client, "Remotive", c.baseURL+"/api/remote-jobs?"+params.Encode(), nil, &result); err != nil {
		return nil, err
	}

	log.Info().
		Int("results", len(result.Jobs)).
		Str("search", q.Keywords).
		Msg("Remotive API search complete")

	return lo.Map(result.Jobs, func(j remotiveJob, _ int) model.ScannedPosting {
		salaryMin, salaryMax := parseSalaryText(j.Salary)
		return model.ScannedPosting{
			Source:      model.SourceRemotive,
			ExternalID:  strconv.Itoa(j.ID),
			Title:       strings.TrimSpace(j.Title),
			Company:     strings.TrimSpace(j.CompanyName),
			Location:    j.CandidateRequiredLocation,
			Remote:      true,
			URL:         j.URL,
			Description: cleanDescription(j.Description),
			SalaryMin:   salaryMin,
			SalaryMax:   salaryMax,
			Tags:        j.Tags,
			PostedAt:    parseTime([]string{"2006-01-02T15:04:05", "2006-01-02T15:04:05Z07:00"}, j.PublicationDate),
		}
	}), nil
}

var salaryNumber = regexp.MustCompile(`(\d[\d,.]*)\s*([kK])?`)

// parseSalaryText reads free-form ranges like "$90k - $120k" or "100,000-130,000 USD".
// Numbers below 1000 without a k suffix are ignored as hourly or noise.
func parseSalaryText(s string) (int, int) {
	var values []int
	for _, m := range salaryNumber.FindAllStringSubmatch(s, -1) {
		digits := strings.ReplaceAll(m[1], ",", "")
		f, err := strconv.ParseFloat(strings.TrimRight(digits, "."), 64)
		if err != nil {
			continue
		}
		if m[2] != "" {
			f *= 1000
		}
		if f < 1000 {
			continue
		}
		values = append(values, int(f))
	}
	switch len(values) {
	case 0:
		return 0, 0
	case 1:
		return values[0], values[0]
	}
	return min(values[0], values[1]), max(values[0], values[1])
}
