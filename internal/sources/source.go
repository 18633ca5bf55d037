package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/yourusername/applytrack-api/internal/config"
	"github.com/yourusername/applytrack-api/internal/model"
)

// ErrSourceDisabled is returned for a kind whose credentials are not configured
var ErrSourceDisabled = errors.New("job source not configured")

// ErrNoQuery is returned when neither the source row nor the profile yields search terms
var ErrNoQuery = errors.New("no search terms")

const defaultLimit = 50

// Source fetches postings from one job board or feed
type Source interface {
	Kind() string
	Fetch(ctx context.Context, q Query) ([]model.ScannedPosting, error)
}

// Query is what a scan asks of a source
type Query struct {
	Keywords   string
	Location   string
	FeedURL    string
	RemoteOnly bool
	Limit      int
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return defaultLimit
	}
	return q.Limit
}

// QueryFor builds the query for one of the user's sources. The source row's
// own query wins; otherwise the first target role, then the headline.
// Feeds are only filtered by an explicit query.
func QueryFor(src *model.UserJobSource, u *model.User) Query {
	q := Query{
		Keywords:   strings.TrimSpace(src.Query),
		Location:   strings.TrimSpace(src.Location),
		FeedURL:    strings.TrimSpace(src.FeedURL),
		RemoteOnly: u.RemoteOnly,
	}
	if q.Keywords == "" && src.Kind != model.SourceRSS {
		roles := lo.Filter(u.TargetRoles, func(r string, _ int) bool { return strings.TrimSpace(r) != "" })
		if len(roles) > 0 {
			q.Keywords = strings.TrimSpace(roles[0])
		} else {
			q.Keywords = strings.TrimSpace(u.Headline)
		}
	}
	if q.Location == "" && !u.RemoteOnly {
		if len(u.PreferredLocations) > 0 {
			q.Location = u.PreferredLocations[0]
		} else {
			q.Location = u.Location
		}
	}
	return q
}

// Registry hands out the configured sources, each behind a circuit breaker
type Registry struct {
	sources  map[string]Source
	breakers *breakerSet
}

// NewRegistry builds every source whose credentials are present
func NewRegistry(cfg *config.Config) *Registry {
	client := &http.Client{Timeout: 20 * time.Second}
	r := &Registry{sources: map[string]Source{}, breakers: newBreakerSet()}

	r.Register(NewRemotiveClient(client))
	r.Register(NewRSSSource(client))
	if cfg.AdzunaAppID != "" && cfg.AdzunaAppKey != "" {
		r.Register(NewAdzunaClient(client, cfg.AdzunaAppID, cfg.AdzunaAppKey, cfg.AdzunaCountry))
	}
	if cfg.RapidAPIKey != "" {
		r.Register(NewJSearchClient(client, cfg.RapidAPIKey))
	}
	return r
}

// NewEmptyRegistry returns a registry with nothing registered
func NewEmptyRegistry() *Registry {
	return &Registry{sources: map[string]Source{}, breakers: newBreakerSet()}
}

func (r *Registry) Register(s Source) {
	r.sources[s.Kind()] = s
}

// For returns the source for a kind wrapped in its breaker
func (r *Registry) For(kind string) (Source, error) {
	s, ok := r.sources[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceDisabled, kind)
	}
	return &guarded{source: s, breakers: r.breakers}, nil
}

// Kinds lists the registered source kinds
func (r *Registry) Kinds() []string {
	return lo.Keys(r.sources)
}

// getJSON issues a GET and decodes a 200 JSON body into v
func getJSON(ctx context.Context, client *http.Client, name, reqURL string, headers map[string]string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", name, err)
	}
	for k, val := range headers {
		req.Header.Set(k, val)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s API: %w", name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s API returned %d: %s", name, resp.StatusCode, string(body[:min(len(body), 500)]))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parsing %s response: %w", name, err)
	}
	return nil
}

func parseTime(layouts []string, s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func looksRemote(parts ...string) bool {
	return lo.ContainsBy(parts, func(p string) bool {
		p = strings.ToLower(p)
		return strings.Contains(p, "remote") || strings.Contains(p, "anywhere") || strings.Contains(p, "worldwide")
	})
}
