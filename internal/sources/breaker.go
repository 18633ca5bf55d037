package sources

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"github.com/yourusername/applytrack-api/internal/metrics"
	"github.com/yourusername/applytrack-api/internal/model"
)

const (
	breakerFailures = 5
	breakerTimeout  = time.Minute
)

// breakerSet keeps one circuit breaker per upstream. API sources share a
// breaker per kind; feeds get one per host so a dead blog can't block others.
type breakerSet struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	timeout  time.Duration
}

func newBreakerSet() *breakerSet {
	return &breakerSet{breakers: map[string]*gobreaker.CircuitBreaker{}, timeout: breakerTimeout}
}

func (b *breakerSet) get(name string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[name]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     b.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		IsSuccessful: upstreamHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("source", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Job source circuit breaker changed state")
			metrics.SourceBreakerTransitions.WithLabelValues(name, to.String()).Inc()
		},
	})
	b.breakers[name] = cb
	return cb
}

// upstreamHealthy reports whether err says nothing about the upstream itself.
// Missing search terms or feed URLs belong to one user's setup, and a
// cancelled context belongs to the caller.
func upstreamHealthy(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, ErrNoQuery),
		errors.Is(err, errNoFeedURL),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return true
	default:
		return false
	}
}

// guarded runs a source behind its breaker
type guarded struct {
	source   Source
	breakers *breakerSet
}

func (g *guarded) Kind() string { return g.source.Kind() }

func (g *guarded) Fetch(ctx context.Context, q Query) ([]model.ScannedPosting, error) {
	name := g.source.Kind()
	if name == model.SourceRSS {
		if u, err := url.Parse(q.FeedURL); err == nil && u.Host != "" {
			name += ":" + u.Host
		}
	}

	result, err := g.breakers.get(name).Execute(func() (interface{}, error) {
		return g.source.Fetch(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return result.([]model.ScannedPosting), nil
}
