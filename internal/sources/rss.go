package sources

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/yourusername/applytrack-api/internal/model"
)

var errNoFeedURL = errors.New("rss source has no feed url")

// RSSSource reads job postings from an RSS or Atom feed
type RSSSource struct {
	parser *gofeed.Parser
}

func NewRSSSource(client *http.Client) *RSSSource {
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = "applytrack/1.0"
	return &RSSSource{parser: parser}
}

func (s *RSSSource) Kind() string { return model.SourceRSS }

// Fetch reads the feed and keeps items matching the keywords, when any are set
func (s *RSSSource) Fetch(ctx context.Context, q Query) ([]model.ScannedPosting, error) {
	if q.FeedURL == "" {
		return nil, errNoFeedURL
	}

	feed, err := s.parser.ParseURLWithContext(q.FeedURL, ctx)
	if err != nil {
		return nil, err
	}

	terms := strings.Fields(strings.ToLower(q.Keywords))
	postings := lo.FilterMap(feed.Items, func(item *gofeed.Item, _ int) (model.ScannedPosting, bool) {
		p := feedItemPosting(feed, item)
		return p, matchesTerms(p, terms)
	})
	if len(postings) > q.limit() {
		postings = postings[:q.limit()]
	}

	log.Info().
		Str("feed", q.FeedURL).
		Int("items", len(feed.Items)).
		Int("matched", len(postings)).
		Msg("Feed read")

	return postings, nil
}

func feedItemPosting(feed *gofeed.Feed, item *gofeed.Item) model.ScannedPosting {
	description := item.Content
	if description == "" {
		description = item.Description
	}

	company := ""
	if item.Author != nil {
		company = item.Author.Name
	}
	title := strings.TrimSpace(item.Title)
	// Boards like We Work Remotely title items "Company: Role"
	if before, after, ok := strings.Cut(title, ": "); ok && company == "" {
		company, title = before, after
	}
	if company == "" {
		company = feed.Title
	}

	p := model.ScannedPosting{
		Source:      model.SourceRSS,
		ExternalID:  itemID(item),
		Title:       title,
		Company:     strings.TrimSpace(company),
		URL:         item.Link,
		Description: cleanDescription(description),
		Tags:        item.Categories,
		PostedAt:    item.PublishedParsed,
	}
	if p.PostedAt == nil {
		p.PostedAt = item.UpdatedParsed
	}
	p.Remote = looksRemote(p.Title, strings.Join(item.Categories, " "), p.Description[:min(len(p.Description), 400)])
	return p
}

// itemID prefers the feed's guid, falling back to a hash of the link
func itemID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	sum := sha1.Sum([]byte(item.Link + "|" + item.Title))
	return hex.EncodeToString(sum[:])
}

func matchesTerms(p model.ScannedPosting, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	haystack := strings.ToLower(p.Title + " " + strings.Join(p.Tags, " ") + " " + p.Description)
	return lo.SomeBy(terms, func(t string) bool { return strings.Contains(haystack, t) })
}
