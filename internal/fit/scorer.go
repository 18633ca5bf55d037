package fit

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/yourusername/applytrack-api/internal/model"
)

// LLMScorer asks a language model for a fit estimate
type LLMScorer interface {
	ScoreFit(ctx context.Context, p Profile, job Posting) (*model.FitResult, error)
}

const (
	ruleWeight = 0.4
	llmWeight  = 0.6
	cacheTTL   = 30 * time.Minute
)

// Scorer blends the rule score with an optional model score and caches results
type Scorer struct {
	llm   LLMScorer
	cache *cache.Cache
}

// NewScorer returns a scorer; llm may be nil, in which case only rules apply
func NewScorer(llm LLMScorer) *Scorer {
	return &Scorer{
		llm:   llm,
		cache: cache.New(cacheTTL, 2*cacheTTL),
	}
}

// Score returns the fit of a posting for a profile. key scopes the cache entry
// (typically user and opportunity); a changed profile or posting misses the cache.
func (s *Scorer) Score(ctx context.Context, key string, p Profile, job Posting) model.FitResult {
	cacheKey := key + ":" + fingerprint(p, job)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(model.FitResult)
	}

	result, final := s.score(ctx, key, p, job)
	if final {
		s.cache.SetDefault(cacheKey, result)
	}
	return result
}

// score reports final=false when the model was configured but failed, so the
// rule-only fallback is not cached in place of a later model answer.
func (s *Scorer) score(ctx context.Context, key string, p Profile, job Posting) (result model.FitResult, final bool) {
	rule := RuleScore(p, job)
	if s.llm == nil {
		rule.Summary = ruleSummary(rule)
		return rule, true
	}

	llmResult, err := s.llm.ScoreFit(ctx, p, job)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("LLM fit scoring failed, using rule score")
		rule.Summary = ruleSummary(rule)
		return rule, false
	}

	return Combine(rule, *llmResult), true
}

// Combine merges rule and model results: score is round(0.4*rule + 0.6*llm)
func Combine(rule, llm model.FitResult) model.FitResult {
	blended := math.Round(ruleWeight*float64(rule.Score) + llmWeight*float64(Clamp(llm.Score)))

	missing := llm.MissingSkills
	if len(missing) == 0 {
		missing = rule.MissingSkills
	}
	summary := strings.TrimSpace(llm.Summary)
	if summary == "" {
		summary = ruleSummary(rule)
	}

	return model.FitResult{
		Score:         Clamp(int(blended)),
		Summary:       summary,
		MatchedSkills: lo.Uniq(append(append([]string{}, rule.MatchedSkills...), llm.MatchedSkills...)),
		MissingSkills: lo.Uniq(append([]string{}, missing...)),
	}
}

func ruleSummary(r model.FitResult) string {
	switch {
	case len(r.MatchedSkills) == 0:
		return "No overlap between your skills and this posting was found."
	case len(r.MissingSkills) == 0:
		return fmt.Sprintf("Matches %d of your skills.", len(r.MatchedSkills))
	default:
		return fmt.Sprintf("Matches %d of your skills; the posting also mentions %s.",
			len(r.MatchedSkills), strings.Join(lo.Slice(r.MissingSkills, 0, 3), ", "))
	}
}

// fingerprint hashes the inputs that influence a score
func fingerprint(p Profile, job Posting) string {
	h := sha1.New()
	fmt.Fprintf(h, "%v|%v|%s|%s|%v|%v|%d|%d|%d|%d|",
		p.TargetRoles, p.Skills, p.Headline, p.Location, p.PreferredLocations,
		p.RemoteOnly, p.SalaryMin, p.SalaryMax, p.YearsExperience, len(p.ResumeText))
	fmt.Fprintf(h, "%s|%s|%s|%v|%v|%d|%d|%s",
		job.Title, job.Company, job.Location, job.Remote, job.Skills,
		job.SalaryMin, job.SalaryMax, job.Description)
	return hex.EncodeToString(h.Sum(nil))
}
