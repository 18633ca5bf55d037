package fit

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/yourusername/applytrack-api/internal/model"
)

// Profile is the candidate side of a fit comparison
type Profile struct {
	TargetRoles        []string
	Skills             []string
	Headline           string
	Location           string
	PreferredLocations []string
	RemoteOnly         bool
	SalaryMin          int
	SalaryMax          int
	YearsExperience    int
	ResumeText         string
}

// Posting is the job side of a fit comparison
type Posting struct {
	Title       string
	Company     string
	Location    string
	Remote      bool
	Description string
	Skills      []string
	SalaryMin   int
	SalaryMax   int
}

// ProfileFor builds a Profile from a user, their skills and primary résumé text
func ProfileFor(u *model.User, skills []model.Skill, resumeText string) Profile {
	return Profile{
		TargetRoles:        u.TargetRoles,
		Skills:             lo.Map(skills, func(s model.Skill, _ int) string { return s.Name }),
		Headline:           u.Headline,
		Location:           u.Location,
		PreferredLocations: u.PreferredLocations,
		RemoteOnly:         u.RemoteOnly,
		SalaryMin:          u.SalaryMin,
		SalaryMax:          u.SalaryMax,
		YearsExperience:    u.YearsExperience,
		ResumeText:         resumeText,
	}
}

// PostingFrom builds a Posting from a stored opportunity
func PostingFrom(o *model.JobOpportunity) Posting {
	return Posting{
		Title:       o.Title,
		Company:     o.Company,
		Location:    o.Location,
		Remote:      o.Remote,
		Description: o.Description,
		SalaryMin:   o.SalaryMin,
		SalaryMax:   o.SalaryMax,
		Skills:      o.Skills,
	}
}

const maxMissing = 10

// RuleScore computes a 0-100 match score without any model call.
// Scoring breakdown:
//   - Base:               30 points
//   - Target role match:  up to +25 points
//   - Skill overlap:      up to +25 points
//   - Skill mentions:     +3 each, up to +10 points
//   - Location / remote:  +5 points
//   - Salary overlap:     +5 points
func RuleScore(p Profile, job Posting) model.FitResult {
	score := 30

	titleLower := strings.ToLower(job.Title)
	textLower := strings.ToLower(job.Title + " " + job.Description)

	// ── Target role match ──
	bestRole := 0.0
	for _, role := range p.TargetRoles {
		roleLower := strings.ToLower(strings.TrimSpace(role))
		if roleLower == "" {
			continue
		}
		if strings.Contains(titleLower, roleLower) {
			bestRole = 1.0
			break
		}
		words := strings.Fields(roleLower)
		matched := lo.CountBy(words, func(w string) bool { return strings.Contains(titleLower, w) })
		if ratio := float64(matched) / float64(len(words)); ratio > bestRole {
			bestRole = ratio
		}
		if bestRole < 0.5 && strings.Contains(textLower, roleLower) {
			bestRole = 0.5
		}
	}
	score += int(bestRole * 25)

	// ── Skills ──
	userSkills := lo.Uniq(lo.FilterMap(p.Skills, func(s string, _ int) (string, bool) {
		s = strings.ToLower(strings.TrimSpace(s))
		return s, s != ""
	}))
	matched := lo.Filter(userSkills, func(s string, _ int) bool { return mentions(textLower, s) })

	var missing []string
	if len(job.Skills) > 0 {
		have := lo.Associate(userSkills, func(s string) (string, bool) { return s, true })
		hits := 0
		for _, js := range job.Skills {
			jsLower := strings.ToLower(strings.TrimSpace(js))
			if have[jsLower] {
				hits++
			} else if jsLower != "" {
				missing = append(missing, jsLower)
			}
		}
		score += int(float64(hits) / float64(len(job.Skills)) * 25)
	} else if len(userSkills) > 0 {
		// No explicit requirements: share of the candidate's skills the posting asks for,
		// saturating at five matches
		score += int(float64(min(len(matched), 5)) / float64(min(len(userSkills), 5)) * 25)
		missing = inferMissing(p, job, userSkills)
	}

	if len(matched) > 0 {
		score += min(len(matched)*3, 10)
	}

	// ── Location ──
	jobLocLower := strings.ToLower(job.Location)
	remoteJob := job.Remote || strings.Contains(jobLocLower, "remote")
	wantsRemote := p.RemoteOnly || lo.ContainsBy(p.PreferredLocations, func(l string) bool {
		return strings.EqualFold(strings.TrimSpace(l), "remote")
	})
	switch {
	case remoteJob && wantsRemote:
		score += 5
	case !p.RemoteOnly && jobLocLower != "" && locationMatches(jobLocLower, p):
		score += 5
	}

	// ── Salary ──
	if salaryOverlaps(p, job) {
		score += 5
	}

	sort.Strings(matched)
	return model.FitResult{
		Score:         Clamp(score),
		MatchedSkills: lo.Ternary(matched == nil, []string{}, matched),
		MissingSkills: lo.Ternary(missing == nil, []string{}, lo.Uniq(missing)),
	}
}

func locationMatches(jobLocLower string, p Profile) bool {
	locs := append([]string{p.Location}, p.PreferredLocations...)
	return lo.ContainsBy(locs, func(l string) bool {
		l = strings.ToLower(strings.TrimSpace(l))
		return l != "" && l != "remote" && strings.Contains(jobLocLower, l)
	})
}

// salaryOverlaps reports whether the posted range reaches the candidate's range.
// Unknown salaries on either side earn nothing.
func salaryOverlaps(p Profile, job Posting) bool {
	if p.SalaryMin <= 0 || (job.SalaryMin <= 0 && job.SalaryMax <= 0) {
		return false
	}
	jobTop := max(job.SalaryMax, job.SalaryMin)
	if jobTop < p.SalaryMin {
		return false
	}
	return p.SalaryMax <= 0 || job.SalaryMin <= p.SalaryMax
}

// inferMissing picks frequent posting terms the candidate never mentions
func inferMissing(p Profile, job Posting, userSkills []string) []string {
	known := keywordCounts(strings.Join(p.TargetRoles, " ") + " " + p.Headline + " " +
		strings.Join(userSkills, " ") + " " + p.ResumeText)
	posting := keywordCounts(job.Title + " " + job.Description)
	companyLower := strings.ToLower(job.Company)
	return topKeywords(posting, func(k string) bool {
		return known[k] > 0 || posting[k] < 2 || strings.Contains(companyLower, k)
	}, maxMissing)
}

// Clamp bounds a score to [0, 100]
func Clamp(score int) int {
	return min(max(score, 0), 100)
}
