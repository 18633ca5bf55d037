package fit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yourusername/applytrack-api/internal/model"
)

func TestRuleScore_BaseOnly(t *testing.T) {
	r := RuleScore(Profile{}, Posting{Title: "Accountant", Description: "Ledgers."})

	assert.Equal(t, 30, r.Score)
	assert.Empty(t, r.MatchedSkills)
	assert.NotNil(t, r.MatchedSkills)
	assert.NotNil(t, r.MissingSkills)
}

func TestRuleScore_ExactRoleAndSkills(t *testing.T) {
	p := Profile{
		TargetRoles: []string{"Backend Engineer"},
		Skills:      []string{"Go", "PostgreSQL", "Kubernetes"},
		RemoteOnly:  true,
		SalaryMin:   120000,
	}
	job := Posting{
		Title:       "Senior Backend Engineer",
		Description: "We use Go and PostgreSQL on Kubernetes.",
		Remote:      true,
		SalaryMin:   110000,
		SalaryMax:   150000,
	}

	r := RuleScore(p, job)

	// 30 base + 25 role + 25 skills + 9 mentions + 5 remote + 5 salary
	assert.Equal(t, 99, r.Score)
	assert.Equal(t, []string{"go", "kubernetes", "postgresql"}, r.MatchedSkills)
}

func TestRuleScore_PartialRoleWords(t *testing.T) {
	p := Profile{TargetRoles: []string{"data platform engineer"}}
	r := RuleScore(p, Posting{Title: "Platform Engineer"})

	// two of three words in the title
	assert.Equal(t, 30+16, r.Score)
}

func TestRuleScore_RoleInDescriptionGetsHalfCredit(t *testing.T) {
	p := Profile{TargetRoles: []string{"site reliability"}}
	r := RuleScore(p, Posting{Title: "Operations", Description: "Join our site reliability group"})

	assert.Equal(t, 30+12, r.Score)
}

func TestRuleScore_ExplicitSkillsDriveMissing(t *testing.T) {
	p := Profile{Skills: []string{"Python", "SQL"}}
	job := Posting{Title: "Analyst", Description: "python and sql daily", Skills: []string{"Python", "SQL", "Tableau", "dbt"}}

	r := RuleScore(p, job)

	// half of required skills => +12, two mentions => +6
	assert.Equal(t, 30+12+6, r.Score)
	assert.Equal(t, []string{"tableau", "dbt"}, r.MissingSkills)
}

func TestPostingFrom_CarriesStoredSkills(t *testing.T) {
	opp := &model.JobOpportunity{Title: "Analyst", Description: "python daily", Skills: []string{"Python", "dbt"}}

	job := PostingFrom(opp)

	assert.Equal(t, []string{"Python", "dbt"}, job.Skills)
	assert.Equal(t, []string{"dbt"}, RuleScore(Profile{Skills: []string{"python"}}, job).MissingSkills)
}

func TestRuleScore_SkillMentionNeedsWordBoundary(t *testing.T) {
	p := Profile{Skills: []string{"Go"}}
	r := RuleScore(p, Posting{Title: "Good engineer", Description: "golang is a plus"})

	assert.Empty(t, r.MatchedSkills)
}

func TestRuleScore_RemoteOnlyIgnoresOnsiteLocationMatch(t *testing.T) {
	p := Profile{Location: "Berlin", RemoteOnly: true}
	r := RuleScore(p, Posting{Title: "x", Location: "Berlin, DE"})
	assert.Equal(t, 30, r.Score)

	p.RemoteOnly = false
	r = RuleScore(p, Posting{Title: "x", Location: "Berlin, DE"})
	assert.Equal(t, 35, r.Score)
}

func TestRuleScore_SalaryBelowExpectation(t *testing.T) {
	p := Profile{SalaryMin: 150000}
	r := RuleScore(p, Posting{Title: "x", SalaryMin: 80000, SalaryMax: 100000})
	assert.Equal(t, 30, r.Score)
}

func TestRuleScore_AlwaysWithinBounds(t *testing.T) {
	p := Profile{
		TargetRoles: []string{"engineer"},
		Skills:      []string{"go", "rust", "c++", "java", "sql", "aws", "gcp"},
		RemoteOnly:  true,
		SalaryMin:   1,
	}
	job := Posting{
		Title:       "engineer",
		Description: "go rust c++ java sql aws gcp",
		Skills:      []string{"go"},
		Remote:      true,
		SalaryMax:   10,
	}
	r := RuleScore(p, job)
	assert.LessOrEqual(t, r.Score, 100)
	assert.GreaterOrEqual(t, r.Score, 0)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-5))
	assert.Equal(t, 100, Clamp(140))
	assert.Equal(t, 55, Clamp(55))
}

func TestKeywordCounts(t *testing.T) {
	kw := keywordCounts("C++ and Node.js, node.js. The team uses Go.")
	assert.Equal(t, 1, kw["c++"])
	assert.Equal(t, 2, kw["node.js"])
	assert.NotContains(t, kw, "the")
	assert.NotContains(t, kw, "go")
}
