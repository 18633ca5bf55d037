package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yourusername/applytrack-api/internal/fit"
	"github.com/yourusername/applytrack-api/internal/llm"
	"github.com/yourusername/applytrack-api/internal/model"
)

// ErrUnavailable is returned when no model provider is configured
var ErrUnavailable = errors.New("AI features are not configured")

const (
	maxResumeChars  = 30000
	maxPostingChars = 20000
)

// Service builds prompts for the résumé and posting features and decodes the answers
type Service struct {
	provider llm.Provider
}

// NewService returns nil when provider is nil so callers can test for AI support
func NewService(provider llm.Provider) *Service {
	if provider == nil {
		return nil
	}
	return &Service{provider: provider}
}

// ProviderName is stored alongside generated content
func (s *Service) ProviderName() string {
	if s == nil {
		return ""
	}
	return s.provider.Name()
}

func (s *Service) complete(ctx context.Context, p llm.Prompt) (string, error) {
	if s == nil || s.provider == nil {
		return "", ErrUnavailable
	}
	return s.provider.Complete(ctx, p)
}

// ── Profile extraction ─────────────────────────────────

const extractSystemPrompt = `You read résumés and return the candidate's profile as JSON.

Respond with ONLY a JSON object (no markdown, no explanation):
{
  "name": "Full name",
  "headline": "One-line professional headline",
  "summary": "2-3 sentence summary of experience",
  "location": "City, Country or empty string",
  "yearsExperience": 5,
  "targetRoles": ["role titles this person is suited for, most likely first"],
  "skills": [{"name": "Go", "category": "Languages", "level": 4}],
  "experience": [{"title": "", "company": "", "startDate": "", "endDate": "", "description": ""}]
}

Rules:
- Extract only what the résumé supports. Do not invent employers or dates.
- level is 1-5 where 5 is expert; infer it from years and depth of use.
- Use short, conventional category names (Languages, Frameworks, Databases, Cloud, Tools, Soft skills).
- Limit targetRoles to 3 and skills to 40.`

// ExtractProfile pulls a structured profile out of résumé text
func (s *Service) ExtractProfile(ctx context.Context, resumeText string) (*model.ResumeProfile, error) {
	out, err := s.complete(ctx, llm.Prompt{
		System:    extractSystemPrompt,
		User:      "Extract the profile from this résumé:\n\n" + clip(resumeText, maxResumeChars),
		MaxTokens: 3000,
	})
	if err != nil {
		return nil, err
	}

	var profile model.ResumeProfile
	if err := llm.DecodeJSON(out, &profile); err != nil {
		return nil, fmt.Errorf("decoding extracted profile: %w", err)
	}
	for i := range profile.Skills {
		profile.Skills[i].Level = min(max(profile.Skills[i].Level, 1), 5)
	}
	profile.YearsExperience = max(profile.YearsExperience, 0)
	return &profile, nil
}

// ── Fit scoring ────────────────────────────────────────

const fitSystemPrompt = `You estimate how well a candidate fits a job posting.

Respond with ONLY a JSON object:
{
  "score": 0-100,
  "summary": "2 sentences on the strongest match and the biggest gap",
  "matchedSkills": ["skills the candidate has that the posting wants"],
  "missingSkills": ["skills the posting wants that the candidate lacks"]
}

Score guide: 85+ strong match, 65-84 worth applying, 40-64 stretch, below 40 poor fit.
Weigh role/seniority alignment and required skills most; location and salary only when stated.`

// ScoreFit asks the model for a fit estimate; it satisfies fit.LLMScorer
func (s *Service) ScoreFit(ctx context.Context, p fit.Profile, job fit.Posting) (*model.FitResult, error) {
	var b strings.Builder
	b.WriteString("CANDIDATE\n")
	fmt.Fprintf(&b, "Target roles: %s\n", strings.Join(p.TargetRoles, ", "))
	fmt.Fprintf(&b, "Headline: %s\n", p.Headline)
	fmt.Fprintf(&b, "Years of experience: %d\n", p.YearsExperience)
	fmt.Fprintf(&b, "Skills: %s\n", strings.Join(p.Skills, ", "))
	fmt.Fprintf(&b, "Location: %s (remote only: %t)\n", p.Location, p.RemoteOnly)
	if p.SalaryMin > 0 {
		fmt.Fprintf(&b, "Salary expectation: %d-%d\n", p.SalaryMin, p.SalaryMax)
	}
	if p.ResumeText != "" {
		fmt.Fprintf(&b, "Résumé:\n%s\n", clip(p.ResumeText, maxResumeChars/3))
	}
	b.WriteString("\nJOB\n")
	writePosting(&b, job)

	out, err := s.complete(ctx, llm.Prompt{System: fitSystemPrompt, User: b.String(), MaxTokens: 800})
	if err != nil {
		return nil, err
	}

	var result model.FitResult
	if err := llm.DecodeJSON(out, &result); err != nil {
		return nil, fmt.Errorf("decoding fit result: %w", err)
	}
	result.Score = fit.Clamp(result.Score)
	return &result, nil
}

// ── Cover letters ──────────────────────────────────────

// CoverLetterInput is everything a letter is written from
type CoverLetterInput struct {
	CandidateName string
	ResumeText    string
	Job           fit.Posting
	Tone          string
	Extra         string
}

var toneGuides = map[string]string{
	"professional": "Measured and confident. No exclamation marks.",
	"enthusiastic": "Warm and energetic, showing genuine interest in the company.",
	"concise":      "Three short paragraphs, under 200 words total.",
}

const coverLetterSystemPrompt = `You write cover letters for job applications.

Rules:
- Ground every claim in the résumé provided. Never invent employers, titles or numbers.
- Connect two or three concrete achievements to the posting's needs.
- Plain text only: no markdown, no placeholders like [Company], no subject line.
- End with a short sign-off using the candidate's name when known.`

// GenerateCoverLetter writes a letter for one posting
func (s *Service) GenerateCoverLetter(ctx context.Context, in CoverLetterInput) (string, error) {
	tone := in.Tone
	guide, ok := toneGuides[tone]
	if !ok {
		tone, guide = "professional", toneGuides["professional"]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tone: %s. %s\n\n", tone, guide)
	if in.CandidateName != "" {
		fmt.Fprintf(&b, "Candidate name: %s\n\n", in.CandidateName)
	}
	fmt.Fprintf(&b, "Résumé:\n%s\n\n", clip(in.ResumeText, maxResumeChars))
	b.WriteString("Job posting:\n")
	writePosting(&b, in.Job)
	if in.Extra != "" {
		fmt.Fprintf(&b, "\nAdditional instructions from the candidate:\n%s\n", clip(in.Extra, 2000))
	}

	out, err := s.complete(ctx, llm.Prompt{System: coverLetterSystemPrompt, User: b.String(), MaxTokens: 1500})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(llm.StripCodeFences(out)), nil
}

// ── Résumé tailoring ───────────────────────────────────

const tailorSystemPrompt = `You tailor résumés to a specific job posting.

Rules:
- Keep every fact true to the original. Reorder, rephrase and emphasize; never add experience.
- Lead with the skills and achievements most relevant to the posting.
- Mirror the posting's terminology where the candidate genuinely has the skill.
- Return the full résumé as plain text with simple section headings in capitals.`

// TailorResume rewrites résumé text for one posting
func (s *Service) TailorResume(ctx context.Context, resumeText string, job fit.Posting) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Original résumé:\n%s\n\nTarget posting:\n", clip(resumeText, maxResumeChars))
	writePosting(&b, job)

	out, err := s.complete(ctx, llm.Prompt{System: tailorSystemPrompt, User: b.String(), MaxTokens: 4000})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(llm.StripCodeFences(out)), nil
}

// ── Posting parsing ────────────────────────────────────

const parseSystemPrompt = `You are a job posting parser. Extract structured data from a web page's text.

Respond with ONLY a JSON object:
{
  "title": "Job title",
  "company": "Company name",
  "location": "Location, empty if not stated",
  "remote": false,
  "salaryMin": 0,
  "salaryMax": 0,
  "description": "Clean 3-5 sentence summary of the role and requirements",
  "skills": ["required or preferred skills"]
}

Rules:
- Extract only what is stated. Use 0 for unknown salary figures, yearly amounts.
- Ignore navigation, cookie banners and unrelated listings on the page.`

// ParsePosting extracts a posting from text captured by the bookmarklet
func (s *Service) ParsePosting(ctx context.Context, pageURL, pageTitle, text string) (*model.ParsedPosting, error) {
	user := fmt.Sprintf("URL: %s\nPage title: %s\n\nPage text:\n%s", pageURL, pageTitle, clip(text, maxPostingChars))
	out, err := s.complete(ctx, llm.Prompt{System: parseSystemPrompt, User: user, MaxTokens: 1500})
	if err != nil {
		return nil, err
	}

	var parsed model.ParsedPosting
	if err := llm.DecodeJSON(out, &parsed); err != nil {
		return nil, fmt.Errorf("decoding parsed posting: %w", err)
	}
	if parsed.SalaryMax > 0 && parsed.SalaryMin > parsed.SalaryMax {
		parsed.SalaryMin, parsed.SalaryMax = parsed.SalaryMax, parsed.SalaryMin
	}
	return &parsed, nil
}

func writePosting(b *strings.Builder, job fit.Posting) {
	fmt.Fprintf(b, "Title: %s\n", job.Title)
	fmt.Fprintf(b, "Company: %s\n", job.Company)
	fmt.Fprintf(b, "Location: %s (remote: %t)\n", job.Location, job.Remote)
	if job.SalaryMin > 0 || job.SalaryMax > 0 {
		fmt.Fprintf(b, "Salary: %d-%d\n", job.SalaryMin, job.SalaryMax)
	}
	if len(job.Skills) > 0 {
		fmt.Fprintf(b, "Skills: %s\n", strings.Join(job.Skills, ", "))
	}
	fmt.Fprintf(b, "Description:\n%s\n", clip(job.Description, maxPostingChars))
}

// clip caps s at n runes
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
