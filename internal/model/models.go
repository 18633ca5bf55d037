package model

import (
	"time"

	"github.com/google/uuid"
)

// ── Users ──────────────────────────────────────────────

// User is an account plus the job-search preferences the scanner works from
type User struct {
	ID                 uuid.UUID `json:"id"`
	FirebaseUID        string    `json:"-"`
	Email              string    `json:"email"`
	Name               string    `json:"name"`
	AvatarURL          string    `json:"avatarUrl"`
	Headline           string    `json:"headline"`
	Summary            string    `json:"summary"`
	Location           string    `json:"location"`
	TargetRoles        []string  `json:"targetRoles"`
	PreferredLocations []string  `json:"preferredLocations"`
	RemoteOnly         bool      `json:"remoteOnly"`
	SalaryMin          int       `json:"salaryMin"`
	SalaryMax          int       `json:"salaryMax"`
	YearsExperience    int       `json:"yearsExperience"`
	MinAlertScore      int       `json:"minAlertScore"`
	ScanEnabled        bool      `json:"scanEnabled"`
	BookmarkletToken   uuid.UUID `json:"-"`
	TelegramChatID     int64     `json:"telegramChatId,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Settings is the subset of User that PUT /settings may change
type Settings struct {
	TargetRoles        []string `json:"targetRoles"`
	PreferredLocations []string `json:"preferredLocations"`
	RemoteOnly         bool     `json:"remoteOnly"`
	SalaryMin          int      `json:"salaryMin" binding:"gte=0"`
	SalaryMax          int      `json:"salaryMax" binding:"gte=0"`
	MinAlertScore      int      `json:"minAlertScore" binding:"gte=0,lte=100"`
	ScanEnabled        bool     `json:"scanEnabled"`
	TelegramChatID     int64    `json:"telegramChatId"`
}

// ── Applications ───────────────────────────────────────

// Application is one entry in the user's pipeline
type Application struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"userId"`
	OpportunityID *uuid.UUID `json:"opportunityId,omitempty"`
	Company       string     `json:"company"`
	Position      string     `json:"position"`
	Location      string     `json:"location"`
	JobURL        string     `json:"jobUrl"`
	SalaryText    string     `json:"salaryText"`
	Status        string     `json:"status"`
	AppliedAt     *time.Time `json:"appliedAt,omitempty"`
	Source        string     `json:"source"`
	Notes         string     `json:"notes"`
	FitScore      *int       `json:"fitScore,omitempty"`
	ResumeID      *uuid.UUID `json:"resumeId,omitempty"`
	CoverLetterID *uuid.UUID `json:"coverLetterId,omitempty"`
	IsArchived    bool       `json:"isArchived"`
	DeletedAt     *time.Time `json:"-"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Application statuses
const (
	StatusSaved     = "saved"
	StatusApplied   = "applied"
	StatusScreening = "screening"
	StatusInterview = "interview"
	StatusOffer     = "offer"
	StatusAccepted  = "accepted"
	StatusRejected  = "rejected"
	StatusWithdrawn = "withdrawn"
	StatusGhosted   = "ghosted"
)

// ApplicationStatuses lists every status in pipeline order
var ApplicationStatuses = []string{
	StatusSaved, StatusApplied, StatusScreening, StatusInterview,
	StatusOffer, StatusAccepted, StatusRejected, StatusWithdrawn, StatusGhosted,
}

func ValidApplicationStatus(s string) bool {
	for _, status := range ApplicationStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// closedStatus reports whether an application has left the active pipeline
func closedStatus(s string) bool {
	switch s {
	case StatusAccepted, StatusRejected, StatusWithdrawn:
		return true
	}
	return false
}

// IsActiveStatus reports whether an application still counts toward the open pipeline
func IsActiveStatus(s string) bool {
	return !closedStatus(s) && s != StatusGhosted
}

// CanTransition reports whether an application may move from one status to another.
// Closed applications can only be reopened as applied.
func CanTransition(from, to string) bool {
	if !ValidApplicationStatus(to) || from == to {
		return false
	}
	if closedStatus(from) {
		return to == StatusApplied
	}
	return true
}

// StatusHistory tracks application stage changes for the timeline
type StatusHistory struct {
	ID            uuid.UUID `json:"id"`
	ApplicationID uuid.UUID `json:"applicationId"`
	FromStatus    string    `json:"fromStatus"`
	ToStatus      string    `json:"toStatus"`
	Note          string    `json:"note,omitempty"`
	ChangedAt     time.Time `json:"changedAt"`
}

// ApplicationFilter narrows GET /applications
type ApplicationFilter struct {
	Status   string
	Archived bool
	Query    string
	Limit    int
	Offset   int
}

// ── Opportunities ──────────────────────────────────────

// JobOpportunity is a posting found by a scan, captured by the bookmarklet, or added by hand
type JobOpportunity struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"userId"`
	Source        string     `json:"source"`
	ExternalID    string     `json:"externalId"`
	Title         string     `json:"title"`
	Company       string     `json:"company"`
	Location      string     `json:"location"`
	Remote        bool       `json:"remote"`
	URL           string     `json:"url"`
	Description   string     `json:"description"`
	SalaryMin     int        `json:"salaryMin"`
	SalaryMax     int        `json:"salaryMax"`
	PostedAt      *time.Time `json:"postedAt,omitempty"`
	FitScore      *int       `json:"fitScore,omitempty"`
	FitSummary    string     `json:"fitSummary"`
	Skills        []string   `json:"skills"`
	MatchedSkills []string   `json:"matchedSkills"`
	MissingSkills []string   `json:"missingSkills"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Opportunity statuses
const (
	OpportunityNew       = "new"
	OpportunitySaved     = "saved"
	OpportunityDismissed = "dismissed"
	OpportunityApplied   = "applied"
)

func ValidOpportunityStatus(s string) bool {
	switch s {
	case OpportunityNew, OpportunitySaved, OpportunityDismissed, OpportunityApplied:
		return true
	}
	return false
}

// Opportunity sources outside the scanner
const (
	SourceBookmarklet = "bookmarklet"
	SourceManual      = "manual"
)

// OpportunityFilter narrows GET /opportunities
type OpportunityFilter struct {
	Status   string
	Source   string
	MinScore int
	Limit    int
	Offset   int
}

// ScannedPosting is a normalized posting as returned by a job source, before persistence
type ScannedPosting struct {
	Source      string
	ExternalID  string
	Title       string
	Company     string
	Location    string
	Remote      bool
	URL         string
	Description string
	SalaryMin   int
	SalaryMax   int
	Tags        []string
	PostedAt    *time.Time
}

// ParsedPosting is what the AI pulls out of a captured page
type ParsedPosting struct {
	Title       string   `json:"title"`
	Company     string   `json:"company"`
	Location    string   `json:"location"`
	Remote      bool     `json:"remote"`
	SalaryMin   int      `json:"salaryMin"`
	SalaryMax   int      `json:"salaryMax"`
	Description string   `json:"description"`
	Skills      []string `json:"skills"`
}

// FitResult is a 0-100 estimate of how well a profile matches a posting
type FitResult struct {
	Score         int      `json:"score"`
	Summary       string   `json:"summary"`
	MatchedSkills []string `json:"matchedSkills"`
	MissingSkills []string `json:"missingSkills"`
}

// ── Interviews ─────────────────────────────────────────

type Interview struct {
	ID              uuid.UUID     `json:"id"`
	UserID          uuid.UUID     `json:"userId"`
	ApplicationID   uuid.UUID     `json:"applicationId"`
	Round           int           `json:"round"`
	Kind            string        `json:"kind"`
	ScheduledAt     time.Time     `json:"scheduledAt"`
	DurationMinutes int           `json:"durationMinutes"`
	Location        string        `json:"location"`
	MeetingURL      string        `json:"meetingUrl"`
	Outcome         string        `json:"outcome"`
	Notes           string        `json:"notes"`
	Interviewers    []Interviewer `json:"interviewers"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`

	// Joined from applications
	Company  string `json:"company,omitempty"`
	Position string `json:"position,omitempty"`
}

var InterviewKinds = []string{"phone", "video", "onsite", "technical", "behavioral", "panel", "other"}

// Interview outcomes
const (
	OutcomePending   = "pending"
	OutcomePassed    = "passed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

func ValidInterviewKind(s string) bool {
	for _, k := range InterviewKinds {
		if s == k {
			return true
		}
	}
	return false
}

func ValidInterviewOutcome(s string) bool {
	switch s {
	case OutcomePending, OutcomePassed, OutcomeFailed, OutcomeCancelled:
		return true
	}
	return false
}

type Interviewer struct {
	ID          uuid.UUID  `json:"id"`
	InterviewID uuid.UUID  `json:"interviewId"`
	ContactID   *uuid.UUID `json:"contactId,omitempty"`
	Name        string     `json:"name"`
	Title       string     `json:"title"`
	Email       string     `json:"email"`
	LinkedInURL string     `json:"linkedinUrl"`
	Notes       string     `json:"notes"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ── Contacts & follow-ups ──────────────────────────────

// Contact represents a networking contact
type Contact struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"userId"`
	ApplicationID   *uuid.UUID `json:"applicationId,omitempty"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone"`
	Company         string     `json:"company"`
	Title           string     `json:"title"`
	LinkedInURL     string     `json:"linkedinUrl"`
	Relationship    string     `json:"relationship"`
	Notes           string     `json:"notes"`
	LastContactedAt *time.Time `json:"lastContactedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type FollowUp struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"userId"`
	ApplicationID *uuid.UUID `json:"applicationId,omitempty"`
	ContactID     *uuid.UUID `json:"contactId,omitempty"`
	Title         string     `json:"title"`
	Notes         string     `json:"notes"`
	Channel       string     `json:"channel"`
	DueAt         time.Time  `json:"dueAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`

	// Joined from applications
	Company  string `json:"company,omitempty"`
	Position string `json:"position,omitempty"`
}

func ValidFollowUpChannel(s string) bool {
	switch s {
	case "email", "phone", "linkedin", "other":
		return true
	}
	return false
}

// ── Resumes & cover letters ────────────────────────────

// Resume kinds
const (
	ResumeUploaded = "uploaded"
	ResumeTailored = "tailored"
)

// Resume is an uploaded file or an AI-tailored variant of one
type Resume struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"userId"`
	Name           string     `json:"name"`
	FileName       string     `json:"fileName"`
	FilePath       string     `json:"-"`
	FileURL        string     `json:"fileUrl,omitempty"`
	MimeType       string     `json:"mimeType"`
	SizeBytes      int64      `json:"sizeBytes"`
	RawText        string     `json:"rawText,omitempty"`
	Kind           string     `json:"kind"`
	ParentResumeID *uuid.UUID `json:"parentResumeId,omitempty"`
	OpportunityID  *uuid.UUID `json:"opportunityId,omitempty"`
	IsPrimary      bool       `json:"isPrimary"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// CoverLetter is generated text, editable after the fact
type CoverLetter struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"userId"`
	ApplicationID *uuid.UUID `json:"applicationId,omitempty"`
	OpportunityID *uuid.UUID `json:"opportunityId,omitempty"`
	ResumeID      *uuid.UUID `json:"resumeId,omitempty"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Tone          string     `json:"tone"`
	Provider      string     `json:"provider"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func ValidTone(s string) bool {
	switch s {
	case "professional", "enthusiastic", "concise":
		return true
	}
	return false
}

// ── Profile extraction ─────────────────────────────────

type Experience struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Description string `json:"description"`
}

type ExtractedSkill struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Level    int    `json:"level"`
}

// ResumeProfile is the structured profile pulled from résumé text
type ResumeProfile struct {
	Name            string           `json:"name"`
	Headline        string           `json:"headline"`
	Summary         string           `json:"summary"`
	Location        string           `json:"location"`
	YearsExperience int              `json:"yearsExperience"`
	TargetRoles     []string         `json:"targetRoles"`
	Skills          []ExtractedSkill `json:"skills"`
	Experience      []Experience     `json:"experience"`
}

// ── Skills ─────────────────────────────────────────────

type SkillCategory struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Name      string    `json:"name"`
	SortOrder int       `json:"sortOrder"`
	CreatedAt time.Time `json:"createdAt"`
}

type Skill struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"userId"`
	CategoryID *uuid.UUID `json:"categoryId,omitempty"`
	Name       string     `json:"name"`
	Level      int        `json:"level"`
	Years      int        `json:"years"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// SkillGroup is one category with its skills, as returned by GET /skills
type SkillGroup struct {
	Category *SkillCategory `json:"category"`
	Skills   []Skill        `json:"skills"`
}

// ── Sources, scans & alerts ────────────────────────────

// Source kinds
const (
	SourceRemotive = "remotive"
	SourceAdzuna   = "adzuna"
	SourceJSearch  = "jsearch"
	SourceRSS      = "rss"
)

func ValidSourceKind(s string) bool {
	switch s {
	case SourceRemotive, SourceAdzuna, SourceJSearch, SourceRSS:
		return true
	}
	return false
}

// UserJobSource is one board or feed a user wants scanned
type UserJobSource struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"userId"`
	Kind          string     `json:"kind"`
	Name          string     `json:"name"`
	Query         string     `json:"query"`
	Location      string     `json:"location"`
	FeedURL       string     `json:"feedUrl,omitempty"`
	Enabled       bool       `json:"enabled"`
	LastScannedAt *time.Time `json:"lastScannedAt,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Scan triggers
const (
	TriggerCron   = "cron"
	TriggerManual = "manual"
)

type ScanRun struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"userId"`
	Trigger    string     `json:"trigger"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Fetched    int        `json:"fetched"`
	Created    int        `json:"created"`
	Alerts     int        `json:"alerts"`
	Error      string     `json:"error,omitempty"`
	Skipped    bool       `json:"skipped,omitempty"`
}

// Alert kinds
const (
	AlertNewMatch      = "new_match"
	AlertFollowUpDue   = "follow_up_due"
	AlertInterviewSoon = "interview_soon"
	AlertScanFailed    = "scan_failed"
)

type Alert struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"userId"`
	Kind          string     `json:"kind"`
	Title         string     `json:"title"`
	Body          string     `json:"body"`
	OpportunityID *uuid.UUID `json:"opportunityId,omitempty"`
	ApplicationID *uuid.UUID `json:"applicationId,omitempty"`
	FollowUpID    *uuid.UUID `json:"followUpId,omitempty"`
	InterviewID   *uuid.UUID `json:"interviewId,omitempty"`
	ReadAt        *time.Time `json:"readAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// ── Dashboard ──────────────────────────────────────────

// DashboardSummary is the aggregated response for the home screen
type DashboardSummary struct {
	PipelineCounts     map[string]int   `json:"pipelineCounts"`
	ActiveApplications int              `json:"activeApplications"`
	NewOpportunities   int              `json:"newOpportunities"`
	UnreadAlerts       int              `json:"unreadAlerts"`
	UpcomingInterviews []Interview      `json:"upcomingInterviews"`
	DueFollowUps       []FollowUp       `json:"dueFollowUps"`
	TopOpportunities   []JobOpportunity `json:"topOpportunities"`
}
