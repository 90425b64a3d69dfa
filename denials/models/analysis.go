package models

import "time"

// Conventional appeal statuses. The backend may send any free text.
const (
	AppealReadyToSubmit    = "Ready to Submit"
	AppealMissingInfo      = "Missing Required Info"
	AppealGeneratedOffline = "Generated Offline"
)

// Source records which path produced an analysis or appeal result.
type Source string

const (
	SourceAPI     Source = "api"
	SourceOffline Source = "offline"
	SourceCached  Source = "cached"
)

type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

// AppealResult is a generated appeal, either from the backend or synthesized locally.
type AppealResult struct {
	Status               string    `json:"status" mapstructure:"status"`
	EmailDraft           string    `json:"emailDraft" mapstructure:"emailDraft"`
	SupportDocumentLinks []string  `json:"supportDocumentLinks" mapstructure:"supportDocumentLinks"`
	MissingInformation   []string  `json:"missingInformation" mapstructure:"missingInformation"`
	GeneratedAt          time.Time `json:"generatedAt" mapstructure:"-"`
	JobID                int       `json:"jobId" mapstructure:"jobId"`
	Source               Source    `json:"source,omitempty" mapstructure:"-"`
}

// RCAIssue is one categorized finding of a locally produced analysis.
type RCAIssue struct {
	Category       string   `json:"category" toml:"category"`
	Severity       Severity `json:"severity" toml:"severity"`
	Description    string   `json:"description" toml:"description"`
	Recommendation string   `json:"recommendation" toml:"recommendation"`
}

// RemoteAnalysis is the backend's free-text analysis bundle, passed through untouched.
type RemoteAnalysis struct {
	Analysis               string     `json:"analysis,omitempty" mapstructure:"analysis"`
	Recommendations        string     `json:"recommendations,omitempty" mapstructure:"recommendations"`
	EDIFileAnalysis        string     `json:"ediFileAnalysis,omitempty" mapstructure:"ediFileAnalysis"`
	SupportingDocsAnalysis string     `json:"supportingDocsAnalysis,omitempty" mapstructure:"supportingDocsAnalysis"`
	DenialSource           string     `json:"denialSource,omitempty" mapstructure:"denialSource"`
	Status                 string     `json:"status,omitempty" mapstructure:"status"`
	JobID                  int        `json:"jobId,omitempty" mapstructure:"jobId"`
	CompletedAt            *time.Time `json:"completedAt,omitempty" mapstructure:"-"`
}

// RCAResult holds either locally produced Issues or a Remote passthrough. Source must be
// carried along whenever the result moves between states.
type RCAResult struct {
	Source Source          `json:"source"`
	Issues []RCAIssue      `json:"issues,omitempty"`
	Remote *RemoteAnalysis `json:"remote,omitempty"`
}
