package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxTargets is the hard ceiling on targets a single job may request,
// regardless of what the caller asked for.
const MaxTargets = 200

type Template string

const (
	TemplateMapSearch      Template = "map_search"
	TemplateCommerceSearch Template = "commerce_search"
)

func ParseTemplate(s string) (Template, error) {
	switch Template(s) {
	case TemplateMapSearch, TemplateCommerceSearch:
		return Template(s), nil
	}
	return "", fmt.Errorf("unsupported template %q", s)
}

type Status string

const (
	StatusDraft     Status = "draft"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusDraft, StatusRunning, StatusCompleted, StatusError:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// MapSearchConfig drives the map-search template.
type MapSearchConfig struct {
	Query        string `json:"query"`
	MaxResults   int    `json:"maxResults"`
	EnrichEmails bool   `json:"enrichEmails"`
	EnrichPhones bool   `json:"enrichPhones"`
}

// CommerceSearchConfig drives the commerce-search template.
type CommerceSearchConfig struct {
	SearchURL  string `json:"searchUrl"`
	MaxResults int    `json:"maxResults"`
}

// ExtractionJob is the unit of work the queue and worker operate on.
// Exactly one of Map/Commerce is set, matching Template.
type ExtractionJob struct {
	ID        string   `json:"id"`
	AccountID string   `json:"accountId"`
	Template  Template `json:"template"`
	Status    Status   `json:"status"`

	Map      *MapSearchConfig      `json:"map,omitempty"`
	Commerce *CommerceSearchConfig `json:"commerce,omitempty"`

	// RunKey is the stable dedup identifier for one-time scheduling.
	// It belongs to the extraction, not to an attempt: rescheduling
	// reuses it so two live queue entries can never exist for one job.
	RunKey      string     `json:"runKey"`
	IsScheduled bool       `json:"isScheduled"`
	NextRunAt   *time.Time `json:"nextRunAt,omitempty"`
	LastRunAt   *time.Time `json:"lastRunAt,omitempty"`

	ResultJSON  string              `json:"-"`
	Monitoring  *MonitoringSnapshot `json:"monitoring,omitempty"`
	CreditsUsed int                 `json:"creditsUsed"`
	ErrorText   string              `json:"errorText,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

var (
	ErrMissingQuery  = errors.New("map_search job requires a query")
	ErrMissingURL    = errors.New("commerce_search job requires a search URL")
	ErrConfigMissing = errors.New("job config does not match its template")
)

// Validate fails fast on configuration errors, before any browser work.
func (j *ExtractionJob) Validate() error {
	if _, err := ParseTemplate(string(j.Template)); err != nil {
		return err
	}
	switch j.Template {
	case TemplateMapSearch:
		if j.Map == nil {
			return ErrConfigMissing
		}
		if strings.TrimSpace(j.Map.Query) == "" {
			return ErrMissingQuery
		}
	case TemplateCommerceSearch:
		if j.Commerce == nil {
			return ErrConfigMissing
		}
		if strings.TrimSpace(j.Commerce.SearchURL) == "" {
			return ErrMissingURL
		}
	}
	return nil
}

// RequestedMax returns the capped target count for the job's template.
func (j *ExtractionJob) RequestedMax() int {
	max := 0
	switch j.Template {
	case TemplateMapSearch:
		if j.Map != nil {
			max = j.Map.MaxResults
		}
	case TemplateCommerceSearch:
		if j.Commerce != nil {
			max = j.Commerce.MaxResults
		}
	}
	if max <= 0 || max > MaxTargets {
		return MaxTargets
	}
	return max
}

func (j *ExtractionJob) EnrichEmails() bool {
	return j.Template == TemplateMapSearch && j.Map != nil && j.Map.EnrichEmails
}

func (j *ExtractionJob) EnrichPhones() bool {
	return j.Template == TemplateMapSearch && j.Map != nil && j.Map.EnrichPhones
}
