package ledger

import (
	"strings"
	"time"
)

// PublishStatus represents a source post's publication lifecycle.
type PublishStatus string

const (
	StatusPending   PublishStatus = "pending"
	StatusPublished PublishStatus = "published"
	StatusFailed    PublishStatus = "failed"
)

var allStatuses = []PublishStatus{
	StatusPending,
	StatusPublished,
	StatusFailed,
}

var statusSet = func() map[PublishStatus]struct{} {
	set := make(map[PublishStatus]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known publish statuses.
func AllStatuses() []PublishStatus {
	cp := make([]PublishStatus, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known PublishStatus.
func ParseStatus(value string) (PublishStatus, bool) {
	normalized := PublishStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Terminal reports whether a status permits no further transitions back to pending.
func (s PublishStatus) Terminal() bool {
	return s == StatusPublished || s == StatusFailed
}

// CanTransition reports whether a publish status change is legal. Posts only
// move forward: pending to published or failed. Terminal states never return
// to pending.
func CanTransition(from, to PublishStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusPublished || to == StatusFailed
	default:
		return false
	}
}

// SourcePost is a discovered post awaiting (or holding) generated content.
type SourcePost struct {
	Shortcode      string
	Caption        string
	PublishStatus  PublishStatus
	ExternalPostID string
	OriginalBlob   string
	DiscoveredAt   time.Time
	UpdatedAt      time.Time
}

// RecordOptions is the fixed-shape configuration captured on every generation
// record. Unknown provider metadata is retained opaquely in Extra and never
// required by core logic.
type RecordOptions struct {
	Automated         bool           `json:"automated"`
	Provider          string         `json:"provider"`
	Model             string         `json:"model"`
	Pipeline          string         `json:"pipeline"`
	Cost              float64        `json:"cost"`
	DescriptionMethod string         `json:"description_method,omitempty"`
	Extra             map[string]any `json:"extra,omitempty"`
}

// GenerationRecord is one immutable generation attempt. Corrections happen via
// a new record, never by mutating an existing one.
type GenerationRecord struct {
	ID           int64
	Shortcode    string
	MessageID    string
	Variation    string
	Prompt       string
	CreatedAt    time.Time
	BlobRef      string
	SourceURL    string
	ErrorKind    string
	ErrorMessage string
	Options      RecordOptions
}

// Succeeded reports whether the attempt produced stored content. BlobRef is
// set if and only if generation succeeded.
func (r *GenerationRecord) Succeeded() bool {
	return r != nil && r.BlobRef != ""
}

// AutomationSummary is derived from a post's generation record sequence on
// read. It is never stored, so it cannot drift from the underlying records.
type AutomationSummary struct {
	GeneratedBy  string
	PipelineType string
	TotalCost    float64
	Attempts     int
	Successes    int
}

// Summarize derives the automation summary for an ordered record sequence.
func Summarize(records []*GenerationRecord) AutomationSummary {
	summary := AutomationSummary{}
	for _, rec := range records {
		if rec == nil {
			continue
		}
		summary.Attempts++
		summary.TotalCost += rec.Options.Cost
		if rec.Succeeded() {
			summary.Successes++
			summary.GeneratedBy = rec.Options.Provider
			summary.PipelineType = rec.Options.Pipeline
		}
	}
	return summary
}

// CompletionStats aggregates ledger-wide completeness, recomputed per call.
type CompletionStats struct {
	TotalPosts         int
	PostsWithRecords   int
	PostsWithImages    int
	PostsNeedingImages int
}

// CompletionPercentage reports the share of posts with a non-empty aggregate.
func (s CompletionStats) CompletionPercentage() float64 {
	if s.TotalPosts == 0 {
		return 0
	}
	return float64(s.PostsWithRecords) / float64(s.TotalPosts) * 100
}

// CostFilter narrows AggregateCost. Zero values match everything.
type CostFilter struct {
	Shortcode string
	Variation string
	Since     time.Time
}
