package patternstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors for pattern store operations.
var (
	ErrPatternNotFound = errors.New("pattern not found")
	ErrInvalidPattern  = errors.New("invalid pattern")
	ErrEmptySignature  = errors.New("problem signature cannot be empty")
	ErrInvalidSortKey  = errors.New("invalid rank sort key")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
)

// ProblemType is the coarse category of a diagnosed problem.
type ProblemType string

const (
	ProblemProtocol      ProblemType = "protocol"
	ProblemConfiguration ProblemType = "configuration"
	ProblemConnection    ProblemType = "connection"
	ProblemPerformance   ProblemType = "performance"
	ProblemSecurity      ProblemType = "security"
	ProblemOther         ProblemType = "other"
)

// Solution is the structured fix attached to a pattern. It is anonymized
// and encrypted before persistence and decrypted only in memory.
type Solution struct {
	// Description summarizes the fix.
	Description string `json:"description"`

	// Steps are the ordered remediation steps.
	Steps []string `json:"steps,omitempty"`

	// CodeChanges are code-level changes applied by the fix.
	CodeChanges []string `json:"code_changes,omitempty"`

	// ConfigChanges are configuration keys and values changed by the fix.
	ConfigChanges map[string]any `json:"config_changes,omitempty"`

	// RollbackPlan describes how to undo the fix.
	RollbackPlan []string `json:"rollback_plan,omitempty"`
}

// ResolutionPattern is the unit of learned knowledge: an anonymized problem
// fingerprint, its solution, and the outcome statistics that drive ranking.
type ResolutionPattern struct {
	// ID is the stable unique pattern identifier (UUID).
	ID string `json:"id"`

	// ProblemType is the coarse problem category.
	ProblemType ProblemType `json:"problem_type"`

	// ProblemSignature is the anonymized textual fingerprint of the
	// problem. The store anonymizes it on every write.
	ProblemSignature string `json:"problem_signature"`

	// Solution is the structured fix. Encrypted at rest.
	Solution Solution `json:"solution"`

	// SuccessCount and FailureCount are monotonically non-decreasing
	// outcome counters.
	SuccessCount int64 `json:"success_count"`
	FailureCount int64 `json:"failure_count"`

	// AverageResolutionTime is the running mean of successful resolution
	// durations in milliseconds. Never reset.
	AverageResolutionTime float64 `json:"average_resolution_time"`

	// Confidence is the derived reliability score in [0,1]. It is never
	// set directly by callers; outcome and feedback updates recompute it.
	Confidence float64 `json:"confidence"`

	// LastUsed is the timestamp of the most recent success or failure.
	LastUsed time.Time `json:"last_used"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPattern creates a pattern with a generated UUID. The signature and
// solution are anonymized when the pattern is saved, not here.
func NewPattern(problemType ProblemType, signature string, solution Solution) (*ResolutionPattern, error) {
	if signature == "" {
		return nil, ErrEmptySignature
	}
	if problemType == "" {
		problemType = ProblemOther
	}

	now := time.Now().UTC()
	return &ResolutionPattern{
		ID:               uuid.New().String(),
		ProblemType:      problemType,
		ProblemSignature: signature,
		Solution:         solution,
		LastUsed:         now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// ScoredPattern is a pattern with its Jaccard similarity to a query
// signature.
type ScoredPattern struct {
	ResolutionPattern
	Score float64 `json:"score"`
}

// FeedbackEntry is one append-only feedback record for a pattern. The user
// identifier is hashed before storage and never persisted raw. Comments are
// stored as given; callers are responsible for scrubbing free text.
type FeedbackEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	UserID     string         `json:"user_id,omitempty"`
	Rating     int            `json:"rating"`
	Successful bool           `json:"successful"`
	Comments   string         `json:"comments,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
}

// CommonIssuePattern aggregates recurring anonymized signatures
// independently of individual pattern confidence.
type CommonIssuePattern struct {
	// Signature is the anonymized problem signature keying this row.
	Signature string `json:"signature"`

	// Occurrences counts how often the signature has recurred.
	Occurrences int64 `json:"occurrences"`

	// Solutions accumulates proposed fixes seen for this signature.
	Solutions []string `json:"solutions"`

	// Contexts accumulates distinct session or job identifiers in which
	// the signature was observed. Append-only, de-duplicated.
	Contexts []string `json:"contexts"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// SortKey selects the ordering for ranked retrieval.
type SortKey string

const (
	// SortByConfidence orders by confidence descending. Default.
	SortByConfidence SortKey = "confidence"

	// SortBySuccessRate orders by success/(success+failure) descending.
	SortBySuccessRate SortKey = "successRate"

	// SortByRecentUse orders by lastUsed descending.
	SortByRecentUse SortKey = "recentUse"

	// SortByTotalUses orders by success+failure descending.
	SortByTotalUses SortKey = "totalUses"
)

// RankOptions filters and orders ranked retrieval. The zero value returns
// every pattern ordered by confidence descending.
type RankOptions struct {
	// MinConfidence keeps patterns with confidence >= the threshold.
	MinConfidence float64 `json:"min_confidence,omitempty"`

	// MinSuccessCount keeps patterns with at least this many successes.
	MinSuccessCount int64 `json:"min_success_count,omitempty"`

	// MaxAge, when positive, keeps patterns used within the window.
	MaxAge time.Duration `json:"max_age,omitempty"`

	// SortBy selects the ordering. Empty means SortByConfidence.
	SortBy SortKey `json:"sort_by,omitempty"`

	// Limit caps the result count when positive.
	Limit int `json:"limit,omitempty"`
}

// Statistics summarizes the whole corpus.
type Statistics struct {
	TotalPatterns     int64               `json:"total_patterns"`
	TotalSuccesses    int64               `json:"total_successes"`
	TotalFailures     int64               `json:"total_failures"`
	AverageConfidence float64             `json:"average_confidence"`
	MostSuccessful    *ResolutionPattern  `json:"most_successful,omitempty"`
	RecentlyUsed      []ResolutionPattern `json:"recently_used"`
	ByProblemType     map[string]int64    `json:"by_problem_type"`
}

// Capability is the interface collaborators call. It enumerates exactly the
// operations the store supports; semantic matching and retries live with
// the callers.
type Capability interface {
	Save(ctx context.Context, pattern *ResolutionPattern) error
	Load(ctx context.Context, id string) (*ResolutionPattern, error)
	LoadAll(ctx context.Context) ([]ResolutionPattern, error)
	UpdateSuccess(ctx context.Context, id string, resolutionTime time.Duration) error
	UpdateFailure(ctx context.Context, id string) error
	AddFeedback(ctx context.Context, patternID string, entry FeedbackEntry) error
	SaveCommonIssue(ctx context.Context, issue *CommonIssuePattern) error
	UpdateCommonIssue(ctx context.Context, signature, context string) error
	LoadCommonIssues(ctx context.Context) ([]CommonIssuePattern, error)
	RetrieveByRank(ctx context.Context, opts RankOptions) ([]ResolutionPattern, error)
	GetStatistics(ctx context.Context) (*Statistics, error)
	FindSimilar(ctx context.Context, signature string, threshold float64) ([]ScoredPattern, error)
	PruneOlderThan(ctx context.Context, maxAge time.Duration) (int64, error)
}
