package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/jscraik/cortexdx/internal/patternstore"
)

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	s.registerPatternTools()
	s.registerOutcomeTools()
	s.registerRetrievalTools()
	s.registerIssueTools()
}

// track brackets one tool invocation with the active-request gauge and the
// invocation metrics. Call the returned func with the tool error on exit.
func (s *Server) track(ctx context.Context, tool string) func(error) {
	start := time.Now()
	s.metrics.IncrementActive(ctx, tool)
	return func(err error) {
		s.metrics.DecrementActive(ctx, tool)
		s.metrics.RecordInvocation(ctx, tool, time.Since(start), err)
		if err != nil {
			s.logger.Warn("tool failed", zap.String("tool", tool), zap.Error(err))
		}
	}
}

// ===== PATTERN LIFECYCLE TOOLS =====

type patternRecordInput struct {
	ProblemType      string                `json:"problem_type,omitempty" jsonschema:"Problem category: protocol configuration connection performance security or other"`
	ProblemSignature string                `json:"problem_signature" jsonschema:"required,Textual fingerprint of the problem; anonymized before storage"`
	Solution         patternstore.Solution `json:"solution" jsonschema:"required,Structured fix; encrypted at rest"`
}

type patternRecordOutput struct {
	ID               string `json:"id" jsonschema:"Generated pattern ID"`
	ProblemSignature string `json:"problem_signature" jsonschema:"Signature as stored after anonymization"`
}

type patternGetInput struct {
	ID string `json:"id" jsonschema:"required,Pattern ID"`
}

type patternGetOutput struct {
	Pattern patternstore.ResolutionPattern `json:"pattern" jsonschema:"The stored pattern with decrypted solution"`
}

type patternListOutput struct {
	Patterns []patternstore.ResolutionPattern `json:"patterns" jsonschema:"All stored patterns"`
	Count    int                              `json:"count" jsonschema:"Number of patterns returned"`
}

type patternPruneInput struct {
	MaxAgeHours float64 `json:"max_age_hours" jsonschema:"required,Remove patterns not used within this many hours"`
}

type patternPruneOutput struct {
	Removed int64 `json:"removed" jsonschema:"Number of patterns removed"`
}

func (s *Server) registerPatternTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "pattern_record",
		Description: "Record a resolution pattern: a problem signature and the fix that resolved it",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args patternRecordInput) (*mcp.CallToolResult, patternRecordOutput, error) {
		done := s.track(ctx, "pattern_record")
		var toolErr error
		defer func() { done(toolErr) }()

		pattern, err := patternstore.NewPattern(
			patternstore.ProblemType(args.ProblemType), args.ProblemSignature, args.Solution)
		if err != nil {
			toolErr = err
			return nil, patternRecordOutput{}, err
		}
		if err := s.store.Save(ctx, pattern); err != nil {
			toolErr = err
			return nil, patternRecordOutput{}, err
		}

		return nil, patternRecordOutput{
			ID:               pattern.ID,
			ProblemSignature: pattern.ProblemSignature,
		}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "pattern_get",
		Description: "Load a single resolution pattern by ID",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args patternGetInput) (*mcp.CallToolResult, patternGetOutput, error) {
		done := s.track(ctx, "pattern_get")
		var toolErr error
		defer func() { done(toolErr) }()

		pattern, err := s.store.Load(ctx, args.ID)
		if err != nil {
			toolErr = err
			return nil, patternGetOutput{}, err
		}
		return nil, patternGetOutput{Pattern: *pattern}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "pattern_list",
		Description: "List every stored resolution pattern",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, patternListOutput, error) {
		done := s.track(ctx, "pattern_list")
		var toolErr error
		defer func() { done(toolErr) }()

		patterns, err := s.store.LoadAll(ctx)
		if err != nil {
			toolErr = err
			return nil, patternListOutput{}, err
		}
		return nil, patternListOutput{Patterns: patterns, Count: len(patterns)}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "pattern_prune",
		Description: "Remove patterns that have not been used within a retention window",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args patternPruneInput) (*mcp.CallToolResult, patternPruneOutput, error) {
		done := s.track(ctx, "pattern_prune")
		var toolErr error
		defer func() { done(toolErr) }()

		maxAge := time.Duration(args.MaxAgeHours * float64(time.Hour))
		removed, err := s.store.PruneOlderThan(ctx, maxAge)
		if err != nil {
			toolErr = err
			return nil, patternPruneOutput{}, err
		}
		return nil, patternPruneOutput{Removed: removed}, nil
	})
}

// ===== OUTCOME TOOLS =====

type patternSuccessInput struct {
	ID               string  `json:"id" jsonschema:"required,Pattern ID"`
	ResolutionTimeMS float64 `json:"resolution_time_ms" jsonschema:"required,How long the successful resolution took in milliseconds"`
}

type patternFailureInput struct {
	ID string `json:"id" jsonschema:"required,Pattern ID"`
}

type patternOutcomeOutput struct {
	Pattern patternstore.ResolutionPattern `json:"pattern" jsonschema:"The pattern after the update"`
}

type patternFeedbackInput struct {
	ID         string         `json:"id" jsonschema:"required,Pattern ID"`
	Rating     int            `json:"rating" jsonschema:"required,Rating from 1 to 5"`
	Successful bool           `json:"successful,omitempty" jsonschema:"Whether the pattern resolved the problem"`
	UserID     string         `json:"user_id,omitempty" jsonschema:"User identifier; stored only as a one-way hash"`
	Comments   string         `json:"comments,omitempty" jsonschema:"Free-text comments"`
	Context    map[string]any `json:"context,omitempty" jsonschema:"Structured context for the feedback"`
}

func (s *Server) registerOutcomeTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "pattern_success",
		Description: "Record a successful application of a pattern and update its confidence",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args patternSuccessInput) (*mcp.CallToolResult, patternOutcomeOutput, error) {
		done := s.track(ctx, "pattern_success")
		var toolErr error
		defer func() { done(toolErr) }()

		resolution := time.Duration(args.ResolutionTimeMS * float64(time.Millisecond))
		if err := s.store.UpdateSuccess(ctx, args.ID, resolution); err != nil {
			toolErr = err
			return nil, patternOutcomeOutput{}, err
		}

		pattern, err := s.store.Load(ctx, args.ID)
		if err != nil {
			toolErr = err
			return nil, patternOutcomeOutput{}, err
		}
		return nil, patternOutcomeOutput{Pattern: *pattern}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "pattern_failure",
		Description: "Record a failed application of a pattern and update its confidence",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args patternFailureInput) (*mcp.CallToolResult, patternOutcomeOutput, error) {
		done := s.track(ctx, "pattern_failure")
		var toolErr error
		defer func() { done(toolErr) }()

		if err := s.store.UpdateFailure(ctx, args.ID); err != nil {
			toolErr = err
			return nil, patternOutcomeOutput{}, err
		}

		pattern, err := s.store.Load(ctx, args.ID)
		if err != nil {
			toolErr = err
			return nil, patternOutcomeOutput{}, err
		}
		return nil, patternOutcomeOutput{Pattern: *pattern}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "pattern_feedback",
		Description: "Attach user feedback to a pattern; enough recent feedback adjusts confidence",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args patternFeedbackInput) (*mcp.CallToolResult, patternOutcomeOutput, error) {
		done := s.track(ctx, "pattern_feedback")
		var toolErr error
		defer func() { done(toolErr) }()

		err := s.store.AddFeedback(ctx, args.ID, patternstore.FeedbackEntry{
			Rating:     args.Rating,
			Successful: args.Successful,
			UserID:     args.UserID,
			Comments:   args.Comments,
			Context:    args.Context,
		})
		if err != nil {
			toolErr = err
			return nil, patternOutcomeOutput{}, err
		}

		pattern, err := s.store.Load(ctx, args.ID)
		if err != nil {
			toolErr = err
			return nil, patternOutcomeOutput{}, err
		}
		return nil, patternOutcomeOutput{Pattern: *pattern}, nil
	})
}

// ===== RETRIEVAL TOOLS =====

type patternRankInput struct {
	MinConfidence   float64 `json:"min_confidence,omitempty" jsonschema:"Keep patterns with confidence at or above this value"`
	MinSuccessCount int64   `json:"min_success_count,omitempty" jsonschema:"Keep patterns with at least this many successes"`
	MaxAgeHours     float64 `json:"max_age_hours,omitempty" jsonschema:"Keep patterns used within this many hours"`
	SortBy          string  `json:"sort_by,omitempty" jsonschema:"Ordering: confidence successRate recentUse or totalUses"`
	Limit           int     `json:"limit,omitempty" jsonschema:"Maximum results to return"`
}

type patternSimilarInput struct {
	ProblemSignature string  `json:"problem_signature" jsonschema:"required,Signature to match against stored patterns"`
	Threshold        float64 `json:"threshold,omitempty" jsonschema:"Minimum Jaccard similarity in (0,1]; default 0.6"`
}

type patternSimilarOutput struct {
	Matches []patternstore.ScoredPattern `json:"matches" jsonschema:"Matching patterns with similarity scores, best first"`
	Count   int                          `json:"count" jsonschema:"Number of matches"`
}

type patternStatsOutput struct {
	Stats patternstore.Statistics `json:"stats" jsonschema:"Corpus-wide statistics"`
}

func (s *Server) registerRetrievalTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "pattern_rank",
		Description: "Retrieve patterns filtered and ordered by reliability",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args patternRankInput) (*mcp.CallToolResult, patternListOutput, error) {
		done := s.track(ctx, "pattern_rank")
		var toolErr error
		defer func() { done(toolErr) }()

		patterns, err := s.store.RetrieveByRank(ctx, patternstore.RankOptions{
			MinConfidence:   args.MinConfidence,
			MinSuccessCount: args.MinSuccessCount,
			MaxAge:          time.Duration(args.MaxAgeHours * float64(time.Hour)),
			SortBy:          patternstore.SortKey(args.SortBy),
			Limit:           args.Limit,
		})
		if err != nil {
			toolErr = err
			return nil, patternListOutput{}, err
		}
		return nil, patternListOutput{Patterns: patterns, Count: len(patterns)}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "pattern_similar",
		Description: "Find stored patterns whose problem signature resembles the given one",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args patternSimilarInput) (*mcp.CallToolResult, patternSimilarOutput, error) {
		done := s.track(ctx, "pattern_similar")
		var toolErr error
		defer func() { done(toolErr) }()

		matches, err := s.store.FindSimilar(ctx, args.ProblemSignature, args.Threshold)
		if err != nil {
			toolErr = err
			return nil, patternSimilarOutput{}, err
		}
		return nil, patternSimilarOutput{Matches: matches, Count: len(matches)}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "pattern_stats",
		Description: "Summarize the pattern corpus: totals, confidence, most successful, recent use",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, patternStatsOutput, error) {
		done := s.track(ctx, "pattern_stats")
		var toolErr error
		defer func() { done(toolErr) }()

		stats, err := s.store.GetStatistics(ctx)
		if err != nil {
			toolErr = err
			return nil, patternStatsOutput{}, err
		}
		return nil, patternStatsOutput{Stats: *stats}, nil
	})
}

// ===== COMMON ISSUE TOOLS =====

type issueReportInput struct {
	Signature string `json:"signature" jsonschema:"required,Problem signature; anonymized before storage"`
	Context   string `json:"context,omitempty" jsonschema:"Session or job identifier where the issue was observed"`
}

type issueReportOutput struct {
	Recorded bool `json:"recorded" jsonschema:"True when the occurrence was recorded"`
}

type issueListOutput struct {
	Issues []patternstore.CommonIssuePattern `json:"issues" jsonschema:"Aggregated issues, most frequent first"`
	Count  int                               `json:"count" jsonschema:"Number of issues returned"`
}

type issueSaveInput struct {
	Issue patternstore.CommonIssuePattern `json:"issue" jsonschema:"required,Full issue row to upsert"`
}

func (s *Server) registerIssueTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "issue_report",
		Description: "Record one more occurrence of a recurring issue signature",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args issueReportInput) (*mcp.CallToolResult, issueReportOutput, error) {
		done := s.track(ctx, "issue_report")
		var toolErr error
		defer func() { done(toolErr) }()

		if err := s.store.UpdateCommonIssue(ctx, args.Signature, args.Context); err != nil {
			toolErr = err
			return nil, issueReportOutput{}, err
		}
		return nil, issueReportOutput{Recorded: true}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "issue_list",
		Description: "List aggregated recurring issues, most frequent first",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, issueListOutput, error) {
		done := s.track(ctx, "issue_list")
		var toolErr error
		defer func() { done(toolErr) }()

		issues, err := s.store.LoadCommonIssues(ctx)
		if err != nil {
			toolErr = err
			return nil, issueListOutput{}, err
		}
		return nil, issueListOutput{Issues: issues, Count: len(issues)}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "issue_save",
		Description: "Upsert a full issue row, bypassing occurrence counting",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args issueSaveInput) (*mcp.CallToolResult, issueReportOutput, error) {
		done := s.track(ctx, "issue_save")
		var toolErr error
		defer func() { done(toolErr) }()

		issue := args.Issue
		if err := s.store.SaveCommonIssue(ctx, &issue); err != nil {
			toolErr = err
			return nil, issueReportOutput{}, err
		}
		return nil, issueReportOutput{Recorded: true}, nil
	})
}
