package patternstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/jscraik/cortexdx/internal/anonymize"
)

// UpdateCommonIssue records one more occurrence of an anonymized signature.
// An existing row gets its occurrence count incremented, lastSeen bumped,
// and the context appended only if not already present; a new signature
// starts at one occurrence with the single context.
func (s *Store) UpdateCommonIssue(ctx context.Context, signature, issueContext string) error {
	if signature == "" {
		return ErrEmptySignature
	}
	signature = anonymize.Text(signature)
	now := time.Now().UTC()

	var contextsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT contexts FROM common_issues WHERE signature = ?`,
		signature).Scan(&contextsJSON)

	if errors.Is(err, sql.ErrNoRows) {
		contexts := []string{}
		if issueContext != "" {
			contexts = append(contexts, issueContext)
		}
		return s.insertCommonIssue(ctx, &CommonIssuePattern{
			Signature:   signature,
			Occurrences: 1,
			Solutions:   []string{},
			Contexts:    contexts,
			FirstSeen:   now,
			LastSeen:    now,
		})
	}
	if err != nil {
		return fmt.Errorf("load common issue: %w", err)
	}

	var contexts []string
	if err := json.Unmarshal([]byte(contextsJSON), &contexts); err != nil {
		contexts = []string{}
	}
	if issueContext != "" && !slices.Contains(contexts, issueContext) {
		contexts = append(contexts, issueContext)
	}
	updated, err := json.Marshal(contexts)
	if err != nil {
		return fmt.Errorf("marshal contexts: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE common_issues
		SET occurrences = occurrences + 1, contexts = ?, last_seen = ?
		WHERE signature = ?`,
		string(updated), now.Format(timeLayout), signature); err != nil {
		return fmt.Errorf("update common issue: %w", err)
	}

	s.logger.Debug("common issue recurrence recorded",
		zap.String("signature", signature))
	return nil
}

// SaveCommonIssue is a raw upsert for bulk and import paths. It bypasses
// the dedup-append logic of UpdateCommonIssue and writes the row as given,
// after anonymizing the signature.
func (s *Store) SaveCommonIssue(ctx context.Context, issue *CommonIssuePattern) error {
	if issue == nil || issue.Signature == "" {
		return ErrEmptySignature
	}
	issue.Signature = anonymize.Text(issue.Signature)

	now := time.Now().UTC()
	if issue.FirstSeen.IsZero() {
		issue.FirstSeen = now
	}
	if issue.LastSeen.IsZero() {
		issue.LastSeen = now
	}
	if issue.Occurrences <= 0 {
		issue.Occurrences = 1
	}

	return s.insertCommonIssue(ctx, issue)
}

// LoadCommonIssues returns all aggregated issues, most frequent first.
func (s *Store) LoadCommonIssues(ctx context.Context) ([]CommonIssuePattern, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT signature, occurrences, solutions, contexts, first_seen, last_seen
		FROM common_issues
		ORDER BY occurrences DESC`)
	if err != nil {
		return nil, fmt.Errorf("query common issues: %w", err)
	}
	defer rows.Close()

	issues := make([]CommonIssuePattern, 0)
	for rows.Next() {
		var (
			issue                   CommonIssuePattern
			solutionsJSON, contexts string
			firstSeen, lastSeen     string
		)
		if err := rows.Scan(&issue.Signature, &issue.Occurrences,
			&solutionsJSON, &contexts, &firstSeen, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan common issue: %w", err)
		}

		if err := json.Unmarshal([]byte(solutionsJSON), &issue.Solutions); err != nil {
			issue.Solutions = []string{}
		}
		if err := json.Unmarshal([]byte(contexts), &issue.Contexts); err != nil {
			issue.Contexts = []string{}
		}
		issue.FirstSeen = parseTime(firstSeen)
		issue.LastSeen = parseTime(lastSeen)
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate common issues: %w", err)
	}
	return issues, nil
}

// insertCommonIssue upserts a full common-issue row.
func (s *Store) insertCommonIssue(ctx context.Context, issue *CommonIssuePattern) error {
	solutions, err := json.Marshal(issue.Solutions)
	if err != nil {
		return fmt.Errorf("marshal solutions: %w", err)
	}
	contexts, err := json.Marshal(issue.Contexts)
	if err != nil {
		return fmt.Errorf("marshal contexts: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO common_issues (signature, occurrences, solutions, contexts, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(signature) DO UPDATE SET
			occurrences = excluded.occurrences,
			solutions = excluded.solutions,
			contexts = excluded.contexts,
			last_seen = excluded.last_seen`,
		issue.Signature,
		issue.Occurrences,
		string(solutions),
		string(contexts),
		issue.FirstSeen.UTC().Format(timeLayout),
		issue.LastSeen.UTC().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("upsert common issue: %w", err)
	}
	return nil
}
