package patternstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// recentlyUsedLimit caps the recent-use list in statistics.
const recentlyUsedLimit = 10

// GetStatistics derives corpus-wide summaries. An empty corpus yields
// zeroed defaults: no division by zero, nil most-successful pattern, empty
// recent-use list.
func (s *Store) GetStatistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{
		RecentlyUsed:  make([]ResolutionPattern, 0, recentlyUsedLimit),
		ByProblemType: make(map[string]int64),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(success_count), 0),
			COALESCE(SUM(failure_count), 0),
			COALESCE(AVG(confidence), 0)
		FROM patterns`).Scan(
		&stats.TotalPatterns,
		&stats.TotalSuccesses,
		&stats.TotalFailures,
		&stats.AverageConfidence,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate statistics: %w", err)
	}

	if stats.TotalPatterns == 0 {
		return stats, nil
	}

	top := s.db.QueryRowContext(ctx,
		`SELECT `+patternColumns+` FROM patterns
		ORDER BY success_count DESC LIMIT 1`)
	mostSuccessful, err := s.scanPattern(top)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("most successful pattern: %w", err)
	}
	if err == nil {
		stats.MostSuccessful = mostSuccessful
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+patternColumns+` FROM patterns
		ORDER BY last_used DESC LIMIT ?`, recentlyUsedLimit)
	if err != nil {
		return nil, fmt.Errorf("recently used patterns: %w", err)
	}
	defer rows.Close()
	recent, err := s.collectPatterns(rows)
	if err != nil {
		return nil, err
	}
	stats.RecentlyUsed = recent

	typeRows, err := s.db.QueryContext(ctx,
		`SELECT problem_type, COUNT(*) FROM patterns GROUP BY problem_type`)
	if err != nil {
		return nil, fmt.Errorf("problem type breakdown: %w", err)
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var problemType string
		var count int64
		if err := typeRows.Scan(&problemType, &count); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		stats.ByProblemType[problemType] = count
	}
	if err := typeRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate type counts: %w", err)
	}

	return stats, nil
}
