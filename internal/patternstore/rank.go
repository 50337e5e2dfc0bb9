package patternstore

import (
	"context"
	"fmt"
	"time"
)

// RetrieveByRank returns patterns passing the option filters, ordered by
// the selected sort key. The zero-value options return the full corpus
// ordered by confidence descending. An unknown sort key fails fast with
// ErrInvalidSortKey instead of silently defaulting.
func (s *Store) RetrieveByRank(ctx context.Context, opts RankOptions) ([]ResolutionPattern, error) {
	order, err := orderClause(opts.SortBy)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + patternColumns + ` FROM patterns
		WHERE confidence >= ? AND success_count >= ?`
	args := []any{opts.MinConfidence, opts.MinSuccessCount}

	if opts.MaxAge > 0 {
		query += ` AND last_used >= ?`
		args = append(args, time.Now().UTC().Add(-opts.MaxAge).Format(timeLayout))
	}

	query += ` ORDER BY ` + order
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("rank query: %w", err)
	}
	defer rows.Close()

	return s.collectPatterns(rows)
}

// orderClause maps a sort key to its ORDER BY expression. NULLIF keeps
// never-used patterns (zero outcomes) out of the success-rate ordering;
// SQLite sorts their NULL rate last under DESC.
func orderClause(key SortKey) (string, error) {
	switch key {
	case "", SortByConfidence:
		return "confidence DESC", nil
	case SortBySuccessRate:
		return "CAST(success_count AS REAL) / NULLIF(success_count + failure_count, 0) DESC", nil
	case SortByRecentUse:
		return "last_used DESC", nil
	case SortByTotalUses:
		return "success_count + failure_count DESC", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSortKey, key)
	}
}
