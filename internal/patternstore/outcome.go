package patternstore

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// UpdateSuccess records one successful use of a pattern: increments the
// success counter, folds the resolution time into the running mean, and
// recomputes confidence against the post-increment counters. The whole
// read-modify-write is one UPDATE statement, so concurrent outcome
// recordings for the same id cannot lose an increment.
func (s *Store) UpdateSuccess(ctx context.Context, id string, resolutionTime time.Duration) error {
	now := time.Now().UTC().Format(timeLayout)
	millis := float64(resolutionTime) / float64(time.Millisecond)

	// SET expressions read the pre-update row, so the incremental mean
	// uses the old average and old success count.
	res, err := s.db.ExecContext(ctx, `
		UPDATE patterns SET
			average_resolution_time =
				(average_resolution_time * success_count + ?) / (success_count + 1),
			success_count = success_count + 1,
			confidence =
				CAST(success_count + 1 AS REAL) / (success_count + 1 + failure_count),
			last_used = ?,
			updated_at = ?
		WHERE id = ?`,
		millis, now, now, id)
	if err != nil {
		return fmt.Errorf("update success: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update success rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrPatternNotFound, id)
	}

	s.logger.Debug("recorded pattern success",
		zap.String("id", id),
		zap.Float64("resolution_ms", millis))
	return nil
}

// UpdateFailure records one failed use of a pattern. The confidence
// denominator keeps the pre-increment success count, so a failure always
// strictly lowers confidence relative to not having occurred.
func (s *Store) UpdateFailure(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(timeLayout)

	res, err := s.db.ExecContext(ctx, `
		UPDATE patterns SET
			failure_count = failure_count + 1,
			confidence =
				CAST(success_count AS REAL) / (success_count + failure_count + 1),
			last_used = ?,
			updated_at = ?
		WHERE id = ?`,
		now, now, id)
	if err != nil {
		return fmt.Errorf("update failure: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update failure rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrPatternNotFound, id)
	}

	s.logger.Debug("recorded pattern failure", zap.String("id", id))
	return nil
}
