package patternstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jscraik/cortexdx/internal/anonymize"
)

const (
	// feedbackWindow is how far back recent feedback counts toward the
	// blended confidence recomputation.
	feedbackWindow = 30 * 24 * time.Hour

	// feedbackMinRecent is the minimum number of recent entries before
	// feedback influences confidence at all.
	feedbackMinRecent = 3

	// Blend weights for the two-speed update policy: outcomes move
	// confidence immediately, feedback smooths it slowly.
	outcomeWeight = 0.7
	ratingWeight  = 0.3

	ratingScale = 5.0
)

// AddFeedback appends a feedback record for a pattern. The user identifier
// is stored only as a one-way hash. With at least three feedback entries in
// the last thirty days, confidence is recomputed as a blend of the outcome
// success rate and the mean recent rating; with fewer it is left to the
// outcome-driven updates alone.
func (s *Store) AddFeedback(ctx context.Context, patternID string, entry FeedbackEntry) error {
	if entry.Rating < 1 || entry.Rating > int(ratingScale) {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, entry.Rating)
	}

	var successCount, failureCount int64
	err := s.db.QueryRowContext(ctx,
		`SELECT success_count, failure_count FROM patterns WHERE id = ?`,
		patternID).Scan(&successCount, &failureCount)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrPatternNotFound, patternID)
	}
	if err != nil {
		return fmt.Errorf("load pattern counters: %w", err)
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	var userHash any
	if entry.UserID != "" {
		userHash = anonymize.HashIdentifier(entry.UserID)
	}

	contextJSON, err := json.Marshal(entry.Context)
	if err != nil {
		return fmt.Errorf("marshal feedback context: %w", err)
	}

	successful := 0
	if entry.Successful {
		successful = 1
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (pattern_id, timestamp, user_id_hash, rating, successful, comments, context)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		patternID,
		entry.Timestamp.UTC().Format(timeLayout),
		userHash,
		entry.Rating,
		successful,
		entry.Comments,
		string(contextJSON),
	); err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}

	return s.recomputeFromFeedback(ctx, patternID, successCount, failureCount)
}

// recomputeFromFeedback applies the blended confidence formula when enough
// recent feedback exists. The read-then-write here has a benign race under
// concurrent feedback: at worst a slightly stale confidence value.
func (s *Store) recomputeFromFeedback(ctx context.Context, patternID string, successCount, failureCount int64) error {
	since := time.Now().UTC().Add(-feedbackWindow).Format(timeLayout)

	var recent int64
	var avgRating float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(rating), 0)
		FROM feedback
		WHERE pattern_id = ? AND timestamp >= ?`,
		patternID, since).Scan(&recent, &avgRating)
	if err != nil {
		return fmt.Errorf("count recent feedback: %w", err)
	}

	if recent < feedbackMinRecent {
		return nil
	}

	successRate := 0.0
	if total := successCount + failureCount; total > 0 {
		successRate = float64(successCount) / float64(total)
	}
	confidence := successRate*outcomeWeight + (avgRating/ratingScale)*ratingWeight

	now := time.Now().UTC().Format(timeLayout)
	if _, err := s.db.ExecContext(ctx,
		`UPDATE patterns SET confidence = ?, updated_at = ? WHERE id = ?`,
		confidence, now, patternID); err != nil {
		return fmt.Errorf("update blended confidence: %w", err)
	}

	s.logger.Debug("feedback recomputed confidence",
		zap.String("id", patternID),
		zap.Int64("recent_entries", recent),
		zap.Float64("confidence", confidence))
	return nil
}
