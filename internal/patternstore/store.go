package patternstore

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/jscraik/cortexdx/internal/anonymize"
	"github.com/jscraik/cortexdx/internal/crypto"
)

// timeLayout is the persisted timestamp format. RFC 3339 in UTC compares
// lexicographically, which the cutoff queries rely on.
const timeLayout = time.RFC3339Nano

// Config configures the store.
type Config struct {
	// Path is the SQLite database file. Parent directories are created.
	Path string `koanf:"path"`

	// EncryptionKey is an optional hex-encoded 32-byte key. When empty the
	// cipher falls back to the environment and then to a process-lifetime
	// generated key.
	EncryptionKey string `koanf:"encryption_key"`
}

// Store is the SQLite-backed implementation of Capability.
type Store struct {
	db     *sql.DB
	cipher *crypto.Cipher
	logger *zap.Logger

	// warned tracks pattern ids whose decrypt failure was already logged,
	// one log line per id instead of one per read.
	mu     sync.Mutex
	warned map[string]struct{}
}

var _ Capability = (*Store)(nil)

// New opens (creating if needed) the database at cfg.Path and returns a
// ready store. The keyring owns the generated-key fallback for this store's
// cipher; callers that need cross-process decryption must configure a key.
func New(cfg Config, ring *crypto.Keyring, logger *zap.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var explicit []byte
	if cfg.EncryptionKey != "" {
		key, err := hex.DecodeString(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("%w: encryption_key is not valid hex", crypto.ErrInvalidKey)
		}
		explicit = key
	}

	cipher, err := crypto.New(explicit, ring)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	dsn := "file:" + cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single-writer usage model: serialize all access through one
	// connection so counter updates cannot interleave.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{
		db:     db,
		cipher: cipher,
		logger: logger,
		warned: make(map[string]struct{}),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Save anonymizes the pattern's signature and solution, encrypts the
// solution payload, and upserts the row by id. Saving an existing id
// overwrites the row and bumps updated_at. The passed pattern is mutated to
// reflect the anonymized, persisted state.
func (s *Store) Save(ctx context.Context, pattern *ResolutionPattern) error {
	if pattern == nil {
		return ErrInvalidPattern
	}
	if pattern.ProblemSignature == "" {
		return ErrEmptySignature
	}
	if pattern.ID == "" {
		pattern.ID = uuid.New().String()
	}
	if pattern.ProblemType == "" {
		pattern.ProblemType = ProblemOther
	}

	pattern.ProblemSignature = anonymize.Text(pattern.ProblemSignature)

	solution, err := anonymizeSolution(pattern.Solution)
	if err != nil {
		return fmt.Errorf("anonymize solution: %w", err)
	}
	pattern.Solution = solution

	payload, err := json.Marshal(solution)
	if err != nil {
		return fmt.Errorf("marshal solution: %w", err)
	}
	envelope, err := s.cipher.Encrypt(string(payload))
	if err != nil {
		return fmt.Errorf("encrypt solution: %w", err)
	}

	now := time.Now().UTC()
	if pattern.CreatedAt.IsZero() {
		pattern.CreatedAt = now
	}
	if pattern.LastUsed.IsZero() {
		pattern.LastUsed = now
	}
	pattern.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO patterns (
			id, problem_type, problem_signature, solution_data,
			success_count, failure_count, average_resolution_time,
			confidence, last_used, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			problem_type = excluded.problem_type,
			problem_signature = excluded.problem_signature,
			solution_data = excluded.solution_data,
			success_count = excluded.success_count,
			failure_count = excluded.failure_count,
			average_resolution_time = excluded.average_resolution_time,
			confidence = excluded.confidence,
			last_used = excluded.last_used,
			updated_at = excluded.updated_at`,
		pattern.ID,
		string(pattern.ProblemType),
		pattern.ProblemSignature,
		envelope,
		pattern.SuccessCount,
		pattern.FailureCount,
		pattern.AverageResolutionTime,
		pattern.Confidence,
		pattern.LastUsed.UTC().Format(timeLayout),
		pattern.CreatedAt.UTC().Format(timeLayout),
		pattern.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert pattern: %w", err)
	}

	s.logger.Debug("pattern saved",
		zap.String("id", pattern.ID),
		zap.String("problem_type", string(pattern.ProblemType)))
	return nil
}

const patternColumns = `id, problem_type, problem_signature, solution_data,
	success_count, failure_count, average_resolution_time,
	confidence, last_used, created_at, updated_at`

// Load returns the pattern with the given id, or ErrPatternNotFound. A row
// whose solution cannot be decrypted is returned with a placeholder
// solution rather than failing the read.
func (s *Store) Load(ctx context.Context, id string) (*ResolutionPattern, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+patternColumns+` FROM patterns WHERE id = ?`, id)

	pattern, err := s.scanPattern(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrPatternNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return pattern, nil
}

// LoadAll returns every stored pattern. Each row degrades independently:
// one undecryptable solution never aborts the batch.
func (s *Store) LoadAll(ctx context.Context) ([]ResolutionPattern, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+patternColumns+` FROM patterns`)
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	defer rows.Close()

	return s.collectPatterns(rows)
}

// PruneOlderThan deletes every pattern whose last_used predates the cutoff
// and returns the number removed. Feedback rows cascade with their pattern.
func (s *Store) PruneOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(timeLayout)

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM patterns WHERE last_used < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune patterns: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}

	if removed > 0 {
		s.logger.Info("pruned stale patterns",
			zap.Int64("removed", removed),
			zap.Duration("max_age", maxAge))
	}
	return removed, nil
}

// scanner matches *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanPattern decodes one row, degrading the solution independently.
func (s *Store) scanPattern(sc scanner) (*ResolutionPattern, error) {
	var (
		p                          ResolutionPattern
		problemType                string
		payload                    string
		lastUsed, created, updated string
	)
	if err := sc.Scan(
		&p.ID, &problemType, &p.ProblemSignature, &payload,
		&p.SuccessCount, &p.FailureCount, &p.AverageResolutionTime,
		&p.Confidence, &lastUsed, &created, &updated,
	); err != nil {
		return nil, err
	}

	p.ProblemType = ProblemType(problemType)
	p.Solution = s.decodeSolution(p.ID, payload)
	p.LastUsed = parseTime(lastUsed)
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

// collectPatterns drains rows with the per-row degrade contract.
func (s *Store) collectPatterns(rows *sql.Rows) ([]ResolutionPattern, error) {
	patterns := make([]ResolutionPattern, 0)
	for rows.Next() {
		p, err := s.scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		patterns = append(patterns, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patterns: %w", err)
	}
	return patterns, nil
}

// decodeSolution turns a stored payload back into a Solution. Valid
// ciphertext decrypts; payloads from before encryption parse as legacy
// plaintext; anything else degrades to a placeholder so historical
// corruption never crashes a caller. Failures are logged once per id.
func (s *Store) decodeSolution(id, payload string) Solution {
	res := s.cipher.Decode(payload)

	switch res.Outcome {
	case crypto.OutcomeDecrypted, crypto.OutcomeLegacyPlaintext:
		var solution Solution
		if err := json.Unmarshal([]byte(res.Plaintext), &solution); err == nil {
			return solution
		}
		s.warnOnce(id, errors.New("payload is neither a valid envelope nor legacy solution JSON"))
	case crypto.OutcomeUnrecoverable:
		s.warnOnce(id, res.Err)
	}

	return placeholderSolution()
}

// placeholderSolution stands in for solutions that could not be read.
func placeholderSolution() Solution {
	return Solution{
		Description: "solution data could not be decrypted; re-record this pattern",
	}
}

// warnOnce logs a decode failure the first time it is seen for a pattern id.
func (s *Store) warnOnce(id string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.warned[id]; seen {
		return
	}
	s.warned[id] = struct{}{}
	s.logger.Warn("unreadable solution payload, serving placeholder",
		zap.String("id", id),
		zap.Error(cause))
}

// anonymizeSolution runs the solution through the structure anonymizer via
// a JSON round-trip, covering every nested field with one rule set.
func anonymizeSolution(solution Solution) (Solution, error) {
	raw, err := json.Marshal(solution)
	if err != nil {
		return Solution{}, err
	}
	var shaped any
	if err := json.Unmarshal(raw, &shaped); err != nil {
		return Solution{}, err
	}

	clean, err := json.Marshal(anonymize.Structure(shaped))
	if err != nil {
		return Solution{}, err
	}
	var out Solution
	if err := json.Unmarshal(clean, &out); err != nil {
		return Solution{}, err
	}
	return out, nil
}

// parseTime reads a persisted timestamp, returning the zero time on
// malformed input rather than failing the row.
func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
