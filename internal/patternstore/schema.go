package patternstore

import (
	"database/sql"
	"fmt"
)

// migration is a single versioned schema change.
type migration struct {
	version int
	name    string
	stmts   []string
}

// migrations are applied in order at store construction. The required
// indexes on problem_type, confidence, and last_used keep ranked retrieval
// and pruning from scanning the whole table; feedback.pattern_id backs the
// recent-feedback window query.
var migrations = []migration{
	{
		version: 1,
		name:    "initial_schema",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS patterns (
				id TEXT PRIMARY KEY,
				problem_type TEXT NOT NULL,
				problem_signature TEXT NOT NULL,
				solution_data TEXT NOT NULL,
				success_count INTEGER NOT NULL DEFAULT 0,
				failure_count INTEGER NOT NULL DEFAULT 0,
				average_resolution_time REAL NOT NULL DEFAULT 0,
				confidence REAL NOT NULL DEFAULT 0,
				last_used TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_patterns_problem_type ON patterns(problem_type)`,
			`CREATE INDEX IF NOT EXISTS idx_patterns_confidence ON patterns(confidence DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_patterns_last_used ON patterns(last_used DESC)`,
			`CREATE TABLE IF NOT EXISTS feedback (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				pattern_id TEXT NOT NULL REFERENCES patterns(id) ON DELETE CASCADE,
				timestamp TEXT NOT NULL,
				user_id_hash TEXT,
				rating INTEGER NOT NULL,
				successful INTEGER NOT NULL,
				comments TEXT,
				context TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_feedback_pattern ON feedback(pattern_id)`,
			`CREATE TABLE IF NOT EXISTS common_issues (
				signature TEXT PRIMARY KEY,
				occurrences INTEGER NOT NULL DEFAULT 1,
				solutions TEXT NOT NULL DEFAULT '[]',
				contexts TEXT NOT NULL DEFAULT '[]',
				first_seen TEXT NOT NULL,
				last_seen TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_common_issues_occurrences ON common_issues(occurrences DESC)`,
		},
	},
}

// migrate brings the schema up to the latest version.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		for _, stmt := range m.stmts {
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
			}
		}
		if _, err := db.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}
