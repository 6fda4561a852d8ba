package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go embedded SQLite driver
)

// migration is one linear, versioned schema step (spec §4.5). Migrations
// apply in order on startup; failure aborts startup (spec §7).
type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{1, `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			channel TEXT NOT NULL,
			user_id TEXT NOT NULL,
			authority_tier TEXT NOT NULL,
			conversation TEXT NOT NULL DEFAULT '[]',
			metadata TEXT NOT NULL DEFAULT '{}',
			active_task_id TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			last_active DATETIME NOT NULL,
			UNIQUE(channel, user_id)
		);
		CREATE TABLE IF NOT EXISTS tasks (
			task_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			goal TEXT NOT NULL,
			status TEXT NOT NULL,
			plan_json TEXT NOT NULL DEFAULT '',
			result TEXT NOT NULL DEFAULT '',
			tokens INTEGER NOT NULL DEFAULT 0,
			cost_usd REAL NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL,
			completed_at DATETIME
		);
		CREATE TABLE IF NOT EXISTS goals (
			goal_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			goal TEXT NOT NULL,
			status TEXT NOT NULL,
			context_summary TEXT NOT NULL DEFAULT '',
			current_checkpoint INTEGER NOT NULL DEFAULT 0,
			total_checkpoints INTEGER NOT NULL DEFAULT 0,
			attempts INTEGER NOT NULL DEFAULT 0,
			max_attempts INTEGER NOT NULL DEFAULT 0,
			llm_calls_used INTEGER NOT NULL DEFAULT 0,
			cost_usd REAL NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS checkpoints (
			goal_id TEXT NOT NULL,
			"order" INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			success_criteria TEXT NOT NULL,
			status TEXT NOT NULL,
			result_summary TEXT NOT NULL DEFAULT '',
			attempts INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME,
			completed_at DATETIME,
			PRIMARY KEY (goal_id, "order")
		);
		CREATE TABLE IF NOT EXISTS approvals (
			id TEXT PRIMARY KEY,
			tool_name TEXT NOT NULL,
			params_json TEXT NOT NULL DEFAULT '',
			context TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			session_id TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			resolved_at DATETIME,
			timeout_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			session_id TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL,
			outcome TEXT NOT NULL,
			embedding BLOB,
			created_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS knowledge_chunks (
			id TEXT PRIMARY KEY,
			file_path TEXT NOT NULL,
			heading_path TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			embedding BLOB,
			updated_at DATETIME NOT NULL
		);
		CREATE VIRTUAL TABLE IF NOT EXISTS knowledge_chunks_fts USING fts5(
			content, content='knowledge_chunks', content_rowid='rowid'
		);
		CREATE TABLE IF NOT EXISTS identity (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			creator TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			purpose TEXT NOT NULL DEFAULT '',
			values_json TEXT NOT NULL DEFAULT '[]',
			beliefs_json TEXT NOT NULL DEFAULT '[]',
			curiosities_json TEXT NOT NULL DEFAULT '[]',
			boundaries_json TEXT NOT NULL DEFAULT '[]',
			capabilities_json TEXT NOT NULL DEFAULT '[]',
			personality TEXT NOT NULL DEFAULT '',
			communication_style TEXT NOT NULL DEFAULT '',
			version INTEGER NOT NULL DEFAULT 1,
			updated_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS identity_evolution (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trigger TEXT NOT NULL,
			field TEXT NOT NULL,
			old_value TEXT NOT NULL,
			new_value TEXT NOT NULL,
			reason TEXT NOT NULL,
			confidence REAL NOT NULL,
			created_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS llm_usage (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL,
			provider TEXT NOT NULL,
			in_tokens INTEGER NOT NULL,
			out_tokens INTEGER NOT NULL,
			cost_usd REAL NOT NULL,
			finish_reason TEXT NOT NULL DEFAULT '',
			latency_ms INTEGER NOT NULL DEFAULT 0,
			fallback_from TEXT NOT NULL DEFAULT '',
			suspected_truncated INTEGER NOT NULL DEFAULT 0,
			task_type TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS scheduled_tasks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			schedule_expr TEXT NOT NULL,
			goal TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			last_run DATETIME,
			next_run DATETIME
		);
		CREATE TABLE IF NOT EXISTS payment_audit (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts DATETIME NOT NULL,
			tool TEXT NOT NULL,
			amount REAL NOT NULL,
			currency TEXT NOT NULL,
			recipient TEXT NOT NULL,
			provider TEXT NOT NULL,
			chain TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			approval_id TEXT NOT NULL DEFAULT '',
			session_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			task_context TEXT NOT NULL DEFAULT '',
			tx_ref TEXT NOT NULL DEFAULT '',
			fee REAL NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS mind_scratchpad (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			version INTEGER NOT NULL DEFAULT 0,
			markdown TEXT NOT NULL DEFAULT '',
			updated_at DATETIME NOT NULL
		);
	`},
}

// OpenSQLite opens (creating if absent) the embedded relational store at
// path, enables WAL mode, and applies every pending migration in order.
func OpenSQLite(path string) (*StoreSet, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single-writer embedded store; WAL allows concurrent readers internally

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: enable WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: enable foreign keys: %w", err)
	}
	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}

	return &StoreSet{
		Sessions:   &sqliteSessionStore{db: db},
		Tasks:      &sqliteTaskStore{db: db},
		Goals:      &sqliteGoalStore{db: db},
		Approvals:  &sqliteApprovalStore{db: db},
		Memories:   &sqliteMemoryStore{db: db},
		Knowledge:  &sqliteKnowledgeStore{db: db},
		Identity:   &sqliteIdentityStore{db: db},
		Usage:      &sqliteUsageStore{db: db},
		Schedules:  &sqliteScheduleStore{db: db},
		Payments:   &sqlitePaymentStore{db: db},
		Scratchpad: &sqliteScratchpadStore{db: db},
		closer:     db.Close,
	}, nil
}

func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return err
	}
	applied := map[int]bool{}
	rows, err := db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	rows.Close()

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, m.version); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func execTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
