package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all memberAuth tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS membership_levels (
		id                         INTEGER PRIMARY KEY,
		alias                      TEXT NOT NULL,
		role                       TEXT NOT NULL DEFAULT '',
		subscription_period        INTEGER NOT NULL DEFAULT 0,
		subscription_duration_type TEXT NOT NULL DEFAULT '',
		capabilities               TEXT NOT NULL DEFAULT '[]',
		attributes                 TEXT NOT NULL DEFAULT '{}'
	)`,

	`CREATE TABLE IF NOT EXISTS members (
		member_id             INTEGER PRIMARY KEY AUTOINCREMENT,
		user_name             TEXT NOT NULL UNIQUE,
		email                 TEXT NOT NULL DEFAULT '',
		first_name            TEXT NOT NULL DEFAULT '',
		last_name             TEXT NOT NULL DEFAULT '',
		password              TEXT NOT NULL,
		account_state         TEXT NOT NULL DEFAULT 'active',
		membership_level      INTEGER NOT NULL DEFAULT 0,
		subscription_starts   TEXT NOT NULL DEFAULT '',
		last_accessed         TEXT NOT NULL DEFAULT '',
		last_accessed_from_ip TEXT NOT NULL DEFAULT '',
		extra                 TEXT NOT NULL DEFAULT '{}',
		created_at            TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_members_email ON members(email COLLATE NOCASE)`,
	`CREATE INDEX IF NOT EXISTS idx_members_state ON members(account_state)`,

	`CREATE TABLE IF NOT EXISTS site_secrets (
		scheme     TEXT PRIMARY KEY,
		secret     BLOB NOT NULL,
		rotated_at TEXT NOT NULL
	)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string
}{
	{
		table:    "members",
		column:   "extra",
		alterSQL: "ALTER TABLE members ADD COLUMN extra TEXT NOT NULL DEFAULT '{}'",
	},
}

// migrate executes all schema DDL statements and alter migrations.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}

	return nil
}

func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, alterSQL)
	return err
}
