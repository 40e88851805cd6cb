package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// migration holds a single schema migration with its target version.
type migration struct {
	version    int
	statements []string
}

// migrations is the ordered list of schema migrations. The SQL is kept to the
// subset understood by both PostgreSQL and SQLite.
var migrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id         TEXT PRIMARY KEY,
				email      TEXT NOT NULL UNIQUE,
				full_name  TEXT NOT NULL,
				role       TEXT NOT NULL DEFAULT 'user',
				is_active  BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS rooms (
				id              TEXT PRIMARY KEY,
				name            TEXT NOT NULL UNIQUE,
				rented_user_id  TEXT REFERENCES users(id),
				rent_start_date DATE,
				price           NUMERIC(12,2) NOT NULL,
				is_active       BOOLEAN NOT NULL DEFAULT TRUE,
				created_at      TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_rooms_rented_user ON rooms(rented_user_id)`,
		},
	},
	{
		version: 2,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS payment_receipts (
				id                    TEXT PRIMARY KEY,
				user_id               TEXT NOT NULL REFERENCES users(id),
				room_id               TEXT NOT NULL REFERENCES rooms(id),
				payment_month         INTEGER NOT NULL CHECK (payment_month BETWEEN 1 AND 12),
				payment_year          INTEGER NOT NULL,
				amount                NUMERIC(12,2) NOT NULL,
				receipt_file_path     TEXT NOT NULL,
				status                TEXT NOT NULL DEFAULT 'pending',
				description           TEXT,
				rejection_reason      TEXT,
				confirmed_by_admin_id TEXT REFERENCES users(id),
				confirmed_at          TIMESTAMP,
				created_at            TIMESTAMP NOT NULL,
				updated_at            TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_payment_receipts_user ON payment_receipts(user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_payment_receipts_room ON payment_receipts(room_id)`,
			`CREATE INDEX IF NOT EXISTS idx_payment_receipts_status ON payment_receipts(status)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS uq_payment_receipts_approved
				ON payment_receipts(user_id, room_id, payment_month, payment_year)
				WHERE status = 'approved'`,
			`CREATE TABLE IF NOT EXISTS incomes (
				id                    TEXT PRIMARY KEY,
				payment_receipt_id    TEXT NOT NULL UNIQUE REFERENCES payment_receipts(id),
				room_id               TEXT NOT NULL REFERENCES rooms(id),
				user_id               TEXT NOT NULL REFERENCES users(id),
				amount                NUMERIC(12,2) NOT NULL,
				payment_month         INTEGER NOT NULL,
				payment_year          INTEGER NOT NULL,
				description           TEXT NOT NULL,
				confirmed_by_admin_id TEXT NOT NULL REFERENCES users(id),
				created_at            TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_incomes_period ON incomes(payment_year, payment_month)`,
		},
	},
	{
		version: 3,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS notifications (
				id            TEXT PRIMARY KEY,
				user_id       TEXT NOT NULL REFERENCES users(id),
				type          TEXT NOT NULL,
				title         TEXT NOT NULL,
				message       TEXT NOT NULL,
				is_read       BOOLEAN NOT NULL DEFAULT FALSE,
				payment_month INTEGER,
				payment_year  INTEGER,
				created_at    TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, is_read)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS uq_notifications_reminder
				ON notifications(user_id, payment_month, payment_year)
				WHERE type = 'payment_reminder' AND payment_month IS NOT NULL`,
		},
	},
}

// Migrate applies every migration newer than the recorded schema version.
// Each migration runs in its own transaction together with its version row.
func Migrate(ctx context.Context, db *sqlx.DB) (int, error) {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return 0, fmt.Errorf("failed to create schema_version table: %w", err)
	}

	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		err := WithTx(ctx, db, func(tx *sqlx.Tx) error {
			for _, stmt := range m.statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO schema_version (version) VALUES (?)`), m.version)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("failed to apply migration v%d: %w", m.version, err)
		}
		applied++
	}

	return applied, nil
}

// SchemaVersion returns the highest applied migration version, 0 when none.
func SchemaVersion(ctx context.Context, db sqlx.QueryerContext) (int, error) {
	var version int
	if err := sqlx.GetContext(ctx, db, &version, `SELECT COALESCE(MAX(version), 0) FROM schema_version`); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// LatestVersion is the version the schema reaches after Migrate.
func LatestVersion() int {
	return migrations[len(migrations)-1].version
}
