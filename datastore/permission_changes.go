package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/coreybb/dispatch/models"
	"github.com/oklog/ulid/v2"
)

var permissionSchema = map[string][]string{
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS permission_changes (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			subject_admin_id TEXT NOT NULL,
			changed_by TEXT NOT NULL,
			action TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			recorded_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_permission_changes_subject ON permission_changes (subject_admin_id, seq)`,
	},
	DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS permission_changes (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			subject_admin_id TEXT NOT NULL,
			changed_by TEXT NOT NULL,
			action TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			recorded_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_permission_changes_subject ON permission_changes (subject_admin_id, seq)`,
	},
}

// EnsurePermissionSchema creates the audit table and its index if missing.
func EnsurePermissionSchema(ctx context.Context, db *sql.DB, driver string) error {
	stmts, ok := permissionSchema[driver]
	if !ok {
		return fmt.Errorf("unsupported database driver %q", driver)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply permission schema: %w", err)
		}
	}
	return nil
}

// PermissionChangeRepository is the append-only administrator audit trail.
// Entries are never updated or deleted.
type PermissionChangeRepository struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

func NewPermissionChangeRepository(db *sql.DB, driver string) *PermissionChangeRepository {
	return &PermissionChangeRepository{
		db:     db,
		driver: driver,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Append validates and stores one entry, filling ID and Timestamp when unset.
func (r *PermissionChangeRepository) Append(ctx context.Context, change *models.PermissionChange) error {
	change.SubjectAdminID = strings.TrimSpace(change.SubjectAdminID)
	change.ChangedBy = strings.TrimSpace(change.ChangedBy)
	if change.SubjectAdminID == "" {
		return fmt.Errorf("%w: subject admin id is required", models.ErrValidation)
	}
	if change.ChangedBy == "" {
		return fmt.Errorf("%w: changed by is required", models.ErrValidation)
	}
	action, ok := models.IsValidPermissionAction(string(change.Action))
	if !ok {
		return fmt.Errorf("%w: invalid permission action %q", models.ErrValidation, change.Action)
	}
	change.Action = action
	if change.ID == "" {
		change.ID = ulid.Make().String()
	}
	if change.Timestamp.IsZero() {
		change.Timestamp = r.now()
	}
	change.Timestamp = change.Timestamp.UTC().Truncate(time.Millisecond)

	query := rebind(r.driver, `
		INSERT INTO permission_changes (id, subject_admin_id, changed_by, action, details, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query,
		change.ID, change.SubjectAdminID, change.ChangedBy, string(change.Action), change.Details, toMillis(change.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to insert permission change: %w", err)
	}
	return nil
}

// List returns entries oldest first. An empty subjectAdminID lists every
// administrator; a non-positive limit means no limit.
func (r *PermissionChangeRepository) List(ctx context.Context, subjectAdminID string, limit int) ([]models.PermissionChange, error) {
	var (
		conds []string
		args  []any
	)
	if s := strings.TrimSpace(subjectAdminID); s != "" {
		conds = append(conds, "subject_admin_id = ?")
		args = append(args, s)
	}

	query := `SELECT id, subject_admin_id, changed_by, action, details, recorded_at FROM permission_changes`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY seq ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, rebind(r.driver, query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query permission changes: %w", err)
	}
	defer rows.Close()

	changes := []models.PermissionChange{}
	for rows.Next() {
		var (
			c        models.PermissionChange
			action   string
			recorded int64
		)
		if err := rows.Scan(&c.ID, &c.SubjectAdminID, &c.ChangedBy, &action, &c.Details, &recorded); err != nil {
			return nil, fmt.Errorf("failed to scan permission change row: %w", err)
		}
		c.Action = models.PermissionAction(action)
		c.Timestamp = fromMillis(recorded)
		changes = append(changes, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating permission change rows: %w", err)
	}
	return changes, nil
}
