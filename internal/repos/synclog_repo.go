package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"menusync/internal/domain"
	"menusync/internal/errs"
)

type SyncLogRepo struct{ db *sqlx.DB }

func NewSyncLogRepo(db *sqlx.DB) *SyncLogRepo { return &SyncLogRepo{db: db} }

// Append records a standalone entry, typically a failed remote operation.
func (r *SyncLogRepo) Append(ctx context.Context, e domain.SyncLogEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errs.Persist("append sync log", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := appendLogTx(ctx, tx, e); err != nil {
		return errs.Persist("append sync log", err)
	}
	return errs.Persist("append sync log", tx.Commit())
}

// Recent returns the newest entries first.
func (r *SyncLogRepo) Recent(ctx context.Context, env domain.Environment, limit int) ([]domain.SyncLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []domain.SyncLogEntry
	err := r.db.SelectContext(ctx, &out, `
  SELECT id, environment, operation, object_type, remote_id, status, error_message, created_at
  FROM sync_log
  WHERE environment = ?
  ORDER BY id DESC
  LIMIT ?
`, env, limit)
	return out, err
}

func appendLogTx(ctx context.Context, tx *sqlx.Tx, e domain.SyncLogEntry) error {
	if e.Status == "" {
		e.Status = domain.StatusSuccess
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sync_log(environment, operation, object_type, remote_id, status, error_message)
		VALUES(?,?,?,?,?,?)
	`, e.Environment, e.Operation, e.ObjectType, e.RemoteID, e.Status, e.ErrorMessage)
	return err
}
