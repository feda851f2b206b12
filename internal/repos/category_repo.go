package repos

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"menusync/internal/domain"
)

type CategoryRepo struct{ db *sqlx.DB }

func NewCategoryRepo(db *sqlx.DB) *CategoryRepo { return &CategoryRepo{db: db} }

const categoryCols = `id, environment, remote_id, name, description, version, created_at, updated_at`

func (r *CategoryRepo) List(ctx context.Context, env domain.Environment) ([]domain.Category, error) {
	var out []domain.Category
	err := r.db.SelectContext(ctx, &out, `
  SELECT `+categoryCols+`
  FROM categories
  WHERE environment = ?
  ORDER BY name
`, env)
	return out, err
}

// GetByName returns sql.ErrNoRows when absent.
func (r *CategoryRepo) GetByName(ctx context.Context, env domain.Environment, name string) (domain.Category, error) {
	var c domain.Category
	err := r.db.GetContext(ctx, &c, `SELECT `+categoryCols+` FROM categories WHERE environment = ? AND name = ?`, env, name)
	return c, err
}

func (r *CategoryRepo) upsertTx(ctx context.Context, tx *sqlx.Tx, c domain.Category) (bool, error) {
	existed, err := rowExists(ctx, tx, "categories", c.Environment, c.RemoteID)
	if err != nil {
		return false, err
	}
	// a name maps to one remote id; drop the stale row when it is re-pointed
	if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE environment = ? AND name = ? AND remote_id <> ?`,
		c.Environment, c.Name, c.RemoteID); err != nil {
		return false, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO categories(environment, remote_id, name, description, version)
		VALUES(?,?,?,?,?)
		ON CONFLICT(environment, remote_id) DO UPDATE SET
		  name = excluded.name,
		  description = excluded.description,
		  version = excluded.version,
		  updated_at = CURRENT_TIMESTAMP
	`, c.Environment, c.RemoteID, c.Name, c.Description, c.Version)
	return existed, err
}

// rowExists checks an (environment, remote_id) keyed table.
func rowExists(ctx context.Context, tx *sqlx.Tx, table string, env domain.Environment, remoteID string) (bool, error) {
	var one int
	err := tx.GetContext(ctx, &one, `SELECT 1 FROM `+table+` WHERE environment = ? AND remote_id = ?`, env, remoteID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func deleteTx(ctx context.Context, tx *sqlx.Tx, table string, env domain.Environment, remoteID string) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE environment = ? AND remote_id = ?`, env, remoteID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
