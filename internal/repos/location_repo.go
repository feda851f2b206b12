package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"menusync/internal/domain"
)

type LocationRepo struct{ db *sqlx.DB }

func NewLocationRepo(db *sqlx.DB) *LocationRepo { return &LocationRepo{db: db} }

const locationCols = `id, environment, remote_id, name, store_number, address, phone, created_at, updated_at`

func (r *LocationRepo) List(ctx context.Context, env domain.Environment) ([]domain.Location, error) {
	var out []domain.Location
	err := r.db.SelectContext(ctx, &out, `
  SELECT `+locationCols+`
  FROM locations
  WHERE environment = ?
  ORDER BY store_number, name
`, env)
	return out, err
}

func (r *LocationRepo) GetByName(ctx context.Context, env domain.Environment, name string) (domain.Location, error) {
	var l domain.Location
	err := r.db.GetContext(ctx, &l, `SELECT `+locationCols+` FROM locations WHERE environment = ? AND name = ? ORDER BY id LIMIT 1`, env, name)
	return l, err
}

func (r *LocationRepo) upsertTx(ctx context.Context, tx *sqlx.Tx, l domain.Location) (bool, error) {
	existed, err := rowExists(ctx, tx, "locations", l.Environment, l.RemoteID)
	if err != nil {
		return false, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO locations(environment, remote_id, name, store_number, address, phone)
		VALUES(?,?,?,?,?,?)
		ON CONFLICT(environment, remote_id) DO UPDATE SET
		  name = excluded.name,
		  store_number = excluded.store_number,
		  address = excluded.address,
		  phone = excluded.phone,
		  updated_at = CURRENT_TIMESTAMP
	`, l.Environment, l.RemoteID, l.Name, l.StoreNumber, l.Address, l.Phone)
	return existed, err
}
