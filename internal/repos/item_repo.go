package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"menusync/internal/domain"
)

type ItemRepo struct{ db *sqlx.DB }

func NewItemRepo(db *sqlx.DB) *ItemRepo { return &ItemRepo{db: db} }

const itemCols = `id, environment, remote_id, name, category_remote_id, description, price_amount,
    image_remote_id, source_url, version, created_at, updated_at`

func (r *ItemRepo) List(ctx context.Context, env domain.Environment) ([]domain.Item, error) {
	var out []domain.Item
	if err := r.db.SelectContext(ctx, &out, `
  SELECT `+itemCols+`
  FROM menu_items
  WHERE environment = ?
  ORDER BY name
`, env); err != nil {
		return nil, err
	}
	for i := range out {
		vs, err := r.Variations(ctx, env, out[i].RemoteID)
		if err != nil {
			return nil, err
		}
		out[i].Variations = vs
	}
	return out, nil
}

// GetByName returns the item with its variations, or sql.ErrNoRows.
func (r *ItemRepo) GetByName(ctx context.Context, env domain.Environment, name string) (domain.Item, error) {
	var it domain.Item
	if err := r.db.GetContext(ctx, &it, `SELECT `+itemCols+` FROM menu_items WHERE environment = ? AND name = ?`, env, name); err != nil {
		return it, err
	}
	vs, err := r.Variations(ctx, env, it.RemoteID)
	it.Variations = vs
	return it, err
}

func (r *ItemRepo) Variations(ctx context.Context, env domain.Environment, itemRemoteID string) ([]domain.Variation, error) {
	var out []domain.Variation
	err := r.db.SelectContext(ctx, &out, `
  SELECT environment, remote_id, item_remote_id, name, pricing_mode, price_amount, currency_code, version
  FROM item_variations
  WHERE environment = ? AND item_remote_id = ?
  ORDER BY rowid
`, env, itemRemoteID)
	return out, err
}

func (r *ItemRepo) upsertTx(ctx context.Context, tx *sqlx.Tx, it domain.Item) (bool, error) {
	existed, err := rowExists(ctx, tx, "menu_items", it.Environment, it.RemoteID)
	if err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM menu_items WHERE environment = ? AND name = ? AND remote_id <> ?`,
		it.Environment, it.Name, it.RemoteID); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO menu_items(environment, remote_id, name, category_remote_id, description, price_amount,
		                       image_remote_id, source_url, version)
		VALUES(?,?,?,?,?,?,?,?,?)
		ON CONFLICT(environment, remote_id) DO UPDATE SET
		  name = excluded.name,
		  category_remote_id = excluded.category_remote_id,
		  description = excluded.description,
		  price_amount = excluded.price_amount,
		  image_remote_id = excluded.image_remote_id,
		  source_url = excluded.source_url,
		  version = excluded.version,
		  updated_at = CURRENT_TIMESTAMP
	`, it.Environment, it.RemoteID, it.Name, it.CategoryRemoteID, it.Description, it.PriceAmount,
		it.ImageRemoteID, it.SourceURL, it.Version); err != nil {
		return false, err
	}

	// variations are replaced wholesale; they belong to this item only
	if _, err := tx.ExecContext(ctx, `DELETE FROM item_variations WHERE environment = ? AND item_remote_id = ?`,
		it.Environment, it.RemoteID); err != nil {
		return false, err
	}
	for _, v := range it.Variations {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO item_variations(environment, remote_id, item_remote_id, name, pricing_mode, price_amount, currency_code, version)
			VALUES(?,?,?,?,?,?,?,?)
			ON CONFLICT(environment, remote_id) DO UPDATE SET
			  item_remote_id = excluded.item_remote_id,
			  name = excluded.name,
			  pricing_mode = excluded.pricing_mode,
			  price_amount = excluded.price_amount,
			  currency_code = excluded.currency_code,
			  version = excluded.version
		`, it.Environment, v.RemoteID, it.RemoteID, v.Name, v.PricingMode, v.PriceAmount, v.CurrencyCode, v.Version); err != nil {
			return false, err
		}
	}
	return existed, nil
}
