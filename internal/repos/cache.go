package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"menusync/internal/domain"
	"menusync/internal/errs"
)

var tables = map[domain.EntityType]string{
	domain.EntityCategory: "categories",
	domain.EntityItem:     "menu_items",
	domain.EntityImage:    "images",
	domain.EntityLocation: "locations",
}

// Cache is the local (environment, name) -> remote id mirror. Every write
// commits together with exactly one sync_log row or not at all.
type Cache struct {
	db *sqlx.DB

	Categories *CategoryRepo
	Items      *ItemRepo
	Images     *ImageRepo
	Locations  *LocationRepo
	SyncLog    *SyncLogRepo
}

func NewCache(db *sqlx.DB) *Cache {
	return &Cache{
		db:         db,
		Categories: NewCategoryRepo(db),
		Items:      NewItemRepo(db),
		Images:     NewImageRepo(db),
		Locations:  NewLocationRepo(db),
		SyncLog:    NewSyncLogRepo(db),
	}
}

// Get returns the cached remote id for name. Images are keyed by source URL.
func (c *Cache) Get(ctx context.Context, env domain.Environment, typ domain.EntityType, name string) (string, bool, error) {
	var (
		id  string
		err error
	)
	switch typ {
	case domain.EntityCategory:
		var v domain.Category
		v, err = c.Categories.GetByName(ctx, env, name)
		id = v.RemoteID
	case domain.EntityItem:
		var v domain.Item
		v, err = c.Items.GetByName(ctx, env, name)
		id = v.RemoteID
	case domain.EntityImage:
		var v domain.Image
		v, err = c.Images.GetBySource(ctx, env, name)
		id = v.RemoteID
	case domain.EntityLocation:
		var v domain.Location
		v, err = c.Locations.GetByName(ctx, env, name)
		id = v.RemoteID
	default:
		return "", false, fmt.Errorf("unknown entity type %q", typ)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.Persist("get "+string(typ), err)
	}
	return id, true, nil
}

func (c *Cache) UpsertCategory(ctx context.Context, v domain.Category) (domain.SyncOperation, error) {
	return c.write(ctx, v.Environment, domain.EntityCategory, v.RemoteID, func(tx *sqlx.Tx) (bool, error) {
		return c.Categories.upsertTx(ctx, tx, v)
	})
}

func (c *Cache) UpsertItem(ctx context.Context, v domain.Item) (domain.SyncOperation, error) {
	return c.write(ctx, v.Environment, domain.EntityItem, v.RemoteID, func(tx *sqlx.Tx) (bool, error) {
		return c.Items.upsertTx(ctx, tx, v)
	})
}

func (c *Cache) UpsertImage(ctx context.Context, v domain.Image) (domain.SyncOperation, error) {
	return c.write(ctx, v.Environment, domain.EntityImage, v.RemoteID, func(tx *sqlx.Tx) (bool, error) {
		return c.Images.upsertTx(ctx, tx, v)
	})
}

func (c *Cache) UpsertLocation(ctx context.Context, v domain.Location) (domain.SyncOperation, error) {
	return c.write(ctx, v.Environment, domain.EntityLocation, v.RemoteID, func(tx *sqlx.Tx) (bool, error) {
		return c.Locations.upsertTx(ctx, tx, v)
	})
}

// Delete removes the row for remoteID and logs a delete. The log entry is
// written even when no row was cached, since it records the remote deletion.
func (c *Cache) Delete(ctx context.Context, env domain.Environment, typ domain.EntityType, remoteID string) error {
	table, ok := tables[typ]
	if !ok {
		return fmt.Errorf("unknown entity type %q", typ)
	}
	op := "delete " + string(typ)
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return errs.Persist(op, err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := deleteTx(ctx, tx, table, env, remoteID); err != nil {
		return errs.Persist(op, err)
	}
	if err := appendLogTx(ctx, tx, domain.SyncLogEntry{
		Environment: env, Operation: domain.OpDelete, ObjectType: typ, RemoteID: remoteID,
	}); err != nil {
		return errs.Persist(op, err)
	}
	return errs.Persist(op, tx.Commit())
}

func (c *Cache) write(ctx context.Context, env domain.Environment, typ domain.EntityType, remoteID string, fn func(*sqlx.Tx) (bool, error)) (domain.SyncOperation, error) {
	op := "upsert " + string(typ)
	if remoteID == "" {
		return "", errs.Persist(op, errors.New("empty remote id"))
	}
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", errs.Persist(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	existed, err := fn(tx)
	if err != nil {
		return "", errs.Persist(op, err)
	}
	sop := domain.OpCreate
	if existed {
		sop = domain.OpUpdate
	}
	if err := appendLogTx(ctx, tx, domain.SyncLogEntry{
		Environment: env, Operation: sop, ObjectType: typ, RemoteID: remoteID,
	}); err != nil {
		return "", errs.Persist(op, err)
	}
	if err := tx.Commit(); err != nil {
		return "", errs.Persist(op, err)
	}
	return sop, nil
}

// Snapshot flattens categories and items to name -> remote id maps.
func (c *Cache) Snapshot(ctx context.Context, env domain.Environment) (domain.Snapshot, error) {
	snap := domain.Snapshot{Categories: map[string]string{}, Items: map[string]string{}}
	type pair struct {
		Name     string `db:"name"`
		RemoteID string `db:"remote_id"`
	}
	for table, dst := range map[string]map[string]string{"categories": snap.Categories, "menu_items": snap.Items} {
		var rows []pair
		if err := c.db.SelectContext(ctx, &rows, `SELECT name, remote_id FROM `+table+` WHERE environment = ?`, env); err != nil {
			return domain.Snapshot{}, errs.Persist("snapshot", err)
		}
		for _, p := range rows {
			dst[p.Name] = p.RemoteID
		}
	}
	return snap, nil
}

func (c *Cache) Summary(ctx context.Context, env domain.Environment) (domain.Summary, error) {
	s := domain.Summary{Environment: env}
	counts := []struct {
		dst   *int
		query string
	}{
		{&s.Locations, `SELECT COUNT(*) FROM locations WHERE environment = ?`},
		{&s.Categories, `SELECT COUNT(*) FROM categories WHERE environment = ?`},
		{&s.Items, `SELECT COUNT(*) FROM menu_items WHERE environment = ?`},
		{&s.Variations, `SELECT COUNT(*) FROM item_variations WHERE environment = ?`},
		{&s.Images, `SELECT COUNT(*) FROM images WHERE environment = ?`},
		{&s.SyncLog, `SELECT COUNT(*) FROM sync_log WHERE environment = ?`},
	}
	for _, q := range counts {
		if err := c.db.GetContext(ctx, q.dst, q.query, env); err != nil {
			return domain.Summary{}, errs.Persist("summary", err)
		}
	}
	return s, nil
}

// SummaryAll returns one Summary per known environment.
func (c *Cache) SummaryAll(ctx context.Context) ([]domain.Summary, error) {
	out := make([]domain.Summary, 0, len(domain.Environments))
	for _, env := range domain.Environments {
		s, err := c.Summary(ctx, env)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
