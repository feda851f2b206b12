package repos

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func OpenDB(dsn string) (*sqlx.DB, error) {
	if err := ensureDir(dsn); err != nil {
		return nil, err
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one connection: keeps :memory: databases alive and the foreign_keys pragma in effect
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

func ensureDir(dsn string) error {
	if dsn == "" || strings.HasPrefix(dsn, ":memory:") || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;

-- Locations
CREATE TABLE IF NOT EXISTS locations(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  environment TEXT NOT NULL CHECK (environment IN ('sandbox','production')),
  remote_id TEXT NOT NULL,
  name TEXT NOT NULL,
  store_number TEXT NOT NULL DEFAULT '',
  address TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT NOT NULL DEFAULT '',
  UNIQUE(environment, remote_id)
);

-- Categories
CREATE TABLE IF NOT EXISTS categories(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  environment TEXT NOT NULL CHECK (environment IN ('sandbox','production')),
  remote_id TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  version INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT NOT NULL DEFAULT '',
  UNIQUE(environment, remote_id),
  UNIQUE(environment, name)
);

-- Images
CREATE TABLE IF NOT EXISTS images(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  environment TEXT NOT NULL CHECK (environment IN ('sandbox','production')),
  remote_id TEXT NOT NULL,
  source_url TEXT NOT NULL DEFAULT '',
  local_path TEXT NOT NULL DEFAULT '',
  downloaded_at TEXT NOT NULL DEFAULT '',
  uploaded_at TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(environment, remote_id)
);
CREATE INDEX IF NOT EXISTS idx_images_source ON images(environment, source_url);

-- Menu items
CREATE TABLE IF NOT EXISTS menu_items(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  environment TEXT NOT NULL CHECK (environment IN ('sandbox','production')),
  remote_id TEXT NOT NULL,
  name TEXT NOT NULL,
  category_remote_id TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  price_amount INTEGER NOT NULL DEFAULT 0 CHECK (price_amount >= 0),
  image_remote_id TEXT NOT NULL DEFAULT '',
  source_url TEXT NOT NULL DEFAULT '',
  version INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT NOT NULL DEFAULT '',
  UNIQUE(environment, remote_id),
  UNIQUE(environment, name)
);
CREATE INDEX IF NOT EXISTS idx_menu_items_category ON menu_items(environment, category_remote_id);

-- Item variations, owned by their menu item
CREATE TABLE IF NOT EXISTS item_variations(
  environment TEXT NOT NULL,
  remote_id TEXT NOT NULL,
  item_remote_id TEXT NOT NULL,
  name TEXT NOT NULL,
  pricing_mode TEXT NOT NULL DEFAULT 'FIXED_PRICING',
  price_amount INTEGER NOT NULL DEFAULT 0,
  currency_code TEXT NOT NULL DEFAULT 'USD',
  version INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY(environment, remote_id),
  FOREIGN KEY(environment, item_remote_id) REFERENCES menu_items(environment, remote_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_item_variations_item ON item_variations(environment, item_remote_id);

-- Sync log (append only)
CREATE TABLE IF NOT EXISTS sync_log(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  environment TEXT NOT NULL,
  operation TEXT NOT NULL CHECK (operation IN ('create','update','delete')),
  object_type TEXT NOT NULL,
  remote_id TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL CHECK (status IN ('success','error')),
  error_message TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_sync_log_env ON sync_log(environment, id);
`
	_, err := db.Exec(schema)
	return err
}
