package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"menusync/internal/domain"
)

type ImageRepo struct{ db *sqlx.DB }

func NewImageRepo(db *sqlx.DB) *ImageRepo { return &ImageRepo{db: db} }

const imageCols = `id, environment, remote_id, source_url, local_path, downloaded_at, uploaded_at, created_at`

func (r *ImageRepo) List(ctx context.Context, env domain.Environment) ([]domain.Image, error) {
	var out []domain.Image
	err := r.db.SelectContext(ctx, &out, `SELECT `+imageCols+` FROM images WHERE environment = ? ORDER BY id`, env)
	return out, err
}

// GetBySource returns the most recent upload of sourceURL, or sql.ErrNoRows.
func (r *ImageRepo) GetBySource(ctx context.Context, env domain.Environment, sourceURL string) (domain.Image, error) {
	var im domain.Image
	err := r.db.GetContext(ctx, &im, `
  SELECT `+imageCols+`
  FROM images
  WHERE environment = ? AND source_url = ?
  ORDER BY id DESC
  LIMIT 1
`, env, sourceURL)
	return im, err
}

func (r *ImageRepo) upsertTx(ctx context.Context, tx *sqlx.Tx, im domain.Image) (bool, error) {
	existed, err := rowExists(ctx, tx, "images", im.Environment, im.RemoteID)
	if err != nil {
		return false, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO images(environment, remote_id, source_url, local_path, downloaded_at, uploaded_at)
		VALUES(?,?,?,?,?,?)
		ON CONFLICT(environment, remote_id) DO UPDATE SET
		  source_url = excluded.source_url,
		  local_path = excluded.local_path,
		  downloaded_at = excluded.downloaded_at,
		  uploaded_at = excluded.uploaded_at
	`, im.Environment, im.RemoteID, im.SourceURL, im.LocalPath, im.DownloadedAt, im.UploadedAt)
	return existed, err
}
