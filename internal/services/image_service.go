package services

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"menusync/internal/backend"
	"menusync/internal/domain"
	"menusync/internal/errs"
	applog "menusync/internal/log"
	"menusync/internal/repos"
)

var reUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// ImageService downloads a source image once, uploads it to the catalog and
// attaches it to an item.
type ImageService struct {
	Backends backend.Resolver
	Cache    *repos.Cache
	Dir      string
	HTTP     *http.Client
}

func NewImageService(b backend.Resolver, cache *repos.Cache, dir string) *ImageService {
	return &ImageService{Backends: b, Cache: cache, Dir: dir, HTTP: &http.Client{Timeout: 30 * time.Second}}
}

// SafeFilename derives a stable local file name from the item name, a short
// digest of sourceURL and the URL extension. Names that sanitize alike stay
// apart when their sources differ.
func SafeFilename(itemName, sourceURL string) string {
	base := strings.Trim(reUnsafe.ReplaceAllString(strings.ToLower(itemName), "_"), "_")
	if base == "" {
		base = "image"
	}
	ext := ".jpg"
	if u, err := url.Parse(sourceURL); err == nil {
		switch e := strings.ToLower(path.Ext(u.Path)); e {
		case ".jpg", ".jpeg", ".png", ".gif", ".webp":
			ext = e
		}
	}
	tag := uuid.NewSHA1(uuid.NameSpaceURL, []byte(sourceURL)).String()[:8]
	return base + "-" + tag + ext
}

// Process returns the image id attached to itemID, uploading when the
// item does not already carry the image cached for sourceURL.
func (s *ImageService) Process(ctx context.Context, env domain.Environment, itemName, itemID, sourceURL string) (string, error) {
	cat, err := s.Backends.For(env)
	if err != nil {
		return "", err
	}
	item, err := cat.GetObject(ctx, itemID)
	if err != nil {
		return "", err
	}
	if item.Type != backend.TypeItem {
		return "", errs.NewNotFoundError("item", itemID)
	}

	if cached, ok, err := s.Cache.Get(ctx, env, domain.EntityImage, sourceURL); err != nil {
		return "", err
	} else if ok {
		for _, id := range item.ItemData.ImageIDs {
			if id == cached {
				return cached, nil
			}
		}
	}

	local, downloadedAt, err := s.download(ctx, env, itemName, sourceURL)
	if err != nil {
		return "", err
	}
	f, err := os.Open(local)
	if err != nil {
		return "", err
	}
	defer f.Close()
	contentType := mime.TypeByExtension(filepath.Ext(local))
	if contentType == "" {
		contentType = "image/jpeg"
	}
	img, err := cat.CreateImage(ctx, uuid.NewString(), backend.ImageUpload{
		Caption: itemName, Filename: filepath.Base(local), ContentType: contentType, Body: f,
	})
	if err != nil {
		return "", err
	}
	uploadedAt := time.Now().UTC().Format(time.RFC3339)

	// echo the full item so the partial update does not clear name, category or variations
	item.ItemData.ImageIDs = []string{img.ID}
	objs, _, err := cat.BatchUpsert(ctx, uuid.NewString(), []backend.Object{item})
	if err != nil {
		return img.ID, err
	}
	if len(objs) > 0 {
		item = objs[0]
	}
	applog.Audit(nil, "image.attach", map[string]any{"env": env, "name": itemName, "remote_id": itemID, "image_id": img.ID})

	if _, err := s.Cache.UpsertImage(ctx, domain.Image{
		Environment: env, RemoteID: img.ID, SourceURL: sourceURL, LocalPath: local,
		DownloadedAt: downloadedAt, UploadedAt: uploadedAt,
	}); err != nil {
		return img.ID, err
	}
	rec := itemRecord(env, item)
	rec.SourceURL = sourceURL
	if _, err := s.Cache.UpsertItem(ctx, rec); err != nil {
		return img.ID, err
	}
	return img.ID, nil
}

// download stores sourceURL under Dir/<env>/, skipping files already present.
func (s *ImageService) download(ctx context.Context, env domain.Environment, itemName, sourceURL string) (string, string, error) {
	dir := filepath.Join(s.Dir, string(env))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}
	local := filepath.Join(dir, SafeFilename(itemName, sourceURL))
	if st, err := os.Stat(local); err == nil && st.Size() > 0 {
		return local, st.ModTime().UTC().Format(time.RFC3339), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("image url %q: %w", sourceURL, err)
	}
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("download %s: %w", sourceURL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("download %s: status %d", sourceURL, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", "", err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return "", "", fmt.Errorf("download %s: %w", sourceURL, err)
	}
	if err := tmp.Close(); err != nil {
		return "", "", err
	}
	if err := os.Rename(tmp.Name(), local); err != nil {
		return "", "", err
	}
	applog.Info(nil, "image.download", map[string]any{"env": env, "url": sourceURL, "path": local})
	return local, time.Now().UTC().Format(time.RFC3339), nil
}

// PruneLocal deletes downloaded files older than maxAge and returns how many were removed.
func (s *ImageService) PruneLocal(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	n := 0
	err := filepath.WalkDir(s.Dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(p); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}
