// Package square is an HTTP JSON client for the Square Catalog and
// Locations APIs implementing backend.Catalog.
package square

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"menusync/internal/backend"
	"menusync/internal/domain"
	"menusync/internal/errs"
)

const (
	SandboxBaseURL    = "https://connect.squareupsandbox.com"
	ProductionBaseURL = "https://connect.squareup.com"

	DefaultAPIVersion = "2025-01-23"

	// DefaultHTTPTimeout bounds every request issued by the client.
	DefaultHTTPTimeout = 30 * time.Second

	batchRetrieveLimit = 1000
	searchPageLimit    = 100
)

// BaseURL returns the API host for env.
func BaseURL(env domain.Environment) string {
	if env == domain.Production {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithAPIVersion(v string) Option {
	return func(c *Client) {
		if v != "" {
			c.version = v
		}
	}
}

// WithRequestInterval spaces consecutive requests at least d apart.
// Zero or negative leaves requests unpaced.
func WithRequestInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.limiter = rate.NewLimiter(rate.Every(d), 1)
		} else {
			c.limiter = nil
		}
	}
}

type Client struct {
	http    *http.Client
	baseURL string
	token   string
	version string
	limiter *rate.Limiter
}

var _ backend.Catalog = (*Client)(nil)

func New(token string, env domain.Environment, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: DefaultHTTPTimeout},
		baseURL: BaseURL(env),
		token:   token,
		version: DefaultAPIVersion,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// pace blocks until the limiter admits the next request.
func (c *Client) pace(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

type envelope struct {
	Errors []errs.APIError `json:"errors"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Square-Version", c.version)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(ctx, op, req, out)
}

func (c *Client) send(ctx context.Context, op string, req *http.Request, out any) error {
	if err := c.pace(ctx); err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &errs.BackendError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errs.BackendError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response body: %w", err)}
	}
	var env envelope
	_ = json.Unmarshal(raw, &env)
	if len(env.Errors) > 0 || resp.StatusCode >= http.StatusBadRequest {
		be := &errs.BackendError{Op: op, StatusCode: resp.StatusCode, Errors: env.Errors}
		if len(env.Errors) == 0 {
			be.Err = fmt.Errorf("%s", strings.TrimSpace(string(raw)))
		}
		// batch-delete reports partial results alongside errors
		if out != nil {
			_ = json.Unmarshal(raw, out)
		}
		return be
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &errs.BackendError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func validateAll(op string, objs []backend.Object) error {
	for _, o := range objs {
		if err := o.Validate(); err != nil {
			return &errs.BackendError{Op: op, Err: err}
		}
	}
	return nil
}

func (c *Client) ListObjects(ctx context.Context, types ...backend.ObjectType) ([]backend.Object, error) {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	var out []backend.Object
	cursor := ""
	for {
		q := url.Values{}
		q.Set("types", strings.Join(names, ","))
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		var page struct {
			Objects []backend.Object `json:"objects"`
			Cursor  string           `json:"cursor"`
		}
		if err := c.doJSON(ctx, "list-catalog", http.MethodGet, "/v2/catalog/list?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		if err := validateAll("list-catalog", page.Objects); err != nil {
			return nil, err
		}
		out = append(out, page.Objects...)
		if page.Cursor == "" {
			return out, nil
		}
		cursor = page.Cursor
	}
}

func (c *Client) SearchItems(ctx context.Context) ([]backend.ObjectSummary, error) {
	var out []backend.ObjectSummary
	cursor := ""
	for {
		req := map[string]any{"limit": searchPageLimit}
		if cursor != "" {
			req["cursor"] = cursor
		}
		var page struct {
			Items  []backend.Object `json:"items"`
			Cursor string           `json:"cursor"`
		}
		if err := c.doJSON(ctx, "search-catalog-items", http.MethodPost, "/v2/catalog/search-catalog-items", req, &page); err != nil {
			return nil, err
		}
		for _, o := range page.Items {
			out = append(out, backend.ObjectSummary{ID: o.ID, Type: o.Type, Name: o.Name(), Version: o.Version})
		}
		if page.Cursor == "" {
			return out, nil
		}
		cursor = page.Cursor
	}
}

func (c *Client) BatchGet(ctx context.Context, ids []string) (backend.BatchGetResult, error) {
	var res backend.BatchGetResult
	seen := map[string]bool{}
	for start := 0; start < len(ids); start += batchRetrieveLimit {
		end := min(start+batchRetrieveLimit, len(ids))
		var page struct {
			Objects        []backend.Object `json:"objects"`
			RelatedObjects []backend.Object `json:"related_objects"`
		}
		req := map[string]any{"object_ids": ids[start:end], "include_related_objects": true}
		if err := c.doJSON(ctx, "batch-retrieve", http.MethodPost, "/v2/catalog/batch-retrieve", req, &page); err != nil {
			return backend.BatchGetResult{}, err
		}
		if err := validateAll("batch-retrieve", page.Objects); err != nil {
			return backend.BatchGetResult{}, err
		}
		res.Objects = append(res.Objects, page.Objects...)
		for _, r := range page.RelatedObjects {
			if !seen[r.ID] {
				seen[r.ID] = true
				res.RelatedObjects = append(res.RelatedObjects, r)
			}
		}
	}
	return res, nil
}

func (c *Client) BatchUpsert(ctx context.Context, key string, objects []backend.Object) ([]backend.Object, []backend.IDMapping, error) {
	req := map[string]any{
		"idempotency_key": key,
		"batches":         []map[string]any{{"objects": objects}},
	}
	var resp struct {
		Objects    []backend.Object    `json:"objects"`
		IDMappings []backend.IDMapping `json:"id_mappings"`
	}
	if err := c.doJSON(ctx, "batch-upsert", http.MethodPost, "/v2/catalog/batch-upsert", req, &resp); err != nil {
		return nil, nil, err
	}
	if err := validateAll("batch-upsert", resp.Objects); err != nil {
		return nil, nil, err
	}
	return resp.Objects, resp.IDMappings, nil
}

func (c *Client) BatchDelete(ctx context.Context, ids []string) ([]string, error) {
	var resp struct {
		DeletedObjectIDs []string `json:"deleted_object_ids"`
	}
	err := c.doJSON(ctx, "batch-delete", http.MethodPost, "/v2/catalog/batch-delete", map[string]any{"object_ids": ids}, &resp)
	return resp.DeletedObjectIDs, err
}

func (c *Client) GetObject(ctx context.Context, id string) (backend.Object, error) {
	var resp struct {
		Object backend.Object `json:"object"`
	}
	if err := c.doJSON(ctx, "retrieve-object", http.MethodGet, "/v2/catalog/object/"+url.PathEscape(id), nil, &resp); err != nil {
		return backend.Object{}, err
	}
	if err := resp.Object.Validate(); err != nil {
		return backend.Object{}, &errs.BackendError{Op: "retrieve-object", Err: err}
	}
	return resp.Object, nil
}

func (c *Client) CreateImage(ctx context.Context, key string, up backend.ImageUpload) (backend.Object, error) {
	tmp := strings.ReplaceAll(key, "-", "")
	if len(tmp) > 16 {
		tmp = tmp[:16]
	}
	meta, err := json.Marshal(map[string]any{
		"idempotency_key": key,
		"image": backend.Object{
			Type:      backend.TypeImage,
			ID:        backend.PlaceholderPrefix + "img" + tmp,
			ImageData: &backend.ImageData{Caption: up.Caption},
		},
	})
	if err != nil {
		return backend.Object{}, fmt.Errorf("encode create-image request: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	rh := textproto.MIMEHeader{}
	rh.Set("Content-Disposition", `form-data; name="request"`)
	rh.Set("Content-Type", "application/json")
	rp, err := mw.CreatePart(rh)
	if err != nil {
		return backend.Object{}, err
	}
	if _, err := rp.Write(meta); err != nil {
		return backend.Object{}, err
	}
	fh := textproto.MIMEHeader{}
	fh.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image_file"; filename=%q`, up.Filename))
	fh.Set("Content-Type", up.ContentType)
	fp, err := mw.CreatePart(fh)
	if err != nil {
		return backend.Object{}, err
	}
	if _, err := io.Copy(fp, up.Body); err != nil {
		return backend.Object{}, fmt.Errorf("read image %s: %w", up.Filename, err)
	}
	if err := mw.Close(); err != nil {
		return backend.Object{}, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/v2/catalog/images", &buf)
	if err != nil {
		return backend.Object{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var resp struct {
		Image backend.Object `json:"image"`
	}
	if err := c.send(ctx, "create-image", req, &resp); err != nil {
		return backend.Object{}, err
	}
	if err := resp.Image.Validate(); err != nil {
		return backend.Object{}, &errs.BackendError{Op: "create-image", Err: err}
	}
	return resp.Image, nil
}

func (c *Client) ListLocations(ctx context.Context) ([]backend.Location, error) {
	var resp struct {
		Locations []backend.Location `json:"locations"`
	}
	if err := c.doJSON(ctx, "list-locations", http.MethodGet, "/v2/locations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Locations, nil
}

func (c *Client) CreateLocation(ctx context.Context, loc backend.Location) (backend.Location, error) {
	var resp struct {
		Location backend.Location `json:"location"`
	}
	if err := c.doJSON(ctx, "create-location", http.MethodPost, "/v2/locations", map[string]any{"location": loc}, &resp); err != nil {
		return backend.Location{}, err
	}
	return resp.Location, nil
}
