package square_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menusync/internal/backend"
	"menusync/internal/backend/square"
	"menusync/internal/domain"
	"menusync/internal/errs"
)

func newClient(t *testing.T, h http.HandlerFunc) *square.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return square.New("tok-123", domain.Sandbox, square.WithBaseURL(srv.URL), square.WithAPIVersion("2024-10-17"))
}

func TestClient_HeadersAndPagination(t *testing.T) {
	calls := 0
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "2024-10-17", r.Header.Get("Square-Version"))
		assert.Equal(t, "/v2/catalog/list", r.URL.Path)
		assert.Equal(t, "ITEM,CATEGORY", r.URL.Query().Get("types"))
		if r.URL.Query().Get("cursor") == "" {
			_, _ = io.WriteString(w, `{"objects":[{"type":"CATEGORY","id":"C1","version":3,"category_data":{"name":"Wraps"}}],"cursor":"next"}`)
			return
		}
		assert.Equal(t, "next", r.URL.Query().Get("cursor"))
		_, _ = io.WriteString(w, `{"objects":[{"type":"ITEM","id":"I1","version":4,"item_data":{"name":"Caesar","category_id":"C1"}}]}`)
	})

	objs, err := c.ListObjects(context.Background(), backend.TypeItem, backend.TypeCategory)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "Wraps", objs[0].Name())
	assert.Equal(t, "C1", objs[1].CategoryID())
}

func TestClient_ErrorEntriesBecomeBackendError(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"errors":[{"category":"INVALID_REQUEST_ERROR","code":"VERSION_MISMATCH","detail":"stale","field":"version"}]}`)
	})

	_, _, err := c.BatchUpsert(context.Background(), "k1", []backend.Object{{
		Type: backend.TypeCategory, ID: "#c", CategoryData: &backend.CategoryData{Name: "Snacks"},
	}})
	require.Error(t, err)
	assert.True(t, errs.IsBackend(err))

	var be *errs.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusBadRequest, be.StatusCode)
	first, ok := be.First()
	require.True(t, ok)
	assert.Equal(t, "VERSION_MISMATCH", first.Code)
	assert.Equal(t, "stale", first.Detail)
}

func TestClient_BatchUpsertSendsIdempotencyKey(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			IdempotencyKey string `json:"idempotency_key"`
			Batches        []struct {
				Objects []backend.Object `json:"objects"`
			} `json:"batches"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "key-1", body.IdempotencyKey)
		require.Len(t, body.Batches, 1)
		require.Len(t, body.Batches[0].Objects, 1)
		assert.Equal(t, "#snacks", body.Batches[0].Objects[0].ID)
		_, _ = io.WriteString(w, `{"objects":[{"type":"CATEGORY","id":"REAL1","version":7,"category_data":{"name":"Snacks"}}],
			"id_mappings":[{"client_object_id":"#snacks","object_id":"REAL1"}]}`)
	})

	objs, maps, err := c.BatchUpsert(context.Background(), "key-1", []backend.Object{{
		Type: backend.TypeCategory, ID: "#snacks", CategoryData: &backend.CategoryData{Name: "Snacks"},
	}})
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "REAL1", objs[0].ID)
	assert.Equal(t, []backend.IDMapping{{ClientObjectID: "#snacks", ObjectID: "REAL1"}}, maps)
}

func TestClient_RejectsMismatchedVariant(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"object":{"type":"ITEM","id":"I1","version":1}}`)
	})

	_, err := c.GetObject(context.Background(), "I1")
	require.Error(t, err)
	assert.True(t, errs.IsBackend(err))
	assert.Contains(t, err.Error(), "missing item data")
}

func TestClient_PartialDelete(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/catalog/batch-delete", r.URL.Path)
		_, _ = io.WriteString(w, `{"deleted_object_ids":["A"],"errors":[{"category":"INVALID_REQUEST_ERROR","code":"NOT_FOUND","detail":"B missing"}]}`)
	})

	deleted, err := c.BatchDelete(context.Background(), []string{"A", "B"})
	require.Error(t, err)
	assert.Equal(t, []string{"A"}, deleted)
	assert.True(t, errs.IsBackend(err))
}

func TestClient_BatchGetIncludesRelated(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(b), `"include_related_objects":true`)
		_, _ = io.WriteString(w, `{"objects":[{"type":"ITEM","id":"I1","item_data":{"name":"Caesar","category_id":"C1"}}],
			"related_objects":[{"type":"CATEGORY","id":"C1","category_data":{"name":"Salads"}}]}`)
	})

	res, err := c.BatchGet(context.Background(), []string{"I1"})
	require.NoError(t, err)
	require.Len(t, res.Objects, 1)
	require.Len(t, res.RelatedObjects, 1)
	assert.Equal(t, "Salads", res.RelatedObjects[0].Name())
}

func TestClient_CreateImageMultipart(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/catalog/images", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Contains(t, r.FormValue("request"), `"idempotency_key":"img-key"`)
		f, hdr, err := r.FormFile("image_file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "caesar.jpg", hdr.Filename)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "jpegbytes", string(data))
		_, _ = io.WriteString(w, `{"image":{"type":"IMAGE","id":"IMG1","image_data":{"caption":"Caesar"}}}`)
	})

	obj, err := c.CreateImage(context.Background(), "img-key", backend.ImageUpload{
		Caption: "Caesar", Filename: "caesar.jpg", ContentType: "image/jpeg", Body: strings.NewReader("jpegbytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, "IMG1", obj.ID)
}

func TestClient_RequestIntervalSpacesCalls(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"objects":[]}`)
	}))
	t.Cleanup(srv.Close)
	c := square.New("tok-123", domain.Sandbox, square.WithBaseURL(srv.URL), square.WithRequestInterval(40*time.Millisecond))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.ListObjects(context.Background(), backend.TypeItem)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ListObjects(ctx, backend.TypeItem)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(3), calls.Load())
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, square.SandboxBaseURL, square.BaseURL(domain.Sandbox))
	assert.Equal(t, square.ProductionBaseURL, square.BaseURL(domain.Production))
}
