package handlers_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menusync/internal/errs"
	"menusync/internal/http/handlers"
	"menusync/internal/services"
)

func cleanupReq(token string) *http.Request {
	req := httptest.NewRequest("POST", "/api/v1/envs/sandbox/cleanup", nil)
	if token != "" {
		req.Header.Set(handlers.AdminTokenHeader, token)
	}
	return req
}

func TestCleanupRequiresAdminToken(t *testing.T) {
	ta := newTestApp(t, handlers.AppOptions{})
	ta.sandbox.Inject(category("Wraps"))
	ta.sandbox.Inject(category("Wraps"))

	for _, tok := range []string{"", "wrong"} {
		var resp *http.Response
		entries := captureLogs(t, func() {
			var err error
			resp, err = ta.app.Test(cleanupReq(tok))
			require.NoError(t, err)
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, "token %q", tok)
		assert.True(t, hasAction(entries, "access.denied.admin"), "denial logged for token %q", tok)
	}
	assert.Equal(t, 0, ta.sandbox.Deletes())
}

func TestCleanupWithToken(t *testing.T) {
	ta := newTestApp(t, handlers.AppOptions{})
	ta.sandbox.Inject(category("Wraps"))
	keep := ta.sandbox.Inject(category("Wraps"))

	var resp *http.Response
	entries := captureLogs(t, func() {
		var err error
		resp, err = ta.app.Test(cleanupReq(adminToken))
		require.NoError(t, err)
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, hasAction(entries, "admin.cleanup"))

	var res services.CleanupResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	require.Len(t, res.Groups, 1)
	assert.Equal(t, keep.ID, res.Groups[0].Kept)
	assert.Equal(t, 1, ta.sandbox.Deletes())
}

func TestCleanupPartialFailureHidesDetail(t *testing.T) {
	ta := newTestApp(t, handlers.AppOptions{})
	first := ta.sandbox.Inject(category("Wraps"))
	ta.sandbox.Inject(category("Wraps"))
	ta.sandbox.FailDelete(first.ID, errs.APIError{Category: "API_ERROR", Code: "INTERNAL_SERVER_ERROR", Detail: "shard 7 unavailable"})

	resp, err := ta.app.Test(cleanupReq(adminToken))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "cleanup incomplete")
	assert.Contains(t, string(body), first.ID)
	assert.NotContains(t, string(body), "shard 7")
}
