package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menusync/internal/backend"
	"menusync/internal/backend/memory"
	"menusync/internal/config"
	"menusync/internal/domain"
	"menusync/internal/services"
)

const testMenu = `
currency: USD
categories:
  - name: Wraps
  - name: Salads
items:
  - name: Buffalo Wrap
    category: Wraps
    price: "$11.49"
  - name: Kale Caesar
    category: Salads
    price: 12.49
`

type harness struct {
	dir        string
	sandbox    *memory.Catalog
	production *memory.Catalog
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{dir: t.TempDir(), sandbox: memory.New(), production: memory.New(memory.WithIDPrefix("PRD"))}

	oldLoad, oldResolver := loadConfig, newResolver
	t.Cleanup(func() { loadConfig, newResolver = oldLoad, oldResolver })

	loadConfig = func() (config.Config, error) {
		v := viper.New()
		v.Set("DB_DSN", filepath.Join(h.dir, "cache.db"))
		v.Set("DATA_DIR", h.dir)
		v.Set("IMAGES_DIR", filepath.Join(h.dir, "images"))
		v.Set("SANDBOX_ACCESS_TOKEN", "EAAAsandbox-token-0123456789")
		v.Set("LOG_LEVEL", "error")
		return config.FromViper(v)
	}
	newResolver = func(config.Config) backend.Resolver {
		return backend.Static{domain.Sandbox: h.sandbox, domain.Production: h.production}
	}
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "menu.yaml"), []byte(testMenu), 0o644))
	return h
}

func (h *harness) manifest() string { return filepath.Join(h.dir, "menu.yaml") }

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSetupThenSummary(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "setup", "--env", "sandbox", "--manifest", h.manifest(), "--json=true", "--yes=false")
	require.NoError(t, err)
	var rep services.SetupReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 2, rep.CategoriesCreated)
	assert.Equal(t, 2, rep.ItemsCreated)
	assert.FileExists(t, filepath.Join(h.dir, services.ItemIDsFile))

	_, err = h.run(t, "setup", "--env", "sandbox", "--manifest", h.manifest(), "--json=false", "--yes=false")
	require.NoError(t, err)
	assert.Equal(t, 4, h.sandbox.Upserts(), "second run creates nothing")

	out, err = h.run(t, "summary", "--env", "sandbox", "--json=true")
	require.NoError(t, err)
	var list []domain.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].Categories)
	assert.Equal(t, 2, list[0].Items)
}

func TestProductionRequiresYes(t *testing.T) {
	h := newHarness(t)
	h.production.Inject(backend.Object{Type: backend.TypeCategory, CategoryData: &backend.CategoryData{Name: "Wraps"}})
	h.production.Inject(backend.Object{Type: backend.TypeCategory, CategoryData: &backend.CategoryData{Name: "Wraps"}})

	_, err := h.run(t, "cleanup", "--env", "production", "--yes=false", "--json=false")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
	assert.Equal(t, 0, h.production.Deletes())

	_, err = h.run(t, "setup", "--env", "production", "--manifest", h.manifest(), "--yes=false", "--json=false")
	require.Error(t, err)
	assert.Equal(t, 0, h.production.Upserts())

	out, err := h.run(t, "cleanup", "--env", "production", "--yes", "--json=false")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted 1 in production")
	assert.Equal(t, 1, h.production.Deletes())
}

func TestDuplicatesOutput(t *testing.T) {
	h := newHarness(t)
	a := h.sandbox.Inject(backend.Object{Type: backend.TypeCategory, CategoryData: &backend.CategoryData{Name: "Bowls"}})
	b := h.sandbox.Inject(backend.Object{Type: backend.TypeCategory, CategoryData: &backend.CategoryData{Name: "Bowls"}})

	out, err := h.run(t, "duplicates", "--env", "sandbox", "--json=false")
	require.NoError(t, err)
	assert.Contains(t, out, "1 duplicated names in sandbox")
	assert.Contains(t, out, a.ID+" "+b.ID)

	out, err = h.run(t, "duplicates", "--env", "production", "--json=false")
	require.NoError(t, err)
	assert.Contains(t, out, "no duplicates in production")
}

func TestFixCategoriesNeedsAssignments(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "fix-categories", "--env", "sandbox", "--manifest", "", "--item", "Soup", "--category", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "go together")

	_, err = h.run(t, "fix-categories", "--env", "sandbox", "--manifest", "", "--item", "", "--category", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to fix")
}

func TestEnvCommandMasksToken(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "env", "--env", "sandbox", "--json=true")
	require.NoError(t, err)
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "sandbox", info["environment"])
	assert.NotContains(t, out, "EAAAsandbox-token-0123456789")
	assert.Equal(t, "EAAAsandbo...0123456789", info["token"])
	assert.Equal(t, "https://connect.squareupsandbox.com", info["base_url"])

	_, err = h.run(t, "env", "--env", "staging", "--json=false")
	assert.Error(t, err)
}

func TestFlagsResetBetweenRoots(t *testing.T) {
	h := newHarness(t)
	h.production.Inject(backend.Object{Type: backend.TypeCategory, CategoryData: &backend.CategoryData{Name: "Wraps"}})
	h.production.Inject(backend.Object{Type: backend.TypeCategory, CategoryData: &backend.CategoryData{Name: "Wraps"}})

	out, err := h.run(t, "duplicates", "--env", "production", "--json")
	require.NoError(t, err)
	var d domain.Duplicates
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Len(t, d.Categories, 1)

	// defaults apply again on a fresh root: text output, default environment
	out, err = h.run(t, "duplicates")
	require.NoError(t, err)
	assert.Contains(t, out, "no duplicates in sandbox")

	_, err = h.run(t, "setup", "--env", "sandbox", "--manifest", h.manifest(), "--yes")
	require.NoError(t, err)
	_, err = h.run(t, "cleanup", "--env", "production")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
	assert.Equal(t, 0, h.production.Deletes())
}

func TestVerifyCommand(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "verify", "--env", "sandbox", "--manifest", h.manifest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verification failed in sandbox")
	assert.Contains(t, out, "missing categories: Wraps, Salads")

	_, err = h.run(t, "setup", "--env", "sandbox", "--manifest", h.manifest())
	require.NoError(t, err)

	out, err = h.run(t, "verify", "--env", "sandbox", "--manifest", h.manifest(), "--json")
	require.NoError(t, err)
	var rep services.VerifyReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.True(t, rep.OK())
	assert.Equal(t, 2, rep.Items)
	assert.Equal(t, 4, h.sandbox.Upserts(), "verify writes nothing")
}
