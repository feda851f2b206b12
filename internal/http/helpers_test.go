package handlers_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"menusync/internal/backend"
	"menusync/internal/backend/memory"
	"menusync/internal/config"
	"menusync/internal/domain"
	"menusync/internal/http/handlers"
	applog "menusync/internal/log"
	"menusync/internal/repos"
	"menusync/internal/services"
)

const adminToken = "let-me-in"

type testApp struct {
	app     *fiber.App
	sandbox *memory.Catalog
	cache   *repos.Cache
}

func newTestApp(t *testing.T, opts handlers.AppOptions) *testApp {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte(adminToken), bcrypt.MinCost)
	require.NoError(t, err)

	sandbox := memory.New()
	backends := backend.Static{domain.Sandbox: sandbox, domain.Production: memory.New(memory.WithIDPrefix("PRD"))}
	cache := repos.NewCache(db)
	cfg := config.Config{Default: domain.Sandbox, AdminTokenHash: string(hash)}

	deps := handlers.NewDeps(cache, services.NewDuplicateService(backends, cache), cfg)
	if opts.TemplatesDir == "" {
		opts.TemplatesDir = "../../web/templates"
	}
	return &testApp{app: handlers.NewApp(deps, opts), sandbox: sandbox, cache: cache}
}

func category(name string) backend.Object {
	return backend.Object{Type: backend.TypeCategory, CategoryData: &backend.CategoryData{Name: name}}
}

type logEntry struct {
	Action string         `json:"action"`
	Kind   string         `json:"kind"`
	Status int            `json:"status"`
	Err    string         `json:"err"`
	Fields map[string]any `json:"fields"`
}

type lockedBuf struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (l *lockedBuf) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	buf := &lockedBuf{}
	applog.Setup(applog.Config{Level: "debug", Output: buf})
	defer applog.Setup(applog.Config{})

	fn()

	var entries []logEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.b.String()), "\n") {
		var e logEntry
		if err := json.Unmarshal([]byte(line), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

func hasAction(entries []logEntry, action string) bool {
	for _, e := range entries {
		if e.Action == action {
			return true
		}
	}
	return false
}
