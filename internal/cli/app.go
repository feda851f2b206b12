package cli

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/jmoiron/sqlx"

	"menusync/internal/backend"
	"menusync/internal/backend/square"
	"menusync/internal/config"
	"menusync/internal/domain"
	applog "menusync/internal/log"
	"menusync/internal/repos"
	"menusync/internal/services"
)

var (
	loadConfig  = config.Load
	newResolver = squareResolver
)

// squareResolver builds one client per environment on first use, so a
// missing production token only fails commands that touch production.
func squareResolver(cfg config.Config) backend.Resolver {
	var mu sync.Mutex
	clients := map[domain.Environment]backend.Catalog{}
	return backend.ResolverFunc(func(env domain.Environment) (backend.Catalog, error) {
		mu.Lock()
		defer mu.Unlock()
		if c, ok := clients[env]; ok {
			return c, nil
		}
		token, err := cfg.AccessToken(env)
		if err != nil {
			return nil, err
		}
		c := square.New(token, env,
			square.WithBaseURL(cfg.BaseURL(env)),
			square.WithAPIVersion(cfg.APIVersion),
			square.WithRequestInterval(cfg.RequestInterval),
		)
		clients[env] = c
		return c, nil
	})
}

type app struct {
	cfg      config.Config
	db       *sqlx.DB
	cache    *repos.Cache
	backends backend.Resolver
	logFile  *os.File
}

func openApp(stderr io.Writer) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}

	out := stderr
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(stderr, "warn: could not open log file %s: %v\n", cfg.LogFile, err)
		} else {
			a.logFile = f
			out = io.MultiWriter(stderr, f)
		}
	}
	applog.Setup(applog.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: out})

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		a.close()
		return nil, err
	}
	a.db = db
	a.cache = repos.NewCache(db)
	a.backends = newResolver(cfg)
	return a, nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

// env resolves the --env flag value, falling back to the configured default.
func (a *app) env(flag string) (domain.Environment, error) {
	if flag == "" {
		return a.cfg.Default, nil
	}
	return domain.ParseEnvironment(flag)
}

func (a *app) reconcile() *services.ReconcileService {
	return services.NewReconcileService(a.backends, a.cache, a.cfg.Currency)
}

func (a *app) duplicates() *services.DuplicateService {
	return services.NewDuplicateService(a.backends, a.cache)
}

func (a *app) images() *services.ImageService {
	return services.NewImageService(a.backends, a.cache, a.cfg.ImagesDir)
}

// guardProduction refuses mutating commands against production unless confirmed.
func guardProduction(env domain.Environment, yes bool) error {
	if env == domain.Production && !yes {
		return fmt.Errorf("refusing to modify production without --yes")
	}
	return nil
}
