package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"menusync/internal/domain"
)

// Config holds process settings. The environment is never global: every
// per-environment accessor takes it as an argument and Default only seeds
// the CLI --env flag.
type Config struct {
	Default domain.Environment

	DBDSN           string
	DataDir         string
	ImagesDir       string
	APIVersion      string
	Currency        string
	RequestInterval time.Duration

	Port           string
	AdminTokenHash string

	LogLevel  string
	LogFormat string
	LogFile   string

	tokens    map[domain.Environment]string
	locations map[domain.Environment]string
	baseURLs  map[domain.Environment]string
}

// Load reads .env then .env.local (later files do not override earlier
// ones or the process environment) and builds a Config from the environment.
func Load() (Config, error) {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
	v := viper.New()
	v.AutomaticEnv()
	return FromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SQUARE_ENVIRONMENT", string(domain.Sandbox))
	v.SetDefault("DB_DSN", "data/square_catalog.db")
	v.SetDefault("DATA_DIR", "data")
	v.SetDefault("IMAGES_DIR", "data/images")
	v.SetDefault("CURRENCY", "USD")
	v.SetDefault("REQUEST_INTERVAL", "0s")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func FromViper(v *viper.Viper) (Config, error) {
	setDefaults(v)

	envName := v.GetString("MENUSYNC_ENVIRONMENT")
	if envName == "" {
		envName = v.GetString("SQUARE_ENVIRONMENT")
	}
	env, err := domain.ParseEnvironment(envName)
	if err != nil {
		return Config{}, err
	}
	interval, err := time.ParseDuration(v.GetString("REQUEST_INTERVAL"))
	if err != nil {
		return Config{}, fmt.Errorf("REQUEST_INTERVAL: %w", err)
	}

	cfg := Config{
		Default:         env,
		DBDSN:           v.GetString("DB_DSN"),
		DataDir:         v.GetString("DATA_DIR"),
		ImagesDir:       v.GetString("IMAGES_DIR"),
		APIVersion:      v.GetString("SQUARE_API_VERSION"),
		Currency:        strings.ToUpper(v.GetString("CURRENCY")),
		RequestInterval: interval,
		Port:            v.GetString("PORT"),
		AdminTokenHash:  v.GetString("ADMIN_TOKEN_HASH"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		LogFormat:       v.GetString("LOG_FORMAT"),
		LogFile:         v.GetString("LOG_FILE"),
		tokens:          map[domain.Environment]string{},
		locations:       map[domain.Environment]string{},
		baseURLs:        map[domain.Environment]string{},
	}
	for _, e := range domain.Environments {
		p := strings.ToUpper(string(e))
		cfg.tokens[e] = v.GetString(p + "_ACCESS_TOKEN")
		cfg.locations[e] = v.GetString(p + "_LOCATION_MAIN")
		cfg.baseURLs[e] = v.GetString("SQUARE_BASE_URL_" + p)
	}
	return cfg, nil
}

// AccessToken returns the credential for env or an error naming the missing key.
func (c Config) AccessToken(env domain.Environment) (string, error) {
	if t := c.tokens[env]; t != "" {
		return t, nil
	}
	return "", fmt.Errorf("%s_ACCESS_TOKEN not set", strings.ToUpper(string(env)))
}

// LocationID returns the main location for env, or "" if unset.
func (c Config) LocationID(env domain.Environment) string { return c.locations[env] }

// BaseURL returns the API base override for env, or "" for the default host.
func (c Config) BaseURL(env domain.Environment) string { return c.baseURLs[env] }

func (c Config) DashboardURL(env domain.Environment, path string) string {
	base := "https://app.squareupsandbox.com/dashboard"
	if env == domain.Production {
		base = "https://squareup.com/dashboard"
	}
	if p := strings.TrimLeft(path, "/"); p != "" {
		return base + "/" + p
	}
	return base
}

// MaskedToken shows the first and last ten characters of long tokens.
func (c Config) MaskedToken(env domain.Environment) string {
	t := c.tokens[env]
	switch {
	case t == "":
		return "(not set)"
	case len(t) > 20:
		return t[:10] + "..." + t[len(t)-10:]
	default:
		return "***"
	}
}
