package internal

import (
	"fmt"
	"runtime"

	"github.com/juleshq/jules/pkg/activity"
	"github.com/juleshq/jules/pkg/alias"
	"github.com/juleshq/jules/pkg/api"
	"github.com/juleshq/jules/pkg/config"
	"github.com/juleshq/jules/pkg/logger"
	"github.com/juleshq/jules/pkg/store"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
)

// App bundles the dependencies every command group needs: configuration,
// the remote client, and the three local stores.
type App struct {
	Cfg      *config.Config
	Paths    config.RuntimePaths
	Client   *api.Client
	Aliases  *alias.Store
	Sessions *store.SessionStore
	Cache    *activity.Cache
}

// LoadApp resolves paths, loads config and stores, and builds the API client.
// The apiKey flag value wins over config/env when non-empty.
func LoadApp(apiKeyFlag string) (*App, error) {
	paths := config.ResolveRuntimePaths()

	cfg, err := config.LoadConfig(paths.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	if cfg.LogFile != "" {
		if err := logger.EnableFileLogging(cfg.LogFile); err != nil {
			logger.WarnCF("config", "Failed to enable file logging", map[string]any{
				"path":  cfg.LogFile,
				"error": err.Error(),
			})
		}
	}

	apiKey := cfg.API.Key
	if apiKeyFlag != "" {
		apiKey = apiKeyFlag
	}

	client, err := api.NewClient(apiKey, cfg.API.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w (set JULES_API_KEY or pass --api-key)", err)
	}

	aliases, err := alias.Load(paths.AliasesPath)
	if err != nil {
		return nil, err
	}

	sessions, err := store.LoadSessions(paths.SessionsPath)
	if err != nil {
		return nil, err
	}

	cache, err := activity.NewCache(paths.ActivitiesDir)
	if err != nil {
		return nil, err
	}

	return &App{
		Cfg:      cfg,
		Paths:    paths,
		Client:   client,
		Aliases:  aliases,
		Sessions: sessions,
		Cache:    cache,
	}, nil
}

// APIKey returns the effective credential the app was built with.
func (a *App) APIKey(apiKeyFlag string) string {
	if apiKeyFlag != "" {
		return apiKeyFlag
	}
	return a.Cfg.API.Key
}

// FormatVersion returns the version string with optional git commit.
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info.
func FormatBuildInfo() (string, string) {
	goVer := runtime.Version()
	return buildTime, goVer
}
