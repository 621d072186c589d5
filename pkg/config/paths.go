package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	EnvJulesConfig = "JULES_CONFIG"
	EnvJulesHome   = "JULES_HOME"
)

// RuntimePaths locates the per-user state directory. Everything the tool
// persists (config, aliases, session snapshot, activity cache) lives under
// HomeDir.
type RuntimePaths struct {
	HomeDir       string
	ConfigPath    string
	AliasesPath   string
	SessionsPath  string
	OwnerChatPath string
	ActivitiesDir string
}

func ResolveRuntimePaths() RuntimePaths {
	if configPath := expandHome(strings.TrimSpace(os.Getenv(EnvJulesConfig))); configPath != "" {
		return buildRuntimePaths(filepath.Dir(configPath), configPath)
	}

	homeDir := expandHome(strings.TrimSpace(os.Getenv(EnvJulesHome)))
	if homeDir == "" {
		homeDir = defaultJulesHome()
	}

	return buildRuntimePaths(homeDir, filepath.Join(homeDir, "config.json"))
}

func defaultJulesHome() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".jules"
	}
	return filepath.Join(home, ".jules")
}

func buildRuntimePaths(homeDir, configPath string) RuntimePaths {
	return RuntimePaths{
		HomeDir:       homeDir,
		ConfigPath:    configPath,
		AliasesPath:   filepath.Join(homeDir, "aliases.json"),
		SessionsPath:  filepath.Join(homeDir, "sessions.json"),
		OwnerChatPath: filepath.Join(homeDir, "chat_id"),
		ActivitiesDir: filepath.Join(homeDir, "activities"),
	}
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
