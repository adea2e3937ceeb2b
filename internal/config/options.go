package config

import (
	"os"
	"path/filepath"
)

type ConfigOption struct {
	Key     string
	Default any
	Comment string
}

// GetConfigOptions returns the default configuration options and their meanings.
// This is the single source of truth for default values.
func GetConfigOptions() []ConfigOption {
	return []ConfigOption{
		// Core paths and conventions
		{Key: "data_dir", Default: defaultDataDir(), Comment: "Directory for local state; DB is data_dir/tickler.db"},
		{Key: "http_addr", Default: ":7465", Comment: "HTTP listen address for the health endpoint"},

		// Bot transport
		{Key: "telegram.token", Default: "", Comment: "Bot API token"},
		{Key: "telegram.api_url", Default: "https://api.telegram.org", Comment: "Bot API base URL"},
		{Key: "telegram.poll_timeout", Default: 30, Comment: "Long-poll timeout for getUpdates, seconds"},

		// Assisted extraction
		{Key: "llm.enabled", Default: false, Comment: "Use the completion endpoint for command extraction"},
		{Key: "llm.url", Default: "", Comment: "OpenAI-compatible chat completions URL"},
		{Key: "llm.model", Default: "", Comment: "Model name passed to the completion endpoint"},
		{Key: "llm.token", Default: "", Comment: "Bearer token for the completion endpoint"},

		// Scheduling and matching
		{Key: "sweep_cron", Default: "* * * * *", Comment: "Cron schedule for the notification re-sweep"},
		{Key: "match.threshold", Default: 0.3, Comment: "Minimum blended similarity for fuzzy event matching"},
	}
}

// ResolveDBPath uses Config.DataDir and defaults to return the sqlite DB file path.
func ResolveDBPath(c Config) string {
	dir := c.DataDir
	if dir == "" {
		dir = defaultDataDir()
	}
	// Expand ~ for convenience
	if len(dir) > 0 && dir[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, dir[1:])
		}
	}
	return filepath.Join(dir, "tickler.db")
}
