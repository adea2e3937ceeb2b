package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the resolved application configuration.
type Config struct {
	DataDir string

	Telegram struct {
		Token       string
		APIURL      string
		PollTimeout int
	}

	LLM struct {
		Enabled bool
		URL     string
		Model   string
		Token   string
	}

	HTTPAddr       string
	SweepCron      string
	MatchThreshold float64
}

// applyDefaults seeds Viper with defaults defined in GetConfigOptions.
// This centralizes default values and descriptions in one place.
func applyDefaults(v *viper.Viper) {
	for _, o := range GetConfigOptions() {
		v.SetDefault(o.Key, o.Default)
	}
}

// Load resolves configuration with precedence: defaults < file < env.
// The provided Viper instance is mutated with defaults, file contents, and env.
func Load(ctx context.Context, v *viper.Viper) (Config, error) {
	// Configure Viper search paths. If SetConfigFile was provided upstream,
	// it takes precedence; these paths are harmless fallbacks.
	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "tickler"))
		}
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "tickler"))
		}
		v.AddConfigPath(".")
	}

	applyDefaults(v)
	_ = v.ReadInConfig()

	// Environment variables: TICKLER_* (highest among these sources)
	v.SetEnvPrefix("tickler")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.GetString("data_dir") == "" {
		v.Set("data_dir", defaultDataDir())
	}

	if err := CheckConfigValidity(v); err != nil {
		return Config{}, err
	}

	var c Config
	c.DataDir = v.GetString("data_dir")
	c.Telegram.Token = v.GetString("telegram.token")
	c.Telegram.APIURL = v.GetString("telegram.api_url")
	c.Telegram.PollTimeout = v.GetInt("telegram.poll_timeout")
	c.LLM.Enabled = v.GetBool("llm.enabled")
	c.LLM.URL = v.GetString("llm.url")
	c.LLM.Model = v.GetString("llm.model")
	c.LLM.Token = v.GetString("llm.token")
	c.HTTPAddr = v.GetString("http_addr")
	c.SweepCron = v.GetString("sweep_cron")
	c.MatchThreshold = v.GetFloat64("match.threshold")
	return c, nil
}

// CheckConfigValidity verifies cross-field constraints after merge.
func CheckConfigValidity(v *viper.Viper) error {
	var problems []string
	if strings.TrimSpace(v.GetString("data_dir")) == "" {
		problems = append(problems, "data_dir is required")
	}
	if v.GetInt("telegram.poll_timeout") <= 0 {
		problems = append(problems, "telegram.poll_timeout must be greater than 0")
	}
	if th := v.GetFloat64("match.threshold"); th <= 0 || th > 1 {
		problems = append(problems, "match.threshold must be in (0, 1]")
	}
	if v.GetBool("llm.enabled") {
		if strings.TrimSpace(v.GetString("llm.url")) == "" {
			problems = append(problems, "llm.url is required when llm.enabled")
		}
		if strings.TrimSpace(v.GetString("llm.model")) == "" {
			problems = append(problems, "llm.model is required when llm.enabled")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// defaultDataDir resolves default data dir: $XDG_DATA_HOME/tickler or ~/.local/share/tickler
func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "tickler")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "tickler")
}
