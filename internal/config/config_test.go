package config

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestCheckConfigValidityValid(t *testing.T) {
	v := viper.New()
	v.Set("data_dir", "/tmp/tickler")
	v.Set("telegram.poll_timeout", 30)
	v.Set("match.threshold", 0.3)
	v.Set("llm.enabled", false)

	if err := CheckConfigValidity(v); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestCheckConfigValidityInvalid(t *testing.T) {
	v := viper.New()
	v.Set("data_dir", "")
	v.Set("telegram.poll_timeout", 0)
	v.Set("match.threshold", 1.5)
	v.Set("llm.enabled", true)
	v.Set("llm.url", "")
	v.Set("llm.model", "")

	err := CheckConfigValidity(v)
	if err == nil {
		t.Fatalf("expected error for invalid config")
	}

	msg := err.Error()
	expected := []string{
		"data_dir is required",
		"telegram.poll_timeout must be greater than 0",
		"match.threshold must be in (0, 1]",
		"llm.url is required when llm.enabled",
		"llm.model is required when llm.enabled",
	}
	for _, want := range expected {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected error to contain %q, got %q", want, msg)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	v.Set("data_dir", t.TempDir())

	c, err := Load(context.Background(), v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.SweepCron != "* * * * *" {
		t.Fatalf("unexpected sweep_cron default: %q", c.SweepCron)
	}
	if c.MatchThreshold != 0.3 {
		t.Fatalf("unexpected match.threshold default: %v", c.MatchThreshold)
	}
	if c.Telegram.PollTimeout != 30 {
		t.Fatalf("unexpected poll_timeout default: %d", c.Telegram.PollTimeout)
	}
}
