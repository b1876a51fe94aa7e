package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	path := filepath.Join("testdata", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Name != "dnsebot-test" {
		t.Fatalf("unexpected App.Name: %s", cfg.App.Name)
	}
	if len(cfg.Feed.Symbols) != 2 || cfg.Feed.Symbols[0] != "VCB" {
		t.Fatalf("unexpected feed symbols: %+v", cfg.Feed.Symbols)
	}
	if cfg.Feed.QueueSize != 64 {
		t.Fatalf("unexpected queue size: %d", cfg.Feed.QueueSize)
	}
	if cfg.Feed.DedupWindow() != 500*time.Millisecond {
		t.Fatalf("unexpected dedup window: %s", cfg.Feed.DedupWindow())
	}
	if len(cfg.Strategy.Enabled) != 3 || cfg.Strategy.Enabled[1] != "ma_crossover" {
		t.Fatalf("unexpected enabled strategies: %+v", cfg.Strategy.Enabled)
	}
	if cfg.Strategy.CooldownPolicy != "replace_older" {
		t.Fatalf("unexpected cooldown policy: %s", cfg.Strategy.CooldownPolicy)
	}
	if cfg.Strategy.Cooldown() != 45*time.Second {
		t.Fatalf("unexpected cooldown: %s", cfg.Strategy.Cooldown())
	}
	if cfg.Strategy.Params.BreakoutVolumeMult != 2.0 {
		t.Fatalf("unexpected breakout volume mult: %.2f", cfg.Strategy.Params.BreakoutVolumeMult)
	}
	if cfg.Risk.InitialCapital != 1_000_000_000 {
		t.Fatalf("unexpected initial capital: %.0f", cfg.Risk.InitialCapital)
	}
	if cfg.Risk.StopLossPct != 0.03 {
		t.Fatalf("unexpected stop loss pct: %.2f", cfg.Risk.StopLossPct)
	}
	if cfg.Risk.StopPoll() != 5*time.Second {
		t.Fatalf("unexpected stop poll: %s", cfg.Risk.StopPoll())
	}
	if !cfg.DCA.Enabled || cfg.DCA.Amount != 10_000_000 {
		t.Fatalf("unexpected dca: %+v", cfg.DCA)
	}
	if cfg.DCA.Interval() != 1440*time.Minute {
		t.Fatalf("unexpected dca interval: %s", cfg.DCA.Interval())
	}
	if cfg.Execution.Mode != "paper" {
		t.Fatalf("unexpected execution mode: %s", cfg.Execution.Mode)
	}
	if cfg.Execution.RetryBase() != 250*time.Millisecond {
		t.Fatalf("unexpected retry base: %s", cfg.Execution.RetryBase())
	}
	if cfg.Paper.StartingCash != 1_000_000_000 {
		t.Fatalf("unexpected starting cash: %.0f", cfg.Paper.StartingCash)
	}
	if cfg.Broker.AccountID != "0001234567" {
		t.Fatalf("unexpected account id: %s", cfg.Broker.AccountID)
	}
	if cfg.Portfolio.SummaryInterval() != 30*time.Minute {
		t.Fatalf("unexpected summary interval: %s", cfg.Portfolio.SummaryInterval())
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidateLiveModeRequiresCredentials(t *testing.T) {
	path := filepath.Join("testdata", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	cfg.Execution.Mode = "live"
	cfg.Broker.APIKey = ""
	cfg.Broker.APISecret = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected live mode to fail without credentials")
	}

	cfg.Broker.APIKey = "key"
	cfg.Broker.APISecret = "secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected live mode to pass with credentials: %v", err)
	}
}

func TestValidateDNSEFeedRequiresURL(t *testing.T) {
	path := filepath.Join("testdata", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	cfg.Feed.Provider = "dnse"
	cfg.Feed.URL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected dnse provider to fail without url")
	}
}
