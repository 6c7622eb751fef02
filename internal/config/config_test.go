package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWithNoPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Game.InitNPCNum != 40 {
		t.Fatalf("expected default init_npc_num 40, got %d", cfg.Game.InitNPCNum)
	}
	if cfg.System.Language != "en" {
		t.Fatalf("expected default language 'en', got %q", cfg.System.Language)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlContent := "game:\n  init_npc_num: 75\nsystem:\n  language: zh\n"
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Game.InitNPCNum != 75 {
		t.Fatalf("expected init_npc_num overridden to 75, got %d", cfg.Game.InitNPCNum)
	}
	if cfg.System.Language != "zh" {
		t.Fatalf("expected language overridden to zh, got %q", cfg.System.Language)
	}
	// Fields absent from the YAML fixture keep their default.
	if cfg.Game.SectNum != 3 {
		t.Fatalf("expected untouched sect_num default 3, got %d", cfg.Game.SectNum)
	}
}

func TestValidateRejectsUnsupportedLanguage(t *testing.T) {
	cfg := Default()
	cfg.System.Language = "fr"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for unsupported language")
	}
}

func TestValidateRejectsBadMaxActionRounds(t *testing.T) {
	cfg := Default()
	cfg.Game.MaxActionRoundsPerTurn = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for max_action_rounds_per_turn=0")
	}
}

func TestValidateRejectsUnknownLLMMode(t *testing.T) {
	cfg := Default()
	cfg.LLM.Mode = "turbo"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for unknown llm mode")
	}
}
