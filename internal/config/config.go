// Package config loads and validates the spec §6 configuration surface.
// Grounded on louisbranch-fracturing.space's env-struct loading idiom (no
// config loader exists in the teacher, which hardcodes constants in main.go)
// using gopkg.in/yaml.v3 for the file and github.com/caarlos0/env/v11 for
// environment-variable overrides.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Game holds the game.* options.
type Game struct {
	InitNPCNum               int     `yaml:"init_npc_num" env:"GAME_INIT_NPC_NUM"`
	SectNum                  int     `yaml:"sect_num" env:"GAME_SECT_NUM"`
	NPCAwakeningRatePerMonth float64 `yaml:"npc_awakening_rate_per_month" env:"GAME_NPC_AWAKENING_RATE_PER_MONTH"`
	StartYear                int     `yaml:"start_year" env:"GAME_START_YEAR"`
	WorldHistory             string  `yaml:"world_history" env:"GAME_WORLD_HISTORY"`
	MaxActionRoundsPerTurn   int     `yaml:"max_action_rounds_per_turn" env:"GAME_MAX_ACTION_ROUNDS_PER_TURN"`
	FortuneProbability       float64 `yaml:"fortune_probability" env:"GAME_FORTUNE_PROBABILITY"`
	MisfortuneProbability    float64 `yaml:"misfortune_probability" env:"GAME_MISFORTUNE_PROBABILITY"`
	LongDeadCleanupYears     int     `yaml:"long_dead_cleanup_years" env:"GAME_LONG_DEAD_CLEANUP_YEARS"`
}

// Social holds the social.* options.
type Social struct {
	RelationCheckThreshold int `yaml:"relation_check_threshold" env:"SOCIAL_RELATION_CHECK_THRESHOLD"`
	MajorEventContextNum   int `yaml:"major_event_context_num" env:"SOCIAL_MAJOR_EVENT_CONTEXT_NUM"`
	MinorEventContextNum   int `yaml:"minor_event_context_num" env:"SOCIAL_MINOR_EVENT_CONTEXT_NUM"`
}

// AI holds the ai.* options.
type AI struct {
	MaxConcurrentRequests int64 `yaml:"max_concurrent_requests" env:"AI_MAX_CONCURRENT_REQUESTS"`
}

// LLM holds the llm.* options.
type LLM struct {
	BaseURL      string `yaml:"base_url" env:"LLM_BASE_URL"`
	Key          string `yaml:"key" env:"LLM_KEY"`
	ModelName    string `yaml:"model_name" env:"LLM_MODEL_NAME"`
	FastModelName string `yaml:"fast_model_name" env:"LLM_FAST_MODEL_NAME"`
	Mode         string `yaml:"mode" env:"LLM_MODE"`
}

// Paths holds the paths.* options.
type Paths struct {
	Saves       string `yaml:"saves" env:"PATHS_SAVES"`
	Templates   string `yaml:"templates" env:"PATHS_TEMPLATES"`
	GameConfigs string `yaml:"game_configs" env:"PATHS_GAME_CONFIGS"`
}

// System holds the system.* options.
type System struct {
	Language string `yaml:"language" env:"SYSTEM_LANGUAGE"`
	Host     string `yaml:"host" env:"SYSTEM_HOST"`
	Port     int    `yaml:"port" env:"SYSTEM_PORT"`
}

// Config is the whole recognized configuration surface (spec §6).
type Config struct {
	Game   Game   `yaml:"game"`
	Social Social `yaml:"social"`
	AI     AI     `yaml:"ai"`
	LLM    LLM    `yaml:"llm"`
	Paths  Paths  `yaml:"paths"`
	System System `yaml:"system"`
}

// Default returns a Config with sane defaults, used when no file is given.
func Default() Config {
	return Config{
		Game: Game{
			InitNPCNum: 40, SectNum: 3, NPCAwakeningRatePerMonth: 0.01,
			StartYear: 0, MaxActionRoundsPerTurn: 4,
			FortuneProbability: 0.02, MisfortuneProbability: 0.02,
			LongDeadCleanupYears: 10,
		},
		Social: Social{RelationCheckThreshold: 3, MajorEventContextNum: 10, MinorEventContextNum: 5},
		AI:     AI{MaxConcurrentRequests: 4},
		LLM:    LLM{ModelName: "claude-haiku-4-5-20251001", FastModelName: "claude-haiku-4-5-20251001", Mode: "normal"},
		Paths:  Paths{Saves: "./saves", Templates: "./templates", GameConfigs: "./game_configs"},
		System: System{Language: "en", Host: "0.0.0.0", Port: 8080},
	}
}

// Load reads path (if non-empty) as YAML over the defaults, then applies
// environment-variable overrides, then validates. A Config error (missing or
// malformed configuration, spec §7) is fatal at startup — callers should
// exit non-zero on a non-nil error here.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("config: env override: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the invariants the rest of the system assumes hold.
func (c Config) Validate() error {
	if c.Game.InitNPCNum < 0 {
		return fmt.Errorf("config: game.init_npc_num must be >= 0")
	}
	if c.Game.MaxActionRoundsPerTurn < 1 {
		return fmt.Errorf("config: game.max_action_rounds_per_turn must be >= 1")
	}
	if c.Game.NPCAwakeningRatePerMonth < 0 || c.Game.NPCAwakeningRatePerMonth > 1 {
		return fmt.Errorf("config: game.npc_awakening_rate_per_month must be in [0,1]")
	}
	if c.AI.MaxConcurrentRequests < 1 {
		return fmt.Errorf("config: ai.max_concurrent_requests must be >= 1")
	}
	switch c.LLM.Mode {
	case "normal", "fast", "":
	default:
		return fmt.Errorf("config: llm.mode %q is not a known mode", c.LLM.Mode)
	}
	if _, ok := supportedLanguages[c.System.Language]; !ok {
		return fmt.Errorf("config: system.language %q is not a supported locale tag", c.System.Language)
	}
	return nil
}

var supportedLanguages = map[string]bool{"en": true, "zh": true}
