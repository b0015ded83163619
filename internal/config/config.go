package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all Sonara environment variables.
const EnvPrefix = "SONARA_"

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	Endpoint             string  `yaml:"endpoint"`
	ConfigID             string  `yaml:"config_id"`
	SystemPrompt         string  `yaml:"system_prompt"`
	DBPath               string  `yaml:"db_path"`
	AudioDir             string  `yaml:"audio_dir"`
	WireSampleRate       int     `yaml:"wire_sample_rate"`
	MicSampleRate        int     `yaml:"mic_sample_rate"`
	MicSampleRates       []int   `yaml:"mic_sample_rates"`
	SpeechThreshold      float64 `yaml:"speech_threshold"`
	SilenceWindow        string  `yaml:"silence_window"`
	MaxReconnectAttempts int     `yaml:"max_reconnect_attempts"`
	ReconnectBaseDelay   string  `yaml:"reconnect_base_delay"`
	OpenAIModel          string  `yaml:"openai_model"`

	// Secrets — env vars only, never serialized to YAML.
	VoiceAPIKey  string `yaml:"-"`
	OpenAIAPIKey string `yaml:"-"`
}

func defaults() Config {
	return Config{
		Endpoint:             "wss://api.hume.ai/v0/evi/chat",
		DBPath:               "data/sonara.db",
		AudioDir:             "data/audio",
		WireSampleRate:       16000,
		MicSampleRate:        48000,
		MicSampleRates:       []int{48000, 44100, 32000, 24000, 16000},
		SpeechThreshold:      0.02,
		SilenceWindow:        "800ms",
		MaxReconnectAttempts: 3,
		ReconnectBaseDelay:   "2s",
		OpenAIModel:          "gpt-4o-mini",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedSilenceWindow returns SilenceWindow as a time.Duration,
// falling back to 800ms if the value is invalid.
func (c *Config) ParsedSilenceWindow() time.Duration {
	d, err := time.ParseDuration(c.SilenceWindow)
	if err != nil {
		return 800 * time.Millisecond
	}
	return d
}

// ParsedReconnectBaseDelay returns ReconnectBaseDelay as a time.Duration,
// falling back to 2s if the value is invalid.
func (c *Config) ParsedReconnectBaseDelay() time.Duration {
	d, err := time.ParseDuration(c.ReconnectBaseDelay)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// SampleRateCandidates returns a deduplicated ordered list of capture sample
// rates to try: preferred rate first, then configured alternatives, then
// defaults.
func (c *Config) SampleRateCandidates() []int {
	hardcoded := []int{48000, 44100, 32000, 24000, 16000}

	combined := make([]int, 0, 1+len(c.MicSampleRates)+len(hardcoded))
	combined = append(combined, c.MicSampleRate)
	combined = append(combined, c.MicSampleRates...)
	combined = append(combined, hardcoded...)

	seen := make(map[int]struct{}, len(combined))
	result := make([]int, 0, len(combined))
	for _, rate := range combined {
		if rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}
	return result
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv(EnvPrefix + "CONFIG_ID"); v != "" {
		cfg.ConfigID = v
	}
	if v := os.Getenv(EnvPrefix + "SYSTEM_PROMPT"); v != "" {
		cfg.SystemPrompt = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "AUDIO_DIR"); v != "" {
		cfg.AudioDir = v
	}
	if v := os.Getenv(EnvPrefix + "WIRE_SAMPLE_RATE"); v != "" {
		if rate, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && rate > 0 {
			cfg.WireSampleRate = rate
		}
	}
	if v := os.Getenv(EnvPrefix + "MIC_SAMPLE_RATE"); v != "" {
		if rate, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && rate > 0 {
			cfg.MicSampleRate = rate
		}
	}
	if v := os.Getenv(EnvPrefix + "MIC_SAMPLE_RATES"); v != "" {
		cfg.MicSampleRates = parseSampleRates(v)
	}
	if v := os.Getenv(EnvPrefix + "SPEECH_THRESHOLD"); v != "" {
		if threshold, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && threshold > 0 {
			cfg.SpeechThreshold = threshold
		}
	}
	if v := os.Getenv(EnvPrefix + "SILENCE_WINDOW"); v != "" {
		cfg.SilenceWindow = v
	}
	if v := os.Getenv(EnvPrefix + "MAX_RECONNECT_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.MaxReconnectAttempts = n
		}
	}
	if v := os.Getenv(EnvPrefix + "RECONNECT_BASE_DELAY"); v != "" {
		cfg.ReconnectBaseDelay = v
	}
	if v := os.Getenv(EnvPrefix + "OPENAI_MODEL"); v != "" {
		cfg.OpenAIModel = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.VoiceAPIKey = os.Getenv(EnvPrefix + "VOICE_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.VoiceAPIKey == "" {
		warnings = append(warnings, "Voice API key not configured \u2014 connecting will be rejected by the service. Set "+EnvPrefix+"VOICE_API_KEY.")
	}
	if cfg.ConfigID == "" {
		warnings = append(warnings, "Voice config ID not configured \u2014 the service default persona is used. Set "+EnvPrefix+"CONFIG_ID.")
	}
	if cfg.OpenAIAPIKey == "" {
		warnings = append(warnings, "OpenAI API key not configured \u2014 session summaries are disabled. Set "+EnvPrefix+"OPENAI_API_KEY.")
	}
	if _, err := time.ParseDuration(cfg.SilenceWindow); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid silence_window %q \u2014 using default 800ms.", cfg.SilenceWindow))
	}
	if _, err := time.ParseDuration(cfg.ReconnectBaseDelay); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid reconnect_base_delay %q \u2014 using default 2s.", cfg.ReconnectBaseDelay))
	}

	return warnings
}

func parseSampleRates(raw string) []int {
	parts := strings.Split(raw, ",")
	seen := make(map[int]struct{}, len(parts))
	result := make([]int, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		rate, err := strconv.Atoi(trimmed)
		if err != nil || rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}

	return result
}
