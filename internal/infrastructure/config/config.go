package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the startup value object. Every field has a documented default
// and is overridable from the environment (ROUTER_URL, PRIMARY_URL, ...).
type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`

	RouterURL  string `mapstructure:"router_url"`
	PrimaryURL string `mapstructure:"primary_url"`
	XAIAPIURL  string `mapstructure:"xai_api_url"`
	XAIAPIKey  string `mapstructure:"xai_api_key"`

	RouterModel  string `mapstructure:"router_model"`
	PrimaryModel string `mapstructure:"primary_model"`
	XAIModel     string `mapstructure:"xai_model"`
	VirtualModel string `mapstructure:"virtual_model"`

	// Comma-separated tool types for enrichment ("web_search,x_search");
	// empty disables tools.
	XAISearchTools string `mapstructure:"xai_search_tools"`

	XAIMaxTokensFloor   int `mapstructure:"xai_max_tokens_floor"`
	ClassifierMaxTokens int `mapstructure:"classifier_max_tokens"`
	MetaMaxChars        int `mapstructure:"meta_max_chars"`

	Timezone string `mapstructure:"tz_name"`

	LogDir        string `mapstructure:"log_dir"`
	LogLevel      string `mapstructure:"log_level"`
	LogMaxAgeDays int    `mapstructure:"log_max_age_days"`
	LogMaxCount   int    `mapstructure:"log_max_count"`

	RoutingPromptPath             string `mapstructure:"routing_prompt_path"`
	RoutingSystemPromptPath       string `mapstructure:"routing_system_prompt_path"`
	PrimarySystemPromptPath       string `mapstructure:"primary_system_prompt_path"`
	XAISystemPromptPath           string `mapstructure:"xai_system_prompt_path"`
	EnrichmentSystemPromptPath    string `mapstructure:"enrichment_system_prompt_path"`
	EnrichmentInjectionPromptPath string `mapstructure:"enrichment_injection_prompt_path"`
	MetaSystemPromptPath          string `mapstructure:"meta_system_prompt_path"`

	location *time.Location
}

// Timeouts for outbound calls. Fixed by design: backends are either local
// (fast-fail) or cloud (retries would blow past user patience).
const (
	ForwardTimeout     = 300 * time.Second
	ClassifyTimeout    = 10 * time.Second
	EnrichTimeout      = 60 * time.Second
	HealthProbeTimeout = 5 * time.Second
)

// SecretKeyFile is read for the cloud API key before falling back to the
// XAI_API_KEY environment variable.
const SecretKeyFile = "/run/secrets/xai_api_key"

// Load builds the configuration from defaults and environment variables.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Env names match the config keys directly (router_url → ROUTER_URL),
	// preserving the deployment contract.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key := range v.AllSettings() {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key, err := os.ReadFile(SecretKeyFile); err == nil {
		if trimmed := strings.TrimSpace(string(key)); trimmed != "" {
			cfg.XAIAPIKey = trimmed
		}
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	cfg.location = loc

	return &cfg, nil
}

// Location returns the configured timezone. The host default is never used.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			loc = time.UTC
		}
		c.location = loc
	}
	return c.location
}

// SessionsDir is where per-request session JSON files are written.
func (c *Config) SessionsDir() string {
	return c.LogDir + "/sessions"
}

// AppLogFile is the rotating text log path.
func (c *Config) AppLogFile() string {
	return c.LogDir + "/app.log"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", "0.0.0.0:8002")

	v.SetDefault("router_url", "http://router:8001")
	v.SetDefault("primary_url", "http://primary:8000")
	v.SetDefault("xai_api_url", "https://api.x.ai")
	v.SetDefault("xai_api_key", "")

	v.SetDefault("router_model", "nvidia/Nemotron-Mini-4B-Instruct")
	v.SetDefault("primary_model", "unsloth/NVIDIA-Nemotron-3-Nano-30B-A3B-NVFP4")
	v.SetDefault("xai_model", "grok-4-1-fast-reasoning")
	v.SetDefault("virtual_model", "ai-router")

	v.SetDefault("xai_search_tools", "web_search,x_search")
	v.SetDefault("xai_max_tokens_floor", 16384)
	v.SetDefault("classifier_max_tokens", 1024)
	v.SetDefault("meta_max_chars", 112000)

	v.SetDefault("tz_name", "America/New_York")

	v.SetDefault("log_dir", "/app/logs")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_max_age_days", 7)
	v.SetDefault("log_max_count", 5000)

	v.SetDefault("routing_prompt_path", "/app/config/routing-prompt.md")
	v.SetDefault("routing_system_prompt_path", "/app/config/routing-system-prompt.md")
	v.SetDefault("primary_system_prompt_path", "/app/config/primary-system-prompt.md")
	v.SetDefault("xai_system_prompt_path", "/app/config/xai-system-prompt.md")
	v.SetDefault("enrichment_system_prompt_path", "/app/config/enrichment-system-prompt.md")
	v.SetDefault("enrichment_injection_prompt_path", "/app/config/enrichment-injection-prompt.md")
	v.SetDefault("meta_system_prompt_path", "/app/config/meta-system-prompt.md")
}
