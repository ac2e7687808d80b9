// Package config loads the agent's YAML configuration and layers environment
// overrides on top of it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for the config file.
const DefaultPath = "hermit.yaml"

// ErrInvalid marks a configuration that cannot run the agent.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all hermitbase configuration.
type Config struct {
	Chain     ChainConfig     `yaml:"chain"`
	Wallet    WalletConfig    `yaml:"wallet"`
	Social    SocialConfig    `yaml:"social"`
	LLM       LLMConfig       `yaml:"llm"`
	Molt      MoltConfig      `yaml:"molt"`
	Loop      LoopConfig      `yaml:"loop"`
	State     StateConfig     `yaml:"state"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ChainConfig selects the ledger.
type ChainConfig struct {
	RPCURL          string `yaml:"rpc_url"`
	ChainID         int64  `yaml:"chain_id"`
	ShellNFTAddress string `yaml:"shell_nft_address"`
}

// WalletConfig holds the signing key. Prefer the PRIVATE_KEY env var.
type WalletConfig struct {
	PrivateKey string `yaml:"private_key"`
}

// SocialConfig configures Farcaster posting through Neynar.
type SocialConfig struct {
	NeynarAPIKey string `yaml:"neynar_api_key"`
	SignerUUID   string `yaml:"signer_uuid"`
	FID          int64  `yaml:"fid"`
	BaseURL      string `yaml:"base_url"`
	ExplorerURL  string `yaml:"explorer_url"`
	Timeout      string `yaml:"timeout"`
}

// LLMConfig configures the advisory backend.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, gemini
	APIURL   string `yaml:"api_url"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Timeout  string `yaml:"timeout"`
}

// MoltConfig bounds the randomized molt thresholds.
type MoltConfig struct {
	TxMin   int    `yaml:"tx_min"`
	TxMax   int    `yaml:"tx_max"`
	TimeMin string `yaml:"time_min"`
	TimeMax string `yaml:"time_max"`
}

// LoopConfig paces the control loop.
type LoopConfig struct {
	SleepMin       string `yaml:"sleep_min"`
	SleepMax       string `yaml:"sleep_max"`
	ErrorBackoff   string `yaml:"error_backoff"`
	AnnounceEvery  int    `yaml:"announce_every"`
	MentionReplies int    `yaml:"mention_replies"`
	ReplyPause     string `yaml:"reply_pause"`
	ThreadPause    string `yaml:"thread_pause"`
}

// StateConfig locates the lifecycle state file.
type StateConfig struct {
	Path string `yaml:"path"`
}

// ArchiveConfig configures the SQLite shell archive.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chain: ChainConfig{
			RPCURL:          "https://sepolia.base.org",
			ChainID:         84532,
			ShellNFTAddress: "0xcf38e8aF885529c457f766a01c22473dBcCe3396",
		},
		Social: SocialConfig{
			FID:         2730232,
			BaseURL:     "https://api.neynar.com/v2/farcaster",
			ExplorerURL: "https://sepolia.basescan.org",
			Timeout:     "15s",
		},
		LLM: LLMConfig{
			Provider: "openai",
			APIURL:   "https://openrouter.ai/api/v1/chat/completions",
			Model:    "openrouter/auto",
			Timeout:  "30s",
		},
		Molt: MoltConfig{
			TxMin:   10,
			TxMax:   20,
			TimeMin: "2h",
			TimeMax: "4h",
		},
		Loop: LoopConfig{
			SleepMin:       "8m",
			SleepMax:       "15m",
			ErrorBackoff:   "2m",
			AnnounceEvery:  3,
			MentionReplies: 3,
			ReplyPause:     "2s",
			ThreadPause:    "3s",
		},
		State: StateConfig{
			Path: "data/state.json",
		},
		Archive: ArchiveConfig{
			Enabled: true,
			Path:    "data/archive.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "hermitbase",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// envOverrides names the environment variables the agent honours.
type envOverrides struct {
	PrivateKey     string `env:"PRIVATE_KEY"`
	RPCURL         string `env:"BASE_SEPOLIA_RPC"`
	ChainID        int64  `env:"HERMIT_CHAIN_ID"`
	ShellNFT       string `env:"SHELL_NFT_ADDRESS"`
	NeynarAPIKey   string `env:"NEYNAR_API_KEY"`
	SignerUUID     string `env:"FARCASTER_SIGNER_UUID"`
	FID            int64  `env:"HERMITBASE_FID"`
	LLMProvider    string `env:"LLM_PROVIDER"`
	LLMURL         string `env:"LLM_API_URL"`
	LLMKey         string `env:"LLM_API_KEY"`
	MoonshotKey    string `env:"MOONSHOT_API_KEY"`
	LLMModel       string `env:"LLM_MODEL"`
	GeminiKey      string `env:"GEMINI_API_KEY"`
	StatePath      string `env:"HERMIT_STATE_PATH"`
	ArchivePath    string `env:"HERMIT_ARCHIVE_PATH"`
	LogLevel       string `env:"HERMIT_LOG_LEVEL"`
	OTLPEndpoint   string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPServiceTag string `env:"OTEL_SERVICE_NAME"`
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	var e envOverrides
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Wallet.PrivateKey, e.PrivateKey)
	set(&c.Chain.RPCURL, e.RPCURL)
	set(&c.Chain.ShellNFTAddress, e.ShellNFT)
	if e.ChainID != 0 {
		c.Chain.ChainID = e.ChainID
	}
	set(&c.Social.NeynarAPIKey, e.NeynarAPIKey)
	set(&c.Social.SignerUUID, e.SignerUUID)
	if e.FID != 0 {
		c.Social.FID = e.FID
	}

	// LLM key priority: LLM_API_KEY, then the legacy MOONSHOT_API_KEY, then
	// GEMINI_API_KEY which also switches the provider.
	set(&c.LLM.Provider, e.LLMProvider)
	set(&c.LLM.APIURL, e.LLMURL)
	set(&c.LLM.Model, e.LLMModel)
	switch {
	case e.LLMKey != "":
		c.LLM.APIKey = e.LLMKey
	case e.MoonshotKey != "":
		c.LLM.APIKey = e.MoonshotKey
	case e.GeminiKey != "":
		c.LLM.APIKey = e.GeminiKey
		if e.LLMProvider == "" {
			c.LLM.Provider = "gemini"
		}
	}

	set(&c.State.Path, e.StatePath)
	set(&c.Archive.Path, e.ArchivePath)
	set(&c.Logging.Level, e.LogLevel)
	if e.OTLPEndpoint != "" {
		c.Telemetry.Endpoint = e.OTLPEndpoint
		c.Telemetry.Enabled = true
	}
	set(&c.Telemetry.ServiceName, e.OTLPServiceTag)
	return nil
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// GetTimeMin returns the minimum shell age before a molt is possible.
func (c *Config) GetTimeMin() time.Duration { return durationOr(c.Molt.TimeMin, 2*time.Hour) }

// GetTimeMax returns the upper bound of the drawn age threshold.
func (c *Config) GetTimeMax() time.Duration { return durationOr(c.Molt.TimeMax, 4*time.Hour) }

// GetSleepMin returns the shortest sleep between iterations.
func (c *Config) GetSleepMin() time.Duration { return durationOr(c.Loop.SleepMin, 8*time.Minute) }

// GetSleepMax returns the longest sleep between iterations.
func (c *Config) GetSleepMax() time.Duration { return durationOr(c.Loop.SleepMax, 15*time.Minute) }

// GetErrorBackoff returns the cooldown after a failed iteration.
func (c *Config) GetErrorBackoff() time.Duration { return durationOr(c.Loop.ErrorBackoff, 2*time.Minute) }

// GetReplyPause returns the pause between mention replies.
func (c *Config) GetReplyPause() time.Duration { return durationOr(c.Loop.ReplyPause, 2*time.Second) }

// GetThreadPause returns the pause before a threaded reflection reply.
func (c *Config) GetThreadPause() time.Duration { return durationOr(c.Loop.ThreadPause, 3*time.Second) }

// GetLLMTimeout returns the advisory request timeout.
func (c *Config) GetLLMTimeout() time.Duration { return durationOr(c.LLM.Timeout, 30*time.Second) }

// GetSocialTimeout returns the Neynar request timeout.
func (c *Config) GetSocialTimeout() time.Duration { return durationOr(c.Social.Timeout, 15*time.Second) }

// Tuning is the subset of configuration the running loop may pick up from
// a reloaded file.
type Tuning struct {
	TxMin          int
	TxMax          int
	TimeMin        time.Duration
	TimeMax        time.Duration
	SleepMin       time.Duration
	SleepMax       time.Duration
	ErrorBackoff   time.Duration
	AnnounceEvery  int
	MentionReplies int
	ReplyPause     time.Duration
	ThreadPause    time.Duration
}

// Tuning extracts the reloadable settings.
func (c *Config) Tuning() Tuning {
	return Tuning{
		TxMin:          c.Molt.TxMin,
		TxMax:          c.Molt.TxMax,
		TimeMin:        c.GetTimeMin(),
		TimeMax:        c.GetTimeMax(),
		SleepMin:       c.GetSleepMin(),
		SleepMax:       c.GetSleepMax(),
		ErrorBackoff:   c.GetErrorBackoff(),
		AnnounceEvery:  c.Loop.AnnounceEvery,
		MentionReplies: c.Loop.MentionReplies,
		ReplyPause:     c.GetReplyPause(),
		ThreadPause:    c.GetThreadPause(),
	}
}

// Validate checks ranges only; it does not require secrets.
func (t Tuning) Validate() error {
	var problems []string
	if t.TxMin < 0 || t.TxMax < t.TxMin {
		problems = append(problems, fmt.Sprintf("molt.tx_min/tx_max out of order (%d, %d)", t.TxMin, t.TxMax))
	}
	if t.TimeMax < t.TimeMin {
		problems = append(problems, fmt.Sprintf("molt.time_min/time_max out of order (%s, %s)", t.TimeMin, t.TimeMax))
	}
	if t.SleepMax < t.SleepMin {
		problems = append(problems, fmt.Sprintf("loop.sleep_min/sleep_max out of order (%s, %s)", t.SleepMin, t.SleepMax))
	}
	if t.AnnounceEvery < 1 {
		problems = append(problems, "loop.announce_every must be at least 1")
	}
	if t.MentionReplies < 0 {
		problems = append(problems, "loop.mention_replies must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// ValidProviders lists the supported LLM providers.
var ValidProviders = []string{"openai", "gemini"}

// Validate checks that the agent can run: secrets are present and ranges
// are well formed.
func (c *Config) Validate() error {
	var missing []string
	if c.Wallet.PrivateKey == "" {
		missing = append(missing, "PRIVATE_KEY")
	}
	if c.Social.NeynarAPIKey == "" {
		missing = append(missing, "NEYNAR_API_KEY")
	}
	if c.Social.SignerUUID == "" {
		missing = append(missing, "FARCASTER_SIGNER_UUID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required settings: %s", ErrInvalid, strings.Join(missing, ", "))
	}
	if c.Chain.ChainID <= 0 {
		return fmt.Errorf("%w: chain.chain_id must be positive", ErrInvalid)
	}

	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("%w: invalid LLM provider: %s (valid: %v)", ErrInvalid, c.LLM.Provider, ValidProviders)
	}

	return c.Tuning().Validate()
}
