// Package config loads the single YAML configuration source that supplies
// authority tiers, permission mode, provider routing, goal/mind limits, and
// storage paths (spec §6.3). Enumerated fields are validated at load time;
// an unrecognized value is a fatal parse error rather than a silent default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nexuscore/agentcore/pkg/models"
)

// Config is the root configuration object for the runtime core.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	Authority AuthorityConfig `yaml:"authority"`
	Policy    PolicyConfig    `yaml:"policy"`
	LLM       LLMConfig       `yaml:"llm"`
	Goals     GoalsConfig     `yaml:"goals"`
	Mind      MindConfig      `yaml:"mind"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Storage   StorageConfig   `yaml:"storage"`
	Vault     VaultConfig     `yaml:"vault"`
}

// GatewayConfig configures the WebSocket control plane.
type GatewayConfig struct {
	ListenAddr         string `yaml:"listen_addr"`
	ApprovalTimeoutSec int    `yaml:"approval_timeout_seconds"`
	MaxConversationLen int    `yaml:"max_conversation_len"`
	MaxRounds          int    `yaml:"max_rounds"`
}

// AuthorityConfig maps (channel, platform user id) to authority tier.
type AuthorityConfig struct {
	Owner   []UserRef `yaml:"owner"`
	Trusted []UserRef `yaml:"trusted"`
	// everyone else defaults to public
}

// UserRef identifies a user on a channel.
type UserRef struct {
	Channel string `yaml:"channel"`
	UserID  string `yaml:"user_id"`
}

// Tier resolves the configured tier for (channel, userID); CLI is always owner.
func (a AuthorityConfig) Tier(channel, userID string) models.AuthorityTier {
	if channel == "cli" || channel == "terminal" {
		return models.TierOwner
	}
	for _, u := range a.Owner {
		if u.Channel == channel && u.UserID == userID {
			return models.TierOwner
		}
	}
	for _, u := range a.Trusted {
		if u.Channel == channel && u.UserID == userID {
			return models.TierTrusted
		}
	}
	return models.TierPublic
}

// PolicyConfig configures permission mode, blacklists, and protected paths.
type PolicyConfig struct {
	Mode                 models.PermissionMode `yaml:"mode"`
	ToolOverrides        map[string]string      `yaml:"tool_overrides"` // tool -> auto|ask|default
	ShellAutoApprove     []string               `yaml:"shell_auto_approve"`
	ShellAlwaysBlock     []string               `yaml:"shell_always_block"`
	FileWriteAllowPrefix []string               `yaml:"file_write_allow_prefix"`
	FileWriteAskPrefix   []string               `yaml:"file_write_ask_prefix"`
	ProtectedPaths       []string               `yaml:"protected_paths"`
	Spending             SpendingConfig         `yaml:"spending"`
}

// SpendingConfig configures payment-tool approval thresholds (spec §4.2 rule 5).
type SpendingConfig struct {
	PerTransactionUSD float64 `yaml:"per_transaction_usd"`
	DailyUSD          float64 `yaml:"daily_usd"`
	MonthlyUSD        float64 `yaml:"monthly_usd"`
	PerMerchantUSD    float64 `yaml:"per_merchant_usd"`
	CooldownThreshold float64 `yaml:"cooldown_threshold_usd"`
	CooldownMinutes   int     `yaml:"cooldown_minutes"`
}

// LLMProviderConfig is the per-provider configuration block.
type LLMProviderConfig struct {
	Enabled       bool              `yaml:"enabled"`
	APIKeyRef     string            `yaml:"api_key_ref"` // vault key name
	BaseURL       string            `yaml:"base_url"`
	Region        string            `yaml:"region"` // AWS region, bedrock only
	ModelForTask  map[string]string `yaml:"model_for_task"`
	DailyBudgetUSD float64          `yaml:"daily_budget_usd"`
}

// LLMConfig configures the provider-agnostic router.
type LLMConfig struct {
	ProviderPriority []string                     `yaml:"provider_priority"`
	Providers        map[string]LLMProviderConfig `yaml:"providers"`
}

// GoalsConfig configures the goal runner loop limits (spec §6.3).
type GoalsConfig struct {
	MaxCheckpoints              int     `yaml:"max_checkpoints"`
	MaxCheckpointAttempts       int     `yaml:"max_checkpoint_attempts"`
	MaxLLMCallsPerGoal          int     `yaml:"max_llm_calls_per_goal"`
	MaxTimePerCheckpointSeconds int     `yaml:"max_time_per_checkpoint_seconds"`
	MaxTotalTimePerGoalSeconds  int     `yaml:"max_total_time_per_goal_seconds"`
	CostBudgetPerGoalUSD        float64 `yaml:"cost_budget_per_goal_usd"`
	ContextSummaryMaxTokens     int     `yaml:"context_summary_max_tokens"`
	AutoContinue                bool    `yaml:"auto_continue"`
	PauseBetweenCheckpointsSec  int     `yaml:"pause_between_checkpoints_seconds"`
}

// MindConfig configures the autonomous mind worker (spec §6.3).
type MindConfig struct {
	Enabled           bool           `yaml:"enabled"`
	WakeupSeconds     int            `yaml:"wakeup_seconds"`
	MinWakeupSeconds  int            `yaml:"min_wakeup_seconds"`
	MaxWakeupSeconds  int            `yaml:"max_wakeup_seconds"`
	BudgetPct         float64        `yaml:"budget_pct"`
	MaxRoundsPerWakeup int           `yaml:"max_rounds_per_wakeup"`
	VerbosityByChannel map[string]string `yaml:"verbosity_by_channel"`
	PriorityOrder     []string       `yaml:"priority_order"`
	MaxOwnerMsgPerHour int           `yaml:"max_owner_messages_per_hour"`
}

// RetrievalConfig configures the hybrid knowledge retriever (spec.md §4.5
// "Vector side-index"): a remote embeddings call for the similarity leg,
// combined with the knowledge store's FTS5 keyword leg at a configurable
// weight.
type RetrievalConfig struct {
	Embeddings   EmbeddingsConfig `yaml:"embeddings"`
	VectorWeight float64          `yaml:"vector_weight"` // 0..1; keyword leg gets 1-VectorWeight
	TopK         int              `yaml:"top_k"`
}

// EmbeddingsConfig points at an OpenAI-compatible /embeddings endpoint.
type EmbeddingsConfig struct {
	Provider  string `yaml:"provider"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKeyRef string `yaml:"api_key_ref"` // vault key name
	TimeoutMS int    `yaml:"timeout_ms"`
}

// StorageConfig configures the embedded relational store location.
type StorageConfig struct {
	DataDir          string `yaml:"data_dir"`
	StoreFile        string `yaml:"store_file"`
	CacheLRUCap      int    `yaml:"cache_lru_cap"`
	MaxFileSizeBytes int64  `yaml:"max_file_size_bytes"`
	// QuotaCapMB is the data directory size the storage-quota guard (spec
	// §4.6) measures usage against: 80% soft-alert, 95% hard-stop on
	// filesystem-writing tools.
	QuotaCapMB int64 `yaml:"quota_cap_mb"`
}

// VaultConfig configures the credential vault file paths.
type VaultConfig struct {
	BlobPath string `yaml:"blob_path"`
	SaltPath string `yaml:"salt_path"`
}

var validModes = map[models.PermissionMode]bool{
	models.ModeAskAlways: true,
	models.ModeSmartAuto: true,
	models.ModeFullAuto:  true,
}

// Load reads and validates a Config from the given YAML file path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	expandHome(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Save marshals cfg as YAML and writes it to path, creating parent
// directories as needed. Used by the `init` CLI command to seed a fresh
// config file on first boot.
func Save(cfg *Config, path string) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: mkdir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Default returns a Config populated with the spec's documented defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			ListenAddr:         "127.0.0.1:18789",
			ApprovalTimeoutSec: 3600,
			MaxConversationLen: 20,
			MaxRounds:          8,
		},
		Policy: PolicyConfig{
			Mode: models.ModeSmartAuto,
		},
		Goals: GoalsConfig{
			MaxCheckpoints:             20,
			MaxCheckpointAttempts:      3,
			MaxLLMCallsPerGoal:         200,
			ContextSummaryMaxTokens:    2000,
			AutoContinue:               true,
			PauseBetweenCheckpointsSec: 2,
		},
		Mind: MindConfig{
			Enabled:            true,
			WakeupSeconds:      300,
			MinWakeupSeconds:   60,
			MaxWakeupSeconds:   3600,
			BudgetPct:          0.1,
			MaxRoundsPerWakeup: 8,
			MaxOwnerMsgPerHour: 5,
		},
		Retrieval: RetrievalConfig{
			VectorWeight: 0.6,
			TopK:         8,
			Embeddings: EmbeddingsConfig{
				TimeoutMS: 15000,
			},
		},
		Storage: StorageConfig{
			DataDir:    "./data",
			StoreFile:  "nexus.db",
			QuotaCapMB: 2048,
		},
		Vault: VaultConfig{
			BlobPath: "./data/vault.enc",
			SaltPath: "./data/vault.salt",
		},
	}
}

// Validate rejects unrecognized enum values and nonsensical limits, per the
// "enumerated config structs" design note (spec §9).
func (c *Config) Validate() error {
	if !validModes[c.Policy.Mode] {
		return fmt.Errorf("invalid policy mode %q", c.Policy.Mode)
	}
	for tool, mode := range c.Policy.ToolOverrides {
		switch mode {
		case "auto", "ask", "default":
		default:
			return fmt.Errorf("invalid tool override %q for %q", mode, tool)
		}
	}
	for name, p := range c.LLM.Providers {
		for tt := range p.ModelForTask {
			switch models.TaskType(tt) {
			case models.TaskTypePlanning, models.TaskTypeCoding, models.TaskTypeReview,
				models.TaskTypeAnalysis, models.TaskTypeSimple, models.TaskTypeEmbedding:
			default:
				return fmt.Errorf("provider %q: invalid task type %q", name, tt)
			}
		}
	}
	if c.Mind.MinWakeupSeconds > c.Mind.MaxWakeupSeconds {
		return fmt.Errorf("mind.min_wakeup_seconds must be <= mind.max_wakeup_seconds")
	}
	if c.Retrieval.VectorWeight < 0 || c.Retrieval.VectorWeight > 1 {
		return fmt.Errorf("retrieval.vector_weight must be within [0,1]")
	}
	return nil
}

func expandHome(c *Config) {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	expand := func(s string) string {
		if strings.HasPrefix(s, "~") {
			return filepath.Join(home, strings.TrimPrefix(s, "~"))
		}
		return s
	}
	for i, p := range c.Policy.FileWriteAllowPrefix {
		c.Policy.FileWriteAllowPrefix[i] = expand(p)
	}
	for i, p := range c.Policy.FileWriteAskPrefix {
		c.Policy.FileWriteAskPrefix[i] = expand(p)
	}
	for i, p := range c.Policy.ProtectedPaths {
		c.Policy.ProtectedPaths[i] = expand(p)
	}
	c.Storage.DataDir = expand(c.Storage.DataDir)
	c.Vault.BlobPath = expand(c.Vault.BlobPath)
	c.Vault.SaltPath = expand(c.Vault.SaltPath)
}
