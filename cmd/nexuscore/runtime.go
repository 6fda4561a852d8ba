package main

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/nexuscore/agentcore/internal/agent"
	"github.com/nexuscore/agentcore/internal/config"
	"github.com/nexuscore/agentcore/internal/gateway"
	"github.com/nexuscore/agentcore/internal/goals"
	"github.com/nexuscore/agentcore/internal/llm"
	"github.com/nexuscore/agentcore/internal/llm/providers"
	"github.com/nexuscore/agentcore/internal/mind"
	"github.com/nexuscore/agentcore/internal/observability"
	"github.com/nexuscore/agentcore/internal/policy"
	"github.com/nexuscore/agentcore/internal/retrieval"
	"github.com/nexuscore/agentcore/internal/scheduler"
	"github.com/nexuscore/agentcore/internal/security"
	"github.com/nexuscore/agentcore/internal/sessions"
	"github.com/nexuscore/agentcore/internal/storage"
	"github.com/nexuscore/agentcore/internal/tools"
	"github.com/nexuscore/agentcore/internal/tools/builtin"
	"github.com/nexuscore/agentcore/internal/vault"
	"github.com/nexuscore/agentcore/internal/worker"
	"github.com/nexuscore/agentcore/pkg/models"
)

// runtime is every long-lived dependency the CLI commands share, built once
// from a loaded Config and an unlocked Vault. It mirrors the shape of
// storage.StoreSet: a plain aggregate, not a god-object with behavior of
// its own beyond Start/Stop.
type runtime struct {
	cfg    *config.Config
	stores storage.StoreSet
	vault  *vault.Vault

	registry  *tools.Registry
	engine    *policy.Engine
	llmRouter *llm.Router

	sessionRouter *sessions.Router
	gatewaySrv    *gateway.Server
	goalRunner    *goals.Runner
	mindWorker    *mind.Worker
	sched         *scheduler.Scheduler
	retriever     *retrieval.Retriever
	procRegistry  *security.ProcessRegistry
	metrics       *observability.Metrics

	logger *slog.Logger
}

// buildRuntime wires every subsystem (spec.md §6) from a validated config
// and an already-unlocked vault. Nothing here starts a goroutine; callers
// decide what to run (gateway listens, goals resume, mind wakes,
// scheduler ticks) depending on which command invoked them.
func buildRuntime(cfg *config.Config, v *vault.Vault, logger *slog.Logger) (*runtime, error) {
	stores, err := storage.OpenSQLite(cfg.Storage.DataDir + "/" + cfg.Storage.StoreFile)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	blacklist, err := policy.NewBlacklist(cfg.Policy.ShellAlwaysBlock)
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("compile shell blacklist: %w", err)
	}
	protected := policy.NewProtectedGuard(cfg.Policy.ProtectedPaths)
	spending := policy.NewSpendingGuard(
		cfg.Policy.Spending.PerTransactionUSD,
		cfg.Policy.Spending.DailyUSD,
		cfg.Policy.Spending.MonthlyUSD,
		cfg.Policy.Spending.PerMerchantUSD,
		cfg.Policy.Spending.CooldownThreshold,
		cfg.Policy.Spending.CooldownMinutes,
	)
	engine, err := policy.NewEngine(cfg.Policy.Mode, cfg.Policy.ToolOverrides, protected, blacklist,
		cfg.Policy.ShellAutoApprove, cfg.Policy.FileWriteAllowPrefix, spending)
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("build policy engine: %w", err)
	}
	dataDir := cfg.Storage.DataDir
	quotaCapBytes := cfg.Storage.QuotaCapMB * 1024 * 1024
	engine.StorageQuota = func() security.StorageQuotaLevel {
		used, err := dirSizeBytes(dataDir)
		if err != nil {
			return security.StorageQuotaOK
		}
		return security.EvaluateStorageQuota(used, quotaCapBytes)
	}

	if err := verifyFingerprint(cfg, v); err != nil {
		stores.Close()
		return nil, err
	}

	metrics := observability.New()

	llmRouter, dailyBudget, err := buildLLMRouter(cfg, v, stores)
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("build llm router: %w", err)
	}
	llmRouter.SetMetrics(metrics)

	registry := tools.NewRegistry()
	procRegistry := security.NewProcessRegistry(nil)
	if err := registerBuiltinTools(registry, cfg, v, stores, procRegistry); err != nil {
		stores.Close()
		return nil, fmt.Errorf("register tools: %w", err)
	}

	owners := make([]sessions.UserRef, len(cfg.Authority.Owner))
	for i, u := range cfg.Authority.Owner {
		owners[i] = sessions.UserRef{Channel: u.Channel, UserID: u.UserID}
	}
	trusted := make([]sessions.UserRef, len(cfg.Authority.Trusted))
	for i, u := range cfg.Authority.Trusted {
		trusted[i] = sessions.UserRef{Channel: u.Channel, UserID: u.UserID}
	}
	tierResolver := sessions.NewStaticTierResolver(owners, trusted)
	sessionRouter := sessions.NewRouter(stores.Sessions, tierResolver, cfg.Gateway.MaxConversationLen)

	loopConfig := agent.LoopConfig{MaxRounds: cfg.Gateway.MaxRounds, MaxTokens: 4096, Reflect: true}

	exclusion := &worker.ExclusionToken{}
	pause := &worker.PauseToken{}

	gatewaySrv := gateway.NewServer(sessionRouter, stores, registry, engine, llmRouter, loopConfig, nil, exclusion, pause, logger)
	gatewaySrv.SetMetrics(metrics)

	goalRunner := goals.New(stores, registry, engine, llmRouter, loopConfig, nil, gatewaySrv.Approvals(), gatewaySrv.Hub(), exclusion, pause, goalLimits(cfg), logger)

	mindWorker := mind.New(stores, registry, engine, llmRouter, loopConfig, gatewaySrv.Hub(), exclusion, pause, mindLimits(cfg), dailyBudget, nil, logger)

	sched := scheduler.New(stores.Schedules, func(ctx context.Context, goal string) error {
		_, err := goalRunner.CreateGoal(ctx, "scheduler", goal, cfg.Goals.MaxCheckpointAttempts)
		return err
	}, logger)

	var retriever *retrieval.Retriever
	if cfg.Retrieval.Embeddings.APIKeyRef != "" {
		key, err := v.Get(cfg.Retrieval.Embeddings.APIKeyRef)
		if err == nil && key != "" {
			embedder := retrieval.NewOpenAIEmbedder(key, cfg.Retrieval.Embeddings.BaseURL, cfg.Retrieval.Embeddings.Model)
			retriever = retrieval.NewRetriever(stores.Knowledge, embedder, cfg.Retrieval.VectorWeight)
		}
	}
	if retriever == nil {
		retriever = retrieval.NewRetriever(stores.Knowledge, nil, cfg.Retrieval.VectorWeight)
	}
	if err := registry.Register(builtin.KnowledgeSearch(retriever)); err != nil {
		stores.Close()
		return nil, fmt.Errorf("register knowledge_search: %w", err)
	}

	return &runtime{
		cfg:           cfg,
		stores:        stores,
		vault:         v,
		registry:      registry,
		engine:        engine,
		llmRouter:     llmRouter,
		sessionRouter: sessionRouter,
		gatewaySrv:    gatewaySrv,
		goalRunner:    goalRunner,
		mindWorker:    mindWorker,
		sched:         sched,
		retriever:     retriever,
		procRegistry:  procRegistry,
		metrics:       metrics,
		logger:        logger,
	}, nil
}

func (rt *runtime) Close() error {
	return rt.stores.Close()
}

// reserved vault keys for the identity fingerprint check (spec §4.6). Kept
// out of the ordinary key namespace so a colliding provider api_key_ref
// can never shadow them.
const (
	fingerprintVaultKey = "__nexuscore_fingerprint"
	firstBootVaultKey   = "__nexuscore_first_boot_ns"
)

// verifyFingerprint hard-fails startup if the vault's stored identity
// fingerprint (config digest + vault salt + first-boot timestamp, spec
// §4.6) no longer matches what the current config and vault salt produce
// — this catches a vault blob restored against the wrong config, or a
// salt file swapped out from under it. On first boot (no stored
// fingerprint yet) it records one instead of comparing.
func verifyFingerprint(cfg *config.Config, v *vault.Vault) error {
	digest, err := configDigest(cfg)
	if err != nil {
		return fmt.Errorf("compute config digest: %w", err)
	}

	firstBootStr, err := v.Get(firstBootVaultKey)
	if err != nil {
		if !errors.Is(err, vault.ErrNotFound) {
			return fmt.Errorf("read first-boot marker: %w", err)
		}
		firstBoot := time.Now().UnixNano()
		fp, err := vault.Fingerprint(digest, cfg.Vault.SaltPath, firstBoot)
		if err != nil {
			return fmt.Errorf("compute fingerprint: %w", err)
		}
		if err := v.Set(firstBootVaultKey, strconv.FormatInt(firstBoot, 10)); err != nil {
			return fmt.Errorf("record first-boot marker: %w", err)
		}
		if err := v.Set(fingerprintVaultKey, fp); err != nil {
			return fmt.Errorf("record fingerprint: %w", err)
		}
		return nil
	}

	firstBoot, err := strconv.ParseInt(firstBootStr, 10, 64)
	if err != nil {
		return fmt.Errorf("parse stored first-boot marker: %w", err)
	}
	want, err := v.Get(fingerprintVaultKey)
	if err != nil {
		return fmt.Errorf("read stored fingerprint: %w", err)
	}
	got, err := vault.Fingerprint(digest, cfg.Vault.SaltPath, firstBoot)
	if err != nil {
		return fmt.Errorf("compute fingerprint: %w", err)
	}
	if got != want {
		return fmt.Errorf("identity fingerprint mismatch: config or vault salt changed since first boot")
	}
	return nil
}

// configDigest hashes the config's non-secret fields (every credential is
// held as a vault key reference, never a raw value, so the whole struct is
// safe to hash) into a stable fingerprint input.
func configDigest(cfg *config.Config) (string, error) {
	encoded, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(encoded)
	return fmt.Sprintf("%x", sum), nil
}

// dirSizeBytes sums the size of every regular file under root, for the
// storage-quota guard (spec §4.6). A missing directory is treated as zero
// usage rather than an error, since it may not have been created yet.
func dirSizeBytes(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil && os.IsNotExist(err) {
		return 0, nil
	}
	return total, err
}

func buildLLMRouter(cfg *config.Config, v *vault.Vault, stores storage.StoreSet) (*llm.Router, float64, error) {
	var provs []llm.Provider
	var dailyBudget float64
	for name, p := range cfg.LLM.Providers {
		if !p.Enabled {
			continue
		}
		key := ""
		if p.APIKeyRef != "" {
			k, err := v.Get(p.APIKeyRef)
			if err != nil {
				return nil, 0, fmt.Errorf("resolve api key for provider %q: %w", name, err)
			}
			key = k
		}
		defaultModel := p.ModelForTask[string(models.TaskTypeSimple)]
		var provider llm.Provider
		switch name {
		case "openai":
			provider = providers.NewOpenAI(key, defaultModel)
		case "anthropic":
			provider = providers.NewAnthropic(key, defaultModel)
		case "bedrock":
			awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(p.Region))
			if err != nil {
				return nil, 0, fmt.Errorf("load aws config for bedrock provider %q: %w", name, err)
			}
			provider = providers.NewBedrock(bedrockruntime.NewFromConfig(awsCfg), defaultModel)
		default:
			continue
		}
		provs = append(provs, provider)
		dailyBudget += p.DailyBudgetUSD
	}

	taskTypes := []models.TaskType{
		models.TaskTypePlanning, models.TaskTypeCoding, models.TaskTypeReview,
		models.TaskTypeAnalysis, models.TaskTypeSimple, models.TaskTypeEmbedding,
	}
	routes := make(map[models.TaskType][]llm.Route, len(taskTypes))
	for _, taskType := range taskTypes {
		var chain []llm.Route
		for _, name := range cfg.LLM.ProviderPriority {
			p, ok := cfg.LLM.Providers[name]
			if !ok || !p.Enabled {
				continue
			}
			model := p.ModelForTask[string(taskType)]
			if model == "" {
				continue
			}
			chain = append(chain, llm.Route{Provider: name, Model: model})
		}
		if len(chain) > 0 {
			routes[taskType] = chain
		}
	}

	return llm.NewRouter(provs, routes, stores.Usage, 0), dailyBudget, nil
}

func registerBuiltinTools(registry *tools.Registry, cfg *config.Config, v *vault.Vault, stores storage.StoreSet, procRegistry *security.ProcessRegistry) error {
	workspaceRoot := cfg.Storage.DataDir
	if err := registry.Register(builtin.ReadFile(workspaceRoot)); err != nil {
		return err
	}
	if err := registry.Register(builtin.WriteFile(workspaceRoot)); err != nil {
		return err
	}
	if err := registry.Register(builtin.Shell(workspaceRoot, procRegistry)); err != nil {
		return err
	}
	return nil
}

// RunProcessReaper kills and unregisters every spawned process entry older
// than procRegistry.MaxLifetime on a fixed tick, until ctx is cancelled
// (spec §4.6, §5 "process reaper and storage monitor" independent task).
func (rt *runtime) RunProcessReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	logger := rt.logger
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if stale := rt.procRegistry.Reap(now); len(stale) > 0 {
				logger.Warn("process reaper: killed stale entries", "count", len(stale))
			}
		}
	}
}
