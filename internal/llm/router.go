package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nexuscore/agentcore/internal/observability"
	"github.com/nexuscore/agentcore/pkg/models"
)

// ErrNoProviders is returned when a route has no healthy candidate left.
var ErrNoProviders = errors.New("llm: no healthy providers for this route")

// UsageRecorder receives one LLMUsage row per completed (or failed) call.
type UsageRecorder interface {
	Record(ctx context.Context, u *models.LLMUsage) error
}

// Route is the ordered provider/model chain for one task type: first entry
// tried first, later entries are fallbacks.
type Route struct {
	Provider string
	Model    string
}

// Router selects a provider/model chain per task type and falls through the
// chain on failure, marking a failing provider unhealthy for a cooldown
// window so it isn't retried on every subsequent call.
type Router struct {
	providers map[string]Provider
	routes    map[models.TaskType][]Route
	usage     UsageRecorder
	metrics   *observability.Metrics

	failureCooldown time.Duration
	healthMu        sync.Mutex
	unhealthy       map[string]time.Time

	statsMu sync.Mutex
	stats   map[string]*ProviderStats
}

// ProviderStats is a rolling count of one provider's recent call outcomes,
// surfaced in the runtime self-model's "provider health" field (spec §4.6).
type ProviderStats struct {
	Calls              int
	Fallbacks          int // calls that only succeeded after this provider failed first
	SuspectedTruncated int
	Errors             int
}

// NewRouter builds a Router. routes maps each task type to its ordered
// provider/model fallback chain (spec §4.4 "LLM Router").
func NewRouter(providers []Provider, routes map[models.TaskType][]Route, usage UsageRecorder, failureCooldown time.Duration) *Router {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[normalize(p.Name)] = p
	}
	if failureCooldown <= 0 {
		failureCooldown = 30 * time.Second
	}
	return &Router{
		providers:       byName,
		routes:          routes,
		usage:           usage,
		failureCooldown: failureCooldown,
		unhealthy:       map[string]time.Time{},
		stats:           map[string]*ProviderStats{},
	}
}

// SetMetrics wires the LLM request-duration/token/cost counters (spec
// §4.6). A nil Router method receiver panics like any other; only call
// this after NewRouter.
func (r *Router) SetMetrics(m *observability.Metrics) {
	r.metrics = m
}

// Stats returns a snapshot of per-provider call outcome counters.
func (r *Router) Stats() map[string]ProviderStats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	out := make(map[string]ProviderStats, len(r.stats))
	for name, s := range r.stats {
		out[name] = *s
	}
	return out
}

func (r *Router) recordStats(provider string, fallback bool, truncated bool, callErr error) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	s, ok := r.stats[provider]
	if !ok {
		s = &ProviderStats{}
		r.stats[provider] = s
	}
	s.Calls++
	if fallback {
		s.Fallbacks++
	}
	if truncated {
		s.SuspectedTruncated++
	}
	if callErr != nil {
		s.Errors++
	}
}

// Complete routes req for taskType through its fallback chain, recording
// usage for every attempt (successful or not) via the UsageRecorder.
func (r *Router) Complete(ctx context.Context, taskType models.TaskType, req CompletionRequest) (*CompletionResponse, error) {
	chain := r.routes[taskType]
	if len(chain) == 0 {
		return nil, fmt.Errorf("llm: no route configured for task type %q", taskType)
	}

	var lastErr error
	var fallbackFrom string
	for _, route := range chain {
		name := normalize(route.Provider)
		if !r.isHealthy(name) {
			continue
		}
		provider, ok := r.providers[name]
		if !ok {
			continue
		}
		attemptReq := req
		if attemptReq.Model == "" {
			attemptReq.Model = route.Model
		}

		start := time.Now()
		resp, err := provider.Complete(ctx, attemptReq)
		latency := time.Since(start)

		if err != nil {
			r.markUnhealthy(name)
			lastErr = err
			r.recordUsage(ctx, name, attemptReq.Model, taskType, nil, latency, fallbackFrom, err)
			r.recordStats(name, fallbackFrom != "", false, err)
			fallbackFrom = name
			continue
		}
		r.recordUsage(ctx, name, attemptReq.Model, taskType, resp, latency, fallbackFrom, nil)
		r.recordStats(name, fallbackFrom != "", SuspectedTruncated(resp), nil)
		return resp, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("llm: all providers in chain failed: %w", lastErr)
	}
	return nil, ErrNoProviders
}

func (r *Router) recordUsage(ctx context.Context, provider, model string, taskType models.TaskType, resp *CompletionResponse, latency time.Duration, fallbackFrom string, callErr error) {
	if callErr != nil {
		r.metrics.RecordLLMRequest(provider, model, "error", latency, 0, 0, 0)
	} else if resp != nil {
		r.metrics.RecordLLMRequest(provider, model, "success", latency, resp.InTokens, resp.OutTokens, resp.CostUSD)
	}

	if r.usage == nil {
		return
	}
	u := &models.LLMUsage{
		Provider:     provider,
		Model:        model,
		TaskType:     taskType,
		LatencyMS:    latency.Milliseconds(),
		FallbackFrom: fallbackFrom,
		CreatedAt:    time.Now(),
	}
	if callErr != nil {
		u.FinishReason = "error"
	} else if resp != nil {
		u.InTokens = resp.InTokens
		u.OutTokens = resp.OutTokens
		u.CostUSD = resp.CostUSD
		u.FinishReason = resp.FinishReason
		u.SuspectedTruncated = SuspectedTruncated(resp)
	}
	_ = r.usage.Record(ctx, u)
}

func (r *Router) isHealthy(name string) bool {
	r.healthMu.Lock()
	defer r.healthMu.Unlock()
	until, ok := r.unhealthy[name]
	if !ok {
		return true
	}
	if time.Now().After(until) {
		delete(r.unhealthy, name)
		return true
	}
	return false
}

func (r *Router) markUnhealthy(name string) {
	r.healthMu.Lock()
	r.unhealthy[name] = time.Now().Add(r.failureCooldown)
	r.healthMu.Unlock()
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
