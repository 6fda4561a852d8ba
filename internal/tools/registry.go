package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool parameter limits to prevent resource exhaustion.
const (
	MaxToolNameLength  = 256
	MaxToolParamsBytes = 10 << 20
)

// Registry holds every tool available to the execution pipeline, keyed by
// name, with thread-safe registration and lookup.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	schema map[string]*jsonschema.Schema
}

// NewRegistry returns an empty registry ready for tool registration.
func NewRegistry() *Registry {
	return &Registry{
		tools:  make(map[string]Tool),
		schema: make(map[string]*jsonschema.Schema),
	}
}

// Register adds or replaces a tool. If the tool declares a non-empty Schema
// it is compiled eagerly so a malformed schema fails at startup, not at
// first invocation.
func (r *Registry) Register(t Tool) error {
	var compiled *jsonschema.Schema
	if len(t.Schema) > 0 {
		c, err := compileSchema(t.Name, t.Schema)
		if err != nil {
			return fmt.Errorf("tools: compile schema for %s: %w", t.Name, err)
		}
		compiled = c
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
	r.schema[t.Name] = compiled
	return nil
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
	delete(r.schema, name)
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool, for building the provider-facing tool
// list on each LLM call.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// Execute validates params against the tool's schema (if any) then dispatches.
// It never returns a Go error for ordinary invocation failures — those come
// back as Result.IsError so the pipeline can feed them to the model as a
// tool_result turn rather than aborting the task.
func (r *Registry) Execute(ctx context.Context, name string, params json.RawMessage) (*Result, error) {
	if len(name) > MaxToolNameLength {
		return &Result{Content: fmt.Sprintf("tool name exceeds maximum length of %d characters", MaxToolNameLength), IsError: true}, nil
	}
	if len(params) > MaxToolParamsBytes {
		return &Result{Content: fmt.Sprintf("tool parameters exceed maximum size of %d bytes", MaxToolParamsBytes), IsError: true}, nil
	}

	r.mu.RLock()
	t, ok := r.tools[name]
	schema := r.schema[name]
	r.mu.RUnlock()
	if !ok {
		return &Result{Content: "tool not found: " + name, IsError: true}, nil
	}

	if schema != nil {
		var decoded any
		if len(params) == 0 {
			params = []byte("{}")
		}
		if err := json.Unmarshal(params, &decoded); err != nil {
			return &Result{Content: "invalid tool parameters: " + err.Error(), IsError: true}, nil
		}
		if err := schema.Validate(decoded); err != nil {
			return &Result{Content: "tool parameters failed schema validation: " + err.Error(), IsError: true}, nil
		}
	}

	return t.Execute(ctx, params)
}

var schemaCache sync.Map

func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	key := name + ":" + string(raw)
	if cached, ok := schemaCache.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}
	compiled, err := jsonschema.CompileString(name+".schema.json", string(raw))
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}
