// Package tools defines the Tool Contract every capability the runtime core
// exposes to an LLM must satisfy, plus the registry that holds them keyed by
// name and validates their parameters against a JSON Schema before dispatch.
package tools

import (
	"context"
	"encoding/json"

	"github.com/nexuscore/agentcore/pkg/models"
)

// Tool is the contract every callable capability implements. Name, Schema
// and the permission metadata are static; Execute does the work.
type Tool struct {
	Name                  string
	Description           string
	Schema                json.RawMessage
	PermissionLevel       models.PermissionLevel
	AuthorityTierRequired models.AuthorityTier
	SensitiveParams       []string
	IsProtectedFileWriter bool
	IsShellTool           bool
	IsFileWriteTool       bool
	IsPaymentTool         bool

	Execute func(ctx context.Context, params json.RawMessage) (*Result, error)
}

// Result is what a Tool.Execute call returns to the execution pipeline.
type Result struct {
	Content string
	IsError bool
}
