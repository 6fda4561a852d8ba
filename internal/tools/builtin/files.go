package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nexuscore/agentcore/internal/tools"
	"github.com/nexuscore/agentcore/pkg/models"
)

const maxReadBytes = 1 << 20 // 1MB, matches the sanitizer's tool-output cap order of magnitude

// ReadFile returns a "read" tool scoped to workspaceRoot.
func ReadFile(workspaceRoot string) tools.Tool {
	resolver := Resolver{Root: workspaceRoot}
	return tools.Tool{
		Name:            "read_file",
		Description:     "Read a file from the workspace.",
		PermissionLevel: models.PermissionSafe,
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {"path": {"type": "string", "description": "Path relative to workspace."}},
			"required": ["path"],
			"additionalProperties": false
		}`),
		Execute: func(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
			var input struct {
				Path string `json:"path"`
			}
			if err := json.Unmarshal(params, &input); err != nil {
				return errResult(fmt.Sprintf("invalid parameters: %v", err)), nil
			}
			resolved, err := resolver.Resolve(input.Path)
			if err != nil {
				return errResult(err.Error()), nil
			}
			data, err := os.ReadFile(resolved)
			if err != nil {
				return errResult(fmt.Sprintf("read file: %v", err)), nil
			}
			if len(data) > maxReadBytes {
				data = data[:maxReadBytes]
			}
			return &tools.Result{Content: string(data)}, nil
		},
	}
}

// WriteFile returns a "write_file" tool scoped to workspaceRoot. The
// PermissionLevel is moderate by default — a protected-root write is caught
// upstream by the policy kernel's protected-file guard, not here.
func WriteFile(workspaceRoot string) tools.Tool {
	resolver := Resolver{Root: workspaceRoot}
	return tools.Tool{
		Name:                  "write_file",
		Description:           "Write content to a file in the workspace (overwrites by default).",
		PermissionLevel:       models.PermissionModerate,
		IsFileWriteTool:       true,
		IsProtectedFileWriter: true,
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string"},
				"content": {"type": "string"},
				"append": {"type": "boolean"}
			},
			"required": ["path", "content"],
			"additionalProperties": false
		}`),
		Execute: func(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
			var input struct {
				Path    string `json:"path"`
				Content string `json:"content"`
				Append  bool   `json:"append"`
			}
			if err := json.Unmarshal(params, &input); err != nil {
				return errResult(fmt.Sprintf("invalid parameters: %v", err)), nil
			}
			if strings.TrimSpace(input.Path) == "" {
				return errResult("path is required"), nil
			}
			resolved, err := resolver.Resolve(input.Path)
			if err != nil {
				return errResult(err.Error()), nil
			}
			if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
				return errResult(fmt.Sprintf("create directory: %v", err)), nil
			}
			flags := os.O_CREATE | os.O_WRONLY
			if input.Append {
				flags |= os.O_APPEND
			} else {
				flags |= os.O_TRUNC
			}
			f, err := os.OpenFile(resolved, flags, 0o644)
			if err != nil {
				return errResult(fmt.Sprintf("open file: %v", err)), nil
			}
			defer f.Close()
			n, err := f.WriteString(input.Content)
			if err != nil {
				return errResult(fmt.Sprintf("write file: %v", err)), nil
			}
			payload, _ := json.Marshal(map[string]any{"path": input.Path, "bytes_written": n, "append": input.Append})
			return &tools.Result{Content: string(payload)}, nil
		},
	}
}

func errResult(msg string) *tools.Result {
	payload, _ := json.Marshal(map[string]string{"error": msg})
	return &tools.Result{Content: string(payload), IsError: true}
}
