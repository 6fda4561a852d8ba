package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/nexuscore/agentcore/internal/security"
	"github.com/nexuscore/agentcore/internal/tools"
	"github.com/nexuscore/agentcore/pkg/models"
)

const maxShellOutputBytes = 64 * 1024

// Shell returns a "shell" tool that runs a command in workspaceRoot. Commands
// that outlive timeout are registered with registry so the reaper can kill
// them if the caller never checks back in.
func Shell(workspaceRoot string, registry *security.ProcessRegistry) tools.Tool {
	return tools.Tool{
		Name:            "shell",
		Description:     "Run a shell command in the workspace.",
		PermissionLevel: models.PermissionDestructive,
		IsShellTool:     true,
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"command": {"type": "string"},
				"timeout_seconds": {"type": "integer", "minimum": 0}
			},
			"required": ["command"],
			"additionalProperties": false
		}`),
		Execute: func(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
			var input struct {
				Command        string `json:"command"`
				TimeoutSeconds int    `json:"timeout_seconds"`
			}
			if err := json.Unmarshal(params, &input); err != nil {
				return errResult(fmt.Sprintf("invalid parameters: %v", err)), nil
			}
			command := strings.TrimSpace(input.Command)
			if command == "" {
				return errResult("command is required"), nil
			}

			runCtx := ctx
			var cancel context.CancelFunc
			if input.TimeoutSeconds > 0 {
				runCtx, cancel = context.WithTimeout(ctx, time.Duration(input.TimeoutSeconds)*time.Second)
				defer cancel()
			}

			cmd := exec.CommandContext(runCtx, "sh", "-c", command)
			cmd.Dir = workspaceRoot
			var stdout, stderr bytes.Buffer
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr

			if err := cmd.Start(); err != nil {
				return errResult(fmt.Sprintf("start command: %v", err)), nil
			}

			if registry != nil && cmd.Process != nil {
				registry.Register(cmd.Process.Pid, command)
			}

			runErr := cmd.Wait()
			if registry != nil && cmd.Process != nil {
				registry.Unregister(cmd.Process.Pid)
			}

			exitCode := 0
			if runErr != nil {
				if exitErr, ok := runErr.(*exec.ExitError); ok {
					exitCode = exitErr.ExitCode()
				} else {
					return errResult(fmt.Sprintf("run command: %v", runErr)), nil
				}
			}

			out := truncate(stdout.String(), maxShellOutputBytes)
			errOut := truncate(stderr.String(), maxShellOutputBytes)
			payload, _ := json.Marshal(map[string]any{
				"exit_code": exitCode,
				"stdout":    out,
				"stderr":    errOut,
			})
			return &tools.Result{Content: string(payload), IsError: exitCode != 0}, nil
		},
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
