package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexuscore/agentcore/pkg/models"
)

func echoTool() Tool {
	return Tool{
		Name:            "echo",
		Description:     "echoes back the message parameter",
		PermissionLevel: models.PermissionSafe,
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {"message": {"type": "string"}},
			"required": ["message"],
			"additionalProperties": false
		}`),
		Execute: func(ctx context.Context, params json.RawMessage) (*Result, error) {
			var p struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return &Result{Content: err.Error(), IsError: true}, nil
			}
			return &Result{Content: p.Message}, nil
		},
	}
}

func TestRegistry_ExecuteValidatesSchema(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool()))

	res, err := r.Execute(context.Background(), "echo", json.RawMessage(`{"message":"hi"}`))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Equal(t, "hi", res.Content)

	res, err = r.Execute(context.Background(), "echo", json.RawMessage(`{"wrong_field":1}`))
	require.NoError(t, err)
	require.True(t, res.IsError)
}

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	res, err := r.Execute(context.Background(), "nope", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.True(t, res.IsError)
}

func TestRegistry_UnregisterRemovesTool(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool()))
	r.Unregister("echo")
	_, ok := r.Get("echo")
	require.False(t, ok)
}
