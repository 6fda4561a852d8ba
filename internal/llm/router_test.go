package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexuscore/agentcore/pkg/models"
)

type stubUsageRecorder struct {
	recorded []*models.LLMUsage
}

func (s *stubUsageRecorder) Record(ctx context.Context, u *models.LLMUsage) error {
	s.recorded = append(s.recorded, u)
	return nil
}

func TestRouter_FallsBackOnProviderError(t *testing.T) {
	failing := Provider{Name: "primary", Complete: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
		return nil, errors.New("rate limited")
	}}
	working := Provider{Name: "fallback", Complete: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
		return &CompletionResponse{Text: "ok", FinishReason: "stop"}, nil
	}}
	usage := &stubUsageRecorder{}
	router := NewRouter([]Provider{failing, working}, map[models.TaskType][]Route{
		models.TaskTypeCoding: {{Provider: "primary", Model: "m1"}, {Provider: "fallback", Model: "m2"}},
	}, usage, time.Minute)

	resp, err := router.Complete(context.Background(), models.TaskTypeCoding, CompletionRequest{})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Text)
	require.Len(t, usage.recorded, 2)
	require.Equal(t, "error", usage.recorded[0].FinishReason)
	require.Equal(t, "primary", usage.recorded[1].FallbackFrom)
}

func TestRouter_UnhealthyProviderSkippedDuringCooldown(t *testing.T) {
	calls := 0
	failing := Provider{Name: "primary", Complete: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
		calls++
		return nil, errors.New("down")
	}}
	working := Provider{Name: "fallback", Complete: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
		return &CompletionResponse{Text: "ok", FinishReason: "stop"}, nil
	}}
	router := NewRouter([]Provider{failing, working}, map[models.TaskType][]Route{
		models.TaskTypeCoding: {{Provider: "primary"}, {Provider: "fallback"}},
	}, nil, time.Hour)

	_, err := router.Complete(context.Background(), models.TaskTypeCoding, CompletionRequest{})
	require.NoError(t, err)
	_, err = router.Complete(context.Background(), models.TaskTypeCoding, CompletionRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, calls) // second call skipped the unhealthy primary entirely
}

func TestRouter_NoRouteConfigured(t *testing.T) {
	router := NewRouter(nil, map[models.TaskType][]Route{}, nil, time.Minute)
	_, err := router.Complete(context.Background(), models.TaskTypeSimple, CompletionRequest{})
	require.Error(t, err)
}
