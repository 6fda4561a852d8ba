package gateway

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/nexuscore/agentcore/internal/agent"
	"github.com/nexuscore/agentcore/internal/llm"
	"github.com/nexuscore/agentcore/internal/policy"
	"github.com/nexuscore/agentcore/internal/sessions"
	"github.com/nexuscore/agentcore/internal/storage"
	"github.com/nexuscore/agentcore/internal/tools"
	"github.com/nexuscore/agentcore/pkg/models"
)

func newTestServer(t *testing.T, mode models.PermissionMode) (*Server, *storage.StoreSet) {
	t.Helper()
	stores := storage.NewMemoryStoreSet()
	sessionRouter := sessions.NewRouter(stores.Sessions, sessions.NewStaticTierResolver(nil, nil), 20)

	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(tools.Tool{
		Name:            "echo",
		PermissionLevel: models.PermissionSafe,
		Execute: func(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
			return &tools.Result{Content: "echoed"}, nil
		},
	}))

	engine, err := policy.NewEngine(mode, nil, nil, nil, nil, nil, nil)
	require.NoError(t, err)

	provider := llm.Provider{Name: "stub", Complete: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Text: "hello back", FinishReason: "stop"}, nil
	}}
	router := llm.NewRouter([]llm.Provider{provider}, map[models.TaskType][]llm.Route{
		models.TaskTypeCoding: {{Provider: "stub"}},
	}, nil, time.Minute)

	srv := NewServer(sessionRouter, *stores, registry, engine, router, agent.DefaultLoopConfig(), nil, nil, nil, nil)
	return srv, stores
}

func dialGateway(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame Frame) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestServer_HelloEstablishesSession(t *testing.T) {
	srv, _ := newTestServer(t, models.ModeFullAuto)
	conn := dialGateway(t, srv)

	sendFrame(t, conn, Frame{Type: FrameHello, Payload: encodePayload(HelloPayload{Channel: "cli", UserID: "owner"})})
	status := readFrame(t, conn)
	require.Equal(t, FrameStatus, status.Type)
}

func TestServer_ChatRoundTripsThroughPipeline(t *testing.T) {
	srv, _ := newTestServer(t, models.ModeFullAuto)
	conn := dialGateway(t, srv)

	sendFrame(t, conn, Frame{Type: FrameHello, Payload: encodePayload(HelloPayload{Channel: "cli", UserID: "owner"})})
	_ = readFrame(t, conn) // status

	sendFrame(t, conn, Frame{Type: FrameChat, ID: "req-1", Payload: encodePayload(ChatPayload{Content: "hi"})})
	resp := readFrame(t, conn)
	require.Equal(t, FrameResponse, resp.Type)
	require.Equal(t, "req-1", resp.ID)

	var payload ResponsePayload
	require.NoError(t, json.Unmarshal(resp.Payload, &payload))
	require.Equal(t, "hello back", payload.Content)
}

func TestServer_FirstFrameMustBeHello(t *testing.T) {
	srv, _ := newTestServer(t, models.ModeFullAuto)
	conn := dialGateway(t, srv)

	sendFrame(t, conn, Frame{Type: FrameChat, Payload: encodePayload(ChatPayload{Content: "hi"})})
	errFrame := readFrame(t, conn)
	require.Equal(t, FrameError, errFrame.Type)
}

// TestServer_ApprovalResponseDuringPendingChat guards against the deadlock
// where readLoop dispatched every frame inline: a chat turn blocked in
// Broker.Notify awaiting approval_response could never read that very frame,
// since both lived on the same connection's single read goroutine.
func TestServer_ApprovalResponseDuringPendingChat(t *testing.T) {
	stores := storage.NewMemoryStoreSet()
	sessionRouter := sessions.NewRouter(stores.Sessions, sessions.NewStaticTierResolver(nil, nil), 20)

	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(tools.Tool{
		Name:            "risky",
		PermissionLevel: models.PermissionModerate,
		Execute: func(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
			return &tools.Result{Content: "did the risky thing"}, nil
		},
	}))

	engine, err := policy.NewEngine(models.ModeAskAlways, nil, nil, nil, nil, nil, nil)
	require.NoError(t, err)

	round := 0
	provider := llm.Provider{Name: "stub", Complete: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		round++
		if round == 1 {
			return &llm.CompletionResponse{
				ToolCalls:    []models.ToolCall{{ID: "call-1", Name: "risky", Input: json.RawMessage(`{}`)}},
				FinishReason: "tool_calls",
			}, nil
		}
		return &llm.CompletionResponse{Text: "all done", FinishReason: "stop"}, nil
	}}
	router := llm.NewRouter([]llm.Provider{provider}, map[models.TaskType][]llm.Route{
		models.TaskTypeCoding: {{Provider: "stub"}},
	}, nil, time.Minute)

	srv := NewServer(sessionRouter, *stores, registry, engine, router, agent.DefaultLoopConfig(), nil, nil, nil, nil)
	conn := dialGateway(t, srv)

	sendFrame(t, conn, Frame{Type: FrameHello, Payload: encodePayload(HelloPayload{Channel: "cli", UserID: "owner"})})
	_ = readFrame(t, conn) // status

	sendFrame(t, conn, Frame{Type: FrameChat, ID: "req-1", Payload: encodePayload(ChatPayload{Content: "do the risky thing"})})

	approvalFrame := readFrame(t, conn)
	require.Equal(t, FrameApprovalRequest, approvalFrame.Type)
	var req ApprovalRequestPayload
	require.NoError(t, json.Unmarshal(approvalFrame.Payload, &req))

	// This frame can only be read while the prior chat dispatch is still
	// blocked awaiting it; if readLoop dispatched synchronously this would
	// time out.
	sendFrame(t, conn, Frame{Type: FrameApprovalResponse, Payload: encodePayload(ApprovalResponsePayload{ApprovalID: req.ApprovalID, Approved: true})})

	resp := readFrame(t, conn)
	require.Equal(t, FrameResponse, resp.Type)
	require.Equal(t, "req-1", resp.ID)
	var payload ResponsePayload
	require.NoError(t, json.Unmarshal(resp.Payload, &payload))
	require.Equal(t, "all done", payload.Content)
}

// TestServer_HelloRehydratesPendingApprovals guards spec §3/§9: a client
// reconnecting to a session with an approval still pending must see it
// again rather than having to wait out the approval's full timeout blind.
func TestServer_HelloRehydratesPendingApprovals(t *testing.T) {
	srv, stores := newTestServer(t, models.ModeFullAuto)

	sess, err := stores.Sessions.GetOrCreate(context.Background(), "cli", "owner", models.TierOwner)
	require.NoError(t, err)
	require.NoError(t, stores.Approvals.Create(context.Background(), &models.ApprovalRequest{
		ID:         "pending-1",
		ToolName:   "risky",
		ParamsJSON: `{}`,
		Context:    "left pending by a prior connection",
		Status:     models.ApprovalPending,
		SessionID:  sess.SessionID,
		TimeoutAt:  time.Now().Add(time.Hour),
	}))

	conn := dialGateway(t, srv)
	sendFrame(t, conn, Frame{Type: FrameHello, Payload: encodePayload(HelloPayload{Channel: "cli", UserID: "owner"})})

	status := readFrame(t, conn)
	require.Equal(t, FrameStatus, status.Type)

	approvalFrame := readFrame(t, conn)
	require.Equal(t, FrameApprovalRequest, approvalFrame.Type)
	var req ApprovalRequestPayload
	require.NoError(t, json.Unmarshal(approvalFrame.Payload, &req))
	require.Equal(t, "pending-1", req.ApprovalID)
	require.Equal(t, "risky", req.ToolName)
}

func TestHub_BroadcastScopeFiltersBySession(t *testing.T) {
	hub := NewHub()
	a := newClient(&websocket.Conn{}, "s1", nil, nil)
	b := newClient(&websocket.Conn{}, "s2", nil, nil)
	hub.clients[a] = &models.Session{SessionID: "s1", Channel: "cli"}
	hub.clients[b] = &models.Session{SessionID: "s2", Channel: "slack"}

	hub.Send("s1", Frame{Type: FrameEvent})
	select {
	case f := <-a.send:
		require.Equal(t, FrameEvent, f.Type)
	default:
		t.Fatal("expected frame delivered to s1")
	}
	select {
	case <-b.send:
		t.Fatal("s2 should not receive a session-scoped broadcast for s1")
	default:
	}
}
