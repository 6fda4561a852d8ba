package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nexuscore/agentcore/internal/agent"
	"github.com/nexuscore/agentcore/internal/approvals"
	"github.com/nexuscore/agentcore/internal/llm"
	"github.com/nexuscore/agentcore/internal/observability"
	"github.com/nexuscore/agentcore/internal/policy"
	"github.com/nexuscore/agentcore/internal/sessions"
	"github.com/nexuscore/agentcore/internal/storage"
	"github.com/nexuscore/agentcore/internal/tools"
	"github.com/nexuscore/agentcore/internal/worker"
	"github.com/nexuscore/agentcore/pkg/models"
)

// Server is the WebSocket control plane (spec §4.1): it upgrades HTTP
// connections, resolves or creates a session per connect, and runs every
// chat message through a fresh agent.Pipeline bound to that session's
// authority tier.
type Server struct {
	router          *sessions.Router
	hub             *Hub
	approval        *approvals.Broker
	stores          storage.StoreSet
	registry        *tools.Registry
	engine          *policy.Engine
	llmRouter       *llm.Router
	loopConfig      agent.LoopConfig
	invocationRules []agent.InvocationRule
	logger          *slog.Logger
	metrics         *observability.Metrics

	exclusion *worker.ExclusionToken
	pause     *worker.PauseToken

	upgrader websocket.Upgrader
}

// NewServer wires a gateway Server from its runtime dependencies. exclusion
// and pause are shared with the goal runner and autonomous mind so a user
// turn always takes priority over background work (spec §4.3, §6).
func NewServer(sessionRouter *sessions.Router, stores storage.StoreSet, registry *tools.Registry, engine *policy.Engine, llmRouter *llm.Router, loopConfig agent.LoopConfig, rules []agent.InvocationRule, exclusion *worker.ExclusionToken, pause *worker.PauseToken, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if exclusion == nil {
		exclusion = &worker.ExclusionToken{}
	}
	if pause == nil {
		pause = &worker.PauseToken{}
	}
	hub := NewHub()
	return &Server{
		router:          sessionRouter,
		hub:             hub,
		approval:        approvals.NewBroker(hub, hub),
		stores:          stores,
		registry:        registry,
		engine:          engine,
		llmRouter:       llmRouter,
		loopConfig:      loopConfig,
		invocationRules: rules,
		exclusion:       exclusion,
		pause:           pause,
		logger:          logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// SetMetrics wires the gateway, LLM router, and approval broker metrics
// (spec §4.6) through to every subsystem the Server owns.
func (s *Server) SetMetrics(m *observability.Metrics) {
	s.metrics = m
	s.hub.SetMetrics(m)
	s.approval.SetMetrics(m)
}

// Hub exposes the connection registry so goal/mind workers can broadcast
// task_complete and notification events (spec §4.3) without importing the
// whole server.
func (s *Server) Hub() *Hub { return s.hub }

// Approvals exposes the shared approval broker so the goal runner resolves
// approvals prompted by background turns against the same pending set as
// interactive ones (spec §4.3 step 4).
func (s *Server) Approvals() *approvals.Broker { return s.approval }

// ServeHTTP upgrades the request to a WebSocket and runs the connection
// until it closes. The first frame on a new connection must be "hello"
// (spec §4.1 "connect(channel, user_id)"); any other frame type sent first
// is rejected and the connection closed.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("gateway: upgrade failed", "error", err)
		return
	}

	client := newClient(conn, "", s.logger, s.metrics)
	connected := false

	client.run(func(ctx context.Context, c *Client, frame Frame) {
		if !connected {
			if frame.Type != FrameHello {
				c.enqueue(Frame{Type: FrameError, Payload: encodePayload(ErrorPayload{Message: "first frame must be hello"})})
				c.cancel()
				return
			}
			sess, err := s.handleHello(ctx, c, frame)
			if err != nil {
				c.enqueue(Frame{Type: FrameError, Payload: encodePayload(ErrorPayload{Message: err.Error()})})
				c.cancel()
				return
			}
			connected = true
			s.hub.Register(c, sess)
			return
		}
		s.dispatch(ctx, c, frame)
	})
	s.hub.Unregister(client)
}

func (s *Server) handleHello(ctx context.Context, c *Client, frame Frame) (*models.Session, error) {
	var hello HelloPayload
	if err := json.Unmarshal(frame.Payload, &hello); err != nil {
		return nil, err
	}
	sess, err := s.router.Connect(ctx, hello.Channel, hello.UserID)
	if err != nil {
		return nil, err
	}
	c.sessionID = sess.SessionID
	sess.LastActive = time.Now()
	_ = s.stores.Sessions.Update(ctx, sess)
	c.enqueue(Frame{Type: FrameStatus, SessionID: sess.SessionID, Payload: encodePayload(struct {
		SessionID string `json:"session_id"`
	}{sess.SessionID})})
	s.rehydratePendingApprovals(ctx, c, sess.SessionID)
	return sess, nil
}

// rehydratePendingApprovals re-emits approval_request frames for any
// approval still pending on this session (spec §3/§9): a client that
// reconnects mid-approval must not lose the prompt just because the
// original frame was sent to a connection that has since closed.
func (s *Server) rehydratePendingApprovals(ctx context.Context, c *Client, sessionID string) {
	pending, err := s.stores.Approvals.ListPendingBySession(ctx, sessionID)
	if err != nil {
		s.logger.Warn("gateway: list pending approvals failed", "session_id", sessionID, "error", err)
		return
	}
	for _, req := range pending {
		c.enqueue(Frame{
			Type:      FrameApprovalRequest,
			SessionID: sessionID,
			Payload: encodePayload(ApprovalRequestPayload{
				ApprovalID: req.ID,
				ToolName:   req.ToolName,
				ParamsJSON: req.ParamsJSON,
				Context:    req.Context,
			}),
		})
	}
}

func (s *Server) dispatch(ctx context.Context, c *Client, frame Frame) {
	switch frame.Type {
	case FrameChat:
		s.handleChat(ctx, c, frame)
	case FrameApprovalResponse:
		s.handleApprovalResponse(frame)
	case FrameCommand:
		s.handleCommand(ctx, c, frame)
	default:
		c.enqueue(Frame{Type: FrameError, ID: frame.ID, Payload: encodePayload(ErrorPayload{Message: "unsupported frame type: " + string(frame.Type)})})
	}
}

func (s *Server) handleApprovalResponse(frame Frame) {
	var resp ApprovalResponsePayload
	if err := json.Unmarshal(frame.Payload, &resp); err != nil {
		return
	}
	s.approval.Resolve(resp.ApprovalID, resp.Approved)
}

func (s *Server) handleChat(ctx context.Context, c *Client, frame Frame) {
	var chat ChatPayload
	if err := json.Unmarshal(frame.Payload, &chat); err != nil {
		c.enqueue(Frame{Type: FrameError, ID: frame.ID, Payload: encodePayload(ErrorPayload{Message: "malformed chat payload"})})
		return
	}

	sess, err := s.stores.Sessions.Get(ctx, c.sessionID)
	if err != nil {
		c.enqueue(Frame{Type: FrameError, ID: frame.ID, Payload: encodePayload(ErrorPayload{Message: err.Error()})})
		return
	}

	// A user turn always preempts background work: set the pause token so
	// the goal runner/mind yield at their next boundary, then wait for the
	// shared exclusion token (spec §4.3, §6).
	s.pause.Pause()
	defer s.pause.Resume()
	if err := s.exclusion.Acquire(ctx); err != nil {
		c.enqueue(Frame{Type: FrameError, ID: frame.ID, Payload: encodePayload(ErrorPayload{Message: err.Error()})})
		return
	}
	defer s.exclusion.Release()

	exec := s.newExecutor(sess)
	pipeline := agent.NewPipeline(s.llmRouter, s.stores.Sessions, s.stores.Memories, s.loopConfig)
	result, err := pipeline.Run(ctx, sess, exec, models.TaskTypeCoding, chat.Content, "")
	if err != nil {
		c.enqueue(Frame{Type: FrameError, ID: frame.ID, SessionID: sess.SessionID, Payload: encodePayload(ErrorPayload{Message: err.Error()})})
		return
	}

	c.enqueue(Frame{
		Type:      FrameResponse,
		ID:        frame.ID,
		SessionID: sess.SessionID,
		Payload: encodePayload(ResponsePayload{
			Content:   result.AssistantText,
			CostUSD:   result.CostUSD,
			ToolCalls: result.ToolCalls,
		}),
	})
}

// handleCommand serves the "missed event replay" query (spec §4.1): a
// client that reconnects can ask for task_complete rows recorded since its
// last session activity.
func (s *Server) handleCommand(ctx context.Context, c *Client, frame Frame) {
	tasks, err := s.stores.Tasks.ListBySession(ctx, c.sessionID, 20)
	if err != nil {
		c.enqueue(Frame{Type: FrameError, ID: frame.ID, Payload: encodePayload(ErrorPayload{Message: err.Error()})})
		return
	}
	for _, t := range tasks {
		if t.Status != models.TaskCompleted && t.Status != models.TaskFailed {
			continue
		}
		c.enqueue(Frame{
			Type:      FrameEvent,
			SessionID: c.sessionID,
			Payload: encodePayload(EventPayload{
				Kind: "task_complete",
				Data: encodePayload(t),
			}),
		})
	}
}

func (s *Server) newExecutor(sess *models.Session) *agent.Executor {
	approve := agent.StoreBackedApproval(s.stores.Approvals, func(ctx context.Context, req *models.ApprovalRequest) (models.ApprovalStatus, error) {
		req.SessionID = sess.SessionID
		return s.approval.Notify(ctx, req)
	})
	exec := agent.NewExecutor(s.registry, s.engine, approve, sess.AuthorityTier)
	exec.RegisterRules(s.invocationRules)
	exec.SetScheduleStore(s.stores.Schedules)
	return exec
}
