package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscore/agentcore/pkg/models"
)

// NewMemoryStoreSet builds an in-process StoreSet backed by plain maps,
// mirroring the teacher's MemoryAgentStore pattern. Used by unit tests that
// don't need the embedded engine's durability.
func NewMemoryStoreSet() *StoreSet {
	shared := &memoryShared{
		sessions:    map[string]*models.Session{},
		tasks:       map[string]*models.TaskRecord{},
		goals:       map[string]*models.Goal{},
		checkpoints: map[string][]*models.Checkpoint{},
		approvals:   map[string]*models.ApprovalRequest{},
		knowledge:   map[string]*models.KnowledgeChunk{},
		schedules:   map[string]*models.ScheduledTask{},
	}
	return &StoreSet{
		Sessions:   &memSessionStore{m: shared},
		Tasks:      &memTaskStore{m: shared},
		Goals:      &memGoalStore{m: shared},
		Approvals:  &memApprovalStore{m: shared},
		Memories:   &memMemoryStore{m: shared},
		Knowledge:  &memKnowledgeStore{m: shared},
		Identity:   &memIdentityStore{m: shared},
		Usage:      &memUsageStore{m: shared},
		Schedules:  &memScheduleStore{m: shared},
		Payments:   &memPaymentStore{m: shared},
		Scratchpad: &memScratchpadStore{m: shared},
	}
}

type memoryShared struct {
	mu          sync.RWMutex
	sessions    map[string]*models.Session
	sessionKeys map[string]string // "channel:user_id" -> session_id, lazily init
	tasks       map[string]*models.TaskRecord
	goals       map[string]*models.Goal
	checkpoints map[string][]*models.Checkpoint
	approvals   map[string]*models.ApprovalRequest
	memories    []*models.Memory
	knowledge   map[string]*models.KnowledgeChunk
	identity    *models.Identity
	evolutions  []*models.IdentityEvolution
	usage       []*models.LLMUsage
	schedules   map[string]*models.ScheduledTask
	payments    []*models.PaymentAudit
	scratchpad  models.MindScratchpad
}

type memSessionStore struct{ m *memoryShared }

func (s *memSessionStore) GetOrCreate(ctx context.Context, channel, userID string, tier models.AuthorityTier) (*models.Session, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.sessionKeys == nil {
		s.m.sessionKeys = map[string]string{}
	}
	key := channel + ":" + userID
	if id, ok := s.m.sessionKeys[key]; ok {
		return s.m.sessions[id], nil
	}
	now := time.Now()
	sess := &models.Session{
		SessionID:     uuid.NewString(),
		Channel:       channel,
		UserID:        userID,
		AuthorityTier: tier,
		Metadata:      map[string]any{},
		CreatedAt:     now,
		LastActive:    now,
	}
	s.m.sessions[sess.SessionID] = sess
	s.m.sessionKeys[key] = sess.SessionID
	return sess, nil
}

func (s *memSessionStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	sess, ok := s.m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *memSessionStore) AppendTurn(ctx context.Context, sessionID string, turn models.Turn, maxLen int) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	sess, ok := s.m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	turn.CreatedAt = time.Now()
	sess.Conversation = trimConversation(append(sess.Conversation, turn), maxLen)
	sess.LastActive = turn.CreatedAt
	return nil
}

func (s *memSessionStore) Update(ctx context.Context, sess *models.Session) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.sessions[sess.SessionID]; !ok {
		return ErrNotFound
	}
	cp := *sess
	s.m.sessions[sess.SessionID] = &cp
	return nil
}

type memTaskStore struct{ m *memoryShared }

func (s *memTaskStore) Create(ctx context.Context, t *models.TaskRecord) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.tasks[t.TaskID]; ok {
		return ErrAlreadyExists
	}
	cp := *t
	s.m.tasks[t.TaskID] = &cp
	return nil
}

func (s *memTaskStore) Get(ctx context.Context, taskID string) (*models.TaskRecord, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	t, ok := s.m.tasks[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memTaskStore) Update(ctx context.Context, t *models.TaskRecord) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.tasks[t.TaskID]; !ok {
		return ErrNotFound
	}
	cp := *t
	s.m.tasks[t.TaskID] = &cp
	return nil
}

func (s *memTaskStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]*models.TaskRecord, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var out []*models.TaskRecord
	for _, t := range s.m.tasks {
		if t.SessionID == sessionID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memGoalStore struct{ m *memoryShared }

func (s *memGoalStore) Create(ctx context.Context, g *models.Goal, checkpoints []*models.Checkpoint) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cp := *g
	s.m.goals[g.GoalID] = &cp
	cps := make([]*models.Checkpoint, len(checkpoints))
	for i, c := range checkpoints {
		ccp := *c
		cps[i] = &ccp
	}
	s.m.checkpoints[g.GoalID] = cps
	return nil
}

func (s *memGoalStore) Get(ctx context.Context, goalID string) (*models.Goal, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	g, ok := s.m.goals[goalID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (s *memGoalStore) Update(ctx context.Context, g *models.Goal) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.goals[g.GoalID]; !ok {
		return ErrNotFound
	}
	cp := *g
	s.m.goals[g.GoalID] = &cp
	return nil
}

func (s *memGoalStore) ListByStatus(ctx context.Context, status models.GoalStatus) ([]*models.Goal, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var out []*models.Goal
	for _, g := range s.m.goals {
		if g.Status == status {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memGoalStore) Checkpoints(ctx context.Context, goalID string) ([]*models.Checkpoint, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	cps := s.m.checkpoints[goalID]
	out := make([]*models.Checkpoint, len(cps))
	copy(out, cps)
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (s *memGoalStore) UpdateCheckpoint(ctx context.Context, c *models.Checkpoint) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cps := s.m.checkpoints[c.GoalID]
	for i, existing := range cps {
		if existing.Order == c.Order {
			cp := *c
			cps[i] = &cp
			return nil
		}
	}
	return ErrNotFound
}

func (s *memGoalStore) ReplacePendingCheckpoints(ctx context.Context, goalID string, revised []*models.Checkpoint) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var kept []*models.Checkpoint
	for _, c := range s.m.checkpoints[goalID] {
		if c.Status != models.CheckpointPending {
			kept = append(kept, c)
		}
	}
	for _, c := range revised {
		cp := *c
		cp.GoalID = goalID
		cp.Status = models.CheckpointPending
		kept = append(kept, &cp)
	}
	s.m.checkpoints[goalID] = kept
	if g, ok := s.m.goals[goalID]; ok {
		g.TotalCheckpoints = len(kept)
	}
	return nil
}

type memApprovalStore struct{ m *memoryShared }

func (s *memApprovalStore) Create(ctx context.Context, a *models.ApprovalRequest) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cp := *a
	s.m.approvals[a.ID] = &cp
	return nil
}

func (s *memApprovalStore) Get(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	a, ok := s.m.approvals[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memApprovalStore) Resolve(ctx context.Context, id string, status models.ApprovalStatus) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.m.approvals[id]
	if !ok {
		return ErrNotFound
	}
	if a.Status != models.ApprovalPending {
		return ErrConflict
	}
	now := time.Now()
	a.Status = status
	a.ResolvedAt = &now
	return nil
}

func (s *memApprovalStore) ListPendingBySession(ctx context.Context, sessionID string) ([]*models.ApprovalRequest, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var out []*models.ApprovalRequest
	for _, a := range s.m.approvals {
		if a.SessionID == sessionID && a.Status == models.ApprovalPending {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memApprovalStore) ExpireOverdue(ctx context.Context) ([]*models.ApprovalRequest, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	now := time.Now()
	var expired []*models.ApprovalRequest
	for _, a := range s.m.approvals {
		if a.Status == models.ApprovalPending && !a.TimeoutAt.After(now) {
			a.Status = models.ApprovalExpired
			a.ResolvedAt = &now
			cp := *a
			expired = append(expired, &cp)
		}
	}
	return expired, nil
}

type memMemoryStore struct{ m *memoryShared }

func (s *memMemoryStore) Create(ctx context.Context, mem *models.Memory) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cp := *mem
	s.m.memories = append(s.m.memories, &cp)
	return nil
}

func (s *memMemoryStore) RecentBySession(ctx context.Context, sessionID string, limit int) ([]*models.Memory, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var out []*models.Memory
	for _, m := range s.m.memories {
		if t, ok := s.m.tasks[m.TaskID]; ok && t.SessionID == sessionID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type memKnowledgeStore struct{ m *memoryShared }

func (s *memKnowledgeStore) Upsert(ctx context.Context, c *models.KnowledgeChunk) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cp := *c
	s.m.knowledge[c.ID] = &cp
	return nil
}

func (s *memKnowledgeStore) SearchKeyword(ctx context.Context, query string, limit int) ([]*models.KnowledgeChunk, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var out []*models.KnowledgeChunk
	for _, c := range s.m.knowledge {
		if containsFold(c.Content, query) {
			out = append(out, c)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memKnowledgeStore) All(ctx context.Context) ([]*models.KnowledgeChunk, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := make([]*models.KnowledgeChunk, 0, len(s.m.knowledge))
	for _, c := range s.m.knowledge {
		out = append(out, c)
	}
	return out, nil
}

func containsFold(haystack, needle string) bool {
	return len(needle) == 0 || (len(haystack) >= len(needle) && indexFold(haystack, needle) >= 0)
}

func indexFold(haystack, needle string) int {
	hl, nl := []rune(toLower(haystack)), []rune(toLower(needle))
	if len(nl) == 0 {
		return 0
	}
	for i := 0; i+len(nl) <= len(hl); i++ {
		match := true
		for j := range nl {
			if hl[i+j] != nl[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func toLower(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'A' && r <= 'Z' {
			out[i] = r + ('a' - 'A')
		}
	}
	return string(out)
}

type memIdentityStore struct{ m *memoryShared }

func (s *memIdentityStore) Get(ctx context.Context) (*models.Identity, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	if s.m.identity == nil {
		return nil, ErrNotFound
	}
	cp := *s.m.identity
	return &cp, nil
}

func (s *memIdentityStore) Init(ctx context.Context, id *models.Identity) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.identity != nil {
		return ErrAlreadyExists
	}
	cp := *id
	cp.Version = 1
	s.m.identity = &cp
	return nil
}

func (s *memIdentityStore) Evolve(ctx context.Context, field, newValue, reason string, confidence float64, trigger string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.identity == nil {
		return ErrNotFound
	}
	var old string
	switch field {
	case "display_name":
		old = s.m.identity.DisplayName
		s.m.identity.DisplayName = newValue
	case "purpose":
		old = s.m.identity.Purpose
		s.m.identity.Purpose = newValue
	case "personality":
		old = s.m.identity.Personality
		s.m.identity.Personality = newValue
	case "communication_style":
		old = s.m.identity.CommunicationStyle
		s.m.identity.CommunicationStyle = newValue
	default:
		return ErrNotFound
	}
	s.m.identity.Version++
	s.m.identity.UpdatedAt = time.Now()
	s.m.evolutions = append(s.m.evolutions, &models.IdentityEvolution{
		Trigger: trigger, Field: field, Old: old, New: newValue, Reason: reason, Confidence: confidence, CreatedAt: time.Now(),
	})
	return nil
}

func (s *memIdentityStore) Evolutions(ctx context.Context, limit int) ([]*models.IdentityEvolution, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := s.m.evolutions
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type memUsageStore struct{ m *memoryShared }

func (s *memUsageStore) Record(ctx context.Context, u *models.LLMUsage) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cp := *u
	s.m.usage = append(s.m.usage, &cp)
	return nil
}

func (s *memUsageStore) SumCostSince(ctx context.Context, provider string, sinceUnixSeconds int64) (float64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	since := time.Unix(sinceUnixSeconds, 0)
	var total float64
	for _, u := range s.m.usage {
		if u.Provider == provider && u.CreatedAt.After(since) {
			total += u.CostUSD
		}
	}
	return total, nil
}

type memScheduleStore struct{ m *memoryShared }

func (s *memScheduleStore) Create(ctx context.Context, t *models.ScheduledTask) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cp := *t
	s.m.schedules[t.ID] = &cp
	return nil
}

func (s *memScheduleStore) List(ctx context.Context) ([]*models.ScheduledTask, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := make([]*models.ScheduledTask, 0, len(s.m.schedules))
	for _, t := range s.m.schedules {
		out = append(out, t)
	}
	return out, nil
}

func (s *memScheduleStore) Delete(ctx context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.schedules[id]; !ok {
		return ErrNotFound
	}
	delete(s.m.schedules, id)
	return nil
}

func (s *memScheduleStore) Update(ctx context.Context, t *models.ScheduledTask) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.schedules[t.ID]; !ok {
		return ErrNotFound
	}
	cp := *t
	s.m.schedules[t.ID] = &cp
	return nil
}

type memPaymentStore struct{ m *memoryShared }

func (s *memPaymentStore) Append(ctx context.Context, p *models.PaymentAudit) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cp := *p
	s.m.payments = append(s.m.payments, &cp)
	return nil
}

type memScratchpadStore struct{ m *memoryShared }

func (s *memScratchpadStore) Get(ctx context.Context) (*models.MindScratchpad, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	cp := s.m.scratchpad
	return &cp, nil
}

func (s *memScratchpadStore) Set(ctx context.Context, markdown string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.scratchpad.Version++
	s.m.scratchpad.Markdown = markdown
	s.m.scratchpad.UpdatedAt = time.Now()
	return nil
}
