// Package flow drives conversations: it loads state, applies tool results
// through the connector, performs side effects and persists the outcome.
package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mpm/stuplan/internal/catalog"
	"github.com/mpm/stuplan/internal/connector"
	"github.com/mpm/stuplan/internal/conversation"
	"github.com/mpm/stuplan/internal/metrics"
	"github.com/mpm/stuplan/internal/persistence"
	"github.com/mpm/stuplan/internal/planner"
)

// ErrNotReady is returned when a plan is requested before its inputs exist.
var ErrNotReady = errors.New("conversation is not ready for plan generation")

// Persistence backends named in logs and metrics.
const (
	backendLocal    = "local"
	backendDatabase = "database"
)

// Generator produces a graduation plan.
type Generator interface {
	GeneratePlan(ctx context.Context, req planner.Request) (*planner.Plan, error)
}

// Directory resolves programs and student profiles.
type Directory interface {
	ProgramNames(ctx context.Context, universityID int, ids []int) (map[int]string, error)
	TargetCredits(ctx context.Context, universityID int, ids []int) (map[int]int, error)
	Student(ctx context.Context, id string) (catalog.Student, error)
}

// Options configures a Processor. Local is required.
type Options struct {
	Local     *persistence.LocalStore
	Store     conversation.Store // optional server-side store
	Machine   *conversation.Machine
	Generator Generator
	Directory Directory
	Terms     planner.AcademicTerms
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Now       func() time.Time
}

// Processor runs conversation operations.
type Processor struct {
	local     *persistence.LocalStore
	store     conversation.Store
	connector *connector.Connector
	generator Generator
	directory Directory
	terms     planner.AcademicTerms
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewProcessor creates a processor.
func NewProcessor(opts Options) *Processor {
	p := &Processor{
		local:     opts.Local,
		store:     opts.Store,
		connector: connector.New(opts.Machine),
		generator: opts.Generator,
		directory: opts.Directory,
		terms:     opts.Terms,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if p.generator == nil {
		p.generator = planner.NewGenerator()
	}
	if p.directory == nil {
		p.directory = catalog.Empty()
	}
	if len(p.terms.Ordering) == 0 {
		p.terms = planner.DefaultAcademicTerms()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Response is the outcome of an operation, ready to show the student.
type Response struct {
	State        conversation.State    `json:"state"`
	Message      string                `json:"message,omitempty"`
	NextTool     connector.Tool        `json:"nextTool,omitempty"`
	NextToolData map[string]any        `json:"nextToolData,omitempty"`
	AgentCheck   *connector.AgentCheck `json:"agentCheck,omitempty"`
	Delay        time.Duration         `json:"delay,omitempty"`
	Warning      string                `json:"warning,omitempty"`
	Plan         *planner.Plan         `json:"plan,omitempty"`
	Error        string                `json:"error,omitempty"`
}

const greeting = "Hi! I'll help you build your graduation plan. Let's start by confirming your profile."

// Start creates a conversation for userID. A zero universityID is taken
// from the student's profile when one exists.
func (p *Processor) Start(ctx context.Context, userID string, universityID int) (*Response, error) {
	if userID == "" {
		return nil, fmt.Errorf("start conversation: user id is required")
	}

	if universityID == 0 {
		if student, err := p.directory.Student(ctx, userID); err == nil {
			universityID = student.UniversityID
		}
	}

	state := conversation.CreateInitialState(conversation.GenerateConversationID(), userID, universityID)
	state = conversation.UpdateState(state, conversation.StateUpdate{
		PendingToolCall: p.toolCall(connector.ToolProfileCheck),
	})

	p.commit(ctx, state, persistence.StatusActive, conversation.EventTypeCreated, map[string]any{
		"user_id":       userID,
		"university_id": universityID,
	})

	p.logger.Info("conversation started", "conversation_id", state.ConversationID, "user_id", userID)

	return &Response{
		State:        state,
		Message:      greeting,
		NextTool:     connector.ToolProfileCheck,
		NextToolData: map[string]any{},
	}, nil
}

// Load returns a conversation. The local store is consulted first, then
// the server-side store, whose copy is written back locally.
func (p *Processor) Load(ctx context.Context, id string) (*conversation.State, error) {
	state, err := p.local.LoadState(ctx, id)
	if err != nil {
		p.persistenceFailed(backendLocal, "load conversation", id, err)
	}
	if state != nil {
		return state, nil
	}

	if p.store != nil {
		state, err = p.store.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get conversation: %w", err)
		}
		if state != nil {
			if err := p.local.SaveState(ctx, *state); err != nil {
				p.persistenceFailed(backendLocal, "cache conversation", id, err)
			}
			return state, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", conversation.ErrNotFound, id)
}

// CompleteTool applies the raw result of tool to the conversation.
func (p *Processor) CompleteTool(ctx context.Context, id string, tool connector.Tool, raw json.RawMessage) (*Response, error) {
	state, err := p.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := connector.DecodeToolResult(tool, raw)
	if err != nil {
		return nil, err
	}

	tr, err := p.connector.ComputeStepTransition(result, *state, p.context(ctx, *state))
	if err != nil {
		return nil, err
	}
	p.metrics.ToolCompleted(string(tool))

	next := tr.Apply(*state)
	next = conversation.UpdateState(next, conversation.StateUpdate{
		LastToolResult: &conversation.ToolRecord{Tool: string(tool), Result: raw, CompletedAt: p.now().UTC()},
	})

	p.record(ctx, id, conversation.EventTypeToolResult, map[string]any{"tool": tool})
	return p.finish(ctx, *state, next, tr), nil
}

// Skip skips the step that tool belongs to.
func (p *Processor) Skip(ctx context.Context, id string, tool connector.Tool) (*Response, error) {
	state, err := p.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	tr, err := p.connector.ComputeSkipTransition(tool, *state, p.context(ctx, *state))
	if err != nil {
		return nil, err
	}

	p.record(ctx, id, conversation.EventTypeSkip, map[string]any{"tool": tool})
	return p.finish(ctx, *state, tr.Apply(*state), tr), nil
}

// Navigate moves the conversation back to target. A refused navigation
// leaves the conversation unchanged and is reported in Warning.
func (p *Processor) Navigate(ctx context.Context, id string, target conversation.Step) (*Response, error) {
	state, err := p.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := conversation.NavigateToStep(*state, target)
	if err != nil {
		var navErr *conversation.NavigationError
		if !errors.As(err, &navErr) {
			return nil, err
		}
		p.metrics.NavigationRejected()
		p.logger.Warn("navigation rejected", "conversation_id", id, "target", target, "reason", navErr.Reason)
		return &Response{State: *state, Warning: navErr.Error()}, nil
	}

	tool := connector.ToolForStep(target)
	if tool != "" {
		next = conversation.UpdateState(next, conversation.StateUpdate{PendingToolCall: p.toolCall(tool)})
	} else {
		next = conversation.UpdateState(next, conversation.StateUpdate{ClearPendingToolCall: true})
	}

	p.metrics.StepChanged(string(state.CurrentStep), string(next.CurrentStep))
	p.commit(ctx, next, persistence.StatusActive, conversation.EventTypeNavigation, map[string]any{
		"from": state.CurrentStep,
		"to":   target,
	})

	resp := &Response{
		State:        next,
		Message:      fmt.Sprintf("Let's revisit %s.", conversation.StepLabel(target)),
		NextTool:     tool,
		NextToolData: map[string]any{},
	}
	if warning, ok := conversation.ResetWarningMessage(target); ok {
		resp.Warning = warning
	}
	return resp, nil
}

// Generate runs plan generation for a conversation waiting at
// GENERATING_PLAN, for example to retry after a failure.
func (p *Processor) Generate(ctx context.Context, id string) (*Response, error) {
	state, err := p.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if state.CurrentStep != conversation.StepGeneratingPlan {
		return nil, fmt.Errorf("%w: conversation is at %s", ErrNotReady, state.CurrentStep)
	}
	if readiness := conversation.IsReadyForGeneration(*state); !readiness.IsValid {
		p.metrics.Generation(metrics.OutcomeNotReady)
		return nil, fmt.Errorf("%w: %s", ErrNotReady, connector.NotReadyMessage(readiness.Errors))
	}

	resp := &Response{State: *state, NextToolData: map[string]any{}}
	p.runGeneration(ctx, resp)
	return resp, nil
}

// Delete removes a conversation from every store.
func (p *Processor) Delete(ctx context.Context, id string) error {
	if err := p.local.ClearState(ctx, id); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if p.store != nil {
		if err := p.store.Delete(ctx, id); err != nil && !errors.Is(err, conversation.ErrNotFound) {
			return fmt.Errorf("failed to delete conversation: %w", err)
		}
	}
	p.logger.Info("conversation deleted", "conversation_id", id)
	return nil
}

// CleanupResult counts removed conversations per store.
type CleanupResult struct {
	Local    int `json:"local"`
	Database int `json:"database"`
}

// Cleanup removes expired conversations from every store.
func (p *Processor) Cleanup(ctx context.Context) (CleanupResult, error) {
	var res CleanupResult

	n, err := p.local.CleanupExpired(ctx)
	res.Local = n
	if err != nil {
		return res, fmt.Errorf("failed to clean up local conversations: %w", err)
	}

	if p.store != nil {
		n, err := p.store.DeleteCreatedBefore(ctx, p.now().Add(-p.local.TTL()))
		res.Database = n
		if err != nil {
			return res, fmt.Errorf("failed to clean up stored conversations: %w", err)
		}
	}
	return res, nil
}

// List returns the recent conversations index.
func (p *Processor) List(ctx context.Context) ([]persistence.Metadata, error) {
	return p.local.ListMetadata(ctx)
}

// finish performs side effects, persists the new state and builds the
// response.
func (p *Processor) finish(ctx context.Context, prev, next conversation.State, tr connector.Transition) *Response {
	resp := &Response{
		Message:      tr.Message,
		NextTool:     tr.NextTool,
		NextToolData: tr.NextToolData,
		AgentCheck:   tr.AgentCheck,
		Delay:        tr.Delay,
	}

	var generate bool
	for _, effect := range tr.SideEffects {
		switch effect.Type {
		case connector.SideEffectFetchStudentType:
			next = p.fetchStudentType(ctx, next)
		case connector.SideEffectFetchProgramNames:
			next = p.fetchProgramNames(ctx, next, effect)
		case connector.SideEffectStartPlanGeneration:
			generate = true
		}
	}

	if tr.NextTool != "" {
		next = conversation.UpdateState(next, conversation.StateUpdate{PendingToolCall: p.toolCall(tr.NextTool)})
	} else {
		next = conversation.UpdateState(next, conversation.StateUpdate{ClearPendingToolCall: true})
	}

	if prev.CurrentStep != next.CurrentStep {
		p.metrics.StepChanged(string(prev.CurrentStep), string(next.CurrentStep))
		p.record(ctx, next.ConversationID, conversation.EventTypeStepChange, map[string]any{
			"from": prev.CurrentStep,
			"to":   next.CurrentStep,
		})
	}

	resp.State = next
	if generate {
		p.runGeneration(ctx, resp)
		return resp
	}

	p.persist(ctx, next, persistence.StatusActive)
	return resp
}

// runGeneration generates the plan for resp.State. Only a successful
// generation moves the conversation to COMPLETE.
func (p *Processor) runGeneration(ctx context.Context, resp *Response) {
	state := resp.State
	logger := p.logger.With("conversation_id", state.ConversationID)

	req := p.buildRequest(ctx, state)
	plan, err := p.generator.GeneratePlan(ctx, req)
	if err != nil {
		p.metrics.Generation(metrics.OutcomeFailure)
		logger.Error("plan generation failed", "error", err)
		state = conversation.UpdateState(state, conversation.StateUpdate{
			Step:            conversation.StepGeneratingPlan,
			PendingToolCall: p.toolCall(connector.ToolGeneratePlanConfirmation),
		})
		p.commit(ctx, state, persistence.StatusError, conversation.EventTypeGenerationFailed, map[string]any{"error": err.Error()})

		resp.State = state
		resp.NextTool = connector.ToolGeneratePlanConfirmation
		resp.Error = err.Error()
		resp.Message = "I couldn't generate your plan. Please try again."
		return
	}

	p.metrics.Generation(metrics.OutcomeSuccess)
	state = conversation.UpdateState(state, conversation.StateUpdate{
		Step:                 conversation.StepComplete,
		CompletedStep:        conversation.StepGeneratingPlan,
		ClearPendingToolCall: true,
	})
	p.metrics.StepChanged(string(conversation.StepGeneratingPlan), string(conversation.StepComplete))
	p.commit(ctx, state, persistence.StatusComplete, conversation.EventTypePlanGenerated, plan)

	logger.Info("plan generated", "terms", len(plan.Terms), "credits", plan.TotalCredits)

	resp.State = state
	resp.Plan = plan
	resp.NextTool = ""
	resp.NextToolData = map[string]any{}
	resp.Message = fmt.Sprintf("Your graduation plan is ready: %d terms, %d credits.", len(plan.Terms), plan.TotalCredits)
}

// context builds the connector context from the student's profile.
func (p *Processor) context(ctx context.Context, s conversation.State) connector.Context {
	c := connector.Context{
		Profile: connector.StudentProfile{ID: s.UserID, UniversityID: s.UniversityID},
		Terms:   p.terms,
		UserID:  s.UserID,
		Now:     p.now,
	}

	student, err := p.directory.Student(ctx, s.UserID)
	if err != nil {
		if !errors.Is(err, catalog.ErrStudentNotFound) {
			p.logger.Warn("failed to load student profile", "user_id", s.UserID, "error", err)
		}
		return c
	}

	c.Profile.StudentType = student.StudentType
	c.Profile.EstGradDate = student.EstGradDate
	c.Profile.EstGradSem = student.EstGradSem
	c.Profile.AdmissionYear = student.AdmissionYear
	c.Profile.IsTransfer = student.IsTransfer
	c.HasCourses = student.HasCourses
	return c
}

func (p *Processor) fetchStudentType(ctx context.Context, s conversation.State) conversation.State {
	student, err := p.directory.Student(ctx, s.UserID)
	if err != nil || student.StudentType == "" {
		return s
	}
	return conversation.UpdateState(s, conversation.StateUpdate{
		Data: &conversation.DataPatch{StudentType: conversation.Ptr(student.StudentType)},
	})
}

func (p *Processor) fetchProgramNames(ctx context.Context, s conversation.State, effect connector.SideEffect) conversation.State {
	names, err := p.directory.ProgramNames(ctx, effect.UniversityID, effect.ProgramIDs)
	if err != nil {
		p.logger.Warn("failed to fetch program names", "conversation_id", s.ConversationID, "error", err)
		return s
	}

	programs := make([]conversation.ProgramSelection, len(s.CollectedData.SelectedPrograms))
	copy(programs, s.CollectedData.SelectedPrograms)
	for i, prog := range programs {
		if name, ok := names[prog.ProgramID]; ok {
			programs[i].ProgramName = name
		}
	}
	return conversation.UpdateState(s, conversation.StateUpdate{
		Data: &conversation.DataPatch{SelectedPrograms: conversation.Ptr(programs)},
	})
}

func (p *Processor) toolCall(tool connector.Tool) *conversation.ToolCall {
	return &conversation.ToolCall{ID: uuid.NewString(), Tool: string(tool), StartedAt: p.now().UTC()}
}

// persist saves s locally and server-side. Failures are logged and counted
// but never returned: the in-memory state stays authoritative.
func (p *Processor) persist(ctx context.Context, s conversation.State, status persistence.Status) {
	p.persistLocal(ctx, s, status)
	if p.store != nil {
		if err := p.store.Save(ctx, s); err != nil {
			p.persistenceFailed(backendDatabase, "save conversation", s.ConversationID, err)
		}
	}
}

func (p *Processor) persistLocal(ctx context.Context, s conversation.State, status persistence.Status) {
	if err := p.local.SaveState(ctx, s); err != nil {
		p.persistenceFailed(backendLocal, "save conversation", s.ConversationID, err)
	}
	if err := p.local.UpsertMetadata(ctx, persistence.MetadataFor(s, status, p.now())); err != nil {
		p.persistenceFailed(backendLocal, "update conversation index", s.ConversationID, err)
	}
}

// commit persists s like persist, writing the conversation row and its event
// to the database in one transaction.
func (p *Processor) commit(ctx context.Context, s conversation.State, status persistence.Status, eventType conversation.EventType, payload any) {
	p.persistLocal(ctx, s, status)
	if p.store == nil {
		return
	}
	if err := p.store.SaveWithEvent(ctx, s, eventType, payload); err != nil {
		p.persistenceFailed(backendDatabase, "save conversation", s.ConversationID, err)
	}
}

func (p *Processor) record(ctx context.Context, id string, eventType conversation.EventType, payload any) {
	if p.store == nil {
		return
	}
	if err := p.store.RecordEvent(ctx, id, eventType, payload); err != nil {
		p.persistenceFailed(backendDatabase, "record event", id, err)
	}
}

func (p *Processor) persistenceFailed(backend, action, id string, err error) {
	p.metrics.PersistenceFailed(backend)
	p.logger.Warn("persistence failed", "backend", backend, "action", action, "conversation_id", id, "error", err)
}
