package state

import (
	"encoding/json"
	"time"

	"github.com/ncolesummers/wikihop/pkg/domain"
	"github.com/ncolesummers/wikihop/pkg/memory"
	"github.com/ncolesummers/wikihop/pkg/plan"
)

// AnswerTaskResult is the result note put on tasks closed by an answer.
const AnswerTaskResult = "Answered"

// Session is the mutable state of one solve session. It is owned by a
// single control loop and passed by reference to tool executions, so it
// carries no lock.
type Session struct {
	RequestID string
	Question  string

	Tree *memory.Tree
	Plan *plan.Tracker

	// LastResults holds the most recent search hits for ordinal selection.
	LastResults []domain.SearchResult
	// LastInspectedURL is the default target of read_section.
	LastInspectedURL string

	phase       domain.LoopState
	steps       int
	trace       []domain.ReasoningStep
	finalAnswer *string
	startedAt   time.Time
	completedAt time.Time
}

// Config provides configuration for new sessions
type Config struct {
	SnippetLimit int
	// SeedPriority is the priority of the task created from the question.
	SeedPriority int
	// IDGenerator overrides knowledge tree ids, mainly for tests.
	IDGenerator func() string
}

// DefaultConfig returns default session configuration
func DefaultConfig() *Config {
	return &Config{
		SnippetLimit: memory.DefaultSnippetLimit,
		SeedPriority: 10,
	}
}

// NewSession creates a running session whose plan is seeded with the
// question itself.
func NewSession(requestID, question string, config *Config) *Session {
	if config == nil {
		config = DefaultConfig()
	}

	opts := []memory.Option{memory.WithSnippetLimit(config.SnippetLimit)}
	if config.IDGenerator != nil {
		opts = append(opts, memory.WithIDGenerator(config.IDGenerator))
	}

	s := &Session{
		RequestID: requestID,
		Question:  question,
		Tree:      memory.NewTree(opts...),
		Plan:      plan.NewTracker(),
		phase:     domain.LoopStateRunning,
		startedAt: time.Now(),
	}
	s.Plan.AddTask(question, config.SeedPriority)
	return s
}

// Phase returns the current loop state
func (s *Session) Phase() domain.LoopState {
	return s.phase
}

// Steps returns the number of iterations consumed so far
func (s *Session) Steps() int {
	return s.steps
}

// BeginStep consumes one unit of step budget and returns its 1-based
// number. Steps abandoned before producing a trace entry still count.
func (s *Session) BeginStep() int {
	s.steps++
	return s.steps
}

// AppendStep records a completed step
func (s *Session) AppendStep(step domain.ReasoningStep) {
	s.trace = append(s.trace, step)
}

// RecentSteps returns up to n of the most recent trace entries
func (s *Session) RecentSteps(n int) []domain.ReasoningStep {
	if n <= 0 || len(s.trace) == 0 {
		return nil
	}
	start := len(s.trace) - n
	if start < 0 {
		start = 0
	}
	return append([]domain.ReasoningStep(nil), s.trace[start:]...)
}

// Trace returns a copy of the full trace
func (s *Session) Trace() []domain.ReasoningStep {
	return append([]domain.ReasoningStep(nil), s.trace...)
}

// SetAnswer records the final answer, closes every pending task and
// moves the session to ANSWERED. Later calls are ignored.
func (s *Session) SetAnswer(text string) {
	if s.phase.IsTerminal() {
		return
	}
	answer := text
	s.finalAnswer = &answer
	s.Plan.CompleteAll(AnswerTaskResult)
	s.phase = domain.LoopStateAnswered
	s.completedAt = time.Now()
}

// Exhaust ends a running session without an answer
func (s *Session) Exhaust() {
	if s.phase.IsTerminal() {
		return
	}
	s.phase = domain.LoopStateExhausted
	s.completedAt = time.Now()
}

// Result builds the session result from the current state
func (s *Session) Result() *domain.SessionResult {
	tree, err := s.Tree.ToJSON()
	if err != nil {
		tree = json.RawMessage("null")
	}

	completed := s.completedAt
	if completed.IsZero() {
		completed = time.Now()
	}

	var answer *string
	if s.finalAnswer != nil {
		a := *s.finalAnswer
		answer = &a
	}

	return &domain.SessionResult{
		RequestID:   s.RequestID,
		Question:    s.Question,
		FinalAnswer: answer,
		State:       s.phase,
		Steps:       s.steps,
		Trace:       s.Trace(),
		TreeState:   tree,
		PlanState:   s.Plan.View(),
		StartedAt:   s.startedAt,
		CompletedAt: completed,
	}
}
