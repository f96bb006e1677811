package domain

import (
	"encoding/json"
	"time"
)

// TaskStatus represents the current state of a plan task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusCanceled  TaskStatus = "canceled"
)

// LoopState represents the lifecycle of a single solve session
type LoopState string

const (
	LoopStateRunning   LoopState = "running"
	LoopStateAnswered  LoopState = "answered"
	LoopStateExhausted LoopState = "exhausted"
)

// IsTerminal reports whether the session can no longer advance.
func (s LoopState) IsTerminal() bool {
	return s == LoopStateAnswered || s == LoopStateExhausted
}

// Message represents a message exchanged with the decision oracle
type Message struct {
	Role      string    `json:"role"` // "system", "user", "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ReasoningStep is one recorded iteration of the control loop
type ReasoningStep struct {
	Step        int             `json:"step"`
	Thought     string          `json:"thought"`
	Tool        string          `json:"tool"`
	Args        json.RawMessage `json:"args"`
	Result      string          `json:"result"`
	Intercepted bool            `json:"intercepted,omitempty"`
}

// SessionResult is the outcome of one question-answering session
type SessionResult struct {
	RequestID   string          `json:"request_id"`
	Question    string          `json:"question"`
	FinalAnswer *string         `json:"final_answer"`
	State       LoopState       `json:"state"`
	Steps       int             `json:"steps"`
	Trace       []ReasoningStep `json:"trace"`
	TreeState   json.RawMessage `json:"tree_state"`
	PlanState   string          `json:"plan_state"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
}

// Answer returns the final answer text, or the empty string when the
// session ended without one.
func (r *SessionResult) Answer() string {
	if r == nil || r.FinalAnswer == nil {
		return ""
	}
	return *r.FinalAnswer
}

// Answered reports whether the session produced an answer.
func (r *SessionResult) Answered() bool {
	return r != nil && r.FinalAnswer != nil
}

// SearchResult represents a single hit returned by the search backend
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// ArticleStructure describes an article's title, lead summary and section list
type ArticleStructure struct {
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Sections []string `json:"sections"`
}

// BenchmarkQuestion is one entry of the evaluation benchmark file
type BenchmarkQuestion struct {
	ID         string `json:"id"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Answerable *bool  `json:"answerable,omitempty"`
}

// IsAnswerable treats a missing flag as answerable.
func (q BenchmarkQuestion) IsAnswerable() bool {
	return q.Answerable == nil || *q.Answerable
}

// EvalRecord is the per-question record written by an evaluation run
type EvalRecord struct {
	QuestionID      string          `json:"question_id"`
	QuestionText    string          `json:"question_text"`
	GroundTruth     string          `json:"ground_truth"`
	AgentAnswer     *string         `json:"agent_answer"`
	State           LoopState       `json:"state,omitempty"`
	TraceSummary    string          `json:"trace_summary"`
	FullTrace       []ReasoningStep `json:"full_trace"`
	KnowledgeTree   json.RawMessage `json:"knowledge_tree,omitempty"`
	Plan            string          `json:"plan,omitempty"`
	Success         bool            `json:"success"`
	Error           string          `json:"error,omitempty"`
	DurationSeconds float64         `json:"duration_seconds"`
}

// RunMetadata describes one evaluation run; runs are appended to a
// shared metadata log.
type RunMetadata struct {
	RunID        string    `json:"run_id"`
	Model        string    `json:"model"`
	Provider     string    `json:"provider"`
	SampleSize   int       `json:"sample_size"`
	Seed         int64     `json:"seed"`
	Concurrency  int       `json:"concurrency"`
	MaxSteps     int       `json:"max_steps"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
	Total        int       `json:"total"`
	Successful   int       `json:"successful"`
	Answered     int       `json:"answered"`
	ResultsDir   string    `json:"results_dir"`
	BenchmarkSrc string    `json:"benchmark_file"`
}
