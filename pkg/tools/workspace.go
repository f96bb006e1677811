package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/ncolesummers/wikihop/pkg/action"
	"github.com/ncolesummers/wikihop/pkg/memory"
	"github.com/ncolesummers/wikihop/pkg/plan"
	"github.com/ncolesummers/wikihop/pkg/state"
)

// DefaultTopic labels facts stored without a topic.
const DefaultTopic = "General"

// AnswerObservation is returned once a final answer is recorded.
const AnswerObservation = "Task Completed."

// AddMemoryTool stores a fact in the knowledge tree
type AddMemoryTool struct{}

func (AddMemoryTool) Name() string { return action.ToolAddMemory }

func (AddMemoryTool) Description() string {
	return "Save a verified fact to the knowledge tree under an existing node. Required to keep progress."
}

func (AddMemoryTool) Usage() string {
	return `{"parent_id": "root", "topic": "short label", "content": "fact", "source_url": "URL"}`
}

func (AddMemoryTool) Execute(ctx context.Context, sess *state.Session, act action.Action) (string, error) {
	a, ok := act.(action.AddToMemory)
	if !ok {
		return "", fmt.Errorf("add_to_memory: unexpected action %T", act)
	}
	if strings.TrimSpace(a.Content) == "" {
		return "", fmt.Errorf("%w: content", ErrMissingField)
	}
	parent := a.ParentID
	if parent == "" {
		parent = memory.RootID
	}
	topic := strings.TrimSpace(a.Topic)
	if topic == "" {
		topic = DefaultTopic
	}

	id, err := sess.Tree.AddNode(parent, topic, a.Content, a.SourceURL)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Success. Info stored in node ID: %s", id), nil
}

// ReadMemoryTool renders the whole tree or zooms into one node
type ReadMemoryTool struct{}

func (ReadMemoryTool) Name() string { return action.ToolReadMemory }

func (ReadMemoryTool) Description() string {
	return "Show the knowledge tree with content snippets, or the full content of one node."
}

func (ReadMemoryTool) Usage() string { return `{"node_id": "optional node id"}` }

func (ReadMemoryTool) Execute(ctx context.Context, sess *state.Session, act action.Action) (string, error) {
	a, ok := act.(action.ReadMemory)
	if !ok {
		return "", fmt.Errorf("read_memory: unexpected action %T", act)
	}
	if a.NodeID != "" {
		return sess.Tree.NodeContent(a.NodeID), nil
	}
	return sess.Tree.View(true), nil
}

// ManageTasksTool adds or completes plan tasks
type ManageTasksTool struct{}

func (ManageTasksTool) Name() string { return action.ToolManageTasks }

func (ManageTasksTool) Description() string {
	return "Update the research plan: add a sub-question or mark a task completed."
}

func (ManageTasksTool) Usage() string {
	return `{"action": "add", "description": "...", "priority": 1-10} or {"action": "complete", "task_id": "2", "result": "..."}`
}

func (ManageTasksTool) Execute(ctx context.Context, sess *state.Session, act action.Action) (string, error) {
	a, ok := act.(action.ManageTasks)
	if !ok {
		return "", fmt.Errorf("manage_tasks: unexpected action %T", act)
	}

	switch a.Op {
	case action.TaskOpAdd:
		if a.Description == "" {
			return "", fmt.Errorf("%w: description", ErrMissingField)
		}
		priority := a.Priority
		if priority == 0 {
			priority = plan.DefaultPriority
		}
		id := sess.Plan.AddTask(a.Description, priority)
		return fmt.Sprintf("Task added with ID: %s", id), nil
	case action.TaskOpComplete:
		if a.TaskID == "" {
			return "", fmt.Errorf("%w: task_id", ErrMissingField)
		}
		if err := sess.Plan.CompleteTask(a.TaskID, a.Result); err != nil {
			return "", err
		}
		return fmt.Sprintf("Task %s marked as completed.", a.TaskID), nil
	case "":
		return "", fmt.Errorf("%w: action", ErrMissingField)
	default:
		return "", fmt.Errorf("unknown manage_tasks action %q, use add or complete", a.Op)
	}
}

// AnswerTool records the final answer and ends the session
type AnswerTool struct{}

func (AnswerTool) Name() string { return action.ToolAnswer }

func (AnswerTool) Description() string {
	return "Give the final answer. Only use it when the knowledge tree supports the answer."
}

func (AnswerTool) Usage() string { return `{"answer": "concise final answer"}` }

func (AnswerTool) Execute(ctx context.Context, sess *state.Session, act action.Action) (string, error) {
	a, ok := act.(action.Answer)
	if !ok {
		return "", fmt.Errorf("answer: unexpected action %T", act)
	}
	sess.SetAnswer(a.Text)
	return AnswerObservation, nil
}

// NewDefaultRegistry registers the full tool vocabulary
func NewDefaultRegistry(search *SearchTool, inspect *InspectTool, read *ReadSectionTool, opts ...RegistryOption) (*Registry, error) {
	r := NewRegistry(opts...)
	for _, tool := range []Tool{search, inspect, read, AddMemoryTool{}, ReadMemoryTool{}, ManageTasksTool{}, AnswerTool{}} {
		if err := r.Register(tool); err != nil {
			return nil, err
		}
	}
	return r, nil
}
