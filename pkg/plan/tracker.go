// Package plan tracks the prioritized to-do list the agent maintains
// while researching a question.
package plan

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ncolesummers/wikihop/pkg/domain"
)

// DefaultPriority is used when a task is added without an explicit priority.
const DefaultPriority = 5

var (
	// ErrTaskNotFound is returned when no task has the given id.
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidTransition is returned when a task cannot move to the
	// requested status.
	ErrInvalidTransition = errors.New("invalid task transition")
)

// Task is one entry on the plan
type Task struct {
	ID          string
	Description string
	Status      domain.TaskStatus
	Priority    int
	Result      string
}

// Tracker holds the ordered task list of one session. It is not safe for
// concurrent use.
type Tracker struct {
	tasks []*Task
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// AddTask appends a pending task and returns its id. Ids are sequence
// numbers starting at 1 in insertion order.
func (t *Tracker) AddTask(description string, priority int) string {
	id := strconv.Itoa(len(t.tasks) + 1)
	t.tasks = append(t.tasks, &Task{
		ID:          id,
		Description: description,
		Status:      domain.TaskStatusPending,
		Priority:    priority,
	})
	return id
}

// CompleteTask marks the first task with the given id completed.
// Completing an already completed task only replaces its result note.
func (t *Tracker) CompleteTask(id, result string) error {
	task := t.find(id)
	if task == nil {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	if task.Status == domain.TaskStatusCanceled {
		return fmt.Errorf("%w: task %s is canceled", ErrInvalidTransition, id)
	}
	task.Status = domain.TaskStatusCompleted
	task.Result = result
	return nil
}

// CancelTask withdraws a pending task.
func (t *Tracker) CancelTask(id, reason string) error {
	task := t.find(id)
	if task == nil {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	if task.Status != domain.TaskStatusPending {
		return fmt.Errorf("%w: task %s is %s", ErrInvalidTransition, id, task.Status)
	}
	task.Status = domain.TaskStatusCanceled
	task.Result = reason
	return nil
}

// CompleteAll marks every pending task completed with the same result.
func (t *Tracker) CompleteAll(result string) {
	for _, task := range t.tasks {
		if task.Status == domain.TaskStatusPending {
			task.Status = domain.TaskStatusCompleted
			task.Result = result
		}
	}
}

// NextTask returns the highest-priority pending task. Ties go to the task
// added first.
func (t *Tracker) NextTask() (Task, bool) {
	pending := t.pending()
	if len(pending) == 0 {
		return Task{}, false
	}
	return *pending[0], true
}

// Pending returns the number of pending tasks.
func (t *Tracker) Pending() int {
	n := 0
	for _, task := range t.tasks {
		if task.Status == domain.TaskStatusPending {
			n++
		}
	}
	return n
}

// Tasks returns a copy of every task in insertion order.
func (t *Tracker) Tasks() []Task {
	out := make([]Task, len(t.tasks))
	for i, task := range t.tasks {
		out[i] = *task
	}
	return out
}

// View renders the plan shown to the decision oracle. Pending tasks are
// listed by descending priority, completed tasks in insertion order.
func (t *Tracker) View() string {
	var b strings.Builder
	b.WriteString("## RESEARCH PLAN (TODO LIST)\n")

	pending := t.pending()
	if len(pending) > 0 {
		b.WriteString("### PENDING TASKS:\n")
		for _, task := range pending {
			fmt.Fprintf(&b, "- [ ] (ID: %s) %s [Priority: %d]\n", task.ID, task.Description, task.Priority)
		}
	} else {
		b.WriteString("### NO PENDING TASKS (Generate new ones or Answer)\n")
	}

	var completed []*Task
	for _, task := range t.tasks {
		if task.Status == domain.TaskStatusCompleted {
			completed = append(completed, task)
		}
	}
	if len(completed) > 0 {
		b.WriteString("\n### COMPLETED:\n")
		for _, task := range completed {
			fmt.Fprintf(&b, "- [x] %s\n", task.Description)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (t *Tracker) pending() []*Task {
	var out []*Task
	for _, task := range t.tasks {
		if task.Status == domain.TaskStatusPending {
			out = append(out, task)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

func (t *Tracker) find(id string) *Task {
	for _, task := range t.tasks {
		if task.ID == id {
			return task
		}
	}
	return nil
}
