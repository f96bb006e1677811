package workflow

import (
	"fmt"
	"strings"

	"github.com/ncolesummers/wikihop/pkg/domain"
	"github.com/ncolesummers/wikihop/pkg/state"
)

// DefaultSystemPrompt instructs the oracle on the research protocol. The
// tool catalog is appended at runtime.
const DefaultSystemPrompt = `You are a meticulous research agent answering multi-hop questions using Wikipedia.
You work in steps. Each step you choose exactly ONE tool.

PROTOCOL:
1. Break the question into sub-questions with manage_tasks when it needs more than one hop.
2. Search for each unknown entity, inspect the most promising article, then read the relevant section.
3. Save every verified fact with add_to_memory, nesting it under the node it answers.
4. Answer only when the knowledge tree proves the answer. Keep the answer short.

Never repeat an action that already produced its result.

Respond with ONLY a JSON object of the form:
{"thought": "your reasoning", "tool": "tool_name", "args": {...}}`

const noHistory = "No actions taken yet."

// systemPrompt joins the base instructions with the tool catalog
func systemPrompt(base, catalog string) string {
	if strings.TrimSpace(base) == "" {
		base = DefaultSystemPrompt
	}
	if catalog == "" {
		return base
	}
	return base + "\n\nAVAILABLE TOOLS:\n" + catalog
}

// stepPrompt renders the per-step context: question, plan, knowledge tree
// and the most recent steps.
func stepPrompt(sess *state.Session, history []domain.ReasoningStep) string {
	var b strings.Builder
	fmt.Fprintf(&b, "QUESTION: %s\n\n", sess.Question)
	b.WriteString(sess.Plan.View())
	b.WriteString("\n\n")
	b.WriteString(sess.Tree.View(true))
	b.WriteString("\n\nRECENT HISTORY:\n")
	if len(history) == 0 {
		b.WriteString(noHistory)
		b.WriteString("\n")
	}
	for _, step := range history {
		fmt.Fprintf(&b, "Step %d:\n  Thought: %s\n  Action: %s(%s)\n  Result: %s\n\n",
			step.Step, step.Thought, step.Tool, string(step.Args), step.Result)
	}
	b.WriteString("\nAnalyze the plan, the tree and the history, then decide the next step. Respond in JSON.")
	return b.String()
}
