// Package action defines the typed actions the decision oracle can choose
// and the layered parser that turns raw oracle text into a Decision.
package action

import (
	"encoding/json"
)

// Tool names understood by the dispatcher.
const (
	ToolSearch      = "search"
	ToolInspect     = "inspect_article"
	ToolReadSection = "read_section"
	ToolAddMemory   = "add_to_memory"
	ToolReadMemory  = "read_memory"
	ToolManageTasks = "manage_tasks"
	ToolAnswer      = "answer"
	// ToolError marks a step whose oracle output could not be parsed.
	ToolError = "error"
)

var aliases = map[string]string{
	"search_google":             ToolSearch,
	"web_search":                ToolSearch,
	"inspect_article_structure": ToolInspect,
	"inspect":                   ToolInspect,
	"read_article_section":      ToolReadSection,
	"read_memory_tree":          ToolReadMemory,
	"answer_question":           ToolAnswer,
	"final_answer":              ToolAnswer,
}

// CanonicalTool maps known aliases onto their canonical tool name.
func CanonicalTool(name string) string {
	if canonical, ok := aliases[name]; ok {
		return canonical
	}
	return name
}

// Action is the closed set of actions a step can carry.
type Action interface {
	Tool() string
	sealed()
}

// Decision is one parsed oracle output
type Decision struct {
	Thought string
	Action  Action
}

// Search queries the encyclopedia search backend.
type Search struct {
	Query string `json:"query"`
}

// InspectArticle fetches an article's structure. Result is a 1-based
// ordinal into the last search results and wins over URL when set.
type InspectArticle struct {
	URL    string `json:"url,omitempty"`
	Result int    `json:"result,omitempty"`
}

// ReadSection reads one section. An empty URL means the last inspected
// article and an empty Section means the lead.
type ReadSection struct {
	URL     string `json:"url,omitempty"`
	Result  int    `json:"result,omitempty"`
	Section string `json:"section_name"`
}

// AddToMemory stores a fact in the knowledge tree.
type AddToMemory struct {
	ParentID  string `json:"parent_id"`
	Topic     string `json:"topic"`
	Content   string `json:"content"`
	SourceURL string `json:"source_url,omitempty"`
}

// ReadMemory renders the tree, or one node when NodeID is set.
type ReadMemory struct {
	NodeID string `json:"node_id,omitempty"`
}

// TaskOp selects the manage_tasks sub-operation
type TaskOp string

const (
	TaskOpAdd      TaskOp = "add"
	TaskOpComplete TaskOp = "complete"
)

// ManageTasks adds or completes plan tasks. Priority zero means the
// plan default.
type ManageTasks struct {
	Op          TaskOp `json:"action"`
	Description string `json:"description,omitempty"`
	Priority    int    `json:"priority,omitempty"`
	TaskID      string `json:"task_id,omitempty"`
	Result      string `json:"result,omitempty"`
}

// Answer ends the session with a final answer.
type Answer struct {
	Text string `json:"answer"`
}

// Unknown carries a tool name the dispatcher does not recognise.
type Unknown struct {
	Name string
	Args json.RawMessage
}

// Invalid carries a known tool whose arguments failed validation.
type Invalid struct {
	Name   string
	Args   json.RawMessage
	Reason string
}

// Unparsable marks oracle output no parse strategy could decode.
type Unparsable struct {
	Raw string
}

func (Search) Tool() string         { return ToolSearch }
func (InspectArticle) Tool() string { return ToolInspect }
func (ReadSection) Tool() string    { return ToolReadSection }
func (AddToMemory) Tool() string    { return ToolAddMemory }
func (ReadMemory) Tool() string     { return ToolReadMemory }
func (ManageTasks) Tool() string    { return ToolManageTasks }
func (Answer) Tool() string         { return ToolAnswer }
func (u Unknown) Tool() string      { return u.Name }
func (i Invalid) Tool() string      { return i.Name }
func (Unparsable) Tool() string     { return ToolError }

func (Search) sealed()         {}
func (InspectArticle) sealed() {}
func (ReadSection) sealed()    {}
func (AddToMemory) sealed()    {}
func (ReadMemory) sealed()     {}
func (ManageTasks) sealed()    {}
func (Answer) sealed()         {}
func (Unknown) sealed()        {}
func (Invalid) sealed()        {}
func (Unparsable) sealed()     {}

func (u Unknown) MarshalJSON() ([]byte, error) {
	return canonicalJSON(u.Args), nil
}

func (i Invalid) MarshalJSON() ([]byte, error) {
	return canonicalJSON(i.Args), nil
}

const maxRawArgs = 200

func (u Unparsable) MarshalJSON() ([]byte, error) {
	raw := []rune(u.Raw)
	if len(raw) > maxRawArgs {
		raw = append(raw[:maxRawArgs], []rune("...")...)
	}
	return json.Marshal(map[string]string{"raw": string(raw)})
}

// canonicalJSON re-encodes arbitrary JSON so that object keys are sorted
// and whitespace is stripped.
func canonicalJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		out, _ := json.Marshal(string(raw))
		return out
	}
	out, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return out
}

// Args returns the canonical JSON encoding of an action's arguments.
func Args(a Action) json.RawMessage {
	if a == nil {
		return json.RawMessage("{}")
	}
	out, err := json.Marshal(a)
	if err != nil {
		return json.RawMessage("{}")
	}
	return out
}

// Signature identifies an action by tool name and canonical arguments.
// Two actions with equal signatures would have identical effects.
func Signature(a Action) string {
	if a == nil {
		return ""
	}
	return a.Tool() + ":" + string(Args(a))
}
