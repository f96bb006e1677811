// Package memory holds the knowledge tree: a hierarchical store of facts
// the agent gathers while answering a question.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// RootID is the identifier of the tree root. It is created with the tree
// and can never be added again.
const RootID = "root"

// RootTopic is the topic label of the root node.
const RootTopic = "Research Goal"

// DefaultSnippetLimit caps the content snippet shown in the tree view.
const DefaultSnippetLimit = 120

// NodeNotFound is returned by NodeContent for an unknown id.
const NodeNotFound = "Node not found."

var (
	// ErrParentNotFound is returned when adding under an unknown parent.
	ErrParentNotFound = errors.New("parent node not found")
	// ErrInvalidTree is returned when loading a serialized tree fails.
	ErrInvalidTree = errors.New("invalid knowledge tree")
)

// Node is one fact stored in the tree
type Node struct {
	ID        string
	ParentID  string
	Topic     string
	Content   string
	SourceURL string
	Children  []string
}

// Tree is a rooted tree of nodes indexed by id. A Tree is owned by a
// single session and is not safe for concurrent use.
type Tree struct {
	nodes        map[string]*Node
	newID        func() string
	snippetLimit int
}

// Option configures a Tree
type Option func(*Tree)

// WithIDGenerator overrides the id generator. The tree still retries on
// collisions, so the generator need not guarantee uniqueness.
func WithIDGenerator(gen func() string) Option {
	return func(t *Tree) {
		t.newID = gen
	}
}

// WithSnippetLimit sets the number of runes shown per node in the
// content-annotated view.
func WithSnippetLimit(n int) Option {
	return func(t *Tree) {
		if n > 0 {
			t.snippetLimit = n
		}
	}
}

// NewTree returns a tree holding only the root node.
func NewTree(opts ...Option) *Tree {
	t := &Tree{
		nodes:        make(map[string]*Node),
		newID:        shortID,
		snippetLimit: DefaultSnippetLimit,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.nodes[RootID] = &Node{ID: RootID, Topic: RootTopic}
	return t
}

func shortID() string {
	return uuid.NewString()[:8]
}

// AddNode attaches a new node under parentID and returns its id.
func (t *Tree) AddNode(parentID, topic, content, sourceURL string) (string, error) {
	parent, ok := t.nodes[parentID]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrParentNotFound, parentID)
	}

	id := t.newID()
	for attempts := 0; id == "" || id == RootID || t.nodes[id] != nil; attempts++ {
		if attempts >= 100 {
			// Generator is stuck; fall back to random ids.
			id = shortID()
			continue
		}
		id = t.newID()
	}

	t.nodes[id] = &Node{
		ID:        id,
		ParentID:  parentID,
		Topic:     topic,
		Content:   content,
		SourceURL: sourceURL,
	}
	parent.Children = append(parent.Children, id)
	return id, nil
}

// Len returns the number of nodes including the root.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Node returns a copy of the node with the given id.
func (t *Tree) Node(id string) (Node, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return Node{}, false
	}
	cp := *n
	cp.Children = append([]string(nil), n.Children...)
	return cp, true
}

// NodeContent renders the full content of one node, or NodeNotFound.
func (t *Tree) NodeContent(id string) string {
	n, ok := t.nodes[id]
	if !ok {
		return NodeNotFound
	}
	return fmt.Sprintf("TOPIC: %s\nSOURCE: %s\nCONTENT:\n%s", n.Topic, n.SourceURL, n.Content)
}

// View renders the tree in pre-order, indenting two spaces per depth
// level. Children appear in insertion order, so the output is
// deterministic. With includeContent each node carries a whitespace
// normalized snippet of its content.
func (t *Tree) View(includeContent bool) string {
	var b strings.Builder
	b.WriteString("KNOWLEDGE TREE:\n")

	type frame struct {
		id    string
		depth int
	}
	stack := []frame{{id: RootID}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := t.nodes[f.id]
		b.WriteString(strings.Repeat("  ", f.depth))
		fmt.Fprintf(&b, "- [%s] %s", n.ID, n.Topic)
		if includeContent {
			if s := snippet(n.Content, t.snippetLimit); s != "" {
				b.WriteString(": ")
				b.WriteString(s)
			}
		}
		b.WriteByte('\n')

		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: n.Children[i], depth: f.depth + 1})
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func snippet(content string, limit int) string {
	s := strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + "..."
}

type jsonNode struct {
	ID        string     `json:"id"`
	Topic     string     `json:"topic"`
	Content   string     `json:"content"`
	SourceURL string     `json:"source_url"`
	Children  []jsonNode `json:"children"`
}

// MarshalJSON encodes the tree as nested objects rooted at the root node.
func (t *Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.export(RootID))
}

func (t *Tree) export(id string) jsonNode {
	var out jsonNode
	type pending struct {
		id  string
		dst *jsonNode
	}
	stack := []pending{{id: id, dst: &out}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := t.nodes[top.id]
		*top.dst = jsonNode{
			ID:        n.ID,
			Topic:     n.Topic,
			Content:   n.Content,
			SourceURL: n.SourceURL,
			Children:  make([]jsonNode, len(n.Children)),
		}
		for i, child := range n.Children {
			stack = append(stack, pending{id: child, dst: &top.dst.Children[i]})
		}
	}
	return out
}

// ToJSON is a convenience wrapper returning the nested encoding.
func (t *Tree) ToJSON() (json.RawMessage, error) {
	return t.MarshalJSON()
}

// Load rebuilds a tree from its nested JSON encoding.
func Load(data []byte, opts ...Option) (*Tree, error) {
	var root jsonNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTree, err)
	}
	if root.ID != RootID {
		return nil, fmt.Errorf("%w: root id is %q", ErrInvalidTree, root.ID)
	}

	t := NewTree(opts...)
	t.nodes[RootID].Topic = root.Topic
	t.nodes[RootID].Content = root.Content
	t.nodes[RootID].SourceURL = root.SourceURL
	if err := t.load(RootID, root.Children); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) load(parentID string, children []jsonNode) error {
	type pending struct {
		parentID string
		children []jsonNode
	}
	stack := []pending{{parentID: parentID, children: children}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		parent := t.nodes[top.parentID]
		for _, c := range top.children {
			if c.ID == "" || t.nodes[c.ID] != nil {
				return fmt.Errorf("%w: duplicate or empty id %q", ErrInvalidTree, c.ID)
			}
			t.nodes[c.ID] = &Node{
				ID:        c.ID,
				ParentID:  top.parentID,
				Topic:     c.Topic,
				Content:   c.Content,
				SourceURL: c.SourceURL,
			}
			parent.Children = append(parent.Children, c.ID)
			if len(c.Children) > 0 {
				stack = append(stack, pending{parentID: c.ID, children: c.Children})
			}
		}
	}
	return nil
}
