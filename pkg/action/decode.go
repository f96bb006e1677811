package action

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// argMap is a loosely typed argument object. Oracles routinely send
// numbers as strings and the reverse, so accessors coerce both ways.
type argMap map[string]interface{}

func (m argMap) str(keys ...string) (string, error) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch x := v.(type) {
		case string:
			return x, nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		case bool:
			return strconv.FormatBool(x), nil
		default:
			return "", fmt.Errorf("field %q must be a string", k)
		}
	}
	return "", nil
}

func (m argMap) integer(keys ...string) (int, error) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch x := v.(type) {
		case float64:
			if x != float64(int(x)) {
				return 0, fmt.Errorf("field %q must be an integer", k)
			}
			return int(x), nil
		case string:
			if strings.TrimSpace(x) == "" {
				return 0, nil
			}
			n, err := strconv.Atoi(strings.TrimSpace(x))
			if err != nil {
				return 0, fmt.Errorf("field %q must be an integer, got %q", k, x)
			}
			return n, nil
		default:
			return 0, fmt.Errorf("field %q must be an integer", k)
		}
	}
	return 0, nil
}

// Decode builds the typed action for a tool name and its raw arguments.
// Unknown tools and argument type errors are carried as values so the
// dispatcher can report them to the oracle.
func Decode(tool string, raw json.RawMessage) Action {
	name := CanonicalTool(tool)

	m := argMap{}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &m); err != nil {
			if _, known := knownTools[name]; !known {
				return Unknown{Name: name, Args: raw}
			}
			return Invalid{Name: name, Args: raw, Reason: "args must be a JSON object"}
		}
	}

	decode, ok := knownTools[name]
	if !ok {
		return Unknown{Name: name, Args: raw}
	}
	a, err := decode(m)
	if err != nil {
		return Invalid{Name: name, Args: raw, Reason: err.Error()}
	}
	return a
}

var knownTools = map[string]func(argMap) (Action, error){
	ToolSearch:      decodeSearch,
	ToolInspect:     decodeInspect,
	ToolReadSection: decodeReadSection,
	ToolAddMemory:   decodeAddMemory,
	ToolReadMemory:  decodeReadMemory,
	ToolManageTasks: decodeManageTasks,
	ToolAnswer:      decodeAnswer,
}

func decodeSearch(m argMap) (Action, error) {
	q, err := m.str("query", "q")
	if err != nil {
		return nil, err
	}
	return Search{Query: strings.TrimSpace(q)}, nil
}

// selector resolves "url" values that are really ordinals, plus the
// explicit result/index keys.
func selector(m argMap) (string, int, error) {
	n, err := m.integer("result", "index")
	if err != nil {
		return "", 0, err
	}
	u, err := m.str("url")
	if err != nil {
		return "", 0, err
	}
	u = strings.TrimSpace(u)
	if n == 0 {
		if ord, convErr := strconv.Atoi(u); convErr == nil {
			return "", ord, nil
		}
	}
	if n != 0 {
		u = ""
	}
	return u, n, nil
}

func decodeInspect(m argMap) (Action, error) {
	u, n, err := selector(m)
	if err != nil {
		return nil, err
	}
	return InspectArticle{URL: u, Result: n}, nil
}

func decodeReadSection(m argMap) (Action, error) {
	u, n, err := selector(m)
	if err != nil {
		return nil, err
	}
	section, err := m.str("section_name", "section")
	if err != nil {
		return nil, err
	}
	return ReadSection{URL: u, Result: n, Section: strings.TrimSpace(section)}, nil
}

func decodeAddMemory(m argMap) (Action, error) {
	parent, err := m.str("parent_id", "parent")
	if err != nil {
		return nil, err
	}
	topic, err := m.str("topic")
	if err != nil {
		return nil, err
	}
	content, err := m.str("content")
	if err != nil {
		return nil, err
	}
	source, err := m.str("source_url", "source")
	if err != nil {
		return nil, err
	}
	return AddToMemory{
		ParentID:  strings.TrimSpace(parent),
		Topic:     topic,
		Content:   content,
		SourceURL: strings.TrimSpace(source),
	}, nil
}

func decodeReadMemory(m argMap) (Action, error) {
	id, err := m.str("node_id", "id")
	if err != nil {
		return nil, err
	}
	return ReadMemory{NodeID: strings.TrimSpace(id)}, nil
}

func decodeManageTasks(m argMap) (Action, error) {
	op, err := m.str("action", "op")
	if err != nil {
		return nil, err
	}
	desc, err := m.str("description", "task")
	if err != nil {
		return nil, err
	}
	priority, err := m.integer("priority")
	if err != nil {
		return nil, err
	}
	id, err := m.str("task_id", "id")
	if err != nil {
		return nil, err
	}
	result, err := m.str("result")
	if err != nil {
		return nil, err
	}
	return ManageTasks{
		Op:          TaskOp(strings.ToLower(strings.TrimSpace(op))),
		Description: strings.TrimSpace(desc),
		Priority:    priority,
		TaskID:      strings.TrimSpace(id),
		Result:      result,
	}, nil
}

func decodeAnswer(m argMap) (Action, error) {
	text, err := m.str("answer", "text")
	if err != nil {
		return nil, err
	}
	return Answer{Text: strings.TrimSpace(text)}, nil
}
