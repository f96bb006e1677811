package action

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Strategy names the parse layer that produced a decision
type Strategy string

const (
	StrategyStrict Strategy = "strict"
	StrategyFenced Strategy = "fenced"
	StrategyBraces Strategy = "braces"
	StrategyNone   Strategy = "none"
)

// ParseResult is the outcome of Parse. When OK is false the decision
// holds an Unparsable action.
type ParseResult struct {
	Decision Decision
	Strategy Strategy
	OK       bool
}

var fencePattern = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

type envelope struct {
	Thought string          `json:"thought"`
	Tool    string          `json:"tool"`
	Args    json.RawMessage `json:"args"`
}

// Parse decodes raw oracle output. It tries the whole text as JSON, then
// the first ```json fenced block, then the span from the first '{' to
// the last '}'. An envelope without a tool name counts as a miss.
func Parse(text string) ParseResult {
	trimmed := strings.TrimSpace(text)

	if d, ok := decodeEnvelope(trimmed); ok {
		return ParseResult{Decision: d, Strategy: StrategyStrict, OK: true}
	}

	if m := fencePattern.FindStringSubmatch(trimmed); m != nil {
		if d, ok := decodeEnvelope(m[1]); ok {
			return ParseResult{Decision: d, Strategy: StrategyFenced, OK: true}
		}
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		if d, ok := decodeEnvelope(trimmed[start : end+1]); ok {
			return ParseResult{Decision: d, Strategy: StrategyBraces, OK: true}
		}
	}

	return ParseResult{
		Decision: Decision{Action: Unparsable{Raw: text}},
		Strategy: StrategyNone,
	}
}

func decodeEnvelope(s string) (Decision, bool) {
	var env envelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return Decision{}, false
	}
	tool := strings.TrimSpace(env.Tool)
	if tool == "" {
		return Decision{}, false
	}
	return Decision{
		Thought: env.Thought,
		Action:  Decode(tool, env.Args),
	}, true
}
