package action_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ncolesummers/wikihop/pkg/action"
)

func TestParseStrategies(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		strategy action.Strategy
		want     action.Action
	}{
		{
			name:     "Strict",
			input:    `{"thought":"look it up","tool":"search","args":{"query":"Inception director"}}`,
			strategy: action.StrategyStrict,
			want:     action.Search{Query: "Inception director"},
		},
		{
			name:     "Fenced",
			input:    "Sure, here it is:\n```json\n{\"thought\":\"t\",\"tool\":\"answer\",\"args\":{\"answer\":\"42\"}}\n```\nDone.",
			strategy: action.StrategyFenced,
			want:     action.Answer{Text: "42"},
		},
		{
			name:     "Braces",
			input:    `I think {"thought":"t","tool":"read_memory","args":{}} is right`,
			strategy: action.StrategyBraces,
			want:     action.ReadMemory{},
		},
		{
			name:     "Alias",
			input:    `{"thought":"t","tool":"search_google","args":{"query":"x"}}`,
			strategy: action.StrategyStrict,
			want:     action.Search{Query: "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := action.Parse(tt.input)
			if !got.OK {
				t.Fatalf("Parse() OK = false, want true")
			}
			if got.Strategy != tt.strategy {
				t.Errorf("Strategy = %v, want %v", got.Strategy, tt.strategy)
			}
			if diff := cmp.Diff(tt.want, got.Decision.Action); diff != "" {
				t.Errorf("Action mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseUnparsable(t *testing.T) {
	inputs := []string{
		"I will search for the director now.",
		`{"thought":"missing tool"}`,
		"{not json}",
	}

	for _, input := range inputs {
		got := action.Parse(input)
		if got.OK {
			t.Errorf("Parse(%q) OK = true, want false", input)
		}
		if got.Decision.Action.Tool() != action.ToolError {
			t.Errorf("Parse(%q) tool = %v, want %v", input, got.Decision.Action.Tool(), action.ToolError)
		}
	}
}

func TestDecodeSelectors(t *testing.T) {
	tests := []struct {
		name string
		args string
		want action.Action
	}{
		{"OrdinalInURL", `{"url":"2"}`, action.InspectArticle{Result: 2}},
		{"ExplicitResult", `{"result":3}`, action.InspectArticle{Result: 3}},
		{"LiteralURL", `{"url":"https://en.wikipedia.org/wiki/Ulm"}`, action.InspectArticle{URL: "https://en.wikipedia.org/wiki/Ulm"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := action.Decode(action.ToolInspect, []byte(tt.args))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeCoercesNumbers(t *testing.T) {
	got := action.Decode(action.ToolManageTasks, []byte(`{"action":"Complete","task_id":2}`))
	want := action.ManageTasks{Op: action.TaskOpComplete, TaskID: "2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
	}

	got = action.Decode(action.ToolManageTasks, []byte(`{"action":"add","description":"d","priority":"8"}`))
	want = action.ManageTasks{Op: action.TaskOpAdd, Description: "d", Priority: 8}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeInvalidAndUnknown(t *testing.T) {
	got := action.Decode(action.ToolManageTasks, []byte(`{"action":"add","priority":"high"}`))
	invalid, ok := got.(action.Invalid)
	if !ok {
		t.Fatalf("Decode() = %T, want action.Invalid", got)
	}
	if invalid.Tool() != action.ToolManageTasks {
		t.Errorf("Tool() = %v, want %v", invalid.Tool(), action.ToolManageTasks)
	}

	got = action.Decode("teleport", []byte(`{"to":"Ulm"}`))
	if _, ok := got.(action.Unknown); !ok {
		t.Fatalf("Decode() = %T, want action.Unknown", got)
	}
	if got.Tool() != "teleport" {
		t.Errorf("Tool() = %v, want teleport", got.Tool())
	}
}

func TestSignature(t *testing.T) {
	a := action.Parse(`{"thought":"first","tool":"search","args":{"query":"Ulm"}}`)
	b := action.Parse(`{"thought":"second",  "tool":"search", "args":{ "query" : "Ulm" }}`)
	c := action.Parse(`{"thought":"first","tool":"search","args":{"query":"Munich"}}`)

	if action.Signature(a.Decision.Action) != action.Signature(b.Decision.Action) {
		t.Error("signatures differ for identical actions with different thoughts")
	}
	if action.Signature(a.Decision.Action) == action.Signature(c.Decision.Action) {
		t.Error("signatures equal for different queries")
	}

	x := action.Decode("custom", []byte(`{"b":1,"a":2}`))
	y := action.Decode("custom", []byte(`{"a":2, "b":1}`))
	if action.Signature(x) != action.Signature(y) {
		t.Errorf("Signature() not canonical: %v vs %v", action.Signature(x), action.Signature(y))
	}
}

func TestArgsEncoding(t *testing.T) {
	got := string(action.Args(action.Search{Query: "Ulm"}))
	if got != `{"query":"Ulm"}` {
		t.Errorf("Args() = %v, want %v", got, `{"query":"Ulm"}`)
	}
}
