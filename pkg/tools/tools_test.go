package tools_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ncolesummers/wikihop/internal/testutil"
	"github.com/ncolesummers/wikihop/pkg/action"
	"github.com/ncolesummers/wikihop/pkg/domain"
	"github.com/ncolesummers/wikihop/pkg/observability"
	"github.com/ncolesummers/wikihop/pkg/state"
	"github.com/ncolesummers/wikihop/pkg/tools"
)

const nolanURL = "https://en.wikipedia.org/wiki/Christopher_Nolan"

func newFixture(t *testing.T, opts ...tools.RegistryOption) (*tools.Registry, *state.Session, *testutil.MockSearchClient, *testutil.MockArticleFetcher) {
	t.Helper()
	search := testutil.NewMockSearchClient(
		domain.SearchResult{Title: "Inception", URL: "https://en.wikipedia.org/wiki/Inception", Snippet: "2010 film"},
		domain.SearchResult{Title: "Christopher Nolan", URL: nolanURL, Snippet: "British-American filmmaker"},
	)
	fetcher := testutil.NewMockArticleFetcher()
	fetcher.Add(nolanURL, testutil.MockArticle{
		Title:    "Christopher Nolan",
		Summary:  "Christopher Edward Nolan is a British and American filmmaker.",
		Sections: map[string]string{"Early life": "Nolan was born in Westminster, London."},
		Order:    []string{"Early life", "Career"},
	})

	registry, err := tools.NewDefaultRegistry(
		tools.NewSearchTool(search, 5),
		tools.NewInspectTool(fetcher),
		tools.NewReadSectionTool(fetcher),
		opts...,
	)
	if err != nil {
		t.Fatalf("NewDefaultRegistry() error = %v", err)
	}
	return registry, state.NewSession("req-1", "Where was the director of Inception born?", nil), search, fetcher
}

func TestRegistryOrderAndCatalog(t *testing.T) {
	registry, _, _, _ := newFixture(t)

	var names []string
	for _, tool := range registry.List() {
		names = append(names, tool.Name())
	}
	want := "search,inspect_article,read_section,add_to_memory,read_memory,manage_tasks,answer"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("List() = %v, want %v", got, want)
	}

	catalog := registry.Catalog()
	if !strings.HasPrefix(catalog, "1. search: ") || !strings.Contains(catalog, "7. answer: ") {
		t.Errorf("Catalog() = %q", catalog)
	}

	if err := registry.Register(tools.AnswerTool{}); err == nil {
		t.Error("duplicate Register() should fail")
	}
}

func TestSearchThenInspectByOrdinal(t *testing.T) {
	registry, sess, _, _ := newFixture(t)
	ctx := testutil.NewTestContext(t)

	out := registry.Dispatch(ctx, sess, action.Search{Query: "Inception director"})
	if !strings.HasPrefix(out, "1. [Inception](https://en.wikipedia.org/wiki/Inception)\n   Snippet: 2010 film") {
		t.Errorf("search observation = %q", out)
	}
	if len(sess.LastResults) != 2 {
		t.Fatalf("LastResults = %v, want 2 hits", sess.LastResults)
	}

	out = registry.Dispatch(ctx, sess, action.InspectArticle{Result: 2})
	want := "TITLE: Christopher Nolan\nSUMMARY: Christopher Edward Nolan is a British and American filmmaker....\nSECTIONS:\n- Early life\n- Career"
	if out != want {
		t.Errorf("inspect observation = %q, want %q", out, want)
	}
	if sess.LastInspectedURL != nolanURL {
		t.Errorf("LastInspectedURL = %q", sess.LastInspectedURL)
	}

	out = registry.Dispatch(ctx, sess, action.ReadSection{Section: "Early life"})
	if out != "Nolan was born in Westminster, London." {
		t.Errorf("read_section observation = %q", out)
	}
}

func TestSearchNoResults(t *testing.T) {
	registry, sess, search, _ := newFixture(t)
	search.Results["zzz"] = []domain.SearchResult{}

	if out := registry.Dispatch(context.Background(), sess, action.Search{Query: "zzz"}); out != "No results found." {
		t.Errorf("observation = %q", out)
	}
}

func TestInspectSelectorOutOfRange(t *testing.T) {
	registry, sess, _, fetcher := newFixture(t)

	out := registry.Dispatch(context.Background(), sess, action.InspectArticle{Result: 3})
	if !strings.HasPrefix(out, "Tool Error: invalid result selector") {
		t.Errorf("observation = %q", out)
	}
	if len(fetcher.Calls) != 0 {
		t.Errorf("fetcher called %v, want no calls", fetcher.Calls)
	}
}

func TestReadSectionWithoutArticle(t *testing.T) {
	registry, sess, _, _ := newFixture(t)

	out := registry.Dispatch(context.Background(), sess, action.ReadSection{Section: "lead"})
	if !strings.Contains(out, "no article given") {
		t.Errorf("observation = %q", out)
	}
}

func TestAddToMemoryMissingParent(t *testing.T) {
	registry, sess, _, _ := newFixture(t)

	out := registry.Dispatch(context.Background(), sess, action.AddToMemory{ParentID: "nonexistent", Topic: "x", Content: "y"})
	if !strings.HasPrefix(out, "Tool Error: ") || !strings.Contains(out, "parent node not found") {
		t.Errorf("observation = %q", out)
	}
	if sess.Tree.Len() != 1 {
		t.Errorf("Tree.Len() = %d, want 1", sess.Tree.Len())
	}
}

func TestAddToMemoryDefaults(t *testing.T) {
	registry, sess, _, _ := newFixture(t)

	out := registry.Dispatch(context.Background(), sess, action.AddToMemory{Content: "Nolan directed Inception."})
	if !strings.HasPrefix(out, "Success. Info stored in node ID: ") {
		t.Fatalf("observation = %q", out)
	}
	id := strings.TrimPrefix(out, "Success. Info stored in node ID: ")
	node, ok := sess.Tree.Node(id)
	if !ok || node.ParentID != "root" || node.Topic != tools.DefaultTopic {
		t.Errorf("Node(%q) = %+v, %v", id, node, ok)
	}

	if out := registry.Dispatch(context.Background(), sess, action.ReadMemory{NodeID: id}); !strings.Contains(out, "Nolan directed Inception.") {
		t.Errorf("read_memory(node) = %q", out)
	}
	if out := registry.Dispatch(context.Background(), sess, action.AddToMemory{Topic: "empty"}); !strings.Contains(out, "missing required field") {
		t.Errorf("empty content observation = %q", out)
	}
}

func TestManageTasks(t *testing.T) {
	registry, sess, _, _ := newFixture(t)
	ctx := context.Background()

	if out := registry.Dispatch(ctx, sess, action.ManageTasks{Op: action.TaskOpAdd, Description: "Find the director"}); out != "Task added with ID: 2" {
		t.Errorf("add observation = %q", out)
	}
	if out := registry.Dispatch(ctx, sess, action.ManageTasks{Op: action.TaskOpComplete, TaskID: "2", Result: "Nolan"}); out != "Task 2 marked as completed." {
		t.Errorf("complete observation = %q", out)
	}
	if out := registry.Dispatch(ctx, sess, action.ManageTasks{Op: action.TaskOpComplete, TaskID: "9"}); !strings.Contains(out, "task not found") {
		t.Errorf("complete unknown observation = %q", out)
	}
	if out := registry.Dispatch(ctx, sess, action.ManageTasks{Op: "delete"}); !strings.HasPrefix(out, "Tool Error: unknown manage_tasks action") {
		t.Errorf("unknown op observation = %q", out)
	}
}

func TestAnswerEndsSession(t *testing.T) {
	registry, sess, _, _ := newFixture(t)

	if out := registry.Dispatch(context.Background(), sess, action.Answer{Text: "London"}); out != tools.AnswerObservation {
		t.Errorf("observation = %q", out)
	}
	if sess.Phase() != domain.LoopStateAnswered {
		t.Errorf("Phase() = %v, want answered", sess.Phase())
	}
	if sess.Plan.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", sess.Plan.Pending())
	}
}

func TestEmptyAnswerEndsSession(t *testing.T) {
	registry, sess, _, _ := newFixture(t)

	if out := registry.Dispatch(context.Background(), sess, action.Answer{}); out != tools.AnswerObservation {
		t.Errorf("observation = %q", out)
	}
	if sess.Phase() != domain.LoopStateAnswered {
		t.Errorf("Phase() = %v, want answered", sess.Phase())
	}
}

func TestDispatchSentinelActions(t *testing.T) {
	registry, sess, _, _ := newFixture(t)
	ctx := context.Background()

	if out := registry.Dispatch(ctx, sess, action.Unparsable{Raw: "I think"}); out != tools.UnparsableObservation {
		t.Errorf("unparsable observation = %q", out)
	}
	if out := registry.Dispatch(ctx, sess, action.Unknown{Name: "browse"}); !strings.HasPrefix(out, "Unknown tool: browse.") {
		t.Errorf("unknown observation = %q", out)
	}
	if out := registry.Dispatch(ctx, sess, action.Invalid{Name: "search", Reason: "args must be a JSON object"}); !strings.Contains(out, "invalid arguments for search") {
		t.Errorf("invalid observation = %q", out)
	}
}

type panicTool struct{}

func (panicTool) Name() string        { return "explode" }
func (panicTool) Description() string { return "panics" }
func (panicTool) Usage() string       { return "{}" }
func (panicTool) Execute(context.Context, *state.Session, action.Action) (string, error) {
	panic("boom")
}

type explodeAction struct{ action.Unknown }

func (explodeAction) Tool() string { return "explode" }

func TestDispatchRecoversPanicAndRecordsTelemetry(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()
	telemetry := testutil.SetupTestTelemetry(recorder, reader)
	metrics, err := observability.NewMetrics(telemetry.Meter())
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	registry := tools.NewRegistry(tools.WithTelemetry(telemetry), tools.WithMetrics(metrics))
	if err := registry.Register(panicTool{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	sess := state.NewSession("req", "q", nil)
	out := registry.Dispatch(context.Background(), sess, explodeAction{})
	if out != "Tool Error: tool explode panicked: boom" {
		t.Errorf("observation = %q", out)
	}
	if names := testutil.SpanNames(recorder); len(names) != 1 || names[0] != "tool.explode" {
		t.Errorf("spans = %v, want [tool.explode]", names)
	}
}

func TestSearchErrorsBecomeObservations(t *testing.T) {
	registry, sess, search, _ := newFixture(t)
	search.Err = errors.New("backend down")

	if out := registry.Dispatch(context.Background(), sess, action.Search{Query: "x"}); out != "Tool Error: backend down" {
		t.Errorf("observation = %q", out)
	}
}
