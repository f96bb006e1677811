package state_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ncolesummers/wikihop/pkg/domain"
	"github.com/ncolesummers/wikihop/pkg/state"
)

func TestNewSessionSeedsPlan(t *testing.T) {
	sess := state.NewSession("req-1", "Where was the director of Inception born?", nil)

	if got := sess.Phase(); got != domain.LoopStateRunning {
		t.Errorf("Phase() = %v, want %v", got, domain.LoopStateRunning)
	}
	if got := sess.Tree.Len(); got != 1 {
		t.Errorf("Tree.Len() = %v, want 1", got)
	}

	next, ok := sess.Plan.NextTask()
	if !ok {
		t.Fatal("plan has no pending task")
	}
	if next.Description != sess.Question || next.Priority != 10 {
		t.Errorf("seed task = %+v, want question at priority 10", next)
	}
}

func TestSessionAnswer(t *testing.T) {
	sess := state.NewSession("req-1", "q", nil)
	sess.Plan.AddTask("extra", 3)
	sess.BeginStep()

	sess.SetAnswer("London")
	sess.SetAnswer("Paris")
	sess.Exhaust()

	result := sess.Result()
	if result.State != domain.LoopStateAnswered {
		t.Errorf("State = %v, want %v", result.State, domain.LoopStateAnswered)
	}
	if got := result.Answer(); got != "London" {
		t.Errorf("Answer() = %v, want London", got)
	}
	if got := sess.Plan.Pending(); got != 0 {
		t.Errorf("Pending() = %v, want 0", got)
	}
	if result.Steps != 1 {
		t.Errorf("Steps = %v, want 1", result.Steps)
	}
}

func TestSessionExhaustHasNoAnswer(t *testing.T) {
	sess := state.NewSession("req-1", "q", nil)
	sess.Exhaust()

	result := sess.Result()
	if result.FinalAnswer != nil {
		t.Errorf("FinalAnswer = %v, want nil", *result.FinalAnswer)
	}
	if result.State != domain.LoopStateExhausted {
		t.Errorf("State = %v, want %v", result.State, domain.LoopStateExhausted)
	}
}

func TestRecentSteps(t *testing.T) {
	sess := state.NewSession("req-1", "q", nil)
	for i := 1; i <= 7; i++ {
		sess.AppendStep(domain.ReasoningStep{Step: i})
	}

	recent := sess.RecentSteps(5)
	var got []int
	for _, s := range recent {
		got = append(got, s.Step)
	}
	if diff := cmp.Diff([]int{3, 4, 5, 6, 7}, got); diff != "" {
		t.Errorf("RecentSteps(5) mismatch (-want +got):\n%s", diff)
	}
	if got := sess.RecentSteps(0); got != nil {
		t.Errorf("RecentSteps(0) = %v, want nil", got)
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := state.NewFileStore(dir, "run-1")
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	questions := []domain.BenchmarkQuestion{{ID: "q/1", Question: "Q?", Answer: "A"}}
	if err := store.SaveQuestions(ctx, questions); err != nil {
		t.Fatalf("SaveQuestions() error = %v", err)
	}

	answer := "A"
	result := &domain.SessionResult{Question: "Q?", FinalAnswer: &answer, State: domain.LoopStateAnswered}
	if err := store.SaveTrace(ctx, "q/1", result); err != nil {
		t.Fatalf("SaveTrace() error = %v", err)
	}
	if matches, _ := filepath.Glob(filepath.Join(dir, "run-1", state.TracesDir, "q_1-*.json")); len(matches) != 1 {
		t.Errorf("trace files for q/1 = %v, want one hashed name", matches)
	}

	records := []domain.EvalRecord{{QuestionID: "q/1", AgentAnswer: &answer, Success: true}}
	if err := store.SaveResponses(ctx, records); err != nil {
		t.Fatalf("SaveResponses() error = %v", err)
	}
	loaded, err := store.LoadResponses(ctx)
	if err != nil {
		t.Fatalf("LoadResponses() error = %v", err)
	}
	if diff := cmp.Diff(records, loaded); diff != "" {
		t.Errorf("responses mismatch (-want +got):\n%s", diff)
	}

	for _, id := range []string{"run-1", "run-2"} {
		if err := store.AppendMetadata(ctx, domain.RunMetadata{RunID: id}); err != nil {
			t.Fatalf("AppendMetadata() error = %v", err)
		}
	}
	data, err := os.ReadFile(filepath.Join(dir, state.MetadataFile))
	if err != nil {
		t.Fatalf("ReadFile(metadata) error = %v", err)
	}
	var meta []domain.RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatalf("Unmarshal(metadata) error = %v", err)
	}
	if len(meta) != 2 || meta[1].RunID != "run-2" {
		t.Errorf("metadata = %+v, want two appended entries", meta)
	}
}

func TestFileStoreTraceNamesDoNotCollide(t *testing.T) {
	ctx := context.Background()
	store, err := state.NewFileStore(t.TempDir(), "run-1")
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	ids := []string{"a/b", "a_b", "a b"}
	for _, id := range ids {
		if err := store.SaveTrace(ctx, id, &domain.SessionResult{Question: id}); err != nil {
			t.Fatalf("SaveTrace(%q) error = %v", id, err)
		}
	}

	traceDir := filepath.Join(store.RunDir(), state.TracesDir)
	entries, err := os.ReadDir(traceDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != len(ids) {
		t.Fatalf("trace files = %d, want %d", len(entries), len(ids))
	}
	if _, err := os.Stat(filepath.Join(traceDir, "a_b.json")); err != nil {
		t.Errorf("safe id should keep its plain name: %v", err)
	}

	seen := map[string]bool{}
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(traceDir, e.Name()))
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		var r domain.SessionResult
		if err := json.Unmarshal(data, &r); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		seen[r.Question] = true
	}
	for _, id := range ids {
		if !seen[id] {
			t.Errorf("trace for %q was overwritten", id)
		}
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()

	if err := store.SaveTrace(ctx, "", &domain.SessionResult{}); err == nil {
		t.Error("SaveTrace() with empty id should fail")
	}

	result := &domain.SessionResult{Question: "Q?", Trace: []domain.ReasoningStep{{Step: 1}}}
	if err := store.SaveTrace(ctx, "q1", result); err != nil {
		t.Fatalf("SaveTrace() error = %v", err)
	}
	result.Trace[0].Step = 99

	saved, ok := store.Trace("q1")
	if !ok {
		t.Fatal("trace not saved")
	}
	if saved.Trace[0].Step != 1 {
		t.Errorf("saved trace aliased caller slice: step = %v", saved.Trace[0].Step)
	}
}
