package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/ncolesummers/wikihop/pkg/domain"
)

func TestLoopStateIsTerminal(t *testing.T) {
	tests := []struct {
		name  string
		state domain.LoopState
		want  bool
	}{
		{"Running", domain.LoopStateRunning, false},
		{"Answered", domain.LoopStateAnswered, true},
		{"Exhausted", domain.LoopStateExhausted, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.want {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBenchmarkQuestionAnswerableDefault(t *testing.T) {
	var questions []domain.BenchmarkQuestion
	data := `[
		{"id": "a", "question": "q1", "answer": "x"},
		{"id": "b", "question": "q2", "answer": "y", "answerable": false},
		{"id": "c", "question": "q3", "answer": "z", "answerable": true}
	]`
	if err := json.Unmarshal([]byte(data), &questions); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	want := []bool{true, false, true}
	for i, q := range questions {
		if got := q.IsAnswerable(); got != want[i] {
			t.Errorf("questions[%d].IsAnswerable() = %v, want %v", i, got, want[i])
		}
	}
}

func TestSessionResultAnswer(t *testing.T) {
	var empty *domain.SessionResult
	if empty.Answered() {
		t.Error("nil result should not be answered")
	}

	answer := "42"
	result := &domain.SessionResult{FinalAnswer: &answer}
	if !result.Answered() {
		t.Error("Answered() = false, want true")
	}
	if got := result.Answer(); got != "42" {
		t.Errorf("Answer() = %v, want %v", got, "42")
	}

	data, err := json.Marshal(&domain.SessionResult{State: domain.LoopStateExhausted})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if v, ok := decoded["final_answer"]; !ok || v != nil {
		t.Errorf("final_answer = %v, want explicit null", v)
	}
}

func TestTemperaturePointer(t *testing.T) {
	opts := domain.ChatOptions{Temperature: domain.Temperature(0)}
	if opts.Temperature == nil || *opts.Temperature != 0 {
		t.Errorf("Temperature = %v, want pointer to 0", opts.Temperature)
	}
}
