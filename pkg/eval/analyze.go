package eval

import (
	"fmt"
	"io"
	"strings"

	"github.com/ncolesummers/wikihop/pkg/domain"
)

// reportTailSteps is how many final steps each report entry shows
const reportTailSteps = 3

// Summary aggregates the outcome of an evaluation run
type Summary struct {
	Total         int     `json:"total"`
	Successful    int     `json:"successful"`
	Answered      int     `json:"answered"`
	Errors        int     `json:"errors"`
	LikelyCorrect int     `json:"likely_correct"`
	Completion    float64 `json:"completion_rate"`
}

// Analyze summarizes records. Completion is the share of records that
// produced an answer.
func Analyze(records []domain.EvalRecord) Summary {
	s := Summary{Total: len(records)}
	for _, rec := range records {
		if rec.Success {
			s.Successful++
		}
		if rec.Error != "" {
			s.Errors++
		}
		if rec.AgentAnswer != nil {
			s.Answered++
			if LikelyCorrect(rec.GroundTruth, *rec.AgentAnswer) {
				s.LikelyCorrect++
			}
		}
	}
	if s.Total > 0 {
		s.Completion = float64(s.Answered) / float64(s.Total)
	}
	return s
}

// LikelyCorrect is a lenient match: either text contains the other,
// ignoring case and surrounding whitespace.
func LikelyCorrect(groundTruth, answer string) bool {
	gt := strings.ToLower(strings.TrimSpace(groundTruth))
	ans := strings.ToLower(strings.TrimSpace(answer))
	if gt == "" || ans == "" {
		return false
	}
	return strings.Contains(ans, gt) || strings.Contains(gt, ans)
}

// WriteReport renders a plain-text report of records to w
func WriteReport(w io.Writer, records []domain.EvalRecord) error {
	s := Analyze(records)
	var b strings.Builder

	fmt.Fprintf(&b, "EVALUATION REPORT\n=================\n")
	fmt.Fprintf(&b, "Total questions:  %d\n", s.Total)
	fmt.Fprintf(&b, "Successful runs:  %d\n", s.Successful)
	fmt.Fprintf(&b, "Errors:           %d\n", s.Errors)
	fmt.Fprintf(&b, "Answered:         %d (%.1f%%)\n", s.Answered, s.Completion*100)
	fmt.Fprintf(&b, "Likely correct:   %d\n", s.LikelyCorrect)

	for i, rec := range records {
		fmt.Fprintf(&b, "\n[%d] %s\n", i+1, rec.QuestionID)
		fmt.Fprintf(&b, "Question:     %s\n", rec.QuestionText)
		fmt.Fprintf(&b, "Ground truth: %s\n", rec.GroundTruth)
		if rec.AgentAnswer != nil {
			verdict := "mismatch"
			if LikelyCorrect(rec.GroundTruth, *rec.AgentAnswer) {
				verdict = "likely correct"
			}
			fmt.Fprintf(&b, "Agent answer: %s (%s)\n", *rec.AgentAnswer, verdict)
		} else {
			b.WriteString("Agent answer: none\n")
		}
		if rec.Error != "" {
			fmt.Fprintf(&b, "Error:        %s\n", rec.Error)
		}
		fmt.Fprintf(&b, "Steps:        %d (%.1fs)\n", len(rec.FullTrace), rec.DurationSeconds)

		tail := rec.FullTrace
		if len(tail) > reportTailSteps {
			tail = tail[len(tail)-reportTailSteps:]
		}
		for _, step := range tail {
			fmt.Fprintf(&b, "  step %d %s: %s\n", step.Step, step.Tool, oneLine(step.Thought, 120))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return s
}
