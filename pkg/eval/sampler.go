// Package eval samples benchmark questions, runs them through the agent
// and summarizes the results.
package eval

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/ncolesummers/wikihop/pkg/domain"
)

// LoadBenchmark reads a JSON array of benchmark questions
func LoadBenchmark(path string) ([]domain.BenchmarkQuestion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read benchmark file: %w", err)
	}

	var questions []domain.BenchmarkQuestion
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("failed to parse benchmark file %s: %w", path, err)
	}
	for i, q := range questions {
		if q.ID == "" || q.Question == "" {
			return nil, fmt.Errorf("benchmark entry %d is missing id or question", i)
		}
	}
	return questions, nil
}

// Answerable filters out questions marked unanswerable
func Answerable(questions []domain.BenchmarkQuestion) []domain.BenchmarkQuestion {
	out := make([]domain.BenchmarkQuestion, 0, len(questions))
	for _, q := range questions {
		if q.IsAnswerable() {
			out = append(out, q)
		}
	}
	return out
}

// Sample draws n answerable questions without replacement. The same seed
// over the same input always yields the same sample. When fewer than n
// are answerable, all of them are returned in input order.
func Sample(questions []domain.BenchmarkQuestion, n int, seed int64) []domain.BenchmarkQuestion {
	pool := Answerable(questions)
	if n <= 0 {
		return []domain.BenchmarkQuestion{}
	}
	if len(pool) <= n {
		return pool
	}

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	// Partial Fisher-Yates: the first n slots end up holding the sample.
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}
