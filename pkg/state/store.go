package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/ncolesummers/wikihop/pkg/domain"
)

// Artifact file names inside a run directory.
const (
	QuestionsFile = "questions.json"
	ResponsesFile = "responses.json"
	TracesDir     = "reasoning_traces"
	MetadataFile  = "metadata.json"
)

// MemoryStore is an in-memory implementation of RunStore
type MemoryStore struct {
	mu        sync.RWMutex
	questions []domain.BenchmarkQuestion
	traces    map[string]*domain.SessionResult
	responses []domain.EvalRecord
	metadata  []domain.RunMetadata
}

// NewMemoryStore creates a new in-memory run store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		traces: make(map[string]*domain.SessionResult),
	}
}

// SaveQuestions implements domain.RunStore
func (m *MemoryStore) SaveQuestions(ctx context.Context, questions []domain.BenchmarkQuestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions = append([]domain.BenchmarkQuestion(nil), questions...)
	return nil
}

// SaveTrace implements domain.RunStore
func (m *MemoryStore) SaveTrace(ctx context.Context, questionID string, result *domain.SessionResult) error {
	if questionID == "" {
		return fmt.Errorf("question ID is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *result
	cp.Trace = append([]domain.ReasoningStep(nil), result.Trace...)
	m.traces[questionID] = &cp
	return nil
}

// SaveResponses implements domain.RunStore
func (m *MemoryStore) SaveResponses(ctx context.Context, records []domain.EvalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append([]domain.EvalRecord(nil), records...)
	return nil
}

// LoadResponses implements domain.RunStore
func (m *MemoryStore) LoadResponses(ctx context.Context) ([]domain.EvalRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.EvalRecord(nil), m.responses...), nil
}

// AppendMetadata implements domain.RunStore
func (m *MemoryStore) AppendMetadata(ctx context.Context, meta domain.RunMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata = append(m.metadata, meta)
	return nil
}

// Questions returns the saved questions
func (m *MemoryStore) Questions() []domain.BenchmarkQuestion {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.BenchmarkQuestion(nil), m.questions...)
}

// Trace returns the saved session result for one question
func (m *MemoryStore) Trace(questionID string) (*domain.SessionResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.traces[questionID]
	return r, ok
}

// Metadata returns every appended run description
func (m *MemoryStore) Metadata() []domain.RunMetadata {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.RunMetadata(nil), m.metadata...)
}

// FileStore writes run artifacts as JSON files. Each run gets its own
// directory; the metadata log is shared by every run under the results
// directory.
type FileStore struct {
	mu           sync.Mutex
	runDir       string
	metadataPath string
}

// NewFileStore creates <resultsDir>/<runID> and its trace directory
func NewFileStore(resultsDir, runID string) (*FileStore, error) {
	if resultsDir == "" || runID == "" {
		return nil, fmt.Errorf("results directory and run ID are required")
	}
	runDir := filepath.Join(resultsDir, runID)
	if err := os.MkdirAll(filepath.Join(runDir, TracesDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	return &FileStore{
		runDir:       runDir,
		metadataPath: filepath.Join(resultsDir, MetadataFile),
	}, nil
}

// OpenFileStore opens an existing run directory for reading
func OpenFileStore(runDir string) *FileStore {
	return &FileStore{
		runDir:       runDir,
		metadataPath: filepath.Join(filepath.Dir(runDir), MetadataFile),
	}
}

// RunDir returns the directory holding this run's artifacts
func (f *FileStore) RunDir() string {
	return f.runDir
}

// SaveQuestions implements domain.RunStore
func (f *FileStore) SaveQuestions(ctx context.Context, questions []domain.BenchmarkQuestion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return writeJSON(filepath.Join(f.runDir, QuestionsFile), questions)
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// traceFileName keeps ids that are already safe file names as they are.
// Other ids are sanitized and suffixed with a short hash of the raw id so
// distinct ids never share a file.
func traceFileName(questionID string) string {
	clean := unsafeName.ReplaceAllString(questionID, "_")
	if clean == questionID {
		return clean + ".json"
	}
	sum := sha256.Sum256([]byte(questionID))
	return clean + "-" + hex.EncodeToString(sum[:4]) + ".json"
}

// SaveTrace implements domain.RunStore
func (f *FileStore) SaveTrace(ctx context.Context, questionID string, result *domain.SessionResult) error {
	if questionID == "" {
		return fmt.Errorf("question ID is required")
	}
	name := traceFileName(questionID)
	f.mu.Lock()
	defer f.mu.Unlock()
	return writeJSON(filepath.Join(f.runDir, TracesDir, name), result)
}

// SaveResponses implements domain.RunStore
func (f *FileStore) SaveResponses(ctx context.Context, records []domain.EvalRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return writeJSON(filepath.Join(f.runDir, ResponsesFile), records)
}

// LoadResponses implements domain.RunStore
func (f *FileStore) LoadResponses(ctx context.Context) ([]domain.EvalRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return LoadResponsesFile(filepath.Join(f.runDir, ResponsesFile))
}

// LoadResponsesFile reads a responses.json file
func LoadResponsesFile(path string) ([]domain.EvalRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read responses: %w", err)
	}
	var records []domain.EvalRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse responses: %w", err)
	}
	return records, nil
}

// AppendMetadata implements domain.RunStore
func (f *FileStore) AppendMetadata(ctx context.Context, meta domain.RunMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var entries []domain.RunMetadata
	data, err := os.ReadFile(f.metadataPath)
	switch {
	case err == nil:
		if len(data) > 0 {
			if err := json.Unmarshal(data, &entries); err != nil {
				return fmt.Errorf("failed to parse metadata log: %w", err)
			}
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return fmt.Errorf("failed to read metadata log: %w", err)
	}

	entries = append(entries, meta)
	return writeJSON(f.metadataPath, entries)
}

// writeJSON replaces path atomically with the indented encoding of v
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
