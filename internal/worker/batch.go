package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/claimcheck/internal/model"
)

// SessionRunner fact-checks one input end to end
type SessionRunner interface {
	RunSession(ctx context.Context, input string) (*model.Session, error)
}

// CheckJob represents one batch input to fact-check
type CheckJob struct {
	Input  string
	Runner SessionRunner
}

// Execute executes the check job
func (j *CheckJob) Execute(ctx context.Context) Result {
	sess, err := j.Runner.RunSession(ctx, j.Input)
	if err != nil {
		return &CheckResult{Input: j.Input, Error: err}
	}
	return &CheckResult{Input: j.Input, Session: sess}
}

// CheckResult represents the result of a check job
type CheckResult struct {
	Input   string
	Session *model.Session
	Error   error
}

// GetError returns the error from the check result
func (r *CheckResult) GetError() error {
	return r.Error
}

// BatchProcessor processes multiple inputs concurrently
type BatchProcessor struct {
	runner      SessionRunner
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(runner SessionRunner, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		runner:      runner,
		concurrency: concurrency,
	}
}

// ProcessInputs processes inputs concurrently. Results come back in
// completion order.
func (b *BatchProcessor) ProcessInputs(ctx context.Context, inputs []string) []*CheckResult {
	if len(inputs) == 0 {
		return []*CheckResult{}
	}

	jobs := make([]Job, len(inputs))
	for i, input := range inputs {
		jobs[i] = &CheckJob{Input: input, Runner: b.runner}
	}

	results := Run(ctx, b.concurrency, jobs)

	checkResults := make([]*CheckResult, len(results))
	for i, result := range results {
		checkResults[i] = result.(*CheckResult)
	}
	return checkResults
}

// ProcessFile reads inputs from a file and processes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*CheckResult, error) {
	inputs, err := ReadInputsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}

	return b.ProcessInputs(ctx, inputs), nil
}

// ReadInputsFromFile reads inputs from a file, one per line. Blank lines and
// lines starting with # are skipped; duplicates keep their first position.
func ReadInputsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var inputs []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			inputs = append(inputs, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return inputs, nil
}
