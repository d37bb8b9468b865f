package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/ictrisk/internal/assess"
)

// maxLineBytes bounds one JSONL request; contract analyses can be large
const maxLineBytes = 8 << 20

// Assessor defines the interface for assessing one request
type Assessor interface {
	Assess(ctx context.Context, req assess.Request) (*assess.Assessment, error)
}

// BatchItem is one parsed line of a request file
type BatchItem struct {
	Line    int
	Request assess.Request
	Err     error
}

// AssessJob represents one assessment job
type AssessJob struct {
	Index    int
	Item     BatchItem
	Assessor Assessor
}

// Execute executes the assessment job
func (j *AssessJob) Execute(ctx context.Context) Result {
	result := &AssessResult{
		Index:     j.Index,
		Line:      j.Item.Line,
		RequestID: j.Item.Request.ID,
	}
	if j.Item.Err != nil {
		result.Error = j.Item.Err
		return result
	}

	assessment, err := j.Assessor.Assess(ctx, j.Item.Request)
	if err != nil {
		result.Error = err
		return result
	}
	result.Assessment = assessment
	result.RequestID = assessment.ID
	return result
}

// AssessResult represents the result of an assessment job
type AssessResult struct {
	Index      int
	Line       int
	RequestID  string
	Assessment *assess.Assessment
	Error      error
}

// GetError returns the error from the assessment result
func (r *AssessResult) GetError() error {
	return r.Error
}

// BatchProcessor assesses multiple requests concurrently
type BatchProcessor struct {
	assessor    Assessor
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(assessor Assessor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		assessor:    assessor,
		concurrency: concurrency,
	}
}

// ProcessRequests assesses requests concurrently. Results come back in input order.
func (b *BatchProcessor) ProcessRequests(ctx context.Context, reqs []assess.Request) []*AssessResult {
	items := make([]BatchItem, len(reqs))
	for i, req := range reqs {
		items[i] = BatchItem{Line: i + 1, Request: req}
	}
	return b.ProcessItems(ctx, items)
}

// ProcessItems assesses parsed batch items concurrently. Items that failed to
// parse are reported as failed results; jobs dropped because ctx ended carry
// the context error.
func (b *BatchProcessor) ProcessItems(ctx context.Context, items []BatchItem) []*AssessResult {
	if len(items) == 0 {
		return []*AssessResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, item := range items {
		job := &AssessJob{
			Index:    i,
			Item:     item,
			Assessor: b.assessor,
		}
		if !pool.Submit(job) {
			break
		}
	}

	results := pool.Wait()

	// Index results by input position
	assessResults := make([]*AssessResult, len(items))
	for _, result := range results {
		r := result.(*AssessResult)
		assessResults[r.Index] = r
	}
	for i, r := range assessResults {
		if r != nil {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		assessResults[i] = &AssessResult{Index: i, Line: items[i].Line, RequestID: items[i].Request.ID, Error: err}
	}

	return assessResults
}

// ProcessFile reads JSONL requests from a file and assesses them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*AssessResult, error) {
	items, err := ReadRequestsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read requests: %w", err)
	}

	return b.ProcessItems(ctx, items), nil
}

// ReadRequestsFromFile reads JSON requests from a file (one per line). Blank
// lines and # comments are skipped, and a repeated request id is kept once.
// Lines that do not parse are returned with Err set.
func ReadRequestsFromFile(filePath string) ([]BatchItem, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var items []BatchItem
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var req assess.Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			items = append(items, BatchItem{Line: lineNo, Err: fmt.Errorf("line %d: %w", lineNo, err)})
			continue
		}

		// Deduplicate by request id
		if req.ID != "" {
			if seen[req.ID] {
				continue
			}
			seen[req.ID] = true
		}
		items = append(items, BatchItem{Line: lineNo, Request: req})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return items, nil
}
