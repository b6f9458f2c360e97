package runner

import (
	"time"
)

// RequestSnapshot records the request exactly as it left the dispatcher,
// after substitution and authentication.
type RequestSnapshot struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// ResponseSnapshot records what came back.
type ResponseSnapshot struct {
	Status     int               `json:"status"`
	StatusText string            `json:"status_text"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body,omitempty"`
}

// ExecutionResult is the outcome of one dispatched request. Network
// failures and non-2xx statuses mark it failed without stopping the run.
type ExecutionResult struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	FolderPath []string          `json:"folder,omitempty"`
	Request    RequestSnapshot   `json:"request"`
	Response   *ResponseSnapshot `json:"response,omitempty"`
	ElapsedMs  int64             `json:"elapsed_ms"`
	Error      string            `json:"error,omitempty"`
	Success    bool              `json:"success"`
}

// RunSummary aggregates a whole run. It exists even when every request
// failed; only load-time errors prevent a summary.
type RunSummary struct {
	CollectionName string            `json:"collection"`
	TotalRequests  int               `json:"total_requests"`
	Executed       int               `json:"executed"`
	Succeeded      int               `json:"succeeded"`
	Failed         int               `json:"failed"`
	Results        []ExecutionResult `json:"results"`
	StartTime      time.Time         `json:"start_time"`
	EndTime        time.Time         `json:"end_time"`
	TotalDuration  time.Duration     `json:"-"`
}

// IsSuccess reports whether every executed request succeeded.
func (s *RunSummary) IsSuccess() bool {
	return s.Failed == 0
}

// ProgressCallback is called after each request is executed.
type ProgressCallback func(current int, total int, result *ExecutionResult)
