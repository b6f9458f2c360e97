// Package report serializes run results and prints the console summary.
// The JSON log is shaped so its request snapshots form a replayable
// collection.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/darmado/postman2burp/internal/runner"
)

// logEntry is one element of the JSON log array.
type logEntry struct {
	Name      string            `json:"name"`
	Folder    []string          `json:"folder,omitempty"`
	Request   replayableRequest `json:"request"`
	Response  *responseRecord   `json:"response,omitempty"`
	ElapsedMs int64             `json:"elapsed_ms"`
	Error     string            `json:"error,omitempty"`
	Success   bool              `json:"success"`
}

// replayableRequest mirrors the Postman request shape so the log can be
// re-imported as a collection.
type replayableRequest struct {
	Method string       `json:"method"`
	URL    string       `json:"url"`
	Header []headerPair `json:"header,omitempty"`
	Body   *rawBody     `json:"body,omitempty"`
}

type headerPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type rawBody struct {
	Mode string `json:"mode"`
	Raw  string `json:"raw"`
}

type responseRecord struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// WriteJSON writes the run's results as a JSON array.
func WriteJSON(w io.Writer, summary *runner.RunSummary) error {
	entries := make([]logEntry, 0, len(summary.Results))
	for _, result := range summary.Results {
		entry := logEntry{
			Name:      result.Name,
			Folder:    result.FolderPath,
			ElapsedMs: result.ElapsedMs,
			Error:     result.Error,
			Success:   result.Success,
			Request: replayableRequest{
				Method: result.Request.Method,
				URL:    result.Request.URL,
			},
		}
		for k, v := range result.Request.Headers {
			entry.Request.Header = append(entry.Request.Header, headerPair{Key: k, Value: v})
		}
		if result.Request.Body != "" {
			entry.Request.Body = &rawBody{Mode: "raw", Raw: result.Request.Body}
		}
		if result.Response != nil {
			entry.Response = &responseRecord{
				Status:  result.Response.Status,
				Headers: result.Response.Headers,
				Body:    result.Response.Body,
			}
		}
		entries = append(entries, entry)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

// SaveJSON writes the JSON log to a file.
func SaveJSON(path string, summary *runner.RunSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	return WriteJSON(f, summary)
}

// PrintSummary renders the human run summary.
func PrintSummary(w io.Writer, summary *runner.RunSummary) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(w, "\n%s %s\n", bold("Collection:"), summary.CollectionName)
	fmt.Fprintf(w, "%s %d requests in %s\n", bold("Executed:"),
		summary.Executed, summary.TotalDuration.Round(1e6))

	for _, result := range summary.Results {
		mark := green("PASS")
		if !result.Success {
			mark = red("FAIL")
		}
		status := "-"
		if result.Response != nil {
			status = fmt.Sprintf("%d", result.Response.Status)
		}
		fmt.Fprintf(w, "  [%s] %-6s %s (%s, %dms)\n",
			mark, result.Request.Method, result.Request.URL, status, result.ElapsedMs)
		if result.Error != "" && result.Response == nil {
			fmt.Fprintf(w, "         %s\n", red(result.Error))
		}
	}

	fmt.Fprintf(w, "\n%s %s passed, %s failed, %d total\n", bold("Summary:"),
		green(summary.Succeeded), red(summary.Failed), summary.TotalRequests)
}

// PrintProgress is a ProgressCallback for verbose runs.
func PrintProgress(w io.Writer) runner.ProgressCallback {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	return func(current, total int, result *runner.ExecutionResult) {
		mark := green("ok")
		if !result.Success {
			mark = red("failed")
		}
		fmt.Fprintf(w, "[%d/%d] %s %s: %s\n",
			current, total, result.Request.Method, result.Request.URL, mark)
	}
}
