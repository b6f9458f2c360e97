// Package runner dispatches the flattened request list through the verified
// proxy, one request at a time, and accumulates execution results.
package runner

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/darmado/postman2burp/internal/auth"
	"github.com/darmado/postman2burp/internal/collection"
	"github.com/darmado/postman2burp/internal/vars"
)

// DefaultTimeout bounds each outbound request.
const DefaultTimeout = 30 * time.Second

// maxResponseBody caps how much of a response body is captured.
const maxResponseBody = 10 * 1024 * 1024

// Runner executes the flattened request list sequentially. Requests go out
// in traversal order; per-request failures are recorded and never abort the
// remaining sequence.
type Runner struct {
	table      *vars.Table
	authn      *auth.Authenticator
	client     *http.Client
	jar        http.CookieJar
	headers    map[string]string
	onProgress ProgressCallback
}

// Option configures the Runner.
type Option func(*Runner)

// WithAuthenticator sets the authentication to apply before each dispatch.
func WithAuthenticator(authn *auth.Authenticator) Option {
	return func(r *Runner) {
		r.authn = authn
	}
}

// WithHTTPClient sets the client carrying the proxied transport.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Runner) {
		r.client = client
	}
}

// WithCustomHeaders sets user-supplied headers merged into every request.
// They win over collection headers on key conflict.
func WithCustomHeaders(headers map[string]string) Option {
	return func(r *Runner) {
		r.headers = headers
	}
}

// WithProgressCallback sets a callback invoked after each request.
func WithProgressCallback(cb ProgressCallback) Option {
	return func(r *Runner) {
		r.onProgress = cb
	}
}

// New creates a runner over a frozen variable table. The default client has
// a run-scoped cookie jar and the default timeout; callers route traffic
// through the proxy by supplying a client built on the verified transport.
func New(table *vars.Table, opts ...Option) *Runner {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	r := &Runner{
		table: table,
		jar:   jar,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.client == nil {
		r.client = &http.Client{Timeout: DefaultTimeout}
	}
	if r.client.Jar == nil {
		r.client.Jar = r.jar
	} else {
		r.jar = r.client.Jar
	}

	return r
}

// Run dispatches every descriptor in order and returns the summary. The
// summary always exists; individual failures are inside it.
func (r *Runner) Run(ctx context.Context, collectionName string, descriptors []collection.RequestDescriptor) *RunSummary {
	summary := &RunSummary{
		CollectionName: collectionName,
		TotalRequests:  len(descriptors),
		StartTime:      time.Now(),
		Results:        make([]ExecutionResult, 0, len(descriptors)),
	}

	for i, desc := range descriptors {
		if ctx.Err() != nil {
			break
		}

		result := r.executeRequest(ctx, desc)
		summary.Results = append(summary.Results, result)
		summary.Executed++
		if result.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}

		if r.onProgress != nil {
			r.onProgress(i+1, len(descriptors), &result)
		}
	}

	summary.EndTime = time.Now()
	summary.TotalDuration = summary.EndTime.Sub(summary.StartTime)
	return summary
}

func (r *Runner) executeRequest(ctx context.Context, desc collection.RequestDescriptor) ExecutionResult {
	result := ExecutionResult{
		ID:         desc.ID,
		Name:       desc.Name,
		FolderPath: desc.FolderPath,
	}

	start := time.Now()

	resp, err := r.dispatch(ctx, desc, &result)
	if err != nil {
		result.Error = err.Error()
		result.ElapsedMs = time.Since(start).Milliseconds()
		return result
	}

	// One bounded re-acquisition when a cached OAuth2 token is rejected.
	if resp.StatusCode == http.StatusUnauthorized && r.usesOAuth2() {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		resp.Body.Close()
		r.authn.Invalidate()

		resp, err = r.dispatch(ctx, desc, &result)
		if err != nil {
			result.Error = err.Error()
			result.ElapsedMs = time.Since(start).Milliseconds()
			return result
		}
	}

	defer resp.Body.Close()
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	result.Response = &ResponseSnapshot{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Headers:    flattenHeader(resp.Header),
		Body:       string(body),
	}
	if readErr != nil {
		result.Error = fmt.Sprintf("reading response body: %v", readErr)
	}

	result.Success = resp.StatusCode >= 200 && resp.StatusCode < 300 && readErr == nil
	if !result.Success && result.Error == "" {
		result.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	result.ElapsedMs = time.Since(start).Milliseconds()
	return result
}

// dispatch assembles and sends one request, filling the request snapshot as
// a side effect so failed sends still record what was attempted.
func (r *Runner) dispatch(ctx context.Context, desc collection.RequestDescriptor, result *ExecutionResult) (*http.Response, error) {
	target := r.table.Resolve(desc.URL)

	body, err := serializeBody(desc.Body, r.table.Resolve)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = body.reader()
	}

	req, err := http.NewRequestWithContext(ctx, desc.Method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	if body != nil && body.contentType != "" {
		req.Header.Set("Content-Type", body.contentType)
	}
	for _, h := range desc.Headers {
		req.Header.Set(r.table.Resolve(h.Key), r.table.Resolve(h.Value))
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	if r.authn != nil {
		if err := r.authn.Apply(ctx, req, r.jar); err != nil {
			return nil, err
		}
	}

	result.Request = RequestSnapshot{
		Method:  req.Method,
		URL:     req.URL.String(),
		Headers: flattenHeader(req.Header),
	}
	if body != nil {
		result.Request.Body = body.content
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func (r *Runner) usesOAuth2() bool {
	return r.authn != nil && r.authn.Profile() != nil && r.authn.Profile().Type == auth.TypeOAuth2
}

// flattenHeader keeps repeated header values by joining them, so snapshots
// record every Set-Cookie and similar multi-valued header.
func flattenHeader(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	flat := make(map[string]string, len(h))
	for k, vs := range h {
		flat[k] = strings.Join(vs, ", ")
	}
	return flat
}
