// Package llmgateway implements the bounded-concurrency LLM Gateway (spec
// §4.4): task-named queries that select a fast/normal endpoint, backed by a
// semaphore that never allows more than max_concurrent_requests in flight.
// Transport is grounded on the teacher's internal/llm/client.go Complete
// call against the Anthropic Messages API; the bounded-concurrency guard and
// task/mode routing are new, built to satisfy spec §4.4/§5 directly.
package llmgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"text/template"
	"time"

	"golang.org/x/sync/semaphore"
)

// Mode selects which configured endpoint answers a call.
type Mode string

const (
	ModeFast   Mode = "fast"
	ModeNormal Mode = "normal"
)

// Endpoint is one configured LLM backend (spec §6's llm.* options).
type Endpoint struct {
	BaseURL string
	Key     string
	Model   string
}

// taskMode is the fixed task-name → mode table spec §4.4 describes.
var taskMode = map[string]Mode{
	"decide":    ModeNormal,
	"relation":  ModeNormal,
	"goal":      ModeNormal,
	"backstory": ModeFast,
	"nickname":  ModeFast,
	"story":     ModeFast,
}

// Gateway is the bounded-concurrency, task-routed LLM client.
type Gateway struct {
	fast   Endpoint
	normal Endpoint

	sem *semaphore.Weighted

	httpClient   *http.Client
	templatesDir string
	callTimeout  time.Duration

	healthMu            sync.Mutex
	consecutiveFailures int
}

// unhealthyThreshold is how many consecutive gateway failures set the
// process-level "LLM unhealthy" flag (spec §7).
const unhealthyThreshold = 10

// Config configures a Gateway; see spec §6's ai.* / llm.* options.
type Config struct {
	Fast                Endpoint
	Normal              Endpoint
	MaxConcurrentRequests int64
	TemplatesDir        string
	CallTimeout         time.Duration
}

// New builds a Gateway. Returns nil if both endpoints lack a key — mirrors
// the teacher's nil-if-absent optional-client wiring pattern in
// cmd/worldsim/main.go, so callers can treat a disabled Gateway as an
// ordinary nil pointer.
func New(cfg Config) *Gateway {
	if cfg.Fast.Key == "" && cfg.Normal.Key == "" {
		return nil
	}
	if cfg.MaxConcurrentRequests < 1 {
		cfg.MaxConcurrentRequests = 1
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	return &Gateway{
		fast:         cfg.Fast,
		normal:       cfg.Normal,
		sem:          semaphore.NewWeighted(cfg.MaxConcurrentRequests),
		httpClient:   &http.Client{Timeout: cfg.CallTimeout + 5*time.Second},
		templatesDir: cfg.TemplatesDir,
		callTimeout:  cfg.CallTimeout,
	}
}

// Enabled reports whether the gateway has a usable endpoint.
func (g *Gateway) Enabled() bool {
	return g != nil
}

// ErrKind distinguishes the documented LLM error shapes (spec §7).
type ErrKind string

const (
	ErrTimeout     ErrKind = "timeout"
	ErrTransport   ErrKind = "transport"
	ErrShape       ErrKind = "shape"
	ErrRefused     ErrKind = "refused"
)

// Error is the documented LLM error shape callers are expected to recover
// from locally (spec §7): the affected avatar/pair simply gets no plan/no
// nickname this tick.
type Error struct {
	Kind ErrKind
	Task string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("llmgateway: task %q: %s: %v", e.Task, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Call acquires a concurrency slot, renders templatePath with subs, sends it
// to the mode-selected endpoint under task, and returns the decoded JSON
// object. Structural validation beyond "is it JSON" is the caller's job
// (spec §4.4). The call respects ctx cancellation and g.callTimeout.
func (g *Gateway) Call(ctx context.Context, task, templatePath string, subs map[string]any) (json.RawMessage, error) {
	if g == nil {
		return nil, &Error{Kind: ErrRefused, Task: task, Err: fmt.Errorf("gateway disabled")}
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, &Error{Kind: ErrTimeout, Task: task, Err: err}
	}
	defer g.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	prompt, err := g.render(templatePath, subs)
	if err != nil {
		return nil, &Error{Kind: ErrShape, Task: task, Err: err}
	}

	ep := g.endpointFor(task)
	raw, err := g.complete(callCtx, ep, task, prompt)
	if err != nil {
		g.recordFailure()
		if callCtx.Err() != nil {
			return nil, &Error{Kind: ErrTimeout, Task: task, Err: callCtx.Err()}
		}
		return nil, &Error{Kind: ErrTransport, Task: task, Err: err}
	}
	g.recordSuccess()

	var obj json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, &Error{Kind: ErrShape, Task: task, Err: err}
	}
	return obj, nil
}

func (g *Gateway) recordFailure() {
	g.healthMu.Lock()
	g.consecutiveFailures++
	g.healthMu.Unlock()
}

func (g *Gateway) recordSuccess() {
	g.healthMu.Lock()
	g.consecutiveFailures = 0
	g.healthMu.Unlock()
}

// Unhealthy reports the process-level "LLM unhealthy" flag (spec §7):
// repeated gateway transport/timeout failures in a row. A nil Gateway is
// never unhealthy — it is simply disabled.
func (g *Gateway) Unhealthy() bool {
	if g == nil {
		return false
	}
	g.healthMu.Lock()
	defer g.healthMu.Unlock()
	return g.consecutiveFailures >= unhealthyThreshold
}

func (g *Gateway) endpointFor(task string) Endpoint {
	mode, ok := taskMode[task]
	if !ok {
		mode = ModeNormal
	}
	if mode == ModeFast && g.fast.Key != "" {
		return g.fast
	}
	return g.normal
}

func (g *Gateway) render(templatePath string, subs map[string]any) (string, error) {
	if g.templatesDir == "" {
		return "", fmt.Errorf("no templates directory configured")
	}
	full := filepath.Join(g.templatesDir, templatePath)
	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("read template %s: %w", full, err)
	}
	tmpl, err := template.New(templatePath).Parse(string(data))
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", full, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, subs); err != nil {
		return "", fmt.Errorf("render template %s: %w", full, err)
	}
	return buf.String(), nil
}

// message and request/response envelopes mirror the teacher's
// internal/llm/client.go Anthropic Messages API transport exactly.
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type response struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (g *Gateway) complete(ctx context.Context, ep Endpoint, task, userPrompt string) (string, error) {
	reqBody := request{
		Model:     ep.Model,
		MaxTokens: 1024,
		Messages:  []message{{Role: "user", Content: userPrompt}},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := ep.BaseURL
	if url == "" {
		url = "https://api.anthropic.com/v1/messages"
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", ep.Key)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}

	var r response
	if err := json.Unmarshal(respBody, &r); err != nil {
		return "", err
	}
	if len(r.Content) == 0 {
		return "", fmt.Errorf("llm response had no content")
	}

	slog.Debug("llmgateway: call completed", "task", task, "model", ep.Model, "reply_bytes", len(r.Content[0].Text))
	return r.Content[0].Text, nil
}
