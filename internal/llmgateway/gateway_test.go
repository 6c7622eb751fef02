package llmgateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTemplate(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
}

func TestNewReturnsNilWithoutAnyKey(t *testing.T) {
	gw := New(Config{})
	if gw != nil {
		t.Fatalf("expected a nil Gateway with no configured endpoint key")
	}
	if gw.Enabled() {
		t.Fatalf("expected a nil Gateway to report disabled")
	}
	if gw.Unhealthy() {
		t.Fatalf("expected a nil Gateway to never report unhealthy")
	}
}

func TestCallRendersTemplateAndDecodesJSONReply(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "decide.tmpl", "Decide a plan for {{.Name}}.")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Messages[0].Content != "Decide a plan for Chen Kai." {
			t.Fatalf("expected rendered prompt in request body, got %q", req.Messages[0].Content)
		}
		resp := response{Content: []struct {
			Text string `json:"text"`
		}{{Text: `{"action":"cultivate"}`}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	gw := New(Config{
		Normal:                Endpoint{BaseURL: srv.URL, Key: "test-key", Model: "test-model"},
		MaxConcurrentRequests: 2,
		TemplatesDir:          dir,
		CallTimeout:           5 * time.Second,
	})
	if gw == nil {
		t.Fatalf("expected a non-nil Gateway with a configured key")
	}

	raw, err := gw.Call(context.Background(), "decide", "decide.tmpl", map[string]any{"Name": "Chen Kai"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}

	var decoded struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	if decoded.Action != "cultivate" {
		t.Fatalf("expected decoded action 'cultivate', got %q", decoded.Action)
	}
	if gw.Unhealthy() {
		t.Fatalf("expected gateway to stay healthy after a successful call")
	}
}

func TestCallFailsClosedOnMissingTemplate(t *testing.T) {
	gw := New(Config{
		Normal:                Endpoint{BaseURL: "http://unused.invalid", Key: "test-key"},
		MaxConcurrentRequests: 1,
		TemplatesDir:          t.TempDir(),
		CallTimeout:           time.Second,
	})

	_, err := gw.Call(context.Background(), "decide", "missing.tmpl", nil)
	if err == nil {
		t.Fatalf("expected an error for a missing template")
	}
	gwErr, ok := err.(*Error)
	if !ok || gwErr.Kind != ErrShape {
		t.Fatalf("expected ErrShape for a missing template, got %v", err)
	}
}

func TestRepeatedTransportFailuresSetUnhealthy(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "decide.tmpl", "hi")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	gw := New(Config{
		Normal:                Endpoint{BaseURL: srv.URL, Key: "test-key"},
		MaxConcurrentRequests: 1,
		TemplatesDir:          dir,
		CallTimeout:           time.Second,
	})

	for i := 0; i < unhealthyThreshold; i++ {
		if _, err := gw.Call(context.Background(), "decide", "decide.tmpl", nil); err == nil {
			t.Fatalf("expected call %d against a failing endpoint to error", i)
		}
	}

	if !gw.Unhealthy() {
		t.Fatalf("expected gateway to report unhealthy after %d consecutive failures", unhealthyThreshold)
	}
}

func TestEndpointForRoutesFastTasksToFastEndpointWhenConfigured(t *testing.T) {
	gw := New(Config{
		Fast:                  Endpoint{Key: "fast-key", Model: "fast-model"},
		Normal:                Endpoint{Key: "normal-key", Model: "normal-model"},
		MaxConcurrentRequests: 1,
	})

	if ep := gw.endpointFor("backstory"); ep.Model != "fast-model" {
		t.Fatalf("expected backstory routed to the fast endpoint, got %q", ep.Model)
	}
	if ep := gw.endpointFor("decide"); ep.Model != "normal-model" {
		t.Fatalf("expected decide routed to the normal endpoint, got %q", ep.Model)
	}
}
