package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// fakeAPI записывает последний запрос и отвечает заданным телом.
type fakeAPI struct {
	method string
	path   string
	body   []byte
	status int
	resp   string
}

func (f *fakeAPI) start(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.method = r.Method
		f.path = r.URL.Path
		f.body, _ = io.ReadAll(r.Body)

		status := f.status
		if status == 0 {
			status = http.StatusOK
		}
		if f.resp != "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(status)
		io.WriteString(w, f.resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// run выполняет команду и возвращает stdout и stderr.
func run(t *testing.T, srv *httptest.Server, jsonMode bool, newCmd func(func() *Client, func() *Output) *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	clientFn := func() *Client { return NewClient(srv.URL + "/") }
	outputFn := func() *Output { return &Output{jsonMode: jsonMode, w: &stdout, errW: &stderr} }

	cmd := newCmd(clientFn, outputFn)
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// --- request ---

func TestRequestSend(t *testing.T) {
	api := &fakeAPI{status: http.StatusCreated, resp: `{"data":{"task_id":"4b3c"}}`}
	srv := api.start(t)

	_, stderr, err := run(t, srv, false, NewRequestCmd,
		"send",
		"--endpoint", "https://api.example.com",
		"--path", "/api/events/track",
		"--api-key", "KEY",
		"--email", "user@example.com",
		"-H", "X-Sdk: relay",
		"--body", `{"eventName":"CustomEvent1"}`,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if api.method != http.MethodPost || api.path != "/api/v1/requests" {
		t.Fatalf("unexpected call %s %s", api.method, api.path)
	}

	var sent ScheduleRequest
	if err := json.Unmarshal(api.body, &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if sent.Endpoint != "https://api.example.com" || sent.Path != "/api/events/track" {
		t.Errorf("unexpected target %+v", sent)
	}
	if sent.APIKey != "KEY" || sent.Auth.Email != "user@example.com" {
		t.Errorf("unexpected auth %+v", sent)
	}
	if sent.Headers["X-Sdk"] != "relay" {
		t.Errorf("unexpected headers %v", sent.Headers)
	}
	if string(sent.Body) != `{"eventName":"CustomEvent1"}` {
		t.Errorf("unexpected body %s", sent.Body)
	}
	if !strings.Contains(stderr, "Request queued: 4b3c") {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestRequestSend_BodyFile(t *testing.T) {
	api := &fakeAPI{status: http.StatusCreated, resp: `{"data":{"task_id":"1"}}`}
	srv := api.start(t)

	path := filepath.Join(t.TempDir(), "body.json")
	if err := os.WriteFile(path, []byte(`{"a":1}`), 0o600); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := run(t, srv, true, NewRequestCmd, "send", "--endpoint", "https://x.io", "--body-file", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(api.body), `"body":{"a":1}`) {
		t.Errorf("body file not sent: %s", api.body)
	}
	if !strings.Contains(stdout, `"task_id": "1"`) {
		t.Errorf("expected JSON output, got %q", stdout)
	}
}

func TestRequestSend_Invalid(t *testing.T) {
	api := &fakeAPI{}
	srv := api.start(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing endpoint", []string{"send"}},
		{"invalid body", []string{"send", "--endpoint", "https://x.io", "--body", "{"}},
		{"invalid header", []string{"send", "--endpoint", "https://x.io", "-H", "no-colon"}},
		{"body and file", []string{"send", "--endpoint", "https://x.io", "--body", "{}", "--body-file", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := run(t, srv, false, NewRequestCmd, tt.args...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if api.method != "" {
		t.Errorf("API should not be called, got %s %s", api.method, api.path)
	}
}

func TestRequestSend_APIError(t *testing.T) {
	api := &fakeAPI{
		status: http.StatusBadRequest,
		resp:   `{"error":{"code":"BAD_REQUEST","message":"endpoint is required"}}`,
	}
	srv := api.start(t)

	_, _, err := run(t, srv, false, NewRequestCmd, "send", "--endpoint", "https://x.io")
	if err == nil || err.Error() != "BAD_REQUEST: endpoint is required" {
		t.Fatalf("unexpected error %v", err)
	}
}

// --- task ---

func TestTaskList(t *testing.T) {
	api := &fakeAPI{resp: `{"data":[
		{"id":"t1","name":"track","endpoint":"https://x.io","path":"/a","method":"POST","attempts":2,"last_error":"server: HTTP 503","created_at":"2026-03-01T12:00:00Z"}
	],"total":1}`}
	srv := api.start(t)

	stdout, _, err := run(t, srv, false, NewTaskCmd, "list")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.method != http.MethodGet || api.path != "/api/v1/tasks" {
		t.Fatalf("unexpected call %s %s", api.method, api.path)
	}

	for _, want := range []string{"ID", "LAST ERROR", "t1", "https://x.io/a", "server: HTTP 503"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("table should contain %q:\n%s", want, stdout)
		}
	}
}

func TestTaskDelete(t *testing.T) {
	api := &fakeAPI{status: http.StatusNoContent}
	srv := api.start(t)

	_, stderr, err := run(t, srv, false, NewTaskCmd, "delete", "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.method != http.MethodDelete || api.path != "/api/v1/tasks/t1" {
		t.Errorf("unexpected call %s %s", api.method, api.path)
	}
	if !strings.Contains(stderr, "Task deleted: t1") {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestTaskDelete_NotFound(t *testing.T) {
	api := &fakeAPI{status: http.StatusNotFound, resp: `{"error":{"code":"NOT_FOUND","message":"task not found"}}`}
	srv := api.start(t)

	_, _, err := run(t, srv, false, NewTaskCmd, "delete", "t1")
	if err == nil || !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestTaskPurge_RequiresConfirmation(t *testing.T) {
	api := &fakeAPI{status: http.StatusNoContent}
	srv := api.start(t)

	if _, _, err := run(t, srv, false, NewTaskCmd, "purge"); err == nil {
		t.Fatal("purge without --yes should fail")
	}
	if api.method != "" {
		t.Fatal("API should not be called without confirmation")
	}

	if _, _, err := run(t, srv, false, NewTaskCmd, "purge", "--yes"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.method != http.MethodDelete || api.path != "/api/v1/tasks" {
		t.Errorf("unexpected call %s %s", api.method, api.path)
	}
}

// --- runner ---

func TestRunnerCommands(t *testing.T) {
	tests := []struct {
		args   []string
		method string
		path   string
	}{
		{[]string{"status"}, http.MethodGet, "/api/v1/runner"},
		{[]string{"start"}, http.MethodPost, "/api/v1/runner/start"},
		{[]string{"stop"}, http.MethodPost, "/api/v1/runner/stop"},
	}

	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			api := &fakeAPI{resp: `{"data":{"state":"polling","poll_interval":"1s","max_attempts":0}}`}
			srv := api.start(t)

			stdout, _, err := run(t, srv, false, NewRunnerCmd, tt.args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if api.method != tt.method || api.path != tt.path {
				t.Errorf("unexpected call %s %s", api.method, api.path)
			}
			if !strings.Contains(stdout, "polling") || !strings.Contains(stdout, "TASK:") {
				t.Errorf("unexpected output:\n%s", stdout)
			}
		})
	}
}

// --- helpers ---

func TestParseHeaders(t *testing.T) {
	got, err := parseHeaders([]string{"X-Sdk: relay", "X-Trace:abc:def"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["X-Sdk"] != "relay" || got["X-Trace"] != "abc:def" {
		t.Errorf("unexpected headers %v", got)
	}

	if got, _ := parseHeaders(nil); got != nil {
		t.Errorf("expected nil map, got %v", got)
	}
}

func TestOutput_JSONMode(t *testing.T) {
	var buf bytes.Buffer
	out := &Output{jsonMode: true, w: &buf, errW: io.Discard}

	out.Print([]string{"ID"}, [][]string{{"1"}}, map[string]string{"id": "1"})
	if !strings.Contains(buf.String(), `"id": "1"`) {
		t.Errorf("unexpected JSON output %q", buf.String())
	}
}
