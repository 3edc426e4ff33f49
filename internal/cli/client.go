package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// ScheduleResponse — ответ на постановку запроса в очередь.
type ScheduleResponse struct {
	TaskID string `json:"task_id"`
}

// TaskResponse — task из API.
type TaskResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	Endpoint      string `json:"endpoint"`
	Path          string `json:"path"`
	Method        string `json:"method"`
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
	Attempts      int    `json:"attempts"`
	CreatedAt     string `json:"created_at"`
	ScheduledAt   string `json:"scheduled_at"`
	LastAttemptAt string `json:"last_attempt_at,omitempty"`
	LastError     string `json:"last_error,omitempty"`
}

// RunnerResponse — состояние runner из API.
type RunnerResponse struct {
	State        string `json:"state"`
	TaskID       string `json:"task_id,omitempty"`
	PollInterval string `json:"poll_interval"`
	MaxAttempts  int    `json:"max_attempts"`
}

// --- Request types ---

// ScheduleRequest — постановка исходящего запроса в очередь.
type ScheduleRequest struct {
	Name     string            `json:"name,omitempty"`
	Endpoint string            `json:"endpoint"`
	Path     string            `json:"path"`
	Method   string            `json:"method,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	APIKey   string            `json:"api_key,omitempty"`
	Auth     AuthRequest       `json:"auth"`
	Body     json.RawMessage   `json:"body,omitempty"`
}

// AuthRequest — контекст пользователя запроса.
type AuthRequest struct {
	UserID    string `json:"user_id,omitempty"`
	Email     string `json:"email,omitempty"`
	AuthToken string `json:"auth_token,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Relay API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Requests ---

// SendRequest ставит запрос в очередь и возвращает ID task.
func (c *Client) SendRequest(req ScheduleRequest) (*ScheduleResponse, error) {
	var resp ScheduleResponse
	err := c.post("/api/v1/requests", req, &resp)
	return &resp, err
}

// --- Tasks ---

// ListTasks возвращает все tasks в очереди.
func (c *Client) ListTasks() ([]TaskResponse, error) {
	var tasks []TaskResponse
	err := c.list("/api/v1/tasks", nil, &tasks)
	return tasks, err
}

// DeleteTask удаляет task.
func (c *Client) DeleteTask(id string) error {
	return c.delete("/api/v1/tasks/" + url.PathEscape(id))
}

// PurgeTasks удаляет все tasks.
func (c *Client) PurgeTasks() error {
	return c.delete("/api/v1/tasks")
}

// --- Runner ---

// RunnerStatus возвращает состояние runner.
func (c *Client) RunnerStatus() (*RunnerResponse, error) {
	var status RunnerResponse
	err := c.get("/api/v1/runner", &status)
	return &status, err
}

// StartRunner запускает runner.
func (c *Client) StartRunner() (*RunnerResponse, error) {
	var status RunnerResponse
	err := c.post("/api/v1/runner/start", nil, &status)
	return &status, err
}

// StopRunner останавливает runner.
func (c *Client) StopRunner() (*RunnerResponse, error) {
	var status RunnerResponse
	err := c.post("/api/v1/runner/stop", nil, &status)
	return &status, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
