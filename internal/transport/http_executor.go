package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/Relay/internal/domain"
)

const (
	defaultHTTPTimeout = 30 * time.Second

	// maxResponseBody — сколько байт ответа читается.
	maxResponseBody = 1 << 20
)

// HTTPConfig — параметры HTTPExecutor.
type HTTPConfig struct {
	// Timeout — таймаут одного вызова. Default: 30s.
	Timeout time.Duration

	// Client — HTTP-клиент. Default: новый http.Client.
	Client *http.Client

	// UserAgent — значение заголовка User-Agent, если не пустое.
	UserAgent string
}

// HTTPExecutor выполняет APIRequest как HTTP-запрос.
type HTTPExecutor struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// NewHTTPExecutor создаёт HTTPExecutor.
func NewHTTPExecutor(cfg HTTPConfig) *HTTPExecutor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	return &HTTPExecutor{
		client:    cfg.Client,
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
	}
}

// Execute выполняет HTTP-запрос.
func (e *HTTPExecutor) Execute(ctx context.Context, apiReq domain.APIRequest) (*Response, error) {
	if apiReq.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrInvalidRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var bodyReader io.Reader
	if len(apiReq.Body) > 0 {
		bodyReader = bytes.NewReader(apiReq.Body)
	}

	req, err := http.NewRequestWithContext(ctx, apiReq.HTTPMethod(), joinURL(apiReq.Endpoint, apiReq.Path), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	e.setHeaders(req, apiReq, bodyReader != nil)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, classifyError(fmt.Errorf("read response: %w", err))
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (e *HTTPExecutor) setHeaders(req *http.Request, apiReq domain.APIRequest, hasBody bool) {
	for key, val := range apiReq.Headers {
		req.Header.Set(key, val)
	}

	if apiReq.APIKey != "" {
		req.Header.Set("Api-Key", apiReq.APIKey)
	}
	if apiReq.Auth.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+apiReq.Auth.AuthToken)
	}
	if hasBody && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if e.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", e.userAgent)
	}
}

// classifyError превращает ошибку http.Client в *Error.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindConnectivity, Err: err}
}

func joinURL(endpoint, path string) string {
	if path == "" {
		return endpoint
	}
	return strings.TrimRight(endpoint, "/") + "/" + strings.TrimLeft(path, "/")
}
