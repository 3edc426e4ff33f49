package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// NewRequestCmd создаёт группу команд для постановки запросов в очередь.
func NewRequestCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Queue outbound API requests",
	}

	cmd.AddCommand(newRequestSendCmd(clientFn, outputFn))

	return cmd
}

func newRequestSendCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var (
		req      ScheduleRequest
		headers  []string
		body     string
		bodyFile string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Queue a request for delivery",
		Example: `  relay request send --endpoint https://api.example.com --path /api/events/track \
    --api-key KEY --email user@example.com --body '{"eventName":"CustomEvent1"}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseHeaders(headers)
			if err != nil {
				return err
			}
			req.Headers = parsed

			payload, err := readBody(body, bodyFile)
			if err != nil {
				return err
			}
			req.Body = payload

			resp, err := clientFn().SendRequest(req)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Request queued: %s", resp.TaskID))
			out.Fields([]string{"TASK ID"}, []string{resp.TaskID}, resp)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Endpoint, "endpoint", "", "API base URL (required)")
	f.StringVar(&req.Path, "path", "", "Request path relative to endpoint")
	f.StringVar(&req.Method, "method", "", "HTTP method (default POST)")
	f.StringVar(&req.Name, "name", "", "Label used in logs and events")
	f.StringArrayVarP(&headers, "header", "H", nil, "Extra header as 'Name: value' (repeatable)")
	f.StringVar(&req.APIKey, "api-key", "", "API key sent in the Api-Key header")
	f.StringVar(&req.Auth.UserID, "user-id", "", "User ID the request is sent for")
	f.StringVar(&req.Auth.Email, "email", "", "User email the request is sent for")
	f.StringVar(&req.Auth.AuthToken, "auth-token", "", "Bearer token for the Authorization header")
	f.StringVar(&body, "body", "", "JSON request body")
	f.StringVar(&bodyFile, "body-file", "", "Path to JSON request body file")
	cmd.MarkFlagRequired("endpoint")
	cmd.MarkFlagsMutuallyExclusive("body", "body-file")

	return cmd
}

// parseHeaders разбирает заголовки вида "Name: value".
func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, expected 'Name: value'", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// readBody возвращает тело запроса из флага или файла.
func readBody(inline, file string) (json.RawMessage, error) {
	data := []byte(inline)
	if file != "" {
		var err error
		data, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read body file: %w", err)
		}
	}

	if len(data) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("body is not valid JSON")
	}
	return json.RawMessage(data), nil
}
