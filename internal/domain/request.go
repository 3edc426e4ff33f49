package domain

import (
	"encoding/json"
	"net/http"
)

// APIRequest — полностью сформированный исходящий запрос.
//
// Сериализуется вызывающей стороной до планирования;
// Relay не интерпретирует Body.
type APIRequest struct {
	// Name — метка запроса для логов и событий (например, "track_event").
	Name string `json:"name,omitempty"`

	// Endpoint — базовый URL API (например, "https://api.example.com").
	Endpoint string `json:"endpoint"`

	// Path — путь относительно Endpoint (например, "/api/events/track").
	Path string `json:"path"`

	// Method — HTTP-метод. Default: POST.
	Method string `json:"method,omitempty"`

	// Headers — дополнительные заголовки.
	Headers map[string]string `json:"headers,omitempty"`

	// APIKey — ключ API, отправляется в заголовке Api-Key.
	APIKey string `json:"api_key,omitempty"`

	// Auth — контекст пользователя, от имени которого отправляется запрос.
	Auth Auth `json:"auth"`

	// Body — тело запроса в JSON.
	Body json.RawMessage `json:"body,omitempty"`
}

// Auth — контекст аутентификации запроса.
type Auth struct {
	UserID    string `json:"user_id,omitempty"`
	Email     string `json:"email,omitempty"`
	AuthToken string `json:"auth_token,omitempty"`
}

// HTTPMethod возвращает метод запроса с учётом default.
func (r APIRequest) HTTPMethod() string {
	if r.Method == "" {
		return http.MethodPost
	}
	return r.Method
}
