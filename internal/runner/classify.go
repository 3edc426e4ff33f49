package runner

import (
	"errors"
	"net/http"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/transport"
)

// class — категория результата выполнения.
type class int

const (
	classSuccess class = iota
	classRetryable
	classNonRetryable
)

// outcome — классифицированный результат вызова executor.
type outcome struct {
	class class
	err   *domain.TaskError // nil для classSuccess
}

// classify определяет, что делать с task после вызова executor.
//
//	2xx                      → success
//	нет ответа, 5xx, 408, 429 → retryable
//	остальные статусы         → non-retryable
//	ErrInvalidRequest         → non-retryable
func classify(resp *transport.Response, err error) outcome {
	if err != nil {
		return classifyError(err)
	}
	if resp == nil {
		return retryable(domain.ErrorReasonConnectivity, 0, ErrEmptyResponse.Error())
	}

	switch code := resp.StatusCode; {
	case resp.IsSuccess():
		return outcome{class: classSuccess}
	case code >= 500, code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return retryable(domain.ErrorReasonServer, code, resp.Message())
	default:
		return outcome{
			class: classNonRetryable,
			err: &domain.TaskError{
				Reason:     domain.ErrorReasonClient,
				StatusCode: code,
				Message:    resp.Message(),
			},
		}
	}
}

func classifyError(err error) outcome {
	if errors.Is(err, transport.ErrInvalidRequest) {
		return outcome{
			class: classNonRetryable,
			err:   &domain.TaskError{Reason: domain.ErrorReasonClient, Message: err.Error()},
		}
	}

	var tErr *transport.Error
	if errors.As(err, &tErr) {
		msg := tErr.Error()
		if tErr.Err != nil {
			msg = tErr.Err.Error()
		}
		if tErr.Kind == transport.KindTimeout {
			return retryable(domain.ErrorReasonTimeout, 0, msg)
		}
		return retryable(domain.ErrorReasonConnectivity, 0, msg)
	}

	// Неизвестная ошибка executor'а трактуется как отсутствие ответа
	return retryable(domain.ErrorReasonConnectivity, 0, err.Error())
}

func retryable(reason domain.ErrorReason, code int, msg string) outcome {
	return outcome{
		class: classRetryable,
		err:   &domain.TaskError{Reason: reason, StatusCode: code, Message: msg},
	}
}
