package catalog

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind: класс исхода запроса к product service.
type ErrorKind int

const (
	// KindUpstream: любой другой не-2xx ответ или сбой транспорта (Status == 0).
	KindUpstream ErrorKind = iota
	KindAuthFailed
	KindForbidden
	KindTimeout
)

// String возвращает метку для логов и метрик.
func (k ErrorKind) String() string {
	switch k {
	case KindAuthFailed:
		return "auth_failed"
	case KindForbidden:
		return "forbidden"
	case KindTimeout:
		return "timeout"
	default:
		return "upstream"
	}
}

// maxErrorBody: сколько тела ответа сохраняется в ошибке.
const maxErrorBody = 512

// Error: неуспешный исход операции каталога.
type Error struct {
	Op     string // "list_mine", "create", "update", "search"
	Kind   ErrorKind
	Status int    // HTTP статус, 0 если ответа не было
	Body   string // Начало тела ответа
	Err    error  // Транспортная причина, если есть
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Body != "":
		return fmt.Sprintf("catalog %s: %s: status %d: %s", e.Op, e.Kind, e.Status, e.Body)
	case e.Status != 0:
		return fmt.Sprintf("catalog %s: %s: status %d", e.Op, e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("catalog %s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("catalog %s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf возвращает класс ошибки каталога. Для чужих ошибок ok == false.
func KindOf(err error) (ErrorKind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return KindUpstream, false
}

// IsKind сообщает, является ли err ошибкой каталога данного класса.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// statusError классифицирует не-2xx ответ.
func statusError(op string, status int, body []byte) *Error {
	kind := KindUpstream
	switch status {
	case 401:
		kind = KindAuthFailed
	case 403:
		kind = KindForbidden
	}

	text := string(body)
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	return &Error{Op: op, Kind: kind, Status: status, Body: text}
}

// transportError классифицирует ошибку без HTTP ответа.
func transportError(op string, err error) *Error {
	if isTimeout(err) {
		return &Error{Op: op, Kind: KindTimeout, Err: err}
	}
	return &Error{Op: op, Kind: KindUpstream, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
