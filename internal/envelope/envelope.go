// Package envelope defines the uniform result returned by every tool call.
package envelope

import (
	"encoding/json"
	"fmt"
)

const (
	CodeSuccess = 0
	CodeError   = -1
)

// Response carries either a payload (ErrorCode 0) or an error message.
type Response[T any] struct {
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Data         T      `json:"data"`
}

type wireResponse struct {
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Data         any    `json:"data,omitempty"`
}

// MarshalJSON keeps data on success, zero values included, and drops it on
// error.
func (r Response[T]) MarshalJSON() ([]byte, error) {
	w := wireResponse{ErrorCode: r.ErrorCode, ErrorMessage: r.ErrorMessage}
	if r.OK() {
		w.Data = r.Data
	}
	return json.Marshal(w)
}

func Success[T any](data T) Response[T] {
	return Response[T]{ErrorCode: CodeSuccess, Data: data}
}

func Error[T any](msg string) Response[T] {
	return Response[T]{ErrorCode: CodeError, ErrorMessage: msg}
}

func Errorf[T any](format string, args ...any) Response[T] {
	return Error[T](fmt.Sprintf(format, args...))
}

func (r Response[T]) OK() bool {
	return r.ErrorCode == CodeSuccess
}

// Any erases the payload type so transports can treat every tool alike.
func (r Response[T]) Any() Response[any] {
	out := Response[any]{ErrorCode: r.ErrorCode, ErrorMessage: r.ErrorMessage}
	if r.OK() {
		out.Data = r.Data
	}
	return out
}

// LegacyText renders the deprecated plain-string form: the error message on
// failure, string payloads verbatim, everything else as JSON.
func (r Response[T]) LegacyText() string {
	if !r.OK() {
		return r.ErrorMessage
	}
	var v any = r.Data
	switch d := v.(type) {
	case nil:
		return "success"
	case string:
		return d
	case bool:
		if d {
			return "success"
		}
		return "fail"
	case json.RawMessage:
		return string(d)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err.Error()
	}
	return string(b)
}
