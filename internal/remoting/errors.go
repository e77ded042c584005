package remoting

import (
	"errors"
	"fmt"
)

var (
	ErrTimeout      = errors.New("remoting: request timeout")
	ErrClientClosed = errors.New("remoting: client closed")
	ErrConnClosed   = errors.New("remoting: connection closed")
)

// ResponseError is a non-success response code returned by a server.
type ResponseError struct {
	Addr   string
	Code   Code
	Remark string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("CODE: %d  DESC: %s  ADDR: %s", e.Code, e.Remark, e.Addr)
}

// CheckResponse returns a *ResponseError unless resp carries one of the
// accepted codes (Success when none are given).
func CheckResponse(addr string, resp *Command, accepted ...Code) error {
	if len(accepted) == 0 {
		accepted = []Code{Success}
	}
	for _, c := range accepted {
		if resp.Code == c {
			return nil
		}
	}
	return &ResponseError{Addr: addr, Code: resp.Code, Remark: resp.Remark}
}

// IsCode reports whether err is a ResponseError with the given code.
func IsCode(err error, code Code) bool {
	var re *ResponseError
	return errors.As(err, &re) && re.Code == code
}
