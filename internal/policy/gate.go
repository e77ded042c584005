package policy

import (
	"net/http"
	"strings"
)

const ReadOnlyMessage = "只读模式已启用，不允许执行写操作"

// RejectError is returned by Gate.Check when a write is attempted in
// read-only mode.
type RejectError struct {
	Status     int
	Message    string
	Identifier string
	Operation  string
}

func (e *RejectError) Error() string {
	return e.Message
}

// Gate enforces read-only mode. The zero value allows everything.
type Gate struct {
	Enabled bool
}

// Check matches the lower-cased identifier against every write operation as
// a substring. Identifiers may be bare tool names or request paths, so
// "api/acl/createUser" is rejected just like "createUser". An identifier
// that merely contains a write name (for example "createUserReport") is
// rejected too.
func (g Gate) Check(identifier string) error {
	if !g.Enabled {
		return nil
	}
	id := strings.ToLower(identifier)
	for _, op := range sortedWriteList() {
		if strings.Contains(id, op) {
			return &RejectError{
				Status:     http.StatusMethodNotAllowed,
				Message:    ReadOnlyMessage,
				Identifier: identifier,
				Operation:  op,
			}
		}
	}
	return nil
}
