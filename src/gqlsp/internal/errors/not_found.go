package errors

import (
	stderr "errors"
	"fmt"

	"github.com/gofrs/uuid"
)

// UUIDNotFoundError reports a session id with no stored state.
type UUIDNotFoundError struct {
	UUID uuid.UUID
}

func (e *UUIDNotFoundError) Error() string {
	return fmt.Sprintf("no state for session %s", e.UUID)
}

// NotFoundUUID unwraps e and returns the missing session id, if any.
func NotFoundUUID(e error) (uuid.UUID, bool) {
	var nf *UUIDNotFoundError
	if stderr.As(e, &nf) {
		return nf.UUID, true
	}
	return uuid.Nil, false
}

// NoSessionFoundError means a request context carries no session id.
type NoSessionFoundError struct{}

func (*NoSessionFoundError) Error() string {
	return "request context has no session"
}
