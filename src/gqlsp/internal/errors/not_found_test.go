package errors

import (
	"fmt"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNotFoundUUID(t *testing.T) {
	id := uuid.Must(uuid.FromString("4d8c6b36-4e9b-4469-8a05-2c60b9671590"))
	assert.Equal(t, "no state for session 4d8c6b36-4e9b-4469-8a05-2c60b9671590", (&UUIDNotFoundError{UUID: id}).Error())

	tests := []struct {
		name     string
		err      error
		wantOK   bool
		wantUUID uuid.UUID
	}{
		{
			name:     "direct",
			err:      &UUIDNotFoundError{UUID: id},
			wantOK:   true,
			wantUUID: id,
		},
		{
			name:     "wrapped",
			err:      fmt.Errorf("getting panel: %w", &UUIDNotFoundError{UUID: id}),
			wantOK:   true,
			wantUUID: id,
		},
		{
			name:     "unrelated",
			err:      New("err"),
			wantUUID: uuid.Nil,
		},
		{
			name:     "nil",
			wantUUID: uuid.Nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NotFoundUUID(tt.err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantUUID, got)
		})
	}
}

func TestNoSessionFound(t *testing.T) {
	assert.EqualError(t, &NoSessionFoundError{}, "request context has no session")
}
