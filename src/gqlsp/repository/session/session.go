// Package session stores the sessions of connected editor clients.
package session

import (
	"context"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/uber-go/tally"
	"github.com/uber/gql-panel-lsp/src/gqlsp/entity"
	"github.com/uber/gql-panel-lsp/src/gqlsp/internal/errors"
	"github.com/uber/gql-panel-lsp/src/gqlsp/mapper"
	"github.com/uber/gql-panel-lsp/src/gqlsp/model"
)

//go:generate mockgen -source=session.go -destination=repositorymock/session_mock.go -package=repositorymock

// Repository keeps one Session per client connection.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.Session, error)
	// GetFromContext looks up the session whose id was placed on ctx by the JSON-RPC router.
	GetFromContext(ctx context.Context) (*entity.Session, error)
	Set(ctx context.Context, s *entity.Session) error
	Delete(ctx context.Context, id uuid.UUID) error
	SessionCount(ctx context.Context) (int, error)
}

type repository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*model.Session
	active   tally.Gauge
}

// New returns an in-memory Repository. The active_connections gauge follows its size.
func New(stats tally.Scope) Repository {
	return &repository{
		sessions: make(map[uuid.UUID]*model.Session),
		active:   stats.Gauge("active_connections"),
	}
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	r.mu.RLock()
	stored, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return nil, &errors.UUIDNotFoundError{UUID: id}
	}
	return mapper.ModelToSession(stored)
}

func (r *repository) GetFromContext(ctx context.Context) (*entity.Session, error) {
	id, err := mapper.ContextToSessionUUID(ctx)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// Set stores a copy of s, replacing any earlier state for the same id.
func (r *repository) Set(ctx context.Context, s *entity.Session) error {
	if s == nil {
		return errors.New("can't save nil session")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.UUID] = mapper.SessionToModel(s)
	r.active.Update(float64(len(r.sessions)))
	return nil
}

// Delete is a no-op for unknown ids.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	r.active.Update(float64(len(r.sessions)))
	return nil
}

func (r *repository) SessionCount(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions), nil
}
