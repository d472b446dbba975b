// Package store holds application state in camelCase form and the actions
// that fill it from the API.
package store

import (
	"context"
	"sync"

	"github.com/MichaelAJay/go-logger"
	"github.com/mcncl/keycase/internal/client"
	"github.com/mcncl/keycase/internal/models"
	"github.com/mcncl/keycase/internal/parser"
)

// State is a snapshot of the store.
type State struct {
	Profile    models.Value
	Submission models.Value
}

// Endpoints are the API paths the actions call.
type Endpoints struct {
	Profile string
	Submit  string
}

// Store is a mutex-guarded state container. State changes only through the
// mutations; actions perform a request and then commit a mutation.
type Store struct {
	mu        sync.RWMutex
	state     State
	client    *client.Client
	endpoints Endpoints
	transform client.Middleware
	logger    logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a Store. transform is passed explicitly to every request the
// actions make; it is normally the key-case middleware.
func New(c *client.Client, endpoints Endpoints, transform client.Middleware, opts ...Option) *Store {
	s := &Store{
		client:    c,
		endpoints: endpoints,
		transform: transform,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a snapshot of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetProfile replaces the profile.
func (s *Store) SetProfile(profile models.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Profile = profile
}

// SetSubmission replaces the last submission result.
func (s *Store) SetSubmission(result models.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Submission = result
}

// FetchProfile loads the profile and commits it with SetProfile.
func (s *Store) FetchProfile(ctx context.Context) (models.Value, error) {
	var profile models.Value
	if err := s.client.Get(ctx, s.endpoints.Profile, &profile, s.transform); err != nil {
		return models.Value{}, err
	}
	s.SetProfile(profile)
	if s.logger != nil {
		s.logger.Info("Profile fetched", logger.Field{Key: "keys", Value: profile.Len()})
	}
	return profile, nil
}

// SubmitProfile posts profile, which may be a models.Value or any value
// encoding/json accepts, and commits the response with SetSubmission.
func (s *Store) SubmitProfile(ctx context.Context, profile any) (models.Value, error) {
	body, err := parser.FromGo(profile)
	if err != nil {
		return models.Value{}, err
	}

	var result models.Value
	if err := s.client.Post(ctx, s.endpoints.Submit, body, &result, s.transform); err != nil {
		return models.Value{}, err
	}
	s.SetSubmission(result)
	if s.logger != nil {
		s.logger.Info("Profile submitted", logger.Field{Key: "keys", Value: result.Len()})
	}
	return result, nil
}
