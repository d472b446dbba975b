// Package mockapi serves a fixed snake_case JSON API for demos and tests.
package mockapi

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/MichaelAJay/go-logger"
	"github.com/mcncl/keycase/internal/keycase"
	"github.com/mcncl/keycase/internal/models"
	"github.com/mcncl/keycase/internal/parser"
)

// MaxBodyBytes caps the size of a POST /users body.
const MaxBodyBytes = 1 << 20

// ProfileJSON is the body served by GET /users/1.
const ProfileJSON = `{"id":1,"first_name":"Alice","last_name":"Liddell","email_address":"alice@example.com","is_active":true,"login_count":42,"home_address":{"street_name":"Rabbit Hole","postal_code":"OX1 1DP"},"friends":[{"first_name":"Lorina","last_name":"Liddell"},{"first_name":"Edith","last_name":"Liddell"}],"favourite_quote":"curiouser_and_curiouser"}`

// Server is the mock API handler.
type Server struct {
	mux    *http.ServeMux
	logger logger.Logger
	nextID atomic.Int64
	now    func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithClock fixes the clock used for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a Server.
func New(opts ...Option) *Server {
	s := &Server{
		mux: http.NewServeMux(),
		now: time.Now,
	}
	s.nextID.Store(100)
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("GET /users/1", s.handleProfile)
	s.mux.HandleFunc("POST /users", s.handleCreate)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.logger != nil {
		s.logger.Debug("Mock API request",
			logger.Field{Key: "method", Value: r.Method},
			logger.Field{Key: "path", Value: r.URL.Path})
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleProfile(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, []byte(ProfileJSON))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

// handleCreate echoes the posted object back with id and created_at
// appended. Every key at every depth must already be snake_case.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := parser.Parse(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Kind() != models.KindObject {
		writeError(w, http.StatusBadRequest, "expected a JSON object")
		return
	}
	if key, ok := firstNonSnakeKey(body); ok {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("key %q is not snake_case", key))
		return
	}

	created := body.
		With("id", models.Number(json.Number(strconv.FormatInt(s.nextID.Add(1), 10)))).
		With("created_at", models.String(s.now().UTC().Format(time.RFC3339)))

	data, err := parser.Encode(created, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, data)
}

func firstNonSnakeKey(v models.Value) (string, bool) {
	switch v.Kind() {
	case models.KindObject:
		for _, m := range v.Members() {
			if !keycase.IsSnake(m.Key) {
				return m.Key, true
			}
			if key, ok := firstNonSnakeKey(m.Value); ok {
				return key, true
			}
		}
	case models.KindArray:
		for _, elem := range v.Elements() {
			if key, ok := firstNonSnakeKey(elem); ok {
				return key, true
			}
		}
	}
	return "", false
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	data, _ := models.Object(
		models.Member{Key: "error_message", Value: models.String(message)},
	).MarshalJSON()
	writeJSON(w, status, data)
}
