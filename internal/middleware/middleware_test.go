package middleware

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MichaelAJay/go-logger"
	"github.com/mcncl/keycase/internal/client"
	"github.com/mcncl/keycase/internal/errors"
	"github.com/mcncl/keycase/internal/keycase"
	"github.com/mcncl/keycase/internal/mockapi"
	"github.com/mcncl/keycase/internal/models"
	"github.com/mcncl/keycase/internal/transcoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockAPI(t *testing.T) *client.Client {
	t.Helper()
	fixed := func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	srv := httptest.NewServer(mockapi.New(mockapi.WithClock(fixed)))
	t.Cleanup(srv.Close)
	return client.New(srv.URL)
}

func TestKeyCase_InboundToCamel(t *testing.T) {
	c := newMockAPI(t)

	var got models.Value
	err := c.Get(context.Background(), "/users/1", &got, NewKeyCaseMiddleware(DefaultKeyCaseOptions()))
	require.NoError(t, err)

	data, err := got.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t,
		`{"id":1,"firstName":"Alice","lastName":"Liddell","emailAddress":"alice@example.com","isActive":true,"loginCount":42,"homeAddress":{"streetName":"Rabbit Hole","postalCode":"OX1 1DP"},"friends":[{"firstName":"Lorina","lastName":"Liddell"},{"firstName":"Edith","lastName":"Liddell"}],"favouriteQuote":"curiouser_and_curiouser"}`,
		string(data))
}

func TestKeyCase_WithoutMiddlewareKeepsWireCase(t *testing.T) {
	c := newMockAPI(t)

	var got models.Value
	require.NoError(t, c.Get(context.Background(), "/users/1", &got))
	_, ok := got.Get("first_name")
	assert.True(t, ok)
}

func TestKeyCase_OutboundToSnake(t *testing.T) {
	c := newMockAPI(t)

	body := struct {
		FirstName string `json:"firstName"`
		Pets      []struct {
			PetName string `json:"petName"`
		} `json:"pets"`
	}{FirstName: "Bob"}
	body.Pets = append(body.Pets, struct {
		PetName string `json:"petName"`
	}{PetName: "Dinah"})

	var got models.Value
	err := c.Post(context.Background(), "/users", body, &got, NewKeyCaseMiddleware(DefaultKeyCaseOptions()))
	require.NoError(t, err)

	data, err := got.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"firstName":"Bob","pets":[{"petName":"Dinah"}],"id":101,"createdAt":"2024-03-01T12:00:00Z"}`, string(data))
}

func TestKeyCase_OutboundRejectedWithoutMiddleware(t *testing.T) {
	c := newMockAPI(t)

	body := models.Object(models.Member{Key: "firstName", Value: models.String("Bob")})
	err := c.Post(context.Background(), "/users", body, nil)
	require.Error(t, err)

	var statusErr *errors.StatusError
	require.True(t, stderrors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnprocessableEntity, statusErr.StatusCode)
}

func TestKeyCase_NonJSONResponseBypassed(t *testing.T) {
	c := newMockAPI(t)

	var got string
	require.NoError(t, c.Get(context.Background(), "/health", &got, NewKeyCaseMiddleware(DefaultKeyCaseOptions())))
	assert.Equal(t, "ok\n", got)
}

func TestKeyCase_NonJSONLookalikeBodyUntouched(t *testing.T) {
	base := client.DoerFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"text/plain"}},
			Body:       io.NopCloser(strings.NewReader(`{"first_name":"Alice"}`)),
		}, nil
	})

	c := client.New("http://example.test", client.WithDoer(base))
	var got string
	require.NoError(t, c.Get(context.Background(), "/", &got, NewKeyCaseMiddleware(DefaultKeyCaseOptions())))
	assert.Equal(t, `{"first_name":"Alice"}`, got)
}

func TestKeyCase_RequestHeadersAndLength(t *testing.T) {
	var seen []byte
	var seenLength int64
	base := client.DoerFunc(func(req *http.Request) (*http.Response, error) {
		seenLength = req.ContentLength
		seen, _ = io.ReadAll(req.Body)
		again, err := req.GetBody()
		require.NoError(t, err)
		replay, _ := io.ReadAll(again)
		assert.Equal(t, seen, replay)
		return &http.Response{
			StatusCode: http.StatusNoContent,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader("")),
		}, nil
	})

	c := client.New("http://example.test", client.WithDoer(base))
	body := models.Object(models.Member{Key: "lastName", Value: models.String("Smith")})
	require.NoError(t, c.Post(context.Background(), "/", body, nil, NewKeyCaseMiddleware(DefaultKeyCaseOptions())))

	assert.Equal(t, `{"last_name":"Smith"}`, string(seen))
	assert.Equal(t, int64(len(seen)), seenLength)
}

func TestKeyCase_ShallowAndMappings(t *testing.T) {
	c := newMockAPI(t)
	opts := DefaultKeyCaseOptions()
	opts.Deep = false
	opts.Transcoder = transcoder.New(transcoder.Options{
		KeyMappings: map[keycase.Convention]map[string]string{
			keycase.Camel: {"id": "ID"},
		},
	})

	var got models.Value
	require.NoError(t, c.Get(context.Background(), "/users/1", &got, NewKeyCaseMiddleware(opts)))

	assert.Equal(t, "ID", got.Keys()[0])
	home, ok := got.Get("homeAddress")
	require.True(t, ok)
	assert.Equal(t, []string{"street_name", "postal_code"}, home.Keys())
}

func TestKeyCase_MalformedResponse(t *testing.T) {
	base := client.DoerFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(`{"first_name":`)),
		}, nil
	})

	c := client.New("http://example.test", client.WithDoer(base))
	err := c.Get(context.Background(), "/", nil, NewKeyCaseMiddleware(DefaultKeyCaseOptions()))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidJSON))
}

func TestLogging_PassesThrough(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: logger.DebugLevel, Output: &buf})
	c := newMockAPI(t)

	var got models.Value
	stack := Compose(NewLoggingMiddleware(log), NewKeyCaseMiddleware(DefaultKeyCaseOptions()))
	require.NoError(t, c.Get(context.Background(), "/users/1", &got, stack))
	_, ok := got.Get("firstName")
	assert.True(t, ok)

	err := c.Get(context.Background(), "/users/404", nil, stack)
	require.Error(t, err)
	assert.NotZero(t, buf.Len())
}

func TestLogging_TransportError(t *testing.T) {
	log := logger.New(logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	failing := client.DoerFunc(func(*http.Request) (*http.Response, error) {
		return nil, stderrors.New("connection refused")
	})

	c := client.New("http://example.test", client.WithDoer(failing))
	err := c.Get(context.Background(), "/", nil, NewLoggingMiddleware(log))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
