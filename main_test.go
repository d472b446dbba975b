package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MichaelAJay/go-logger"
	"github.com/mcncl/keycase/internal/config"
	"github.com/mcncl/keycase/internal/errors"
	"github.com/mcncl/keycase/internal/mockapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T, stdin string) (*Context, *bytes.Buffer) {
	t.Helper()
	var stdout bytes.Buffer
	return &Context{
		Config: config.NewConfig(),
		Logger: logger.New(logger.Config{Level: logger.ErrorLevel, Output: io.Discard}),
		Stdin:  strings.NewReader(stdin),
		Stdout: &stdout,
		Stderr: io.Discard,
	}, &stdout
}

func writeTempJSON(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestConvert_FromFileToCamel(t *testing.T) {
	ctx, stdout := newTestContext(t, "")
	input := writeTempJSON(t, `{ "first_name": "Alice", "friends": [{ "last_name": "Smith" }] }`)

	cmd := &ConvertCmd{Input: input, To: "camel", Compact: true}
	require.NoError(t, cmd.Run(ctx))

	assert.Equal(t, `{"firstName":"Alice","friends":[{"lastName":"Smith"}]}`+"\n", stdout.String())
}

func TestConvert_FromStdinToSnake(t *testing.T) {
	ctx, stdout := newTestContext(t, `{ "firstName": "Bob" }`)

	cmd := &ConvertCmd{To: "snake", Compact: true}
	require.NoError(t, cmd.Run(ctx))

	assert.Equal(t, `{"first_name":"Bob"}`+"\n", stdout.String())
}

func TestConvert_Shallow(t *testing.T) {
	ctx, stdout := newTestContext(t, `{"userProfile": {"firstName": "Alice"}}`)

	cmd := &ConvertCmd{To: "snake", Shallow: true, Compact: true}
	require.NoError(t, cmd.Run(ctx))

	assert.Equal(t, `{"user_profile":{"firstName":"Alice"}}`+"\n", stdout.String())
}

func TestConvert_Indented(t *testing.T) {
	ctx, stdout := newTestContext(t, `{"first_name": [1]}`)

	cmd := &ConvertCmd{To: "camel"}
	require.NoError(t, cmd.Run(ctx))

	assert.Equal(t, "{\n  \"firstName\": [\n    1\n  ]\n}\n", stdout.String())
}

func TestConvert_ConfiguredKeyMappings(t *testing.T) {
	ctx, stdout := newTestContext(t, `{"user_id": 1, "user_name": "alice"}`)
	ctx.Config.Transcode.KeyMappings = map[string]map[string]string{
		"camel": {"user_id": "userID"},
	}

	cmd := &ConvertCmd{To: "camel", Compact: true}
	require.NoError(t, cmd.Run(ctx))

	assert.Equal(t, `{"userID":1,"userName":"alice"}`+"\n", stdout.String())
}

func TestConvert_WithOutputFile(t *testing.T) {
	ctx, stdout := newTestContext(t, "")
	input := writeTempJSON(t, `{"lastLoginAt": "2023-05-19T10:30:00Z"}`)
	output := filepath.Join(t.TempDir(), "out.json")

	cmd := &ConvertCmd{Input: input, Output: output, To: "snake", Compact: true}
	require.NoError(t, cmd.Run(ctx))

	assert.Empty(t, stdout.String())
	content, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, `{"last_login_at":"2023-05-19T10:30:00Z"}`+"\n", string(content))
}

func TestConvert_Errors(t *testing.T) {
	tests := []struct {
		name     string
		stdin    string
		cmd      ConvertCmd
		expected string
	}{
		{
			name:     "unknown target",
			stdin:    `{}`,
			cmd:      ConvertCmd{To: "screaming"},
			expected: "Key conversion error: unknown target case 'screaming'",
		},
		{
			name:     "empty stdin",
			stdin:    "",
			cmd:      ConvertCmd{To: "camel"},
			expected: "Input error: empty input received from stdin",
		},
		{
			name:     "malformed json",
			stdin:    `{"first_name":`,
			cmd:      ConvertCmd{To: "camel"},
			expected: "JSON parsing error: unexpected end of JSON input",
		},
		{
			name:     "missing file",
			cmd:      ConvertCmd{Input: "/non/existent.json", To: "camel"},
			expected: "Input error: file '/non/existent.json' not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _ := newTestContext(t, tt.stdin)
			err := tt.cmd.Run(ctx)
			require.Error(t, err)
			assert.Equal(t, tt.expected, errors.UserFriendlyError(err))
		})
	}
}

func newAPIContext(t *testing.T, stdin string) (*Context, *bytes.Buffer) {
	t.Helper()
	fixed := func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	srv := httptest.NewServer(mockapi.New(mockapi.WithClock(fixed)))
	t.Cleanup(srv.Close)

	ctx, stdout := newTestContext(t, stdin)
	ctx.Config.API.BaseURL = srv.URL
	return ctx, stdout
}

func TestFetch(t *testing.T) {
	ctx, stdout := newAPIContext(t, "")

	require.NoError(t, (&FetchCmd{Compact: true}).Run(ctx))

	out := stdout.String()
	assert.Contains(t, out, `"firstName":"Alice"`)
	assert.Contains(t, out, `"homeAddress":{"streetName":"Rabbit Hole","postalCode":"OX1 1DP"}`)
	assert.Contains(t, out, `"favouriteQuote":"curiouser_and_curiouser"`)
	assert.NotContains(t, out, "first_name")
}

func TestFetch_Raw(t *testing.T) {
	ctx, stdout := newAPIContext(t, "")

	require.NoError(t, (&FetchCmd{Raw: true, Compact: true}).Run(ctx))

	assert.Equal(t, mockapi.ProfileJSON+"\n", stdout.String())
}

func TestFetch_NotFound(t *testing.T) {
	ctx, _ := newAPIContext(t, "")

	err := (&FetchCmd{Path: "/users/2"}).Run(ctx)
	require.Error(t, err)
	assert.Equal(t, "Request error: GET /users/2 failed (HTTP 404)", errors.UserFriendlyError(err))
}

func TestSubmit(t *testing.T) {
	ctx, stdout := newAPIContext(t, `{"firstName": "Bob", "homeAddress": {"streetName": "Looking Glass Lane"}}`)

	require.NoError(t, (&SubmitCmd{Compact: true}).Run(ctx))

	assert.Equal(t,
		`{"firstName":"Bob","homeAddress":{"streetName":"Looking Glass Lane"},"id":101,"createdAt":"2024-03-01T12:00:00Z"}`+"\n",
		stdout.String())
}

func TestSubmit_RawIsRejectedByAPI(t *testing.T) {
	ctx, _ := newAPIContext(t, `{"firstName": "Bob"}`)

	err := (&SubmitCmd{Raw: true}).Run(ctx)
	require.Error(t, err)
	assert.Equal(t, "Request error: POST /users failed (HTTP 422)", errors.UserFriendlyError(err))
}

func TestSubmit_RequiresObject(t *testing.T) {
	ctx, _ := newAPIContext(t, `["firstName"]`)

	err := (&SubmitCmd{}).Run(ctx)
	require.Error(t, err)
	assert.Equal(t, "Input error: expected a JSON object, got array", errors.UserFriendlyError(err))
}

func TestServe(t *testing.T) {
	ctx, _ := newTestContext(t, "")
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(runCtx, ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "ok\n", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancellation")
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, isTerminal(strings.NewReader("")))

	f, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.False(t, isTerminal(f))
}
