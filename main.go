package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/MichaelAJay/go-logger"
	"github.com/alecthomas/kong"
	"github.com/mcncl/keycase/internal/client"
	"github.com/mcncl/keycase/internal/config"
	"github.com/mcncl/keycase/internal/errors"
	"github.com/mcncl/keycase/internal/keycase"
	"github.com/mcncl/keycase/internal/middleware"
	"github.com/mcncl/keycase/internal/mockapi"
	"github.com/mcncl/keycase/internal/models"
	"github.com/mcncl/keycase/internal/parser"
	"github.com/mcncl/keycase/internal/store"
	"github.com/mcncl/keycase/internal/transcoder"
)

// CLI defines the command-line interface
var CLI struct {
	Config  string           `help:"Path to config file. Defaults to .keycase.yml in the working directory or a parent." short:"c" type:"path"`
	BaseURL string           `help:"Override the API base URL." name:"base-url"`
	Debug   bool             `help:"Enable debug logging." short:"d"`
	Version kong.VersionFlag `help:"Show version information." short:"v"`

	Convert ConvertCmd `cmd:"" default:"withargs" help:"Convert the keys of a JSON document (default)."`
	Fetch   FetchCmd   `cmd:"" help:"Fetch the profile from the API and print it with camelCase keys."`
	Submit  SubmitCmd  `cmd:"" help:"Post a camelCase JSON document to the API as snake_case."`
	Serve   ServeCmd   `cmd:"" help:"Run the mock snake_case API."`
}

// Context holds the runtime context
type Context struct {
	Debug  bool
	Config *config.Config
	Logger logger.Logger
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Version information
const (
	Version = "0.1.0"
)

func main() {
	parser := kong.Must(&CLI,
		kong.Name("keycase"),
		kong.Description("Convert JSON keys between camelCase and snake_case, locally or at an HTTP API boundary"),
		kong.UsageOnError(),
		kong.Vars{"version": fmt.Sprintf("keycase version %s", Version)},
	)

	kctx, err := parser.Parse(os.Args[1:])
	if err != nil {
		// Usage has already been shown by kong.UsageOnError()
		parser.FatalIfErrorf(err)
	}

	// With no arguments at all, fall back to interactive conversion
	if len(os.Args) == 1 {
		CLI.Convert.Interactive = true
	}

	appCtx, err := newContext()
	if err == nil {
		err = kctx.Run(appCtx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", errors.UserFriendlyError(err))
		fmt.Fprintf(os.Stderr, "\nFor help, run: keycase --help\n")
		os.Exit(1)
	}
}

// newContext loads configuration and builds the logger
func newContext() (*Context, error) {
	configPath := CLI.Config
	if configPath == "" {
		configPath = config.FindConfigFile()
	}

	cfg, err := config.LoadConfigWithCLI(configPath, CLI.BaseURL, CLI.Debug)
	if err != nil {
		return nil, errors.NewConfigError(err.Error(), err)
	}
	log, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		return nil, errors.NewConfigError(err.Error(), err)
	}
	if configPath != "" {
		log.Debug("Loaded config", logger.Field{Key: "path", Value: configPath})
	}

	return &Context{
		Debug:  CLI.Debug,
		Config: cfg,
		Logger: log,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}, nil
}

// ConvertCmd rewrites the keys of a local JSON document
type ConvertCmd struct {
	Input       string `help:"Path to input JSON file. If not specified, reads from stdin." short:"i" type:"path"`
	Output      string `help:"Path to output JSON file. If not specified, writes to stdout." short:"o" type:"path"`
	To          string `help:"Target key case: camel, snake, kebab or pascal." short:"t" default:"camel"`
	Shallow     bool   `help:"Only rewrite top-level keys." short:"s"`
	Compact     bool   `help:"Write compact JSON instead of indented JSON."`
	Interactive bool   `help:"Run in interactive mode, allowing direct JSON input with Ctrl+D to process." short:"I"`
}

// Run executes the conversion
func (c *ConvertCmd) Run(ctx *Context) error {
	target, err := keycase.ParseConvention(c.To)
	if err != nil {
		return errors.NewTranscodeError(fmt.Sprintf("unknown target case '%s'", c.To), err)
	}

	// 1. Parse JSON input
	root, err := readInput(ctx, c.Input, c.Interactive)
	if err != nil {
		return err
	}

	// 2. Rewrite keys
	tc, err := newTranscoder(ctx)
	if err != nil {
		return err
	}
	converted := tc.Transcode(root, target, !c.Shallow)
	ctx.Logger.Debug("Converted keys",
		logger.Field{Key: "target", Value: target.String()},
		logger.Field{Key: "deep", Value: !c.Shallow})

	// 3. Output the result
	return writeValue(ctx, converted, c.Output, !c.Compact)
}

// FetchCmd runs the fetch action against the API
type FetchCmd struct {
	Path    string `arg:"" optional:"" help:"API path to fetch. Defaults to the configured profile path."`
	Raw     bool   `help:"Print the response keys exactly as the API sent them."`
	Compact bool   `help:"Write compact JSON instead of indented JSON."`
}

// Run executes the fetch
func (f *FetchCmd) Run(ctx *Context) error {
	endpoints := store.Endpoints{Profile: ctx.Config.API.ProfilePath, Submit: ctx.Config.API.SubmitPath}
	if f.Path != "" {
		endpoints.Profile = f.Path
	}
	s, err := newStore(ctx, endpoints, !f.Raw)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	profile, err := s.FetchProfile(runCtx)
	if err != nil {
		return err
	}
	return writeValue(ctx, profile, "", !f.Compact)
}

// SubmitCmd runs the submit action against the API
type SubmitCmd struct {
	Input   string `help:"Path to input JSON file. If not specified, reads from stdin." short:"i" type:"path"`
	Raw     bool   `help:"Send and print keys without converting them."`
	Compact bool   `help:"Write compact JSON instead of indented JSON."`
}

// Run executes the submit
func (s *SubmitCmd) Run(ctx *Context) error {
	body, err := readInput(ctx, s.Input, false)
	if err != nil {
		return err
	}
	if body.Kind() != models.KindObject {
		return errors.NewInputError(fmt.Sprintf("expected a JSON object, got %s", body.Kind()), errors.ErrUnsupportedPayload)
	}

	endpoints := store.Endpoints{Profile: ctx.Config.API.ProfilePath, Submit: ctx.Config.API.SubmitPath}
	st, err := newStore(ctx, endpoints, !s.Raw)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := st.SubmitProfile(runCtx, body)
	if err != nil {
		return err
	}
	return writeValue(ctx, result, "", !s.Compact)
}

// ServeCmd runs the mock API
type ServeCmd struct {
	Addr string `help:"Address to listen on. Defaults to serve.addr from the config."`
}

// Run starts the server and blocks until interrupted
func (s *ServeCmd) Run(ctx *Context) error {
	addr := s.Addr
	if addr == "" {
		addr = ctx.Config.Serve.Addr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.NewOutputError(fmt.Sprintf("failed to listen on %s", addr), err)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return serve(runCtx, ctx, ln)
}

// serve runs the mock API on ln until runCtx is done
func serve(runCtx context.Context, ctx *Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           mockapi.New(mockapi.WithLogger(ctx.Logger)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	ctx.Logger.Info("Mock API listening", logger.Field{Key: "addr", Value: ln.Addr().String()})

	select {
	case err := <-errCh:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return errors.NewOutputError("mock API stopped", err)
		}
		return nil
	case <-runCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.NewOutputError("failed to shut down mock API", err)
	}
	ctx.Logger.Info("Mock API stopped")
	return nil
}

// newTranscoder builds a transcoder from the configured key mappings
func newTranscoder(ctx *Context) (*transcoder.Transcoder, error) {
	mappings, err := ctx.Config.KeyMappings()
	if err != nil {
		return nil, errors.NewConfigError("invalid key mappings", err)
	}
	return transcoder.New(transcoder.Options{KeyMappings: mappings, Logger: ctx.Logger}), nil
}

// newStore wires the client, middleware stack and store for the API commands
func newStore(ctx *Context, endpoints store.Endpoints, transform bool) (*store.Store, error) {
	c := client.New(ctx.Config.API.BaseURL,
		client.WithTimeout(ctx.Config.API.Timeout),
		client.WithLogger(ctx.Logger),
	)

	stack := []client.Middleware{middleware.NewLoggingMiddleware(ctx.Logger)}
	if transform {
		tc, err := newTranscoder(ctx)
		if err != nil {
			return nil, err
		}
		stack = append(stack, middleware.NewKeyCaseMiddleware(middleware.KeyCaseOptions{
			Transcoder: tc,
			Outbound:   ctx.Config.Transcode.Outbound,
			Inbound:    ctx.Config.Transcode.Inbound,
			Deep:       ctx.Config.Transcode.Deep,
		}))
	}

	return store.New(c, endpoints, middleware.Compose(stack...), store.WithLogger(ctx.Logger)), nil
}

// readInput reads JSON from file, piped stdin or interactive stdin
func readInput(ctx *Context, path string, interactive bool) (models.Value, error) {
	if path != "" {
		return parser.ParseFile(path)
	}

	if isTerminal(ctx.Stdin) {
		if interactive {
			return readInteractiveInput(ctx)
		}
		// No data provided on stdin and not in interactive mode
		return models.Value{}, errors.NewInputError("no input provided", errors.ErrNoInput)
	}

	jsonData, err := io.ReadAll(ctx.Stdin)
	if err != nil {
		return models.Value{}, errors.NewInputError("failed to read from stdin", err)
	}
	if len(jsonData) == 0 {
		return models.Value{}, errors.NewInputError("empty input received from stdin", errors.ErrEmptyInput)
	}

	return parser.ParseBytes(jsonData)
}

// readInteractiveInput provides an interactive mode for users to paste JSON
// and signal completion with Ctrl+D (EOF)
func readInteractiveInput(ctx *Context) (models.Value, error) {
	fmt.Fprintln(ctx.Stderr, "keycase Interactive Mode")
	fmt.Fprintln(ctx.Stderr, "Paste your JSON below and press Ctrl+D (or Ctrl+Z on Windows) when done:")

	reader := bufio.NewReader(ctx.Stdin)
	var jsonBuilder strings.Builder

	for {
		line, err := reader.ReadString('\n')
		jsonBuilder.WriteString(line)
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.Value{}, errors.NewInputError("error reading input", err)
		}
	}

	jsonData := jsonBuilder.String()
	if strings.TrimSpace(jsonData) == "" {
		return models.Value{}, errors.NewInputError("empty input received", errors.ErrEmptyInput)
	}

	fmt.Fprintln(ctx.Stderr, "\nProcessing JSON...")
	return parser.ParseString(jsonData)
}

// isTerminal reports whether r is an interactive terminal
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// writeValue writes v to a file or stdout
func writeValue(ctx *Context, v models.Value, outputPath string, indent bool) error {
	data, err := parser.Encode(v, indent)
	if err != nil {
		return err
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, append(data, '\n'), 0644); err != nil {
			return errors.NewOutputError(fmt.Sprintf("failed to write to file '%s'", outputPath), err)
		}
		fmt.Fprintf(ctx.Stderr, "Converted JSON written to %s\n", outputPath)
		return nil
	}

	if _, err := fmt.Fprintln(ctx.Stdout, string(data)); err != nil {
		return errors.NewOutputError("failed to write to stdout", err)
	}
	return nil
}
