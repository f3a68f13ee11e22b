// Command secondpilot sends one prompt to the completion service and prints
// the assembled answer.
//
//	secondpilot [flags] [prompt...]
//
// Without prompt arguments the prompt is read from standard input.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/term"

	"secondpilot/config"
	"secondpilot/internal/copilot"
	"secondpilot/internal/core"
	"secondpilot/internal/httpclient"
	"secondpilot/internal/logging"
	"secondpilot/internal/observability"
	"secondpilot/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	configPath  string
	metricsFile string
	system      string
	model       string
	temperature float64
	topP        int
	n           int
	showVersion bool
}

func parseFlags(args []string, stderr io.Writer) (*options, *flag.FlagSet, error) {
	opts := &options{}
	fs := flag.NewFlagSet("secondpilot", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Path to a YAML config file (default: config.yaml if present)")
	fs.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	fs.StringVar(&opts.system, "system", "", "System message sent before the prompt")
	fs.StringVar(&opts.model, "model", "", "Model name")
	fs.Float64Var(&opts.temperature, "temperature", float64(core.DefaultTemperature), "Sampling temperature")
	fs.IntVar(&opts.topP, "top-p", core.DefaultTopP, "Nucleus sampling parameter")
	fs.IntVar(&opts.n, "n", core.DefaultN, "Number of choices to request")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version information")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return opts, fs, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, fs, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if opts.showVersion {
		fmt.Fprintln(stdout, version.Info())
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintln(stderr, "failed to load config:", err)
		return 1
	}
	if opts.metricsFile != "" {
		cfg.Metrics.Textfile = opts.metricsFile
	}

	logger := logging.New(cfg.Logging.Format, cfg.Logging.Level, stderr)

	prompt, err := readPrompt(fs.Args(), stdin)
	if err != nil {
		logger.Error("failed to read prompt", "error", err)
		return 1
	}
	if prompt == "" {
		logger.Error("empty prompt")
		return 2
	}

	if cfg.Credential == "" {
		cfg.Credential, err = promptCredential(stdin, stderr)
		if err != nil {
			logger.Error("no credential", "error", err)
			return 1
		}
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		return 1
	}

	metrics := observability.NewPrometheusHooks()
	client := copilot.New(cfg.Credential, copilot.Options{
		TokenURL:            cfg.Token.URL,
		TokenUserAgent:      cfg.Token.UserAgent,
		TokenAuthScheme:     cfg.Token.AuthScheme,
		CompletionURL:       cfg.Completion.URL,
		CompletionUserAgent: cfg.Completion.UserAgent,
		HTTPClient:          httpclient.NewHTTPClient(cfg.HTTP.ClientConfig()),
		Hooks:               metrics,
	})

	req := buildRequest(prompt, opts, fs, cfg)
	requestID := uuid.NewString()
	ctx = core.WithRequestID(ctx, requestID)
	logger.Debug("sending query",
		"request_id", requestID,
		"model", req.Model,
		"messages", len(req.Messages),
		logging.CredentialAttr(cfg.Credential),
	)

	answer, err := client.Query(ctx, req)
	writeMetrics(logger, metrics, cfg.Metrics.Textfile)
	if err != nil {
		logger.Error("query failed", "error", err, "kind", string(core.ErrorTypeOf(err)), "request_id", requestID)
		return 1
	}

	fmt.Fprintln(stdout, answer)
	return 0
}

// buildRequest starts from the configured defaults; flags given on the command
// line win.
func buildRequest(prompt string, opts *options, fs *flag.FlagSet, cfg *config.Config) *core.CompletionRequest {
	ro := cfg.RequestOptions()
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "model":
			ro.Model = core.Ptr(opts.model)
		case "temperature":
			ro.Temperature = core.Ptr(float32(opts.temperature))
		case "top-p":
			ro.TopP = core.Ptr(opts.topP)
		case "n":
			ro.N = core.Ptr(opts.n)
		}
	})

	var messages []core.ChatMessage
	if opts.system != "" {
		messages = append(messages, core.SystemMessage(opts.system))
	}
	messages = append(messages, core.UserMessage(prompt))
	return core.NewCompletionRequest(messages, ro)
}

func readPrompt(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// promptCredential asks for the credential without echo. It only works when
// stdin is a terminal.
func promptCredential(stdin io.Reader, stderr io.Writer) (string, error) {
	f, ok := stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return "", errors.New("set GITHUB_TOKEN or credential in the config file")
	}
	fmt.Fprint(stderr, "GitHub credential: ")
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(stderr)
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func writeMetrics(logger *slog.Logger, metrics *observability.PrometheusHooks, path string) {
	if path == "" {
		return
	}
	if err := metrics.WriteTextfile(path); err != nil {
		logger.Warn("failed to write metrics", "path", path, "error", err)
	}
}
