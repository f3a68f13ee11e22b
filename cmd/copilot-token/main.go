// Command copilot-token exchanges a credential for a session token and prints
// the full token descriptor as JSON.
//
//	copilot-token <credential>
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"secondpilot/config"
	"secondpilot/internal/copilot"
	"secondpilot/internal/httpclient"
	"secondpilot/internal/logging"
	"secondpilot/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("copilot-token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	versionFlag := fs.Bool("version", false, "Print version information")
	configPath := fs.String("config", "", "Path to a YAML config file (default: config.yaml if present)")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: copilot-token [flags] <credential>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *versionFlag {
		fmt.Fprintln(stdout, version.Info())
		return 0
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	credential := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "failed to load config:", err)
		return 1
	}

	logger := logging.New(cfg.Logging.Format, cfg.Logging.Level, stderr)

	client := copilot.New(credential, copilot.Options{
		TokenURL:        cfg.Token.URL,
		TokenUserAgent:  cfg.Token.UserAgent,
		TokenAuthScheme: cfg.Token.AuthScheme,
		HTTPClient:      httpclient.NewHTTPClient(cfg.HTTP.ClientConfig()),
	})

	logger.Debug("fetching token", logging.CredentialAttr(credential))
	resp, err := client.FetchToken(ctx)
	if err != nil {
		logger.Error("token fetch failed", "error", err, logging.CredentialAttr(credential))
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		logger.Error("failed to write token", "error", err)
		return 1
	}
	return 0
}
