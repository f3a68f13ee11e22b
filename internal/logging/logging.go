// Package logging builds the slog handler used by the command-line tools.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// Output formats accepted by New.
const (
	FormatAuto   = "auto"
	FormatPretty = "pretty"
	FormatJSON   = "json"
)

// ParseLevel maps debug/info/warn/error to a slog level. Anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a logger writing to w.
// With FormatAuto (or an empty format) the output is colorized when w is a
// terminal and JSON otherwise.
func New(format, level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)

	pretty := format == FormatPretty
	if format == "" || format == FormatAuto {
		pretty = isTerminal(w)
	}

	if pretty {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			TimeFormat: time.TimeOnly,
			NoColor:    !isTerminal(w),
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Fingerprint identifies a secret in logs without revealing it.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	return strconv.FormatUint(xxhash.Sum64String(secret), 16)
}

// CredentialAttr is the attribute logged in place of a credential.
func CredentialAttr(credential string) slog.Attr {
	return slog.String("credential_fp", Fingerprint(credential))
}
