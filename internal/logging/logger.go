package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"

	"jobsift/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string
	OutputPaths []string
	// FilePath, when set, receives a JSON copy of every record regardless
	// of Format.
	FilePath    string
	Development bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	outputWriter, colorize, err := openWriters(defaultSlice(opts.OutputPaths, []string{"stdout"}))
	if err != nil {
		return nil, err
	}

	addSource := opts.Development || level <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = newJSONHandler(outputWriter, levelVar, addSource)
	case "console":
		handler = newPrettyHandler(outputWriter, levelVar, addSource, colorize)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	if path := strings.TrimSpace(opts.FilePath); path != "" {
		file, err := openLogFile(path)
		if err != nil {
			return nil, err
		}
		handler = newTeeHandler(handler, newJSONHandler(file, levelVar, addSource))
	}

	return slog.New(handler), nil
}

// NewFromConfig creates a logger using application config defaults.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}

	opts := Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout"},
	}
	if cfg.Paths.LogDir != "" {
		if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		opts.FilePath = filepath.Join(cfg.Paths.LogDir, "jobsift.log")
	}
	return New(opts)
}

func parseLevel(level string) slog.Level {
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

func defaultSlice(value []string, fallback []string) []string {
	if len(value) == 0 {
		return append([]string(nil), fallback...)
	}
	return append([]string(nil), value...)
}

// openWriters resolves output targets. Colour is only enabled when every
// target is a terminal.
func openWriters(outputPaths []string) (io.Writer, bool, error) {
	seen := map[string]struct{}{}
	var writers []io.Writer
	colorize := true

	for _, path := range outputPaths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}

		switch trimmed {
		case "stdout":
			writers = append(writers, os.Stdout)
			colorize = colorize && isTerminal(os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
			colorize = colorize && isTerminal(os.Stderr)
		default:
			file, err := openLogFile(trimmed)
			if err != nil {
				return nil, false, err
			}
			writers = append(writers, file)
			colorize = false
		}
	}

	switch len(writers) {
	case 0:
		return os.Stdout, isTerminal(os.Stdout), nil
	case 1:
		return writers[0], colorize, nil
	default:
		return io.MultiWriter(writers...), colorize, nil
	}
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func openLogFile(path string) (*os.File, error) {
	if err := ensureLogDir(path); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
