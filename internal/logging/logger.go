// Package logging provides the leveled console logger used across the
// tool. It is backed by zerolog: the console gets colored, human-readable
// lines (errors on stderr), and an optional log file gets JSON lines.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/backmassage/planemux/internal/config"
	"github.com/backmassage/planemux/internal/term"
)

const (
	timeFormat = "2006-01-02 15:04:05"
	tagField   = "tag"
)

// Logger provides leveled, optionally colored logging with an optional
// file sink. Child loggers from [Logger.With] share the parent's sinks.
type Logger struct {
	zl   zerolog.Logger
	file *os.File
}

// NewLogger configures terminal colors from cfg and opens cfg.LogFile when
// set. Call Close when done.
func NewLogger(cfg *config.Config) (*Logger, error) {
	term.Configure(cfg.ColorMode)

	var file *os.File
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		file = f
	}

	var sink io.Writer
	if file != nil {
		sink = file
	}
	l := newLogger(os.Stdout, os.Stderr, sink, cfg.Verbose)
	l.file = file
	return l, nil
}

// newLogger builds a Logger writing console lines to stdout (errors to
// stderr) and JSON lines to sink when sink is non-nil.
func newLogger(stdout, stderr, sink io.Writer, verbose bool) *Logger {
	var w io.Writer = splitWriter{out: console(stdout), err: console(stderr)}
	if sink != nil {
		w = zerolog.MultiLevelWriter(w, sink)
	}
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// console formats JSON events as "<time> [LEVEL] message key=value".
func console(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    true,
		TimeFormat: timeFormat,
		PartsOrder: []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName},
		FormatPrepare: func(evt map[string]interface{}) error {
			if tag, ok := evt[tagField]; ok {
				evt[zerolog.LevelFieldName] = tag
				delete(evt, tagField)
			}
			return nil
		},
		FormatLevel: formatLevel,
	}
}

// formatLevel renders a level or tag as a colored "[LEVEL]" label.
func formatLevel(v interface{}) string {
	name, _ := v.(string)
	label := strings.ToUpper(name)
	var color string
	switch label {
	case "INFO":
		color = term.Blue
	case "SUCCESS":
		color = term.Green
	case "WARN":
		color = term.Yellow
	case "ERROR", "FATAL":
		color = term.Red
	case "RENDER":
		color = term.Magenta
	case "DEBUG":
		color = term.Cyan
	}
	return term.Paint(color, "["+label+"]")
}

// splitWriter sends error-and-above events to err and everything else to out.
type splitWriter struct {
	out, err io.Writer
}

func (s splitWriter) Write(p []byte) (int, error) { return s.out.Write(p) }

func (s splitWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l >= zerolog.ErrorLevel && l < zerolog.NoLevel {
		return s.err.Write(p)
	}
	return s.out.Write(p)
}

// Close closes the log file if one was opened.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// With returns a child logger that adds key=value to every line.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, value).Logger()}
}

// Info logs at INFO level (blue).
func (l *Logger) Info(format string, args ...interface{}) {
	l.zl.Info().Msg(fmt.Sprintf(format, args...))
}

// Success logs at INFO level under a SUCCESS label (green).
func (l *Logger) Success(format string, args ...interface{}) {
	l.zl.Info().Str(tagField, "success").Msg(fmt.Sprintf(format, args...))
}

// Warn logs at WARN level (yellow).
func (l *Logger) Warn(format string, args ...interface{}) {
	l.zl.Warn().Msg(fmt.Sprintf(format, args...))
}

// Error logs at ERROR level (red) to stderr.
func (l *Logger) Error(format string, args ...interface{}) {
	l.zl.Error().Msg(fmt.Sprintf(format, args...))
}

// Render logs an external command line at INFO level under a RENDER label.
func (l *Logger) Render(format string, args ...interface{}) {
	l.zl.Info().Str(tagField, "render").Msg(fmt.Sprintf(format, args...))
}

// Debug logs at DEBUG level (cyan). Dropped unless the logger is verbose.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.zl.Debug().Msg(fmt.Sprintf(format, args...))
}
