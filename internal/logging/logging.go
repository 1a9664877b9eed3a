package logging

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/term"
)

// Setup initializes the global slog logger using charmbracelet/log as the backend.
// format is "text", "json" or "auto"; auto picks text on a terminal and JSON otherwise.
func Setup(verbose bool, format string) {
	slog.SetDefault(slog.New(NewHandler(os.Stderr, verbose, format, isTerminal())))
}

// NewHandler builds the charmbracelet/log handler used by Setup.
func NewHandler(w io.Writer, verbose bool, format string, tty bool) *charmlog.Logger {
	handler := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		Prefix:          "recheck",
	})

	if verbose {
		handler.SetLevel(charmlog.DebugLevel)
	} else {
		handler.SetLevel(charmlog.InfoLevel)
	}

	switch format {
	case "json":
		handler.SetFormatter(charmlog.JSONFormatter)
	case "text":
		handler.SetFormatter(charmlog.TextFormatter)
	default:
		if !tty {
			handler.SetFormatter(charmlog.JSONFormatter)
		}
	}

	return handler
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
