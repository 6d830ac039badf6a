package logging

import (
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex

	// Overrides set by the CLI after flag parsing. They apply to every
	// registered logger and to loggers created afterwards.
	levelOverride  *logrus.Level
	forceJSON      bool
	outputOverride io.Writer
)

// NewLogger creates and returns a pre-configured logger for a specific component.
// It uses a singleton pattern per component to avoid re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	logger := logrus.New()

	// Configure Level
	levelStr := "info"
	if os.Getenv("RASCAL_LOG_LEVEL") != "" {
		levelStr = os.Getenv("RASCAL_LOG_LEVEL")
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	if levelOverride != nil {
		level = *levelOverride
	}
	logger.SetLevel(level)

	if os.Getenv("RASCAL_LOG_CALLER") == "true" {
		logger.SetReportCaller(true)
	}

	// Structured JSON when stderr is not an interactive terminal (piped, CI),
	// human-readable text otherwise.
	interactive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	if interactive && !forceJSON {
		logger.SetFormatter(&TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if outputOverride != nil {
		logger.SetOutput(outputOverride)
	} else {
		logger.SetOutput(os.Stderr)
	}

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

// SetLevel overrides the level of every component logger, registered or
// future. Used by the CLI's --verbose flag after flag parsing.
func SetLevel(level logrus.Level) {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	levelOverride = &level
	for _, entry := range loggers {
		entry.Logger.SetLevel(level)
	}
}

// UseJSONFormatter switches every component logger to JSON output
// regardless of terminal detection. Used by the CLI's --json flag.
func UseJSONFormatter() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	forceJSON = true
	for _, entry := range loggers {
		entry.Logger.SetFormatter(&logrus.JSONFormatter{})
	}
}

// SetOutput redirects every component logger. Tests use this to capture or
// silence output.
func SetOutput(w io.Writer) {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	outputOverride = w
	for _, entry := range loggers {
		entry.Logger.SetOutput(w)
	}
}
