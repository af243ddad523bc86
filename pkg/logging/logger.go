// Package logging provides logging functionality for the client's
// components. Each component gets its own log file stored in the
// application's config directory.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger provides logging functionality for a single component
// ("connection", "session", "app", ...). Each component gets its own
// log file.
type Logger struct {
	component string
	logFile   *os.File
	logger    *log.Logger
	mu        sync.Mutex
}

var (
	loggers   = make(map[string]*Logger)
	loggersMu sync.RWMutex
)

// GetLogger returns a logger instance for a specific component.
// If the logger doesn't exist, it creates a new one.
func GetLogger(component string) (*Logger, error) {
	loggersMu.RLock()
	if logger, exists := loggers[component]; exists {
		loggersMu.RUnlock()
		return logger, nil
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	// Double-check after acquiring write lock
	if logger, exists := loggers[component]; exists {
		return logger, nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	logDir := filepath.Join(configDir, "Ripple", "logs")
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFilePath := filepath.Join(logDir, component+".log")
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	// Write to both file and stdout (for development)
	multiWriter := io.MultiWriter(logFile, os.Stdout)
	logger := log.New(multiWriter, fmt.Sprintf("[%s] ", component), log.LstdFlags|log.Lmicroseconds)

	l := &Logger{
		component: component,
		logFile:   logFile,
		logger:    logger,
	}

	loggers[component] = l
	return l, nil
}

// Logf writes a log message with the given format and arguments.
func (l *Logger) Logf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logger != nil {
		l.logger.Printf(format, args...)
	}
}

// Close closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		err := l.logFile.Close()
		l.logFile = nil
		l.logger = nil

		loggersMu.Lock()
		delete(loggers, l.component)
		loggersMu.Unlock()

		return err
	}
	return nil
}

// CleanupOldLogs removes log files older than the specified number of days.
func CleanupOldLogs(days int) error {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}

	logDir := filepath.Join(configDir, "Ripple", "logs")

	entries, err := os.ReadDir(logDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Directory doesn't exist, nothing to clean
		}
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoffTime := time.Now().AddDate(0, 0, -days)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoffTime) {
			filePath := filepath.Join(logDir, entry.Name())
			if err := os.Remove(filePath); err != nil {
				log.Printf("Failed to remove old log file %s: %v", filePath, err)
			} else {
				removed++
			}
		}
	}

	if removed > 0 {
		log.Printf("Cleaned up %d old log file(s) older than %d days", removed, days)
	}

	return nil
}

// CloseAllLoggers closes all open loggers.
func CloseAllLoggers() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for component, logger := range loggers {
		logger.mu.Lock()
		if logger.logFile != nil {
			if err := logger.logFile.Close(); err != nil {
				log.Printf("Error closing logger %s: %v", component, err)
			}
			logger.logFile = nil
			logger.logger = nil
		}
		logger.mu.Unlock()
	}

	loggers = make(map[string]*Logger)
}
