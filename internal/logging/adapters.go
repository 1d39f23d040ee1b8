package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// StdoutAdapter writes log entries to standard output, either as JSON lines
// or a compact human-readable text format.
type StdoutAdapter struct {
	name   string
	format string
	mu     sync.Mutex
}

func NewStdoutAdapter(name, format string) *StdoutAdapter {
	if format == "" {
		format = "json"
	}
	return &StdoutAdapter{name: name, format: format}
}

func (a *StdoutAdapter) Name() string { return a.name }

func (a *StdoutAdapter) Write(entry *LogEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.format == "text" {
		_, err := fmt.Fprintf(os.Stdout, "[%s] %s %s %v\n",
			entry.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
			entry.Level.String(), entry.Message, entry.Fields)
		return err
	}

	payload := map[string]interface{}{
		"level":     entry.Level.String(),
		"message":   entry.Message,
		"timestamp": entry.Timestamp,
	}
	for k, v := range entry.Fields {
		payload[k] = v
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}

func (a *StdoutAdapter) Close() error { return nil }

// FileAdapter appends newline-delimited JSON log entries to a file.
type FileAdapter struct {
	name string
	path string
	f    *os.File
	mu   sync.Mutex
}

func NewFileAdapter(name, path string) (*FileAdapter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return &FileAdapter{name: name, path: path, f: f}, nil
}

func (a *FileAdapter) Name() string { return a.name }

func (a *FileAdapter) Write(entry *LogEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	payload := map[string]interface{}{
		"level":     entry.Level.String(),
		"message":   entry.Message,
		"timestamp": entry.Timestamp,
	}
	for k, v := range entry.Fields {
		payload[k] = v
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = a.f.Write(append(data, '\n'))
	return err
}

func (a *FileAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.f.Close()
}
