package logger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewProduction(t *testing.T) {
	logger, err := NewProduction()
	if err != nil {
		t.Fatalf("NewProduction() error = %v", err)
	}
	if !logger.Core().Enabled(zap.InfoLevel) {
		t.Error("production logger should enable info")
	}
	if logger.Core().Enabled(zap.DebugLevel) {
		t.Error("production logger should not enable debug")
	}
}

func TestNewWithConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{"nil config", nil, true},
		{"defaults", &Config{}, false},
		{"console debug", &Config{Level: "debug", Format: "console"}, false},
		{"development", &Config{Level: "warn", Development: true}, false},
		{"bad level", &Config{Level: "loud"}, true},
		{"bad format", &Config{Format: "xml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewWithConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewWithConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Fatal("NewWithConfig() returned nil logger")
			}
		})
	}
}

func TestNewWithConfigWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexer.log")
	logger, err := NewWithConfig(&Config{
		Level:         "debug",
		OutputPaths:   []string{path},
		InitialFields: map[string]interface{}{"node_id": "node-1"},
	})
	if err != nil {
		t.Fatalf("NewWithConfig() error = %v", err)
	}

	WithChain(WithComponent(logger, "host"), "ethereum").Debug("window processed", zap.Uint64("from", 801))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}

	want := map[string]interface{}{
		"msg":       "window processed",
		"component": "host",
		"chain":     "ethereum",
		"node_id":   "node-1",
		"from":      float64(801),
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("entry[%q] = %v, want %v", k, entry[k], v)
		}
	}
}

func TestContextLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	ctx := WithLogger(context.Background(), logger.With(zap.String("handler", "historical")))
	FromContext(ctx, nil).Info("invoked")

	if logs.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", logs.Len())
	}
	if got := logs.All()[0].ContextMap()["handler"]; got != "historical" {
		t.Errorf("handler field = %v", got)
	}
}

func TestContextLoggerFallback(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	fallback := zap.New(core)

	FromContext(context.Background(), fallback).Info("fallback")
	if logs.Len() != 1 {
		t.Errorf("expected fallback logger to be used")
	}

	if FromContext(context.Background(), nil) == nil {
		t.Error("FromContext should never return nil")
	}
}
