package log

import (
	"sync"
	"testing"
)

type testLogger struct {
	mu      sync.Mutex
	entries []string
	fields  []map[string]any
}

func (l *testLogger) record(level string, fields map[string]any, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+":"+msg)
	l.fields = append(l.fields, fields)
}

func (l *testLogger) Info(f map[string]any, msg string)  { l.record("INFO", f, msg) }
func (l *testLogger) Error(f map[string]any, msg string) { l.record("ERROR", f, msg) }
func (l *testLogger) Debug(f map[string]any, msg string) { l.record("DEBUG", f, msg) }
func (l *testLogger) Warn(f map[string]any, msg string)  { l.record("WARN", f, msg) }
func (l *testLogger) Panic(map[string]any, string)       {}
func (l *testLogger) Fatal(map[string]any, string)       {}

func TestActualZapLogger(t *testing.T) {
	Debug(map[string]any{
		"host":  "ads.example.com",
		"rules": 42,
		"block": true,
	}, "test debug")
	Info(nil, "test info")
	Warn(nil, "test warn")
	Error(nil, "test error")
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic, but none occurred")
		}
	}()
	Panic(nil, "test panic")
}

func TestSetLoggerAndGlobalLogging(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)
	tlog := &testLogger{}
	SetLogger(tlog)

	Info(nil, "info msg")
	Error(nil, "error msg")
	Debug(nil, "debug msg")
	Warn(nil, "warn msg")

	expected := []string{
		"INFO:info msg",
		"ERROR:error msg",
		"DEBUG:debug msg",
		"WARN:warn msg",
	}

	if len(tlog.entries) != len(expected) {
		t.Fatalf("expected %d log entries, got %d", len(expected), len(tlog.entries))
	}
	for i, msg := range expected {
		if tlog.entries[i] != msg {
			t.Errorf("expected log[%d] = %q, got %q", i, msg, tlog.entries[i])
		}
	}
}

func TestConfigure(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)

	tests := []struct {
		env, level string
		wantErr    bool
	}{
		{"dev", "debug", false},
		{"prod", "info", false},
		{"prod", "WARN", false},
		{"dev", "notalevel", true},
	}
	for _, tt := range tests {
		err := Configure(tt.env, tt.level)
		if (err != nil) != tt.wantErr {
			t.Errorf("Configure(%q, %q) err=%v, wantErr=%v", tt.env, tt.level, err, tt.wantErr)
		}
	}
}

func TestWith_MergesFields(t *testing.T) {
	tlog := &testLogger{}
	l := With(tlog, map[string]any{"component": "updater", "source": "base"})

	l.Info(map[string]any{"source": "general"}, "merged")
	l.Warn(nil, "base only")

	if len(tlog.fields) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(tlog.fields))
	}
	if got := tlog.fields[0]["source"]; got != "general" {
		t.Errorf("call-site field should win, got %v", got)
	}
	if got := tlog.fields[0]["component"]; got != "updater" {
		t.Errorf("component=%v want updater", got)
	}
	if got := tlog.fields[1]["source"]; got != "base" {
		t.Errorf("base field missing, got %v", got)
	}
}

func TestNoopLogger_TestAllLevels(t *testing.T) {
	l := NewNoopLogger()
	l.Debug(nil, "debug message")
	l.Info(nil, "info message")
	l.Warn(nil, "warn message")
	l.Error(nil, "error message")
	l.Panic(nil, "panic message")
	l.Fatal(nil, "fatal message")
}
