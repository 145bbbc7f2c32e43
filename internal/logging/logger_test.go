package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitializeSilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("logger enabled with no level configured")
	}
}

func TestInitializeFromEnv(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "warn")
	if err := InitializeFromEnv(); err != nil {
		t.Fatalf("InitializeFromEnv() error = %v", err)
	}
	core := GetLogger().Core()
	if core.Enabled(zapcore.InfoLevel) || !core.Enabled(zapcore.WarnLevel) {
		t.Error("logger level is not warn")
	}
	SetLogger(zap.NewNop())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDeviceFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(zap.NewNop())

	ForDevice("DUE:1234").Info("hello")
	LogConnection("DUE:1234", "connected")
	LogFrame("DUE:1234", "tx", []byte{0xF7, 0xB8, 0x01, 0x00})

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for _, e := range entries {
		if e.ContextMap()["device"] != "DUE:1234" {
			t.Errorf("entry %q device = %v, want DUE:1234", e.Message, e.ContextMap()["device"])
		}
	}
	if got := entries[2].ContextMap()["hex"]; got != "f7b80100" {
		t.Errorf("frame hex = %v, want f7b80100", got)
	}
}

func TestLogFrameSkippedAboveDebug(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	defer SetLogger(zap.NewNop())

	LogFrame("x", "rx", []byte{0x01})
	if logs.Len() != 0 {
		t.Errorf("got %d entries at info level, want 0", logs.Len())
	}
}

func TestHexDumpTruncates(t *testing.T) {
	if got := hexDump(make([]byte, 300)); len(got) != 512+3 {
		t.Errorf("len(hexDump(300 bytes)) = %d, want %d", len(got), 515)
	}
	if got := asciiDump([]byte("ab\x00")); got != "ab." {
		t.Errorf("asciiDump() = %q, want %q", got, "ab.")
	}
}
