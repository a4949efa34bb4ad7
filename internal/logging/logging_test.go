package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level, format string
		want          zapcore.Level
	}{
		{"debug", "console", zapcore.DebugLevel},
		{"WARN", "json", zapcore.WarnLevel},
		{" error ", "json", zapcore.ErrorLevel},
		{"", "console", zapcore.InfoLevel},
		{"chatty", "json", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		logger, err := New(tt.level, tt.format)
		if err != nil {
			t.Fatalf("New(%q, %q): %v", tt.level, tt.format, err)
		}
		if got := logger.Level(); got != tt.want {
			t.Errorf("New(%q).Level() = %v, want %v", tt.level, got, tt.want)
		}
	}
}
