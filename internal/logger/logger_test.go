package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
)

// TestLoggerInitialization tests that logger can be initialized with different log levels
func TestLoggerInitialization(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  logrus.Level
	}{
		{
			name:  "Valid DEBUG level",
			level: "DEBUG",
			want:  logrus.DebugLevel,
		},
		{
			name:  "Valid INFO level",
			level: "INFO",
			want:  logrus.InfoLevel,
		},
		{
			name:  "Valid WARN level",
			level: "WARN",
			want:  logrus.WarnLevel,
		},
		{
			name:  "Valid ERROR level",
			level: "ERROR",
			want:  logrus.ErrorLevel,
		},
		{
			name:  "Invalid level defaults to INFO",
			level: "INVALID",
			want:  logrus.InfoLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Init(tt.level)
			if GetLogger().Level != tt.want {
				t.Errorf("Expected level %v, got %v", tt.want, GetLogger().Level)
			}
		})
	}
}

// TestLoggerWithFields tests that logger can add contextual fields
func TestLoggerWithFields(t *testing.T) {
	Init("INFO")

	t.Run("WithField method", func(t *testing.T) {
		entry := WithField("server", "echo")
		if entry == nil {
			t.Errorf("WithField should return a non-nil entry")
		}
	})

	t.Run("WithFields method", func(t *testing.T) {
		entry := WithFields(logrus.Fields{
			"server": "echo",
			"code":   0,
		})
		if entry == nil {
			t.Errorf("WithFields should return a non-nil entry")
		}
	})
}
