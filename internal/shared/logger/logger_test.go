package logger

import (
	"testing"

	"go.uber.org/zap"
)

func TestNewLevels(t *testing.T) {
	l, err := New("market-service", "prod", "warn")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if l.Core().Enabled(zap.InfoLevel) {
		t.Fatalf("info should be disabled at warn level")
	}
	if !l.Core().Enabled(zap.WarnLevel) {
		t.Fatalf("warn should be enabled")
	}

	dev, err := New("market-service", "local", "")
	if err != nil {
		t.Fatalf("new dev logger: %v", err)
	}
	if !dev.Core().Enabled(zap.DebugLevel) {
		t.Fatalf("local env should log debug")
	}

	if _, err := New("market-service", "prod", "loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
