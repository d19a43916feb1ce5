package simlog

import (
	"testing"

	"go.uber.org/zap"
)

func TestLogger_NilIsSilentNoOp(t *testing.T) {
	var l *Logger
	l.StallWarning(0, 10, 5)
	l.RefreshStarvation(100, 50)
	l.Infow("ignored")
	if err := l.Sync(); err != nil {
		t.Fatalf("nil logger Sync must be a no-op, got %v", err)
	}
}

func TestLogger_WrappingNilSugaredLoggerIsNoOp(t *testing.T) {
	l := New(nil)
	l.StallWarning(1, 1, 1)
}

func TestLogger_WrapsRealLogger(t *testing.T) {
	z := zap.NewNop()
	l := New(z.Sugar())
	l.StallWarning(2, 20, 10)
	l.RefreshStarvation(200, 100)
	l.Infow("run complete", "cycles", 1000)
	if err := l.Sync(); err != nil {
		t.Fatalf("Sync on a nop logger should not error, got %v", err)
	}
}
