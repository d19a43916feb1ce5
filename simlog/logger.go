// Package simlog provides the structured-logging affordance spec.md §7
// notes the source hardware description has no equivalent of: protocol
// stalls and refresh starvation are not errors, so they're surfaced as
// warnings rather than returned errors.
package simlog

import "go.uber.org/zap"

// Logger wraps a *zap.SugaredLogger. A nil *Logger, or one built from a nil
// *zap.SugaredLogger, is a silent no-op — every method is safe to call on
// it, so tests and library callers that don't care about diagnostics never
// need to construct one.
type Logger struct {
	s *zap.SugaredLogger
}

// New wraps an existing sugared logger. Passing nil yields a no-op Logger.
func New(s *zap.SugaredLogger) *Logger {
	return &Logger{s: s}
}

// NewProduction builds a Logger backed by zap's production configuration
// (JSON encoding, info level and above), for cmd/gramsim's default.
func NewProduction() (*Logger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return New(z.Sugar()), nil
}

func (l *Logger) enabled() bool { return l != nil && l.s != nil }

// StallWarning reports a bank held its cross-bank lock for longer than the
// configured budget (spec.md §7 error-handling note 2).
func (l *Logger) StallWarning(bank int, cycles, budget int) {
	if !l.enabled() {
		return
	}
	l.s.Warnw("bank lock held past stall budget",
		"bank", bank, "cycles_held", cycles, "budget_cycles", budget)
}

// RefreshStarvation reports that more than maxCyclesSinceRefresh cycles
// have elapsed since the last completed refresh (spec.md §7 error-handling
// note 3 / §8 property P7).
func (l *Logger) RefreshStarvation(cyclesSinceRefresh, maxCyclesSinceRefresh int) {
	if !l.enabled() {
		return
	}
	l.s.Warnw("refresh starvation budget exceeded",
		"cycles_since_refresh", cyclesSinceRefresh, "max_cycles_since_refresh", maxCyclesSinceRefresh)
}

// Infow logs a structured informational line, for cmd/gramsim's run
// summary. No-op on a nil Logger.
func (l *Logger) Infow(msg string, keysAndValues ...interface{}) {
	if !l.enabled() {
		return
	}
	l.s.Infow(msg, keysAndValues...)
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	if !l.enabled() {
		return nil
	}
	return l.s.Sync()
}
