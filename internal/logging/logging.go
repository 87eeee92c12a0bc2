// Package logging provides the logger interface injected into every engine
// component, backed by zerolog writing to both the terminal and a per-run
// log file under __log__/ in the backup repo.
package logging

// Logger is the only logging surface the engine packages see.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Nop discards everything. Useful in tests.
type Nop struct{}

func (Nop) Debug(msg string, args ...any) {}
func (Nop) Info(msg string, args ...any)  {}
func (Nop) Warn(msg string, args ...any)  {}
func (Nop) Error(msg string, args ...any) {}
