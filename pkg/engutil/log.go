package engutil

import "fmt"

// Logger is the injectable logging collaborator. Engine packages never
// write to stdout/stderr directly or reach for a global logger — they
// accept a Logger (or run with NopLogger in tests and library callers
// that don't care).
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger discards everything. Used as the zero-value default so callers
// that don't configure logging never see a nil-pointer panic.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Warnf(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}

// PrintLogger writes to a fmt.Stringer-free io.Writer-like sink via a
// Printf-shaped func; cli/ wires this to github.com/minio/pkg/v3/console
// so CLI output stays in the console package's color/format conventions.
type PrintLogger struct {
	Printf func(format string, args ...any)
}

func (p PrintLogger) Debugf(format string, args ...any) { p.printf("DEBUG", format, args...) }
func (p PrintLogger) Infof(format string, args ...any)  { p.printf("INFO", format, args...) }
func (p PrintLogger) Warnf(format string, args ...any)  { p.printf("WARN", format, args...) }
func (p PrintLogger) Errorf(format string, args ...any) { p.printf("ERROR", format, args...) }

func (p PrintLogger) printf(level, format string, args ...any) {
	if p.Printf == nil {
		return
	}
	p.Printf("[%s] %s", level, fmt.Sprintf(format, args...))
}
