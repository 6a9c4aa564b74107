// Package logging provides output formatting for gatelist.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// StderrLogger provides formatted output to stderr.
type StderrLogger struct {
	out     io.Writer
	quiet   bool
	verbose bool

	mu       sync.Mutex
	progress map[string]int // path -> last printed percent
}

// NewStderrLogger creates a new StderrLogger.
func NewStderrLogger(quiet, verbose bool) *StderrLogger {
	return NewWriterLogger(os.Stderr, quiet, verbose)
}

// NewWriterLogger creates a logger that writes to w.
func NewWriterLogger(w io.Writer, quiet, verbose bool) *StderrLogger {
	return &StderrLogger{
		out:      w,
		quiet:    quiet,
		verbose:  verbose,
		progress: make(map[string]int),
	}
}

// Discard returns a logger that prints nothing.
func Discard() *StderrLogger {
	return NewWriterLogger(io.Discard, true, false)
}

// Verbose reports whether debug output is enabled.
func (l *StderrLogger) Verbose() bool { return l.verbose && !l.quiet }

// Info logs an informational message.
func (l *StderrLogger) Info(format string, args ...interface{}) {
	if l.quiet {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.out, "[gatelist] %s\n", msg)
}

// Debug logs a debug message (only if verbose is enabled).
func (l *StderrLogger) Debug(format string, args ...interface{}) {
	if l.quiet || !l.verbose {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.out, "[gatelist] DEBUG: %s\n", msg)
}

// Warn logs a warning. Warnings are suppressed in quiet mode.
func (l *StderrLogger) Warn(format string, args ...interface{}) {
	if l.quiet {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.out, "[gatelist] Warning: %s\n", msg)
}

// Error logs an error message.
func (l *StderrLogger) Error(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.out, "[gatelist] Error: %s\n", msg)
}

// Separator prints a visual separator line.
func (l *StderrLogger) Separator() {
	if l.quiet {
		return
	}
	fmt.Fprintln(l.out, "[gatelist] ───────────────────────────────────────────────")
}

// Progress prints the completion of a file in verbose mode, at most once
// per whole percent.
func (l *StderrLogger) Progress(path string, fraction float64) {
	if l.quiet || !l.verbose {
		return
	}
	pct := int(fraction * 100)

	l.mu.Lock()
	last, seen := l.progress[path]
	if seen && pct <= last {
		l.mu.Unlock()
		return
	}
	l.progress[path] = pct
	if pct >= 100 {
		delete(l.progress, path)
	}
	l.mu.Unlock()

	fmt.Fprintf(l.out, "[gatelist] %s %3d%%\n", path, pct)
}

// FilterStart logs the start of a filtering pass.
func (l *StderrLogger) FilterStart(path, reference string, fix bool) {
	if l.quiet {
		return
	}
	mode := "check"
	if fix {
		mode = "fix"
	}
	l.Info("Filtering %s (%s) | reference: %s", path, mode, reference)
}

// FilterDone logs the outcome of a filtering pass.
func (l *StderrLogger) FilterDone(path string, matched, fixed bool, duration time.Duration) {
	if l.quiet {
		return
	}
	switch {
	case matched && fixed:
		l.Info("%s: matching entries removed (%.1fs)", path, duration.Seconds())
	case matched:
		l.Info("%s: contains entries from the reference set (%.1fs)", path, duration.Seconds())
	default:
		l.Info("%s: clean (%.1fs)", path, duration.Seconds())
	}
}

// MatchEvent logs a single list entry found in the reference set.
func (l *StderrLogger) MatchEvent(file string, line int, token, via string) {
	if l.quiet {
		return
	}
	if via != "" {
		fmt.Fprintf(l.out, "[gatelist] %s:%d  MATCH  %s (%s)\n", file, line, token, via)
		return
	}
	fmt.Fprintf(l.out, "[gatelist] %s:%d  MATCH  %s\n", file, line, token)
}

// PrintSummary prints the end-of-run totals.
func (l *StderrLogger) PrintSummary(s Summary, duration time.Duration) {
	if l.quiet {
		return
	}
	l.Separator()
	l.Info("Finished in %.1fs", duration.Seconds())
	l.Info("Matches: %d (%d addresses, %d domains)", s.IPMatches+s.DomainMatches, s.IPMatches, s.DomainMatches)
	if s.Skipped > 0 {
		reasons := make([]string, 0, len(s.SkippedByReason))
		for _, r := range sortedKeys(s.SkippedByReason) {
			reasons = append(reasons, fmt.Sprintf("%s %d", r, s.SkippedByReason[r]))
		}
		l.Info("Skipped: %d (%s)", s.Skipped, strings.Join(reasons, ", "))
	}
	if s.Unresolved > 0 {
		l.Info("Unresolved domains: %d", s.Unresolved)
	}
}

// CleanupStart logs the start of cleanup.
func (l *StderrLogger) CleanupStart() {
	l.Info("Scanning for leftover gatelist resources...")
}

// CleanupFound logs found leftover resources.
func (l *StderrLogger) CleanupFound(resourceType, name string) {
	l.Info("Found leftover %s: %s", resourceType, name)
}

// CleanupRemoved logs a removed resource.
func (l *StderrLogger) CleanupRemoved(resourceType, name string) {
	l.Info("Removed %s: %s", resourceType, name)
}

// CleanupNone logs when no leftover resources were found.
func (l *StderrLogger) CleanupNone() {
	l.Info("No leftover resources found")
}
