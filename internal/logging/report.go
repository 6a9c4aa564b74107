package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Report is the top-level structure for the JSON report file.
type Report struct {
	Run     RunInfo      `json:"run"`
	Files   []FileResult `json:"files"`
	Matches []MatchEntry `json:"matches"`
	Skipped []SkipEntry  `json:"skipped"`
	Summary SummaryInfo  `json:"summary"`
}

// RunInfo holds metadata about a filtering run.
type RunInfo struct {
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	DurationSecs float64   `json:"duration_seconds"`
	Reference    string    `json:"reference"`
	RefSummary   string    `json:"reference_summary"`
	RouteSource  string    `json:"route_source,omitempty"`
	Fix          bool      `json:"fix"`
}

// FileResult is the outcome for one list file.
type FileResult struct {
	Path    string `json:"path"`
	Matched bool   `json:"matched"`
	Error   string `json:"error,omitempty"`
}

// MatchEntry is one list entry found in the reference set.
type MatchEntry struct {
	File   string   `json:"file"`
	Line   int      `json:"line"`
	Token  string   `json:"token"`
	Family string   `json:"family"`
	Via    string   `json:"via,omitempty"`
	Addrs  []string `json:"addresses,omitempty"`
}

// SkipEntry is one list entry that could not be checked.
type SkipEntry struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Token  string `json:"token"`
	Reason string `json:"reason"`
}

// SummaryInfo holds summary statistics for the report.
type SummaryInfo struct {
	IPMatches     int `json:"ip_matches"`
	DomainMatches int `json:"domain_matches"`
	Skipped       int `json:"skipped"`
	Unresolved    int `json:"unresolved_domains"`
}

// BuildReport constructs a Report from run info, per-file results and events.
func BuildReport(run RunInfo, files []FileResult, events []Event, summary Summary) Report {
	matches := []MatchEntry{}
	skipped := []SkipEntry{}

	for _, ev := range events {
		switch {
		case ev.IsMatch():
			matches = append(matches, MatchEntry{
				File:   ev.File,
				Line:   ev.Line,
				Token:  ev.Token,
				Family: ev.Family,
				Via:    ev.Via,
				Addrs:  ev.Addrs,
			})
		case ev.Type == EventSkipped:
			skipped = append(skipped, SkipEntry{
				File:   ev.File,
				Line:   ev.Line,
				Token:  ev.Token,
				Reason: ev.Reason,
			})
		}
	}

	if files == nil {
		files = []FileResult{}
	}

	return Report{
		Run:     run,
		Files:   files,
		Matches: matches,
		Skipped: skipped,
		Summary: SummaryInfo{
			IPMatches:     summary.IPMatches,
			DomainMatches: summary.DomainMatches,
			Skipped:       summary.Skipped,
			Unresolved:    summary.Unresolved,
		},
	}
}

// WriteReport writes the report to the specified path atomically.
func WriteReport(path string, report Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	dir := filepath.Dir(path)
	tmpPath := path + ".tmp"

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating report directory %s: %w", dir, err)
	}

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing temporary report file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		// Rename fails across devices; write in place instead.
		os.Remove(tmpPath)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("writing report file: %w", err)
		}
	}

	return nil
}

// DefaultReportPath returns the default report path for a run started at t.
func DefaultReportPath(t time.Time) string {
	return fmt.Sprintf("./gatelist-%s.json", t.Format("20060102-150405"))
}
