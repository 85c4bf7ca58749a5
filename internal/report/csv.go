// Package report writes the per-run summary table.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"TrendSentinel/internal/model"
)

// DefaultFilename is the summary file written into the output directory.
const DefaultFilename = "EWMAC_signals.csv"

// Header is the column layout of the summary table.
var Header = []string{"Ticker", "LatestSignal"}

// CSVWriter writes summaries as Ticker,LatestSignal rows.
type CSVWriter struct {
	Dir      string
	Filename string
}

// NewCSVWriter creates a writer for dir/filename.
func NewCSVWriter(dir, filename string) *CSVWriter {
	if filename == "" {
		filename = DefaultFilename
	}
	return &CSVWriter{Dir: dir, Filename: filename}
}

// Path returns the destination file.
func (w *CSVWriter) Path() string { return filepath.Join(w.Dir, w.Filename) }

// Write replaces the summary file with one row per summary, in the given order.
// A missing latest signal is written as an empty cell.
func (w *CSVWriter) Write(summaries []model.SignalSummary) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := w.Path()
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create summary: %w", err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(Header); err != nil {
		f.Close()
		return "", fmt.Errorf("write header: %w", err)
	}
	for _, s := range summaries {
		if err := cw.Write([]string{s.Ticker, FormatSignal(s)}); err != nil {
			f.Close()
			return "", fmt.Errorf("write row %s: %w", s.Ticker, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return "", fmt.Errorf("flush summary: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close summary: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("replace summary: %w", err)
	}
	return path, nil
}

// FormatSignal renders the latest signal cell; missing is empty.
func FormatSignal(s model.SignalSummary) string {
	v, ok := s.LatestSignal.Get()
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
