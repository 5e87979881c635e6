package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"carbon-scribe/mrv/mrv-backend/internal/carbon/calculation"
)

// FileSink writes each report as indented JSON into a directory
type FileSink struct {
	dir string
}

// NewFileSink creates a file sink rooted at dir
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

// Name returns the sink name
func (s *FileSink) Name() string {
	return "file"
}

// ReportFileName returns carbon_report_<farm_id>.json with path separators replaced
func ReportFileName(farmID string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(farmID)
	return fmt.Sprintf("carbon_report_%s.json", safe)
}

// Store writes the report, replacing any previous report for the farm
func (s *FileSink) Store(ctx context.Context, report *calculation.VerificationReport) error {
	_, err := s.Write(report)
	return err
}

// Write writes the report and returns its path
func (s *FileSink) Write(report *calculation.VerificationReport) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	path := filepath.Join(s.dir, ReportFileName(report.FarmID))
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
