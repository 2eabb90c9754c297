package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// JSONReport is the machine-readable final report.
type JSONReport struct {
	Name        string    `json:"name"`
	Host        string    `json:"host"`
	Mode        string    `json:"mode"`
	Population  string    `json:"population"`
	GeneratedAt time.Time `json:"generatedAt"`
	Snapshot    Snapshot  `json:"snapshot"`
}

// WriteJSONReport writes the final snapshot to a JSON file. The path may
// contain a "{{.Timestamp}}" placeholder which is replaced with a
// filesystem-safe timestamp.
func WriteJSONReport(path string, report JSONReport) error {
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now()
	}

	path = strings.ReplaceAll(path, "{{.Timestamp}}",
		report.GeneratedAt.Format("20060102-150405"))

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("metrics: marshalling JSON report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("metrics: creating report directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("metrics: writing JSON report: %w", err)
	}
	return nil
}
