package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Report is the full outcome of one run, written by --report.
type Report struct {
	RunID    string          `yaml:"run_id"`
	Input    string          `yaml:"input"`
	Output   string          `yaml:"output"`
	Started  time.Time       `yaml:"started"`
	Finished time.Time       `yaml:"finished"`
	DryRun   bool            `yaml:"dry_run,omitempty"`
	Stats    RunStats        `yaml:"stats"`
	Sessions []SessionRecord `yaml:"sessions"`
}

// WriteReport writes r as YAML to path, creating parent directories.
func WriteReport(path string, r *Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

// ReadReport loads a report written by WriteReport.
func ReadReport(path string) (*Report, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := yaml.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &r, nil
}
