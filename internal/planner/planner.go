package planner

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/backmassage/planemux/internal/config"
)

// TempRoot returns the run's scratch root: "<temp>/planemux-<runID>".
func TempRoot(cfg *config.Config, runID string) string {
	base := cfg.TempDir
	if base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, "planemux-"+runID)
}

// Build produces the SessionPlan for sessionID. Outputs land directly in
// cfg.OutputDir as "<id>_<suffix>.<container>".
func Build(cfg *config.Config, sessionID, runID string) SessionPlan {
	name := SafeName(sessionID)
	p := SessionPlan{
		ID:        sessionID,
		Name:      name,
		TempDir:   filepath.Join(TempRoot(cfg, runID), name),
		Geometry:  cfg.Geometry(),
		FrameRate: cfg.FrameRate,
	}
	ext := "." + string(cfg.Container)
	for _, a := range Artifacts {
		p.Outputs[a] = filepath.Join(cfg.OutputDir, name+"_"+a.Suffix()+ext)
	}
	return p
}

// SafeName replaces characters that are unsafe in filenames on common
// filesystems with "_".
func SafeName(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, id)
}
