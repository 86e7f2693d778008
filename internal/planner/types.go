package planner

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/backmassage/planemux/internal/frames"
	"github.com/backmassage/planemux/internal/session"
)

// Artifact is one of the four final outputs of a session.
type Artifact int

const (
	ArtifactLeft Artifact = iota
	ArtifactRight
	ArtifactOverlay
	ArtifactCombined
)

// Artifacts lists every artifact in production order.
var Artifacts = [4]Artifact{ArtifactLeft, ArtifactRight, ArtifactOverlay, ArtifactCombined}

// Suffix returns the filename suffix after the session id.
func (a Artifact) Suffix() string {
	switch a {
	case ArtifactLeft:
		return "L"
	case ArtifactRight:
		return "R"
	case ArtifactOverlay:
		return "overlay"
	case ArtifactCombined:
		return "combined"
	}
	return "unknown"
}

func (a Artifact) String() string { return a.Suffix() }

// SideArtifact returns the per-side encode artifact.
func SideArtifact(side session.Side) Artifact {
	if side == session.SideL {
		return ArtifactLeft
	}
	return ArtifactRight
}

// SessionPlan holds every path one session touches.
type SessionPlan struct {
	ID        string // Session id as grouped.
	Name      string // ID made safe for filenames.
	Outputs   [4]string // Final artifact paths, indexed by Artifact.
	TempDir   string    // Per-session scratch directory; removed when the session ends.
	Geometry  frames.Geometry
	FrameRate int
}

// Output returns the final path of a.
func (p *SessionPlan) Output(a Artifact) string { return p.Outputs[a] }

// Partial returns the in-progress path of a: "<stem>.partial<ext>". The
// artifact is renamed to Output(a) only once it is complete and verified.
func (p *SessionPlan) Partial(a Artifact) string {
	out := p.Outputs[a]
	ext := filepath.Ext(out)
	return strings.TrimSuffix(out, ext) + ".partial" + ext
}

// RawPath returns the temp file holding side's packed RGB24 frames.
func (p *SessionPlan) RawPath(side session.Side) string {
	return filepath.Join(p.TempDir, p.Name+"_"+string(side)+".rgb")
}

// Existing returns the artifacts whose final output already exists.
func (p *SessionPlan) Existing() []Artifact {
	var out []Artifact
	for _, a := range Artifacts {
		if _, err := os.Stat(p.Outputs[a]); err == nil {
			out = append(out, a)
		}
	}
	return out
}

// Done reports whether all four final outputs exist.
func (p *SessionPlan) Done() bool {
	return len(p.Existing()) == len(Artifacts)
}
