package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/backmassage/planemux/internal/config"
	"github.com/backmassage/planemux/internal/display"
	"github.com/backmassage/planemux/internal/frames"
	"github.com/backmassage/planemux/internal/logging"
	"github.com/backmassage/planemux/internal/session"
	"github.com/backmassage/planemux/internal/term"
)

// sessionRow holds the per-session data for the analysis table.
type sessionRow struct {
	ID       string
	Channels [2]string // Per-side "R/G/B" frame counts, "-" for an empty slot.
	Common   int       // Frames both sides share; -1 when not processable.
	Status   string
	Problem  bool // Status describes something that stops processing.
}

// Analyze discovers channel files, groups them and prints a per-session
// table of channel frame counts, completeness and length disagreements.
// Sessions whose common frame count is far from the rest are flagged.
// Nothing is written to disk.
func Analyze(ctx context.Context, cfg *config.Config, log *logging.Logger, w io.Writer) error {
	d, err := Discover(cfg.InputDir, cfg.Extension)
	if err != nil {
		return fmt.Errorf("discover %s: %w", cfg.InputDir, err)
	}
	if len(d.Files) == 0 {
		log.Warn("No %s channel files found in %s", cfg.Extension, cfg.InputDir)
		return nil
	}

	groups := session.Group(d.Files)
	log.Info("Analyzing %d channel files in %d sessions …", len(d.Files), len(groups))
	fmt.Fprintln(w)

	sy := &session.Synchronizer{Interleaver: &frames.Interleaver{
		Geometry: cfg.Geometry(),
		Policy:   cfg.SizePolicy,
	}}
	var rows []sessionRow
	var commons []float64
	for _, id := range groups.IDs() {
		if err := ctx.Err(); err != nil {
			log.Warn("Interrupted")
			return err
		}
		row := analyzeSession(sy, groups[id])
		rows = append(rows, row)
		if row.Common > 0 {
			commons = append(commons, float64(row.Common))
		}
	}

	stats := computeStats(commons)
	printAnalysisTable(w, cfg, rows, stats)
	printAnalysisSummary(log, rows, stats, len(d.Ignored))
	return nil
}

func analyzeSession(sy *session.Synchronizer, s *session.Session) sessionRow {
	g := sy.Interleaver.Geometry
	row := sessionRow{ID: s.ID, Common: -1}
	for i, side := range session.Sides {
		cells := make([]string, session.NumChannels)
		sc := s.Sides[side]
		for ch := range cells {
			if sc == nil || sc[ch] == nil {
				cells[ch] = "-"
				continue
			}
			cells[ch] = strconv.Itoa(g.SupportedFrames(sc[ch].Size))
		}
		row.Channels[i] = strings.Join(cells, "/")
	}

	plan, err := sy.Plan(s)
	switch {
	case errors.Is(err, session.ErrNotProcessable):
		row.Status = "missing " + strings.Join(s.Missing(), ", ")
		row.Problem = true
	case errors.Is(err, session.ErrNothingToSync):
		row.Common = 0
		row.Status = "no common frames"
		row.Problem = true
	case err != nil:
		row.Status = err.Error()
		row.Problem = true
	default:
		row.Common = plan.Common
		row.Status = "ok"
		if l, r := plan.Frames[session.SideL], plan.Frames[session.SideR]; l != r {
			row.Status = fmt.Sprintf("truncated (L=%d, R=%d)", l, r)
		}
	}
	if n := len(s.Duplicates); n > 0 {
		row.Status += fmt.Sprintf(", %d duplicate(s)", n)
	}
	return row
}

// iqrBounds holds the IQR-based thresholds for outlier classification.
type iqrBounds struct {
	q1, q3    float64
	outlierLo float64 // Q1 - 1.5*IQR
	outlierHi float64 // Q3 + 1.5*IQR
	extremeLo float64 // Q1 - 3.0*IQR
	extremeHi float64 // Q3 + 3.0*IQR
	valid     bool
}

func computeStats(vals []float64) iqrBounds {
	if len(vals) < 4 {
		return iqrBounds{}
	}

	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	q1 := percentile(sorted, 25)
	q3 := percentile(sorted, 75)
	iqr := q3 - q1

	return iqrBounds{
		q1:        q1,
		q3:        q3,
		outlierLo: q1 - 1.5*iqr,
		outlierHi: q3 + 1.5*iqr,
		extremeLo: q1 - 3.0*iqr,
		extremeHi: q3 + 3.0*iqr,
		valid:     iqr > 0,
	}
}

// classify returns "" (normal), "outlier", or "extreme" for a value.
func (b *iqrBounds) classify(v float64) string {
	if !b.valid || v <= 0 {
		return ""
	}
	if v < b.extremeLo || v > b.extremeHi {
		return "extreme"
	}
	if v < b.outlierLo || v > b.outlierHi {
		return "outlier"
	}
	return ""
}

func printAnalysisTable(w io.Writer, cfg *config.Config, rows []sessionRow, stats iqrBounds) {
	idW := len("Session")
	lW := len("L (R/G/B)")
	rW := len("R (R/G/B)")
	cW := len("Frames")
	pW := len("Playback")

	for _, r := range rows {
		idW = max(idW, len(r.ID))
		lW = max(lW, len(r.Channels[0]))
		rW = max(rW, len(r.Channels[1]))
		cW = max(cW, len(commonLabel(r.Common)))
		pW = max(pW, len(playbackLabel(r.Common, cfg.FrameRate)))
	}
	idW = min(idW, 40)

	header := fmt.Sprintf("  %-*s  %-*s  %-*s  %-*s  %-*s  %s",
		idW, "Session",
		lW, "L (R/G/B)",
		rW, "R (R/G/B)",
		cW, "Frames",
		pW, "Playback",
		"Status",
	)
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, "  "+strings.Repeat("─", len(header)-2))

	for _, r := range rows {
		id := r.ID
		if len(id) > idW {
			id = id[:idW-1] + "…"
		}
		class := stats.classify(float64(r.Common))
		status := r.Status
		if r.Problem {
			status = term.Paint(term.Red, status)
		}

		// Pad the plain text first, then wrap in ANSI color, so escape
		// bytes do not count toward the column width.
		fmt.Fprintf(w, "  %-*s  %-*s  %-*s  %s  %-*s  %s %s\n",
			idW, id,
			lW, r.Channels[0],
			rW, r.Channels[1],
			colorPad(commonLabel(r.Common), cW, class),
			pW, playbackLabel(r.Common, cfg.FrameRate),
			status,
			formatFlag(class),
		)
	}
	fmt.Fprintln(w)
}

func printAnalysisSummary(log *logging.Logger, rows []sessionRow, stats iqrBounds, ignored int) {
	var ready, problems, outliers, extremes int
	for _, r := range rows {
		if r.Problem {
			problems++
		} else {
			ready++
		}
		switch stats.classify(float64(r.Common)) {
		case "extreme":
			extremes++
		case "outlier":
			outliers++
		}
	}

	log.Info("Analyzed %d sessions: %d ready, %d not processable", len(rows), ready, problems)
	if ignored > 0 {
		log.Warn("  %d file(s) with unrecognized names ignored", ignored)
	}
	if stats.valid {
		log.Info("  Frame count IQR: %.0f – %.0f (outlier < %.0f or > %.0f)",
			stats.q1, stats.q3, stats.outlierLo, stats.outlierHi)
	}
	if outliers > 0 {
		log.Warn("  %d outlier(s) flagged [*]", outliers)
	}
	if extremes > 0 {
		log.Error("  %d extreme outlier(s) flagged [!]", extremes)
	}
	if outliers == 0 && extremes == 0 && problems == 0 {
		log.Success("  All sessions ready, no outliers detected")
	}
}

func commonLabel(n int) string {
	if n < 0 {
		return "n/a"
	}
	return strconv.Itoa(n)
}

func playbackLabel(n, fps int) string {
	if n <= 0 {
		return "n/a"
	}
	return display.FormatPlayback(n, fps)
}

func formatFlag(flag string) string {
	switch flag {
	case "extreme":
		return term.Paint(term.Red, "[!]")
	case "outlier":
		return term.Paint(term.Yellow, "[*]")
	default:
		return ""
	}
}

// colorPad pads a plain string to width, then wraps in ANSI color. This
// ensures %-*s-style alignment works correctly regardless of escape sequences.
func colorPad(s string, width int, class string) string {
	padded := fmt.Sprintf("%-*s", width, s)
	switch class {
	case "extreme":
		return term.Paint(term.Red, padded)
	case "outlier":
		return term.Paint(term.Yellow, padded)
	default:
		return padded
	}
}

// percentile computes the p-th percentile using linear interpolation.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p / 100) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi || hi >= len(sorted) {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
