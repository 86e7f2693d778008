package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/backmassage/planemux/internal/frames"
)

// Prober runs ffprobe.
type Prober struct {
	Bin string // ffprobe binary. Default "ffprobe".
}

// Probe runs one ffprobe JSON call against path. With countFrames ffprobe
// decodes the whole video stream to report nb_read_frames.
func (p *Prober) Probe(ctx context.Context, path string, countFrames bool) (*ProbeResult, error) {
	bin := p.Bin
	if bin == "" {
		bin = "ffprobe"
	}
	args := []string{"-v", "error", "-print_format", "json", "-show_format", "-show_streams", "-select_streams", "v:0"}
	if countFrames {
		args = append(args, "-count_frames")
	}
	args = append(args, path)

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("ffprobe %q: %w: %s", path, err, msg)
		}
		return nil, fmt.Errorf("ffprobe %q: %w", path, err)
	}
	return ParseJSON(out)
}

// Verify probes path with frame counting and checks it holds wantFrames
// frames of geometry g.
func (p *Prober) Verify(ctx context.Context, path string, wantFrames int, g frames.Geometry) error {
	pr, err := p.Probe(ctx, path, true)
	if err != nil {
		return err
	}
	return pr.Check(path, wantFrames, g)
}

// ParseJSON converts raw ffprobe JSON output into a ProbeResult.
// Exported for testing without a real ffprobe binary.
func ParseJSON(data []byte) (*ProbeResult, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	return buildResult(&raw), nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type ffprobeStream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	PixFmt       string `json:"pix_fmt"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NbFrames     string `json:"nb_frames"`
	NbReadFrames string `json:"nb_read_frames"`
}

func buildResult(raw *ffprobeOutput) *ProbeResult {
	pr := &ProbeResult{
		Format: FormatInfo{
			Filename:   raw.Format.Filename,
			FormatName: raw.Format.FormatName,
			Duration:   parseFloat(raw.Format.Duration),
			Size:       parseInt64(raw.Format.Size),
			BitRate:    parseInt64(raw.Format.BitRate),
		},
	}
	for i := range raw.Streams {
		s := &raw.Streams[i]
		if s.CodecType != "video" || pr.Video != nil {
			continue
		}
		pr.Video = &VideoStream{
			Index:        s.Index,
			Codec:        s.CodecName,
			PixFmt:       s.PixFmt,
			Width:        s.Width,
			Height:       s.Height,
			AvgFrameRate: s.AvgFrameRate,
			NbFrames:     parseInt(s.NbFrames),
			NbReadFrames: parseInt(s.NbReadFrames),
		}
	}
	return pr
}

// --- Numeric parsing helpers (ffprobe returns numbers as strings) ---

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
