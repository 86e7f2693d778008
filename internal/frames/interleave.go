package frames

import (
	"context"
	"fmt"
	"io"
)

// Channel names in packing order.
var channelNames = [3]string{"R", "G", "B"}

// DefaultChunkFrames is the frame count per read-pack-write cycle when the
// interleaver runs chunked and no explicit chunk size is configured.
const DefaultChunkFrames = 64

// SizePolicy selects how unequal or misaligned channel lengths are handled.
type SizePolicy string

const (
	PolicyTruncate SizePolicy = "truncate" // Use the shortest channel, drop partial frames (default).
	PolicyStrict   SizePolicy = "strict"   // Fail on any length disagreement.
)

// Strategy selects how much of the output is held in memory at once.
type Strategy string

const (
	StrategyAuto        Strategy = "auto"        // Materialize when it fits MemoryBudget, otherwise chunk.
	StrategyMaterialize Strategy = "materialize" // Pack every frame in a single pass.
	StrategyChunked     Strategy = "chunked"     // Pack ChunkFrames frames per pass.
)

// ByteSource is a random-access, fixed-length byte stream. *channel.Source
// implements it; BytesSource adapts an in-memory slice.
type ByteSource interface {
	Len() int64
	ReadRange(off int64, p []byte) error
}

// BytesSource is an in-memory ByteSource.
type BytesSource []byte

// Len returns len(b).
func (b BytesSource) Len() int64 { return int64(len(b)) }

// ReadRange copies len(p) bytes starting at off. Reads past the end fail
// with io.ErrUnexpectedEOF.
func (b BytesSource) ReadRange(off int64, p []byte) error {
	if off < 0 || off+int64(len(p)) > int64(len(b)) {
		return io.ErrUnexpectedEOF
	}
	copy(p, b[off:])
	return nil
}

// Interleaver packs three planar channels into RGB24 frames.
type Interleaver struct {
	Geometry     Geometry
	Policy       SizePolicy
	Strategy     Strategy
	ChunkFrames  int   // Frames per pass in chunked mode; DefaultChunkFrames when ≤ 0.
	MemoryBudget int64 // Peak buffer bytes allowed for StrategyAuto to materialize.
}

// Result describes a completed Interleave call.
type Result struct {
	Frames       int
	Bytes        int64
	Chunks       int
	Materialized bool
}

// FrameCount returns the number of frames the three channel lengths
// support, capped by maxFrames when maxFrames > 0. In strict mode any
// disagreement is a *SizeMismatchError.
func (il *Interleaver) FrameCount(lengths [3]int64, maxFrames int) (int, error) {
	if err := il.Geometry.Validate(); err != nil {
		return 0, err
	}
	fs := il.Geometry.FrameSize()

	if il.Policy == PolicyStrict {
		if lengths[0] != lengths[1] || lengths[1] != lengths[2] {
			return 0, &SizeMismatchError{Lengths: lengths}
		}
		if lengths[0]%fs != 0 {
			return 0, &SizeMismatchError{Lengths: lengths, FrameSize: fs}
		}
	}

	n := il.Geometry.SupportedFrames(lengths[0])
	for _, l := range lengths[1:] {
		n = min(n, il.Geometry.SupportedFrames(l))
	}
	if maxFrames > 0 && maxFrames < n {
		n = maxFrames
	}
	return n, nil
}

// Interleave writes frameCount packed frames to w, where frameCount is
// FrameCount of the sources' lengths capped by maxFrames (≤ 0 means no cap).
// Size checks happen before any byte is read. Chunks are written in offset
// order, so w receives frames in capture order.
func (il *Interleaver) Interleave(ctx context.Context, srcs [3]ByteSource, maxFrames int, w io.Writer) (Result, error) {
	var lengths [3]int64
	for c, s := range srcs {
		lengths[c] = s.Len()
	}
	frameCount, err := il.FrameCount(lengths, maxFrames)
	if err != nil {
		return Result{}, err
	}
	if frameCount == 0 {
		return Result{}, nil
	}

	chunk, materialized := il.plan(frameCount)
	fs := il.Geometry.FrameSize()
	res := Result{Materialized: materialized}

	var planes [3][]byte
	for c := range planes {
		planes[c] = make([]byte, int64(chunk)*fs)
	}
	out := make([]byte, 3*int64(chunk)*fs)

	for start := 0; start < frameCount; start += chunk {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n := min(chunk, frameCount-start)
		pixels := int64(n) * fs
		off := int64(start) * fs

		for c, s := range srcs {
			if err := s.ReadRange(off, planes[c][:pixels]); err != nil {
				return res, fmt.Errorf("read channel %s at %d: %w", channelNames[c], off, err)
			}
		}
		Pack(out[:3*pixels], planes[0][:pixels], planes[1][:pixels], planes[2][:pixels])

		if _, err := w.Write(out[:3*pixels]); err != nil {
			return res, fmt.Errorf("write frames %d-%d: %w", start, start+n-1, err)
		}
		res.Frames += n
		res.Bytes += 3 * pixels
		res.Chunks++
	}
	return res, nil
}

// plan picks the frames-per-pass for frameCount frames and reports whether
// the output is materialized. An explicit chunked strategy never is, even
// when one chunk covers every frame.
func (il *Interleaver) plan(frameCount int) (int, bool) {
	chunk := il.ChunkFrames
	if chunk <= 0 {
		chunk = DefaultChunkFrames
	}
	switch il.Strategy {
	case StrategyMaterialize:
		return frameCount, true
	case StrategyChunked:
	default:
		if il.MemoryBudget > 0 && PeakBytes(il.Geometry, frameCount) <= il.MemoryBudget {
			return frameCount, true
		}
	}
	if chunk >= frameCount {
		return frameCount, il.Strategy != StrategyChunked
	}
	return chunk, false
}

// PeakBytes is the buffer memory needed to pack frames frames in one pass:
// three input planes plus the packed output.
func PeakBytes(g Geometry, frames int) int64 {
	return 6 * int64(frames) * g.FrameSize()
}

// Pack transposes three equal-length planes into dst, which must hold
// 3*len(r) bytes: dst[3i+0]=r[i], dst[3i+1]=g[i], dst[3i+2]=b[i]. Each plane
// is copied in a single strided pass.
func Pack(dst, r, g, b []byte) {
	n := len(r)
	if n == 0 {
		return
	}
	_ = dst[3*n-1]
	for c, plane := range [3][]byte{r, g[:n], b[:n]} {
		d := dst[c:]
		for i, v := range plane {
			d[3*i] = v
		}
	}
}

// Deinterleave splits a packed RGB24 buffer back into its three planes.
// Trailing bytes that do not form a whole pixel are ignored.
func Deinterleave(packed []byte) (r, g, b []byte) {
	n := len(packed) / 3
	planes := [3][]byte{make([]byte, n), make([]byte, n), make([]byte, n)}
	for c := range planes {
		s := packed[c:]
		p := planes[c]
		for i := range p {
			p[i] = s[3*i]
		}
	}
	return planes[0], planes[1], planes[2]
}
