// Package ffmpeg builds and runs the ffmpeg commands that turn packed RGB24
// frames into video and composite two encoded sides.
//
// Layout:
//   - builder.go:  argument slices for encode, overlay and side-by-side.
//   - executor.go: process execution with optional stdin feed and stderr capture.
//   - errors.go:   ExternalProcessError and stderr classification.
//   - retry.go:    codec fallback state (libx264 → libopenh264 → mpeg4).
//   - runner.go:   Runner, which ties the above together for callers.
package ffmpeg
