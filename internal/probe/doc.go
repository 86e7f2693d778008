// Package probe inspects encoded outputs with ffprobe. A single JSON call
// per file returns the container format and the first video stream,
// optionally with a decoded frame count used to verify an encode.
package probe
