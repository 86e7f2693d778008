package ffmpeg

import "slices"

// FallbackCodecs is the order tried after the configured encoder turns out
// to be missing from the local ffmpeg build.
var FallbackCodecs = []string{"libx264", "libopenh264", "mpeg4"}

// RetryAction identifies which fix was applied (or none).
type RetryAction int

const (
	RetryNone      RetryAction = iota
	RetryNextCodec             // Switch to the next encoder in the chain.
)

// RetryState tracks the codec chain across attempts for one command.
type RetryState struct {
	Attempt int
	chain   []string
	pos     int
}

// NewRetryState starts at codec. With fallback the chain continues through
// FallbackCodecs, skipping codec itself.
func NewRetryState(codec string, fallback bool) *RetryState {
	chain := []string{codec}
	if fallback {
		for _, c := range FallbackCodecs {
			if !slices.Contains(chain, c) {
				chain = append(chain, c)
			}
		}
	}
	return &RetryState{chain: chain}
}

// Codec returns the encoder for the current attempt.
func (s *RetryState) Codec() string { return s.chain[s.pos] }

// Advance inspects stderr from a failed run and moves to the next codec
// when the failure was an unavailable encoder. Returns RetryNone when the
// failure is not fixable or the chain is exhausted.
func (s *RetryState) Advance(stderr string) RetryAction {
	s.Attempt++
	if s.pos+1 >= len(s.chain) || !MatchEncoderUnavailable(stderr) {
		return RetryNone
	}
	s.pos++
	return RetryNextCodec
}
