// Package pipeline discovers channel files, groups them into sessions and
// drives each processable session through interleave, encode, composite
// and cleanup on a bounded worker pool. One session's failure never stops
// the batch.
//
//   - discover.go: walk the input tree for channel files.
//   - runner.go:   Pipeline and the per-session state machine.
//   - state.go:    State, SessionRecord and StageError.
//   - stats.go:    RunStats and the end-of-run summary.
//   - report.go:   YAML run report.
//   - analyze.go:  --analyze session table.
//   - watch.go:    --watch re-runs on new input.
package pipeline
