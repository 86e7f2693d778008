// Package planner decides where each session's artifacts go and how much
// of the machine a run may use.
//
//   - planner.go:   Build turns a session id into a SessionPlan.
//   - types.go:     Artifact and SessionPlan (final, partial and temp paths).
//   - collision.go: OutputClaims, which refuses two sessions one output path.
//   - resources.go: worker count and per-worker memory budget from gopsutil.
package planner
