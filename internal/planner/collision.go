package planner

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrOutputCollision is wrapped by every *CollisionError.
var ErrOutputCollision = errors.New("output path already claimed")

// CollisionError names the output path two sessions both want.
type CollisionError struct {
	Path     string
	Owner    string // Session that claimed Path first.
	Claimant string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("%s: %s by session %q", e.Path, ErrOutputCollision, e.Owner)
}

func (e *CollisionError) Unwrap() error { return ErrOutputCollision }

// OutputClaims tracks which session owns each output path in a run. Paths
// are compared case-insensitively so sessions differing only in case do not
// overwrite each other on case-insensitive filesystems. All methods are
// goroutine-safe.
type OutputClaims struct {
	mu     sync.Mutex
	owners map[string]string // lowercased output path → session id
}

// NewOutputClaims creates a ready-to-use registry.
func NewOutputClaims() *OutputClaims {
	return &OutputClaims{owners: make(map[string]string)}
}

// Claim registers every output of plan for plan.ID. If any path is owned by
// another session nothing is claimed and a *CollisionError is returned.
// Distinct ids that sanitize to the same Name collide. Claiming again for
// the same session is a no-op.
func (oc *OutputClaims) Claim(plan *SessionPlan) error {
	oc.mu.Lock()
	defer oc.mu.Unlock()

	for _, path := range plan.Outputs {
		if owner, ok := oc.owners[strings.ToLower(path)]; ok && owner != plan.ID {
			return &CollisionError{Path: path, Owner: owner, Claimant: plan.ID}
		}
	}
	for _, path := range plan.Outputs {
		oc.owners[strings.ToLower(path)] = plan.ID
	}
	return nil
}
